// Package containerplatform wraps the external container-hosting platform
// the Dispatcher's remote path (§4.5) uses to run a compiled plan: create a
// short-lived service, inject the execution token and plan pointer, poll its
// deployment status, and delete it on terminal event. The core never talks
// to the platform's native SDK types outside this package — everything else
// sees the narrow Platform interface.
package containerplatform

import (
	"context"
	"time"
)

// DeploymentStatus is one of the platform's deployment lifecycle states
// (§4.5 step 3).
type DeploymentStatus string

const (
	StatusBuilding DeploymentStatus = "BUILDING"
	StatusSuccess  DeploymentStatus = "SUCCESS"
	StatusFailed   DeploymentStatus = "FAILED"
	StatusCrashed  DeploymentStatus = "CRASHED"
)

// Terminal reports whether s is one of the platform's terminal states.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCrashed:
		return true
	}
	return false
}

// ServiceSpec describes the service the Dispatcher asks the platform to
// create for one remote execution (§4.5 step 2).
type ServiceSpec struct {
	Name      string
	Image     string
	Variables map[string]string
}

// Service is the platform's handle to a created service.
type Service struct {
	ID   string
	Name string
}

// Platform is the narrow interface the Dispatcher's remote path depends on;
// the engine's core never imports a concrete container SDK directly (§1).
type Platform interface {
	CreateService(ctx context.Context, spec ServiceSpec) (Service, error)
	DeploymentStatus(ctx context.Context, serviceID string) (DeploymentStatus, error)
	DeleteService(ctx context.Context, serviceID string) error
}

// PollOptions configures the exponential-backoff poll loop of §4.5 step 3.
type PollOptions struct {
	Initial  time.Duration
	Max      time.Duration
	Deadline time.Duration
}

// DefaultPollOptions matches §4.5's production defaults: initial 5s, max
// 30s, overall deadline 5 minutes.
var DefaultPollOptions = PollOptions{
	Initial:  5 * time.Second,
	Max:      30 * time.Second,
	Deadline: 5 * time.Minute,
}

// PollUntilTerminal polls platform for serviceID's status with exponential
// backoff until a terminal status is reached or opts.Deadline elapses, in
// which case it returns (StatusBuilding, false, nil) so the caller can raise
// DeploymentTimeout.
func PollUntilTerminal(ctx context.Context, platform Platform, serviceID string, opts PollOptions) (DeploymentStatus, bool, error) {
	if opts.Initial <= 0 {
		opts = DefaultPollOptions
	}
	deadline := time.Now().Add(opts.Deadline)
	backoff := opts.Initial

	for {
		status, err := platform.DeploymentStatus(ctx, serviceID)
		if err != nil {
			return "", false, err
		}
		if status.Terminal() {
			return status, true, nil
		}
		if time.Now().After(deadline) {
			return status, false, nil
		}

		select {
		case <-ctx.Done():
			return status, false, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > opts.Max {
			backoff = opts.Max
		}
	}
}
