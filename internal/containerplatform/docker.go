package containerplatform

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// DockerPlatform implements Platform against a local or remote Docker
// engine, standing in for the real container-hosting platform in
// development and single-host deployments. Grounded on the teacher-adjacent
// Aureuma-si docker client (agents/shared/docker/client.go): negotiate the
// API version once at construction, then ContainerCreate/ContainerStart/
// ContainerInspect/ContainerRemove per service.
type DockerPlatform struct {
	api   *client.Client
	label string
}

// NewDockerPlatform constructs a DockerPlatform from the environment's
// Docker configuration (DOCKER_HOST and friends).
func NewDockerPlatform() (*DockerPlatform, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPlatformError, "containerplatform.NewDockerPlatform", err)
	}
	return &DockerPlatform{api: api, label: "foundry.execution"}, nil
}

// Close releases the underlying Docker API client.
func (p *DockerPlatform) Close() error {
	if p == nil || p.api == nil {
		return nil
	}
	return p.api.Close()
}

// CreateService creates and starts a container whose env carries the
// execution token, plan reference, and callback endpoint (§4.5 step 2).
func (p *DockerPlatform) CreateService(ctx context.Context, spec ServiceSpec) (Service, error) {
	env := make([]string, 0, len(spec.Variables))
	for k, v := range spec.Variables {
		env = append(env, fmt.Sprintf("%s=%s", strings.ToUpper(k), v))
	}

	resp, err := p.api.ContainerCreate(ctx, &container.Config{
		Image:  spec.Image,
		Env:    env,
		Labels: map[string]string{p.label: spec.Name},
	}, &container.HostConfig{
		AutoRemove: false,
	}, &network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return Service{}, apperrors.Wrap(apperrors.KindPlatformError, "containerplatform.CreateService", err)
	}

	if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Service{}, apperrors.Wrap(apperrors.KindPlatformError, "containerplatform.CreateService", err)
	}
	return Service{ID: resp.ID, Name: spec.Name}, nil
}

// DeploymentStatus inspects the container and maps its Docker state to one
// of the platform's four deployment states.
func (p *DockerPlatform) DeploymentStatus(ctx context.Context, serviceID string) (DeploymentStatus, error) {
	info, err := p.api.ContainerInspect(ctx, serviceID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindPlatformError, "containerplatform.DeploymentStatus", err)
	}
	if info.State == nil {
		return StatusBuilding, nil
	}
	switch {
	case info.State.Running:
		return StatusBuilding, nil
	case info.State.OOMKilled, info.State.Dead:
		return StatusCrashed, nil
	case info.State.ExitCode == 0 && !info.State.Running:
		if info.State.StartedAt == "" {
			return StatusBuilding, nil
		}
		return StatusSuccess, nil
	default:
		return StatusFailed, nil
	}
}

// DeleteService stops and removes the container, ignoring "already gone"
// errors so repeated cleanup calls are idempotent.
func (p *DockerPlatform) DeleteService(ctx context.Context, serviceID string) error {
	err := p.api.ContainerRemove(ctx, serviceID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return apperrors.Wrap(apperrors.KindPlatformError, "containerplatform.DeleteService", err)
	}
	return nil
}
