// Package dispatcher implements the remote execution dispatcher
// (component E): given a compiled Plan, it chooses local in-process
// execution or creates an ephemeral container deployment, issues a scoped
// execution token, polls the container platform for deployment-level
// failure ahead of any webhook, and reconciles the container's webhook
// callbacks back into interpreter state (§4.5).
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/containerplatform"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
	"github.com/iota-uz/foundry-sub005/internal/token"
)

// Decrypter narrows the credential-encryption primitive assumed by §1 to
// the single call the dispatcher needs before injecting a workflow's
// environment into a container.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Config holds the Dispatcher's tunables, normally sourced from
// internal/config.
type Config struct {
	EndpointURL  string
	DefaultImage string
	Poll         containerplatform.PollOptions
	TokenTTL     time.Duration
}

// Dispatcher is component E.
type Dispatcher struct {
	interp      *interpreter.Interpreter
	platform    containerplatform.Platform
	planStore   PlanStore
	signer      *token.Signer
	revocations *token.Revocations
	decrypter   Decrypter
	cfg         Config
	logger      telemetry.Logger

	mu     sync.Mutex
	remote map[string]*remoteTracking
}

type remoteTracking struct {
	serviceID string
	stop      chan struct{}
	once      sync.Once
}

// New constructs a Dispatcher.
func New(interp *interpreter.Interpreter, platform containerplatform.Platform, planStore PlanStore, signer *token.Signer, revocations *token.Revocations, decrypter Decrypter, cfg Config, logger telemetry.Logger) *Dispatcher {
	if cfg.Poll.Initial <= 0 {
		cfg.Poll = containerplatform.DefaultPollOptions
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = token.MaxLifetime
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Dispatcher{
		interp:      interp,
		platform:    platform,
		planStore:   planStore,
		signer:      signer,
		revocations: revocations,
		decrypter:   decrypter,
		cfg:         cfg,
		logger:      logger,
		remote:      make(map[string]*remoteTracking),
	}
}

// Dispatch starts plan's execution, choosing local or remote per
// wf.RemoteExecution, and returns the new execution id immediately: both
// paths run to completion asynchronously, matching §6's "Start execution"
// endpoint returning {executionId} without blocking on the run.
func (d *Dispatcher) Dispatch(ctx context.Context, wf *graph.Workflow, plan *graph.Plan, initialContext map[string]any) (string, error) {
	executionID, err := d.interp.Start(ctx, plan, initialContext)
	if err != nil {
		return "", err
	}

	if !wf.RemoteExecution {
		go d.runLocal(executionID)
		return executionID, nil
	}

	go d.runRemote(executionID, wf, plan)
	return executionID, nil
}

// runLocal drives the execution in-process via the Interpreter, streaming
// events through the already-wired hooks bus (§4.5 "Local path").
func (d *Dispatcher) runLocal(executionID string) {
	if err := d.interp.Run(context.Background(), executionID); err != nil {
		d.logger.Warn(context.Background(), "local execution finished with error", "executionId", executionID, "error", err.Error())
	}
}

// runRemote implements §4.5's remote path steps 1-3: mint a token, persist
// the plan, create the container service, and poll for a deployment-level
// terminal state ahead of any webhook. Step 4 (webhook application) and
// step 5 (cleanup on final event) are handled by HandleWebhook; this
// goroutine exists only to catch the case where no webhook ever arrives
// (DeploymentTimeout, or the platform reporting FAILED/CRASHED outright).
func (d *Dispatcher) runRemote(executionID string, wf *graph.Workflow, plan *graph.Plan) {
	ctx := context.Background()

	raw, _, err := d.signer.Issue(executionID, plan.WorkflowID, d.cfg.TokenTTL)
	if err != nil {
		_ = d.interp.RemoteFail(ctx, executionID, apperrors.Wrap(apperrors.KindPlatformError, "dispatcher.runRemote", err))
		return
	}

	planRef := d.planStore.Put(plan)

	vars := map[string]string{
		"execution_token": raw,
		"plan_ref":        planRef,
		"endpoint_url":    d.cfg.EndpointURL,
	}
	for k, v := range d.decryptEnvironment(ctx, wf.EncryptedEnvironment) {
		vars[k] = v
	}

	image := wf.DockerImage
	if image == "" {
		image = d.cfg.DefaultImage
	}

	svc, err := d.platform.CreateService(ctx, containerplatform.ServiceSpec{
		Name:      fmt.Sprintf("exec-%s", executionID),
		Image:     image,
		Variables: vars,
	})
	if err != nil {
		_ = d.interp.RemoteFail(ctx, executionID, err)
		d.revocations.Revoke(executionID)
		return
	}

	track := &remoteTracking{serviceID: svc.ID, stop: make(chan struct{})}
	d.mu.Lock()
	d.remote[executionID] = track
	d.mu.Unlock()

	status, terminal, err := d.pollWithStop(ctx, svc.ID, track.stop)
	if err != nil {
		d.finalizeRemote(executionID, err)
		return
	}
	if !terminal {
		// pollWithStop returning non-terminal without error means the stop
		// channel fired: a webhook already reconciled this execution via
		// HandleWebhook, which owns cleanup from here.
		return
	}
	if status != containerplatform.StatusSuccess {
		d.finalizeRemote(executionID, apperrors.Errorf(apperrors.KindPlatformError, "dispatcher.runRemote", "deployment reported %s before any webhook arrived", status))
		return
	}
	// status == StatusSuccess but no webhook ever reconciled completion:
	// treat as a platform error rather than silently leaving the execution
	// running forever.
	d.finalizeRemote(executionID, apperrors.New(apperrors.KindPlatformError, "dispatcher.runRemote", "deployment succeeded but no completion webhook was received"))
}

// pollWithStop polls platform for serviceID's deployment status with
// exponential backoff until a terminal status is observed, the deadline
// elapses (returned as a non-terminal result with a DeploymentTimeout
// error), or stop is closed (webhook-driven reconciliation already
// happened; returned as non-terminal with no error).
func (d *Dispatcher) pollWithStop(ctx context.Context, serviceID string, stop <-chan struct{}) (containerplatform.DeploymentStatus, bool, error) {
	opts := d.cfg.Poll
	deadline := time.Now().Add(opts.Deadline)
	backoff := opts.Initial

	for {
		select {
		case <-stop:
			return "", false, nil
		default:
		}

		status, err := d.platform.DeploymentStatus(ctx, serviceID)
		if err != nil {
			return "", false, apperrors.Wrap(apperrors.KindPlatformError, "dispatcher.pollWithStop", err)
		}
		if status.Terminal() {
			return status, true, nil
		}
		if time.Now().After(deadline) {
			return status, false, apperrors.New(apperrors.KindDeploymentTimeout, "dispatcher.pollWithStop", "deployment did not reach a terminal state before the deadline")
		}

		select {
		case <-stop:
			return "", false, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > opts.Max {
			backoff = opts.Max
		}
	}
}

// decryptEnvironment decrypts a workflow's encryptedEnvironment blob and
// parses it as a flat string map for container env vars. A decrypt or parse
// failure is logged and treated as "no extra environment" rather than
// aborting the dispatch, since a missing secret should surface as the
// container's own failure, not a dispatch-time one.
func (d *Dispatcher) decryptEnvironment(ctx context.Context, encrypted []byte) map[string]string {
	if len(encrypted) == 0 || d.decrypter == nil {
		return nil
	}
	plaintext, err := d.decrypter.Decrypt(encrypted)
	if err != nil {
		d.logger.Warn(ctx, "failed to decrypt workflow environment", "error", err.Error())
		return nil
	}
	var env map[string]string
	if err := json.Unmarshal(plaintext, &env); err != nil {
		d.logger.Warn(ctx, "workflow environment did not decode as a string map", "error", err.Error())
		return nil
	}
	return env
}

func (d *Dispatcher) finalizeRemote(executionID string, cause error) {
	ctx := context.Background()
	_ = d.interp.RemoteFail(ctx, executionID, cause)
	d.cleanup(executionID)
}

// cleanup deletes the tracked container service and revokes the execution's
// token, idempotently (§4.5 step 5, §8 property: the token is invalidated on
// a terminal event).
func (d *Dispatcher) cleanup(executionID string) {
	d.mu.Lock()
	track, ok := d.remote[executionID]
	if ok {
		delete(d.remote, executionID)
	}
	d.mu.Unlock()

	if ok {
		track.once.Do(func() { close(track.stop) })
		if err := d.platform.DeleteService(context.Background(), track.serviceID); err != nil {
			d.logger.Warn(context.Background(), "failed to delete container service", "executionId", executionID, "error", err.Error())
		}
	}
	d.revocations.Revoke(executionID)
}
