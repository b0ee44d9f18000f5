package interpreter

import (
	"context"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// The methods in this file let the Dispatcher's remote path (§4.5 step 4)
// reconcile a container's webhook callbacks into an execution's state
// without going through Step: the container, not this process, drove the
// node to completion, so these calls apply its reported result rather than
// invoking a local executor.

// RemotePortUpdate merges a remote container's reported outputs and context
// updates for nodeID into the execution, recording a stepHistory entry.
func (in *Interpreter) RemotePortUpdate(ctx context.Context, executionID, nodeID string, outputs, contextUpdates map[string]any) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.RemotePortUpdate", "execution %q not found", executionID)
	}

	now := time.Now()
	if state.PortData[nodeID] == nil {
		state.PortData[nodeID] = make(map[string]any)
	}
	for k, v := range outputs {
		state.PortData[nodeID][k] = v
	}
	mergeContext(state.Context, contextUpdates)
	state.StepHistory = append(state.StepHistory, StepHistoryEntry{
		ID:          nodeID + "-remote-" + now.Format(time.RFC3339Nano),
		NodeID:      nodeID,
		Status:      "completed",
		StartedAt:   now,
		CompletedAt: now,
		Output:      outputs,
	})
	state.LastActivityAt = now
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "step:complete", map[string]any{"nodeId": nodeID, "remote": true})
	return nil
}

// RemoteActivity republishes a streaming activity event reported by a
// remote container, with no state mutation.
func (in *Interpreter) RemoteActivity(ctx context.Context, executionID, activityType string, payload map[string]any) {
	in.publish(ctx, executionID, activityType, payload)
}

// RemoteComplete marks the execution completed with the completion status
// the container's final webhook reported (§4.5 step 4, §4.4's terminal
// status mapping).
func (in *Interpreter) RemoteComplete(ctx context.Context, executionID, completionStatus string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.RemoteComplete", "execution %q not found", executionID)
	}
	if state.Status != StatusRunning {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.RemoteComplete", "execution %q is not running", executionID)
	}

	state.CompletionStatus = completionStatus
	_, err = in.finishCompleted(ctx, state)
	return err
}

// RemoteFail marks the execution failed with the cause a remote container's
// error webhook reported, or a dispatcher-observed platform failure (§4.5,
// §7).
func (in *Interpreter) RemoteFail(ctx context.Context, executionID string, cause error) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.RemoteFail", "execution %q not found", executionID)
	}
	if state.Status == StatusCompleted || state.Status == StatusFailed {
		return nil
	}

	_, err = in.finishFailed(ctx, state, cause)
	return err
}
