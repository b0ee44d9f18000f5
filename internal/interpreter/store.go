package interpreter

import "context"

// Store is the persistence surface the interpreter needs. It is satisfied by
// internal/store's execution table, which also enforces the
// UNIQUE(workflowId, projectId) WHERE status='running' constraint from §3/§5
// inside CreateRunning.
type Store interface {
	// CreateRunning persists a brand-new execution with status=running,
	// failing with apperrors.KindConflict if another running execution
	// already exists for (state.WorkflowID, state.ProjectID).
	CreateRunning(ctx context.Context, state *ExecutionState) error

	// Save atomically overwrites the checkpointed state for state.ID.
	Save(ctx context.Context, state *ExecutionState) error

	// Get loads the execution state by id.
	Get(ctx context.Context, executionID string) (*ExecutionState, bool, error)
}
