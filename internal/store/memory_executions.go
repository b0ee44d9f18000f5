package store

import (
	"context"
	"sync"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
)

// MemoryExecutions is an in-memory interpreter.Store, enforcing the
// UNIQUE(workflowId, projectId) WHERE status='running' invariant (§3) with a
// plain map guarded by a mutex instead of a database partial index.
type MemoryExecutions struct {
	mu            sync.Mutex
	executions    map[string]*interpreter.ExecutionState
	runningByPlan map[string]string
}

// NewMemoryExecutions constructs an empty MemoryExecutions store.
func NewMemoryExecutions() *MemoryExecutions {
	return &MemoryExecutions{
		executions:    make(map[string]*interpreter.ExecutionState),
		runningByPlan: make(map[string]string),
	}
}

func runningKey(workflowID, projectID string) string { return workflowID + "|" + projectID }

// CreateRunning implements interpreter.Store.
func (m *MemoryExecutions) CreateRunning(ctx context.Context, state *interpreter.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := runningKey(state.WorkflowID, state.ProjectID)
	if _, exists := m.runningByPlan[key]; exists {
		return apperrors.Errorf(apperrors.KindConflict, "store.CreateRunning", "a running execution already exists for workflow %q project %q", state.WorkflowID, state.ProjectID)
	}
	m.runningByPlan[key] = state.ID
	m.executions[state.ID] = state.Clone()
	return nil
}

// Save implements interpreter.Store. Saving a terminal or non-running status
// releases the running-slot reservation for its (workflowId, projectId);
// saving status=running takes it back, failing with Conflict if another
// execution holds it.
func (m *MemoryExecutions) Save(ctx context.Context, state *interpreter.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.executions[state.ID]; !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "store.Save", "execution %q not found", state.ID)
	}

	key := runningKey(state.WorkflowID, state.ProjectID)
	if state.Status == interpreter.StatusRunning {
		if owner, taken := m.runningByPlan[key]; taken && owner != state.ID {
			return apperrors.Errorf(apperrors.KindConflict, "store.Save", "a running execution already exists for workflow %q project %q", state.WorkflowID, state.ProjectID)
		}
		m.runningByPlan[key] = state.ID
	} else if m.runningByPlan[key] == state.ID {
		delete(m.runningByPlan, key)
	}
	m.executions[state.ID] = state.Clone()
	return nil
}

// Get implements interpreter.Store.
func (m *MemoryExecutions) Get(ctx context.Context, executionID string) (*interpreter.ExecutionState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.executions[executionID]
	if !ok {
		return nil, false, nil
	}
	return state.Clone(), true, nil
}

// ListRunningIDs implements interpreter.RunningLister, giving the staleness
// sweeper the set of execution ids to check without scanning the whole table.
func (m *MemoryExecutions) ListRunningIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.runningByPlan))
	for _, id := range m.runningByPlan {
		ids = append(ids, id)
	}
	return ids, nil
}
