package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
)

// MemoryWorkflows is an in-memory WorkflowStore.
type MemoryWorkflows struct {
	mu        sync.Mutex
	workflows map[string]graph.Workflow
}

// NewMemoryWorkflows constructs an empty MemoryWorkflows store.
func NewMemoryWorkflows() *MemoryWorkflows {
	return &MemoryWorkflows{workflows: make(map[string]graph.Workflow)}
}

func (m *MemoryWorkflows) List(ctx context.Context, projectID string) ([]graph.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []graph.Workflow
	for _, wf := range m.workflows {
		if projectID == "" || wf.ProjectID == projectID {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (m *MemoryWorkflows) Get(ctx context.Context, id string) (*graph.Workflow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, false, nil
	}
	cp := wf
	return &cp, true, nil
}

func (m *MemoryWorkflows) Create(ctx context.Context, wf graph.Workflow) (*graph.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if _, exists := m.workflows[wf.ID]; exists {
		return nil, apperrors.Errorf(apperrors.KindDuplicateID, "store.Create", "workflow %q already exists", wf.ID)
	}
	wf.UpdatedAt = time.Now()
	m.workflows[wf.ID] = wf
	cp := wf
	return &cp, nil
}

func (m *MemoryWorkflows) Update(ctx context.Context, wf graph.Workflow) (*graph.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[wf.ID]; !exists {
		return nil, apperrors.Errorf(apperrors.KindNotFound, "store.Update", "workflow %q not found", wf.ID)
	}
	wf.UpdatedAt = time.Now()
	m.workflows[wf.ID] = wf
	cp := wf
	return &cp, nil
}

func (m *MemoryWorkflows) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[id]; !exists {
		return apperrors.Errorf(apperrors.KindNotFound, "store.Delete", "workflow %q not found", id)
	}
	delete(m.workflows, id)
	return nil
}

func (m *MemoryWorkflows) Duplicate(ctx context.Context, id, newName string) (*graph.Workflow, error) {
	m.mu.Lock()
	original, exists := m.workflows[id]
	m.mu.Unlock()
	if !exists {
		return nil, apperrors.Errorf(apperrors.KindNotFound, "store.Duplicate", "workflow %q not found", id)
	}

	cp := original
	cp.ID = uuid.NewString()
	cp.Name = newName
	return m.Create(ctx, cp)
}
