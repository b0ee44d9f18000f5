package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// MemoryAutomations is an in-memory AutomationStore and LockStore, sharing a
// single mutex since the lock table and automation table are both small and
// accessed together by the router.
type MemoryAutomations struct {
	mu          sync.Mutex
	automations map[string]Automation
	locks       map[string]lockRow
}

type lockRow struct {
	executionID string
	acquiredAt  time.Time
}

// NewMemoryAutomations constructs an empty MemoryAutomations store.
func NewMemoryAutomations() *MemoryAutomations {
	return &MemoryAutomations{
		automations: make(map[string]Automation),
		locks:       make(map[string]lockRow),
	}
}

func (m *MemoryAutomations) List(ctx context.Context, projectID string) ([]Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Automation
	for _, a := range m.automations {
		if projectID == "" || a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryAutomations) Get(ctx context.Context, id string) (*Automation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.automations[id]
	if !ok {
		return nil, false, nil
	}
	cp := a
	return &cp, true, nil
}

func (m *MemoryAutomations) Create(ctx context.Context, a Automation) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.WorkflowID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "store.Create", "workflowId is required")
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.automations[a.ID] = a
	cp := a
	return &cp, nil
}

func (m *MemoryAutomations) Update(ctx context.Context, a Automation) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.automations[a.ID]
	if !exists {
		return nil, apperrors.Errorf(apperrors.KindNotFound, "store.Update", "automation %q not found", a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	m.automations[a.ID] = a
	cp := a
	return &cp, nil
}

func (m *MemoryAutomations) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.automations[id]; !exists {
		return apperrors.Errorf(apperrors.KindNotFound, "store.Delete", "automation %q not found", id)
	}
	delete(m.automations, id)
	return nil
}

// MatchingStatusEnter returns enabled statusEnter automations ordered by
// priority ascending (§4.6 step 1).
func (m *MemoryAutomations) MatchingStatusEnter(ctx context.Context, projectID, status string) ([]Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Automation
	for _, a := range m.automations {
		if a.ProjectID == projectID && a.Enabled && a.TriggerKind == "statusEnter" && a.TriggerStatus == status {
			out = append(out, a)
		}
	}
	sortAutomationsByPriority(out)
	return out, nil
}

func sortAutomationsByPriority(as []Automation) {
	for i := 1; i < len(as); i++ {
		for j := i; j > 0 && as[j].Priority < as[j-1].Priority; j-- {
			as[j], as[j-1] = as[j-1], as[j]
		}
	}
}

// Acquire implements LockStore: it inserts a lock row for (projectID,
// issueID), returning (false, nil) on conflict (§4.6 step 2).
func (m *MemoryAutomations) Acquire(ctx context.Context, projectID, issueID, executionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := projectID + "|" + issueID
	if _, exists := m.locks[key]; exists {
		return false, nil
	}
	m.locks[key] = lockRow{executionID: executionID, acquiredAt: time.Now()}
	return true, nil
}

func (m *MemoryAutomations) Release(ctx context.Context, projectID, issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, projectID+"|"+issueID)
	return nil
}

// ReclaimExpired releases any lock older than ttl (§5's TTL reclamation sweep).
func (m *MemoryAutomations) ReclaimExpired(ctx context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := time.Now()
	for key, row := range m.locks {
		if now.Sub(row.acquiredAt) >= ttl {
			delete(m.locks, key)
			n++
		}
	}
	return n, nil
}
