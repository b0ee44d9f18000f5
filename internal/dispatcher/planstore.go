package dispatcher

import (
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/foundry-sub005/internal/graph"
)

// PlanStore materialises a compiled Plan somewhere a remote container can
// fetch it from by reference (§4.5 step 2: "The plan is materialised and
// persisted at planRef"). The in-memory implementation is sufficient for a
// single-process deployment and for tests; a production deployment would
// back this with the same document store as internal/store, keyed by a
// generated ref.
type PlanStore interface {
	Put(plan *graph.Plan) string
	Get(ref string) (*graph.Plan, bool)
}

// MemoryPlanStore is an in-memory PlanStore.
type MemoryPlanStore struct {
	mu    sync.Mutex
	byRef map[string]*graph.Plan
}

// NewMemoryPlanStore constructs an empty MemoryPlanStore.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{byRef: make(map[string]*graph.Plan)}
}

func (s *MemoryPlanStore) Put(plan *graph.Plan) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := uuid.NewString()
	s.byRef[ref] = plan
	return ref
}

func (s *MemoryPlanStore) Get(ref string) (*graph.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.byRef[ref]
	return plan, ok
}
