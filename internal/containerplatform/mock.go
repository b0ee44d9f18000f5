package containerplatform

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Mock is an in-memory Platform for dispatcher tests (S4's "container
// platform stubbed to return BUILDING indefinitely" scenario and friends).
type Mock struct {
	mu sync.Mutex

	// NextStatus, keyed by service id, is returned by DeploymentStatus. A
	// missing entry defaults to StatusBuilding, matching a platform stuck
	// mid-deployment.
	NextStatus map[string]DeploymentStatus

	Created []ServiceSpec
	Deleted []string
}

// NewMock constructs an empty Mock platform.
func NewMock() *Mock {
	return &Mock{NextStatus: make(map[string]DeploymentStatus)}
}

func (m *Mock) CreateService(ctx context.Context, spec ServiceSpec) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, spec)
	id := uuid.NewString()
	return Service{ID: id, Name: spec.Name}, nil
}

func (m *Mock) DeploymentStatus(ctx context.Context, serviceID string) (DeploymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.NextStatus[serviceID]; ok {
		return status, nil
	}
	return StatusBuilding, nil
}

func (m *Mock) DeleteService(ctx context.Context, serviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, serviceID)
	return nil
}

// SetStatus is a test helper to transition serviceID's next-polled status.
func (m *Mock) SetStatus(serviceID string, status DeploymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NextStatus[serviceID] = status
}

// WasDeleted reports whether DeleteService was called for serviceID,
// matching S4's "the container-delete call was invoked" assertion.
func (m *Mock) WasDeleted(serviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.Deleted {
		if id == serviceID {
			return true
		}
	}
	return false
}

var _ Platform = (*Mock)(nil)
