// Package store implements the persistence layer backing the interpreter,
// the HTTP surface's workflow CRUD, and the automation router's per-issue
// locking: narrow interfaces per aggregate (WorkflowStore, AutomationStore,
// LockStore) and an in-memory implementation of each, grounded on the
// teacher-adjacent rakunlabs-at's interface-per-aggregate store package
// layout. A durable backing store (Postgres, or github.com/redis/go-redis/v9
// for LockStore across replicas, per SPEC_FULL.md's horizontal-scaling
// note) satisfies the same interfaces without touching any caller.
package store

import (
	"context"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/graph"
)

// Automation is the persisted trigger-to-workflow binding (§3).
type Automation struct {
	ID            string                  `json:"id"`
	ProjectID     string                  `json:"projectId"`
	Name          string                  `json:"name"`
	TriggerKind   string                  `json:"triggerKind"` // "statusEnter" | "manual"
	TriggerStatus string                  `json:"triggerStatus,omitempty"`
	ButtonLabel   string                  `json:"buttonLabel,omitempty"`
	WorkflowID    string                  `json:"workflowId"`
	Enabled       bool                    `json:"enabled"`
	Priority      int                     `json:"priority"`
	Transitions   []AutomationTransition  `json:"transitions,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// AutomationTransition is one completion-status rule on an Automation (§3).
type AutomationTransition struct {
	ID               string `json:"id"`
	Condition        string `json:"condition"` // "success" | "failure" | "custom"
	CustomExpression string `json:"customExpression,omitempty"`
	NextStatus       string `json:"nextStatus"`
	Priority         int    `json:"priority"`
}

// WorkflowStore persists Workflow documents (§6's CRUD surface).
type WorkflowStore interface {
	List(ctx context.Context, projectID string) ([]graph.Workflow, error)
	Get(ctx context.Context, id string) (*graph.Workflow, bool, error)
	Create(ctx context.Context, wf graph.Workflow) (*graph.Workflow, error)
	Update(ctx context.Context, wf graph.Workflow) (*graph.Workflow, error)
	Delete(ctx context.Context, id string) error
	Duplicate(ctx context.Context, id, newName string) (*graph.Workflow, error)
}

// AutomationStore persists Automation records.
type AutomationStore interface {
	List(ctx context.Context, projectID string) ([]Automation, error)
	Get(ctx context.Context, id string) (*Automation, bool, error)
	Create(ctx context.Context, a Automation) (*Automation, error)
	Update(ctx context.Context, a Automation) (*Automation, error)
	Delete(ctx context.Context, id string) error
	// MatchingStatusEnter returns enabled statusEnter automations for
	// (projectID, status), ordered by priority ascending (§4.6 step 1).
	MatchingStatusEnter(ctx context.Context, projectID, status string) ([]Automation, error)
}

// LockStore manages the per-issue automation lock table (§4.6 step 2, §5).
type LockStore interface {
	// Acquire inserts a lock row for (projectID, issueID), returning
	// (false, nil) on conflict rather than an error, matching the router's
	// "skip and emit AutomationSuppressed" policy.
	Acquire(ctx context.Context, projectID, issueID, executionID string) (bool, error)
	Release(ctx context.Context, projectID, issueID string) error
	// ReclaimExpired releases any lock older than ttl, returning how many
	// were reclaimed (the TTL reclamation sweep from §5).
	ReclaimExpired(ctx context.Context, ttl time.Duration) (int, error)
}
