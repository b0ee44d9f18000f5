package executors

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// ProjectUpdate is one item update batched against the external
// project-tracking API.
type ProjectUpdate struct {
	ItemID string
	Fields map[string]any
}

// ProjectItem is the reconciled state of a tracked item after applying
// updates.
type ProjectItem struct {
	ItemID string
	Fields map[string]any
}

// ProjectTracker is the narrow interface wrapping the external
// project-tracking service (explicitly out of core scope per §1).
type ProjectTracker interface {
	ApplyUpdates(ctx context.Context, project string, updates []ProjectUpdate) ([]ProjectItem, error)
}

// githubProjectNode implements the GitHub-Project node kind: issues a batch
// of updates against the external tracker (§4.3).
type githubProjectNode struct {
	tracker ProjectTracker
}

// NewGitHubProject builds the GitHub-Project executor.
func NewGitHubProject(tracker ProjectTracker) Executor {
	return &githubProjectNode{tracker: tracker}
}

func (n *githubProjectNode) Kind() registry.NodeKind { return registry.KindGitHubProject }

func (n *githubProjectNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	project, _ := config["project"].(string)
	raw, _ := inputs["updates"].([]any)
	updates := make([]ProjectUpdate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		itemID, _ := m["itemId"].(string)
		fields, _ := m["fields"].(map[string]any)
		updates = append(updates, ProjectUpdate{ItemID: itemID, Fields: fields})
	}

	ec.emit("activity:github-project:start", map[string]any{"project": project, "updateCount": len(updates)})
	items, err := n.tracker.ApplyUpdates(ctx, project, updates)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindProjectApiError, "github-project", err)
	}

	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{"itemId": it.ItemID, "fields": it.Fields})
	}
	return Result{Outputs: map[string]any{"items": out}}, nil
}
