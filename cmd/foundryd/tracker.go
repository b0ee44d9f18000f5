package main

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// loggingTracker satisfies both executors.ProjectTracker and
// automation.StatusTracker. A real adapter (GitHub Projects, Linear, Jira)
// is explicitly out of core scope per §1, same as internal/provider's LLM
// client: this logs the write-back that would otherwise cross the wire so
// the GitHub-Project node and the automation router's status resolution
// have something to call against in a default deployment.
type loggingTracker struct {
	logger telemetry.Logger
}

func newLoggingTracker(logger telemetry.Logger) *loggingTracker {
	return &loggingTracker{logger: logger}
}

func (t *loggingTracker) ApplyUpdates(ctx context.Context, project string, updates []executors.ProjectUpdate) ([]executors.ProjectItem, error) {
	items := make([]executors.ProjectItem, 0, len(updates))
	for _, u := range updates {
		t.logger.Info(ctx, "project update (no tracker configured)", "project", project, "itemId", u.ItemID, "fields", u.Fields)
		items = append(items, executors.ProjectItem{ItemID: u.ItemID, Fields: u.Fields})
	}
	return items, nil
}

func (t *loggingTracker) SetIssueStatus(ctx context.Context, project, issueID, status string) error {
	t.logger.Info(ctx, "issue status resolved (no tracker configured)", "project", project, "issueId", issueID, "status", status)
	return nil
}
