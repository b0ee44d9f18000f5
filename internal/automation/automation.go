// Package automation implements the automation router (component F): it
// matches an issue's status transition against configured statusEnter
// automations, enforces the at-most-one-active-execution-per-issue
// invariant via store.LockStore, dispatches the matched workflow, and on
// completion resolves the issue's next status by evaluating the
// automation's transitions against the execution's outcome (§4.6).
package automation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// IssueEvent is an issue's observed status transition, the trigger for
// statusEnter automations (§4.6 step 1).
type IssueEvent struct {
	Project        string
	IssueID        string
	PreviousStatus string
	NewStatus      string
}

// IssueMeta carries the issue fields used to seed a triggered workflow's
// initial context (§4.6 step 3).
type IssueMeta struct {
	Owner     string   `json:"owner"`
	Repo      string   `json:"repo"`
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// StatusTracker writes the resolved next status back to the external issue
// tracker once an automation's transitions have been evaluated (§4.6
// step 5). It is deliberately as narrow as executors.ProjectTracker: the
// router never needs more than this one call.
type StatusTracker interface {
	SetIssueStatus(ctx context.Context, project, issueID, status string) error
}

// Dispatcher narrows dispatcher.Dispatcher to the single call the router
// needs, so it can be faked in tests without pulling in the container
// platform.
type Dispatcher interface {
	Dispatch(ctx context.Context, wf *graph.Workflow, plan *graph.Plan, initialContext map[string]any) (string, error)
}

// Router is component F.
type Router struct {
	automations store.AutomationStore
	locks       store.LockStore
	workflows   store.WorkflowStore
	reg         *registry.Registry
	dispatch    Dispatcher
	interp      *interpreter.Interpreter
	sandbox     *sandbox.Sandbox
	tracker     StatusTracker
	logger      telemetry.Logger

	mu      sync.Mutex
	pending map[string]pendingExecution
	sub     hooks.Subscription
}

type pendingExecution struct {
	project    string
	issueID    string
	automation store.Automation
}

// New constructs a Router and subscribes it to bus so it can resolve an
// automation's transitions once its dispatched execution reaches a
// terminal state.
func New(automations store.AutomationStore, locks store.LockStore, workflows store.WorkflowStore, reg *registry.Registry, dispatch Dispatcher, interp *interpreter.Interpreter, sb *sandbox.Sandbox, tracker StatusTracker, bus hooks.Bus, logger telemetry.Logger) (*Router, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	r := &Router{
		automations: automations,
		locks:       locks,
		workflows:   workflows,
		reg:         reg,
		dispatch:    dispatch,
		interp:      interp,
		sandbox:     sb,
		tracker:     tracker,
		logger:      logger,
		pending:     make(map[string]pendingExecution),
	}
	sub, err := bus.Register(hooks.SubscriberFunc(r.handleEvent))
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

// Close unregisters the router from the bus.
func (r *Router) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Close()
}

// HandleStatusChange matches event against enabled statusEnter automations
// for its project, triggering every match in priority order. An automation
// suppressed by the per-issue lock is skipped rather than treated as an
// error (§4.6 step 2, §5's AutomationSuppressed event), and its
// triggering continues for the remaining matches.
func (r *Router) HandleStatusChange(ctx context.Context, event IssueEvent, meta IssueMeta) ([]string, error) {
	matches, err := r.automations.MatchingStatusEnter(ctx, event.Project, event.NewStatus)
	if err != nil {
		return nil, err
	}

	var executionIDs []string
	for _, a := range matches {
		executionID, err := r.trigger(ctx, a, event.Project, event.IssueID, meta)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindConflict {
				r.logger.Info(ctx, "automation suppressed: issue already has an active execution",
					"automationId", a.ID, "project", event.Project, "issueId", event.IssueID)
				continue
			}
			return executionIDs, err
		}
		executionIDs = append(executionIDs, executionID)
	}
	return executionIDs, nil
}

// ManualTrigger fires a manual-kind automation directly against issueID,
// bypassing status matching (§4.6's manual trigger path, §6's manual
// trigger endpoint).
func (r *Router) ManualTrigger(ctx context.Context, automationID, project, issueID string, meta IssueMeta) (string, error) {
	a, ok, err := r.automations.Get(ctx, automationID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.Errorf(apperrors.KindNotFound, "automation.ManualTrigger", "automation %q not found", automationID)
	}
	if a.TriggerKind != "manual" {
		return "", apperrors.Errorf(apperrors.KindValidation, "automation.ManualTrigger", "automation %q is not manually triggerable", automationID)
	}
	return r.trigger(ctx, *a, project, issueID, meta)
}

// trigger acquires the per-issue lock, compiles the automation's workflow
// against the issue's initial context, and dispatches it, registering the
// resulting execution id so handleEvent can resolve it on completion.
func (r *Router) trigger(ctx context.Context, a store.Automation, project, issueID string, meta IssueMeta) (string, error) {
	acquired, err := r.locks.Acquire(ctx, project, issueID, uuid.NewString())
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", apperrors.Errorf(apperrors.KindConflict, "automation.trigger", "issue %q already has an active automation execution", issueID)
	}

	executionID, err := r.dispatchWorkflow(ctx, a, meta)
	if err != nil {
		_ = r.locks.Release(ctx, project, issueID)
		return "", err
	}

	r.mu.Lock()
	r.pending[executionID] = pendingExecution{project: project, issueID: issueID, automation: a}
	r.mu.Unlock()

	return executionID, nil
}

func (r *Router) dispatchWorkflow(ctx context.Context, a store.Automation, meta IssueMeta) (string, error) {
	wf, ok, err := r.workflows.Get(ctx, a.WorkflowID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.Errorf(apperrors.KindNotFound, "automation.dispatchWorkflow", "workflow %q not found", a.WorkflowID)
	}

	initialContext := buildInitialContext(meta)
	plan, issues := graph.Compile(r.reg, *wf, initialContext, r.logger)
	if len(issues) > 0 {
		return "", apperrors.Errorf(apperrors.KindValidation, "automation.dispatchWorkflow", "workflow %q failed to compile: %v", wf.ID, issues)
	}

	return r.dispatch.Dispatch(ctx, wf, plan, initialContext)
}

func buildInitialContext(meta IssueMeta) map[string]any {
	return map[string]any{
		"issue": map[string]any{
			"owner":     meta.Owner,
			"repo":      meta.Repo,
			"number":    meta.Number,
			"title":     meta.Title,
			"body":      meta.Body,
			"labels":    meta.Labels,
			"assignees": meta.Assignees,
		},
	}
}

// handleEvent watches the bus for a pending execution's terminal event and
// resolves its automation's transitions once it arrives.
func (r *Router) handleEvent(ctx context.Context, event hooks.Event) error {
	if event.Type != "workflow:complete" && event.Type != "workflow:error" {
		return nil
	}

	r.mu.Lock()
	pending, ok := r.pending[event.ExecutionID]
	if ok {
		delete(r.pending, event.ExecutionID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	success := event.Type == "workflow:complete"
	go r.resolve(pending, event.ExecutionID, success)
	return nil
}

// resolve evaluates pending.automation's transitions in priority order
// against the finished execution's outcome and writes the first match's
// nextStatus back through the tracker (§4.6 steps 4-5), then releases the
// issue's lock regardless of outcome.
func (r *Router) resolve(pending pendingExecution, executionID string, success bool) {
	ctx := context.Background()
	defer func() { _ = r.locks.Release(ctx, pending.project, pending.issueID) }()

	state, ok, err := r.interp.GetState(ctx, executionID)
	if err != nil || !ok {
		r.logger.Warn(ctx, "automation: could not load finished execution state", "executionId", executionID)
		return
	}

	transitions := append([]store.AutomationTransition(nil), pending.automation.Transitions...)
	sortTransitionsByPriority(transitions)

	for _, tr := range transitions {
		if !r.transitionMatches(ctx, tr, state, success) {
			continue
		}
		if r.tracker == nil {
			return
		}
		if err := r.tracker.SetIssueStatus(ctx, pending.project, pending.issueID, tr.NextStatus); err != nil {
			r.logger.Error(ctx, "automation: failed to write back issue status",
				"project", pending.project, "issueId", pending.issueID, "error", err.Error())
		}
		return
	}
}

func (r *Router) transitionMatches(ctx context.Context, tr store.AutomationTransition, state *interpreter.ExecutionState, success bool) bool {
	switch tr.Condition {
	case "success":
		return success
	case "failure":
		return !success
	case "custom":
		return r.evalCustom(ctx, tr.CustomExpression, state)
	default:
		return false
	}
}

func (r *Router) evalCustom(ctx context.Context, expr string, state *interpreter.ExecutionState) bool {
	if expr == "" || r.sandbox == nil {
		return false
	}
	result, err := r.sandbox.RunScript(ctx, "automation.customTransition", "return ("+expr+")", map[string]any{
		"context":          state.Context,
		"status":           string(state.Status),
		"completionStatus": state.CompletionStatus,
		"lastError":        state.LastError,
	})
	if err != nil {
		r.logger.Warn(ctx, "automation: custom transition expression failed", "error", err.Error())
		return false
	}
	return sandbox.Truthy(result)
}

func sortTransitionsByPriority(ts []store.AutomationTransition) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].Priority < ts[j-1].Priority; j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}
