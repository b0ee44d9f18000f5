package interpreter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// DefaultStaleThreshold is how long a running execution may go without
// activity before a sweep transitions it to failed(StaleExecution) (§4.4).
const DefaultStaleThreshold = 10 * time.Minute

// Interpreter runs compiled plans node by node, checkpointing after every
// step. One Interpreter instance may own many concurrently running
// executions; per §5 each individual execution id is single-writer, enforced
// by always loading-mutating-saving state under the execution's entry in
// locks (a per-id lock, not a single global lock, so unrelated executions never
// contend).
type Interpreter struct {
	store     Store
	bus       hooks.Bus
	executors *executors.Registry
	reg       *registry.Registry
	sandbox   *sandbox.Sandbox
	logger    telemetry.Logger

	staleThreshold time.Duration

	plansMu sync.RWMutex
	plans   map[string]*graph.Plan

	locksMu sync.Mutex
	locks   map[string]*executionLock
}

type executionLock struct {
	ch chan struct{}
}

// New constructs an Interpreter. logger may be nil (treated as a no-op).
func New(store Store, bus hooks.Bus, execRegistry *executors.Registry, reg *registry.Registry, sb *sandbox.Sandbox, logger telemetry.Logger) *Interpreter {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Interpreter{
		store:          store,
		bus:            bus,
		executors:      execRegistry,
		reg:            reg,
		sandbox:        sb,
		logger:         logger,
		staleThreshold: DefaultStaleThreshold,
		plans:          make(map[string]*graph.Plan),
		locks:          make(map[string]*executionLock),
	}
}

func (in *Interpreter) lockFor(executionID string) *executionLock {
	in.locksMu.Lock()
	defer in.locksMu.Unlock()
	l, ok := in.locks[executionID]
	if !ok {
		l = &executionLock{ch: make(chan struct{}, 1)}
		in.locks[executionID] = l
	}
	return l
}

func (in *Interpreter) setPlan(executionID string, plan *graph.Plan) {
	in.plansMu.Lock()
	in.plans[executionID] = plan
	in.plansMu.Unlock()
}

func (in *Interpreter) getPlan(executionID string) *graph.Plan {
	in.plansMu.RLock()
	defer in.plansMu.RUnlock()
	return in.plans[executionID]
}

func (l *executionLock) acquire() { l.ch <- struct{}{} }
func (l *executionLock) release() { <-l.ch }

// Start persists a brand-new execution in status=running, seeded from
// plan.InitialPortData, and returns its id (§4.4).
func (in *Interpreter) Start(ctx context.Context, plan *graph.Plan, initialContext map[string]any) (string, error) {
	if plan == nil {
		return "", apperrors.New(apperrors.KindValidation, "interpreter.Start", "plan is required")
	}

	now := time.Now()
	portData := make(map[string]map[string]any)
	for nodeID, data := range plan.InitialPortData {
		portData[nodeID] = cloneMap(data)
	}

	state := &ExecutionState{
		ID:               uuid.NewString(),
		WorkflowID:       plan.WorkflowID,
		ProjectID:        plan.ProjectID,
		Status:           StatusRunning,
		CurrentNodeID:    plan.TriggerID,
		PortData:         portData,
		Context:          cloneMap(initialContext),
		Answers:          make(map[string]any),
		SkippedQuestions: make(map[string]bool),
		StartedAt:        now,
		LastActivityAt:   now,
	}
	if state.Context == nil {
		state.Context = make(map[string]any)
	}

	if err := in.store.CreateRunning(ctx, state); err != nil {
		return "", err
	}
	in.setPlan(state.ID, plan)
	in.publish(ctx, state.ID, "workflow:start", map[string]any{"workflowId": plan.WorkflowID})
	return state.ID, nil
}

// Attach associates a compiled plan with an already-persisted execution id,
// used when a process restarts and recovers running executions from the
// store: the plan itself is not persisted per execution (only workflowId is),
// so the caller must recompile it from the stored workflow document and hand
// it back here before calling Step/Run again.
func (in *Interpreter) Attach(executionID string, plan *graph.Plan) {
	in.setPlan(executionID, plan)
}

// GetState returns a defensive copy of the execution's current state.
func (in *Interpreter) GetState(ctx context.Context, executionID string) (*ExecutionState, bool, error) {
	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return state.Clone(), true, nil
}

// Step advances the execution by exactly one real (non-virtual) node,
// resolving any number of virtual trigger/adjacency hops first. It reports
// done=true once the execution leaves status=running (completed, failed,
// waiting_user, or paused).
func (in *Interpreter) Step(ctx context.Context, executionID string) (done bool, err error) {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, apperrors.Errorf(apperrors.KindNotFound, "interpreter.Step", "execution %q not found", executionID)
	}
	if state.Status != StatusRunning {
		return true, nil
	}

	plan := in.getPlan(executionID)
	if plan == nil {
		return true, apperrors.Errorf(apperrors.KindInternalError, "interpreter.Step", "no compiled plan cached for execution %q", executionID)
	}

	if state.CancelRequested {
		return in.finishFailed(ctx, state, apperrors.New(apperrors.KindCancelled, "interpreter.Step", "execution cancelled"))
	}
	if !state.Deadline.IsZero() && time.Now().After(state.Deadline) {
		return in.finishFailed(ctx, state, apperrors.New(apperrors.KindWorkflowTimeout, "interpreter.Step", "workflow deadline exceeded"))
	}

	nodeID, ended, endNodeID, completionStatus, stepErr := in.advanceToExecutable(ctx, plan, state)
	if stepErr != nil {
		return in.finishFailed(ctx, state, stepErr)
	}
	if ended {
		state.CompletionStatus = completionStatus
		_ = endNodeID
		return in.finishCompleted(ctx, state)
	}

	desc := executableByID(plan, nodeID)
	inputs, err := resolveInputs(in.reg, plan, desc, state.PortData)
	if err != nil {
		return in.finishFailed(ctx, state, err)
	}

	entry := StepHistoryEntry{
		ID:        uuid.NewString(),
		NodeID:    desc.ID,
		Kind:      string(desc.Kind),
		StartedAt: time.Now(),
		Input:     map[string]any(inputs),
	}
	in.publish(ctx, executionID, "step:start", map[string]any{"nodeId": desc.ID, "kind": string(desc.Kind)})

	executor, ok := in.executors.For(desc.Kind)
	if !ok {
		return in.finishFailed(ctx, state, apperrors.Errorf(apperrors.KindInternalError, desc.ID, "no executor registered for kind %q", desc.Kind))
	}

	ec := executors.ExecutionContext{
		ExecutionID: executionID,
		NodeID:      desc.ID,
		Context:     state.Context,
		Emit: func(eventType string, payload map[string]any) {
			in.publish(ctx, executionID, eventType, payload)
		},
	}

	result, execErr := executor.Execute(ctx, desc.Config, inputs, ec)
	entry.CompletedAt = time.Now()
	entry.Duration = entry.CompletedAt.Sub(entry.StartedAt)

	if execErr != nil {
		entry.Status = "failed"
		entry.Error = execErr.Error()
		state.StepHistory = append(state.StepHistory, entry)
		in.publish(ctx, executionID, "step:error", map[string]any{"nodeId": desc.ID, "error": execErr.Error()})
		return in.finishFailed(ctx, state, execErr)
	}

	entry.Status = "completed"
	entry.Output = result.Outputs
	state.StepHistory = append(state.StepHistory, entry)

	if question, ok := extractQuestion(result.ContextUpdates); ok {
		state.PendingQuestion = question
		state.Status = StatusWaitingUser
		state.LastActivityAt = time.Now()
		if err := in.store.Save(ctx, state); err != nil {
			return true, err
		}
		in.publish(ctx, executionID, "workflow:pause", map[string]any{"reason": "waiting_user", "questionId": question.QuestionID})
		return true, nil
	}

	if state.PortData[desc.ID] == nil {
		state.PortData[desc.ID] = make(map[string]any)
	}
	for k, v := range result.Outputs {
		state.PortData[desc.ID][k] = v
	}
	mergeContext(state.Context, result.ContextUpdates)

	in.publish(ctx, executionID, "step:complete", map[string]any{"nodeId": desc.ID, "durationMs": entry.Duration.Milliseconds()})

	next := desc.ID
	if result.NextSelector != "" {
		next = result.NextSelector
	}
	nextID, nextEnded, nextEndID, nextCompletion := resolveNext(ctx, plan, next, state.Context, in.sandbox, in.logger)
	if nextEnded {
		state.CompletionStatus = nextCompletion
		state.CurrentNodeID = nextEndID
		_ = nextID
		return in.finishCompleted(ctx, state)
	}
	state.CurrentNodeID = nextID
	state.LastActivityAt = time.Now()

	if err := in.store.Save(ctx, state); err != nil {
		return true, err
	}
	return false, nil
}

// advanceToExecutable resolves transitions starting at state.CurrentNodeID
// (which may be the virtual trigger, or the result of a prior step) until it
// lands on a real executable node or END.
func (in *Interpreter) advanceToExecutable(ctx context.Context, plan *graph.Plan, state *ExecutionState) (nodeID string, ended bool, endNodeID, completionStatus string, err error) {
	current := state.CurrentNodeID
	if current == "" {
		current = plan.TriggerID
	}

	if current == plan.TriggerID {
		nextID, nextEnded, nextEndID, nextCompletion := resolveNext(ctx, plan, current, state.Context, in.sandbox, in.logger)
		if nextEnded {
			return "", true, nextEndID, nextCompletion, nil
		}
		current = nextID
	}

	if executableByID(plan, current).ID == "" {
		return "", false, "", "", apperrors.Errorf(apperrors.KindInternalError, "interpreter", "current node %q is not an executable node in this plan", current)
	}
	return current, false, "", "", nil
}

func executableByID(plan *graph.Plan, nodeID string) graph.NodeDescriptor {
	for _, n := range plan.Executable {
		if n.ID == nodeID {
			return n
		}
	}
	return graph.NodeDescriptor{}
}

func extractQuestion(updates map[string]any) (*PendingQuestion, bool) {
	raw, ok := updates[executors.QuestionContextKey]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	questionID, _ := m["questionId"].(string)
	prompt, _ := m["prompt"].(string)
	if questionID == "" {
		return nil, false
	}
	return &PendingQuestion{QuestionID: questionID, Prompt: prompt}, true
}

func mergeContext(context map[string]any, updates map[string]any) {
	for k, v := range updates {
		if k == executors.QuestionContextKey {
			continue
		}
		context[k] = v
	}
}

func (in *Interpreter) finishCompleted(ctx context.Context, state *ExecutionState) (bool, error) {
	state.Status = StatusCompleted
	now := time.Now()
	state.CompletedAt = &now
	state.LastActivityAt = now
	if err := in.store.Save(ctx, state); err != nil {
		return true, err
	}
	in.publish(ctx, state.ID, "workflow:complete", map[string]any{"completionStatus": state.CompletionStatus})
	return true, nil
}

func (in *Interpreter) finishFailed(ctx context.Context, state *ExecutionState, cause error) (bool, error) {
	state.Status = StatusFailed
	state.LastError = cause.Error()
	now := time.Now()
	state.LastActivityAt = now
	if err := in.store.Save(ctx, state); err != nil {
		return true, err
	}
	in.publish(ctx, state.ID, "workflow:error", map[string]any{"error": cause.Error(), "kind": string(apperrors.KindOf(cause))})
	return true, cause
}

// Run repeatedly steps the execution until it reaches a non-running status
// or an error occurs.
func (in *Interpreter) Run(ctx context.Context, executionID string) error {
	for {
		done, err := in.Step(ctx, executionID)
		if done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// SubmitAnswer injects an external answer into a waiting_user execution and
// resumes it to running (§4.4).
func (in *Interpreter) SubmitAnswer(ctx context.Context, executionID, questionID string, value any) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.SubmitAnswer", "execution %q not found", executionID)
	}
	if state.Status != StatusWaitingUser || state.PendingQuestion == nil || state.PendingQuestion.QuestionID != questionID {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.SubmitAnswer", "execution %q is not waiting on question %q", executionID, questionID)
	}

	state.Answers[questionID] = value
	state.Context[questionID] = value
	nodeID := state.PendingQuestion.NodeID
	state.PendingQuestion = nil
	if nodeID != "" {
		state.CurrentNodeID = nodeID
	}
	state.Status = StatusRunning
	state.LastActivityAt = time.Now()
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "workflow:resume", map[string]any{"reason": "answer_submitted", "questionId": questionID})
	return nil
}

// SkipQuestion marks a pending question skipped and resumes the execution.
func (in *Interpreter) SkipQuestion(ctx context.Context, executionID, questionID string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.SkipQuestion", "execution %q not found", executionID)
	}
	if state.Status != StatusWaitingUser || state.PendingQuestion == nil || state.PendingQuestion.QuestionID != questionID {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.SkipQuestion", "execution %q is not waiting on question %q", executionID, questionID)
	}

	state.SkippedQuestions[questionID] = true
	nodeID := state.PendingQuestion.NodeID
	state.PendingQuestion = nil
	if nodeID != "" {
		state.CurrentNodeID = nodeID
	}
	state.Status = StatusRunning
	state.LastActivityAt = time.Now()
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "workflow:resume", map[string]any{"reason": "question_skipped", "questionId": questionID})
	return nil
}

// RetryStep resets currentNodeId to nodeID and resumes a failed execution,
// incrementing retryCount (§4.4).
func (in *Interpreter) RetryStep(ctx context.Context, executionID, nodeID string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.RetryStep", "execution %q not found", executionID)
	}
	if state.Status != StatusFailed {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.RetryStep", "execution %q is not failed", executionID)
	}

	state.CurrentNodeID = nodeID
	state.Status = StatusRunning
	state.LastError = ""
	state.CancelRequested = false
	state.RetryCount++
	state.LastActivityAt = time.Now()
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "workflow:resume", map[string]any{"reason": "retry", "nodeId": nodeID, "retryCount": state.RetryCount})
	return nil
}

// Pause transitions a running execution to paused.
func (in *Interpreter) Pause(ctx context.Context, executionID string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.Pause", "execution %q not found", executionID)
	}
	if state.Status != StatusRunning {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.Pause", "execution %q is not running", executionID)
	}

	now := time.Now()
	state.Status = StatusPaused
	state.PausedAt = &now
	state.LastActivityAt = now
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "workflow:pause", map[string]any{"reason": "external"})
	return nil
}

// Resume transitions a paused execution back to running.
func (in *Interpreter) Resume(ctx context.Context, executionID string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.Resume", "execution %q not found", executionID)
	}
	if state.Status != StatusPaused {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.Resume", "execution %q is not paused", executionID)
	}

	state.Status = StatusRunning
	state.PausedAt = nil
	state.LastActivityAt = time.Now()
	if err := in.store.Save(ctx, state); err != nil {
		return err
	}
	in.publish(ctx, executionID, "workflow:resume", map[string]any{"reason": "external"})
	return nil
}

// Cancel sets the internal cancelled-intent flag (§5); the in-flight
// executor call, if any, is not interrupted, but the next Step call observes
// the flag and fails the execution with Cancelled instead of running further.
func (in *Interpreter) Cancel(ctx context.Context, executionID string) error {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "interpreter.Cancel", "execution %q not found", executionID)
	}
	if state.Status == StatusCompleted || state.Status == StatusFailed {
		return apperrors.Errorf(apperrors.KindConflict, "interpreter.Cancel", "execution %q is already terminal", executionID)
	}

	state.CancelRequested = true
	state.LastActivityAt = time.Now()
	return in.store.Save(ctx, state)
}

// SweepStale transitions any running execution whose lastActivityAt exceeds
// the staleness threshold to failed(StaleExecution). It is meant to be
// invoked periodically by the process (e.g. cmd/foundryd's crash-recovery
// sweep) against every running execution id it is told about.
func (in *Interpreter) SweepStale(ctx context.Context, executionID string) (bool, error) {
	lock := in.lockFor(executionID)
	lock.acquire()
	defer lock.release()

	state, ok, err := in.store.Get(ctx, executionID)
	if err != nil || !ok {
		return false, err
	}
	if state.Status != StatusRunning {
		return false, nil
	}
	if time.Since(state.LastActivityAt) < in.staleThreshold {
		return false, nil
	}

	state.Status = StatusFailed
	state.LastError = fmt.Sprintf("no activity since %s", state.LastActivityAt.Format(time.RFC3339))
	if err := in.store.Save(ctx, state); err != nil {
		return false, err
	}
	in.publish(ctx, executionID, "workflow:error", map[string]any{"error": "stale execution", "kind": string(apperrors.KindStaleExecution)})
	return true, nil
}

func (in *Interpreter) publish(ctx context.Context, executionID, eventType string, payload map[string]any) {
	if in.bus == nil {
		return
	}
	_, _ = in.bus.Publish(ctx, hooks.Event{ExecutionID: executionID, Type: eventType, Payload: payload})
}
