// Package executors implements the Node Executors (component C): one
// per node kind, each consuming typed inputs and producing typed outputs
// plus context updates under the common contract of §4.3.
package executors

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// Inputs holds a node's resolved input ports, keyed by port name, as
// resolved by the interpreter from portData via portMappings.
type Inputs map[string]any

// QuestionContextKey is the reserved ContextUpdates key an executor sets to
// request suspension. The value must be a map[string]any with "questionId"
// and "prompt" string entries.
const QuestionContextKey = "__question__"

// ExecutionContext is the read-only view an executor receives of the
// execution it runs within: the flat, user-authored context map (never the
// strict portData map — see DESIGN.md's portData-vs-context note) and an
// event sink for streaming activity events.
type ExecutionContext struct {
	ExecutionID string
	NodeID      string
	Context     map[string]any
	Emit        func(eventType string, payload map[string]any)
}

// emit is a nil-safe convenience so executors never need to check Emit.
func (ec ExecutionContext) emit(eventType string, payload map[string]any) {
	if ec.Emit != nil {
		ec.Emit(eventType, payload)
	}
}

// Result is what an executor returns on success (§4.3's common contract).
type Result struct {
	// Outputs is written to portData[nodeId] by the interpreter, keyed by
	// declared output port name.
	Outputs map[string]any

	// ContextUpdates is merged into the execution's flat context. An executor
	// that needs to suspend the run for external input (a question-driven
	// node, §3's currentTopicIndex/answers/skippedQuestions fields) sets
	// QuestionContextKey instead of merging the question into context
	// directly; the interpreter lifts it into ExecutionState.PendingQuestion
	// and transitions to waiting_user rather than resolving a transition. No
	// shipped executor kind raises this today.
	ContextUpdates map[string]any

	// NextSelector optionally overrides the node's configured/adjacency
	// transition with a concrete target node id or graph.End. Empty defers
	// entirely to the plan's transition policy; no shipped executor kind
	// sets it today, but the contract reserves the capability.
	NextSelector string
}

// Executor is the common interface every node kind implements.
type Executor interface {
	Kind() registry.NodeKind
	Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error)
}

// Registry maps a node kind to its Executor, used by the interpreter to
// dispatch step() calls.
type Registry struct {
	byKind map[registry.NodeKind]Executor
}

// NewRegistry builds an executor Registry from the given executors, indexed
// by their own Kind().
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{byKind: make(map[registry.NodeKind]Executor, len(executors))}
	for _, e := range executors {
		r.byKind[e.Kind()] = e
	}
	return r
}

// For returns the executor registered for kind, or (nil, false).
func (r *Registry) For(kind registry.NodeKind) (Executor, bool) {
	e, ok := r.byKind[kind]
	return e, ok
}
