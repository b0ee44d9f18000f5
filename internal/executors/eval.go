package executors

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
)

// evalNode implements the Eval node kind: evaluates a user-supplied source
// string that must return an object merged into context (§4.3), in the same
// sandbox used for function transitions.
type evalNode struct {
	sandbox *sandbox.Sandbox
}

// NewEval builds the Eval executor.
func NewEval(sb *sandbox.Sandbox) Executor { return &evalNode{sandbox: sb} }

func (n *evalNode) Kind() registry.NodeKind { return registry.KindEval }

func (n *evalNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	source, _ := config["source"].(string)
	if source == "" {
		return Result{}, apperrors.New(apperrors.KindValidation, "eval", "missing source")
	}

	bindings := map[string]any{
		"context": ec.Context,
		"inputs":  map[string]any(inputs),
	}
	out, err := n.sandbox.RunScript(ctx, ec.NodeID, source, bindings)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindEvalError, "eval", err)
	}

	updates, ok := out.(map[string]any)
	if !ok {
		return Result{}, apperrors.New(apperrors.KindEvalError, "eval", "eval source must return an object")
	}
	return Result{ContextUpdates: updates}, nil
}
