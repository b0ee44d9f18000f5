package executors

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
)

// dynamicAgentNode implements Dynamic-Agent: like Agent, but the prompt (and
// optionally model) are produced by evaluating expression strings against
// context before delegating (§4.3).
type dynamicAgentNode struct {
	client  provider.Client
	sandbox *sandbox.Sandbox
}

// NewDynamicAgent builds the Dynamic-Agent executor.
func NewDynamicAgent(client provider.Client, sb *sandbox.Sandbox) Executor {
	return &dynamicAgentNode{client: client, sandbox: sb}
}

func (n *dynamicAgentNode) Kind() registry.NodeKind { return registry.KindDynamicAgent }

func (n *dynamicAgentNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	promptExpr, _ := config["promptExpression"].(string)
	prompt, err := evalExpressionToString(ctx, n.sandbox, ec.NodeID, promptExpr, ec.Context)
	if err != nil {
		return Result{}, err
	}

	model, _ := config["model"].(string)
	if modelExpr, ok := config["modelExpression"].(string); ok && modelExpr != "" {
		model, err = evalExpressionToString(ctx, n.sandbox, ec.NodeID, modelExpr, ec.Context)
		if err != nil {
			return Result{}, err
		}
	}

	req := provider.AgentRequest{Prompt: prompt, Model: model}
	req.Role, _ = config["role"].(string)

	ec.emit("activity:dynamic-agent:start", map[string]any{"model": model})
	resp, err := n.client.RunAgent(ctx, req)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindProviderError, "dynamic-agent", err)
	}
	return Result{Outputs: map[string]any{"response": resp.Response}}, nil
}

// dynamicCommandNode implements Dynamic-Command: like Command, but the
// shell command string is produced by evaluating an expression against
// context before delegating (§4.3).
type dynamicCommandNode struct {
	runner  CommandRunner
	sandbox *sandbox.Sandbox
}

// NewDynamicCommand builds the Dynamic-Command executor.
func NewDynamicCommand(runner CommandRunner, sb *sandbox.Sandbox) Executor {
	return &dynamicCommandNode{runner: runner, sandbox: sb}
}

func (n *dynamicCommandNode) Kind() registry.NodeKind { return registry.KindDynamicCommand }

func (n *dynamicCommandNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	expr, _ := config["commandExpression"].(string)
	command, err := evalExpressionToString(ctx, n.sandbox, ec.NodeID, expr, ec.Context)
	if err != nil {
		return Result{}, err
	}
	if command == "" {
		if fromInput, ok := inputs["command"].(string); ok {
			command = fromInput
		}
	}
	if command == "" {
		return Result{}, apperrors.New(apperrors.KindValidation, "dynamic-command", "resolved command is empty")
	}

	ec.emit("activity:dynamic-command:start", map[string]any{"command": command})
	res, err := n.runner.Run(ctx, CommandRequest{Command: command})
	if err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]any{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}}, nil
}

// evalExpressionToString resolves a dynamic expression against context; a
// dotted path resolves via sandbox.ResolvePath first (the common case, and
// cheaper), falling back to a full sandboxed script evaluation for
// expressions with operators or literals.
func evalExpressionToString(ctx context.Context, sb *sandbox.Sandbox, op, expr string, ctxData map[string]any) (string, error) {
	if expr == "" {
		return "", nil
	}
	if v, ok, err := sandbox.ResolvePath(expr, ctxData); err == nil && ok {
		return sandbox.Stringify(v), nil
	}
	out, err := sb.RunScript(ctx, op, "return ("+expr+")", map[string]any{"context": ctxData})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindEvalError, op, err)
	}
	return sandbox.Stringify(out), nil
}
