package executors

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
)

// agentNode implements the Agent node kind: invokes an external LLM agent
// with a context-templated prompt (§4.3).
type agentNode struct {
	client provider.Client
}

// NewAgent builds the Agent executor.
func NewAgent(client provider.Client) Executor { return &agentNode{client: client} }

func (n *agentNode) Kind() registry.NodeKind { return registry.KindAgent }

func (n *agentNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	promptTemplate, _ := config["prompt"].(string)
	prompt, err := sandbox.RenderTemplate(ec.NodeID, promptTemplate, ec.Context)
	if err != nil {
		return Result{}, err
	}

	req := provider.AgentRequest{Prompt: prompt}
	req.Role, _ = config["role"].(string)
	req.Model, _ = config["model"].(string)
	if maxTurns, ok := config["maxTurns"].(float64); ok {
		req.MaxTurns = int(maxTurns)
	}
	if temp, ok := config["temperature"].(float64); ok {
		req.Temperature = float32(temp)
	}
	req.Capabilities = stringSlice(config["capabilities"])
	req.MCPServers = stringSlice(config["mcpServers"])

	ec.emit("activity:agent:start", map[string]any{"role": req.Role, "model": req.Model})
	resp, err := n.client.RunAgent(ctx, req)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindProviderError, "agent", err)
	}
	ec.emit("activity:agent:complete", map[string]any{"usage": resp.Usage})

	return Result{Outputs: map[string]any{"response": resp.Response}}, nil
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
