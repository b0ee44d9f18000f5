package executors

import (
	"context"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// llmNode implements the LLM node kind: a direct single-shot provider call
// (§4.3).
type llmNode struct {
	client provider.Client
}

// NewLLM builds the LLM executor.
func NewLLM(client provider.Client) Executor { return &llmNode{client: client} }

func (n *llmNode) Kind() registry.NodeKind { return registry.KindLLM }

func (n *llmNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	req := llmRequestFromConfig(config)
	if req.UserPrompt == "" {
		if prompt, ok := inputs["prompt"].(string); ok {
			req.UserPrompt = prompt
		}
	}
	if req.UserPrompt == "" {
		return Result{}, apperrors.New(apperrors.KindPortUnresolved, "llm", "prompt input is unresolved")
	}

	ec.emit("activity:llm:start", map[string]any{"model": req.Model})
	resp, err := n.client.Complete(ctx, req)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindProviderError, "llm", err)
	}
	ec.emit("activity:llm:complete", map[string]any{"usage": resp.Usage})

	if req.OutputMode == "json" && req.OutputSchema != nil {
		if err := validateAgainstSchema(resp.JSON, req.OutputSchema); err != nil {
			return Result{}, apperrors.Wrap(apperrors.KindLLMValidationError, "llm", err)
		}
	}

	outputs := map[string]any{
		"text": resp.Text,
		"usage": map[string]any{
			"inputTokens":  resp.Usage.InputTokens,
			"outputTokens": resp.Usage.OutputTokens,
			"totalTokens":  resp.Usage.TotalTokens,
		},
	}
	if resp.JSON != nil {
		outputs["json"] = resp.JSON
	}
	return Result{Outputs: outputs}, nil
}

func llmRequestFromConfig(config map[string]any) provider.Request {
	req := provider.Request{OutputMode: "text"}
	req.Model, _ = config["model"].(string)
	req.SystemPrompt, _ = config["systemPrompt"].(string)
	req.UserPrompt, _ = config["userPrompt"].(string)
	if mode, ok := config["outputMode"].(string); ok && mode != "" {
		req.OutputMode = mode
	}
	if schema, ok := config["outputSchema"].(map[string]any); ok {
		req.OutputSchema = schema
	}
	if temp, ok := config["temperature"].(float64); ok {
		req.Temperature = float32(temp)
	}
	if maxTok, ok := config["maxTokens"].(float64); ok {
		req.MaxTokens = int(maxTok)
	}
	if web, ok := config["enableWebSearch"].(bool); ok {
		req.EnableWebSearch = web
	}
	req.ReasoningEffort, _ = config["reasoningEffort"].(string)
	req.APIKey, _ = config["apiKey"].(string)
	return req
}

// validateAgainstSchema compiles the node's configured output schema and
// validates the provider's decoded JSON response against it (§4.3: invalid
// JSON response under a configured schema is LLMValidationError). Compiles
// required/type/format/enum/nested-schema constraints, not just a required-keys
// check, via the same compile-then-validate shape as the teacher's
// validatePayloadJSONAgainstSchema.
func validateAgainstSchema(data map[string]any, schema map[string]any) error {
	if data == nil {
		return apperrors.New(apperrors.KindLLMValidationError, "llm", "response is not valid JSON")
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("output-schema.json", schema); err != nil {
		return apperrors.Wrap(apperrors.KindLLMValidationError, "llm", err)
	}
	compiled, err := c.Compile("output-schema.json")
	if err != nil {
		return apperrors.Wrap(apperrors.KindLLMValidationError, "llm", err)
	}

	if err := compiled.Validate(any(data)); err != nil {
		return apperrors.Wrap(apperrors.KindLLMValidationError, "llm", err)
	}
	return nil
}
