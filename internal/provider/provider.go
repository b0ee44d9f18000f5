// Package provider narrows the external LLM providers (explicitly out of
// core scope per §1) behind a small provider-agnostic client interface,
// grounded on the teacher's model.Client/Request/Response/TokenUsage shape
// (runtime/agent/model/model.go) but reduced to single-shot completion: the
// engine never needs tool calls, streaming, or multi-turn transcripts for a
// workflow's agent/llm node.
package provider

import "context"

// TokenUsage tracks token counts for a single completion call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request captures a single-shot completion call.
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Temperature     float32
	MaxTokens       int
	EnableWebSearch bool
	ReasoningEffort string
	APIKey          string

	// OutputMode selects whether Response.JSON or Response.Text is populated.
	OutputMode string // "text" | "json"
	// OutputSchema, when set and OutputMode=="json", is a JSON Schema the
	// response must validate against.
	OutputSchema map[string]any
}

// Response is the result of a completion call.
type Response struct {
	Text  string
	JSON  map[string]any
	Usage TokenUsage
	// StopReason records why generation stopped (provider-specific).
	StopReason string
}

// AgentRequest captures an "agent" invocation: a role-scoped prompt with
// optional capability and MCP wiring, distinct from a direct LLM call in
// that the provider may itself orchestrate tool use across turns.
type AgentRequest struct {
	Role         string
	Prompt       string
	Capabilities []string
	Model        string
	MaxTurns     int
	Temperature  float32
	MCPServers   []string
}

// AgentResponse is the result of an agent invocation: an opaque,
// JSON-compatible object per §4.3 ("a response port of type object").
type AgentResponse struct {
	Response map[string]any
	Usage    TokenUsage
}

// Client is the provider-agnostic client every LLM/Agent executor depends
// on. Concrete adapters (Anthropic, OpenAI, Bedrock, ...) live outside this
// module's core scope; tests and the default wiring use the Mock below.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	RunAgent(ctx context.Context, req AgentRequest) (AgentResponse, error)
}
