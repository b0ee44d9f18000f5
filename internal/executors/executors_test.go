package executors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
)

func testExecutionContext() ExecutionContext {
	return ExecutionContext{
		ExecutionID: "exec-1",
		NodeID:      "node-1",
		Context:     map[string]any{"prompt": "hi"},
	}
}

func TestLLMExecutorSuccess(t *testing.T) {
	client := &provider.Mock{CompleteFunc: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		require.Equal(t, "hi", req.UserPrompt)
		return provider.Response{Text: "hello"}, nil
	}}
	exec := NewLLM(client)
	res, err := exec.Execute(context.Background(), map[string]any{"userPrompt": "hi", "model": "gpt-4o"}, nil, testExecutionContext())
	require.NoError(t, err)
	require.Equal(t, "hello", res.Outputs["text"])
}

func TestLLMExecutorUnresolvedPrompt(t *testing.T) {
	client := &provider.Mock{}
	exec := NewLLM(client)
	_, err := exec.Execute(context.Background(), map[string]any{}, nil, testExecutionContext())
	require.Error(t, err)
	require.Equal(t, apperrors.KindPortUnresolved, apperrors.KindOf(err))
}

func TestLLMExecutorSchemaValidation(t *testing.T) {
	client := &provider.Mock{CompleteFunc: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{JSON: map[string]any{"text": "x"}}, nil
	}}
	exec := NewLLM(client)
	_, err := exec.Execute(context.Background(), map[string]any{
		"userPrompt": "x", "outputMode": "json",
		"outputSchema": map[string]any{"required": []any{"summary"}},
	}, nil, testExecutionContext())
	require.Error(t, err)
	require.Equal(t, apperrors.KindLLMValidationError, apperrors.KindOf(err))
}

func TestLLMExecutorSchemaValidationPassesWellFormedResponse(t *testing.T) {
	client := &provider.Mock{CompleteFunc: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{JSON: map[string]any{"summary": "ok"}}, nil
	}}
	exec := NewLLM(client)
	res, err := exec.Execute(context.Background(), map[string]any{
		"userPrompt": "x", "outputMode": "json",
		"outputSchema": map[string]any{"required": []any{"summary"}},
	}, nil, testExecutionContext())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"summary": "ok"}, res.Outputs["json"])
}

func TestLLMExecutorSchemaValidationRejectsWrongType(t *testing.T) {
	client := &provider.Mock{CompleteFunc: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{JSON: map[string]any{"count": "not-a-number"}}, nil
	}}
	exec := NewLLM(client)
	_, err := exec.Execute(context.Background(), map[string]any{
		"userPrompt": "x", "outputMode": "json",
		"outputSchema": map[string]any{
			"type":       "object",
			"required":   []any{"count"},
			"properties": map[string]any{"count": map[string]any{"type": "number"}},
		},
	}, nil, testExecutionContext())
	require.Error(t, err)
	require.Equal(t, apperrors.KindLLMValidationError, apperrors.KindOf(err))
}

func TestLLMExecutorProviderErrorWraps(t *testing.T) {
	client := &provider.Mock{CompleteFunc: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, context.DeadlineExceeded
	}}
	exec := NewLLM(client)
	_, err := exec.Execute(context.Background(), map[string]any{"userPrompt": "x"}, nil, testExecutionContext())
	require.Equal(t, apperrors.KindProviderError, apperrors.KindOf(err))
}

func TestAgentExecutorTemplatesPrompt(t *testing.T) {
	client := &provider.Mock{RunAgentFunc: func(ctx context.Context, req provider.AgentRequest) (provider.AgentResponse, error) {
		require.Equal(t, "say hi", req.Prompt)
		return provider.AgentResponse{Response: map[string]any{"text": "ok"}}, nil
	}}
	exec := NewAgent(client)
	ec := testExecutionContext()
	ec.Context = map[string]any{"greeting": "hi"}
	res, err := exec.Execute(context.Background(), map[string]any{"prompt": "say ${greeting}"}, nil, ec)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"text": "ok"}, res.Outputs["response"])
}

func TestAgentExecutorTemplateErrorOnUnresolvedVariable(t *testing.T) {
	client := &provider.Mock{}
	exec := NewAgent(client)
	ec := testExecutionContext()
	ec.Context = map[string]any{}
	_, err := exec.Execute(context.Background(), map[string]any{"prompt": "say ${missing}"}, nil, ec)
	require.Equal(t, apperrors.KindTemplateError, apperrors.KindOf(err))
}

type stubRunner struct {
	result CommandResult
	err    error
	lastReq CommandRequest
}

func (s *stubRunner) Run(ctx context.Context, req CommandRequest) (CommandResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func TestCommandExecutorSuccess(t *testing.T) {
	runner := &stubRunner{result: CommandResult{Stdout: "out", ExitCode: 0}}
	exec := NewCommand(runner)
	res, err := exec.Execute(context.Background(), map[string]any{"command": "echo hi"}, nil, testExecutionContext())
	require.NoError(t, err)
	require.Equal(t, "out", res.Outputs["stdout"])
	require.Equal(t, "echo hi", runner.lastReq.Command)
}

func TestCommandExecutorMissingCommand(t *testing.T) {
	runner := &stubRunner{}
	exec := NewCommand(runner)
	_, err := exec.Execute(context.Background(), map[string]any{}, nil, testExecutionContext())
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestSlashCommandExecutorRendersArgs(t *testing.T) {
	runner := &stubRunner{result: CommandResult{Stdout: "ok"}}
	exec := NewSlashCommand(runner)
	inputs := Inputs{"args": map[string]any{"path": "./foo"}}
	_, err := exec.Execute(context.Background(), map[string]any{"name": "lint"}, inputs, testExecutionContext())
	require.NoError(t, err)
	require.Contains(t, runner.lastReq.Command, "lint")
	require.Contains(t, runner.lastReq.Command, "--path=")
}

func TestEvalExecutorReturnsContextUpdates(t *testing.T) {
	exec := NewEval(sandbox.New(time.Second))
	res, err := exec.Execute(context.Background(), map[string]any{"source": "return {branch: 'A'}"}, nil, testExecutionContext())
	require.NoError(t, err)
	require.Equal(t, "A", res.ContextUpdates["branch"])
}

func TestEvalExecutorNonObjectReturnIsEvalError(t *testing.T) {
	exec := NewEval(sandbox.New(time.Second))
	_, err := exec.Execute(context.Background(), map[string]any{"source": "return 42"}, nil, testExecutionContext())
	require.Equal(t, apperrors.KindEvalError, apperrors.KindOf(err))
}

func TestDynamicCommandExecutorResolvesExpression(t *testing.T) {
	runner := &stubRunner{result: CommandResult{Stdout: "ok"}}
	exec := NewDynamicCommand(runner, sandbox.New(time.Second))
	ec := testExecutionContext()
	ec.Context = map[string]any{"tool": "echo hi"}
	_, err := exec.Execute(context.Background(), map[string]any{"commandExpression": "tool"}, nil, ec)
	require.NoError(t, err)
	require.Equal(t, "echo hi", runner.lastReq.Command)
}

func TestDynamicAgentExecutorResolvesPromptExpression(t *testing.T) {
	client := &provider.Mock{RunAgentFunc: func(ctx context.Context, req provider.AgentRequest) (provider.AgentResponse, error) {
		require.Equal(t, "hi", req.Prompt)
		return provider.AgentResponse{Response: map[string]any{}}, nil
	}}
	exec := NewDynamicAgent(client, sandbox.New(time.Second))
	ec := testExecutionContext()
	ec.Context = map[string]any{"prompt": "hi"}
	_, err := exec.Execute(context.Background(), map[string]any{"promptExpression": "prompt"}, nil, ec)
	require.NoError(t, err)
}

type stubTracker struct {
	items []ProjectItem
	err   error
}

func (s *stubTracker) ApplyUpdates(ctx context.Context, project string, updates []ProjectUpdate) ([]ProjectItem, error) {
	return s.items, s.err
}

func TestGitHubProjectExecutorAppliesUpdates(t *testing.T) {
	tracker := &stubTracker{items: []ProjectItem{{ItemID: "1", Fields: map[string]any{"status": "Done"}}}}
	exec := NewGitHubProject(tracker)
	inputs := Inputs{"updates": []any{map[string]any{"itemId": "1", "fields": map[string]any{"status": "Done"}}}}
	res, err := exec.Execute(context.Background(), map[string]any{"project": "p1"}, inputs, testExecutionContext())
	require.NoError(t, err)
	items := res.Outputs["items"].([]any)
	require.Len(t, items, 1)
}

func TestRegistryForLooksUpByKind(t *testing.T) {
	client := &provider.Mock{}
	reg := NewRegistry(NewLLM(client), NewAgent(client))
	_, ok := reg.For(registry.KindLLM)
	require.True(t, ok)
	_, ok = reg.For(registry.KindCommand)
	require.False(t, ok)
}
