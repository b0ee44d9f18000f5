package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/containerplatform"
	"github.com/iota-uz/foundry-sub005/internal/dispatcher"
	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
	"github.com/iota-uz/foundry-sub005/internal/token"
)

func remoteWorkflow() graph.Workflow {
	return graph.Workflow{
		ID:              "wf-remote",
		RemoteExecution: true,
		DockerImage:     "foundry/remote-runner:latest",
		Nodes: []graph.Node{
			{ID: "trigger", Kind: registry.KindTrigger, Config: map[string]any{
				"outputs": []any{map[string]any{"name": "prompt", "type": "string"}},
			}},
			{ID: "llm", Kind: registry.KindLLM, Config: map[string]any{"userPrompt": "${prompt}"}},
			{ID: "end", Kind: registry.KindEnd, Config: map[string]any{"targetStatus": "Done"}},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "trigger", SourcePort: "prompt", Target: "llm", TargetPort: "prompt"},
			{ID: "e2", Source: "llm", Target: "end"},
		},
	}
}

func newTestDispatcher(t *testing.T, platform containerplatform.Platform, poll containerplatform.PollOptions) (*dispatcher.Dispatcher, *interpreter.Interpreter) {
	t.Helper()
	interp := interpreter.New(store.NewMemoryExecutions(), hooks.NewBus(), executors.NewRegistry(), registry.New(), sandbox.New(time.Second), telemetry.NewNoopLogger())
	signer := token.NewSigner([]byte("test-secret"))
	d := dispatcher.New(interp, platform, dispatcher.NewMemoryPlanStore(), signer, token.NewRevocations(), nil, dispatcher.Config{
		EndpointURL:  "http://localhost:8080",
		DefaultImage: "foundry/default:latest",
		Poll:         poll,
		TokenTTL:     time.Minute,
	}, telemetry.NewNoopLogger())
	return d, interp
}

func waitForStatus(t *testing.T, interp *interpreter.Interpreter, executionID string, want interpreter.Status, timeout time.Duration) *interpreter.ExecutionState {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		state, ok, err := interp.GetState(context.Background(), executionID)
		require.NoError(t, err)
		require.True(t, ok)
		if state.Status == want {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %q did not reach status %q in time", executionID, want)
	return nil
}

func TestDispatchRemoteDeploymentTimeout(t *testing.T) {
	// S4: container platform stubbed to return BUILDING indefinitely.
	platform := containerplatform.NewMock()
	d, interp := newTestDispatcher(t, platform, containerplatform.PollOptions{
		Initial:  5 * time.Millisecond,
		Max:      10 * time.Millisecond,
		Deadline: 40 * time.Millisecond,
	})

	reg := registry.New()
	wf := remoteWorkflow()
	plan, issues := graph.Compile(reg, wf, map[string]any{"prompt": "hi"}, telemetry.NewNoopLogger())
	require.Empty(t, issues)

	executionID, err := d.Dispatch(context.Background(), &wf, plan, map[string]any{"prompt": "hi"})
	require.NoError(t, err)

	state := waitForStatus(t, interp, executionID, interpreter.StatusFailed, 2*time.Second)
	require.Contains(t, state.LastError, string(apperrors.KindDeploymentTimeout))
	require.Len(t, platform.Created, 1)
	require.Equal(t, "foundry/remote-runner:latest", platform.Created[0].Image)
	require.NotEmpty(t, platform.Deleted)
}

func TestHandleWebhookRejectsTokenForDifferentExecution(t *testing.T) {
	d, interp := newTestDispatcher(t, containerplatform.NewMock(), containerplatform.DefaultPollOptions)

	reg := registry.New()
	wf := remoteWorkflow()
	wf.RemoteExecution = false
	plan, issues := graph.Compile(reg, wf, map[string]any{"prompt": "hi"}, telemetry.NewNoopLogger())
	require.Empty(t, issues)

	executionIDA, err := interp.Start(context.Background(), plan, map[string]any{"prompt": "hi"})
	require.NoError(t, err)
	interp.Attach(executionIDA, plan)

	signer := token.NewSigner([]byte("test-secret"))
	rawForA, _, err := signer.Issue(executionIDA, plan.WorkflowID, time.Minute)
	require.NoError(t, err)

	err = d.HandleWebhook(context.Background(), "exec-b-does-not-exist", rawForA, dispatcher.WebhookPayload{Event: dispatcher.WebhookActivity})
	require.Error(t, err)
	require.Equal(t, apperrors.KindUnauthorizedWebhook, apperrors.KindOf(err))
}

func TestHandleWebhookCompleteInvalidatesToken(t *testing.T) {
	platform := containerplatform.NewMock()
	d, interp := newTestDispatcher(t, platform, containerplatform.PollOptions{
		Initial:  5 * time.Millisecond,
		Max:      10 * time.Millisecond,
		Deadline: time.Second,
	})

	reg := registry.New()
	wf := remoteWorkflow()
	plan, issues := graph.Compile(reg, wf, map[string]any{"prompt": "hi"}, telemetry.NewNoopLogger())
	require.Empty(t, issues)

	executionID, err := d.Dispatch(context.Background(), &wf, plan, map[string]any{"prompt": "hi"})
	require.NoError(t, err)

	signer := token.NewSigner([]byte("test-secret"))
	raw, _, err := signer.Issue(executionID, plan.WorkflowID, time.Minute)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		err := d.HandleWebhook(context.Background(), executionID, raw, dispatcher.WebhookPayload{
			Event:            dispatcher.WebhookComplete,
			CompletionStatus: "Done",
		})
		return err == nil
	}, time.Second, 5*time.Millisecond)

	waitForStatus(t, interp, executionID, interpreter.StatusCompleted, time.Second)

	err = d.HandleWebhook(context.Background(), executionID, raw, dispatcher.WebhookPayload{Event: dispatcher.WebhookActivity})
	require.Error(t, err)
	require.Equal(t, apperrors.KindUnauthorizedWebhook, apperrors.KindOf(err))
}
