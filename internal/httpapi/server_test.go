package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/automation"
	"github.com/iota-uz/foundry-sub005/internal/containerplatform"
	"github.com/iota-uz/foundry-sub005/internal/dispatcher"
	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
	"github.com/iota-uz/foundry-sub005/internal/token"
)

// testHarness wires a full Server against in-memory stores, a local-only
// dispatcher (no container platform call), and a scriptable LLM provider,
// mirroring the collaborator set cmd/foundryd assembles for real.
type testHarness struct {
	server      *Server
	workflows   store.WorkflowStore
	automations store.AutomationStore
	interp      *interpreter.Interpreter
	dispatch    *dispatcher.Dispatcher
	router      *automation.Router
	bus         hooks.Bus
	llm         *provider.Mock
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	workflows := store.NewMemoryWorkflows()
	automations := store.NewMemoryAutomations()
	reg := registry.New()
	sb := sandbox.New(time.Second)
	bus := hooks.NewBus()
	logger := telemetry.NewNoopLogger()

	llm := &provider.Mock{}
	execRegistry := executors.NewRegistry(executors.NewLLM(llm))
	interp := interpreter.New(store.NewMemoryExecutions(), bus, execRegistry, reg, sb, logger)

	signer := token.NewSigner([]byte("test-secret"))
	dispatch := dispatcher.New(interp, containerplatform.NewMock(), dispatcher.NewMemoryPlanStore(), signer, token.NewRevocations(), nil, dispatcher.Config{
		EndpointURL:  "http://localhost:8080",
		DefaultImage: "foundry/default:latest",
		Poll:         containerplatform.DefaultPollOptions,
		TokenTTL:     time.Minute,
	}, logger)

	router, err := automation.New(automations, automations, workflows, reg, dispatch, interp, sb, noopTracker{}, bus, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	return &testHarness{
		server:      New(workflows, automations, reg, interp, dispatch, router, bus, llm, logger),
		workflows:   workflows,
		automations: automations,
		interp:      interp,
		dispatch:    dispatch,
		router:      router,
		bus:         bus,
		llm:         llm,
	}
}

type noopTracker struct{}

func (noopTracker) SetIssueStatus(_ context.Context, _, _, _ string) error {
	return nil
}

// localWorkflow is a minimal local-execution (non-remote) workflow: a
// trigger with one string output feeding a single llm node that ends the
// run, the same shape used by the graph package's own compiler tests (a
// workflow needs at least one executable node between trigger and end).
func localWorkflow(id string) graph.Workflow {
	return graph.Workflow{
		ID: id,
		Nodes: []graph.Node{
			{ID: "trigger", Kind: registry.KindTrigger, Config: map[string]any{
				"outputs": []any{map[string]any{"name": "prompt", "type": "string"}},
			}},
			{ID: "llm", Kind: registry.KindLLM, Config: map[string]any{"userPrompt": "${prompt}"}},
			{ID: "end", Kind: registry.KindEnd, Config: map[string]any{"targetStatus": "done"}},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "trigger", SourcePort: "prompt", Target: "llm", TargetPort: "prompt"},
			{ID: "e2", Source: "llm", Target: "end"},
		},
	}
}

func doRequest(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRequestWithAuth(h http.Handler, method, target string, body []byte, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)
	rec := doRequest(h.server.Router(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
