// Package httpapi implements the HTTP/JSON surface of §6: workflow CRUD,
// compile-only validation, execution control, the server-sent event stream,
// automation CRUD plus manual trigger, and the remote-container webhook
// receiver. Routing is built on github.com/go-chi/chi/v5, matching the
// chi-based API server shape found elsewhere in the retrieval pack.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/automation"
	"github.com/iota-uz/foundry-sub005/internal/dispatcher"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// Server holds every collaborator an HTTP handler needs: the two document
// stores, the compiler's registry, the interpreter, the dispatcher, the
// automation router, the event bus (for SSE), and an optional LLM provider
// for the assisted checklist-regeneration endpoint.
type Server struct {
	workflows   store.WorkflowStore
	automations store.AutomationStore
	reg         *registry.Registry
	interp      *interpreter.Interpreter
	dispatch    *dispatcher.Dispatcher
	router      *automation.Router
	bus         hooks.Bus
	llm         provider.Client
	logger      telemetry.Logger
}

// New constructs a Server. llm may be nil, in which case the assisted
// checklist-regeneration endpoint reports ProviderError rather than
// panicking.
func New(
	workflows store.WorkflowStore,
	automations store.AutomationStore,
	reg *registry.Registry,
	interp *interpreter.Interpreter,
	dispatch *dispatcher.Dispatcher,
	router *automation.Router,
	bus hooks.Bus,
	llm provider.Client,
	logger telemetry.Logger,
) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{
		workflows:   workflows,
		automations: automations,
		reg:         reg,
		interp:      interp,
		dispatch:    dispatch,
		router:      router,
		bus:         bus,
		llm:         llm,
		logger:      logger,
	}
}

// Router builds the full chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.listWorkflows)
		r.Post("/", s.createWorkflow)
		r.Post("/validate", s.validateWorkflow)
		r.Get("/{id}", s.getWorkflow)
		r.Put("/{id}", s.updateWorkflow)
		r.Delete("/{id}", s.deleteWorkflow)
		r.Post("/{id}/duplicate", s.duplicateWorkflow)
		r.Post("/{id}/checklist/regenerate", s.regenerateChecklist)
		r.Post("/{id}/checklist/regenerate-assisted", s.regenerateChecklistAssisted)
	})

	r.Route("/executions", func(r chi.Router) {
		r.Post("/", s.startExecution)
		r.Get("/{id}", s.getExecution)
		r.Get("/{id}/steps", s.getStepHistory)
		r.Get("/{id}/events", s.streamEvents)
		r.Post("/{id}/answer", s.submitAnswer)
		r.Post("/{id}/skip", s.skipQuestion)
		r.Post("/{id}/pause", s.pauseExecution)
		r.Post("/{id}/resume", s.resumeExecution)
		r.Post("/{id}/cancel", s.cancelExecution)
		r.Post("/{id}/retry", s.retryStep)
	})

	r.Route("/automations", func(r chi.Router) {
		r.Get("/", s.listAutomations)
		r.Post("/", s.createAutomation)
		r.Put("/{id}", s.updateAutomation)
		r.Delete("/{id}", s.deleteAutomation)
		r.Post("/trigger", s.manualTrigger)
	})

	r.Post("/exec/{executionId}/event", s.handleWebhook)

	return r
}

func compileIssuesPayload(issues []graph.Issue) map[string]any {
	return map[string]any{"issues": issues}
}
