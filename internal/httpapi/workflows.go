package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
)

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := s.workflows.List(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": wfs})
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.getWorkflow", "workflow %q not found", chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf graph.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.createWorkflow", err))
		return
	}
	created, err := s.workflows.Create(r.Context(), wf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf graph.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.updateWorkflow", err))
		return
	}
	wf.ID = chi.URLParam(r, "id")
	updated, err := s.workflows.Update(r.Context(), wf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) duplicateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	_ = decodeJSON(r, &body)
	dup, err := s.workflows.Duplicate(r.Context(), chi.URLParam(r, "id"), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// validateWorkflow compiles the posted document against the registry and
// returns its issue list without persisting anything (§4.2, §6).
func (s *Server) validateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf graph.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.validateWorkflow", err))
		return
	}
	_, issues := graph.Compile(s.reg, wf, wf.InitialContext, s.logger)
	writeJSON(w, http.StatusOK, compileIssuesPayload(issues))
}
