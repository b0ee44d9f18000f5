package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/automation"
	"github.com/iota-uz/foundry-sub005/internal/store"
)

func (s *Server) listAutomations(w http.ResponseWriter, r *http.Request) {
	as, err := s.automations.List(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"automations": as})
}

func (s *Server) createAutomation(w http.ResponseWriter, r *http.Request) {
	var a store.Automation
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.createAutomation", err))
		return
	}
	created, err := s.automations.Create(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateAutomation(w http.ResponseWriter, r *http.Request) {
	var a store.Automation
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.updateAutomation", err))
		return
	}
	a.ID = chi.URLParam(r, "id")
	updated, err := s.automations.Update(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := s.automations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// manualTrigger fires a manual-kind automation against one issue,
// bypassing status-change matching (§4.6, §6's manual trigger endpoint).
func (s *Server) manualTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AutomationID string               `json:"automationId"`
		Project      string               `json:"project"`
		IssueID      string               `json:"issueId"`
		Issue        automation.IssueMeta `json:"issue"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.manualTrigger", err))
		return
	}

	executionID, err := s.router.ManualTrigger(r.Context(), body.AutomationID, body.Project, body.IssueID, body.Issue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"executionId": executionID})
}
