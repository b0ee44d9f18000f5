package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
)

// startExecution implements §6's "Start execution:
// {workflowId, initialContext?} -> {executionId}". It compiles the named
// workflow fresh (so edits since the last start take effect) and dispatches
// it, returning immediately without waiting for completion.
func (s *Server) startExecution(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID     string         `json:"workflowId"`
		InitialContext map[string]any `json:"initialContext"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.startExecution", err))
		return
	}

	wf, ok, err := s.workflows.Get(r.Context(), body.WorkflowID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.startExecution", "workflow %q not found", body.WorkflowID))
		return
	}

	plan, issues := graph.Compile(s.reg, *wf, body.InitialContext, s.logger)
	if len(issues) > 0 {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "VALIDATION_ERROR",
			Message: "workflow failed to compile",
			Details: issues[0].Error(),
		}})
		return
	}

	executionID, err := s.dispatch.Dispatch(r.Context(), wf, plan, body.InitialContext)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"executionId": executionID})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	state, ok, err := s.interp.GetState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.getExecution", "execution %q not found", chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) getStepHistory(w http.ResponseWriter, r *http.Request) {
	state, ok, err := s.interp.GetState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.getStepHistory", "execution %q not found", chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stepHistory": state.StepHistory})
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionID string `json:"questionId"`
		Value      any    `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.submitAnswer", err))
		return
	}
	if err := s.interp.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), body.QuestionID, body.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) skipQuestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionID string `json:"questionId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.skipQuestion", err))
		return
	}
	if err := s.interp.SkipQuestion(r.Context(), chi.URLParam(r, "id"), body.QuestionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pauseExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.interp.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resumeExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.interp.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.interp.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) retryStep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeID string `json:"nodeId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.retryStep", err))
		return
	}
	if err := s.interp.RetryStep(r.Context(), chi.URLParam(r, "id"), body.NodeID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
