package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/dispatcher"
)

// webhookBody is the wire shape of POST /exec/{executionId}/event (§6).
type webhookBody struct {
	Event            dispatcher.WebhookEvent `json:"event"`
	NodeID           string                  `json:"nodeId,omitempty"`
	Outputs          map[string]any          `json:"outputs,omitempty"`
	ContextUpdates   map[string]any          `json:"contextUpdates,omitempty"`
	ActivityType     string                  `json:"activityType,omitempty"`
	ActivityPayload  map[string]any          `json:"activityPayload,omitempty"`
	CompletionStatus string                  `json:"completionStatus,omitempty"`
	ErrorMessage     string                  `json:"errorMessage,omitempty"`
}

// handleWebhook receives a remote container's callback. An unauthorized
// token (unknown, wrong execution, or already revoked) is logged and
// dropped rather than retried, per §4.5/§7's "assumed forged" policy; the
// caller still sees a 401 so a legitimate, merely-late retry can be
// distinguished from a silent success.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionId")

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer == "" {
		writeError(w, apperrors.Errorf(apperrors.KindUnauthorizedWebhook, "httpapi.handleWebhook", "missing bearer token"))
		return
	}

	var body webhookBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindValidation, "httpapi.handleWebhook", err))
		return
	}

	err := s.dispatch.HandleWebhook(r.Context(), executionID, bearer, dispatcher.WebhookPayload{
		Event:            body.Event,
		NodeID:           body.NodeID,
		Outputs:          body.Outputs,
		ContextUpdates:   body.ContextUpdates,
		ActivityType:     body.ActivityType,
		ActivityPayload:  body.ActivityPayload,
		CompletionStatus: body.CompletionStatus,
		ErrorMessage:     body.ErrorMessage,
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnauthorizedWebhook {
			s.logger.Warn(r.Context(), "webhook rejected: unauthorized",
				"executionId", executionID, "error", err.Error())
		}
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
