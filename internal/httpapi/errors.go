package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// errorEnvelope is the body of every non-2xx response (§6).
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// statusAndCode maps an apperrors.Kind to the HTTP status and closed
// upper-snake-case code set of §6/§7: Validation->400, NotFound->404,
// DuplicateId/Conflict->409, Unauthorized->401, LLM_ERROR/DEPLOYMENT_ERROR
// carry 502, everything else defaults to 500.
func statusAndCode(kind apperrors.Kind) (int, string) {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case apperrors.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperrors.KindDuplicateID:
		return http.StatusConflict, "DUPLICATE_ID"
	case apperrors.KindConflict:
		return http.StatusConflict, "CONFLICT"
	case apperrors.KindUnauthorized, apperrors.KindUnauthorizedWebhook:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case apperrors.KindLLMValidationError:
		return http.StatusBadGateway, "LLM_ERROR"
	case apperrors.KindDeploymentTimeout, apperrors.KindPlatformError:
		return http.StatusBadGateway, "DEPLOYMENT_ERROR"
	case apperrors.KindProviderError, apperrors.KindProjectApiError:
		return http.StatusInternalServerError, "PROVIDER_ERROR"
	case apperrors.KindPortUnresolved, apperrors.KindTemplateError, apperrors.KindEvalError,
		apperrors.KindCommandTimeout, apperrors.KindWorkflowTimeout, apperrors.KindStaleExecution,
		apperrors.KindCancelled:
		return http.StatusInternalServerError, "WORKFLOW_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeError maps err to its envelope and status code via apperrors.KindOf,
// so any error returned from a store/interpreter/dispatcher call is
// classified consistently without every handler repeating a type switch.
func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status, code := statusAndCode(kind)
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
