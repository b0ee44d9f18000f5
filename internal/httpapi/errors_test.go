package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

func TestStatusAndCodeMapsEveryKindToAStableHTTPStatus(t *testing.T) {
	cases := []struct {
		kind       apperrors.Kind
		wantStatus int
		wantCode   string
	}{
		{apperrors.KindValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperrors.KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperrors.KindDuplicateID, http.StatusConflict, "DUPLICATE_ID"},
		{apperrors.KindConflict, http.StatusConflict, "CONFLICT"},
		{apperrors.KindUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperrors.KindUnauthorizedWebhook, http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperrors.KindLLMValidationError, http.StatusBadGateway, "LLM_ERROR"},
		{apperrors.KindDeploymentTimeout, http.StatusBadGateway, "DEPLOYMENT_ERROR"},
		{apperrors.KindPlatformError, http.StatusBadGateway, "DEPLOYMENT_ERROR"},
		{apperrors.KindProviderError, http.StatusInternalServerError, "PROVIDER_ERROR"},
		{apperrors.KindProjectApiError, http.StatusInternalServerError, "PROVIDER_ERROR"},
		{apperrors.KindEvalError, http.StatusInternalServerError, "WORKFLOW_ERROR"},
		{apperrors.KindInternalError, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{apperrors.Kind("SomethingUnmapped"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, c := range cases {
		status, code := statusAndCode(c.kind)
		require.Equal(t, c.wantStatus, status, "kind %s", c.kind)
		require.Equal(t, c.wantCode, code, "kind %s", c.kind)
	}
}

func TestWriteErrorEncodesEnvelopeFromApperrorsKind(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperrors.Errorf(apperrors.KindNotFound, "httpapi.test", "workflow %q not found", "wf-1")

	writeError(rec, err)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "NOT_FOUND", envelope.Error.Code)
	require.Contains(t, envelope.Error.Message, "wf-1")
}

func TestWriteErrorDefaultsPlainErrorsToInternalError(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
}
