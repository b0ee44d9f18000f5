package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestExecution(t *testing.T, h *testHarness, r http.Handler) string {
	t.Helper()

	wf := localWorkflow("")
	created, err := h.workflows.Create(context.Background(), wf)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"workflowId":     created.ID,
		"initialContext": map[string]any{"prompt": "hello"},
	})
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPost, "/executions/", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	executionID, _ := resp["executionId"].(string)
	require.NotEmpty(t, executionID)
	return executionID
}

func TestStartExecutionCompilesAndDispatches(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	executionID := startTestExecution(t, h, r)

	require.Eventually(t, func() bool {
		rec := doRequest(r, http.MethodGet, "/executions/"+executionID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var state map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		return state["status"] == "completed"
	}, time.Second, 5*time.Millisecond)
}

func TestStartExecutionUnknownWorkflowReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	body, _ := json.Marshal(map[string]any{"workflowId": "does-not-exist"})
	rec := doRequest(r, http.MethodPost, "/executions/", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetExecutionUnknownIDReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	rec := doRequest(r, http.MethodGet, "/executions/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStepHistoryReturnsHistoryForKnownExecution(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	executionID := startTestExecution(t, h, r)
	require.Eventually(t, func() bool {
		rec := doRequest(r, http.MethodGet, "/executions/"+executionID+"/steps", nil)
		return rec.Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)
}

func TestPauseResumeCancelOnUnknownExecutionReturnNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	for _, path := range []string{"/pause", "/resume", "/cancel"} {
		rec := doRequest(r, http.MethodPost, "/executions/nope"+path, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestRetryStepOnUnknownExecutionReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	body, _ := json.Marshal(map[string]any{"nodeId": "n1"})
	rec := doRequest(r, http.MethodPost, "/executions/nope/retry", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
