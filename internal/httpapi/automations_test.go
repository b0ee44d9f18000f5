package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/store"
)

func storeAutomationFor(workflowID string) store.Automation {
	return store.Automation{
		ProjectID:   "proj-1",
		Name:        "manual-run",
		TriggerKind: "manual",
		WorkflowID:  workflowID,
		Enabled:     true,
	}
}

func TestAutomationCRUDRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	wf, err := h.workflows.Create(context.Background(), localWorkflow(""))
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"projectId":     "proj-1",
		"name":          "on-ready",
		"triggerKind":   "statusEnter",
		"triggerStatus": "Ready",
		"workflowId":    wf.ID,
		"enabled":       true,
	})
	require.NoError(t, err)

	createRec := doRequest(r, http.MethodPost, "/automations/", body)
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	listRec := doRequest(r, http.MethodGet, "/automations/?project=proj-1", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listed map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	require.Len(t, listed["automations"], 1)

	updateBody, err := json.Marshal(map[string]any{
		"projectId":     "proj-1",
		"name":          "on-ready-v2",
		"triggerKind":   "statusEnter",
		"triggerStatus": "Ready",
		"workflowId":    wf.ID,
		"enabled":       false,
	})
	require.NoError(t, err)
	updateRec := doRequest(r, http.MethodPut, "/automations/"+id, updateBody)
	require.Equal(t, http.StatusOK, updateRec.Code)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(updateRec.Body.Bytes(), &updated))
	require.Equal(t, "on-ready-v2", updated["name"])

	deleteRec := doRequest(r, http.MethodDelete, "/automations/"+id, nil)
	require.Equal(t, http.StatusNoContent, deleteRec.Code)

	deleteAgainRec := doRequest(r, http.MethodDelete, "/automations/"+id, nil)
	require.Equal(t, http.StatusNotFound, deleteAgainRec.Code)
}

func TestCreateAutomationWithoutWorkflowIDReturnsValidationError(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	rec := doRequest(r, http.MethodPost, "/automations/", []byte(`{"name":"no-workflow"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestManualTriggerDispatchesMatchedAutomation(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	wf, err := h.workflows.Create(context.Background(), localWorkflow(""))
	require.NoError(t, err)

	a, err := h.automations.Create(context.Background(), storeAutomationFor(wf.ID))
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"automationId": a.ID,
		"project":      "proj-1",
		"issueId":      "issue-1",
		"issue":        map[string]any{"owner": "acme", "repo": "widgets", "number": 7, "title": "fix it"},
	})
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPost, "/automations/trigger", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	executionID, _ := resp["executionId"].(string)
	require.NotEmpty(t, executionID)

	require.Eventually(t, func() bool {
		getRec := doRequest(r, http.MethodGet, "/executions/"+executionID, nil)
		if getRec.Code != http.StatusOK {
			return false
		}
		var state map[string]any
		require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &state))
		return state["status"] == "completed"
	}, time.Second, 5*time.Millisecond)
}

func TestManualTriggerUnknownAutomationReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	body, _ := json.Marshal(map[string]any{"automationId": "nope", "project": "proj-1", "issueId": "issue-1"})
	rec := doRequest(r, http.MethodPost, "/automations/trigger", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
