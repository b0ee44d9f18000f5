package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkflowCRUDRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	wf := localWorkflow("")
	wf.ProjectID = "proj-1"
	wf.Name = "review"
	body, err := json.Marshal(wf)
	require.NoError(t, err)

	createRec := doRequest(r, http.MethodPost, "/workflows/", body)
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	getRec := doRequest(r, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	listRec := doRequest(r, http.MethodGet, "/workflows/?project=proj-1", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listed map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	wfs, _ := listed["workflows"].([]any)
	require.Len(t, wfs, 1)

	wf.ID = id
	wf.Name = "review-v2"
	updateBody, err := json.Marshal(wf)
	require.NoError(t, err)
	updateRec := doRequest(r, http.MethodPut, "/workflows/"+id, updateBody)
	require.Equal(t, http.StatusOK, updateRec.Code)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(updateRec.Body.Bytes(), &updated))
	require.Equal(t, "review-v2", updated["name"])

	dupRec := doRequest(r, http.MethodPost, "/workflows/"+id+"/duplicate", []byte(`{"name":"review-copy"}`))
	require.Equal(t, http.StatusCreated, dupRec.Code)
	var dup map[string]any
	require.NoError(t, json.Unmarshal(dupRec.Body.Bytes(), &dup))
	require.Equal(t, "review-copy", dup["name"])
	require.NotEqual(t, id, dup["id"])

	deleteRec := doRequest(r, http.MethodDelete, "/workflows/"+id, nil)
	require.Equal(t, http.StatusNoContent, deleteRec.Code)

	missingRec := doRequest(r, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusNotFound, missingRec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(missingRec.Body.Bytes(), &envelope))
	require.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestValidateWorkflowReturnsCompileIssuesWithoutPersisting(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	broken := localWorkflow("")
	broken.Edges = nil // trigger output never wired anywhere is fine, but end never reached

	body, err := json.Marshal(broken)
	require.NoError(t, err)
	rec := doRequest(r, http.MethodPost, "/workflows/validate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := doRequest(r, http.MethodGet, "/workflows/", nil)
	var listed map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	require.Empty(t, listed["workflows"])
}

func TestCreateWorkflowRejectsMalformedJSON(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	rec := doRequest(r, http.MethodPost, "/workflows/", []byte(`{not-json`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}
