package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/provider"
)

func TestRegenerateChecklistIsDeterministicAndSkipsTriggerAndEnd(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	wf, err := h.workflows.Create(context.Background(), localWorkflow(""))
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPost, "/workflows/"+wf.ID+"/checklist/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Checklist []ChecklistItem `json:"checklist"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Checklist, 1)
	require.Equal(t, "llm", resp.Checklist[0].NodeID)
}

func TestRegenerateChecklistAssistedUsesProviderLabels(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	wf, err := h.workflows.Create(context.Background(), localWorkflow(""))
	require.NoError(t, err)

	h.llm.CompleteFunc = func(_ context.Context, _ provider.Request) (provider.Response, error) {
		return provider.Response{JSON: map[string]any{
			"labels": map[string]any{"llm": "Summarize the issue"},
		}}, nil
	}

	rec := doRequest(r, http.MethodPost, "/workflows/"+wf.ID+"/checklist/regenerate-assisted", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Checklist []ChecklistItem `json:"checklist"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Checklist, 1)
	require.Equal(t, "Summarize the issue", resp.Checklist[0].Label)
	require.Len(t, h.llm.CompleteCalls, 1)
}

func TestRegenerateChecklistUnknownWorkflowReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	r := h.server.Router()

	rec := doRequest(r, http.MethodPost, "/workflows/nope/checklist/regenerate", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
