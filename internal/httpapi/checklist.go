package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// ChecklistItem is one step of a workflow's review checklist: a
// human-readable summary of one executable node, in execution order.
type ChecklistItem struct {
	NodeID string `json:"nodeId"`
	Kind   string `json:"kind"`
	Label  string `json:"label"`
}

// regenerateChecklist implements the deterministic checklist-regeneration
// endpoint (§9 open question): a pure 1:1 remap from the workflow's current
// node set, with no LLM call.
func (s *Server) regenerateChecklist(w http.ResponseWriter, r *http.Request) {
	wf, ok, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.regenerateChecklist", "workflow %q not found", chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklist": deterministicChecklist(*wf)})
}

func deterministicChecklist(wf graph.Workflow) []ChecklistItem {
	items := make([]ChecklistItem, 0, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.Kind == registry.KindTrigger || n.Kind == registry.KindEnd {
			continue
		}
		items = append(items, ChecklistItem{
			NodeID: n.ID,
			Kind:   string(n.Kind),
			Label:  defaultLabel(n),
		})
	}
	return items
}

func defaultLabel(n graph.Node) string {
	return fmt.Sprintf("%s (%s)", n.ID, n.Kind)
}

// regenerateChecklistAssisted delegates label generation to an
// provider.Client call instead of the deterministic remap (§9's "expose
// both" instruction).
func (s *Server) regenerateChecklistAssisted(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, apperrors.New(apperrors.KindProviderError, "httpapi.regenerateChecklistAssisted", "no LLM provider configured"))
		return
	}

	wf, ok, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.Errorf(apperrors.KindNotFound, "httpapi.regenerateChecklistAssisted", "workflow %q not found", chi.URLParam(r, "id")))
		return
	}

	items := deterministicChecklist(*wf)
	resp, err := s.llm.Complete(r.Context(), provider.Request{
		SystemPrompt: "Rewrite each checklist item's label as a short, human-readable description of what that workflow step does. Respond with JSON: {\"labels\": {nodeId: label}}.",
		UserPrompt:   fmt.Sprintf("Workflow %q, nodes: %+v", wf.Name, items),
		OutputMode:   "json",
	})
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProviderError, "httpapi.regenerateChecklistAssisted", err))
		return
	}

	labels, _ := resp.JSON["labels"].(map[string]any)
	for i := range items {
		if label, ok := labels[items[i].NodeID].(string); ok && label != "" {
			items[i].Label = label
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklist": items})
}
