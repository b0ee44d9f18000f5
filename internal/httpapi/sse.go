package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
)

// streamEvents implements §6's event stream: a text/event-stream feed of
// every step:*/workflow:* event published for one execution, each frame a
// JSON-encoded {seq, type, payload}. The handler subscribes to the shared
// bus and discards events belonging to other executions rather than
// requiring a per-execution bus, matching the bus's single fan-out design.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(apperrors.KindInternalError, "httpapi.streamEvents", "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := make(chan hooks.Event, 64)
	sub, err := s.bus.Register(hooks.SubscriberFunc(func(_ context.Context, event hooks.Event) error {
		if event.ExecutionID != executionID {
			return nil
		}
		select {
		case frames <- event:
		default:
		}
		return nil
	}))
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-frames:
			payload, err := json.Marshal(map[string]any{
				"seq":     event.Seq,
				"type":    event.Type,
				"payload": event.Payload,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
