package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/brianhealey/hadash/internal/events"
	"github.com/brianhealey/hadash/internal/gate"
	"github.com/brianhealey/hadash/internal/snapshot"
)

// hello is the first message on a new stream.
type hello struct {
	Settings snapshot.Snapshot `json:"settings"`
	Access   gate.Status       `json:"access"`
}

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive the current settings immediately, then each change event.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	// Verify the client supports streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	sendSSE(w, flusher, "hello", hello{Settings: h.svc.Snapshot(), Access: h.svc.Access()})

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, string(ev.Kind), ev)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}

var _ EventBus = (*events.Bus)(nil)
