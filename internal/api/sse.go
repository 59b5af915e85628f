package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/feedfm/fmsession/internal/events"
)

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive a snapshot of both sessions immediately, then every
// notification as it happens.
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

	sendSSE(w, flusher, h.snapshotEnvelope())

	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, env)
		case <-r.Context().Done():
			return
		}
	}
}

// snapshotEnvelope carries both sessions without a notification.
func (h *Handlers) snapshotEnvelope() events.Envelope {
	env := events.Envelope{Source: "snapshot", At: time.Now()}
	st := h.streamer.Snapshot()
	env.Streamer = &st
	if p, err := h.player(); err == nil {
		s := p.Snapshot()
		env.Player = &s
	}
	return env
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
