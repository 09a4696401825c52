package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rebalanced/internal/events"
	"rebalanced/internal/obsmetrics"
)

// handleEvents serves the daemon's Server-Sent Events stream: one line per
// published event, named by its variant tag, payload the JSON of its Data.
// A keep-alive comment line is written periodically so intermediaries don't
// time out an idle connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.Hub.Subscribe()
	defer s.Hub.Unsubscribe(ch)

	obsmetrics.SSESubscribersActive.Inc()
	defer obsmetrics.SSESubscribersActive.Dec()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev events.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
