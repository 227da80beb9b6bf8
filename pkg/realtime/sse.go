package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ssePollInterval is how often an SSE stream recomputes the live snapshot.
const ssePollInterval = 5 * time.Second

// HandleSSE streams metrics snapshots and broadcast events, emitting a
// snapshot on every poll tick whether or not the counts changed.
func (s *StreamServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, false)
}

// HandleEvents is the change-driven variant of HandleSSE: poll-tick
// snapshots whose counts are unchanged are suppressed. Broadcast events are
// always forwarded.
func (s *StreamServer) HandleEvents(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, true)
}

func (s *StreamServer) stream(w http.ResponseWriter, r *http.Request, suppressUnchanged bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sessionID := uuid.NewString()

	last := s.source.LiveMetrics(ctx)
	events := s.hub.Register(DefaultRoom, sessionID, Event{Type: EventInitial, Data: last})
	defer s.hub.Deregister(DefaultRoom, sessionID)

	if s.metrics != nil {
		s.metrics.ActiveSessions.WithLabelValues("sse").Inc()
		defer s.metrics.ActiveSessions.WithLabelValues("sse").Dec()
	}
	s.logger.WithField("session", sessionID).Info("sse session opened")
	defer s.logger.WithField("session", sessionID).Info("sse session closed")

	// Ticker and subscription are both torn down with the request context;
	// a closed client never leaves a phantom subscriber behind.
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-events:
			if err := writeSSE(w, flusher, ev); err != nil {
				return
			}

		case <-ticker.C:
			current := s.source.LiveMetrics(ctx)
			if suppressUnchanged && current.sameCounts(last) {
				continue
			}
			last = current
			if err := writeSSE(w, flusher, Event{Type: EventMetrics, Data: current}); err != nil {
				return
			}
		}
	}
}

// writeSSE frames one event as "data: <json>\n\n" and flushes it. A payload
// that cannot be serialized degrades to an error frame instead of tearing
// the stream down.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		data, err = json.Marshal(Event{Type: EventError, Data: map[string]string{"message": err.Error()}})
		if err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
