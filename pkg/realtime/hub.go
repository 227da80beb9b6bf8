package realtime

import (
	"sync"

	"github.com/openpress/pulse/pkg/observability"
)

// sessionBuffer is the per-session outbound queue depth. A subscriber that
// falls this far behind starts losing events rather than blocking publishers.
const sessionBuffer = 16

// session is one live subscription: a connection's identity plus its
// outbound event queue. The transport goroutine owns the receive side.
type session struct {
	id   string
	room string
	send chan Event
}

// Hub routes events from publishers to the sessions registered in each room.
// It holds no session lifecycle state beyond the routing map; transports own
// their sessions and must deregister on disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*session

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(logger *observability.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*session),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a session to a room and returns its receive channel. Any
// initial events are queued ahead of registration, so they are delivered
// before the first broadcast. Registering the same session ID twice is a
// no-op returning the existing channel.
func (h *Hub) Register(room, sessionID string, initial ...Event) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*session)
	}
	if existing, ok := h.rooms[room][sessionID]; ok {
		return existing.send
	}

	s := &session{
		id:   sessionID,
		room: room,
		send: make(chan Event, sessionBuffer),
	}
	for _, ev := range initial {
		s.send <- ev
	}
	h.rooms[room][sessionID] = s

	h.logger.WithFields(map[string]interface{}{
		"room":    room,
		"session": sessionID,
	}).Debug("session registered")

	return s.send
}

// Deregister removes a session from a room. Deregistering an unknown session
// is a no-op, so disconnect paths can call it unconditionally.
func (h *Hub) Deregister(room, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, ok := sessions[sessionID]; !ok {
		return
	}

	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(h.rooms, room)
	}

	h.logger.WithFields(map[string]interface{}{
		"room":    room,
		"session": sessionID,
	}).Debug("session deregistered")
}

// Publish fans an event out to every session in a room. Delivery is
// fire-and-forget: a session whose queue is full loses the event so one slow
// subscriber never blocks the publisher or its peers.
func (h *Hub) Publish(room string, event Event) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	// No lock is held across the sends.
	for _, s := range targets {
		select {
		case s.send <- event:
			if h.metrics != nil {
				h.metrics.EventsPublished.WithLabelValues(room, string(event.Type)).Inc()
			}
		default:
			if h.metrics != nil {
				h.metrics.EventsDropped.WithLabelValues(room).Inc()
			}
			h.logger.WithFields(map[string]interface{}{
				"room":    room,
				"session": s.id,
				"type":    string(event.Type),
			}).Warn("dropped event for slow subscriber")
		}
	}
}

// Sessions returns the number of sessions registered in a room.
func (h *Hub) Sessions(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
