package realtime

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openpress/pulse/pkg/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// StreamServer serves the real-time transports: the bidirectional websocket
// and the two SSE streams. Both share the hub's room/broadcast semantics.
type StreamServer struct {
	hub      *Hub
	source   MetricsSource
	upgrader websocket.Upgrader
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewStreamServer creates a stream server publishing into hub and reading
// snapshots from source. metrics may be nil.
func NewStreamServer(hub *Hub, source MetricsSource, logger *observability.Logger, metrics *observability.Metrics) *StreamServer {
	return &StreamServer{
		hub:    hub,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// wsSession is one websocket connection: its hub subscription plus a control
// channel for protocol replies (pong) that bypass the hub.
type wsSession struct {
	id      string
	conn    *websocket.Conn
	events  <-chan Event
	control chan Event
	done    chan struct{}
	srv     *StreamServer
}

// HandleWS upgrades the connection, registers it in the analytics room with
// an initial snapshot queued first, and runs the read/write pumps until
// disconnect.
func (s *StreamServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sessionID := uuid.NewString()
	initial := Event{Type: EventInitial, Data: s.source.LiveMetrics(r.Context())}

	ws := &wsSession{
		id:      sessionID,
		conn:    conn,
		events:  s.hub.Register(DefaultRoom, sessionID, initial),
		control: make(chan Event, 4),
		done:    make(chan struct{}),
		srv:     s,
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.WithLabelValues("websocket").Inc()
	}
	s.logger.WithField("session", sessionID).Info("websocket session opened")

	go ws.writePump()
	go ws.readPump()
}

// readPump reads client messages until the connection drops. A client ping
// message elicits a pong through the control channel. Closing done tears
// down the write pump; deregistration makes the session invisible to the
// hub within the same step.
func (ws *wsSession) readPump() {
	defer func() {
		ws.srv.hub.Deregister(DefaultRoom, ws.id)
		close(ws.done)
		_ = ws.conn.Close()
		if ws.srv.metrics != nil {
			ws.srv.metrics.ActiveSessions.WithLabelValues("websocket").Dec()
		}
		ws.srv.logger.WithField("session", ws.id).Info("websocket session closed")
	}()

	ws.conn.SetReadLimit(maxMessageSize)
	if err := ws.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Event
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				ws.srv.logger.WithError(err).WithField("session", ws.id).Warn("unexpected websocket close")
			}
			return
		}

		if msg.Type == EventPing {
			select {
			case ws.control <- Event{Type: EventPong}:
			default:
			}
		}
	}
}

// writePump serializes hub events and control replies onto the connection
// and keeps it alive with protocol pings.
func (ws *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.conn.Close()
	}()

	for {
		select {
		case <-ws.done:
			return

		case ev := <-ws.events:
			if err := ws.writeJSON(ev); err != nil {
				return
			}

		case ev := <-ws.control:
			if err := ws.writeJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ws *wsSession) writeJSON(ev Event) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := ws.conn.WriteJSON(ev); err != nil {
		ws.srv.logger.WithError(err).WithField("session", ws.id).Debug("websocket write failed")
		return err
	}
	return nil
}
