package realtime

import (
	"context"
	"time"
)

// EventType classifies a broadcast message.
type EventType string

const (
	EventView     EventType = "view"
	EventDownload EventType = "download"
	EventMetrics  EventType = "metrics"
	EventInitial  EventType = "initial"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
	EventPong     EventType = "pong"
)

// DefaultRoom is the room all analytics events are published to.
const DefaultRoom = "analytics"

// Event is one message in transit from publisher to subscribers. Events are
// ephemeral; there is no replay.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// LiveMetrics is the realtime snapshot delivered as the initial event and on
// every metrics tick.
type LiveMetrics struct {
	RealtimeCount  int       `json:"realtime_count"`
	TotalViews     int64     `json:"total_views"`
	TotalDownloads int64     `json:"total_downloads"`
	Timestamp      time.Time `json:"timestamp"`
}

// sameCounts compares two snapshots ignoring the timestamp, so unchanged
// metrics can be suppressed on streams that ask for it.
func (m LiveMetrics) sameCounts(other LiveMetrics) bool {
	return m.RealtimeCount == other.RealtimeCount &&
		m.TotalViews == other.TotalViews &&
		m.TotalDownloads == other.TotalDownloads
}

// MetricsSource produces the live snapshot. Implementations must tolerate
// unreachable backends by zero-filling rather than failing.
type MetricsSource interface {
	LiveMetrics(ctx context.Context) LiveMetrics
}
