package realtime

import (
	"io"
	"testing"
	"time"

	"github.com/openpress/pulse/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestPublishDeliversToRoomSubscribers(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	a := hub.Register("analytics", "a")
	b := hub.Register("analytics", "b")
	other := hub.Register("other", "c")

	hub.Publish("analytics", Event{Type: EventView, Data: "payload"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != EventView {
				t.Errorf("Subscriber %s got wrong event type %q", name, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %s never received the event", name)
		}
	}

	select {
	case ev := <-other:
		t.Errorf("Subscriber in another room received %v", ev)
	default:
	}
}

func TestInitialEventsPrecedeBroadcasts(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	ch := hub.Register("analytics", "s", Event{Type: EventInitial, Data: "snapshot"})
	hub.Publish("analytics", Event{Type: EventView})

	first := <-ch
	if first.Type != EventInitial {
		t.Fatalf("Expected initial event first, got %q", first.Type)
	}
	second := <-ch
	if second.Type != EventView {
		t.Fatalf("Expected broadcast second, got %q", second.Type)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	first := hub.Register("analytics", "dup")
	second := hub.Register("analytics", "dup")

	if hub.Sessions("analytics") != 1 {
		t.Fatalf("Expected 1 session, got %d", hub.Sessions("analytics"))
	}

	hub.Publish("analytics", Event{Type: EventView})

	// Both handles see the same queue, so the single event is readable once.
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("Event never delivered")
	}
	select {
	case ev := <-second:
		t.Errorf("Duplicate delivery: %v", ev)
	default:
	}
}

func TestDeregisterIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	hub.Register("analytics", "s")
	hub.Deregister("analytics", "s")
	hub.Deregister("analytics", "s")
	hub.Deregister("unknown-room", "s")

	if hub.Sessions("analytics") != 0 {
		t.Errorf("Expected 0 sessions, got %d", hub.Sessions("analytics"))
	}
}

func TestDeregisteredSessionReceivesNothing(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	ch := hub.Register("analytics", "s")
	hub.Deregister("analytics", "s")
	hub.Publish("analytics", Event{Type: EventView})

	select {
	case ev := <-ch:
		t.Errorf("Deregistered session received %v", ev)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(testLogger(), nil)

	ch := hub.Register("analytics", "slow")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sessionBuffer+10; i++ {
			hub.Publish("analytics", Event{Type: EventView})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if got := len(ch); got != sessionBuffer {
		t.Errorf("Expected exactly %d buffered events, got %d", sessionBuffer, got)
	}
}
