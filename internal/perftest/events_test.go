package perftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainEvents empties the buffered channel without blocking. Publish
// runs on the caller's goroutine, so events from a completed call are
// already buffered.
func drainEvents(ch <-chan Event) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func hasEvent(events []Event, want EventType) bool {
	for _, ev := range events {
		if ev.Type == want {
			return true
		}
	}
	return false
}

func TestEventBusPublishReachesSubscribers(t *testing.T) {
	bus := NewEventBus()
	id1, ch1 := bus.Subscribe(8)
	id2, ch2 := bus.Subscribe(8)
	require.NotEqual(t, id1, id2)
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(EventTestCompleted, "payload")

	for _, ch := range []<-chan Event{ch1, ch2} {
		events := drainEvents(ch)
		require.Len(t, events, 1)
		assert.Equal(t, EventTestCompleted, events[0].Type)
		assert.Equal(t, "payload", events[0].Data)
		assert.False(t, events[0].Timestamp.IsZero())
	}
}

func TestEventBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe(1)

	bus.Publish(EventTestCompleted, 1)
	bus.Publish(EventTestCompleted, 2)
	bus.Publish(EventTestCompleted, 3)

	events := drainEvents(ch)
	require.Len(t, events, 1, "full buffer drops instead of blocking")
	assert.Equal(t, 1, events[0].Data)
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	id, ch := bus.Subscribe(1)

	bus.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Unknown and repeated IDs are ignored.
	bus.Unsubscribe(id)
	bus.Unsubscribe("missing")
}

func TestEventBusClose(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe(1)

	bus.Close()
	_, open := <-ch
	require.False(t, open)

	// Publish and a second Close after shutdown are no-ops.
	bus.Publish(EventTestCompleted, nil)
	bus.Close()

	_, late := bus.Subscribe(1)
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
}

func TestEventBusDefaultBuffer(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe(0)

	for i := 0; i < 64; i++ {
		bus.Publish(EventAnomalyDetected, i)
	}
	events := drainEvents(ch)
	assert.Len(t, events, 64)
}

func TestEventBusNilPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(EventTestCompleted, nil)
}
