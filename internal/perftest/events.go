package perftest

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names one of the bus topics the framework publishes on.
type EventType string

const (
	EventBaselineRecorded         EventType = "baselineRecorded"
	EventComparisonCompleted      EventType = "comparisonCompleted"
	EventRegressionDetected       EventType = "regressionDetected"
	EventAnomalyDetected          EventType = "anomalyDetected"
	EventTrendChange              EventType = "trendChange"
	EventVisualRegressionDetected EventType = "visualRegressionDetected"
	EventAlertEscalated           EventType = "alertEscalated"
	EventTestCompleted            EventType = "testCompleted"
	EventAnalysisCompleted        EventType = "analysisCompleted"
)

// Event is one framework notification. Data carries the stage output
// that triggered it, such as a *PerformanceTestResult or an alert.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// EventBus fans framework events out to subscribers. Publishing never
// blocks: subscribers that fall behind lose events rather than stalling
// a test run.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	closed      bool
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a consumer and returns its ID along with the
// channel events arrive on. A buffer below 1 falls back to 64.
func (b *EventBus) Subscribe(buffer int) (string, <-chan Event) {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers an event to every subscriber that has buffer space.
func (b *EventBus) Publish(eventType EventType, data any) {
	if b == nil {
		return
	}
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop for slow consumers.
			log.Debug().Str("subscriber", id).Str("event", string(eventType)).Msg("Event dropped, subscriber buffer full")
		}
	}
}

// SubscriberCount reports how many consumers are attached.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the bus down and closes every subscriber channel.
// Publishing after Close is a no-op.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
