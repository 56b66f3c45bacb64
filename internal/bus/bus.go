// Package bus implements the real-time dissemination bus: fan-out
// publish/subscribe for classification and alert events.
//
// Delivery contract: every subscriber connected at publish time observes the
// event in publication order, or is disconnected. A subscriber that cannot
// keep up has its channel closed instead of silently missing events, so the
// at-least-once-per-connected-session guarantee is never violated; the client
// reconnects and reconciles through the pull endpoints. Subscribers that
// connect after publication do not receive prior events.
//
// The bus is process-wide state with an explicit lifecycle: constructed once
// at startup, closed on shutdown.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trackguard/internal/bus/metrics"
	"trackguard/pkg/domain"
)

// EventType discriminates the wire frames observers receive.
type EventType string

const (
	// TypeAlertNew announces a newly opened alert.
	TypeAlertNew EventType = "ALERT_NEW"
	// TypeAlertTransition announces an alert lifecycle transition.
	TypeAlertTransition EventType = "ALERT_TRANSITION"
	// TypeAnalysisUpdate announces a completed classification.
	TypeAnalysisUpdate EventType = "ANALYSIS_UPDATE"
	// TypeConnectionEstablished is the hello frame sent to new stream
	// subscribers before any events.
	TypeConnectionEstablished EventType = "CONNECTION_ESTABLISHED"
)

// Event is one dissemination frame.
type Event struct {
	Type      EventType       `json:"type"`
	ZoneID    domain.ZoneID   `json:"zone_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	// Origin identifies the publishing instance when the event crossed the
	// relay; empty for locally published events.
	Origin string `json:"origin,omitempty"`
}

// NewEvent builds an event, snapshotting the payload as JSON.
func NewEvent(t EventType, zone domain.ZoneID, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("bus: marshal payload: %w", err)
	}
	return Event{
		Type:      t,
		ZoneID:    zone,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

var (
	// ErrClosed is returned for operations on a closed bus.
	ErrClosed = errors.New("bus: closed")
	// ErrSubscriberExists is returned for duplicate subscriber ids.
	ErrSubscriberExists = errors.New("bus: subscriber id already exists")
)

// Bus fans events out to subscribers.
type Bus struct {
	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	subscribers map[string]chan Event
	closed      bool
}

// New builds a bus whose subscribers each get a queue of the given depth.
func New(buffer int, logger *slog.Logger, m *metrics.Metrics) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		buffer:      buffer,
		logger:      logger,
		metrics:     m,
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers an observer. The returned cancel func is idempotent
// and must be called when the observer disconnects.
func (b *Bus) Subscribe(id string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := b.subscribers[id]; ok {
		return nil, nil, ErrSubscriberExists
	}

	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch
	if b.metrics != nil {
		b.metrics.Subscribers.Inc()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.unsubscribe(id) })
	}
	return ch, cancel, nil
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
		if b.metrics != nil {
			b.metrics.Subscribers.Dec()
		}
	}
}

// Publish delivers the event to every connected subscriber. Publishes are
// serialized, so each subscriber observes events in publication order. A
// subscriber whose queue is full is disconnected rather than skipped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if b.metrics != nil {
		b.metrics.Published.WithLabelValues(string(ev.Type)).Inc()
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Queue overflow: end this session instead of dropping events
			// behind the subscriber's back.
			delete(b.subscribers, id)
			close(ch)
			if b.metrics != nil {
				b.metrics.Subscribers.Dec()
				b.metrics.Overflows.Inc()
			}
			if b.logger != nil {
				b.logger.Warn("bus subscriber disconnected on overflow", "subscriber_id", id)
			}
		}
	}
}

// SubscriberCount reports the number of connected observers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close tears the bus down: all subscriber channels are closed and further
// publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	if b.metrics != nil {
		b.metrics.Subscribers.Set(0)
	}
}
