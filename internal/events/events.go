// Package events is the structured event sink every component publishes
// to: order lifecycle changes, trailing-stop transitions, provider
// breaker trips, session phase changes. Subscribers (the alert manager,
// the status API) drain it without coupling back to producers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/ees/internal/metrics"
)

// Kind is a bounded taxonomy of event kinds, kept small deliberately so
// downstream metrics never explode on label cardinality.
type Kind string

const (
	KindSessionPhaseChanged   Kind = "session_phase_changed"
	KindOrderPlaced           Kind = "order_placed"
	KindOrderFilled           Kind = "order_filled"
	KindOrderRejected         Kind = "order_rejected"
	KindOrderCancelled        Kind = "order_cancelled"
	KindPositionOpened        Kind = "position_opened"
	KindPositionClosed        Kind = "position_closed"
	KindTrailStateChanged     Kind = "trail_state_changed"
	KindStopRatcheted         Kind = "stop_ratcheted"
	KindProviderBreakerOpened Kind = "provider_breaker_opened"
	KindProviderBreakerClosed Kind = "provider_breaker_closed"
	KindScanTickCompleted     Kind = "scan_tick_completed"
	KindEndOfDaySummary       Kind = "end_of_day_summary"
	KindSignalRejected        Kind = "signal_rejected"
	KindSystemError           Kind = "system_error"
)

// Severity mirrors the teacher's alert severity enum.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the structured payload every producer emits.
type Event struct {
	Kind      Kind                   `json:"kind"`
	Severity  Severity               `json:"severity"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Subscriber receives events from the bus. Implementations must not block
// for long — the bus calls them synchronously per subscriber goroutine.
type Subscriber interface {
	Handle(ctx context.Context, ev Event)
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev Event)

func (f SubscriberFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

const defaultQueueSize = 256

// Bus fans events out to subscribers over bounded per-subscriber channels.
// When a slow subscriber's queue is full, the new event is dropped for
// that subscriber rather than blocking the publisher — publishers (the scheduler, the executor) must
// never stall on a stuck alert adapter.
type Bus struct {
	subs   []*subscription
	nats   *nats.Conn
	subject string
}

type subscription struct {
	sub   Subscriber
	queue chan Event
	done  chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithNATS publishes every event as JSON onto the given NATS connection
// and subject in addition to in-process fan-out, for the optional
// multi-process deployment where the alert adapter or status API run out
// of process.
func WithNATS(conn *nats.Conn, subject string) Option {
	return func(b *Bus) {
		b.nats = conn
		b.subject = subject
	}
}

// NewBus constructs an event bus and starts no goroutines until Subscribe
// is called.
func NewBus(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber and starts its delivery goroutine. ctx
// cancellation stops delivery; events still queued are not delivered.
func (b *Bus) Subscribe(ctx context.Context, sub Subscriber) {
	s := &subscription{
		sub:   sub,
		queue: make(chan Event, defaultQueueSize),
		done:  make(chan struct{}),
	}
	b.subs = append(b.subs, s)

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-s.queue:
				s.sub.Handle(ctx, ev)
			}
		}
	}()
}

// Publish delivers ev to every subscriber, dropping it for any subscriber
// whose queue is full rather than blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	metrics.RecordEventPublished(string(ev.Kind), b.nats != nil)
	for _, s := range b.subs {
		select {
		case s.queue <- ev:
		default:
			log.Warn().Str("kind", string(ev.Kind)).Msg("event subscriber queue full, dropping event")
		}
	}
	if b.nats != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal event for nats publish")
			return
		}
		if err := b.nats.Publish(b.subject, payload); err != nil {
			log.Error().Err(err).Msg("failed to publish event to nats")
		}
	}
}
