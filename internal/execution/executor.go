// Package execution places and tracks broker orders and keeps the
// strategy's view of its own open positions accurate against the
// broker's. Every order this system places is tagged with
// domain.OwnerTag() so reconciliation can tell its own positions apart
// from anything else in the account.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/events"
	"github.com/ajitpratap0/ees/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Exchange is the subset of broker.Client the executor drives, named and
// shaped after the teacher's internal/exchange.Exchange interface
// (preview/place/poll/cancel against an order-id-addressed broker).
type Exchange interface {
	PreviewOrder(ctx context.Context, ord domain.Order) (domain.Order, error)
	PlaceOrder(ctx context.Context, ord domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, brokerOrderID string) (domain.Order, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	GetAccount(ctx context.Context) (domain.AccountSnapshot, error)
}

// TrailingRegistrar is the slice of internal/trailing.Engine the executor
// needs: register a freshly filled position for trailing, and enumerate
// what is currently open so EnterPosition can enforce the one-position-
// per-symbol and max-concurrent-position invariants itself as a second
// line of defense behind the scan loop's own check.
type TrailingRegistrar interface {
	Register(pos domain.Position)
	Unregister(positionID string)
	Positions() []domain.Position
}

// Config tunes polling behavior and position-entry invariants.
type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	// MaxPositions caps concurrent open positions; 0 means unlimited.
	MaxPositions int
}

func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, PollTimeout: 2 * time.Minute}
}

// Executor places entry and exit orders and polls them to a terminal
// state. inFlightSells dedups exit requests per position, grounded on
// the teacher's PositionManager map-of-mutable-state shape in
// internal/exchange/position_manager.go, here keyed by position rather
// than by symbol since one symbol can only ever hold one open position.
type Executor struct {
	exchange Exchange
	trailing TrailingRegistrar
	bus      *events.Bus
	cfg      Config
	log      zerolog.Logger

	mu            sync.Mutex
	inFlightSells map[string]bool
}

func NewExecutor(exchange Exchange, trailing TrailingRegistrar, bus *events.Bus, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{
		exchange:      exchange,
		trailing:      trailing,
		bus:           bus,
		cfg:           cfg,
		log:           log,
		inFlightSells: make(map[string]bool),
	}
}

// EnterPosition runs the entry path: preview, place, poll to Filled,
// register with trailing. Returns the resulting Position on a fill.
func (e *Executor) EnterPosition(ctx context.Context, intent domain.OrderIntent, sessionID string) (domain.Position, error) {
	started := time.Now()
	defer func() { metrics.RecordOrderExecution(float64(time.Since(started).Milliseconds())) }()

	existing := e.trailing.Positions()
	for _, p := range existing {
		if p.Symbol == intent.Symbol {
			return domain.Position{}, fmt.Errorf("position already open for %s, rejecting duplicate entry", intent.Symbol)
		}
	}
	if e.cfg.MaxPositions > 0 && len(existing) >= e.cfg.MaxPositions {
		return domain.Position{}, fmt.Errorf("max concurrent positions (%d) reached, rejecting entry for %s", e.cfg.MaxPositions, intent.Symbol)
	}

	ord := domain.Order{
		ID:         uuid.NewString(),
		Symbol:     intent.Symbol,
		Side:       domain.OrderSideBuy,
		Quantity:   intent.Quantity,
		LimitPrice: intent.MaxPrice,
		OwnerTag:   domain.OwnerTag(),
		CreatedAt:  time.Now(),
	}

	preview, err := e.exchange.PreviewOrder(ctx, ord)
	if err != nil {
		return domain.Position{}, fmt.Errorf("preview rejected for %s: %w", intent.Symbol, err)
	}
	if preview.RejectReason != "" {
		return domain.Position{}, fmt.Errorf("preview rejected for %s: %s", intent.Symbol, preview.RejectReason)
	}

	placed, err := e.exchange.PlaceOrder(ctx, ord)
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to place order for %s: %w", intent.Symbol, err)
	}
	e.publish(events.KindOrderPlaced, intent.Symbol, "entry order placed", nil)

	final, err := e.pollToTerminal(ctx, placed)
	if err != nil {
		return domain.Position{}, err
	}

	if final.Status == domain.OrderRejected || final.Status == domain.OrderCancelled {
		e.publish(events.KindOrderRejected, intent.Symbol, "entry order "+string(final.Status), nil)
		return domain.Position{}, fmt.Errorf("entry order for %s ended as %s: %s", intent.Symbol, final.Status, final.RejectReason)
	}

	pos := domain.Position{
		ID:           uuid.NewString(),
		Symbol:       intent.Symbol,
		Quantity:     final.FilledQuantity,
		EntryPrice:   final.AvgFillPrice,
		TrailState:   domain.TrailInactive,
		OpenedAt:     time.Now(),
		EntryOrderID: final.ID,
		SessionID:    sessionID,
	}
	e.trailing.Register(pos)
	e.publish(events.KindPositionOpened, intent.Symbol, "position opened", map[string]interface{}{"quantity": pos.Quantity, "entryPrice": pos.EntryPrice.Float()})

	return pos, nil
}

// ExitPosition runs the exit path for a trailing-engine ExitIntent: a
// full-quantity market sell, tagged with ownerTag like every other order
// this system places. Deduplicated so a position already being sold is
// never double-sold within the same tick.
func (e *Executor) ExitPosition(ctx context.Context, intent domain.ExitIntent) (domain.Order, error) {
	started := time.Now()
	defer func() { metrics.RecordOrderExecution(float64(time.Since(started).Milliseconds())) }()

	e.mu.Lock()
	if e.inFlightSells[intent.PositionID] {
		e.mu.Unlock()
		return domain.Order{}, fmt.Errorf("sell already in flight for position %s", intent.PositionID)
	}
	e.inFlightSells[intent.PositionID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlightSells, intent.PositionID)
		e.mu.Unlock()
		e.trailing.Unregister(intent.PositionID)
	}()

	ord := domain.Order{
		ID:         uuid.NewString(),
		Symbol:     intent.Symbol,
		Side:       domain.OrderSideSell,
		Quantity:   intent.Quantity,
		OwnerTag:   domain.OwnerTag(),
		PositionID: intent.PositionID,
		CreatedAt:  time.Now(),
	}

	placed, err := e.exchange.PlaceOrder(ctx, ord)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to place exit order for %s: %w", intent.Symbol, err)
	}

	final, err := e.pollToTerminal(ctx, placed)
	if err != nil {
		return domain.Order{}, err
	}

	e.publish(events.KindOrderFilled, intent.Symbol, "exit order "+string(final.Status)+" ("+string(intent.Reason)+")", nil)
	if final.Status == domain.OrderFilled {
		e.publish(events.KindPositionClosed, intent.Symbol, "position closed", map[string]interface{}{"reason": string(intent.Reason)})
	}

	return final, nil
}

func (e *Executor) pollToTerminal(ctx context.Context, ord domain.Order) (domain.Order, error) {
	deadline := time.Now().Add(e.cfg.PollTimeout)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		current, err := e.exchange.GetOrder(ctx, ord.BrokerOrderID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("failed to poll order %s: %w", ord.BrokerOrderID, err)
		}
		if isTerminal(current.Status) {
			return current, nil
		}
		if time.Now().After(deadline) {
			return current, fmt.Errorf("order %s did not reach a terminal state within %s", ord.BrokerOrderID, e.cfg.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return domain.Order{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTerminal(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderFilled, domain.OrderCancelled, domain.OrderRejected:
		return true
	default:
		return false
	}
}

func (e *Executor) publish(kind events.Kind, symbol, message string, metadata map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Kind:      kind,
		Severity:  events.SeverityInfo,
		Symbol:    symbol,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
}
