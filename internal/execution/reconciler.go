package execution

import (
	"context"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/events"
	"github.com/rs/zerolog"
)

// BrokerPosition is a broker-side holding as reported by the account
// endpoint, independent of which channel opened it.
type BrokerPosition struct {
	Symbol   string
	Quantity int
	OwnerTag string
	AvgPrice domain.Micros
}

// PositionBook is the slice of local position tracking the reconciler
// reads and mutates: the trailing engine's live snapshot plus a way to
// adopt or retire tracked positions.
type PositionBook interface {
	Positions() []domain.Position
	Adopt(pos domain.Position)
	Unregister(positionID string)
}

// BrokerPositionLister is the account surface the reconciler polls.
type BrokerPositionLister interface {
	ListPositions(ctx context.Context) ([]BrokerPosition, error)
}

// Reconciler runs periodically while the session is OPEN, reconciling
// the broker's view of EES-owned positions against this process's own
// tracked positions. Grounded on
// internal/exchange.PositionManager.loadOpenPositions/SetSession: the
// teacher rebuilds its in-memory map from a durable store at session
// start; here the "durable store" is the broker itself, since this
// system's own bookkeeping is the only thing that can go stale (a crash
// mid-session, a manual order placed through another channel).
type Reconciler struct {
	broker   BrokerPositionLister
	book     PositionBook
	bus      *events.Bus
	log      zerolog.Logger
	interval time.Duration
}

func NewReconciler(broker BrokerPositionLister, book PositionBook, bus *events.Bus, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{broker: broker, book: book, bus: bus, interval: interval, log: log}
}

// Run blocks, reconciling every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcileOnce(ctx); err != nil {
				r.log.Warn().Err(err).Msg("reconciliation pass failed")
			}
		}
	}
}

// reconcileOnce adopts unknown EES-owned broker positions with defensive
// defaults and marks local positions closed if the broker no longer
// reports them. Positions not tagged EES are never touched — this system
// only ever reconciles what it believes it owns.
func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	brokerPositions, err := r.broker.ListPositions(ctx)
	if err != nil {
		return err
	}

	brokerBySymbol := make(map[string]BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		if bp.OwnerTag != domain.OwnerTag() {
			continue
		}
		brokerBySymbol[bp.Symbol] = bp
	}

	tracked := r.book.Positions()
	trackedBySymbol := make(map[string]domain.Position, len(tracked))
	for _, p := range tracked {
		trackedBySymbol[p.Symbol] = p
	}

	for symbol, bp := range brokerBySymbol {
		if _, known := trackedBySymbol[symbol]; known {
			continue
		}
		r.adopt(bp)
	}

	for _, p := range tracked {
		if _, stillAtBroker := brokerBySymbol[p.Symbol]; stillAtBroker {
			continue
		}
		r.log.Warn().Str("symbol", p.Symbol).Str("positionId", p.ID).Msg("tracked position missing at broker, marking closed")
		r.book.Unregister(p.ID)
		r.publish(events.KindPositionClosed, p.Symbol, "position reconciled as closed (absent at broker)")
	}

	return nil
}

// adopt registers an unknown EES-owned broker position with conservative
// defaults: a stop 3% below the reported entry price and Trailing state,
// since this process has no history of that position's actual entry
// conditions to derive a tighter stop from.
func (r *Reconciler) adopt(bp BrokerPosition) {
	pos := domain.Position{
		ID:         "reconciled-" + bp.Symbol,
		Symbol:     bp.Symbol,
		Quantity:   bp.Quantity,
		EntryPrice: bp.AvgPrice,
		StopPrice:  domain.FromFloat(bp.AvgPrice.Float() * 0.97),
		TrailState: domain.TrailTrailing,
		OpenedAt:   time.Now(),
	}
	r.book.Adopt(pos)
	r.log.Info().Str("symbol", bp.Symbol).Msg("adopted unknown EES-owned broker position")
	r.publish(events.KindPositionOpened, bp.Symbol, "position adopted during reconciliation")
}

func (r *Reconciler) publish(kind events.Kind, symbol, message string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{Kind: kind, Severity: events.SeverityWarning, Symbol: symbol, Message: message, Timestamp: time.Now()})
}
