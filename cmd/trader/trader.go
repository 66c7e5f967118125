package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/ees/internal/broker"
	"github.com/ajitpratap0/ees/internal/db"
	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/events"
	"github.com/ajitpratap0/ees/internal/execution"
	"github.com/ajitpratap0/ees/internal/market"
	"github.com/ajitpratap0/ees/internal/metrics"
	"github.com/ajitpratap0/ees/internal/sentiment"
	"github.com/ajitpratap0/ees/internal/session"
	"github.com/ajitpratap0/ees/internal/signal"
	"github.com/ajitpratap0/ees/internal/sizing"
	"github.com/ajitpratap0/ees/internal/trailing"
)

// trader holds every wired component and implements the scheduler's
// phase/cadence callbacks, the one place in the process that actually
// walks the universe, scores it, sizes it, and trades it.
type trader struct {
	universe  []domain.Symbol
	fabric    *market.Fabric
	sentiment *sentiment.Filter
	signals   *signal.Engine
	trail     *trailing.Engine
	executor  *execution.Executor
	broker    *broker.Client
	archive   *db.DB
	bus       *events.Bus
	log       zerolog.Logger

	maxPositions int

	scheduler *session.Scheduler

	mu      sync.Mutex
	day     dayCounters
}

type dayCounters struct {
	opened, closed int
	realizedPnL    domain.Micros
	wins, losses   int
	largestWin     domain.Micros
	largestLoss    domain.Micros
}

func (t *trader) onPhaseEnter(ctx context.Context, phase domain.SessionPhase) {
	if phase == domain.PhasePrep {
		t.mu.Lock()
		t.day = dayCounters{}
		t.mu.Unlock()
		if err := t.broker.RenewSession(ctx); err != nil {
			t.log.Warn().Err(err).Msg("failed to renew broker session entering prep")
		}
	}
	if phase == domain.PhaseDark {
		metrics.UpdateActiveSessions(0)
	} else {
		metrics.UpdateActiveSessions(1)
	}
}

// onScanTick evaluates every tradable symbol in the universe, sizes
// accepted signals against the account's current headroom, and places
// entry orders for whatever the sizer accepts.
func (t *trader) onScanTick(ctx context.Context) domain.ScanTickResult {
	started := time.Now()
	result := domain.ScanTickResult{TickID: started.Format(time.RFC3339Nano), StartedAt: started}

	account, err := t.broker.GetAccount(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to fetch account snapshot for scan tick")
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(started)
		return result
	}

	owned := t.trail.Positions()
	ownedSymbols := make(map[string]bool, len(owned))
	ownedValues := make([]domain.Micros, 0, len(owned))
	for _, pos := range owned {
		ownedSymbols[pos.Symbol] = true
		quote, err := t.fabric.GetQuote(ctx, pos.Symbol, false)
		if err != nil {
			continue
		}
		ownedValues = append(ownedValues, domain.FromFloat(float64(pos.Quantity)*quote.Bid.Float()))
	}
	openCount := len(owned)

	sessionID := t.sessionID()

	for _, sym := range t.universe {
		result.SymbolsScanned++

		// One open strategy-owned position per symbol (spec §4.8
		// idempotency) and a hard cap on concurrent positions (spec
		// §3.2) are both enforced before any market data is even
		// fetched for the candidate.
		if ownedSymbols[sym.Ticker] {
			result.SignalsRejected++
			continue
		}
		if t.maxPositions > 0 && openCount >= t.maxPositions {
			result.SignalsRejected++
			t.bus.Publish(events.Event{Kind: events.KindSignalRejected, Severity: events.SeverityInfo, Symbol: sym.Ticker, Message: "max concurrent positions reached", Timestamp: time.Now()})
			continue
		}

		quote, err := t.fabric.GetQuote(ctx, sym.Ticker, false)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		bars, err := t.fabric.GetBars(ctx, sym.Ticker, "5min", 100)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		ind, err := market.ComputeIndicators(sym.Ticker, "5min", bars)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		snapshot := t.sentiment.Evaluate(ctx, sym, isPreMarket(t.scheduler.State().Phase))
		composite := t.signals.Evaluate(ctx, sym, quote, bars, ind, snapshot)
		if !composite.Accepted {
			result.SignalsRejected++
			continue
		}

		sized := sizing.Size(sizing.Inputs{
			Account:             account,
			OwnedPositionValues: ownedValues,
			Signal:              composite,
			Quote:               quote,
			NCandidates:         1,
		}, sizing.DefaultConfig())
		if !sized.Accepted {
			result.SignalsRejected++
			t.bus.Publish(events.Event{Kind: events.KindSignalRejected, Severity: events.SeverityInfo, Symbol: sym.Ticker, Message: sized.Reason, Timestamp: time.Now()})
			continue
		}

		pos, err := t.executor.EnterPosition(ctx, sized.Intent, sessionID)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.SignalsAccepted++
		openCount++
		ownedSymbols[sym.Ticker] = true

		if err := t.archive.RecordPositionOpened(ctx, pos); err != nil {
			t.log.Warn().Err(err).Str("symbol", sym.Ticker).Msg("failed to archive opened position")
		}

		t.mu.Lock()
		t.day.opened++
		t.mu.Unlock()
		metrics.UpdatePositionValue(sym.Ticker, float64(pos.Quantity)*pos.EntryPrice.Float())
	}

	metrics.OpenPositions.Set(float64(len(t.trail.Positions())))
	result.Duration = time.Since(started)
	return result
}

// onPositionTick refreshes every tracked position's trailing stop and
// exits anything the trailing engine decides has hit its stop.
func (t *trader) onPositionTick(ctx context.Context) {
	for _, pos := range t.trail.Positions() {
		quote, err := t.fabric.GetQuote(ctx, pos.Symbol, true)
		if err != nil {
			t.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to refresh quote for position tick")
			continue
		}
		bars, err := t.fabric.GetBars(ctx, pos.Symbol, "5min", 30)
		if err != nil {
			t.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to refresh bars for position tick")
			continue
		}
		ind, err := market.ComputeIndicators(pos.Symbol, "5min", bars)
		if err != nil {
			continue
		}

		exitIntent, shouldExit := t.trail.Tick(pos.ID, quote, ind, sellingVolumeRatioOf(bars), time.Now())
		if !shouldExit {
			continue
		}

		ord, err := t.executor.ExitPosition(ctx, exitIntent)
		if err != nil {
			// ExitPosition unregisters the position from trailing
			// regardless of outcome (see internal/execution.Executor),
			// so there's nothing left here to clear in-flight.
			t.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("failed to place exit order")
			continue
		}

		closed := pos
		now := time.Now()
		closed.ClosedAt = &now
		closed.ExitOrderID = ord.ID
		if ord.AvgFillPrice > 0 {
			closed.RealizedPnL = domain.FromFloat(float64(pos.Quantity) * (ord.AvgFillPrice.Float() - pos.EntryPrice.Float()))
		}
		if err := t.archive.RecordPositionClosed(ctx, closed); err != nil {
			t.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to archive closed position")
		}
		if err := t.archive.RecordOrder(ctx, ord); err != nil {
			t.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to archive exit order")
		}
		metrics.RecordTrade(closed.RealizedPnL.Float())
		metrics.PositionValueBySymbol.DeleteLabelValues(pos.Symbol)

		t.mu.Lock()
		t.day.closed++
		t.day.realizedPnL += closed.RealizedPnL
		if closed.RealizedPnL >= 0 {
			t.day.wins++
			if closed.RealizedPnL > t.day.largestWin {
				t.day.largestWin = closed.RealizedPnL
			}
		} else {
			t.day.losses++
			if closed.RealizedPnL < t.day.largestLoss {
				t.day.largestLoss = closed.RealizedPnL
			}
		}
		t.mu.Unlock()
	}
	metrics.OpenPositions.Set(float64(len(t.trail.Positions())))
}

func (t *trader) onEndOfDay(ctx context.Context) domain.EndOfDaySummary {
	t.mu.Lock()
	day := t.day
	t.mu.Unlock()

	var winRate float64
	if day.wins+day.losses > 0 {
		winRate = float64(day.wins) / float64(day.wins+day.losses)
	}

	summary := domain.EndOfDaySummary{
		TradingDate:  t.sessionID(),
		TradesOpened: day.opened,
		TradesClosed: day.closed,
		RealizedPnL:  day.realizedPnL,
		WinRate:      winRate,
		LargestWin:   day.largestWin,
		LargestLoss:  day.largestLoss,
	}
	if err := t.archive.RecordEndOfDaySummary(ctx, summary); err != nil {
		t.log.Warn().Err(err).Msg("failed to archive end-of-day summary")
	}
	metrics.WinRate.Set(winRate)
	return summary
}

func (t *trader) sessionID() string {
	state := t.scheduler.State()
	if state.TradingDate != "" {
		return state.TradingDate
	}
	return time.Now().Format("2006-01-02")
}

func isPreMarket(phase domain.SessionPhase) bool {
	return phase == domain.PhasePrep
}

// sellingVolumeRatioOf mirrors the ratio the signal engine computes for
// entries (latest bar volume against a trailing average), here serving
// the trailing engine's selling-surge exit check instead.
func sellingVolumeRatioOf(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	last := bars[len(bars)-1]
	n := 20
	if len(bars) < n {
		n = len(bars)
	}
	var sum int64
	for _, b := range bars[len(bars)-n:] {
		sum += b.Volume
	}
	avg := float64(sum) / float64(n)
	if avg == 0 {
		return 0
	}
	return float64(last.Volume) / avg
}
