// Package trailing implements the stealth trailing engine: a per-position
// state machine that manages exits entirely client-side. No broker stop
// order is ever placed — the stop lives only in this process's memory and
// is enforced by polling quotes and indicators each tick.
//
// Concurrency follows the teacher's internal/exchange.PositionManager: a
// sync.RWMutex-guarded map keyed by position ID, one lock per position so
// ticks across different positions never contend.
package trailing

import (
	"sync"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/rs/zerolog"
)

// Config tunes the state machine's triggers. Zero-value Config is
// invalid; use DefaultConfig.
type Config struct {
	InitialStopPct        float64
	BreakevenTriggerPct   float64
	BreakevenOffsetPct    float64
	TrailingActivatePct   float64
	MinTrailPct           float64
	MaxTrailPct           float64
	ExplosiveTriggerPct   float64
	ExplosiveTightenMult  float64
	ExplosiveTakeProfitPct float64
	MoonTriggerPct        float64
	MoonTightenMult       float64
	MoonTakeProfitPct     float64
	RSICloseThreshold     float64
	SellingSurgeThreshold float64
	SellingTightenMult    float64
	MaxHoldingDuration    time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialStopPct:         0.02,
		BreakevenTriggerPct:    0.005,
		BreakevenOffsetPct:     0.001,
		TrailingActivatePct:    0.01,
		MinTrailPct:            0.005,
		MaxTrailPct:            0.05,
		ExplosiveTriggerPct:    0.10,
		ExplosiveTightenMult:   0.6,
		ExplosiveTakeProfitPct: 0.10,
		MoonTriggerPct:         0.25,
		MoonTightenMult:        0.4,
		MoonTakeProfitPct:      0.25,
		RSICloseThreshold:      45,
		SellingSurgeThreshold:  1.4,
		SellingTightenMult:     0.2,
		MaxHoldingDuration:     4 * time.Hour,
	}
}

// trackedPosition is the engine's live bookkeeping for one position,
// beyond what domain.Position itself carries.
type trackedPosition struct {
	mu              sync.Mutex
	position        domain.Position
	highWaterMark   domain.Micros
	takeProfitPrice domain.Micros
	trailPct        float64
	sellInFlight    bool
	entryTime       time.Time
}

// Engine manages every open position's trailing state.
type Engine struct {
	cfg      Config
	log      zerolog.Logger
	mu       sync.RWMutex
	tracked  map[string]*trackedPosition
}

func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log, tracked: make(map[string]*trackedPosition)}
}

// Register starts tracking a newly filled position at its Inactive stop.
func (e *Engine) Register(pos domain.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos.TrailState = domain.TrailInactive
	pos.StopPrice = domain.FromFloat(pos.EntryPrice.Float() * (1 - e.cfg.InitialStopPct))
	pos.HighWaterMark = pos.EntryPrice

	e.tracked[pos.ID] = &trackedPosition{
		position:      pos,
		highWaterMark: pos.EntryPrice,
		entryTime:     pos.OpenedAt,
	}
}

// Adopt registers a position discovered at the broker rather than filled
// by this process's own executor (a reconciliation find). Unlike
// Register, it preserves the caller's TrailState/StopPrice instead of
// resetting to Inactive — a reconciled position is given defensive
// defaults (state Trailing, stop 3% below entry) by the caller, since
// this process has no fill history to derive a tighter stop from.
func (e *Engine) Adopt(pos domain.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos.HighWaterMark == 0 {
		pos.HighWaterMark = pos.EntryPrice
	}
	e.tracked[pos.ID] = &trackedPosition{
		position:      pos,
		highWaterMark: pos.HighWaterMark,
		entryTime:     pos.OpenedAt,
	}
}

// Unregister stops tracking a position (called once it's confirmed closed).
func (e *Engine) Unregister(positionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tracked, positionID)
}

// Positions returns a snapshot of every tracked position.
func (e *Engine) Positions() []domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Position, 0, len(e.tracked))
	for _, tp := range e.tracked {
		tp.mu.Lock()
		out = append(out, tp.position)
		tp.mu.Unlock()
	}
	return out
}

// Tick evaluates one position against the latest quote/indicators and
// returns an ExitIntent if an exit trigger fires. Triggers are checked in
// the exact order spec.md §4.7 lists: hard stop, take profit, momentum
// loss, volume-anomaly tighten (never exits), time stop, divergence.
func (e *Engine) Tick(positionID string, quote domain.Quote, ind domain.IndicatorSet, sellingVolumeRatio float64, now time.Time) (domain.ExitIntent, bool) {
	e.mu.RLock()
	tp, ok := e.tracked[positionID]
	e.mu.RUnlock()
	if !ok {
		return domain.ExitIntent{}, false
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.sellInFlight {
		return domain.ExitIntent{}, false
	}

	last := quote.Last
	if last > tp.highWaterMark {
		tp.highWaterMark = last
	}
	tp.position.HighWaterMark = tp.highWaterMark

	unrealizedPct := (last.Float() - tp.position.EntryPrice.Float()) / tp.position.EntryPrice.Float()

	e.advanceState(tp, unrealizedPct, ind)

	// 1. Hard stop.
	if last <= tp.position.StopPrice {
		return e.exit(tp, domain.ExitStopHit, now)
	}

	// 2. Take profit.
	if tp.takeProfitPrice > 0 && last >= tp.takeProfitPrice {
		return e.exit(tp, domain.ExitTakeProfit, now)
	}

	// 3. Momentum loss, only once trailing has engaged.
	inTrailingFamily := tp.position.TrailState == domain.TrailTrailing || tp.position.TrailState == domain.TrailExplosive || tp.position.TrailState == domain.TrailMoon
	if inTrailingFamily && ind.RSI < e.cfg.RSICloseThreshold {
		return e.exit(tp, domain.ExitMomentumExit, now)
	}

	// 4. Volume anomaly (selling surge): tighten, don't exit.
	if sellingVolumeRatio >= e.cfg.SellingSurgeThreshold && unrealizedPct > 0 {
		tightened := domain.FromFloat(last.Float() * (1 - tp.trailPct*e.cfg.SellingTightenMult))
		e.ratchetStop(tp, tightened)
	}

	// 5. Time stop.
	if now.Sub(tp.entryTime) >= e.cfg.MaxHoldingDuration {
		return e.exit(tp, domain.ExitTimeExit, now)
	}

	// 6. Divergence.
	if unrealizedPct < 0 && ind.MACDHistogram < 0 && ind.RSI < 45 {
		return e.exit(tp, domain.ExitDivergenceExit, now)
	}

	return domain.ExitIntent{}, false
}

// advanceState applies the strictly-monotone state transitions and the
// per-state stop/take-profit updates. A position never regresses to an
// earlier state.
func (e *Engine) advanceState(tp *trackedPosition, unrealizedPct float64, ind domain.IndicatorSet) {
	p := &tp.position

	if unrealizedPct >= e.cfg.MoonTriggerPct {
		e.advanceTo(p, domain.TrailMoon)
	} else if unrealizedPct >= e.cfg.ExplosiveTriggerPct {
		e.advanceTo(p, domain.TrailExplosive)
	} else if unrealizedPct >= e.cfg.TrailingActivatePct {
		e.advanceTo(p, domain.TrailTrailing)
	} else if unrealizedPct >= e.cfg.BreakevenTriggerPct {
		e.advanceTo(p, domain.TrailBreakeven)
	}

	switch p.TrailState {
	case domain.TrailBreakeven:
		target := domain.FromFloat(p.EntryPrice.Float() * (1 + e.cfg.BreakevenOffsetPct))
		e.ratchetStop(tp, target)
	case domain.TrailTrailing:
		tp.trailPct = atrScaledTrailPct(ind, e.cfg.MinTrailPct, e.cfg.MaxTrailPct)
		e.updateTrailingStop(tp)
	case domain.TrailExplosive:
		tp.trailPct = atrScaledTrailPct(ind, e.cfg.MinTrailPct, e.cfg.MaxTrailPct) * e.cfg.ExplosiveTightenMult
		e.updateTrailingStop(tp)
		tp.takeProfitPrice = maxMicros(tp.takeProfitPrice, domain.FromFloat(p.EntryPrice.Float()*(1+e.cfg.ExplosiveTakeProfitPct)))
	case domain.TrailMoon:
		tp.trailPct = atrScaledTrailPct(ind, e.cfg.MinTrailPct, e.cfg.MaxTrailPct) * e.cfg.MoonTightenMult
		e.updateTrailingStop(tp)
		tp.takeProfitPrice = maxMicros(tp.takeProfitPrice, domain.FromFloat(p.EntryPrice.Float()*(1+e.cfg.MoonTakeProfitPct)))
	}
}

// stateRank orders states so advanceTo can refuse to regress.
var stateRank = map[domain.TrailState]int{
	domain.TrailInactive:  0,
	domain.TrailBreakeven: 1,
	domain.TrailTrailing:  2,
	domain.TrailExplosive: 3,
	domain.TrailMoon:      4,
}

func (e *Engine) advanceTo(p *domain.Position, target domain.TrailState) {
	if stateRank[target] > stateRank[p.TrailState] {
		p.TrailState = target
	}
}

// updateTrailingStop maintains stopPrice = max(stopPrice, highWaterMark ×
// (1 − trailPct)), the ratchet invariant from spec.md §4.7.
func (e *Engine) updateTrailingStop(tp *trackedPosition) {
	candidate := domain.FromFloat(tp.highWaterMark.Float() * (1 - tp.trailPct))
	e.ratchetStop(tp, candidate)
}

// ratchetStop only ever raises stopPrice; a candidate at or below the
// current stop is ignored without logging.
func (e *Engine) ratchetStop(tp *trackedPosition, candidate domain.Micros) {
	if candidate > tp.position.StopPrice {
		tp.position.StopPrice = candidate
	}
}

func (e *Engine) exit(tp *trackedPosition, reason domain.ExitReason, now time.Time) (domain.ExitIntent, bool) {
	tp.sellInFlight = true
	return domain.ExitIntent{
		PositionID: tp.position.ID,
		Symbol:     tp.position.Symbol,
		Quantity:   tp.position.Quantity,
		Reason:     reason,
		AsOf:       now,
	}, true
}

// ClearInFlight releases the in-flight sell guard, called once the
// executor confirms the sell order reached a terminal state.
func (e *Engine) ClearInFlight(positionID string) {
	e.mu.RLock()
	tp, ok := e.tracked[positionID]
	e.mu.RUnlock()
	if !ok {
		return
	}
	tp.mu.Lock()
	tp.sellInFlight = false
	tp.mu.Unlock()
}

// atrScaledTrailPct derives a trail percentage from ATR relative to the
// SMA (the price reference used here), clamped to [min, max]. ATR and SMA
// share the Micros scale, so atr/sma is already a unitless ratio; a zero
// SMA yields min.
func atrScaledTrailPct(ind domain.IndicatorSet, min, max float64) float64 {
	if ind.SMA == 0 {
		return min
	}
	ratio := ind.ATR.Float() / ind.SMA.Float()
	if ratio < min {
		return min
	}
	if ratio > max {
		return max
	}
	return ratio
}

func maxMicros(a, b domain.Micros) domain.Micros {
	if a > b {
		return a
	}
	return b
}
