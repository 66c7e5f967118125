// Package session implements the market-phase scheduler: the top-level
// loop that advances a trading day through DARK -> PREP -> OPEN ->
// COOLDOWN and drives the scan/position cadences while OPEN.
//
// Grounded on the teacher's internal/agents/base.go Run ticker loop
// (select over a ticker channel plus ctx.Done) and
// internal/orchestrator/consensus.go's bounded-concurrency guard,
// generalized here to a pair of atomic.Bool coalescing flags (one per
// cadence) instead of a semaphore, since at most one scan and one
// position tick are ever in flight at a time.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/events"
	"github.com/rs/zerolog"
)

// Config tunes phase boundaries and tick cadences. Times-of-day are
// expressed as a duration since local midnight in ExchangeTimezone.
type Config struct {
	ExchangeTimezone string

	PrepTime     time.Duration
	OpenTime     time.Duration
	CooldownTime time.Duration
	DarkTime     time.Duration

	ScanInterval     time.Duration
	PositionInterval time.Duration

	DarkHeartbeat    time.Duration
	HolidayHeartbeat time.Duration

	EvaluateEvery time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExchangeTimezone: "America/New_York",
		PrepTime:         4 * time.Hour,
		OpenTime:         9*time.Hour + 30*time.Minute,
		CooldownTime:     16 * time.Hour,
		DarkTime:         20 * time.Hour,
		ScanInterval:     120 * time.Second,
		PositionInterval: 60 * time.Second,
		DarkHeartbeat:    60 * time.Second,
		HolidayHeartbeat: time.Hour,
		EvaluateEvery:    time.Second,
	}
}

// Callbacks are invoked by the scheduler at the relevant phase/cadence
// boundary. Any nil callback is simply skipped.
type Callbacks struct {
	OnPhaseEnter   func(ctx context.Context, phase domain.SessionPhase)
	OnScanTick     func(ctx context.Context) domain.ScanTickResult
	OnPositionTick func(ctx context.Context)
	OnEndOfDay     func(ctx context.Context) domain.EndOfDaySummary

	// FatalCheck is polled once per evaluation tick. It reports whether a
	// fatal condition (clock skew, unrecoverable auth) requires the loop
	// itself to halt rather than just the current cycle's trade
	// placement, and a human-readable reason for the FatalError event.
	// Only clock skew and unrecoverable auth are spec'd to ever halt the
	// loop outright; everything else is absorbed locally.
	FatalCheck func() (bool, string)
}

// Scheduler owns SessionState for the lifetime of the process.
type Scheduler struct {
	cfg       Config
	loc       *time.Location
	holidays  HolidayCalendar
	store     StateStore
	callbacks Callbacks
	bus       *events.Bus
	log       zerolog.Logger

	mu            sync.RWMutex
	state         domain.SessionState
	lastHeartbeat time.Time

	scanInFlight atomic.Bool
	posInFlight  atomic.Bool
}

func NewScheduler(cfg Config, holidays HolidayCalendar, store StateStore, callbacks Callbacks, bus *events.Bus, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.ExchangeTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange timezone %q: %w", cfg.ExchangeTimezone, err)
	}
	return &Scheduler{
		cfg:       cfg,
		loc:       loc,
		holidays:  holidays,
		store:     store,
		callbacks: callbacks,
		bus:       bus,
		log:       log,
	}, nil
}

// State returns a snapshot of the current session state.
func (s *Scheduler) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run blocks, driving the scheduler until ctx is cancelled. It restores
// persisted state at startup (falling back to a fresh DARK state), then
// evaluates phase transitions at cfg.EvaluateEvery resolution, starting
// and stopping the OPEN-phase scan/position tickers as phase changes.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		return err
	}

	evalTicker := time.NewTicker(s.cfg.EvaluateEvery)
	defer evalTicker.Stop()

	var scanTicker, posTicker *time.Ticker
	var scanC, posC <-chan time.Time
	startOpenTickers := func() {
		scanTicker = time.NewTicker(s.cfg.ScanInterval)
		posTicker = time.NewTicker(s.cfg.PositionInterval)
		scanC, posC = scanTicker.C, posTicker.C
	}
	stopOpenTickers := func() {
		if scanTicker != nil {
			scanTicker.Stop()
			scanTicker, scanC = nil, nil
		}
		if posTicker != nil {
			posTicker.Stop()
			posTicker, posC = nil, nil
		}
	}

	if s.State().Phase == domain.PhaseOpen {
		startOpenTickers()
	}
	defer stopOpenTickers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-evalTicker.C:
			if fatal, reason := s.checkFatal(); fatal {
				s.emitFatal(reason)
				return fmt.Errorf("fatal: %s", reason)
			}

			changed, phase := s.evaluateTransition(now)
			s.maybeHeartbeat(now)
			if !changed {
				continue
			}
			if phase == domain.PhaseOpen {
				startOpenTickers()
			} else {
				stopOpenTickers()
			}
			s.onPhaseEnter(ctx, phase)
			if err := s.persist(ctx); err != nil {
				s.log.Warn().Err(err).Msg("failed to persist session state after phase change")
			}
			if phase == domain.PhaseCooldown {
				s.emitEndOfDay(ctx)
			}

		case <-scanC:
			s.runScanTick(ctx)

		case <-posC:
			s.runPositionTick(ctx)
		}
	}
}

// checkFatal polls the FatalCheck callback, if any was wired.
func (s *Scheduler) checkFatal() (bool, string) {
	if s.callbacks.FatalCheck == nil {
		return false, ""
	}
	return s.callbacks.FatalCheck()
}

// emitFatal logs and publishes the FatalError event before Run unwinds.
// Only clock skew and unrecoverable auth ever reach here (spec §4.1):
// every other failure is absorbed at its own component boundary and the
// trading day continues.
func (s *Scheduler) emitFatal(reason string) {
	s.log.Error().Str("reason", reason).Msg("fatal condition, halting session loop")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Kind:      events.KindSystemError,
			Severity:  events.SeverityCritical,
			Message:   reason,
			Timestamp: time.Now(),
		})
	}
}

func (s *Scheduler) restore(ctx context.Context) error {
	loaded, ok, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.state = loaded
		s.log.Info().Str("phase", string(loaded.Phase)).Str("tradingDate", loaded.TradingDate).Msg("restored session state")
		return nil
	}
	now := time.Now()
	s.state = domain.SessionState{
		Phase:          domain.PhaseDark,
		PhaseEnteredAt: now,
		TradingDate:    now.In(s.loc).Format("2006-01-02"),
	}
	return nil
}

func (s *Scheduler) persist(ctx context.Context) error {
	return s.store.Save(ctx, s.State())
}

// evaluateTransition computes the phase that now/current-state imply and,
// if it differs from the tracked phase, commits the move.
func (s *Scheduler) evaluateTransition(now time.Time) (bool, domain.SessionPhase) {
	local := now.In(s.loc)
	businessDay := s.holidays.IsBusinessDay(local)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := targetPhase(s.cfg, local, businessDay, s.state.Phase)
	if target == s.state.Phase {
		return false, target
	}
	s.state.Phase = target
	s.state.PhaseEnteredAt = now
	s.state.TradingDate = local.Format("2006-01-02")
	return true, target
}

// targetPhase is the pure phase-transition function: given the wall-clock
// time-of-day, whether today is a business day, and the current phase, it
// returns the phase the scheduler should be in. On a non-business day the
// scheduler never leaves DARK.
func targetPhase(cfg Config, local time.Time, businessDay bool, current domain.SessionPhase) domain.SessionPhase {
	tod := timeOfDay(local)

	switch current {
	case domain.PhaseDark:
		if businessDay && tod >= cfg.PrepTime && tod < cfg.CooldownTime {
			return domain.PhasePrep
		}
		return domain.PhaseDark
	case domain.PhasePrep:
		if tod >= cfg.OpenTime {
			return domain.PhaseOpen
		}
		return domain.PhasePrep
	case domain.PhaseOpen:
		if tod >= cfg.CooldownTime {
			return domain.PhaseCooldown
		}
		return domain.PhaseOpen
	case domain.PhaseCooldown:
		if tod >= cfg.DarkTime || tod < cfg.PrepTime {
			return domain.PhaseDark
		}
		return domain.PhaseCooldown
	default:
		return domain.PhaseDark
	}
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func (s *Scheduler) onPhaseEnter(ctx context.Context, phase domain.SessionPhase) {
	s.log.Info().Str("phase", string(phase)).Msg("session phase changed")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Kind:      events.KindSessionPhaseChanged,
			Severity:  events.SeverityInfo,
			Message:   fmt.Sprintf("session entered %s", phase),
			Timestamp: time.Now(),
		})
	}
	if s.callbacks.OnPhaseEnter != nil {
		s.callbacks.OnPhaseEnter(ctx, phase)
	}
}

// maybeHeartbeat logs a DARK-phase heartbeat at cfg.DarkHeartbeat on
// business days, or cfg.HolidayHeartbeat on weekends/holidays — spec's
// "one heartbeat per hour" on non-business days.
func (s *Scheduler) maybeHeartbeat(now time.Time) {
	s.mu.RLock()
	phase := s.state.Phase
	last := s.lastHeartbeat
	s.mu.RUnlock()
	if phase != domain.PhaseDark {
		return
	}

	interval := s.cfg.DarkHeartbeat
	if !s.holidays.IsBusinessDay(now.In(s.loc)) {
		interval = s.cfg.HolidayHeartbeat
	}
	if now.Sub(last) < interval {
		return
	}

	s.mu.Lock()
	s.lastHeartbeat = now
	s.mu.Unlock()
	s.log.Debug().Msg("dark-phase heartbeat")
}

// runScanTick runs the watchlist scan/score cadence, coalescing: if the
// previous scan tick is still running when the next one fires, the new
// one is skipped rather than queued.
func (s *Scheduler) runScanTick(ctx context.Context) {
	if !s.scanInFlight.CompareAndSwap(false, true) {
		s.log.Warn().Msg("scan tick skipped: previous tick still in flight")
		return
	}
	defer s.scanInFlight.Store(false)

	if s.callbacks.OnScanTick == nil {
		return
	}
	result := s.callbacks.OnScanTick(ctx)

	s.mu.Lock()
	s.state.LastScanTick = time.Now()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Kind:      events.KindScanTickCompleted,
			Severity:  events.SeverityInfo,
			Message:   fmt.Sprintf("scanned %d symbols, %d accepted, %d rejected", result.SymbolsScanned, result.SignalsAccepted, result.SignalsRejected),
			Timestamp: time.Now(),
		})
	}
	if err := s.persist(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist session state after scan tick")
	}
}

// runPositionTick runs the position-refresh cadence with the same
// coalescing guard as runScanTick.
func (s *Scheduler) runPositionTick(ctx context.Context) {
	if !s.posInFlight.CompareAndSwap(false, true) {
		s.log.Warn().Msg("position tick skipped: previous tick still in flight")
		return
	}
	defer s.posInFlight.Store(false)

	if s.callbacks.OnPositionTick != nil {
		s.callbacks.OnPositionTick(ctx)
	}

	s.mu.Lock()
	s.state.LastPosTick = time.Now()
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist session state after position tick")
	}
}

func (s *Scheduler) emitEndOfDay(ctx context.Context) {
	var summary domain.EndOfDaySummary
	if s.callbacks.OnEndOfDay != nil {
		summary = s.callbacks.OnEndOfDay(ctx)
	}
	s.log.Info().
		Str("tradingDate", summary.TradingDate).
		Int("opened", summary.TradesOpened).
		Int("closed", summary.TradesClosed).
		Msg("end-of-day summary")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Kind:      events.KindEndOfDaySummary,
			Severity:  events.SeverityInfo,
			Message:   fmt.Sprintf("%d opened, %d closed, win rate %.1f%%", summary.TradesOpened, summary.TradesClosed, summary.WinRate*100),
			Timestamp: time.Now(),
		})
	}
}
