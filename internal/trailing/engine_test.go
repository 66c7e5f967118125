package trailing

import (
	"testing"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), zerolog.Nop())
}

func samplePosition(entry float64) domain.Position {
	return domain.Position{
		ID:         "pos-1",
		Symbol:     "AAPL",
		Quantity:   10,
		EntryPrice: domain.FromFloat(entry),
		OpenedAt:   time.Now(),
	}
}

func TestEngine_Register_SetsInactiveStop(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, domain.TrailInactive, positions[0].TrailState)
	assert.InDelta(t, 98.0, positions[0].StopPrice.Float(), 0.01)
}

func TestEngine_Tick_HardStopFiresBelowStopPrice(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))

	intent, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(97)}, domain.IndicatorSet{}, 0, time.Now())
	require.True(t, exited)
	assert.Equal(t, domain.ExitStopHit, intent.Reason)
}

func TestEngine_Tick_AdvancesToTrailingAndRatchetsStopUp(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))

	ind := domain.IndicatorSet{ATR: domain.FromFloat(1), SMA: domain.FromFloat(100), RSI: 60, MACDHistogram: 0.1}
	_, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(102)}, ind, 0, time.Now())
	require.False(t, exited)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, domain.TrailTrailing, positions[0].TrailState)
	assert.Greater(t, positions[0].StopPrice.Float(), 98.0)
}

func TestEngine_Tick_StopNeverRegressesOnPullback(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))
	ind := domain.IndicatorSet{ATR: domain.FromFloat(1), SMA: domain.FromFloat(100), RSI: 60, MACDHistogram: 0.1}

	_, _ = e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(110)}, ind, 0, time.Now())
	stopAfterRun := e.Positions()[0].StopPrice

	// Price pulls back but stays above the stop; the ratcheted stop must
	// not fall even though highWaterMark-based trailing would otherwise
	// compute a lower candidate.
	_, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(105)}, ind, 0, time.Now())
	require.False(t, exited)
	assert.GreaterOrEqual(t, e.Positions()[0].StopPrice, stopAfterRun)
}

func TestEngine_Tick_MomentumExitOnlyAfterTrailingEngaged(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))

	// Still Inactive: low RSI should not trigger a momentum exit.
	_, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(100.2)}, domain.IndicatorSet{RSI: 30}, 0, time.Now())
	assert.False(t, exited)
}

func TestEngine_Tick_MomentumExitFiresOnceTrailing(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))
	ind := domain.IndicatorSet{ATR: domain.FromFloat(1), SMA: domain.FromFloat(100), RSI: 60, MACDHistogram: 0.1}
	_, _ = e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(102)}, ind, 0, time.Now())

	ind.RSI = 40
	intent, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(103)}, ind, 0, time.Now())
	require.True(t, exited)
	assert.Equal(t, domain.ExitMomentumExit, intent.Reason)
}

func TestEngine_Tick_TimeStopFiresAfterMaxHoldingDuration(t *testing.T) {
	e := newTestEngine()
	pos := samplePosition(100)
	pos.OpenedAt = time.Now().Add(-5 * time.Hour)
	e.Register(pos)

	intent, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(100.1)}, domain.IndicatorSet{RSI: 60}, 0, time.Now())
	require.True(t, exited)
	assert.Equal(t, domain.ExitTimeExit, intent.Reason)
}

func TestEngine_Tick_SkipsWhenSellInFlight(t *testing.T) {
	e := newTestEngine()
	e.Register(samplePosition(100))

	_, exited := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(97)}, domain.IndicatorSet{}, 0, time.Now())
	require.True(t, exited)

	_, exitedAgain := e.Tick("pos-1", domain.Quote{Last: domain.FromFloat(90)}, domain.IndicatorSet{}, 0, time.Now())
	assert.False(t, exitedAgain, "idempotent: a sell already in flight should suppress a second exit")
}
