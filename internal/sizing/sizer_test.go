package sizing

import (
	"testing"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize_AcceptsWithinCapitalLimits(t *testing.T) {
	in := Inputs{
		Account:     domain.AccountSnapshot{CashAvailable: domain.FromFloat(100_000)},
		Signal:      domain.CompositeSignal{Symbol: "AAPL", CompositeConf: 0.96, AgreementLevel: domain.AgreementHigh},
		Quote:       domain.Quote{Symbol: "AAPL", Ask: domain.FromFloat(150)},
		NCandidates: 1,
	}
	res := Size(in, DefaultConfig())
	require.True(t, res.Accepted)
	assert.Greater(t, res.Intent.Quantity, 0)
	assert.Equal(t, domain.OrderSideBuy, res.Intent.Side)
	assert.Greater(t, res.Intent.MaxPrice, in.Quote.Ask)
}

func TestSize_RejectsWhenBelowMinimumPositionValue(t *testing.T) {
	in := Inputs{
		Account:     domain.AccountSnapshot{CashAvailable: domain.FromFloat(100)},
		Signal:      domain.CompositeSignal{Symbol: "AAPL", CompositeConf: 0.91, AgreementLevel: domain.AgreementLow},
		Quote:       domain.Quote{Symbol: "AAPL", Ask: domain.FromFloat(150)},
		NCandidates: 20,
	}
	res := Size(in, DefaultConfig())
	assert.False(t, res.Accepted)
}

func TestSize_RejectsOnNonPositiveAsk(t *testing.T) {
	in := Inputs{
		Account: domain.AccountSnapshot{CashAvailable: domain.FromFloat(100_000)},
		Signal:  domain.CompositeSignal{Symbol: "AAPL", CompositeConf: 0.96},
		Quote:   domain.Quote{Symbol: "AAPL", Ask: 0},
	}
	res := Size(in, DefaultConfig())
	assert.False(t, res.Accepted)
}

func TestSize_ShrinksQuantityToRespectExposureInvariant(t *testing.T) {
	in := Inputs{
		Account:             domain.AccountSnapshot{CashAvailable: domain.FromFloat(10_000)},
		OwnedPositionValues: []domain.Micros{domain.FromFloat(7_000)},
		Signal:              domain.CompositeSignal{Symbol: "AAPL", CompositeConf: 0.999, AgreementLevel: domain.AgreementMaximum},
		Quote:               domain.Quote{Symbol: "AAPL", Ask: domain.FromFloat(10)},
		NCandidates:         1,
	}
	cfg := DefaultConfig()
	res := Size(in, cfg)
	if res.Accepted {
		portfolioValue := in.Account.CashAvailable + domain.FromFloat(7_000)
		tradingCapital := domain.FromFloat(portfolioValue.Float() * (1 - cfg.ReservePct))
		entryCost := domain.FromFloat(float64(res.Intent.Quantity) * in.Quote.Ask.Float())
		assert.LessOrEqual(t, (domain.FromFloat(7_000) + entryCost).Float(), tradingCapital.Float()+0.01)
	}
}

func TestUtilizationFor_Tiers(t *testing.T) {
	assert.Equal(t, 0.90, utilizationFor(3))
	assert.Equal(t, 0.80, utilizationFor(8))
	assert.Equal(t, 0.70, utilizationFor(15))
}

func TestConfidenceMultiplierFor_Tiers(t *testing.T) {
	assert.Equal(t, 2.5, confidenceMultiplierFor(0.996))
	assert.Equal(t, 2.0, confidenceMultiplierFor(0.976))
	assert.Equal(t, 1.0, confidenceMultiplierFor(0.96))
	assert.Equal(t, 1.0, confidenceMultiplierFor(0.5))
}
