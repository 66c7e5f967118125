// Package sizing turns an accepted composite signal into a share
// quantity, in the style of the teacher's internal/risk.Calculator: a
// pure, stateless set of functions over explicit inputs rather than a
// service with its own storage.
package sizing

import (
	"math"

	"github.com/ajitpratap0/ees/internal/domain"
)

// Config tunes the sizing formula. Zero-value Config is invalid; use
// DefaultConfig.
type Config struct {
	ReservePct        float64 // fraction of portfolio held back, e.g. 0.20
	MaxPositionPct    float64 // hard cap on any one position, e.g. 0.35
	MinPositionValue  domain.Micros
	SlippageBufferPct float64 // added to quote.ask for maxPrice
}

func DefaultConfig() Config {
	return Config{
		ReservePct:        0.20,
		MaxPositionPct:    0.35,
		MinPositionValue:  domain.FromFloat(50),
		SlippageBufferPct: 0.005,
	}
}

// Inputs bundles everything the sizer needs for one candidate. Owned
// position market values are passed pre-computed (quantity × current
// price) rather than positions + a quote lookup, so the sizer stays a
// pure function of its arguments.
type Inputs struct {
	Account             domain.AccountSnapshot
	OwnedPositionValues []domain.Micros
	Signal              domain.CompositeSignal
	Quote               domain.Quote
	NCandidates         int // other candidate signals pending in this tick, including this one
}

// Result is the sizer's decision: either an OrderIntent to place, or a
// rejection reason.
type Result struct {
	Intent   domain.OrderIntent
	Accepted bool
	Reason   string
}

// Size implements spec.md §4.6's twelve-step formula.
func Size(in Inputs, cfg Config) Result {
	// 1. portfolioValue = cashAvailable + Σ marketValue(ownedPositions)
	portfolioValue := in.Account.CashAvailable
	for _, v := range in.OwnedPositionValues {
		portfolioValue += v
	}

	// 2. tradingCapital = portfolioValue × (1 − reserve)
	tradingCapital := domain.FromFloat(portfolioValue.Float() * (1 - cfg.ReservePct))

	// 3. utilization tiers by concurrent = ownedCount + nCandidates
	concurrent := len(in.OwnedPositionValues) + in.NCandidates
	utilization := utilizationFor(concurrent)

	// 4. fairShare = tradingCapital / max(1, concurrent)
	denom := concurrent
	if denom < 1 {
		denom = 1
	}
	fairShare := domain.FromFloat(tradingCapital.Float() / float64(denom))

	// 5. confidenceMultiplier from signal confidence
	confidence := in.Signal.CompositeConf
	confidenceMultiplier := confidenceMultiplierFor(confidence)

	// 6. agreementBonus from agreement level
	agreementBonus := agreementBonusFor(in.Signal.AgreementLevel)

	// 7. boostedValue = fairShare × utilization × confidenceMultiplier × (1 + agreementBonus)
	boostedValue := domain.FromFloat(fairShare.Float() * utilization * confidenceMultiplier * (1 + agreementBonus))

	// 8. confidenceWeight = clamp(0.5 + (confidence − 0.85)×2.0 + agreementBonus×0.3, 0.7, 1.3)
	confidenceWeight := clamp(0.5+(confidence-0.85)*2.0+agreementBonus*0.3, 0.7, 1.3)

	// 9. confidenceScaledAllocation = fairShare × confidenceWeight
	confidenceScaledAllocation := domain.FromFloat(fairShare.Float() * confidenceWeight)

	// 10. positionValue = min(boostedValue, confidenceScaledAllocation, portfolioValue × maxPositionPct)
	maxSingle := domain.FromFloat(portfolioValue.Float() * cfg.MaxPositionPct)
	positionValue := minMicros(boostedValue, confidenceScaledAllocation, maxSingle)

	// 11. quantity = floor(positionValue / quote.ask)
	if in.Quote.Ask <= 0 {
		return Result{Accepted: false, Reason: "quote ask price is non-positive"}
	}
	quantity := int(math.Floor(positionValue.Float() / in.Quote.Ask.Float()))

	// 12. reject if positionValue < minPositionValue OR quantity == 0
	if positionValue < cfg.MinPositionValue || quantity == 0 {
		return Result{Accepted: false, Reason: "position value below minimum or quantity rounds to zero"}
	}

	// Invariant check: after hypothetical fill, Σ exposure ≤ tradingCapital.
	existingExposure := domain.Micros(0)
	for _, v := range in.OwnedPositionValues {
		existingExposure += v
	}
	entryCost := domain.FromFloat(float64(quantity) * in.Quote.Ask.Float())
	if existingExposure+entryCost > tradingCapital {
		room := tradingCapital - existingExposure
		if room <= 0 {
			return Result{Accepted: false, Reason: "no remaining trading capital after existing exposure"}
		}
		quantity = int(math.Floor(room.Float() / in.Quote.Ask.Float()))
		if quantity == 0 {
			return Result{Accepted: false, Reason: "quantity shrank to zero enforcing exposure invariant"}
		}
	}

	maxPrice := domain.FromFloat(in.Quote.Ask.Float() * (1 + cfg.SlippageBufferPct))

	return Result{
		Accepted: true,
		Intent: domain.OrderIntent{
			Symbol:   in.Signal.Symbol,
			Side:     domain.OrderSideBuy,
			Quantity: quantity,
			MaxPrice: maxPrice,
			AsOf:     in.Signal.AsOf,
		},
	}
}

func utilizationFor(concurrent int) float64 {
	switch {
	case concurrent <= 5:
		return 0.90
	case concurrent <= 10:
		return 0.80
	default:
		return 0.70
	}
}

func confidenceMultiplierFor(confidence float64) float64 {
	switch {
	case confidence >= 0.995:
		return 2.5
	case confidence >= 0.99:
		return 2.5
	case confidence >= 0.975:
		return 2.0
	case confidence >= 0.95:
		return 1.0
	default:
		return 1.0
	}
}

func agreementBonusFor(level domain.AgreementLevel) float64 {
	switch level {
	case domain.AgreementMaximum:
		return 1.00
	case domain.AgreementHigh:
		return 0.50
	case domain.AgreementMedium:
		return 0.25
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minMicros(values ...domain.Micros) domain.Micros {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
