// Package signal implements the multi-strategy signal engine: a fixed
// registry of independent strategies, evaluated in parallel, aggregated
// into one composite decision per symbol.
package signal

import (
	"context"

	"github.com/ajitpratap0/ees/internal/domain"
)

// Strategy is the closed interface every concrete strategy implements.
// MomentumRSI, MACDStrategy and BollingerExpansion keep per-symbol history
// from earlier calls in unlocked maps, so concurrent Evaluate calls on one
// of those instances are not safe; the other strategies are pure functions
// of their inputs.
type Strategy interface {
	Name() string
	Weight() float64
	Evaluate(ctx context.Context, symbol domain.Symbol, quote domain.Quote, bars []domain.Bar, ind domain.IndicatorSet, sentiment domain.SentimentSnapshot) domain.StrategyVerdict
}

func skip(strategyName, symbol string) domain.StrategyVerdict {
	return domain.StrategyVerdict{Strategy: strategyName, Symbol: symbol, Action: domain.ActionSkip}
}

func verdict(strategyName, symbol string, action domain.Action, confidence float64, reasoning string) domain.StrategyVerdict {
	return domain.StrategyVerdict{Strategy: strategyName, Symbol: symbol, Action: action, Confidence: clamp01(confidence), Reasoning: reasoning}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
