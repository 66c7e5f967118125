package signal

import (
	"context"
	"sort"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config tunes the aggregation gate. Zero-value Config is invalid; use
// DefaultConfig.
type Config struct {
	MinAgreeingStrategies int
	MinConfidence         float64
	StrategyTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinAgreeingStrategies: 2,
		MinConfidence:         0.90,
		StrategyTimeout:       2 * time.Second,
	}
}

// agreementBoost mirrors the teacher's calculateOverallConfidence
// consensus-bonus table, reindexed to this system's five agreement
// buckets instead of the teacher's three.
var agreementBoost = map[domain.AgreementLevel]float64{
	domain.AgreementNone:    1.0,
	domain.AgreementLow:     1.0,
	domain.AgreementMedium:  1.1,
	domain.AgreementHigh:    1.2,
	domain.AgreementMaximum: 1.3,
}

// Engine runs the fixed strategy registry against a symbol's features and
// aggregates the verdicts into one composite decision.
type Engine struct {
	strategies []Strategy
	cfg        Config
	log        zerolog.Logger
}

func NewEngine(strategies []Strategy, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{strategies: strategies, cfg: cfg, log: log}
}

// Evaluate runs every registered strategy in parallel (each bounded by
// cfg.StrategyTimeout), then aggregates per spec.md §4.4: agreement-level
// bucketing, weighted-mean confidence with an agreement boost, a
// minimum-agreement/minimum-confidence gate, and an Exit/sentiment-Block
// veto that overrides the gate outright.
func (e *Engine) Evaluate(ctx context.Context, symbol domain.Symbol, quote domain.Quote, bars []domain.Bar, ind domain.IndicatorSet, sentiment domain.SentimentSnapshot) domain.CompositeSignal {
	verdicts := make([]domain.StrategyVerdict, len(e.strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, strat := range e.strategies {
		i, strat := i, strat
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, e.cfg.StrategyTimeout)
			defer cancel()
			verdicts[i] = e.runOne(sctx, strat, symbol, quote, bars, ind, sentiment)
			return nil
		})
	}
	// Strategies never return an error from Evaluate itself, so the only
	// failure mode here would be ctx cancellation upstream; g.Wait()'s
	// error is deliberately ignored — runOne already degraded any
	// per-strategy failure to a Skip verdict.
	_ = g.Wait()

	volumeRatio := volumeRatioOf(bars)
	composite := aggregate(symbol.Ticker, verdicts, sentiment, volumeRatio, e.cfg, time.Now())

	outcome := "reject"
	if composite.Accepted {
		outcome = "accept"
	}
	metrics.RecordSignalEvaluation("composite", outcome, composite.CompositeConf)
	return composite
}

func (e *Engine) runOne(ctx context.Context, strat Strategy, symbol domain.Symbol, quote domain.Quote, bars []domain.Bar, ind domain.IndicatorSet, sentiment domain.SentimentSnapshot) domain.StrategyVerdict {
	done := make(chan domain.StrategyVerdict, 1)
	go func() {
		done <- strat.Evaluate(ctx, symbol, quote, bars, ind, sentiment)
	}()
	select {
	case v := <-done:
		metrics.RecordSignalEvaluation(strat.Name(), string(v.Action), v.Confidence)
		return v
	case <-ctx.Done():
		e.log.Warn().Str("strategy", strat.Name()).Str("symbol", symbol.Ticker).Msg("strategy evaluation timed out, counting as skip")
		return skip(strat.Name(), symbol.Ticker)
	}
}

func volumeRatioOf(bars []domain.Bar) float64 {
	last, ok := lastBar(bars)
	avg, okAvg := smaVolume(bars, 20)
	if !ok || !okAvg || avg == 0 {
		return 0
	}
	return float64(last.Volume) / avg
}

func agreementLevelFor(agree int) domain.AgreementLevel {
	switch {
	case agree >= 4:
		return domain.AgreementMaximum
	case agree == 3:
		return domain.AgreementHigh
	case agree == 2:
		return domain.AgreementMedium
	case agree == 1:
		return domain.AgreementLow
	default:
		return domain.AgreementNone
	}
}

func aggregate(symbol string, verdicts []domain.StrategyVerdict, sentiment domain.SentimentSnapshot, volumeRatio float64, cfg Config, now time.Time) domain.CompositeSignal {
	var agree int
	var weightedSum, weightTotal float64
	for _, v := range verdicts {
		if v.Action == domain.ActionEnter {
			agree++
		}
	}

	level := agreementLevelFor(agree)

	for _, v := range verdicts {
		if v.Action != domain.ActionEnter {
			continue
		}
		w := strategyWeight(v.Strategy)
		weightedSum += v.Confidence * w
		weightTotal += w
	}

	var meanConfidence float64
	if weightTotal > 0 {
		meanConfidence = weightedSum / weightTotal
	}

	composite := meanConfidence * agreementBoost[level]
	if sentiment.Decision == domain.SentimentBoost {
		composite += 0.2
	}
	if composite > 1.0 {
		composite = 1.0
	}

	signal := domain.CompositeSignal{
		Symbol:            symbol,
		Direction:         domain.DirectionLong,
		AgreeingCount:     agree,
		TotalVoters:       len(verdicts),
		AgreementLevel:    level,
		CompositeConf:     composite,
		SentimentScore:    sentiment.Score,
		VolumeRatio:       volumeRatio,
		Verdicts:          verdicts,
		SentimentDecision: sentiment.Decision,
		AsOf:              now,
	}

	vetoed := false
	for _, v := range verdicts {
		if v.Action == domain.ActionExit {
			vetoed = true
			break
		}
	}
	if sentiment.Decision == domain.SentimentBlock {
		vetoed = true
	}

	switch {
	case vetoed:
		signal.Accepted = false
		signal.RejectReason = "vetoed: exit verdict or sentiment block"
	case agree < cfg.MinAgreeingStrategies:
		signal.Accepted = false
		signal.RejectReason = "insufficient agreeing strategies"
	case composite < cfg.MinConfidence:
		signal.Accepted = false
		signal.RejectReason = "composite confidence below threshold"
	default:
		signal.Accepted = true
	}

	if !signal.Accepted {
		signal.Direction = domain.DirectionFlat
	}

	return signal
}

// strategyWeight is a lookup table mirroring the weights the registry was
// constructed with. Kept here (rather than threaded through
// StrategyVerdict) because confidence aggregation only ever runs against
// verdicts produced by this package's own registry.
var strategyWeightTable = map[string]float64{
	"trend-sma":           1.0,
	"momentum-rsi":        1.0,
	"macd":                1.0,
	"volume-surge":        0.8,
	"orb-breakout":        0.8,
	"bollinger-expansion": 0.8,
	"news-sentiment":      0.6,
	"pattern":             0.6,
}

func strategyWeight(name string) float64 {
	if w, ok := strategyWeightTable[name]; ok {
		return w
	}
	return 1.0
}

// RankCandidates orders accepted composite signals by the tie-break rule
// of spec.md §4.4: higher composite confidence first; ties broken by
// higher agreement level, then higher sentiment score, then higher
// volume ratio, then lexicographically by symbol.
func RankCandidates(signals []domain.CompositeSignal) []domain.CompositeSignal {
	ranked := append([]domain.CompositeSignal(nil), signals...)
	levelRank := map[domain.AgreementLevel]int{
		domain.AgreementNone:    0,
		domain.AgreementLow:     1,
		domain.AgreementMedium:  2,
		domain.AgreementHigh:    3,
		domain.AgreementMaximum: 4,
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CompositeConf != b.CompositeConf {
			return a.CompositeConf > b.CompositeConf
		}
		if levelRank[a.AgreementLevel] != levelRank[b.AgreementLevel] {
			return levelRank[a.AgreementLevel] > levelRank[b.AgreementLevel]
		}
		if a.SentimentScore != b.SentimentScore {
			return a.SentimentScore > b.SentimentScore
		}
		if a.VolumeRatio != b.VolumeRatio {
			return a.VolumeRatio > b.VolumeRatio
		}
		return a.Symbol < b.Symbol
	})
	return ranked
}
