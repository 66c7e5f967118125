// Package sentiment implements the bull/bear-aware sentiment filter:
// news aggregation, a lexicon polarity scorer, and the Block/Boost/Neutral
// decision the signal engine gates on.
package sentiment

import (
	"context"
	"math"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/rs/zerolog"
)

// NewsItem is one syndicated headline/body pair from a configured source.
type NewsItem struct {
	Symbol    string
	Headline  string
	Body      string
	Source    string
	Timestamp time.Time
}

// NewsSource fetches recent news for a symbol. broker.Client satisfies
// this via its GetNews method once adapted at the wiring site.
type NewsSource interface {
	Name() string
	Reliability() float64
	GetNews(ctx context.Context, symbol string) ([]NewsItem, error)
}

// Config tunes the filter's thresholds, all overridable per spec §4.5.
type Config struct {
	LookbackHours      float64
	PreMarketLookback  float64
	BlockThreshold     float64
	BoostThreshold     float64
	MinConfidence      float64
	CacheTTL           time.Duration
}

// DefaultConfig matches spec.md §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		LookbackHours:     24,
		PreMarketLookback: 30,
		BlockThreshold:    0.3,
		BoostThreshold:    0.3,
		MinConfidence:     0.6,
		CacheTTL:          900 * time.Second,
	}
}

// Filter aggregates news across sources, scores polarity, and emits a
// direction-aware decision per symbol.
type Filter struct {
	cfg     Config
	sources []NewsSource
	scorer  PolarityScorer
	cache   Cache
	log     zerolog.Logger
}

// Cache is the narrow interface the filter needs from a per-underlying
// sentiment cache; internal/market.TieredCache satisfies the read/write
// shape, wrapped by the caller at wiring time.
type Cache interface {
	Get(ctx context.Context, key string, out interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// NewFilter constructs a sentiment filter over sources.
func NewFilter(cfg Config, sources []NewsSource, scorer PolarityScorer, cache Cache, log zerolog.Logger) *Filter {
	return &Filter{cfg: cfg, sources: sources, scorer: scorer, cache: cache, log: log}
}

func cacheKey(underlying string) string { return "sentiment:" + underlying }

// Evaluate produces the SentimentSnapshot for symbol, whose ETF polarity
// (bull/bear/neutral) is symbol.Sentiment.
func (f *Filter) Evaluate(ctx context.Context, symbol domain.Symbol, preMarket bool) domain.SentimentSnapshot {
	var cached domain.SentimentSnapshot
	if f.cache != nil && f.cache.Get(ctx, cacheKey(symbol.Ticker), &cached) {
		return cached
	}

	lookback := f.cfg.LookbackHours
	if preMarket {
		lookback = f.cfg.PreMarketLookback
	}
	cutoff := time.Now().Add(-time.Duration(lookback * float64(time.Hour)))

	var scored []scoredItem
	for _, src := range f.sources {
		items, err := src.GetNews(ctx, symbol.Ticker)
		if err != nil {
			f.log.Warn().Err(err).Str("source", src.Name()).Str("symbol", symbol.Ticker).Msg("news source failed, degrading to neutral contribution")
			continue
		}
		for _, item := range items {
			if item.Timestamp.Before(cutoff) {
				continue
			}
			polarity, itemConfidence := f.scorer.Score(item.Headline + " " + item.Body)
			scored = append(scored, scoredItem{
				polarity:   polarity,
				confidence: itemConfidence,
				weight:     src.Reliability() * recencyDecay(item.Timestamp),
			})
		}
	}

	snapshot := aggregate(symbol, scored, f.cfg)
	if f.cache != nil {
		f.cache.Set(ctx, cacheKey(symbol.Ticker), snapshot, f.cfg.CacheTTL)
	}
	return snapshot
}

type scoredItem struct {
	polarity   float64
	confidence float64
	weight     float64
}

// recencyDecay halves an item's contribution every 12 hours, so stale
// news fades without vanishing outright.
func recencyDecay(t time.Time) float64 {
	age := time.Since(t).Hours()
	return math.Exp(-age / 12.0 * math.Ln2)
}

func aggregate(symbol domain.Symbol, items []scoredItem, cfg Config) domain.SentimentSnapshot {
	snapshot := domain.SentimentSnapshot{
		Symbol:     symbol.Ticker,
		AsOf:       time.Now(),
		SourceHits: len(items),
	}
	if len(items) == 0 {
		snapshot.Decision = domain.SentimentNeutral
		return snapshot
	}

	var weightedSum, weightSum float64
	for _, it := range items {
		weightedSum += it.polarity * it.weight
		weightSum += it.weight
	}
	if weightSum > 0 {
		snapshot.Score = weightedSum / weightSum
	}

	confidence := confidenceFromAgreement(items)
	snapshot.Decision = decide(symbol, snapshot.Score, confidence, cfg)
	snapshot.Polarity = domain.PolarityBull
	if snapshot.Score < 0 {
		snapshot.Polarity = domain.PolarityBear
	}
	return snapshot
}

// confidenceFromAgreement grows with the number of scored items (up to
// five) and shrinks when their polarity disagrees.
func confidenceFromAgreement(items []scoredItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var mean float64
	for _, it := range items {
		mean += it.polarity
	}
	mean /= float64(len(items))

	var variance float64
	for _, it := range items {
		d := it.polarity - mean
		variance += d * d
	}
	variance /= float64(len(items))
	agreement := 1.0 - math.Min(1.0, variance)

	sourceCountFactor := math.Min(1.0, float64(len(items))/5.0)
	confidence := 0.5*agreement + 0.5*sourceCountFactor
	return clamp(confidence, 0, 1)
}

func decide(symbol domain.Symbol, score, confidence float64, cfg Config) domain.SentimentDecision {
	aligned := polarityAligned(symbol.Sentiment, score)

	if math.Abs(score) >= cfg.BlockThreshold && !aligned {
		return domain.SentimentBlock
	}
	if aligned && math.Abs(score) >= cfg.BoostThreshold && confidence >= cfg.MinConfidence {
		return domain.SentimentBoost
	}
	return domain.SentimentNeutral
}

func polarityAligned(etfSentiment string, score float64) bool {
	switch etfSentiment {
	case string(domain.PolarityBull):
		return score > 0
	case string(domain.PolarityBear):
		return score < 0
	default:
		return true
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
