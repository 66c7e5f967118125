package sentiment

import (
	"strings"
)

// PolarityScorer scores free text, returning polarity in [-1, 1] and a
// confidence in [0, 1] for that single item.
type PolarityScorer interface {
	Score(text string) (polarity, confidence float64)
}

// LexiconScorer is a small rule-based polarity scorer: it counts bullish
// and bearish term hits and normalizes by total hits, the same bounded,
// keyword-driven normalization idiom the teacher uses to map arbitrary
// strings onto a fixed small vocabulary (NormalizeExchangeError et al. in
// internal/metrics/metrics.go), applied here to a continuous score
// instead of an enum.
type LexiconScorer struct {
	bullish map[string]float64
	bearish map[string]float64
}

// NewLexiconScorer builds a scorer over a fixed financial-news lexicon.
// Weights are hand-tuned per term strength (e.g. "surge" outweighs "gain").
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		bullish: map[string]float64{
			"surge": 1.0, "soar": 1.0, "rally": 0.9, "beat": 0.8, "upgrade": 0.8,
			"record high": 0.9, "outperform": 0.7, "breakout": 0.7, "gain": 0.5,
			"rise": 0.4, "growth": 0.4, "bullish": 0.9, "strong": 0.4, "exceed": 0.6,
		},
		bearish: map[string]float64{
			"plunge": 1.0, "crash": 1.0, "selloff": 0.9, "miss": 0.8, "downgrade": 0.8,
			"record low": 0.9, "underperform": 0.7, "breakdown": 0.7, "loss": 0.5,
			"fall": 0.4, "decline": 0.4, "bearish": 0.9, "weak": 0.4, "warn": 0.5,
			"recall": 0.6, "lawsuit": 0.6, "investigation": 0.6,
		},
	}
}

// Score implements PolarityScorer.
func (s *LexiconScorer) Score(text string) (float64, float64) {
	lower := strings.ToLower(text)

	var bullHits, bearHits float64
	var bullCount, bearCount int
	for term, weight := range s.bullish {
		if strings.Contains(lower, term) {
			bullHits += weight
			bullCount++
		}
	}
	for term, weight := range s.bearish {
		if strings.Contains(lower, term) {
			bearHits += weight
			bearCount++
		}
	}

	total := bullHits + bearHits
	if total == 0 {
		return 0, 0
	}

	polarity := (bullHits - bearHits) / total
	confidence := minFloat(1.0, float64(bullCount+bearCount)/4.0)
	return polarity, confidence
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
