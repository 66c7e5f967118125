package signal

import (
	"context"

	"github.com/ajitpratap0/ees/internal/domain"
)

// TrendSMA enters when price is above an ascending stack of moving
// averages (close > sma20 > sma50 > sma200), confidence scaled by how far
// price has extended past the longest average.
type TrendSMA struct{ weight float64 }

func NewTrendSMA(weight float64) *TrendSMA { return &TrendSMA{weight: weight} }
func (s *TrendSMA) Name() string           { return "trend-sma" }
func (s *TrendSMA) Weight() float64        { return s.weight }

func (s *TrendSMA) Evaluate(_ context.Context, symbol domain.Symbol, quote domain.Quote, bars []domain.Bar, ind domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	sma20, ok20 := sma(bars, 20)
	sma50, ok50 := sma(bars, 50)
	sma200, ok200 := sma(bars, 200)
	if !ok20 || !ok50 || !ok200 {
		return skip(s.Name(), symbol.Ticker)
	}
	close := quote.Last.Float()
	if !(close > sma20 && sma20 > sma50 && sma50 > sma200) {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "trend stack not aligned")
	}
	distance := (close - sma200) / sma200
	confidence := clamp01(distance * 5)
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, confidence, "close above ascending sma20/50/200 stack")
}

// MomentumRSI enters when RSI14 is in the [55, 85] band and still rising.
type MomentumRSI struct {
	weight   float64
	previous map[string]float64
}

func NewMomentumRSI(weight float64) *MomentumRSI {
	return &MomentumRSI{weight: weight, previous: make(map[string]float64)}
}
func (s *MomentumRSI) Name() string    { return "momentum-rsi" }
func (s *MomentumRSI) Weight() float64 { return s.weight }

func (s *MomentumRSI) Evaluate(_ context.Context, symbol domain.Symbol, _ domain.Quote, _ []domain.Bar, ind domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	rsi := ind.RSI
	prev, seen := s.previous[symbol.Ticker]
	s.previous[symbol.Ticker] = rsi
	if rsi < 55 || rsi > 85 {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "rsi14 outside [55,85]")
	}
	if seen && rsi <= prev {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "rsi14 not rising")
	}
	confidence := clamp01((rsi - 55) / 30)
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, confidence, "rsi14 in bullish band and rising")
}

// MACDStrategy enters on a bullish MACD/signal cross with a widening
// histogram.
type MACDStrategy struct {
	weight   float64
	prevHist map[string]float64
}

func NewMACDStrategy(weight float64) *MACDStrategy {
	return &MACDStrategy{weight: weight, prevHist: make(map[string]float64)}
}
func (s *MACDStrategy) Name() string    { return "macd" }
func (s *MACDStrategy) Weight() float64 { return s.weight }

func (s *MACDStrategy) Evaluate(_ context.Context, symbol domain.Symbol, _ domain.Quote, _ []domain.Bar, ind domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	prev, seen := s.prevHist[symbol.Ticker]
	s.prevHist[symbol.Ticker] = ind.MACDHistogram
	if !(ind.MACD > ind.MACDSignal && ind.MACDHistogram > 0) {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "macd below signal or histogram non-positive")
	}
	if seen && ind.MACDHistogram <= prev {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "macd histogram not increasing")
	}
	confidence := clamp01(ind.MACDHistogram * 10)
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, confidence, "macd above signal with widening positive histogram")
}

// VolumeSurge enters when volume is running well above its 20-bar
// average on a bullish candle.
type VolumeSurge struct{ weight float64 }

func NewVolumeSurge(weight float64) *VolumeSurge { return &VolumeSurge{weight: weight} }
func (s *VolumeSurge) Name() string              { return "volume-surge" }
func (s *VolumeSurge) Weight() float64           { return s.weight }

func (s *VolumeSurge) Evaluate(_ context.Context, symbol domain.Symbol, _ domain.Quote, bars []domain.Bar, _ domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	last, ok := lastBar(bars)
	avgVol, okAvg := smaVolume(bars, 20)
	if !ok || !okAvg || avgVol == 0 {
		return skip(s.Name(), symbol.Ticker)
	}
	ratio := float64(last.Volume) / avgVol
	if ratio < 1.5 || !bullishCandle(last) {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "volume ratio below 1.5x or candle not bullish")
	}
	confidence := clamp01((ratio - 1.5) / 2.0)
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, confidence, "volume surge on bullish candle")
}

// ORBBreakout enters when price closes above the opening range high.
type ORBBreakout struct{ weight float64 }

func NewORBBreakout(weight float64) *ORBBreakout { return &ORBBreakout{weight: weight} }
func (s *ORBBreakout) Name() string              { return "orb-breakout" }
func (s *ORBBreakout) Weight() float64           { return s.weight }

func (s *ORBBreakout) Evaluate(_ context.Context, symbol domain.Symbol, quote domain.Quote, bars []domain.Bar, _ domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	orHigh, ok := openingRangeHigh(bars)
	if !ok || orHigh == 0 {
		return skip(s.Name(), symbol.Ticker)
	}
	if quote.Last <= orHigh {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "close at or below opening range high")
	}
	pctAbove := (quote.Last.Float() - orHigh.Float()) / orHigh.Float()
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, clamp01(pctAbove*20), "close above opening range breakout level")
}

// BollingerExpansion enters when the bands have widened past their
// rolling median and price sits above the midline.
type BollingerExpansion struct {
	weight    float64
	widthHist map[string][]float64
}

func NewBollingerExpansion(weight float64) *BollingerExpansion {
	return &BollingerExpansion{weight: weight, widthHist: make(map[string][]float64)}
}
func (s *BollingerExpansion) Name() string    { return "bollinger-expansion" }
func (s *BollingerExpansion) Weight() float64 { return s.weight }

func (s *BollingerExpansion) Evaluate(_ context.Context, symbol domain.Symbol, quote domain.Quote, _ []domain.Bar, ind domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	if ind.BollingerMiddle == 0 {
		return skip(s.Name(), symbol.Ticker)
	}
	width := (ind.BollingerUpper - ind.BollingerLower).Float() / ind.BollingerMiddle.Float()

	hist := s.widthHist[symbol.Ticker]
	hist = append(hist, width)
	if len(hist) > 20 {
		hist = hist[len(hist)-20:]
	}
	s.widthHist[symbol.Ticker] = hist

	median := medianOf(hist)
	if median == 0 || width < median*1.2 || quote.Last <= ind.BollingerMiddle {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "bands not expanding past rolling median or price below midline")
	}
	confidence := clamp01((width/median - 1.2) * 2)
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, confidence, "band width expansion with price above midline")
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// NewsSentiment enters when the sentiment filter's decision is Boost and
// direction-aligned (the filter has already done the alignment check, so
// Boost implies alignment).
type NewsSentiment struct{ weight float64 }

func NewNewsSentiment(weight float64) *NewsSentiment { return &NewsSentiment{weight: weight} }
func (s *NewsSentiment) Name() string                { return "news-sentiment" }
func (s *NewsSentiment) Weight() float64             { return s.weight }

func (s *NewsSentiment) Evaluate(_ context.Context, symbol domain.Symbol, _ domain.Quote, _ []domain.Bar, _ domain.IndicatorSet, sentiment domain.SentimentSnapshot) domain.StrategyVerdict {
	if sentiment.Decision != domain.SentimentBoost {
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "sentiment filter did not boost")
	}
	return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, clamp01(absFloat(sentiment.Score)), "sentiment filter boosted, direction-aligned")
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Pattern enters on a hammer or bullish-engulfing candle on the last
// completed bar.
type Pattern struct{ weight float64 }

func NewPattern(weight float64) *Pattern { return &Pattern{weight: weight} }
func (s *Pattern) Name() string          { return "pattern" }
func (s *Pattern) Weight() float64       { return s.weight }

func (s *Pattern) Evaluate(_ context.Context, symbol domain.Symbol, _ domain.Quote, bars []domain.Bar, _ domain.IndicatorSet, _ domain.SentimentSnapshot) domain.StrategyVerdict {
	if len(bars) < 2 {
		return skip(s.Name(), symbol.Ticker)
	}
	curr := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	switch {
	case hammer(curr):
		return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, 0.7, "hammer on last completed bar")
	case bullishEngulfing(prev, curr):
		return verdict(s.Name(), symbol.Ticker, domain.ActionEnter, 0.75, "bullish engulfing on last completed bar")
	default:
		return verdict(s.Name(), symbol.Ticker, domain.ActionSkip, 0, "no recognized bullish pattern")
	}
}
