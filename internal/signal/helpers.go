package signal

import "github.com/ajitpratap0/ees/internal/domain"

// sma computes a simple moving average over the last period closes. Bars
// are ordered oldest-first, most recent last. A handful of strategies
// need SMAs at different periods than the fabric's default IndicatorSet
// carries (sma20/50/200 for the trend strategy), so this stays a small
// closed-form loop here rather than routing back through the indicator
// library for a calculation this trivial.
func sma(bars []domain.Bar, period int) (float64, bool) {
	if len(bars) < period {
		return 0, false
	}
	var sum float64
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close.Float()
	}
	return sum / float64(period), true
}

func smaVolume(bars []domain.Bar, period int) (float64, bool) {
	if len(bars) < period {
		return 0, false
	}
	var sum float64
	for _, b := range bars[len(bars)-period:] {
		sum += float64(b.Volume)
	}
	return sum / float64(period), true
}

func lastBar(bars []domain.Bar) (domain.Bar, bool) {
	if len(bars) == 0 {
		return domain.Bar{}, false
	}
	return bars[len(bars)-1], true
}

func bullishCandle(b domain.Bar) bool { return b.Close > b.Open }

// hammer flags a small-bodied candle with a long lower wick, signalling
// rejection of lower prices.
func hammer(b domain.Bar) bool {
	body := absMicros(b.Close - b.Open)
	lowerWick := minMicros(b.Open, b.Close) - b.Low
	upperWick := b.High - maxMicros(b.Open, b.Close)
	return lowerWick > 2*body && upperWick < body
}

// bullishEngulfing flags curr's body fully engulfing prev's body, with
// curr closing higher.
func bullishEngulfing(prev, curr domain.Bar) bool {
	return !bullishCandle(prev) && bullishCandle(curr) && curr.Open <= prev.Close && curr.Close >= prev.Open
}

func absMicros(m domain.Micros) domain.Micros {
	if m < 0 {
		return -m
	}
	return m
}

func minMicros(a, b domain.Micros) domain.Micros {
	if a < b {
		return a
	}
	return b
}

func maxMicros(a, b domain.Micros) domain.Micros {
	if a > b {
		return a
	}
	return b
}

// openingRangeHigh returns the high of bars[0], the oldest bar passed in.
// It does not locate the session open or combine bars into a 15-minute
// range, so the result is the opening-range high only when bars[0] is the
// first 15-minute bar of regular trading hours.
func openingRangeHigh(bars []domain.Bar) (domain.Micros, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	return bars[0].High, true
}
