package market

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
)

// Indicator period defaults, matching the formulae spec §4.2 names
// explicitly (SMA/EMA/RSI/MACD/ATR/Bollinger/OBV).
const (
	smaPeriod       = 20
	emaPeriod       = 20
	rsiPeriod       = 14
	macdFastPeriod  = 12
	macdSlowPeriod  = 26
	macdSignalPeriod = 9
	atrPeriod       = 14
	bollingerPeriod = 20
	bollingerStdDev = 2.0
)

// ComputeIndicators derives a full IndicatorSet from bars, most recent
// last, using cinar/indicator/v2's channel-pipeline computation style
// (the same idiom the teacher uses for its single RSI/MACD tools,
// extended here across the whole indicator family).
func ComputeIndicators(symbol, timeframe string, bars []domain.Bar) (domain.IndicatorSet, error) {
	set := domain.IndicatorSet{
		Symbol:    symbol,
		Timeframe: timeframe,
		AsOf:      time.Now(),
		BarsUsed:  len(bars),
		Quality:   qualityFor(len(bars)),
	}
	if len(bars) == 0 {
		return set, fmt.Errorf("cannot compute indicators from zero bars")
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.Float()
		highs[i] = b.High.Float()
		lows[i] = b.Low.Float()
		volumes[i] = float64(b.Volume)
	}

	if v, ok := lastOf(computeSMA(closes, smaPeriod)); ok {
		set.SMA = domain.FromFloat(v)
	}
	if v, ok := lastOf(computeEMA(closes, emaPeriod)); ok {
		set.EMA = domain.FromFloat(v)
	}
	if v, ok := lastOf(computeRSI(closes, rsiPeriod)); ok {
		set.RSI = v
	}

	macd, signal := computeMACD(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	if m, ok := lastOf(macd); ok {
		set.MACD = m
	}
	if s, ok := lastOf(signal); ok {
		set.MACDSignal = s
		set.MACDHistogram = set.MACD - s
	}

	if v, ok := lastOf(computeATR(highs, lows, closes, atrPeriod)); ok {
		set.ATR = domain.FromFloat(v)
	}

	upper, middle, lower := computeBollinger(closes, bollingerPeriod, bollingerStdDev)
	if v, ok := lastOf(upper); ok {
		set.BollingerUpper = domain.FromFloat(v)
	}
	if v, ok := lastOf(middle); ok {
		set.BollingerMiddle = domain.FromFloat(v)
	}
	if v, ok := lastOf(lower); ok {
		set.BollingerLower = domain.FromFloat(v)
	}

	if v, ok := lastOf(computeOBV(closes, volumes)); ok {
		set.OBV = int64(v)
	}

	set.OpeningRangeHi = domain.FromFloat(maxOf(highs))
	set.OpeningRangeLo = domain.FromFloat(minOf(lows))

	return set, nil
}

// qualityFor tags a bar count per spec §4.2's data-quality thresholds.
func qualityFor(bars int) domain.DataQuality {
	switch {
	case bars >= 200:
		return domain.QualityExcellent
	case bars >= 50:
		return domain.QualityGood
	case bars >= 20:
		return domain.QualityLimited
	default:
		return domain.QualityMinimal
	}
}

func toChan(values []float64) <-chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func drain(ch <-chan float64) []float64 {
	out := make([]float64, 0)
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func lastOf(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

func computeSMA(closes []float64, period int) []float64 {
	ind := trend.NewSmaWithPeriod[float64](period)
	return drain(ind.Compute(toChan(closes)))
}

func computeEMA(closes []float64, period int) []float64 {
	ind := trend.NewEmaWithPeriod[float64](period)
	return drain(ind.Compute(toChan(closes)))
}

func computeRSI(closes []float64, period int) []float64 {
	ind := momentum.NewRsiWithPeriod[float64](period)
	return drain(ind.Compute(toChan(closes)))
}

func computeMACD(closes []float64, fast, slow, signal int) ([]float64, []float64) {
	ind := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, signalChan := ind.Compute(toChan(closes))
	return drain(macdChan), drain(signalChan)
}

func computeATR(highs, lows, closes []float64, period int) []float64 {
	ind := volatility.NewAtrWithPeriod[float64](period)
	return drain(ind.Compute(toChan(highs), toChan(lows), toChan(closes)))
}

func computeBollinger(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	ind := volatility.NewBollingerBandsWithPeriod[float64](period)
	ind.StdDevMultiplier = stdDev
	upperChan, middleChan, lowerChan := ind.Compute(toChan(closes))
	return drain(upperChan), drain(middleChan), drain(lowerChan)
}

func computeOBV(closes, volumes []float64) []float64 {
	ind := volume.NewObv[float64]()
	return drain(ind.Compute(toChan(closes), toChan(volumes)))
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
