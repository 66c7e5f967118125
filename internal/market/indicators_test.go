package market

import (
	"testing"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticBars(n int, start float64) []domain.Bar {
	bars := make([]domain.Bar, 0, n)
	price := start
	for i := 0; i < n; i++ {
		price += 0.25
		bars = append(bars, domain.Bar{
			Symbol: "AAPL", Timeframe: "1d",
			Open: domain.FromFloat(price - 0.1), High: domain.FromFloat(price + 0.2),
			Low: domain.FromFloat(price - 0.2), Close: domain.FromFloat(price),
			Volume: 1_000_000, Start: time.Now().AddDate(0, 0, -n+i),
		})
	}
	return bars
}

func TestComputeIndicators_QualityTagging(t *testing.T) {
	cases := []struct {
		bars     int
		expected domain.DataQuality
	}{
		{250, domain.QualityExcellent},
		{60, domain.QualityGood},
		{25, domain.QualityLimited},
		{5, domain.QualityMinimal},
	}
	for _, c := range cases {
		set, err := ComputeIndicators("AAPL", "1d", syntheticBars(c.bars, 100))
		require.NoError(t, err)
		assert.Equal(t, c.expected, set.Quality)
		assert.Equal(t, c.bars, set.BarsUsed)
	}
}

func TestComputeIndicators_ZeroBarsErrors(t *testing.T) {
	_, err := ComputeIndicators("AAPL", "1d", nil)
	assert.Error(t, err)
}

func TestComputeIndicators_TrendProducesPositiveSMA(t *testing.T) {
	set, err := ComputeIndicators("AAPL", "1d", syntheticBars(60, 100))
	require.NoError(t, err)
	assert.Greater(t, set.SMA.Float(), 0.0)
	assert.GreaterOrEqual(t, set.RSI, 0.0)
	assert.LessOrEqual(t, set.RSI, 100.0)
}
