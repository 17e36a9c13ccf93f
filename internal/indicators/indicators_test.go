package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 4.0, SMA(xs, 3))
	assert.True(t, math.IsNaN(SMA(xs, 10)))
}

func TestStdDev_ConstantSeriesIsZero(t *testing.T) {
	xs := []float64{5, 5, 5, 5, 5}
	assert.Equal(t, 0.0, StdDev(xs, 5))
}

func TestEMA_ShortSeriesIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(EMA([]float64{1, 2}, 5)))
}

func TestEMA_ConvergesTowardTrend(t *testing.T) {
	xs := rising(50, 100, 1)
	ema := EMA(xs, 10)
	assert.InDelta(t, xs[len(xs)-1], ema, 10)
}

func TestRSI_AllGainsIsMax(t *testing.T) {
	xs := rising(20, 100, 1)
	rsi := RSI(xs, 14)
	assert.InDelta(t, 100, rsi, 0.01)
}

func TestRSI_AllLossesIsMin(t *testing.T) {
	xs := rising(20, 100, -1)
	rsi := RSI(xs, 14)
	assert.InDelta(t, 0, rsi, 0.01)
}

func TestMACD_ShortSeriesIsNaN(t *testing.T) {
	m, s, h := MACD([]float64{1, 2, 3}, 12, 26, 9)
	assert.True(t, math.IsNaN(m))
	assert.True(t, math.IsNaN(s))
	assert.True(t, math.IsNaN(h))
}

func TestMACD_UptrendIsPositive(t *testing.T) {
	xs := rising(60, 100, 0.5)
	m, _, _ := MACD(xs, 12, 26, 9)
	assert.Greater(t, m, 0.0)
}

func TestATR_NonNegative(t *testing.T) {
	highs := rising(20, 105, 1)
	lows := rising(20, 95, 1)
	closes := rising(20, 100, 1)
	atr := ATR(highs, lows, closes, 14)
	assert.GreaterOrEqual(t, atr, 0.0)
}

func TestBollingerBands_WidthZeroOnFlatSeries(t *testing.T) {
	xs := make([]float64, 20)
	for i := range xs {
		xs[i] = 100
	}
	mid, upper, lower, width := BollingerBands(xs, 20, 2)
	assert.Equal(t, 100.0, mid)
	assert.Equal(t, 100.0, upper)
	assert.Equal(t, 100.0, lower)
	assert.Equal(t, 0.0, width)
}

func TestStochastic_RangeBounds(t *testing.T) {
	highs := rising(30, 105, 1)
	lows := rising(30, 95, 1)
	closes := rising(30, 100, 1)
	k, d := Stochastic(highs, lows, closes, 14, 3)
	assert.GreaterOrEqual(t, k, 0.0)
	assert.LessOrEqual(t, k, 100.0)
	assert.GreaterOrEqual(t, d, 0.0)
	assert.LessOrEqual(t, d, 100.0)
}

func TestDonchianChannel(t *testing.T) {
	highs := []float64{10, 12, 11, 15, 13}
	lows := []float64{5, 6, 4, 7, 8}
	upper, lower, mid := DonchianChannel(highs, lows, 5)
	assert.Equal(t, 15.0, upper)
	assert.Equal(t, 4.0, lower)
	assert.Equal(t, 9.5, mid)
}

func TestADX_TrendingSeriesIsPositive(t *testing.T) {
	highs := rising(40, 105, 1)
	lows := rising(40, 95, 1)
	closes := rising(40, 100, 1)
	adx, plusDI, minusDI := ADX(highs, lows, closes, 14)
	assert.Greater(t, adx, 0.0)
	assert.Greater(t, plusDI, minusDI)
}

func TestRealizedVolatility_FlatSeriesIsZero(t *testing.T) {
	xs := make([]float64, 20)
	for i := range xs {
		xs[i] = 100
	}
	assert.Equal(t, 0.0, RealizedVolatility(xs, 19))
}
