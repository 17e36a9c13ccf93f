package regime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
)

func trendingSeries(n int) bar.Series {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(bar.Series, n)
	price := 1_000_000.0
	for i := 0; i < n; i++ {
		open := price
		close := price + 200
		out[i] = bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open,
			High:      close + 50,
			Low:       open - 50,
			Close:     close,
			Volume:    100,
		}
		price = close
	}
	return out
}

func flatSeries(n int) bar.Series {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(bar.Series, n)
	for i := 0; i < n; i++ {
		out[i] = bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      1_000_000, High: 1_000_050, Low: 999_950, Close: 1_000_000, Volume: 100,
		}
	}
	return out
}

func TestClassify_TrendingSeriesScoresTrendingHighest(t *testing.T) {
	cfg := config.Default().Regime
	cfg.PersistenceBars = 1
	c := NewClassifier(cfg)
	res := c.Classify(trendingSeries(100))
	assert.Equal(t, Trending, res.Regime)
	assert.Greater(t, res.Scores[Trending], res.Scores[TightRange])
}

func TestClassify_FlatSeriesLeansTightRange(t *testing.T) {
	cfg := config.Default().Regime
	cfg.PersistenceBars = 1
	c := NewClassifier(cfg)
	res := c.Classify(flatSeries(100))
	assert.Contains(t, []Regime{TightRange, NormalRange}, res.Regime)
}

func TestClassify_ConfidenceWithinBounds(t *testing.T) {
	cfg := config.Default().Regime
	c := NewClassifier(cfg)
	res := c.Classify(trendingSeries(100))
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestClassify_IsStatelessAcrossCalls(t *testing.T) {
	cfg := config.Default().Regime
	cfg.PersistenceBars = 3
	c := NewClassifier(cfg)

	// Classify never caches anything across calls: feeding the same
	// classifier a trending series then a flat one must flip away from
	// Trending immediately, with no lingering bias from the prior call,
	// and must match what a brand-new classifier produces for the same
	// flat series.
	trending := c.Classify(trendingSeries(100))
	assert.Equal(t, Trending, trending.Regime)

	flat := c.Classify(flatSeries(100))
	assert.NotEqual(t, Trending, flat.Regime)

	fresh := NewClassifier(cfg).Classify(flatSeries(100))
	assert.Equal(t, fresh.Regime, flat.Regime)
	assert.Equal(t, fresh.Scores, flat.Scores)
}

func TestPercentileRank(t *testing.T) {
	assert.Equal(t, 0.5, percentileRank(nil, 1.0))
	hist := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.6, percentileRank(hist, 3))
}

func TestBBWidthHistory_ShortSeriesReturnsNil(t *testing.T) {
	assert.Nil(t, bbWidthHistory(flatSeries(5)))
}

func TestClassify_NoNaNConfidence(t *testing.T) {
	cfg := config.Default().Regime
	c := NewClassifier(cfg)
	res := c.Classify(trendingSeries(150))
	assert.False(t, math.IsNaN(res.Confidence))
}
