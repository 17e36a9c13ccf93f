// Package regime implements RegimeClassifier: a cascading-rule market
// regime detector, grounded on the teacher corpus's standalone
// RegimeDetector (see DESIGN.md).
package regime

import (
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// Regime is one of the four market states the spec names.
type Regime string

const (
	TightRange     Regime = "tight_range"
	NormalRange    Regime = "normal_range"
	Trending       Regime = "trending"
	HighVolatility Regime = "high_volatility"
)

// Result is RegimeClassifier's output for one cycle.
type Result struct {
	Regime     Regime
	Confidence float64
	Scores     map[Regime]float64
}

// Classifier runs the cascading rule set against the given thresholds.
// It holds no cross-cycle state: the regime is recomputed from scratch
// on every Classify call, since the spec requires the mapping never be
// cached across cycles.
type Classifier struct {
	cfg config.RegimeConfig
}

// NewClassifier builds a Classifier against the given thresholds.
func NewClassifier(cfg config.RegimeConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify scores the current bars against a strict top-to-bottom
// cascade: (a) trending if ADX clears its threshold and the DI
// differential has persisted for PersistenceBars, (b) else
// high_volatility if realized-vol Z clears its threshold, (c) else
// tight_range if BB-width percentile and price-range fraction are both
// below their narrow thresholds, (d) else normal_range. The first rule
// that matches wins — there is no tie-break across rules because only
// one can ever fire.
func (c *Classifier) Classify(series bar.Series) Result {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	adx, _, _ := indicators.ADX(highs, lows, closes, 14)
	_, _, _, bbWidth := indicators.BollingerBands(closes, 20, 2.0)
	vol20 := indicators.RealizedVolatility(closes, 20)
	vol60 := indicators.RealizedVolatility(closes, 60)

	volZ := 0.0
	if vol60 > 0 && !math.IsNaN(vol60) {
		volZ = (vol20 - vol60) / vol60
	}

	bbWidthPercentile := percentileRank(bbWidthHistory(series), bbWidth)
	rangeFraction := priceRangeFraction(highs, lows, closes, c.cfg.LookbackBars)
	diPersists := diDifferentialPersists(highs, lows, closes, c.cfg.PersistenceBars)

	scores := map[Regime]float64{TightRange: 0, NormalRange: 0, Trending: 0, HighVolatility: 0}

	var regime Regime
	var confidence float64
	switch {
	case adx >= c.cfg.ADXTrendingThreshold && diPersists:
		regime = Trending
		confidence = clamp01(aboveRatio(adx, c.cfg.ADXTrendingThreshold))
	case volZ > c.cfg.RealizedVolHighZ:
		regime = HighVolatility
		confidence = clamp01(aboveRatio(volZ, c.cfg.RealizedVolHighZ))
	case bbWidthPercentile < c.cfg.BBWidthTightPercentile && rangeFraction < c.cfg.RangeFractionTightThreshold:
		regime = TightRange
		confidence = clamp01(belowRatio(bbWidthPercentile, c.cfg.BBWidthTightPercentile))
	default:
		regime = NormalRange
		confidence = 0.5
	}
	scores[regime] = confidence

	return Result{Regime: regime, Confidence: confidence, Scores: scores}
}

// diDifferentialPersists recomputes ADX/DI over each of the trailing
// `bars` candles (no cross-call state) and reports whether the DI
// differential's sign has been the same for every one of them — the
// spec's "DI differential persists" condition for the trending rule.
func diDifferentialPersists(highs, lows, closes []float64, bars int) bool {
	if bars <= 1 {
		bars = 1
	}
	const adxPeriod = 14
	if len(closes) < bars+adxPeriod+1 {
		return false
	}
	sign := 0
	for i := 0; i < bars; i++ {
		end := len(closes) - i
		_, plusDI, minusDI := indicators.ADX(highs[:end], lows[:end], closes[:end], adxPeriod)
		diff := plusDI - minusDI
		switch {
		case diff > 0:
			if sign == -1 {
				return false
			}
			sign = 1
		case diff < 0:
			if sign == 1 {
				return false
			}
			sign = -1
		default:
			return false
		}
	}
	return sign != 0
}

// priceRangeFraction is (highest high - lowest low) / last close over
// the trailing lookback window, the "range fraction" the tight_range
// rule compares against T_narrow_range.
func priceRangeFraction(highs, lows, closes []float64, lookback int) float64 {
	if lookback <= 0 || lookback > len(highs) {
		lookback = len(highs)
	}
	if lookback == 0 {
		return 0
	}
	hh := highs[len(highs)-lookback]
	ll := lows[len(lows)-lookback]
	for i := len(highs) - lookback; i < len(highs); i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	last := closes[len(closes)-1]
	if last == 0 {
		return 0
	}
	return (hh - ll) / last
}

func aboveRatio(value, threshold float64) float64 {
	if threshold == 0 {
		return 0.5
	}
	return (value - threshold) / threshold
}

func belowRatio(value, threshold float64) float64 {
	if threshold == 0 {
		return 0.5
	}
	return (threshold - value) / threshold
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func bbWidthHistory(series bar.Series) []float64 {
	closes := series.Closes()
	const lookback = 60
	start := 20
	if len(closes) < start+1 {
		return nil
	}
	var widths []float64
	for i := start; i < len(closes); i++ {
		window := closes[:i+1]
		if len(window) > lookback+20 {
			window = window[len(window)-(lookback+20):]
		}
		_, _, _, w := indicators.BollingerBands(window, 20, 2.0)
		if !math.IsNaN(w) {
			widths = append(widths, w)
		}
	}
	return widths
}

func percentileRank(history []float64, value float64) float64 {
	if len(history) == 0 {
		return 0.5
	}
	below := 0
	for _, v := range history {
		if v <= value {
			below++
		}
	}
	return float64(below) / float64(len(history))
}
