package features

import (
	"fmt"
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// Generator computes the 49 market features deterministically from a bar
// series. It never mutates its input and never touches the network or
// clock directly (except reading the bar timestamp for time-of-day
// encoding), so a given bar.Series always yields the same Vector.
type Generator struct {
	mgr *Manager
}

// NewGenerator builds a Generator bound to the given schema authority.
func NewGenerator(mgr *Manager) *Generator {
	return &Generator{mgr: mgr}
}

// MinBarsRequired is the minimum history Generate needs to produce every
// feature without NaNs (driven by the longest lookback, realized_vol_60).
const MinBarsRequired = 61

// Generate computes the 49 market features for the most recent bar in
// series, leaving the 6 strategy-signal columns at zero for cycle.Manager
// to fill in from the strategy engine's signals later in the cycle.
func (g *Generator) Generate(series bar.Series) (*Vector, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bar series: %w", err)
	}
	if len(series) < MinBarsRequired {
		return nil, fmt.Errorf("need at least %d bars, got %d", MinBarsRequired, len(series))
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()
	last := series.Last()

	v := NewVector(g.mgr)
	set := func(name string, val float64) {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			val = 0
		}
		_ = v.Set(name, val)
	}

	sma5 := indicators.SMA(closes, 5)
	sma20 := indicators.SMA(closes, 20)
	sma50 := indicators.SMA(closes, 50)
	ema12 := indicators.EMA(closes, 12)
	ema26 := indicators.EMA(closes, 26)
	ema50 := indicators.EMA(closes, 50)
	macd, macdSignal, macdHist := indicators.MACD(closes, 12, 26, 9)
	adx, plusDI, minusDI := indicators.ADX(highs, lows, closes, 14)

	set("sma_5", sma5)
	set("sma_20", sma20)
	set("sma_50", sma50)
	set("ema_12", ema12)
	set("ema_26", ema26)
	set("ema_50", ema50)
	set("macd", macd)
	set("macd_signal", macdSignal)
	set("macd_hist", macdHist)
	set("adx", adx)
	set("plus_di", plusDI)
	set("minus_di", minusDI)
	set("price_vs_sma20_pct", pctDelta(last.Close, sma20))
	set("price_vs_sma50_pct", pctDelta(last.Close, sma50))
	set("trend_slope_20", slope(closes, 20))

	set("rsi_14", indicators.RSI(closes, 14))
	set("rsi_7", indicators.RSI(closes, 7))
	k, d := indicators.Stochastic(highs, lows, closes, 14, 3)
	set("stochastic_k", k)
	set("stochastic_d", d)
	set("roc_10", rateOfChange(closes, 10))
	set("momentum_20", momentum(closes, 20))
	set("williams_r", williamsR(highs, lows, closes, 14))

	atr14 := indicators.ATR(highs, lows, closes, 14)
	set("atr_14", atr14)
	set("atr_pct", pctOf(atr14, last.Close))
	_, upper, lower, width := indicators.BollingerBands(closes, 20, 2.0)
	set("bb_upper", upper)
	set("bb_lower", lower)
	set("bb_width", width)
	set("bb_percent_b", percentB(last.Close, upper, lower))
	set("realized_vol_20", indicators.RealizedVolatility(closes, 20))
	set("realized_vol_60", indicators.RealizedVolatility(closes, 60))
	dUpper, dLower, _ := indicators.DonchianChannel(highs, lows, 20)
	set("donchian_width_20", pctOf(dUpper-dLower, last.Close))
	set("donchian_percent_20", percentB(last.Close, dUpper, dLower))

	volSMA20 := indicators.SMA(volumes, 20)
	set("volume_sma_20", volSMA20)
	set("volume_zscore_20", zscore(volumes, 20))
	set("volume_trend_10", slope(volumes, 10))
	set("obv_slope_20", slope(onBalanceVolume(closes, volumes), 20))

	body, upperWick, lowerWick := candleAnatomy(last)
	set("candle_body_pct", body)
	set("upper_wick_pct", upperWick)
	set("lower_wick_pct", lowerWick)
	set("return_1", ret(closes, 1))
	set("return_5", ret(closes, 5))
	set("return_20", ret(closes, 20))
	set("high_low_range_pct", pctOf(last.High-last.Low, last.Close))
	upBars, downBars := consecutiveDirection(closes)
	set("consecutive_up_bars", float64(upBars))
	set("consecutive_down_bars", float64(downBars))
	hh20 := maxTail(highs, 20)
	ll20 := minTail(lows, 20)
	set("distance_from_20bar_high_pct", pctDelta(last.Close, hh20))
	set("distance_from_20bar_low_pct", pctDelta(last.Close, ll20))
	hourSin, hourCos := timeOfDayEncoding(last)
	set("hour_of_day_sin", hourSin)
	set("hour_of_day_cos", hourCos)

	return v, nil
}

func pctDelta(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref
}

func pctOf(numer, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return numer / ref
}

func percentB(price, upper, lower float64) float64 {
	if upper == lower {
		return 0.5
	}
	return (price - lower) / (upper - lower)
}

func slope(xs []float64, period int) float64 {
	if len(xs) < period {
		return 0
	}
	window := xs[len(xs)-period:]
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func rateOfChange(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 0
	}
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev
}

func momentum(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 0
	}
	return closes[len(closes)-1] - closes[len(closes)-1-period]
}

func williamsR(highs, lows, closes []float64, period int) float64 {
	if len(highs) < period {
		return 0
	}
	hh := maxTail(highs, period)
	ll := minTail(lows, period)
	if hh == ll {
		return -50
	}
	c := closes[len(closes)-1]
	return (hh - c) / (hh - ll) * -100
}

func zscore(xs []float64, period int) float64 {
	mean := indicators.SMA(xs, period)
	sd := indicators.StdDev(xs, period)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return (xs[len(xs)-1] - mean) / sd
}

func onBalanceVolume(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func candleAnatomy(b bar.Bar) (bodyPct, upperWickPct, lowerWickPct float64) {
	rng := b.High - b.Low
	if rng == 0 {
		return 0, 0, 0
	}
	body := math.Abs(b.Close - b.Open)
	upperWick := b.High - math.Max(b.Open, b.Close)
	lowerWick := math.Min(b.Open, b.Close) - b.Low
	return body / rng, upperWick / rng, lowerWick / rng
}

func ret(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 0
	}
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev
}

func consecutiveDirection(closes []float64) (up, down int) {
	for i := len(closes) - 1; i > 0; i-- {
		if closes[i] > closes[i-1] {
			if down > 0 {
				break
			}
			up++
		} else if closes[i] < closes[i-1] {
			if up > 0 {
				break
			}
			down++
		} else {
			break
		}
	}
	return up, down
}

func maxTail(xs []float64, period int) float64 {
	if len(xs) < period {
		period = len(xs)
	}
	window := xs[len(xs)-period:]
	m := window[0]
	for _, v := range window[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minTail(xs []float64, period int) float64 {
	if len(xs) < period {
		period = len(xs)
	}
	window := xs[len(xs)-period:]
	m := window[0]
	for _, v := range window[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func timeOfDayEncoding(b bar.Bar) (sin, cos float64) {
	hour := float64(b.Timestamp.UTC().Hour()) + float64(b.Timestamp.UTC().Minute())/60.0
	angle := 2 * math.Pi * hour / 24.0
	return math.Sin(angle), math.Cos(angle)
}
