// Package indicators implements the technical-analysis primitives the
// feature generator, regime classifier, and rule-based strategies share.
// Hand-rolled on plain float64 slices, matching the idiom the rest of the
// corpus uses for indicator math (no third-party TA library appears
// anywhere in the retrieval pack; see DESIGN.md).
package indicators

import "math"

// SMA returns the simple moving average of the last period values of xs.
// Returns math.NaN() if there is not enough history.
func SMA(xs []float64, period int) float64 {
	if period <= 0 || len(xs) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range xs[len(xs)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// StdDev returns the population standard deviation of the last period
// values of xs.
func StdDev(xs []float64, period int) float64 {
	if period <= 0 || len(xs) < period {
		return math.NaN()
	}
	window := xs[len(xs)-period:]
	mean := SMA(xs, period)
	var sumSq float64
	for _, v := range window {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(period))
}

// EMASeries returns the full exponential moving average series for xs
// with the given period, seeded by an SMA of the first `period` values.
func EMASeries(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if period <= 0 || len(xs) < period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / (float64(period) + 1.0)
	seed := 0.0
	for _, v := range xs[:period] {
		seed += v
	}
	seed /= float64(period)
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		if i == period-1 {
			out[i] = seed
			continue
		}
		out[i] = xs[i]*k + out[i-1]*(1-k)
	}
	return out
}

// EMA returns the last value of EMASeries.
func EMA(xs []float64, period int) float64 {
	s := EMASeries(xs, period)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// RSI returns the Wilder relative-strength-index value over the last
// period+1 closes.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	window := closes[len(closes)-period-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD returns the MACD line, signal line, and histogram using the
// standard 12/26/9 periods (or the supplied fast/slow/signal periods).
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist float64) {
	if len(closes) < slow+signal {
		return math.NaN(), math.NaN(), math.NaN()
	}
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = fastEMA[i] - slowEMA[i]
	}
	// signal is an EMA of the MACD series, computed over the valid tail.
	validStart := slow - 1
	macdValid := macdSeries[validStart:]
	sigSeries := EMASeries(macdValid, signal)
	macd = macdSeries[len(macdSeries)-1]
	signalLine = sigSeries[len(sigSeries)-1]
	hist = macd - signalLine
	return macd, signalLine, hist
}

// ATR returns the Wilder average-true-range over the last period+1 bars.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(highs) < period+1 || len(lows) < period+1 || len(closes) < period+1 {
		return math.NaN()
	}
	n := len(closes)
	trs := make([]float64, 0, period)
	for i := n - period; i < n; i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trs = append(trs, tr)
	}
	sum := 0.0
	for _, v := range trs {
		sum += v
	}
	return sum / float64(period)
}

// BollingerBands returns the middle (SMA), upper, lower bands and the
// normalized band width (upper-lower)/middle for the given period and
// standard-deviation multiplier.
func BollingerBands(closes []float64, period int, mult float64) (mid, upper, lower, width float64) {
	mid = SMA(closes, period)
	sd := StdDev(closes, period)
	upper = mid + mult*sd
	lower = mid - mult*sd
	if mid == 0 || math.IsNaN(mid) {
		return mid, upper, lower, math.NaN()
	}
	width = (upper - lower) / mid
	return mid, upper, lower, width
}

// Stochastic returns %K and %D over the given lookback and smoothing
// periods.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d float64) {
	if len(closes) < kPeriod {
		return math.NaN(), math.NaN()
	}
	ks := make([]float64, 0, dPeriod)
	for offset := 0; offset < dPeriod && len(closes)-kPeriod-offset >= 0; offset++ {
		end := len(closes) - offset
		start := end - kPeriod
		if start < 0 {
			break
		}
		hh := maxOf(highs[start:end])
		ll := minOf(lows[start:end])
		c := closes[end-1]
		if hh == ll {
			ks = append(ks, 50)
			continue
		}
		ks = append(ks, (c-ll)/(hh-ll)*100)
	}
	if len(ks) == 0 {
		return math.NaN(), math.NaN()
	}
	k = ks[0]
	sum := 0.0
	for _, v := range ks {
		sum += v
	}
	d = sum / float64(len(ks))
	return k, d
}

// DonchianChannel returns the highest-high and lowest-low over period
// bars, plus the midline.
func DonchianChannel(highs, lows []float64, period int) (upper, lower, mid float64) {
	if len(highs) < period || len(lows) < period {
		return math.NaN(), math.NaN(), math.NaN()
	}
	upper = maxOf(highs[len(highs)-period:])
	lower = minOf(lows[len(lows)-period:])
	mid = (upper + lower) / 2
	return upper, lower, mid
}

// ADX returns the directional movement index (DX) of the last period bars
// plus +DI/-DI, each computed from the sums of TR, +DM and -DM over that
// one window. The DX is not averaged across bars, so the first return
// value is a single-window DX rather than a smoothed ADX.
func ADX(highs, lows, closes []float64, period int) (adx, plusDI, minusDI float64) {
	n := len(closes)
	if n < period*2 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	smoothedTR := wilderSmooth(tr, period)
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)
	if smoothedTR == 0 {
		return 0, 0, 0
	}
	plusDI = 100 * smoothedPlusDM / smoothedTR
	minusDI = 100 * smoothedMinusDM / smoothedTR
	dx := 0.0
	if plusDI+minusDI != 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	return dx, plusDI, minusDI
}

func wilderSmooth(xs []float64, period int) float64 {
	if len(xs) < period+1 {
		return math.NaN()
	}
	window := xs[len(xs)-period:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum
}

// RealizedVolatility returns the standard deviation of log returns over
// the last period closes, annualization left to the caller.
func RealizedVolatility(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return math.NaN()
	}
	window := closes[len(closes)-period-1:]
	rets := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 {
			continue
		}
		rets = append(rets, math.Log(window[i]/window[i-1]))
	}
	if len(rets) == 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var sumSq float64
	for _, r := range rets {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(rets)))
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
