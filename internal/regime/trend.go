package regime

import (
	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// TrendStrength computes the composite score (weighted ADX + DI
// alignment + EMA alignment) the spec's flexible-cooldown bypass gate
// compares against its 0.7 threshold. Each component is normalized to
// [0, 1] and combined with fixed weights: ADX carries the most signal,
// DI-alignment and EMA-alignment each confirm direction.
func TrendStrength(series bar.Series) float64 {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	if len(closes) < 30 {
		return 0
	}

	adx, plusDI, minusDI := indicators.ADX(highs, lows, closes, 14)
	adxScore := clamp01(adx / 50.0) // ADX 50 is an extreme, strongly-trending reading

	diScore := 0.0
	if plusDI+minusDI > 0 {
		diScore = clamp01(abs(plusDI-minusDI) / (plusDI + minusDI))
	}

	ema20 := indicators.EMA(closes, 20)
	ema50 := indicators.EMA(closes, 50)
	last := closes[len(closes)-1]
	emaScore := 0.0
	if ema50 != 0 {
		spread := abs(ema20-ema50) / ema50
		aligned := (last > ema20 && ema20 > ema50) || (last < ema20 && ema20 < ema50)
		if aligned {
			emaScore = clamp01(spread * 20)
		}
	}

	return clamp01(0.5*adxScore + 0.3*diScore + 0.2*emaScore)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
