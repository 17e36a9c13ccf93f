package risk

import (
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// AnomalyScore flags bars that look like bad exchange data or a violent,
// one-off move rather than a tradeable condition: a last-bar price gap
// far outside recent ATR, or a volume spike far outside the recent
// average, each normalized to [0, 1] and combined by taking the worse
// of the two. Grounded on the teacher pack's data-quality gap/volume
// checks (see DESIGN.md), collapsed into the single composite score
// RiskManager's anomaly gate (spec §6 risk.risk_score.*) compares
// against its conditional/deny thresholds.
func AnomalyScore(series bar.Series) float64 {
	closes := series.Closes()
	if len(closes) < 21 {
		return 0
	}

	atr := indicators.ATR(series.Highs(), series.Lows(), closes, 14)
	gapScore := 0.0
	if atr > 0 {
		gap := math.Abs(closes[len(closes)-1] - closes[len(closes)-2])
		gapScore = clamp01((gap/atr - 1) / 4) // gap == ATR -> 0, gap == 5*ATR -> 1
	}

	volumes := series.Volumes()
	volScore := 0.0
	if len(volumes) >= 21 {
		window := volumes[len(volumes)-21 : len(volumes)-1]
		avg := 0.0
		for _, v := range window {
			avg += v
		}
		avg /= float64(len(window))
		if avg > 0 {
			ratio := volumes[len(volumes)-1] / avg
			volScore = clamp01((ratio - 3) / 10) // 3x average -> 0, 13x average -> 1
		}
	}

	if gapScore > volScore {
		return gapScore
	}
	return volScore
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
