package strategy

import (
	"fmt"
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// BBReversal fires on a mean-reversion bet when price sits at least
// BBReversalZ standard deviations away from the 20-bar Bollinger mid band.
type BBReversal struct{}

func (BBReversal) Name() string { return "bb_reversal" }

func (BBReversal) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	closes := series.Closes()
	if len(closes) < 20 {
		return Signal{Strategy: "bb_reversal", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	mid, _, _, _ := indicators.BollingerBands(closes, 20, 2.0)
	sd := indicators.StdDev(closes, 20)
	if sd == 0 || math.IsNaN(sd) {
		return Signal{Strategy: "bb_reversal", Direction: Neutral, Confidence: 0, Reason: "zero variance"}
	}
	price := closes[len(closes)-1]
	z := (price - mid) / sd

	switch {
	case z >= cfg.BBReversalZ:
		conf := clip(0.5+0.08*(z-cfg.BBReversalZ), cfg)
		return Signal{Strategy: "bb_reversal", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("price %.2fsd above mid band", z)}
	case z <= -cfg.BBReversalZ:
		conf := clip(0.5+0.08*(-z-cfg.BBReversalZ), cfg)
		return Signal{Strategy: "bb_reversal", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("price %.2fsd below mid band", z)}
	default:
		return Signal{Strategy: "bb_reversal", Direction: Neutral, Confidence: clip(0.25, cfg),
			Reason: "within bands"}
	}
}
