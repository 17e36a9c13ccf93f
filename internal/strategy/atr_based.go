package strategy

import (
	"fmt"
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// ATRBased fires when the latest move exceeds a multiple of ATR,
// treating the breakout as continuation.
type ATRBased struct{}

func (ATRBased) Name() string { return "atr_based" }

func (ATRBased) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	atr := indicators.ATR(highs, lows, closes, 14)
	if math.IsNaN(atr) || atr == 0 || len(closes) < 2 {
		return Signal{Strategy: "atr_based", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	move := closes[len(closes)-1] - closes[len(closes)-2]
	ratio := move / atr

	threshold := cfg.ATRMultiplier
	switch {
	case ratio >= threshold:
		conf := clip(0.5+0.1*(ratio-threshold), cfg)
		return Signal{Strategy: "atr_based", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("move %.2f >= %.2fx ATR (%.2f)", move, threshold, atr)}
	case ratio <= -threshold:
		conf := clip(0.5+0.1*(-ratio-threshold), cfg)
		return Signal{Strategy: "atr_based", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("move %.2f <= -%.2fx ATR (%.2f)", move, threshold, atr)}
	default:
		return Signal{Strategy: "atr_based", Direction: Neutral, Confidence: clip(0.3, cfg),
			Reason: "move within ATR band"}
	}
}
