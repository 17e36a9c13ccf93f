package strategy

import (
	"fmt"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// StochasticReversal fires a reversal bet when %K is inside the
// oversold (overbought) zone and above (below) %D, i.e. turning back.
type StochasticReversal struct{}

func (StochasticReversal) Name() string { return "stochastic_reversal" }

func (StochasticReversal) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	if len(closes) < 17 {
		return Signal{Strategy: "stochastic_reversal", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	k, d := indicators.Stochastic(highs, lows, closes, 14, 3)

	switch {
	case k <= cfg.StochasticOversold && k > d:
		conf := clip(0.5+0.01*(cfg.StochasticOversold-k), cfg)
		return Signal{Strategy: "stochastic_reversal", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("%%K %.1f oversold and turning up", k)}
	case k >= cfg.StochasticOverbought && k < d:
		conf := clip(0.5+0.01*(k-cfg.StochasticOverbought), cfg)
		return Signal{Strategy: "stochastic_reversal", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("%%K %.1f overbought and turning down", k)}
	default:
		return Signal{Strategy: "stochastic_reversal", Direction: Neutral, Confidence: clip(0.25, cfg),
			Reason: "no extreme reversal"}
	}
}
