package strategy

import (
	"fmt"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// ADXTrendStrength fires directionally with +DI/-DI once ADX confirms a
// strong enough trend is in force.
type ADXTrendStrength struct{}

func (ADXTrendStrength) Name() string { return "adx_trend_strength" }

func (ADXTrendStrength) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	if len(closes) < 28 {
		return Signal{Strategy: "adx_trend_strength", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	adx, plusDI, minusDI := indicators.ADX(highs, lows, closes, 14)
	if adx < cfg.ADXTrendMin {
		return Signal{Strategy: "adx_trend_strength", Direction: Neutral, Confidence: clip(0.2, cfg),
			Reason: fmt.Sprintf("ADX %.1f below trend threshold", adx)}
	}

	switch {
	case plusDI > minusDI:
		conf := clip(0.4+0.01*(adx-cfg.ADXTrendMin), cfg)
		return Signal{Strategy: "adx_trend_strength", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("ADX %.1f, +DI %.1f > -DI %.1f", adx, plusDI, minusDI)}
	case minusDI > plusDI:
		conf := clip(0.4+0.01*(adx-cfg.ADXTrendMin), cfg)
		return Signal{Strategy: "adx_trend_strength", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("ADX %.1f, -DI %.1f > +DI %.1f", adx, minusDI, plusDI)}
	default:
		return Signal{Strategy: "adx_trend_strength", Direction: Neutral, Confidence: clip(0.3, cfg),
			Reason: "directional indices tied"}
	}
}
