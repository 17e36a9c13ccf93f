package strategy

import (
	"fmt"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// DonchianChannel fires a breakout-continuation bet when price closes
// outside the channel formed over the last DonchianBreakoutBars bars.
type DonchianChannel struct{}

func (DonchianChannel) Name() string { return "donchian_channel" }

func (DonchianChannel) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	highs := series.Highs()
	lows := series.Lows()
	closes := series.Closes()
	period := cfg.DonchianBreakoutBars
	if len(highs) < period+1 {
		return Signal{Strategy: "donchian_channel", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	// channel excludes the current bar so the breakout is relative to
	// prior range, not the bar's own extreme.
	upper, lower, _ := indicators.DonchianChannel(highs[:len(highs)-1], lows[:len(lows)-1], period)
	price := closes[len(closes)-1]

	switch {
	case price > upper:
		conf := clip(0.5+0.05*pctAbove(price, upper), cfg)
		return Signal{Strategy: "donchian_channel", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("close %.2f above %d-bar high %.2f", price, period, upper)}
	case price < lower:
		conf := clip(0.5+0.05*pctAbove(lower, price), cfg)
		return Signal{Strategy: "donchian_channel", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("close %.2f below %d-bar low %.2f", price, period, lower)}
	default:
		return Signal{Strategy: "donchian_channel", Direction: Neutral, Confidence: clip(0.25, cfg),
			Reason: "inside channel"}
	}
}

func pctAbove(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (a - b) / b * 100
}
