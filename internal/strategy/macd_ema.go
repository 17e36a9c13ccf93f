package strategy

import (
	"fmt"
	"math"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
)

// MACDEMACrossover fires on a MACD-histogram sign change confirmed by a
// fast/slow EMA alignment in the same direction.
type MACDEMACrossover struct{}

func (MACDEMACrossover) Name() string { return "macd_ema_crossover" }

func (MACDEMACrossover) Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal {
	closes := series.Closes()
	if len(closes) < 36 {
		return Signal{Strategy: "macd_ema_crossover", Direction: Neutral, Confidence: 0, Reason: "insufficient data"}
	}
	_, _, hist := indicators.MACD(closes, 12, 26, 9)
	_, _, prevHist := indicators.MACD(closes[:len(closes)-1], 12, 26, 9)
	ema12 := indicators.EMA(closes, 12)
	ema26 := indicators.EMA(closes, 26)

	crossedUp := prevHist <= cfg.MACDSignalEps && hist > cfg.MACDSignalEps
	crossedDown := prevHist >= -cfg.MACDSignalEps && hist < -cfg.MACDSignalEps

	switch {
	case crossedUp && ema12 > ema26:
		conf := clip(0.5+math.Abs(hist)*0.1, cfg)
		return Signal{Strategy: "macd_ema_crossover", Direction: Long, Confidence: conf,
			Reason: fmt.Sprintf("MACD histogram crossed up to %.4f, EMA12>EMA26", hist)}
	case crossedDown && ema12 < ema26:
		conf := clip(0.5+math.Abs(hist)*0.1, cfg)
		return Signal{Strategy: "macd_ema_crossover", Direction: Short, Confidence: conf,
			Reason: fmt.Sprintf("MACD histogram crossed down to %.4f, EMA12<EMA26", hist)}
	default:
		return Signal{Strategy: "macd_ema_crossover", Direction: Neutral, Confidence: clip(0.25, cfg),
			Reason: "no confirmed crossover"}
	}
}
