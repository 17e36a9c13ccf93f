package strategy

import (
	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
)

// Registry is the closed set of strategies StrategyEngine evaluates
// every cycle. New strategies are added here, not discovered dynamically
// (spec's design note: dynamic dispatch becomes an explicit registry).
func Registry() []Strategy {
	return []Strategy{
		ATRBased{},
		BBReversal{},
		StochasticReversal{},
		DonchianChannel{},
		MACDEMACrossover{},
		ADXTrendStrength{},
	}
}

// Engine is StrategyEngine: it evaluates every registered strategy
// against one bar series and returns their signals.
type Engine struct {
	strategies []Strategy
}

// NewEngine builds a StrategyEngine over the closed strategy registry.
func NewEngine() *Engine {
	return &Engine{strategies: Registry()}
}

// EvaluateAll runs every strategy and returns one Signal per strategy, in
// registry order.
func (e *Engine) EvaluateAll(series bar.Series, cfg config.StrategyThresholds) []Signal {
	out := make([]Signal, 0, len(e.strategies))
	for _, s := range e.strategies {
		out = append(out, s.Evaluate(series, cfg))
	}
	return out
}
