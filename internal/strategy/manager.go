package strategy

import (
	"github.com/nao-namake/bitbank-decision-core/internal/regime"
)

// Proposal is StrategyManager's aggregated output for one cycle: a
// single directional call plus confidence, synthesized from every
// strategy's vote weighted by the current regime.
type Proposal struct {
	Direction   Direction
	Confidence  float64
	Regime      regime.Regime
	PerStrategy []Signal
	LongScore   float64
	ShortScore  float64
}

// DefaultWeights returns the regime-weighting table matching
// config.Default()'s dynamic_strategy_selection.regime_strategy_mapping:
// each regime favors the strategies best suited to it, damping the
// others rather than excluding them outright, and every regime's
// weights sum to exactly 1. It exists as a convenience for callers (and
// tests) that don't need to go through a *config.Config; the wired path
// in internal/cycle builds the same shape via WeightsFromConfig against
// the externalized configuration.
func DefaultWeights() RegimeWeights {
	return RegimeWeights{
		regime.TightRange: {
			"atr_based":           0.10,
			"bb_reversal":         0.30,
			"stochastic_reversal": 0.30,
			"donchian_channel":    0.05,
			"macd_ema_crossover":  0.10,
			"adx_trend_strength":  0.15,
		},
		regime.NormalRange: {
			"atr_based":           0.17,
			"bb_reversal":         0.17,
			"stochastic_reversal": 0.17,
			"donchian_channel":    0.17,
			"macd_ema_crossover":  0.16,
			"adx_trend_strength":  0.16,
		},
		regime.Trending: {
			"atr_based":           0.20,
			"bb_reversal":         0.05,
			"stochastic_reversal": 0.05,
			"donchian_channel":    0.25,
			"macd_ema_crossover":  0.20,
			"adx_trend_strength":  0.25,
		},
		regime.HighVolatility: {
			"atr_based":           0.25,
			"bb_reversal":         0.15,
			"stochastic_reversal": 0.10,
			"donchian_channel":    0.15,
			"macd_ema_crossover":  0.15,
			"adx_trend_strength":  0.20,
		},
	}
}

// WeightsFromConfig converts the externalized
// dynamic_strategy_selection.regime_strategy_mapping tree into a
// RegimeWeights table. Config validation already guarantees each inner
// map sums to 1; an empty mapping (e.g. a config file that omits the
// section) falls back to DefaultWeights.
func WeightsFromConfig(mapping map[string]map[string]float64) RegimeWeights {
	if len(mapping) == 0 {
		return DefaultWeights()
	}
	out := make(RegimeWeights, len(mapping))
	for rg, weights := range mapping {
		w := make(map[string]float64, len(weights))
		for strategyName, v := range weights {
			w[strategyName] = v
		}
		out[regime.Regime(rg)] = w
	}
	return out
}

// Manager is StrategyManager: it combines every strategy's Signal into a
// single Proposal, weighting each vote by how well its strategy suits the
// classified regime.
type Manager struct {
	weights RegimeWeights
}

// NewManager builds a StrategyManager over the given regime-weight table.
func NewManager(weights RegimeWeights) *Manager {
	return &Manager{weights: weights}
}

// Combine aggregates signals into a Proposal for the given regime. Each
// strategy's (weight * confidence) is summed into the long or short
// bucket depending on its direction; the bucket with the larger total
// wins, and confidence is the margin normalized by total weighted mass.
func (m *Manager) Combine(rg regime.Regime, signals []Signal) Proposal {
	weights := m.weights[rg]
	var longScore, shortScore, totalMass float64
	for _, sig := range signals {
		w := 1.0
		if weights != nil {
			if v, ok := weights[sig.Strategy]; ok {
				w = v
			}
		}
		mass := w * sig.Confidence
		switch sig.Direction {
		case Long:
			longScore += mass
			totalMass += mass
		case Short:
			shortScore += mass
			totalMass += mass
		}
	}

	direction := Neutral
	confidence := 0.0
	if totalMass > 0 {
		if longScore > shortScore {
			direction = Long
			confidence = (longScore - shortScore) / totalMass
		} else if shortScore > longScore {
			direction = Short
			confidence = (shortScore - longScore) / totalMass
		}
	}

	return Proposal{
		Direction:   direction,
		Confidence:  confidence,
		Regime:      rg,
		PerStrategy: signals,
		LongScore:   longScore,
		ShortScore:  shortScore,
	}
}
