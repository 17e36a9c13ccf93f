// Package strategy implements StrategyEngine's six rule-based strategies
// and StrategyManager's regime-weighted voting across them.
package strategy

import (
	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/regime"
)

// Direction is a strategy's directional call.
type Direction string

const (
	Long    Direction = "long"
	Short   Direction = "short"
	Neutral Direction = "neutral"
)

// Signal is one strategy's output for a cycle: a direction and a
// confidence in [0, 1] (clipped by each strategy to
// [ConfidenceFloor, ConfidenceCeiling] whenever it fires).
type Signal struct {
	Strategy   string
	Direction  Direction
	Confidence float64
	Reason     string
}

// Strategy is the common interface StrategyEngine evaluates every cycle.
type Strategy interface {
	Name() string
	Evaluate(series bar.Series, cfg config.StrategyThresholds) Signal
}

// clip bounds a raw confidence score to the configured
// [floor, ceiling] band, the template every strategy below shares.
func clip(raw float64, cfg config.StrategyThresholds) float64 {
	if raw < cfg.ConfidenceFloor {
		return cfg.ConfidenceFloor
	}
	if raw > cfg.ConfidenceCeiling {
		return cfg.ConfidenceCeiling
	}
	return raw
}

// RegimeWeights names, per regime, the multiplier StrategyManager applies
// to each strategy's vote before aggregating.
type RegimeWeights map[regime.Regime]map[string]float64
