// Package signal implements SignalIntegrator: it merges the rule-based
// StrategyManager proposal with the ML ensemble's Prediction into one
// trade decision candidate for RiskManager to gate.
package signal

import (
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/ensemble"
	"github.com/nao-namake/bitbank-decision-core/internal/strategy"
)

// Action is the integrated decision's directional call.
type Action string

const (
	ActionEnterLong  Action = "enter_long"
	ActionEnterShort Action = "enter_short"
	ActionHold       Action = "hold"
)

// Integrated is SignalIntegrator's output for one cycle.
type Integrated struct {
	Action     Action
	Confidence float64
	Strategy   strategy.Proposal
	ML         ensemble.Prediction
	Agreement  bool
}

// Integrator merges a strategy Proposal with an ensemble Prediction
// using the externalized weighting and override thresholds in spec §6's
// ml.* configuration tree.
type Integrator struct {
	cfg config.MLConfig
}

// NewIntegrator builds a SignalIntegrator bound to the given ml.*
// configuration.
func NewIntegrator(cfg config.MLConfig) *Integrator {
	return &Integrator{cfg: cfg}
}

// mlDirection maps the ensemble's predicted class onto a strategy
// Direction; HOLD is neutral.
func mlDirection(pred ensemble.Prediction) strategy.Direction {
	switch pred.PredictedClass {
	case ensemble.ClassBuy:
		return strategy.Long
	case ensemble.ClassSell:
		return strategy.Short
	default:
		return strategy.Neutral
	}
}

// Integrate produces the merged decision candidate. The blend is a
// weighted average of the strategy and ML legs (default 0.7/0.3, per
// cfg.StrategyWeight/MLWeight); ML is ignored entirely when its
// confidence falls below MinMLConfidence, a high-confidence ML
// disagreement swings the action to the ML side rather than damping
// toward Hold, agreement/disagreement nudge the blended confidence by
// AgreementBonus/DisagreementPenalty, and the final action is forced to
// Hold whenever the blended confidence falls below
// HoldConversionThreshold.
func (in *Integrator) Integrate(prop strategy.Proposal, pred ensemble.Prediction) Integrated {
	mlDir := mlDirection(pred)
	mlConfident := pred.Confidence >= in.cfg.MinMLConfidence

	agree := mlConfident && mlDir == prop.Direction && prop.Direction != strategy.Neutral
	disagree := mlConfident && mlDir != strategy.Neutral && prop.Direction != strategy.Neutral && mlDir != prop.Direction

	var blended float64
	var direction strategy.Direction
	switch {
	case !mlConfident:
		// Ignore the ML leg entirely: too little confidence to be
		// informative, fall back to the strategy leg alone.
		blended = prop.Confidence
		direction = prop.Direction
	case disagree && pred.Confidence >= in.cfg.HighConfidenceThreshold:
		// A high-confidence ML disagreement overrides the rule-based
		// leg rather than being averaged away.
		blended = pred.Confidence
		direction = mlDir
	default:
		blended = in.cfg.StrategyWeight*prop.Confidence + in.cfg.MLWeight*pred.Confidence
		direction = prop.Direction
	}

	switch {
	case agree:
		blended += in.cfg.AgreementBonus
	case disagree:
		blended -= in.cfg.DisagreementPenalty
	}
	if blended < 0 {
		blended = 0
	}
	if blended > 1 {
		blended = 1
	}

	action := ActionHold
	switch direction {
	case strategy.Long:
		action = ActionEnterLong
	case strategy.Short:
		action = ActionEnterShort
	}
	if blended < in.cfg.HoldConversionThreshold {
		action = ActionHold
	}

	return Integrated{
		Action:     action,
		Confidence: blended,
		Strategy:   prop,
		ML:         pred,
		Agreement:  agree,
	}
}
