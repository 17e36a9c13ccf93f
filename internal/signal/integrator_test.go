package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/ensemble"
	"github.com/nao-namake/bitbank-decision-core/internal/strategy"
)

func testMLConfig() config.MLConfig {
	return config.Default().ML
}

func buyPred(confidence float64) ensemble.Prediction {
	return ensemble.Prediction{
		ClassProbabilities: ensemble.ClassProbs{0, 1 - confidence, confidence},
		PredictedClass:     ensemble.ClassBuy,
		Confidence:         confidence,
	}
}

func sellPred(confidence float64) ensemble.Prediction {
	return ensemble.Prediction{
		ClassProbabilities: ensemble.ClassProbs{confidence, 1 - confidence, 0},
		PredictedClass:     ensemble.ClassSell,
		Confidence:         confidence,
	}
}

func TestIntegrate_AgreementRaisesConfidence(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Long, Confidence: 0.5}
	agreePred := buyPred(0.9)
	ignoredPred := buyPred(0.1) // below min_ml_confidence: ignored entirely

	agreed := in.Integrate(prop, agreePred)
	ignored := in.Integrate(prop, ignoredPred)

	assert.True(t, agreed.Agreement)
	assert.Greater(t, agreed.Confidence, ignored.Confidence)
	assert.Equal(t, ActionEnterLong, agreed.Action)
	assert.Equal(t, prop.Confidence, ignored.Confidence)
}

func TestIntegrate_DisagreementLowersConfidence(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Long, Confidence: 0.6}
	pred := sellPred(0.5) // disagrees, but below high_confidence_threshold

	out := in.Integrate(prop, pred)
	assert.False(t, out.Agreement)
	assert.Equal(t, ActionHold, out.Action)
}

func TestIntegrate_HighConfidenceDisagreementSwingsToML(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Long, Confidence: 0.6}
	pred := sellPred(0.9) // disagrees, at/above high_confidence_threshold

	out := in.Integrate(prop, pred)
	assert.Equal(t, ActionEnterShort, out.Action)
}

func TestIntegrate_NeutralStrategyHolds(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Neutral, Confidence: 0.1}
	pred := buyPred(0.95)

	out := in.Integrate(prop, pred)
	assert.Equal(t, ActionHold, out.Action)
}

func TestIntegrate_ShortAgreement(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Short, Confidence: 0.5}
	pred := sellPred(0.9)

	out := in.Integrate(prop, pred)
	assert.Equal(t, ActionEnterShort, out.Action)
	assert.True(t, out.Agreement)
}

func TestIntegrate_ConfidenceClampedToUnitInterval(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Long, Confidence: 1.0}
	pred := buyPred(1.0)
	out := in.Integrate(prop, pred)
	assert.LessOrEqual(t, out.Confidence, 1.0)
	assert.GreaterOrEqual(t, out.Confidence, 0.0)
}

func TestIntegrate_BelowHoldConversionThresholdForcesHold(t *testing.T) {
	in := NewIntegrator(testMLConfig())
	prop := strategy.Proposal{Direction: strategy.Long, Confidence: 0.1}
	pred := buyPred(0.1) // ignored (below min_ml_confidence): blended = 0.1, below hold_conversion_threshold

	out := in.Integrate(prop, pred)
	assert.Equal(t, ActionHold, out.Action)
}

func TestMLDirection_MapsPredictedClass(t *testing.T) {
	assert.Equal(t, strategy.Neutral, mlDirection(ensemble.Prediction{PredictedClass: ensemble.ClassHold}))
	assert.Equal(t, strategy.Long, mlDirection(ensemble.Prediction{PredictedClass: ensemble.ClassBuy}))
	assert.Equal(t, strategy.Short, mlDirection(ensemble.Prediction{PredictedClass: ensemble.ClassSell}))
}
