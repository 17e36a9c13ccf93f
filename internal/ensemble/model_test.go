package ensemble

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao-namake/bitbank-decision-core/internal/features"
)

func writeModelArtifact(t *testing.T, dir string, set ModelSet) {
	t.Helper()
	data, err := json.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ensemble.json"), data, 0o644))
}

func constantEnsemble(probs ClassProbs) *TreeEnsemble {
	return &TreeEnsemble{Name: "const", Aggregation: AggregateMean, Trees: []*TreeNode{{Value: probs}}}
}

func TestModel_NoArtifactDegradesToUniform(t *testing.T) {
	mgr := features.NewManager()
	m := NewModel(t.TempDir(), mgr)
	pred := m.Predict(features.NewVector(mgr))
	assert.Equal(t, LevelUniform, pred.Degradation)
	assert.Equal(t, 0.0, pred.Confidence)
	assert.InDelta(t, 1.0, pred.ClassProbabilities[0]+pred.ClassProbabilities[1]+pred.ClassProbabilities[2], 1e-9)
}

func TestModel_FullStackingWhenAllModelsPresent(t *testing.T) {
	dir := t.TempDir()
	writeModelArtifact(t, dir, ModelSet{
		Version:      "v1",
		LightGBM:     constantEnsemble(ClassProbs{0, 0, 5}),
		XGBoost:      constantEnsemble(ClassProbs{0, 1, 4}),
		RandomForest: constantEnsemble(ClassProbs{0, 0, 5}),
		Meta:         constantEnsemble(ClassProbs{-5, -5, 5}),
	})

	mgr := features.NewManager()
	m := NewModel(dir, mgr)
	pred := m.Predict(features.NewVector(mgr))
	assert.Equal(t, LevelFull, pred.Degradation)
	assert.Equal(t, ClassBuy, pred.PredictedClass)
	assert.InDelta(t, 1.0, pred.ClassProbabilities[0]+pred.ClassProbabilities[1]+pred.ClassProbabilities[2], 1e-9)
	assert.Len(t, pred.BaseOutputs, 3)
}

func TestModel_DegradesToBasicWhenMetaMissing(t *testing.T) {
	dir := t.TempDir()
	writeModelArtifact(t, dir, ModelSet{
		Version:  "v1",
		LightGBM: constantEnsemble(ClassProbs{0, 0, 5}),
	})

	mgr := features.NewManager()
	m := NewModel(dir, mgr)
	pred := m.Predict(features.NewVector(mgr))
	assert.Equal(t, LevelBasic, pred.Degradation)
	assert.Equal(t, ClassBuy, pred.PredictedClass)
}

func TestModel_DegradesToUniformWhenNoBaseModelsLoad(t *testing.T) {
	dir := t.TempDir()
	writeModelArtifact(t, dir, ModelSet{Version: "v1"})

	mgr := features.NewManager()
	m := NewModel(dir, mgr)
	pred := m.Predict(features.NewVector(mgr))
	assert.Equal(t, LevelUniform, pred.Degradation)
	assert.Equal(t, 0.0, pred.Confidence)
}

func TestBuildMetaFeatures_FixedWidthFifteen(t *testing.T) {
	row := buildMetaFeatures(ClassProbs{0.2, 0.3, 0.5}, ClassProbs{0.1, 0.1, 0.8}, ClassProbs{0.3, 0.3, 0.4})
	assert.Len(t, row, 15)
}

func TestBuildMetaFeatures_DeterministicAcrossCalls(t *testing.T) {
	lgbm := ClassProbs{0.2, 0.3, 0.5}
	xgb := ClassProbs{0.1, 0.1, 0.8}
	rf := ClassProbs{0.3, 0.3, 0.4}
	a := buildMetaFeatures(lgbm, xgb, rf)
	b := buildMetaFeatures(lgbm, xgb, rf)
	assert.Equal(t, a, b)
}

func TestBuildMetaFeatures_AgreementFlagSetWhenAllModelsArgmaxMatch(t *testing.T) {
	row := buildMetaFeatures(ClassProbs{0, 0, 1}, ClassProbs{0.1, 0.1, 0.8}, ClassProbs{0.2, 0.2, 0.6})
	assert.Equal(t, 1.0, row[12])
}

func TestBuildMetaFeatures_AgreementFlagClearWhenModelsDisagree(t *testing.T) {
	row := buildMetaFeatures(ClassProbs{1, 0, 0}, ClassProbs{0, 0, 1}, ClassProbs{0, 1, 0})
	assert.Equal(t, 0.0, row[12])
}

func TestShannonEntropy_CertainDistributionIsZero(t *testing.T) {
	assert.InDelta(t, 0, shannonEntropy(ClassProbs{1, 0, 0}), 1e-9)
}

func TestShannonEntropy_UniformDistributionIsMaximal(t *testing.T) {
	assert.Greater(t, shannonEntropy(ClassProbs{1.0 / 3, 1.0 / 3, 1.0 / 3}), shannonEntropy(ClassProbs{0.8, 0.1, 0.1}))
}

func TestTop1Top2Gap_CertainDistributionIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, top1Top2Gap(ClassProbs{0, 0, 1}), 1e-9)
}
