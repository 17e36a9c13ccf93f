package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stumpTree(feature int, threshold float64, leftVal, rightVal ClassProbs) *TreeNode {
	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      &TreeNode{Value: leftVal},
		Right:     &TreeNode{Value: rightVal},
	}
}

func TestTreeNode_EvalRoutesLeftRight(t *testing.T) {
	left := ClassProbs{1, 0, 0}
	right := ClassProbs{0, 0, 1}
	tree := stumpTree(0, 5.0, left, right)
	assert.Equal(t, left, tree.eval([]float64{3}))
	assert.Equal(t, right, tree.eval([]float64{7}))
	assert.Equal(t, left, tree.eval([]float64{5}))
}

func TestTreeEnsemble_EmptyTreesReturnsSoftmaxOfBaseScore(t *testing.T) {
	e := &TreeEnsemble{Name: "empty", BaseScore: ClassProbs{1, 0, 0}}
	p, err := e.Predict([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
	assert.Equal(t, 0, p.Argmax())
}

func TestTreeEnsemble_MeanAggregation(t *testing.T) {
	e := &TreeEnsemble{
		Name:        "bag",
		Aggregation: AggregateMean,
		Trees: []*TreeNode{
			{Value: ClassProbs{2, 0, 0}},
			{Value: ClassProbs{4, 0, 0}},
			{Value: ClassProbs{6, 0, 0}},
		},
	}
	p, err := e.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Argmax())
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
}

func TestTreeEnsemble_SumAggregationFavorsDominantClass(t *testing.T) {
	e := &TreeEnsemble{
		Name:        "boost",
		Aggregation: AggregateSum,
		Trees:       []*TreeNode{stumpTree(0, 1.0, ClassProbs{-10, 0, 10}, ClassProbs{10, 0, -10})},
	}
	p, err := e.Predict([]float64{5})
	require.NoError(t, err)
	// 5 > threshold 1 routes right, to the {10, 0, -10} leaf.
	assert.Equal(t, ClassSell, p.Argmax())
	assert.Greater(t, p.Max(), 0.99)
}

func TestTreeEnsemble_FeatureCountMismatchErrors(t *testing.T) {
	e := &TreeEnsemble{Name: "strict", NumFeatures: 5, Trees: []*TreeNode{{Value: ClassProbs{1, 0, 0}}}}
	_, err := e.Predict([]float64{1, 2})
	require.Error(t, err)
}

func TestSoftmax3_SumsToOne(t *testing.T) {
	p := softmax3(ClassProbs{1, 2, 3})
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
	assert.Equal(t, 2, p.Argmax())
}

func TestSoftmax3_UniformScoresGiveUniformProbabilities(t *testing.T) {
	p := softmax3(ClassProbs{0, 0, 0})
	assert.InDelta(t, 1.0/3, p[0], 1e-9)
	assert.InDelta(t, 1.0/3, p[1], 1e-9)
	assert.InDelta(t, 1.0/3, p[2], 1e-9)
}

func TestClassProbs_MaxMatchesArgmax(t *testing.T) {
	p := ClassProbs{0.1, 0.2, 0.7}
	assert.Equal(t, ClassBuy, p.Argmax())
	assert.InDelta(t, 0.7, p.Max(), 1e-9)
}
