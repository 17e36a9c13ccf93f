// Package ensemble implements EnsembleModel: a 3-class (SELL/HOLD/BUY)
// stacking ensemble of three base models (gradient-boosted trees standing
// in for LightGBM and XGBoost, plus a bagged-tree forest standing in for
// RandomForest) feeding a LightGBM-style meta-learner, with a graceful
// degradation ladder when models are missing or inference fails.
//
// Pickled model artifacts are treated as an opaque blob behind an
// interface (see DESIGN.md); this package's concrete persistence format
// is a plain JSON tree-ensemble rather than real pickle/LightGBM files,
// so swapping in real bindings later only touches this file.
package ensemble

import (
	"fmt"
	"math"
)

// NumClasses is the spec's ternary target: SELL=0, HOLD=1, BUY=2.
const NumClasses = 3

// ClassProbs is a per-class score or probability vector in SELL/HOLD/BUY
// order.
type ClassProbs [NumClasses]float64

// TreeNode is one node of a binary decision tree. Leaf nodes have
// Feature < 0 and carry Value, one raw score per class; internal nodes
// split on Feature <= Threshold.
type TreeNode struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Value     ClassProbs `json:"value"`
	Left      *TreeNode  `json:"left,omitempty"`
	Right     *TreeNode  `json:"right,omitempty"`
}

func (n *TreeNode) isLeaf() bool { return n.Left == nil && n.Right == nil }

// eval walks the tree for one feature row and returns its leaf's
// per-class raw scores.
func (n *TreeNode) eval(row []float64) ClassProbs {
	cur := n
	for !cur.isLeaf() {
		if cur.Feature < 0 || cur.Feature >= len(row) {
			return cur.Value
		}
		if row[cur.Feature] <= cur.Threshold {
			if cur.Left == nil {
				return cur.Value
			}
			cur = cur.Left
		} else {
			if cur.Right == nil {
				return cur.Value
			}
			cur = cur.Right
		}
	}
	return cur.Value
}

// Aggregation selects how a TreeEnsemble combines its trees' outputs.
type Aggregation string

const (
	// AggregateSum is additive boosting: base score + sum of tree outputs.
	AggregateSum Aggregation = "sum"
	// AggregateMean is bagging: the mean of every tree's output.
	AggregateMean Aggregation = "mean"
)

// TreeEnsemble is a JSON-serializable set of trees plus how to combine
// them, standing in for one of LightGBM/XGBoost/RandomForest/the
// meta-learner.
type TreeEnsemble struct {
	Name        string       `json:"name"`
	Aggregation Aggregation  `json:"aggregation"`
	BaseScore   ClassProbs   `json:"base_score"`
	Trees       []*TreeNode  `json:"trees"`
	NumFeatures int          `json:"num_features"`
}

// Predict runs every tree over the row, aggregates its per-class raw
// scores per Aggregation, and returns a softmax-normalized probability
// vector over SELL/HOLD/BUY (testable property M1: non-negative, sums
// to 1).
func (e *TreeEnsemble) Predict(row []float64) (ClassProbs, error) {
	if e.NumFeatures > 0 && len(row) < e.NumFeatures {
		return ClassProbs{}, fmt.Errorf("tree ensemble %s expects %d features, got %d", e.Name, e.NumFeatures, len(row))
	}
	if len(e.Trees) == 0 {
		return softmax3(e.BaseScore), nil
	}

	var sum ClassProbs
	switch e.Aggregation {
	case AggregateMean:
		for _, t := range e.Trees {
			leaf := t.eval(row)
			for c := 0; c < NumClasses; c++ {
				sum[c] += leaf[c]
			}
		}
		for c := 0; c < NumClasses; c++ {
			sum[c] /= float64(len(e.Trees))
		}
	default: // AggregateSum
		sum = e.BaseScore
		for _, t := range e.Trees {
			leaf := t.eval(row)
			for c := 0; c < NumClasses; c++ {
				sum[c] += leaf[c]
			}
		}
	}
	return softmax3(sum), nil
}

// softmax3 normalizes three raw class scores into a probability vector
// that sums to exactly 1.
func softmax3(scores ClassProbs) ClassProbs {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	var exp ClassProbs
	var total float64
	for c, s := range scores {
		e := math.Exp(s - max)
		exp[c] = e
		total += e
	}
	if total == 0 || math.IsNaN(total) {
		return ClassProbs{0, 1, 0} // uninformative: certain HOLD
	}
	for c := range exp {
		exp[c] /= total
	}
	return exp
}

// Argmax returns the index of p's largest entry, the predicted class.
func (p ClassProbs) Argmax() int {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// Max returns p's largest entry, used as the prediction's confidence.
func (p ClassProbs) Max() float64 {
	return p[p.Argmax()]
}
