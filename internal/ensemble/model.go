package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nao-namake/bitbank-decision-core/internal/features"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

// Predicted class indices, matching ClassProbs' SELL/HOLD/BUY order.
const (
	ClassSell = 0
	ClassHold = 1
	ClassBuy  = 2
)

// DegradationLevel records which rung of the graceful-degradation ladder
// produced a Prediction, so callers (SignalIntegrator, metrics) can weigh
// or log it accordingly.
type DegradationLevel string

const (
	// LevelFull: all three base models plus the meta-learner ran.
	LevelFull DegradationLevel = "full"
	// LevelBasic: meta-learner unavailable or errored; one surviving base
	// model's own class probabilities are used directly.
	LevelBasic DegradationLevel = "basic"
	// LevelUniform: every model unavailable; a uniform distribution is
	// returned with confidence forced to 0 so downstream sizing treats
	// the ML leg as uninformative rather than crashing the cycle.
	LevelUniform DegradationLevel = "uniform"
)

// Prediction is EnsembleModel's output for one cycle: a 3-class
// probability vector (SELL/HOLD/BUY, summing to 1), the argmax class,
// and its confidence.
type Prediction struct {
	ClassProbabilities ClassProbs
	PredictedClass     int
	Confidence         float64
	Degradation        DegradationLevel
	BaseOutputs        map[string]ClassProbs
}

// metaFeatureOrder names the meta-learner's 15-wide input in the exact
// order buildMetaFeatures produces it: 9 per-class base-model
// probabilities, 3 per-model max-probabilities, 1 model-agreement flag,
// 1 Shannon entropy of the averaged probability vector, 1 top1-top2 gap.
var metaFeatureOrder = []string{
	"lightgbm_sell_prob", "lightgbm_hold_prob", "lightgbm_buy_prob",
	"xgboost_sell_prob", "xgboost_hold_prob", "xgboost_buy_prob",
	"random_forest_sell_prob", "random_forest_hold_prob", "random_forest_buy_prob",
	"lightgbm_max_prob", "xgboost_max_prob", "random_forest_max_prob",
	"model_agreement", "probability_entropy", "top1_top2_gap",
}

// ModelSet is the full loaded artifact: three base models plus the
// meta-learner, versioned, immutable once loaded.
type ModelSet struct {
	Version              string        `json:"version"`
	StrategySignalPolicy string        `json:"strategy_signal_policy"`
	LightGBM             *TreeEnsemble `json:"lightgbm"`
	XGBoost              *TreeEnsemble `json:"xgboost"`
	RandomForest         *TreeEnsemble `json:"random_forest"`
	Meta                 *TreeEnsemble `json:"meta"`
	MetaFeatureNames      []string     `json:"meta_feature_names"`
	loadedAt              time.Time
}

// Model is EnsembleModel: it owns an atomically-swappable ModelSet and
// exposes Predict with the graceful degradation ladder the spec
// describes (full stacking -> basic single-model -> uniform neutral).
type Model struct {
	current  atomic.Pointer[ModelSet]
	modelDir string
	mgr      *features.Manager
	log      *logger.Logger
	lastMod  time.Time
}

// NewModel builds an EnsembleModel pointed at modelDir, attempting an
// initial load (a load failure is not fatal: Predict degrades to uniform
// until a valid artifact appears).
func NewModel(modelDir string, mgr *features.Manager) *Model {
	m := &Model{modelDir: modelDir, mgr: mgr, log: logger.Named("ensemble")}
	if err := m.reload(); err != nil {
		m.log.Warnf("initial model load failed, starting in uniform degradation: %v", err)
	}
	return m
}

func (m *Model) modelPath() string {
	return filepath.Join(m.modelDir, "ensemble.json")
}

// reload reads the artifact file and atomically swaps it in.
func (m *Model) reload() error {
	data, err := os.ReadFile(m.modelPath())
	if err != nil {
		return fmt.Errorf("read model artifact: %w", err)
	}
	var set ModelSet
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("parse model artifact: %w", err)
	}
	if len(set.MetaFeatureNames) > 0 && len(set.MetaFeatureNames) != len(metaFeatureOrder) {
		m.log.Warnf("model artifact declares %d meta feature names, expected %d; ignoring declared order", len(set.MetaFeatureNames), len(metaFeatureOrder))
	}
	set.loadedAt = time.Now()
	m.current.Store(&set)
	return nil
}

// WatchForReload polls the artifact's mtime every interval and performs
// an atomic pointer swap when it changes, so a freshly trained model can
// be dropped in without a process restart.
func (m *Model) WatchForReload(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(m.modelPath())
			if err != nil {
				continue
			}
			if info.ModTime().After(m.lastMod) {
				if err := m.reload(); err != nil {
					m.log.Warnf("model hot-reload failed: %v", err)
					continue
				}
				m.lastMod = info.ModTime()
				m.log.Infof("ensemble model hot-reloaded from %s", m.modelPath())
			}
		}
	}
}

// Predict runs the stacking ensemble over v, descending the degradation
// ladder as models are unavailable or error.
func (m *Model) Predict(v *features.Vector) Prediction {
	set := m.current.Load()
	if set == nil {
		return uniformPrediction()
	}

	row := m.inputRow(v, set.StrategySignalPolicy)
	outputs := make(map[string]ClassProbs)

	lgbm, lgbmErr := predictOrZero(set.LightGBM, row, outputs, "lightgbm")
	xgb, xgbErr := predictOrZero(set.XGBoost, row, outputs, "xgboost")
	rf, rfErr := predictOrZero(set.RandomForest, row, outputs, "random_forest")

	if set.Meta != nil && lgbmErr == nil && xgbErr == nil && rfErr == nil {
		metaRow := buildMetaFeatures(lgbm, xgb, rf)
		if probs, err := set.Meta.Predict(metaRow); err == nil {
			return Prediction{
				ClassProbabilities: probs,
				PredictedClass:     probs.Argmax(),
				Confidence:         probs.Max(),
				Degradation:        LevelFull,
				BaseOutputs:        outputs,
			}
		}
	}

	for name, err := range map[string]error{"lightgbm": lgbmErr, "xgboost": xgbErr, "random_forest": rfErr} {
		if err == nil {
			probs := outputs[name]
			return Prediction{
				ClassProbabilities: probs,
				PredictedClass:     probs.Argmax(),
				Confidence:         probs.Max(),
				Degradation:        LevelBasic,
				BaseOutputs:        outputs,
			}
		}
	}

	return uniformPrediction()
}

func uniformPrediction() Prediction {
	return Prediction{
		ClassProbabilities: ClassProbs{1.0 / 3, 1.0 / 3, 1.0 / 3},
		PredictedClass:     ClassHold,
		Confidence:         0,
		Degradation:        LevelUniform,
	}
}

func predictOrZero(e *TreeEnsemble, row []float64, outputs map[string]ClassProbs, name string) (ClassProbs, error) {
	if e == nil {
		return ClassProbs{}, fmt.Errorf("%s not loaded", name)
	}
	p, err := e.Predict(row)
	if err != nil {
		return ClassProbs{}, err
	}
	outputs[name] = p
	return p, nil
}

// inputRow builds the 55-wide base-model input: the 49 market features
// plus the 6 strategy-signal columns, exactly as v holds them. The
// policy argument (zero_fill | skip) is not consulted: the
// strategy-signal columns are passed through unchanged at every
// degradation level, and no separate 49-feature input is built.
func (m *Model) inputRow(v *features.Vector, policy string) []float64 {
	return v.ToSlice()
}

// buildMetaFeatures assembles the meta-learner's 15-wide input following
// metaFeatureOrder: each base model's 3 class probabilities (9 values),
// each model's max probability (3 values), a model-agreement flag (all
// three argmax the same class), the Shannon entropy of the averaged
// probability vector, and the gap between the averaged vector's top two
// probabilities.
func buildMetaFeatures(lgbm, xgb, rf ClassProbs) []float64 {
	out := make([]float64, 0, 15)
	out = append(out, lgbm[0], lgbm[1], lgbm[2])
	out = append(out, xgb[0], xgb[1], xgb[2])
	out = append(out, rf[0], rf[1], rf[2])
	out = append(out, lgbm.Max(), xgb.Max(), rf.Max())

	agreement := 0.0
	if lgbm.Argmax() == xgb.Argmax() && xgb.Argmax() == rf.Argmax() {
		agreement = 1
	}
	out = append(out, agreement)

	avg := averageProbs(lgbm, xgb, rf)
	out = append(out, shannonEntropy(avg), top1Top2Gap(avg))
	return out
}

func averageProbs(a, b, c ClassProbs) ClassProbs {
	var out ClassProbs
	for i := range out {
		out[i] = (a[i] + b[i] + c[i]) / 3
	}
	return out
}

func shannonEntropy(p ClassProbs) float64 {
	var h float64
	for _, pi := range p {
		if pi > 0 {
			h -= pi * math.Log2(pi)
		}
	}
	return h
}

func top1Top2Gap(p ClassProbs) float64 {
	top1, top2 := 0.0, 0.0
	for _, v := range p {
		if v > top1 {
			top2 = top1
			top1 = v
		} else if v > top2 {
			top2 = v
		}
	}
	return top1 - top2
}
