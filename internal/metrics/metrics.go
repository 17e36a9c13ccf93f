// Package metrics adapts the teacher's promauto/custom-registry pattern
// onto this system's cycle/strategy/ensemble/risk/execution/position
// entities (see DESIGN.md).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide custom Prometheus registry, kept separate
// from the default global registry so tests can construct an isolated
// instance without interference.
var Registry = prometheus.NewRegistry()

const namespace = "bitbank_decision_core"

var factory = promauto.With(Registry)

var (
	CycleDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "cycle", Name: "duration_seconds",
		Help:    "Wall-clock duration of one trading cycle.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	CycleOutcome = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cycle", Name: "outcome_total",
		Help: "Count of cycle outcomes (entered, held, rejected, error).",
	}, []string{"outcome"})

	CycleSkippedOverlap = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cycle", Name: "skipped_overlap_total",
		Help: "Count of cycles skipped because a previous cycle was still running.",
	})

	RegimeClassification = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "regime", Name: "classification_total",
		Help: "Count of cycles by classified regime.",
	}, []string{"regime"})

	StrategySignalConfidence = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "strategy", Name: "signal_confidence",
		Help: "Latest per-strategy signal confidence.",
	}, []string{"strategy"})

	EnsembleDegradationLevel = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ensemble", Name: "degradation_level",
		Help: "Ensemble degradation ladder rung currently in effect (1=full, 2=basic, 3=uniform).",
	}, []string{"mode"})

	EnsembleConfidence = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ensemble", Name: "confidence",
		Help: "Latest ensemble prediction's confidence (max class probability).",
	})

	EnsembleClassProbability = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ensemble", Name: "class_probability",
		Help: "Latest ensemble class probabilities (sell/hold/buy).",
	}, []string{"class"})

	KellyFraction = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "risk", Name: "kelly_fraction",
		Help: "Latest computed Kelly sizing fraction.",
	})

	RiskRejections = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "risk", Name: "rejections_total",
		Help: "Count of risk-gate rejections by reason.",
	}, []string{"reason"})

	DrawdownPct = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "risk", Name: "drawdown_pct",
		Help: "Current intraday drawdown as a fraction of day-start equity.",
	}, []string{"mode"})

	DrawdownPhase = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "risk", Name: "drawdown_phase",
		Help: "Current drawdown state machine phase (0=active, 1=paused_drawdown, 2=paused_consecutive_loss).",
	}, []string{"mode"})

	ExecutionAtomicFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "execution", Name: "atomic_failures_total",
		Help: "Count of atomic entry+TP+SL placements that failed and required rollback.",
	})

	ExecutionOrdersPlaced = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "execution", Name: "orders_placed_total",
		Help: "Count of orders placed by leg (entry, take_profit, stop_loss).",
	}, []string{"leg"})

	PositionOrphansCleaned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "position", Name: "orphans_cleaned_total",
		Help: "Count of orphan positions flattened by the cleanup sweep.",
	})
)

// Init registers the standard process/Go collectors onto Registry; every
// domain metric above self-registers at package init via promauto. Call
// once at process startup.
func Init() {
	Registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns the http.Handler gin mounts at GET /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
