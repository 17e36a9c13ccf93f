// Package cycle implements TradingCycleManager: the orchestrator that
// runs one full decision cycle (fetch bars -> features -> regime ->
// strategies -> ensemble -> signal integration -> risk -> execution)
// under a single process-wide reentrancy lock, grounded on the teacher's
// auto_trader.go Run()/runCycle() ticker-loop idiom (see DESIGN.md).
package cycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/ensemble"
	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/execution"
	"github.com/nao-namake/bitbank-decision-core/internal/features"
	"github.com/nao-namake/bitbank-decision-core/internal/indicators"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
	"github.com/nao-namake/bitbank-decision-core/internal/metrics"
	"github.com/nao-namake/bitbank-decision-core/internal/notify"
	"github.com/nao-namake/bitbank-decision-core/internal/position"
	"github.com/nao-namake/bitbank-decision-core/internal/regime"
	"github.com/nao-namake/bitbank-decision-core/internal/risk"
	"github.com/nao-namake/bitbank-decision-core/internal/signal"
	"github.com/nao-namake/bitbank-decision-core/internal/store"
	"github.com/nao-namake/bitbank-decision-core/internal/strategy"
)

// Outcome summarizes what one cycle did, for logging/metrics/tests.
type Outcome struct {
	CycleID    string
	Regime     regime.Regime
	Action     signal.Action
	Approved   bool
	Reason     risk.RejectionReason
	Executed   bool
	Err        error
}

// Manager is TradingCycleManager.
type Manager struct {
	cfg       *config.Config
	facade    exchange.Facade
	ledger    *store.Ledger
	notifier  *notify.Notifier

	featureMgr *features.Manager
	generator  *features.Generator
	classifier *regime.Classifier
	strategyEngine *strategy.Engine
	strategyMgr    *strategy.Manager
	ensembleModel  *ensemble.Model
	integrator     *signal.Integrator
	riskMgr        *risk.Manager
	execSvc        *execution.Service
	tracker        *position.Tracker

	running atomic.Bool
	mu      sync.Mutex
	cycleCount int

	log *logger.Logger
}

// New builds a TradingCycleManager wiring every component the spec names
// together over the given configuration and exchange façade.
func New(cfg *config.Config, facade exchange.Facade, ledger *store.Ledger, notifier *notify.Notifier) *Manager {
	featureMgr := features.NewManager()
	return &Manager{
		cfg:            cfg,
		facade:         facade,
		ledger:         ledger,
		notifier:       notifier,
		featureMgr:     featureMgr,
		generator:      features.NewGenerator(featureMgr),
		classifier:     regime.NewClassifier(cfg.Regime),
		strategyEngine: strategy.NewEngine(),
		strategyMgr:    strategy.NewManager(strategy.WeightsFromConfig(cfg.DynamicStrategySelection.RegimeStrategyMapping)),
		ensembleModel:  ensemble.NewModel(cfg.Ensemble.ModelDir, featureMgr),
		integrator:     signal.NewIntegrator(cfg.ML),
		riskMgr:        risk.NewManager(cfg.Risk, cfg.Position, cfg.BalanceAlert),
		execSvc: execution.NewService(facade, cfg.Execution.MaxRetries, cfg.Execution.OrderTimeout,
			cfg.Execution.PostOnlyOffsetTicks, cfg.Execution.PostOnlyExpiry, cfg.Execution.VerifyAfter),
		tracker:        position.NewTracker(cfg.Position.CooldownBars),
		log:            logger.Named("cycle"),
	}
}

// RunOnce executes exactly one cycle, or returns immediately with a
// skipped outcome if a previous cycle is still in flight — cycles never
// queue, they skip-on-overlap, since a 5-minute cadence that takes
// longer than 5 minutes means the market has already moved on.
func (m *Manager) RunOnce(ctx context.Context) Outcome {
	if !m.running.CompareAndSwap(false, true) {
		metrics.CycleSkippedOverlap.Inc()
		m.log.Warnf("cycle skipped: previous cycle still running")
		return Outcome{Reason: "cycle_overlap_skip"}
	}
	defer m.running.Store(false)

	cycleID := uuid.NewString()
	ctx = logger.WithCycle(ctx, cycleID)
	start := time.Now()
	log := m.log.ForCycle(ctx)

	m.mu.Lock()
	m.cycleCount++
	currentCycle := m.cycleCount
	m.mu.Unlock()

	outcome := m.runCycle(ctx, log, cycleID, currentCycle)

	metrics.CycleDuration.WithLabelValues(m.cfg.Mode).Observe(time.Since(start).Seconds())
	outcomeLabel := "held"
	switch {
	case outcome.Err != nil:
		outcomeLabel = "error"
	case outcome.Executed:
		outcomeLabel = "entered"
	case !outcome.Approved:
		outcomeLabel = "rejected"
	}
	metrics.CycleOutcome.WithLabelValues(outcomeLabel).Inc()

	return outcome
}

func (m *Manager) runCycle(ctx context.Context, log *logger.Logger, cycleID string, currentCycle int) Outcome {
	series, err := m.facade.GetOHLCV(ctx, m.cfg.Exchange.Pair, 5*time.Minute, features.MinBarsRequired+20)
	if err != nil {
		log.Err(err, "failed to fetch OHLCV")
		return Outcome{CycleID: cycleID, Err: err}
	}

	vector, err := m.generator.Generate(series)
	if err != nil {
		log.Err(err, "feature generation failed")
		return Outcome{CycleID: cycleID, Err: err}
	}

	regimeResult := m.classifier.Classify(series)
	metrics.RegimeClassification.WithLabelValues(string(regimeResult.Regime)).Inc()

	signals := m.strategyEngine.EvaluateAll(series, m.cfg.Strategy)
	for _, sig := range signals {
		metrics.StrategySignalConfidence.WithLabelValues(sig.Strategy).Set(sig.Confidence)
		_ = vector.Set("strategy_signal_"+sig.Strategy, directionScore(sig))
	}
	proposal := m.strategyMgr.Combine(regimeResult.Regime, signals)

	prediction := m.ensembleModel.Predict(vector)
	metrics.EnsembleConfidence.Set(prediction.Confidence)
	metrics.EnsembleClassProbability.WithLabelValues("sell").Set(prediction.ClassProbabilities[ensemble.ClassSell])
	metrics.EnsembleClassProbability.WithLabelValues("hold").Set(prediction.ClassProbabilities[ensemble.ClassHold])
	metrics.EnsembleClassProbability.WithLabelValues("buy").Set(prediction.ClassProbabilities[ensemble.ClassBuy])
	metrics.EnsembleDegradationLevel.WithLabelValues(m.cfg.Mode).Set(degradationLevelValue(prediction.Degradation))

	integrated := m.integrator.Integrate(proposal, prediction)

	cooldownActive := m.tracker.InCooldown(m.cfg.Exchange.Pair, currentCycle)
	trendStrength := regime.TrendStrength(series)

	dd, err := risk.LoadDrawdownState(m.cfg.StateDir, m.cfg.Mode, 0)
	if err != nil {
		log.Err(err, "failed to load drawdown state")
		return Outcome{CycleID: cycleID, Err: err}
	}
	dd.MaybeResume(currentCycle)
	metrics.DrawdownPct.WithLabelValues(m.cfg.Mode).Set(dd.DrawdownPct())
	metrics.DrawdownPhase.WithLabelValues(m.cfg.Mode).Set(phaseValue(dd.Phase))

	balances, err := m.facade.GetBalances(ctx)
	if err != nil {
		log.Err(err, "failed to fetch balances")
		return Outcome{CycleID: cycleID, Err: err}
	}
	equity := equityJPY(balances)
	freeMargin := freeMarginJPY(balances)

	openPositions, err := m.facade.GetOpenPositions(ctx, m.cfg.Exchange.Pair)
	if err != nil {
		log.Err(err, "failed to fetch open positions")
		return Outcome{CycleID: cycleID, Err: err}
	}

	var kellyIn risk.KellyInputs
	if m.ledger != nil {
		kellyIn, _ = m.ledger.KellyInputsSince(ctx, m.cfg.Mode, time.Now().AddDate(0, -3, 0))
	}

	atr := indicators.ATR(series.Highs(), series.Lows(), series.Closes(), 14)
	riskIn := risk.Inputs{
		EquityJPY:      equity,
		FreeMarginJPY:  freeMargin,
		OpenPositions:  len(openPositions),
		Regime:         regimeResult.Regime,
		EntryPrice:     series.Last().Close,
		ATR:            atr,
		CooldownActive: cooldownActive,
		TrendStrength:  trendStrength,
		AnomalyScore:   risk.AnomalyScore(series),
		Kelly:          kellyIn,
	}

	decision := m.riskMgr.Evaluate(integrated, dd, riskIn)
	metrics.KellyFraction.Set(decision.KellyFraction)
	if !decision.Approved {
		metrics.RiskRejections.WithLabelValues(string(decision.Reason)).Inc()
		log.Infof("cycle %s: risk rejected (%s)", cycleID, decision.Reason)
		return Outcome{CycleID: cycleID, Regime: regimeResult.Regime, Action: integrated.Action, Approved: false, Reason: decision.Reason}
	}

	if cooldownActive {
		// The cooldown gate only let this decision through because
		// trend-strength cleared the bypass threshold; clear the
		// cooldown window itself so the next cycle isn't stuck
		// re-evaluating the same bypass.
		m.tracker.ForceReset(m.cfg.Exchange.Pair)
	}

	if err := m.saveDrawdownState(dd); err != nil {
		log.Err(err, "failed to persist drawdown state")
	}

	plan, err := buildEntryPlan(m.cfg, integrated, decision)
	if err != nil {
		log.Err(err, "failed to build entry plan")
		return Outcome{CycleID: cycleID, Err: err}
	}

	if _, err := m.execSvc.OpenAtomic(ctx, plan); err != nil {
		metrics.ExecutionAtomicFailures.Inc()
		if m.notifier != nil {
			m.notifier.Alert(ctx, notify.SeverityCritical, "execution", "atomic_entry_failure", err.Error())
		}
		log.Err(err, "atomic entry failed")
		return Outcome{CycleID: cycleID, Regime: regimeResult.Regime, Action: integrated.Action, Approved: true, Err: err}
	}

	metrics.ExecutionOrdersPlaced.WithLabelValues("entry").Inc()
	metrics.ExecutionOrdersPlaced.WithLabelValues("take_profit").Inc()
	metrics.ExecutionOrdersPlaced.WithLabelValues("stop_loss").Inc()

	log.Infof("cycle %s: executed %s size=%s", cycleID, integrated.Action, decision.SizeJPY.String())
	return Outcome{CycleID: cycleID, Regime: regimeResult.Regime, Action: integrated.Action, Approved: true, Executed: true}
}

func (m *Manager) saveDrawdownState(dd *risk.DrawdownState) error {
	return dd.Save(m.cfg.StateDir)
}

// StartBackgroundLoops launches the ensemble hot-reload watcher and the
// reconciliation sweep independent of the 5-minute RunOnce cadence;
// blocks until ctx is cancelled, so callers run it in its own goroutine.
func (m *Manager) StartBackgroundLoops(ctx context.Context) {
	if m.cfg.Ensemble.ReloadPollInterval > 0 {
		go m.ensembleModel.WatchForReload(ctx, m.cfg.Ensemble.ReloadPollInterval)
	}
	m.execSvc.RunReconcileLoop(ctx, m.cfg.Exchange.Pair, m.cfg.Execution.ReconcileInterval, func() map[string]bool {
		orders, err := m.facade.GetOpenOrders(ctx, m.cfg.Exchange.Pair)
		if err != nil {
			return nil
		}
		expected := make(map[string]bool, len(orders))
		for _, o := range orders {
			expected[o.OrderID] = true
		}
		return expected
	})
}

// Pause/Resume support the admin override surface: they force the
// drawdown state's phase directly, independent of the automatic
// drawdown/consecutive-loss gates.
func (m *Manager) Pause(reason string) error {
	dd, err := risk.LoadDrawdownState(m.cfg.StateDir, m.cfg.Mode, 0)
	if err != nil {
		return err
	}
	dd.Phase = risk.PhasePausedDrawdown
	return dd.Save(m.cfg.StateDir)
}

func (m *Manager) Resume() error {
	dd, err := risk.LoadDrawdownState(m.cfg.StateDir, m.cfg.Mode, 0)
	if err != nil {
		return err
	}
	dd.Phase = risk.PhaseActive
	dd.ConsecutiveLosses = 0
	return dd.Save(m.cfg.StateDir)
}

func directionScore(sig strategy.Signal) float64 {
	switch sig.Direction {
	case strategy.Long:
		return sig.Confidence
	case strategy.Short:
		return -sig.Confidence
	default:
		return 0
	}
}

func degradationLevelValue(level ensemble.DegradationLevel) float64 {
	switch level {
	case ensemble.LevelFull:
		return 1
	case ensemble.LevelBasic:
		return 2
	default:
		return 3
	}
}

func phaseValue(phase risk.DrawdownPhase) float64 {
	switch phase {
	case risk.PhaseActive:
		return 0
	case risk.PhasePausedDrawdown:
		return 1
	default:
		return 2
	}
}

func equityJPY(balances []exchange.Balance) decimal.Decimal {
	for _, b := range balances {
		if b.Currency == "jpy" {
			return b.Free.Add(b.Locked)
		}
	}
	return decimal.Zero
}

// freeMarginJPY is the unlocked JPY balance: the margin actually
// available to open a new position, as opposed to equityJPY's
// free-plus-locked total.
func freeMarginJPY(balances []exchange.Balance) decimal.Decimal {
	for _, b := range balances {
		if b.Currency == "jpy" {
			return b.Free
		}
	}
	return decimal.Zero
}
