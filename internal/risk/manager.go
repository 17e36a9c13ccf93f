package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/regime"
	"github.com/nao-namake/bitbank-decision-core/internal/signal"
)

// RejectionReason names why a candidate trade failed a gate, used both
// for logging and for the rejection-reason metrics counter.
type RejectionReason string

const (
	RejectNone               RejectionReason = ""
	RejectHold               RejectionReason = "hold_action"
	RejectTradingPaused      RejectionReason = "trading_status_paused"
	RejectConsecutiveLoss    RejectionReason = "consecutive_loss_cap"
	RejectDailyLoss          RejectionReason = "daily_loss_cap"
	RejectCooldownActive     RejectionReason = "cooldown_active"
	RejectMaxPositions       RejectionReason = "max_open_positions"
	RejectAnomalyScore       RejectionReason = "anomaly_score"
	RejectInsufficientMargin RejectionReason = "insufficient_margin"
	RejectBelowMinSize       RejectionReason = "below_min_position_size"
	RejectAboveValueRatio    RejectionReason = "above_max_position_value_ratio"
	RejectZeroKelly          RejectionReason = "zero_kelly_fraction"
)

// Decision is RiskManager's verdict on one integrated signal — an
// ApprovedOrder (Approved=true, every pricing field populated) or a
// Rejected (Approved=false, Reason set).
type Decision struct {
	Approved      bool
	Reason        RejectionReason
	SizeJPY       decimal.Decimal
	KellyFraction float64
	RiskScore     float64
	Rationale     string
	EntryPriceRef float64
	SLPrice       float64
	TPPrice       float64
}

// Inputs carries every per-cycle signal RiskManager's gate chain and
// SL/TP computation need beyond the integrated signal itself.
type Inputs struct {
	EquityJPY      decimal.Decimal
	FreeMarginJPY  decimal.Decimal
	OpenPositions  int
	Regime         regime.Regime
	EntryPrice     float64
	ATR            float64
	CooldownActive bool
	TrendStrength  float64
	AnomalyScore   float64
	Kelly          KellyInputs
}

// Manager is RiskManager: it runs the spec's 7-gate chain, Kelly sizing,
// and per-regime SL/TP computation over one cycle's integrated signal.
type Manager struct {
	cfg     config.RiskConfig
	pos     config.PositionConfig
	balance config.BalanceAlertConfig
}

// NewManager builds a RiskManager over the given risk, position, and
// balance-alert thresholds.
func NewManager(cfg config.RiskConfig, pos config.PositionConfig, balance config.BalanceAlertConfig) *Manager {
	return &Manager{cfg: cfg, pos: pos, balance: balance}
}

// Evaluate runs the full gate chain and returns a Decision.
func (m *Manager) Evaluate(sig signal.Integrated, dd *DrawdownState, in Inputs) Decision {
	if sig.Action == signal.ActionHold {
		return Decision{Approved: false, Reason: RejectHold}
	}

	// Gate 1: trading_status != active.
	if dd.Phase == PhasePausedConsecutive {
		// Gates 1-2 collapse here: DrawdownState.RecordTradeOutcome
		// already moved the phase to paused_consecutive_loss the
		// moment the consecutive-loss cap was hit.
		return Decision{Approved: false, Reason: RejectConsecutiveLoss}
	}
	if dd.Phase == PhasePausedDrawdown {
		// Likewise for the daily-loss/drawdown cap.
		return Decision{Approved: false, Reason: RejectDailyLoss}
	}
	if dd.Phase != PhaseActive {
		return Decision{Approved: false, Reason: RejectTradingPaused}
	}

	// Gate 4: cooldown active and trend-strength below the bypass
	// threshold — a strong enough trend is allowed through regardless.
	if in.CooldownActive && in.TrendStrength < m.pos.CooldownBypassStrength {
		return Decision{Approved: false, Reason: RejectCooldownActive}
	}

	// Gate 5: per-cycle, per-regime position limit.
	if limit, ok := m.pos.MaxOpenPositions[string(in.Regime)]; ok && in.OpenPositions >= limit {
		return Decision{Approved: false, Reason: RejectMaxPositions}
	}

	// Gate 6: anomaly score above the deny threshold rejects outright;
	// between conditional and deny thresholds, sizing is scaled down
	// below (never rejected solely for that).
	if in.AnomalyScore >= m.cfg.RiskScore.DenyThreshold {
		return Decision{Approved: false, Reason: RejectAnomalyScore, RiskScore: in.AnomalyScore}
	}

	// Gate 7: margin insufficient.
	minMargin := decimal.NewFromFloat(m.balance.MinRequiredMargin)
	if in.FreeMarginJPY.LessThan(minMargin) {
		return Decision{Approved: false, Reason: RejectInsufficientMargin}
	}

	fraction := KellyFraction(in.Kelly, m.cfg.KellySafetyFactor, m.cfg.KellyMaxFraction, m.cfg.MinTradesForKelly)
	if fraction <= 0 {
		// Insufficient trade history or non-edge: fall back to a
		// conservative default fraction scaled by signal confidence
		// rather than refusing to trade at all, per spec's default
		// win-rate fallback.
		fraction = m.cfg.DefaultWinRate * m.cfg.KellySafetyFactor * sig.Confidence
		if fraction > m.cfg.KellyMaxFraction {
			fraction = m.cfg.KellyMaxFraction
		}
	}
	if in.AnomalyScore >= m.cfg.RiskScore.ConditionalThreshold {
		// Between conditional and deny thresholds: size down rather
		// than reject, proportionally to how close the score is to
		// the deny threshold.
		span := m.cfg.RiskScore.DenyThreshold - m.cfg.RiskScore.ConditionalThreshold
		damp := 1.0
		if span > 0 {
			damp = 1 - (in.AnomalyScore-m.cfg.RiskScore.ConditionalThreshold)/span
		}
		fraction *= clamp01(damp)
	}
	if fraction <= 0 {
		return Decision{Approved: false, Reason: RejectZeroKelly, RiskScore: in.AnomalyScore}
	}

	size := PositionSize(in.EquityJPY, fraction)
	minSize := decimal.NewFromFloat(m.cfg.MinPositionSizeJPY)
	if size.LessThan(minSize) {
		return Decision{Approved: false, Reason: RejectBelowMinSize, KellyFraction: fraction, RiskScore: in.AnomalyScore}
	}

	maxSize := in.EquityJPY.Mul(decimal.NewFromFloat(m.cfg.MaxPositionValueRatio))
	if size.GreaterThan(maxSize) {
		size = maxSize
	}

	sl, tp := m.computeStopsAndTargets(sig, in)

	return Decision{
		Approved:      true,
		Reason:        RejectNone,
		SizeJPY:       size,
		KellyFraction: fraction,
		RiskScore:     in.AnomalyScore,
		Rationale:     rationale(sig, in, fraction),
		EntryPriceRef: in.EntryPrice,
		SLPrice:       sl,
		TPPrice:       tp,
	}
}

// computeStopsAndTargets implements spec §4.8 step 3: SL distance =
// atr_multiplier(regime) x ATR; TP distance = SL x risk_reward_ratio(regime),
// floored by the configured minimum profit rate. Both per-regime tables
// come from config.RiskConfig.StopLoss/TakeProfit.
func (m *Manager) computeStopsAndTargets(sig signal.Integrated, in Inputs) (slPrice, tpPrice float64) {
	slMultiple := m.stopLossMultiple(in.Regime)
	slDistance := in.ATR * slMultiple
	if slDistance <= 0 {
		slDistance = in.EntryPrice * 0.01
	}

	rr := m.cfg.TakeProfit.RiskRewardRatio[string(in.Regime)]
	if rr <= 0 {
		rr = 1.5
	}
	tpDistance := slDistance * rr
	minProfit := in.EntryPrice * m.cfg.TakeProfit.MinProfitRate
	if tpDistance < minProfit {
		tpDistance = minProfit
	}

	switch sig.Action {
	case signal.ActionEnterLong:
		return in.EntryPrice - slDistance, in.EntryPrice + tpDistance
	case signal.ActionEnterShort:
		return in.EntryPrice + slDistance, in.EntryPrice - tpDistance
	default:
		return in.EntryPrice, in.EntryPrice
	}
}

// stopLossMultiple maps the regime onto the StopLossConfig's volatility
// bucket: tight_range is the low-volatility case, high_volatility is
// itself the high case, everything else is normal.
func (m *Manager) stopLossMultiple(rg regime.Regime) float64 {
	switch rg {
	case regime.TightRange:
		return m.cfg.StopLoss.ATRMultiplierLowVolatility
	case regime.HighVolatility:
		return m.cfg.StopLoss.ATRMultiplierHighVolatility
	default:
		return m.cfg.StopLoss.ATRMultiplierNormalVolatility
	}
}

func rationale(sig signal.Integrated, in Inputs, fraction float64) string {
	return fmt.Sprintf(
		"%s regime=%s strategy_conf=%.2f ml_conf=%.2f agreement=%v kelly=%.4f trend_strength=%.2f anomaly=%.2f",
		sig.Action, in.Regime, sig.Strategy.Confidence, sig.ML.Confidence, sig.Agreement, fraction, in.TrendStrength, in.AnomalyScore,
	)
}

// String gives RejectionReason a human-readable form for logs.
func (r RejectionReason) String() string {
	if r == RejectNone {
		return "approved"
	}
	return string(r)
}
