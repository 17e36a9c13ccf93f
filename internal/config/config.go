// Package config loads the decision core's externalized configuration
// surface. Every threshold the spec names lives here with a documented
// default — nothing is a magic number inline in the decision logic.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// RegimeConfig holds the cascading-rule thresholds RegimeClassifier uses.
// The rule order is strict: trending, then high_volatility, then
// tight_range, else normal_range — the first clause that matches wins,
// so there is never a tie to break across regimes.
type RegimeConfig struct {
	ADXTrendingThreshold        float64 `json:"adx_trending_threshold"`
	BBWidthTightPercentile      float64 `json:"bb_width_tight_percentile"`
	RangeFractionTightThreshold float64 `json:"range_fraction_tight_threshold"`
	RealizedVolHighZ            float64 `json:"realized_vol_high_z"`
	PersistenceBars             int     `json:"persistence_bars"`
	LookbackBars                int     `json:"lookback_bars"`
}

// StrategyThresholds carries the per-strategy entry thresholds.
type StrategyThresholds struct {
	ATRMultiplier          float64 `json:"atr_multiplier"`
	BBReversalZ            float64 `json:"bb_reversal_z"`
	StochasticOverbought   float64 `json:"stochastic_overbought"`
	StochasticOversold     float64 `json:"stochastic_oversold"`
	DonchianBreakoutBars   int     `json:"donchian_breakout_bars"`
	MACDSignalEps          float64 `json:"macd_signal_eps"`
	ADXTrendMin            float64 `json:"adx_trend_min"`
	ConfidenceFloor        float64 `json:"confidence_floor"`
	ConfidenceCeiling      float64 `json:"confidence_ceiling"`
}

// RiskConfig holds Kelly sizing, drawdown-gate, and SL/TP parameters.
type RiskConfig struct {
	KellySafetyFactor     float64 `json:"kelly_safety_factor"`
	KellyMaxFraction      float64 `json:"kelly_max_fraction"`
	MinTradesForKelly     int     `json:"min_trades_for_kelly"`
	DefaultWinRate        float64 `json:"default_win_rate"`
	DailyDrawdownLimitPct float64 `json:"daily_drawdown_limit_pct"`
	ConsecutiveLossLimit  int     `json:"consecutive_loss_limit"`
	DrawdownPauseBars     int     `json:"drawdown_pause_bars"`
	MaxPositionValueRatio float64 `json:"max_position_value_ratio"`
	MinPositionSizeJPY    float64 `json:"min_position_size_jpy"`

	StopLoss   StopLossConfig   `json:"stop_loss"`
	TakeProfit TakeProfitConfig `json:"take_profit"`
	RiskScore  RiskScoreConfig  `json:"risk_score"`
}

// StopLossConfig holds per-regime ATR multiples RiskManager uses to place
// the stop-loss leg of a bracket (regime.RegimeConfig's volatility
// classification selects which multiple applies).
type StopLossConfig struct {
	ATRMultiplierLowVolatility    float64 `json:"atr_multiplier_low_volatility"`
	ATRMultiplierNormalVolatility float64 `json:"atr_multiplier_normal_volatility"`
	ATRMultiplierHighVolatility   float64 `json:"atr_multiplier_high_volatility"`
}

// TakeProfitConfig holds the per-regime risk/reward ratio table and the
// floor RiskManager enforces on the resulting profit rate.
type TakeProfitConfig struct {
	RiskRewardRatio map[string]float64 `json:"risk_reward_ratio"`
	MinProfitRate   float64            `json:"min_profit_rate"`
}

// RiskScoreConfig names the anomaly-score gate's two thresholds: above
// ConditionalThreshold the trade is sized down (handled by the caller),
// above DenyThreshold it is rejected outright.
type RiskScoreConfig struct {
	ConditionalThreshold float64 `json:"conditional_threshold"`
	DenyThreshold        float64 `json:"deny_threshold"`
}

// BalanceAlertConfig names the minimum free margin RiskManager requires
// before approving a new entry (spec: balance_alert.min_required_margin).
type BalanceAlertConfig struct {
	MinRequiredMargin float64 `json:"min_required_margin"`
}

// MLConfig holds SignalIntegrator's blend weighting and override
// thresholds (spec §6 ml.*).
type MLConfig struct {
	StrategyWeight          float64 `json:"strategy_weight"`
	MLWeight                float64 `json:"ml_weight"`
	ConfidenceThreshold     float64 `json:"confidence_threshold"`
	MinMLConfidence         float64 `json:"min_ml_confidence"`
	HighConfidenceThreshold float64 `json:"high_confidence_threshold"`
	AgreementBonus          float64 `json:"agreement_bonus"`
	DisagreementPenalty     float64 `json:"disagreement_penalty"`
	HoldConversionThreshold float64 `json:"hold_conversion_threshold"`
}

// DynamicStrategySelection holds the per-regime strategy weight table
// (spec: dynamic_strategy_selection.regime_strategy_mapping.<regime>.
// <strategy>). Every inner map must sum to 1.
type DynamicStrategySelection struct {
	RegimeStrategyMapping map[string]map[string]float64 `json:"regime_strategy_mapping"`
}

// PositionConfig holds PositionTracker's cooldown and trend-strength
// bypass parameters, and RiskManager's per-regime open-position cap
// (spec: position.max_open_positions.<regime>).
type PositionConfig struct {
	CooldownBars           int            `json:"cooldown_bars"`
	CooldownBypassStrength float64        `json:"cooldown_bypass_strength"`
	MaxOpenPositions       map[string]int `json:"max_open_positions"`
}

// ExecutionConfig holds order-placement behavior.
type ExecutionConfig struct {
	OrderTimeout         time.Duration `json:"order_timeout"`
	MaxRetries           int           `json:"max_retries"`
	ReconcileInterval    time.Duration `json:"reconcile_interval"`
	PostOnlyOffsetTicks  int           `json:"post_only_offset_ticks"`
	PostOnlyExpiry       time.Duration `json:"post_only_expiry"`
	VerifyAfter          time.Duration `json:"verify_after"`
}

// EnsembleConfig points at the model artifact directory and degradation
// policy.
type EnsembleConfig struct {
	ModelDir              string `json:"model_dir"`
	StrategySignalPolicy  string `json:"strategy_signal_policy"` // "zero_fill" | "skip"
	ReloadPollInterval    time.Duration `json:"reload_poll_interval"`
}

// ExchangeConfig holds the Bitbank endpoint + credentials (credentials
// come from the environment via godotenv, never from the JSON file).
type ExchangeConfig struct {
	BaseURL      string `json:"base_url"`
	WSPublicURL  string `json:"ws_public_url"`
	WSPrivateURL string `json:"ws_private_url"`
	Pair         string `json:"pair"`
	APIKey       string `json:"-"`
	APISecret    string `json:"-"`
}

// ServerConfig holds the gin HTTP surface configuration.
type ServerConfig struct {
	ListenAddr      string `json:"listen_addr"`
	SchedulerAudience string `json:"scheduler_audience"`
	AdminTOTPSecret string `json:"-"`
}

// Config is the full process configuration tree.
type Config struct {
	Mode                     string                   `json:"mode"` // paper | live | backtest
	Regime                   RegimeConfig             `json:"regime"`
	Strategy                 StrategyThresholds       `json:"strategy"`
	DynamicStrategySelection DynamicStrategySelection `json:"dynamic_strategy_selection"`
	Risk                     RiskConfig               `json:"risk"`
	Execution                ExecutionConfig          `json:"execution"`
	Position                 PositionConfig           `json:"position"`
	ML                       MLConfig                 `json:"ml"`
	Ensemble                 EnsembleConfig           `json:"ensemble"`
	BalanceAlert             BalanceAlertConfig       `json:"balance_alert"`
	Exchange                 ExchangeConfig           `json:"exchange"`
	Server                   ServerConfig             `json:"server"`
	StateDir                 string                   `json:"state_dir"`
	SQLitePath               string                   `json:"sqlite_path"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Mode: "paper",
		Regime: RegimeConfig{
			ADXTrendingThreshold:        25.0,
			BBWidthTightPercentile:      0.2,
			RangeFractionTightThreshold: 0.015,
			RealizedVolHighZ:            2.0,
			PersistenceBars:             3,
			LookbackBars:                20,
		},
		Strategy: StrategyThresholds{
			ATRMultiplier:        1.5,
			BBReversalZ:          2.0,
			StochasticOverbought: 80.0,
			StochasticOversold:   20.0,
			DonchianBreakoutBars: 20,
			MACDSignalEps:        0.0,
			ADXTrendMin:          20.0,
			ConfidenceFloor:      0.2,
			ConfidenceCeiling:    0.8,
		},
		DynamicStrategySelection: DynamicStrategySelection{
			RegimeStrategyMapping: map[string]map[string]float64{
				"tight_range": {
					"atr_based":           0.10,
					"bb_reversal":         0.30,
					"stochastic_reversal": 0.30,
					"donchian_channel":    0.05,
					"macd_ema_crossover":  0.10,
					"adx_trend_strength":  0.15,
				},
				"normal_range": {
					"atr_based":           0.17,
					"bb_reversal":         0.17,
					"stochastic_reversal": 0.17,
					"donchian_channel":    0.17,
					"macd_ema_crossover":  0.16,
					"adx_trend_strength":  0.16,
				},
				"trending": {
					"atr_based":           0.20,
					"bb_reversal":         0.05,
					"stochastic_reversal": 0.05,
					"donchian_channel":    0.25,
					"macd_ema_crossover":  0.20,
					"adx_trend_strength":  0.25,
				},
				"high_volatility": {
					"atr_based":           0.25,
					"bb_reversal":         0.15,
					"stochastic_reversal": 0.10,
					"donchian_channel":    0.15,
					"macd_ema_crossover":  0.15,
					"adx_trend_strength":  0.20,
				},
			},
		},
		Risk: RiskConfig{
			KellySafetyFactor:     0.5,
			KellyMaxFraction:      0.1,
			MinTradesForKelly:     20,
			DefaultWinRate:        0.5,
			DailyDrawdownLimitPct: 0.05,
			ConsecutiveLossLimit:  4,
			DrawdownPauseBars:     24,
			MaxPositionValueRatio: 0.3,
			MinPositionSizeJPY:    5000,
			StopLoss: StopLossConfig{
				ATRMultiplierLowVolatility:    1.2,
				ATRMultiplierNormalVolatility: 1.0,
				ATRMultiplierHighVolatility:   1.6,
			},
			TakeProfit: TakeProfitConfig{
				RiskRewardRatio: map[string]float64{
					"tight_range":     1.2,
					"normal_range":    1.5,
					"trending":        2.5,
					"high_volatility": 1.8,
				},
				MinProfitRate: 0.003,
			},
			RiskScore: RiskScoreConfig{
				ConditionalThreshold: 0.6,
				DenyThreshold:        0.85,
			},
		},
		Execution: ExecutionConfig{
			OrderTimeout:        10 * time.Second,
			MaxRetries:          3,
			ReconcileInterval:   10 * time.Minute,
			PostOnlyOffsetTicks: 1,
			PostOnlyExpiry:      15 * time.Second,
			VerifyAfter:         5 * time.Second,
		},
		Position: PositionConfig{
			CooldownBars:           3,
			CooldownBypassStrength: 0.7,
			MaxOpenPositions: map[string]int{
				"tight_range":     1,
				"normal_range":    2,
				"trending":        3,
				"high_volatility": 1,
			},
		},
		ML: MLConfig{
			StrategyWeight:          0.7,
			MLWeight:                0.3,
			ConfidenceThreshold:     0.5,
			MinMLConfidence:         0.2,
			HighConfidenceThreshold: 0.75,
			AgreementBonus:          0.15,
			DisagreementPenalty:     0.25,
			HoldConversionThreshold: 0.35,
		},
		Ensemble: EnsembleConfig{
			ModelDir:             "./models",
			StrategySignalPolicy: "zero_fill",
			ReloadPollInterval:   30 * time.Second,
		},
		BalanceAlert: BalanceAlertConfig{
			MinRequiredMargin: 14000,
		},
		Exchange: ExchangeConfig{
			BaseURL:      "https://api.bitbank.cc",
			WSPublicURL:  "wss://stream.bitbank.cc",
			WSPrivateURL: "wss://stream-private.bitbank.cc",
			Pair:         "btc_jpy",
		},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			SchedulerAudience: "bitbank-decision-core",
		},
		StateDir:   "./state",
		SQLitePath: "./state/ledger.db",
	}
}

// Load reads a JSON config file over the defaults, then overlays secrets
// from the environment (populated via .env in local/dev through
// godotenv.Load, or the real environment in production).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	_ = godotenv.Load() // ignored: absent .env is normal in production

	cfg.Exchange.APIKey = os.Getenv("BITBANK_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("BITBANK_API_SECRET")
	cfg.Server.AdminTOTPSecret = os.Getenv("ADMIN_TOTP_SECRET")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "paper", "live", "backtest":
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Mode == "live" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("live mode requires BITBANK_API_KEY and BITBANK_API_SECRET")
	}
	if c.Risk.KellyMaxFraction <= 0 || c.Risk.KellyMaxFraction > 1 {
		return fmt.Errorf("risk.kelly_max_fraction must be in (0, 1]")
	}
	if c.Ensemble.StrategySignalPolicy != "zero_fill" && c.Ensemble.StrategySignalPolicy != "skip" {
		return fmt.Errorf("ensemble.strategy_signal_policy must be zero_fill or skip")
	}
	for rg, weights := range c.DynamicStrategySelection.RegimeStrategyMapping {
		var sum float64
		for _, w := range weights {
			sum += w
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("dynamic_strategy_selection.regime_strategy_mapping.%s weights must sum to 1, got %f", rg, sum)
		}
	}
	if mlSum := c.ML.StrategyWeight + c.ML.MLWeight; mlSum < 0.999 || mlSum > 1.001 {
		return fmt.Errorf("ml.strategy_weight + ml.ml_weight must sum to 1, got %f", mlSum)
	}
	return nil
}
