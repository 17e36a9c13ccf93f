package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	t.Setenv("BITBANK_API_KEY", "")
	t.Setenv("BITBANK_API_SECRET", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, "btc_jpy", cfg.Exchange.Pair)
}

func TestLoad_OverlaysJSONOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	overrides := map[string]any{
		"mode": "backtest",
		"risk": map[string]any{"kelly_max_fraction": 0.2},
	}
	data, err := json.Marshal(overrides)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "backtest", cfg.Mode)
	assert.Equal(t, 0.2, cfg.Risk.KellyMaxFraction)
	// untouched defaults survive the overlay
	assert.Equal(t, 25.0, cfg.Regime.ADXTrendingThreshold)
}

func TestLoad_LiveModeRequiresCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode":"live"}`), 0o644))

	t.Setenv("BITBANK_API_KEY", "")
	t.Setenv("BITBANK_API_SECRET", "")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidModeRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode":"bogus"}`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_KellyMaxFractionOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Risk.KellyMaxFraction = 1.5
	require.Error(t, cfg.validate())
}

func TestValidate_BadStrategySignalPolicy(t *testing.T) {
	cfg := Default()
	cfg.Ensemble.StrategySignalPolicy = "explode"
	require.Error(t, cfg.validate())
}

func TestValidate_RegimeStrategyWeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.DynamicStrategySelection.RegimeStrategyMapping["trending"]["atr_based"] = 0.9
	require.Error(t, cfg.validate())
}

func TestValidate_MLWeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.ML.StrategyWeight = 0.5
	cfg.ML.MLWeight = 0.2
	require.Error(t, cfg.validate())
}

func TestDefault_BalanceAlertAndPositionTablesPopulated(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 14000.0, cfg.BalanceAlert.MinRequiredMargin)
	assert.Equal(t, 1, cfg.Position.MaxOpenPositions["tight_range"])
	assert.Equal(t, 3, cfg.Position.MaxOpenPositions["trending"])
	assert.Equal(t, 0.7, cfg.Position.CooldownBypassStrength)
}

func TestDefault_RiskStopLossAndTakeProfitTablesPopulated(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1.6, cfg.Risk.StopLoss.ATRMultiplierHighVolatility)
	assert.Equal(t, 2.5, cfg.Risk.TakeProfit.RiskRewardRatio["trending"])
	assert.Equal(t, 0.6, cfg.Risk.RiskScore.ConditionalThreshold)
	assert.Less(t, cfg.Risk.RiskScore.ConditionalThreshold, cfg.Risk.RiskScore.DenyThreshold)
}

func TestDefault_ExecutionPostOnlyFieldsPopulated(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1, cfg.Execution.PostOnlyOffsetTicks)
	assert.Greater(t, cfg.Execution.PostOnlyExpiry, time.Duration(0))
	assert.Greater(t, cfg.Execution.VerifyAfter, time.Duration(0))
}
