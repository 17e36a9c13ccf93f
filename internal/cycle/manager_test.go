package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/features"
	"github.com/nao-namake/bitbank-decision-core/internal/risk"
)

// trendingUpSeries is a strong, consistent uptrend: high ADX, aligned
// +DI/-DI, and EMAs stacked in trend order — the kind of move the
// spec's cooldown-bypass gate (trend-strength >= 0.7) is meant to let
// through even while a cooldown window is active.
func trendingUpSeries(n int) bar.Series {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(bar.Series, n)
	price := 10_000_000.0
	for i := 0; i < n; i++ {
		open := price
		close := price + 3000
		out[i] = bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open, High: close + 500, Low: open - 500, Close: close, Volume: 150,
		}
		price = close
	}
	return out
}

// choppySeries oscillates within a tight band with no sustained
// direction, giving a low ADX/EMA-alignment score — trend strength
// should stay well below the cooldown-bypass threshold.
func choppySeries(n int) bar.Series {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(bar.Series, n)
	price := 10_000_000.0
	for i := 0; i < n; i++ {
		delta := 1500.0
		if i%2 == 0 {
			delta = -1500.0
		}
		open := price
		close := price + delta
		out[i] = bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open, High: open + 800, Low: open - 800, Close: close, Volume: 150,
		}
		price = close
	}
	return out
}

func testManager(t *testing.T, facade exchange.Facade) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Mode = "paper"
	cfg.StateDir = t.TempDir()
	cfg.Ensemble.ModelDir = t.TempDir() // no artifact present -> uniform degradation
	cfg.Risk.MinPositionSizeJPY = 1
	return New(cfg, facade, nil, nil)
}

func TestRunOnce_FullPipelineWithTrendingMarketEnters(t *testing.T) {
	mock := &exchange.MockFacade{
		OHLCV: trendingUpSeries(features.MinBarsRequired + 20),
		Balances: []exchange.Balance{
			{Currency: "jpy", Free: decimal.NewFromInt(10_000_000)},
		},
	}
	mgr := testManager(t, mock)
	outcome := mgr.RunOnce(context.Background())
	require.Nil(t, outcome.Err)
	assert.NotEmpty(t, outcome.CycleID)
}

func TestRunOnce_OHLCVFetchFailureSurfacesError(t *testing.T) {
	mock := &exchange.MockFacade{OHLCVErr: assertError("exchange unavailable")}
	mgr := testManager(t, mock)
	outcome := mgr.RunOnce(context.Background())
	require.Error(t, outcome.Err)
}

func TestRunOnce_SkipsOnOverlap(t *testing.T) {
	mock := &exchange.MockFacade{
		OHLCV: trendingUpSeries(features.MinBarsRequired + 20),
		Balances: []exchange.Balance{
			{Currency: "jpy", Free: decimal.NewFromInt(10_000_000)},
		},
	}
	mgr := testManager(t, mock)
	mgr.running.Store(true)
	outcome := mgr.RunOnce(context.Background())
	assert.Equal(t, "cycle_overlap_skip", string(outcome.Reason))
	mgr.running.Store(false)
}

func TestRunOnce_CooldownForcesHold(t *testing.T) {
	mock := &exchange.MockFacade{
		OHLCV: choppySeries(features.MinBarsRequired + 20),
		Balances: []exchange.Balance{
			{Currency: "jpy", Free: decimal.NewFromInt(10_000_000)},
		},
	}
	mgr := testManager(t, mock)
	mgr.tracker.RecordClose(mgr.cfg.Exchange.Pair, 0)
	outcome := mgr.RunOnce(context.Background())
	assert.False(t, outcome.Approved)
	assert.Equal(t, risk.RejectCooldownActive, outcome.Reason)
}

func TestRunOnce_StrongTrendBypassesCooldown(t *testing.T) {
	mock := &exchange.MockFacade{
		OHLCV: trendingUpSeries(features.MinBarsRequired + 20),
		Balances: []exchange.Balance{
			{Currency: "jpy", Free: decimal.NewFromInt(10_000_000)},
		},
	}
	mgr := testManager(t, mock)
	mgr.tracker.RecordClose(mgr.cfg.Exchange.Pair, 0)
	outcome := mgr.RunOnce(context.Background())
	// a strong enough trend clears the bypass gate, so cooldown itself
	// must never be the rejection reason even if some other gate (e.g.
	// the ML confidence floor under uniform degradation) still holds.
	assert.NotEqual(t, risk.RejectCooldownActive, outcome.Reason)
}

func TestPauseResume_RoundTripsDrawdownPhase(t *testing.T) {
	mgr := testManager(t, &exchange.MockFacade{})
	require.NoError(t, mgr.Pause("manual intervention"))
	require.NoError(t, mgr.Resume())
}

func TestDegradationLevelValue(t *testing.T) {
	assert.Equal(t, 1.0, degradationLevelValue("full"))
	assert.Equal(t, 2.0, degradationLevelValue("basic"))
	assert.Equal(t, 3.0, degradationLevelValue("uniform"))
}

func TestEquityJPY_SumsFreeAndLocked(t *testing.T) {
	balances := []exchange.Balance{
		{Currency: "jpy", Free: decimal.NewFromInt(100), Locked: decimal.NewFromInt(50)},
		{Currency: "btc", Free: decimal.NewFromInt(1)},
	}
	assert.True(t, equityJPY(balances).Equal(decimal.NewFromInt(150)))
}

type assertError string

func (e assertError) Error() string { return string(e) }
