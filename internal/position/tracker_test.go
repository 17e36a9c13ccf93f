package position

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

func TestTracker_InCooldown_NeverClosedIsNotInCooldown(t *testing.T) {
	tr := NewTracker(3)
	assert.False(t, tr.InCooldown("btc_jpy", 10))
}

func TestTracker_InCooldown_WithinWindow(t *testing.T) {
	tr := NewTracker(3)
	tr.RecordClose("btc_jpy", 10)
	assert.True(t, tr.InCooldown("btc_jpy", 11))
	assert.True(t, tr.InCooldown("btc_jpy", 12))
	assert.False(t, tr.InCooldown("btc_jpy", 13))
}

func TestTracker_ForceResetClearsCooldownEarly(t *testing.T) {
	tr := NewTracker(5)
	tr.RecordClose("btc_jpy", 10)
	assert.True(t, tr.InCooldown("btc_jpy", 11))
	tr.ForceReset("btc_jpy")
	assert.False(t, tr.InCooldown("btc_jpy", 11))
}

func TestTracker_CooldownIsPerPair(t *testing.T) {
	tr := NewTracker(3)
	tr.RecordClose("btc_jpy", 10)
	assert.False(t, tr.InCooldown("eth_jpy", 10))
}

func TestDetectOrphans_PositionWithoutOrdersIsOrphan(t *testing.T) {
	positions := []exchange.Position{{PositionID: "p1", Pair: "btc_jpy"}}
	var orders []exchange.Order
	orphans := DetectOrphans(positions, orders)
	assert.Len(t, orphans, 1)
}

func TestDetectOrphans_PositionWithOrdersIsNotOrphan(t *testing.T) {
	positions := []exchange.Position{{PositionID: "p1", Pair: "btc_jpy"}}
	orders := []exchange.Order{{OrderID: "o1", Pair: "btc_jpy"}}
	orphans := DetectOrphans(positions, orders)
	assert.Empty(t, orphans)
}

func TestCleanupOrphans_FlattensWithOppositeSide(t *testing.T) {
	mock := &exchange.MockFacade{}
	orphans := []exchange.Position{
		{PositionID: "p1", Pair: "btc_jpy", Side: exchange.SideBuy, Size: decimal.NewFromInt(1)},
	}
	CleanupOrphans(context.Background(), mock, orphans, logger.Named("test"))
	assert.Len(t, mock.CreatedOrders, 1)
	assert.Equal(t, exchange.SideSell, mock.CreatedOrders[0].Side)
}
