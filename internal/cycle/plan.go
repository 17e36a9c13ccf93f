package cycle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/config"
	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/execution"
	"github.com/nao-namake/bitbank-decision-core/internal/risk"
	"github.com/nao-namake/bitbank-decision-core/internal/signal"
)

// buildEntryPlan translates an approved risk.Decision into the exact
// order set ExecutionService must place; the SL/TP prices themselves
// are RiskManager's responsibility (per-regime ATR multiples and
// risk/reward ratio, computed in risk.Manager.Evaluate), so this only
// converts sizing and direction.
func buildEntryPlan(cfg *config.Config, integrated signal.Integrated, decision risk.Decision) (execution.EntryPlan, error) {
	var side exchange.Side
	switch integrated.Action {
	case signal.ActionEnterLong:
		side = exchange.SideBuy
	case signal.ActionEnterShort:
		side = exchange.SideSell
	default:
		return execution.EntryPlan{}, fmt.Errorf("buildEntryPlan called with non-entry action %s", integrated.Action)
	}

	if decision.SLPrice == decision.TPPrice {
		return execution.EntryPlan{}, fmt.Errorf("invalid decision: SL price equals TP price")
	}

	entryRef := decimal.NewFromFloat(decision.EntryPriceRef)
	if entryRef.IsZero() {
		return execution.EntryPlan{}, fmt.Errorf("invalid entry reference price")
	}
	size := decision.SizeJPY.Div(entryRef).Round(8)

	return execution.EntryPlan{
		Pair:            cfg.Exchange.Pair,
		Side:            side,
		Size:            size,
		EntryPriceRef:   entryRef.Round(0),
		TakeProfitPrice: decimal.NewFromFloat(decision.TPPrice).Round(0),
		StopLossPrice:   decimal.NewFromFloat(decision.SLPrice).Round(0),
	}, nil
}
