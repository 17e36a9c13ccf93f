// Package exchange provides the façade TradingCycleManager and
// ExecutionService use to talk to Bitbank. Per the spec, transport
// plumbing (rate limiting, retries at the HTTP layer, connection pooling)
// is the boundary this façade exists to hide; only the method contracts
// below are in scope.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
)

// Side is an order's direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the order's execution style.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderRequest is a single order placement request.
type OrderRequest struct {
	Pair          string
	Side          Side
	Type          OrderType
	Size          decimal.Decimal
	Price         decimal.Decimal // zero for market orders
	TriggerPrice  decimal.Decimal // stop orders only
	PostOnly      bool            // reject instead of crossing the book as taker
	ClientOrderID string
}

// Order is the exchange's view of a placed order.
type Order struct {
	OrderID       string
	ClientOrderID string
	Pair          string
	Side          Side
	Type          OrderType
	Size          decimal.Decimal
	Price         decimal.Decimal
	Status        string // "unfilled" | "partially_filled" | "fully_filled" | "cancelled_unfilled" | "cancelled_partially_filled"
	ExecutedAt    time.Time
}

// Balance is one currency's account balance.
type Balance struct {
	Currency  string
	Free      decimal.Decimal
	Locked    decimal.Decimal
}

// Position is an open margin position.
type Position struct {
	PositionID string
	Pair       string
	Side       Side
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// Facade is the full exchange contract the decision core depends on.
type Facade interface {
	GetOHLCV(ctx context.Context, pair string, period time.Duration, limit int) (bar.Series, error)
	GetTicker(ctx context.Context, pair string) (decimal.Decimal, error)
	GetBalances(ctx context.Context) ([]Balance, error)
	GetOpenOrders(ctx context.Context, pair string) ([]Order, error)
	GetOpenPositions(ctx context.Context, pair string) ([]Position, error)
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	GetOrder(ctx context.Context, pair, orderID string) (Order, error)
	CancelOrder(ctx context.Context, pair, orderID string) error
}
