package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
)

// MockFacade is a deterministic Facade test double: every method returns
// whatever was pre-loaded, or a configured error, with no network I/O.
// Used by cycle/execution tests via gomonkey-free dependency injection.
type MockFacade struct {
	OHLCV         bar.Series
	Ticker        decimal.Decimal
	Balances      []Balance
	OpenOrders    []Order
	OpenPositions []Position
	CreatedOrders []OrderRequest
	NextOrderID   int

	// PostOnlyUnfilled, when true, makes every post-only CreateOrder
	// come back "unfilled" instead of "fully_filled" so tests can
	// exercise ExecutionService's taker-downgrade path.
	PostOnlyUnfilled bool

	OHLCVErr  error
	CreateErr error
	CancelErr error
	GetOrderErr error
}

func (m *MockFacade) GetOHLCV(ctx context.Context, pair string, period time.Duration, limit int) (bar.Series, error) {
	if m.OHLCVErr != nil {
		return nil, m.OHLCVErr
	}
	return m.OHLCV, nil
}

func (m *MockFacade) GetTicker(ctx context.Context, pair string) (decimal.Decimal, error) {
	return m.Ticker, nil
}

func (m *MockFacade) GetBalances(ctx context.Context) ([]Balance, error) {
	return m.Balances, nil
}

func (m *MockFacade) GetOpenOrders(ctx context.Context, pair string) ([]Order, error) {
	return m.OpenOrders, nil
}

func (m *MockFacade) GetOpenPositions(ctx context.Context, pair string) ([]Position, error) {
	return m.OpenPositions, nil
}

func (m *MockFacade) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if m.CreateErr != nil {
		return Order{}, m.CreateErr
	}
	m.NextOrderID++
	status := "fully_filled"
	if req.PostOnly && m.PostOnlyUnfilled {
		status = "unfilled"
	}
	order := Order{
		OrderID:       fmt.Sprintf("mock-%d", m.NextOrderID),
		ClientOrderID: req.ClientOrderID,
		Pair:          req.Pair,
		Side:          req.Side,
		Type:          req.Type,
		Size:          req.Size,
		Price:         req.Price,
		Status:        status,
		ExecutedAt:    time.Now(),
	}
	m.CreatedOrders = append(m.CreatedOrders, req)
	m.OpenOrders = append(m.OpenOrders, order)
	return order, nil
}

func (m *MockFacade) GetOrder(ctx context.Context, pair, orderID string) (Order, error) {
	if m.GetOrderErr != nil {
		return Order{}, m.GetOrderErr
	}
	for _, o := range m.OpenOrders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("order %s not found", orderID)
}

func (m *MockFacade) CancelOrder(ctx context.Context, pair, orderID string) error {
	if m.CancelErr != nil {
		return m.CancelErr
	}
	filtered := m.OpenOrders[:0]
	for _, o := range m.OpenOrders {
		if o.OrderID != orderID {
			filtered = append(filtered, o)
		}
	}
	m.OpenOrders = filtered
	return nil
}

var _ Facade = (*MockFacade)(nil)
