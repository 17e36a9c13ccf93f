package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
)

func plan() EntryPlan {
	return EntryPlan{
		Pair:            "btc_jpy",
		Side:            exchange.SideBuy,
		Size:            decimal.NewFromInt(1),
		TakeProfitPrice: decimal.NewFromInt(1_100_000),
		StopLossPrice:   decimal.NewFromInt(950_000),
	}
}

func planWithEntryRef() EntryPlan {
	p := plan()
	p.EntryPriceRef = decimal.NewFromInt(1_000_000)
	return p
}

func TestOpenAtomic_AllLegsSucceed(t *testing.T) {
	mock := &exchange.MockFacade{}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	res, err := svc.OpenAtomic(context.Background(), plan())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Entry.OrderID)
	assert.NotEmpty(t, res.TakeProfit.OrderID)
	assert.NotEmpty(t, res.StopLoss.OrderID)
	assert.Len(t, mock.CreatedOrders, 3)
}

func TestOpenAtomic_EntryFailureNeverPlacesBrackets(t *testing.T) {
	mock := &exchange.MockFacade{CreateErr: errors.New("exchange rejected order")}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	_, err := svc.OpenAtomic(context.Background(), plan())
	require.Error(t, err)
	assert.Empty(t, mock.CreatedOrders)
}

func TestOpenAtomic_TakeProfitFailureRollsBackEntry(t *testing.T) {
	mock := &failAfterN{MockFacade: &exchange.MockFacade{}, n: 1}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	_, err := svc.OpenAtomic(context.Background(), plan())
	require.Error(t, err)
	// entry was placed then rolled back: cancel + flatten should have run.
	assert.True(t, mock.cancelled)
	assert.True(t, mock.flattened)
}

func TestOpenAtomic_StopLossFailureRollsBackEntryAndTakeProfit(t *testing.T) {
	mock := &failAfterN{MockFacade: &exchange.MockFacade{}, n: 2}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	_, err := svc.OpenAtomic(context.Background(), plan())
	require.Error(t, err)
	assert.GreaterOrEqual(t, mock.cancelCount, 2)
	assert.True(t, mock.flattened)
}

func TestOpenAtomic_PreCleanCancelsStaleOrders(t *testing.T) {
	mock := &exchange.MockFacade{
		OpenOrders: []exchange.Order{{OrderID: "stale-tp"}, {OrderID: "stale-sl"}},
	}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	_, err := svc.OpenAtomic(context.Background(), plan())
	require.NoError(t, err)
	for _, o := range mock.OpenOrders {
		assert.NotEqual(t, "stale-tp", o.OrderID)
		assert.NotEqual(t, "stale-sl", o.OrderID)
	}
}

func TestOpenAtomic_MakerEntryFillsWithinWindow(t *testing.T) {
	mock := &exchange.MockFacade{}
	svc := NewService(mock, 0, time.Second, 1, 200*time.Millisecond, 0)

	res, err := svc.OpenAtomic(context.Background(), planWithEntryRef())
	require.NoError(t, err)
	require.NotEmpty(t, mock.CreatedOrders)
	entryReq := mock.CreatedOrders[0]
	assert.Equal(t, exchange.OrderTypeLimit, entryReq.Type)
	assert.True(t, entryReq.PostOnly)
	assert.True(t, entryReq.Price.LessThan(planWithEntryRef().EntryPriceRef))
	assert.Equal(t, "fully_filled", res.Entry.Status)
}

func TestOpenAtomic_MakerEntryDowngradesToTakerOnExpiry(t *testing.T) {
	mock := &exchange.MockFacade{PostOnlyUnfilled: true}
	svc := NewService(mock, 0, time.Second, 1, 50*time.Millisecond, 0)

	res, err := svc.OpenAtomic(context.Background(), planWithEntryRef())
	require.NoError(t, err)
	assert.Equal(t, "fully_filled", res.Entry.Status)

	var sawPostOnlyLimit, sawTakerDowngrade bool
	for _, req := range mock.CreatedOrders {
		if req.Type == exchange.OrderTypeLimit && req.PostOnly {
			sawPostOnlyLimit = true
		}
		if req.Type == exchange.OrderTypeMarket && req.Side == exchange.SideBuy {
			sawTakerDowngrade = true
		}
	}
	assert.True(t, sawPostOnlyLimit, "expected an initial post-only maker attempt")
	assert.True(t, sawTakerDowngrade, "expected a taker downgrade after the maker attempt expired")
}

func TestOpenAtomic_VerifyProbeDoesNotBlockReturn(t *testing.T) {
	mock := &exchange.MockFacade{}
	svc := NewService(mock, 0, time.Second, 0, 0, 50*time.Millisecond)

	start := time.Now()
	_, err := svc.OpenAtomic(context.Background(), plan())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestReconcile_CancelsOrphanOrders(t *testing.T) {
	mock := &exchange.MockFacade{
		OpenOrders: []exchange.Order{{OrderID: "keep"}, {OrderID: "orphan"}},
	}
	svc := NewService(mock, 0, time.Second, 0, 0, 0)

	err := svc.Reconcile(context.Background(), "btc_jpy", map[string]bool{"keep": true})
	require.NoError(t, err)
	assert.Len(t, mock.OpenOrders, 1)
	assert.Equal(t, "keep", mock.OpenOrders[0].OrderID)
}

func TestBackoffDelay_CapsAtFiveSeconds(t *testing.T) {
	assert.LessOrEqual(t, backoffDelay(100), 5*time.Second)
	assert.Greater(t, backoffDelay(2), backoffDelay(0))
}

// failAfterN wraps MockFacade's CreateOrder so the first n calls succeed
// and call n+1 fails, exercising ExecutionService's rollback path.
type failAfterN struct {
	*exchange.MockFacade
	n           int
	calls       int
	cancelled   bool
	cancelCount int
	flattened   bool
}

func (f *failAfterN) CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	f.calls++
	if f.calls == f.n+1 {
		return exchange.Order{}, errors.New("simulated bracket failure")
	}
	if f.MockFacade == nil {
		f.MockFacade = &exchange.MockFacade{}
	}
	order, err := f.MockFacade.CreateOrder(ctx, req)
	if req.Type == exchange.OrderTypeMarket && f.calls > 1 {
		f.flattened = true
	}
	return order, err
}

func (f *failAfterN) CancelOrder(ctx context.Context, pair, orderID string) error {
	f.cancelled = true
	f.cancelCount++
	return f.MockFacade.CancelOrder(ctx, pair, orderID)
}
