// Package execution implements ExecutionService: atomic entry+TP+SL
// order placement with rollback on partial failure, plus a periodic
// reconciliation sweep against the exchange's view of open orders.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/errs"
	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

// EntryPlan is the fully-specified order set ExecutionService must place
// atomically: one entry order plus its bracketing take-profit and
// stop-loss.
type EntryPlan struct {
	Pair            string
	Side            exchange.Side
	Size            decimal.Decimal
	EntryPriceRef   decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopLossPrice   decimal.Decimal
}

// Result records what ExecutionService actually placed.
type Result struct {
	Entry      exchange.Order
	TakeProfit exchange.Order
	StopLoss   exchange.Order
}

// Service is ExecutionService.
type Service struct {
	facade         exchange.Facade
	maxRetries     int
	timeout        time.Duration
	postOnlyOffset decimal.Decimal
	postOnlyExpiry time.Duration
	verifyAfter    time.Duration
	log            *logger.Logger
}

// NewService builds an ExecutionService over the given façade. postOnlyOffsetTicks
// is the price improvement (in price-increment units, 1 JPY on bitbank's
// spot/margin pairs) offered on the Maker-preferred entry attempt;
// postOnlyExpiry is how long that attempt is given to fill before the
// automatic downgrade to a taker market order; verifyAfter is the delay
// before the post-fill bracket verification probe runs.
func NewService(facade exchange.Facade, maxRetries int, timeout time.Duration, postOnlyOffsetTicks int, postOnlyExpiry, verifyAfter time.Duration) *Service {
	return &Service{
		facade:         facade,
		maxRetries:     maxRetries,
		timeout:        timeout,
		postOnlyOffset: decimal.NewFromInt(int64(postOnlyOffsetTicks)),
		postOnlyExpiry: postOnlyExpiry,
		verifyAfter:    verifyAfter,
		log:            logger.Named("execution"),
	}
}

func (s *Service) oppositeSide(side exchange.Side) exchange.Side {
	if side == exchange.SideBuy {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// OpenAtomic runs the full atomic-entry procedure: (1) pre-clean any
// stale orders left over from a prior cycle, (2) place the entry
// Maker-preferred as a post-only limit order, downgrading to a taker
// market order if it doesn't fill within the configured window, (3)/(4)
// place the TP and SL brackets with retry, rolling back every leg if
// either fails, and (5) schedule a verification probe that confirms
// both brackets are still resting on the book a few seconds later —
// the spec's core atomic-entry invariant is that the account never
// ends up with a naked position or an orphaned bracket order.
func (s *Service) OpenAtomic(ctx context.Context, plan EntryPlan) (Result, error) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.preClean(cycleCtx, plan.Pair); err != nil {
		s.log.Warnf("pre-clean failed, continuing anyway: %v", err)
	}

	entry, err := s.placeEntry(cycleCtx, plan)
	if err != nil {
		return Result{}, errs.New(errs.KindAtomicEntryFailure, "execution", fmt.Errorf("entry order failed: %w", err))
	}

	exitSide := s.oppositeSide(plan.Side)
	tpReq := exchange.OrderRequest{
		Pair: plan.Pair, Side: exitSide, Type: exchange.OrderTypeLimit,
		Size: plan.Size, Price: plan.TakeProfitPrice, ClientOrderID: uuid.NewString(),
	}
	tp, err := s.placeWithRetry(cycleCtx, tpReq)
	if err != nil {
		s.rollback(ctx, plan.Pair, entry.Side, plan.Size, []exchange.Order{entry})
		return Result{}, errs.New(errs.KindAtomicEntryFailure, "execution", fmt.Errorf("take-profit order failed, rolled back: %w", err))
	}

	slReq := exchange.OrderRequest{
		Pair: plan.Pair, Side: exitSide, Type: exchange.OrderTypeStop,
		Size: plan.Size, TriggerPrice: plan.StopLossPrice, ClientOrderID: uuid.NewString(),
	}
	sl, err := s.placeWithRetry(cycleCtx, slReq)
	if err != nil {
		s.rollback(ctx, plan.Pair, entry.Side, plan.Size, []exchange.Order{entry, tp})
		return Result{}, errs.New(errs.KindAtomicEntryFailure, "execution", fmt.Errorf("stop-loss order failed, rolled back: %w", err))
	}

	result := Result{Entry: entry, TakeProfit: tp, StopLoss: sl}
	s.scheduleVerify(plan.Pair, result)
	return result, nil
}

// preClean cancels any orders left resting on the book for this pair
// from a prior cycle so a new entry never stacks on top of a stale
// bracket.
func (s *Service) preClean(ctx context.Context, pair string) error {
	open, err := s.facade.GetOpenOrders(ctx, pair)
	if err != nil {
		return err
	}
	for _, o := range open {
		if err := s.facade.CancelOrder(ctx, pair, o.OrderID); err != nil {
			s.log.Warnf("pre-clean: failed to cancel stale order %s: %v", o.OrderID, err)
		}
	}
	return nil
}

// placeEntry submits the entry Maker-preferred: a post-only limit order
// priced one price-improvement step better than the reference price, so
// it rests on the book instead of crossing it. If it hasn't fully filled
// by postOnlyExpiry, it is cancelled and the unfilled remainder is
// downgraded to a taker market order.
func (s *Service) placeEntry(ctx context.Context, plan EntryPlan) (exchange.Order, error) {
	if plan.EntryPriceRef.IsZero() || s.postOnlyExpiry <= 0 {
		return s.placeWithRetry(ctx, exchange.OrderRequest{
			Pair: plan.Pair, Side: plan.Side, Type: exchange.OrderTypeMarket,
			Size: plan.Size, ClientOrderID: uuid.NewString(),
		})
	}

	makerPrice := plan.EntryPriceRef
	if plan.Side == exchange.SideBuy {
		makerPrice = makerPrice.Sub(s.postOnlyOffset)
	} else {
		makerPrice = makerPrice.Add(s.postOnlyOffset)
	}

	order, err := s.placeWithRetry(ctx, exchange.OrderRequest{
		Pair: plan.Pair, Side: plan.Side, Type: exchange.OrderTypeLimit, PostOnly: true,
		Size: plan.Size, Price: makerPrice, ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return exchange.Order{}, err
	}
	if order.Status == "fully_filled" {
		return order, nil
	}

	deadline := time.Now().Add(s.postOnlyExpiry)
	poll := s.postOnlyExpiry / 5
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return exchange.Order{}, ctx.Err()
		case <-time.After(poll):
		}
		latest, err := s.facade.GetOrder(ctx, plan.Pair, order.OrderID)
		if err != nil {
			s.log.Warnf("maker entry: failed to poll order %s: %v", order.OrderID, err)
			continue
		}
		if latest.Status == "fully_filled" {
			return latest, nil
		}
		order = latest
	}

	s.log.Warnf("maker entry %s did not fill within %s, downgrading to taker", order.OrderID, s.postOnlyExpiry)
	if err := s.facade.CancelOrder(ctx, plan.Pair, order.OrderID); err != nil {
		s.log.Warnf("maker entry: failed to cancel unfilled order %s before downgrade: %v", order.OrderID, err)
	}
	takerSize := plan.Size
	if order.Status == "partially_filled" && order.Size.IsPositive() && order.Size.LessThan(plan.Size) {
		// a polled order's Size is its remaining (unfilled) amount
		takerSize = order.Size
	}
	return s.placeWithRetry(ctx, exchange.OrderRequest{
		Pair: plan.Pair, Side: plan.Side, Type: exchange.OrderTypeMarket,
		Size: takerSize, ClientOrderID: uuid.NewString(),
	})
}

// scheduleVerify runs the post-fill verification probe in the
// background: after verifyAfter, confirm both brackets are still
// resting on the exchange's book. A bracket that's vanished without a
// matching position close is logged as a warning for a human to
// reconcile, not something the decision cycle can self-heal.
func (s *Service) scheduleVerify(pair string, result Result) {
	if s.verifyAfter <= 0 {
		return
	}
	go func() {
		time.Sleep(s.verifyAfter)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, leg := range []struct {
			name  string
			order exchange.Order
		}{{"take-profit", result.TakeProfit}, {"stop-loss", result.StopLoss}} {
			if leg.order.OrderID == "" {
				continue
			}
			latest, err := s.facade.GetOrder(ctx, pair, leg.order.OrderID)
			if err != nil {
				s.log.Errorf("verify: failed to probe %s order %s: %v", leg.name, leg.order.OrderID, err)
				continue
			}
			if latest.Status != "unfilled" && latest.Status != "partially_filled" {
				s.log.Warnf("verify: %s order %s is no longer resting (status=%s)", leg.name, leg.order.OrderID, latest.Status)
			}
		}
	}()
}

func (s *Service) placeWithRetry(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		order, err := s.facade.CreateOrder(ctx, req)
		if err == nil {
			return order, nil
		}
		lastErr = err
		s.log.Warnf("order placement attempt %d/%d failed: %v", attempt+1, s.maxRetries+1, err)
		select {
		case <-ctx.Done():
			return exchange.Order{}, ctx.Err()
		case <-time.After(backoffDelay(attempt)):
		}
	}
	return exchange.Order{}, lastErr
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// rollback cancels any bracket orders already placed and flattens the
// entry with an opposite-side market order, logging (not panicking) if
// the rollback itself partially fails — a failed rollback becomes a
// critical alert for a human to reconcile manually, never a crash.
func (s *Service) rollback(ctx context.Context, pair string, entrySide exchange.Side, size decimal.Decimal, placed []exchange.Order) {
	for _, o := range placed {
		if o.OrderID == "" {
			continue
		}
		if err := s.facade.CancelOrder(ctx, pair, o.OrderID); err != nil {
			s.log.Errorf("rollback: failed to cancel order %s: %v", o.OrderID, err)
		}
	}
	flattenReq := exchange.OrderRequest{
		Pair: pair, Side: s.oppositeSide(entrySide), Type: exchange.OrderTypeMarket,
		Size: size, ClientOrderID: uuid.NewString(),
	}
	if _, err := s.facade.CreateOrder(ctx, flattenReq); err != nil {
		s.log.Errorf("rollback: failed to flatten entry position: %v", err)
	}
}

// Reconcile compares the façade's view of open orders against what
// ExecutionService expects and cancels any orphan (bracket order whose
// sibling entry no longer exists). Intended to run on its own ~10-minute
// ticker, independent of the 5-minute decision cycle.
func (s *Service) Reconcile(ctx context.Context, pair string, expectedOrderIDs map[string]bool) error {
	open, err := s.facade.GetOpenOrders(ctx, pair)
	if err != nil {
		return errs.New(errs.KindDataFetch, "execution", err)
	}
	for _, o := range open {
		if !expectedOrderIDs[o.OrderID] {
			s.log.Warnf("reconcile: cancelling orphan order %s", o.OrderID)
			if err := s.facade.CancelOrder(ctx, pair, o.OrderID); err != nil {
				s.log.Errorf("reconcile: failed to cancel orphan %s: %v", o.OrderID, err)
			}
		}
	}
	return nil
}

// RunReconcileLoop starts the periodic reconciliation sweep; blocks until
// ctx is cancelled.
func (s *Service) RunReconcileLoop(ctx context.Context, pair string, interval time.Duration, expected func() map[string]bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx, pair, expected()); err != nil {
				s.log.Errorf("reconcile sweep failed: %v", err)
			}
		}
	}
}
