// Package position implements PositionTracker/StopManager: flexible
// cooldown after a closed trade and orphan-position/orphan-order
// cleanup, grounded on the teacher's drawdown-monitor goroutine idiom.
package position

import (
	"context"
	"sync"
	"time"

	"github.com/nao-namake/bitbank-decision-core/internal/exchange"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

// ClosedTrade records one closed position for cooldown bookkeeping and
// feeds the Kelly win-rate/win-loss estimation in internal/risk (via
// internal/store's ledger, not directly).
type ClosedTrade struct {
	Pair      string
	PnLJPY    float64
	ClosedAt  time.Time
	ClosedBar int
}

// Tracker is PositionTracker/StopManager's cooldown state: it enforces a
// cooldown of CooldownBars after a close, per pair. It holds no position
// state and does not track or mirror the exchange's positions; orphan
// detection and cleanup are the package functions DetectOrphans and
// CleanupOrphans.
type Tracker struct {
	mu            sync.RWMutex
	cooldownBars  int
	lastClosedBar map[string]int
	log           *logger.Logger
}

// NewTracker builds a PositionTracker with the given cooldown length.
func NewTracker(cooldownBars int) *Tracker {
	return &Tracker{
		cooldownBars:  cooldownBars,
		lastClosedBar: make(map[string]int),
		log:           logger.Named("position"),
	}
}

// RecordClose marks pair as closed at the given cycle counter, starting
// its cooldown window.
func (t *Tracker) RecordClose(pair string, atCycle int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastClosedBar[pair] = atCycle
}

// InCooldown reports whether pair is still inside its post-close
// cooldown window as of currentCycle. Cooldown is "flexible": the
// bypass decision is made outside this type, by risk.Manager's cooldown
// gate, which lets an entry through when trend strength clears the
// configured bypass threshold; cycle.Manager then calls ForceReset.
func (t *Tracker) InCooldown(pair string, currentCycle int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	closedAt, ok := t.lastClosedBar[pair]
	if !ok {
		return false
	}
	return currentCycle-closedAt < t.cooldownBars
}

// ForceReset clears pair's cooldown immediately, used after an entry was
// approved through the trend-strength cooldown bypass.
func (t *Tracker) ForceReset(pair string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastClosedBar, pair)
}

// DetectOrphans returns any exchange position that has no corresponding
// open bracket orders — a position the process lost track of, typically
// after a crash mid-cycle between entry placement and bracket placement.
func DetectOrphans(positions []exchange.Position, orders []exchange.Order) []exchange.Position {
	hasOrders := make(map[string]bool)
	for _, o := range orders {
		hasOrders[o.Pair] = true
	}
	var orphans []exchange.Position
	for _, p := range positions {
		if !hasOrders[p.Pair] {
			orphans = append(orphans, p)
		}
	}
	return orphans
}

// CleanupOrphans flattens every orphan position with a market order in
// the opposite direction, logging each action for the audit trail.
func CleanupOrphans(ctx context.Context, facade exchange.Facade, orphans []exchange.Position, log *logger.Logger) {
	for _, p := range orphans {
		side := exchange.SideSell
		if p.Side == exchange.SideSell {
			side = exchange.SideBuy
		}
		log.Warnf("cleaning up orphan position %s (%s %s)", p.PositionID, p.Pair, p.Side)
		_, err := facade.CreateOrder(ctx, exchange.OrderRequest{
			Pair: p.Pair, Side: side, Type: exchange.OrderTypeMarket, Size: p.Size,
		})
		if err != nil {
			log.Errorf("failed to flatten orphan position %s: %v", p.PositionID, err)
		}
	}
}
