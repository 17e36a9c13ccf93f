// Package store persists the closed-trade ledger RiskManager's Kelly
// sizing reads from, and caches ensemble model metadata across restarts.
// Grounded on the teacher's store/strategy.go database/sql +
// modernc.org/sqlite usage (see DESIGN.md).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao-namake/bitbank-decision-core/internal/risk"
)

// Ledger wraps a sqlite-backed closed-trade history.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if absent) the sqlite database at path and
// ensures its schema exists.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS closed_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode TEXT NOT NULL,
			pair TEXT NOT NULL,
			side TEXT NOT NULL,
			size_jpy REAL NOT NULL,
			pnl_jpy REAL NOT NULL,
			opened_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_closed_trades_mode ON closed_trades(mode);
		CREATE TABLE IF NOT EXISTS model_metadata (
			version TEXT PRIMARY KEY,
			feature_order TEXT NOT NULL,
			trained_at TIMESTAMP NOT NULL,
			loaded_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// RecordClose persists one closed trade.
func (l *Ledger) RecordClose(ctx context.Context, mode, pair, side string, sizeJPY, pnlJPY float64, openedAt, closedAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO closed_trades (mode, pair, side, size_jpy, pnl_jpy, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mode, pair, side, sizeJPY, pnlJPY, openedAt, closedAt)
	if err != nil {
		return fmt.Errorf("record closed trade: %w", err)
	}
	return nil
}

// KellyInputsSince computes risk.KellyInputs from every closed trade in
// mode after since, the statistics feeding Kelly fraction sizing.
func (l *Ledger) KellyInputsSince(ctx context.Context, mode string, since time.Time) (risk.KellyInputs, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT pnl_jpy, size_jpy FROM closed_trades
		WHERE mode = ? AND closed_at >= ?`, mode, since)
	if err != nil {
		return risk.KellyInputs{}, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var wins, losses int
	var winSum, lossSum float64
	for rows.Next() {
		var pnl, size float64
		if err := rows.Scan(&pnl, &size); err != nil {
			return risk.KellyInputs{}, fmt.Errorf("scan closed trade: %w", err)
		}
		if size == 0 {
			continue
		}
		ratio := pnl / size
		if pnl > 0 {
			wins++
			winSum += ratio
		} else if pnl < 0 {
			losses++
			lossSum += -ratio
		}
	}
	total := wins + losses
	if total == 0 {
		return risk.KellyInputs{}, nil
	}
	in := risk.KellyInputs{
		WinRate:    float64(wins) / float64(total),
		SampleSize: total,
	}
	if wins > 0 {
		in.AvgWinRatio = winSum / float64(wins)
	}
	if losses > 0 {
		in.AvgLossRatio = lossSum / float64(losses)
	}
	return in, nil
}

// SaveModelMetadata records a loaded model version for audit/debugging.
func (l *Ledger) SaveModelMetadata(ctx context.Context, version, featureOrder string, trainedAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO model_metadata (version, feature_order, trained_at, loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET loaded_at = excluded.loaded_at`,
		version, featureOrder, trainedAt, time.Now())
	if err != nil {
		return fmt.Errorf("save model metadata: %w", err)
	}
	return nil
}
