package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DrawdownPhase is the drawdown state machine's current phase.
type DrawdownPhase string

const (
	PhaseActive            DrawdownPhase = "active"
	PhasePausedDrawdown    DrawdownPhase = "paused_drawdown"
	PhasePausedConsecutive DrawdownPhase = "paused_consecutive_loss"
)

// DrawdownState is persisted per-mode (paper/live/backtest) so a process
// restart never silently discards an active pause.
type DrawdownState struct {
	Mode                string        `json:"mode"`
	Phase               DrawdownPhase `json:"phase"`
	DayStartEquityJPY    float64      `json:"day_start_equity_jpy"`
	CurrentEquityJPY     float64      `json:"current_equity_jpy"`
	ConsecutiveLosses    int          `json:"consecutive_losses"`
	PausedAtCycle        int          `json:"paused_at_cycle"`
	PauseUntilCycle      int          `json:"pause_until_cycle"`
	LastUpdated          time.Time    `json:"last_updated"`
}

// StatePath returns the per-mode JSON state file path under stateDir.
func StatePath(stateDir, mode string) string {
	return filepath.Join(stateDir, fmt.Sprintf("drawdown_%s.json", mode))
}

// LoadDrawdownState reads the per-mode state file, returning a fresh
// Active-phase state if none exists yet.
func LoadDrawdownState(stateDir, mode string, startEquity float64) (*DrawdownState, error) {
	path := StatePath(stateDir, mode)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &DrawdownState{
			Mode:              mode,
			Phase:             PhaseActive,
			DayStartEquityJPY: startEquity,
			CurrentEquityJPY:  startEquity,
			LastUpdated:       time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read drawdown state: %w", err)
	}
	var st DrawdownState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse drawdown state: %w", err)
	}
	return &st, nil
}

// Save atomically persists the state: write to a temp file in the same
// directory, then rename over the target, so a crash mid-write never
// leaves a half-written state file behind.
func (s *DrawdownState) Save(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	s.LastUpdated = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drawdown state: %w", err)
	}
	path := StatePath(stateDir, s.Mode)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}

// DrawdownPct returns the current intraday drawdown as a fraction of the
// day's starting equity (0 if equity is at or above the day's start).
func (s *DrawdownState) DrawdownPct() float64 {
	if s.DayStartEquityJPY <= 0 {
		return 0
	}
	pct := (s.DayStartEquityJPY - s.CurrentEquityJPY) / s.DayStartEquityJPY
	if pct < 0 {
		return 0
	}
	return pct
}

// RecordTradeOutcome updates consecutive-loss tracking and equity after a
// closed trade, then applies the drawdown/consecutive-loss gates, moving
// the phase to paused if either limit is breached.
func (s *DrawdownState) RecordTradeOutcome(pnlJPY float64, currentCycle int, dailyLimitPct float64, consecutiveLossLimit, pauseBars int) {
	s.CurrentEquityJPY += pnlJPY
	if pnlJPY < 0 {
		s.ConsecutiveLosses++
	} else if pnlJPY > 0 {
		s.ConsecutiveLosses = 0
	}

	if s.DrawdownPct() >= dailyLimitPct {
		s.Phase = PhasePausedDrawdown
		s.PausedAtCycle = currentCycle
		s.PauseUntilCycle = currentCycle + pauseBars
		return
	}
	if s.ConsecutiveLosses >= consecutiveLossLimit {
		s.Phase = PhasePausedConsecutive
		s.PausedAtCycle = currentCycle
		s.PauseUntilCycle = currentCycle + pauseBars
		return
	}
}

// MaybeResume clears a pause once currentCycle has reached
// PauseUntilCycle, returning to the Active phase.
func (s *DrawdownState) MaybeResume(currentCycle int) {
	if s.Phase != PhaseActive && currentCycle >= s.PauseUntilCycle {
		s.Phase = PhaseActive
		s.ConsecutiveLosses = 0
	}
}

// ResetDay starts a new trading day's drawdown baseline.
func (s *DrawdownState) ResetDay(equity float64) {
	s.DayStartEquityJPY = equity
	s.CurrentEquityJPY = equity
}

// TradingAllowed reports whether new entries may be opened.
func (s *DrawdownState) TradingAllowed() bool {
	return s.Phase == PhaseActive
}
