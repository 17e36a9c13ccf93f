// Package risk implements RiskManager: Kelly position sizing, drawdown
// gating, and the gate-chain that decides whether a candidate trade is
// allowed through to ExecutionService.
package risk

import "github.com/shopspring/decimal"

// KellyInputs carries the trade-history statistics Kelly sizing needs.
type KellyInputs struct {
	WinRate      float64
	AvgWinRatio  float64 // average win / stake
	AvgLossRatio float64 // average loss / stake, positive number
	SampleSize   int
}

// KellyFraction computes the Kelly criterion fraction f* = W - (1-W)/R,
// where W is the win rate and R is the win/loss payoff ratio, clamped to
// [0, maxFraction] and scaled by safetyFactor (a "half-Kelly"-style
// damping against estimation error). Returns 0 when the sample is too
// small to trust (see minSamples) or the payoff ratio is degenerate.
func KellyFraction(in KellyInputs, safetyFactor, maxFraction float64, minSamples int) float64 {
	if in.SampleSize < minSamples || in.AvgLossRatio <= 0 {
		return 0
	}
	r := in.AvgWinRatio / in.AvgLossRatio
	if r <= 0 {
		return 0
	}
	raw := in.WinRate - (1-in.WinRate)/r
	if raw <= 0 {
		return 0
	}
	scaled := raw * safetyFactor
	if scaled > maxFraction {
		scaled = maxFraction
	}
	return scaled
}

// PositionSize converts a Kelly fraction and available equity into a JPY
// notional size using decimal arithmetic so lot-size rounding never
// drifts from float accumulation error.
func PositionSize(equityJPY decimal.Decimal, fraction float64) decimal.Decimal {
	if fraction <= 0 {
		return decimal.Zero
	}
	f := decimal.NewFromFloat(fraction)
	return equityJPY.Mul(f).Round(0)
}
