// Package features implements the FeatureGenerator (49 deterministic
// market features per cycle, in a 55-wide vector whose 6 strategy-signal
// columns are filled in later) and FeatureManager (the single schema
// authority every other component defers to for feature naming/ordering).
package features

// FieldKind classifies a schema field for downstream consumers that only
// care about a subset (e.g. the 15 canonical market features).
type FieldKind string

const (
	KindMarket         FieldKind = "market"
	KindStrategySignal FieldKind = "strategy_signal"
)

// Field describes one column of the 55-wide feature vector.
type Field struct {
	Name      string    `json:"name"`
	Kind      FieldKind `json:"kind"`
	Canonical bool      `json:"canonical"`
}

// schemaFields is the embedded schema: FeatureManager's single source of
// truth for the 49 market features plus the 6 strategy-signal columns
// appended by the signal-integration stage, for 55 total. Exactly 15 are
// tagged canonical, grouped basic(2)/momentum(2)/volatility(2)/trend(2)/
// volume(1)/breakout(3)/regime(3) per the decision recorded in
// SPEC_FULL.md/DESIGN.md (the source left the exact composition ambiguous;
// this schema is now the single authority every other component defers to).
var schemaFields = []Field{
	// --- trend (canonical: ema_50, macd_hist) ---
	{Name: "sma_5", Kind: KindMarket},
	{Name: "sma_20", Kind: KindMarket},
	{Name: "sma_50", Kind: KindMarket},
	{Name: "ema_12", Kind: KindMarket},
	{Name: "ema_26", Kind: KindMarket},
	{Name: "ema_50", Kind: KindMarket, Canonical: true},
	{Name: "macd", Kind: KindMarket},
	{Name: "macd_signal", Kind: KindMarket},
	{Name: "macd_hist", Kind: KindMarket, Canonical: true},
	{Name: "plus_di", Kind: KindMarket},
	{Name: "minus_di", Kind: KindMarket},
	{Name: "price_vs_sma20_pct", Kind: KindMarket},
	{Name: "price_vs_sma50_pct", Kind: KindMarket},
	{Name: "trend_slope_20", Kind: KindMarket},

	// --- momentum (canonical: rsi_14, stochastic_k) ---
	{Name: "rsi_14", Kind: KindMarket, Canonical: true},
	{Name: "rsi_7", Kind: KindMarket},
	{Name: "stochastic_k", Kind: KindMarket, Canonical: true},
	{Name: "stochastic_d", Kind: KindMarket},
	{Name: "roc_10", Kind: KindMarket},
	{Name: "momentum_20", Kind: KindMarket},
	{Name: "williams_r", Kind: KindMarket},

	// --- volatility (canonical: atr_14, bb_width) ---
	{Name: "atr_14", Kind: KindMarket, Canonical: true},
	{Name: "atr_pct", Kind: KindMarket},
	{Name: "bb_upper", Kind: KindMarket},
	{Name: "bb_lower", Kind: KindMarket},
	{Name: "bb_width", Kind: KindMarket, Canonical: true},
	{Name: "realized_vol_60", Kind: KindMarket},
	{Name: "donchian_width_20", Kind: KindMarket},

	// --- volume (canonical: volume_zscore_20) ---
	{Name: "volume_sma_20", Kind: KindMarket},
	{Name: "volume_zscore_20", Kind: KindMarket, Canonical: true},
	{Name: "volume_trend_10", Kind: KindMarket},
	{Name: "obv_slope_20", Kind: KindMarket},

	// --- price action / basic (canonical: return_1, candle_body_pct) ---
	{Name: "candle_body_pct", Kind: KindMarket, Canonical: true},
	{Name: "upper_wick_pct", Kind: KindMarket},
	{Name: "lower_wick_pct", Kind: KindMarket},
	{Name: "return_1", Kind: KindMarket, Canonical: true},
	{Name: "return_5", Kind: KindMarket},
	{Name: "return_20", Kind: KindMarket},
	{Name: "high_low_range_pct", Kind: KindMarket},
	{Name: "consecutive_up_bars", Kind: KindMarket},
	{Name: "consecutive_down_bars", Kind: KindMarket},
	{Name: "hour_of_day_sin", Kind: KindMarket},
	{Name: "hour_of_day_cos", Kind: KindMarket},

	// --- breakout (canonical: donchian_percent_20, distance_from_20bar_high_pct, distance_from_20bar_low_pct) ---
	{Name: "donchian_percent_20", Kind: KindMarket, Canonical: true},
	{Name: "distance_from_20bar_high_pct", Kind: KindMarket, Canonical: true},
	{Name: "distance_from_20bar_low_pct", Kind: KindMarket, Canonical: true},

	// --- regime (canonical: adx, realized_vol_20, bb_percent_b) ---
	{Name: "adx", Kind: KindMarket, Canonical: true},
	{Name: "realized_vol_20", Kind: KindMarket, Canonical: true},
	{Name: "bb_percent_b", Kind: KindMarket, Canonical: true},

	// --- strategy signal columns (appended post-strategy-evaluation) ---
	{Name: "strategy_signal_atr_based", Kind: KindStrategySignal},
	{Name: "strategy_signal_bb_reversal", Kind: KindStrategySignal},
	{Name: "strategy_signal_stochastic_reversal", Kind: KindStrategySignal},
	{Name: "strategy_signal_donchian_channel", Kind: KindStrategySignal},
	{Name: "strategy_signal_macd_ema_crossover", Kind: KindStrategySignal},
	{Name: "strategy_signal_adx_trend_strength", Kind: KindStrategySignal},
}

// Manager is the FeatureManager schema authority: the one place that
// knows field names, ordering, and which are canonical.
type Manager struct {
	fields []Field
	index  map[string]int
}

// NewManager builds a Manager over the embedded schema.
func NewManager() *Manager {
	idx := make(map[string]int, len(schemaFields))
	for i, f := range schemaFields {
		idx[f.Name] = i
	}
	return &Manager{fields: schemaFields, index: idx}
}

// Fields returns the full ordered 55-field schema.
func (m *Manager) Fields() []Field { return m.fields }

// Len returns the total schema width (55).
func (m *Manager) Len() int { return len(m.fields) }

// IndexOf returns the column index of a field name, or -1 if unknown.
func (m *Manager) IndexOf(name string) int {
	i, ok := m.index[name]
	if !ok {
		return -1
	}
	return i
}

// Canonical returns the ordered subset of field names tagged canonical
// (the 15 features the spec's first open question asks about).
func (m *Manager) Canonical() []string {
	var out []string
	for _, f := range m.fields {
		if f.Canonical {
			out = append(out, f.Name)
		}
	}
	return out
}

// MarketFieldNames returns the 49 market-feature names in schema order.
func (m *Manager) MarketFieldNames() []string {
	var out []string
	for _, f := range m.fields {
		if f.Kind == KindMarket {
			out = append(out, f.Name)
		}
	}
	return out
}

// StrategySignalFieldNames returns the 6 strategy-signal column names in
// schema order.
func (m *Manager) StrategySignalFieldNames() []string {
	var out []string
	for _, f := range m.fields {
		if f.Kind == KindStrategySignal {
			out = append(out, f.Name)
		}
	}
	return out
}
