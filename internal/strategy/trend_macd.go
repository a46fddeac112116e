package strategy

import (
	"llm-crypto-trader/internal/types"
)

// TrendMACD is the multi-timeframe variant: a higher-timeframe trend filter
// gates a lower-timeframe MACD crossover trigger. Entries require both to
// align; the position is closed when the lower timeframe crosses the other
// way. Because the two snapshot streams tick independently, an entry is
// refused whenever the higher-timeframe snapshot is stale relative to the
// triggering close.
type TrendMACD struct {
	trigger types.Timeframe
	higher  types.Timeframe

	minTrendStrength float64

	side types.Action // ActionLong, ActionShort, or "" when flat
}

func NewTrendMACD(trigger, higher types.Timeframe, params map[string]float64) *TrendMACD {
	return &TrendMACD{
		trigger:          trigger,
		higher:           higher,
		minTrendStrength: param(params, "min_trend_strength", 0),
	}
}

func (t *TrendMACD) Name() string { return "trend_macd" }

func (t *TrendMACD) Timeframes() []types.Timeframe {
	return []types.Timeframe{t.trigger, t.higher}
}

func (t *TrendMACD) Evaluate(sctx *types.StrategyContext) *types.Signal {
	low := sctx.Latest(t.trigger)
	high := sctx.Latest(t.higher)
	if low == nil || high == nil {
		return nil
	}
	if !defined(low, "macd", "macd_signal") || !defined(high, "macd", "macd_signal", "macd_histogram", "sma") {
		return t.hold(low, "macd_warming_up")
	}
	// The higher-timeframe snapshot closes an interval, so while the next
	// interval is still forming every trigger close inside it sits up to one
	// full higher duration past that snapshot and is perfectly fresh. Only a
	// gap of two intervals or more means a higher close went missing and the
	// trend reading is stale.
	if low.AsOf-high.AsOf >= 2*t.higher.Duration().Milliseconds() {
		return t.hold(low, "higher_timeframe_stale")
	}

	prev := lastDefined(sctx.History, "macd", "macd_signal")
	if prev == nil {
		return t.hold(low, "no_previous_snapshot")
	}
	golden := prev.Value("macd") <= prev.Value("macd_signal") && low.Value("macd") > low.Value("macd_signal")
	death := prev.Value("macd") >= prev.Value("macd_signal") && low.Value("macd") < low.Value("macd_signal")

	// Exit on an opposite cross before considering fresh entries.
	if t.side == types.ActionLong && death {
		t.side = ""
		sig := types.NewSignal(low.Symbol, t.trigger, low.AsOf, types.ActionClose, 0.9, "macd_death_cross_close_long")
		return &sig
	}
	if t.side == types.ActionShort && golden {
		t.side = ""
		sig := types.NewSignal(low.Symbol, t.trigger, low.AsOf, types.ActionClose, 0.9, "macd_golden_cross_close_short")
		return &sig
	}
	if t.side != "" {
		return t.hold(low, "in_position_holding")
	}

	uptrend := high.Value("macd_histogram") > t.minTrendStrength && high.Close > high.Value("sma")
	downtrend := high.Value("macd_histogram") < -t.minTrendStrength && high.Close < high.Value("sma")

	if uptrend && golden {
		t.side = types.ActionLong
		sig := types.NewSignal(low.Symbol, t.trigger, low.AsOf, types.ActionLong, 0.85, "uptrend_with_macd_golden_cross")
		return &sig
	}
	if downtrend && death {
		t.side = types.ActionShort
		sig := types.NewSignal(low.Symbol, t.trigger, low.AsOf, types.ActionShort, 0.85, "downtrend_with_macd_death_cross")
		return &sig
	}
	return t.hold(low, "trend_and_trigger_not_aligned")
}

func (t *TrendMACD) hold(snap *types.IndicatorSnapshot, reason string) *types.Signal {
	sig := types.NewSignal(snap.Symbol, t.trigger, snap.AsOf, types.ActionHold, 0, reason)
	return &sig
}

func defined(s *types.IndicatorSnapshot, names ...string) bool {
	for _, n := range names {
		if !s.Defined(n) {
			return false
		}
	}
	return true
}

// lastDefined walks history newest-first for a snapshot with all named values.
func lastDefined(history []*types.IndicatorSnapshot, names ...string) *types.IndicatorSnapshot {
	for i := len(history) - 1; i >= 0; i-- {
		if defined(history[i], names...) {
			return history[i]
		}
	}
	return nil
}
