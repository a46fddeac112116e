package strategy

import (
	"llm-crypto-trader/internal/types"
)

// ReversalRSI trades capitulation bounces on a single timeframe: a run of
// consecutive bearish candles followed by RSI crossing back up through the
// oversold line on a bullish candle proposes a long. The position is closed
// once price recovers to the moving average.
type ReversalRSI struct {
	trigger  types.Timeframe
	oversold float64
	runLen   int

	long bool
}

func NewReversalRSI(trigger types.Timeframe, params map[string]float64) *ReversalRSI {
	return &ReversalRSI{
		trigger:  trigger,
		oversold: param(params, "rsi_oversold", 30),
		runLen:   int(param(params, "consecutive_bearish", 4)),
	}
}

func (r *ReversalRSI) Name() string { return "reversal_rsi" }

func (r *ReversalRSI) Timeframes() []types.Timeframe { return []types.Timeframe{r.trigger} }

func (r *ReversalRSI) Evaluate(sctx *types.StrategyContext) *types.Signal {
	cur := sctx.Latest(r.trigger)
	if cur == nil || !cur.Defined("rsi") || !cur.Defined("sma") {
		return r.hold(cur, "rsi_warming_up")
	}

	if r.long {
		if cur.Close >= cur.Value("sma") {
			r.long = false
			sig := types.NewSignal(cur.Symbol, r.trigger, cur.AsOf, types.ActionClose, 0.8, "recovered_to_moving_average")
			return &sig
		}
		return r.hold(cur, "in_position_holding")
	}

	if len(sctx.History) < r.runLen {
		return r.hold(cur, "not_enough_history")
	}
	prev := sctx.History[len(sctx.History)-1]
	if !prev.Defined("rsi") {
		return r.hold(cur, "rsi_warming_up")
	}

	// The setup wants an exhausted downswing, not a single red candle.
	for _, s := range sctx.History[len(sctx.History)-r.runLen:] {
		if s.Close >= s.Open {
			return r.hold(cur, "no_bearish_run")
		}
	}

	crossUp := prev.Value("rsi") < r.oversold && cur.Value("rsi") >= r.oversold
	if crossUp && cur.Close > cur.Open {
		r.long = true
		sig := types.NewSignal(cur.Symbol, r.trigger, cur.AsOf, types.ActionLong, 0.8, "rsi_recross_after_bearish_run")
		return &sig
	}
	return r.hold(cur, "no_reversal_setup")
}

func (r *ReversalRSI) hold(snap *types.IndicatorSnapshot, reason string) *types.Signal {
	if snap == nil {
		return nil
	}
	sig := types.NewSignal(snap.Symbol, r.trigger, snap.AsOf, types.ActionHold, 0, reason)
	return &sig
}
