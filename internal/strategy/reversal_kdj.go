package strategy

import (
	"llm-crypto-trader/internal/types"
)

// ReversalKDJ trades stochastic reversals on a single timeframe: a K/D
// cross-up out of the oversold zone proposes a long, a cross-down out of the
// overbought zone proposes a short. Everything else holds.
type ReversalKDJ struct {
	trigger    types.Timeframe
	oversold   float64
	overbought float64
}

func NewReversalKDJ(trigger types.Timeframe, params map[string]float64) *ReversalKDJ {
	return &ReversalKDJ{
		trigger:    trigger,
		oversold:   param(params, "oversold", 20),
		overbought: param(params, "overbought", 80),
	}
}

func (r *ReversalKDJ) Name() string { return "reversal_kdj" }

func (r *ReversalKDJ) Timeframes() []types.Timeframe { return []types.Timeframe{r.trigger} }

func (r *ReversalKDJ) Evaluate(sctx *types.StrategyContext) *types.Signal {
	cur := sctx.Latest(r.trigger)
	if cur == nil || !cur.Defined("kdj_k") || !cur.Defined("kdj_d") {
		return r.hold(cur, "kdj_warming_up")
	}
	if len(sctx.History) == 0 {
		return r.hold(cur, "no_previous_snapshot")
	}
	prev := sctx.History[len(sctx.History)-1]
	if !prev.Defined("kdj_k") || !prev.Defined("kdj_d") {
		return r.hold(cur, "kdj_warming_up")
	}

	prevK, prevD := prev.Value("kdj_k"), prev.Value("kdj_d")
	curK, curD := cur.Value("kdj_k"), cur.Value("kdj_d")

	// Golden cross out of the oversold zone.
	if prevK <= prevD && curK > curD && prevK < r.oversold {
		sig := types.NewSignal(cur.Symbol, r.trigger, cur.AsOf, types.ActionLong, 0.8, "kdj_cross_up_from_oversold")
		return &sig
	}
	// Death cross out of the overbought zone.
	if prevK >= prevD && curK < curD && prevK > r.overbought {
		sig := types.NewSignal(cur.Symbol, r.trigger, cur.AsOf, types.ActionShort, 0.8, "kdj_cross_down_from_overbought")
		return &sig
	}
	return r.hold(cur, "no_crossover")
}

func (r *ReversalKDJ) hold(snap *types.IndicatorSnapshot, reason string) *types.Signal {
	if snap == nil {
		return nil
	}
	sig := types.NewSignal(snap.Symbol, r.trigger, snap.AsOf, types.ActionHold, 0, reason)
	return &sig
}
