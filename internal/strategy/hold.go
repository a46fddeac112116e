package strategy

import (
	"llm-crypto-trader/internal/types"
)

// Hold never proposes a position. It is the default variant and keeps the
// pipeline observable without risking any action.
type Hold struct {
	trigger types.Timeframe
}

func NewHold(trigger types.Timeframe) *Hold {
	return &Hold{trigger: trigger}
}

func (h *Hold) Name() string { return "hold" }

func (h *Hold) Timeframes() []types.Timeframe { return []types.Timeframe{h.trigger} }

func (h *Hold) Evaluate(sctx *types.StrategyContext) *types.Signal {
	snap := sctx.Latest(h.trigger)
	if snap == nil {
		return nil
	}
	sig := types.NewSignal(snap.Symbol, h.trigger, snap.AsOf, types.ActionHold, 0, "hold_strategy")
	return &sig
}
