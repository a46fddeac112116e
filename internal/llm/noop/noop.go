package noop

import (
	"context"

	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/types"
)

// NoopDecider is the rule-based collaborator used when no LLM backend is
// configured. It trusts the strategy: the proposed action passes through
// unchanged.
type NoopDecider struct{}

func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

// Decide implements the Decider interface by confirming the signal's action.
func (d *NoopDecider) Decide(ctx context.Context, sig types.Signal, sctx *types.StrategyContext) (types.Action, error) {
	logger.Debug(ctx, "noop decider passing through proposed action",
		"symbol", sig.Symbol, "action", string(sig.Action))
	if !sig.Action.Valid() {
		return types.ActionHold, nil
	}
	return sig.Action, nil
}
