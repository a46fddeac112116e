package interfaces

import (
	"context"

	"llm-crypto-trader/internal/types"
)

// Decider reviews a strategy signal and returns the final action. It may
// confirm the proposal, override it, or return stop to halt dispatch.
type Decider interface {
	Decide(ctx context.Context, sig types.Signal, sctx *types.StrategyContext) (types.Action, error)
}
