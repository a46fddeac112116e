package llmobs

import (
	"context"

	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/trace"
	"llm-crypto-trader/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

// Compile-time interface check
var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

// Decide forwards to the wrapped decider inside a span, logging the proposed
// and final actions.
func (od *observableDecider) Decide(ctx context.Context, sig types.Signal, sctx *types.StrategyContext) (types.Action, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Decide")
	defer span.End()

	logger.Debug(ctx, "Requesting decision review",
		"symbol", sig.Symbol,
		"proposed", string(sig.Action),
		"reason", sig.Reason,
	)

	action, err := od.decider.Decide(ctx, sig, sctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to get decision", err,
			"symbol", sig.Symbol,
			"proposed", string(sig.Action),
		)
		return action, err
	}

	logger.Decision(ctx, sig.Symbol, string(action),
		"proposed", string(sig.Action),
		"signal_id", sig.ID,
	)

	return action, nil
}
