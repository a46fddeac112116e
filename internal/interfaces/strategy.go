package interfaces

import (
	"llm-crypto-trader/internal/types"
)

// Strategy turns indicator snapshots into trade signals. Evaluate is called
// once per candle close with the freshest snapshot set and returns nil when
// the strategy has nothing to say.
type Strategy interface {
	Name() string
	Timeframes() []types.Timeframe
	Evaluate(sctx *types.StrategyContext) *types.Signal
}
