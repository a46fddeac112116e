package interfaces

import (
	"context"

	"llm-crypto-trader/internal/types"
)

// Feed is a live market data connection delivering raw exchange frames.
type Feed interface {
	Connect(ctx context.Context, subs []types.Subscription) error
	State() types.ConnectionState
	Close() error
}
