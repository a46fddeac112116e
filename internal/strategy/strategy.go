package strategy

import (
	"fmt"
	"sort"

	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/types"
)

// Config selects and parameterises a strategy variant. Timeframes come from
// the feed's candle subscriptions; single-timeframe variants use the shortest
// one as their trigger.
type Config struct {
	Type        string
	Params      map[string]float64
	Timeframes  []types.Timeframe
	HistorySize int
}

// New builds the configured strategy variant. An empty type falls back to
// hold.
func New(cfg Config) (interfaces.Strategy, error) {
	tfs := sortTimeframes(cfg.Timeframes)
	if len(tfs) == 0 {
		return nil, fmt.Errorf("strategy requires at least one candle timeframe")
	}
	trigger := tfs[0]

	switch cfg.Type {
	case "", "hold":
		return NewHold(trigger), nil
	case "reversal_kdj":
		return NewReversalKDJ(trigger, cfg.Params), nil
	case "reversal_rsi":
		return NewReversalRSI(trigger, cfg.Params), nil
	case "breakout":
		return NewBreakout(trigger, cfg.Params), nil
	case "trend_macd":
		if len(tfs) < 2 {
			return nil, fmt.Errorf("trend_macd requires two candle timeframes, got %d", len(tfs))
		}
		return NewTrendMACD(trigger, tfs[len(tfs)-1], cfg.Params), nil
	default:
		return nil, fmt.Errorf("unknown strategy_type '%s'", cfg.Type)
	}
}

func sortTimeframes(tfs []types.Timeframe) []types.Timeframe {
	out := make([]types.Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if tf.Duration() > 0 {
			out = append(out, tf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration() < out[j].Duration() })
	return out
}

func param(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}
