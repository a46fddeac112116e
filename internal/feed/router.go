package feed

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"llm-crypto-trader/internal/candle"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/types"
)

// CandleFunc consumes decoded candle events.
type CandleFunc func(ctx context.Context, ev candle.Event)

// TickFunc consumes decoded ticker pushes.
type TickFunc func(ctx context.Context, tick types.Tick)

// Router classifies raw feed frames by channel and dispatches to the right
// consumer. It reads only the discriminator fields (arg.channel, arg.instId,
// the data rows) and never validates the full payload; anything it cannot
// place is dropped and counted. Stateless and synchronous.
type Router struct {
	onCandle CandleFunc
	onTick   TickFunc
}

func NewRouter(onCandle CandleFunc, onTick TickFunc) *Router {
	return &Router{onCandle: onCandle, onTick: onTick}
}

// Route dispatches one raw frame. Event frames (subscribe acks, pongs,
// errors) are the connection's business and arrive here only if the client
// leaks one; they are dropped silently.
func (r *Router) Route(ctx context.Context, raw []byte) {
	channel := gjson.GetBytes(raw, "arg.channel").String()
	data := gjson.GetBytes(raw, "data")
	if channel == "" || !data.IsArray() {
		metrics.ParseDrops.Inc()
		logger.Debug(ctx, "Unroutable frame dropped", "size", len(raw))
		return
	}
	symbol := gjson.GetBytes(raw, "arg.instId").String()

	switch {
	case strings.HasPrefix(channel, "candle"):
		tf := types.Timeframe(strings.TrimPrefix(channel, "candle"))
		if tf.Duration() == 0 {
			metrics.ParseDrops.Inc()
			logger.Debug(ctx, "Unknown candle timeframe dropped", "channel", channel)
			return
		}
		routed := false
		for _, row := range data.Array() {
			ev, ok := parseCandleRow(symbol, tf, row)
			if !ok {
				metrics.ParseDrops.Inc()
				continue
			}
			routed = true
			if r.onCandle != nil {
				r.onCandle(ctx, ev)
			}
		}
		if routed {
			metrics.MessagesRouted.WithLabelValues(channel).Inc()
		}
	case channel == "tickers":
		routed := false
		for _, item := range data.Array() {
			tick, ok := parseTicker(symbol, item)
			if !ok {
				metrics.ParseDrops.Inc()
				continue
			}
			routed = true
			if r.onTick != nil {
				r.onTick(ctx, tick)
			}
		}
		if routed {
			metrics.MessagesRouted.WithLabelValues(channel).Inc()
		}
	default:
		metrics.ParseDrops.Inc()
		logger.Debug(ctx, "Unknown channel dropped", "channel", channel)
	}
}

// parseCandleRow decodes an OKX candle row:
// [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm].
func parseCandleRow(symbol string, tf types.Timeframe, row gjson.Result) (candle.Event, bool) {
	if !row.IsArray() {
		return candle.Event{}, false
	}
	cols := row.Array()
	if len(cols) < 6 {
		return candle.Event{}, false
	}
	ts := cols[0].Int()
	if ts <= 0 {
		return candle.Event{}, false
	}
	ev := candle.Event{
		Symbol:    symbol,
		Timeframe: tf,
		Open:      cols[1].Float(),
		High:      cols[2].Float(),
		Low:       cols[3].Float(),
		Close:     cols[4].Float(),
		Volume:    cols[5].Float(),
		StartTs:   ts,
	}
	if len(cols) >= 9 {
		ev.Closed = cols[8].String() == "1"
	}
	if ev.Open <= 0 || ev.High <= 0 || ev.Low <= 0 || ev.Close <= 0 {
		return candle.Event{}, false
	}
	return ev, true
}

func parseTicker(symbol string, item gjson.Result) (types.Tick, bool) {
	last := item.Get("last").Float()
	ts := item.Get("ts").Int()
	if last <= 0 || ts <= 0 {
		return types.Tick{}, false
	}
	if symbol == "" {
		symbol = item.Get("instId").String()
	}
	return types.Tick{
		Symbol: symbol,
		Price:  last,
		Volume: item.Get("lastSz").Float(),
		Ts:     ts,
	}, true
}
