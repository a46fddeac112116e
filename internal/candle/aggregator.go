package candle

import (
	"context"
	"sync"

	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/types"
)

// Event is a decoded candle push from the feed. The exchange re-pushes the
// forming candle with the same start ts until it confirms the close.
type Event struct {
	Symbol    string
	Timeframe types.Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	StartTs   int64
	Closed    bool
}

// CloseFunc is invoked exactly once per confirmed candle close with the
// closed-candle window for that (symbol, timeframe), oldest first. The slice
// is owned by the aggregator and must not be retained across calls.
type CloseFunc func(ctx context.Context, symbol string, tf types.Timeframe, window []types.Candle)

// Aggregator owns per-(symbol, timeframe) candle state: one open candle and
// a bounded window of closed candles. A single goroutine feeds it; the mutex
// only guards read access from other goroutines (state inspection, tests).
type Aggregator struct {
	mu         sync.Mutex
	windowSize int
	books      map[bookKey]*book
	onClose    CloseFunc
}

type bookKey struct {
	symbol string
	tf     types.Timeframe
}

type book struct {
	open   *types.Candle
	closed []types.Candle
	lastTs int64 // start ts of the most recently closed candle
}

// New builds an aggregator retaining windowSize closed candles per
// (symbol, timeframe). Size it from the slowest subscribed indicator.
func New(windowSize int, onClose CloseFunc) *Aggregator {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Aggregator{
		windowSize: windowSize,
		books:      make(map[bookKey]*book),
		onClose:    onClose,
	}
}

// OnCandleEvent applies one candle push. Forming pushes replace the open
// candle in place; a confirmed close appends to the window, rolls the open
// candle, and fires the close callback. Duplicate closes are idempotent.
func (a *Aggregator) OnCandleEvent(ctx context.Context, ev Event) {
	a.mu.Lock()
	key := bookKey{ev.Symbol, ev.Timeframe}
	b := a.books[key]
	if b == nil {
		b = &book{lastTs: -1}
		a.books[key] = b
	}

	if !ev.Closed {
		if ev.StartTs <= b.lastTs {
			// Late re-push of an already-closed interval.
			a.mu.Unlock()
			return
		}
		c := eventCandle(ev)
		b.open = &c
		a.mu.Unlock()
		return
	}

	if ev.StartTs <= b.lastTs && b.lastTs >= 0 {
		a.mu.Unlock()
		metrics.DuplicateCloses.WithLabelValues(ev.Symbol, string(ev.Timeframe)).Inc()
		logger.Debug(ctx, "Duplicate candle close dropped",
			"symbol", ev.Symbol, "timeframe", string(ev.Timeframe), "start_ts", ev.StartTs)
		return
	}

	c := eventCandle(ev)
	c.Closed = true
	b.closed = append(b.closed, c)
	if len(b.closed) > a.windowSize {
		b.closed = b.closed[1:]
	}
	b.lastTs = ev.StartTs
	if b.open != nil && b.open.StartTs == ev.StartTs {
		b.open = nil
	}
	window := make([]types.Candle, len(b.closed))
	copy(window, b.closed)
	a.mu.Unlock()

	if a.onClose != nil {
		a.onClose(ctx, ev.Symbol, ev.Timeframe, window)
	}
}

// OnTick folds a ticker push into every open candle of the symbol. Each
// timeframe tracks its own interval boundary by wall-clock alignment; a tick
// past the current open interval starts a fresh open candle but never closes
// one; close authority stays with the candle channel.
func (a *Aggregator) OnTick(tick types.Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, b := range a.books {
		if key.symbol != tick.Symbol {
			continue
		}
		interval := key.tf.Duration().Milliseconds()
		if interval <= 0 {
			continue
		}
		start := tick.Ts - tick.Ts%interval
		if b.open == nil || b.open.StartTs < start {
			if start <= b.lastTs {
				continue
			}
			b.open = &types.Candle{
				Symbol:    tick.Symbol,
				Timeframe: key.tf,
				Open:      tick.Price,
				High:      tick.Price,
				Low:       tick.Price,
				Close:     tick.Price,
				Volume:    tick.Volume,
				StartTs:   start,
			}
			continue
		}
		if b.open.StartTs > start {
			continue // stale tick from an already-rolled interval
		}
		if tick.Price > b.open.High {
			b.open.High = tick.Price
		}
		if tick.Price < b.open.Low {
			b.open.Low = tick.Price
		}
		b.open.Close = tick.Price
		b.open.Volume += tick.Volume
	}
}

// Track pre-registers a (symbol, timeframe) book so ticks arriving before
// the first candle push still have somewhere to aggregate.
func (a *Aggregator) Track(symbol string, tf types.Timeframe) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := bookKey{symbol, tf}
	if a.books[key] == nil {
		a.books[key] = &book{lastTs: -1}
	}
}

// OpenCandle returns a copy of the current open candle, if any.
func (a *Aggregator) OpenCandle(symbol string, tf types.Timeframe) (types.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.books[bookKey{symbol, tf}]
	if b == nil || b.open == nil {
		return types.Candle{}, false
	}
	return *b.open, true
}

// ClosedWindow returns a copy of the closed-candle window, oldest first.
func (a *Aggregator) ClosedWindow(symbol string, tf types.Timeframe) []types.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.books[bookKey{symbol, tf}]
	if b == nil {
		return nil
	}
	out := make([]types.Candle, len(b.closed))
	copy(out, b.closed)
	return out
}

func eventCandle(ev Event) types.Candle {
	return types.Candle{
		Symbol:    ev.Symbol,
		Timeframe: ev.Timeframe,
		Open:      ev.Open,
		High:      ev.High,
		Low:       ev.Low,
		Close:     ev.Close,
		Volume:    ev.Volume,
		StartTs:   ev.StartTs,
	}
}
