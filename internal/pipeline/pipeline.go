package pipeline

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"llm-crypto-trader/internal/candle"
	"llm-crypto-trader/internal/feed"
	"llm-crypto-trader/internal/feed/okx"
	"llm-crypto-trader/internal/indicator"
	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/strategy"
	"llm-crypto-trader/internal/tradelog"
	"llm-crypto-trader/internal/types"
)

// Config is the pipeline's slice of the application config.
type Config struct {
	Symbol      string
	Channels    []string
	HistorySize int
}

// Pipeline wires feed frames through demultiplexing, candle aggregation,
// indicator recomputation and strategy evaluation. All of that runs
// synchronously on the feed's delivery goroutine, so a candle close is fully
// processed before the next frame is read. Only the decider call leaves that
// goroutine: it runs on a single in-flight dispatch, and work that would need
// a second concurrent dispatch is dropped, never queued.
type Pipeline struct {
	cfg        Config
	router     *feed.Router
	aggregator *candle.Aggregator
	engine     *indicator.Engine
	dispatcher *strategy.Dispatcher
	decider    interfaces.Decider

	inFlight atomic.Bool
	stopped  atomic.Bool
	done     chan struct{} // closed when no dispatch is in flight, for tests
}

func New(cfg Config, ind indicator.Config, strat interfaces.Strategy, decider interfaces.Decider) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		decider: decider,
	}
	p.engine = indicator.NewEngine(ind)
	p.dispatcher = strategy.NewDispatcher(strat, cfg.HistorySize)
	p.aggregator = candle.New(ind.WindowSize(), p.onCandleClose)
	p.router = feed.NewRouter(p.onCandleEvent, p.onTick)

	for _, tf := range candleTimeframes(cfg.Channels) {
		p.aggregator.Track(cfg.Symbol, tf)
	}
	if os.Getenv("STOP_SIGNAL") == "1" {
		p.stopped.Store(true)
		logger.Warn(context.Background(), "dispatch halted by STOP_SIGNAL env")
	}
	return p
}

// Run binds the pipeline to a feed client and connects it. The client's read
// loop becomes the delivery goroutine.
func (p *Pipeline) Run(ctx context.Context, client *okx.Client) error {
	client.OnMessage(p.HandleMessage)
	return client.Connect(ctx, p.Subscriptions())
}

// Subscriptions expands the configured channels for the configured symbol.
func (p *Pipeline) Subscriptions() []types.Subscription {
	subs := make([]types.Subscription, 0, len(p.cfg.Channels))
	for _, ch := range p.cfg.Channels {
		subs = append(subs, types.Subscription{Channel: ch, Symbol: p.cfg.Symbol})
	}
	return subs
}

// HandleMessage is the feed delivery entry point, one raw frame at a time.
func (p *Pipeline) HandleMessage(ctx context.Context, raw []byte) {
	p.router.Route(ctx, raw)
}

func (p *Pipeline) onCandleEvent(ctx context.Context, ev candle.Event) {
	p.aggregator.OnCandleEvent(ctx, ev)
}

// onTick folds a ticker update into the open candle, unless a dispatch is in
// flight. A tick on an already-dispatched candle is non-actionable, so it is
// dropped and counted rather than buffered.
func (p *Pipeline) onTick(ctx context.Context, tick types.Tick) {
	if p.inFlight.Load() {
		metrics.TicksDropped.Inc()
		logger.Debug(ctx, "tick dropped, dispatch in flight", "symbol", tick.Symbol)
		return
	}
	p.aggregator.OnTick(tick)
}

// onCandleClose runs on the delivery goroutine: recompute indicators for the
// closed candle's timeframe, let the strategy see the snapshot, and dispatch
// whatever it proposed.
func (p *Pipeline) onCandleClose(ctx context.Context, symbol string, tf types.Timeframe, window []types.Candle) {
	snap := p.engine.Recompute(symbol, tf, window)
	if snap == nil {
		return
	}
	sig, sctx := p.dispatcher.Observe(ctx, snap)
	if sig == nil {
		return
	}
	if err := tradelog.AppendSignal(*sig); err != nil {
		logger.Warn(ctx, "failed to append signal log", "error", err.Error())
	}
	if sig.Action == types.ActionHold {
		return
	}
	p.dispatch(ctx, *sig, sctx)
}

// dispatch hands a signal to the decider on its own goroutine. At most one
// dispatch runs at a time; a signal arriving while one is in flight is
// skipped with a logged count. The stop latch gates only this boundary:
// while stopped, signals are still evaluated, written to the trade log,
// and counted in metrics, so monitoring stays live and only the decider
// goes quiet.
func (p *Pipeline) dispatch(ctx context.Context, sig types.Signal, sctx *types.StrategyContext) {
	if p.stopped.Load() {
		metrics.DispatchSkips.Inc()
		logger.Info(ctx, "dispatch suppressed by stop latch",
			"signal_id", sig.ID, "action", string(sig.Action))
		return
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.DispatchSkips.Inc()
		logger.Warn(ctx, "signal skipped, dispatch already in flight",
			"signal_id", sig.ID, "action", string(sig.Action))
		return
	}

	done := make(chan struct{})
	p.done = done
	go func() {
		defer close(done)
		defer p.inFlight.Store(false)

		action, err := p.decider.Decide(ctx, sig, sctx)
		if err != nil {
			// Decider failures degrade to hold for this cycle only.
			logger.ErrorWithErr(ctx, "decider failed, holding", err, "signal_id", sig.ID)
			action = types.ActionHold
		}
		if logErr := tradelog.AppendAction(sig, action, err, triggerIndicators(sctx)); logErr != nil {
			logger.Warn(ctx, "failed to append action log", "error", logErr.Error())
		}
		if action == types.ActionStop {
			p.stopped.Store(true)
			logger.Warn(ctx, "decider requested stop, halting dispatch until cleared",
				"signal_id", sig.ID)
		}
	}()
}

// Stopped reports whether the dispatch stop latch is set.
func (p *Pipeline) Stopped() bool { return p.stopped.Load() }

// ClearStop re-enables dispatch after a stop directive.
func (p *Pipeline) ClearStop() {
	if p.stopped.CompareAndSwap(true, false) {
		logger.Info(context.Background(), "dispatch stop latch cleared")
	}
}

// WaitDispatch blocks until the most recent dispatch finished. Test hook.
func (p *Pipeline) WaitDispatch() {
	if p.done != nil {
		<-p.done
	}
}

func triggerIndicators(sctx *types.StrategyContext) map[string]float64 {
	if sctx == nil {
		return nil
	}
	snap := sctx.Latest(sctx.Trigger)
	if snap == nil {
		return nil
	}
	out := make(map[string]float64, len(snap.Values))
	for name, v := range snap.Values {
		if snap.Defined(name) {
			out[name] = v
		}
	}
	return out
}

func candleTimeframes(channels []string) []types.Timeframe {
	var out []types.Timeframe
	for _, ch := range channels {
		if !strings.HasPrefix(ch, "candle") {
			continue
		}
		tf := types.Timeframe(strings.TrimPrefix(ch, "candle"))
		if tf.Duration() > 0 {
			out = append(out, tf)
		}
	}
	return out
}

// CandleTimeframes exposes the parsed candle subscriptions for strategy
// construction.
func CandleTimeframes(channels []string) []types.Timeframe {
	return candleTimeframes(channels)
}
