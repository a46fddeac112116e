package strategy

import (
	"context"

	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/types"
)

// Dispatcher feeds indicator snapshots to a strategy and emits its signals.
// It owns the per-timeframe snapshot map and the bounded trigger-timeframe
// history; a multi-timeframe strategy never sees a context until every
// timeframe it subscribes to has produced at least one snapshot.
type Dispatcher struct {
	strategy    interfaces.Strategy
	historySize int

	snapshots map[types.Timeframe]*types.IndicatorSnapshot
	history   []*types.IndicatorSnapshot
}

func NewDispatcher(s interfaces.Strategy, historySize int) *Dispatcher {
	if historySize < 1 {
		historySize = 1
	}
	return &Dispatcher{
		strategy:    s,
		historySize: historySize,
		snapshots:   make(map[types.Timeframe]*types.IndicatorSnapshot),
	}
}

// Observe records a fresh snapshot and, when it arrived on the strategy's
// trigger timeframe, evaluates the strategy against it. Returns the emitted
// signal and the context it was evaluated in, or nils when the snapshot was
// a non-trigger update or the strategy is not yet ready.
func (d *Dispatcher) Observe(ctx context.Context, snap *types.IndicatorSnapshot) (*types.Signal, *types.StrategyContext) {
	if snap == nil {
		return nil, nil
	}
	d.snapshots[snap.Timeframe] = snap

	tfs := d.strategy.Timeframes()
	trigger := tfs[0]
	if snap.Timeframe != trigger {
		return nil, nil
	}
	for _, tf := range tfs {
		if d.snapshots[tf] == nil {
			logger.Debug(ctx, "strategy waiting for timeframe",
				"strategy", d.strategy.Name(), "missing", string(tf))
			d.pushHistory(snap)
			return nil, nil
		}
	}

	// The context outlives this call: the decider reads it from another
	// goroutine while later Observe calls mutate the dispatcher's own map
	// and history window. Hand out copies, never the live containers.
	snapshots := make(map[types.Timeframe]*types.IndicatorSnapshot, len(d.snapshots))
	for tf, s := range d.snapshots {
		snapshots[tf] = s
	}
	sctx := &types.StrategyContext{
		Symbol:    snap.Symbol,
		Trigger:   trigger,
		Snapshots: snapshots,
		History:   append([]*types.IndicatorSnapshot(nil), d.history...),
	}
	sig := d.strategy.Evaluate(sctx)
	d.pushHistory(snap)
	if sig == nil {
		return nil, nil
	}
	metrics.SignalsEmitted.WithLabelValues(string(sig.Action)).Inc()
	logger.Signal(ctx, sig.Symbol, sig.Timeframe, string(sig.Action), sig.Confidence, sig.Reason)
	return sig, sctx
}

// pushHistory appends a trigger-timeframe snapshot, evicting the oldest once
// the window is full. History holds snapshots that preceded the current one.
func (d *Dispatcher) pushHistory(snap *types.IndicatorSnapshot) {
	d.history = append(d.history, snap)
	if len(d.history) > d.historySize {
		d.history = d.history[1:]
	}
}
