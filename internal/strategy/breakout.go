package strategy

import (
	"fmt"

	"llm-crypto-trader/internal/types"
)

// Breakout watches for a consolidation range being broken on elevated volume.
// The range is the high/low envelope of the lookback window excluding the
// current candle; a close beyond either boundary with volume at least
// volume_spike_ratio times its moving average proposes a position in the
// breakout direction. Ranges too wide to count as consolidation, or too
// narrow to be tradeable, are ignored.
type Breakout struct {
	trigger          types.Timeframe
	lookback         int
	volumeSpikeRatio float64
	minRangePct      float64
	maxRangePct      float64
}

func NewBreakout(trigger types.Timeframe, params map[string]float64) *Breakout {
	return &Breakout{
		trigger:          trigger,
		lookback:         int(param(params, "consolidation_bars", 20)),
		volumeSpikeRatio: param(params, "volume_spike_ratio", 2.0),
		minRangePct:      param(params, "min_consolidation_range_pct", 0.01),
		maxRangePct:      param(params, "max_consolidation_range_pct", 0.03),
	}
}

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) Timeframes() []types.Timeframe { return []types.Timeframe{b.trigger} }

func (b *Breakout) Evaluate(sctx *types.StrategyContext) *types.Signal {
	cur := sctx.Latest(b.trigger)
	if cur == nil {
		return nil
	}
	if len(sctx.History) < b.lookback {
		return b.hold(cur, "insufficient_history")
	}
	if !cur.Defined("volume_sma") {
		return b.hold(cur, "volume_sma_warming_up")
	}

	window := sctx.History[len(sctx.History)-b.lookback:]
	consHigh, consLow := window[0].High, window[0].Low
	for _, s := range window[1:] {
		if s.High > consHigh {
			consHigh = s.High
		}
		if s.Low < consLow {
			consLow = s.Low
		}
	}
	rangePct := (consHigh - consLow) / cur.Close
	if rangePct < b.minRangePct || rangePct > b.maxRangePct {
		return b.hold(cur, "not_consolidating")
	}

	volumeSpike := cur.Volume >= cur.Value("volume_sma")*b.volumeSpikeRatio
	if !volumeSpike {
		return b.hold(cur, "no_volume_spike")
	}

	if cur.Close > consHigh {
		sig := types.NewSignal(cur.Symbol, b.trigger, cur.AsOf, types.ActionLong, 0.85,
			fmt.Sprintf("breakout_above_%.4f_with_volume_spike", consHigh))
		return &sig
	}
	if cur.Close < consLow {
		sig := types.NewSignal(cur.Symbol, b.trigger, cur.AsOf, types.ActionShort, 0.85,
			fmt.Sprintf("breakdown_below_%.4f_with_volume_spike", consLow))
		return &sig
	}
	return b.hold(cur, "inside_range")
}

func (b *Breakout) hold(snap *types.IndicatorSnapshot, reason string) *types.Signal {
	sig := types.NewSignal(snap.Symbol, b.trigger, snap.AsOf, types.ActionHold, 0, reason)
	return &sig
}
