package strategy

import (
	"context"
	"math"
	"testing"

	"llm-crypto-trader/internal/types"
)

func snap(tf types.Timeframe, asOf int64, close float64, values map[string]float64) *types.IndicatorSnapshot {
	return &types.IndicatorSnapshot{
		Symbol:    "BTC-USDT",
		Timeframe: tf,
		AsOf:      asOf,
		Close:     close,
		Values:    values,
	}
}

func ctxWith(trigger types.Timeframe, history []*types.IndicatorSnapshot, snaps ...*types.IndicatorSnapshot) *types.StrategyContext {
	m := make(map[types.Timeframe]*types.IndicatorSnapshot)
	for _, s := range snaps {
		m[s.Timeframe] = s
	}
	return &types.StrategyContext{
		Symbol:    "BTC-USDT",
		Trigger:   trigger,
		Snapshots: m,
		History:   history,
	}
}

func TestFactorySelectsVariant(t *testing.T) {
	tfs := []types.Timeframe{"15m", "4H"}
	cases := []struct {
		typ  string
		name string
	}{
		{"", "hold"},
		{"hold", "hold"},
		{"reversal_kdj", "reversal_kdj"},
		{"reversal_rsi", "reversal_rsi"},
		{"breakout", "breakout"},
		{"trend_macd", "trend_macd"},
	}
	for _, tc := range cases {
		s, err := New(Config{Type: tc.typ, Timeframes: tfs})
		if err != nil {
			t.Fatalf("New(%q): %v", tc.typ, err)
		}
		if s.Name() != tc.name {
			t.Errorf("New(%q).Name() = %s", tc.typ, s.Name())
		}
	}
	if _, err := New(Config{Type: "momentum", Timeframes: tfs}); err == nil {
		t.Error("expected error for unknown strategy type")
	}
	if _, err := New(Config{Type: "trend_macd", Timeframes: []types.Timeframe{"15m"}}); err == nil {
		t.Error("trend_macd should require two timeframes")
	}
}

func TestTrendMACDPicksShortestTriggerAndLongestTrend(t *testing.T) {
	s, err := New(Config{Type: "trend_macd", Timeframes: []types.Timeframe{"4H", "1m", "15m"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tfs := s.Timeframes()
	if tfs[0] != "1m" || tfs[1] != "4H" {
		t.Errorf("timeframes = %v, want [1m 4H]", tfs)
	}
}

func TestReversalKDJEmitsExactlyOneLongOnCrossUp(t *testing.T) {
	s := NewReversalKDJ("1m", nil)
	// K climbs from deep oversold through D. The cross happens between the
	// third and fourth rows.
	rows := []struct{ k, d float64 }{
		{10, 18},
		{12, 16},
		{14, 15},
		{18, 16}, // cross-up, prev K 14 < oversold 20
		{25, 20},
		{40, 30},
	}
	var history []*types.IndicatorSnapshot
	var longs, holds int
	for i, row := range rows {
		cur := snap("1m", int64(i)*60000, 100, map[string]float64{"kdj_k": row.k, "kdj_d": row.d})
		sig := s.Evaluate(ctxWith("1m", history, cur))
		if sig == nil {
			t.Fatalf("row %d: nil signal", i)
		}
		switch sig.Action {
		case types.ActionLong:
			longs++
			if i != 3 {
				t.Errorf("long emitted at row %d, want row 3", i)
			}
		case types.ActionHold:
			holds++
		default:
			t.Errorf("row %d: unexpected action %s", i, sig.Action)
		}
		history = append(history, cur)
	}
	if longs != 1 {
		t.Errorf("longs = %d, want exactly 1", longs)
	}
	if holds != len(rows)-1 {
		t.Errorf("holds = %d, want %d", holds, len(rows)-1)
	}
}

func TestReversalKDJShortOnCrossDownFromOverbought(t *testing.T) {
	s := NewReversalKDJ("1m", nil)
	prev := snap("1m", 0, 100, map[string]float64{"kdj_k": 88, "kdj_d": 84})
	cur := snap("1m", 60000, 100, map[string]float64{"kdj_k": 80, "kdj_d": 82})
	sig := s.Evaluate(ctxWith("1m", []*types.IndicatorSnapshot{prev}, cur))
	if sig.Action != types.ActionShort {
		t.Errorf("action = %s, want short", sig.Action)
	}
}

func TestReversalKDJHoldsWhileWarmingUp(t *testing.T) {
	s := NewReversalKDJ("1m", nil)
	cur := snap("1m", 0, 100, map[string]float64{"kdj_k": math.NaN(), "kdj_d": math.NaN()})
	sig := s.Evaluate(ctxWith("1m", nil, cur))
	if sig.Action != types.ActionHold {
		t.Errorf("undefined KDJ should hold, got %s", sig.Action)
	}
}

func candle(asOf int64, open, close float64, values map[string]float64) *types.IndicatorSnapshot {
	s := snap("15m", asOf, close, values)
	s.Open = open
	return s
}

func TestReversalRSILongOnRecrossAfterBearishRun(t *testing.T) {
	s := NewReversalRSI("15m", map[string]float64{"consecutive_bearish": 3})

	// Three red candles grinding RSI under 30, then a green candle lifts it
	// back through the line. Only the recross candle may fire.
	hist := []*types.IndicatorSnapshot{
		candle(0, 102, 100, map[string]float64{"rsi": 34, "sma": 103}),
		candle(900000, 100, 98, map[string]float64{"rsi": 29, "sma": 102}),
		candle(1800000, 98, 96, map[string]float64{"rsi": 25, "sma": 101}),
	}
	cur := candle(2700000, 96, 99, map[string]float64{"rsi": 33, "sma": 101})

	sig := s.Evaluate(ctxWith("15m", hist, cur))
	if sig.Action != types.ActionLong {
		t.Fatalf("recross after bearish run should go long, got %s (%s)", sig.Action, sig.Reason)
	}

	// In position now: a second qualifying candle must not re-enter.
	next := candle(3600000, 99, 100, map[string]float64{"rsi": 35, "sma": 101})
	sig = s.Evaluate(ctxWith("15m", append(hist[1:], cur), next))
	if sig.Action != types.ActionHold || sig.Reason != "in_position_holding" {
		t.Errorf("expected in-position hold, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestReversalRSIClosesAtMovingAverage(t *testing.T) {
	s := NewReversalRSI("15m", map[string]float64{"consecutive_bearish": 3})
	hist := []*types.IndicatorSnapshot{
		candle(0, 102, 100, map[string]float64{"rsi": 34, "sma": 103}),
		candle(900000, 100, 98, map[string]float64{"rsi": 29, "sma": 102}),
		candle(1800000, 98, 96, map[string]float64{"rsi": 25, "sma": 101}),
	}
	entry := candle(2700000, 96, 99, map[string]float64{"rsi": 33, "sma": 101})
	if sig := s.Evaluate(ctxWith("15m", hist, entry)); sig.Action != types.ActionLong {
		t.Fatalf("setup did not enter: %s (%s)", sig.Action, sig.Reason)
	}

	recovered := candle(3600000, 99, 101.5, map[string]float64{"rsi": 48, "sma": 101})
	sig := s.Evaluate(ctxWith("15m", append(hist[1:], entry), recovered))
	if sig.Action != types.ActionClose {
		t.Fatalf("close above the moving average should exit, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.Reason != "recovered_to_moving_average" {
		t.Errorf("reason = %s", sig.Reason)
	}
}

func TestReversalRSINoEntryWithoutBearishRun(t *testing.T) {
	s := NewReversalRSI("15m", map[string]float64{"consecutive_bearish": 3})
	// Middle candle is green, so the run is broken even though RSI recrosses.
	hist := []*types.IndicatorSnapshot{
		candle(0, 102, 100, map[string]float64{"rsi": 34, "sma": 103}),
		candle(900000, 98, 99, map[string]float64{"rsi": 29, "sma": 102}),
		candle(1800000, 99, 96, map[string]float64{"rsi": 25, "sma": 101}),
	}
	cur := candle(2700000, 96, 99, map[string]float64{"rsi": 33, "sma": 101})
	sig := s.Evaluate(ctxWith("15m", hist, cur))
	if sig.Action != types.ActionHold || sig.Reason != "no_bearish_run" {
		t.Errorf("broken run should hold, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestBreakoutLongOnRangeBreakWithVolumeSpike(t *testing.T) {
	s := NewBreakout("15m", map[string]float64{"consolidation_bars": 5})
	var history []*types.IndicatorSnapshot
	for i := 0; i < 5; i++ {
		h := snap("15m", int64(i), 100, map[string]float64{"volume_sma": 10})
		h.High, h.Low = 101, 99
		history = append(history, h)
	}
	cur := snap("15m", 5, 102, map[string]float64{"volume_sma": 10})
	cur.High, cur.Low, cur.Volume = 102.5, 100, 25 // 2.5x volume

	sig := s.Evaluate(ctxWith("15m", history, cur))
	if sig.Action != types.ActionLong {
		t.Fatalf("action = %s (%s), want long", sig.Action, sig.Reason)
	}

	// Same candle without the volume spike holds.
	quiet := *cur
	quiet.Volume = 12
	sig = s.Evaluate(ctxWith("15m", history, &quiet))
	if sig.Action != types.ActionHold {
		t.Errorf("no volume spike should hold, got %s", sig.Action)
	}
}

func TestBreakoutShortOnBreakdown(t *testing.T) {
	s := NewBreakout("15m", map[string]float64{"consolidation_bars": 5})
	var history []*types.IndicatorSnapshot
	for i := 0; i < 5; i++ {
		h := snap("15m", int64(i), 100, map[string]float64{"volume_sma": 10})
		h.High, h.Low = 101, 99
		history = append(history, h)
	}
	cur := snap("15m", 5, 98, map[string]float64{"volume_sma": 10})
	cur.High, cur.Low, cur.Volume = 100, 97.8, 30
	sig := s.Evaluate(ctxWith("15m", history, cur))
	if sig.Action != types.ActionShort {
		t.Errorf("action = %s (%s), want short", sig.Action, sig.Reason)
	}
}

func TestBreakoutIgnoresWideRange(t *testing.T) {
	s := NewBreakout("15m", map[string]float64{"consolidation_bars": 5})
	var history []*types.IndicatorSnapshot
	for i := 0; i < 5; i++ {
		h := snap("15m", int64(i), 100, map[string]float64{"volume_sma": 10})
		h.High, h.Low = 110, 90 // 20% range is not consolidation
		history = append(history, h)
	}
	cur := snap("15m", 5, 111, map[string]float64{"volume_sma": 10})
	cur.Volume = 30
	sig := s.Evaluate(ctxWith("15m", history, cur))
	if sig.Action != types.ActionHold {
		t.Errorf("wide range should hold, got %s", sig.Action)
	}
}

func trendValues(macd, signal, hist, sma float64) map[string]float64 {
	return map[string]float64{
		"macd": macd, "macd_signal": signal, "macd_histogram": hist, "sma": sma,
	}
}

func TestTrendMACDEntryExitCycle(t *testing.T) {
	s := NewTrendMACD("15m", "4H", nil)
	high := snap("4H", 0, 105, trendValues(2, 1, 1, 100)) // uptrend: hist > 0, close > sma

	prev := snap("15m", 900000, 100, trendValues(-0.5, 0.2, -0.7, 99))
	cross := snap("15m", 1800000, 101, trendValues(0.5, 0.2, 0.3, 99))
	sig := s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev}, cross, high))
	if sig.Action != types.ActionLong {
		t.Fatalf("entry action = %s (%s), want long", sig.Action, sig.Reason)
	}

	// In position: no new cross keeps holding.
	flat := snap("15m", 2700000, 101.5, trendValues(0.6, 0.5, 0.1, 99))
	sig = s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev, cross}, flat, high))
	if sig.Action != types.ActionHold {
		t.Fatalf("in-position action = %s, want hold", sig.Action)
	}

	// Death cross closes the long.
	exit := snap("15m", 3600000, 100, trendValues(0.1, 0.4, -0.3, 99))
	sig = s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev, cross, flat}, exit, high))
	if sig.Action != types.ActionClose {
		t.Fatalf("exit action = %s (%s), want close", sig.Action, sig.Reason)
	}
}

func TestTrendMACDRefusesStaleHigherTimeframe(t *testing.T) {
	s := NewTrendMACD("15m", "4H", nil)
	fourHours := int64(4 * 3600 * 1000)

	high := snap("4H", 0, 105, trendValues(2, 1, 1, 100))
	prev := snap("15m", 2*fourHours, 100, trendValues(-0.5, 0.2, -0.7, 99))
	// The trigger close sits two full 4H intervals past the trend snapshot,
	// so at least one higher close went missing.
	cross := snap("15m", 2*fourHours+900000, 101, trendValues(0.5, 0.2, 0.3, 99))

	sig := s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev}, cross, high))
	if sig.Action != types.ActionHold {
		t.Fatalf("stale trend snapshot must hold, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.Reason != "higher_timeframe_stale" {
		t.Errorf("reason = %s", sig.Reason)
	}
}

func TestTrendMACDAcceptsFormingHigherInterval(t *testing.T) {
	s := NewTrendMACD("15m", "4H", nil)
	fourHours := int64(4 * 3600 * 1000)

	// Trigger closes inside the 4H interval that is still forming sit up to
	// one full duration past the last higher close and must not be refused.
	high := snap("4H", 0, 105, trendValues(2, 1, 1, 100))
	prev := snap("15m", fourHours+1800000, 100, trendValues(-0.5, 0.2, -0.7, 99))
	cross := snap("15m", fourHours+2700000, 101, trendValues(0.5, 0.2, 0.3, 99))

	sig := s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev}, cross, high))
	if sig.Action != types.ActionLong {
		t.Fatalf("fresh forming-interval cross should go long, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestTrendMACDNoEntryWithoutTrendAlignment(t *testing.T) {
	s := NewTrendMACD("15m", "4H", nil)
	// Downtrend on 4H but a golden cross on 15m: no entry.
	high := snap("4H", 0, 95, trendValues(-2, -1, -1, 100))
	prev := snap("15m", 900000, 100, trendValues(-0.5, 0.2, -0.7, 99))
	cross := snap("15m", 1800000, 101, trendValues(0.5, 0.2, 0.3, 99))
	sig := s.Evaluate(ctxWith("15m", []*types.IndicatorSnapshot{prev}, cross, high))
	if sig.Action != types.ActionHold {
		t.Errorf("misaligned trend should hold, got %s", sig.Action)
	}
}

func TestDispatcherWaitsForAllTimeframes(t *testing.T) {
	s := NewTrendMACD("15m", "4H", nil)
	d := NewDispatcher(s, 10)
	ctx := context.Background()

	// Trigger snapshot arrives before the trend timeframe has ever ticked.
	first := snap("15m", 900000, 100, trendValues(-0.5, 0.2, -0.7, 99))
	if sig, _ := d.Observe(ctx, first); sig != nil {
		t.Fatalf("evaluated before all timeframes ready: %+v", sig)
	}

	high := snap("4H", 0, 105, trendValues(2, 1, 1, 100))
	if sig, _ := d.Observe(ctx, high); sig != nil {
		t.Fatal("non-trigger snapshot must not evaluate")
	}

	cross := snap("15m", 1800000, 101, trendValues(0.5, 0.2, 0.3, 99))
	sig, sctx := d.Observe(ctx, cross)
	if sig == nil || sig.Action != types.ActionLong {
		t.Fatalf("expected long after both timeframes ready, got %+v", sig)
	}
	if sctx == nil || sctx.Latest("4H") == nil {
		t.Fatal("emitted signal should carry its evaluation context")
	}
}

func TestDispatcherBoundsHistory(t *testing.T) {
	d := NewDispatcher(NewHold("1m"), 3)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Observe(ctx, snap("1m", int64(i)*60000, 100, nil))
	}
	if len(d.history) != 3 {
		t.Errorf("history len = %d, want 3", len(d.history))
	}
	if d.history[0].AsOf != 7*60000 {
		t.Errorf("oldest retained AsOf = %d", d.history[0].AsOf)
	}
}

func TestDispatcherContextSurvivesLaterObserves(t *testing.T) {
	// A returned context is read by the decider on its own goroutine, so it
	// must stay frozen while the dispatcher keeps ingesting snapshots.
	d := NewDispatcher(NewHold("1m"), 3)
	ctx := context.Background()

	first := snap("1m", 60000, 100, map[string]float64{"rsi": 40})
	_, sctx := d.Observe(ctx, first)
	if sctx == nil {
		t.Fatal("expected a strategy context")
	}
	histLen := len(sctx.History)

	for i := 2; i <= 6; i++ {
		d.Observe(ctx, snap("1m", int64(i)*60000, 101, map[string]float64{"rsi": 60}))
	}

	if got := sctx.Snapshots["1m"]; got != first {
		t.Errorf("context snapshot replaced by a later one: AsOf=%d", got.AsOf)
	}
	if len(sctx.History) != histLen {
		t.Errorf("context history grew from %d to %d", histLen, len(sctx.History))
	}
}

func TestHoldStrategyAlwaysHolds(t *testing.T) {
	s := NewHold("1m")
	cur := snap("1m", 0, 100, nil)
	sig := s.Evaluate(ctxWith("1m", nil, cur))
	if sig == nil || sig.Action != types.ActionHold {
		t.Fatalf("got %+v, want hold", sig)
	}
	if sig.ID == "" {
		t.Error("signal should carry an id")
	}
}
