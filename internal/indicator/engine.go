package indicator

import (
	"sync"

	"llm-crypto-trader/internal/ta"
	"llm-crypto-trader/internal/types"
)

// Config fixes the indicator parameter set computed for every timeframe.
type Config struct {
	SMAPeriod       int `yaml:"sma_period"`
	RSIPeriod       int `yaml:"rsi_period"`
	KDJPeriod       int `yaml:"kdj_period"`
	VolumeSMAPeriod int `yaml:"volume_sma_period"`
	MACD            struct {
		Fast   int `yaml:"fast"`
		Slow   int `yaml:"slow"`
		Signal int `yaml:"signal"`
	} `yaml:"macd"`
}

// Defaults fills zero fields with the conventional parameter set.
func (c *Config) Defaults() {
	if c.SMAPeriod == 0 {
		c.SMAPeriod = 20
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.KDJPeriod == 0 {
		c.KDJPeriod = 9
	}
	if c.VolumeSMAPeriod == 0 {
		c.VolumeSMAPeriod = 20
	}
	if c.MACD.Fast == 0 {
		c.MACD.Fast = 12
	}
	if c.MACD.Slow == 0 {
		c.MACD.Slow = 26
	}
	if c.MACD.Signal == 0 {
		c.MACD.Signal = 9
	}
}

// WindowSize returns the closed-candle retention the slowest indicator needs.
func (c Config) WindowSize() int {
	n := c.SMAPeriod
	if c.RSIPeriod+1 > n {
		n = c.RSIPeriod + 1
	}
	if c.KDJPeriod > n {
		n = c.KDJPeriod
	}
	if c.VolumeSMAPeriod > n {
		n = c.VolumeSMAPeriod
	}
	if c.MACD.Slow+c.MACD.Signal > n {
		n = c.MACD.Slow + c.MACD.Signal
	}
	return n
}

// Engine owns derived indicator state per (symbol, timeframe). EMA-family
// indicators carry incremental state fed one closed candle at a time;
// window-family indicators read straight off the closed-candle window.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	states map[stateKey]*state
}

type stateKey struct {
	symbol string
	tf     types.Timeframe
}

type state struct {
	macd    *ta.MACD
	kdj     *ta.KDJ
	lastTs  int64
	version uint64
}

func NewEngine(cfg Config) *Engine {
	cfg.Defaults()
	return &Engine{cfg: cfg, states: make(map[stateKey]*state)}
}

// Config returns the engine's effective parameter set.
func (e *Engine) Config() Config { return e.cfg }

// Recompute derives a snapshot from the closed-candle window, oldest first.
// Incremental indicators only consume candles newer than the last close they
// saw, so duplicate or overlapping windows cannot double-count.
func (e *Engine) Recompute(symbol string, tf types.Timeframe, window []types.Candle) *types.IndicatorSnapshot {
	if len(window) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	key := stateKey{symbol, tf}
	st := e.states[key]
	if st == nil {
		st = &state{
			macd:   ta.NewMACD(e.cfg.MACD.Fast, e.cfg.MACD.Slow, e.cfg.MACD.Signal),
			kdj:    ta.NewKDJ(e.cfg.KDJPeriod),
			lastTs: -1,
		}
		e.states[key] = st
	}

	var macd, signal, hist float64
	var k, d, j float64
	fed := false
	for _, c := range window {
		if c.StartTs <= st.lastTs {
			continue
		}
		macd, signal, hist = st.macd.Update(c.Close)
		k, d, j = st.kdj.Update(c.High, c.Low, c.Close)
		st.lastTs = c.StartTs
		fed = true
	}
	if !fed {
		// Nothing new: rebuild the values map from current state without
		// advancing the version would be misleading; bail out instead.
		return nil
	}
	st.version++

	closes := make([]float64, len(window))
	vols := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
		vols[i] = c.Volume
	}

	last := window[len(window)-1]
	return &types.IndicatorSnapshot{
		Symbol:    symbol,
		Timeframe: tf,
		AsOf:      last.StartTs,
		Version:   st.version,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		Values: map[string]float64{
			"sma":            ta.SMA(closes, e.cfg.SMAPeriod),
			"rsi":            ta.RSI(closes, e.cfg.RSIPeriod),
			"volume_sma":     ta.SMA(vols, e.cfg.VolumeSMAPeriod),
			"macd":           macd,
			"macd_signal":    signal,
			"macd_histogram": hist,
			"kdj_k":          k,
			"kdj_d":          d,
			"kdj_j":          j,
		},
	}
}
