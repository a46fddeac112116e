package ta

import "math"

// Windowed helpers return math.NaN() until enough history exists. Callers
// must treat NaN as "not ready", never as zero.

func SMA(vals []float64, n int) float64 {
	if n <= 0 || len(vals) < n {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMA carries an incremental exponential moving average. The running value
// is seeded with the simple average of the first Period inputs, then each
// Update applies alpha = 2/(period+1).
type EMA struct {
	Period int
	alpha  float64
	seed   []float64
	value  float64
	ready  bool
}

func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{Period: period, alpha: 2.0 / (float64(period) + 1.0)}
}

// Update ingests one value and returns the current EMA, NaN while seeding.
func (e *EMA) Update(v float64) float64 {
	if !e.ready {
		e.seed = append(e.seed, v)
		if len(e.seed) < e.Period {
			return math.NaN()
		}
		sum := 0.0
		for _, s := range e.seed {
			sum += s
		}
		e.value = sum / float64(e.Period)
		e.seed = nil
		e.ready = true
		return e.value
	}
	e.value = e.alpha*v + (1.0-e.alpha)*e.value
	return e.value
}

// Value returns the current EMA, NaN while seeding.
func (e *EMA) Value() float64 {
	if !e.ready {
		return math.NaN()
	}
	return e.value
}

func (e *EMA) Reset() {
	e.seed = nil
	e.value = 0
	e.ready = false
}

// MACD carries incremental fast/slow EMAs plus the signal line. The MACD
// line is defined once the slow EMA is seeded; the signal line seeds from
// the first defined MACD value and smooths incrementally from there, so the
// histogram is defined (starting at zero) on the same close the MACD line
// first appears.
type MACD struct {
	fast, slow  *EMA
	signalAlpha float64
	signal      float64
	signalReady bool
}

func NewMACD(fast, slow, signal int) *MACD {
	if signal < 1 {
		signal = 1
	}
	return &MACD{
		fast:        NewEMA(fast),
		slow:        NewEMA(slow),
		signalAlpha: 2.0 / (float64(signal) + 1.0),
	}
}

// Update ingests one close and returns (macd, signal, histogram), all NaN
// during warm-up.
func (m *MACD) Update(close float64) (macd, signal, hist float64) {
	f := m.fast.Update(close)
	s := m.slow.Update(close)
	if math.IsNaN(f) || math.IsNaN(s) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	macd = f - s
	if !m.signalReady {
		m.signal = macd
		m.signalReady = true
	} else {
		m.signal = m.signalAlpha*macd + (1.0-m.signalAlpha)*m.signal
	}
	return macd, m.signal, macd - m.signal
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal = 0
	m.signalReady = false
}

// KDJ carries the stochastic K/D/J lines. RSV is taken over the last Period
// highs/lows/closes; K and D smooth with the conventional 2/3-1/3 weights
// from a 50 starting level, J = 3K - 2D.
type KDJ struct {
	Period      int
	highs, lows []float64
	k, d        float64
}

func NewKDJ(period int) *KDJ {
	if period < 2 {
		period = 2
	}
	return &KDJ{Period: period, k: 50.0, d: 50.0}
}

// Update ingests one candle's high/low/close and returns (k, d, j), all NaN
// until Period candles have been seen.
func (s *KDJ) Update(high, low, close float64) (k, d, j float64) {
	s.highs = append(s.highs, high)
	s.lows = append(s.lows, low)
	if len(s.highs) > s.Period {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
	if len(s.highs) < s.Period {
		return math.NaN(), math.NaN(), math.NaN()
	}
	h, l := s.highs[0], s.lows[0]
	for i := 1; i < len(s.highs); i++ {
		if s.highs[i] > h {
			h = s.highs[i]
		}
		if s.lows[i] < l {
			l = s.lows[i]
		}
	}
	rsv := 50.0
	if h > l {
		rsv = (close - l) / (h - l) * 100.0
	}
	s.k = (2.0/3.0)*s.k + (1.0/3.0)*rsv
	s.d = (2.0/3.0)*s.d + (1.0/3.0)*s.k
	return s.k, s.d, 3.0*s.k - 2.0*s.d
}

func (s *KDJ) Reset() {
	s.highs = nil
	s.lows = nil
	s.k, s.d = 50.0, 50.0
}
