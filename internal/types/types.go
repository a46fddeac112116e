package types

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Timeframe is a candle interval in OKX channel notation, e.g. "1m", "15m", "4H".
type Timeframe string

// Duration converts the timeframe to a wall-clock interval. Unknown suffixes
// return zero.
func (tf Timeframe) Duration() time.Duration {
	s := string(tf)
	if s == "" {
		return 0
	}
	unit := s[len(s)-1]
	var n int
	for _, r := range s[:len(s)-1] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute
	case 'H':
		return time.Duration(n) * time.Hour
	case 'D':
		return time.Duration(n) * 24 * time.Hour
	default:
		return 0
	}
}

// Channel returns the OKX candle channel name for the timeframe.
func (tf Timeframe) Channel() string { return "candle" + string(tf) }

// Tick is a raw ticker push. Ephemeral; folded into the open candle and discarded.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Ts     int64 // ms since epoch
}

// Candle is one OHLCV interval. Mutated in place while open, immutable once
// Closed is set.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	StartTs   int64 // interval start, ms since epoch
	Closed    bool
}

// IndicatorSnapshot is the derived view of one (symbol, timeframe) after a
// candle close. Values still warming up are math.NaN(), never zero.
type IndicatorSnapshot struct {
	Symbol    string
	Timeframe Timeframe
	AsOf      int64  // start ts of the closed candle the snapshot derives from
	Version   uint64 // increments once per recompute on this timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Values    map[string]float64
}

// Defined reports whether the named indicator value is present and not NaN.
func (s *IndicatorSnapshot) Defined(name string) bool {
	v, ok := s.Values[name]
	return ok && !math.IsNaN(v)
}

// Value returns the named indicator value, or NaN when absent.
func (s *IndicatorSnapshot) Value(name string) float64 {
	if v, ok := s.Values[name]; ok {
		return v
	}
	return math.NaN()
}

// StrategyContext is the union of latest snapshots across the timeframes a
// strategy subscribes to, assembled per evaluation and not retained.
type StrategyContext struct {
	Symbol    string
	Trigger   Timeframe
	Snapshots map[Timeframe]*IndicatorSnapshot
	History   []*IndicatorSnapshot // trigger-timeframe snapshots, oldest first
}

// Latest returns the snapshot for a timeframe, or nil.
func (c *StrategyContext) Latest(tf Timeframe) *IndicatorSnapshot {
	if c == nil || c.Snapshots == nil {
		return nil
	}
	return c.Snapshots[tf]
}

// Action is the terminal decision vocabulary shared by strategies and the
// decision collaborator.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionClose Action = "close"
	ActionHold  Action = "hold"
	// ActionStop halts further dispatch until explicitly cleared. Only the
	// decision collaborator emits it.
	ActionStop Action = "stop"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLong, ActionShort, ActionClose, ActionHold, ActionStop:
		return true
	}
	return false
}

// Signal is the strategy dispatcher's output.
type Signal struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Ts         int64   `json:"ts"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// NewSignal stamps a signal with a fresh ID.
func NewSignal(symbol string, tf Timeframe, ts int64, action Action, confidence float64, reason string) Signal {
	return Signal{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Timeframe:  string(tf),
		Ts:         ts,
		Action:     action,
		Confidence: confidence,
		Reason:     reason,
	}
}

// ConnStatus enumerates feed connection states.
type ConnStatus string

const (
	ConnDisconnected ConnStatus = "disconnected"
	ConnConnecting   ConnStatus = "connecting"
	ConnSubscribed   ConnStatus = "subscribed"
	ConnDegraded     ConnStatus = "degraded"
)

// Subscription identifies one (channel, symbol) pair on the feed.
type Subscription struct {
	Channel string
	Symbol  string
}

// ConnectionState is owned by the feed connection; callers get copies.
type ConnectionState struct {
	Status        ConnStatus
	Subscriptions []Subscription
	RetryCount    int
	LastError     string
}
