package okx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/types"
)

// Compile-time interface check
var _ interfaces.Feed = (*Client)(nil)

// ErrAuthRejected is returned when the exchange rejects the subscription in
// a way retrying cannot fix. The connection loop stops on it.
var ErrAuthRejected = errors.New("okx: subscription rejected by exchange")

const (
	defaultPingInterval = 25 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 5 * time.Second
	backoffBase         = time.Second
	backoffCap          = 30 * time.Second
)

// Config holds the connection parameters for the OKX public websocket.
type Config struct {
	URL          string
	PingInterval time.Duration
	// MaxRetries caps reconnection attempts; 0 means retry forever.
	MaxRetries int
}

// MessageFunc receives every data frame in delivery order, on a single
// goroutine. A slow handler applies backpressure to the socket read loop.
type MessageFunc func(ctx context.Context, raw []byte)

// Client maintains one persistent streaming connection: subscribe on
// connect, text ping keep-alives, exponential-backoff reconnect with an
// idempotent resubscribe of the full prior set.
type Client struct {
	cfg     Config
	dialer  *websocket.Dialer
	handler MessageFunc

	mu    sync.Mutex
	state types.ConnectionState

	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(cfg Config) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  types.ConnectionState{Status: types.ConnDisconnected},
	}
}

// OnMessage registers the data-frame consumer. Must be called before Connect.
func (c *Client) OnMessage(h MessageFunc) { c.handler = h }

// Connect starts the connection loop for the given subscription set and
// returns immediately. The set is deduplicated; every reconnect re-issues
// exactly this set. The loop runs until Close, context cancellation, an
// unrecoverable rejection, or retry exhaustion.
func (c *Client) Connect(ctx context.Context, subs []types.Subscription) error {
	if c.cfg.URL == "" {
		return errors.New("okx: empty endpoint URL")
	}
	if len(subs) == 0 {
		return errors.New("okx: no subscriptions")
	}
	deduped := dedupe(subs)

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.mu.Lock()
	c.state.Status = types.ConnConnecting
	c.state.Subscriptions = deduped
	c.mu.Unlock()

	go c.run(ctx, deduped)
	return nil
}

// State returns a copy of the connection state.
func (c *Client) State() types.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Subscriptions = append([]types.Subscription(nil), c.state.Subscriptions...)
	return st
}

// Close tears down the socket and stops the connection loop. Safe to call
// more than once.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *Client) run(ctx context.Context, subs []types.Subscription) {
	defer close(c.done)
	defer c.setStatus(types.ConnDisconnected, nil)

	retries := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectOnce(ctx, subs)
		if err == nil || ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrAuthRejected) {
			logger.ErrorWithErr(ctx, "Feed subscription rejected, giving up", err)
			c.setStatus(types.ConnDisconnected, err)
			return
		}

		// An attempt that reached subscribed counts as a recovery: the next
		// failure starts a fresh retry budget and backoff curve rather than
		// inheriting the count from earlier, unrelated outages.
		c.mu.Lock()
		if c.state.Status == types.ConnSubscribed {
			retries = 0
		}
		c.mu.Unlock()

		retries++
		c.mu.Lock()
		c.state.Status = types.ConnDegraded
		c.state.RetryCount = retries
		c.state.LastError = err.Error()
		c.mu.Unlock()
		metrics.Reconnects.Inc()

		if c.cfg.MaxRetries > 0 && retries >= c.cfg.MaxRetries {
			logger.Error(ctx, "Feed retries exhausted", "retries", retries, "last_error", err.Error())
			return
		}

		delay := Backoff(retries)
		logger.Warn(ctx, "Feed disconnected, reconnecting",
			"retry", retries, "delay", delay.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connectOnce dials, subscribes, and consumes until the connection breaks.
// A nil return means the context ended; any error triggers reconnection.
func (c *Client) connectOnce(ctx context.Context, subs []types.Subscription) error {
	c.setStatus(types.ConnConnecting, nil)
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(SubscribeFrame(subs)); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	logger.Info(ctx, "Feed subscribed", "url", c.cfg.URL, "subscriptions", len(subs))

	// Connection is up: further drops start a fresh backoff curve.
	c.mu.Lock()
	c.state.Status = types.ConnSubscribed
	c.state.RetryCount = 0
	c.state.LastError = ""
	c.mu.Unlock()

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(ctx, conn, pingDone)

	for {
		if ctx.Err() != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := c.consume(ctx, raw); err != nil {
			return err
		}
	}
}

// consume handles one inbound frame: keep-alive replies and event frames
// stay here, data frames go to the handler in delivery order.
func (c *Client) consume(ctx context.Context, raw []byte) error {
	if string(raw) == "pong" {
		return nil
	}
	if event := gjson.GetBytes(raw, "event").String(); event != "" {
		switch event {
		case "subscribe":
			logger.Debug(ctx, "Subscription acknowledged",
				"channel", gjson.GetBytes(raw, "arg.channel").String())
		case "error":
			code := gjson.GetBytes(raw, "code").String()
			msg := gjson.GetBytes(raw, "msg").String()
			if fatalCode(code) {
				return fmt.Errorf("%w: code=%s msg=%s", ErrAuthRejected, code, msg)
			}
			logger.Warn(ctx, "Feed error event", "code", code, "msg", msg)
		}
		return nil
	}
	if c.handler != nil {
		c.handler(ctx, raw)
	}
	return nil
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (c *Client) setStatus(s types.ConnStatus, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = s
	if err != nil {
		c.state.LastError = err.Error()
	}
}

// SubscribeFrame builds the OKX v5 subscribe op for the given set. Ticker
// subscriptions carry the SPOT instType the public tickers channel expects.
func SubscribeFrame(subs []types.Subscription) map[string]any {
	args := make([]map[string]string, 0, len(subs))
	for _, s := range subs {
		arg := map[string]string{"channel": s.Channel, "instId": s.Symbol}
		if s.Channel == "tickers" {
			arg["instType"] = "SPOT"
		}
		args = append(args, arg)
	}
	return map[string]any{"op": "subscribe", "args": args}
}

// Backoff returns the reconnect delay for the nth retry (1-based):
// exponential from one second, capped at thirty.
func Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := backoffBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// fatalCode reports whether an error event code is an authentication or
// subscription rejection that retrying cannot fix (OKX 600xx family).
func fatalCode(code string) bool {
	return strings.HasPrefix(code, "600")
}

func dedupe(subs []types.Subscription) []types.Subscription {
	seen := make(map[types.Subscription]struct{}, len(subs))
	out := make([]types.Subscription, 0, len(subs))
	for _, s := range subs {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
