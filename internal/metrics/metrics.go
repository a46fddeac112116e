package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_messages_routed_total", Help: "Feed frames routed, by channel"},
		[]string{"channel"},
	)
	ParseDrops = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "feed_parse_drops_total", Help: "Malformed or unroutable frames dropped"},
	)
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Feed reconnection attempts"},
	)
	DuplicateCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "candle_duplicate_closes_total", Help: "Duplicate candle close events dropped"},
		[]string{"symbol", "timeframe"},
	)
	TicksDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pipeline_ticks_dropped_total", Help: "Ticker updates skipped while a dispatch was in flight"},
	)
	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strategy_signals_total", Help: "Signals emitted, by action"},
		[]string{"action"},
	)
	DispatchSkips = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pipeline_dispatch_skips_total", Help: "Signals skipped because a dispatch was already in flight"},
	)
)

func init() {
	prometheus.MustRegister(MessagesRouted, ParseDrops, Reconnects, DuplicateCloses, TicksDropped, SignalsEmitted, DispatchSkips)
}

// Serve exposes /metrics on addr in the background. The caller owns shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
