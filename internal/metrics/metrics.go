// Package metrics provides Prometheus instrumentation for the paper-trading
// engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts simulation ticks applied.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_ticks_total",
		Help: "Total number of price ticks applied",
	})

	// OrdersTotal counts filled orders, partitioned by side and order type.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_orders_total",
		Help: "Total number of orders filled",
	}, []string{"side", "type"})

	// OrderRejections counts rejected orders by reason.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_order_rejections_total",
		Help: "Orders rejected by validation",
	}, []string{"reason"})

	// OrderLatency tracks order execution latency.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_order_latency_seconds",
		Help:    "Order execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// ShareVolume tracks cumulative filled quantity per symbol.
	ShareVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_share_volume_total",
		Help: "Cumulative filled quantity in shares",
	}, []string{"symbol", "side"})

	// ActiveEvents tracks news events currently affecting prices.
	ActiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_active_events",
		Help: "Number of currently active market events",
	})

	// EventsSpawned counts generated events by scope kind.
	EventsSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_events_spawned_total",
		Help: "Market events generated",
	}, []string{"scope"})

	// Sentiment is the current market-wide sentiment in [-1, 1].
	Sentiment = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_sentiment",
		Help: "Current market sentiment",
	})

	// Equity is the latest recorded portfolio value.
	Equity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_equity",
		Help: "Latest portfolio equity",
	})

	// MissionLevel is the current progression level.
	MissionLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_mission_level",
		Help: "Current mission level",
	})

	// SnapshotSaves counts persistence attempts by outcome.
	SnapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_snapshot_saves_total",
		Help: "Session snapshot save attempts",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// WebSocketDropped counts messages dropped for slow clients.
	WebSocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_websocket_dropped_total",
		Help: "Broadcast messages dropped because a buffer was full",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern returns the matched chi pattern (e.g. /api/v1/market/{symbol})
// so per-symbol paths share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
