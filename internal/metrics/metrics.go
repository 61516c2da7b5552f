// Package metrics provides Prometheus instrumentation for the simulation
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PathsExecuted counts simulation paths executed across all runs.
	PathsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simengine_simulation_paths_total",
		Help: "Total number of simulation paths executed",
	})

	// ReportsGenerated counts reports, partitioned by kind (single|comparative).
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simengine_reports_total",
		Help: "Total number of simulation reports generated",
	}, []string{"kind"})

	// ReportDuration tracks wall-clock time per report by kind.
	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simengine_report_duration_seconds",
		Help:    "Simulation report generation time in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// TradesIngested counts ingested historical trades.
	TradesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simengine_trades_ingested_total",
		Help: "Total historical trades ingested",
	})

	// TrackedAgents tracks the number of agents with any recorded history.
	TrackedAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simengine_tracked_agents",
		Help: "Number of agents with recorded trade history",
	})

	// GuardRejections counts requests rejected by the run limiter.
	GuardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simengine_guard_rejections_total",
		Help: "Simulation requests rejected by the run limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
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
