// Package metrics provides Prometheus instrumentation for the HTTP API.
//
// All metrics use the "equicloud_" prefix. Methods handle a nil receiver
// gracefully, so a nil *HTTPMetrics acts as a no-op (zero overhead when
// metrics are disabled).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics tracks request-level Prometheus metrics.
//
// Metrics tracked:
//   - Request counts by method, path and status
//   - Request duration by method and path
//   - In-flight request count (gauge)
//   - Rate-limited request count
type HTTPMetrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts completed requests.
	// Labels: method, path, status
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks request processing time in seconds.
	// Labels: method, path
	RequestDuration *prometheus.HistogramVec

	// InFlight tracks the number of requests currently being served.
	InFlight prometheus.Gauge

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited prometheus.Counter
}

// NewHTTPMetrics creates and registers HTTP Prometheus metrics on a
// fresh registry.
func NewHTTPMetrics() *HTTPMetrics {
	reg := prometheus.NewRegistry()

	return &HTTPMetrics{
		registry: reg,
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "equicloud_http_requests_total",
				Help: "Total number of HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "equicloud_http_request_duration_seconds",
				Help: "HTTP request processing time in seconds",
				Buckets: []float64{
					0.001, // cached settings heads
					0.005,
					0.01,
					0.05,
					0.1,
					0.5, // large sync batches
					1,
					5,
				},
			},
			[]string{"method", "path"},
		),
		InFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "equicloud_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		RateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "equicloud_http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// Handler returns the Prometheus exposition handler for the metrics
// registry. Returns nil on a nil receiver.
func (m *HTTPMetrics) Handler() http.Handler {
	if m == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRateLimited records a request rejected by the rate limiter.
func (m *HTTPMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Instrument is a chi-compatible middleware recording per-request
// counters and latency. The path label uses the matched route pattern
// rather than the raw URL so wildcard keys do not explode cardinality.
func (m *HTTPMetrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
