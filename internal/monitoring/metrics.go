package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bridge. Each instance owns
// its own registry so tests can construct collectors freely.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Posting pipeline
	PostsTotal        *prometheus.CounterVec
	ThreadsTotal      *prometheus.CounterVec
	MediaUploadsTotal *prometheus.CounterVec

	// Session lifecycle
	AuthRecoveriesTotal *prometheus.CounterVec
	HealthChecksTotal   prometheus.Counter

	// Event stream
	WSConnections prometheus.Gauge
}

// New creates a metrics collector backed by a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skybridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skybridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		PostsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skybridge_posts_total",
				Help: "Total single post submissions by outcome",
			},
			[]string{"outcome"},
		),
		ThreadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skybridge_threads_total",
				Help: "Total thread submissions by outcome",
			},
			[]string{"outcome"},
		),
		MediaUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skybridge_media_uploads_total",
				Help: "Total media blob uploads by outcome",
			},
			[]string{"outcome"},
		),
		AuthRecoveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skybridge_auth_recoveries_total",
				Help: "Total session recovery attempts by result",
			},
			[]string{"result"},
		),
		HealthChecksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "skybridge_health_checks_total",
				Help: "Total health monitor ticks",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "skybridge_ws_connections",
				Help: "Currently connected event stream clients",
			},
		),
	}
}

// Handler returns the HTTP handler exposing this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request. Nil-safe so callers
// can run without a collector wired in (tests, embedding).
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPost records the outcome ("success", "failure", "expired") of a
// single post submission.
func (m *Metrics) RecordPost(outcome string) {
	if m == nil {
		return
	}
	m.PostsTotal.WithLabelValues(outcome).Inc()
}

// RecordThread records the outcome of a thread submission.
func (m *Metrics) RecordThread(outcome string) {
	if m == nil {
		return
	}
	m.ThreadsTotal.WithLabelValues(outcome).Inc()
}

// RecordMediaUpload records the outcome of one media blob upload.
func (m *Metrics) RecordMediaUpload(outcome string) {
	if m == nil {
		return
	}
	m.MediaUploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordRecovery records a session recovery attempt result.
func (m *Metrics) RecordRecovery(result string) {
	if m == nil {
		return
	}
	m.AuthRecoveriesTotal.WithLabelValues(result).Inc()
}

// RecordHealthCheck records one health monitor tick.
func (m *Metrics) RecordHealthCheck() {
	if m == nil {
		return
	}
	m.HealthChecksTotal.Inc()
}

// WSConnected adjusts the connected event stream client gauge.
func (m *Metrics) WSConnected(delta float64) {
	if m == nil {
		return
	}
	m.WSConnections.Add(delta)
}
