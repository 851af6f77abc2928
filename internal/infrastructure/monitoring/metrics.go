package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "topaz_bridge"

// Metrics holds the bridge's Prometheus collectors. Each instance owns its
// registry so several bridges (or tests) can coexist in one process.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Upstream (SigWeb) metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration prometheus.Histogram
	UpstreamErrors   *prometheus.CounterVec

	RateLimited prometheus.Counter
	CertSource  *prometheus.GaugeVec

	registry  *prometheus.Registry
	startTime time.Time
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served by the bridge",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests forwarded to SigWeb, by upstream status",
			},
			[]string{"status"},
		),
		UpstreamDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Round-trip time of forwarded requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Forwarded requests that failed before a response arrived",
			},
			[]string{"kind"},
		),
		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-client rate limiter",
			},
		),
		CertSource: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "certificate_source",
				Help:      "Set to 1 for the source of the serving certificate",
			},
			[]string{"source"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Bridge uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstream records a forwarded request that got a response
func (m *Metrics) RecordUpstream(status int, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.UpstreamDuration.Observe(duration.Seconds())
}

// RecordUpstreamError records a forwarded request that failed in transport
func (m *Metrics) RecordUpstreamError(kind string) {
	m.UpstreamErrors.WithLabelValues(kind).Inc()
}

// IncRateLimited counts a rejected request
func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}

// SetCertSource marks where the serving certificate came from
func (m *Metrics) SetCertSource(source string) {
	m.CertSource.Reset()
	m.CertSource.WithLabelValues(source).Set(1)
}
