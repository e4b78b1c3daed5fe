package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invox/internal/domain"
)

// Metrics owns the prometheus registry and every collector the service
// exports. It satisfies both the parse outcome recorder and the retry
// observer contracts.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	parseTotal    *prometheus.CounterVec
	parseDuration prometheus.Histogram

	retriesScheduled *prometheus.CounterVec
	retriesExhausted *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		parseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_parse_total",
			Help: "Invoice parse outcomes by status and source format.",
		}, []string{"status", "format"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_parse_duration_seconds",
			Help:    "End-to-end invoice parse latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
		}),
		retriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Retries scheduled against upstream operations.",
		}, []string{"operation"}),
		retriesExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_retries_exhausted_total",
			Help: "Operations that failed after exhausting all retries.",
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.parseTotal,
		m.parseDuration,
		m.retriesScheduled,
		m.retriesExhausted,
	)
	return m
}

// RecordParse counts a parse outcome and observes its latency.
func (m *Metrics) RecordParse(status string, format domain.SourceFormat, duration time.Duration) {
	m.parseTotal.WithLabelValues(status, string(format)).Inc()
	m.parseDuration.Observe(duration.Seconds())
}

// RetryScheduled implements the resilience observer contract.
func (m *Metrics) RetryScheduled(operation string, attempt int, delay time.Duration) {
	m.retriesScheduled.WithLabelValues(operation).Inc()
}

// RetriesExhausted implements the resilience observer contract.
func (m *Metrics) RetriesExhausted(operation string, attempts int) {
	m.retriesExhausted.WithLabelValues(operation).Inc()
}

// GinMiddleware records per-request counters and latency. Uses the matched
// route template so path parameters don't explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
