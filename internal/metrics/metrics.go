// Package metrics exposes the process's Prometheus metrics (component C11).
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, gauge and histogram the server publishes.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsCompletedTotal *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	JobsInFlight       prometheus.Gauge
	StaleReservations  prometheus.Counter

	PushHubConnections prometheus.Gauge
	PushHubFramesSent  *prometheus.CounterVec
	EventBusDropped    prometheus.Counter

	CacheOperationsTotal *prometheus.CounterVec
	CacheLatency         *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New constructs a Metrics instance registered against a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "openkaraoke",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestsActive: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "openkaraoke",
				Subsystem: "http",
				Name:      "requests_active",
				Help:      "Current number of active HTTP requests",
			},
		),

		JobsEnqueuedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "jobs",
				Name:      "enqueued_total",
				Help:      "Total number of jobs enqueued, by kind",
			},
			[]string{"kind"},
		),

		JobsCompletedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "jobs",
				Name:      "completed_total",
				Help:      "Total number of jobs reaching a terminal state, by kind and outcome",
			},
			[]string{"kind", "status"},
		),

		JobDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "openkaraoke",
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Job wall-clock duration from reservation to terminal state",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"kind", "status"},
		),

		JobsInFlight: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "openkaraoke",
				Subsystem: "jobs",
				Name:      "in_flight",
				Help:      "Current number of jobs being processed by a worker",
			},
		),

		StaleReservations: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "jobs",
				Name:      "stale_reservations_requeued_total",
				Help:      "Total number of reservations reopened by the supervisor after a worker crash",
			},
		),

		PushHubConnections: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "openkaraoke",
				Subsystem: "pushhub",
				Name:      "connections_active",
				Help:      "Current number of open websocket sessions",
			},
		),

		PushHubFramesSent: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "pushhub",
				Name:      "frames_sent_total",
				Help:      "Total number of frames written to websocket sessions, by frame type",
			},
			[]string{"type"},
		),

		EventBusDropped: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "eventbus",
				Name:      "events_dropped_total",
				Help:      "Total number of events dropped due to a full subscriber buffer",
			},
		),

		CacheOperationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openkaraoke",
				Subsystem: "cache",
				Name:      "operations_total",
				Help:      "Total number of cache operations, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		CacheLatency: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "openkaraoke",
				Subsystem: "cache",
				Name:      "latency_seconds",
				Help:      "Cache operation latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 10),
			},
			[]string{"operation"},
		),
	}
}

// Middleware instruments every HTTP request handled by the gin engine.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint, status).Observe(duration)
	}
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return gin.WrapH(h)
}
