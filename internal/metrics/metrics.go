// Package metrics exposes Prometheus collectors for channel syncs, outbound
// channel requests and the admin API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chansync"

// Metrics owns its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	syncsTotal    *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	syncsInFlight *prometheus.GaugeVec

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		syncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "runs_total",
				Help:      "Channel sync runs by channel type, sync type and outcome.",
			},
			[]string{"channel_type", "sync_type", "success"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "run_duration_seconds",
				Help:      "Duration of one channel sync run.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"channel_type", "sync_type"},
		),
		syncsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "in_flight",
				Help:      "Channel syncs currently running.",
			},
			[]string{"channel_type"},
		),

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "attempts_total",
				Help:      "Outbound channel request attempts by client and status code (0 for network errors).",
			},
			[]string{"client", "code"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of one outbound request attempt.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"client"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "retries_total",
				Help:      "Outbound request retries by client.",
			},
			[]string{"client"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Admin API requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of admin API requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),
	}

	m.Registry.MustRegister(
		m.syncsTotal,
		m.syncDuration,
		m.syncsInFlight,
		m.attemptsTotal,
		m.attemptDuration,
		m.retriesTotal,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveSync implements service.SyncObserver.
func (m *Metrics) ObserveSync(channelType string, t syncresult.Type, success bool, elapsed time.Duration) {
	m.syncsTotal.WithLabelValues(channelType, string(t), strconv.FormatBool(success)).Inc()
	m.syncDuration.WithLabelValues(channelType, string(t)).Observe(elapsed.Seconds())
}

func (m *Metrics) SyncStarted(channelType string) { m.syncsInFlight.WithLabelValues(channelType).Inc() }
func (m *Metrics) SyncFinished(channelType string) {
	m.syncsInFlight.WithLabelValues(channelType).Dec()
}

// ObserveAttempt implements transport.Observer.
func (m *Metrics) ObserveAttempt(client string, statusCode int, _ error, elapsed time.Duration) {
	m.attemptsTotal.WithLabelValues(client, strconv.Itoa(statusCode)).Inc()
	m.attemptDuration.WithLabelValues(client).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRetry(client string) { m.retriesTotal.WithLabelValues(client).Inc() }

// GinMiddleware records request counts and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
