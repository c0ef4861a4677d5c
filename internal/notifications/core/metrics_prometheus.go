package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics keeps all series on its own registry so that several
// instances (one per test) never collide on registration.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	deliveries  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	subscribers prometheus.Gauge
	requests    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the bridge's collectors plus the Go runtime
// and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactalert_delivery_attempts_total",
				Help: "Notification delivery outcomes by channel.",
			},
			[]string{"channel", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "impactalert_delivery_latency_seconds",
				Help:    "Time spent in a single provider dispatch.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"channel"},
		),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "impactalert_broadcast_subscribers",
			Help: "Currently connected real-time subscribers.",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactalert_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "endpoint", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "impactalert_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}

	m.registry.MustRegister(
		m.deliveries,
		m.latency,
		m.subscribers,
		m.requests,
		m.reqLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel Channel, result MetricResult) {
	m.deliveries.WithLabelValues(string(channel), string(result)).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, channel Channel, duration time.Duration) {
	m.latency.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordSubscribers(_ context.Context, count int) {
	m.subscribers.Set(float64(count))
}

func (m *PrometheusMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, endpoint, status).Inc()
	m.reqLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
