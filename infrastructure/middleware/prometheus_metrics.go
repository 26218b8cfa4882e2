// Package middleware provides cross-cutting adapters for the statistics
// proxy, currently the Prometheus implementation of the metrics port.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robostats/statproxy/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes the upstream client, aggregation, and resolution
// metrics through the default registry for /metrics scraping.
type PrometheusMetrics struct {
	upstreamLatency       *prometheus.HistogramVec
	upstreamRequests      *prometheus.CounterVec
	upstreamResponseBytes *prometheus.HistogramVec

	aggregateDuration   *prometheus.HistogramVec
	aggregateSampleSize *prometheus.HistogramVec
	aggregateBatches    *prometheus.CounterVec
	aggregateFailures   *prometheus.CounterVec
	aggregateBatchTeams *prometheus.GaugeVec

	resolveRequests *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		upstreamLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Latency of individual upstream fetches.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "status"},
		),
		upstreamRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total upstream fetches by path and outcome.",
			},
			[]string{"path", "status"},
		),
		upstreamResponseBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_response_bytes",
				Help:    "Size distribution of successful upstream response bodies.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"path"},
		),
		aggregateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregate_batch_duration_seconds",
				Help:    "Wall-clock duration of aggregation batches.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
		aggregateSampleSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregate_sample_size",
				Help:    "Number of values extracted per aggregation batch.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"metric"},
		),
		aggregateBatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregate_batches_total",
				Help: "Total aggregation batches by metric.",
			},
			[]string{"metric"},
		),
		aggregateFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregate_fetch_failures_total",
				Help: "Total per-identifier fetch failures inside batches.",
			},
			[]string{"metric"},
		),
		aggregateBatchTeams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aggregate_last_batch_teams",
				Help: "Identifier count of the most recent batch.",
			},
			[]string{"metric"},
		),
		resolveRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolve_requests_total",
				Help: "Total event resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		operationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statproxy_operation_duration_seconds",
				Help:    "Latency of named internal operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// operation latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by dispatching on
// the metric name. Unknown names are dropped rather than exploding label
// cardinality.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "upstream_requests_total":
		pm.upstreamRequests.WithLabelValues(labelOr(labels, "path"), labelOr(labels, "status")).Add(value)
	case "aggregate_batches_total":
		pm.aggregateBatches.WithLabelValues(labelOr(labels, "metric")).Add(value)
	case "aggregate_fetch_failures_total":
		pm.aggregateFailures.WithLabelValues(labelOr(labels, "metric")).Add(value)
	case "resolve_requests_total":
		pm.resolveRequests.WithLabelValues(labelOr(labels, "outcome")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	if metric == "aggregate_last_batch_teams" {
		pm.aggregateBatchTeams.WithLabelValues(labelOr(labels, "metric")).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "upstream_request_duration_seconds":
		pm.upstreamLatency.WithLabelValues(labelOr(labels, "path"), labelOr(labels, "status")).Observe(value)
	case "upstream_response_bytes":
		pm.upstreamResponseBytes.WithLabelValues(labelOr(labels, "path")).Observe(value)
	case "aggregate_batch_duration_seconds":
		pm.aggregateDuration.WithLabelValues(labelOr(labels, "metric")).Observe(value)
	case "aggregate_sample_size":
		pm.aggregateSampleSize.WithLabelValues(labelOr(labels, "metric")).Observe(value)
	}
}

func labelOr(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
