package upstream

import (
	"context"
	"strconv"
	"time"

	"github.com/robostats/statproxy/internal/ports"
)

// metricsCore collects request metrics for every upstream call: latency,
// outcome counters, and response sizes, labeled by path and status.
type metricsCore struct {
	next      Core
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records upstream request
// metrics through the configured collector.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next Core) Core {
		return &metricsCore{next: next, collector: collector}
	}
}

// Do executes the fetch while recording latency and outcome metrics.
func (m *metricsCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	start := time.Now()
	body, err := m.next.Do(ctx, path, query)

	labels := map[string]string{
		"path":   path,
		"status": "success",
	}
	if err != nil {
		labels["status"] = "error"
		if ue, ok := AsError(err); ok {
			labels["status"] = ue.Kind.String()
			if ue.Kind == KindStatus {
				labels["code"] = strconv.Itoa(ue.StatusCode)
			}
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("upstream_request_duration_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("upstream_requests_total", 1, labels)
		if err == nil {
			m.collector.RecordHistogram("upstream_response_bytes", float64(len(body)), labels)
		}
	}

	return body, err
}
