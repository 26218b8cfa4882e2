package domain

import "fmt"

// Metric is the closed set of per-team statistics the aggregator can reduce.
// Each metric maps to a fixed extraction path on the upstream team-year
// document; a string arriving at the request boundary is validated through
// ParseMetric so an unrecognized name fails fast instead of silently
// extracting nothing.
type Metric string

const (
	// MetricUnitlessEPA is the normalized, year-independent EPA rating.
	MetricUnitlessEPA Metric = "unitless_epa"

	// MetricEPAPointsMean is the mean of the total-points EPA breakdown.
	MetricEPAPointsMean Metric = "epa_points_mean"

	// MetricEPAPointsSD is the standard deviation of the total-points EPA
	// breakdown.
	MetricEPAPointsSD Metric = "epa_points_sd"

	// MetricWorldRank is the team's global EPA rank.
	MetricWorldRank Metric = "world_rank"
)

// metricPaths maps each metric to the dotted path read from the upstream
// team-year document.
var metricPaths = map[Metric]string{
	MetricUnitlessEPA:   "epa.unitless",
	MetricEPAPointsMean: "epa.breakdown.total_points.mean",
	MetricEPAPointsSD:   "epa.breakdown.total_points.sd",
	MetricWorldRank:     "epa.ranks.total.rank",
}

// ParseMetric validates a caller-supplied metric name against the closed set.
// Returns ErrUnknownMetric (wrapped with the offending name) for anything
// outside it.
func ParseMetric(name string) (Metric, error) {
	m := Metric(name)
	if _, ok := metricPaths[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return m, nil
}

// Path returns the extraction path for the metric. Panics on a value that
// did not come through ParseMetric or the package constants.
func (m Metric) Path() string {
	p, ok := metricPaths[m]
	if !ok {
		panic(fmt.Sprintf("domain: unknown metric %q", string(m)))
	}
	return p
}

// Extract reads the metric's value from a record. The boolean result is
// false when the field is absent or non-numeric; such records are excluded
// from samples, never zero-filled.
func (m Metric) Extract(r Record) (float64, bool) { return r.Float(m.Path()) }

// String returns the wire name of the metric.
func (m Metric) String() string { return string(m) }

// Metrics returns the full enumerated set, in a stable order, for request
// validation messages and documentation.
func Metrics() []Metric {
	return []Metric{MetricUnitlessEPA, MetricEPAPointsMean, MetricEPAPointsSD, MetricWorldRank}
}
