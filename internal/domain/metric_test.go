package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Metric
		wantError bool
	}{
		{name: "unitless epa", input: "unitless_epa", want: MetricUnitlessEPA},
		{name: "points mean", input: "epa_points_mean", want: MetricEPAPointsMean},
		{name: "points sd", input: "epa_points_sd", want: MetricEPAPointsSD},
		{name: "world rank", input: "world_rank", want: MetricWorldRank},
		{name: "unknown name", input: "win_rate", wantError: true},
		{name: "empty name", input: "", wantError: true},
		{name: "case sensitive", input: "Unitless_EPA", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetric(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownMetric)
				assert.Contains(t, err.Error(), tt.input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetricExtract(t *testing.T) {
	record := NewRecord([]byte(`{
		"team": 1678,
		"epa": {
			"unitless": 1824.0,
			"breakdown": {"total_points": {"mean": 71.2, "sd": 11.9}},
			"ranks": {"total": {"rank": 3}}
		}
	}`))

	tests := []struct {
		metric Metric
		want   float64
	}{
		{MetricUnitlessEPA, 1824.0},
		{MetricEPAPointsMean, 71.2},
		{MetricEPAPointsSD, 11.9},
		{MetricWorldRank, 3},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			got, ok := tt.metric.Extract(record)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetricExtractMissingField(t *testing.T) {
	record := NewRecord([]byte(`{"epa": {"unitless": "not a number"}}`))

	_, ok := MetricUnitlessEPA.Extract(record)
	assert.False(t, ok, "non-numeric value must be excluded, not zero-filled")

	_, ok = MetricWorldRank.Extract(record)
	assert.False(t, ok, "absent path must be excluded")
}
