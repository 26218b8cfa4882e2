// Package domain holds the pure core of the statistics proxy: opaque upstream
// records, the closed metric set, the percentile reducer, and the error
// taxonomy shared by the aggregation and resolution subsystems.
package domain

import (
	"errors"
	"fmt"
)

// Structural errors surfaced by the aggregation and resolution subsystems.
// These are always reported as distinct conditions, never silently degraded
// into empty-success responses.
var (
	// ErrEmptyInputSet indicates that an aggregation request carried no
	// identifiers before fan-out.
	ErrEmptyInputSet = errors.New("empty identifier set")

	// ErrNoExtractableValues indicates that fan-out completed but zero
	// numeric values could be extracted, which usually means a wrong metric
	// name or time period rather than an empty result.
	ErrNoExtractableValues = errors.New("no extractable metric values")

	// ErrUnknownMetric indicates a metric name outside the closed set.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrNoMatch indicates that no candidate scored above zero against the
	// query.
	ErrNoMatch = errors.New("no matching candidate")
)

// NoMatchError reports a failed resolution together with the normalized form
// of the query actually matched against, so callers can see what the
// normalization produced, and an optional nearest-name suggestion.
type NoMatchError struct {
	// Query is the normalized query that matched nothing.
	Query string

	// Suggestion is the closest candidate name by edit distance, when one
	// exists. Purely diagnostic.
	Suggestion string
}

// Error implements the error interface.
func (e *NoMatchError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("no matching candidate for %q (closest: %q)", e.Query, e.Suggestion)
	}
	return fmt.Sprintf("no matching candidate for %q", e.Query)
}

// Unwrap makes the error match ErrNoMatch under errors.Is.
func (e *NoMatchError) Unwrap() error { return ErrNoMatch }
