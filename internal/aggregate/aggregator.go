// Package aggregate implements the bounded fan-out aggregator: it gathers
// one upstream record per team identifier under a concurrency cap and
// reduces the extracted metric values into interpolated percentiles.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/ports"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// maxConcurrency is the hard ceiling on per-batch concurrency, regardless of
// caller overrides.
const maxConcurrency = 50

// Config defines the aggregator's operational bounds. All fields are
// validated at construction.
type Config struct {
	// Concurrency is the default number of concurrent upstream fetches per
	// batch. This bounds simultaneous outbound connections, not CPU work.
	Concurrency int `koanf:"concurrency" yaml:"concurrency" validate:"min=1,max=50"`

	// IdentifierCap is the maximum number of identifiers fanned out per
	// batch. Excess identifiers are silently dropped, not an error, to keep
	// requests upstream-friendly.
	IdentifierCap int `koanf:"identifier_cap" yaml:"identifier_cap" validate:"min=1"`

	// ErrorSample bounds how many per-identifier failures are surfaced in a
	// result. The full list is never returned, only counted.
	ErrorSample int `koanf:"error_sample" yaml:"error_sample" validate:"min=1"`

	// DefaultRanks are the percentile ranks used when a request carries
	// none.
	DefaultRanks []float64 `koanf:"default_ranks" yaml:"default_ranks" validate:"min=1,dive,min=0,max=100"`
}

// DefaultConfig returns production defaults: 10 concurrent fetches, a 300
// identifier cap, the first 5 failures surfaced, and a standard rank spread.
func DefaultConfig() Config {
	return Config{
		Concurrency:   10,
		IdentifierCap: 300,
		ErrorSample:   5,
		DefaultRanks:  []float64{5, 25, 50, 75, 95},
	}
}

// Request describes one aggregation batch.
type Request struct {
	// Teams are the team identifiers to fetch. Entries beyond the
	// identifier cap are dropped silently.
	Teams []int

	// Year selects the season whose team records are reduced.
	Year int

	// Metric selects which field is extracted from each record. Must come
	// from domain.ParseMetric.
	Metric domain.Metric

	// Ranks are the requested percentile ranks. Empty means the configured
	// defaults. Duplicates are tolerated and collapse onto the same key.
	Ranks []float64

	// Concurrency overrides the configured default when positive. It is
	// clamped to the configured maximum bound.
	Concurrency int
}

// Failure records a single per-identifier fetch failure. Failures never
// abort a batch; they are accumulated and a bounded sample is surfaced for
// diagnostics.
type Failure struct {
	// Team is the identifier whose fetch failed.
	Team int

	// Err is the underlying fetch error.
	Err error

	// Message is the error text, kept separately so adapters can surface
	// failures without re-deriving it.
	Message string
}

// Result is the outcome of a completed batch.
type Result struct {
	// Count is the number of values successfully extracted into the sample.
	Count int

	// Percentiles maps each requested rank to its interpolated value.
	Percentiles map[float64]float64

	// Failures is a bounded sample of per-identifier failures, in whatever
	// order workers happened to fail.
	Failures []Failure

	// FailureCount is the total number of failed fetches, which may exceed
	// len(Failures).
	FailureCount int
}

// Aggregator fans out upstream fetches under a concurrency cap and reduces
// the extracted values. It is stateless across batches and safe for
// concurrent use.
type Aggregator struct {
	fetcher   ports.Fetcher
	config    Config
	collector ports.MetricsCollector
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option customizes aggregator construction.
type Option func(*Aggregator)

// WithMetrics attaches a metrics collector.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(a *Aggregator) { a.collector = collector }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates an Aggregator over the given fetcher. Returns an error when
// the fetcher is nil or the configuration fails validation.
func New(fetcher ports.Fetcher, config Config, opts ...Option) (*Aggregator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("aggregate: fetcher must not be nil")
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("aggregate configuration validation failed: %w", err)
	}

	a := &Aggregator{
		fetcher: fetcher,
		config:  config,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Aggregate runs one batch: fetch a record per team, extract the metric,
// and reduce the sample into the requested percentiles.
//
// Per-identifier failures are captured individually and never abort the
// batch. The batch itself fails only structurally: ErrEmptyInputSet when no
// identifiers were supplied, or ErrNoExtractableValues when fan-out finished
// with zero numeric values in the sample.
//
// The result is invariant to the concurrency level and to fetch completion
// order: only the set of collected values matters, and the percentile
// reduction sorts internally.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(
			attribute.String("aggregate.metric", req.Metric.String()),
			attribute.Int("aggregate.year", req.Year),
			attribute.Int("aggregate.teams", len(req.Teams)),
		),
	)
	defer span.End()

	if len(req.Teams) == 0 {
		span.RecordError(domain.ErrEmptyInputSet)
		return Result{}, domain.ErrEmptyInputSet
	}
	if _, err := domain.ParseMetric(req.Metric.String()); err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	ranks := req.Ranks
	if len(ranks) == 0 {
		ranks = a.config.DefaultRanks
	}
	for _, rank := range ranks {
		if rank < 0 || rank > 100 {
			err := fmt.Errorf("percentile rank %v out of range [0,100]", rank)
			span.RecordError(err)
			return Result{}, err
		}
	}

	teams := req.Teams
	if len(teams) > a.config.IdentifierCap {
		// Silently dropped per contract; the cap keeps batches
		// upstream-friendly.
		teams = teams[:a.config.IdentifierCap]
	}

	concurrency := a.config.Concurrency
	if req.Concurrency > 0 {
		concurrency = req.Concurrency
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	var (
		mu           sync.Mutex
		values       []float64
		failures     []Failure
		failureCount int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, team := range teams {
		g.Go(func() error {
			path := fmt.Sprintf("/team_year/%d/%d", team, req.Year)
			record, err := a.fetcher.FetchRecord(gctx, path, nil)
			if err != nil {
				mu.Lock()
				failureCount++
				if len(failures) < a.config.ErrorSample {
					failures = append(failures, Failure{Team: team, Err: err, Message: err.Error()})
				}
				mu.Unlock()
				// A failed fetch is recorded, not propagated: returning the
				// error would cancel the rest of the batch.
				return nil
			}

			value, ok := req.Metric.Extract(record)
			if !ok {
				// Missing or non-numeric fields are excluded from the
				// sample. They are not failures and not zeros.
				return nil
			}

			mu.Lock()
			values = append(values, value)
			mu.Unlock()
			return nil
		})
	}

	// Workers always return nil; Wait only synchronizes completion.
	_ = g.Wait()

	elapsed := time.Since(start)
	a.recordBatchMetrics(req.Metric, len(teams), len(values), failureCount, elapsed)

	span.SetAttributes(
		attribute.Int("aggregate.extracted", len(values)),
		attribute.Int("aggregate.failures", failureCount),
		attribute.Int64("aggregate.duration_ms", elapsed.Milliseconds()),
	)

	if len(values) == 0 {
		err := fmt.Errorf("%w: metric %s over %d identifiers", domain.ErrNoExtractableValues, req.Metric, len(teams))
		span.RecordError(err)
		return Result{Failures: failures, FailureCount: failureCount}, err
	}

	a.logger.Debug("aggregation batch complete",
		zap.String("metric", req.Metric.String()),
		zap.Int("teams", len(teams)),
		zap.Int("extracted", len(values)),
		zap.Int("failures", failureCount),
		zap.Duration("elapsed", elapsed),
	)

	return Result{
		Count:        len(values),
		Percentiles:  domain.Percentiles(values, ranks),
		Failures:     failures,
		FailureCount: failureCount,
	}, nil
}

func (a *Aggregator) recordBatchMetrics(metric domain.Metric, teams, extracted, failed int, elapsed time.Duration) {
	if a.collector == nil {
		return
	}
	labels := map[string]string{"metric": metric.String()}
	a.collector.RecordHistogram("aggregate_batch_duration_seconds", elapsed.Seconds(), labels)
	a.collector.RecordHistogram("aggregate_sample_size", float64(extracted), labels)
	a.collector.RecordCounter("aggregate_batches_total", 1, labels)
	a.collector.RecordCounter("aggregate_fetch_failures_total", float64(failed), labels)
	a.collector.RecordGauge("aggregate_last_batch_teams", float64(teams), labels)
}
