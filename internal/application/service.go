package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/robostats/statproxy/internal/aggregate"
	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/ports"
	"github.com/robostats/statproxy/internal/resolve"
)

// Service is the caller-facing facade over the core subsystems. The HTTP
// adapter talks only to this type; it owns no state beyond its immutable
// collaborators and is safe for concurrent use.
type Service struct {
	fetcher    ports.Fetcher
	aggregator *aggregate.Aggregator
	resolver   *resolve.Resolver
	collector  ports.MetricsCollector
	logger     *zap.Logger
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithServiceLogger attaches a structured logger.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceMetrics attaches a metrics collector.
func WithServiceMetrics(collector ports.MetricsCollector) ServiceOption {
	return func(s *Service) { s.collector = collector }
}

// NewService creates the facade. All three collaborators are required.
func NewService(fetcher ports.Fetcher, aggregator *aggregate.Aggregator, resolver *resolve.Resolver, opts ...ServiceOption) (*Service, error) {
	if fetcher == nil || aggregator == nil || resolver == nil {
		return nil, fmt.Errorf("application: fetcher, aggregator, and resolver are all required")
	}

	s := &Service{
		fetcher:    fetcher,
		aggregator: aggregator,
		resolver:   resolver,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BenchmarkRequest is the aggregation entrypoint's input.
type BenchmarkRequest struct {
	// Teams are the team numbers to benchmark.
	Teams []int `json:"teams"`

	// Year selects the season.
	Year int `json:"year" validate:"required,min=1992,max=2100"`

	// Metric names one of the closed metric set.
	Metric string `json:"metric" validate:"required"`

	// Percentiles are the requested ranks; empty means the configured
	// defaults.
	Percentiles []float64 `json:"percentiles" validate:"omitempty,dive,min=0,max=100"`

	// Concurrency optionally overrides the default fan-out width.
	Concurrency int `json:"concurrency" validate:"omitempty,min=1,max=50"`
}

// Benchmark validates the request at the boundary and runs one aggregation
// batch. Metric names outside the closed set fail fast with
// domain.ErrUnknownMetric before any fan-out happens.
func (s *Service) Benchmark(ctx context.Context, req BenchmarkRequest) (aggregate.Result, error) {
	if err := validate.Struct(req); err != nil {
		return aggregate.Result{}, fmt.Errorf("benchmark request validation failed: %w", err)
	}

	metric, err := domain.ParseMetric(req.Metric)
	if err != nil {
		return aggregate.Result{}, err
	}

	return s.aggregator.Aggregate(ctx, aggregate.Request{
		Teams:       req.Teams,
		Year:        req.Year,
		Metric:      metric,
		Ranks:       req.Percentiles,
		Concurrency: req.Concurrency,
	})
}

// ResolveEventRequest is the resolver entrypoint's input.
type ResolveEventRequest struct {
	// Query is the free-text event query.
	Query string `json:"query" validate:"required"`

	// Year selects which season's events are candidates.
	Year int `json:"year" validate:"required,min=1992,max=2100"`

	// District and State are optional weak region hints.
	District string `json:"district"`
	State    string `json:"state"`
}

// ResolveEvent fetches the season's event list upstream and resolves the
// query against it. A NoMatch outcome surfaces as domain.ErrNoMatch with
// the ranked candidates still populated in the returned Match.
func (s *Service) ResolveEvent(ctx context.Context, req ResolveEventRequest) (resolve.Match, error) {
	if err := validate.Struct(req); err != nil {
		return resolve.Match{}, fmt.Errorf("resolve request validation failed: %w", err)
	}

	records, err := s.fetcher.FetchList(ctx, "/events", ports.Query{"year": strconv.Itoa(req.Year)})
	if err != nil {
		s.countResolve("upstream_error")
		return resolve.Match{}, err
	}

	candidates := make([]resolve.Candidate, 0, len(records))
	for _, record := range records {
		name, ok := record.String("name")
		if !ok {
			continue
		}
		candidate := resolve.Candidate{Name: name}
		candidate.Key, _ = record.String("key")
		candidate.District, _ = record.String("district")
		candidate.State, _ = record.String("state")
		candidates = append(candidates, candidate)
	}

	match, err := s.resolver.Resolve(ctx, req.Query, candidates, resolve.Hints{
		District: req.District,
		State:    req.State,
	})
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		s.countResolve("no_match")
	case err != nil:
		s.countResolve("error")
	default:
		s.countResolve("matched")
	}
	return match, err
}

// Team fetches a single team record for pass-through.
func (s *Service) Team(ctx context.Context, team int) (domain.Record, error) {
	return s.fetcher.FetchRecord(ctx, fmt.Sprintf("/team/%d", team), nil)
}

// Event fetches a single event record for pass-through.
func (s *Service) Event(ctx context.Context, key string) (domain.Record, error) {
	return s.fetcher.FetchRecord(ctx, "/event/"+url.PathEscape(key), nil)
}

func (s *Service) countResolve(outcome string) {
	if s.collector == nil {
		return
	}
	s.collector.RecordCounter("resolve_requests_total", 1, map[string]string{"outcome": outcome})
}
