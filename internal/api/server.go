// Package api declares the HTTP surface of the proxy. The layer stays thin:
// it validates input, maps the error taxonomy onto status codes, and
// delegates everything else to the application service.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robostats/statproxy/internal/aggregate"
	"github.com/robostats/statproxy/internal/application"
	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/resolve"
)

// Service is the application surface the handlers depend on. Using an
// interface keeps the handler layer loosely coupled to the application
// package and lets tests substitute a stub.
type Service interface {
	Benchmark(ctx context.Context, req application.BenchmarkRequest) (aggregate.Result, error)
	ResolveEvent(ctx context.Context, req application.ResolveEventRequest) (resolve.Match, error)
	Team(ctx context.Context, team int) (domain.Record, error)
	Event(ctx context.Context, key string) (domain.Record, error)
}

// Server wires HTTP routes for the proxy API.
type Server struct {
	service Service
	logger  *zap.Logger
}

// NewServer creates an API server over the given service.
func NewServer(service Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, logger: logger}
}

// Register attaches all routes to mux. Literal paths take precedence over
// wildcards, so /v1/events/resolve never collides with /v1/events/{key}.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /healthz", s.instrumented("healthz", s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /v1/benchmark", s.instrumented("benchmark", s.handleBenchmark))
	mux.Handle("GET /v1/events/resolve", s.instrumented("resolve", s.handleResolve))
	mux.Handle("GET /v1/events/{key}", s.instrumented("event", s.handleEvent))
	mux.Handle("GET /v1/teams/{team}", s.instrumented("team", s.handleTeam))
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// instrumented applies the standard middleware chain to a handler.
func (s *Server) instrumented(name string, h http.HandlerFunc) http.Handler {
	return RequestIDMiddleware(LoggingMiddleware(s.logger, MetricsMiddleware(name, h)))
}
