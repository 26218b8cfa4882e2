package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/robostats/statproxy/infrastructure/upstream"
	"github.com/robostats/statproxy/internal/aggregate"
	"github.com/robostats/statproxy/internal/application"
	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/resolve"
)

// stubService is a programmable Service double.
type stubService struct {
	benchmark func(ctx context.Context, req application.BenchmarkRequest) (aggregate.Result, error)
	resolve   func(ctx context.Context, req application.ResolveEventRequest) (resolve.Match, error)
	team      func(ctx context.Context, team int) (domain.Record, error)
	event     func(ctx context.Context, key string) (domain.Record, error)
}

func (s *stubService) Benchmark(ctx context.Context, req application.BenchmarkRequest) (aggregate.Result, error) {
	return s.benchmark(ctx, req)
}

func (s *stubService) ResolveEvent(ctx context.Context, req application.ResolveEventRequest) (resolve.Match, error) {
	return s.resolve(ctx, req)
}

func (s *stubService) Team(ctx context.Context, team int) (domain.Record, error) {
	return s.team(ctx, team)
}

func (s *stubService) Event(ctx context.Context, key string) (domain.Record, error) {
	return s.event(ctx, key)
}

func serve(t *testing.T, svc Service, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewServer(svc, nil).Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").Str)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestBenchmarkHandler(t *testing.T) {
	svc := &stubService{
		benchmark: func(_ context.Context, req application.BenchmarkRequest) (aggregate.Result, error) {
			assert.Equal(t, []int{254, 1678}, req.Teams)
			assert.Equal(t, 2024, req.Year)
			assert.Equal(t, "unitless_epa", req.Metric)
			return aggregate.Result{
				Count:        2,
				Percentiles:  map[float64]float64{50: 1700.5, 99.9: 1881},
				Failures:     []aggregate.Failure{{Team: 999, Message: "boom"}},
				FailureCount: 3,
			}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/benchmark",
		`{"teams":[254,1678],"year":2024,"metric":"unitless_epa"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())
	assert.InDelta(t, 1700.5, gjson.Get(body, "percentiles.50").Float(), 1e-9)
	assert.InDelta(t, 1881.0, gjson.Get(body, `percentiles.99\.9`).Float(), 1e-9)
	assert.Equal(t, int64(3), gjson.Get(body, "failure_count").Int())
	assert.Equal(t, int64(999), gjson.Get(body, "failures.0.team").Int())
	assert.Equal(t, "boom", gjson.Get(body, "failures.0.error").Str)
}

func TestBenchmarkHandlerMalformedBody(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodPost, "/v1/benchmark", `{"teams": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", gjson.Get(rec.Body.String(), "error.code").Str)
}

func TestBenchmarkHandlerUnknownField(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodPost, "/v1/benchmark",
		`{"teams":[1],"year":2024,"metric":"unitless_epa","surprise":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBenchmarkHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown metric",
			err:        domain.ErrUnknownMetric,
			wantStatus: http.StatusBadRequest,
			wantCode:   "unknown_metric",
		},
		{
			name:       "empty input set",
			err:        domain.ErrEmptyInputSet,
			wantStatus: http.StatusBadRequest,
			wantCode:   "empty_input_set",
		},
		{
			name:       "no extractable values",
			err:        domain.ErrNoExtractableValues,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "no_extractable_values",
		},
		{
			name:       "upstream timeout",
			err:        &upstream.Error{Kind: upstream.KindTimeout, Path: "/team_year/1/2024"},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "upstream_timeout",
		},
		{
			name:       "upstream transport failure",
			err:        &upstream.Error{Kind: upstream.KindTransport, Path: "/team_year/1/2024"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_unreachable",
		},
		{
			name:       "unclassified error",
			err:        errors.New("wat"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				benchmark: func(_ context.Context, _ application.BenchmarkRequest) (aggregate.Result, error) {
					return aggregate.Result{}, tt.err
				},
			}
			rec := serve(t, svc, http.MethodPost, "/v1/benchmark",
				`{"teams":[1],"year":2024,"metric":"unitless_epa"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, gjson.Get(rec.Body.String(), "error.code").Str)
		})
	}
}

func TestBenchmarkHandlerUpstreamStatusDetails(t *testing.T) {
	svc := &stubService{
		benchmark: func(_ context.Context, _ application.BenchmarkRequest) (aggregate.Result, error) {
			return aggregate.Result{}, &upstream.Error{
				Kind:       upstream.KindStatus,
				Path:       "/team_year/1/2024",
				StatusCode: http.StatusServiceUnavailable,
				Body:       `{"detail":"maintenance"}`,
			}
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/benchmark",
		`{"teams":[1],"year":2024,"metric":"unitless_epa"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, "upstream_status", gjson.Get(body, "error.code").Str)
	assert.Equal(t, int64(503), gjson.Get(body, "error.details.upstream_status").Int())
	assert.Contains(t, gjson.Get(body, "error.details.upstream_body").Str, "maintenance")
}

func TestResolveHandler(t *testing.T) {
	svc := &stubService{
		resolve: func(_ context.Context, req application.ResolveEventRequest) (resolve.Match, error) {
			assert.Equal(t, "glp", req.Query)
			assert.Equal(t, 2024, req.Year)
			assert.Equal(t, "WA", req.State)
			best := resolve.ScoredCandidate{
				Candidate: resolve.Candidate{Key: "2024wasno", Name: "Glacier Peak"},
				Score:     252,
				TokenHits: 2,
			}
			return resolve.Match{
				Query:      "glp",
				Best:       best,
				Candidates: []resolve.ScoredCandidate{best},
			}, nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/events/resolve?q=glp&year=2024&state=WA", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, "2024wasno", gjson.Get(body, "best.candidate.key").Str)
	assert.Equal(t, int64(252), gjson.Get(body, "best.score").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "candidates.#").Int())
}

func TestResolveHandlerNoMatch(t *testing.T) {
	svc := &stubService{
		resolve: func(_ context.Context, _ application.ResolveEventRequest) (resolve.Match, error) {
			match := resolve.Match{
				Query: "zzz",
				Candidates: []resolve.ScoredCandidate{
					{Candidate: resolve.Candidate{Key: "2024wasno", Name: "Glacier Peak"}},
				},
			}
			return match, &domain.NoMatchError{Query: "zzz", Suggestion: "Glacier Peak"}
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/events/resolve?q=zzz&year=2024", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, "no_match", gjson.Get(body, "error.code").Str)
	assert.Equal(t, int64(1), gjson.Get(body, "candidates.#").Int(),
		"candidates must be returned alongside the error")
}

func TestResolveHandlerBadYear(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/v1/events/resolve?q=glp&year=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamHandlerPassThrough(t *testing.T) {
	raw := `{"team":254,"name":"The Cheesy Poofs","rookie_year":1999}`
	svc := &stubService{
		team: func(_ context.Context, team int) (domain.Record, error) {
			assert.Equal(t, 254, team)
			return domain.NewRecord([]byte(raw)), nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/teams/254", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, raw, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestTeamHandlerBadNumber(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/v1/teams/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventHandlerPassThrough(t *testing.T) {
	raw := `{"key":"2024wasno","name":"Glacier Peak"}`
	svc := &stubService{
		event: func(_ context.Context, key string) (domain.Record, error) {
			assert.Equal(t, "2024wasno", key)
			return domain.NewRecord([]byte(raw)), nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/events/2024wasno", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, raw, rec.Body.String())
}

func TestResolveRouteWinsOverEventWildcard(t *testing.T) {
	resolveCalled := false
	svc := &stubService{
		resolve: func(_ context.Context, _ application.ResolveEventRequest) (resolve.Match, error) {
			resolveCalled = true
			return resolve.Match{}, nil
		},
		event: func(_ context.Context, _ string) (domain.Record, error) {
			t.Fatal("wildcard event route must not shadow /v1/events/resolve")
			return domain.Record{}, nil
		},
	}

	serve(t, svc, http.MethodGet, "/v1/events/resolve?q=x&year=2024", "")
	assert.True(t, resolveCalled)
}
