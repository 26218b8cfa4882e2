package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/robostats/statproxy/internal/application"
	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/resolve"
)

// benchmarkResponse is the aggregation entrypoint's payload. Percentile
// ranks become string keys so the mapping serializes as a JSON object.
type benchmarkResponse struct {
	Count        int                `json:"count"`
	Percentiles  map[string]float64 `json:"percentiles"`
	Failures     []failureResponse  `json:"failures,omitempty"`
	FailureCount int                `json:"failure_count,omitempty"`
}

type failureResponse struct {
	Team  int    `json:"team"`
	Error string `json:"error"`
}

// resolveResponse is the resolver entrypoint's payload. Candidates are
// present even on a NoMatch failure for caller-side disambiguation.
type resolveResponse struct {
	Query      string                    `json:"query"`
	Best       *resolve.ScoredCandidate  `json:"best,omitempty"`
	Candidates []resolve.ScoredCandidate `json:"candidates"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req application.BenchmarkRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "invalid_request",
			Message: "malformed JSON body: " + err.Error(),
		}})
		return
	}

	result, err := s.service.Benchmark(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := benchmarkResponse{
		Count:        result.Count,
		Percentiles:  make(map[string]float64, len(result.Percentiles)),
		FailureCount: result.FailureCount,
	}
	for rank, value := range result.Percentiles {
		resp.Percentiles[strconv.FormatFloat(rank, 'f', -1, 64)] = value
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, failureResponse{Team: f.Team, Error: f.Message})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "invalid_request",
			Message: "year must be an integer",
		}})
		return
	}

	match, err := s.service.ResolveEvent(r.Context(), application.ResolveEventRequest{
		Query:    q.Get("q"),
		Year:     year,
		District: q.Get("district"),
		State:    q.Get("state"),
	})
	if err != nil {
		// NoMatch still carries the ranked candidates, which callers use
		// to present alternates.
		if errors.Is(err, domain.ErrNoMatch) {
			writeJSON(w, http.StatusNotFound, struct {
				Error errorBody `json:"error"`
				resolveResponse
			}{
				Error:           errorBody{Code: "no_match", Message: err.Error()},
				resolveResponse: resolveResponse{Query: match.Query, Candidates: match.Candidates},
			})
			return
		}
		writeError(w, err)
		return
	}

	best := match.Best
	writeJSON(w, http.StatusOK, resolveResponse{
		Query:      match.Query,
		Best:       &best,
		Candidates: match.Candidates,
	})
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	team, err := strconv.Atoi(r.PathValue("team"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "invalid_request",
			Message: "team must be an integer",
		}})
		return
	}

	record, err := s.service.Team(r.Context(), team)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, record)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.Event(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, record)
}

// writeRaw passes an upstream record through untouched.
func writeRaw(w http.ResponseWriter, record domain.Record) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(record.Raw())
}
