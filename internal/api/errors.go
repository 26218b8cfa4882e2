package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/robostats/statproxy/infrastructure/upstream"
	"github.com/robostats/statproxy/internal/domain"
)

// errorBody is the JSON error envelope. Extra contains condition-specific
// fields such as the upstream status or the resolver's ranked candidates.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Extra   any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError maps an error from the core onto a status code and envelope.
func writeError(w http.ResponseWriter, err error) {
	status, code, extra := classify(err)
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: err.Error(),
		Extra:   extra,
	}})
}

// classify maps the error taxonomy to HTTP semantics. Structural request
// failures are 4xx; upstream failures surface as gateway errors carrying the
// upstream status verbatim.
func classify(err error) (status int, code string, extra any) {
	var validationErr validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrUnknownMetric):
		return http.StatusBadRequest, "unknown_metric", nil
	case errors.Is(err, domain.ErrEmptyInputSet):
		return http.StatusBadRequest, "empty_input_set", nil
	case errors.Is(err, domain.ErrNoExtractableValues):
		return http.StatusUnprocessableEntity, "no_extractable_values", nil
	case errors.Is(err, domain.ErrNoMatch):
		return http.StatusNotFound, "no_match", nil
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_request", nil
	}

	if ue, ok := upstream.AsError(err); ok {
		switch ue.Kind {
		case upstream.KindTimeout:
			return http.StatusGatewayTimeout, "upstream_timeout", nil
		case upstream.KindStatus:
			return http.StatusBadGateway, "upstream_status", map[string]any{
				"upstream_status": ue.StatusCode,
				"upstream_body":   ue.Body,
			}
		default:
			return http.StatusBadGateway, "upstream_unreachable", nil
		}
	}

	return http.StatusInternalServerError, "internal", nil
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
