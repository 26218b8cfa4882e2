// Package ports defines the interfaces through which the core subsystems
// reach infrastructure: the upstream statistics service and the metrics
// backend. Implementations live under infrastructure/.
package ports

import (
	"context"

	"github.com/robostats/statproxy/internal/domain"
)

// Query carries optional key/value filters for an upstream call. Entries
// with empty values are omitted from the outgoing query string rather than
// sent as empty parameters.
type Query map[string]string

// Fetcher issues single-resource fetches against the upstream statistics
// service. Implementations enforce a per-call timeout, surface structured
// errors, and never retry on their own; retry policy belongs to the caller.
//
// Implementations must be stateless and safe for concurrent use: the
// aggregator fans out many FetchRecord calls over one shared Fetcher.
type Fetcher interface {
	// FetchRecord performs GET {base}{path}?{query} and decodes the response
	// as a single JSON object.
	FetchRecord(ctx context.Context, path string, query Query) (domain.Record, error)

	// FetchList performs GET {base}{path}?{query} and decodes the response
	// as a JSON array of objects.
	FetchList(ctx context.Context, path string, query Query) ([]domain.Record, error)
}
