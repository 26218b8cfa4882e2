package upstream

import (
	"context"
	"time"

	"github.com/robostats/statproxy/internal/ports"
)

// timeoutCore enforces a per-fetch deadline. This keeps a single slow
// upstream call from stalling a whole fan-out batch; an expired call is
// cancelled and surfaces as a timeout-kind error.
type timeoutCore struct {
	next    Core
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that bounds each fetch with its own
// deadline. It sits innermost in the chain so that, when retries are
// enabled, every attempt gets a fresh window.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Core) Core {
		return &timeoutCore{next: next, timeout: timeout}
	}
}

// Do executes the fetch under a child context with the configured deadline.
func (t *timeoutCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Do(ctx, path, query)
}
