package upstream

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/robostats/statproxy/internal/ports"
)

// rateLimitedCore paces outbound calls with a token bucket. This keeps the
// fan-out aggregator from bursting past upstream's published rate limits
// even when many batches run concurrently.
type rateLimitedCore struct {
	next    Core
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces a sustained
// requests-per-second rate with a configurable burst allowance. The limiter
// is shared across all calls through the wrapped core.
func RateLimitMiddleware(limit float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(next Core) Core {
		return &rateLimitedCore{next: next, limiter: limiter}
	}
}

// Do blocks until a token is available, then forwards the fetch. A context
// cancelled while waiting aborts without consuming a token.
func (r *rateLimitedCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Do(ctx, path, query)
}
