package upstream

import (
	"context"
	"time"

	"github.com/avast/retry-go"

	"github.com/robostats/statproxy/internal/ports"
)

// retryCore re-attempts fetches that failed in a retryable way. The core
// client never retries on its own; this middleware exists for callers that
// explicitly opt in, and it backs off exponentially between attempts.
type retryCore struct {
	next   Core
	config RetryConfig
}

// RetryMiddleware creates the opt-in retry middleware. Only transport
// failures, timeouts, and 5xx statuses are retried; client errors surface
// immediately.
func RetryMiddleware(config RetryConfig) Middleware {
	return func(next Core) Core {
		return &retryCore{next: next, config: config}
	}
}

// Do executes the fetch with bounded retries and exponential backoff.
func (r *retryCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			var callErr error
			body, callErr = r.next.Do(ctx, path, query)
			return callErr
		},
		retry.Attempts(r.config.Attempts),
		retry.Delay(time.Duration(r.config.DelayMS)*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Stop when the outer context is gone; waiting out the backoff
			// would only delay the inevitable cancellation error.
			if ctx.Err() != nil {
				return false
			}
			ue, ok := AsError(err)
			return ok && ue.Retryable()
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
