// Package upstream provides the HTTP client for the external statistics
// service. It exposes a minimal fetch core wrapped by composable middleware
// for cross-cutting concerns such as timeouts, pacing, metrics, and tracing.
package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure for programmatic branching.
type Kind int

const (
	// KindTransport indicates a network-level failure reaching upstream.
	// No status code is available.
	KindTransport Kind = iota

	// KindStatus indicates that upstream responded with a non-success
	// status. The raw response body is carried verbatim for diagnosis.
	KindStatus

	// KindTimeout indicates that upstream did not respond within the
	// configured window and the in-flight call was cancelled.
	KindTimeout
)

// String returns a human-readable kind label.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the structured error surfaced by the upstream client. Callers
// branch on Kind rather than parsing messages; status-kind errors carry the
// upstream status code and raw body so they can be propagated verbatim.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Path is the upstream resource path that failed.
	Path string

	// StatusCode holds the upstream HTTP status for KindStatus errors.
	StatusCode int

	// Body holds the raw upstream response body for KindStatus errors.
	Body string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := fmt.Sprintf("upstream %s error: path=%s", e.Kind, e.Path)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	if e.Body != "" {
		base += fmt.Sprintf(", body=%s", e.Body)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout. This also satisfies
// the net.Error-style timeout probing some callers perform.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

// Retryable reports whether a retry could plausibly succeed. The client
// never retries on its own; this feeds the optional retry middleware, which
// callers must enable explicitly.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout:
		return true
	case KindStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// AsError unwraps err into an *Error when possible.
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsTimeout reports whether err is an upstream timeout.
func IsTimeout(err error) bool {
	ue, ok := AsError(err)
	return ok && ue.Kind == KindTimeout
}
