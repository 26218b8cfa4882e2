package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/robostats/statproxy/internal/domain"
	"github.com/robostats/statproxy/internal/ports"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Core is the minimal fetch surface the middleware chain wraps: one GET
// against upstream, returning the raw response body. Everything above the
// core (timeouts, pacing, retries, metrics, tracing) composes through
// Middleware.
type Core interface {
	Do(ctx context.Context, path string, query ports.Query) ([]byte, error)
}

// Middleware wraps a Core with additional behavior.
type Middleware func(Core) Core

// Config defines the upstream client configuration.
type Config struct {
	// BaseURL is the fixed base URL of the upstream service.
	BaseURL string `koanf:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutMS bounds each individual fetch in milliseconds. On expiry the
	// in-flight call is cancelled and the fetch fails with a timeout-kind
	// error.
	TimeoutMS int `koanf:"timeout_ms" yaml:"timeout_ms" validate:"min=1"`

	// RateLimit paces outbound calls in requests per second using a token
	// bucket. Zero disables pacing.
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit" validate:"min=0"`

	// RateBurst allows temporary spikes above the sustained rate.
	RateBurst int `koanf:"rate_burst" yaml:"rate_burst" validate:"min=0"`

	// Retry configures the optional retry middleware. Disabled by default:
	// the core never retries on its own, retry policy belongs to the caller.
	Retry RetryConfig `koanf:"retry" yaml:"retry"`
}

// RetryConfig controls the opt-in retry middleware.
type RetryConfig struct {
	// Enabled turns the retry middleware on.
	Enabled bool `koanf:"enabled" yaml:"enabled"`

	// Attempts is the total number of attempts including the first.
	Attempts uint `koanf:"attempts" yaml:"attempts" validate:"omitempty,min=1,max=10"`

	// DelayMS is the base backoff delay between attempts in milliseconds.
	DelayMS int `koanf:"delay_ms" yaml:"delay_ms" validate:"min=0"`
}

// DefaultConfig returns the production defaults: the public Statbotics v3
// API, a 10 second per-fetch timeout, no pacing, no retries.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.statbotics.io/v3",
		TimeoutMS: 10_000,
		Retry:     RetryConfig{Attempts: 3, DelayMS: 250},
	}
}

// Timeout returns the per-fetch timeout as a duration.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// Client implements ports.Fetcher over HTTP. It is stateless apart from the
// immutable middleware chain and safe for concurrent use.
type Client struct {
	core   Core
	config Config
}

var _ ports.Fetcher = (*Client)(nil)

// Option customizes client construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	collector  ports.MetricsCollector
	extra      []Middleware
}

// WithHTTPClient substitutes the underlying *http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithMetrics attaches a metrics collector to the request path.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(o *options) { o.collector = collector }
}

// WithMiddleware appends custom middleware outside the built-in chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.extra = append(o.extra, mw...) }
}

// New creates an upstream client with the standard middleware chain.
// Innermost to outermost: timeout (per attempt), retry (if enabled), rate
// limiting (if configured), metrics, tracing, then any custom middleware.
func New(config Config, opts ...Option) (*Client, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("upstream configuration validation failed: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		// No client-level timeout: each call is bounded by the timeout
		// middleware so retries get a fresh window per attempt.
		hc = &http.Client{}
	}

	var core Core = &httpCore{base: config.BaseURL, client: hc}
	core = TimeoutMiddleware(config.Timeout())(core)
	if config.Retry.Enabled {
		core = RetryMiddleware(config.Retry)(core)
	}
	if config.RateLimit > 0 {
		core = RateLimitMiddleware(config.RateLimit, config.RateBurst)(core)
	}
	if o.collector != nil {
		core = MetricsMiddleware(o.collector)(core)
	}
	core = TracingMiddleware()(core)
	for _, mw := range o.extra {
		core = mw(core)
	}

	return &Client{core: core, config: config}, nil
}

// FetchRecord performs a single-entity fetch and wraps the body as an opaque
// record. The upstream payload is not re-modeled; callers read specific
// paths out of it.
func (c *Client) FetchRecord(ctx context.Context, path string, query ports.Query) (domain.Record, error) {
	body, err := c.core.Do(ctx, path, query)
	if err != nil {
		return domain.Record{}, err
	}
	if !json.Valid(body) {
		return domain.Record{}, &Error{Kind: KindTransport, Path: path, Err: errors.New("invalid JSON in response body")}
	}
	return domain.NewRecord(body), nil
}

// FetchList performs a list fetch and splits the JSON array into one opaque
// record per element.
func (c *Client) FetchList(ctx context.Context, path string, query ports.Query) ([]domain.Record, error) {
	body, err := c.core.Do(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, &Error{Kind: KindTransport, Path: path, Err: fmt.Errorf("decoding list response: %w", err)}
	}

	records := make([]domain.Record, len(elems))
	for i, raw := range elems {
		records[i] = domain.NewRecord(raw)
	}
	return records, nil
}

// httpCore issues the actual GET and maps failures into the error taxonomy.
type httpCore struct {
	base   string
	client *http.Client
}

func (c *httpCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	target := c.base + path
	if len(query) > 0 {
		vals := url.Values{}
		for k, v := range query {
			// Empty values are omitted rather than sent as empty strings.
			if k != "" && v != "" {
				vals.Set(k, v)
			}
		}
		if encoded := vals.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Kind:       KindStatus,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

// classifyTransport separates timeouts from other network failures so batch
// callers can record them distinctly.
func classifyTransport(path string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Path: path, Err: err}
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Path: path, Err: err}
	}
	return &Error{Kind: KindTransport, Path: path, Err: err}
}
