package upstream

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robostats/statproxy/internal/ports"
)

// tracedCore wraps fetches in OpenTelemetry spans so individual upstream
// calls show up inside aggregation traces.
type tracedCore struct {
	next   Core
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that opens a span per upstream fetch.
func TracingMiddleware() Middleware {
	return func(next Core) Core {
		return &tracedCore{next: next, tracer: otel.Tracer("upstream-client")}
	}
}

// Do executes the fetch inside a span carrying the path and outcome.
func (t *tracedCore) Do(ctx context.Context, path string, query ports.Query) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "upstream.fetch",
		trace.WithAttributes(
			attribute.String("upstream.path", path),
			attribute.Int("upstream.query_params", len(query)),
		),
	)
	defer span.End()

	body, err := t.next.Do(ctx, path, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ue, ok := AsError(err); ok {
			span.SetAttributes(attribute.String("upstream.error_kind", ue.Kind.String()))
			if ue.StatusCode > 0 {
				span.SetAttributes(attribute.Int("upstream.status_code", ue.StatusCode))
			}
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("upstream.response_bytes", len(body)))
	return body, nil
}
