package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a tracer backed by the global provider; see Setup for installing one.
func New(name string) observability.Tracer {
	if name == "" {
		name = "minishop-inventory"
	}
	return &tracer{t: otel.Tracer(name)}
}

// FromProvider returns a tracer backed by an explicit provider.
func FromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
