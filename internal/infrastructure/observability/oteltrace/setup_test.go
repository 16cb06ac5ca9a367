package oteltrace

import (
	"context"
	"slices"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prop := otel.GetTextMapPropagator()
	tp := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetTextMapPropagator(prop)
		otel.SetTracerProvider(tp)
	})
}

func TestSetupInstallsProviderAndPropagator(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := Setup(context.Background(), SetupOptions{
		ServiceName:    "minishop-inventory",
		ServiceVersion: "test",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown func")
	}
	defer func() { _ = shutdown(context.Background()) }()

	fields := otel.GetTextMapPropagator().Fields()
	if !slices.Contains(fields, "traceparent") || !slices.Contains(fields, "baggage") {
		t.Fatalf("expected W3C propagator fields, got %v", fields)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected the SDK tracer provider, got %T", otel.GetTracerProvider())
	}

	_, span := New("minishop-inventory").Start(context.Background(), "UC.ResolveStockID")
	defer span.End()
	if !span.SpanContext().IsValid() || !span.IsRecording() {
		t.Fatal("expected a recorded span with a valid span context")
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := Setup(context.Background(), SetupOptions{
		ServiceName: "minishop-inventory",
		Endpoint:    "localhost:4318",
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown func")
	}
}
