package oteltrace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	exportTimeout = 10 * time.Second
	maxQueueSize  = 2048
)

type SetupOptions struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/HTTP collector host:port. Empty installs a provider without an exporter.
	Endpoint string
	Insecure bool
}

// Setup installs a global tracer provider and the W3C propagators.
// The returned shutdown flushes pending spans.
func Setup(ctx context.Context, opt SetupOptions) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(opt.ServiceName),
			semconv.ServiceVersion(opt.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}

	var setupErr error
	if opt.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opt.Endpoint)}
		if opt.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, expErr := otlptracehttp.New(ctx, exporterOpts...)
		if expErr != nil {
			setupErr = errors.Join(setupErr, fmt.Errorf("otlp trace exporter: %w", expErr))
		} else {
			providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(
				sdktrace.NewBatchSpanProcessor(exporter,
					sdktrace.WithExportTimeout(exportTimeout),
					sdktrace.WithMaxQueueSize(maxQueueSize),
				),
			))
		}
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, setupErr
}
