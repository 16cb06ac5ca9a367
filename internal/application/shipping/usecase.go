package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-inventory/internal/application"
	domoutbox "github.com/Zhima-Mochi/minishop-inventory/internal/domain/outbox"
	domshipping "github.com/Zhima-Mochi/minishop-inventory/internal/domain/shipping"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	shippingService    = "shipping-service"
	useCaseBuild       = "shipping.build"
	buildSpanName      = "BuildShipment"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	endpointAggregated = "shipping.aggregated"
	publishTimeout     = 300 * time.Millisecond
)

type BuildShipmentUseCase struct {
	publisher    domoutbox.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

var _ application.UseCase[domshipping.Provider, *domshipping.Shipment] = (*BuildShipmentUseCase)(nil)

func NewBuildShipmentUseCase(publisher domoutbox.Publisher, tel observability.Observability) *BuildShipmentUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &BuildShipmentUseCase{
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", shippingService)),
		tracer:       tel.Tracer(),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute asks the provider for the shipment and announces it when there is one.
// A nil shipment means no line item had a deduction for the requested source.
func (uc *BuildShipmentUseCase) Execute(ctx context.Context, provider domshipping.Provider) (_ *domshipping.Shipment, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseBuild),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+buildSpanName,
		attribute.String("use_case", useCaseBuild),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var shipment *domshipping.Shipment
	var publishErr error

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseBuild),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseBuild),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if shipment != nil {
			fields = append(fields,
				observability.F("source_code", shipment.SourceCode),
				observability.F("item_count", len(shipment.Items)),
			)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	shipment, err = provider.Shipment()
	if err != nil {
		outcome, statusText = "invalid", "INVALID_INPUT"
		return nil, err
	}
	if shipment == nil {
		outcome, statusText = "empty", "NO_MATCHING_SOURCE"
		return nil, nil
	}

	if span != nil {
		span.SetAttributes(
			attribute.String("source.code", shipment.SourceCode),
			attribute.Int("shipment.items", len(shipment.Items)),
		)
	}

	// The shipment stands on its own; a failed announcement is reported, not returned.
	if perr := uc.publish(ctx, domshipping.NewShipmentAggregatedEvent(shipment)); perr != nil {
		outcome, statusText = "degraded", "EVENT_PUBLISH_FAILED"
		publishErr = fmt.Errorf("shipping: publish aggregated: %w", perr)
		if span != nil {
			span.RecordError(publishErr)
		}
	}
	return shipment, nil
}

func (uc *BuildShipmentUseCase) publish(ctx context.Context, event domoutbox.Event) error {
	if uc.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := uc.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpointAggregated),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpointAggregated),
	)
	return err
}
