package shipping

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-inventory/internal/domain/outbox"
	domshipping "github.com/Zhima-Mochi/minishop-inventory/internal/domain/shipping"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-inventory/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const workerService = "shipping_worker"

// AuditWorker logs every aggregated shipment seen on the bus.
type AuditWorker struct {
	subscriber domoutbox.Subscriber
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewAuditWorker(subscriber domoutbox.Subscriber, tel observability.Observability, logger observability.Logger) *AuditWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	metricsProvider := tel.Metrics()
	return &AuditWorker{
		subscriber:   subscriber,
		tel:          tel,
		log:          baseLogger.With(observability.F("service", workerService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

func (w *AuditWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domshipping.ShipmentAggregatedEvent{}.EventName(), w.handleShipmentAggregated)
}

func (w *AuditWorker) handleShipmentAggregated(ctx context.Context, e domoutbox.Event) error {
	const useCase = "shipping.worker.aggregated"
	evt, ok := e.(domshipping.ShipmentAggregatedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"ShipmentAggregated",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
	)
	start := time.Now()
	sc := trace.SpanContextFromContext(ctx)
	ctx = workerpresentation.WithEventContext(ctx, w.log, w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"event_id":    evt.EventID,
		"event":       e.EventName(),
		"use_case":    useCase,
		"source_code": evt.SourceCode,
	})

	var total float64
	for _, qty := range evt.Items {
		total += qty
	}
	logctx.FromOr(ctx, w.log).Info("shipment_aggregated",
		observability.F("item_count", len(evt.Items)),
		observability.F("total_qty", total),
		observability.F("occurred_at", evt.OccurredAt),
	)

	w.observe(useCase, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "OK")
	span.End()
	return nil
}

func (w *AuditWorker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *AuditWorker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}
