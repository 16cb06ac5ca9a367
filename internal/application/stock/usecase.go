package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-inventory/internal/application"
	domstock "github.com/Zhima-Mochi/minishop-inventory/internal/domain/stock"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stockService         = "stock-service"
	useCaseStockID       = "stock.resolve_id"
	useCaseStockStatus   = "stock.resolve_status"
	spanPrefix           = "UC."
	stockIDSpanName      = "ResolveStockID"
	stockStatusSpanName  = "ResolveStockStatus"
	outcomeSuccess       = "success"
	outcomeNotFound      = "not_found"
	outcomeInvalid       = "invalid"
	outcomeError         = "error"
	statusOK             = "OK"
	statusInvalidRequest = "INVALID_REQUEST"
	statusLookupFailed   = "LOOKUP_FAILED"
	statusStockNotFound  = "STOCK_NOT_FOUND"
)

type StockIDResult struct {
	WebsiteCode string
	StockID     domstock.ID
	Found       bool
}

type StatusQuery struct {
	WebsiteCode string
	ProductIDs  []domstock.ProductID
}

// StatusResult carries the stock of the website and the status and SKU of every known product.
type StatusResult struct {
	WebsiteCode string
	StockID     domstock.ID
	Found       bool
	Statuses    domstock.StatusMap
	Skus        domstock.SkuRelation
}

// telemetry bundles the instruments shared by the stock use cases.
type telemetry struct {
	log          observability.Logger
	tracer       observability.Tracer
	metrics      observability.Metrics
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func newTelemetry(tel observability.Observability) telemetry {
	if tel == nil {
		tel = observability.Nop()
	}
	return telemetry{
		log:          tel.Logger().With(observability.F("service", stockService)),
		tracer:       tel.Tracer(),
		metrics:      tel.Metrics(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// finish ends the span and records the request metrics and the use_case_done log line.
func (t telemetry) finish(ctx context.Context, span trace.Span, logger observability.Logger, useCase string, start time.Time, outcome, statusText string, err error, fields ...observability.Field) {
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
	t.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	t.durHistogram.Observe(latency,
		observability.L("use_case", useCase),
	)

	fields = append(fields,
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", latency),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Info("use_case_done", fields...)
}

type ResolveStockIDUseCase struct {
	conn domstock.Connection
	telemetry
}

var _ application.UseCase[string, *StockIDResult] = (*ResolveStockIDUseCase)(nil)

func NewResolveStockIDUseCase(conn domstock.Connection, tel observability.Observability) *ResolveStockIDUseCase {
	t := newTelemetry(tel)
	return &ResolveStockIDUseCase{
		conn:      instrument(conn, t.metrics),
		telemetry: t,
	}
}

// Execute resolves the stock assigned to a website. A website without a stock is not an error.
func (uc *ResolveStockIDUseCase) Execute(ctx context.Context, websiteCode string) (_ *StockIDResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseStockID),
		observability.F("website_code", websiteCode),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+stockIDSpanName,
		attribute.String("use_case", useCaseStockID),
		attribute.String("website.code", websiteCode),
	)
	start := time.Now()
	outcome, statusText := outcomeSuccess, statusOK
	result := &StockIDResult{WebsiteCode: websiteCode}

	defer func() {
		uc.finish(ctx, span, logger, useCaseStockID, start, outcome, statusText, err,
			observability.F("stock_id", int64(result.StockID)),
		)
	}()

	code, err := domstock.NormalizeWebsiteCode(websiteCode)
	if err != nil {
		outcome, statusText = outcomeInvalid, statusInvalidRequest
		return nil, err
	}
	result.WebsiteCode = code

	id, ok, err := domstock.NewResolver(uc.conn).StockID(ctx, code)
	if err != nil {
		outcome, statusText = outcomeError, statusLookupFailed
		return nil, fmt.Errorf("stock: resolve id: %w", err)
	}
	if !ok {
		outcome, statusText = outcomeNotFound, statusStockNotFound
		return result, nil
	}

	result.StockID, result.Found = id, true
	if span != nil {
		span.SetAttributes(attribute.Int64("stock.id", int64(id)))
	}
	return result, nil
}

type ResolveStockStatusUseCase struct {
	conn domstock.Connection
	telemetry
}

var _ application.UseCase[StatusQuery, *StatusResult] = (*ResolveStockStatusUseCase)(nil)

func NewResolveStockStatusUseCase(conn domstock.Connection, tel observability.Observability) *ResolveStockStatusUseCase {
	t := newTelemetry(tel)
	return &ResolveStockStatusUseCase{
		conn:      instrument(conn, t.metrics),
		telemetry: t,
	}
}

// Execute resolves the website's stock, records the SKUs of the requested
// products, and returns the saleable status of those that exist. The status
// lookup goes through WebsiteStockStatus, so the stock id is read twice.
func (uc *ResolveStockStatusUseCase) Execute(ctx context.Context, q StatusQuery) (_ *StatusResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseStockStatus),
		observability.F("website_code", q.WebsiteCode),
		observability.F("product_count", len(q.ProductIDs)),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+stockStatusSpanName,
		attribute.String("use_case", useCaseStockStatus),
		attribute.String("website.code", q.WebsiteCode),
		attribute.Int("product.count", len(q.ProductIDs)),
	)
	start := time.Now()
	outcome, statusText := outcomeSuccess, statusOK
	result := &StatusResult{
		WebsiteCode: q.WebsiteCode,
		Statuses:    domstock.StatusMap{},
		Skus:        domstock.SkuRelation{},
	}

	defer func() {
		uc.finish(ctx, span, logger, useCaseStockStatus, start, outcome, statusText, err,
			observability.F("stock_id", int64(result.StockID)),
			observability.F("matched_count", len(result.Statuses)),
			observability.F("saleable_count", saleableCount(result.Statuses)),
		)
	}()

	code, err := domstock.NormalizeWebsiteCode(q.WebsiteCode)
	if err == nil {
		err = domstock.ValidateProductIDs(q.ProductIDs)
	}
	if err != nil {
		outcome, statusText = outcomeInvalid, statusInvalidRequest
		return nil, err
	}
	result.WebsiteCode = code

	resolver := domstock.NewResolver(uc.conn)

	id, ok, err := resolver.StockID(ctx, code)
	if err != nil {
		outcome, statusText = outcomeError, statusLookupFailed
		return nil, fmt.Errorf("stock: resolve id: %w", err)
	}
	if !ok {
		outcome, statusText = outcomeNotFound, statusStockNotFound
		return result, nil
	}
	result.StockID, result.Found = id, true

	skus, err := resolver.SaveSkuRelation(ctx, q.ProductIDs)
	if err != nil {
		outcome, statusText = outcomeError, statusLookupFailed
		return nil, fmt.Errorf("stock: save sku relation: %w", err)
	}
	result.Skus = skus

	statuses, err := resolver.WebsiteStockStatus(ctx, code)
	if err != nil {
		outcome, statusText = outcomeError, statusLookupFailed
		return nil, fmt.Errorf("stock: resolve status: %w", err)
	}
	result.Statuses = statuses

	if span != nil {
		span.AddEvent("stock.status_resolved",
			trace.WithAttributes(
				attribute.Int64("stock.id", int64(id)),
				attribute.Int("matched.count", len(statuses)),
			),
		)
	}
	return result, nil
}

func saleableCount(statuses domstock.StatusMap) int {
	n := 0
	for _, s := range statuses {
		if s.Saleable() {
			n++
		}
	}
	return n
}
