package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-inventory/internal/application"
	appStock "github.com/Zhima-Mochi/minishop-inventory/internal/application/stock"
	domainShipping "github.com/Zhima-Mochi/minishop-inventory/internal/domain/shipping"
	domainStock "github.com/Zhima-Mochi/minishop-inventory/internal/domain/stock"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Services struct {
	StockID     application.UseCase[string, *appStock.StockIDResult]
	StockStatus application.UseCase[appStock.StatusQuery, *appStock.StatusResult]
	Shipment    application.UseCase[domainShipping.Provider, *domainShipping.Shipment]
	Health      HealthChecker
}

type Handler struct {
	svc Services
	log observability.Logger
	tel observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	tracerName           = "minishop-inventory.http"
	maxBodyBytes         = 1 << 20
	// stays under the 2100 bind parameters SQL Server accepts per statement
	maxProductIDs = 2000

	paramWebsite   = "website"
	paramProductID = "product_id"

	codeInvalidInput     = "INVALID_INPUT"
	codeStockNotFound    = "STOCK_NOT_FOUND"
	codeUnavailable      = "UNAVAILABLE"
	codeInternal         = "INTERNAL"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

func NewHandler(svc Services, logger observability.Logger, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		svc: svc,
		log: baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel: tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	h.muxHandle(mux, http.MethodGet, "/stock/id", h.handleStockID)
	h.muxHandle(mux, http.MethodGet, "/stock/status", h.handleStockStatus)
	h.muxHandle(mux, http.MethodPost, "/shipment", h.handleShipment)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	// Trace → request logger + metrics → access log → handler
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get(headerRequestID)
			},
			func(r *http.Request) string {
				return r.Header.Get(headerTenantID)
			},
			h.tel,
		)(
			h.withAccessLog(allowMethod(method, handler)),
		),
	)

	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

// allowMethod answers 405 inside the middleware chain so rejected calls are traced and counted.
func allowMethod(method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		next(w, r)
	})
}

type stockIDResponse struct {
	WebsiteCode string `json:"website_code"`
	StockID     int64  `json:"stock_id"`
}

func (h *Handler) handleStockID(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.StockID.Execute(r.Context(), r.URL.Query().Get(paramWebsite))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !result.Found {
		writeError(w, http.StatusNotFound, codeStockNotFound, errors.New("no stock assigned to website "+result.WebsiteCode))
		return
	}
	writeJSON(w, http.StatusOK, stockIDResponse{
		WebsiteCode: result.WebsiteCode,
		StockID:     int64(result.StockID),
	})
}

type stockStatusResponse struct {
	WebsiteCode string            `json:"website_code"`
	StockID     int64             `json:"stock_id"`
	Statuses    map[string]int    `json:"statuses"`
	Skus        map[string]string `json:"skus"`
}

func (h *Handler) handleStockStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ids, err := parseProductIDs(query[paramProductID])
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err)
		return
	}

	result, err := h.svc.StockStatus.Execute(r.Context(), appStock.StatusQuery{
		WebsiteCode: query.Get(paramWebsite),
		ProductIDs:  ids,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !result.Found {
		writeError(w, http.StatusNotFound, codeStockNotFound, errors.New("no stock assigned to website "+result.WebsiteCode))
		return
	}

	resp := stockStatusResponse{
		WebsiteCode: result.WebsiteCode,
		StockID:     int64(result.StockID),
		Statuses:    make(map[string]int, len(result.Statuses)),
		Skus:        make(map[string]string, len(result.Skus)),
	}
	for id, status := range result.Statuses {
		resp.Statuses[strconv.FormatInt(int64(id), 10)] = int(status)
	}
	for id, sku := range result.Skus {
		resp.Skus[strconv.FormatInt(int64(id), 10)] = sku
	}
	writeJSON(w, http.StatusOK, resp)
}

type shipmentResponse struct {
	SourceCode string             `json:"source_code"`
	Items      map[string]float64 `json:"items"`
}

func (h *Handler) handleShipment(w http.ResponseWriter, r *http.Request) {
	params, err := newHTTPParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err)
		return
	}

	shipment, err := h.svc.Shipment.Execute(r.Context(), domainShipping.NewRequestProvider(params))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if shipment == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := shipmentResponse{
		SourceCode: shipment.SourceCode,
		Items:      make(map[string]float64, len(shipment.Items)),
	}
	for id, qty := range shipment.Items {
		resp.Items[strconv.FormatInt(id, 10)] = qty
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Health.Ping(ctx); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("health_check_failed", observability.F("error", err))
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, errors.New("database unreachable"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := r.Method + " " + route
		if route == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func parseProductIDs(raw []string) ([]domainStock.ProductID, error) {
	ids := make([]domainStock.ProductID, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, errors.New("product_id must be an integer: " + part)
			}
			ids = append(ids, domainStock.ProductID(n))
			if len(ids) > maxProductIDs {
				return nil, fmt.Errorf("at most %d product_id values are accepted", maxProductIDs)
			}
		}
	}
	return ids, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainStock.ErrInvalidWebsiteCode),
		errors.Is(err, domainStock.ErrInvalidProductID),
		errors.Is(err, domainShipping.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err)
	default:
		logctx.FromOr(r.Context(), h.log).Error("request_failed", observability.F("error", err))
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("internal error"))
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
