package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	appShipping "github.com/Zhima-Mochi/minishop-inventory/internal/application/shipping"
	appStock "github.com/Zhima-Mochi/minishop-inventory/internal/application/stock"
	domainOutbox "github.com/Zhima-Mochi/minishop-inventory/internal/domain/outbox"
	domainStock "github.com/Zhima-Mochi/minishop-inventory/internal/domain/stock"
	infraobs "github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

// fakeConn serves a single website "base" mapped to stock 1.
type fakeConn struct {
	err error
}

func (c *fakeConn) TableName(logical string) string { return logical }

func (c *fakeConn) FetchOne(_ context.Context, sel dbquery.Select) (any, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	for _, cond := range sel.Where {
		if cond.Column == "code" && cond.Value == "base" {
			return int64(1), true, nil
		}
	}
	return nil, false, nil
}

func (c *fakeConn) FetchPairs(_ context.Context, sel dbquery.Select) ([]dbquery.Pair, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(sel.Joins) > 0 {
		return []dbquery.Pair{{Key: int64(1), Value: int64(1)}, {Key: int64(2), Value: int64(0)}}, nil
	}
	return []dbquery.Pair{{Key: int64(1), Value: "24-MB01"}, {Key: int64(2), Value: "24-MB02"}}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, domainOutbox.Event) error { return nil }

func newTestHandler(conn domainStock.Connection, health HealthChecker, tel observability.Observability) http.Handler {
	return NewHandler(Services{
		StockID:     appStock.NewResolveStockIDUseCase(conn, tel),
		StockStatus: appStock.NewResolveStockStatusUseCase(conn, tel),
		Shipment:    appShipping.NewBuildShipmentUseCase(discardPublisher{}, tel),
		Health:      health,
	}, nil, tel).Router()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestStockIDRoute(t *testing.T) {
	router := newTestHandler(&fakeConn{}, nil, nil)

	cases := []struct {
		name     string
		target   string
		wantCode int
		wantErr  string
	}{
		{name: "found", target: "/stock/id?website=base", wantCode: http.StatusOK},
		{name: "unknown website", target: "/stock/id?website=eu", wantCode: http.StatusNotFound, wantErr: codeStockNotFound},
		{name: "missing website", target: "/stock/id", wantCode: http.StatusBadRequest, wantErr: codeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantErr != "" {
				var body errorResponse
				decodeBody(t, rec, &body)
				if body.Code != tc.wantErr {
					t.Fatalf("expected code %s, got %+v", tc.wantErr, body)
				}
				return
			}
			var body stockIDResponse
			decodeBody(t, rec, &body)
			if body.StockID != 1 || body.WebsiteCode != "base" {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestStockStatusRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/status?website=base&product_id=1&product_id=2,3", nil)
	newTestHandler(&fakeConn{}, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body stockStatusResponse
	decodeBody(t, rec, &body)
	if body.StockID != 1 || body.Statuses["1"] != 1 || body.Statuses["2"] != 0 || len(body.Statuses) != 2 {
		t.Fatalf("unexpected statuses: %+v", body)
	}
	if body.Skus["1"] != "24-MB01" || len(body.Skus) != 2 {
		t.Fatalf("unexpected skus: %+v", body.Skus)
	}
}

func TestStockStatusRouteBadProductID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/status?website=base&product_id=abc", nil)
	newTestHandler(&fakeConn{}, nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStockRouteStoreFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/id?website=base", nil)
	newTestHandler(&fakeConn{err: errors.New("login failed for user sa")}, nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "login failed") {
		t.Fatalf("store error leaked to client: %s", rec.Body.String())
	}
}

func TestShipmentRoute(t *testing.T) {
	router := newTestHandler(&fakeConn{}, nil, nil)

	cases := []struct {
		name     string
		target   string
		body     string
		wantCode int
		want     map[string]float64
	}{
		{
			name:     "json body",
			target:   "/shipment",
			body:     `{"sourceCode":"base","items":[{"orderItemId":1,"sources":[{"sourceCode":"base","qtyToDeduct":"2.5"}]},{"orderItemId":1,"sources":[{"sourceCode":"base","qtyToDeduct":0.5}]}]}`,
			wantCode: http.StatusOK,
			want:     map[string]float64{"1": 3},
		},
		{
			name: "query fallback",
			target: "/shipment?" + url.Values{
				"sourceCode": {"base"},
				"items":      {`[{"orderItemId":4,"sources":[{"sourceCode":"base","qtyToDeduct":1}]}]`},
			}.Encode(),
			wantCode: http.StatusOK,
			want:     map[string]float64{"4": 1},
		},
		{
			name:     "nothing for source",
			target:   "/shipment",
			body:     `{"sourceCode":"eu","items":[{"orderItemId":1,"sources":[{"sourceCode":"base","qtyToDeduct":1}]}]}`,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "malformed quantity",
			target:   "/shipment",
			body:     `{"sourceCode":"base","items":[{"orderItemId":1,"sources":[{"sourceCode":"base","qtyToDeduct":"lots"}]}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "not an object",
			target:   "/shipment",
			body:     `[1,2]`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.want == nil {
				return
			}
			var body shipmentResponse
			decodeBody(t, rec, &body)
			if body.SourceCode != "base" || len(body.Items) != len(tc.want) {
				t.Fatalf("unexpected body: %+v", body)
			}
			for k, v := range tc.want {
				if body.Items[k] != v {
					t.Fatalf("item %s: expected %v, got %v", k, v, body.Items[k])
				}
			}
		})
	}
}

func TestHealthRoute(t *testing.T) {
	cases := []struct {
		name     string
		health   HealthChecker
		wantCode int
	}{
		{name: "no checker", wantCode: http.StatusOK},
		{name: "reachable", health: pinger{}, wantCode: http.StatusOK},
		{name: "unreachable", health: pinger{err: errors.New("dial tcp")}, wantCode: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestHandler(&fakeConn{}, tc.health, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeConn{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shipment", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", rec.Header().Get("Allow"))
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := infraobs.NewWithRegistry(nil, nil, prometrics.New(reg, "", ""))
	router := newTestHandler(&fakeConn{}, nil, tel)

	req := httptest.NewRequest(http.MethodGet, "/stock/id?website=base", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(headerRequestID); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/id?website=eu", nil))
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatal("expected a generated request id")
	}

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected a 200 and a 404 series, got %d", n)
	}
}

func TestStockStatusRouteTooManyProductIDs(t *testing.T) {
	ids := make([]string, maxProductIDs+1)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	target := "/stock/status?" + url.Values{
		"website":    {"base"},
		"product_id": {strings.Join(ids, ",")},
	}.Encode()

	conn := &countingConn{}
	rec := httptest.NewRecorder()
	newTestHandler(conn, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body errorResponse
	decodeBody(t, rec, &body)
	if body.Code != codeInvalidInput {
		t.Fatalf("expected %s, got %+v", codeInvalidInput, body)
	}
	if conn.calls != 0 {
		t.Fatalf("expected no store call, got %d", conn.calls)
	}
}

type countingConn struct {
	fakeConn
	calls int
}

func (c *countingConn) FetchOne(ctx context.Context, sel dbquery.Select) (any, bool, error) {
	c.calls++
	return c.fakeConn.FetchOne(ctx, sel)
}

func TestMethodNotAllowedIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := infraobs.NewWithRegistry(nil, nil, prometrics.New(reg, "", ""))
	rec := httptest.NewRecorder()
	newTestHandler(&fakeConn{}, nil, tel).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shipment", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatal("expected request id on a rejected method")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != string(observability.MHTTPRequests) {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/shipment" && labels["status"] == "405" && labels["method"] == http.MethodGet {
				found = m.GetCounter().GetValue() == 1
			}
		}
	}
	if !found {
		t.Fatal("expected http_requests_total{route=/shipment,status=405} == 1")
	}
}
