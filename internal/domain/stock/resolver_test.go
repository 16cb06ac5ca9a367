package stock

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

type fakeConn struct {
	one      any
	oneFound bool
	pairs    [][]dbquery.Pair
	err      error

	tables     []string
	selects    []dbquery.Select
	fetchOne   int
	fetchPairs int
}

func (f *fakeConn) TableName(logical string) string {
	f.tables = append(f.tables, logical)
	return logical
}

func (f *fakeConn) FetchOne(_ context.Context, sel dbquery.Select) (any, bool, error) {
	f.fetchOne++
	f.selects = append(f.selects, sel)
	if f.err != nil {
		return nil, false, f.err
	}
	return f.one, f.oneFound, nil
}

func (f *fakeConn) FetchPairs(_ context.Context, sel dbquery.Select) ([]dbquery.Pair, error) {
	f.fetchPairs++
	f.selects = append(f.selects, sel)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pairs) == 0 {
		return nil, nil
	}
	out := f.pairs[0]
	f.pairs = f.pairs[1:]
	return out, nil
}

func TestStockID(t *testing.T) {
	conn := &fakeConn{one: int64(1), oneFound: true}
	r := NewResolver(conn)

	id, ok, err := r.StockID(context.Background(), "base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || id != 1 {
		t.Fatalf("expected stock 1, got %d (ok=%v)", id, ok)
	}
	if conn.fetchOne != 1 {
		t.Fatalf("expected one FetchOne, got %d", conn.fetchOne)
	}
	if !reflect.DeepEqual(conn.tables, []string{TableSalesChannel}) {
		t.Fatalf("unexpected tables: %v", conn.tables)
	}
	sql, args, err := conn.selects[0].Build(dbquery.DialectSQLServer)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sql != "SELECT stock_id FROM inventory_stock_sales_channel WHERE type = @p1 AND code = @p2" {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"website", "base"}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestStockIDAbsent(t *testing.T) {
	for _, name := range []string{"missing", "other"} {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(&fakeConn{})
			id, ok, err := r.StockID(context.Background(), name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok || id != 0 {
				t.Fatalf("expected absent, got %d (ok=%v)", id, ok)
			}
		})
	}
}

func TestStockIDStringValue(t *testing.T) {
	r := NewResolver(&fakeConn{one: []byte("3"), oneFound: true})
	id, ok, err := r.StockID(context.Background(), "eu")
	if err != nil || !ok || id != 3 {
		t.Fatalf("expected 3, got %d ok=%v err=%v", id, ok, err)
	}
}

func TestStockIDPropagatesError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeConn{err: boom})
	if _, _, err := r.StockID(context.Background(), "base"); err != boom {
		t.Fatalf("expected error to propagate unchanged, got %v", err)
	}
}

func TestStockStatus(t *testing.T) {
	conn := &fakeConn{pairs: [][]dbquery.Pair{{
		{Key: int64(1), Value: int64(1)},
		{Key: int64(2), Value: "0"},
		{Key: int64(99), Value: int64(1)},
	}}}
	r := NewResolver(conn)

	got, err := r.StockStatus(context.Background(), 2, []ProductID{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := StatusMap{1: StatusInStock, 2: StatusOutOfStock}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for id := range got {
		if id != 1 && id != 2 && id != 3 {
			t.Fatalf("status for unrequested product %d", id)
		}
	}
	if !reflect.DeepEqual(conn.tables, []string{TableProductEntity, "inventory_stock_2"}) {
		t.Fatalf("unexpected tables: %v", conn.tables)
	}
}

func TestStockStatusEmptyProducts(t *testing.T) {
	conn := &fakeConn{}
	got, err := NewResolver(conn).StockStatus(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || conn.fetchPairs != 0 {
		t.Fatalf("expected empty result without query, got %v (%d queries)", got, conn.fetchPairs)
	}
}

func TestSaveSkuRelation(t *testing.T) {
	conn := &fakeConn{pairs: [][]dbquery.Pair{{{Key: int64(1), Value: "24-MB01"}}}}
	r := NewResolver(conn)

	got, err := r.SaveSkuRelation(context.Background(), []ProductID{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SkuRelation{1: "24-MB01"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !reflect.DeepEqual(r.SkuRelation(), want) {
		t.Fatalf("stored relation mismatch: %v", r.SkuRelation())
	}
	if conn.fetchPairs != 1 {
		t.Fatalf("expected one FetchPairs, got %d", conn.fetchPairs)
	}
}

func TestSaveSkuRelationOverwrites(t *testing.T) {
	conn := &fakeConn{pairs: [][]dbquery.Pair{
		{{Key: int64(1), Value: "24-MB01"}},
		{{Key: int64(2), Value: []byte("24-MB02")}},
	}}
	r := NewResolver(conn)

	if _, err := r.SaveSkuRelation(context.Background(), []ProductID{1}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := r.SaveSkuRelation(context.Background(), []ProductID{2}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	want := SkuRelation{2: "24-MB02"}
	if !reflect.DeepEqual(r.SkuRelation(), want) {
		t.Fatalf("expected %v, got %v", want, r.SkuRelation())
	}

	// the returned copy must not alias internal state
	r.SkuRelation()[3] = "x"
	if _, ok := r.SkuRelation()[3]; ok {
		t.Fatalf("relation leaked internal map")
	}
}

func TestWebsiteStockStatus(t *testing.T) {
	conn := &fakeConn{
		one:      int64(1),
		oneFound: true,
		pairs: [][]dbquery.Pair{
			{{Key: int64(1), Value: "24-MB01"}},
			{{Key: int64(1), Value: int64(1)}},
		},
	}
	r := NewResolver(conn)

	if _, err := r.SaveSkuRelation(context.Background(), []ProductID{1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := r.WebsiteStockStatus(context.Background(), "base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, StatusMap{1: StatusInStock}) {
		t.Fatalf("unexpected statuses: %v", got)
	}
	if conn.fetchPairs != 2 {
		t.Fatalf("expected FetchPairs twice, got %d", conn.fetchPairs)
	}
}

func TestWebsiteStockStatusUnknownWebsite(t *testing.T) {
	conn := &fakeConn{}
	got, err := NewResolver(conn).WebsiteStockStatus(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || conn.fetchPairs != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestNormalizeWebsiteCode(t *testing.T) {
	if _, err := NormalizeWebsiteCode("  "); !errors.Is(err, ErrInvalidWebsiteCode) {
		t.Fatalf("expected ErrInvalidWebsiteCode, got %v", err)
	}
	code, err := NormalizeWebsiteCode(" base ")
	if err != nil || code != "base" {
		t.Fatalf("expected base, got %q (%v)", code, err)
	}
	if err := ValidateProductIDs([]ProductID{1, 0}); !errors.Is(err, ErrInvalidProductID) {
		t.Fatalf("expected ErrInvalidProductID, got %v", err)
	}
}

func TestStatusSaleable(t *testing.T) {
	if !StatusInStock.Saleable() || StatusOutOfStock.Saleable() || Status(2).Saleable() {
		t.Fatal("only StatusInStock is saleable")
	}
}
