package stock

import (
	"context"
	"fmt"
	"maps"

	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

const (
	TableSalesChannel   = "inventory_stock_sales_channel"
	TableProductEntity  = "catalog_product_entity"
	stockIndexPrefix    = "inventory_stock_"
	salesChannelWebsite = "website"
)

// IndexTableName returns the logical name of the per-stock index table.
func IndexTableName(id ID) string {
	return fmt.Sprintf("%s%d", stockIndexPrefix, id)
}

// Resolver looks up stock ids, saleable status and SKUs through a Connection.
// It keeps the last SKU relation it fetched and is not safe for concurrent use.
type Resolver struct {
	conn        Connection
	skuRelation SkuRelation
}

func NewResolver(conn Connection) *Resolver {
	return &Resolver{conn: conn, skuRelation: SkuRelation{}}
}

// StockID resolves the stock assigned to a website. ok is false when none is assigned.
func (r *Resolver) StockID(ctx context.Context, websiteCode string) (ID, bool, error) {
	sel := dbquery.Select{
		From:    dbquery.Table{Name: r.conn.TableName(TableSalesChannel)},
		Columns: []string{"stock_id"},
		Where: []dbquery.Condition{
			dbquery.Eq("type", salesChannelWebsite),
			dbquery.Eq("code", websiteCode),
		},
	}

	v, ok, err := r.conn.FetchOne(ctx, sel)
	if err != nil || !ok || v == nil {
		return 0, false, err
	}
	id, err := toInt64(v)
	if err != nil {
		return 0, false, err
	}
	return ID(id), true, nil
}

// StockStatus returns the saleable status of the given products under a stock.
// Products without an index row are left out of the result.
func (r *Resolver) StockStatus(ctx context.Context, stockID ID, productIDs []ProductID) (StatusMap, error) {
	out := StatusMap{}
	if len(productIDs) == 0 {
		return out, nil
	}

	sel := dbquery.Select{
		From:    dbquery.Table{Name: r.conn.TableName(TableProductEntity), Alias: "product"},
		Columns: []string{"product.entity_id", "stock.is_salable"},
		Joins: []dbquery.Join{{
			Table: dbquery.Table{Name: r.conn.TableName(IndexTableName(stockID)), Alias: "stock"},
			Left:  "stock.sku",
			Right: "product.sku",
		}},
		Where: []dbquery.Condition{dbquery.In("product.entity_id", productIDs)},
	}

	pairs, err := r.conn.FetchPairs(ctx, sel)
	if err != nil {
		return nil, err
	}

	requested := make(map[ProductID]struct{}, len(productIDs))
	for _, id := range productIDs {
		requested[id] = struct{}{}
	}
	for _, p := range pairs {
		id, err := toInt64(p.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := requested[ProductID(id)]; !ok {
			continue
		}
		status, err := toInt64(p.Value)
		if err != nil {
			return nil, err
		}
		out[ProductID(id)] = Status(status)
	}
	return out, nil
}

// SaveSkuRelation fetches the SKUs of the given products and replaces the stored relation.
func (r *Resolver) SaveSkuRelation(ctx context.Context, productIDs []ProductID) (SkuRelation, error) {
	relation := SkuRelation{}
	if len(productIDs) > 0 {
		sel := dbquery.Select{
			From:    dbquery.Table{Name: r.conn.TableName(TableProductEntity)},
			Columns: []string{"entity_id", "sku"},
			Where:   []dbquery.Condition{dbquery.In("entity_id", productIDs)},
		}
		pairs, err := r.conn.FetchPairs(ctx, sel)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			id, err := toInt64(p.Key)
			if err != nil {
				return nil, err
			}
			sku, err := toString(p.Value)
			if err != nil {
				return nil, err
			}
			relation[ProductID(id)] = sku
		}
	}

	r.skuRelation = relation
	return maps.Clone(relation), nil
}

// SkuRelation returns a copy of the relation stored by the last SaveSkuRelation call.
func (r *Resolver) SkuRelation() SkuRelation {
	return maps.Clone(r.skuRelation)
}

// WebsiteStockStatus resolves the website's stock and returns the status of the
// products in the stored SKU relation. An unknown website yields an empty map.
func (r *Resolver) WebsiteStockStatus(ctx context.Context, websiteCode string) (StatusMap, error) {
	stockID, ok, err := r.StockID(ctx, websiteCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return StatusMap{}, nil
	}
	return r.StockStatus(ctx, stockID, r.skuRelation.IDs())
}
