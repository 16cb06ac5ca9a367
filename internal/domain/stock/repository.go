package stock

import (
	"context"

	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

// Connection is the read-only relational accessor the resolver needs.
type Connection interface {
	// TableName maps a logical table name to its physical name.
	TableName(logical string) string
	// FetchOne returns the first column of the first row; ok is false when no row matched.
	FetchOne(ctx context.Context, sel dbquery.Select) (value any, ok bool, err error)
	// FetchPairs returns the first two columns of every row.
	FetchPairs(ctx context.Context, sel dbquery.Select) ([]dbquery.Pair, error)
}
