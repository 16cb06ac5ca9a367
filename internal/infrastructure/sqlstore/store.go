package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-inventory/internal/domain/stock"
	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

// Store runs dbquery selects against a *sql.DB. Driver errors are returned unwrapped.
type Store struct {
	db           *sql.DB
	dialect      dbquery.Dialect
	tablePrefix  string
	queryTimeout time.Duration
}

var _ stock.Connection = (*Store)(nil)

func New(db *sql.DB, dialect dbquery.Dialect, tablePrefix string, queryTimeout time.Duration) *Store {
	return &Store{
		db:           db,
		dialect:      dialect,
		tablePrefix:  tablePrefix,
		queryTimeout: queryTimeout,
	}
}

func (s *Store) TableName(logical string) string {
	return s.tablePrefix + logical
}

func (s *Store) FetchOne(ctx context.Context, sel dbquery.Select) (any, bool, error) {
	query, args, err := sel.Build(s.dialect)
	if err != nil {
		return nil, false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var v any
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) FetchPairs(ctx context.Context, sel dbquery.Select) ([]dbquery.Pair, error) {
	query, args, err := sel.Build(s.dialect)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dbquery.Pair, 0)
	for rows.Next() {
		var p dbquery.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks connectivity; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db connection is required")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
