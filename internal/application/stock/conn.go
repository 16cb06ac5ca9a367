package stock

import (
	"context"
	"time"

	domstock "github.com/Zhima-Mochi/minishop-inventory/internal/domain/stock"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"
)

const (
	dbPeer             = "db"
	endpointFetchOne   = "fetch_one"
	endpointFetchPairs = "fetch_pairs"
)

// instrumentedConn records external request metrics around every store call.
type instrumentedConn struct {
	next         domstock.Connection
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func instrument(next domstock.Connection, metrics observability.Metrics) domstock.Connection {
	return &instrumentedConn{
		next:         next,
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (c *instrumentedConn) TableName(logical string) string {
	return c.next.TableName(logical)
}

func (c *instrumentedConn) FetchOne(ctx context.Context, sel dbquery.Select) (any, bool, error) {
	start := time.Now()
	v, ok, err := c.next.FetchOne(ctx, sel)
	c.observe(endpointFetchOne, start, err)
	return v, ok, err
}

func (c *instrumentedConn) FetchPairs(ctx context.Context, sel dbquery.Select) ([]dbquery.Pair, error) {
	start := time.Now()
	pairs, err := c.next.FetchPairs(ctx, sel)
	c.observe(endpointFetchPairs, start, err)
	return pairs, err
}

func (c *instrumentedConn) observe(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.extCounter.Add(1,
		observability.L("peer", dbPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", dbPeer),
		observability.L("endpoint", endpoint),
	)
}
