package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/abhiyaanhq/abhiyaan/tenant"
)

// Aggregator executes declarative queries against one named tenant partition
// or fans the identical query out across every known partition concurrently
// and merges the results.
//
// Fan-out tolerates individual partitions that do not physically exist
// (zero rows, logged, not propagated). Any other per-partition failure aborts
// the whole aggregation: a partial result would silently understate totals.
//
// Per-partition result order is preserved and partitions are merged in
// registry order; callers wanting a global order must sort after the merge.
type Aggregator struct {
	router *Router
	logger *slog.Logger
}

// NewAggregator creates an Aggregator over the given router.
// A nil logger falls back to slog.Default().
func NewAggregator(router *Router, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{router: router, logger: logger}
}

// QueryOne returns the rows matching q in one tenant's partition.
func (a *Aggregator) QueryOne(ctx context.Context, tenantID int, ds tenant.Dataset, q Query) ([]Row, error) {
	p := a.router.Partition(tenantID, ds)
	rows, err := p.Find(ctx, q)
	if err != nil {
		if errors.Is(err, ErrPartitionMissing) {
			a.logMissing(p.Name())
			return nil, nil
		}
		return nil, fmt.Errorf("shard: query %s: %w", p.Name(), err)
	}
	return rows, nil
}

// QueryAll fans q out to every tenant's partition of ds concurrently and
// concatenates the results.
func (a *Aggregator) QueryAll(ctx context.Context, ds tenant.Dataset, q Query) ([]Row, error) {
	ids := tenant.AllIDs()
	perTenant := make([][]Row, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for i, tid := range ids {
		g.Go(func() error {
			rows, err := a.QueryOne(ctx, tid, ds, q)
			if err != nil {
				return err
			}
			perTenant[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Row
	for _, rows := range perTenant {
		merged = append(merged, rows...)
	}
	return merged, nil
}

// CountOne returns the number of rows matching q's filter in one tenant's
// partition.
func (a *Aggregator) CountOne(ctx context.Context, tenantID int, ds tenant.Dataset, q Query) (int64, error) {
	p := a.router.Partition(tenantID, ds)
	n, err := p.Count(ctx, q)
	if err != nil {
		if errors.Is(err, ErrPartitionMissing) {
			a.logMissing(p.Name())
			return 0, nil
		}
		return 0, fmt.Errorf("shard: count %s: %w", p.Name(), err)
	}
	return n, nil
}

// CountAll fans q out to every tenant's partition of ds and sums the counts.
func (a *Aggregator) CountAll(ctx context.Context, ds tenant.Dataset, q Query) (int64, error) {
	ids := tenant.AllIDs()
	counts := make([]int64, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for i, tid := range ids {
		g.Go(func() error {
			n, err := a.CountOne(ctx, tid, ds, q)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// AggregateOne runs an aggregation pipeline against one tenant's partition.
func (a *Aggregator) AggregateOne(ctx context.Context, tenantID int, ds tenant.Dataset, pipeline []map[string]any) ([]Row, error) {
	p := a.router.Partition(tenantID, ds)
	rows, err := p.Aggregate(ctx, pipeline)
	if err != nil {
		if errors.Is(err, ErrPartitionMissing) {
			a.logMissing(p.Name())
			return nil, nil
		}
		return nil, fmt.Errorf("shard: aggregate %s: %w", p.Name(), err)
	}
	return rows, nil
}

// AggregateAll runs the identical pipeline against every tenant's partition
// of ds concurrently and concatenates the results.
func (a *Aggregator) AggregateAll(ctx context.Context, ds tenant.Dataset, pipeline []map[string]any) ([]Row, error) {
	ids := tenant.AllIDs()
	perTenant := make([][]Row, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for i, tid := range ids {
		g.Go(func() error {
			rows, err := a.AggregateOne(ctx, tid, ds, pipeline)
			if err != nil {
				return err
			}
			perTenant[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Row
	for _, rows := range perTenant {
		merged = append(merged, rows...)
	}
	return merged, nil
}

func (a *Aggregator) logMissing(name string) {
	a.logger.Debug("partition has no data yet, treating as empty", "partition", name)
}
