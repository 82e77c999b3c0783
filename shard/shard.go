// Package shard routes data operations to per-constituency partitions and
// fans queries out across all of them for global-scope callers.
//
// A partition is one tenant's physical storage for one logical dataset,
// named by the tenant package's naming rule. Handles are created lazily and
// memoized by the Router; queries and counts against one or all partitions
// go through the Aggregator.
package shard

import (
	"context"
	"errors"
)

// ErrPartitionMissing indicates that a partition has never been physically
// created (no data ever written for that tenant). Callers treat it as an
// empty result set, never as a failure: newly added or data-light
// constituencies are expected to hit this.
var ErrPartitionMissing = errors.New("shard: partition does not exist")

// Row is one document from a partition.
type Row = map[string]any

// SortField orders query results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Query is a declarative description of a partition read.
// A nil Filter matches every row.
type Query struct {
	Filter map[string]any
	Sort   []SortField
	Limit  int64
}

// Partition is an opaque handle to one tenant's physical storage for one
// dataset. Reads against a partition that has never been written return
// empty results.
type Partition interface {
	// Name returns the physical partition name.
	Name() string

	// Find returns the rows matching q, in query order.
	Find(ctx context.Context, q Query) ([]Row, error)

	// Count returns the number of rows matching q's filter.
	Count(ctx context.Context, q Query) (int64, error)

	// Aggregate runs a pipeline of aggregation stages and returns the
	// resulting rows.
	Aggregate(ctx context.Context, pipeline []map[string]any) ([]Row, error)

	// Insert appends rows to the partition, creating it physically on
	// first write.
	Insert(ctx context.Context, rows ...Row) error

	// Update applies set to every row matching filter and returns the
	// number of rows modified.
	Update(ctx context.Context, filter map[string]any, set map[string]any) (int64, error)
}

// Source creates partition handles by name. Implementations must hand out a
// usable handle even when nothing has ever been written under that name.
type Source interface {
	Partition(name string) Partition

	// Ping checks storage connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying storage binding.
	Close(ctx context.Context) error
}
