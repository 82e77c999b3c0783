package abhiyaan

import (
	"context"
	"time"
)

// Cache is the generic read-through cache sitting in front of expensive
// queries. A miss is a normal outcome, never an error, so lookups return a
// boolean instead of an error value.
type Cache interface {
	// Get returns the cached value for key if it was written less than
	// maxAge ago and its own ttl has not elapsed. The caller supplies maxAge
	// on every read so one cached object can serve consumers with different
	// freshness tolerances.
	Get(ctx context.Context, key string, maxAge time.Duration) (any, bool)

	// Set stores value under key with the given ttl. Last write wins.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// InvalidatePrefix removes every entry whose key starts with prefix.
	// Called after a write with the narrowest prefix covering everything
	// derived from the mutated entity.
	InvalidatePrefix(ctx context.Context, prefix string)

	// Clear removes every entry.
	Clear(ctx context.Context)
}
