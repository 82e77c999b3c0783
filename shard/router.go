package shard

import (
	"fmt"
	"sync"

	"github.com/abhiyaanhq/abhiyaan/tenant"
)

// Router hands out partition handles for (tenant, dataset) pairs. The first
// request for a pair creates and memoizes the handle; every later request
// returns the same handle with no I/O. Exactly one handle per pair is ever
// live for the process lifetime.
type Router struct {
	source Source

	mu         sync.Mutex
	partitions map[string]Partition // partition name -> handle
}

// NewRouter creates a Router over the given source.
func NewRouter(source Source) *Router {
	return &Router{
		source:     source,
		partitions: make(map[string]Partition),
	}
}

// Partition returns the handle for one tenant's slice of a dataset.
// Passing a tenant id the registry does not know is a programmer error and
// panics: callers must resolve scope before touching the router.
func (r *Router) Partition(tenantID int, ds tenant.Dataset) Partition {
	if !tenant.IsValid(tenantID) {
		panic(fmt.Sprintf("shard: unknown tenant %d", tenantID))
	}
	name := tenant.PartitionName(ds, tenantID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.partitions[name]; ok {
		return p
	}
	p := r.source.Partition(name)
	r.partitions[name] = p
	return p
}
