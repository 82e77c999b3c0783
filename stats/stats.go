// Package stats serves per-constituency materialized summary documents.
//
// Documents are computed out-of-band (see Materializer and cmd/statsrefresh)
// and read with an explicit caller-supplied freshness bound. A document older
// than the caller's bound is treated exactly like a missing one: the caller
// falls back to live aggregation. This trades a bounded staleness window for
// keeping full-roster aggregation off the request path.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no materialized document exists for a tenant.
var ErrNotFound = errors.New("stats: not found")

// BoothStats is the aggregate for one polling booth.
type BoothStats struct {
	BoothID   string `bson:"booth_id" json:"booth_id"`
	Voters    int64  `bson:"voters" json:"voters"`
	Responses int64  `bson:"responses" json:"responses"`
}

// Totals is the tenant-wide rollup.
type Totals struct {
	Voters     int64 `bson:"voters" json:"voters"`
	Responses  int64 `bson:"responses" json:"responses"`
	Booths     int64 `bson:"booths" json:"booths"`
	Activities int64 `bson:"activities" json:"activities"`
}

// TenantStats is one tenant's materialized summary document.
type TenantStats struct {
	TenantID   int          `bson:"_id" json:"tenant_id"`
	Booths     []BoothStats `bson:"booths" json:"booths"`
	Totals     Totals       `bson:"totals" json:"totals"`
	ComputedAt time.Time    `bson:"computed_at" json:"computed_at"`
}

// Store persists materialized documents, one per tenant.
type Store interface {
	// Get returns the document for one tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID int) (*TenantStats, error)

	// GetAll returns every existing document in tenant order.
	GetAll(ctx context.Context) ([]*TenantStats, error)

	// Put writes or replaces one tenant's document.
	Put(ctx context.Context, doc *TenantStats) error
}

// Provider is the read side: it answers from materialized documents when they
// are fresh enough and reports absence otherwise. It never triggers live
// aggregation itself.
type Provider struct {
	store Store
	now   func() time.Time
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithClock overrides the provider's time source. Test hook.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a Provider over the given store.
func NewProvider(store Store, opts ...ProviderOption) *Provider {
	p := &Provider{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns one tenant's document if it was computed less than maxAge
// ago. A stale or missing document yields ok == false, never an error; the
// caller must then fall back to live aggregation. Every caller supplies its
// own maxAge; there is no system-wide default.
func (p *Provider) Stats(ctx context.Context, tenantID int, maxAge time.Duration) (*TenantStats, bool, error) {
	doc, err := p.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stats: get tenant %d: %w", tenantID, err)
	}
	if maxAge <= 0 || p.now().Sub(doc.ComputedAt) >= maxAge {
		return nil, false, nil
	}
	return doc, true, nil
}

// AllStats returns whatever materialized documents currently exist, one per
// tenant with data, regardless of age. This is a plain read, cheap enough for
// global-scope summary views; freshness judgment is left to the caller.
func (p *Provider) AllStats(ctx context.Context) ([]*TenantStats, error) {
	docs, err := p.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: get all: %w", err)
	}
	return docs, nil
}
