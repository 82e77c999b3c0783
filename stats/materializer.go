package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abhiyaanhq/abhiyaan/shard"
	"github.com/abhiyaanhq/abhiyaan/tenant"
)

// Materializer is the write side: it recomputes materialized documents from
// the live partitions. It runs out-of-band (cmd/statsrefresh), never on the
// request path.
type Materializer struct {
	agg    *shard.Aggregator
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithMaterializerClock overrides the time source. Test hook.
func WithMaterializerClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) { m.now = now }
}

// WithMaterializerLogger sets the structured logger.
func WithMaterializerLogger(l *slog.Logger) MaterializerOption {
	return func(m *Materializer) { m.logger = l }
}

// NewMaterializer creates a Materializer over the given aggregator and store.
// A nil store is allowed when only Compute is used.
func NewMaterializer(agg *shard.Aggregator, store Store, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		agg:    agg,
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RefreshTenant recomputes and stores one tenant's document.
func (m *Materializer) RefreshTenant(ctx context.Context, tenantID int) (*TenantStats, error) {
	doc, err := m.Compute(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("stats: store tenant %d: %w", tenantID, err)
	}
	return doc, nil
}

// Compute builds one tenant's document from its live partitions without
// storing it. Partitions that have never been written contribute zero.
func (m *Materializer) Compute(ctx context.Context, tenantID int) (*TenantStats, error) {
	perBooth := []map[string]any{
		{"$group": map[string]any{"_id": "$booth_id", "n": map[string]any{"$sum": 1}}},
	}

	voterRows, err := m.agg.AggregateOne(ctx, tenantID, tenant.DatasetVoters, perBooth)
	if err != nil {
		return nil, fmt.Errorf("stats: refresh tenant %d voters: %w", tenantID, err)
	}
	responseRows, err := m.agg.AggregateOne(ctx, tenantID, tenant.DatasetSurveyResponses, perBooth)
	if err != nil {
		return nil, fmt.Errorf("stats: refresh tenant %d responses: %w", tenantID, err)
	}
	activities, err := m.agg.CountOne(ctx, tenantID, tenant.DatasetActivityLog, shard.Query{})
	if err != nil {
		return nil, fmt.Errorf("stats: refresh tenant %d activities: %w", tenantID, err)
	}

	byBooth := make(map[string]*BoothStats)
	boothFor := func(id string) *BoothStats {
		b, ok := byBooth[id]
		if !ok {
			b = &BoothStats{BoothID: id}
			byBooth[id] = b
		}
		return b
	}
	for _, r := range voterRows {
		id, _ := r["_id"].(string)
		boothFor(id).Voters = asInt64(r["n"])
	}
	for _, r := range responseRows {
		id, _ := r["_id"].(string)
		boothFor(id).Responses = asInt64(r["n"])
	}

	doc := &TenantStats{
		TenantID:   tenantID,
		ComputedAt: m.now(),
	}
	for _, b := range byBooth {
		doc.Booths = append(doc.Booths, *b)
		doc.Totals.Voters += b.Voters
		doc.Totals.Responses += b.Responses
	}
	sort.Slice(doc.Booths, func(i, j int) bool { return doc.Booths[i].BoothID < doc.Booths[j].BoothID })
	doc.Totals.Booths = int64(len(doc.Booths))
	doc.Totals.Activities = activities
	return doc, nil
}

// RefreshAll recomputes every tenant's document. A failing tenant is logged
// and skipped so one bad partition cannot starve the others; the joined
// errors are returned after the full pass.
func (m *Materializer) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, tid := range tenant.AllIDs() {
		doc, err := m.RefreshTenant(ctx, tid)
		if err != nil {
			m.logger.Error("stats refresh failed", "tenant", tid, "err", err)
			errs = append(errs, err)
			continue
		}
		m.logger.Info("stats refreshed",
			"tenant", tid,
			"booths", doc.Totals.Booths,
			"voters", doc.Totals.Voters,
			"responses", doc.Totals.Responses,
		)
	}
	return errors.Join(errs...)
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
