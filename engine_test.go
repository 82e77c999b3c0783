package abhiyaan_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/abhiyaanhq/abhiyaan"
	"github.com/abhiyaanhq/abhiyaan/cache"
	"github.com/abhiyaanhq/abhiyaan/shard"
	"github.com/abhiyaanhq/abhiyaan/shard/memory"
	"github.com/abhiyaanhq/abhiyaan/stats"
	"github.com/abhiyaanhq/abhiyaan/tenant"
)

// countingSource wraps a source and counts partition reads, so tests can
// assert that a code path issued zero (or some) live queries.
type countingSource struct {
	inner shard.Source

	mu    sync.Mutex
	reads map[string]int
}

func newCountingSource(inner shard.Source) *countingSource {
	return &countingSource{inner: inner, reads: make(map[string]int)}
}

func (s *countingSource) Partition(name string) shard.Partition {
	return &countingPartition{inner: s.inner.Partition(name), src: s}
}

func (s *countingSource) Ping(ctx context.Context) error  { return s.inner.Ping(ctx) }
func (s *countingSource) Close(ctx context.Context) error { return s.inner.Close(ctx) }

func (s *countingSource) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[name]++
}

func (s *countingSource) readsFor(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}

func (s *countingSource) readPartitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.reads {
		names = append(names, name)
	}
	return names
}

func (s *countingSource) totalReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.reads {
		n += c
	}
	return n
}

func (s *countingSource) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = make(map[string]int)
}

type countingPartition struct {
	inner shard.Partition
	src   *countingSource
}

func (p *countingPartition) Name() string { return p.inner.Name() }

func (p *countingPartition) Find(ctx context.Context, q shard.Query) ([]shard.Row, error) {
	p.src.record(p.inner.Name())
	return p.inner.Find(ctx, q)
}

func (p *countingPartition) Count(ctx context.Context, q shard.Query) (int64, error) {
	p.src.record(p.inner.Name())
	return p.inner.Count(ctx, q)
}

func (p *countingPartition) Aggregate(ctx context.Context, pipeline []map[string]any) ([]shard.Row, error) {
	p.src.record(p.inner.Name())
	return p.inner.Aggregate(ctx, pipeline)
}

func (p *countingPartition) Insert(ctx context.Context, rows ...shard.Row) error {
	return p.inner.Insert(ctx, rows...)
}

func (p *countingPartition) Update(ctx context.Context, filter, set map[string]any) (int64, error) {
	return p.inner.Update(ctx, filter, set)
}

type engineFixture struct {
	eng   *abhiyaan.Engine
	src   *countingSource
	mem   *memory.Source
	store *stats.MemoryStore
	now   time.Time
}

func newFixture(t *testing.T, opts ...abhiyaan.Option) *engineFixture {
	t.Helper()
	f := &engineFixture{
		mem:   memory.New(),
		store: stats.NewMemoryStore(),
		now:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.src = newCountingSource(f.mem)

	all := append([]abhiyaan.Option{
		abhiyaan.WithSource(f.src),
		abhiyaan.WithCache(cache.NewMemory()),
		abhiyaan.WithStatsStore(f.store),
		abhiyaan.WithLogger(slog.New(slog.DiscardHandler)),
		abhiyaan.WithClock(func() time.Time { return f.now }),
	}, opts...)

	eng, err := abhiyaan.NewEngine(all...)
	if err != nil {
		t.Fatal(err)
	}
	f.eng = eng
	return f
}

func (f *engineFixture) seedVoters(t *testing.T, tenantID int, rows ...shard.Row) {
	t.Helper()
	p := f.mem.Partition(tenant.PartitionName(tenant.DatasetVoters, tenantID))
	if err := p.Insert(context.Background(), rows...); err != nil {
		t.Fatal(err)
	}
}

func TestNewEngineRequiresSource(t *testing.T) {
	if _, err := abhiyaan.NewEngine(); !errors.Is(err, abhiyaan.ErrSourceRequired) {
		t.Fatalf("err = %v, want ErrSourceRequired", err)
	}
}

func TestDeniedCallerTouchesNoPartition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 101, shard.Row{"_id": "vtr_a"})

	agent := abhiyaan.Caller{Role: abhiyaan.RoleAgent, TenantID: 101}

	// An agent assigned to 101 may not read 102, whatever the request says.
	if _, err := f.eng.VoterCount(ctx, agent, 102); !errors.Is(err, abhiyaan.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.eng.BoothSummary(ctx, agent, 102); !errors.Is(err, abhiyaan.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.eng.RecordActivity(ctx, agent, 102, abhiyaan.Activity{AgentID: "a1", Kind: "door-knock"}); !errors.Is(err, abhiyaan.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	// An unknown role is denied everywhere, including its own claim.
	if _, err := f.eng.VoterCount(ctx, abhiyaan.Caller{Role: "visitor", TenantID: 101}, 101); !errors.Is(err, abhiyaan.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	if n := f.src.totalReads(); n != 0 {
		t.Fatalf("denied requests issued %d partition reads, want 0", n)
	}
}

func TestVoterCountReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 101,
		shard.Row{"_id": "vtr_a"},
		shard.Row{"_id": "vtr_b"},
		shard.Row{"_id": "vtr_c"},
	)
	manager := abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 101}

	n, err := f.eng.VoterCount(ctx, manager, 101)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("VoterCount = %d, want 3", n)
	}
	if f.src.totalReads() == 0 {
		t.Fatal("first read should have hit the partition")
	}

	// Second read is served from cache: zero live queries.
	f.src.reset()
	n, err = f.eng.VoterCount(ctx, manager, 101)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("cached VoterCount = %d, want 3", n)
	}
	if got := f.src.totalReads(); got != 0 {
		t.Fatalf("cached read issued %d partition reads, want 0", got)
	}
}

func TestFreshStatsAvoidLiveQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Materialized document computed five minutes ago.
	err := f.store.Put(ctx, &stats.TenantStats{
		TenantID:   101,
		Totals:     stats.Totals{Voters: 1200, Responses: 300},
		ComputedAt: f.now.Add(-5 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	analyst := abhiyaan.Caller{Role: abhiyaan.RoleAnalyst}

	// DashboardMaxAge is 10m: the document is fresh, zero live queries.
	n, err := f.eng.VoterCount(ctx, analyst, 101)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1200 {
		t.Fatalf("VoterCount = %d, want 1200 from materialized stats", n)
	}
	if got := f.src.totalReads(); got != 0 {
		t.Fatalf("fresh stats path issued %d partition reads, want 0", got)
	}
}

func TestStaleStatsFallBackToSingleTenantQuery(t *testing.T) {
	ctx := context.Background()
	cfg := abhiyaan.DefaultConfig()
	cfg.DashboardMaxAge = 2 * time.Minute
	f := newFixture(t, abhiyaan.WithConfig(cfg))

	err := f.store.Put(ctx, &stats.TenantStats{
		TenantID:   101,
		Totals:     stats.Totals{Voters: 1200},
		ComputedAt: f.now.Add(-5 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.seedVoters(t, 101, shard.Row{"_id": "vtr_a"}, shard.Row{"_id": "vtr_b"})

	// maxAge=2m: the five-minute-old document is stale, so the engine must
	// aggregate live, against tenant 101's partition only.
	n, err := f.eng.VoterCount(ctx, abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 101}, 101)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("VoterCount = %d, want 2 from live query", n)
	}
	for _, name := range f.src.readPartitions() {
		if name != tenant.PartitionName(tenant.DatasetVoters, 101) {
			t.Fatalf("unexpected partition %s was read", name)
		}
	}
}

func TestBoothSummaryFromMaterializedDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.store.Put(ctx, &stats.TenantStats{
		TenantID: 58,
		Booths: []stats.BoothStats{
			{BoothID: "BOOTH1-58", Voters: 400, Responses: 120},
			{BoothID: "BOOTH2-58", Voters: 380, Responses: 90},
		},
		Totals:     stats.Totals{Voters: 780, Responses: 210, Booths: 2},
		ComputedAt: f.now.Add(-30 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Thirty minutes old is fine for a booth listing (60m window).
	summary, err := f.eng.BoothSummary(ctx, abhiyaan.Caller{Role: abhiyaan.RoleAgent, TenantID: 58}, 58)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Booths) != 2 || summary.Totals.Voters != 780 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := f.src.totalReads(); got != 0 {
		t.Fatalf("materialized booth summary issued %d partition reads, want 0", got)
	}
}

func TestBoothSummaryLiveFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 104,
		shard.Row{"_id": "vtr_a", "booth_id": "BOOTH1-104"},
		shard.Row{"_id": "vtr_b", "booth_id": "BOOTH1-104"},
		shard.Row{"_id": "vtr_c", "booth_id": "BOOTH2-104"},
	)

	// No materialized document at all: compute live.
	summary, err := f.eng.BoothSummary(ctx, abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 104}, 104)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Totals.Voters != 3 || summary.Totals.Booths != 2 {
		t.Fatalf("live summary totals = %+v", summary.Totals)
	}
	if summary.Booths[0].BoothID != "BOOTH1-104" || summary.Booths[0].Voters != 2 {
		t.Fatalf("live summary booths = %+v", summary.Booths)
	}
}

func TestWriteInvalidatesDerivedViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 56, shard.Row{"_id": "vtr_a"}, shard.Row{"_id": "vtr_b"})
	manager := abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 56}

	before, err := f.eng.SurveyProgress(ctx, manager, 56)
	if err != nil {
		t.Fatal(err)
	}
	if before.Responses != 0 {
		t.Fatalf("Responses = %d before any submission", before.Responses)
	}

	if _, err := f.eng.RecordSurveyResponse(ctx, manager, 56, abhiyaan.SurveyResponse{
		VoterID:  "vtr_a",
		BoothID:  "ac56012",
		Question: "preferred_candidate",
		Answer:   "undecided",
		AgentID:  "agent_9",
	}); err != nil {
		t.Fatal(err)
	}

	// The cached progress view must have been invalidated by the write.
	after, err := f.eng.SurveyProgress(ctx, manager, 56)
	if err != nil {
		t.Fatal(err)
	}
	if after.Responses != 1 {
		t.Fatalf("Responses = %d after submission, want 1 (stale cache?)", after.Responses)
	}
	if after.Coverage != 0.5 {
		t.Fatalf("Coverage = %v, want 0.5", after.Coverage)
	}
}

func TestRecordSurveyResponseNormalizesBooth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	manager := abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 101}

	rid, err := f.eng.RecordSurveyResponse(ctx, manager, 101, abhiyaan.SurveyResponse{
		VoterID: "vtr_a",
		BoothID: "voter-booth-101-7",
		AgentID: "agent_1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rid.IsNil() {
		t.Fatal("expected a survey response id")
	}

	p := f.mem.Partition(tenant.PartitionName(tenant.DatasetSurveyResponses, 101))
	rows, err := p.Find(ctx, shard.Query{Filter: map[string]any{"_id": rid.String()}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["booth_id"] != "BOOTH7-101" {
		t.Fatalf("persisted rows = %v, want canonical booth id BOOTH7-101", rows)
	}
}

func TestRecordMobileAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := abhiyaan.Caller{Role: abhiyaan.RoleAgent, TenantID: 57}

	rid, err := f.eng.RecordMobileAnswer(ctx, agent, 57, abhiyaan.MobileAnswer{
		VoterID:      "vtr_a",
		BoothID:      "ac57003",
		QuestionCode: "Q12",
		Answer:       "yes",
		DeviceID:     "dev_4",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rid.Prefix() != "ans" {
		t.Fatalf("id prefix = %q, want ans", rid.Prefix())
	}

	p := f.mem.Partition(tenant.PartitionName(tenant.DatasetMobileAnswers, 57))
	rows, err := p.Find(ctx, shard.Query{Filter: map[string]any{"_id": rid.String()}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["booth_id"] != "BOOTH3-57" {
		t.Fatalf("persisted rows = %v, want canonical booth id BOOTH3-57", rows)
	}

	// A submission whose booth decodes to another constituency is rejected.
	if _, err := f.eng.RecordMobileAnswer(ctx, agent, 57, abhiyaan.MobileAnswer{
		VoterID: "vtr_a",
		BoothID: "ac101007",
	}); !errors.Is(err, abhiyaan.ErrBoothTenantMismatch) {
		t.Fatalf("err = %v, want ErrBoothTenantMismatch", err)
	}
}

func TestAssignBooth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 101, shard.Row{"_id": "vtr_a", "booth_id": ""})
	manager := abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 101}

	canon, err := f.eng.AssignBooth(ctx, manager, 101, "vtr_a", "ac101007")
	if err != nil {
		t.Fatal(err)
	}
	if canon != "BOOTH7-101" {
		t.Fatalf("canonical form = %q, want BOOTH7-101", canon)
	}

	p := f.mem.Partition(tenant.PartitionName(tenant.DatasetVoters, 101))
	rows, err := p.Find(ctx, shard.Query{Filter: map[string]any{"_id": "vtr_a"}})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0]["booth_id"] != "BOOTH7-101" {
		t.Fatalf("persisted booth_id = %v", rows[0]["booth_id"])
	}

	// A booth that decodes to another constituency is rejected.
	if _, err := f.eng.AssignBooth(ctx, manager, 101, "vtr_a", "ac102001"); !errors.Is(err, abhiyaan.ErrBoothTenantMismatch) {
		t.Fatalf("err = %v, want ErrBoothTenantMismatch", err)
	}
	// An unknown voter is rejected.
	if _, err := f.eng.AssignBooth(ctx, manager, 101, "vtr_missing", "ac101007"); !errors.Is(err, abhiyaan.ErrVoterNotFound) {
		t.Fatalf("err = %v, want ErrVoterNotFound", err)
	}
}

func TestCampaignOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Fresh documents for two tenants; tenant 58 gets live counts; every
	// other tenant has neither documents nor data and contributes zero.
	for _, doc := range []*stats.TenantStats{
		{TenantID: 56, Totals: stats.Totals{Voters: 500, Responses: 100}, ComputedAt: f.now.Add(-time.Minute)},
		{TenantID: 101, Totals: stats.Totals{Voters: 700, Responses: 50}, ComputedAt: f.now.Add(-time.Minute)},
	} {
		if err := f.store.Put(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}
	f.seedVoters(t, 58, shard.Row{"_id": "vtr_a"}, shard.Row{"_id": "vtr_b"})

	overview, err := f.eng.CampaignOverview(ctx, abhiyaan.Caller{Role: abhiyaan.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if len(overview.Tenants) != tenant.Count() {
		t.Fatalf("got %d tenant lines, want %d", len(overview.Tenants), tenant.Count())
	}
	if overview.TotalVoters != 500+700+2 {
		t.Fatalf("TotalVoters = %d, want 1202", overview.TotalVoters)
	}

	// Tenants with fresh documents were not queried live.
	for _, tid := range []int{56, 101} {
		name := tenant.PartitionName(tenant.DatasetVoters, tid)
		if f.src.readsFor(name) != 0 {
			t.Fatalf("tenant %d was queried live despite a fresh document", tid)
		}
	}

	// Single-tenant callers may not see the overview.
	if _, err := f.eng.CampaignOverview(ctx, abhiyaan.Caller{Role: abhiyaan.RoleManager, TenantID: 56}); !errors.Is(err, abhiyaan.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestCampaignOverviewToleratesUnwrittenPartitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedVoters(t, 103, shard.Row{"_id": "vtr_a"})

	// No materialized documents at all: every tenant is counted live, and
	// the tenants whose partitions were never written contribute zero
	// without erroring.
	overview, err := f.eng.CampaignOverview(ctx, abhiyaan.Caller{Role: abhiyaan.RoleAnalyst})
	if err != nil {
		t.Fatal(err)
	}
	if overview.TotalVoters != 1 {
		t.Fatalf("TotalVoters = %d, want 1", overview.TotalVoters)
	}
}
