package abhiyaan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhiyaanhq/abhiyaan/booth"
	"github.com/abhiyaanhq/abhiyaan/id"
	"github.com/abhiyaanhq/abhiyaan/shard"
	"github.com/abhiyaanhq/abhiyaan/stats"
	"github.com/abhiyaanhq/abhiyaan/tenant"
)

// Report names used in cache keys.
const (
	reportBoothSummary   = "booth-summary"
	reportVoterCount     = "voter-count"
	reportSurveyProgress = "survey-progress"
	reportOverview       = "overview"
)

// Engine is the single entry point for tenant-scoped data access. Every read
// walks the same tiers: access gate, cache, precomputed stats, live
// aggregation, write-back. Every write goes through the gate, lands in the
// tenant's partition, and invalidates every cached view derived from it.
type Engine struct {
	source     shard.Source
	cache      Cache
	statsStore stats.Store
	logger     *slog.Logger
	config     Config
	now        func() time.Time

	router *shard.Router
	agg    *shard.Aggregator
	stats  *stats.Provider
	mat    *stats.Materializer
}

// NewEngine creates a new engine with the given options. A partition source
// is required; cache and stats store are optional tiers that reads skip when
// absent.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.source == nil {
		return nil, ErrSourceRequired
	}

	e.router = shard.NewRouter(e.source)
	e.agg = shard.NewAggregator(e.router, e.logger)
	if e.statsStore != nil {
		e.stats = stats.NewProvider(e.statsStore, stats.WithClock(e.now))
	}
	e.mat = stats.NewMaterializer(e.agg, e.statsStore,
		stats.WithMaterializerClock(e.now),
		stats.WithMaterializerLogger(e.logger),
	)
	return e, nil
}

// Aggregator exposes the cross-shard aggregator for out-of-band consumers.
func (e *Engine) Aggregator() *shard.Aggregator { return e.agg }

// BoothSummary returns the per-booth breakdown for one constituency.
// Booth listings change rarely, so this view tolerates the widest staleness
// window.
func (e *Engine) BoothSummary(ctx context.Context, caller Caller, tenantID int) (*BoothSummary, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return nil, err
	}
	key := TenantReportKey(tenantID, reportBoothSummary)
	if v, ok := e.cacheGet(ctx, key, e.config.BoothListMaxAge); ok {
		return v.(*BoothSummary), nil
	}

	doc, ok, err := e.tenantStats(ctx, tenantID, e.config.BoothListMaxAge)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Stale or absent: aggregate live.
		doc, err = e.mat.Compute(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}

	summary := &BoothSummary{
		TenantID:   tenantID,
		Booths:     doc.Booths,
		Totals:     doc.Totals,
		ComputedAt: doc.ComputedAt,
	}
	e.cacheSet(ctx, key, summary)
	return summary, nil
}

// VoterCount returns the roster size for one constituency.
func (e *Engine) VoterCount(ctx context.Context, caller Caller, tenantID int) (int64, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return 0, err
	}
	key := TenantReportKey(tenantID, reportVoterCount)
	if v, ok := e.cacheGet(ctx, key, e.config.DashboardMaxAge); ok {
		return v.(int64), nil
	}

	var n int64
	doc, ok, err := e.tenantStats(ctx, tenantID, e.config.DashboardMaxAge)
	if err != nil {
		return 0, err
	}
	if ok {
		n = doc.Totals.Voters
	} else {
		n, err = e.agg.CountOne(ctx, tenantID, tenant.DatasetVoters, shard.Query{})
		if err != nil {
			return 0, err
		}
	}

	e.cacheSet(ctx, key, n)
	return n, nil
}

// SurveyProgress reports how much of one constituency's roster has been
// surveyed.
func (e *Engine) SurveyProgress(ctx context.Context, caller Caller, tenantID int) (*SurveyProgress, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return nil, err
	}
	key := TenantReportKey(tenantID, reportSurveyProgress)
	if v, ok := e.cacheGet(ctx, key, e.config.DashboardMaxAge); ok {
		return v.(*SurveyProgress), nil
	}

	var voters, responses int64
	doc, ok, err := e.tenantStats(ctx, tenantID, e.config.DashboardMaxAge)
	if err != nil {
		return nil, err
	}
	if ok {
		voters, responses = doc.Totals.Voters, doc.Totals.Responses
	} else {
		voters, err = e.agg.CountOne(ctx, tenantID, tenant.DatasetVoters, shard.Query{})
		if err != nil {
			return nil, err
		}
		responses, err = e.agg.CountOne(ctx, tenantID, tenant.DatasetSurveyResponses, shard.Query{})
		if err != nil {
			return nil, err
		}
	}

	progress := &SurveyProgress{
		TenantID:  tenantID,
		Voters:    voters,
		Responses: responses,
	}
	if voters > 0 {
		progress.Coverage = float64(responses) / float64(voters)
	}
	e.cacheSet(ctx, key, progress)
	return progress, nil
}

// CampaignOverview returns the cross-tenant rollup. Global scope only.
//
// The overview is answered from materialized documents wherever possible:
// fan-out cost scales with tenant count, so only tenants whose document is
// stale or missing are counted live.
func (e *Engine) CampaignOverview(ctx context.Context, caller Caller) (*CampaignOverview, error) {
	if ResolveScope(caller).Kind != ScopeAll {
		return nil, fmt.Errorf("%w: campaign overview requires global scope", ErrAccessDenied)
	}
	key := GlobalKey(reportOverview)
	if v, ok := e.cacheGet(ctx, key, e.config.OverviewMaxAge); ok {
		return v.(*CampaignOverview), nil
	}

	fresh := make(map[int]*stats.TenantStats)
	if e.stats != nil {
		docs, err := e.stats.AllStats(ctx)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if e.now().Sub(doc.ComputedAt) < e.config.OverviewMaxAge {
				fresh[doc.TenantID] = doc
			}
		}
	}

	overview := &CampaignOverview{}
	for _, tid := range tenant.AllIDs() {
		var entry TenantOverview
		if doc, ok := fresh[tid]; ok {
			entry = TenantOverview{TenantID: tid, Voters: doc.Totals.Voters, Responses: doc.Totals.Responses}
		} else {
			voters, err := e.agg.CountOne(ctx, tid, tenant.DatasetVoters, shard.Query{})
			if err != nil {
				return nil, err
			}
			responses, err := e.agg.CountOne(ctx, tid, tenant.DatasetSurveyResponses, shard.Query{})
			if err != nil {
				return nil, err
			}
			entry = TenantOverview{TenantID: tid, Voters: voters, Responses: responses}
		}
		overview.Tenants = append(overview.Tenants, entry)
		overview.TotalVoters += entry.Voters
		overview.TotalResponses += entry.Responses
	}

	e.cacheSet(ctx, key, overview)
	return overview, nil
}

// RecordSurveyResponse appends one survey submission to the tenant's
// partition and invalidates every cached view derived from it.
func (e *Engine) RecordSurveyResponse(ctx context.Context, caller Caller, tenantID int, resp SurveyResponse) (id.ID, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return id.Nil, err
	}

	row := shard.Row{
		"voter_id":    resp.VoterID,
		"question":    resp.Question,
		"answer":      resp.Answer,
		"agent_id":    resp.AgentID,
		"recorded_at": e.now(),
	}
	if resp.BoothID != "" {
		canon, err := e.canonicalBooth(resp.BoothID, tenantID)
		if err != nil {
			return id.Nil, err
		}
		row["booth_id"] = canon
	}
	rid := id.NewSurveyResponseID()
	row["_id"] = rid.String()

	p := e.router.Partition(tenantID, tenant.DatasetSurveyResponses)
	if err := p.Insert(ctx, row); err != nil {
		return id.Nil, fmt.Errorf("abhiyaan: record survey response: %w", err)
	}
	e.invalidateTenant(ctx, tenantID)
	return rid, nil
}

// RecordMobileAnswer appends one mobile-app submission to the tenant's
// partition and invalidates every cached view derived from it.
func (e *Engine) RecordMobileAnswer(ctx context.Context, caller Caller, tenantID int, ans MobileAnswer) (id.ID, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return id.Nil, err
	}

	row := shard.Row{
		"voter_id":      ans.VoterID,
		"question_code": ans.QuestionCode,
		"answer":        ans.Answer,
		"device_id":     ans.DeviceID,
		"recorded_at":   e.now(),
	}
	if ans.BoothID != "" {
		canon, err := e.canonicalBooth(ans.BoothID, tenantID)
		if err != nil {
			return id.Nil, err
		}
		row["booth_id"] = canon
	}
	rid := id.NewMobileAnswerID()
	row["_id"] = rid.String()

	p := e.router.Partition(tenantID, tenant.DatasetMobileAnswers)
	if err := p.Insert(ctx, row); err != nil {
		return id.Nil, fmt.Errorf("abhiyaan: record mobile answer: %w", err)
	}
	e.invalidateTenant(ctx, tenantID)
	return rid, nil
}

// RecordActivity appends one entry to the tenant's field-agent activity log.
func (e *Engine) RecordActivity(ctx context.Context, caller Caller, tenantID int, act Activity) (id.ID, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return id.Nil, err
	}

	rid := id.NewActivityID()
	row := shard.Row{
		"_id":         rid.String(),
		"agent_id":    act.AgentID,
		"kind":        act.Kind,
		"note":        act.Note,
		"recorded_at": e.now(),
	}
	p := e.router.Partition(tenantID, tenant.DatasetActivityLog)
	if err := p.Insert(ctx, row); err != nil {
		return id.Nil, fmt.Errorf("abhiyaan: record activity: %w", err)
	}
	e.invalidateTenant(ctx, tenantID)
	return rid, nil
}

// AssignBooth sets a voter's polling booth. The identifier is accepted in
// any recognized grammar and persisted in canonical form; the canonical form
// is returned.
func (e *Engine) AssignBooth(ctx context.Context, caller Caller, tenantID int, voterID, boothID string) (string, error) {
	if err := e.authorize(caller, tenantID); err != nil {
		return "", err
	}
	canon, err := e.canonicalBooth(boothID, tenantID)
	if err != nil {
		return "", err
	}

	p := e.router.Partition(tenantID, tenant.DatasetVoters)
	n, err := p.Update(ctx, map[string]any{"_id": voterID}, map[string]any{"booth_id": canon})
	if err != nil {
		return "", fmt.Errorf("abhiyaan: assign booth: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s in tenant %d", ErrVoterNotFound, voterID, tenantID)
	}
	e.invalidateTenant(ctx, tenantID)
	return canon, nil
}

// authorize is the single enforcement point for tenant isolation: it runs
// before any cache, stats, or partition access.
func (e *Engine) authorize(caller Caller, tenantID int) error {
	if !CanAccess(caller, tenantID) {
		return fmt.Errorf("%w: role %q may not touch tenant %d", ErrAccessDenied, caller.Role, tenantID)
	}
	return nil
}

func (e *Engine) canonicalBooth(boothID string, tenantID int) (string, error) {
	ref, err := booth.Parse(boothID)
	if err != nil {
		return "", err
	}
	if ref.TenantID != tenantID {
		return "", fmt.Errorf("%w: %s decodes to tenant %d, writing tenant %d",
			ErrBoothTenantMismatch, boothID, ref.TenantID, tenantID)
	}
	return ref.String(), nil
}

func (e *Engine) tenantStats(ctx context.Context, tenantID int, maxAge time.Duration) (*stats.TenantStats, bool, error) {
	if e.stats == nil {
		return nil, false, nil
	}
	return e.stats.Stats(ctx, tenantID, maxAge)
}

func (e *Engine) cacheGet(ctx context.Context, key string, maxAge time.Duration) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(ctx, key, maxAge)
}

func (e *Engine) cacheSet(ctx context.Context, key string, value any) {
	if e.cache == nil {
		return
	}
	e.cache.Set(ctx, key, value, e.config.CacheTTL)
}

// invalidateTenant removes every cached view derived from one tenant's data.
// Global views aggregate over all tenants, so they go too.
func (e *Engine) invalidateTenant(ctx context.Context, tenantID int) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidatePrefix(ctx, TenantPrefix(tenantID))
	e.cache.InvalidatePrefix(ctx, "global:")
}
