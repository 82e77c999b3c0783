// Package abhiyaan provides the sharded data-access and analytics caching
// core for a constituency field-campaign platform.
//
// Every data operation is scoped to one tenant (an electoral constituency)
// and routed to that tenant's storage partition; global-scope callers fan
// out across all partitions. Expensive aggregations are kept off the request
// path by a two-tier cache: a generic TTL cache in front, and per-tenant
// materialized summary documents behind it.
//
//	eng, err := abhiyaan.NewEngine(
//	    abhiyaan.WithSource(memory.New()),
//	    abhiyaan.WithCache(cache.NewMemory()),
//	    abhiyaan.WithStatsStore(stats.NewMemoryStore()),
//	)
//	summary, err := eng.BoothSummary(ctx, abhiyaan.Caller{
//	    Role:     abhiyaan.RoleManager,
//	    TenantID: 101,
//	}, 101)
package abhiyaan

import (
	"time"

	"github.com/abhiyaanhq/abhiyaan/stats"
)

// Role identifies a caller's privilege level.
type Role string

const (
	// RoleAdmin is the campaign-wide administrator. Global scope.
	RoleAdmin Role = "admin"

	// RoleAnalyst reads campaign-wide analytics. Global scope.
	RoleAnalyst Role = "analyst"

	// RoleManager runs one constituency. Scoped to the assigned tenant.
	RoleManager Role = "manager"

	// RoleAgent is a field worker in one constituency. Scoped to the
	// assigned tenant.
	RoleAgent Role = "agent"
)

// Caller identifies who is asking. Scope is derived from it fresh on every
// request and never cached.
type Caller struct {
	Role Role

	// TenantID is the caller's assigned constituency. Ignored for
	// global-scope roles.
	TenantID int
}

// BoothSummary is the per-booth breakdown for one constituency.
type BoothSummary struct {
	TenantID   int                `json:"tenant_id"`
	Booths     []stats.BoothStats `json:"booths"`
	Totals     stats.Totals       `json:"totals"`
	ComputedAt time.Time          `json:"computed_at"`
}

// SurveyProgress reports how much of one constituency's roster has been
// surveyed.
type SurveyProgress struct {
	TenantID  int     `json:"tenant_id"`
	Voters    int64   `json:"voters"`
	Responses int64   `json:"responses"`
	Coverage  float64 `json:"coverage"`
}

// TenantOverview is one constituency's line in the campaign-wide overview.
type TenantOverview struct {
	TenantID  int   `json:"tenant_id"`
	Voters    int64 `json:"voters"`
	Responses int64 `json:"responses"`
}

// CampaignOverview is the cross-tenant rollup for global-scope dashboards.
type CampaignOverview struct {
	Tenants        []TenantOverview `json:"tenants"`
	TotalVoters    int64            `json:"total_voters"`
	TotalResponses int64            `json:"total_responses"`
}

// SurveyResponse is one field-survey submission to record.
type SurveyResponse struct {
	VoterID  string `json:"voter_id"`
	BoothID  string `json:"booth_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	AgentID  string `json:"agent_id"`
}

// MobileAnswer is one answer submitted through the mobile app. Unlike survey
// responses it carries the app's question code rather than free text.
type MobileAnswer struct {
	VoterID      string `json:"voter_id"`
	BoothID      string `json:"booth_id"`
	QuestionCode string `json:"question_code"`
	Answer       string `json:"answer"`
	DeviceID     string `json:"device_id"`
}

// Activity is one field-agent activity log entry to record.
type Activity struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Note    string `json:"note,omitempty"`
}
