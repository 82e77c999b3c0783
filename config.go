package abhiyaan

import "time"

// Config holds freshness and caching policy for the engine. Every consumer
// of the precomputed stats tier reads with an explicit freshness bound from
// here; there is no system-wide default that silently applies.
type Config struct {
	// CacheTTL is the time-to-live for entries the engine writes back to
	// the cache.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// DashboardMaxAge bounds staleness for frequently-changing views
	// (counts, survey progress).
	DashboardMaxAge time.Duration `json:"dashboard_max_age,omitempty"`

	// BoothListMaxAge bounds staleness for booth-listing views, which
	// change rarely and tolerate a wide window.
	BoothListMaxAge time.Duration `json:"booth_list_max_age,omitempty"`

	// OverviewMaxAge bounds staleness for the campaign-wide overview.
	OverviewMaxAge time.Duration `json:"overview_max_age,omitempty"`
}

// DefaultConfig returns a Config with the standard freshness windows.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        10 * time.Minute,
		DashboardMaxAge: 10 * time.Minute,
		BoothListMaxAge: 60 * time.Minute,
		OverviewMaxAge:  15 * time.Minute,
	}
}
