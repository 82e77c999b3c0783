package abhiyaan

import "fmt"

// Cache keys are colon-delimited strings encoding scope:
//
//	tenant:<id>:report:<name>   one tenant's derived view
//	global:<name>               a cross-tenant view
//
// Writers invalidate with TenantPrefix so every cached view derived from a
// mutated constituency becomes unreachable at once.

// TenantReportKey returns the cache key for one tenant's derived report.
func TenantReportKey(tenantID int, name string) string {
	return fmt.Sprintf("tenant:%d:report:%s", tenantID, name)
}

// TenantPrefix returns the prefix covering every cache entry derived from one
// tenant's data.
func TenantPrefix(tenantID int) string {
	return fmt.Sprintf("tenant:%d:", tenantID)
}

// GlobalKey returns the cache key for a cross-tenant view.
func GlobalKey(name string) string {
	return "global:" + name
}
