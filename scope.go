package abhiyaan

import "github.com/abhiyaanhq/abhiyaan/tenant"

// ScopeKind is the shape of a caller's resolved tenant scope.
type ScopeKind int

const (
	// ScopeDenied means the caller may touch no tenant at all.
	ScopeDenied ScopeKind = iota

	// ScopeSingle means the caller may touch exactly their assigned tenant.
	ScopeSingle

	// ScopeAll means the caller may touch every tenant in the registry.
	ScopeAll
)

// Scope is a caller's resolved tenant scope. It is computed fresh per
// request and consumed uniformly by every data-access call: the engine is
// the single enforcement point, and no request reaches the shard router
// with an unchecked tenant id.
type Scope struct {
	Kind ScopeKind

	// TenantID is set only for ScopeSingle.
	TenantID int
}

// ResolveScope derives the caller's scope from role and assigned tenant.
// A caller with a fixed assignment may access only that tenant, regardless
// of what tenant id appears in the request.
func ResolveScope(c Caller) Scope {
	switch c.Role {
	case RoleAdmin, RoleAnalyst:
		return Scope{Kind: ScopeAll}
	case RoleManager, RoleAgent:
		if !tenant.IsValid(c.TenantID) {
			return Scope{Kind: ScopeDenied}
		}
		return Scope{Kind: ScopeSingle, TenantID: c.TenantID}
	default:
		return Scope{Kind: ScopeDenied}
	}
}

// CanAccess reports whether the scope permits touching tenantID.
func (s Scope) CanAccess(tenantID int) bool {
	switch s.Kind {
	case ScopeAll:
		return tenant.IsValid(tenantID)
	case ScopeSingle:
		return s.TenantID == tenantID
	default:
		return false
	}
}

// CanAccess is the package-level convenience form of Scope.CanAccess.
func CanAccess(c Caller, tenantID int) bool {
	return ResolveScope(c).CanAccess(tenantID)
}
