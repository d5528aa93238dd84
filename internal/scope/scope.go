// Package scope carries the tenant (and optionally branch) identity that
// every core read and write must be restricted to. The scope is built once
// per request from the authenticated principal and passed explicitly into
// repository calls; there is no ambient tenant state to forget or bypass,
// and no scope value that skips the tenant predicate.
package scope

import "log/slog"

// Scope restricts queries to one tenant, and optionally to one branch for
// branch-bound entities. The zero value is unusable by design: repositories
// reject an empty TenantID before touching the database.
type Scope struct {
	TenantID string
	BranchID *string

	// operator marks a privileged scope constructed by jobs or admin
	// paths. It widens nothing; it only records that the caller is not a
	// request principal.
	operator bool
}

// ForTenant returns a tenant-wide scope with no branch restriction.
func ForTenant(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}

// ForBranch returns a scope narrowed to one branch of the tenant.
func ForBranch(tenantID, branchID string) Scope {
	return Scope{TenantID: tenantID, BranchID: &branchID}
}

// Operator returns a tenant-bound scope for privileged administrative code
// paths. Construction is logged with the reason so the override is
// auditable; the tenant predicate still applies to every query made with it.
func Operator(logger *slog.Logger, tenantID, reason string) Scope {
	if logger != nil {
		logger.Info("operator scope constructed", "tenant_id", tenantID, "reason", reason)
	}
	return Scope{TenantID: tenantID, operator: true}
}

// Valid reports whether the scope can be used at all.
func (s Scope) Valid() bool { return s.TenantID != "" }

// IsOperator reports whether the scope came from a privileged path.
func (s Scope) IsOperator() bool { return s.operator }

// BranchBound reports whether reads of branch-owned entities must also
// match the branch.
func (s Scope) BranchBound() bool { return s.BranchID != nil && *s.BranchID != "" }

// Owns re-validates a fetched row against the scope. Repositories filter by
// tenant in SQL already; this is the belt-and-braces check for privileged
// lookups that fetch by fixed identifier.
func (s Scope) Owns(tenantID string) bool {
	return s.Valid() && s.TenantID == tenantID
}
