package authctx

import (
	"context"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// CurrentUser is the authenticated principal. TenantID is always present;
// BranchID is set for branch-bound staff and nil for tenant-wide users.
type CurrentUser struct {
	ID       string
	Email    string
	Role     domain.UserRole
	TenantID string
	BranchID *string
}

// Scope converts the principal into the query scope every repository call
// takes. Branch-bound users get a branch-narrowed scope.
func (u CurrentUser) Scope() scope.Scope {
	if u.BranchID != nil && *u.BranchID != "" {
		return scope.ForBranch(u.TenantID, *u.BranchID)
	}
	return scope.ForTenant(u.TenantID)
}

func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func FromContext(ctx context.Context) *CurrentUser {
	val, ok := ctx.Value(userContextKey).(CurrentUser)
	if !ok {
		return nil
	}
	return &val
}
