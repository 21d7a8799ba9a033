// Package identity carries the acting user through a request.
package identity

import (
	"context"

	"librarydesk/internal/apperr"
)

const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleMember    = "member"
)

// Principal is the caller as established by the transport's authentication.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsStaff is true for roles allowed to run the circulation desk.
func (p Principal) IsStaff() bool { return p.Role == RoleAdmin || p.Role == RoleLibrarian }

// Owns reports whether the principal is the given user.
func (p Principal) Owns(userID string) bool { return p.UserID != "" && p.UserID == userID }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(ctxKey{}).(Principal)
	return p
}

// ErrForbidden is returned by RequireOwnerOrAdmin.
var ErrForbidden = apperr.Forbidden("FORBIDDEN", "insufficient permissions")

// RequireOwnerOrAdmin allows admins and the user identified by userID.
func RequireOwnerOrAdmin(p Principal, userID string) error {
	if p.IsAdmin() || p.Owns(userID) {
		return nil
	}
	return ErrForbidden
}
