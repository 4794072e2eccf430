// Package auth holds token handling, password hashing and the role gate.
package auth

import (
	"context"

	"github.com/kader009/trustedge-backend/internal/domain"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/middleware"
)

// Identity is a verified caller.
type Identity struct {
	UserID string
	Role   domain.Role
}

// IsAdmin reports whether the caller has the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == domain.RoleAdmin
}

// Is reports whether the caller is the given user.
func (i *Identity) Is(userID string) bool {
	return i != nil && i.UserID == userID
}

// Authorize passes when identity is present and its role is one of allowed.
// A missing identity fails with 401 before the role is looked at; a role
// outside the set fails with 403. An empty allowed set admits any role.
func Authorize(identity *Identity, allowed ...domain.Role) error {
	if identity == nil || identity.UserID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden("you do not have permission to perform this action")
}

// IdentityFromContext returns the caller verified by the auth middleware, or
// nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return &Identity{UserID: claims.UserID, Role: domain.Role(claims.Role)}
}
