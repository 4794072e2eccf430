package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kader009/trustedge-backend/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// AccessTokenCookie is the cookie browsers send the access token in.
const AccessTokenCookie = "accessToken"

// Claims represents the verified token claims stored in the request context.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// TokenValidator validates an access token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth rejects requests without a valid access token with 401 and stores the
// claims in the context otherwise.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != "" {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", err)
				return
			}

			claims, verr := validate(token)
			if verr != nil {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously. An invalid token is treated as
// absent.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, errMsg := tokenFromRequest(r); errMsg == "" {
				if claims, err := validate(token); err == nil {
					r = r.WithContext(withClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth or OptionalAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext extracts the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

// RoleFromContext extracts the authenticated role, if any.
func RoleFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Role
	}
	return ""
}

// WithClaims returns a context carrying claims. Handlers under test use it to
// simulate an authenticated request.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return withClaims(ctx, claims)
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return logger.WithUserID(ctx, claims.UserID)
}

// tokenFromRequest reads a bearer token from the Authorization header,
// falling back to the access token cookie. The second return value is a
// client facing reason when no usable token was found.
func tokenFromRequest(r *http.Request) (string, string) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", "invalid authorization header format"
		}
		return strings.TrimSpace(parts[1]), ""
	}

	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, ""
	}

	return "", "authentication required"
}
