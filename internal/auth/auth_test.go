package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/domain"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/middleware"
)

func newTestManager() *JWTManager {
	return NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

// ============================================================================
// JWT
// ============================================================================

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestManager()

	pair, err := m.GenerateTokenPair("u-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	claims, err = m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestJWTManager_SecretsAreNotInterchangeable(t *testing.T) {
	m := newTestManager()
	pair, err := m.GenerateTokenPair("u-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Expired(t *testing.T) {
	m := newTestManager()
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateAccessToken("u-1", domain.RoleUser)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsGarbageAndUnknownRole(t *testing.T) {
	m := newTestManager()

	_, err := m.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := m.GenerateAccessToken("u-1", domain.Role("root"))
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_TokenValidator(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateAccessToken("u-7", domain.RoleStaff)
	require.NoError(t, err)

	claims, err := m.TokenValidator()(token)
	require.NoError(t, err)
	assert.Equal(t, &middleware.Claims{UserID: "u-7", Role: "staff"}, claims)
}

// ============================================================================
// Password hashing
// ============================================================================

func TestHasher(t *testing.T) {
	h := NewHasher(4)

	digest, err := h.Hash("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", digest)

	ok, err := h.Compare(digest, "s3cret!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(digest, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare("not-a-bcrypt-hash", "s3cret!")
	assert.Error(t, err)
}

func TestNewHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, 10, NewHasher(0).cost)
	assert.Equal(t, 10, NewHasher(99).cost)
}

// ============================================================================
// Role gate
// ============================================================================

func TestAuthorize(t *testing.T) {
	admin := &Identity{UserID: "u-1", Role: domain.RoleAdmin}
	user := &Identity{UserID: "u-2", Role: domain.RoleUser}

	tests := []struct {
		name     string
		identity *Identity
		allowed  []domain.Role
		wantErr  error
	}{
		{"anonymous", nil, []domain.Role{domain.RoleUser}, apperrors.ErrUnauthorized},
		{"anonymous with no role set", nil, nil, apperrors.ErrUnauthorized},
		{"role allowed", admin, []domain.Role{domain.RoleAdmin}, nil},
		{"one of several", user, []domain.Role{domain.RoleUser, domain.RoleAdmin}, nil},
		{"role not allowed", user, []domain.Role{domain.RoleAdmin}, apperrors.ErrForbidden},
		{"any role", user, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.identity, tt.allowed...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIdentityFromContext(t *testing.T) {
	assert.Nil(t, IdentityFromContext(context.Background()))

	ctx := middleware.WithClaims(context.Background(), &middleware.Claims{UserID: "u-1", Role: "admin"})
	id := IdentityFromContext(ctx)
	require.NotNil(t, id)
	assert.True(t, id.IsAdmin())
	assert.True(t, id.Is("u-1"))
	assert.False(t, id.Is("u-2"))

	var anon *Identity
	assert.False(t, anon.IsAdmin())
}
