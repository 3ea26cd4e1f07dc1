package users_test

import (
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser() *users.User {
	return &users.User{
		ID:    uuid.New(),
		Email: "ann@test.com",
		Name:  "Ann",
		Type:  users.TypeNormal,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)
	user := newTestUser()

	raw, err := tokens.SignAccess(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := tokens.Validate(raw)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, user.Email, claims.Subject())
	assert.Equal(t, user.Email, claims.UserEmail())
	assert.Equal(t, users.TypeNormal, claims.UserType())
	assert.Equal(t, users.TokenKindAccess, claims.Kind())
	assert.False(t, claims.IsElevated())
}

func TestAdminClaimsAreElevated(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)
	user := newTestUser()
	user.Type = users.TypeAdmin

	raw, err := tokens.SignAccess(user)
	require.NoError(t, err)

	claims, err := tokens.Validate(raw)
	require.NoError(t, err)
	assert.True(t, claims.IsElevated())
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)
	user := newTestUser()

	refresh, err := tokens.SignRefresh(user)
	require.NoError(t, err)

	t.Run("accepted as refresh", func(t *testing.T) {
		claims, err := tokens.ValidateRefresh(refresh)
		require.NoError(t, err)
		assert.Equal(t, users.TokenKindRefresh, claims.Kind())
	})

	t.Run("rejected as access", func(t *testing.T) {
		_, err := tokens.Validate(refresh)
		require.Error(t, err)
		assert.True(t, users.IsMalformedError(err))
	})
}

func TestVerificationTokenRoundTrip(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)

	raw, err := tokens.SignVerification("pending@test.com")
	require.NoError(t, err)

	claims, err := tokens.ValidateVerification(raw)
	require.NoError(t, err)
	assert.Equal(t, "pending@test.com", claims.Subject())
	assert.Equal(t, users.TokenKindVerification, claims.Kind())

	t.Run("rejected as access", func(t *testing.T) {
		_, err := tokens.Validate(raw)
		require.Error(t, err)
	})
}

func TestExpiredTokenValidation(t *testing.T) {
	cfg := newTestConfig()
	cfg.accessTTL = -10
	tokens := users.NewTokenService(cfg, nil)

	raw, err := tokens.SignAccess(newTestUser())
	require.NoError(t, err)

	_, err = tokens.Validate(raw)
	require.Error(t, err)
	assert.True(t, users.IsTokenExpiredError(err))
	assert.ErrorIs(t, err, users.ErrTokenExpired)
}

func TestMalformedTokenValidation(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"truncated", "eyJhbGciOiJIUzI1NiJ9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tokens.Validate(tc.token)
			require.Error(t, err)
			assert.True(t, users.IsMalformedError(err))
		})
	}
}

func TestRefreshUsesItsOwnSigningKey(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)
	user := newTestUser()

	access, err := tokens.SignAccess(user)
	require.NoError(t, err)

	// access tokens are signed with a different key, so the refresh
	// validator must not accept them even before the kind check runs
	_, err = tokens.ValidateRefresh(access)
	require.Error(t, err)
}
