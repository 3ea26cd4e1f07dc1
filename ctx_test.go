package users_test

import (
	"context"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext(t *testing.T) {
	user := newTestUser()

	ctx := users.WithContext(context.Background(), user)
	got, ok := users.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)

	_, ok = users.FromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContext(t *testing.T) {
	tokens := users.NewTokenService(newTestConfig(), nil)
	raw, err := tokens.SignAccess(newTestUser())
	require.NoError(t, err)
	claims, err := tokens.Validate(raw)
	require.NoError(t, err)

	ctx := users.WithClaimsContext(context.Background(), claims)
	got, ok := users.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, claims.UserID(), got.UserID())

	_, ok = users.GetClaims(context.Background())
	assert.False(t, ok)
}
