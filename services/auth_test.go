package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardapp/models"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	auth := NewAuth("secret", time.Hour)

	token, err := auth.IssueToken("alice")
	require.NoError(t, err)

	subject, expires, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)
}

func TestAuthExpiredToken(t *testing.T) {
	auth := NewAuth("secret", -time.Minute)

	token, err := auth.IssueToken("alice")
	require.NoError(t, err)

	_, _, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthWrongSecret(t *testing.T) {
	token, err := NewAuth("secret", time.Hour).IssueToken("alice")
	require.NoError(t, err)

	_, _, err = NewAuth("other", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, _, err = NewAuth("secret", time.Hour).ParseToken("not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestMemoryBlacklist(t *testing.T) {
	ctx := context.Background()
	bl := NewMemoryBlacklist()

	revoked, err := bl.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "tok", time.Minute))
	revoked, err = bl.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
}
