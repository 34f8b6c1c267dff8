package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(testCodec(time.Hour, 24*time.Hour), client)
}

func TestService_IssueAndRefresh(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "acct-1")
	require.NoError(t, err)

	rotated, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestService_RefreshTokenSingleUse(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "acct-1")
	require.NoError(t, err)

	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// Replay of the rotated-out token must fail.
	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	assert.Error(t, err)
}

func TestService_AccessTokenRejectedOnRefreshPath(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "acct-1")
	require.NoError(t, err)

	_, err = svc.RefreshTokens(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenWrongPurpose)
}

func TestService_RevokeAll(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	pair1, err := svc.IssueTokens(ctx, "acct-1")
	require.NoError(t, err)
	pair2, err := svc.IssueTokens(ctx, "acct-1")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "acct-1"))

	_, err = svc.RefreshTokens(ctx, pair1.RefreshToken)
	assert.Error(t, err)
	_, err = svc.RefreshTokens(ctx, pair2.RefreshToken)
	assert.Error(t, err)
}
