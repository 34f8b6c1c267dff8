package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Service issues token pairs and tracks live refresh tokens in Redis so a
// refresh token works exactly once: rotation revokes the old ID and registers
// the new one.
type Service struct {
	codec       *TokenCodec
	redisClient *redis.Client
}

func NewService(codec *TokenCodec, redisClient *redis.Client) *Service {
	return &Service{
		codec:       codec,
		redisClient: redisClient,
	}
}

func (s *Service) Codec() *TokenCodec {
	return s.codec
}

func refreshKey(accountID, tokenID string) string {
	return fmt.Sprintf("refresh:%s:%s", accountID, tokenID)
}

// IssueTokens generates an access+refresh pair and registers the refresh token.
func (s *Service) IssueTokens(ctx context.Context, accountID string) (*TokenPair, error) {
	pair, tokenID, err := s.codec.IssuePair(accountID)
	if err != nil {
		return nil, err
	}

	key := refreshKey(accountID, tokenID)
	if err := s.redisClient.Set(ctx, key, "1", s.codec.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens exchanges a refresh token for a fresh pair. The presented
// token must verify on the refresh path and still be registered; it is revoked
// before the replacement pair is issued.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, PurposeRefresh)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := refreshKey(claims.AccountID, claims.TokenID)
	exists, err := s.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}

	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}

	return s.IssueTokens(ctx, claims.AccountID)
}

// RevokeAll deletes every registered refresh token for the account.
func (s *Service) RevokeAll(ctx context.Context, accountID string) error {
	pattern := fmt.Sprintf("refresh:%s:*", accountID)
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redisClient.Del(ctx, iter.Val())
	}
	return iter.Err()
}
