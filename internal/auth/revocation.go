package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	revokedKeyPrefix = "busticket:auth:revoked:"
	// RevocationBuffer outlives the token a little to absorb clock skew.
	RevocationBuffer = 60 * time.Second
)

// RevocationChecker reports whether a token id was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocations keeps logged out token ids until the token would have
// expired anyway.
type RedisRevocations struct {
	Client *redis.Client
	now    func() time.Time
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{Client: client, now: time.Now}
}

// Revoke blacklists tokenID until expiresAt. Already expired tokens are ignored.
func (c *RedisRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	ttl := expiresAt.Sub(c.now())
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := c.Client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl+RevocationBuffer).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

func (c *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if c.Client == nil || tokenID == "" {
		return false, nil
	}
	n, err := c.Client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
