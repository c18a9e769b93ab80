package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "psy:revoked:"

// redisRevoker stores revoked token IDs in Redis with a TTL, so revocation
// holds across instances and restarts.
type redisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker returns a TokenRevoker backed by the given Redis client.
func NewRedisRevoker(client *redis.Client) TokenRevoker {
	return &redisRevoker{client: client}
}

func (r *redisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

func (r *redisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
