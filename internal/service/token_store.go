package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RedisTokenStore records revoked JWT IDs in Redis. Entries carry the
// remaining lifetime of the token as TTL, so the set cleans itself up.
type RedisTokenStore struct {
	rdb *redis.Client
}

// NewRedisTokenStore creates a new RedisTokenStore
func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

// Revoke marks a token ID as revoked until its natural expiry
func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether a token ID has been revoked
func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.rdb.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
