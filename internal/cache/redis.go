package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const roleKeyPrefix = "crewhub:role:"

// RedisStore shares role answers across api replicas so a role change
// invalidated on one instance is seen by all of them.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func roleKey(userID string) string {
	return roleKeyPrefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (bool, bool, error) {
	v, err := s.rdb.Get(ctx, roleKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}

	switch v {
	case "1":
		return true, true, nil
	case "0":
		return false, true, nil
	default:
		// unknown encoding, treat as a miss
		return false, false, nil
	}
}

func (s *RedisStore) Set(ctx context.Context, userID string, isAdmin bool) error {
	v := "0"
	if isAdmin {
		v = "1"
	}
	return s.rdb.Set(ctx, roleKey(userID), v, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, roleKey(userID)).Err()
}
