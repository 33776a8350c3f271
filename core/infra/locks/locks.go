// Package locks provides TTL locks used to serialize deploy finalization
// per staging directory across gateway replicas.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jarvault/jarvault/core/infra/redisutil"
)

const (
	defaultTTL    = 30 * time.Second
	lockKeyPrefix = "jarvault:lock:"
)

// Store acquires and releases exclusive named locks.
type Store interface {
	TryAcquire(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, resource string) error
}

// RedisStore implements Store with SETNX + TTL.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a Redis-backed lock store.
func NewRedisStore(url string) (*RedisStore, error) {
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("lock store unavailable")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+resource, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, resource string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("lock store unavailable")
	}
	return s.client.Del(ctx, lockKeyPrefix+resource).Err()
}
