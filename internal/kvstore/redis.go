package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dialer:collection:"

// RedisStore persists collections as plain Redis string values.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store from a redis:// URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opt)}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the collection's document, or nil if it was never written.
func (s *RedisStore) Get(ctx context.Context, collection string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+collection).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", collection, err)
	}
	return data, nil
}

// Set replaces the collection's document.
func (s *RedisStore) Set(ctx context.Context, collection string, data []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+collection, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set collection %s: %w", collection, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
