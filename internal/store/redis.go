package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key so the store can share a Redis instance.
const keyPrefix = "carebot:"

// RedisStore keeps values as plain Redis strings. Values never expire;
// chat history is durable until the user clears it.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get retrieves the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer observe(BackendRedis, "get", time.Now())

	value, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set stores value under key with no expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	defer observe(BackendRedis, "set", time.Now())

	return s.client.Set(ctx, keyPrefix+key, value, 0).Err()
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	defer observe(BackendRedis, "remove", time.Now())

	return s.client.Del(ctx, keyPrefix+key).Err()
}
