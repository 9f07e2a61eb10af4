package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	redisclient "github.com/delivevent/marketplace/backend/internal/infrastructure/clients/redis"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

// RedisStore persists values in Redis. Keys expire after ttl of inactivity; zero keeps them forever.
type RedisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

var _ providers.KeyValueStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get returns the value stored under key
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Client().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", providers.ErrKeyNotFound
	}
	if err != nil {
		return "", apperrors.NewExternalError("failed to read key from redis", err)
	}
	return value, nil
}

// Set stores value under key
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Client().Set(ctx, key, value, s.ttl).Err(); err != nil {
		return apperrors.NewExternalError("failed to write key to redis", err)
	}
	return nil
}

// Remove deletes key
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Client().Del(ctx, key).Err(); err != nil {
		return apperrors.NewExternalError("failed to remove key from redis", err)
	}
	return nil
}
