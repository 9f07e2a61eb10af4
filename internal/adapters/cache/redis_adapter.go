package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	redisclient "github.com/delivevent/marketplace/backend/internal/infrastructure/clients/redis"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

// RedisAdapter stores HTTP responses and geocoder results under the client's namespace.
// A zero ttl falls back to defaultTTL so no entry lives forever.
type RedisAdapter struct {
	client     *redisclient.Client
	defaultTTL time.Duration
}

var _ providers.CacheProvider = (*RedisAdapter)(nil)

// NewRedisAdapter creates a cache on client
func NewRedisAdapter(client *redisclient.Client, defaultTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, defaultTTL: defaultTTL}
}

// Get returns providers.ErrCacheMiss for unknown or expired keys.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := a.client.Client().Get(ctx, a.client.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, providers.ErrCacheMiss
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read cache entry", err)
	}
	return value, nil
}

// Set stores value for ttl, or for the default ttl when ttl is zero.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.client.Client().Set(ctx, a.client.Key(key), value, a.expiry(ttl)).Err(); err != nil {
		return apperrors.NewExternalError("failed to write cache entry", err)
	}
	return nil
}

// Delete removes key
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, a.client.Key(key)).Err(); err != nil {
		return apperrors.NewExternalError("failed to delete cache entry", err)
	}
	return nil
}

func (a *RedisAdapter) expiry(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return a.defaultTTL
}
