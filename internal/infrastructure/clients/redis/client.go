package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/delivevent/marketplace/backend/pkg/config"
)

const defaultTimeout = 3 * time.Second

// Client owns the connection pool shared by the HTTP cache, the history
// store and the event bus.
type Client struct {
	client    *redis.Client
	namespace string
}

// NewClient connects and pings once. Callers treat an error as "run without Redis".
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := options(cfg)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return &Client{client: client, namespace: cfg.Namespace}, nil
}

// Wrap adopts an existing go-redis client without pinging it.
func Wrap(client *redis.Client, namespace string) *Client {
	return &Client{client: client, namespace: namespace}
}

func options(cfg *config.RedisConfig) *redis.Options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Key prefixes key with the configured namespace.
func (c *Client) Key(key string) string {
	return c.namespace + key
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
