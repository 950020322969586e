package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lo1server/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis with a key prefix so several stores can share a db.
type Client struct {
	inner  *redis.Client
	prefix string
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient dials the server from cfg and pings it.
func NewRedisClient(cfg config.RedisConfig, prefix string) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
	}
	return &Client{inner: client, prefix: prefix}, nil
}

// Key returns the prefixed key for name.
func (c *Client) Key(name string) string {
	return c.prefix + name
}

// Set stores name with ttl. A zero ttl means no expiry.
func (c *Client) Set(ctx context.Context, name string, value []byte, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, c.Key(name), value, ttl).Err()
}

// Get fetches name, returning ErrCacheMiss when absent.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	if c == nil || c.inner == nil {
		return nil, errNotInitialized
	}
	return c.inner.Get(ctx, c.Key(name)).Bytes()
}

// Del removes names. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, names ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = c.Key(n)
	}
	return c.inner.Del(ctx, keys...).Err()
}

// TTL returns the remaining lifetime of name.
func (c *Client) TTL(ctx context.Context, name string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	return c.inner.TTL(ctx, c.Key(name)).Result()
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
