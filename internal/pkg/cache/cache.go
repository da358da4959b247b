package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

// ErrMiss is returned when a key is not present in the cache.
var ErrMiss = errors.New("cache: miss")

// Cache is an injectable read-through cache with an invalidate-on-write
// contract: every writer of a cached resource must call Invalidate for the
// affected keys. Handlers receive a Cache instance instead of touching a
// process-wide store so tests can substitute a fake.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the cache server configured via CACHE_HOST/CACHE_PORT.
func NewRedisCache() Cache {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	if pong, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}

	return &redisCache{client: client}
}

// NewRedisCacheFromClient wraps an existing client, mainly for tests.
func NewRedisCacheFromClient(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (c *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Client exposes the underlying redis client for components that need more
// than the Cache contract (session storage wiring).
func (c *redisCache) Client() *redis.Client {
	return c.client
}

// ClientFrom returns the redis client backing a Cache, or nil.
func ClientFrom(c Cache) *redis.Client {
	if rc, ok := c.(*redisCache); ok {
		return rc.client
	}
	return nil
}

// Noop is a Cache that stores nothing. Used in tests and when the cache
// server is unavailable.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }
func (Noop) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}
func (Noop) Invalidate(ctx context.Context, keys ...string) error { return nil }

var defaultCache Cache

// SetupCache initializes the process-default cache connection.
func SetupCache() {
	defaultCache = NewRedisCache()
}

// Default returns the process-default cache, falling back to a Noop cache
// when SetupCache has not run (tests).
func Default() Cache {
	if defaultCache == nil {
		return Noop{}
	}
	return defaultCache
}

// UserListKey builds the cache key for a user's resource list.
func UserListKey(userID uint, resource string) string {
	return fmt.Sprintf("user:%d:%s:list", userID, resource)
}

// QuotaKey builds the cache key for a user's remaining quota snapshot.
func QuotaKey(userID uint) string {
	return fmt.Sprintf("user:%d:quotas", userID)
}
