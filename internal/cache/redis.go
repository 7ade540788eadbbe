package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

const defaultQueryTimeout = 500 * time.Millisecond

// RedisCache is an optional distributed implementation of Cache, for
// deployments running more than one gateway instance against a shared
// store. It degrades gracefully: Store never fails the caller even when
// Redis is unreachable, matching the graceful-degradation contract the
// reference exact-match cache used.
//
// Redis' own key expiry means RedisCache cannot distinguish ExpiredMiss from
// Miss the way MemoryCache can (the key is simply gone once Redis evicts
// it) — every non-hit is reported as Miss.
type RedisCache struct {
	client       *redis.Client
	ttl          time.Duration
	queryTimeout time.Duration
}

// NewRedisCacheFromClient wraps an existing client. The caller owns the
// client's lifecycle.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, queryTimeout: defaultQueryTimeout}
}

// NewRedisCacheFromURL parses redisURL, connects, and verifies reachability
// with a PING before returning.
func NewRedisCacheFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}

	cli := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	return &RedisCache{client: cli, ttl: ttl, queryTimeout: defaultQueryTimeout}, nil
}

func (c *RedisCache) Lookup(ctx context.Context, key string, _ int64) (providers.CanonicalResponse, Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "cache_get_error", slog.String("key", key), slog.String("error", err.Error()))
		}
		return providers.CanonicalResponse{}, Miss, nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return providers.CanonicalResponse{}, Miss, nil
	}
	return entry.Response, Hit, nil
}

func (c *RedisCache) Store(ctx context.Context, key string, resp providers.CanonicalResponse, now int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	data, err := json.Marshal(Entry{Response: resp, TimestampSeconds: now})
	if err != nil {
		slog.WarnContext(ctx, "cache_marshal_error", slog.String("key", key), slog.String("error", err.Error()))
		return nil // never fail the caller on a marshal error; log only
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache_set_error", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.FlushDB(ctx).Err()
}

func (c *RedisCache) Snapshot(ctx context.Context) (map[string]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	keys, err := c.client.Keys(ctx, "*").Result()
	if err != nil {
		return nil, fmt.Errorf("cache: keys: %w", err)
	}

	out := make(map[string]Entry, len(keys))
	for _, k := range keys {
		raw, err := c.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var entry Entry
		if json.Unmarshal(raw, &entry) == nil {
			out[k] = entry
		}
	}
	return out, nil
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
