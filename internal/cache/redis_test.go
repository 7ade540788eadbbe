package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheFromClient(client, time.Minute), mr
}

func TestRedisCache_StoreAndLookup(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	resp := providers.CanonicalResponse{Text: "hi", Provider: "anthropic"}

	if err := c.Store(ctx, "anthropic:hello", resp, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, result, err := c.Lookup(ctx, "anthropic:hello", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Hit {
		t.Fatalf("expected Hit, got %v", result)
	}
	if got != resp {
		t.Fatalf("expected %+v, got %+v", resp, got)
	}
}

func TestRedisCache_MissOnAbsentKey(t *testing.T) {
	c, _ := newTestRedisCache(t)
	_, result, err := c.Lookup(context.Background(), "absent", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Miss {
		t.Fatalf("expected Miss, got %v", result)
	}
}

func TestRedisCache_NativeExpiryReportsAsMiss(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()
	_ = c.Store(ctx, "k", providers.CanonicalResponse{}, 0)

	mr.FastForward(2 * time.Minute)

	_, result, err := c.Lookup(ctx, "k", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Miss {
		t.Fatalf("expected Miss once Redis evicts the key, got %v", result)
	}
}

func TestRedisCache_ClearAndSnapshot(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	_ = c.Store(ctx, "a", providers.CanonicalResponse{Text: "one"}, 0)
	_ = c.Store(ctx, "b", providers.CanonicalResponse{Text: "two"}, 0)

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ = c.Snapshot(ctx)
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot after Clear, got %d", len(snap))
	}
}

func TestRedisCache_StoreDegradesGracefullyWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	c := NewRedisCacheFromClient(client, time.Minute)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Store(ctx, "k", providers.CanonicalResponse{}, 0); err != nil {
		t.Fatalf("Store must not fail the caller when redis is unreachable: %v", err)
	}
}
