package cache

import (
	"context"
	"testing"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(60)
	ctx := context.Background()
	resp := providers.CanonicalResponse{Text: "hi", Provider: "openai"}

	if err := c.Store(ctx, "openai:hello", resp, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, result, err := c.Lookup(ctx, "openai:hello", 59)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Hit {
		t.Fatalf("expected Hit at d=59 < ttl=60, got %v", result)
	}
	if got != resp {
		t.Fatalf("expected %+v, got %+v", resp, got)
	}
}

func TestMemoryCache_ExpiresAndRemovesEntry(t *testing.T) {
	c := NewMemoryCache(60)
	ctx := context.Background()
	_ = c.Store(ctx, "k", providers.CanonicalResponse{}, 0)

	_, result, _ := c.Lookup(ctx, "k", 60)
	if result != ExpiredMiss {
		t.Fatalf("expected ExpiredMiss at d=60 >= ttl=60, got %v", result)
	}

	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be removed, Len()=%d", c.Len())
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(60)
	_, result, _ := c.Lookup(context.Background(), "absent", 0)
	if result != Miss {
		t.Fatalf("expected Miss, got %v", result)
	}
}

func TestMemoryCache_StoreOverwrites(t *testing.T) {
	c := NewMemoryCache(60)
	ctx := context.Background()
	_ = c.Store(ctx, "k", providers.CanonicalResponse{Text: "first"}, 0)
	_ = c.Store(ctx, "k", providers.CanonicalResponse{Text: "second"}, 0)

	got, result, _ := c.Lookup(ctx, "k", 0)
	if result != Hit || got.Text != "second" {
		t.Fatalf("expected unconditional overwrite, got %+v (%v)", got, result)
	}
}

func TestMemoryCache_ClearAndSnapshot(t *testing.T) {
	c := NewMemoryCache(60)
	ctx := context.Background()
	_ = c.Store(ctx, "a", providers.CanonicalResponse{}, 0)
	_ = c.Store(ctx, "b", providers.CanonicalResponse{}, 0)

	snap, _ := c.Snapshot(ctx)
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries in snapshot, got %d", len(snap))
	}

	_ = c.Clear(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected cache to be empty after Clear, got %d", c.Len())
	}
}

func TestKey(t *testing.T) {
	if got := Key("openai", "hello"); got != "openai:hello" {
		t.Fatalf("expected 'openai:hello', got %q", got)
	}
}
