package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nulpointcorp/ai-gateway/internal/stats"
)

func TestRegistry_SyncReflectsStatsSnapshot(t *testing.T) {
	s := stats.New()
	s.RecordSuccess("openai", 10, 20)
	s.RecordCacheHit("openai", 1, 2)
	s.RecordFailure("anthropic", "transport", "boom")

	r := New()
	r.Sync(s.Snapshot())

	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("openai")); got != 2 {
		t.Fatalf("expected openai requests=2, got %v", got)
	}
	if got := testutil.ToFloat64(r.cacheHits); got != 1 {
		t.Fatalf("expected cacheHits=1, got %v", got)
	}
	if got := testutil.ToFloat64(r.providerErrors.WithLabelValues("anthropic")); got != 1 {
		t.Fatalf("expected anthropic errors=1, got %v", got)
	}
}

func TestRegistry_RecordFailoverAndRateLimit(t *testing.T) {
	r := New()
	r.RecordFailover("openai", "anthropic")
	r.RecordFailoverExhausted("openai")
	r.RecordRateLimit("denied")

	if got := testutil.ToFloat64(r.failoverEvents.WithLabelValues("openai", "anthropic")); got != 1 {
		t.Fatalf("expected one failover event, got %v", got)
	}
	if got := testutil.ToFloat64(r.failoverExhausted.WithLabelValues("openai")); got != 1 {
		t.Fatalf("expected one exhausted event, got %v", got)
	}
	if got := testutil.ToFloat64(r.rateLimitTotal.WithLabelValues("denied")); got != 1 {
		t.Fatalf("expected one denied decision, got %v", got)
	}
}

func TestRegistry_HandlerServesExposition(t *testing.T) {
	r := New()
	r.SetBuildInfo("test")
	if r.Handler() == nil {
		t.Fatal("expected a non-nil fasthttp handler")
	}
	// SetBuildInfo should be visible via the standard text exposition format
	// when scraped; we only assert the metric is registered here.
	mfs, err := r.PromRegistry().Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if strings.Contains(mf.GetName(), "gateway_build_info") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected gateway_build_info to be registered")
	}
}
