package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/nulpointcorp/ai-gateway/internal/admin"
	"github.com/nulpointcorp/ai-gateway/internal/cache"
	"github.com/nulpointcorp/ai-gateway/internal/guardrails"
	"github.com/nulpointcorp/ai-gateway/internal/logger"
	"github.com/nulpointcorp/ai-gateway/internal/providers"
	"github.com/nulpointcorp/ai-gateway/internal/ratelimit"
	"github.com/nulpointcorp/ai-gateway/internal/stats"
)

type fakeAdapter struct {
	name string
	resp providers.CanonicalResponse
	err  error
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Call(_ context.Context, _ providers.CanonicalRequest) (providers.CanonicalResponse, error) {
	if f.err != nil {
		return providers.CanonicalResponse{}, f.err
	}
	return f.resp, nil
}

func newTestDispatcher(t *testing.T, adapters ...providers.ProviderAdapter) (*Dispatcher, *stats.Stats, cache.Cache) {
	t.Helper()
	reg := providers.NewRegistry(adapters...)
	c := cache.NewMemoryCache(3600)
	s := stats.New()
	l := logger.New(context.Background(), nil)
	t.Cleanup(func() { _ = l.Close() })
	st := admin.NewState(admin.Snapshot{})
	return New(reg, c, nil, s, l, nil, st), s, c
}

func TestDispatch_CacheHitPath(t *testing.T) {
	d, s, c := newTestDispatcher(t, &fakeAdapter{name: "openai"})
	resp := providers.CanonicalResponse{Text: "hi", InputTokens: 3, OutputTokens: 1, Model: "gpt-4", Provider: "openai"}
	// Dispatch looks entries up at the wall clock; seed one 500s old, well
	// inside the default TTL.
	_ = c.Store(context.Background(), cache.Key("openai", "hello"), resp, time.Now().Unix()-500)

	outcome := d.Dispatch(context.Background(), "req-1", "openai", providers.CanonicalRequest{Prompt: "hello"})
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if !outcome.FromCache {
		t.Fatal("expected cache hit")
	}
	if outcome.Response.Text != "hi" {
		t.Fatalf("unexpected response: %+v", outcome.Response)
	}

	snap := s.Snapshot()
	if snap.Requests.Total != 1 || snap.Requests.Successful != 1 || snap.Requests.CacheHits != 1 {
		t.Fatalf("unexpected stats: %+v", snap.Requests)
	}
	if snap.Tokens.TotalInput != 3 || snap.Tokens.TotalOutput != 1 {
		t.Fatalf("unexpected tokens: %+v", snap.Tokens)
	}
}

func TestDispatch_FailoverOnPrimaryTransportError(t *testing.T) {
	openai := &fakeAdapter{name: "openai", err: &providers.ProviderError{Tag: providers.Transport, Provider: "openai", Message: "boom"}}
	anthropic := &fakeAdapter{name: "anthropic", resp: providers.CanonicalResponse{Text: "ok", InputTokens: 5, OutputTokens: 2, Model: "claude-3", Provider: "anthropic"}}
	d, s, _ := newTestDispatcher(t, openai, anthropic)

	outcome := d.Dispatch(context.Background(), "req-2", "openai", providers.CanonicalRequest{Prompt: "hello"})
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Response.Provider != "anthropic" {
		t.Fatalf("expected failover to anthropic, got %+v", outcome.Response)
	}

	snap := s.Snapshot()
	if snap.Requests.ByProvider["anthropic"] != 1 {
		t.Fatalf("expected anthropic to be credited, got %+v", snap.Requests.ByProvider)
	}
}

func TestDispatch_ConfigurationErrorDoesNotFailover(t *testing.T) {
	openai := &fakeAdapter{name: "openai", err: &providers.ProviderError{Tag: providers.Configuration, Provider: "openai", Message: "no key"}}
	anthropic := &fakeAdapter{name: "anthropic", resp: providers.CanonicalResponse{Text: "ok", Provider: "anthropic"}}
	d, s, _ := newTestDispatcher(t, openai, anthropic)

	outcome := d.Dispatch(context.Background(), "req-3", "openai", providers.CanonicalRequest{Prompt: "hello"})
	if outcome.Err == nil {
		t.Fatal("expected configuration error to surface without failover")
	}
	pe, ok := outcome.Err.(*providers.ProviderError)
	if !ok || pe.Tag != providers.Configuration {
		t.Fatalf("expected a Configuration ProviderError, got %v", outcome.Err)
	}

	snap := s.Snapshot()
	if snap.Requests.Failed != 1 {
		t.Fatalf("expected one failed request, got %+v", snap.Requests)
	}
}

func TestDispatch_GuardrailRejectionSurfacesWithoutOtherProvider(t *testing.T) {
	openai := &fakeAdapter{name: "openai", resp: providers.CanonicalResponse{Text: "this is Forbidden content", Provider: "openai"}}
	d, s, _ := newTestDispatcher(t, openai)

	st := admin.NewState(admin.Snapshot{Guardrails: guardrails.Config{MaxLength: 1000, BannedPhrases: []string{"forbidden"}}})
	d.admin = st

	outcome := d.Dispatch(context.Background(), "req-4", "openai", providers.CanonicalRequest{Prompt: "hello"})
	if outcome.Err == nil {
		t.Fatal("expected guardrail rejection to surface as an error when no other provider is enabled")
	}
	pe, ok := outcome.Err.(*providers.ProviderError)
	if !ok || pe.Tag != providers.Guardrail {
		t.Fatalf("expected a Guardrail ProviderError, got %v", outcome.Err)
	}

	snap := s.Snapshot()
	if snap.Requests.Failed != 1 {
		t.Fatalf("expected failure bookkeeping, got %+v", snap.Requests)
	}
	if len(snap.Errors.RecentErrors) == 0 {
		t.Fatal("expected a recorded recent error")
	}
}

func TestAdmit_NoPlanAlwaysAllows(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &fakeAdapter{name: "openai"})
	decision := d.Admit("1.2.3.4", time.Now())
	if decision.Applicable {
		t.Fatal("expected no rate-limit decision when no plan is configured")
	}
}

func TestAdmit_DeniesOverLimit(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &fakeAdapter{name: "openai"})
	limiter := ratelimit.NewMemoryLimiter()
	limiter.SetPlan(&ratelimit.Plan{RequestsPerWindow: 1, WindowSeconds: 60})
	d.limiter = limiter

	first := d.Admit("1.2.3.4", time.Now())
	if !first.Allowed {
		t.Fatal("expected first request to be admitted")
	}
	second := d.Admit("1.2.3.4", time.Now())
	if second.Allowed {
		t.Fatal("expected second request to be denied")
	}
}
