package apierr

import (
	"encoding/json"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

func TestWriteRateLimit(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	WriteRateLimit(ctx, 100, 0, 42)

	if ctx.Response.StatusCode() != fasthttp.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek("RateLimit-Remaining")); got != "0" {
		t.Fatalf("expected RateLimit-Remaining=0, got %q", got)
	}

	var body rateLimitEnvelope
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Limit != 100 || body.Reset != 42 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWriteProviderError_ConfigurationIs500(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	WriteProviderError(ctx, &providers.ProviderError{Tag: providers.Configuration, Message: "no key"})
	if ctx.Response.StatusCode() != fasthttp.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", ctx.Response.StatusCode())
	}
}

func TestWriteProviderError_TransportIs502(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	WriteProviderError(ctx, &providers.ProviderError{Tag: providers.Transport, Message: "boom"})
	if ctx.Response.StatusCode() != fasthttp.StatusBadGateway {
		t.Fatalf("expected 502, got %d", ctx.Response.StatusCode())
	}
}

func TestWriteProviderError_TimeoutIs504(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	WriteProviderError(ctx, &providers.ProviderError{Tag: providers.Timeout, Message: "slow"})
	if ctx.Response.StatusCode() != fasthttp.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", ctx.Response.StatusCode())
	}
}
