package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

func TestProvider_Name(t *testing.T) {
	p := New("key", "gpt-4o")
	if p.Name() != "openai" {
		t.Fatalf("expected 'openai', got %q", p.Name())
	}
}

func TestProvider_Call_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		msgs := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("expected system+user messages, got %d", len(msgs))
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello there"}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2},
		})
	}))
	defer srv.Close()

	p := New("test-key", "gpt-4o", WithBaseURL(srv.URL))
	resp, err := p.Call(context.Background(), providers.CanonicalRequest{
		Prompt: "hi", SystemPrompt: "be nice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hello there" || resp.InputTokens != 3 || resp.OutputTokens != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Provider != "openai" {
		t.Fatalf("expected provider 'openai', got %q", resp.Provider)
	}
}

func TestProvider_Call_EmptyAPIKeyIsConfigurationError(t *testing.T) {
	p := New("", "gpt-4o")
	_, err := p.Call(context.Background(), providers.CanonicalRequest{Prompt: "hi"})

	var pe *providers.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Tag != providers.Configuration {
		t.Fatalf("expected Configuration tag, got %v", pe.Tag)
	}
	if pe.Failover() {
		t.Fatal("configuration errors must not trigger failover")
	}
}

func TestProvider_Call_NonOKStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	p := New("key", "gpt-4o", WithBaseURL(srv.URL))
	_, err := p.Call(context.Background(), providers.CanonicalRequest{Prompt: "hi"})

	var pe *providers.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Tag != providers.Transport {
		t.Fatalf("expected Transport tag, got %v", pe.Tag)
	}
	if !pe.Failover() {
		t.Fatal("transport errors must trigger failover")
	}
}

func TestProvider_Call_MalformedJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := New("key", "gpt-4o", WithBaseURL(srv.URL))
	_, err := p.Call(context.Background(), providers.CanonicalRequest{Prompt: "hi"})

	var pe *providers.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Tag != providers.Decode {
		t.Fatalf("expected Decode tag, got %v", pe.Tag)
	}
}
