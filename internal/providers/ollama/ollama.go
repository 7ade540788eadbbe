// Package ollama adapts the canonical chat contract onto Ollama's local
// /api/chat wire format.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

const (
	defaultBaseURL = "http://localhost:11434"
	providerName   = "ollama"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Provider is the Ollama ProviderAdapter.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API root, for testing.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// New builds an Ollama adapter for the given model, served from baseURL.
func New(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: providers.ProviderTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Call(ctx context.Context, req providers.CanonicalRequest) (providers.CanonicalResponse, error) {
	if p.apiKey == "" {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Configuration, Provider: providerName, Message: "no API key configured",
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = providers.DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = providers.DefaultMaxTokens
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "marshal request", Cause: err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Transport, Provider: providerName, Message: "build request", Cause: err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return providers.CanonicalResponse{}, &providers.ProviderError{
				Tag: providers.Cancelled, Provider: providerName, Message: "request cancelled", Cause: err,
			}
		}
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Transport, Provider: providerName, Message: "request failed", Cause: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Transport, Provider: providerName,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, data),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "decode response", Cause: err,
		}
	}

	return providers.CanonicalResponse{
		Text:         cr.Message.Content,
		InputTokens:  cr.PromptEvalCount,
		OutputTokens: cr.EvalCount,
		Model:        cr.Model,
		Provider:     providerName,
	}, nil
}
