// Package openai adapts the canonical chat contract onto OpenAI's
// /v1/chat/completions wire format.
package openai

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
	defaultBaseURL = "https://api.openai.com"
	providerName   = "openai"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Message *chatMessage `json:"message,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Provider is the OpenAI ProviderAdapter.
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

// New builds an OpenAI adapter for the given API key and model.
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

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "marshal request", Cause: err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Transport, Provider: providerName, Message: "build request", Cause: err,
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	text := ""
	if len(cr.Choices) > 0 && cr.Choices[0].Message != nil {
		text = cr.Choices[0].Message.Content
	}

	return providers.CanonicalResponse{
		Text:         text,
		InputTokens:  cr.Usage.PromptTokens,
		OutputTokens: cr.Usage.CompletionTokens,
		Model:        cr.Model,
		Provider:     providerName,
	}, nil
}

func (p *Provider) buildRequest(req providers.CanonicalRequest) chatRequest {
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

	return chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}
