// Package gemini adapts the canonical chat contract onto a
// chat-completions-shaped Gemini wire format, keyed on the ":chatCompletions"
// endpoint suffix rather than the SDK's native call shape, so it fits the
// same raw-HTTP recipe as every other adapter.
package gemini

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
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro"
	providerName   = "gemini"
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
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message *chatMessage `json:"message,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Provider is the Gemini ProviderAdapter.
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

// New builds a Gemini adapter for the given API key and model.
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
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "marshal request", Cause: err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/:chatCompletions", bytes.NewReader(body))
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

	result := providers.CanonicalResponse{
		Text:     text,
		Model:    cr.Model,
		Provider: providerName,
	}
	if cr.Usage != nil {
		result.InputTokens = cr.Usage.PromptTokens
		result.OutputTokens = cr.Usage.CompletionTokens
	}
	return result, nil
}
