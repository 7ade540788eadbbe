// Package anthropic adapts the canonical chat contract onto Anthropic's
// /v1/messages wire format.
package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com"
	providerName     = "anthropic"
	anthropicVersion = "2023-06-01"
)

type messagesRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	System      string       `json:"system,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string        `json:"model"`
	Content []contentItem `json:"content"`
	Usage   usage         `json:"usage"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is the Anthropic ProviderAdapter.
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

// New builds an Anthropic adapter for the given API key and model.
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

	body, err := json.Marshal(messagesRequest{
		Model:       p.model,
		Messages:    []apiMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "marshal request", Cause: err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Transport, Provider: providerName, Message: "build request", Cause: err,
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
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

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag: providers.Decode, Provider: providerName, Message: "decode response", Cause: err,
		}
	}

	text := ""
	if len(mr.Content) > 0 {
		text = mr.Content[0].Text
	}

	return providers.CanonicalResponse{
		Text:         text,
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
		Model:        mr.Model,
		Provider:     providerName,
	}, nil
}
