package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
	"github.com/nulpointcorp/ai-gateway/pkg/apierr"
)

const headerProvider = "x-llm-provider"

type chatRequestBody struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

type chatResponseBody struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
}

// Handler is the fasthttp handler for the data-plane listener's routes.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler builds a data-plane Handler over the given Dispatcher.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Chat handles POST /chat.
func (h *Handler) Chat(ctx *fasthttp.RequestCtx) {
	requestID := NewRequestID()
	ctx.Response.Header.Set("X-Request-ID", requestID)

	primary := string(ctx.Request.Header.Peek(headerProvider))
	if primary == "" {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "missing x-llm-provider header", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	var body chatRequestBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	if body.Prompt == "" {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "field 'prompt' is required", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	ip := clientIP(ctx)
	decision := h.dispatcher.Admit(ip, time.Now())
	if decision.Applicable && !decision.Allowed {
		apierr.WriteRateLimit(ctx, decision.Limit, decision.Remaining, decision.Reset)
		return
	}

	req := providers.CanonicalRequest{Prompt: body.Prompt}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
	}
	if body.MaxTokens != nil {
		req.MaxTokens = *body.MaxTokens
	}

	outcome := h.dispatcher.Dispatch(ctx, requestID, primary, req)
	if decision.Applicable {
		apierr.SetRateLimitHeaders(ctx, decision.Limit, decision.Remaining, decision.Reset)
	}

	if outcome.Err != nil {
		pe, ok := outcome.Err.(*providers.ProviderError)
		if !ok {
			pe = &providers.ProviderError{Tag: providers.Transport, Message: outcome.Err.Error()}
		}
		apierr.WriteProviderError(ctx, pe)
		return
	}

	resp := outcome.Response
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	body2, _ := json.Marshal(chatResponseBody{
		Text:         resp.Text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Model:        resp.Model,
		Provider:     resp.Provider,
	})
	ctx.SetBody(body2)
}

// clientIP returns the first entry of X-Forwarded-For, or "" if absent
// (caller authentication is out of scope; this is the only client identity
// the rate limiter has).
func clientIP(ctx *fasthttp.RequestCtx) string {
	xff := string(ctx.Request.Header.Peek("X-Forwarded-For"))
	if xff == "" {
		return ""
	}
	if i := strings.IndexByte(xff, ','); i >= 0 {
		return strings.TrimSpace(xff[:i])
	}
	return strings.TrimSpace(xff)
}
