// Package apierr provides structured API error types and HTTP status
// mapping for responses the gateway writes to callers.
package apierr

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

// ErrorType constants.
const (
	TypeProviderError     = "provider_error"
	TypeRateLimitError    = "rate_limit_error"
	TypeInvalidRequest    = "invalid_request_error"
	TypeAuthenticationErr = "authentication_error"
	TypeServerError       = "server_error"
)

// Code constants.
const (
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInternalError     = "internal_error"
	CodeProviderError     = "provider_error"
	CodeRequestTimeout    = "request_timeout"
	CodeGuardrailRejected = "guardrail_rejected"
	CodeInvalidRequest    = "invalid_request"
)

// APIError is the structured error returned to clients.
type (
	APIError struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	}
	envelope struct {
		Error APIError `json:"error"`
	}
	// rateLimitEnvelope is the exact 429 body shape: {error, limit, remaining, reset}.
	rateLimitEnvelope struct {
		Error     string `json:"error"`
		Limit     int    `json:"limit"`
		Remaining int    `json:"remaining"`
		Reset     int64  `json:"reset"`
	}
)

// Write writes the error as JSON to the fasthttp response with the given HTTP status.
func Write(ctx *fasthttp.RequestCtx, status int, message, errType, code string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
	ctx.SetBody(body)
}

// WriteProviderError maps a ProviderError's tag to the gateway's own HTTP
// status, distinct from the OpenAI-style per-status mapping the reference
// used: the dispatcher's failover decision is keyed on ErrorTag alone, and
// the caller-facing status follows the same classification.
func WriteProviderError(ctx *fasthttp.RequestCtx, err *providers.ProviderError) {
	switch err.Tag {
	case providers.Configuration:
		Write(ctx, fasthttp.StatusInternalServerError, err.Message, TypeServerError, CodeInternalError)
	case providers.Timeout:
		Write(ctx, fasthttp.StatusGatewayTimeout, err.Message, TypeProviderError, CodeRequestTimeout)
	case providers.Guardrail:
		Write(ctx, fasthttp.StatusBadGateway, err.Message, TypeProviderError, CodeGuardrailRejected)
	case providers.Cancelled:
		Write(ctx, fasthttp.StatusRequestTimeout, err.Message, TypeProviderError, CodeRequestTimeout)
	default:
		Write(ctx, fasthttp.StatusBadGateway, err.Message, TypeProviderError, CodeProviderError)
	}
}

// WriteRateLimit writes the detailed 429 body the Rate Limiter's admission
// decision carries, plus the RateLimit-* response headers.
func WriteRateLimit(ctx *fasthttp.RequestCtx, limit, remaining int, reset int64) {
	ctx.Response.Header.Set("RateLimit-Limit", itoa(limit))
	ctx.Response.Header.Set("RateLimit-Remaining", itoa(remaining))
	ctx.Response.Header.Set("RateLimit-Reset", itoa64(reset))

	ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(rateLimitEnvelope{
		Error:     "rate limit exceeded",
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	})
	ctx.SetBody(body)
}

// SetRateLimitHeaders annotates an admitted response with the same
// RateLimit-* headers a denial would have carried.
func SetRateLimitHeaders(ctx *fasthttp.RequestCtx, limit, remaining int, reset int64) {
	ctx.Response.Header.Set("RateLimit-Limit", itoa(limit))
	ctx.Response.Header.Set("RateLimit-Remaining", itoa(remaining))
	ctx.Response.Header.Set("RateLimit-Reset", itoa64(reset))
}

func itoa(n int) string     { return strconv.Itoa(n) }
func itoa64(n int64) string { return strconv.FormatInt(n, 10) }
