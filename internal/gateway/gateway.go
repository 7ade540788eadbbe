// Package gateway implements the Dispatcher / Failover Controller: the
// per-request state machine that ties the rate limiter, prompt cache,
// provider registry, guardrails filter, and analytics aggregator together,
// plus the data-plane HTTP handler and middleware chain that front it.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/ai-gateway/internal/admin"
	"github.com/nulpointcorp/ai-gateway/internal/cache"
	"github.com/nulpointcorp/ai-gateway/internal/guardrails"
	"github.com/nulpointcorp/ai-gateway/internal/logger"
	"github.com/nulpointcorp/ai-gateway/internal/metrics"
	"github.com/nulpointcorp/ai-gateway/internal/providers"
	"github.com/nulpointcorp/ai-gateway/internal/ratelimit"
	"github.com/nulpointcorp/ai-gateway/internal/stats"
)

// Dispatcher executes the RECEIVED → RATE_CHECK → CACHE_LOOKUP → dispatch →
// bookkeeping → store → respond state machine for every /chat request.
type Dispatcher struct {
	registry *providers.Registry
	cache    cache.Cache
	limiter  ratelimit.Limiter
	stats    *stats.Stats
	log      *logger.Logger
	metrics  *metrics.Registry
	admin    *admin.State
	cb       *CircuitBreaker
}

// New builds a Dispatcher over its collaborators. Any of limiter, metrics
// may be nil; the corresponding concern is then skipped.
func New(
	registry *providers.Registry,
	c cache.Cache,
	limiter ratelimit.Limiter,
	s *stats.Stats,
	log *logger.Logger,
	met *metrics.Registry,
	adminState *admin.State,
) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cache:    c,
		limiter:  limiter,
		stats:    s,
		log:      log,
		metrics:  met,
		admin:    adminState,
		cb:       NewCircuitBreaker(),
	}
}

// Outcome is the result of Dispatch, ready for the HTTP handler to render.
type Outcome struct {
	Response  providers.CanonicalResponse
	FromCache bool
	Err       error // non-nil on exhausted failover
}

// RateLimitDecision carries the admission decision headers the handler
// attaches to every response, successful or not.
type RateLimitDecision struct {
	Applicable bool
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      int64
}

// Admit runs only the RATE_CHECK stage, so the HTTP handler can short-circuit
// with a 429 before doing any further work.
func (d *Dispatcher) Admit(ip string, now time.Time) RateLimitDecision {
	if d.limiter == nil {
		return RateLimitDecision{}
	}
	allowed, limit, remaining, reset := d.limiter.Admit(ip, now.Unix())
	if d.metrics != nil {
		if allowed {
			d.metrics.RecordRateLimit("allowed")
		} else {
			d.metrics.RecordRateLimit("denied")
		}
	}
	return RateLimitDecision{Applicable: true, Allowed: allowed, Limit: limit, Remaining: remaining, Reset: reset}
}

// Dispatch runs CACHE_LOOKUP through RESPOND for one request. requestID is
// used only for logging; the rate-limit decision is expected to have already
// been made via Admit.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID, primary string, req providers.CanonicalRequest) Outcome {
	snap := d.admin.Get()
	req.SystemPrompt = snap.SystemPrompt

	now := time.Now().Unix()
	key := cache.Key(primary, req.Prompt)

	if d.cache != nil {
		resp, result, err := d.cache.Lookup(ctx, key, now)
		if err == nil && result == cache.Hit {
			d.stats.RecordCacheHit(resp.Provider, int64(resp.InputTokens), int64(resp.OutputTokens))
			d.log.Log(logger.Info, "dispatcher", "cache_hit", map[string]any{
				"request_id": requestID,
				"provider":   resp.Provider,
			})
			return Outcome{Response: resp, FromCache: true}
		}
		d.stats.RecordCacheMiss()
	}

	order := d.failoverCandidates(primary)
	guardrailCfg := snap.Guardrails

	var lastErr *providers.ProviderError
	var served providers.CanonicalResponse
	var succeeded bool

	for i, name := range order {
		adapter, ok := d.registry.Get(name)
		if !ok {
			if i == 0 {
				// A primary that is not enabled is a configuration error and
				// is never retried against another provider.
				lastErr = &providers.ProviderError{Tag: providers.Configuration, Provider: name, Message: "provider not enabled"}
				break
			}
			continue
		}

		// The caller's explicit primary is always attempted regardless of
		// circuit state; only failover candidates can be skipped.
		if i > 0 && !d.cb.Allow(name) {
			d.log.Log(logger.Warn, "dispatcher", "circuit_open_skip", map[string]any{
				"request_id": requestID,
				"provider":   name,
			})
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, providers.ProviderTimeout)
		resp, err := adapter.Call(callCtx, req)
		cancel()

		if err == nil {
			resp, err = applyGuardrails(resp, guardrailCfg)
		}

		if err == nil {
			served = resp
			succeeded = true
			d.cb.RecordSuccess(name)
			if d.metrics != nil {
				d.metrics.SetProviderHealth(name, true)
				if i > 0 {
					d.metrics.RecordFailover(primary, name)
				}
			}
			d.log.Log(logger.Info, "dispatcher", "provider_success", map[string]any{
				"request_id": requestID,
				"provider":   name,
				"primary":    primary,
			})
			break
		}

		pe, ok := err.(*providers.ProviderError)
		if !ok {
			pe = &providers.ProviderError{Tag: providers.Transport, Provider: name, Message: err.Error(), Cause: err}
		}
		// Adapters report Cancelled whenever their context is done; while the
		// caller's own context is still live, only the per-provider deadline
		// expired.
		if pe.Tag == providers.Cancelled && ctx.Err() == nil {
			pe.Tag = providers.Timeout
		}
		lastErr = pe

		if pe.Tag != providers.Configuration && pe.Tag != providers.Cancelled {
			d.cb.RecordFailure(name)
			if d.metrics != nil {
				d.metrics.SetProviderHealth(name, d.cb.StateLabel(name) == "closed")
			}
		}

		d.log.Log(logger.Error, "dispatcher", "provider_failure", map[string]any{
			"request_id": requestID,
			"provider":   name,
			"primary":    primary,
			"tag":        pe.Tag.String(),
			"error":      pe.Error(),
		})

		if pe.Tag == providers.Cancelled {
			break
		}
		if !pe.Failover() {
			break
		}
		if !d.failoverEnabled() {
			break
		}
	}

	if succeeded {
		d.stats.RecordSuccess(served.Provider, int64(served.InputTokens), int64(served.OutputTokens))
		if d.cache != nil {
			_ = d.cache.Store(ctx, cache.Key(served.Provider, req.Prompt), served, now)
		}
		return Outcome{Response: served}
	}

	if lastErr == nil {
		lastErr = &providers.ProviderError{Tag: providers.Configuration, Provider: primary, Message: "no provider configured"}
	}
	if d.metrics != nil {
		d.metrics.RecordFailoverExhausted(primary)
	}
	d.stats.RecordFailure(primary, lastErr.Tag.String(), lastErr.Error())
	return Outcome{Err: lastErr}
}

// failoverCandidates returns [primary] plus, when failover is enabled, the
// remaining enabled providers in lexicographic order.
func (d *Dispatcher) failoverCandidates(primary string) []string {
	order := []string{primary}
	if d.failoverEnabled() {
		order = append(order, d.registry.FailoverOrder(primary)...)
	}
	return order
}

// failoverEnabled reports whether the registry has at least two enabled
// providers.
func (d *Dispatcher) failoverEnabled() bool {
	return d.registry.Len() >= 2
}

// applyGuardrails runs the Guardrails Filter over a successful adapter
// response. On rejection it surfaces a ProviderError{Tag: Guardrail} instead
// of the CanonicalResponse, exactly as if the adapter itself had rejected
// the text — centralizing the check here lets every adapter share one
// guardrails snapshot without threading admin state through six
// independent HTTP clients.
func applyGuardrails(resp providers.CanonicalResponse, cfg guardrails.Config) (providers.CanonicalResponse, error) {
	if cfg.MaxLength == 0 {
		// No guardrails configured yet; MaxLength==0 can never pass the
		// filter's own truncate step meaningfully, so treat as disabled.
		return resp, nil
	}
	text, err := guardrails.Filter(resp.Text, cfg)
	if err != nil {
		return providers.CanonicalResponse{}, &providers.ProviderError{
			Tag:      providers.Guardrail,
			Provider: resp.Provider,
			Message:  err.Error(),
			Cause:    err,
		}
	}
	resp.Text = text
	return resp, nil
}

// NewRequestID generates the UUID assigned to a request once it is received.
func NewRequestID() string {
	return uuid.New().String()
}
