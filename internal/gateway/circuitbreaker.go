package gateway

import (
	"sync"
	"time"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

// cbState represents the operational state of a per-provider circuit breaker.
//
//	cbClosed   — normal operation; all requests pass through.
//	cbOpen     — provider is failing; the failover loop skips it.
//	cbHalfOpen — recovery probe; one request is allowed to test the provider.
type cbState int

const (
	cbClosed   cbState = 0
	cbOpen     cbState = 1
	cbHalfOpen cbState = 2
)

type providerCB struct {
	mu sync.Mutex

	state         cbState
	errorCount    int
	windowStart   time.Time
	openedAt      time.Time
	probeInflight bool
}

// CircuitBreaker tracks independent failure state per provider, used by the
// Dispatcher to skip a provider in the failover loop while it is unhealthy
// without waiting on the background healthcheck probe. Breakers are created
// lazily on first use, since the enabled-provider set is config-driven.
type CircuitBreaker struct {
	mu       sync.RWMutex
	breakers map[string]*providerCB
}

// NewCircuitBreaker creates an empty CircuitBreaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{breakers: make(map[string]*providerCB)}
}

// Allow reports whether provider should receive the next failover attempt.
func (cb *CircuitBreaker) Allow(provider string) bool {
	pcb := cb.getOrCreate(provider)

	pcb.mu.Lock()
	defer pcb.mu.Unlock()

	switch pcb.state {
	case cbClosed:
		return true
	case cbOpen:
		if time.Since(pcb.openedAt) >= providers.CBHalfOpenTimeout {
			pcb.state = cbHalfOpen
			pcb.probeInflight = true
			return true
		}
		return false
	case cbHalfOpen:
		if pcb.probeInflight {
			return false
		}
		pcb.probeInflight = true
		return true
	}
	return true
}

// RecordSuccess resets provider's breaker to Closed.
func (cb *CircuitBreaker) RecordSuccess(provider string) {
	pcb := cb.getOrCreate(provider)
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	pcb.state = cbClosed
	pcb.errorCount = 0
	pcb.probeInflight = false
	pcb.windowStart = time.Now()
}

// RecordFailure increments provider's rolling error count, opening the
// breaker once it reaches providers.CBErrorThreshold within CBTimeWindow.
func (cb *CircuitBreaker) RecordFailure(provider string) {
	pcb := cb.getOrCreate(provider)
	pcb.mu.Lock()
	defer pcb.mu.Unlock()

	now := time.Now()
	if now.Sub(pcb.windowStart) > providers.CBTimeWindow {
		pcb.errorCount = 0
		pcb.windowStart = now
	}

	pcb.errorCount++
	pcb.probeInflight = false

	if pcb.errorCount >= providers.CBErrorThreshold {
		pcb.state = cbOpen
		pcb.openedAt = now
	}
}

// StateLabel returns "closed", "open", or "half_open" for provider.
func (cb *CircuitBreaker) StateLabel(provider string) string {
	pcb := cb.getOrCreate(provider)
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	switch pcb.state {
	case cbOpen:
		return "open"
	case cbHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func (cb *CircuitBreaker) getOrCreate(provider string) *providerCB {
	cb.mu.RLock()
	pcb, ok := cb.breakers[provider]
	cb.mu.RUnlock()
	if ok {
		return pcb
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if pcb, ok = cb.breakers[provider]; ok {
		return pcb
	}
	pcb = &providerCB{state: cbClosed, windowStart: time.Now()}
	cb.breakers[provider] = pcb
	return pcb
}
