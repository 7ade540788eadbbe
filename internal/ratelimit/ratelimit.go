// Package ratelimit implements the per-client-IP fixed-window admission
// counter governed by a single active Plan.
package ratelimit

import "sync"

// Plan configures the fixed window: at most RequestsPerWindow admissions
// every WindowSeconds, per IP.
type Plan struct {
	RequestsPerWindow int
	WindowSeconds     int64
}

type windowState struct {
	requests    int
	windowStart int64
}

// Limiter is the fixed-window rate limiter contract. Admit never blocks on
// I/O in the primary implementation; the optional Redis-backed variant
// trades that for shared state across instances.
type Limiter interface {
	// Admit reports whether the request from ip at unix-seconds now is
	// admitted under the active plan, along with the limit, the remaining
	// budget after this call, and seconds until the window resets.
	Admit(ip string, now int64) (allowed bool, limit int, remaining int, resetSeconds int64)
	// SetPlan atomically replaces the active plan and drops all per-IP
	// state.
	SetPlan(plan *Plan)
	// Plan returns the currently active plan, or nil if none is set.
	Plan() *Plan
}

// MemoryLimiter is the primary in-process Limiter.
type MemoryLimiter struct {
	mu    sync.Mutex
	plan  *Plan
	state map[string]*windowState
}

// NewMemoryLimiter creates a MemoryLimiter with no active plan; until
// SetPlan is called, Admit always allows.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{state: make(map[string]*windowState)}
}

func (l *MemoryLimiter) Admit(ip string, now int64) (bool, int, int, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.plan == nil {
		return true, 0, 0, 0
	}
	plan := l.plan

	s, ok := l.state[ip]
	if !ok {
		s = &windowState{requests: 0, windowStart: now}
		l.state[ip] = s
	}
	if now-s.windowStart >= plan.WindowSeconds {
		s.requests = 0
		s.windowStart = now
	}

	remaining := plan.RequestsPerWindow - s.requests
	resetSeconds := plan.WindowSeconds - (now - s.windowStart)

	if s.requests >= plan.RequestsPerWindow {
		return false, plan.RequestsPerWindow, remaining, resetSeconds
	}

	s.requests++
	return true, plan.RequestsPerWindow, remaining - 1, resetSeconds
}

func (l *MemoryLimiter) SetPlan(plan *Plan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plan = plan
	l.state = make(map[string]*windowState)
}

func (l *MemoryLimiter) Plan() *Plan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.plan
}
