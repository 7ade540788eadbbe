// Package admin implements the Admin State Surface: an atomically swapped
// configuration snapshot the dispatcher reads on every request, plus the
// thin HTTP handlers that let an operator mutate it.
package admin

import (
	"sync/atomic"

	"github.com/nulpointcorp/ai-gateway/internal/config"
	"github.com/nulpointcorp/ai-gateway/internal/guardrails"
	"github.com/nulpointcorp/ai-gateway/internal/ratelimit"
)

// Snapshot is the immutable configuration view the dispatcher reads once per
// request. Writers build a new Snapshot and swap it in; readers never see a
// partially-updated value.
type Snapshot struct {
	SystemPrompt   string
	Guardrails     guardrails.Config
	CurrentPlan    *ratelimit.Plan
	LoggingConfig  config.LoggingConfig
	VerboseLogging bool
}

// State owns the atomic pointer to the current Snapshot.
type State struct {
	ptr atomic.Pointer[Snapshot]
}

// NewState creates a State seeded with the given initial snapshot.
func NewState(initial Snapshot) *State {
	s := &State{}
	s.ptr.Store(&initial)
	return s
}

// Get returns the current snapshot. Safe for concurrent use without a lock.
func (s *State) Get() Snapshot {
	return *s.ptr.Load()
}

// Publish atomically replaces the current snapshot.
func (s *State) Publish(snap Snapshot) {
	s.ptr.Store(&snap)
}
