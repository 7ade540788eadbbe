// Package cache implements the Prompt Cache: a TTL-bounded mapping from
// provider+prompt to a prior CanonicalResponse.
package cache

import (
	"context"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

// Result classifies the outcome of a Lookup.
type Result int

const (
	// Miss means no entry exists for the key.
	Miss Result = iota
	// Hit means a live entry was found.
	Hit
	// ExpiredMiss means an entry existed but its age reached the TTL; the
	// entry is removed before Lookup returns.
	ExpiredMiss
)

// Entry is one stored cache record, keyed externally by provider+":"+prompt.
type Entry struct {
	Response         providers.CanonicalResponse
	TimestampSeconds int64
}

// Cache is the Prompt Cache contract. Implementations must guard all
// mutating operations with a single internal lock — critical sections must
// stay short, with no I/O under them for the in-process implementation.
//
// There is no single-flight guarantee: two concurrent misses on the same key
// each perform a provider call, and the second Store overwrites the first.
// This is an accepted simplification, not a bug.
type Cache interface {
	// Lookup returns the entry for key and now (unix seconds). On
	// ExpiredMiss the entry has already been removed.
	Lookup(ctx context.Context, key string, now int64) (providers.CanonicalResponse, Result, error)
	// Store unconditionally overwrites any existing entry for key.
	Store(ctx context.Context, key string, resp providers.CanonicalResponse, now int64) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
	// Snapshot returns a shallow copy of all entries, for admin inspection.
	Snapshot(ctx context.Context) (map[string]Entry, error)
}

// Key builds the exact-match cache key from a provider id and prompt:
// provider + ":" + prompt (exact byte equality, no hashing).
func Key(provider, prompt string) string {
	return provider + ":" + prompt
}
