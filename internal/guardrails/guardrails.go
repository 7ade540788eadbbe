// Package guardrails implements the response-text policy filter applied to
// every provider response before it reaches the caller or the prompt cache.
package guardrails

import (
	"fmt"
	"strings"
)

// Config is the declarative policy applied by Filter. Invariant: MinLength
// must be ≤ MaxLength; the admin guardrails handler rejects a Config that
// breaks it before publishing.
type Config struct {
	BannedPhrases     []string
	MinLength         int
	MaxLength         int
	RequireDisclaimer bool
	Disclaimer        string
}

// Violation is returned by Filter when the text is rejected outright (too
// short, or contains a banned phrase). Truncation and disclaimer appending
// are not violations.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

// Filter applies the policy to text in the exact order the banned-phrase
// check must run against the original, untruncated text — truncation never
// hides a banned phrase in the removed tail.
//
//  1. reject if too short
//  2. truncate (not a rejection) if too long
//  3. reject on any banned phrase, checked against the original text
//  4. append the disclaimer to the (possibly truncated) text
func Filter(text string, cfg Config) (string, error) {
	if len(text) < cfg.MinLength {
		return "", &Violation{Reason: "response too short"}
	}

	original := text
	out := text
	if len(out) > cfg.MaxLength {
		out = out[:cfg.MaxLength]
	}

	lower := strings.ToLower(original)
	for _, phrase := range cfg.BannedPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return "", &Violation{Reason: fmt.Sprintf("banned phrase: %q", phrase)}
		}
	}

	if cfg.RequireDisclaimer && cfg.Disclaimer != "" {
		out = out + "\n\n" + cfg.Disclaimer
	}

	return out, nil
}
