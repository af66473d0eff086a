// errors.go - Structured failures surfaced to callers

package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// AttemptFailure records why one candidate provider did not produce a result
type AttemptFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"` // "unavailable", "rate_limited", "timeout", "parse_error", "upstream_error"
}

// ExhaustionError means every candidate failed or was unavailable. The
// attempt list is complete so upstream logic can decide whether to retry.
type ExhaustionError struct {
	Attempts []AttemptFailure
}

func (e *ExhaustionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Provider, a.Reason))
	}
	return "all providers unavailable or failed: " + strings.Join(parts, ", ")
}

// RateLimitedError is a retryable admission failure, surfaced when the
// global window is full and the wait is too long to block on.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s scope, retry after %s", e.Scope, e.RetryAfter.Round(time.Millisecond))
}
