// rate_gate.go - Sliding-window admission control per provider and globally

package ratelimit

import (
	"sync"
	"time"
)

// GlobalScope is the scope name for the shared, cross-provider window.
const GlobalScope = "global"

// RateGate tracks request timestamps per scope inside a sliding window.
// A scope is a provider name or GlobalScope. Admission succeeds while the
// window holds fewer timestamps than the scope's limit; admitting records
// the current timestamp.
type RateGate struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	limits   map[string]int
	fallback int // limit for scopes without an explicit entry
	window   time.Duration
	enabled  bool
	now      func() time.Time
}

// NewRateGate creates a gate with a 60-second sliding window.
// perScope applies to any scope without an explicit limit.
func NewRateGate(perScope, global int, enabled bool) *RateGate {
	return &RateGate{
		windows:  make(map[string][]time.Time),
		limits:   map[string]int{GlobalScope: global},
		fallback: perScope,
		window:   60 * time.Second,
		enabled:  enabled,
		now:      time.Now,
	}
}

// SetLimit overrides the max admissions per window for one scope.
func (g *RateGate) SetLimit(scope string, max int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits[scope] = max
}

// Admit reports whether a request may proceed for the scope and, when it
// may, records the admission timestamp.
func (g *RateGate) Admit(scope string) bool {
	if !g.enabled {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	win := g.prune(scope, now)

	if len(win) >= g.limit(scope) {
		return false
	}

	g.windows[scope] = append(win, now)
	return true
}

// WaitTime returns how long until the oldest timestamp ages out of the
// window, i.e. the earliest moment an admission could succeed. Zero means
// the scope is admissible right now.
func (g *RateGate) WaitTime(scope string) time.Duration {
	if !g.enabled {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	win := g.prune(scope, now)

	if len(win) < g.limit(scope) {
		return 0
	}
	if len(win) == 0 {
		// Limit of zero: the scope never admits
		return g.window
	}

	return win[0].Add(g.window).Sub(now)
}

// prune drops timestamps that fell out of the window. Caller holds the lock.
func (g *RateGate) prune(scope string, now time.Time) []time.Time {
	win := g.windows[scope]
	cutoff := now.Add(-g.window)

	i := 0
	for i < len(win) && !win[i].After(cutoff) {
		i++
	}
	if i > 0 {
		win = win[i:]
	}

	g.windows[scope] = win
	return win
}

func (g *RateGate) limit(scope string) int {
	if max, ok := g.limits[scope]; ok {
		return max
	}
	return g.fallback
}
