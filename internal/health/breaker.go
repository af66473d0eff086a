// breaker.go - Per-provider circuit breaker with hard timeout-then-reset recovery

package health

import (
	"sync"
	"time"
)

type record struct {
	failures    int
	lastFailure time.Time
}

// Tracker counts consecutive failures per provider and forces a provider
// unavailable once the threshold is reached, until the recovery window
// elapses. There is no half-open state: recovery clears the record
// outright, and a single success resets the count unconditionally.
type Tracker struct {
	mu        sync.Mutex
	records   map[string]*record
	threshold int
	recovery  time.Duration
	now       func() time.Time
}

// NewTracker creates a breaker tracker. threshold <= 0 falls back to 5,
// recovery <= 0 to 300s.
func NewTracker(threshold int, recovery time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 300 * time.Second
	}
	return &Tracker{
		records:   make(map[string]*record),
		threshold: threshold,
		recovery:  recovery,
		now:       time.Now,
	}
}

// IsAvailable reports whether the provider may receive traffic. When the
// recovery window has elapsed since the last failure, the record is
// cleared and the provider becomes available again.
func (t *Tracker) IsAvailable(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[provider]
	if !ok || rec.failures < t.threshold {
		return true
	}

	if t.now().Sub(rec.lastFailure) > t.recovery {
		delete(t.records, provider)
		return true
	}

	return false
}

// RecordFailure increments the consecutive failure count and timestamps it.
func (t *Tracker) RecordFailure(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[provider]
	if !ok {
		rec = &record{}
		t.records[provider] = rec
	}
	rec.failures++
	rec.lastFailure = t.now()
}

// RecordSuccess clears the failure count unconditionally.
func (t *Tracker) RecordSuccess(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, provider)
}

// FailureCount returns the current consecutive failure count.
func (t *Tracker) FailureCount(provider string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[provider]; ok {
		return rec.failures
	}
	return 0
}
