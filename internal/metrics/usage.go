// usage.go - Rolling per-provider usage statistics

package metrics

import (
	"sync"
	"time"
)

// UsageStat aggregates one provider's activity for one day.
type UsageStat struct {
	Provider       string  `json:"provider" bson:"provider"`
	Date           string  `json:"date" bson:"date"` // YYYY-MM-DD
	Requests       int64   `json:"requests" bson:"requests"`
	Successes      int64   `json:"successes" bson:"successes"`
	Failures       int64   `json:"failures" bson:"failures"`
	TotalCostUSD   float64 `json:"total_cost_usd" bson:"total_cost_usd"`
	AvgLatencyMs   float64 `json:"avg_latency_ms" bson:"avg_latency_ms"`
	totalLatencyMs int64
}

// SuccessRate returns successes/requests in [0,1], zero when unused.
func (s UsageStat) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Requests)
}

// UsageTracker keeps per-provider per-day stats behind a mutex. Reads are
// cheap snapshots used by the orchestrator to order candidates.
type UsageTracker struct {
	mu   sync.Mutex
	days map[string]*UsageStat // key: provider + "|" + date
	now  func() time.Time
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		days: make(map[string]*UsageStat),
		now:  time.Now,
	}
}

// Record updates the provider's stats for today after one attempt.
func (t *UsageTracker) Record(provider string, success bool, latency time.Duration, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stat := t.statFor(provider)
	stat.Requests++
	if success {
		stat.Successes++
	} else {
		stat.Failures++
	}
	stat.TotalCostUSD += costUSD
	stat.totalLatencyMs += latency.Milliseconds()
	stat.AvgLatencyMs = float64(stat.totalLatencyMs) / float64(stat.Requests)

	recordPrometheus(provider, success, latency, costUSD)
}

// AvgLatency returns today's rolling average latency for the provider.
// ok is false when the provider has no recorded attempts today.
func (t *UsageTracker) AvgLatency(provider string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := provider + "|" + t.today()
	stat, exists := t.days[key]
	if !exists || stat.Requests == 0 {
		return 0, false
	}
	return time.Duration(stat.AvgLatencyMs * float64(time.Millisecond)), true
}

// Snapshot copies out all accumulated stats, e.g. for persistence.
func (t *UsageTracker) Snapshot() []UsageStat {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]UsageStat, 0, len(t.days))
	for _, stat := range t.days {
		out = append(out, *stat)
	}
	return out
}

// statFor returns today's stat record for the provider. Caller holds the lock.
func (t *UsageTracker) statFor(provider string) *UsageStat {
	date := t.today()
	key := provider + "|" + date

	stat, exists := t.days[key]
	if !exists {
		stat = &UsageStat{Provider: provider, Date: date}
		t.days[key] = stat
	}
	return stat
}

func (t *UsageTracker) today() string {
	return t.now().UTC().Format("2006-01-02")
}
