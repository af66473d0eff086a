package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	tr := NewTracker(5, 300*time.Second)

	for i := 0; i < 4; i++ {
		tr.RecordFailure("gemini")
		assert.True(t, tr.IsAvailable("gemini"), "still available after %d failures", i+1)
	}

	tr.RecordFailure("gemini")
	assert.False(t, tr.IsAvailable("gemini"), "unavailable after threshold failures")
	assert.Equal(t, 5, tr.FailureCount("gemini"))

	// Other providers unaffected
	assert.True(t, tr.IsAvailable("mistral"))
}

func TestBreakerSuccessResetsUnconditionally(t *testing.T) {
	tr := NewTracker(3, 300*time.Second)

	tr.RecordFailure("gemini")
	tr.RecordFailure("gemini")
	tr.RecordFailure("gemini")
	assert.False(t, tr.IsAvailable("gemini"))

	tr.RecordSuccess("gemini")
	assert.True(t, tr.IsAvailable("gemini"))
	assert.Equal(t, 0, tr.FailureCount("gemini"))
}

func TestBreakerRecoveryWindowClearsRecord(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(2, 300*time.Second)
	tr.now = func() time.Time { return clock }

	tr.RecordFailure("gemini")
	tr.RecordFailure("gemini")
	assert.False(t, tr.IsAvailable("gemini"))

	// Inside the window it stays closed
	clock = clock.Add(299 * time.Second)
	assert.False(t, tr.IsAvailable("gemini"))

	// Past the window the record is cleared, not just suspended
	clock = clock.Add(2 * time.Second)
	assert.True(t, tr.IsAvailable("gemini"))
	assert.Equal(t, 0, tr.FailureCount("gemini"))
}

func TestBreakerDefaults(t *testing.T) {
	tr := NewTracker(0, 0)
	assert.Equal(t, 5, tr.threshold)
	assert.Equal(t, 300*time.Second, tr.recovery)
}
