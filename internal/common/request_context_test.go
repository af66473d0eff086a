package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRecordsSubSteps(t *testing.T) {
	rc := NewRequestContext("receipt.jpg")

	rc.StartStep("provider_extract")
	rc.StartSubStep("segment_dispatch")
	rc.EndSubStep("3 segment(s)")
	rc.StartSubStep("merge_segments")
	rc.EndSubStep("")
	rc.EndStep("success", &TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, CostUSD: 0.001}, nil)

	require.Len(t, rc.Steps, 1)
	step := rc.Steps[0]
	assert.Equal(t, "provider_extract", step.Name)
	assert.Equal(t, "success", step.Status)

	require.Len(t, step.SubSteps, 2)
	assert.Equal(t, "segment_dispatch", step.SubSteps[0].Name)
	assert.Equal(t, "3 segment(s)", step.SubSteps[0].Details)
	assert.Equal(t, "merge_segments", step.SubSteps[1].Name)

	// Sub-step state resets for the next step
	assert.Empty(t, rc.CurrentSubSteps)
	assert.Equal(t, 150, rc.TotalTokens.TotalTokens)
}

func TestEndSubStepWithoutStartIsNoop(t *testing.T) {
	rc := NewRequestContext("receipt.jpg")
	rc.StartStep("prepare_image")
	rc.EndSubStep("stray")
	rc.EndStep("success", nil, nil)

	require.Len(t, rc.Steps, 1)
	assert.Empty(t, rc.Steps[0].SubSteps)
}

func TestFailedStepKeepsSubSteps(t *testing.T) {
	rc := NewRequestContext("receipt.jpg")

	rc.StartStep("provider_extract")
	rc.StartSubStep("segment_dispatch")
	rc.EndSubStep("")
	rc.EndStep("failed", nil, errors.New("upstream boom"))

	require.Len(t, rc.Steps, 1)
	assert.Equal(t, "upstream boom", rc.Steps[0].Error)
	require.Len(t, rc.Steps[0].SubSteps, 1)
}

func TestTokenUsageAddIgnoresNil(t *testing.T) {
	total := TokenUsage{}
	total.Add(&TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, CostUSD: 0.002})
	total.Add(nil)

	assert.Equal(t, 15, total.TotalTokens)
	assert.InDelta(t, 0.002, total.CostUSD, 1e-9)
}

func TestCalculateTokenCost(t *testing.T) {
	usage := CalculateTokenCost(1_000_000, 500_000, 0.10, 0.40)

	assert.Equal(t, 1_500_000, usage.TotalTokens)
	assert.InDelta(t, 0.10+0.20, usage.CostUSD, 1e-9)
}
