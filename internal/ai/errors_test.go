package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestCategorizeErrorGoogleAPICodes(t *testing.T) {
	tests := []struct {
		code      int
		kind      ErrorKind
		retryable bool
	}{
		{429, KindUpstream, true},
		{503, KindUpstream, true},
		{400, KindUpstream, false},
		{401, KindUpstream, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			pe := categorizeError("gemini", &googleapi.Error{Code: tt.code, Message: "boom"})
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.Equal(t, tt.code, pe.StatusCode)
			assert.Equal(t, "gemini", pe.Provider)
		})
	}
}

func TestCategorizeErrorContext(t *testing.T) {
	pe := categorizeError("gemini", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, pe.Kind)
	assert.True(t, pe.Retryable)

	pe = categorizeError("gemini", context.Canceled)
	assert.Equal(t, KindTimeout, pe.Kind)
	assert.False(t, pe.Retryable, "caller cancellation must not be retried")
}

func TestCategorizeErrorPassesThroughProviderError(t *testing.T) {
	orig := &ProviderError{Provider: "mistral", Kind: KindUpstream, StatusCode: 429, Retryable: true}
	wrapped := fmt.Errorf("call failed: %w", orig)

	pe := categorizeError("mistral", wrapped)
	assert.Same(t, orig, pe)
}

func TestCategorizeErrorMessageSniffing(t *testing.T) {
	pe := categorizeError("mistral", errors.New("dial tcp: connection refused"))
	assert.True(t, pe.Retryable)

	pe = categorizeError("mistral", errors.New("context deadline exceeded during read"))
	assert.Equal(t, KindTimeout, pe.Kind)
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	pe := newParseError("gemini", inner)

	require.Equal(t, KindParse, pe.Kind)
	assert.False(t, pe.Retryable)
	assert.ErrorIs(t, pe, inner)
}
