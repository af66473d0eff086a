// errors.go - Typed provider failures and error categorization

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorKind is the failure taxonomy the orchestrator acts on
type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindParse    ErrorKind = "parse_error"
	KindUpstream ErrorKind = "upstream_error"
)

// ProviderError is a categorized provider failure. It is always returned
// instead of raw transport/parse errors so the orchestrator can record it
// against the circuit breaker and move to the next candidate.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s/%s] %s (status: %d, retryable: %v)",
		e.Provider, e.Kind, e.Message, e.StatusCode, e.Retryable)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newParseError wraps a malformed upstream response
func newParseError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Kind:      KindParse,
		Message:   "unparsable provider response: " + err.Error(),
		Retryable: false,
		Err:       err,
	}
}

// categorizeError analyzes a call failure and determines the retry strategy
func categorizeError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}

	pe := &ProviderError{
		Provider:  provider,
		Kind:      KindUpstream,
		Message:   err.Error(),
		Retryable: false,
		Err:       err,
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.Code

		switch apiErr.Code {
		case 429:
			pe.Message = "rate limit exceeded - too many requests"
			pe.Retryable = true
		case 500, 502, 503, 504:
			pe.Message = fmt.Sprintf("provider server error (%d)", apiErr.Code)
			pe.Retryable = true
		default:
			pe.Retryable = apiErr.Code >= 500
		}
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Kind = KindTimeout
		pe.Message = "request timeout - processing took too long"
		pe.Retryable = true
		return pe
	}

	if errors.Is(err, context.Canceled) {
		pe.Kind = KindTimeout
		pe.Message = "request was canceled"
		pe.Retryable = false
		return pe
	}

	// Check the error message for common transport patterns
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline") {
		pe.Kind = KindTimeout
		pe.Message = "request timeout"
		pe.Retryable = true
		return pe
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") {
		pe.Message = "network connection error"
		pe.Retryable = true
		return pe
	}

	return pe
}
