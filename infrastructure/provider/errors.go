// Package provider implements search.Embedder against remote and local
// embedding models.
package provider

import (
	"errors"
	"fmt"

	"github.com/helixml/pantry/domain/search"
)

// ProviderError describes a failed call to an embedding backend. Every
// ProviderError is a search.ErrEmbeddingUnavailable.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	retryable  bool
	err        error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, retryable bool, err error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		retryable:  retryable,
		err:        err,
	}
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.operation, e.statusCode, e.message)
	}
	return fmt.Sprintf("%s failed: %s", e.operation, e.message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.err }

// Is makes every ProviderError match search.ErrEmbeddingUnavailable.
func (e *ProviderError) Is(target error) bool {
	return target == search.ErrEmbeddingUnavailable
}

// StatusCode returns the HTTP status, or 0 when none was received.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool { return e.retryable }

// IsRetryable classifies an embedding error. Provider errors carry their own
// verdict and validation errors are final. Anything else, including network
// timeouts from backends without a ProviderError, is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.retryable
	}
	return !errors.Is(err, search.ErrDimensionMismatch) && !errors.Is(err, search.ErrInvalidQuery)
}
