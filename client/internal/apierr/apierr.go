// Package apierr classifies client-side errors so the write queue can
// apply the right retry policy.
package apierr

import "fmt"

// Category determines how an error is handled by retry logic.
type Category int

const (
	// Recoverable errors are retried with exponential backoff:
	// 5xx responses, network timeouts, connection failures.
	Recoverable Category = iota

	// Irrecoverable errors fail immediately without retry:
	// 400, 401, 403, 404 and similar client errors.
	Irrecoverable
)

// String returns a human-readable representation of the category.
func (c Category) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps an error with categorization metadata.
type ClassifiedError struct {
	Category   Category
	StatusCode int    // HTTP status code (0 for non-HTTP errors)
	Underlying error  // The original error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *ClassifiedError) Unwrap() error {
	return e.Underlying
}

// IsIrrecoverable reports whether err should not be retried.
func IsIrrecoverable(err error) bool {
	if classified, ok := err.(*ClassifiedError); ok {
		return classified.Category == Irrecoverable
	}
	return false
}

// NewHTTPError creates a classified error for an HTTP failure status.
// 408 and 429 stay recoverable; the rest of 4xx does not retry; 5xx and
// anything unexpected retries.
func NewHTTPError(statusCode int, operation string) *ClassifiedError {
	category := Recoverable
	if statusCode >= 400 && statusCode < 500 && statusCode != 408 && statusCode != 429 {
		category = Irrecoverable
	}
	return &ClassifiedError{
		Category:   category,
		StatusCode: statusCode,
		Underlying: fmt.Errorf("%s failed: HTTP %d", operation, statusCode),
	}
}

// NewPanicError wraps a recovered panic value. Never retried; the job
// would just panic again.
func NewPanicError(recovered interface{}) *ClassifiedError {
	return &ClassifiedError{
		Category:   Irrecoverable,
		Underlying: fmt.Errorf("job panic: %v", recovered),
	}
}

// NewNetworkError creates a classified error for a network-level failure.
// Always recoverable; the condition may be transient.
func NewNetworkError(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}
