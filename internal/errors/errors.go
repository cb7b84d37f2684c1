// Package errors provides structured error types for the pull pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrQuotaExceeded  = errors.New("daily API quota exceeded")
	ErrNotFound       = errors.New("resource not found")
	ErrBadCredentials = errors.New("invalid or missing credentials")
	ErrUnavailable    = errors.New("service unavailable")
)

// APIError represents an error from a D-Tools cloud API call.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dtools API error on %s (status %d): %s: %v", e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("dtools API error on %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{Endpoint: endpoint, StatusCode: statusCode, Message: message}
}

// IsMiss reports whether an error is a cache miss rather than a real fault.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// IsQuota reports whether an error is the quota ceiling declining a call.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
