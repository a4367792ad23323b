package downloader

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents different categories of pipeline errors
type ErrorType int

const (
	ErrorNotFound ErrorType = iota
	ErrorUnauthorized
	ErrorTransient
	ErrorTranscodeFailed
	ErrorTruncated
	ErrorDiskFull
	ErrorPermissionDenied
	ErrorInvalidInput
	ErrorCancelled
	ErrorUnknown
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorNotFound:
		return "not_found"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorTransient:
		return "transient"
	case ErrorTranscodeFailed:
		return "transcode_failed"
	case ErrorTruncated:
		return "truncated"
	case ErrorDiskFull:
		return "disk_full"
	case ErrorPermissionDenied:
		return "permission_denied"
	case ErrorInvalidInput:
		return "invalid_input"
	case ErrorCancelled:
		return "cancelled"
	case ErrorUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// PipelineError represents a structured error that occurred in the pipeline
type PipelineError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (pe *PipelineError) Error() string {
	if pe.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", pe.Type.String(), pe.Message, pe.Cause)
	}
	return fmt.Sprintf("%s: %s", pe.Type.String(), pe.Message)
}

// Unwrap returns the underlying cause error
func (pe *PipelineError) Unwrap() error {
	return pe.Cause
}

// NewPipelineError creates a new PipelineError with the specified type and message
func NewPipelineError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewPipelineErrorWithCause creates a new PipelineError with a cause
func NewPipelineErrorWithCause(errorType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (pe *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if pe.Context == nil {
		pe.Context = make(map[string]interface{})
	}
	pe.Context[key] = value
	return pe
}

// IsType checks if the error is of a specific type
func (pe *PipelineError) IsType(errorType ErrorType) bool {
	return pe.Type == errorType
}

// IsPipelineError checks if an error is a PipelineError and optionally of a specific type
func IsPipelineError(err error, errorType ...ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		if len(errorType) == 0 {
			return true
		}
		for _, et := range errorType {
			if pe.Type == et {
				return true
			}
		}
	}
	return false
}

// IsTransient reports whether an error is worth retrying. Context
// cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTransient
	}
	// Unclassified errors lean retryable: most come from the network path.
	return true
}
