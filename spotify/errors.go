package spotify

import (
	"errors"
	"fmt"
)

// ResolutionKind categorizes catalog and authentication failures.
type ResolutionKind int

const (
	ResolutionNotFound ResolutionKind = iota
	ResolutionUnauthorized
	ResolutionTransient
)

// String returns the string representation of the resolution kind
func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNotFound:
		return "not_found"
	case ResolutionUnauthorized:
		return "unauthorized"
	case ResolutionTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ResolutionError is returned when the catalog cannot satisfy a request.
// Transient failures are retryable by the caller; the others are not.
type ResolutionError struct {
	Kind    ResolutionKind
	Message string
	Cause   error
}

// Error implements the error interface
func (re *ResolutionError) Error() string {
	if re.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", re.Kind.String(), re.Message, re.Cause)
	}
	return fmt.Sprintf("%s: %s", re.Kind.String(), re.Message)
}

// Unwrap returns the underlying cause error
func (re *ResolutionError) Unwrap() error {
	return re.Cause
}

// NewResolutionError creates a ResolutionError with the given kind and message.
func NewResolutionError(kind ResolutionKind, message string) *ResolutionError {
	return &ResolutionError{Kind: kind, Message: message}
}

// NewResolutionErrorWithCause creates a ResolutionError wrapping a cause.
func NewResolutionErrorWithCause(kind ResolutionKind, message string, cause error) *ResolutionError {
	return &ResolutionError{Kind: kind, Message: message, Cause: cause}
}

// IsResolutionError checks if an error is a ResolutionError and optionally of a specific kind
func IsResolutionError(err error, kinds ...ResolutionKind) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		if len(kinds) == 0 {
			return true
		}
		for _, k := range kinds {
			if re.Kind == k {
				return true
			}
		}
	}
	return false
}
