package downloader

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestPipelineErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *PipelineError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewPipelineError(ErrorNotFound, "track missing"),
			expected: "not_found: track missing",
		},
		{
			name:     "with cause",
			err:      NewPipelineErrorWithCause(ErrorTransient, "fetch failed", errors.New("connection reset")),
			expected: "transient: fetch failed (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewPipelineErrorWithCause(ErrorDiskFull, "write failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through PipelineError")
	}
}

func TestPipelineErrorTypeChecks(t *testing.T) {
	err := NewPipelineError(ErrorUnauthorized, "bad token")

	if !IsPipelineError(err) {
		t.Error("IsPipelineError should match any PipelineError")
	}
	if !IsPipelineError(err, ErrorUnauthorized) {
		t.Error("IsPipelineError should match the exact type")
	}
	if IsPipelineError(err, ErrorNotFound) {
		t.Error("IsPipelineError should reject other types")
	}
	if IsPipelineError(errors.New("plain"), ErrorUnauthorized) {
		t.Error("plain errors are not pipeline errors")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsPipelineError(wrapped, ErrorUnauthorized) {
		t.Error("IsPipelineError should unwrap nested errors")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"transient", NewPipelineError(ErrorTransient, "blip"), true},
		{"not found", NewPipelineError(ErrorNotFound, "gone"), false},
		{"unauthorized", NewPipelineError(ErrorUnauthorized, "denied"), false},
		{"disk full", NewPipelineError(ErrorDiskFull, "full"), false},
		{"cancelled pipeline error", NewPipelineError(ErrorCancelled, "stop"), false},
		{"context cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"unclassified", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrorNotFound, "not_found"},
		{ErrorUnauthorized, "unauthorized"},
		{ErrorTransient, "transient"},
		{ErrorTranscodeFailed, "transcode_failed"},
		{ErrorTruncated, "truncated"},
		{ErrorDiskFull, "disk_full"},
		{ErrorPermissionDenied, "permission_denied"},
		{ErrorCancelled, "cancelled"},
		{ErrorType(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.errorType.String(); got != tt.expected {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.errorType, got, tt.expected)
		}
	}
}

func TestWithContext(t *testing.T) {
	err := NewPipelineError(ErrorTranscodeFailed, "exit 1").WithContext("stderr", "boom")
	if err.Context["stderr"] != "boom" {
		t.Error("WithContext did not record the value")
	}
}
