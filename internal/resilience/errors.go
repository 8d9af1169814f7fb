// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"blur/internal/platform"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown          ErrorType = iota
	ErrorTypeTransient                  // Locked or busy files
	ErrorTypePermanent                  // Permissions, cancelled work
	ErrorTypeTimeout                    // Deadlines
	ErrorTypeResourceNotFound           // The file vanished
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "Unknown"
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeResourceNotFound:
		return "ResourceNotFound"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(et))
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes a file operation error. Files held open by
// another process are transient; everything else is retried only when it
// was explicitly classified as transient.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &ClassifiedError{Original: err, Type: ErrorTypePermanent, Retryable: false}

	case errors.Is(err, context.DeadlineExceeded):
		return &ClassifiedError{Original: err, Type: ErrorTypeTimeout, Retryable: false}

	case platform.IsLockedFileError(err):
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTransient,
			Message:   fmt.Sprintf("file busy: %v", err),
			Retryable: true,
		}

	case errors.Is(err, fs.ErrNotExist):
		return &ClassifiedError{Original: err, Type: ErrorTypeResourceNotFound, Retryable: false}

	case platform.IsPermissionError(err):
		// Windows reports files opened by scanners and sync clients as
		// access denied for a short while
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypePermanent,
			Retryable: platform.IsWindows(),
		}
	}

	// Default to unknown, non-retryable
	return &ClassifiedError{Original: err, Type: ErrorTypeUnknown, Retryable: false}
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}
