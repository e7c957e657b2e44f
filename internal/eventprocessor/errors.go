// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// ErrorCategory groups failures for logging, metrics and retry decisions.
type ErrorCategory string

const (
	ErrorCategoryUnknown    ErrorCategory = "unknown"
	ErrorCategoryConnection ErrorCategory = "connection"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryDatabase   ErrorCategory = "database"
	ErrorCategoryCapacity   ErrorCategory = "capacity"
	ErrorCategoryDecode     ErrorCategory = "decode"
	ErrorCategoryDomain     ErrorCategory = "domain"
)

// RetryableError marks a transient failure. The message is redelivered.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// PermanentError marks a failure that redelivery cannot fix. The message is
// dead-lettered.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// NewRetryableError wraps cause as retryable, inferring the category from it.
func NewRetryableError(msg string, cause error) *RetryableError {
	return &RetryableError{
		Message:  msg,
		Cause:    cause,
		Category: categorize(cause),
	}
}

// NewPermanentError wraps cause as permanent with the validation category.
func NewPermanentError(msg string, cause error) *PermanentError {
	return &PermanentError{
		Message:  msg,
		Cause:    cause,
		Category: ErrorCategoryValidation,
	}
}

// NewDecodeError marks a payload that could not be turned into a command.
func NewDecodeError(cause error) *PermanentError {
	return &PermanentError{
		Message:  "malformed message",
		Cause:    cause,
		Category: ErrorCategoryDecode,
	}
}

// IsRetryableError reports whether err is, or wraps, a RetryableError.
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanentError reports whether err is, or wraps, a PermanentError.
func IsPermanentError(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// CategoryOf returns the category carried by a classified error, or infers one.
func CategoryOf(err error) ErrorCategory {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Category
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Category
	}
	return categorize(err)
}

// Classify maps a cascade error onto the settlement taxonomy. Already
// classified errors pass through. Domain rule violations are permanent.
// Everything else, including context deadlines, is treated as transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanentError(err) || IsRetryableError(err) {
		return err
	}
	if domain.IsViolation(err) {
		return &PermanentError{
			Message:  "domain rule violated",
			Cause:    err,
			Category: ErrorCategoryDomain,
		}
	}
	return NewRetryableError("pipeline stage failed", err)
}

func categorize(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryConnection
	}
	return categorizeErrorMessage(err.Error())
}

func categorizeErrorMessage(msg string) ErrorCategory {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline"):
		return ErrorCategoryTimeout
	case strings.Contains(lower, "connection"), strings.Contains(lower, "no responders"),
		strings.Contains(lower, "circuit breaker"):
		return ErrorCategoryConnection
	case strings.Contains(lower, "database"), strings.Contains(lower, "duckdb"),
		strings.Contains(lower, "badger"), strings.Contains(lower, "sql"):
		return ErrorCategoryDatabase
	case strings.Contains(lower, "too many"), strings.Contains(lower, "capacity"),
		strings.Contains(lower, "rate limit"), strings.Contains(lower, "full"):
		return ErrorCategoryCapacity
	default:
		return ErrorCategoryUnknown
	}
}
