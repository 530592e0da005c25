package services

import (
	"errors"
	"fmt"
	"time"
)

// Engine error taxonomy. Validation errors are raised at macro
// registration, never at execution time; the remaining kinds classify
// execution-time failures so the runner and API can react per kind.

// ValidationError marks a malformed macro, schedule or action definition.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail
}

// NewValidationError creates a ValidationError with the given detail.
func NewValidationError(detail string) *ValidationError {
	return &ValidationError{Detail: detail}
}

// DependencyError marks a failed call to an external collaborator
// (work-item service, notifier, webhook target, command).
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s failed: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// TimeoutError marks a dependency call that exceeded its allotted time.
type TimeoutError struct {
	Dependency string
	Limit      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dependency %s timed out after %s", e.Dependency, e.Limit)
}

// RateLimitedError is a transient retry-later signal, not a failure.
type RateLimitedError struct {
	Target     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("target %s rate limited, retry after %s", e.Target, e.RetryAfter)
}

var (
	// ErrMacroBusy is returned when a non-reentrant-strict macro already
	// has a running execution.
	ErrMacroBusy = errors.New("macro already has a running execution")

	// ErrCancelled marks an explicit cancellation, distinct from FAILED.
	ErrCancelled = errors.New("execution cancelled")

	// ErrExecutionNotFound is returned for lookups of unknown executions.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrMacroNotFound is returned for lookups of unknown macros.
	ErrMacroNotFound = errors.New("macro not found")

	// ErrNotWaitingForInput is returned when resuming an execution that has
	// no pending user prompt.
	ErrNotWaitingForInput = errors.New("execution is not waiting for input")
)

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

// IsDependencyError reports whether err is a DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError

	return errors.As(err, &de)
}

// IsTimeoutError reports whether err is a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError

	return errors.As(err, &te)
}

// IsRateLimited reports whether err is a RateLimitedError.
func IsRateLimited(err error) bool {
	var re *RateLimitedError

	return errors.As(err, &re)
}

// IsMacroBusy reports whether err is the macro concurrency conflict.
func IsMacroBusy(err error) bool {
	return errors.Is(err, ErrMacroBusy)
}
