package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for the task executor
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimeout indicates a task attempt exceeded its deadline
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates the batch was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrCallback indicates the outcome callback returned an error
	ErrCallback = errors.New("outcome callback failed")

	// ErrUnknownWorkload indicates a workload name is not registered
	ErrUnknownWorkload = errors.New("unknown workload")

	// ErrTasksFailed indicates at least one task ended in the failed set
	ErrTasksFailed = errors.New("tasks failed")
)

// TaskError wraps an error with task context
type TaskError struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q: %v", e.TaskID, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *TaskError) Unwrap() error {
	return e.Err
}

// WrapTaskError wraps an error with task context
func WrapTaskError(taskID string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{
		TaskID: taskID,
		Err:    err,
	}
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 { // Limit to first 10 errors in the message
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Len returns the number of collected errors
func (m *MultiError) Len() int {
	return len(m.Errors)
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// NewMultiError creates a new MultiError from a slice of errors
// It filters out nil errors
func NewMultiError(errors []error) *MultiError {
	m := &MultiError{
		Errors: make([]error, 0, len(errors)),
	}
	for _, err := range errors {
		if err != nil {
			m.Errors = append(m.Errors, err)
		}
	}
	return m
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("validation failed for field %q (value: %v): %s", v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("validation failed for field %q: %s", v.Field, v.Message)
}

// Unwrap ties every validation failure to ErrInvalidConfig
func (v *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsInvalidConfig checks if an error is a configuration error
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsTimeout(err):
		return "Operation timed out. Please try again or increase the timeout value with --timeout flag."
	case IsCancelled(err):
		return "Operation was cancelled."
	case IsInvalidConfig(err):
		return "Invalid configuration. Please check your config file, manifest and command-line flags."
	case errors.Is(err, ErrUnknownWorkload):
		return "Unknown workload. Run 'taskexec workloads' to list the built-in workloads."
	case errors.Is(err, ErrCallback):
		return "The outcome callback failed for some tasks. Results may not have been fully recorded."
	case errors.Is(err, ErrTasksFailed):
		return "Some tasks failed. See the report above for details."
	default:
		// Return the original error message for unknown errors
		return err.Error()
	}
}

// CombineErrors combines multiple errors into a single error
// Returns nil if all errors are nil
func CombineErrors(errors ...error) error {
	m := NewMultiError(errors)
	return m.ErrorOrNil()
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
