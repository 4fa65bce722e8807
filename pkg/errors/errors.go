package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	// Generic categories
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL"

	// Pipeline and retrieval categories
	ErrorTypeAccessDenied            ErrorType = "ACCESS_DENIED"
	ErrorTypeExtractionUnavailable   ErrorType = "EXTRACTION_UNAVAILABLE"
	ErrorTypeResolutionConflict      ErrorType = "RESOLUTION_CONFLICT"
	ErrorTypeGraphIntegrityViolation ErrorType = "GRAPH_INTEGRITY_VIOLATION"
	ErrorTypeIndexInconsistency      ErrorType = "INDEX_INCONSISTENCY"
	ErrorTypeVectorDimensionMismatch ErrorType = "VECTOR_DIMENSION_MISMATCH"
)

// AppError is the custom error type for the application
type AppError struct {
	Type ErrorType
	// Stage names the pipeline stage that produced the error, when known.
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	switch {
	case e.Stage != "" && e.Err != nil:
		return fmt.Sprintf("%s [%s]: %s: %v", e.Type, e.Stage, e.Message, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s [%s]: %s", e.Type, e.Stage, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithStage returns a copy of the error annotated with the failing stage.
func (e *AppError) WithStage(stage string) *AppError {
	return &AppError{Type: e.Type, Stage: stage, Message: e.Message, Err: e.Err}
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewConflict creates a conflict error
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// NewAccessDenied creates an access denied error. Access denials fail closed:
// callers must not perform any work once this error is produced.
func NewAccessDenied(message string) error {
	return &AppError{Type: ErrorTypeAccessDenied, Message: message}
}

// NewExtractionUnavailable creates an error for an unreachable or misbehaving
// extraction capability. Retryable with bounded backoff.
func NewExtractionUnavailable(message string, err error) error {
	return &AppError{Type: ErrorTypeExtractionUnavailable, Message: message, Err: err}
}

// NewResolutionConflict creates a non-fatal resolution conflict error,
// recorded for review while ingestion proceeds via the tie-break rule.
func NewResolutionConflict(message string) error {
	return &AppError{Type: ErrorTypeResolutionConflict, Message: message}
}

// NewGraphIntegrityViolation creates a fatal integrity error for the current
// transaction, e.g. an edge referencing a missing endpoint.
func NewGraphIntegrityViolation(message string) error {
	return &AppError{Type: ErrorTypeGraphIntegrityViolation, Message: message}
}

// NewIndexInconsistency creates an error for a memory that is graph-committed
// but not vector-indexed. Repairable by re-running the remaining stages.
func NewIndexInconsistency(message string) error {
	return &AppError{Type: ErrorTypeIndexInconsistency, Message: message}
}

// NewVectorDimensionMismatch creates a fatal error for an embedding whose
// dimensionality does not match its model version. Never retried.
func NewVectorDimensionMismatch(message string) error {
	return &AppError{Type: ErrorTypeVectorDimensionMismatch, Message: message}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type and stage
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Stage:   appErr.Stage,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// TypeOf returns the error type for an error, or ErrorTypeInternal for
// errors produced outside this package.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// StageOf returns the pipeline stage recorded on the error, if any.
func StageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}

// Type checking functions

func IsValidation(err error) bool   { return TypeOf(err) == ErrorTypeValidation }
func IsNotFound(err error) bool     { return TypeOf(err) == ErrorTypeNotFound }
func IsConflict(err error) bool     { return TypeOf(err) == ErrorTypeConflict }
func IsAccessDenied(err error) bool { return TypeOf(err) == ErrorTypeAccessDenied }

// IsExtractionUnavailable checks for a transient extraction capability failure
func IsExtractionUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeExtractionUnavailable
}

func IsResolutionConflict(err error) bool {
	return TypeOf(err) == ErrorTypeResolutionConflict
}

func IsGraphIntegrityViolation(err error) bool {
	return TypeOf(err) == ErrorTypeGraphIntegrityViolation
}

func IsIndexInconsistency(err error) bool {
	return TypeOf(err) == ErrorTypeIndexInconsistency
}

func IsVectorDimensionMismatch(err error) bool {
	return TypeOf(err) == ErrorTypeVectorDimensionMismatch
}

// IsRetryable reports whether the error is a transient collaborator failure
// that may be retried locally. Logical and data invariant violations are
// never retryable.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeExtractionUnavailable, ErrorTypeIndexInconsistency:
		return true
	default:
		return false
	}
}
