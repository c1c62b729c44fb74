// Package contextutils provides error handling utilities and standardized error types
// for consistent error management across the support application.
package contextutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a standardized error code for API responses
type ErrorCode string

const (
	// Validation error codes

	// ErrorCodeInvalidInput indicates that the provided input is invalid
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeMissingRequired indicates that a required field is missing
	ErrorCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"
	// ErrorCodeInvalidFormat indicates that the input format is invalid
	ErrorCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrorCodeValidationFailed indicates that validation has failed
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeConsentRequired indicates that the user has not consented to sharing diagnostics
	ErrorCodeConsentRequired ErrorCode = "CONSENT_REQUIRED"
	// ErrorCodeAttachmentTooLarge indicates an attachment exceeded its size ceiling
	ErrorCodeAttachmentTooLarge ErrorCode = "ATTACHMENT_TOO_LARGE"
	// ErrorCodeAttachmentInvalidType indicates an attachment has a media type its role does not accept
	ErrorCodeAttachmentInvalidType ErrorCode = "ATTACHMENT_INVALID_TYPE"
	// ErrorCodeTooManyAttachments indicates an attachment role already holds its maximum count
	ErrorCodeTooManyAttachments ErrorCode = "TOO_MANY_ATTACHMENTS"

	// Flow error codes

	// ErrorCodeInvalidTransition indicates the collection flow rejected an event in its current state
	ErrorCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrorCodeSubmissionInFlight indicates a submission is already outstanding
	ErrorCodeSubmissionInFlight ErrorCode = "SUBMISSION_IN_FLIGHT"

	// Service error codes

	// ErrorCodeServiceUnavailable indicates that the service is temporarily unavailable
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrorCodeTimeout indicates that a request has timed out
	ErrorCodeTimeout ErrorCode = "REQUEST_TIMEOUT"
	// ErrorCodeTrackerRequestFailed indicates the issue tracker rejected or failed a request
	ErrorCodeTrackerRequestFailed ErrorCode = "TRACKER_REQUEST_FAILED"
	// ErrorCodeSubmissionFailed indicates the ticket-submission endpoint returned a failure
	ErrorCodeSubmissionFailed ErrorCode = "SUBMISSION_FAILED"
	// ErrorCodeRequestTooLarge indicates the request body exceeded the accepted size
	ErrorCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	// ErrorCodeInternalError indicates an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// SeverityLevel represents the severity of an error for logging and monitoring
type SeverityLevel string

const (
	// SeverityDebug indicates debug-level errors for development
	SeverityDebug SeverityLevel = "debug"
	// SeverityInfo indicates informational errors
	SeverityInfo SeverityLevel = "info"
	// SeverityWarn indicates warning-level errors
	SeverityWarn SeverityLevel = "warn"
	// SeverityError indicates error-level issues
	SeverityError SeverityLevel = "error"
	// SeverityFatal indicates fatal errors that require immediate attention
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// Error types for consistent error handling with associated codes and severity
var (
	// Validation errors
	ErrInvalidInput = &AppError{
		Code:     ErrorCodeInvalidInput,
		Severity: SeverityWarn,
		Message:  "Invalid input",
	}

	ErrMissingRequired = &AppError{
		Code:     ErrorCodeMissingRequired,
		Severity: SeverityWarn,
		Message:  "Missing required field",
	}

	ErrInvalidFormat = &AppError{
		Code:     ErrorCodeInvalidFormat,
		Severity: SeverityWarn,
		Message:  "Invalid format",
	}

	ErrValidationFailed = &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  "Validation failed",
	}

	ErrConsentRequired = &AppError{
		Code:     ErrorCodeConsentRequired,
		Severity: SeverityWarn,
		Message:  "Consent is required before submitting diagnostics",
	}

	ErrAttachmentTooLarge = &AppError{
		Code:     ErrorCodeAttachmentTooLarge,
		Severity: SeverityWarn,
		Message:  "Attachment exceeds the size limit",
	}

	ErrAttachmentInvalidType = &AppError{
		Code:     ErrorCodeAttachmentInvalidType,
		Severity: SeverityWarn,
		Message:  "Attachment type is not accepted",
	}

	ErrTooManyAttachments = &AppError{
		Code:     ErrorCodeTooManyAttachments,
		Severity: SeverityWarn,
		Message:  "Too many attachments",
	}

	// Flow errors
	ErrInvalidTransition = &AppError{
		Code:     ErrorCodeInvalidTransition,
		Severity: SeverityWarn,
		Message:  "Action not allowed in the current step",
	}

	ErrSubmissionInFlight = &AppError{
		Code:     ErrorCodeSubmissionInFlight,
		Severity: SeverityInfo,
		Message:  "A submission is already in progress",
	}

	// Service errors
	ErrServiceUnavailable = &AppError{
		Code:     ErrorCodeServiceUnavailable,
		Severity: SeverityError,
		Message:  "Service unavailable",
	}

	ErrTimeout = &AppError{
		Code:     ErrorCodeTimeout,
		Severity: SeverityWarn,
		Message:  "Request timeout",
	}

	ErrTrackerRequestFailed = &AppError{
		Code:     ErrorCodeTrackerRequestFailed,
		Severity: SeverityError,
		Message:  "Issue tracker request failed",
	}

	ErrSubmissionFailed = &AppError{
		Code:     ErrorCodeSubmissionFailed,
		Severity: SeverityError,
		Message:  "Ticket submission failed",
	}

	ErrRequestTooLarge = &AppError{
		Code:     ErrorCodeRequestTooLarge,
		Severity: SeverityWarn,
		Message:  "Request body too large",
	}

	ErrInternalError = &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  "Internal server error",
	}
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
		Cause:    cause,
	}
}

// WrapError wraps an error with additional context, preserving AppError structure if possible
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, wrap it with additional details
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:     appErr.Code,
			Severity: appErr.Severity,
			Message:  context,
			Details:  appErr.Error(),
			Cause:    appErr,
		}
	}

	// For regular errors, create a generic internal error wrapper
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  context,
		Details:  err.Error(),
		Cause:    err,
	}
}

// WrapErrorf wraps an error with formatted context, preserving AppError structure if possible
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	// Handle %w verb for error wrapping by using fmt.Errorf
	if strings.Contains(format, "%w") {
		wrappedErr := fmt.Errorf(format, args...)

		if appErr, ok := err.(*AppError); ok {
			return &AppError{
				Code:     appErr.Code,
				Severity: appErr.Severity,
				Message:  wrappedErr.Error(),
				Details:  appErr.Error(),
				Cause:    wrappedErr,
			}
		}

		return &AppError{
			Code:     ErrorCodeInternalError,
			Severity: SeverityError,
			Message:  wrappedErr.Error(),
			Details:  err.Error(),
			Cause:    wrappedErr,
		}
	}

	context := fmt.Sprintf(format, args...)
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:     appErr.Code,
			Severity: appErr.Severity,
			Message:  context,
			Details:  appErr.Error(),
			Cause:    appErr,
		}
	}

	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  context,
		Details:  err.Error(),
		Cause:    err,
	}
}

// ErrorWithContextf creates a new error with formatted context
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsError checks if an error matches a specific AppError type.
// Wrapped AppErrors are unwrapped until a match or the end of the chain.
func IsError(err error, target *AppError) bool {
	var appErr *AppError
	for err != nil {
		if errors.As(err, &appErr) {
			if appErr.Code == target.Code {
				return true
			}
			err = appErr.Cause
			continue
		}
		return false
	}
	return false
}

// GetErrorCode returns the error code from an error if it's an AppError, otherwise returns a default code
func GetErrorCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// IsRetryable determines if an error is likely transient.
// Nothing in the pipeline retries automatically; the flag is surfaced to clients.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		switch appErr.Code {
		case ErrorCodeTimeout, ErrorCodeServiceUnavailable, ErrorCodeTrackerRequestFailed, ErrorCodeSubmissionFailed:
			return appErr.Severity != SeverityFatal
		}
	}
	return false
}

// UserMessage returns the message that is safe to show an end user.
// For wrapped AppErrors this is the innermost message that carries a user-facing code.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "An unexpected error occurred"
	}
	msg := appErr.Message
	for cause := appErr.Cause; cause != nil; {
		var inner *AppError
		if !errors.As(cause, &inner) {
			break
		}
		if inner.Code != ErrorCodeInternalError {
			msg = inner.Message
		}
		cause = inner.Cause
	}
	return msg
}

// ToJSON converts an AppError to a JSON-serializable structure for API responses
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     string(e.Code),
		"message":  e.Message,
		"severity": string(e.Severity),
		"error":    e.Message,
	}

	if e.Details != "" {
		result["details"] = e.Details
	}

	result["retryable"] = IsRetryable(e)

	return result
}

// ContextKey represents a context key type for passing values through context
type ContextKey string

const (
	// SubmissionIDKey is used to store the per-request submission id in context
	SubmissionIDKey ContextKey = "submissionID"
)

// GetSubmissionIDFromContext extracts the submission id from context, returning "" if not found
func GetSubmissionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(SubmissionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSubmissionID returns a new context with the submission id set
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SubmissionIDKey, id)
}
