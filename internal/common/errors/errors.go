// Package errors provides the standardized error taxonomy of the delivery
// engine. Pre-dispatch failures (validation, template lookup, preference
// denial) surface synchronously to callers; transport failures are absorbed
// into record state and drive the retry policy.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeTemplateNotFound      ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodePreferenceDenied      ErrorCode = "PREFERENCE_DENIED"
	ErrCodeRecipientMissing      ErrorCode = "RECIPIENT_MISSING"
	ErrCodeTransportFailed       ErrorCode = "TRANSPORT_ERROR"
	ErrCodeProviderUnconfigured  ErrorCode = "PROVIDER_UNCONFIGURED"
	ErrCodeRetriesExhausted      ErrorCode = "RETRIES_EXHAUSTED"
	ErrCodeDatabaseQueryFailed   ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed  ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeWebhookPayloadInvalid ErrorCode = "WEBHOOK_PAYLOAD_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable submit/request validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template lookup error.
func NewTemplateNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "No matching active template",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferenceDeniedError creates a non-retryable preference gate denial.
// The reason string is what Submit reports back to the caller.
func NewPreferenceDeniedError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferenceDenied,
		Message:   "preferences forbid delivery",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecipientMissingError creates a non-retryable missing-destination error.
func NewRecipientMissingError(channel, userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientMissing,
		Message:   "No destination on file for channel",
		Details:   fmt.Sprintf("channel: %s, userId: %s", channel, userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError creates a retryable provider transport error.
func NewTransportError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   fmt.Sprintf("Provider '%s' send failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportTimeoutError creates a retryable timeout error. A timed-out
// attempt is treated identically to any other transport failure.
func NewTransportTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   fmt.Sprintf("Provider '%s' send timed out", provider),
		Details:   "attempt exceeded dispatch timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryError creates a retryable store read error.
func NewDatabaseQueryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Store query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertError creates a retryable store write error.
func NewDatabaseInsertError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Store write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookPayloadError creates a non-retryable malformed-payload error.
// Webhook ingestion logs these and acknowledges anyway.
func NewWebhookPayloadError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookPayloadInvalid,
		Message:   fmt.Sprintf("Unparseable webhook payload from '%s'", provider),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, or empty when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err should feed the retry policy. Unknown
// errors are treated as retryable transport-level failures.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// DeliveryCode returns the error code to persist on a record's delivery
// block for the given dispatch failure.
func DeliveryCode(err error) string {
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return string(ErrCodeTransportFailed)
}
