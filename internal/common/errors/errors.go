// Package errors provides standardized error handling for the session
// lifecycle service.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// No valid credential at all. Not a lifecycle concern.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// Credential present but the inactivity window has elapsed.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"

	// Credential references a session with no backing record (server
	// restart, racing destroy). Clients treat this like SESSION_EXPIRED.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	ErrCodeSessionStoreUnavailable ErrorCode = "SESSION_STORE_UNAVAILABLE"
	ErrCodeCredentialsInvalid      ErrorCode = "CREDENTIALS_INVALID"
	ErrCodePolicyInvalid           ErrorCode = "POLICY_INVALID"
	ErrCodeAuditSinkFailed         ErrorCode = "AUDIT_SINK_FAILED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// Logout reasons surfaced to clients alongside SESSION_EXPIRED.
const (
	ReasonInactivityTimeout = "inactivity_timeout"
	ReasonUserLogout        = "user_logout"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewUnauthenticatedError creates a non-retryable credential error.
func NewUnauthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthenticated,
		Message:   "Request carries no valid session credential",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionExpiredError creates a non-retryable expiry error carrying
// the logout reason so clients can explain the forced redirect.
func NewSessionExpiredError(sessionID string, idleFor time.Duration) *StandardError {
	return &StandardError{
		Code:    ErrCodeSessionExpired,
		Message: "Session expired due to inactivity",
		Details: fmt.Sprintf("sessionId: %s, inactive for %.0fs", sessionID, idleFor.Seconds()),
		Metadata: map[string]interface{}{
			"reason": ReasonInactivityTimeout,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable missing-record error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session record not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable backend error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreUnavailable,
		Message:   "Session store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialsInvalidError creates a non-retryable login error.
// Details stay generic so the response leaks nothing about which part
// of the credential was wrong.
func NewCredentialsInvalidError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialsInvalid,
		Message:   "Invalid credentials",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPolicyInvalidError creates a non-retryable configuration error.
func NewPolicyInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePolicyInvalid,
		Message:   "Session policy document is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Helpers
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}

// Reason extracts the logout reason metadata, if any.
func Reason(err error) string {
	stdErr, ok := err.(*StandardError)
	if !ok || stdErr.Metadata == nil {
		return ""
	}
	reason, _ := stdErr.Metadata["reason"].(string)
	return reason
}
