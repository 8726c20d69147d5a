// Package errors provides the error taxonomy of the lookup service.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSourceUnavailable   ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeSchemaMismatch      ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeScopeViolation      ErrorCode = "SCOPE_VIOLATION"
	ErrCodeNoMatch             ErrorCode = "NO_MATCH"
	ErrCodeAmbiguous           ErrorCode = "AMBIGUOUS"
	ErrCodeBranchNotConfigured ErrorCode = "BRANCH_NOT_CONFIGURED"
	ErrCodeInvalidPayload      ErrorCode = "INVALID_PAYLOAD"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// NewSourceUnavailableError reports a network failure or timeout reaching a tabular source.
func NewSourceUnavailableError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceUnavailable,
		Message:   fmt.Sprintf("source '%s' unavailable", source),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSchemaMismatchError reports source data missing required fields.
func NewSchemaMismatchError(source, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMismatch,
		Message:   fmt.Sprintf("source '%s' does not match the expected schema", source),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthorizedError(operatorID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "operator is not present in the permission directory",
		Details:   fmt.Sprintf("operator %d", operatorID),
		Retryable: false,
		Metadata:  map[string]interface{}{"operatorId": operatorID},
		Timestamp: time.Now().UTC(),
	}
}

func NewScopeViolationError(query, region string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScopeViolation,
		Message:   "asset exists outside the operator's region scope",
		Details:   fmt.Sprintf("query %q, region scope %q", query, region),
		Retryable: true,
		Metadata:  map[string]interface{}{"query": query, "regionScope": region},
		Timestamp: time.Now().UTC(),
	}
}

func NewBranchNotConfiguredError(branch string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBranchNotConfigured,
		Message:   "no dataset source configured for branch",
		Details:   branch,
		Retryable: true,
		Metadata:  map[string]interface{}{"branch": branch},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "invalid inbound payload",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// As extracts a StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := As(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsRetryable reports whether the operator can immediately retry with a new message.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeUnauthorized, ErrCodeSchemaMismatch:
		return false
	default:
		return true
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SOURCE") || strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "BRANCH"):
		return "DATA_SOURCE"
	case strings.Contains(codeStr, "UNAUTHORIZED") || strings.Contains(codeStr, "SCOPE"):
		return "AUTHORIZATION"
	case code == ErrCodeNoMatch || code == ErrCodeAmbiguous:
		return "QUERY"
	case strings.Contains(codeStr, "PAYLOAD"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
