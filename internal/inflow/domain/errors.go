package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies sync failures for logs and API payloads.
type ErrorCode string

const (
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeNetwork       ErrorCode = "NETWORK_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeUpstream      ErrorCode = "UPSTREAM_ERROR"
	CodeMalformed     ErrorCode = "MALFORMED_RESPONSE"
	CodeDatabase      ErrorCode = "DATABASE_ERROR"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrInvalidQuery     = errors.New("invalid page query")
	ErrEmptyOrderNumber = errors.New("order number is empty")
)

// ConfigurationError means a sync cannot start: missing credentials, bad policy.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Code() ErrorCode { return CodeInvalidConfig }

// UpstreamError is a failed inFlow call. StatusCode is 0 when no response arrived.
type UpstreamError struct {
	Op         string
	StatusCode int
	ErrCode    ErrorCode
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s failed: status %d (%s): %v", e.Op, e.StatusCode, e.ErrCode, e.Err)
	}
	return fmt.Sprintf("upstream %s failed (%s): %v", e.Op, e.ErrCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Code() ErrorCode { return e.ErrCode }

// ReconciliationError wraps a failed upsert of a single matched record.
type ReconciliationError struct {
	OrderNumber string
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile order %q: %v", e.OrderNumber, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func (e *ReconciliationError) Code() ErrorCode {
	if errors.Is(e.Err, ErrEmptyOrderNumber) {
		return CodeInvalidInput
	}
	return CodeDatabase
}

// CodeOf returns the classification of err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var coded interface{ Code() ErrorCode }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
