// Package faults defines the error taxonomy shared by every aegis component.
// A Fault wraps domain or infrastructure failures with a stable code, a
// severity level, and a fixed user-facing message. Internal details (wrapped
// errors, raw response bodies) are for logs only and must never reach end
// users.
package faults

import (
	"errors"
	"fmt"
)

// Code represents a failure category independent of transport layer.
type Code string

const (
	CodeNetworkOffline    Code = "network_offline"
	CodeRequestTimeout    Code = "request_timeout"
	CodeRateLimited       Code = "rate_limited"
	CodeAuthFailed        Code = "auth_failed"
	CodeAPIError          Code = "api_error"
	CodeEncryptionError   Code = "encryption_error"
	CodeDecryptionError   Code = "decryption_error"
	CodeSessionTimeout    Code = "session_timeout"
	CodeTokenRefreshError Code = "token_refresh_error"
	CodeStorageError      Code = "storage_error"
	CodeValidation        Code = "validation_failed"
	CodeInternal          Code = "internal_error"
)

// Severity classifies how loudly a fault should be surfaced and logged.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Fault is the error type surfaced by every aegis operation.
// Code, Severity, and UserMessage are always populated.
type Fault struct {
	Code        Code
	Severity    Severity
	UserMessage string
	// Status holds the HTTP status for CodeAPIError faults, zero otherwise.
	Status int
	// RetryAfter holds seconds until a rate-limited endpoint resets,
	// zero for all other codes.
	RetryAfter int
	Err        error
}

// Error implements the error interface. The message is the internal view;
// UserMessage is what callers may show to people.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Code, f.Err)
	}
	return string(f.Code) + ": " + f.UserMessage
}

// Unwrap implements error unwrapping for error chains.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is enables errors.Is() to match faults by code.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return f.Code == t.Code
}

// defaultMessages maps codes to their fixed user-facing messages.
var defaultMessages = map[Code]string{
	CodeNetworkOffline:    "No internet connection. Please check your network and try again.",
	CodeRequestTimeout:    "The request took too long. Please try again.",
	CodeRateLimited:       "Too many requests. Please wait a moment and try again.",
	CodeAuthFailed:        "Your session has expired. Please sign in again.",
	CodeAPIError:          "Something went wrong. Please try again.",
	CodeEncryptionError:   "A security error occurred. Please try again.",
	CodeDecryptionError:   "A security error occurred. Please try again.",
	CodeSessionTimeout:    "You were signed out due to inactivity. Please sign in again.",
	CodeTokenRefreshError: "Your session could not be renewed. Please sign in again.",
	CodeStorageError:      "Something went wrong. Please try again.",
	CodeValidation:        "The request was invalid.",
	CodeInternal:          "Something went wrong. Please try again.",
}

// defaultSeverities maps codes to their default severity.
var defaultSeverities = map[Code]Severity{
	CodeNetworkOffline:    SeverityWarning,
	CodeRequestTimeout:    SeverityWarning,
	CodeRateLimited:       SeverityWarning,
	CodeAuthFailed:        SeverityError,
	CodeAPIError:          SeverityError,
	CodeEncryptionError:   SeverityCritical,
	CodeDecryptionError:   SeverityCritical,
	CodeSessionTimeout:    SeverityInfo,
	CodeTokenRefreshError: SeverityError,
	CodeStorageError:      SeverityError,
	CodeValidation:        SeverityWarning,
	CodeInternal:          SeverityError,
}

// New creates a fault with the code's default severity and user message.
func New(code Code, internal string) *Fault {
	f := &Fault{
		Code:        code,
		Severity:    severityFor(code),
		UserMessage: defaultMessages[code],
	}
	if internal != "" {
		f.Err = errors.New(internal)
	}
	return f
}

// Wrap creates a fault wrapping an existing error.
// If err is already a Fault, its code and severity are preserved.
func Wrap(err error, code Code, internal string) *Fault {
	var existing *Fault
	if errors.As(err, &existing) {
		return &Fault{
			Code:        existing.Code,
			Severity:    existing.Severity,
			UserMessage: existing.UserMessage,
			Status:      existing.Status,
			RetryAfter:  existing.RetryAfter,
			Err:         fmt.Errorf("%s: %w", internal, err),
		}
	}
	return &Fault{
		Code:        code,
		Severity:    severityFor(code),
		UserMessage: defaultMessages[code],
		Err:         fmt.Errorf("%s: %w", internal, err),
	}
}

// HasCode checks whether an error is a fault with the given code.
func HasCode(err error, code Code) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code == code
	}
	return false
}

// As extracts the Fault from an error chain, or nil.
func As(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// statusMessages is the fixed status -> user message table. Statuses not
// listed here fall back to the generic API error message.
var statusMessages = map[int]string{
	400: "The request could not be processed. Please check your input.",
	401: "Your session has expired. Please sign in again.",
	403: "You don't have permission to do that.",
	404: "The requested resource was not found.",
	408: "The request took too long. Please try again.",
	429: "Too many requests. Please wait a moment and try again.",
	500: "The server encountered a problem. Please try again later.",
	502: "The service is temporarily unavailable. Please try again later.",
	503: "The service is temporarily unavailable. Please try again later.",
}

// FromStatus classifies a non-2xx HTTP status into a fault.
// 401 maps to CodeAuthFailed and 429 to CodeRateLimited; everything else is
// CodeAPIError carrying the status.
func FromStatus(status int) *Fault {
	msg, ok := statusMessages[status]
	if !ok {
		msg = defaultMessages[CodeAPIError]
	}
	code := CodeAPIError
	switch status {
	case 401:
		code = CodeAuthFailed
	case 429:
		code = CodeRateLimited
	}
	return &Fault{
		Code:        code,
		Severity:    severityForStatus(status),
		UserMessage: msg,
		Status:      status,
		Err:         fmt.Errorf("http status %d", status),
	}
}

// RateLimited creates a rate-limit fault carrying seconds until reset.
func RateLimited(retryAfter int) *Fault {
	f := New(CodeRateLimited, fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter))
	f.RetryAfter = retryAfter
	return f
}

func severityFor(code Code) Severity {
	if s, ok := defaultSeverities[code]; ok {
		return s
	}
	return SeverityError
}

func severityForStatus(status int) Severity {
	if status >= 500 {
		return SeverityError
	}
	return SeverityWarning
}
