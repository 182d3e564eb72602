package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeChallenge    ErrorType = "challenge"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeClient       ErrorType = "client_error"
	ErrorTypeTransmission ErrorType = "transmission"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsCredentialExpired reports whether err means the session was rejected
func IsCredentialExpired(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeAuth
}

// Outcome is the tagged result every relay layer reports upward.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRecoverable
	OutcomeCredentialExpired
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeCredentialExpired:
		return "credential_expired"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps an error onto the Outcome taxonomy.
//
// The type of a typed error wins over anything it wraps, so an HTTP client
// timeout typed as a network error stays Recoverable. Untyped errors,
// including bare context errors, are Fatal.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var typed *Error
	if !errors.As(err, &typed) {
		return OutcomeFatal
	}

	switch typed.Type {
	case ErrorTypeAuth:
		return OutcomeCredentialExpired
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeParsing, ErrorTypeNotFound,
		ErrorTypeServerError, ErrorTypeClient, ErrorTypeForbidden,
		ErrorTypeTransmission, ErrorTypeChallenge:
		return OutcomeRecoverable
	default:
		return OutcomeFatal
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
