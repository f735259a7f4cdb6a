package domain

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a pipeline error.
type ErrorType string

const (
	// ErrorTypeMapping indicates a request or response mapping could not produce
	// a value from its inputs.
	ErrorTypeMapping ErrorType = "mapping"

	// ErrorTypeBackendUnavailable indicates the data source could not be reached
	// or failed transiently.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeBackendRejected indicates the data source refused a well-formed
	// operation, e.g. a missing key attribute or a failed condition.
	ErrorTypeBackendRejected ErrorType = "backend_rejected"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeMissingArgument  ErrorCode = "missing_argument"
	ErrorCodeInvalidArgument  ErrorCode = "invalid_argument"
	ErrorCodeIDGeneration     ErrorCode = "id_generation"
	ErrorCodeMissingKey       ErrorCode = "missing_key"
	ErrorCodeInvalidOperation ErrorCode = "invalid_operation"
	ErrorCodeConditionFailed  ErrorCode = "condition_failed"
	ErrorCodeClosed           ErrorCode = "closed"
	ErrorCodeStorage          ErrorCode = "storage"
	ErrorCodeEncoding         ErrorCode = "encoding"
	ErrorCodeContextDone      ErrorCode = "context_done"
)

// Error is the canonical error raised while resolving a field.
type Error struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Stage names the function (or outer mapping) that raised the error.
	Stage string `json:"stage,omitempty"`

	// DataSource names the data source involved, if any.
	DataSource string `json:"data_source,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil && msg == "" {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool {
	return e.Type == ErrorTypeBackendUnavailable
}

// NewError creates a new pipeline error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithStage records the stage that raised the error.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithDataSource records the data source involved.
func (e *Error) WithDataSource(name string) *Error {
	e.DataSource = name
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// ErrMapping creates a mapping error.
func ErrMapping(message string) *Error {
	return NewError(ErrorTypeMapping, message)
}

// ErrBackendUnavailable creates a backend unavailable error.
func ErrBackendUnavailable(message string) *Error {
	return NewError(ErrorTypeBackendUnavailable, message)
}

// ErrBackendRejected creates a backend rejected error.
func ErrBackendRejected(message string) *Error {
	return NewError(ErrorTypeBackendRejected, message)
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType reports whether err carries a pipeline error of the given type.
func IsType(err error, t ErrorType) bool {
	e, ok := AsError(err)
	return ok && e.Type == t
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable()
}
