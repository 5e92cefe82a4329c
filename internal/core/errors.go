package core

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidOperation    Code = "INVALID_OPERATION"
	CodeParticipantExists   Code = "PARTICIPANT_EXISTS"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"
	CodeUnknownCurrency     Code = "UNKNOWN_CURRENCY"
	CodeItemOutOfRange      Code = "ITEM_OUT_OF_RANGE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidRecord       Code = "INVALID_RECORD"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context, e.g. participant_id
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface as "CODE: message".
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

var (
	// ErrSplitExpense is returned by single-item mutators called on an
	// expense with more than one item.
	ErrSplitExpense = New(CodeInvalidOperation, "split expense")

	ErrNotFound        = New(CodeNotFound, "not found")
	ErrEmptyID         = New(CodeInvalidRecord, "empty id")
	ErrEmptyCurrency   = New(CodeInvalidRecord, "empty currency code")
	ErrInvalidRate     = New(CodeUnknownCurrency, "currency rate must be positive")
	ErrItemOutOfRange  = New(CodeItemOutOfRange, "item index out of range")
	ErrUnknownCurrency = New(CodeUnknownCurrency, "unknown currency")
)
