package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the unified harness error type.
type Error struct {
	// Code is a machine-readable error code.
	Code Code `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// --- Common Error Constructors ---

// Configuration creates an Error for a problem building the block graph.
func Configuration(format string, args ...any) *Error {
	return &Error{
		Code:    CodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// AmbiguousBlock creates an Error for a block name matching several ids.
func AmbiguousBlock(name string, ids []string) *Error {
	return &Error{
		Code:    CodeAmbiguousBlock,
		Message: fmt.Sprintf("block name %q matches multiple blocks; reference one by id", name),
		Details: map[string]any{"name": name, "ids": ids},
	}
}

// NotFound creates an Error for a resource that could not be resolved.
func NotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("no %s with identifier %q found", resource, identifier),
		Details: map[string]any{"resource": resource, "identifier": identifier},
	}
}

// SchemaValidation creates an Error for a signal failing topic schema
// validation.
func SchemaValidation(topic string, cause error) *Error {
	return &Error{
		Code:    CodeSchemaValidation,
		Message: fmt.Sprintf("topic %q received an invalid signal", topic),
		Details: map[string]any{"topic": topic},
		Cause:   cause,
	}
}

// Assertion creates an Error for an ordinary failed test expectation.
func Assertion(format string, args ...any) *Error {
	return &Error{
		Code:    CodeAssertion,
		Message: fmt.Sprintf(format, args...),
	}
}

// CountMismatch creates an assertion Error carrying expected and actual
// counts.
func CountMismatch(what string, expected, actual int) *Error {
	return &Error{
		Code:    CodeAssertion,
		Message: fmt.Sprintf("amount of %s not equal to %d, actual: %d", what, expected, actual),
		Details: map[string]any{"expected": expected, "actual": actual},
	}
}

// --- Predicates ---

// CodeOf returns the code of err if it is a harness Error, or "" otherwise.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfiguration reports whether err is a configuration error. Ambiguous
// block references count as configuration errors for this check.
func IsConfiguration(err error) bool {
	code := CodeOf(err)
	return code == CodeConfiguration || code == CodeAmbiguousBlock || code == CodeNotFound
}

// IsAmbiguousBlock reports whether err is an ambiguous block reference.
func IsAmbiguousBlock(err error) bool { return CodeOf(err) == CodeAmbiguousBlock }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsSchemaValidation reports whether err is a schema validation failure.
func IsSchemaValidation(err error) bool { return CodeOf(err) == CodeSchemaValidation }

// IsAssertion reports whether err is a normal failed test expectation.
func IsAssertion(err error) bool { return CodeOf(err) == CodeAssertion }
