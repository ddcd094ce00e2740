// Package core provides the shared error taxonomy for the contract harness.
package core

import (
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure a step produced
type ErrorType string

const (
	// ErrorTypeTransport indicates no response was received (connection refused, timeout)
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeAssertion indicates a response was received but an expectation was unmet
	ErrorTypeAssertion ErrorType = "assertion_failure"
	// ErrorTypeSchema indicates the response body did not match its declared schema
	ErrorTypeSchema ErrorType = "schema_violation"
	// ErrorTypeDefinition indicates a malformed step (unknown placeholder, bad body)
	ErrorTypeDefinition ErrorType = "definition_error"
	// ErrorTypeUnexpected indicates a recovered panic or other unplanned failure
	ErrorTypeUnexpected ErrorType = "unexpected_error"
)

// HarnessError is the base error type for all step failures
type HarnessError struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
	// Details holds one line per individual problem (e.g. each schema violation)
	Details []string `json:"details,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *HarnessError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	return msg
}

// Unwrap implements the error unwrapping interface
func (e *HarnessError) Unwrap() error {
	return e.Err
}

// NewTransportError creates an error for a request that produced no response
func NewTransportError(message string, err error) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewAssertionError creates an error describing an unmet expectation
func NewAssertionError(message, expected, actual string) *HarnessError {
	return &HarnessError{
		Type:     ErrorTypeAssertion,
		Message:  message,
		Expected: expected,
		Actual:   actual,
	}
}

// NewSchemaError creates an error listing every schema violation found in a body
func NewSchemaError(schemaName string, violations []string) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeSchema,
		Message: fmt.Sprintf("body does not match schema %q (%d violations)", schemaName, len(violations)),
		Details: violations,
	}
}

// NewDefinitionError creates an error for a step that cannot be executed as written
func NewDefinitionError(message string, err error) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeDefinition,
		Message: message,
		Err:     err,
	}
}

// NewUnexpectedError creates an error for a recovered panic
func NewUnexpectedError(message string) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeUnexpected,
		Message: message,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnexpected for foreign errors.
func TypeOf(err error) ErrorType {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Type
	}
	return ErrorTypeUnexpected
}
