package llm

import (
	"errors"
	"fmt"
)

// Error types for classifying LLM errors.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// SchemaViolationError reports that a structured-extraction response could
// not be decoded into, or did not validate against, the requested schema.
// Stages recover from it locally; it never terminates a run.
type SchemaViolationError struct {
	Schema string // schema (Go type) name
	Raw    string // raw model output, truncated
	err    error
}

// maxRawInViolation caps how much model output is retained in the error.
const maxRawInViolation = 300

// NewSchemaViolationError wraps a decode or validation failure.
func NewSchemaViolationError(schema, raw string, err error) *SchemaViolationError {
	if len(raw) > maxRawInViolation {
		raw = raw[:maxRawInViolation] + "..."
	}
	return &SchemaViolationError{Schema: schema, Raw: raw, err: err}
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("response does not conform to schema %s: %v", e.Schema, e.err)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.err
}

// IsSchemaViolation returns true if the error is a schema violation.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolationError
	return errors.As(err, &sv)
}
