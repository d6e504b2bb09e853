package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySource is returned when a trace is requested for blank source text.
var ErrEmptySource = errors.New("empty source")

// ErrSourceTooLarge is returned when the source exceeds the configured size limit.
var ErrSourceTooLarge = errors.New("source exceeds maximum size")

// ErrInstrumentation is the kind of every InstrumentationError.
var ErrInstrumentation = errors.New("instrumentation failure")

// ErrExecution is the kind of every ExecutionError.
var ErrExecution = errors.New("execution failure")

// ErrExecutionTimeout is returned when the host runtime exceeds its time budget.
var ErrExecutionTimeout = errors.New("execution timed out")

// ErrEventLimitExceeded is returned when a program emits more events than allowed.
var ErrEventLimitExceeded = errors.New("trace event limit exceeded")

// ErrRecordingNotFound is returned when a recording ID cannot be found in the store.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrUnknownTemplate is returned when an algorithm template name is not registered.
var ErrUnknownTemplate = errors.New("unknown template")

// ErrInvalidInput is returned when template input fails validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownAction is returned when a replay step action is not recognized.
var ErrUnknownAction = errors.New("unknown step action")

// InstrumentationError reports source that cannot be mapped to hooks safely.
// It aborts the whole trace build.
type InstrumentationError struct {
	Line       int
	Column     int
	Message    string
	Suggestion string
}

func (e *InstrumentationError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d:%d: ", e.Line, e.Column)
	}
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		b.WriteString("\n  suggestion: ")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}

func (e *InstrumentationError) Unwrap() error { return ErrInstrumentation }

// ExecutionError reports a runtime failure raised by the execution collaborator.
type ExecutionError struct {
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrExecution, e.Cause}
	}
	return []error{ErrExecution}
}
