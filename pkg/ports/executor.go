package ports

import (
	"context"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Hooks is the contract between injected code and the trace event log.
// Implementations return an error to stop the run (for example when an event
// limit is reached); executors surface it as a runtime exception.
type Hooks interface {
	// LogStep appends an event of the given kind, merging variables into the running scope.
	LogStep(line int, kind domain.EventKind, functionName string, variables map[string]any) error

	// UpdateScope records the latest value of a variable for subsequent events.
	UpdateScope(name string, value any) error

	// LogArrayState appends a snapshot of the tracked array.
	LogArrayState(array []any, line int, tag string) error
}

// Executor runs an instrumented program to completion or error.
// It exposes hooks to the program as the global __hooks object, runs
// program.Prelude and then program.Source, and captures printed output.
// Runtime failures are reported as *domain.ExecutionError.
type Executor interface {
	Execute(ctx context.Context, program domain.Program, hooks Hooks) (*domain.Execution, error)
}

// SyntaxChecker is implemented by executors able to parse a program without running it.
type SyntaxChecker interface {
	CheckSyntax(name, source string) error
}
