package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/codeflow/internal/compiler"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/aretw0/codeflow/pkg/replay"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("codeflow.runtime")

// Engine builds trace results: it compiles the source, runs the instrumented
// program on an Executor with a fresh Recorder, and finalizes the log.
// An Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	executor       ports.Executor
	logger         *slog.Logger
	hooks          domain.TraceHooks
	maxEvents      int
	maxSourceBytes int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTraceHooks registers observability callbacks.
func WithTraceHooks(hooks domain.TraceHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxEvents caps the events of a single run. Zero or less disables the cap.
func WithMaxEvents(n int) EngineOption {
	return func(e *Engine) {
		e.maxEvents = n
	}
}

// WithMaxSourceBytes rejects larger sources with domain.ErrSourceTooLarge.
// Zero or less disables the check.
func WithMaxSourceBytes(n int) EngineOption {
	return func(e *Engine) {
		e.maxSourceBytes = n
	}
}

// NewEngine creates an engine running programs on executor.
func NewEngine(executor ports.Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		executor:  executor,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxEvents: domain.DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile instruments the request source without running it.
func (e *Engine) Compile(ctx context.Context, req domain.TraceRequest) (*compiler.Unit, error) {
	_, span := tracer.Start(ctx, "runtime.Compile")
	defer span.End()

	if e.maxSourceBytes > 0 && len(req.SourceText) > e.maxSourceBytes {
		err := fmt.Errorf("%w: %d bytes, limit %d", domain.ErrSourceTooLarge, len(req.SourceText), e.maxSourceBytes)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	unit, err := compiler.Compile(req.SourceText, req.TrackedArrayName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("codeflow.algorithm", string(unit.Algorithm)),
		attribute.Int("codeflow.lines", unit.Program.Lines),
	)
	return unit, nil
}

// Trace runs one trace build.
//
// Fatal problems (empty or oversized source, instrumentation failures,
// cancellation) are returned as errors. A program that fails at runtime is not
// an error of Trace: the result has status "error", the message, and no events.
func (e *Engine) Trace(ctx context.Context, req domain.TraceRequest) (*domain.TraceResult, error) {
	ctx, span := tracer.Start(ctx, "runtime.Trace", trace.WithAttributes(
		attribute.Int("codeflow.source_bytes", len(req.SourceText)),
	))
	defer span.End()

	if e.hooks.OnTraceStart != nil {
		e.hooks.OnTraceStart(ctx, &req)
	}

	run, err := e.trace(ctx, req)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.hooks.OnTraceFailed != nil {
			e.hooks.OnTraceFailed(ctx, &req, err)
		}
		return nil, err
	case run.failure != nil:
		span.SetStatus(codes.Error, run.result.Error)
		if e.hooks.OnTraceFailed != nil {
			e.hooks.OnTraceFailed(ctx, &req, run.failure)
		}
	default:
		span.SetAttributes(attribute.Int("codeflow.events", len(run.result.Events)))
		if e.hooks.OnTraceComplete != nil {
			e.hooks.OnTraceComplete(ctx, run.result)
		}
	}
	return run.result, nil
}

// traceRun is a finished build. failure is the program error behind a
// status "error" result.
type traceRun struct {
	result  *domain.TraceResult
	failure error
}

func failedRun(result *domain.TraceResult, failure error) *traceRun {
	result.Status = domain.StatusError
	result.Error = failure.Error()
	return &traceRun{result: result, failure: failure}
}

// trace returns fatal problems as errors.
func (e *Engine) trace(ctx context.Context, req domain.TraceRequest) (*traceRun, error) {
	unit, err := e.Compile(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &domain.TraceResult{
		Events:       []domain.TraceEvent{},
		Algorithm:    unit.Algorithm,
		TrackedArray: unit.TrackedArray,
	}

	if checker, ok := e.executor.(ports.SyntaxChecker); ok {
		// A broken user program is a runtime failure; a broken rewrite of a
		// valid program is ours.
		if err := checker.CheckSyntax("main.js", unit.Program.Original); err != nil {
			return failedRun(result, &domain.ExecutionError{Message: err.Error(), Cause: err}), nil
		}
		if err := checker.CheckSyntax("main.js", unit.Program.Source); err != nil {
			return nil, &domain.InstrumentationError{
				Message:    fmt.Sprintf("instrumented program does not parse: %v", err),
				Suggestion: "split multi-statement lines or add braces around control bodies",
			}
		}
	}

	recorder := NewRecorder(WithBreakpoints(req.Breakpoints), WithEventLimit(e.maxEvents))
	e.logger.Debug("executing instrumented program",
		"algorithm", unit.Algorithm,
		"tracked_array", unit.TrackedArray,
		"lines", unit.Program.Lines,
	)

	exec, err := e.execute(ctx, unit.Program, recorder)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, domain.ErrExecutionTimeout) {
			return nil, ctxErr
		}
		if limitErr := recorder.Err(); limitErr != nil && !errors.Is(err, limitErr) {
			err = &domain.ExecutionError{Message: limitErr.Error(), Cause: limitErr}
		}
		e.logger.Warn("program execution failed", "err", err, "events_discarded", recorder.Len())
		return failedRun(result, err), nil
	}

	if limitErr := recorder.Err(); limitErr != nil {
		// The program swallowed the hook failure in its own try/catch.
		e.logger.Warn("program execution failed", "err", limitErr, "events_discarded", recorder.Len())
		return failedRun(result, &domain.ExecutionError{Message: limitErr.Error(), Cause: limitErr}), nil
	}

	result.Status = domain.StatusSuccess
	result.Events = recorder.Events()
	result.Output = exec.Output
	result.ExecutionTime = exec.Elapsed.Milliseconds()
	result.Stats = replay.Summarize(result.Events, unit.Lines, unit.TrackedArray)

	e.logger.Debug("trace built",
		"events", len(result.Events),
		"elapsed", exec.Elapsed,
	)
	return &traceRun{result: result}, nil
}

func (e *Engine) execute(ctx context.Context, program domain.Program, recorder *Recorder) (*domain.Execution, error) {
	ctx, span := tracer.Start(ctx, "runtime.Execute")
	defer span.End()

	exec, err := e.executor.Execute(ctx, program, recorder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("codeflow.events", recorder.Len()))
	return exec, nil
}
