package codeflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/codeflow/internal/compiler"
	"github.com/aretw0/codeflow/internal/runtime"
	"github.com/aretw0/codeflow/pkg/adapters/jsvm"
	"github.com/aretw0/codeflow/pkg/adapters/memory"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/aretw0/codeflow/pkg/replay"
	"github.com/aretw0/codeflow/pkg/session"
	"github.com/aretw0/codeflow/pkg/templates"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds simultaneous trace builds of one Engine.
const DefaultMaxConcurrent = 4

// Engine is the high-level entry point for the codeflow library.
// It wraps the internal runtime and the replay session manager and provides a
// simplified API for consumers. It is safe for concurrent use.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	executor ports.Executor
	store    ports.RecordingStore
	locker   ports.DistributedLocker
	hooks    domain.TraceHooks
	logger   *slog.Logger
	sem      *semaphore.Weighted

	maxConcurrent  int64
	maxEvents      int
	maxSourceBytes int
	replayOpts     []replay.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithExecutor sets the execution collaborator (default: in-process goja).
func WithExecutor(executor ports.Executor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithStore sets the recording store (default: in-memory).
func WithStore(store ports.RecordingStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of replay sessions.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithTraceHooks registers observability hooks.
func WithTraceHooks(hooks domain.TraceHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxEvents caps the events of one run. Zero or less disables the cap.
func WithMaxEvents(n int) Option {
	return func(e *Engine) {
		e.maxEvents = n
	}
}

// WithMaxSourceBytes rejects larger sources. Zero or less disables the check.
func WithMaxSourceBytes(n int) Option {
	return func(e *Engine) {
		e.maxSourceBytes = n
	}
}

// WithMaxConcurrent bounds simultaneous trace builds.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = int64(n)
		}
	}
}

// WithLookbackUnwind makes replay sessions use the lookback unwinding strategy.
func WithLookbackUnwind() Option {
	return func(e *Engine) {
		e.replayOpts = append(e.replayOpts, replay.WithLookbackUnwind())
	}
}

// New initializes a new codeflow Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{
		maxConcurrent: DefaultMaxConcurrent,
		maxEvents:     domain.DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.executor == nil {
		eng.executor = jsvm.New()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	eng.sem = semaphore.NewWeighted(eng.maxConcurrent)

	eng.runtime = runtime.NewEngine(eng.executor,
		runtime.WithLogger(eng.logger),
		runtime.WithTraceHooks(eng.hooks),
		runtime.WithMaxEvents(eng.maxEvents),
		runtime.WithMaxSourceBytes(eng.maxSourceBytes),
	)

	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithReplayOptions(eng.replayOpts...),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)
	return eng
}

// Trace builds the trace of req.SourceText. See runtime.Engine.Trace for the
// split between returned errors and results with status "error".
func (e *Engine) Trace(ctx context.Context, req domain.TraceRequest) (*domain.TraceResult, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	return e.runtime.Trace(ctx, req)
}

// TraceSource traces src with default request settings.
func (e *Engine) TraceSource(ctx context.Context, src string) (*domain.TraceResult, error) {
	return e.Trace(ctx, domain.TraceRequest{SourceText: src})
}

// Compile instruments src without running it.
func (e *Engine) Compile(ctx context.Context, req domain.TraceRequest) (*compiler.Unit, error) {
	return e.runtime.Compile(ctx, req)
}

// Record traces req and stores the result as a recording with a fresh replay session.
// Programs that fail at runtime are recorded too; their recordings have no events.
func (e *Engine) Record(ctx context.Context, req domain.TraceRequest) (*domain.Recording, error) {
	result, err := e.Trace(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.sessions.Create(ctx, req.SourceText, req.Breakpoints, result)
}

// Recording loads a stored recording.
func (e *Engine) Recording(ctx context.Context, id string) (*domain.Recording, error) {
	return e.sessions.Load(ctx, id)
}

// Recordings lists stored recording IDs.
func (e *Engine) Recordings(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// DeleteRecording removes a recording and its session.
func (e *Engine) DeleteRecording(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}

// Step moves the replay cursor of a recording.
func (e *Engine) Step(ctx context.Context, id string, action domain.StepAction) (*session.View, error) {
	return e.sessions.Step(ctx, id, action)
}

// View returns the replay state of a recording without moving its cursor.
func (e *Engine) View(ctx context.Context, id string) (*session.View, error) {
	return e.sessions.View(ctx, id)
}

// RenderTemplate returns the program of a built-in algorithm template for input.
func (e *Engine) RenderTemplate(name, input string) (string, error) {
	return templates.Render(name, input)
}

// TraceTemplate renders and traces a built-in algorithm template.
func (e *Engine) TraceTemplate(ctx context.Context, name, input string) (*domain.TraceResult, error) {
	src, err := e.RenderTemplate(name, input)
	if err != nil {
		return nil, err
	}
	return e.TraceSource(ctx, src)
}

// Sessions returns the replay session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Executor returns the execution collaborator.
func (e *Engine) Executor() ports.Executor {
	return e.executor
}

// Close releases the store when it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}
	return nil
}

