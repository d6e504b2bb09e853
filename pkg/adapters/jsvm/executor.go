// Package jsvm runs instrumented programs in process on the goja ECMAScript engine.
package jsvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single run.
const DefaultTimeout = 15 * time.Second

// Executor implements ports.Executor and ports.SyntaxChecker.
// Every Execute call gets its own goja runtime.
type Executor struct {
	timeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the run time budget. Zero or less disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// New creates an executor.
func New(opts ...Option) *Executor {
	e := &Executor{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckSyntax parses source without running it.
func (e *Executor) CheckSyntax(name, source string) error {
	if _, err := goja.Compile(name, source, false); err != nil {
		return fmt.Errorf("SyntaxError: %w", err)
	}
	return nil
}

// Execute runs program.Prelude then program.Source with hooks bound to __hooks.
func (e *Executor) Execute(ctx context.Context, program domain.Program, hooks ports.Hooks) (*domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vm := goja.New()
	var out output
	if err := bind(vm, hooks, &out); err != nil {
		return nil, fmt.Errorf("failed to prepare runtime: %w", err)
	}

	stop := context.AfterFunc(runCtx, func() {
		vm.Interrupt(runCtx.Err())
	})
	defer stop()

	start := time.Now()
	if _, err := vm.RunScript("prelude.js", program.Prelude); err != nil {
		return nil, e.classify(ctx, runCtx, err)
	}
	_, err := vm.RunScript("main.js", program.Source)
	elapsed := time.Since(start)
	if err != nil {
		return nil, e.classify(ctx, runCtx, err)
	}
	return &domain.Execution{Output: out.String(), Elapsed: elapsed}, nil
}

func (e *Executor) classify(parent, runCtx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if parent.Err() != nil {
			return parent.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return &domain.ExecutionError{
				Message: fmt.Sprintf("execution timed out after %s", e.timeout),
				Cause:   domain.ErrExecutionTimeout,
			}
		}
		return &domain.ExecutionError{Message: interrupted.Error()}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &domain.ExecutionError{Message: ex.Error()}
	}
	return &domain.ExecutionError{Message: err.Error(), Cause: err}
}

// output collects console writes.
type output struct {
	mu sync.Mutex
	b  strings.Builder
}

func (o *output) println(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.b.WriteString(line)
	o.b.WriteByte('\n')
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

func bind(vm *goja.Runtime, hooks ports.Hooks, out *output) error {
	fail := func(err error) {
		panic(vm.NewGoError(err))
	}

	h := vm.NewObject()
	err := errors.Join(
		h.Set("logStep", func(call goja.FunctionCall) goja.Value {
			line := int(call.Argument(0).ToInteger())
			kind := domain.EventKind(call.Argument(1).String())
			var name string
			if fn := call.Argument(2); !goja.IsNull(fn) && !goja.IsUndefined(fn) {
				name = fn.String()
			}
			vars, _ := call.Argument(3).Export().(map[string]any)
			if err := hooks.LogStep(line, kind, name, vars); err != nil {
				fail(err)
			}
			return goja.Undefined()
		}),
		h.Set("updateScope", func(call goja.FunctionCall) goja.Value {
			if err := hooks.UpdateScope(call.Argument(0).String(), call.Argument(1).Export()); err != nil {
				fail(err)
			}
			return goja.Undefined()
		}),
		h.Set("logArrayState", func(call goja.FunctionCall) goja.Value {
			array, _ := call.Argument(0).Export().([]any)
			line := int(call.Argument(1).ToInteger())
			var tag string
			if t := call.Argument(2); !goja.IsUndefined(t) && !goja.IsNull(t) {
				tag = t.String()
			}
			if err := hooks.LogArrayState(array, line, tag); err != nil {
				fail(err)
			}
			return goja.Undefined()
		}),
	)
	if err != nil {
		return err
	}

	console := vm.NewObject()
	printer := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = format(arg)
		}
		out.println(strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, printer); err != nil {
			return err
		}
	}
	return errors.Join(
		vm.Set("__hooks", h),
		vm.Set("console", console),
		vm.Set("print", printer),
	)
}

// format renders a console argument: strings as-is, objects as JSON.
func format(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return v.String()
	}
	switch exported := v.Export().(type) {
	case string:
		return exported
	case map[string]any, []any:
		if data, err := json.Marshal(exported); err == nil {
			return string(data)
		}
	}
	return v.String()
}
