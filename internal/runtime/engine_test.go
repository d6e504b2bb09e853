package runtime_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/codeflow/internal/runtime"
	"github.com/aretw0/codeflow/pkg/adapters/jsvm"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/aretw0/codeflow/pkg/replay"
	"github.com/aretw0/codeflow/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factorialSource = `function factorial(n) {
  if (n <= 1) return 1;
  let result = n * factorial(n - 1);
  return result;
}
let final = factorial(5);
console.log(final);
`

func trace(t *testing.T, src string, opts ...runtime.EngineOption) *domain.TraceResult {
	t.Helper()
	engine := runtime.NewEngine(jsvm.New(), opts...)
	result, err := engine.Trace(context.Background(), domain.TraceRequest{SourceText: src})
	require.NoError(t, err)
	return result
}

func count(events []domain.TraceEvent, kind domain.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func states(events []domain.TraceEvent) []domain.TraceEvent {
	var out []domain.TraceEvent
	for _, ev := range events {
		if ev.Kind == domain.EventState && ev.Tag != domain.InitialStateTag {
			out = append(out, ev)
		}
	}
	return out
}

func TestEngine_Factorial(t *testing.T) {
	result := trace(t, factorialSource)
	require.Equal(t, domain.StatusSuccess, result.Status, result.Error)
	assert.Equal(t, "120\n", result.Output)

	calls, returns := 0, 0
	for _, ev := range result.Events {
		switch ev.Kind {
		case domain.EventCall:
			calls++
			assert.Equal(t, "factorial", ev.FunctionName)
			assert.Equal(t, 1, ev.Line)
		case domain.EventReturn:
			returns++
			assert.Equal(t, "factorial", ev.FunctionName)
		}
	}
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, returns)

	// Calls nest 5 deep with n counting down.
	m := replay.New(result.Events)
	depth, wantN := 0, int64(5)
	for m.StepForward() {
		ev, _ := m.Current()
		if ev.Kind == domain.EventCall {
			assert.Equal(t, wantN, ev.Variables["n"])
			wantN--
		}
		depth = max(depth, len(m.CurrentCallStack()))
	}
	assert.Equal(t, 5, depth)

	last := result.Events[len(result.Events)-1]
	assert.Equal(t, domain.EventAssign, last.Kind)
	assert.Equal(t, 6, last.Line)
	assert.Equal(t, int64(120), last.Variables["final"])

	require.NotNil(t, result.Stats)
	assert.Equal(t, map[string]int{"factorial": 5}, result.Stats.Calls)
	assert.Equal(t, 5, result.Stats.MaxDepth)
}

func TestEngine_SequenceNumbers(t *testing.T) {
	result := trace(t, factorialSource)
	for i, ev := range result.Events {
		assert.Equal(t, i, ev.Sequence)
	}
}

func TestEngine_BubbleSortStates(t *testing.T) {
	src, err := templates.Render("bubble", "5,3,8,1")
	require.NoError(t, err)

	result := trace(t, src)
	require.Equal(t, domain.StatusSuccess, result.Status, result.Error)
	assert.Equal(t, domain.BubbleSort, result.Algorithm)
	assert.Equal(t, "arr", result.TrackedArray)
	assert.Equal(t, "[1,3,5,8]\n", result.Output)

	initial := []any{int64(5), int64(3), int64(8), int64(1)}
	mutations := states(result.Events)
	require.NotEmpty(t, mutations)

	first := mutations[0].Array
	assert.ElementsMatch(t, initial, first)
	var diff []int
	for i := range initial {
		if initial[i] != first[i] {
			diff = append(diff, i)
		}
	}
	require.Len(t, diff, 2, "first state differs by one swap")
	assert.Equal(t, diff[0]+1, diff[1], "the swap is adjacent")

	assert.Equal(t, []any{int64(1), int64(3), int64(5), int64(8)}, mutations[len(mutations)-1].Array)

	// Every executed swap line produced exactly one state event.
	swapLines := 0
	for _, ev := range result.Events {
		if ev.Kind == domain.EventLine && ev.Line == 6 {
			swapLines++
		}
	}
	assert.Equal(t, swapLines, len(mutations))
	assert.Equal(t, len(mutations), result.Stats.Swaps)
}

func TestEngine_QuickSortCanonicalStatesOnly(t *testing.T) {
	src, err := templates.Render("quick", "5,3,8,1")
	require.NoError(t, err)

	result := trace(t, src)
	require.Equal(t, domain.StatusSuccess, result.Status, result.Error)
	assert.Equal(t, domain.QuickSort, result.Algorithm)

	mutations := states(result.Events)
	require.NotEmpty(t, mutations)
	for _, ev := range mutations {
		assert.Contains(t, []int{8, 13}, ev.Line, "state event on a non-canonical line")
	}
}

func TestEngine_AllTemplates(t *testing.T) {
	for _, name := range templates.Names() {
		t.Run(name, func(t *testing.T) {
			src, err := templates.Render(name, "5,3,8,1,9,2")
			require.NoError(t, err)

			result := trace(t, src)
			require.Equal(t, domain.StatusSuccess, result.Status, result.Error)
			assert.Equal(t, "[1,2,3,5,8,9]\n", result.Output)
			assert.Equal(t, count(result.Events, domain.EventCall), count(result.Events, domain.EventReturn))

			initial := 0
			for _, ev := range result.Events {
				if ev.Tag == domain.InitialStateTag {
					initial++
				}
			}
			assert.Equal(t, 1, initial)
		})
	}
}

func TestEngine_ExecutionFailureDiscardsEvents(t *testing.T) {
	result := trace(t, "let x = 1;\nlet y = null;\ny.foo = x;\n")
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Empty(t, result.Events)
	assert.NotNil(t, result.Events, "events serialize as an empty list")
	assert.Contains(t, result.Error, "TypeError")
}

func TestEngine_UserSyntaxErrorIsExecutionFailure(t *testing.T) {
	result := trace(t, "let x = ;\n")
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Contains(t, result.Error, "SyntaxError")
}

func TestEngine_FatalErrors(t *testing.T) {
	engine := runtime.NewEngine(jsvm.New(), runtime.WithMaxSourceBytes(64))
	ctx := context.Background()

	_, err := engine.Trace(ctx, domain.TraceRequest{SourceText: "  \n "})
	assert.ErrorIs(t, err, domain.ErrEmptySource)

	_, err = engine.Trace(ctx, domain.TraceRequest{SourceText: strings.Repeat("let x = 1;\n", 10)})
	assert.ErrorIs(t, err, domain.ErrSourceTooLarge)

	_, err = engine.Trace(ctx, domain.TraceRequest{SourceText: "function f( {"})
	assert.ErrorIs(t, err, domain.ErrInstrumentation)
	var ie *domain.InstrumentationError
	assert.True(t, errors.As(err, &ie))
}

func TestEngine_EventLimit(t *testing.T) {
	src := "let total = 0;\nfor (let i = 0; i < 1000; i++) {\n  total = total + i;\n}\n"
	result := trace(t, src, runtime.WithMaxEvents(50))
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Contains(t, result.Error, "event limit")
	assert.Empty(t, result.Events)
}

func TestEngine_EventLimitSwallowedByProgram(t *testing.T) {
	src := `let count = 0;
try {
  for (let i = 0; i < 1000; i++) {
    count = count + 1;
  }
} catch (e) {
  console.log("caught");
}
`
	result := trace(t, src, runtime.WithMaxEvents(20))
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Contains(t, result.Error, "event limit")
}

func TestEngine_Breakpoints(t *testing.T) {
	engine := runtime.NewEngine(jsvm.New())
	result, err := engine.Trace(context.Background(), domain.TraceRequest{
		SourceText:  factorialSource,
		Breakpoints: []int{3},
	})
	require.NoError(t, err)

	flagged := 0
	for _, ev := range result.Events {
		assert.Equal(t, ev.Line == 3, ev.Breakpoint)
		if ev.Breakpoint {
			flagged++
		}
	}
	assert.Positive(t, flagged)
}

func TestEngine_TrackedArrayOverride(t *testing.T) {
	src := "let data = [2, 1];\nlet other = [9];\nother[0] = 3;\n"
	engine := runtime.NewEngine(jsvm.New())
	result, err := engine.Trace(context.Background(), domain.TraceRequest{SourceText: src, TrackedArrayName: "other"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, result.Status, result.Error)
	assert.Equal(t, "other", result.TrackedArray)

	var arrays [][]any
	for _, ev := range result.Events {
		if ev.Kind == domain.EventState {
			arrays = append(arrays, ev.Array)
		}
	}
	assert.Equal(t, [][]any{{int64(9)}, {int64(3)}}, arrays)
}

func TestEngine_MemberWriteRefreshesScope(t *testing.T) {
	result := trace(t, "let o = {a: 1};\no.a = 2;\nlet z = 0;\n")
	require.Equal(t, domain.StatusSuccess, result.Status, result.Error)

	var last domain.TraceEvent
	for _, ev := range result.Events {
		if ev.Kind == domain.EventLine && ev.Line == 3 {
			last = ev
		}
	}
	require.Equal(t, 3, last.Line)
	assert.Equal(t, map[string]any{"a": int64(2)}, last.Variables["o"])
}

func TestEngine_TraceHooks(t *testing.T) {
	var started, completed, failed int
	hooks := domain.TraceHooks{
		OnTraceStart:    func(context.Context, *domain.TraceRequest) { started++ },
		OnTraceComplete: func(context.Context, *domain.TraceResult) { completed++ },
		OnTraceFailed:   func(context.Context, *domain.TraceRequest, error) { failed++ },
	}
	engine := runtime.NewEngine(jsvm.New(), runtime.WithTraceHooks(hooks))
	ctx := context.Background()

	_, err := engine.Trace(ctx, domain.TraceRequest{SourceText: "let x = 1;"})
	require.NoError(t, err)
	_, err = engine.Trace(ctx, domain.TraceRequest{SourceText: "throw new Error('x');"})
	require.NoError(t, err)
	_, err = engine.Trace(ctx, domain.TraceRequest{SourceText: ""})
	require.Error(t, err)

	assert.Equal(t, 3, started)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 2, failed)
}

func TestEngine_TraceFailedReceivesCause(t *testing.T) {
	var failures []error
	hooks := domain.TraceHooks{
		OnTraceFailed: func(_ context.Context, _ *domain.TraceRequest, err error) { failures = append(failures, err) },
	}
	engine := runtime.NewEngine(jsvm.New(), runtime.WithTraceHooks(hooks), runtime.WithMaxEvents(10))
	ctx := context.Background()

	result, err := engine.Trace(ctx, domain.TraceRequest{SourceText: "throw new Error('boom');"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, result.Status)

	loop := "let n = 0;\nwhile (true) {\n  n = n + 1;\n}\n"
	result, err = engine.Trace(ctx, domain.TraceRequest{SourceText: loop})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, result.Status)

	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], domain.ErrExecution)
	assert.Contains(t, failures[0].Error(), "boom")
	assert.ErrorIs(t, failures[1], domain.ErrEventLimitExceeded)
}

// scriptedExecutor reports a few hook calls, then fails or succeeds.
type scriptedExecutor struct {
	err     error
	program domain.Program
}

func (s *scriptedExecutor) Execute(ctx context.Context, program domain.Program, hooks ports.Hooks) (*domain.Execution, error) {
	s.program = program
	if err := hooks.LogStep(1, domain.EventLine, "", nil); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Execution{Output: "ok\n"}, nil
}

func TestEngine_UsesExecutorContract(t *testing.T) {
	exec := &scriptedExecutor{}
	engine := runtime.NewEngine(exec)
	result, err := engine.Trace(context.Background(), domain.TraceRequest{SourceText: "let a = [1];\n"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.Equal(t, "ok\n", result.Output)
	assert.Len(t, result.Events, 1)
	assert.Contains(t, exec.program.Prelude, "__hooks")
	assert.Contains(t, exec.program.Source, "__trace.line(1, null);")
	assert.Equal(t, "let a = [1];\n", exec.program.Original)
	assert.Equal(t, "a", exec.program.TrackedArray)

	exec.err = &domain.ExecutionError{Message: "ReferenceError: nope"}
	result, err = engine.Trace(context.Background(), domain.TraceRequest{SourceText: "let a = [1];\n"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Equal(t, "ReferenceError: nope", result.Error)
	assert.Empty(t, result.Events)
}
