package replay_test

import (
	"testing"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recursiveLog is the shape of a two-level recursive call:
// main line, call f, line, call f, return f, return f, assign.
func recursiveLog() []domain.TraceEvent {
	events := []domain.TraceEvent{
		{Line: 1, Kind: domain.EventLine},
		{Line: 1, Kind: domain.EventCall, FunctionName: "f", Variables: domain.VariableSnapshot{"n": int64(2)}},
		{Line: 2, Kind: domain.EventLine, Variables: domain.VariableSnapshot{"n": int64(2)}},
		{Line: 1, Kind: domain.EventCall, FunctionName: "f", Variables: domain.VariableSnapshot{"n": int64(1)}},
		{Line: 2, Kind: domain.EventReturn, FunctionName: "f", Variables: domain.VariableSnapshot{"n": int64(1)}},
		{Line: 3, Kind: domain.EventReturn, FunctionName: "f", Variables: domain.VariableSnapshot{"n": int64(2)}},
		{Line: 5, Kind: domain.EventAssign, Variables: domain.VariableSnapshot{"x": int64(2)}, Breakpoint: true},
		{Line: 6, Kind: domain.EventLine, Variables: domain.VariableSnapshot{"x": int64(2)}},
	}
	for i := range events {
		events[i].Sequence = i
	}
	return events
}

func strategies() map[string][]replay.Option {
	return map[string][]replay.Option{
		"Snapshots": nil,
		"Lookback":  {replay.WithLookbackUnwind()},
	}
}

func TestModel_Unstarted(t *testing.T) {
	m := replay.New(recursiveLog())

	assert.Equal(t, replay.Unstarted, m.Cursor())
	assert.Equal(t, 0, m.CurrentLine())
	assert.Empty(t, m.CurrentVariables())
	assert.Empty(t, m.CurrentCallStack())
	_, ok := m.Current()
	assert.False(t, ok)
	assert.False(t, m.StepBackward(), "Backward underflow is a no-op")
	assert.Equal(t, replay.Unstarted, m.Cursor())
}

func TestModel_ForwardBuildsCallStack(t *testing.T) {
	m := replay.New(recursiveLog())

	wantDepth := []int{0, 1, 1, 2, 1, 0, 0, 0}
	for i, depth := range wantDepth {
		require.True(t, m.StepForward())
		assert.Equal(t, i, m.Cursor())
		assert.Len(t, m.CurrentCallStack(), depth, "depth after event %d", i)
	}
	assert.True(t, m.AtEnd())
	assert.False(t, m.StepForward(), "Forward overflow is a no-op")
	assert.Equal(t, 7, m.Cursor())
}

func TestModel_ForwardThenBackwardReturnsToStart(t *testing.T) {
	for name, opts := range strategies() {
		t.Run(name, func(t *testing.T) {
			m := replay.New(recursiveLog(), opts...)

			steps := 0
			for m.StepForward() {
				steps++
			}
			require.Equal(t, m.Len(), steps)

			for i := 0; i < steps; i++ {
				require.True(t, m.StepBackward())
			}
			assert.Equal(t, replay.Unstarted, m.Cursor())
			assert.Empty(t, m.CurrentCallStack())
			assert.Empty(t, m.CurrentVariables())
		})
	}
}

func TestModel_BackwardRestoresFrames(t *testing.T) {
	for name, opts := range strategies() {
		t.Run(name, func(t *testing.T) {
			m := replay.New(recursiveLog(), opts...)
			m.Seek(5)
			require.Empty(t, m.CurrentCallStack())

			require.True(t, m.StepBackward())
			stack := m.CurrentCallStack()
			require.Len(t, stack, 1)
			assert.Equal(t, "f", stack[0].FunctionName)
			assert.Equal(t, 1, stack[0].LineEntered)

			require.True(t, m.StepBackward())
			assert.Len(t, m.CurrentCallStack(), 2)

			require.True(t, m.StepBackward())
			assert.Len(t, m.CurrentCallStack(), 1)
		})
	}
}

func TestModel_StepIntoMatchesForward(t *testing.T) {
	a := replay.New(recursiveLog())
	b := replay.New(recursiveLog())
	for a.StepForward() {
		require.True(t, b.StepInto())
		assert.Equal(t, a.Cursor(), b.Cursor())
		assert.Equal(t, a.CurrentCallStack(), b.CurrentCallStack())
	}
	assert.False(t, b.StepInto())
}

func TestModel_StepOut(t *testing.T) {
	m := replay.New(recursiveLog())
	m.Seek(3)

	require.True(t, m.StepOut())
	ev, _ := m.Current()
	assert.Equal(t, domain.EventReturn, ev.Kind)
	assert.Equal(t, 4, m.Cursor())

	require.True(t, m.StepOut())
	assert.Equal(t, 5, m.Cursor())

	// No Return left: runs to the end.
	require.True(t, m.StepOut())
	assert.Equal(t, 7, m.Cursor())
	assert.False(t, m.StepOut())
}

func TestModel_Continue(t *testing.T) {
	m := replay.New(recursiveLog())

	require.True(t, m.Continue())
	assert.Equal(t, 6, m.Cursor())
	ev, _ := m.Current()
	assert.True(t, ev.Breakpoint)

	require.True(t, m.Continue())
	assert.Equal(t, 7, m.Cursor())
	assert.False(t, m.Continue())
}

func TestModel_CurrentVariablesIsCopy(t *testing.T) {
	m := replay.New(recursiveLog())
	m.Seek(6)

	vars := m.CurrentVariables()
	assert.Equal(t, int64(2), vars["x"])
	vars["x"] = "changed"
	assert.Equal(t, int64(2), m.CurrentVariables()["x"])
}

func TestModel_Apply(t *testing.T) {
	m := replay.New(recursiveLog())

	tests := []struct {
		action domain.StepAction
		cursor int
	}{
		{domain.StepForward, 0},
		{domain.StepInto, 1},
		{domain.StepOut, 4},
		{domain.StepBackward, 3},
		{domain.StepContinue, 6},
		{domain.StepReset, replay.Unstarted},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			_, err := m.Apply(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor, m.Cursor())
		})
	}

	_, err := m.Apply("sideways")
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestModel_SeekClamps(t *testing.T) {
	m := replay.New(recursiveLog())
	m.Seek(100)
	assert.Equal(t, 7, m.Cursor())
	m.Seek(-5)
	assert.Equal(t, replay.Unstarted, m.Cursor())
}

func TestModel_CurrentArray(t *testing.T) {
	events := []domain.TraceEvent{
		{Sequence: 0, Line: 1, Kind: domain.EventState, Array: []any{int64(2), int64(1)}, Tag: domain.InitialStateTag},
		{Sequence: 1, Line: 2, Kind: domain.EventLine},
		{Sequence: 2, Line: 3, Kind: domain.EventState, Array: []any{int64(1), int64(2)}},
		{Sequence: 3, Line: 4, Kind: domain.EventLine},
	}
	m := replay.New(events)

	_, ok := m.CurrentArray()
	assert.False(t, ok)

	m.Seek(1)
	snap, ok := m.CurrentArray()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Line)

	m.Seek(3)
	snap, _ = m.CurrentArray()
	assert.Equal(t, []any{int64(1), int64(2)}, snap.Values)
}

func TestModel_EmptyLog(t *testing.T) {
	m := replay.New(nil)
	assert.False(t, m.StepForward())
	assert.False(t, m.StepOut())
	assert.False(t, m.StepBackward())
	m.Seek(3)
	assert.Equal(t, replay.Unstarted, m.Cursor())
}
