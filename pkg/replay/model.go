package replay

import (
	"maps"
	"slices"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Unstarted is the cursor value before the first event.
const Unstarted = -1

// Model is a cursor over an ordered event log. It is not safe for concurrent use.
type Model struct {
	events []domain.TraceEvent
	cursor int
	stack  []domain.CallFrame

	// stacks[i] is the call stack after event i; nil in lookback mode.
	stacks   [][]domain.CallFrame
	lookback bool
}

// Option configures a Model.
type Option func(*Model)

// WithLookbackUnwind makes backward steps rebuild the call stack by scanning
// the log instead of restoring per-event snapshots. Undoing a Return re-pushes
// the nearest preceding Call at or before the Return's line, which is only an
// approximation when several call sites share a line.
func WithLookbackUnwind() Option {
	return func(m *Model) {
		m.lookback = true
	}
}

// New builds a model positioned before the first event.
func New(events []domain.TraceEvent, opts ...Option) *Model {
	m := &Model{events: events, cursor: Unstarted}
	for _, opt := range opts {
		opt(m)
	}
	if !m.lookback {
		m.stacks = make([][]domain.CallFrame, len(events))
		var stack []domain.CallFrame
		for i, ev := range events {
			stack = push(stack, ev)
			m.stacks[i] = slices.Clone(stack)
		}
	}
	return m
}

// push applies the stack effect of ev going forward.
func push(stack []domain.CallFrame, ev domain.TraceEvent) []domain.CallFrame {
	switch ev.Kind {
	case domain.EventCall:
		return append(stack, domain.CallFrame{FunctionName: ev.FunctionName, LineEntered: ev.Line})
	case domain.EventReturn:
		if len(stack) > 0 {
			return stack[:len(stack)-1]
		}
	}
	return stack
}

// Len returns the number of events.
func (m *Model) Len() int { return len(m.events) }

// Cursor returns the index of the current event, or Unstarted.
func (m *Model) Cursor() int { return m.cursor }

// AtEnd reports whether no forward step remains.
func (m *Model) AtEnd() bool { return m.cursor >= len(m.events)-1 }

// StepForward advances by one event. It returns false at the end of the log.
func (m *Model) StepForward() bool {
	if m.cursor+1 >= len(m.events) {
		return false
	}
	m.cursor++
	m.stack = push(m.stack, m.events[m.cursor])
	return true
}

// StepInto is StepForward: there is no call-depth aware variant.
func (m *Model) StepInto() bool {
	return m.StepForward()
}

// StepOut advances until a Return event has been reached, inclusive, or the
// end of the log. It returns false when no step was possible.
func (m *Model) StepOut() bool {
	moved := false
	for m.StepForward() {
		moved = true
		if m.events[m.cursor].Kind == domain.EventReturn {
			break
		}
	}
	return moved
}

// Continue advances until an event flagged as a breakpoint, or the end.
func (m *Model) Continue() bool {
	moved := false
	for m.StepForward() {
		moved = true
		if m.events[m.cursor].Breakpoint {
			break
		}
	}
	return moved
}

// StepBackward retreats by one event. From the first event it returns to the
// unstarted state; before that it returns false.
func (m *Model) StepBackward() bool {
	if m.cursor <= Unstarted {
		return false
	}
	undone := m.events[m.cursor]
	m.cursor--

	if !m.lookback {
		if m.cursor == Unstarted {
			m.stack = nil
		} else {
			m.stack = slices.Clone(m.stacks[m.cursor])
		}
		return true
	}

	switch undone.Kind {
	case domain.EventCall:
		if len(m.stack) > 0 {
			m.stack = m.stack[:len(m.stack)-1]
		}
	case domain.EventReturn:
		if frame, ok := m.lookbackCall(m.cursor, undone); ok {
			m.stack = append(m.stack, frame)
		}
	}
	return true
}

// lookbackCall finds the nearest Call at or before index from whose line is at
// or before ret's line. A named return only matches calls of the same name.
func (m *Model) lookbackCall(from int, ret domain.TraceEvent) (domain.CallFrame, bool) {
	for i := from; i >= 0; i-- {
		ev := m.events[i]
		if ev.Kind != domain.EventCall || ev.Line > ret.Line {
			continue
		}
		if ret.FunctionName != "" && ev.FunctionName != ret.FunctionName {
			continue
		}
		return domain.CallFrame{FunctionName: ev.FunctionName, LineEntered: ev.Line}, true
	}
	return domain.CallFrame{}, false
}

// Reset moves before the first event with an empty call stack.
func (m *Model) Reset() {
	m.cursor = Unstarted
	m.stack = nil
}

// Seek moves to event index i, clamped to the log.
func (m *Model) Seek(i int) {
	i = min(max(i, Unstarted), len(m.events)-1)
	if !m.lookback {
		m.cursor = i
		if i == Unstarted {
			m.stack = nil
		} else {
			m.stack = slices.Clone(m.stacks[i])
		}
		return
	}
	m.Reset()
	for m.cursor < i && m.StepForward() {
	}
}

// Apply performs a named navigation action.
func (m *Model) Apply(action domain.StepAction) (bool, error) {
	switch action {
	case domain.StepForward:
		return m.StepForward(), nil
	case domain.StepInto:
		return m.StepInto(), nil
	case domain.StepBackward:
		return m.StepBackward(), nil
	case domain.StepOut:
		return m.StepOut(), nil
	case domain.StepContinue:
		return m.Continue(), nil
	case domain.StepReset:
		moved := m.cursor != Unstarted
		m.Reset()
		return moved, nil
	}
	return false, domain.ErrUnknownAction
}

// Current returns the event at the cursor.
func (m *Model) Current() (domain.TraceEvent, bool) {
	if m.cursor < 0 || m.cursor >= len(m.events) {
		return domain.TraceEvent{}, false
	}
	return m.events[m.cursor], true
}

// CurrentLine returns the line of the current event, or 0.
func (m *Model) CurrentLine() int {
	ev, ok := m.Current()
	if !ok {
		return 0
	}
	return ev.Line
}

// CurrentVariables returns a copy of the variables at the cursor, empty if none.
func (m *Model) CurrentVariables() domain.VariableSnapshot {
	ev, ok := m.Current()
	if !ok || ev.Variables == nil {
		return domain.VariableSnapshot{}
	}
	return maps.Clone(ev.Variables)
}

// CurrentCallStack returns the active frames, outermost first.
func (m *Model) CurrentCallStack() []domain.CallFrame {
	if len(m.stack) == 0 {
		return []domain.CallFrame{}
	}
	return slices.Clone(m.stack)
}

// CurrentArray returns the latest tracked array state at or before the cursor.
func (m *Model) CurrentArray() (domain.ArraySnapshot, bool) {
	for i := min(m.cursor, len(m.events)-1); i >= 0; i-- {
		if snap, ok := m.events[i].Snapshot(); ok {
			return snap, true
		}
	}
	return domain.ArraySnapshot{}, false
}
