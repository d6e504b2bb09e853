package runtime

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Recorder is the trace event log of one run. It implements ports.Hooks and
// is owned by a single Trace call: create it fresh, hand it to the executor,
// then read Events once execution returns.
type Recorder struct {
	events      []domain.TraceEvent
	scope       map[string]any
	breakpoints map[int]bool
	maxEvents   int
	err         error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBreakpoints flags events reached on the given lines.
func WithBreakpoints(lines []int) RecorderOption {
	return func(r *Recorder) {
		for _, l := range lines {
			r.breakpoints[l] = true
		}
	}
}

// WithEventLimit caps the number of events. Zero or less disables the cap.
func WithEventLimit(n int) RecorderOption {
	return func(r *Recorder) {
		r.maxEvents = n
	}
}

// NewRecorder creates an empty log.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		scope:       make(map[string]any),
		breakpoints: make(map[int]bool),
		maxEvents:   domain.DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogStep appends an event carrying the running scope merged with variables.
func (r *Recorder) LogStep(line int, kind domain.EventKind, functionName string, variables map[string]any) error {
	vars := r.snapshot()
	for name, v := range variables {
		vars[name] = Sanitize(v)
	}
	return r.append(domain.TraceEvent{
		Line:         line,
		Kind:         kind,
		FunctionName: functionName,
		Variables:    vars,
	})
}

// UpdateScope records the latest value of a variable. Later events see it.
// It does not append an event by itself.
func (r *Recorder) UpdateScope(name string, value any) error {
	if r.err != nil {
		return r.err
	}
	r.scope[name] = Sanitize(value)
	return nil
}

// LogArrayState appends a state event holding a copy of array.
func (r *Recorder) LogArrayState(array []any, line int, tag string) error {
	values := make([]any, len(array))
	for i, v := range array {
		values[i] = Sanitize(v)
	}
	return r.append(domain.TraceEvent{
		Line:      line,
		Kind:      domain.EventState,
		Variables: r.snapshot(),
		Array:     values,
		Tag:       tag,
	})
}

// Err returns the error that stopped recording, if any.
func (r *Recorder) Err() error {
	return r.err
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Events returns the finalized log.
func (r *Recorder) Events() []domain.TraceEvent {
	out := make([]domain.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) append(ev domain.TraceEvent) error {
	if r.err != nil {
		return r.err
	}
	if r.maxEvents > 0 && len(r.events) >= r.maxEvents {
		r.err = fmt.Errorf("%w: more than %d events", domain.ErrEventLimitExceeded, r.maxEvents)
		return r.err
	}
	ev.Sequence = len(r.events)
	ev.Breakpoint = r.breakpoints[ev.Line]
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) snapshot() domain.VariableSnapshot {
	vars := make(domain.VariableSnapshot, len(r.scope))
	maps.Copy(vars, r.scope)
	return vars
}

// Sanitize converts a host value into plain JSON data. Values that cannot be
// encoded become domain.Unserializable. Integral numbers come back as int64.
func Sanitize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.Unserializable
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Unserializable
	}
	return normalize(out)
}

const maxSafeInteger = 1<<53 - 1

func normalize(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= maxSafeInteger {
			return int64(t)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	}
	return v
}
