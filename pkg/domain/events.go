package domain

import (
	"context"
	"encoding/json"
)

// EventKind defines the category of a trace event.
type EventKind string

const (
	EventLine   EventKind = "line"
	EventCall   EventKind = "call"
	EventReturn EventKind = "return"
	EventAssign EventKind = "assign"
	EventState  EventKind = "state"
)

// VariableSnapshot maps variable names to the value known at one step.
type VariableSnapshot map[string]any

// ArraySnapshot is the tracked array at a point in execution.
type ArraySnapshot struct {
	Line   int   `json:"line"`
	Values []any `json:"values"`
}

// TraceEvent is one observation recorded by an injected hook.
// Sequence numbers start at 0 and grow by one per event.
type TraceEvent struct {
	Sequence     int              `json:"sequence"`
	Line         int              `json:"line"`
	Kind         EventKind        `json:"kind"`
	FunctionName string           `json:"functionName"`
	Variables    VariableSnapshot `json:"variables"`
	Array        []any            `json:"array,omitempty"`
	Tag          string           `json:"tag,omitempty"`
	Breakpoint   bool             `json:"breakpoint,omitempty"`
}

// MarshalJSON writes an absent function name as null.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	type wire TraceEvent
	var fn *string
	if e.FunctionName != "" {
		fn = &e.FunctionName
	}
	vars := e.Variables
	if vars == nil {
		vars = VariableSnapshot{}
	}
	out := wire(e)
	out.Variables = vars
	return json.Marshal(struct {
		wire
		FunctionName *string `json:"functionName"`
	}{out, fn})
}

// Snapshot returns the array state carried by a state event.
func (e TraceEvent) Snapshot() (ArraySnapshot, bool) {
	if e.Kind != EventState {
		return ArraySnapshot{}, false
	}
	return ArraySnapshot{Line: e.Line, Values: e.Array}, true
}

// CallFrame is one active function on the derived call stack.
type CallFrame struct {
	FunctionName string `json:"functionName"`
	LineEntered  int    `json:"lineEntered"`
}

// TraceHooks defines callbacks for engine observability.
type TraceHooks struct {
	OnTraceStart    func(context.Context, *TraceRequest)
	OnTraceComplete func(context.Context, *TraceResult)
	OnTraceFailed   func(context.Context, *TraceRequest, error)
}
