package domain

import "time"

// Status is the outcome of a trace build.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// TraceRequest asks for one trace build.
type TraceRequest struct {
	SourceText       string `json:"sourceText" validate:"required"`
	TrackedArrayName string `json:"trackedArrayName,omitempty" validate:"omitempty,max=64"`
	Breakpoints      []int  `json:"breakpoints,omitempty" validate:"omitempty,dive,gte=1"`
}

// TraceResult is the finalized, read-only outcome of a trace build.
// Events is empty whenever Status is StatusError.
type TraceResult struct {
	Status        Status         `json:"status"`
	Events        []TraceEvent   `json:"events"`
	Output        string         `json:"output"`
	Error         string         `json:"error,omitempty"`
	Algorithm     AlgorithmLabel `json:"algorithm"`
	TrackedArray  string         `json:"trackedArray"`
	ExecutionTime int64          `json:"executionTime"`
	Stats         *Stats         `json:"stats,omitempty"`
}

// Program is the instrumented text handed to an execution collaborator.
// Prelude installs the __trace helpers on top of the three host hooks and must run first.
type Program struct {
	Prelude      string
	Source       string
	Original     string
	Lines        int
	TrackedArray string
	Algorithm    AlgorithmLabel
}

// Execution is what a collaborator reports after a successful run.
type Execution struct {
	Output  string
	Elapsed time.Duration
}

// Stats are analytics derived from a finalized event log.
type Stats struct {
	Steps       int            `json:"steps"`
	Comparisons int            `json:"comparisons"`
	Swaps       int            `json:"swaps"`
	Writes      int            `json:"writes"`
	ArrayStates int            `json:"arrayStates"`
	MaxDepth    int            `json:"maxDepth"`
	Calls       map[string]int `json:"calls,omitempty"`
}

// StepAction names a replay navigation command.
type StepAction string

const (
	StepForward  StepAction = "forward"
	StepBackward StepAction = "backward"
	StepInto     StepAction = "into"
	StepOut      StepAction = "out"
	StepReset    StepAction = "reset"
	StepContinue StepAction = "continue"
)

// Recording is a stored trace plus the cursor of its replay session.
// Cursor is -1 before the first step.
type Recording struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"createdAt"`
	Source      string      `json:"source"`
	Breakpoints []int       `json:"breakpoints,omitempty"`
	Result      TraceResult `json:"result"`
	Cursor      int         `json:"cursor"`
	// Sealed holds the encrypted recording when it was persisted through an
	// encrypting store; the other fields are then only an envelope.
	Sealed string `json:"sealed,omitempty"`
}

// NewRecording wraps a result in a recording positioned before the first event.
func NewRecording(id, source string, breakpoints []int, result TraceResult) *Recording {
	return &Recording{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Source:      source,
		Breakpoints: breakpoints,
		Result:      result,
		Cursor:      -1,
	}
}
