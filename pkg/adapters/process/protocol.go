package process

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
)

// Marker starts every protocol record the child writes on stdout.
// Everything else on stdout is program output.
const Marker = "\x1eTRACE "

// message is one protocol record.
type message struct {
	Op      string         `json:"op"`
	Line    int            `json:"line"`
	Kind    string         `json:"kind"`
	Fn      *string        `json:"fn"`
	Vars    map[string]any `json:"vars"`
	Name    string         `json:"name"`
	Value   any            `json:"value"`
	Array   []any          `json:"array"`
	Tag     string         `json:"tag"`
	Message string         `json:"message"`
}

// decoder splits child stdout into program output and hook calls.
// It is fed from a single goroutine.
type decoder struct {
	hooks   ports.Hooks
	out     strings.Builder
	failure string
	err     error
}

func newDecoder(hooks ports.Hooks) *decoder {
	return &decoder{hooks: hooks}
}

// feed consumes one stdout line without its newline. It returns the first
// hook error; once set, further records are ignored.
func (d *decoder) feed(line string) error {
	idx := strings.Index(line, Marker)
	if idx < 0 {
		d.out.WriteString(line)
		d.out.WriteByte('\n')
		return nil
	}
	// A program that wrote without a trailing newline leaves text before the marker.
	d.out.WriteString(line[:idx])
	if d.err != nil {
		return d.err
	}

	var m message
	if err := json.Unmarshal([]byte(line[idx+len(Marker):]), &m); err != nil {
		d.err = fmt.Errorf("malformed trace record: %w", err)
		return d.err
	}
	d.err = d.dispatch(m)
	return d.err
}

func (d *decoder) dispatch(m message) error {
	switch m.Op {
	case "step":
		var fn string
		if m.Fn != nil {
			fn = *m.Fn
		}
		return d.hooks.LogStep(m.Line, domain.EventKind(m.Kind), fn, m.Vars)
	case "scope":
		return d.hooks.UpdateScope(m.Name, m.Value)
	case "state":
		return d.hooks.LogArrayState(m.Array, m.Line, m.Tag)
	case "error":
		d.failure = m.Message
		return nil
	}
	return fmt.Errorf("unknown trace record %q", m.Op)
}

// Output returns the program output collected so far.
func (d *decoder) Output() string {
	return d.out.String()
}
