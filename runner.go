package codeflow

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/session"
)

// Runner drives a line-oriented replay of a recording over the given reader and writer.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms the markdown of a step before it is written,
// e.g. through glamour on a terminal.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

var commands = map[string]domain.StepAction{
	"":         domain.StepForward,
	"n":        domain.StepForward,
	"next":     domain.StepForward,
	"b":        domain.StepBackward,
	"back":     domain.StepBackward,
	"i":        domain.StepInto,
	"into":     domain.StepInto,
	"o":        domain.StepOut,
	"out":      domain.StepOut,
	"c":        domain.StepContinue,
	"continue": domain.StepContinue,
	"r":        domain.StepReset,
	"reset":    domain.StepReset,
}

const runnerHelp = "commands: [n]ext (enter), [b]ack, [i]nto, [o]ut, [c]ontinue, [r]eset, quit"

// Run replays recording id until the user quits or input ends.
// In headless mode it steps forward to the end without reading input.
func (r *Runner) Run(ctx context.Context, engine *Engine, id string) error {
	writer := r.Output
	if writer == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	if r.Input == nil && !r.Headless {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}

	rec, err := engine.Recording(ctx, id)
	if err != nil {
		return err
	}
	if rec.Result.Status == domain.StatusError {
		fmt.Fprintf(writer, "program failed: %s\n", rec.Result.Error)
		return nil
	}
	lines := strings.Split(rec.Source, "\n")

	if !r.Headless {
		fmt.Fprintf(writer, "--- codeflow replay: %d events (%s) ---\n", len(rec.Result.Events), rec.Result.Algorithm)
		fmt.Fprintln(writer, runnerHelp)
	}

	var lineReader *bufio.Reader
	if r.Input != nil {
		lineReader = bufio.NewReader(r.Input)
	}

	for {
		action := domain.StepForward
		if !r.Headless {
			fmt.Fprint(writer, "> ")
			text, err := lineReader.ReadString('\n')
			if err != nil && (err != io.EOF || text == "") {
				if err == io.EOF {
					break
				}
				return fmt.Errorf("input error: %w", err)
			}
			input := strings.ToLower(strings.TrimSpace(text))
			if input == "q" || input == "quit" || input == "exit" {
				fmt.Fprintln(writer, "Bye!")
				break
			}
			var ok bool
			if action, ok = commands[input]; !ok {
				fmt.Fprintln(writer, runnerHelp)
				continue
			}
		}

		view, err := engine.Step(ctx, id, action)
		if err != nil {
			return fmt.Errorf("step error: %w", err)
		}
		if !view.Moved {
			if r.Headless {
				break
			}
			fmt.Fprintln(writer, "(no step possible)")
			continue
		}

		out := FormatView(view, lines)
		if r.Renderer != nil {
			if rendered, err := r.Renderer(out); err == nil {
				out = rendered
			}
		}
		fmt.Fprintln(writer, strings.TrimSpace(out))

		if r.Headless && view.AtEnd {
			break
		}
	}
	return nil
}

// FormatView renders one replay position as markdown.
func FormatView(view *session.View, source []string) string {
	var b strings.Builder
	if view.Event == nil {
		fmt.Fprintf(&b, "### Not started (%d events)\n", view.Total)
		return b.String()
	}
	ev := view.Event
	fmt.Fprintf(&b, "### Step %d/%d: line %d `%s`", view.Cursor+1, view.Total, ev.Line, ev.Kind)
	if ev.FunctionName != "" {
		fmt.Fprintf(&b, " %s", ev.FunctionName)
	}
	if ev.Breakpoint {
		b.WriteString(" (breakpoint)")
	}
	b.WriteString("\n\n")

	if ev.Line >= 1 && ev.Line <= len(source) {
		fmt.Fprintf(&b, "```js\n%s\n```\n\n", strings.TrimRight(source[ev.Line-1], " \t\r"))
	}

	if len(view.Variables) > 0 {
		b.WriteString("**Variables**\n\n")
		for _, name := range slices.Sorted(maps.Keys(view.Variables)) {
			fmt.Fprintf(&b, "- `%s` = `%s`\n", name, compact(view.Variables[name]))
		}
		b.WriteString("\n")
	}

	if len(view.CallStack) > 0 {
		frames := make([]string, len(view.CallStack))
		for i, f := range view.CallStack {
			frames[i] = fmt.Sprintf("%s:%d", f.FunctionName, f.LineEntered)
		}
		fmt.Fprintf(&b, "**Call stack**: %s\n\n", strings.Join(frames, " > "))
	}

	if view.Array != nil {
		fmt.Fprintf(&b, "**Array** (line %d): `%s`\n", view.Array.Line, compact(view.Array.Values))
	}
	return b.String()
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
