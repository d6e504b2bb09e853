package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Instrument rewrites classified lines into a program that reports its own
// execution through the __trace helpers.
//
// Every hook is inserted on the line it observes, so the output has exactly
// the line count of the input and lines without hooks are copied verbatim.
// Traced function bodies are wrapped in try/finally: each Call event gets
// exactly one Return event, and return statements only mark the return line.
func Instrument(lines []domain.SourceLine, outline *Outline, label domain.AlgorithmLabel, tracked string) (string, error) {
	if len(lines) != len(outline.Lines) {
		return "", &domain.InstrumentationError{
			Message: fmt.Sprintf("outline has %d lines, source has %d", len(outline.Lines), len(lines)),
		}
	}
	ed := newEditor(lines)

	for _, fn := range outline.Functions {
		if fn.OpenLine == 0 || fn.CloseLine == 0 {
			return "", &domain.InstrumentationError{Line: fn.DefLine, Message: fmt.Sprintf("function %q has no body", fn.Name)}
		}
		ed.insert(fn.OpenLine, fn.OpenCol+1,
			fmt.Sprintf(" __trace.enter(%d, %q, %s); try {", fn.DefLine, fn.Name, argsReader(fn)))
	}

	for _, r := range outline.Returns {
		if r.Bare {
			ed.insert(r.Line, r.Col, fmt.Sprintf(" void __trace.at(%d)", r.Line))
		} else {
			ed.insert(r.Line, r.Col, fmt.Sprintf(" __trace.at(%d),", r.Line))
		}
	}

	for i, line := range lines {
		if line.Class.Kind == domain.KindSkip {
			continue
		}
		info := outline.Lines[i]
		n := line.Number
		args := argsReader(info.Function)

		d := info.Dangling
		if d != nil && d.EndLine == 0 {
			d = nil
		}
		post := postHooks(line, label, tracked, args)
		whole := d != nil && d.StartCol == info.FirstCol
		wrap := d != nil && (whole || post != "")

		if wrap && whole {
			ed.insert(n, info.FirstCol, "{ ")
		}
		ed.insert(n, info.FirstCol, fmt.Sprintf("__trace.line(%d, %s); ", n, args))
		if wrap && !whole {
			ed.insert(n, d.StartCol, "{ ")
		}
		if post != "" {
			endLine, endCol := info.StmtEnd, outline.Lines[info.StmtEnd-1].CodeEnd
			if endCol < 0 {
				endCol = len(lines[endLine-1].Raw)
			}
			if d != nil {
				endLine, endCol = d.EndLine, d.EndCol
			}
			ed.insert(endLine, endCol, ed.separator(endLine, endCol)+post)
		}
		if wrap {
			ed.insert(d.EndLine, d.EndCol, " }")
		}
	}

	for _, fn := range outline.Functions {
		ed.insert(fn.CloseLine, fn.CloseCol,
			fmt.Sprintf("} finally { __trace.leave(%d, %s); } ", fn.CloseLine, argsReader(fn)))
	}

	out := ed.String()
	if got, want := strings.Count(out, "\n"), len(lines)-1; got != want {
		return "", &domain.InstrumentationError{Message: fmt.Sprintf("instrumented program has %d lines, want %d", got+1, want+1)}
	}
	return out, nil
}

// postHooks returns the hooks appended after the statement of line.
func postHooks(line domain.SourceLine, label domain.AlgorithmLabel, tracked, args string) string {
	c := line.Class
	switch c.Kind {
	case domain.KindDeclaration, domain.KindAssignment:
		return assignHook(line.Number, c.Name, args)
	case domain.KindArrayInit:
		h := assignHook(line.Number, c.Name, args)
		if c.Name == tracked {
			h += " " + stateHook(line.Number, c.Name, domain.InitialStateTag)
		}
		return h
	case domain.KindArrayMutation:
		if IsInterestingMutation(label, line.Raw) {
			return stateHook(line.Number, tracked, "")
		}
	}
	return ""
}

func assignHook(n int, name, args string) string {
	return fmt.Sprintf("__trace.assign(%d, %q, function () { return %s; }, %s);", n, name, name, args)
}

func stateHook(n int, name, tag string) string {
	if tag == "" {
		return fmt.Sprintf("__trace.state(%d, function () { return %s; });", n, name)
	}
	return fmt.Sprintf("__trace.state(%d, function () { return %s; }, %q);", n, name, tag)
}

// argsReader renders a closure returning the parameters of fn, or null.
func argsReader(fn *FuncScope) string {
	if fn == nil || len(fn.Params) == 0 {
		return "null"
	}
	pairs := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		pairs[i] = fmt.Sprintf("%q: %s", p, p)
	}
	return "function () { return {" + strings.Join(pairs, ", ") + "}; }"
}

type edit struct {
	col  int
	text string
}

// editor collects insertions per line and applies them in column order.
// Insertions at the same column keep the order they were made in.
type editor struct {
	raw   []string
	edits map[int][]edit
}

func newEditor(lines []domain.SourceLine) *editor {
	raw := make([]string, len(lines))
	for i, l := range lines {
		raw[i] = l.Raw
	}
	return &editor{raw: raw, edits: make(map[int][]edit)}
}

func (e *editor) insert(line, col int, text string) {
	e.edits[line] = append(e.edits[line], edit{col: col, text: text})
}

// separator returns what must precede a hook inserted at col so that it
// starts a new statement.
func (e *editor) separator(line, col int) string {
	raw := e.raw[line-1]
	if col > len(raw) {
		col = len(raw)
	}
	before := strings.TrimRight(raw[:col], " \t\r")
	if strings.HasSuffix(before, ";") {
		return " "
	}
	return "; "
}

func (e *editor) String() string {
	out := make([]string, len(e.raw))
	for i, raw := range e.raw {
		list := e.edits[i+1]
		if len(list) == 0 {
			out[i] = raw
			continue
		}
		sort.SliceStable(list, func(a, b int) bool { return list[a].col < list[b].col })
		var b strings.Builder
		prev := 0
		for _, ed := range list {
			col := min(max(ed.col, prev), len(raw))
			b.WriteString(raw[prev:col])
			b.WriteString(ed.text)
			prev = col
		}
		b.WriteString(raw[prev:])
		out[i] = b.String()
	}
	return strings.Join(out, "\n")
}
