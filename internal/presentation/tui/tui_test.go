package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/pkg/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumSource = `function sum(a, b) {
  return a + b;
}
let total = sum(2, 3);
console.log(total);`

// run executes cmd and feeds its message back, as the bubbletea loop would.
func run(t *testing.T, m *Stepper, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())
	assert.Nil(t, next)
}

func press(t *testing.T, m *Stepper, k string) {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	run(t, m, cmd)
}

func TestStepper(t *testing.T) {
	ctx := context.Background()
	eng := codeflow.New()
	rec, err := eng.Record(ctx, domain.TraceRequest{SourceText: sumSource, Breakpoints: []int{2}})
	require.NoError(t, err)

	m := NewStepper(ctx, eng, rec, "sum.js")
	assert.Contains(t, m.View(), "Loading")
	run(t, m, m.Init())
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	assert.Contains(t, m.View(), "not started")

	press(t, m, "n")
	assert.Equal(t, 0, m.view.Cursor)

	press(t, m, "c")
	assert.Equal(t, 2, m.view.Line)
	view := m.View()
	assert.Contains(t, view, "step ")
	assert.Contains(t, m.detailText(), "sum (line 1)")
	assert.Contains(t, m.detailText(), "a = 2")

	press(t, m, "r")
	assert.Equal(t, -1, m.view.Cursor)
	press(t, m, "b")
	assert.Equal(t, "no step possible", m.status)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestStepper_MissingRecording(t *testing.T) {
	ctx := context.Background()
	m := NewStepper(ctx, codeflow.New(), &domain.Recording{ID: "missing"}, "x.js")
	run(t, m, m.Init())
	assert.Contains(t, m.View(), "Error")
}

func TestReport(t *testing.T) {
	result, err := codeflow.New().TraceTemplate(context.Background(), "bubble", "3,1,2")
	require.NoError(t, err)

	md := Report("bubble.js", result)
	assert.Contains(t, md, "# bubble.js")
	assert.Contains(t, md, "| Algorithm | "+string(domain.BubbleSort)+" |")
	assert.Contains(t, md, "- `bubbleSort`: 1")
	assert.Contains(t, md, "[1,2,3]")

	md = Report("bad.js", &domain.TraceResult{Status: domain.StatusError, Error: "TypeError: boom"})
	assert.Contains(t, md, "**Status**: error")
	assert.Contains(t, md, "TypeError: boom")

	render, err := NewRenderer(80)
	require.NoError(t, err)
	out, err := render(md)
	require.NoError(t, err)
	assert.Contains(t, out, "boom")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Greater(t, strings.Count(buf.String(), "\n"), 5)
}
