package tui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/session"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Session is the replay surface the stepper drives.
type Session interface {
	Step(ctx context.Context, id string, action domain.StepAction) (*session.View, error)
	View(ctx context.Context, id string) (*session.View, error)
}

type keyMap struct {
	Forward  key.Binding
	Backward key.Binding
	Into     key.Binding
	Out      key.Binding
	Continue key.Binding
	Reset    key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Forward, k.Backward, k.Into, k.Out, k.Continue, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Forward:  key.NewBinding(key.WithKeys("n", "right", "l", "enter"), key.WithHelp("n/→", "next")),
	Backward: key.NewBinding(key.WithKeys("b", "left", "h"), key.WithHelp("b/←", "back")),
	Into:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "into")),
	Out:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "out")),
	Continue: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "continue")),
	Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#0E7490")).
			Padding(0, 1)

	currentLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	breakpointStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headingStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))

	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))
)

// stepMsg carries the outcome of one replay action.
type stepMsg struct {
	view *session.View
	err  error
}

// Stepper is the bubbletea model of the interactive replay.
type Stepper struct {
	ctx         context.Context
	session     Session
	id          string
	name        string
	lines       []string
	breakpoints map[int]bool

	view   *session.View
	err    error
	status string

	help    help.Model
	details viewport.Model
	width   int
	height  int
}

// NewStepper creates the replay model of recording rec.
func NewStepper(ctx context.Context, s Session, rec *domain.Recording, name string) *Stepper {
	bps := make(map[int]bool, len(rec.Breakpoints))
	for _, l := range rec.Breakpoints {
		bps[l] = true
	}
	return &Stepper{
		ctx:         ctx,
		session:     s,
		id:          rec.ID,
		name:        name,
		lines:       strings.Split(rec.Source, "\n"),
		breakpoints: bps,
		help:        help.New(),
		details:     viewport.New(40, 12),
		width:       100,
		height:      24,
	}
}

// Init loads the current replay position.
func (m *Stepper) Init() tea.Cmd {
	return func() tea.Msg {
		v, err := m.session.View(m.ctx, m.id)
		return stepMsg{view: v, err: err}
	}
}

func (m *Stepper) step(action domain.StepAction) tea.Cmd {
	return func() tea.Msg {
		v, err := m.session.Step(m.ctx, m.id, action)
		return stepMsg{view: v, err: err}
	}
}

// Update handles events.
func (m *Stepper) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.details.Width = max(msg.Width/2-4, 20)
		m.details.Height = max(msg.Height-6, 4)
		m.details.SetContent(m.detailText())
		return m, nil

	case stepMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = ""
		if m.view != nil && !msg.view.Moved {
			m.status = "no step possible"
		}
		m.view = msg.view
		m.details.SetContent(m.detailText())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Forward):
			return m, m.step(domain.StepForward)
		case key.Matches(msg, keys.Backward):
			return m, m.step(domain.StepBackward)
		case key.Matches(msg, keys.Into):
			return m, m.step(domain.StepInto)
		case key.Matches(msg, keys.Out):
			return m, m.step(domain.StepOut)
		case key.Matches(msg, keys.Continue):
			return m, m.step(domain.StepContinue)
		case key.Matches(msg, keys.Reset):
			return m, m.step(domain.StepReset)
		}
		var cmd tea.Cmd
		m.details, cmd = m.details.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the source panel next to the state panel.
func (m *Stepper) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  press q to quit\n", m.err)
	}
	if m.view == nil {
		return "\n  Loading recording...\n"
	}

	header := titleStyle.Render(fmt.Sprintf("codeflow · %s", m.name))
	position := "not started"
	if m.view.Event != nil {
		position = fmt.Sprintf("step %d/%d", m.view.Cursor+1, m.view.Total)
	}
	header += "  " + dimStyle.Render(position)
	if m.status != "" {
		header += "  " + breakpointStyle.Render(m.status)
	}

	half := max(m.width/2-4, 20)
	source := panelStyle.Width(half).Render(m.sourceText(max(m.height-6, 4)))
	details := panelStyle.Width(half).Render(m.details.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, source, details),
		m.help.View(keys),
	)
}

// sourceText shows at most height lines of source around the current line.
func (m *Stepper) sourceText(height int) string {
	start := 0
	if m.view.Line > height {
		start = min(m.view.Line-height/2, len(m.lines)-height)
	}
	end := min(start+height, len(m.lines))

	var b strings.Builder
	for i := start; i < end; i++ {
		n := i + 1
		marker := "  "
		if m.breakpoints[n] {
			marker = breakpointStyle.Render("● ")
		}
		text := fmt.Sprintf("%3d %s", n, m.lines[i])
		if n == m.view.Line {
			text = currentLineStyle.Render(text)
		}
		b.WriteString(marker + text)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Stepper) detailText() string {
	if m.view == nil || m.view.Event == nil {
		return dimStyle.Render("press n to start")
	}
	var b strings.Builder
	ev := m.view.Event
	fmt.Fprintf(&b, "%s line %d", headingStyle.Render(string(ev.Kind)), ev.Line)
	if ev.FunctionName != "" {
		fmt.Fprintf(&b, " in %s", ev.FunctionName)
	}
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render("Variables") + "\n")
	if len(m.view.Variables) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, name := range slices.Sorted(maps.Keys(m.view.Variables)) {
		fmt.Fprintf(&b, "  %s = %s\n", name, formatValue(m.view.Variables[name]))
	}

	b.WriteString("\n" + headingStyle.Render("Call stack") + "\n")
	if len(m.view.CallStack) == 0 {
		b.WriteString(dimStyle.Render("  (top level)") + "\n")
	}
	for i := len(m.view.CallStack) - 1; i >= 0; i-- {
		f := m.view.CallStack[i]
		fmt.Fprintf(&b, "  %s (line %d)\n", f.FunctionName, f.LineEntered)
	}

	if m.view.Array != nil {
		fmt.Fprintf(&b, "\n%s\n  %s\n", headingStyle.Render("Array"), formatValue(m.view.Array.Values))
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
