package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; width 0 keeps glamour's default.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// Report renders a trace result as markdown.
func Report(name string, result *domain.TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)

	if result.Status == domain.StatusError {
		fmt.Fprintf(&b, "**Status**: error\n\n```\n%s\n```\n", strings.TrimSpace(result.Error))
		return b.String()
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Algorithm | %s |\n", result.Algorithm)
	fmt.Fprintf(&b, "| Tracked array | `%s` |\n", result.TrackedArray)
	fmt.Fprintf(&b, "| Events | %d |\n", len(result.Events))
	fmt.Fprintf(&b, "| Execution time | %d ms |\n", result.ExecutionTime)
	if s := result.Stats; s != nil {
		fmt.Fprintf(&b, "| Comparisons | %d |\n", s.Comparisons)
		fmt.Fprintf(&b, "| Swaps | %d |\n", s.Swaps)
		fmt.Fprintf(&b, "| Writes | %d |\n", s.Writes)
		fmt.Fprintf(&b, "| Array states | %d |\n", s.ArrayStates)
		fmt.Fprintf(&b, "| Max call depth | %d |\n", s.MaxDepth)
	}
	b.WriteString("\n")

	if s := result.Stats; s != nil && len(s.Calls) > 0 {
		b.WriteString("## Calls\n\n")
		for _, fn := range slices.Sorted(maps.Keys(s.Calls)) {
			fmt.Fprintf(&b, "- `%s`: %d\n", fn, s.Calls[fn])
		}
		b.WriteString("\n")
	}

	if result.Output != "" {
		fmt.Fprintf(&b, "## Output\n\n```\n%s\n```\n", strings.TrimRight(result.Output, "\n"))
	}
	return b.String()
}
