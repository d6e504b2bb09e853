package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

// RootNode is the caller of every function invoked from top-level code.
const RootNode = "main"

// GraphOverlay contains replay state to highlight on the call graph.
type GraphOverlay struct {
	// CallStack is the active stack, outermost first.
	CallStack []domain.CallFrame
}

type edge struct {
	from, to string
}

// GenerateMermaid produces a Mermaid flowchart of the calls observed in events.
// Top-level code is the ((Circle)) RootNode, functions are [[Subroutines]]
// and every edge is labelled with the number of calls it carried.
// Recursive calls show up as self loops.
func GenerateMermaid(events []domain.TraceEvent, overlay *GraphOverlay) string {
	calls := make(map[string]int)
	edges := make(map[edge]int)
	var stack []string

	for _, ev := range events {
		switch ev.Kind {
		case domain.EventCall:
			caller := RootNode
			if n := len(stack); n > 0 {
				caller = stack[n-1]
			}
			calls[ev.FunctionName]++
			edges[edge{caller, ev.FunctionName}]++
			stack = append(stack, ev.FunctionName)
		case domain.EventReturn:
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", sanitizeMermaidID(RootNode), RootNode)

	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "    %s[[\"%s <br/> %d calls\"]]\n", sanitizeMermaidID(name), name, calls[name])
	}

	ordered := make([]edge, 0, len(edges))
	for e := range edges {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].from != ordered[j].from {
			return ordered[i].from < ordered[j].from
		}
		return ordered[i].to < ordered[j].to
	})
	for _, e := range ordered {
		fmt.Fprintf(&sb, "    %s -- \"%d\" --> %s\n", sanitizeMermaidID(e.from), edges[e], sanitizeMermaidID(e.to))
	}

	if overlay != nil && len(overlay.CallStack) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef active fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		last := len(overlay.CallStack) - 1
		seen := map[string]bool{}
		for _, f := range overlay.CallStack[:last] {
			id := sanitizeMermaidID(f.FunctionName)
			if !seen[id] && f.FunctionName != overlay.CallStack[last].FunctionName {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s active;\n", id)
			}
		}
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CallStack[last].FunctionName))
	}

	return sb.String()
}

// sanitizeMermaidID keeps node ids clear of Mermaid keywords and of the
// '$' that JavaScript identifiers may contain.
func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, "$", "_")
	return "fn_" + s
}
