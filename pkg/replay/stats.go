package replay

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

// comparisonOperator matches <, >, <=, >=, ==, ===, != and !== but not
// arrows, shifts or plain assignment.
var comparisonOperator = regexp.MustCompile(`(?:^|[^<>=!])(?:<=?|>=?|===?|!==?)(?:[^<>=]|$)`)

// Summarize derives analytics from a finalized log. lines maps the source the
// log was recorded from; tracked is the array whose states the log carries.
func Summarize(events []domain.TraceEvent, lines []domain.SourceLine, tracked string) *domain.Stats {
	stats := &domain.Stats{Steps: len(events), Calls: map[string]int{}}

	comparing := make(map[int]bool)
	for _, l := range lines {
		if l.Class.Kind != domain.KindSkip && isComparison(l.Raw, tracked) {
			comparing[l.Number] = true
		}
	}

	var (
		depth   int
		initial map[string]int
		prev    []any
	)
	for _, ev := range events {
		switch ev.Kind {
		case domain.EventLine:
			if comparing[ev.Line] {
				stats.Comparisons++
			}
		case domain.EventCall:
			stats.Calls[ev.FunctionName]++
			depth++
			stats.MaxDepth = max(stats.MaxDepth, depth)
		case domain.EventReturn:
			depth = max(depth-1, 0)
		case domain.EventState:
			stats.ArrayStates++
			if initial == nil {
				initial = multiset(ev.Array)
				prev = ev.Array
				if ev.Tag == domain.InitialStateTag {
					continue
				}
			}
			stats.Writes++
			if sameMultiset(initial, ev.Array) && sameMultiset(initial, prev) {
				stats.Swaps += changed(prev, ev.Array) / 2
			}
			prev = ev.Array
		}
	}
	if len(stats.Calls) == 0 {
		stats.Calls = nil
	}
	return stats
}

func isComparison(raw, tracked string) bool {
	code := raw
	if i := strings.Index(code, "//"); i >= 0 {
		code = code[:i]
	}
	return strings.Contains(code, tracked+"[") && comparisonOperator.MatchString(code)
}

func key(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}

func multiset(values []any) map[string]int {
	m := make(map[string]int, len(values))
	for _, v := range values {
		m[key(v)]++
	}
	return m
}

func sameMultiset(want map[string]int, values []any) bool {
	if len(values) == 0 {
		return len(want) == 0
	}
	got := multiset(values)
	if len(got) != len(want) {
		return false
	}
	for k, n := range want {
		if got[k] != n {
			return false
		}
	}
	return true
}

func changed(a, b []any) int {
	if len(a) != len(b) {
		return 0
	}
	n := 0
	for i := range a {
		if key(a[i]) != key(b[i]) {
			n++
		}
	}
	return n
}
