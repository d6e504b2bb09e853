package compiler

import (
	"strings"
	"testing"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAlgorithm_Templates(t *testing.T) {
	want := map[string]domain.AlgorithmLabel{
		"bubble":    domain.BubbleSort,
		"selection": domain.SelectionSort,
		"insertion": domain.InsertionSort,
		"merge":     domain.MergeSort,
		"quick":     domain.QuickSort,
		"heap":      domain.HeapSort,
	}
	for name, label := range want {
		t.Run(name, func(t *testing.T) {
			src, err := templates.Render(name, "5,3,8,1")
			require.NoError(t, err)
			assert.Equal(t, label, DetectAlgorithm(src))
		})
	}
}

func TestDetectAlgorithm_Precedence(t *testing.T) {
	src := "function partition() {}\nfunction quickSort() {}\nfunction heapify() {}\nwhile (x) { key = 1; }"
	assert.Equal(t, domain.QuickSort, DetectAlgorithm(src))
	assert.Equal(t, domain.Unknown, DetectAlgorithm("let a = 1;"))
}

func TestIsInterestingMutation(t *testing.T) {
	tests := []struct {
		label domain.AlgorithmLabel
		text  string
		want  bool
	}{
		{domain.QuickSort, "arr[i + 1] = arr[high];", true},
		{domain.QuickSort, "  arr[i]   =  arr[j];", true},
		{domain.QuickSort, "arr[high] = temp;", false},
		{domain.MergeSort, "arr[k] = L[i];", true},
		{domain.MergeSort, "L[i] = arr[left + i];", false},
		{domain.HeapSort, "arr[0] = arr[i];", true},
		{domain.HeapSort, "arr[largest] = swap;", false},
		{domain.BubbleSort, "arr[j] = tmp;", true},
		{domain.Unknown, "data[0] = 1;", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsInterestingMutation(tt.label, tt.text), "%s: %s", tt.label, tt.text)
	}
}

func TestTrackedArrayName(t *testing.T) {
	src := "let n = 1;\nconst nums = [3, 1];\nlet other = [2];"
	assert.Equal(t, "data", TrackedArrayName(src, "data"))
	assert.Equal(t, "nums", TrackedArrayName(src, ""))
	assert.Equal(t, "nums", TrackedArrayName(src, "1bad"))
	assert.Equal(t, domain.DefaultTrackedArray, TrackedArrayName("let n = 1;", ""))
}

func TestCompile(t *testing.T) {
	unit, err := Compile(sumSource, "")
	require.NoError(t, err)

	assert.Equal(t, domain.Unknown, unit.Algorithm)
	assert.Equal(t, domain.DefaultTrackedArray, unit.TrackedArray)
	assert.Equal(t, 5, unit.Program.Lines)
	assert.Equal(t, sumSource, unit.Program.Original)
	assert.Equal(t, Prelude, unit.Program.Prelude)

	src := unit.Program.Source
	assert.Equal(t, strings.Count(sumSource, "\n"), strings.Count(src, "\n"))
	assert.Contains(t, src, `__trace.enter(1, "sum", `)
	assert.Contains(t, src, "} finally { __trace.leave(3, ")
	assert.Contains(t, src, "return __trace.at(2), a + b;")
	assert.Contains(t, src, `__trace.assign(4, "total", function () { return total; }, null);`)
	assert.Contains(t, src, "console.log(total);")
	assert.NotContains(t, src, "__trace.line(5,")
}

func TestCompile_PreservesLineCount(t *testing.T) {
	for _, tmpl := range templates.Default().List() {
		t.Run(tmpl.Name, func(t *testing.T) {
			src, err := templates.Render(tmpl.Name, "9,4,7,1,3")
			require.NoError(t, err)
			unit, err := Compile(src, "")
			require.NoError(t, err)
			assert.Equal(t, strings.Count(src, "\n"), strings.Count(unit.Program.Source, "\n"))
			assert.Equal(t, "arr", unit.TrackedArray)
		})
	}
}

func TestCompile_DanglingBodyIsWrapped(t *testing.T) {
	unit, err := Compile("let b = 0;\nif (b === 0)\n  b = 1;", "")
	require.NoError(t, err)

	lines := strings.Split(unit.Program.Source, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "{ __trace.line(3, null); b = 1;")
	assert.True(t, strings.HasSuffix(lines[2], "}"))
}

func TestCompile_TrackedArrayState(t *testing.T) {
	unit, err := Compile("let data = [2, 1];\ndata[0] = 5;", "data")
	require.NoError(t, err)

	src := unit.Program.Source
	assert.Contains(t, src, "__trace.state(1, function () { return data; }, \""+domain.InitialStateTag+"\");")
	assert.Contains(t, src, "__trace.state(2, function () { return data; });")
}

func TestCompile_OnlyTrackedArrayHasInitialState(t *testing.T) {
	unit, err := Compile("let data = [2, 1];\nlet seen = [];", "data")
	require.NoError(t, err)

	lines := strings.Split(unit.Program.Source, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], domain.InitialStateTag)
	assert.Contains(t, lines[1], `__trace.assign(2, "seen"`)
	assert.NotContains(t, lines[1], "__trace.state(")
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(" \n\t", "")
	assert.ErrorIs(t, err, domain.ErrEmptySource)

	_, err = Compile("function f() {\n  let a = 1;\n", "")
	var ie *domain.InstrumentationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Line)
}
