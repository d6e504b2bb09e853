package templates_test

import (
	"strings"
	"testing"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"Numbers", "5,3,8,1", "5, 3, 8, 1", true},
		{"Spaces", " 5 , 3 ", "5, 3", true},
		{"Decimals", "1.5, 2", "1.5, 2", true},
		{"Bounds", "1,100", "1, 100", true},
		{"Strings", "pear, apple", `"pear", "apple"`, true},
		{"Mixed Are Strings", "1, b", `"1", "b"`, true},
		{"Quotes Escaped", `say "hi"`, `"say \"hi\""`, true},
		{"Empty", "", "", false},
		{"Empty Element", "1,,2", "", false},
		{"Below Range", "0, 5", "", false},
		{"Above Range", "5, 101", "", false},
		{"NaN", "NaN, 5", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := templates.ParseInput(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInput_ElementLimit(t *testing.T) {
	fifty := strings.TrimSuffix(strings.Repeat("7,", 50), ",")
	_, err := templates.ParseInput(fifty)
	assert.NoError(t, err)

	_, err = templates.ParseInput(fifty + ",7")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuiltinTemplates(t *testing.T) {
	assert.Equal(t, []string{"bubble", "heap", "insertion", "merge", "quick", "selection"}, templates.Names())

	for _, name := range templates.Names() {
		t.Run(name, func(t *testing.T) {
			src, err := templates.Render(name, "5,3,8,1")
			require.NoError(t, err)
			assert.Contains(t, src, "let arr = [5, 3, 8, 1];")
			assert.NotContains(t, src, templates.Placeholder)
		})
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := templates.Render("bogo", "1,2")
	assert.ErrorIs(t, err, domain.ErrUnknownTemplate)
}

func TestRegistry_Register(t *testing.T) {
	r := templates.NewRegistry()
	assert.Error(t, r.Register(templates.Template{Name: "x", Source: "no placeholder"}))
	assert.Error(t, r.Register(templates.Template{Source: "let a = [%input%];"}))

	require.NoError(t, r.Register(templates.Template{Name: "x", Source: "let a = [%input%];"}))
	src, err := r.Render("x", "2,1")
	require.NoError(t, err)
	assert.Equal(t, "let a = [2, 1];", src)
	assert.Len(t, r.List(), 1)
}
