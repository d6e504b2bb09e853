package compiler

import (
	"regexp"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

var (
	identPattern       = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	labelPattern       = regexp.MustCompile(`^[A-Za-z_$][\w$]*\s*:$`)
	functionDefPattern = regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)
	functionKeyword    = regexp.MustCompile(`\bfunction\b`)
	arrayInitPattern   = regexp.MustCompile(`^(?:let|const|var)\s+([A-Za-z_$][\w$]*)\s*=\s*\[`)
	declarationPattern = regexp.MustCompile(`^(?:let|const|var)\s+([A-Za-z_$][\w$]*)\s*=(?:[^=]|$)`)
	subscriptPattern   = regexp.MustCompile(`[A-Za-z_$][\w$]*\s*\[`)
	memberPattern      = regexp.MustCompile(`^([A-Za-z_$][\w$]*)(?:\s*\.\s*[A-Za-z_$][\w$]*)+$`)
	updatePattern      = regexp.MustCompile(`^(?:(?:\+\+|--)\s*([A-Za-z_$][\w$]*)|([A-Za-z_$][\w$]*)\s*(?:\+\+|--))\s*;?$`)
)

// ClassifyStatement classifies the text of a single line. It is pure: the same
// text always yields the same classification.
//
// When several rules match, the first in this order wins: Skip, FunctionDef,
// Return, ArrayInit, Declaration, ArrayMutation, Assignment, Plain. A line
// that is a control header with a same-line body is classified by its body.
func ClassifyStatement(text string) domain.Classification {
	t := strings.TrimSpace(stripLineComment(text))
	switch {
	case t == "", t == "{", strings.HasPrefix(t, "}"), strings.HasPrefix(t, "/*"), strings.HasPrefix(t, "*"):
		return domain.Classification{Kind: domain.KindSkip}
	case startsWithWord(t, "else"), startsWithWord(t, "case"), startsWithWord(t, "default"),
		startsWithWord(t, "catch"), startsWithWord(t, "finally"):
		return domain.Classification{Kind: domain.KindSkip}
	case isOutput(t):
		return domain.Classification{Kind: domain.KindSkip}
	}

	if functionKeyword.MatchString(t) {
		if m := functionDefPattern.FindStringSubmatch(t); m != nil {
			return domain.Classification{Kind: domain.KindFunctionDef, Name: m[1]}
		}
		return domain.Classification{Kind: domain.KindPlain}
	}
	if startsWithWord(t, "return") {
		return domain.Classification{Kind: domain.KindReturn}
	}
	if body, ok := controlBody(t); ok {
		if body == "" || strings.HasPrefix(body, "{") {
			return domain.Classification{Kind: domain.KindPlain}
		}
		c := ClassifyStatement(body)
		if c.Kind == domain.KindSkip {
			return domain.Classification{Kind: domain.KindPlain}
		}
		return c
	}
	if m := arrayInitPattern.FindStringSubmatch(t); m != nil {
		return domain.Classification{Kind: domain.KindArrayInit, Name: m[1]}
	}
	if m := declarationPattern.FindStringSubmatch(t); m != nil {
		return domain.Classification{Kind: domain.KindDeclaration, Name: m[1]}
	}
	if lhs, ok := assignmentTarget(t); ok {
		switch {
		case subscriptPattern.MatchString(lhs):
			return domain.Classification{Kind: domain.KindArrayMutation}
		case identPattern.MatchString(lhs):
			return domain.Classification{Kind: domain.KindAssignment, Name: lhs}
		}
		// A member write refreshes the object it goes through.
		if m := memberPattern.FindStringSubmatch(lhs); m != nil && m[1] != "this" {
			return domain.Classification{Kind: domain.KindAssignment, Name: m[1]}
		}
		return domain.Classification{Kind: domain.KindPlain}
	}
	if m := updatePattern.FindStringSubmatch(t); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		return domain.Classification{Kind: domain.KindAssignment, Name: name}
	}
	return domain.Classification{Kind: domain.KindPlain}
}

// ClassifyLines builds the SourceLine set of a program. Lines the outline marks
// as continuations, class-body members or nested control bodies are Skip.
func ClassifyLines(src string, outline *Outline) []domain.SourceLine {
	raw := strings.Split(src, "\n")
	lines := make([]domain.SourceLine, len(raw))
	for i, text := range raw {
		line := domain.SourceLine{
			Number:  i + 1,
			Raw:     text,
			Trimmed: strings.TrimSpace(text),
		}
		line.Class = ClassifyStatement(text)
		if i < len(outline.Lines) {
			info := outline.Lines[i]
			if info.FirstCol < 0 || info.Continuation || info.ClassBody || info.NestedBody {
				line.Class = domain.Classification{Kind: domain.KindSkip}
			}
		}
		lines[i] = line
	}
	return lines
}

func isOutput(t string) bool {
	for _, prefix := range []string{"console.", "print(", "process.stdout.write(", "document.write("} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// controlBody returns what follows the parenthesized header of an
// if/for/while/with statement, or the remainder after "do".
func controlBody(t string) (string, bool) {
	if startsWithWord(t, "do") {
		return strings.TrimSpace(t[2:]), true
	}
	var word string
	for _, w := range []string{"if", "for", "while", "with"} {
		if startsWithWord(t, w) {
			word = w
			break
		}
	}
	if word == "" {
		return "", false
	}
	rest := strings.TrimSpace(t[len(word):])
	if !strings.HasPrefix(rest, "(") {
		return "", false
	}
	end := matchParen(rest)
	if end < 0 {
		return "", true
	}
	return strings.TrimSpace(rest[end+1:]), true
}

// matchParen returns the index of the parenthesis closing s[0], or -1.
func matchParen(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// assignmentTarget finds the first top-level assignment operator in t and
// returns its left-hand side. Comparisons (==, ===, !=, <=, >=) and arrows
// do not count; compound operators (+=, <<=, ??=, ...) do.
func assignmentTarget(t string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		case c == '"' || c == '\'' || c == '`':
			quote = c
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			continue
		case c == ')' || c == ']' || c == '}':
			depth--
			continue
		case c != '=' || depth != 0:
			continue
		}
		next := byte(0)
		if i+1 < len(t) {
			next = t[i+1]
		}
		if next == '=' {
			i++
			for i+1 < len(t) && t[i+1] == '=' {
				i++
			}
			continue
		}
		if next == '>' {
			continue
		}
		opStart := i
		if i > 0 {
			switch prev := t[i-1]; prev {
			case '!':
				continue
			case '<', '>':
				if i < 2 || t[i-2] != prev {
					continue
				}
				opStart = i - 2
				if prev == '>' && i >= 3 && t[i-3] == '>' {
					opStart = i - 3
				}
			case '+', '-', '%', '^':
				opStart = i - 1
			case '*', '&', '|', '?', '/':
				opStart = i - 1
				if i >= 2 && t[i-2] == prev {
					opStart = i - 2
				}
			}
		}
		return strings.TrimSpace(t[:opStart]), true
	}
	return "", false
}

// stripLineComment drops a trailing // comment that is not inside a string.
func stripLineComment(text string) string {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			return text[:i]
		}
	}
	return text
}

func startsWithWord(t, word string) bool {
	if !strings.HasPrefix(t, word) {
		return false
	}
	return len(t) == len(word) || !isIdentPart(t[len(word)])
}
