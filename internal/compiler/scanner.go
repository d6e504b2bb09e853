package compiler

import (
	"fmt"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

// FuncScope is a function body found by the scanner. Only named functions are traced.
type FuncScope struct {
	Name      string
	DefLine   int
	Params    []string
	Traced    bool
	OpenLine  int
	OpenCol   int
	CloseLine int
	CloseCol  int
}

// Span is the statement of a brace-less control body (if/for/while/else).
type Span struct {
	Line     int
	StartCol int
	EndLine  int
	EndCol   int
}

// ReturnSite is a return keyword inside a traced function. Col points just past the keyword.
type ReturnSite struct {
	Line int
	Col  int
	Bare bool
}

// LineInfo is the structural view of one source line. Columns are byte offsets.
type LineInfo struct {
	Number      int
	FirstCol    int // first code byte, -1 when the line holds no code
	CodeEnd     int // one past the last code byte, -1 when the line holds no code
	StartHeight int
	EndHeight   int
	// Continuation lines start inside an open expression, string or comment.
	Continuation bool
	ClassBody    bool
	// NestedBody marks a control statement that is itself the brace-less body of another.
	NestedBody bool
	Function   *FuncScope // innermost traced function enclosing the line
	Dangling   *Span
	StmtEnd    int // line on which the statement starting here ends

	openTail  bool
	leadingOp bool
}

// Outline is the structure recovered from a whole source text.
type Outline struct {
	Lines     []LineInfo
	Functions []*FuncScope
	Returns   []ReturnSite
}

const (
	kindParen    = '('
	kindBracket  = '['
	kindObject   = 'o'
	kindBlock    = 'b'
	kindClass    = 'c'
	kindFunction = 'f'
	kindTemplate = 't'
)

type frame struct {
	kind   byte
	line   int
	col    int
	pos    int
	word   string
	fn     *FuncScope
	params bool
}

type dangling struct {
	span   *Span
	height int
}

type scanner struct {
	src       string
	raw       []string
	pos       int
	line      int
	lineStart int
	stack     []frame
	out       *Outline

	lastSig     byte
	lastSigLine int
	lastWord    string

	fnKeyword     bool
	fnName        string
	fnLine        int
	pendingFn     *FuncScope
	pendingArrow  bool
	pendingMethod bool
	pendingClass  bool
	expectBody    bool
	expectLine    int
	open          []*dangling
}

// Scan walks the source once, tracking strings, comments, template literals and
// the bracket stack, and returns the structure the injector needs.
// Unbalanced brackets or unterminated literals yield a *domain.InstrumentationError.
func Scan(src string) (*Outline, error) {
	s := &scanner{src: src, raw: strings.Split(src, "\n"), out: &Outline{}}
	s.beginLine(true)
	for s.pos < len(s.src) {
		if err := s.step(); err != nil {
			return nil, err
		}
	}
	s.endLine()
	if n := len(s.stack); n > 0 {
		f := s.stack[n-1]
		if f.kind == kindTemplate {
			return nil, s.fail(f.line, f.col, "unterminated template literal", "")
		}
		return nil, s.fail(f.line, f.col, fmt.Sprintf("unclosed %s", describe(f.kind)), "add the matching closing bracket")
	}
	if s.pendingFn != nil {
		return nil, s.fail(s.pendingFn.DefLine, 0, fmt.Sprintf("function %q has no body", s.pendingFn.Name), "")
	}
	s.resolveStatements()
	return s.out, nil
}

func (s *scanner) fail(line, col int, msg, suggestion string) error {
	return &domain.InstrumentationError{Line: line, Column: col + 1, Message: msg, Suggestion: suggestion}
}

func (s *scanner) current() *LineInfo {
	return &s.out.Lines[s.line-1]
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *scanner) beginLine(inCode bool) {
	s.line++
	s.lineStart = s.pos
	info := LineInfo{
		Number:      s.line,
		FirstCol:    -1,
		CodeEnd:     -1,
		StartHeight: len(s.stack),
		Function:    s.tracedFunction(),
	}
	if !inCode {
		info.Continuation = true
	} else if n := len(s.stack); n > 0 {
		switch s.stack[n-1].kind {
		case kindParen, kindBracket, kindObject, kindTemplate:
			info.Continuation = true
		case kindClass:
			info.ClassBody = true
		}
	}
	if s.lastSigLine > 0 && s.out.Lines[s.lastSigLine-1].openTail {
		info.Continuation = true
	}
	s.out.Lines = append(s.out.Lines, info)
}

func (s *scanner) endLine() {
	info := s.current()
	info.EndHeight = len(s.stack)
	if s.lastSigLine != s.line {
		return
	}
	info.openTail = s.tailOpen()
	if !info.openTail {
		end := info.CodeEnd
		s.closeDangling(func(h int) bool { return h == len(s.stack) }, s.line, end)
	}
}

// tailOpen reports whether the last code token of the current line leaves an
// expression unfinished, so the next line continues it.
func (s *scanner) tailOpen() bool {
	if strings.IndexByte("+-*/%=&|^<>!?:,.~", s.lastSig) < 0 {
		return false
	}
	code := strings.TrimSpace(stripLineComment(s.raw[s.line-1]))
	if strings.HasSuffix(code, "++") || strings.HasSuffix(code, "--") {
		return false
	}
	if s.lastSig == ':' && (startsWithWord(code, "case") || startsWithWord(code, "default") || labelPattern.MatchString(code)) {
		return false
	}
	return true
}

func (s *scanner) step() error {
	c := s.src[s.pos]
	switch {
	case c == '\n':
		s.endLine()
		s.pos++
		s.beginLine(true)
		return nil
	case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
		s.pos++
		return nil
	case c == '/' && s.peek(1) == '/':
		for s.pos < len(s.src) && s.src[s.pos] != '\n' {
			s.pos++
		}
		return nil
	case c == '/' && s.peek(1) == '*':
		return s.blockComment()
	case c == '"' || c == '\'':
		return s.quoted(c)
	case c == '`':
		start := s.pos
		s.pos++
		return s.template(start, s.line, start-s.lineStart)
	case c == '/' && s.regexAllowed():
		return s.regex()
	case isIdentStart(c):
		s.word()
		return nil
	case isDigit(c) || (c == '.' && isDigit(s.peek(1))):
		start := s.pos
		for s.pos < len(s.src) && (isIdentPart(s.src[s.pos]) || s.src[s.pos] == '.') {
			s.pos++
		}
		s.token(start, s.pos, '0', "")
		return nil
	default:
		return s.punct(c)
	}
}

// token records one significant code token on the current line.
func (s *scanner) token(start, end int, sig byte, word string) {
	info := s.current()
	col := start - s.lineStart
	if col < 0 {
		col = 0
	}
	if info.FirstCol < 0 {
		info.FirstCol = col
	}
	info.CodeEnd = end - s.lineStart
	s.resolveBody(col, sig, word)
	if sig != '{' {
		s.pendingArrow = false
		s.pendingMethod = false
	}
	if s.fnKeyword && word == "" && sig != '(' && sig != '*' {
		s.fnKeyword = false
	}
	s.lastSig = sig
	s.lastSigLine = s.line
	s.lastWord = word
}

// resolveBody decides, at the first token after a control header, whether the
// header has a brace-less body.
func (s *scanner) resolveBody(col int, sig byte, word string) {
	if !s.expectBody {
		return
	}
	s.expectBody = false
	if sig == '{' || sig == ';' {
		return
	}
	switch word {
	case "if", "for", "while", "do", "switch", "try", "with":
		if s.line != s.expectLine && col == s.current().FirstCol {
			s.current().NestedBody = true
		}
		return
	}
	d := &dangling{span: &Span{Line: s.line, StartCol: col}, height: len(s.stack)}
	s.open = append(s.open, d)
	if s.current().Dangling == nil {
		s.current().Dangling = d.span
	}
}

func (s *scanner) closeDangling(match func(height int) bool, line, col int) {
	if len(s.open) == 0 {
		return
	}
	kept := s.open[:0]
	for _, d := range s.open {
		if match(d.height) {
			d.span.EndLine, d.span.EndCol = line, col
			continue
		}
		kept = append(kept, d)
	}
	s.open = kept
}

func (s *scanner) word() {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	w := s.src[start:s.pos]
	member := s.lastSig == '.' && s.lastWord == ""
	wasFn := s.fnKeyword
	s.token(start, s.pos, 'a', w)
	if member {
		return
	}
	switch w {
	case "function":
		s.fnKeyword, s.fnName, s.fnLine = true, "", s.line
	case "class":
		s.pendingClass = true
	case "else":
		s.expectBody, s.expectLine = true, s.line
	case "return":
		if fn := s.innermostFunction(); fn != nil && fn.Traced {
			s.out.Returns = append(s.out.Returns, ReturnSite{
				Line: s.line,
				Col:  s.pos - s.lineStart,
				Bare: s.bareReturn(),
			})
		}
	default:
		if wasFn && s.fnName == "" {
			s.fnName = w
		}
	}
}

func (s *scanner) bareReturn() bool {
	i := s.pos
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t') {
		i++
	}
	if i >= len(s.src) {
		return true
	}
	switch s.src[i] {
	case ';', '}', '\n', '\r':
		return true
	case '/':
		return i+1 < len(s.src) && s.src[i+1] == '/'
	}
	return false
}

func (s *scanner) punct(c byte) error {
	start := s.pos
	col := start - s.lineStart
	switch c {
	case '(', '[':
		prev := s.lastWord
		s.token(start, start+1, c, "")
		f := frame{kind: c, line: s.line, col: col, pos: start}
		if c == '(' {
			if s.fnKeyword {
				f.fn = &FuncScope{Name: s.fnName, DefLine: s.fnLine, Traced: s.fnName != ""}
				f.params = true
				s.fnKeyword = false
			} else {
				f.word = prev
			}
		}
		s.stack = append(s.stack, f)
		s.pos++
		return nil

	case '{':
		prevWord, prevSig := s.lastWord, s.lastSig
		s.token(start, start+1, '{', "")
		f := frame{kind: s.braceKind(prevWord, prevSig), line: s.line, col: col, pos: start}
		switch {
		case s.pendingFn != nil:
			f.kind, f.fn = kindFunction, s.pendingFn
			f.fn.OpenLine, f.fn.OpenCol = s.line, col
			if f.fn.Traced {
				s.out.Functions = append(s.out.Functions, f.fn)
			}
			s.pendingFn = nil
		case s.pendingArrow || s.pendingMethod:
			f.kind, f.fn = kindFunction, &FuncScope{}
		case s.pendingClass:
			f.kind = kindClass
		}
		s.pendingArrow, s.pendingMethod, s.pendingClass = false, false, false
		s.stack = append(s.stack, f)
		s.pos++
		return nil

	case ')', ']', '}':
		if len(s.stack) == 0 {
			return s.fail(s.line, col, fmt.Sprintf("unexpected %q", c), "remove it or add the matching opening bracket")
		}
		top := s.stack[len(s.stack)-1]
		if closer(top.kind) != c {
			return s.fail(s.line, col,
				fmt.Sprintf("mismatched %q, %s opened at line %d expects %q", c, describe(top.kind), top.line, closer(top.kind)), "")
		}
		s.closeDangling(func(h int) bool { return h >= len(s.stack) }, s.line, col)
		s.stack = s.stack[:len(s.stack)-1]
		if top.kind == kindTemplate {
			s.pos++
			return s.template(start, s.line, col)
		}
		s.token(start, start+1, c, "")
		s.pos++
		if top.kind == kindFunction && top.fn.Traced {
			top.fn.CloseLine, top.fn.CloseCol = s.line, col
		}
		if c == ')' {
			switch {
			case top.params:
				top.fn.Params = parseParams(s.src[top.pos+1 : start])
				s.pendingFn = top.fn
			case top.word == "if" || top.word == "for" || top.word == "while" || top.word == "with":
				s.expectBody, s.expectLine = true, s.line
			case top.word != "" && !isKeyword(top.word):
				s.pendingMethod = true
			}
		}
		return nil

	case '=':
		if s.peek(1) == '>' {
			s.token(start, start+2, '>', "")
			s.pos += 2
			s.pendingArrow = true
			return nil
		}
	case ';':
		s.token(start, start+1, ';', "")
		s.pos++
		s.closeDangling(func(h int) bool { return h == len(s.stack) }, s.line, col+1)
		return nil
	case '*':
		if s.fnKeyword {
			s.token(start, start+1, '*', "")
			s.pos++
			return nil
		}
	}
	s.token(start, start+1, c, "")
	s.pos++
	return nil
}

func (s *scanner) braceKind(prevWord string, prevSig byte) byte {
	if prevWord != "" {
		switch prevWord {
		case "return", "typeof", "case", "in", "of", "yield", "await", "void", "throw", "new", "delete":
			return kindObject
		}
		return kindBlock
	}
	switch prevSig {
	case 0, ';', '{', '}', ')':
		return kindBlock
	case ':':
		if n := len(s.stack); n > 0 && s.stack[n-1].kind == kindObject {
			return kindObject
		}
		code := strings.TrimSpace(s.raw[s.line-1])
		if startsWithWord(code, "case") || startsWithWord(code, "default") {
			return kindBlock
		}
	}
	return kindObject
}

func (s *scanner) quoted(q byte) error {
	start := s.pos
	line, col := s.line, start-s.lineStart
	s.pos++
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == '\\' && s.peek(1) == '\n':
			s.pos++
			s.endLine()
			s.pos++
			s.beginLine(false)
		case c == '\\':
			s.pos += 2
		case c == q:
			s.pos++
			s.token(start, s.pos, '"', "")
			return nil
		case c == '\n':
			return s.fail(line, col, "unterminated string literal", "close the string on the same line")
		default:
			s.pos++
		}
	}
	return s.fail(line, col, "unterminated string literal", "")
}

func (s *scanner) blockComment() error {
	line, col := s.line, s.pos-s.lineStart
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.pos += 2
			return nil
		}
		if s.src[s.pos] == '\n' {
			s.endLine()
			s.pos++
			s.beginLine(false)
			continue
		}
		s.pos++
	}
	return s.fail(line, col, "unterminated block comment", "close it with */")
}

// template scans a template literal body. s.pos is just past the opening
// backtick, or past the '}' that closes a substitution.
func (s *scanner) template(start, line, col int) error {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.peek(1) != '\n':
			s.pos += 2
		case c == '`':
			s.pos++
			s.token(start, s.pos, '`', "")
			return nil
		case c == '$' && s.peek(1) == '{':
			s.token(start, s.pos+2, '(', "")
			s.stack = append(s.stack, frame{kind: kindTemplate, line: s.line, col: s.pos - s.lineStart, pos: s.pos})
			s.pos += 2
			return nil
		case c == '\n':
			s.endLine()
			s.pos++
			s.beginLine(false)
		default:
			s.pos++
		}
	}
	return s.fail(line, col, "unterminated template literal", "")
}

func (s *scanner) regex() error {
	start := s.pos
	line, col := s.line, start-s.lineStart
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == '\n':
			return s.fail(line, col, "unterminated regular expression", "")
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			s.pos++
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			s.token(start, s.pos, 'r', "")
			return nil
		}
		s.pos++
	}
	return s.fail(line, col, "unterminated regular expression", "")
}

func (s *scanner) regexAllowed() bool {
	if s.lastWord != "" {
		switch s.lastWord {
		case "return", "typeof", "case", "do", "else", "in", "of", "new", "delete", "void", "throw", "yield", "await":
			return true
		}
		return false
	}
	if s.lastSig == 0 {
		return true
	}
	return strings.IndexByte("(,=:[!&|?{};+-*%<>~^", s.lastSig) >= 0
}

func (s *scanner) innermostFunction() *FuncScope {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].kind == kindFunction {
			return s.stack[i].fn
		}
	}
	return nil
}

func (s *scanner) tracedFunction() *FuncScope {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if f := s.stack[i]; f.kind == kindFunction && f.fn.Traced {
			return f.fn
		}
	}
	return nil
}

// resolveStatements marks lines led by an operator as continuations and
// computes where each statement ends.
func (s *scanner) resolveStatements() {
	lines := s.out.Lines
	for i := range lines {
		info := &lines[i]
		if info.FirstCol < 0 || info.Continuation {
			continue
		}
		if leadingOperator(s.raw[i][info.FirstCol:]) {
			info.Continuation = true
			info.leadingOp = true
		}
	}
	for i := range lines {
		info := &lines[i]
		info.StmtEnd = info.Number
		if info.FirstCol < 0 || info.Continuation {
			continue
		}
		for j := i; j < len(lines); j++ {
			l := lines[j]
			if l.EndHeight > info.StartHeight || l.openTail {
				continue
			}
			if j+1 < len(lines) && lines[j+1].leadingOp {
				continue
			}
			info.StmtEnd = l.Number
			break
		}
	}
}

func leadingOperator(code string) bool {
	if code == "" {
		return false
	}
	switch c := code[0]; c {
	case '.', '?', ',', ':', '*', '%', '=', '&', '|', '^', ')', ']':
		return true
	case '+', '-':
		return len(code) < 2 || code[1] != c
	case '/':
		return len(code) < 2 || (code[1] != '/' && code[1] != '*')
	}
	return false
}

func parseParams(list string) []string {
	var names []string
	for _, part := range splitTopLevel(list, ',') {
		p := strings.TrimSpace(part)
		p = strings.TrimPrefix(p, "...")
		if i := strings.IndexByte(p, '='); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		if identPattern.MatchString(p) {
			names = append(names, p)
		}
	}
	return names
}

// splitTopLevel splits s at sep when outside brackets and quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
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
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func closer(kind byte) byte {
	switch kind {
	case kindParen:
		return ')'
	case kindBracket:
		return ']'
	}
	return '}'
}

func describe(kind byte) string {
	switch kind {
	case kindParen:
		return "parenthesis"
	case kindBracket:
		return "bracket"
	case kindObject:
		return "object literal"
	case kindClass:
		return "class body"
	case kindFunction:
		return "function body"
	case kindTemplate:
		return "template substitution"
	}
	return "block"
}

func isKeyword(w string) bool {
	switch w {
	case "if", "for", "while", "with", "switch", "catch", "function", "return", "typeof",
		"new", "delete", "void", "throw", "in", "of", "do", "else", "case", "await", "yield":
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
