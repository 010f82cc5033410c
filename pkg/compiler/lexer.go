package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Lexer holds all mutable state for a single scanning pass over src.
// It never fails: malformed input becomes an ILLEGAL token.
type Lexer struct {
	src      []rune
	pos      int // index of the next rune to consume
	line     int // current 1-based source line
	col      int // current 1-based column
	warnings []string
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	l := &Lexer{src: []rune(src)}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the beginning of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.line = 1
	l.col = 1
	l.warnings = nil
}

// Warnings returns the diagnostics for ignored pragmas seen so far.
func (l *Lexer) Warnings() []string {
	return l.warnings
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) here() Pos {
	return Pos{Line: l.line, Col: l.col}
}

func (l *Lexer) illegal(pos Pos, format string, args ...any) Token {
	return Token{Type: ILLEGAL, Lexeme: fmt.Sprintf(format, args...), Pos: pos}
}

// atLineStart reports whether only blanks precede the current position on
// its line.
func (l *Lexer) atLineStart() bool {
	for i := l.pos - 1; i >= 0; i-- {
		switch l.src[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return true
}

func (l *Lexer) skipBlockComment() bool {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return true
		}
		l.advance()
	}
	return false
}

func (l *Lexer) restOfLine() string {
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
	return string(l.src[start:l.pos])
}

// scanDirective handles a '#' line. ok is false when the line produced no
// token (an ignored pragma).
func (l *Lexer) scanDirective() (tok Token, ok bool) {
	pos := l.here()
	l.advance() // #
	text := l.restOfLine()
	if i := strings.Index(text, "//"); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != "pragma" {
		return l.illegal(pos, "unsupported directive #%s", strings.TrimSpace(text)), true
	}
	args := fields[1:]
	if len(args) == 0 {
		l.warnings = append(l.warnings, fmt.Sprintf("line %d: ignored empty pragma", pos.Line))
		return Token{}, false
	}

	switch args[0] {
	case "extern":
		if len(args) != 2 || args[1] != "asm" {
			return l.illegal(pos, "invalid linkage pragma: %s", strings.Join(args, " ")), true
		}
		return Token{Type: PRAGMA_EXTERN_ASM, Lexeme: "extern asm", Pos: pos}, true
	case "location":
		if len(args) != 2 {
			return l.illegal(pos, "invalid pragma location: %s", strings.Join(args[1:], " ")), true
		}
		if _, err := strconv.ParseUint(args[1], 0, 32); err != nil {
			return l.illegal(pos, "invalid pragma location: %s", args[1]), true
		}
		return Token{Type: PRAGMA_LOCATION, Lexeme: args[1], Pos: pos}, true
	}

	l.warnings = append(l.warnings, fmt.Sprintf("line %d: ignored pragma %s", pos.Line, strings.Join(args, " ")))
	return Token{}, false
}

func (l *Lexer) scanIdent() Token {
	pos := l.here()
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Pos: pos}
}

// scanInt collects a decimal or hex integer literal, including an optional
// u/U suffix that marks the literal as unsigned (e.g. 10u, 0xFFFFu).
func (l *Lexer) scanInt() Token {
	pos := l.here()
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) {
			r := l.peek()
			if unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
				l.advance()
			} else {
				break
			}
		}
		if l.pos-start == 2 {
			return l.illegal(pos, "malformed hex literal %q", string(l.src[start:l.pos]))
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	numEnd := l.pos
	if l.peek() == 'u' || l.peek() == 'U' {
		l.advance()
		return Token{Type: UNSIGNED_LIT, Lexeme: string(l.src[start:numEnd]), Pos: pos}
	}
	if r := l.peek(); unicode.IsLetter(r) || r == '_' {
		for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		return l.illegal(pos, "malformed number %q", string(l.src[start:l.pos]))
	}

	return Token{Type: INTEGER, Lexeme: string(l.src[start:numEnd]), Pos: pos}
}

// scanEscape decodes the character after a backslash.
func (l *Lexer) scanEscape() (rune, bool) {
	next := l.advance()
	switch next {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	}
	return next, false
}

// scanChar collects a character literal; the lexeme is its decimal value.
func (l *Lexer) scanChar() Token {
	pos := l.here()
	l.advance() // '

	r := l.peek()
	var val rune
	switch r {
	case '\'':
		l.advance()
		return l.illegal(pos, "empty character literal")
	case '\n', 0:
		return l.illegal(pos, "unterminated character literal")
	case '\\':
		l.advance()
		v, ok := l.scanEscape()
		if !ok {
			return l.illegal(pos, "unknown escape sequence \\%c", v)
		}
		val = v
	default:
		val = l.advance()
	}

	if l.peek() != '\'' {
		return l.illegal(pos, "unterminated character literal")
	}
	l.advance()
	if val > 0xFF {
		return l.illegal(pos, "character literal %q does not fit in a char", val)
	}

	return Token{Type: CHAR_LIT, Lexeme: strconv.Itoa(int(val)), Pos: pos}
}

func (l *Lexer) scanString() Token {
	pos := l.here()
	l.advance() // "
	var val []rune

	for {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' || l.pos >= len(l.src) {
			return l.illegal(pos, "unterminated string literal")
		}
		if r == '\\' {
			l.advance()
			v, ok := l.scanEscape()
			if !ok {
				return l.illegal(pos, "unknown escape sequence \\%c", v)
			}
			val = append(val, v)
			continue
		}
		val = append(val, r)
		l.advance()
	}
	l.advance() // "

	return Token{Type: STRING, Lexeme: string(val), Pos: pos}
}

// Next skips whitespace and comments and returns the next Token. At end of
// input it keeps returning EOF.
func (l *Lexer) Next() Token {
	for {
		for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
			l.advance()
		}
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Pos: l.here()}
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.restOfLine()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			pos := l.here()
			l.advance()
			l.advance()
			if !l.skipBlockComment() {
				return l.illegal(pos, "unterminated block comment")
			}
			continue
		}
		if l.peek() == '#' && l.atLineStart() {
			if tok, ok := l.scanDirective(); ok {
				return tok
			}
			continue
		}
		break
	}

	ch := l.peek()
	pos := l.here()

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent()
	}
	if unicode.IsDigit(ch) {
		return l.scanInt()
	}
	if ch == '"' {
		return l.scanString()
	}
	if ch == '\'' {
		return l.scanChar()
	}

	tok := func(tt TokenType, lexeme string) Token {
		return Token{Type: tt, Lexeme: lexeme, Pos: pos}
	}
	// with2 consumes a second character when it matches next.
	with2 := func(next rune, tt TokenType, lexeme string) (Token, bool) {
		if l.peek() == next {
			l.advance()
			return tok(tt, lexeme), true
		}
		return Token{}, false
	}

	l.advance()
	switch ch {
	case '{':
		return tok(LBRACE, "{")
	case '}':
		return tok(RBRACE, "}")
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case ';':
		return tok(SEMICOLON, ";")
	case ',':
		return tok(COMMA, ",")

	case '+':
		if t, ok := with2('+', PLUS_PLUS, "++"); ok {
			return t
		}
		if t, ok := with2('=', PLUS_ASSIGN, "+="); ok {
			return t
		}
		return tok(PLUS, "+")
	case '-':
		if t, ok := with2('-', MINUS_MINUS, "--"); ok {
			return t
		}
		if t, ok := with2('=', MINUS_ASSIGN, "-="); ok {
			return t
		}
		return tok(MINUS, "-")
	case '*':
		if t, ok := with2('=', STAR_ASSIGN, "*="); ok {
			return t
		}
		return tok(STAR, "*")
	case '/':
		if t, ok := with2('=', SLASH_ASSIGN, "/="); ok {
			return t
		}
		return tok(SLASH, "/")
	case '%':
		if t, ok := with2('=', PERCENT_ASSIGN, "%="); ok {
			return t
		}
		return tok(PERCENT, "%")
	case '&':
		if t, ok := with2('&', AND_LOGICAL, "&&"); ok {
			return t
		}
		return tok(AND, "&")
	case '|':
		if t, ok := with2('|', OR_LOGICAL, "||"); ok {
			return t
		}
		return tok(PIPE, "|")
	case '^':
		return tok(CARET, "^")
	case '~':
		return tok(TILDE, "~")
	case '!':
		if t, ok := with2('=', NOT_EQ, "!="); ok {
			return t
		}
		return tok(NOT, "!")
	case '<':
		if t, ok := with2('=', LESS_EQ, "<="); ok {
			return t
		}
		if t, ok := with2('<', SHL_OP, "<<"); ok {
			return t
		}
		return tok(LESS, "<")
	case '>':
		if t, ok := with2('=', GREATER_EQ, ">="); ok {
			return t
		}
		if t, ok := with2('>', SHR_OP, ">>"); ok {
			return t
		}
		return tok(GREATER, ">")
	case '=':
		if t, ok := with2('=', EQUALS, "=="); ok {
			return t
		}
		return tok(ASSIGN, "=")
	}
	return l.illegal(pos, "unexpected character %q", ch)
}

// Lex tokenises src and returns all tokens including the final EOF token.
func Lex(src string) []Token {
	tokens, _ := LexWithWarnings(src)
	return tokens
}

// LexWithWarnings is Lex plus the ignored-pragma warnings.
func LexWithWarnings(src string) ([]Token, []string) {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, l.Warnings()
		}
	}
}
