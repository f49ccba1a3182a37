package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
)

var log = logrus.WithField("stage", "lexer")

// Lexer turns source text into a flat token stream, synthesizing Indent
// and Dedent tokens from leading whitespace so the parser never has to
// reason about columns.
type Lexer struct {
	src string
	pos int // byte offset into src
	line int
	col  int

	indentStack []int
	indentChar  byte // 0 (undetermined), ' ', or '\t'
	atLineStart bool
	parenDepth  int // bracket/paren nesting suppresses Newline/Indent/Dedent

	pending []Token
	done    bool
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{
		src:         src,
		line:        1,
		col:         1,
		indentStack: []int{0},
		atLineStart: true,
	}
}

// Tokens drains the lexer into a slice, for callers (the parser, tests)
// that want the whole stream at once.
func Tokens(src string) []Token {
	l := New(src)
	var out []Token
	for {
		t := l.Next()
		out = append(out, t)
		if t.Type == EOF {
			break
		}
	}
	log.Debugf("lexed %d tokens", len(out))
	return out
}

// Next returns the next token, EOF once the input (plus trailing
// dedents) is exhausted, and EOF forever after.
func (l *Lexer) Next() Token {
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t
	}
	if l.done {
		return l.makeTok(EOF, l.pos, l.pos)
	}
	return l.lexOne()
}

func (l *Lexer) lexOne() Token {
	if l.atLineStart && l.parenDepth == 0 {
		if tok, ok := l.handleIndentation(); ok {
			return tok
		}
	}
	l.skipBlanksAndComments()

	if l.pos >= len(l.src) {
		return l.finish()
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '\n':
		l.advanceByte()
		if l.parenDepth > 0 {
			return l.lexOne()
		}
		l.atLineStart = true
		return l.makeTok(Newline, start, l.pos)
	case c == ' ' || c == '\t' || c == '\r':
		l.advanceByte()
		return l.lexOne()
	case c == '#':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.advanceByte()
		}
		return l.lexOne()
	case isDigit(c):
		return l.lexNumber()
	case c == '"':
		return l.lexString()
	case c == 'b' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'':
		return l.lexBytes()
	case isIdentStart(c):
		return l.lexIdentifier()
	default:
		return l.lexOperator()
	}
}

func (l *Lexer) finish() Token {
	for len(l.indentStack) > 1 {
		l.indentStack = l.indentStack[:len(l.indentStack)-1]
		l.pending = append(l.pending, l.makeTok(Dedent, l.pos, l.pos))
	}
	l.done = true
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t
	}
	return l.makeTok(EOF, l.pos, l.pos)
}

func (l *Lexer) skipBlanksAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' {
			l.advanceByte()
			continue
		}
		if c == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advanceByte()
			}
			continue
		}
		break
	}
}

// handleIndentation measures leading whitespace on a fresh line, emits
// classified error tokens for mixed indent characters, and queues
// Indent/Dedent tokens. A blank or comment-only line contributes no
// indentation event at all: it is consumed and the next line is measured
// instead. It returns ok=false when no token is queued.
func (l *Lexer) handleIndentation() (Token, bool) {
	lineStart := l.pos
	width := 0
	hasSpace, hasTab := false, false

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' {
			width++
			hasSpace = true
			l.advanceByte()
		} else if c == '\t' {
			width += 8
			hasTab = true
			l.advanceByte()
		} else {
			break
		}
	}

	if l.pos >= len(l.src) || l.src[l.pos] == '\n' || l.src[l.pos] == '#' {
		// Blank or comment-only line: no indentation event, consumed
		// like ordinary whitespace.
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.advanceByte()
		}
		if l.pos < len(l.src) {
			l.advanceByte() // consume the newline itself
			return l.handleIndentation()
		}
		return Token{}, false
	}

	l.atLineStart = false

	if hasSpace && hasTab {
		l.pending = append(l.pending, l.makeTok(ErrMixedIndentation, lineStart, l.pos))
	} else if width > 0 {
		kind := byte(' ')
		if hasTab {
			kind = '\t'
		}
		if l.indentChar == 0 {
			l.indentChar = kind
		} else if l.indentChar != kind {
			l.pending = append(l.pending, l.makeTok(ErrMixedIndentation, lineStart, l.pos))
		}
	}

	top := l.indentStack[len(l.indentStack)-1]
	switch {
	case width > top:
		l.indentStack = append(l.indentStack, width)
		l.pending = append(l.pending, l.makeTok(Indent, lineStart, l.pos))
	case width < top:
		for len(l.indentStack) > 1 && l.indentStack[len(l.indentStack)-1] > width {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			l.pending = append(l.pending, l.makeTok(Dedent, lineStart, l.pos))
		}
		if l.indentStack[len(l.indentStack)-1] != width {
			l.pending = append(l.pending, l.makeTok(ErrIndentation, lineStart, l.pos))
		}
	}

	if len(l.pending) == 0 {
		return Token{}, false
	}
	t := l.pending[0]
	l.pending = l.pending[1:]
	return t, true
}

func (l *Lexer) advanceByte() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) makeTok(typ Type, start, end int) Token {
	return Token{Type: typ, Text: l.src[start:end], Span: ast.Span{Start: start, End: end}}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool   { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80 }
func isIdentCont(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) lexNumber() Token {
	start := l.pos
	if l.src[l.pos] == '0' && l.pos+1 < len(l.src) && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
		l.advanceByte()
		l.advanceByte()
		digitsStart := l.pos
		for l.pos < len(l.src) && (isHexDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.advanceByte()
		}
		raw := strings.ReplaceAll(l.src[digitsStart:l.pos], "_", "")
		if raw == "" {
			return l.makeTok(ErrInvalidHexDigit, start, l.pos)
		}
		v, err := uint256.FromHex("0x" + raw)
		if err != nil {
			return l.makeTok(ErrInvalidHexDigit, start, l.pos)
		}
		tok := l.makeTok(HexNumber, start, l.pos)
		tok.Num = v
		return tok
	}

	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
		l.advanceByte()
	}
	if l.pos < len(l.src) && isIdentStart(l.src[l.pos]) {
		// Trailing letters glued to a decimal literal ("12abc") are malformed.
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.advanceByte()
		}
		return l.makeTok(ErrMalformedNumber, start, l.pos)
	}
	raw := strings.ReplaceAll(l.src[start:l.pos], "_", "")
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return l.makeTok(ErrMalformedNumber, start, l.pos)
	}
	tok := l.makeTok(Number, start, l.pos)
	tok.Num = v
	return tok
}

func (l *Lexer) lexString() Token {
	start := l.pos
	l.advanceByte() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return l.makeTok(ErrUnterminatedString, start, l.pos)
		}
		c := l.src[l.pos]
		if c == '"' {
			l.advanceByte()
			tok := l.makeTok(StringLiteral, start, l.pos)
			tok.Str = sb.String()
			return tok
		}
		if c == '\n' {
			return l.makeTok(ErrUnterminatedString, start, l.pos)
		}
		if c == '\\' {
			l.advanceByte()
			if l.pos >= len(l.src) {
				return l.makeTok(ErrUnterminatedString, start, l.pos)
			}
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
				l.advanceByte()
			case 't':
				sb.WriteByte('\t')
				l.advanceByte()
			case 'r':
				sb.WriteByte('\r')
				l.advanceByte()
			case '"':
				sb.WriteByte('"')
				l.advanceByte()
			case '\\':
				sb.WriteByte('\\')
				l.advanceByte()
			case '\'':
				sb.WriteByte('\'')
				l.advanceByte()
			case 'u':
				l.advanceByte()
				if l.pos+4 > len(l.src) {
					return l.makeTok(ErrUnterminatedString, start, l.pos)
				}
				hex := l.src[l.pos : l.pos+4]
				r, err := parseHex16(hex)
				if err != nil {
					return l.makeTok(ErrInvalidHexDigit, start, l.pos+4)
				}
				sb.WriteRune(rune(r))
				for i := 0; i < 4; i++ {
					l.advanceByte()
				}
			default:
				sb.WriteByte(esc)
				l.advanceByte()
			}
			continue
		}
		_, size := utf8.DecodeRuneInString(l.src[l.pos:])
		sb.WriteString(l.src[l.pos : l.pos+size])
		for i := 0; i < size; i++ {
			l.advanceByte()
		}
	}
}

func (l *Lexer) lexBytes() Token {
	start := l.pos
	l.advanceByte() // 'b'
	l.advanceByte() // opening quote
	digitsStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\'' {
		if l.src[l.pos] == '\n' {
			return l.makeTok(ErrInvalidBytesLiteral, start, l.pos)
		}
		l.advanceByte()
	}
	if l.pos >= len(l.src) {
		return l.makeTok(ErrInvalidBytesLiteral, start, l.pos)
	}
	hex := l.src[digitsStart:l.pos]
	l.advanceByte() // closing quote
	if len(hex)%2 != 0 {
		return l.makeTok(ErrInvalidBytesLiteral, start, l.pos)
	}
	data := make([]byte, len(hex)/2)
	for i := 0; i < len(data); i++ {
		hi, ok1 := hexVal(hex[i*2])
		lo, ok2 := hexVal(hex[i*2+1])
		if !ok1 || !ok2 {
			return l.makeTok(ErrInvalidBytesLiteral, start, l.pos)
		}
		data[i] = hi<<4 | lo
	}
	tok := l.makeTok(BytesLiteral, start, l.pos)
	tok.Bytes = data
	return tok
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func parseHex16(s string) (uint16, error) {
	var v uint16
	for i := 0; i < len(s); i++ {
		h, ok := hexVal(s[i])
		if !ok {
			return 0, errInvalidHex
		}
		v = v<<4 | uint16(h)
	}
	return v, nil
}

var errInvalidHex = &lexError{"invalid hex digit"}

type lexError struct{ msg string }

func (e *lexError) Error() string { return e.msg }

func (l *Lexer) lexIdentifier() Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.advanceByte()
	}
	name := l.src[start:l.pos]
	if kw, ok := keywords[name]; ok {
		return l.makeTok(kw, start, l.pos)
	}
	tok := l.makeTok(Identifier, start, l.pos)
	tok.Str = name
	return tok
}

func (l *Lexer) lexOperator() Token {
	start := l.pos
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "**":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(StarStar, start, l.pos)
	case "+=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(PlusAssign, start, l.pos)
	case "-=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(MinusAssign, start, l.pos)
	case "*=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(StarAssign, start, l.pos)
	case "/=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(SlashAssign, start, l.pos)
	case "==":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(Equal, start, l.pos)
	case "!=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(NotEqual, start, l.pos)
	case "<=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(LessEqual, start, l.pos)
	case ">=":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(GreaterEqual, start, l.pos)
	case "->":
		l.advanceByte()
		l.advanceByte()
		return l.makeTok(Arrow, start, l.pos)
	}

	c := l.src[l.pos]
	var typ Type
	switch c {
	case '+':
		typ = Plus
	case '-':
		typ = Minus
	case '*':
		typ = Star
	case '/':
		typ = Slash
	case '%':
		typ = Percent
	case '=':
		typ = Assign
	case '<':
		typ = Less
	case '>':
		typ = Greater
	case '(':
		typ = LParen
		l.parenDepth++
	case ')':
		typ = RParen
		if l.parenDepth > 0 {
			l.parenDepth--
		}
	case '[':
		typ = LBracket
		l.parenDepth++
	case ']':
		typ = RBracket
		if l.parenDepth > 0 {
			l.parenDepth--
		}
	case '{':
		typ = LBrace
		l.parenDepth++
	case '}':
		typ = RBrace
		if l.parenDepth > 0 {
			l.parenDepth--
		}
	case ',':
		typ = Comma
	case ':':
		typ = Colon
	case '.':
		typ = Dot
	default:
		l.advanceByte()
		return l.makeTok(ErrInvalidChar, start, l.pos)
	}
	l.advanceByte()
	return l.makeTok(typ, start, l.pos)
}
