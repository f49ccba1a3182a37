// Package lexer turns Pyra source text into a token stream, including the
// virtual Indent/Dedent tokens a Python-flavored indentation grammar
// needs to stay context-free at the parser layer.
package lexer

import (
	"fmt"

	"github.com/holiman/uint256"
	"pyra-compiler/internal/ast"
)

// Type is the closed tag of a Token.
type Type int

const (
	// Keywords
	Def Type = iota
	If
	Elif
	Else
	For
	In
	While
	Return
	Let
	Mut
	Const
	Struct
	Event
	Emit
	Require
	True
	False
	And
	Or
	Not

	// Type keywords
	KwUint8
	KwUint256
	KwInt256
	KwBool
	KwAddress
	KwBytes
	KwString

	// Operators
	Plus
	Minus
	Star
	Slash
	Percent
	StarStar
	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	Equal
	NotEqual
	LessEqual
	GreaterEqual
	Less
	Greater

	// Punctuation
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Colon
	Dot
	Arrow

	// Literals and identifiers
	Number
	HexNumber
	StringLiteral
	BytesLiteral
	Identifier

	// Structural
	Newline
	Indent
	Dedent
	EOF

	// Error tokens — the lexer never aborts, it classifies and continues.
	ErrInvalidChar
	ErrMalformedNumber
	ErrUnterminatedString
	ErrInvalidHexDigit
	ErrInvalidBytesLiteral
	ErrIndentation
	ErrMixedIndentation
)

var typeNames = map[Type]string{
	Def: "def", If: "if", Elif: "elif", Else: "else", For: "for", In: "in",
	While: "while", Return: "return", Let: "let", Mut: "mut", Const: "const",
	Struct: "struct", Event: "event", Emit: "emit", Require: "require",
	True: "true", False: "false", And: "and", Or: "or", Not: "not",
	KwUint8: "uint8", KwUint256: "uint256", KwInt256: "int256", KwBool: "bool",
	KwAddress: "address", KwBytes: "bytes", KwString: "string",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", StarStar: "**",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=", SlashAssign: "/=",
	Equal: "==", NotEqual: "!=", LessEqual: "<=", GreaterEqual: ">=", Less: "<", Greater: ">",
	LParen: "(", RParen: ")", LBracket: "[", RBracket: "]", LBrace: "{", RBrace: "}",
	Comma: ",", Colon: ":", Dot: ".", Arrow: "->",
	Number: "Number", HexNumber: "HexNumber", StringLiteral: "String",
	BytesLiteral: "Bytes", Identifier: "Identifier",
	Newline: "Newline", Indent: "Indent", Dedent: "Dedent", EOF: "EOF",
	ErrInvalidChar: "InvalidChar", ErrMalformedNumber: "MalformedNumber",
	ErrUnterminatedString: "UnterminatedString", ErrInvalidHexDigit: "InvalidHexDigit",
	ErrInvalidBytesLiteral: "InvalidBytesLiteral", ErrIndentation: "IndentationError",
	ErrMixedIndentation: "MixedIndentationError",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsError reports whether t is one of the classified error token types.
func (t Type) IsError() bool {
	return t >= ErrInvalidChar
}

var keywords = map[string]Type{
	"def": Def, "if": If, "elif": Elif, "else": Else, "for": For, "in": In,
	"while": While, "return": Return, "let": Let, "mut": Mut, "const": Const,
	"struct": Struct, "event": Event, "emit": Emit, "require": Require,
	"true": True, "false": False, "and": And, "or": Or, "not": Not,
	"uint8": KwUint8, "uint256": KwUint256, "int256": KwInt256, "bool": KwBool,
	"address": KwAddress, "bytes": KwBytes, "string": KwString,
}

// Token is one lexeme plus its classification and side data.
type Token struct {
	Type Type
	Text string // raw lexeme, or a human-readable detail for error tokens
	Span ast.Span

	Num   *uint256.Int // set for Number / HexNumber
	Str   string       // decoded value for StringLiteral / name for Identifier
	Bytes []byte       // decoded value for BytesLiteral
}

func (t Token) String() string {
	switch t.Type {
	case Identifier:
		return fmt.Sprintf("Identifier(%s)", t.Str)
	case Number:
		return fmt.Sprintf("Number(%s)", t.Num.Dec())
	case HexNumber:
		return fmt.Sprintf("Hex(0x%s)", t.Num.Hex())
	case StringLiteral:
		return fmt.Sprintf("String(%q)", t.Str)
	case BytesLiteral:
		return fmt.Sprintf("Bytes(%x)", t.Bytes)
	default:
		return t.Type.String()
	}
}
