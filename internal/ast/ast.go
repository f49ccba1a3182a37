// Package ast defines the Pyra abstract syntax tree: the data model the
// parser produces and every later pipeline stage (storage analysis, type
// checking, IR lowering) consumes by immutable reference.
package ast

import "github.com/holiman/uint256"

// Span is a byte range [Start, End) into the original source text.
type Span struct {
	Start int
	End   int
}

// Program is an ordered sequence of top-level items. Order defines
// storage-slot assignment order (see internal/storage).
type Program struct {
	Items []Item
	Span  Span
}

// Item is implemented by Function, StructDef, ConstDecl and EventDef.
type Item interface {
	itemNode()
}

// Function is a top-level function definition. A function named "init"
// is the constructor: its body lowers into the deploy-time ops and never
// into the runtime dispatch table.
type Function struct {
	Name       string
	Params     []Parameter
	ReturnType *Type
	Body       Block
	Span       Span
}

func (*Function) itemNode() {}

// Parameter is one (name, type) entry in a function's parameter list.
type Parameter struct {
	Name string
	Type Type
	Span Span
}

// StructDef declares a value-only struct; each field receives its own
// storage slot (see internal/storage), there is no struct-in-storage
// packing.
type StructDef struct {
	Name   string
	Fields []StructField
	Span   Span
}

func (*StructDef) itemNode() {}

// StructField is one field of a StructDef.
type StructField struct {
	Name string
	Type Type
	Span Span
}

// ConstDecl declares a compile-time-named, storage-backed constant. Its
// initializer is lowered into the constructor.
type ConstDecl struct {
	Name  string
	Type  Type
	Value Expression
	Span  Span
}

func (*ConstDecl) itemNode() {}

// EventDef declares an emittable event and its parameter shape, consumed
// only by the ABI emitter and by Emit-statement resolution.
type EventDef struct {
	Name   string
	Params []Parameter
	Span   Span
}

func (*EventDef) itemNode() {}

// Kind is the closed tag of a Type.
type Kind int

const (
	KindUint8 Kind = iota
	KindUint256
	KindInt256
	KindBool
	KindAddress
	KindBytes
	KindString
	KindVec
	KindMap
	KindCustom
	KindGeneric
)

// Type is a closed tagged union over the Pyra type system. Vec and Map
// carry recursive boxed children; Custom and Generic carry a name.
type Type struct {
	Kind Kind

	// Vec(Elem)
	Elem *Type

	// Map(Key, Value)
	Key   *Type
	Value *Type

	// Custom(Name) / Generic(Name, Args)
	Name string
	Args []Type
}

func (t Type) String() string {
	switch t.Kind {
	case KindUint8:
		return "uint8"
	case KindUint256:
		return "uint256"
	case KindInt256:
		return "int256"
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindVec:
		return "Vec<" + t.Elem.String() + ">"
	case KindMap:
		return "Map<" + t.Key.String() + "," + t.Value.String() + ">"
	case KindCustom:
		return t.Name
	case KindGeneric:
		s := t.Name + "<"
		for i, a := range t.Args {
			if i > 0 {
				s += ","
			}
			s += a.String()
		}
		return s + ">"
	default:
		return "?"
	}
}

// IsNumeric reports whether t is one of the integer kinds.
func (t Type) IsNumeric() bool {
	return t.Kind == KindUint256 || t.Kind == KindUint8 || t.Kind == KindInt256
}

// Equal reports structural equality between two types.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVec:
		return t.Elem.Equal(*o.Elem)
	case KindMap:
		return t.Key.Equal(*o.Key) && t.Value.Equal(*o.Value)
	case KindCustom:
		return t.Name == o.Name
	case KindGeneric:
		if t.Name != o.Name || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

var (
	Uint8   = Type{Kind: KindUint8}
	Uint256 = Type{Kind: KindUint256}
	Int256  = Type{Kind: KindInt256}
	Bool    = Type{Kind: KindBool}
	Address = Type{Kind: KindAddress}
	Bytes   = Type{Kind: KindBytes}
	String  = Type{Kind: KindString}
)

// MapOf builds a Map(key, value) type.
func MapOf(key, value Type) Type {
	return Type{Kind: KindMap, Key: &key, Value: &value}
}

// VecOf builds a Vec(elem) type.
func VecOf(elem Type) Type {
	return Type{Kind: KindVec, Elem: &elem}
}

// Custom builds a Custom(name) type.
func Custom(name string) Type {
	return Type{Kind: KindCustom, Name: name}
}

// Block is a consecutive, indent-consistent statement sequence.
type Block struct {
	Statements []Statement
	Span       Span
}

// Statement is implemented by every statement variant below.
type Statement interface {
	stmtNode()
}

// LetStatement declares a local binding, optionally typed and/or
// initialized.
type LetStatement struct {
	Name    string
	Type    *Type
	Value   Expression
	Mutable bool
	Span    Span
}

func (*LetStatement) stmtNode() {}

// AssignStatement assigns to a restricted target (identifier, member
// chain, or index chain). Augmented assignment is desugared by the
// parser into Assign{target, Binary(op, target, rhs)}.
type AssignStatement struct {
	Target Expression
	Value  Expression
	Span   Span
}

func (*AssignStatement) stmtNode() {}

// ExpressionStatement evaluates an expression for its side effect and
// discards the result.
type ExpressionStatement struct {
	Expr Expression
	Span Span
}

func (*ExpressionStatement) stmtNode() {}

// IfStatement is a single if/else node; elif chains are desugared by the
// parser into a right-nested chain of these.
type IfStatement struct {
	Condition  Expression
	Then       Block
	Else       *Block
	Span       Span
}

func (*IfStatement) stmtNode() {}

// ForStatement iterates Var over Iterable for the duration of Body. Var
// is pushed into scope for the body only.
type ForStatement struct {
	Var      string
	Iterable Expression
	Body     Block
	Span     Span
}

func (*ForStatement) stmtNode() {}

// WhileStatement loops Body while Condition holds.
type WhileStatement struct {
	Condition Expression
	Body      Block
	Span      Span
}

func (*WhileStatement) stmtNode() {}

// ReturnStatement returns from the enclosing function, optionally with a
// value.
type ReturnStatement struct {
	Value Expression // nil for bare `return`
	Span  Span
}

func (*ReturnStatement) stmtNode() {}

// RequireStatement reverts the transaction if Condition is false.
type RequireStatement struct {
	Condition Expression
	Span      Span
}

func (*RequireStatement) stmtNode() {}

// EmitStatement emits an event with the given arguments.
type EmitStatement struct {
	Event string
	Args  []Expression
	Span  Span
}

func (*EmitStatement) stmtNode() {}

// Expression is implemented by every expression variant below.
type Expression interface {
	exprNode()
	SpanOf() Span
}

// Number is a decimal integer literal.
type Number struct {
	Value *uint256.Int
	Span  Span
}

func (*Number) exprNode()       {}
func (n *Number) SpanOf() Span  { return n.Span }

// HexNumber is a 0x-prefixed integer literal. The parser keeps it
// distinct from Number only for diagnostics; both lower identically.
type HexNumber struct {
	Value *uint256.Int
	Span  Span
}

func (*HexNumber) exprNode()      {}
func (n *HexNumber) SpanOf() Span { return n.Span }

// StringLit is a decoded double-quoted string literal.
type StringLit struct {
	Value string
	Span  Span
}

func (*StringLit) exprNode()      {}
func (n *StringLit) SpanOf() Span { return n.Span }

// BoolLit is `true` or `false`.
type BoolLit struct {
	Value bool
	Span  Span
}

func (*BoolLit) exprNode()      {}
func (n *BoolLit) SpanOf() Span { return n.Span }

// BytesLit is an already-decoded byte-string literal (`b'...'`).
type BytesLit struct {
	Value []byte
	Span  Span
}

func (*BytesLit) exprNode()      {}
func (n *BytesLit) SpanOf() Span { return n.Span }

// Identifier references a parameter, local, state variable, or builtin
// pseudo-object.
type Identifier struct {
	Name string
	Span Span
}

func (*Identifier) exprNode()      {}
func (n *Identifier) SpanOf() Span { return n.Span }

// StructLit constructs a struct value: `Name{field: expr, ...}`.
type StructLit struct {
	Name   string
	Fields []StructLitField
	Span   Span
}

func (*StructLit) exprNode()      {}
func (n *StructLit) SpanOf() Span { return n.Span }

// StructLitField is one (name, value) pair in a StructLit.
type StructLitField struct {
	Name  string
	Value Expression
}

// BinaryOp enumerates the binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpAnd
	OpOr
)

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	Span  Span
}

func (*BinaryExpr) exprNode()      {}
func (n *BinaryExpr) SpanOf() Span { return n.Span }

// UnaryOp enumerates the unary (prefix) operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

// UnaryExpr is `op operand`.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
	Span    Span
}

func (*UnaryExpr) exprNode()      {}
func (n *UnaryExpr) SpanOf() Span { return n.Span }

// CallExpr is `callee(args...)`.
type CallExpr struct {
	Callee Expression
	Args   []Expression
	Span   Span
}

func (*CallExpr) exprNode()      {}
func (n *CallExpr) SpanOf() Span { return n.Span }

// MemberExpr is `base.name`.
type MemberExpr struct {
	Base Expression
	Name string
	Span Span
}

func (*MemberExpr) exprNode()      {}
func (n *MemberExpr) SpanOf() Span { return n.Span }

// IndexExpr is `base[key]`.
type IndexExpr struct {
	Base Expression
	Key  Expression
	Span Span
}

func (*IndexExpr) exprNode()      {}
func (n *IndexExpr) SpanOf() Span { return n.Span }

// IsBuiltin reports whether name is one of the builtin pseudo-objects
// that never receive a storage slot or diagnostic.
func IsBuiltin(name string) bool {
	switch name {
	case "msg", "block", "tx", "self":
		return true
	default:
		return false
	}
}
