// Package types runs an advisory-only type checker over a Pyra program.
// Diagnostics it collects never block code generation — lowering proceeds
// on every program regardless of what this package finds, matching this
// language's deliberately permissive compile model.
package types

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
	"pyra-compiler/internal/storage"
)

var log = logrus.WithField("stage", "types")

// ErrorKind classifies a diagnostic.
type ErrorKind int

const (
	Undefined ErrorKind = iota
	Mismatch
	BinaryOpError
	RequireBool
	ReturnMismatch
	IndexNonMapping
	Duplicate
)

func (k ErrorKind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Mismatch:
		return "mismatch"
	case BinaryOpError:
		return "binary-op"
	case RequireBool:
		return "require-bool"
	case ReturnMismatch:
		return "return-mismatch"
	case IndexNonMapping:
		return "index-non-mapping"
	case Duplicate:
		return "duplicate"
	default:
		return "?"
	}
}

// Diagnostic is one advisory finding. It carries a span for reporting but
// is never fatal.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	Span    ast.Span
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

type scope struct {
	vars   map[string]ast.Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]ast.Type), parent: parent}
}

func (s *scope) declare(name string, t ast.Type) {
	s.vars[name] = t
}

func (s *scope) lookup(name string) (ast.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return ast.Type{}, false
}

// Checker walks a program and accumulates diagnostics.
type Checker struct {
	layout *storage.Layout
	global *scope
	diags  []Diagnostic
	events map[string]*ast.EventDef
}

// Check runs the full advisory pass and returns every diagnostic found,
// in program order. The caller decides whether to surface them (the CLI
// logs them at warn level); compilation is never aborted because of them.
func Check(prog *ast.Program, layout *storage.Layout) []Diagnostic {
	c := &Checker{layout: layout, global: newScope(nil), events: make(map[string]*ast.EventDef)}

	for _, item := range prog.Items {
		switch n := item.(type) {
		case *ast.ConstDecl:
			c.global.declare(n.Name, n.Type)
		case *ast.EventDef:
			c.events[n.Name] = n
		}
	}
	for _, slot := range layout.Slots {
		if _, exists := c.global.vars[slot.Name]; exists {
			continue
		}
		if slot.Kind == storage.Mapping {
			c.global.declare(slot.Name, ast.MapOf(ast.Uint256, ast.Uint256))
		} else {
			c.global.declare(slot.Name, ast.Uint256)
		}
	}

	seen := map[string]bool{}
	for _, item := range prog.Items {
		fn, ok := item.(*ast.Function)
		if !ok {
			continue
		}
		if seen[fn.Name] {
			c.report(Duplicate, fn.Span, "function %q is declared more than once", fn.Name)
		}
		seen[fn.Name] = true
		c.checkFunction(fn)
	}

	log.Debugf("type checker produced %d diagnostics", len(c.diags))
	return c.diags
}

func (c *Checker) report(kind ErrorKind, span ast.Span, format string, args ...interface{}) {
	c.diags = append(c.diags, Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span})
}

func (c *Checker) checkFunction(fn *ast.Function) {
	s := newScope(c.global)
	for _, p := range fn.Params {
		s.declare(p.Name, p.Type)
	}
	c.checkBlock(fn.Body, s, fn.ReturnType)
}

func (c *Checker) checkBlock(b ast.Block, s *scope, ret *ast.Type) {
	for _, stmt := range b.Statements {
		c.checkStatement(stmt, s, ret)
	}
}

func (c *Checker) checkStatement(stmt ast.Statement, s *scope, ret *ast.Type) {
	switch n := stmt.(type) {
	case *ast.LetStatement:
		var t ast.Type
		if n.Value != nil {
			t = c.inferExpr(n.Value, s)
		}
		if n.Type != nil {
			if n.Value != nil && !n.Type.Equal(t) {
				c.report(Mismatch, n.Span, "let %q declared as %s but initialized with %s", n.Name, n.Type, t)
			}
			t = *n.Type
		}
		s.declare(n.Name, t)
	case *ast.AssignStatement:
		targetType := c.inferExpr(n.Target, s)
		valType := c.inferExpr(n.Value, s)
		if !targetType.Equal(valType) {
			c.report(Mismatch, n.Span, "cannot assign %s to %s", valType, targetType)
		}
	case *ast.ExpressionStatement:
		c.inferExpr(n.Expr, s)
	case *ast.IfStatement:
		condType := c.inferExpr(n.Condition, s)
		if condType.Kind != ast.KindBool {
			c.report(Mismatch, n.Span, "if condition must be bool, got %s", condType)
		}
		c.checkBlock(n.Then, newScope(s), ret)
		if n.Else != nil {
			c.checkBlock(*n.Else, newScope(s), ret)
		}
	case *ast.ForStatement:
		c.inferExpr(n.Iterable, s)
		inner := newScope(s)
		inner.declare(n.Var, ast.Uint256)
		c.checkBlock(n.Body, inner, ret)
	case *ast.WhileStatement:
		condType := c.inferExpr(n.Condition, s)
		if condType.Kind != ast.KindBool {
			c.report(Mismatch, n.Span, "while condition must be bool, got %s", condType)
		}
		c.checkBlock(n.Body, newScope(s), ret)
	case *ast.ReturnStatement:
		if n.Value == nil {
			if ret != nil {
				c.report(ReturnMismatch, n.Span, "bare return in function declared to return %s", *ret)
			}
			return
		}
		vt := c.inferExpr(n.Value, s)
		if ret == nil {
			c.report(ReturnMismatch, n.Span, "return with value in function declared to return nothing")
		} else if !ret.Equal(vt) {
			c.report(ReturnMismatch, n.Span, "return type %s does not match declared %s", vt, *ret)
		}
	case *ast.RequireStatement:
		condType := c.inferExpr(n.Condition, s)
		if condType.Kind != ast.KindBool {
			c.report(RequireBool, n.Span, "require condition must be bool, got %s", condType)
		}
	case *ast.EmitStatement:
		if _, ok := c.events[n.Event]; !ok {
			c.report(Undefined, n.Span, "emit references undeclared event %q", n.Event)
		}
		for _, a := range n.Args {
			c.inferExpr(a, s)
		}
	}
}

// inferExpr computes a best-effort type for e, reporting a diagnostic and
// returning Uint256 as a neutral fallback whenever it cannot.
func (c *Checker) inferExpr(e ast.Expression, s *scope) ast.Type {
	switch n := e.(type) {
	case *ast.Number:
		return ast.Uint256
	case *ast.HexNumber:
		return ast.Uint256
	case *ast.StringLit:
		return ast.String
	case *ast.BoolLit:
		return ast.Bool
	case *ast.BytesLit:
		return ast.Bytes
	case *ast.Identifier:
		if ast.IsBuiltin(n.Name) {
			return ast.Address
		}
		if t, ok := s.lookup(n.Name); ok {
			return t
		}
		c.report(Undefined, n.Span, "undefined name %q", n.Name)
		return ast.Uint256
	case *ast.BinaryExpr:
		lt := c.inferExpr(n.Left, s)
		rt := c.inferExpr(n.Right, s)
		switch n.Op {
		case ast.OpAnd, ast.OpOr:
			if lt.Kind != ast.KindBool || rt.Kind != ast.KindBool {
				c.report(BinaryOpError, n.Span, "%s requires bool operands, got %s and %s", opName(n.Op), lt, rt)
			}
			return ast.Bool
		case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpGreater, ast.OpLessEqual, ast.OpGreaterEqual:
			if !lt.Equal(rt) {
				c.report(BinaryOpError, n.Span, "cannot compare %s and %s", lt, rt)
			}
			return ast.Bool
		default:
			if !lt.IsNumeric() || !rt.IsNumeric() {
				c.report(BinaryOpError, n.Span, "%s requires numeric operands, got %s and %s", opName(n.Op), lt, rt)
			}
			if !lt.Equal(rt) {
				c.report(Mismatch, n.Span, "operand type mismatch: %s vs %s", lt, rt)
			}
			return lt
		}
	case *ast.UnaryExpr:
		t := c.inferExpr(n.Operand, s)
		if n.Op == ast.OpNot && t.Kind != ast.KindBool {
			c.report(Mismatch, n.Span, "not requires a bool operand, got %s", t)
		}
		if n.Op == ast.OpNeg && !t.IsNumeric() {
			c.report(Mismatch, n.Span, "unary - requires a numeric operand, got %s", t)
		}
		return t
	case *ast.CallExpr:
		for _, a := range n.Args {
			c.inferExpr(a, s)
		}
		return ast.Uint256
	case *ast.MemberExpr:
		c.inferExpr(n.Base, s)
		if base, ok := n.Base.(*ast.Identifier); ok && ast.IsBuiltin(base.Name) {
			switch base.Name + "." + n.Name {
			case "msg.sender", "self.address":
				return ast.Address
			}
		}
		return ast.Uint256
	case *ast.IndexExpr:
		baseType := c.inferExpr(n.Base, s)
		c.inferExpr(n.Key, s)
		if baseType.Kind != ast.KindMap {
			c.report(IndexNonMapping, n.Span, "indexing a non-mapping value of type %s", baseType)
			return ast.Uint256
		}
		return *baseType.Value
	case *ast.StructLit:
		for _, f := range n.Fields {
			c.inferExpr(f.Value, s)
		}
		return ast.Custom(n.Name)
	default:
		return ast.Uint256
	}
}

func opName(op ast.BinaryOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpPow:
		return "**"
	case ast.OpAnd:
		return "and"
	case ast.OpOr:
		return "or"
	default:
		return "?"
	}
}
