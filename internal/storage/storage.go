// Package storage discovers a Pyra program's persistent storage layout by
// walking its AST rather than reading declarations: every state variable
// is found where it is first used, not where it is typed.
package storage

import (
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
)

var log = logrus.WithField("stage", "storage")

// Kind distinguishes a plain scalar slot from a keyed mapping slot.
type Kind int

const (
	Value Kind = iota
	Mapping
)

func (k Kind) String() string {
	if k == Mapping {
		return "mapping"
	}
	return "value"
}

// Slot is one allocated storage location.
type Slot struct {
	Name string
	Kind Kind
	Slot uint64
}

// Layout is the complete storage map for a program, in allocation order.
type Layout struct {
	Slots []Slot
	index map[string]int
}

// Lookup returns the slot for name, if one has been allocated.
func (l *Layout) Lookup(name string) (Slot, bool) {
	i, ok := l.index[name]
	if !ok {
		return Slot{}, false
	}
	return l.Slots[i], true
}

func (l *Layout) allocate(name string, kind Kind) {
	if _, exists := l.index[name]; exists {
		return // first discovery wins
	}
	slot := Slot{Name: name, Kind: kind, Slot: uint64(len(l.Slots))}
	l.Slots = append(l.Slots, slot)
	l.index[name] = len(l.Slots) - 1
}

// BuildLayout assigns storage slots in three passes, in source order:
// top-level constants, then struct fields, then a function-body walk that
// classifies every remaining state variable as Value or Mapping by how
// it is used (an index base is a Mapping, an assignment target is a
// Value; a name that is only read is not allocated). Builtins
// (msg/block/tx/self) are never allocated.
// Slot numbers are monotonic in discovery order, so the same source
// always assembles to the same bytecode.
func BuildLayout(prog *ast.Program) *Layout {
	l := &Layout{index: make(map[string]int)}

	for _, item := range prog.Items {
		if c, ok := item.(*ast.ConstDecl); ok {
			l.allocate(c.Name, Value)
		}
	}
	for _, item := range prog.Items {
		if s, ok := item.(*ast.StructDef); ok {
			for _, f := range s.Fields {
				l.allocate(f.Name, Value)
			}
		}
	}
	for _, item := range prog.Items {
		if fn, ok := item.(*ast.Function); ok {
			locals := make(map[string]bool, len(fn.Params))
			for _, p := range fn.Params {
				locals[p.Name] = true
			}
			walkBlock(fn.Body, locals, l)
		}
	}

	log.Debugf("assigned %d storage slots", len(l.Slots))
	return l
}

func walkBlock(b ast.Block, locals map[string]bool, l *Layout) {
	for _, s := range b.Statements {
		walkStatement(s, locals, l)
	}
}

// cloneLocals copies the in-scope local-name set so a For-loop's body can
// add its loop variable without leaking it back to the enclosing scope.
func cloneLocals(locals map[string]bool) map[string]bool {
	c := make(map[string]bool, len(locals)+1)
	for k := range locals {
		c[k] = true
	}
	return c
}

func walkStatement(s ast.Statement, locals map[string]bool, l *Layout) {
	switch n := s.(type) {
	case *ast.LetStatement:
		if n.Value != nil {
			walkExpr(n.Value, locals, l, false)
		}
		locals[n.Name] = true
	case *ast.AssignStatement:
		walkAssignTarget(n.Target, locals, l)
		walkExpr(n.Value, locals, l, false)
	case *ast.ExpressionStatement:
		walkExpr(n.Expr, locals, l, false)
	case *ast.IfStatement:
		walkExpr(n.Condition, locals, l, false)
		walkBlock(n.Then, locals, l)
		if n.Else != nil {
			walkBlock(*n.Else, locals, l)
		}
	case *ast.ForStatement:
		walkExpr(n.Iterable, locals, l, false)
		inner := cloneLocals(locals)
		inner[n.Var] = true
		walkBlock(n.Body, inner, l)
	case *ast.WhileStatement:
		walkExpr(n.Condition, locals, l, false)
		walkBlock(n.Body, locals, l)
	case *ast.ReturnStatement:
		if n.Value != nil {
			walkExpr(n.Value, locals, l, false)
		}
	case *ast.RequireStatement:
		walkExpr(n.Condition, locals, l, false)
	case *ast.EmitStatement:
		for _, a := range n.Args {
			walkExpr(a, locals, l, false)
		}
	}
}

// walkAssignTarget classifies the outermost name of an assignment target
// as a Value (`name = ...`, `name.field = ...`) unless it is the base of
// an index (`name[key] = ...`, a Mapping) — skipping names that are
// parameters or in-scope let-locals rather than state.
func walkAssignTarget(e ast.Expression, locals map[string]bool, l *Layout) {
	switch n := e.(type) {
	case *ast.Identifier:
		if !ast.IsBuiltin(n.Name) && !locals[n.Name] {
			l.allocate(n.Name, Value)
		}
	case *ast.MemberExpr:
		walkAssignTarget(n.Base, locals, l)
	case *ast.IndexExpr:
		allocateIndexBase(n.Base, locals, l)
		walkExpr(n.Key, locals, l, false)
	}
}

// walkExpr classifies every Identifier it reaches that sits as the base
// of an IndexExpr as a Mapping; a bare Identifier read allocates nothing.
// Builtins and in-scope locals are skipped entirely.
func walkExpr(e ast.Expression, locals map[string]bool, l *Layout, isIndexBase bool) {
	switch n := e.(type) {
	case *ast.Identifier:
		if ast.IsBuiltin(n.Name) || locals[n.Name] {
			return
		}
		if isIndexBase {
			l.allocate(n.Name, Mapping)
		}
	case *ast.BinaryExpr:
		walkExpr(n.Left, locals, l, false)
		walkExpr(n.Right, locals, l, false)
	case *ast.UnaryExpr:
		walkExpr(n.Operand, locals, l, false)
	case *ast.CallExpr:
		walkExpr(n.Callee, locals, l, false)
		for _, a := range n.Args {
			walkExpr(a, locals, l, false)
		}
	case *ast.MemberExpr:
		walkExpr(n.Base, locals, l, false)
	case *ast.IndexExpr:
		allocateIndexBase(n.Base, locals, l)
		walkExpr(n.Key, locals, l, false)
	case *ast.StructLit:
		for _, f := range n.Fields {
			walkExpr(f.Value, locals, l, false)
		}
	}
}

func allocateIndexBase(e ast.Expression, locals map[string]bool, l *Layout) {
	if id, ok := e.(*ast.Identifier); ok {
		if !ast.IsBuiltin(id.Name) && !locals[id.Name] {
			l.allocate(id.Name, Mapping)
		}
		return
	}
	walkExpr(e, locals, l, false)
}
