package parser

import (
	"testing"

	"pyra-compiler/internal/ast"
)

func TestItemCountMatchesTopLevelForms(t *testing.T) {
	src := "const a: uint256 = 1\n\nstruct S:\n    v: uint256\n\nevent E(x: uint256)\n\ndef f():\n    let x = 1\n\ndef g():\n    let y = 2\n"
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Items) != 5 {
		t.Fatalf("expected 5 top-level items (const, struct, event, 2 defs), got %d", len(prog.Items))
	}
}

func TestChainedComparisonNestsLeftAssociative(t *testing.T) {
	prog, err := Parse("def f():\n    let x = a < b > c\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	fn := prog.Items[0].(*ast.Function)
	let := fn.Body.Statements[0].(*ast.LetStatement)

	outer, ok := let.Value.(*ast.BinaryExpr)
	if !ok || outer.Op != ast.OpGreater {
		t.Fatalf("expected outer BinaryExpr with OpGreater, got %#v", let.Value)
	}
	inner, ok := outer.Left.(*ast.BinaryExpr)
	if !ok || inner.Op != ast.OpLess {
		t.Fatalf("expected a<b as the outer expression's left operand, got %#v", outer.Left)
	}
	if _, ok := inner.Left.(*ast.Identifier); !ok {
		t.Fatalf("expected a as innermost left identifier, got %#v", inner.Left)
	}
	if _, ok := outer.Right.(*ast.Identifier); !ok {
		t.Fatalf("expected c as outer right identifier, got %#v", outer.Right)
	}
}

func TestIfElifElseDesugarsToNestedIf(t *testing.T) {
	src := "def f():\n    if a:\n        let x = 1\n    elif b:\n        let y = 2\n    else:\n        let z = 3\n"
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	fn := prog.Items[0].(*ast.Function)
	outer := fn.Body.Statements[0].(*ast.IfStatement)

	if outer.Else == nil {
		t.Fatal("expected outer if to carry an else branch for the elif")
	}
	if len(outer.Else.Statements) != 1 {
		t.Fatalf("expected the elif to desugar into a single nested statement, got %d", len(outer.Else.Statements))
	}
	nested, ok := outer.Else.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected the else branch to contain a nested IfStatement for elif, got %#v", outer.Else.Statements[0])
	}
	if nested.Else == nil || len(nested.Else.Statements) != 1 {
		t.Fatalf("expected the nested if to carry the final else branch, got %#v", nested.Else)
	}
	if _, ok := nested.Else.Statements[0].(*ast.LetStatement); !ok {
		t.Fatalf("expected the final else to hold the original else body, got %#v", nested.Else.Statements[0])
	}
}
