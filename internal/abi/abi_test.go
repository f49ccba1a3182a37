package abi

import (
	"strings"
	"testing"

	"pyra-compiler/internal/parser"
)

func jsonOf(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := ProgramToJSON(prog)
	if err != nil {
		t.Fatalf("abi error: %v", err)
	}
	return out
}

func TestViewFunctionHasViewMutability(t *testing.T) {
	out := jsonOf(t, "def f() -> uint256:\n    return 1\n")
	if !strings.Contains(out, `"stateMutability":"view"`) {
		t.Fatalf("expected view mutability, got %s", out)
	}
}

func TestWritingFunctionIsNonpayable(t *testing.T) {
	out := jsonOf(t, "def f():\n    total = 1\n")
	if !strings.Contains(out, `"stateMutability":"nonpayable"`) {
		t.Fatalf("expected nonpayable mutability, got %s", out)
	}
}

func TestNestedWriteInsideIfIsNonpayable(t *testing.T) {
	out := jsonOf(t, "def f():\n    if true:\n        total = 1\n")
	if !strings.Contains(out, `"stateMutability":"nonpayable"`) {
		t.Fatalf("expected nonpayable mutability for nested write, got %s", out)
	}
}

func TestConstructorEntryOmitsName(t *testing.T) {
	out := jsonOf(t, "def init(owner: address):\n    let x = 1\n")
	if !strings.Contains(out, `"type":"constructor"`) {
		t.Fatalf("expected a constructor entry, got %s", out)
	}
	if strings.Contains(out, `"type":"constructor","name"`) {
		t.Fatalf("constructor entry must not carry a name key, got %s", out)
	}
}

func TestConstructorMutabilityIsAlwaysNonpayable(t *testing.T) {
	out := jsonOf(t, "def init():\n    let x = 1\n")
	if !strings.Contains(out, `"type":"constructor","stateMutability":"nonpayable"`) {
		t.Fatalf("expected a no-write constructor to still be nonpayable, got %s", out)
	}
}

func TestEventEntryMarksInputsNotIndexed(t *testing.T) {
	prog, err := parser.Parse("event Transfer(to: address, amount: uint256)\n\ndef f():\n    let x = 1\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := ProgramToJSON(prog)
	if err != nil {
		t.Fatalf("abi error: %v", err)
	}
	if !strings.Contains(out, `"type":"event"`) || !strings.Contains(out, `"indexed":false`) {
		t.Fatalf("expected an event entry with indexed:false, got %s", out)
	}
}

func TestCustomInputTypeIsUnsupported(t *testing.T) {
	prog, err := parser.Parse("struct S:\n    v: uint256\n\ndef f(x: S):\n    let y = 1\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = ProgramToJSON(prog)
	if err == nil {
		t.Fatal("expected UnsupportedTypeError for a custom struct input")
	}
}
