package storage

import (
	"testing"

	"pyra-compiler/internal/parser"
)

func layoutOf(t *testing.T, src string) *Layout {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return BuildLayout(prog)
}

func TestConstGetsValueSlotFirst(t *testing.T) {
	l := layoutOf(t, "const owner: address = 0x0\n\ndef f():\n    let x = 1\n")
	slot, ok := l.Lookup("owner")
	if !ok {
		t.Fatal("expected owner to be allocated")
	}
	if slot.Kind != Value || slot.Slot != 0 {
		t.Fatalf("expected owner at slot 0 Value, got %+v", slot)
	}
}

func TestStructFieldGetsValueSlot(t *testing.T) {
	l := layoutOf(t, "struct S:\n    total: uint256\n\ndef f():\n    let x = 1\n")
	slot, ok := l.Lookup("total")
	if !ok || slot.Kind != Value {
		t.Fatalf("expected total as Value slot, got %+v ok=%v", slot, ok)
	}
}

func TestIndexBaseIsMapping(t *testing.T) {
	l := layoutOf(t, "def f():\n    balances[msg.sender] = 1\n")
	slot, ok := l.Lookup("balances")
	if !ok || slot.Kind != Mapping {
		t.Fatalf("expected balances as Mapping, got %+v ok=%v", slot, ok)
	}
	if _, ok := l.Lookup("msg"); ok {
		t.Fatal("builtin msg must not receive a slot")
	}
}

func TestPlainAssignmentIsValue(t *testing.T) {
	l := layoutOf(t, "def f():\n    total = 1\n")
	slot, ok := l.Lookup("total")
	if !ok || slot.Kind != Value {
		t.Fatalf("expected total as Value, got %+v ok=%v", slot, ok)
	}
}

func TestFirstDiscoveryWins(t *testing.T) {
	l := layoutOf(t, "def f():\n    total = 1\n\ndef g():\n    let x = total[1]\n")
	slot, ok := l.Lookup("total")
	if !ok || slot.Kind != Value {
		t.Fatalf("expected first discovery (Value) to win, got %+v ok=%v", slot, ok)
	}
}

func TestMonotonicSlotOrder(t *testing.T) {
	l := layoutOf(t, "const a: uint256 = 1\nconst b: uint256 = 2\n\ndef f():\n    let x = 1\n")
	sa, _ := l.Lookup("a")
	sb, _ := l.Lookup("b")
	if sa.Slot != 0 || sb.Slot != 1 {
		t.Fatalf("expected a=0 b=1, got a=%d b=%d", sa.Slot, sb.Slot)
	}
}

func TestParameterReassignmentIsNotAllocated(t *testing.T) {
	l := layoutOf(t, "def f(a: uint256):\n    a = a + 1\n")
	if _, ok := l.Lookup("a"); ok {
		t.Fatal("parameter a must not receive a storage slot")
	}
}

func TestLetLocalReassignmentIsNotAllocated(t *testing.T) {
	l := layoutOf(t, "def f():\n    let x = 1\n    x = 2\n")
	if _, ok := l.Lookup("x"); ok {
		t.Fatal("let-local x must not receive a storage slot")
	}
}

func TestForLoopVarIsNotAllocatedAndDoesNotLeak(t *testing.T) {
	l := layoutOf(t, "def f():\n    for i in total:\n        i = i + 1\n    i = 9\n")
	if _, ok := l.Lookup("i"); !ok {
		t.Fatal("expected i used outside the loop body to be allocated as state")
	}
	if slot, _ := l.Lookup("i"); slot.Kind != Value {
		t.Fatalf("expected i outside the loop to be Value, got %+v", slot)
	}
}
