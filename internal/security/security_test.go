package security

import (
	"testing"

	"pyra-compiler/internal/ir"
	"pyra-compiler/internal/parser"
	"pyra-compiler/internal/storage"
)

func lowerModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	layout := storage.BuildLayout(prog)
	return ir.LowerProgram(prog, layout)
}

func countCode(ops []ir.Op, code ir.OpCode) int {
	n := 0
	for _, op := range ops {
		if op.Code == code {
			n++
		}
	}
	return n
}

func TestHardenAddInsertsRevertPath(t *testing.T) {
	mod := lowerModule(t, "def f() -> uint256:\n    return 1 + 2\n")
	Harden(mod)
	fn := mod.Functions[0]
	if countCode(fn.Ops, ir.OpRevert) == 0 {
		t.Fatalf("expected a Revert in hardened Add sequence, got %v", fn.Ops)
	}
	if countCode(fn.Ops, ir.OpAdd) == 0 {
		t.Fatalf("expected the original Add to still run on the success path, got %v", fn.Ops)
	}
}

func TestHardenPreservesNetStackDepth(t *testing.T) {
	// Every checked op must still consume exactly two values and leave
	// exactly one, or later ops would read from the wrong stack slot.
	// The body's summed stack effect must be the same before and after
	// hardening, and the original Sub must be kept exactly once.
	mod := lowerModule(t, "def f() -> uint256:\n    return 3 - 1\n")
	before := stackDelta(mod.Functions[0].Ops)
	Harden(mod)
	fn := mod.Functions[0]
	if countCode(fn.Ops, ir.OpSub) != 1 {
		t.Fatalf("expected exactly one Sub op preserved, got %v", fn.Ops)
	}
	if after := stackDelta(fn.Ops); after != before {
		t.Fatalf("expected net stack effect %d after hardening, got %d", before, after)
	}
}

// stackDelta sums the stack effect of every op in order. For a body whose
// only branch is a revert path (whose pushes its own Revert consumes),
// the sum is the net stack effect of the path that completes.
func stackDelta(ops []ir.Op) int {
	d := 0
	for _, op := range ops {
		switch op.Code {
		case ir.OpPush, ir.OpDup, ir.OpCaller, ir.OpCallValue, ir.OpAddress, ir.OpTimestamp, ir.OpNumber, ir.OpCallDataSize:
			d++
		case ir.OpPop, ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpExp, ir.OpLt, ir.OpGt, ir.OpEq,
			ir.OpAnd, ir.OpOr, ir.OpShr, ir.OpByte, ir.OpKeccak256, ir.OpJumpI:
			d--
		case ir.OpMStore, ir.OpSStore, ir.OpReturn, ir.OpRevert:
			d -= 2
		case ir.OpCallDataCopy, ir.OpCodeCopy:
			d -= 3
		case ir.OpLog:
			d -= 2 + op.N
		}
	}
	return d
}

func TestHardenSharesLabelCounterWithLowering(t *testing.T) {
	mod := lowerModule(t, "def f() -> uint256:\n    if true:\n        return 1 + 2\n    return 0\n")
	before := mod.NextLabel
	Harden(mod)
	if mod.NextLabel <= before {
		t.Fatalf("expected Harden to advance the shared label counter, before=%d after=%d", before, mod.NextLabel)
	}
	seen := map[string]int{}
	for _, op := range mod.Functions[0].Ops {
		if op.Code == ir.OpJumpDest {
			seen[op.Label]++
		}
	}
	for label, n := range seen {
		if n > 1 {
			t.Fatalf("label %q defined %d times, labels must be unique", label, n)
		}
	}
}

func TestReentrancyGuardWrapsEntryAndExit(t *testing.T) {
	mod := lowerModule(t, "def f():\n    let x = 1\n")
	AddReentrancyGuard(mod, 99)
	fn := mod.Functions[0]
	if fn.Ops[0].Code != ir.OpPush {
		t.Fatalf("expected guard prelude to start with a Push, got %v", fn.Ops[0].Code)
	}
	if countCode(fn.Ops, ir.OpSLoad) == 0 {
		t.Fatalf("expected an SLoad guard check, got %v", fn.Ops)
	}
	if countCode(fn.Ops, ir.OpSStore) < 2 {
		t.Fatalf("expected at least two SStore (lock + unlock), got %v", fn.Ops)
	}
}

func TestReentrancyGuardSkipsConstructor(t *testing.T) {
	mod := lowerModule(t, "def init():\n    let x = 1\n\ndef f():\n    let y = 2\n")
	before := len(mod.ConstructorOps)
	AddReentrancyGuard(mod, 99)
	if len(mod.ConstructorOps) != before {
		t.Fatalf("expected constructor ops untouched by the reentrancy guard")
	}
}
