package ir

import (
	"encoding/hex"
	"testing"

	"pyra-compiler/internal/parser"
	"pyra-compiler/internal/storage"
)

func lower(t *testing.T, src string) *Module {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	layout := storage.BuildLayout(prog)
	return LowerProgram(prog, layout)
}

func TestReturnConstant(t *testing.T) {
	mod := lower(t, "def f() -> uint256:\n    return 42\n")
	fn := mod.Functions[0]
	if fn.Ops[0].Code != OpPush {
		t.Fatalf("expected first op to be Push, got %v", fn.Ops[0].Code)
	}
	last := fn.Ops[len(fn.Ops)-1]
	if last.Code != OpReturn {
		t.Fatalf("expected function to end in Return, got %v", last.Code)
	}
}

func TestBinaryAddLowersOperandsThenAdd(t *testing.T) {
	mod := lower(t, "def f() -> uint256:\n    return 1 + 2\n")
	fn := mod.Functions[0]
	found := false
	for _, op := range fn.Ops {
		if op.Code == OpAdd {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an Add op, got %v", fn.Ops)
	}
}

func TestParamAccessUsesCallDataLoad(t *testing.T) {
	mod := lower(t, "def f(x: uint256) -> uint256:\n    return x\n")
	fn := mod.Functions[0]
	found := false
	for _, op := range fn.Ops {
		if op.Code == OpCallDataLoad {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a CallDataLoad for parameter access, got %v", fn.Ops)
	}
}

func TestRequireLowersToConditionalRevert(t *testing.T) {
	mod := lower(t, "def f():\n    require 1\n")
	fn := mod.Functions[0]
	sawJumpI, sawRevert := false, false
	for _, op := range fn.Ops {
		if op.Code == OpJumpI {
			sawJumpI = true
		}
		if op.Code == OpRevert {
			sawRevert = true
		}
	}
	if !sawJumpI || !sawRevert {
		t.Fatalf("expected JumpI and Revert in require lowering, got %v", fn.Ops)
	}
}

func TestMappingWriteHashesKeyWithCaller(t *testing.T) {
	mod := lower(t, "def f():\n    balances[msg.sender] = 1\n")
	fn := mod.Functions[0]
	sawCaller, sawKeccak, sawSStore := false, false, false
	for _, op := range fn.Ops {
		switch op.Code {
		case OpCaller:
			sawCaller = true
		case OpKeccak256:
			sawKeccak = true
		case OpSStore:
			sawSStore = true
		}
	}
	if !sawCaller || !sawKeccak || !sawSStore {
		t.Fatalf("expected Caller, Keccak256, SStore in mapping write, got %v", fn.Ops)
	}
}

func TestConstructorStoresConstant(t *testing.T) {
	mod := lower(t, "const owner: address = 0x1\n\ndef f():\n    let x = 1\n")
	sawSStore := false
	for _, op := range mod.ConstructorOps {
		if op.Code == OpSStore {
			sawSStore = true
		}
	}
	if !sawSStore {
		t.Fatalf("expected constructor to SStore the constant, got %v", mod.ConstructorOps)
	}
}

func TestTransferSelectorMatchesKnownValue(t *testing.T) {
	mod := lower(t, "def transfer(to: address, amount: uint256):\n    let x = 1\n")
	fn := mod.Functions[0]
	got := hex.EncodeToString(fn.Selector[:])
	if got != "a9059cbb" {
		t.Fatalf("expected selector a9059cbb for transfer(address,uint256), got %s", got)
	}
}

func TestIfBranchProducesMatchingJumpAndJumpDest(t *testing.T) {
	mod := lower(t, "def f():\n    if true:\n        let x = 1\n    else:\n        let y = 2\n")
	fn := mod.Functions[0]
	jumps, dests := 0, 0
	for _, op := range fn.Ops {
		if op.Code == OpJump || op.Code == OpJumpI {
			jumps++
		}
		if op.Code == OpJumpDest {
			dests++
		}
	}
	if jumps == 0 || dests == 0 {
		t.Fatalf("expected at least one jump and one jumpdest, got jumps=%d dests=%d", jumps, dests)
	}
}
