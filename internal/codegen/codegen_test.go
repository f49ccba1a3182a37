package codegen

import (
	"encoding/hex"
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

func TestPushZeroEncodesAsPush1Zero(t *testing.T) {
	e := NewEmitter()
	e.Push(nil)
	got := e.Finish()
	want := []byte{0x60, 0x00}
	if hex.EncodeToString(got) != hex.EncodeToString(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestPushNonZeroEncodesOpcodePlusLength(t *testing.T) {
	e := NewEmitter()
	e.Push([]byte{0x2a})
	got := e.Finish()
	// PUSH1 42
	want := []byte{0x60, 0x2a}
	if hex.EncodeToString(got) != hex.EncodeToString(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestDupSwapLogEncoding(t *testing.T) {
	e := NewEmitter()
	e.Dup(1)
	e.Swap(1)
	e.Log(0)
	got := e.Finish()
	want := []byte{0x80, 0x90, 0xa0}
	if hex.EncodeToString(got) != hex.EncodeToString(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestLabelRefResolvesToJumpDestOffset(t *testing.T) {
	e := NewEmitter()
	e.Jump("target")
	e.JumpDest("target")
	got := e.Finish()
	// PUSH2 0x0004, JUMP, JUMPDEST
	if got[0] != 0x61 || got[3] != opJump || got[4] != opJumpDest {
		t.Fatalf("unexpected layout: %x", got)
	}
	offset := int(got[1])<<8 | int(got[2])
	if offset != 4 {
		t.Fatalf("expected patched offset 4, got %d", offset)
	}
}

func TestRuntimeBytecodeHasSelectorCheck(t *testing.T) {
	mod := lowerModule(t, "def f() -> uint256:\n    return 42\n")
	code := ProgramToRuntimeBytecode(mod)
	if len(code) == 0 {
		t.Fatal("expected non-empty runtime bytecode")
	}
	foundSelectorCheck := false
	for i := 0; i+1 < len(code); i++ {
		if code[i] == 0x80 && code[i+1] == 0x63 {
			foundSelectorCheck = true
		}
	}
	if !foundSelectorCheck {
		t.Fatalf("expected a DUP1/PUSH4 selector check, got %x", code)
	}
}

func TestDeployBytecodeEmbedsRuntimeBytecode(t *testing.T) {
	mod := lowerModule(t, "const owner: address = 0x1\n\ndef f() -> uint256:\n    return 1\n")
	runtime := ProgramToRuntimeBytecode(mod)
	deploy := ProgramToDeployBytecode(mod)
	if len(deploy) <= len(runtime) {
		t.Fatalf("expected deploy bytecode to be larger than runtime bytecode")
	}
	suffix := deploy[len(deploy)-len(runtime):]
	if hex.EncodeToString(suffix) != hex.EncodeToString(runtime) {
		t.Fatalf("expected deploy bytecode to end with the exact runtime bytecode")
	}
}

func TestMappingWriteAssemblesCallerKeccakSStore(t *testing.T) {
	mod := lowerModule(t, "def f():\n    balances[msg.sender] = 1\n")
	code := ProgramToRuntimeBytecode(mod)
	sawCaller, sawKeccak, sawSStore := false, false, false
	for _, b := range code {
		switch b {
		case 0x33:
			sawCaller = true
		case 0x20:
			sawKeccak = true
		case 0x55:
			sawSStore = true
		}
	}
	if !sawCaller || !sawKeccak || !sawSStore {
		t.Fatalf("expected CALLER, KECCAK256 and SSTORE bytes in %x", code)
	}
}
