package main

import (
	"strings"
	"testing"
)

func TestCompileProducesBytecodeAndABI(t *testing.T) {
	src := "def f() -> uint256:\n    return 42\n"
	res, err := compile(src, buildOptions{Harden: true})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if res.DeployHex == "" {
		t.Fatal("expected non-empty deploy bytecode")
	}
	if !strings.HasSuffix(res.DeployHex, res.RuntimeHex) {
		t.Fatal("expected deploy bytecode to embed runtime bytecode")
	}
	if !strings.Contains(res.ABI, `"type":"function"`) {
		t.Fatalf("expected a function ABI entry, got %s", res.ABI)
	}
	if len(res.Gas.Functions) != 1 {
		t.Fatalf("expected one function gas entry, got %d", len(res.Gas.Functions))
	}
}

func TestCompileGuardEnablesReentrancyWrap(t *testing.T) {
	src := "def f():\n    total = 1\n"
	withoutGuard, err := compile(src, buildOptions{Harden: true})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	withGuard, err := compile(src, buildOptions{Harden: true, ReentrancyGuard: true, LockSlot: 0xff})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if len(withGuard.RuntimeHex) <= len(withoutGuard.RuntimeHex) {
		t.Fatal("expected reentrancy-guarded runtime bytecode to be longer")
	}
}

func TestCompileRejectsParseError(t *testing.T) {
	_, err := compile("def f(:\n    return 1\n", buildOptions{Harden: true})
	if err == nil {
		t.Fatal("expected a parse error")
	}
}
