package types

import (
	"testing"

	"pyra-compiler/internal/parser"
	"pyra-compiler/internal/storage"
)

func diagsOf(t *testing.T, src string) []Diagnostic {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	layout := storage.BuildLayout(prog)
	return Check(prog, layout)
}

func TestWellTypedProgramHasNoDiagnostics(t *testing.T) {
	diags := diagsOf(t, "def f(x: uint256) -> uint256:\n    return x + 1\n")
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestUndefinedNameIsReported(t *testing.T) {
	diags := diagsOf(t, "def f() -> uint256:\n    return y\n")
	if len(diags) == 0 || diags[0].Kind != Undefined {
		t.Fatalf("expected Undefined diagnostic, got %v", diags)
	}
}

func TestRequireNonBoolIsReported(t *testing.T) {
	diags := diagsOf(t, "def f():\n    require 1\n")
	found := false
	for _, d := range diags {
		if d.Kind == RequireBool {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected RequireBool diagnostic, got %v", diags)
	}
}

func TestUndeclaredEventIsAdvisoryOnly(t *testing.T) {
	diags := diagsOf(t, "def f():\n    emit Transfer(1)\n")
	if len(diags) == 0 || diags[0].Kind != Undefined {
		t.Fatalf("expected Undefined diagnostic for emit, got %v", diags)
	}
}

func TestIndexingNonMappingIsReported(t *testing.T) {
	diags := diagsOf(t, "def f():\n    let x = 1\n    let y = x[0]\n")
	found := false
	for _, d := range diags {
		if d.Kind == IndexNonMapping {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected IndexNonMapping diagnostic, got %v", diags)
	}
}

func TestMsgSenderInfersAsAddress(t *testing.T) {
	diags := diagsOf(t, "def f() -> address:\n    return msg.sender\n")
	if len(diags) != 0 {
		t.Fatalf("expected msg.sender to type-check as address with no diagnostics, got %v", diags)
	}
}

func TestMsgValueInfersAsUint256(t *testing.T) {
	diags := diagsOf(t, "def f() -> uint256:\n    return msg.value\n")
	if len(diags) != 0 {
		t.Fatalf("expected msg.value to type-check as uint256 with no diagnostics, got %v", diags)
	}
}

func TestDiagnosticsDoNotAbortChecking(t *testing.T) {
	// Two independent errors in the same program: both must be reported,
	// proving the checker never stops at the first one (advisory only).
	diags := diagsOf(t, "def f() -> uint256:\n    return y\n\ndef g():\n    require 1\n")
	if len(diags) < 2 {
		t.Fatalf("expected at least 2 diagnostics across both functions, got %v", diags)
	}
}
