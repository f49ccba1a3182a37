package gas

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

func TestFunctionGasIncludesDispatchOverhead(t *testing.T) {
	mod := lowerModule(t, "def f() -> uint256:\n    return 42\n")
	r := FromModule(mod)
	fg := r.Functions[0]
	if fg.Total != fg.Ops+DispatchPerBranch {
		t.Fatalf("expected Total == Ops + %d, got ops=%d total=%d", DispatchPerBranch, fg.Ops, fg.Total)
	}
}

func TestDispatchOverheadScalesWithFunctionCount(t *testing.T) {
	mod := lowerModule(t, "def f() -> uint256:\n    return 1\n\ndef g() -> uint256:\n    return 2\n\ndef h() -> uint256:\n    return 3\n")
	r := FromModule(mod)
	if len(r.Functions) != 3 {
		t.Fatalf("expected 3 functions, got %d", len(r.Functions))
	}
	want := DispatchPerBranch * 3
	for _, fg := range r.Functions {
		if fg.Total != fg.Ops+want {
			t.Fatalf("expected Total == Ops + %d for a 3-function module, got ops=%d total=%d", want, fg.Ops, fg.Total)
		}
	}
}

func TestConstructorGasIncludesDeployBase(t *testing.T) {
	mod := lowerModule(t, "const owner: address = 0x1\n\ndef f() -> uint256:\n    return 1\n")
	r := FromModule(mod)
	if r.ConstructorGas < DeployBase {
		t.Fatalf("expected constructor gas to include the deploy base, got %d", r.ConstructorGas)
	}
}

func TestSStoreIsMoreExpensiveThanSLoad(t *testing.T) {
	mod := lowerModule(t, "def f():\n    total = 1\n\ndef g() -> uint256:\n    return total\n")
	r := FromModule(mod)
	var write, read uint64
	for _, fg := range r.Functions {
		switch fg.Name {
		case "f":
			write = fg.Ops
		case "g":
			read = fg.Ops
		}
	}
	if write <= read {
		t.Fatalf("expected SSTORE-heavy function to cost more than SLOAD-heavy one, write=%d read=%d", write, read)
	}
}
