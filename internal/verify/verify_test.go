package verify

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

func TestWellFormedModuleHasNoErrors(t *testing.T) {
	mod := lowerModule(t, "def f():\n    if true:\n        let x = 1\n    let y = 2\n")
	errs := Module(mod)
	if len(errs) != 0 {
		t.Fatalf("expected no verification errors, got %v", errs)
	}
}

func TestOrphanJumpIsDetected(t *testing.T) {
	mod := &ir.Module{Functions: []*ir.Function{{Name: "f", Ops: []ir.Op{ir.Jump("nowhere"), {Code: ir.OpStop}}}}}
	errs := Module(mod)
	if len(errs) != 1 || errs[0].Kind != OrphanJump {
		t.Fatalf("expected one OrphanJump error, got %v", errs)
	}
}

func TestDuplicateLabelIsDetected(t *testing.T) {
	mod := &ir.Module{Functions: []*ir.Function{{Name: "f", Ops: []ir.Op{
		ir.JumpDest("l"), ir.JumpDest("l"), {Code: ir.OpStop},
	}}}}
	errs := Module(mod)
	found := false
	for _, e := range errs {
		if e.Kind == DuplicateLabel {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DuplicateLabel error, got %v", errs)
	}
}

func TestLabelsAreFunctionScoped(t *testing.T) {
	mod := &ir.Module{Functions: []*ir.Function{
		{Name: "a", Ops: []ir.Op{ir.JumpDest("shared"), {Code: ir.OpStop}}},
		{Name: "b", Ops: []ir.Op{ir.JumpDest("shared"), {Code: ir.OpStop}}},
	}}
	errs := Module(mod)
	if len(errs) != 0 {
		t.Fatalf("expected the same label name in two functions to be fine, got %v", errs)
	}
}
