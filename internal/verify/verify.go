// Package verify performs a lightweight, advisory consistency check over
// a lowered (and possibly hardened) IR module: every jump target must
// resolve to exactly one label definition. It does not analyze
// reachability, and it never blocks assembly — internal/codegen still
// emits code for a module with verification errors, zero-patching any
// reference it cannot resolve.
package verify

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ir"
)

var log = logrus.WithField("stage", "verify")

// ErrorKind classifies a verification finding.
type ErrorKind int

const (
	OrphanJump ErrorKind = iota
	OrphanJumpI
	DuplicateLabel
)

func (k ErrorKind) String() string {
	switch k {
	case OrphanJump:
		return "orphan-jump"
	case OrphanJumpI:
		return "orphan-jumpi"
	case DuplicateLabel:
		return "duplicate-label"
	default:
		return "?"
	}
}

// Error is one finding, naming the function it occurred in ("init" for
// the constructor) and the offending label.
type Error struct {
	Kind     ErrorKind
	Function string
	Label    string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s references label %q", e.Function, e.Kind, e.Label)
}

// Module checks every function body and the constructor independently: a
// label name defined once in each of two functions is not reported, and a
// jump to a label defined only in another function is reported as an
// orphan. internal/codegen resolves all runtime labels through one shared
// map, so such a repeated name is not distinguished there.
func Module(mod *ir.Module) []Error {
	var errs []Error
	for _, fn := range mod.Functions {
		errs = append(errs, checkOps(fn.Name, fn.Ops)...)
	}
	errs = append(errs, checkOps("init", mod.ConstructorOps)...)
	log.Debugf("verifier found %d issues", len(errs))
	return errs
}

func checkOps(owner string, ops []ir.Op) []Error {
	defined := map[string]int{}
	for _, op := range ops {
		if op.Code == ir.OpJumpDest {
			defined[op.Label]++
		}
	}

	var errs []Error
	for label, n := range defined {
		if n > 1 {
			errs = append(errs, Error{Kind: DuplicateLabel, Function: owner, Label: label})
		}
	}
	for _, op := range ops {
		switch op.Code {
		case ir.OpJump:
			if defined[op.Label] == 0 {
				errs = append(errs, Error{Kind: OrphanJump, Function: owner, Label: op.Label})
			}
		case ir.OpJumpI:
			if defined[op.Label] == 0 {
				errs = append(errs, Error{Kind: OrphanJumpI, Function: owner, Label: op.Label})
			}
		}
	}
	return errs
}
