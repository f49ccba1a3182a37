// Package security rewrites a lowered IR module with two optional
// hardening passes: checked arithmetic (Add/Sub/Mul overflow and
// underflow reverts) and a storage-backed reentrancy guard wrapped
// around every externally callable function.
package security

import (
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ir"
)

var log = logrus.WithField("stage", "security")

// Harden rewrites every Add/Sub/Mul in both the function bodies and the
// constructor into a checked sequence that reverts on overflow (Add,
// Mul) or underflow (Sub). It continues mod's own label counter so
// rewritten labels never collide with the lowering pass's.
func Harden(mod *ir.Module) {
	for _, fn := range mod.Functions {
		fn.Ops = hardenOps(fn.Ops, &mod.NextLabel)
	}
	mod.ConstructorOps = hardenOps(mod.ConstructorOps, &mod.NextLabel)
	log.Debug("hardened arithmetic in all functions and the constructor")
}

func hardenOps(ops []ir.Op, labelCount *int) []ir.Op {
	var out []ir.Op
	for _, op := range ops {
		switch op.Code {
		case ir.OpAdd:
			out = append(out, checkedAdd(labelCount)...)
		case ir.OpSub:
			out = append(out, checkedSub(labelCount)...)
		case ir.OpMul:
			out = append(out, checkedMul(labelCount)...)
		default:
			out = append(out, op)
		}
	}
	return out
}

func freshLabel(prefix string, labelCount *int) string {
	*labelCount++
	return suffixLabel(prefix, *labelCount)
}

func suffixLabel(prefix string, n int) string {
	const digits = "0123456789"
	if n == 0 {
		return prefix + "_0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return prefix + "_" + string(buf)
}

// checkedAdd replaces `a b ADD` (a, b already on the stack, b on top)
// with a sequence that reverts if the result is smaller than either
// input — the classic unsigned-overflow check — leaving the stack depth
// unchanged (two consumed, one produced) on the success path.
func checkedAdd(labelCount *int) []ir.Op {
	ok := freshLabel("add_ok", labelCount)
	return []ir.Op{
		ir.Dup(2), ir.Dup(2), ir.Op{Code: ir.OpAdd},
		ir.Dup(2), ir.Dup(2), ir.Op{Code: ir.OpLt},
		ir.Op{Code: ir.OpIsZero}, ir.JumpI(ok),
		ir.PushUint64(0), ir.PushUint64(0), ir.Op{Code: ir.OpRevert},
		ir.JumpDest(ok),
		ir.Swap(2), ir.Op{Code: ir.OpPop}, ir.Op{Code: ir.OpPop},
	}
}

// checkedSub reverts when the subtrahend exceeds the minuend (unsigned
// underflow), otherwise performs the ordinary subtraction.
func checkedSub(labelCount *int) []ir.Op {
	ok := freshLabel("sub_ok", labelCount)
	return []ir.Op{
		ir.Dup(2), ir.Dup(2), ir.Op{Code: ir.OpLt},
		ir.Op{Code: ir.OpIsZero}, ir.JumpI(ok),
		ir.PushUint64(0), ir.PushUint64(0), ir.Op{Code: ir.OpRevert},
		ir.JumpDest(ok),
		ir.Op{Code: ir.OpSub},
	}
}

// checkedMul reverts on overflow by verifying the product divides back
// down to the original operand (skipped when the left operand is zero;
// a zero right operand passes the check as is).
func checkedMul(labelCount *int) []ir.Op {
	zeroCase := freshLabel("mul_zero", labelCount)
	ok := freshLabel("mul_ok", labelCount)
	return []ir.Op{
		ir.Dup(2), ir.Op{Code: ir.OpIsZero}, ir.JumpI(zeroCase),
		ir.Dup(2), ir.Dup(2), ir.Op{Code: ir.OpMul},
		ir.Dup(3), ir.Dup(2), ir.Op{Code: ir.OpDiv},
		ir.Dup(3), ir.Op{Code: ir.OpEq},
		ir.JumpI(ok),
		ir.PushUint64(0), ir.PushUint64(0), ir.Op{Code: ir.OpRevert},
		ir.JumpDest(zeroCase),
		ir.PushUint64(0),
		ir.JumpDest(ok),
		ir.Swap(2), ir.Op{Code: ir.OpPop}, ir.Op{Code: ir.OpPop},
	}
}

// AddReentrancyGuard wraps every function (never the constructor, which
// cannot be reentered) with an SLOAD/IsZero/JumpI entry check against
// lockSlot, reverting if the lock is already held, setting it on entry,
// and clearing it immediately before every Return/Stop in the body.
func AddReentrancyGuard(mod *ir.Module, lockSlot uint64) {
	for _, fn := range mod.Functions {
		fn.Ops = guardFunction(fn.Ops, lockSlot, &mod.NextLabel)
	}
	log.Debug("installed reentrancy guard on all functions")
}

func guardFunction(ops []ir.Op, lockSlot uint64, labelCount *int) []ir.Op {
	guardOK := freshLabel("reentrancy_ok", labelCount)
	prelude := []ir.Op{
		ir.PushUint64(lockSlot), ir.Op{Code: ir.OpSLoad},
		ir.Op{Code: ir.OpIsZero},
		ir.JumpI(guardOK),
		ir.PushUint64(0), ir.PushUint64(0), ir.Op{Code: ir.OpRevert},
		ir.JumpDest(guardOK),
		ir.PushUint64(1), ir.PushUint64(lockSlot), ir.Op{Code: ir.OpSStore},
	}

	var out []ir.Op
	out = append(out, prelude...)
	for _, op := range ops {
		if op.Code == ir.OpReturn || op.Code == ir.OpStop {
			out = append(out, ir.PushUint64(0), ir.PushUint64(lockSlot), ir.Op{Code: ir.OpSStore})
		}
		out = append(out, op)
	}
	return out
}
