// Package gas statically estimates the execution cost of a lowered IR
// module using a fixed per-opcode cost table. It never executes
// anything; looping constructs and data-dependent branches are simply
// summed as written (a loop body once, every branch arm and revert path
// in full), so the estimate is an approximation, neither a lower nor an
// upper bound.
package gas

import (
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ir"
)

var log = logrus.WithField("stage", "gas")

// DispatchPerBranch is the estimated overhead of one selector-dispatch
// branch (DUP1 + PUSH4 + EQ + JUMPI), charged once per function.
const DispatchPerBranch = 22

// DeployBase is the flat overhead of deploying a contract, independent
// of its constructor body length.
const DeployBase = 32000

var opCost = map[ir.OpCode]uint64{
	ir.OpPush:         3,
	ir.OpPop:          2,
	ir.OpDup:          3,
	ir.OpSwap:         3,
	ir.OpAdd:          3,
	ir.OpSub:          3,
	ir.OpMul:          5,
	ir.OpDiv:          5,
	ir.OpMod:          5,
	ir.OpExp:          10,
	ir.OpLt:           3,
	ir.OpGt:           3,
	ir.OpEq:           3,
	ir.OpIsZero:       3,
	ir.OpAnd:          3,
	ir.OpOr:           3,
	ir.OpNot:          3,
	ir.OpSLoad:        2100,
	ir.OpSStore:       5000,
	ir.OpMLoad:        3,
	ir.OpMStore:       3,
	ir.OpCaller:       2,
	ir.OpCallValue:    2,
	ir.OpAddress:      2,
	ir.OpTimestamp:    2,
	ir.OpNumber:       2,
	ir.OpKeccak256:    30,
	ir.OpCallDataLoad: 3,
	ir.OpCallDataSize: 2,
	ir.OpCallDataCopy: 3,
	ir.OpCodeCopy:     3,
	ir.OpShr:          3,
	ir.OpByte:         3,
	ir.OpLog:          375,
	ir.OpJump:         8,
	ir.OpJumpI:        10,
	ir.OpJumpDest:     1,
	ir.OpReturn:       0,
	ir.OpRevert:       0,
	ir.OpStop:         0,
}

// FunctionGas is the estimated cost breakdown for one function.
type FunctionGas struct {
	Name  string `json:"name" yaml:"name"`
	Ops   uint64 `json:"ops" yaml:"ops"`
	Total uint64 `json:"total" yaml:"total"`
}

// Report is the full-program estimate, suitable for direct YAML
// serialization by the CLI's `gas` subcommand.
type Report struct {
	Functions      []FunctionGas `json:"functions" yaml:"functions"`
	ConstructorGas uint64        `json:"constructorGas" yaml:"constructorGas"`
}

func opsSum(ops []ir.Op) uint64 {
	var total uint64
	for _, op := range ops {
		total += opCost[op.Code]
	}
	return total
}

// FromModule computes a Report for mod. Each function's Total adds the
// dispatcher overhead for the whole selector table (DispatchPerBranch
// times the function count, since every call pays for walking past
// every branch ahead of its own in the worst case); the constructor's
// cost adds DeployBase instead.
func FromModule(mod *ir.Module) *Report {
	r := &Report{}
	dispatchOverhead := DispatchPerBranch * uint64(len(mod.Functions))
	for _, fn := range mod.Functions {
		ops := opsSum(fn.Ops)
		r.Functions = append(r.Functions, FunctionGas{
			Name:  fn.Name,
			Ops:   ops,
			Total: ops + dispatchOverhead,
		})
	}
	r.ConstructorGas = opsSum(mod.ConstructorOps) + DeployBase

	log.Debugf("estimated gas for %d functions, constructor=%d", len(r.Functions), r.ConstructorGas)
	return r
}
