// Package ir lowers a type-checked Pyra program into a linear,
// EVM-aligned intermediate representation: one flat op list per function
// plus a separate constructor op list, with jumps resolved symbolically
// by label rather than by byte offset. internal/codegen resolves labels
// to offsets in a single later pass.
package ir

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
	"pyra-compiler/internal/storage"
)

var log = logrus.WithField("stage", "ir")

// OpCode is the closed tag of an Op, one per supported EVM instruction
// plus the three symbolic control-flow markers (Jump/JumpI/JumpDest).
type OpCode int

const (
	OpPush OpCode = iota
	OpPop
	OpDup
	OpSwap
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpLt
	OpGt
	OpEq
	OpIsZero
	OpAnd
	OpOr
	OpNot
	OpSLoad
	OpSStore
	OpMLoad
	OpMStore
	OpCaller
	OpCallValue
	OpAddress
	OpTimestamp
	OpNumber
	OpKeccak256
	OpCallDataLoad
	OpCallDataSize
	OpCallDataCopy
	OpCodeCopy
	OpShr
	OpByte
	OpLog
	OpJump
	OpJumpI
	OpJumpDest
	OpReturn
	OpRevert
	OpStop
)

// Op is one IR instruction. Only the fields relevant to Code are set:
// Data for Push, N for Dup/Swap/Log, Label for Jump/JumpI/JumpDest.
type Op struct {
	Code  OpCode
	Data  []byte
	N     int
	Label string
}

func Push(data []byte) Op        { return Op{Code: OpPush, Data: data} }
func PushUint64(v uint64) Op      { return Op{Code: OpPush, Data: uint256.NewInt(v).Bytes()} }
func Dup(n int) Op                { return Op{Code: OpDup, N: n} }
func Swap(n int) Op               { return Op{Code: OpSwap, N: n} }
func LogN(n int) Op               { return Op{Code: OpLog, N: n} }
func Jump(label string) Op        { return Op{Code: OpJump, Label: label} }
func JumpI(label string) Op       { return Op{Code: OpJumpI, Label: label} }
func JumpDest(label string) Op    { return Op{Code: OpJumpDest, Label: label} }
func simple(c OpCode) Op          { return Op{Code: c} }

// Function is a lowered function, selector and body.
type Function struct {
	Name       string
	Selector   [4]byte
	Params     []ast.Parameter
	ReturnType *ast.Type
	Ops        []Op
}

// Module is the whole-program lowering result: one dispatchable Function
// per non-constructor def, plus a separate op list for the function
// literally named "init" (the constructor, which never enters the
// runtime dispatch table).
type Module struct {
	Functions      []*Function
	ConstructorOps []Op

	// NextLabel is the lowering pass's label counter, carried forward so
	// later passes (internal/security) that synthesize their own labels
	// never collide with one already used here.
	NextLabel int
}

// lowerCtx carries per-function lowering state.
type lowerCtx struct {
	layout     *storage.Layout
	paramOff   map[string]int // calldata offset, 4+32*i
	locals     map[string]int // memory offset, from 0x80
	nextMem    int
	labelCount *int
}

func newCtx(layout *storage.Layout, labelCount *int) *lowerCtx {
	return &lowerCtx{
		layout:     layout,
		paramOff:   make(map[string]int),
		locals:     make(map[string]int),
		nextMem:    0x80,
		labelCount: labelCount,
	}
}

func (c *lowerCtx) freshLabel(prefix string) string {
	*c.labelCount++
	return fmt.Sprintf("%s_%d", prefix, *c.labelCount)
}

func (c *lowerCtx) allocLocal(name string) int {
	if off, ok := c.locals[name]; ok {
		return off
	}
	off := c.nextMem
	c.locals[name] = off
	c.nextMem += 32
	return off
}

// LowerProgram lowers a whole program against its already-computed
// storage layout.
func LowerProgram(prog *ast.Program, layout *storage.Layout) *Module {
	mod := &Module{}
	labelCount := 0

	for _, item := range prog.Items {
		c, ok := item.(*ast.ConstDecl)
		if !ok {
			continue
		}
		ctx := newCtx(layout, &labelCount)
		mod.ConstructorOps = append(mod.ConstructorOps, lowerExpr(c.Value, ctx)...)
		slot, _ := layout.Lookup(c.Name)
		mod.ConstructorOps = append(mod.ConstructorOps, PushUint64(slot.Slot), simple(OpSStore))
	}

	for _, item := range prog.Items {
		fn, ok := item.(*ast.Function)
		if !ok {
			continue
		}
		if fn.Name == "init" {
			ctx := newCtx(layout, &labelCount)
			for i, p := range fn.Params {
				ctx.paramOff[p.Name] = 4 + 32*i
			}
			mod.ConstructorOps = append(mod.ConstructorOps, lowerBlock(fn.Body, ctx)...)
			continue
		}
		mod.Functions = append(mod.Functions, lowerFunction(fn, layout, &labelCount))
	}

	mod.NextLabel = labelCount
	log.Debugf("lowered %d functions, %d constructor ops", len(mod.Functions), len(mod.ConstructorOps))
	return mod
}

func lowerFunction(fn *ast.Function, layout *storage.Layout, labelCount *int) *Function {
	ctx := newCtx(layout, labelCount)
	for i, p := range fn.Params {
		ctx.paramOff[p.Name] = 4 + 32*i
	}
	body := lowerBlock(fn.Body, ctx)
	if n := len(body); n == 0 || (body[n-1].Code != OpReturn && body[n-1].Code != OpStop && body[n-1].Code != OpRevert) {
		body = append(body, simple(OpStop))
	}
	return &Function{
		Name:       fn.Name,
		Selector:   ComputeSelector(fn),
		Params:     fn.Params,
		ReturnType: fn.ReturnType,
		Ops:        body,
	}
}

// ComputeSelector hashes the canonical `name(type,type,...)` signature
// with Keccak256 and returns its first four bytes, the EVM function
// selector. Composite argument types (Custom/Vec/Map/Generic) render as
// "bytes", the same rendering internal/abi uses for outputs and events
// (internal/abi rejects such types as function inputs).
func ComputeSelector(fn *ast.Function) [4]byte {
	sig := fn.Name + "("
	for i, p := range fn.Params {
		if i > 0 {
			sig += ","
		}
		sig += abiTypeName(p.Type)
	}
	sig += ")"
	hash := crypto.Keccak256([]byte(sig))
	var sel [4]byte
	copy(sel[:], hash[:4])
	return sel
}

func abiTypeName(t ast.Type) string {
	switch t.Kind {
	case ast.KindUint8:
		return "uint8"
	case ast.KindUint256:
		return "uint256"
	case ast.KindInt256:
		return "int256"
	case ast.KindBool:
		return "bool"
	case ast.KindAddress:
		return "address"
	case ast.KindBytes:
		return "bytes"
	case ast.KindString:
		return "string"
	default:
		return "bytes"
	}
}

func lowerBlock(b ast.Block, ctx *lowerCtx) []Op {
	var ops []Op
	for _, s := range b.Statements {
		ops = append(ops, lowerStatement(s, ctx)...)
	}
	return ops
}

func lowerStatement(s ast.Statement, ctx *lowerCtx) []Op {
	switch n := s.(type) {
	case *ast.LetStatement:
		off := ctx.allocLocal(n.Name)
		if n.Value == nil {
			return []Op{Push(nil), PushUint64(uint64(off)), simple(OpMStore)}
		}
		ops := lowerExpr(n.Value, ctx)
		return append(ops, PushUint64(uint64(off)), simple(OpMStore))
	case *ast.AssignStatement:
		return lowerAssign(n, ctx)
	case *ast.ExpressionStatement:
		ops := lowerExpr(n.Expr, ctx)
		return append(ops, simple(OpPop))
	case *ast.IfStatement:
		return lowerIf(n, ctx)
	case *ast.ForStatement:
		// Iteration over dynamic collections is outside the core's
		// supported storage model; lowering conservatively stops rather
		// than emitting an unsound loop.
		return []Op{simple(OpStop)}
	case *ast.WhileStatement:
		return lowerWhile(n, ctx)
	case *ast.ReturnStatement:
		return lowerReturn(n, ctx)
	case *ast.RequireStatement:
		return lowerRequire(n, ctx)
	case *ast.EmitStatement:
		return lowerEmit(n, ctx)
	default:
		return nil
	}
}

func lowerIf(n *ast.IfStatement, ctx *lowerCtx) []Op {
	elseLabel := ctx.freshLabel("else")
	endLabel := ctx.freshLabel("endif")
	ops := lowerExpr(n.Condition, ctx)
	ops = append(ops, simple(OpIsZero), JumpI(elseLabel))
	ops = append(ops, lowerBlock(n.Then, ctx)...)
	ops = append(ops, Jump(endLabel), JumpDest(elseLabel))
	if n.Else != nil {
		ops = append(ops, lowerBlock(*n.Else, ctx)...)
	}
	ops = append(ops, JumpDest(endLabel))
	return ops
}

func lowerWhile(n *ast.WhileStatement, ctx *lowerCtx) []Op {
	startLabel := ctx.freshLabel("loop")
	endLabel := ctx.freshLabel("endloop")
	var ops []Op
	ops = append(ops, JumpDest(startLabel))
	ops = append(ops, lowerExpr(n.Condition, ctx)...)
	ops = append(ops, simple(OpIsZero), JumpI(endLabel))
	ops = append(ops, lowerBlock(n.Body, ctx)...)
	ops = append(ops, Jump(startLabel), JumpDest(endLabel))
	return ops
}

func lowerReturn(n *ast.ReturnStatement, ctx *lowerCtx) []Op {
	if n.Value == nil {
		return []Op{simple(OpStop)}
	}
	ops := lowerExpr(n.Value, ctx)
	ops = append(ops, PushUint64(0), simple(OpMStore))
	ops = append(ops, PushUint64(32), PushUint64(0), simple(OpReturn))
	return ops
}

func lowerRequire(n *ast.RequireStatement, ctx *lowerCtx) []Op {
	okLabel := ctx.freshLabel("req_ok")
	ops := lowerExpr(n.Condition, ctx)
	ops = append(ops, JumpI(okLabel))
	ops = append(ops, PushUint64(0), PushUint64(0), simple(OpRevert))
	ops = append(ops, JumpDest(okLabel))
	return ops
}

// lowerEmit only encodes the event's first argument, via LOG0: indexed
// topics and multi-argument data packing are outside this core's scope.
func lowerEmit(n *ast.EmitStatement, ctx *lowerCtx) []Op {
	if len(n.Args) == 0 {
		return nil
	}
	ops := lowerExpr(n.Args[0], ctx)
	ops = append(ops, PushUint64(0), simple(OpMStore))
	ops = append(ops, PushUint64(32), PushUint64(0), LogN(0))
	return ops
}

func lowerAssign(n *ast.AssignStatement, ctx *lowerCtx) []Op {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		if off, ok := ctx.locals[target.Name]; ok {
			ops := lowerExpr(n.Value, ctx)
			return append(ops, PushUint64(uint64(off)), simple(OpMStore))
		}
		slot, _ := ctx.layout.Lookup(target.Name)
		ops := lowerExpr(n.Value, ctx)
		return append(ops, PushUint64(slot.Slot), simple(OpSStore))
	case *ast.IndexExpr:
		return lowerMappingStore(target, n.Value, ctx)
	default:
		ops := lowerExpr(n.Value, ctx)
		return append(ops, simple(OpPop))
	}
}

// lowerMappingStore computes keccak256(key ++ slot) over the scratch
// memory region [0x00, 0x40) to derive the storage slot for a mapping
// entry, then stores the value there.
func lowerMappingStore(target *ast.IndexExpr, value ast.Expression, ctx *lowerCtx) []Op {
	id, _ := target.Base.(*ast.Identifier)
	slot, _ := ctx.layout.Lookup(id.Name)
	var ops []Op
	ops = append(ops, lowerExpr(value, ctx)...)
	ops = append(ops, lowerExpr(target.Key, ctx)...)
	ops = append(ops, PushUint64(0), simple(OpMStore))
	ops = append(ops, PushUint64(slot.Slot), PushUint64(32), simple(OpMStore))
	ops = append(ops, PushUint64(64), PushUint64(0), simple(OpKeccak256))
	ops = append(ops, simple(OpSStore))
	return ops
}

func lowerMappingLoad(base *ast.Identifier, key ast.Expression, ctx *lowerCtx) []Op {
	slot, _ := ctx.layout.Lookup(base.Name)
	var ops []Op
	ops = append(ops, lowerExpr(key, ctx)...)
	ops = append(ops, PushUint64(0), simple(OpMStore))
	ops = append(ops, PushUint64(slot.Slot), PushUint64(32), simple(OpMStore))
	ops = append(ops, PushUint64(64), PushUint64(0), simple(OpKeccak256))
	ops = append(ops, simple(OpSLoad))
	return ops
}

func lowerExpr(e ast.Expression, ctx *lowerCtx) []Op {
	switch n := e.(type) {
	case *ast.Number:
		return []Op{Push(n.Value.Bytes())}
	case *ast.HexNumber:
		return []Op{Push(n.Value.Bytes())}
	case *ast.BoolLit:
		if n.Value {
			return []Op{PushUint64(1)}
		}
		return []Op{PushUint64(0)}
	case *ast.BytesLit:
		return []Op{Push(n.Value)}
	case *ast.StringLit:
		return []Op{Push([]byte(n.Value))}
	case *ast.Identifier:
		return lowerIdentifier(n, ctx)
	case *ast.BinaryExpr:
		return lowerBinary(n, ctx)
	case *ast.UnaryExpr:
		return lowerUnary(n, ctx)
	case *ast.MemberExpr:
		return lowerMember(n, ctx)
	case *ast.IndexExpr:
		if id, ok := n.Base.(*ast.Identifier); ok {
			return lowerMappingLoad(id, n.Key, ctx)
		}
		ops := lowerExpr(n.Base, ctx)
		return append(ops, lowerExpr(n.Key, ctx)...)
	case *ast.CallExpr:
		var ops []Op
		for _, a := range n.Args {
			ops = append(ops, lowerExpr(a, ctx)...)
		}
		return ops
	case *ast.StructLit:
		var ops []Op
		for _, f := range n.Fields {
			ops = append(ops, lowerExpr(f.Value, ctx)...)
		}
		return ops
	default:
		return nil
	}
}

func lowerIdentifier(n *ast.Identifier, ctx *lowerCtx) []Op {
	if off, ok := ctx.paramOff[n.Name]; ok {
		return []Op{PushUint64(uint64(off)), simple(OpCallDataLoad)}
	}
	if off, ok := ctx.locals[n.Name]; ok {
		return []Op{PushUint64(uint64(off)), simple(OpMLoad)}
	}
	if slot, ok := ctx.layout.Lookup(n.Name); ok {
		return []Op{PushUint64(slot.Slot), simple(OpSLoad)}
	}
	return []Op{PushUint64(0)}
}

func lowerMember(n *ast.MemberExpr, ctx *lowerCtx) []Op {
	if base, ok := n.Base.(*ast.Identifier); ok && ast.IsBuiltin(base.Name) {
		switch base.Name + "." + n.Name {
		case "msg.sender":
			return []Op{simple(OpCaller)}
		case "msg.value":
			return []Op{simple(OpCallValue)}
		case "block.timestamp":
			return []Op{simple(OpTimestamp)}
		case "block.number":
			return []Op{simple(OpNumber)}
		case "self.address":
			return []Op{simple(OpAddress)}
		}
	}
	return lowerExpr(n.Base, ctx)
}

// lowerBinary emits operands in the stack order each non-commutative EVM
// opcode expects: SUB/DIV/MOD/EXP/LT/GT pop their first operand off the
// top of the stack, so for `left OP right` the right operand is pushed
// first and the left operand last.
func lowerBinary(n *ast.BinaryExpr, ctx *lowerCtx) []Op {
	left := lowerExpr(n.Left, ctx)
	right := lowerExpr(n.Right, ctx)

	switch n.Op {
	case ast.OpAdd:
		return concat(left, right, []Op{simple(OpAdd)})
	case ast.OpMul:
		return concat(left, right, []Op{simple(OpMul)})
	case ast.OpSub:
		return concat(right, left, []Op{simple(OpSub)})
	case ast.OpDiv:
		return concat(right, left, []Op{simple(OpDiv)})
	case ast.OpMod:
		return concat(right, left, []Op{simple(OpMod)})
	case ast.OpPow:
		return concat(right, left, []Op{simple(OpExp)})
	case ast.OpEqual:
		return concat(left, right, []Op{simple(OpEq)})
	case ast.OpNotEqual:
		return concat(left, right, []Op{simple(OpEq), simple(OpIsZero)})
	case ast.OpLess:
		return concat(right, left, []Op{simple(OpLt)})
	case ast.OpGreater:
		return concat(right, left, []Op{simple(OpGt)})
	case ast.OpLessEqual:
		return concat(right, left, []Op{simple(OpGt), simple(OpIsZero)})
	case ast.OpGreaterEqual:
		return concat(right, left, []Op{simple(OpLt), simple(OpIsZero)})
	case ast.OpAnd:
		return concat(left, right, []Op{simple(OpAnd)})
	case ast.OpOr:
		return concat(left, right, []Op{simple(OpOr)})
	default:
		return concat(left, right, []Op{simple(OpAdd)})
	}
}

func lowerUnary(n *ast.UnaryExpr, ctx *lowerCtx) []Op {
	ops := lowerExpr(n.Operand, ctx)
	switch n.Op {
	case ast.OpNot:
		return append(ops, simple(OpIsZero))
	case ast.OpNeg:
		// Two's complement negation: 0 - x.
		return append(ops, PushUint64(0), simple(OpSub))
	default:
		return ops
	}
}

func concat(parts ...[]Op) []Op {
	var out []Op
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
