package main

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"pyra-compiler/internal/abi"
	"pyra-compiler/internal/codegen"
	"pyra-compiler/internal/gas"
	"pyra-compiler/internal/ir"
	"pyra-compiler/internal/parser"
	"pyra-compiler/internal/security"
	"pyra-compiler/internal/storage"
	"pyra-compiler/internal/types"
	"pyra-compiler/internal/verify"
	"pyra-compiler/pkg/utils"
)

var log = logrus.WithField("stage", "cli")

// buildOptions controls the optional hardening passes. Harden is on by
// default; ReentrancyGuard is off unless a lock slot was explicitly
// requested.
type buildOptions struct {
	Harden          bool
	ReentrancyGuard bool
	LockSlot        uint64
}

// buildResult is everything a compile produces: the constructor-wrapped
// deploy bytecode, the runtime bytecode it embeds, the rendered ABI, and
// a static gas estimate.
type buildResult struct {
	DeployHex  string
	RuntimeHex string
	ABI        string
	Gas        *gas.Report
}

// compile runs the full pipeline over src: lex, parse, lay out storage,
// type-check (advisory, logged not fatal), lower to IR, optionally
// harden and guard, verify (advisory), assemble, and estimate gas.
func compile(src string, opts buildOptions) (*buildResult, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, utils.Wrap(err, "parse")
	}

	layout := storage.BuildLayout(prog)

	for _, d := range types.Check(prog, layout) {
		log.Warnf("%s", d.String())
	}

	mod := ir.LowerProgram(prog, layout)

	if opts.Harden {
		security.Harden(mod)
	}
	if opts.ReentrancyGuard {
		security.AddReentrancyGuard(mod, opts.LockSlot)
	}

	for _, verr := range verify.Module(mod) {
		log.Warnf("%s", verr.Error())
	}

	deploy := codegen.ProgramToDeployBytecode(mod)
	runtime := codegen.ProgramToRuntimeBytecode(mod)

	abiJSON, err := abi.ProgramToJSON(prog)
	if err != nil {
		return nil, utils.Wrap(err, "render abi")
	}

	return &buildResult{
		DeployHex:  hex.EncodeToString(deploy),
		RuntimeHex: hex.EncodeToString(runtime),
		ABI:        abiJSON,
		Gas:        gas.FromModule(mod),
	}, nil
}
