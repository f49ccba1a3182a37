// Package abi renders a Pyra program's external interface as the
// standard contract-ABI JSON document. The document is built by hand,
// byte by byte, rather than through encoding/json struct marshaling, so
// that key order and compactness are exact and deterministic rather
// than subject to the json package's map-key sorting and whitespace
// conventions.
package abi

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
)

var log = logrus.WithField("stage", "abi")

// UnsupportedTypeError is returned when an input parameter's type has no
// faithful ABI encoding (Custom structs, Vec, Map, Generic) — these are
// fine as return-value types, where they degrade to "bytes", but are
// rejected as input types since the caller would have no way to encode
// them.
type UnsupportedTypeError struct {
	Context string
	Type    ast.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: type %s has no ABI input encoding", e.Context, e.Type)
}

// ProgramToJSON renders prog's functions, constructor (if any def is
// named "init"), and events as a single ABI JSON array.
func ProgramToJSON(prog *ast.Program) (string, error) {
	var entries []string

	for _, item := range prog.Items {
		fn, ok := item.(*ast.Function)
		if !ok {
			continue
		}
		if fn.Name == "init" {
			entry, err := constructorEntry(fn)
			if err != nil {
				return "", err
			}
			entries = append(entries, entry)
			continue
		}
		entry, err := functionEntry(fn)
		if err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}
	for _, item := range prog.Items {
		ev, ok := item.(*ast.EventDef)
		if !ok {
			continue
		}
		entry, err := eventEntry(ev)
		if err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e)
	}
	sb.WriteByte(']')

	log.Debugf("rendered ABI with %d entries", len(entries))
	return sb.String(), nil
}

func functionEntry(fn *ast.Function) (string, error) {
	inputs, err := paramsToJSON(fn.Params, fn.Name)
	if err != nil {
		return "", err
	}
	outputs := "[]"
	if fn.ReturnType != nil {
		outputs = "[" + outputEntry(*fn.ReturnType) + "]"
	}

	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteString(`"type":"function",`)
	sb.WriteString(`"name":`)
	writeJSONString(&sb, fn.Name)
	sb.WriteByte(',')
	sb.WriteString(`"stateMutability":`)
	writeJSONString(&sb, stateMutability(fn.Body))
	sb.WriteByte(',')
	sb.WriteString(`"inputs":`)
	sb.WriteString(inputs)
	sb.WriteByte(',')
	sb.WriteString(`"outputs":`)
	sb.WriteString(outputs)
	sb.WriteByte('}')
	return sb.String(), nil
}

func constructorEntry(fn *ast.Function) (string, error) {
	inputs, err := paramsToJSON(fn.Params, "constructor")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteString(`"type":"constructor",`)
	sb.WriteString(`"stateMutability":"nonpayable",`)
	sb.WriteString(`"inputs":`)
	sb.WriteString(inputs)
	sb.WriteByte('}')
	return sb.String(), nil
}

func eventEntry(ev *ast.EventDef) (string, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteString(`"type":"event",`)
	sb.WriteString(`"name":`)
	writeJSONString(&sb, ev.Name)
	sb.WriteByte(',')
	sb.WriteString(`"inputs":[`)
	for i, p := range ev.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('{')
		sb.WriteString(`"name":`)
		writeJSONString(&sb, p.Name)
		sb.WriteByte(',')
		sb.WriteString(`"type":`)
		writeJSONString(&sb, abiTypeNameForInput(p.Type))
		sb.WriteString(`,"indexed":false}`)
	}
	sb.WriteString(`]}`)
	return sb.String(), nil
}

func paramsToJSON(params []ast.Parameter, context string) (string, error) {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		typeName, err := abiInputTypeName(p.Type, context)
		if err != nil {
			return "", err
		}
		sb.WriteByte('{')
		sb.WriteString(`"name":`)
		writeJSONString(&sb, p.Name)
		sb.WriteByte(',')
		sb.WriteString(`"type":`)
		writeJSONString(&sb, typeName)
		sb.WriteByte('}')
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

func outputEntry(t ast.Type) string {
	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteString(`"name":"",`)
	sb.WriteString(`"type":`)
	writeJSONString(&sb, abiTypeNameForInput(t))
	sb.WriteByte('}')
	return sb.String()
}

func abiInputTypeName(t ast.Type, context string) (string, error) {
	switch t.Kind {
	case ast.KindCustom, ast.KindVec, ast.KindMap, ast.KindGeneric:
		return "", &UnsupportedTypeError{Context: context, Type: t}
	default:
		return abiTypeNameForInput(t), nil
	}
}

// abiTypeNameForInput renders any type, degrading unencodable composites
// to "bytes" — used for outputs and events, where spec.md accepts the
// lossy rendering rather than rejecting the program outright.
func abiTypeNameForInput(t ast.Type) string {
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

// stateMutability scans a function body for any write (an assignment,
// directly or nested inside if/for/while) or an event emission, and
// reports "view" only when it finds neither. It never reports "payable":
// this core has no explicit payability declaration to read.
func stateMutability(b ast.Block) string {
	if bodyWrites(b) {
		return "nonpayable"
	}
	return "view"
}

func bodyWrites(b ast.Block) bool {
	for _, s := range b.Statements {
		if stmtWrites(s) {
			return true
		}
	}
	return false
}

func stmtWrites(s ast.Statement) bool {
	switch n := s.(type) {
	case *ast.AssignStatement:
		return true
	case *ast.EmitStatement:
		return true
	case *ast.IfStatement:
		if bodyWrites(n.Then) {
			return true
		}
		if n.Else != nil && bodyWrites(*n.Else) {
			return true
		}
		return false
	case *ast.ForStatement:
		return bodyWrites(n.Body)
	case *ast.WhileStatement:
		return bodyWrites(n.Body)
	default:
		return false
	}
}

// writeJSONString appends s to sb as a double-quoted JSON string,
// escaping the standard control characters by hand and falling back to
// \uXXXX for anything else below 0x20.
func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}
