// Package driver assembles the backend pieces into a compiler: it decodes
// serialized module inputs, registers their declarations, lowers every
// function body, drains the monomorphization queue and produces the final
// module text. Units compile independently and in parallel; emitted text is
// cached on disk keyed by the unit's input digest.
package driver

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"tml/internal/ast"
	"tml/internal/symbols"
)

// inputSchemaVersion is bumped whenever the Input wire format changes.
const inputSchemaVersion uint16 = 1

// TypeRec is one entry of an Input's type table. Entries reference each
// other by TypeRef; the table is the only place types are spelled out, so
// the rest of the input stays compact.
type TypeRec struct {
	Kind     uint8
	Width    uint8
	Count    uint32
	Mutable  bool
	Variadic bool
	Name     string
	Module   string
	Elem     uint32   // TypeRef of the element / func result
	Args     []uint32 // TypeRefs of generic args, tuple elems, func params
}

// MethodBody pairs a lowered method body with the base type it attaches to.
type MethodBody struct {
	Base string
	Fn   *ast.Func
}

// Input is a serialized module handed to the backend: the type table plus
// declarations and function bodies. Every TypeID inside the declarations
// and bodies is a TypeRef into Types: 0 means no type, ref N means entry
// N-1. The loader re-interns the table and rewrites the refs in place.
type Input struct {
	Schema uint16
	Name   string

	Types []TypeRec

	Structs []*symbols.StructInfo
	Enums   []*symbols.EnumInfo
	Classes []*symbols.ClassInfo
	Consts  []symbols.ConstInfo
	Funcs   []*symbols.FuncSig

	Bodies  []*ast.Func
	Methods []MethodBody
}

// ErrInputSchema indicates an input written by an incompatible producer.
var ErrInputSchema = errors.New("unsupported input schema")

// ReadInput decodes a msgpack-serialized module input.
func ReadInput(r io.Reader) (*Input, error) {
	var in Input
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode module input: %w", err)
	}
	if in.Schema != inputSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputSchema, in.Schema, inputSchemaVersion)
	}
	return &in, nil
}

// WriteInput encodes a module input in msgpack.
func WriteInput(w io.Writer, in *Input) error {
	in.Schema = inputSchemaVersion
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(in); err != nil {
		return fmt.Errorf("failed to encode module input: %w", err)
	}
	return nil
}
