package codegen

import (
	"fmt"
	"strings"

	"tml/internal/types"
)

// llvmType maps a semantic type to its low-level spelling in return
// position. Unit and Never lower to void; everything else matches the
// storage spelling.
func (g *Generator) llvmType(id types.TypeID) string {
	t, ok := g.Types.Lookup(id)
	if !ok {
		return "void"
	}
	if t.Kind == types.KindUnit || t.Kind == types.KindNever {
		return "void"
	}
	return g.llvmValueType(id)
}

// llvmValueType maps a semantic type to its storage spelling: the type
// used for allocas, loads, stores and aggregate fields.
func (g *Generator) llvmValueType(id types.TypeID) string {
	t, ok := g.Types.Lookup(id)
	if !ok {
		return "ptr"
	}
	switch t.Kind {
	case types.KindBool:
		return "i1"
	case types.KindChar:
		return "i32"
	case types.KindInt, types.KindUint:
		return fmt.Sprintf("i%d", t.Width)
	case types.KindFloat:
		if t.Width == 32 {
			return "float"
		}
		return "double"
	case types.KindStr:
		return "ptr"
	case types.KindRef, types.KindPtr, types.KindFunc:
		return "ptr"
	case types.KindDyn:
		// fat pointer: data, vtable
		return "{ ptr, ptr }"
	case types.KindArray:
		return fmt.Sprintf("[%d x %s]", t.Count, g.llvmValueType(t.Elem))
	case types.KindSlice:
		return "{ ptr, i64 }"
	case types.KindTuple:
		return g.tupleType(id, t)
	case types.KindUnit, types.KindNever:
		return "i1"
	case types.KindNamed:
		g.ensureNamedDef(id, t)
		return "%struct." + g.Types.Mangle(id)
	case types.KindClass:
		if g.isValueClass(t.Name) {
			g.ensureClassDef(id, t)
			return "%struct." + g.Types.Mangle(id)
		}
		g.ensureClassDef(id, t)
		return "ptr"
	}
	return "ptr"
}

// tupleType emits the tuple's named struct definition on first use and
// returns its spelling.
func (g *Generator) tupleType(id types.TypeID, t types.Type) string {
	mangled := g.Types.Mangle(id)
	if !g.typesSeen[mangled] {
		elems := make([]string, len(t.Args))
		for i, a := range t.Args {
			elems[i] = g.llvmValueType(a)
		}
		g.registerTypeDef(mangled, "{ "+strings.Join(elems, ", ")+" }")
	}
	return "%struct." + mangled
}

func (g *Generator) isValueClass(name string) bool {
	c, ok := g.Env.LookupClass(name)
	return ok && c.ValueClass
}

// zeroValue is the neutral constant for a storage type, used when a
// function falls off the end without an explicit return.
func zeroValue(llty string) string {
	switch llty {
	case "float", "double":
		return "0.0"
	case "ptr":
		return "null"
	}
	if strings.HasPrefix(llty, "i") {
		return "0"
	}
	return "zeroinitializer"
}

// coerceValue adapts a value to a wanted storage type, widening or
// truncating integers as needed. Sign of the extension follows the
// destination semantic type.
func (fs *funcState) coerceValue(val, have, want string, sem types.TypeID) (string, string) {
	if have == want || want == "void" {
		return val, have
	}
	hw, hok := intWidth(have)
	ww, wok := intWidth(want)
	if hok && wok {
		reg := fs.nextReg()
		switch {
		case hw < ww:
			op := "sext"
			if t, ok := fs.g.Types.Lookup(sem); ok && t.Kind == types.KindUint {
				op = "zext"
			}
			fs.line("  %s = %s %s %s to %s", reg, op, have, val, want)
		case hw > ww:
			fs.line("  %s = trunc %s %s to %s", reg, have, val, want)
		}
		return reg, want
	}
	if have == "float" && want == "double" {
		reg := fs.nextReg()
		fs.line("  %s = fpext float %s to double", reg, val)
		return reg, want
	}
	if have == "double" && want == "float" {
		reg := fs.nextReg()
		fs.line("  %s = fptrunc double %s to float", reg, val)
		return reg, want
	}
	return val, want
}

// intWidth parses an iN spelling.
func intWidth(llty string) (int, bool) {
	if len(llty) < 2 || llty[0] != 'i' {
		return 0, false
	}
	w := 0
	for i := 1; i < len(llty); i++ {
		c := llty[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		w = w*10 + int(c-'0')
	}
	return w, w > 0
}

// sizeOf is a conservative byte size for a storage type, used to compute
// allocation sizes without a data-layout oracle.
func (g *Generator) sizeOf(id types.TypeID) int {
	t, ok := g.Types.Lookup(id)
	if !ok {
		return 8
	}
	switch t.Kind {
	case types.KindBool:
		return 1
	case types.KindChar:
		return 4
	case types.KindInt, types.KindUint:
		return int(t.Width) / 8
	case types.KindFloat:
		return int(t.Width) / 8
	case types.KindUnit, types.KindNever:
		return 1
	case types.KindStr, types.KindRef, types.KindPtr, types.KindFunc:
		return 8
	case types.KindDyn, types.KindSlice:
		return 16
	case types.KindArray:
		return int(t.Count) * g.sizeOf(t.Elem)
	case types.KindTuple:
		n := 0
		for _, a := range t.Args {
			n += align8(g.sizeOf(a))
		}
		return n
	case types.KindNamed, types.KindClass:
		return g.aggregateSize(t)
	}
	return 8
}

func (g *Generator) aggregateSize(t types.Type) int {
	if s, ok := g.Env.LookupStruct(t.Name); ok {
		n := 0
		for i := range s.Fields {
			n += align8(g.sizeOf(s.Fields[i].Type))
		}
		if n == 0 {
			n = 1
		}
		return n
	}
	if e, ok := g.Env.LookupEnum(t.Name); ok {
		max := 0
		for i := range e.Variants {
			w := 0
			for _, p := range e.Variants[i].Payload {
				w += align8(g.sizeOf(p))
			}
			if w > max {
				max = w
			}
		}
		return 8 + max
	}
	if c, ok := g.Env.LookupClass(t.Name); ok {
		n := 0
		if !c.ValueClass {
			n = 8
		}
		for i := range c.Flat {
			n += align8(g.sizeOf(c.Flat[i].Type))
		}
		if n == 0 {
			n = 1
		}
		return n
	}
	return 8
}

func align8(n int) int {
	if n <= 0 {
		return 8
	}
	return (n + 7) &^ 7
}
