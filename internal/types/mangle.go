package types

import (
	"strconv"
	"strings"
)

// Mangled-name grammar, used to name generated entities:
//
//	I32, U8, F64, Bool, Str, Char, Unit, Never    primitives
//	List__I32, HashMap__Str__Bool                 named/class + args
//	ref_T, mutref_T, ptr_T, mutptr_T, slice_T     one prefix per wrapper
//	arr_T_N                                       fixed array
//	tuple2_A_B, tuple0                            element-counted tuple
//	dyn_Behavior, dyn_Behavior__T                 behavior object
//
// Demangle is a left inverse of Mangle for every shape Mangle produces;
// the tuple element count and the registered generic arity make nested
// argument lists reconstructible without separators beyond "__".

// primitiveNames maps primitive descriptors to their mangled spelling.
func primitiveName(t Type) (string, bool) {
	switch t.Kind {
	case KindUnit:
		return "Unit", true
	case KindNever:
		return "Never", true
	case KindBool:
		return "Bool", true
	case KindChar:
		return "Char", true
	case KindStr:
		return "Str", true
	case KindInt:
		return "I" + strconv.Itoa(int(t.Width)), true
	case KindUint:
		return "U" + strconv.Itoa(int(t.Width)), true
	case KindFloat:
		return "F" + strconv.Itoa(int(t.Width)), true
	}
	return "", false
}

// Mangle encodes the type as a unique symbol-name fragment.
func (in *Interner) Mangle(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "Unit"
	}
	if name, ok := primitiveName(t); ok {
		return name
	}
	switch t.Kind {
	case KindNamed, KindClass:
		if len(t.Args) == 0 {
			return t.Name
		}
		return t.Name + "__" + in.mangleArgs(t.Args)
	case KindRef:
		if t.Mutable {
			return "mutref_" + in.Mangle(t.Elem)
		}
		return "ref_" + in.Mangle(t.Elem)
	case KindPtr:
		if t.Mutable {
			return "mutptr_" + in.Mangle(t.Elem)
		}
		return "ptr_" + in.Mangle(t.Elem)
	case KindSlice:
		return "slice_" + in.Mangle(t.Elem)
	case KindArray:
		return "arr_" + in.Mangle(t.Elem) + "_" + strconv.FormatUint(uint64(t.Count), 10)
	case KindTuple:
		var b strings.Builder
		b.WriteString("tuple")
		b.WriteString(strconv.Itoa(len(t.Args)))
		for _, e := range t.Args {
			b.WriteByte('_')
			b.WriteString(in.Mangle(e))
		}
		return b.String()
	case KindDyn:
		if len(t.Args) == 0 {
			return "dyn_" + t.Name
		}
		return "dyn_" + t.Name + "__" + in.mangleArgs(t.Args)
	case KindFunc:
		// Function types never name generated entities directly; they are
		// opaque pointers at the storage level.
		return "fnptr"
	}
	return "unknown"
}

func (in *Interner) mangleArgs(args []TypeID) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = in.Mangle(a)
	}
	return strings.Join(parts, "__")
}

// MangleName composes a generated-entity name from a base and its concrete
// type arguments: List + [I32] -> List__I32. With no arguments the base is
// returned unchanged.
func (in *Interner) MangleName(base string, args []TypeID) string {
	if len(args) == 0 {
		return base
	}
	return base + "__" + in.mangleArgs(args)
}
