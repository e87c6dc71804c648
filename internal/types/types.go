package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of semantic types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindNever
	KindBool
	KindChar
	KindStr
	KindInt
	KindUint
	KindFloat
	KindNamed
	KindClass
	KindRef
	KindPtr
	KindArray
	KindSlice
	KindTuple
	KindFunc
	KindDyn
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindNever:
		return "never"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindNamed:
		return "named"
	case KindClass:
		return "class"
	case KindRef:
		return "ref"
	case KindPtr:
		return "ptr"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindTuple:
		return "tuple"
	case KindFunc:
		return "func"
	case KindDyn:
		return "dyn"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats in bits.
type Width uint8

const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a structural descriptor for any supported semantic type.
//
// Two Named types are the same type iff Name, Module and Args are equal,
// recursively; the interner enforces that by construction, so comparing
// TypeIDs is comparing types.
type Type struct {
	Kind     Kind
	Width    Width  // numeric primitives
	Elem     TypeID // ref/ptr/array/slice element, func result
	Count    uint32 // array length
	Mutable  bool   // ref/ptr mutability
	Variadic bool   // func
	Name     string // named/class/dyn base name
	Module   string // named: defining module path, "" for local
	Args     []TypeID
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeNamed describes a struct/enum reference with optional type arguments.
func MakeNamed(name, module string, args []TypeID) Type {
	return Type{Kind: KindNamed, Name: name, Module: module, Args: args}
}

// MakeClass describes a class type with optional type arguments.
func MakeClass(name string, args []TypeID) Type {
	return Type{Kind: KindClass, Name: name, Args: args}
}

// MakeRef describes &T or &mut T depending on the mutable flag.
func MakeRef(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRef, Elem: elem, Mutable: mutable}
}

// MakePtr describes a raw pointer.
func MakePtr(elem TypeID, mutable bool) Type {
	return Type{Kind: KindPtr, Elem: elem, Mutable: mutable}
}

// MakeArray describes a fixed-size array [T; N].
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes a dynamically sized view over T.
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeTuple describes an anonymous product of the element types.
func MakeTuple(elems []TypeID) Type {
	return Type{Kind: KindTuple, Args: elems}
}

// MakeFunc describes a function type.
func MakeFunc(params []TypeID, result TypeID, variadic bool) Type {
	return Type{Kind: KindFunc, Args: params, Elem: result, Variadic: variadic}
}

// MakeDyn describes a behavior (trait) object.
func MakeDyn(name string, args []TypeID) Type {
	return Type{Kind: KindDyn, Name: name, Args: args}
}

// IsNumeric reports whether the descriptor is an int, uint or float.
func (t Type) IsNumeric() bool {
	return t.Kind == KindInt || t.Kind == KindUint || t.Kind == KindFloat
}

// IsInteger reports whether the descriptor is a signed or unsigned integer.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsUnsigned reports whether the descriptor is an unsigned integer. This is
// the declared-type bit that drives zext-vs-sext selection in codegen.
func (t Type) IsUnsigned() bool {
	return t.Kind == KindUint
}
