// Package symbols is the signature environment the code generator queries
// by qualified name: function and method signatures, struct/enum/class
// layouts (inherited fields included) and imported-module registries.
//
// All registries are append-only during codegen of any single function;
// registration happens up front and when a monomorphization job lands.
package symbols

import (
	"tml/internal/types"
)

// FuncSig describes a free function.
type FuncSig struct {
	Name     string
	Module   string
	Params   []types.TypeID
	Result   types.TypeID
	Generics []string
	Variadic bool
}

// MethodSig describes a method attached to a struct, enum or class.
// Params exclude the receiver.
type MethodSig struct {
	Name     string
	Static   bool
	Params   []types.TypeID
	Result   types.TypeID
	Generics []string
}

// Property is a computed field: reads dispatch to Getter, writes to Setter.
// An empty Setter means the property is read-only.
type Property struct {
	Name   string
	Type   types.TypeID
	Getter string
	Setter string
}

// StaticField is a process-wide slot attached to a type.
type StaticField struct {
	Name   string
	Type   types.TypeID
	Global string // emitted global symbol name
}

// PathStep is one address-computation hop: a GEP into struct type Type at
// field index Index.
type PathStep struct {
	Type  string
	Index int
}

// FieldDesc describes one accessible field of a struct or class. Path is
// precomputed at registration and never mutated afterwards; direct fields
// carry a single step, inherited fields one step per ancestor hop.
type FieldDesc struct {
	Name  string
	Index int
	Type  types.TypeID
	Path  []PathStep
}

// StructInfo describes a struct declaration. For a generic struct the
// field types reference the generic parameters as plain named types; the
// monomorphization engine substitutes them when specializing.
type StructInfo struct {
	Name     string
	Module   string
	Generics []string
	Fields   []FieldDesc
	Props    []Property
	Methods  map[string]*MethodSig
	// AssocTypes records declared associated types keyed by name; the
	// declarations may reference the struct's own generic parameters.
	AssocTypes map[string]types.TypeID
}

// EnumVariant describes one variant. Tag follows declaration order.
type EnumVariant struct {
	Name    string
	Tag     int
	Payload []types.TypeID
}

// EnumInfo describes a tagged-union declaration.
type EnumInfo struct {
	Name     string
	Module   string
	Generics []string
	Variants []EnumVariant
	Methods  map[string]*MethodSig
	// AssocTypes records declared associated types (an iterator's element
	// type and the like), resolved per concrete instantiation.
	AssocTypes map[string]types.TypeID
}

// ClassInfo describes a class declaration. Flat is the flattened field
// table including inherited fields with full paths, computed once when the
// class is registered.
type ClassInfo struct {
	Name     string
	Generics []string
	Base     string
	Sealed   bool
	Fields   []FieldDesc // declared on this class only, indexes unset
	Flat     []FieldDesc
	Props    []Property
	Methods  []MethodSig
	Statics  []StaticField

	// ValueClass is decided once per declaration: sealed, no base and no
	// overridable methods means instances live on the stack with no vtable.
	ValueClass bool
}

// Module is an imported registry for qualified lookups.
type Module struct {
	Name    string
	Funcs   map[string]*FuncSig
	Structs map[string]*StructInfo
	Enums   map[string]*EnumInfo
}

// Env is the signature environment.
type Env struct {
	Funcs   map[string]*FuncSig
	Structs map[string]*StructInfo
	Enums   map[string]*EnumInfo
	Classes map[string]*ClassInfo
	Consts  map[string]ConstInfo
	Modules map[string]*Module

	// AssocByType resolves a base name's associated types, keyed by the
	// concrete mangled type name, filled as instantiations land.
	AssocByType map[string]map[string]types.TypeID
}

// ConstInfo describes a global constant.
type ConstInfo struct {
	Name   string
	Type   types.TypeID
	Global string
}

func NewEnv() *Env {
	return &Env{
		Funcs:       make(map[string]*FuncSig),
		Structs:     make(map[string]*StructInfo),
		Enums:       make(map[string]*EnumInfo),
		Classes:     make(map[string]*ClassInfo),
		Consts:      make(map[string]ConstInfo),
		Modules:     make(map[string]*Module),
		AssocByType: make(map[string]map[string]types.TypeID),
	}
}

// RegisterFunc adds or replaces a function signature.
func (e *Env) RegisterFunc(sig *FuncSig) {
	e.Funcs[sig.Name] = sig
}

// RegisterStruct adds a struct layout, assigning field indexes and single
// step paths in declaration order.
func (e *Env) RegisterStruct(info *StructInfo) {
	for i := range info.Fields {
		info.Fields[i].Index = i
		info.Fields[i].Path = []PathStep{{Type: info.Name, Index: i}}
	}
	if info.Methods == nil {
		info.Methods = make(map[string]*MethodSig)
	}
	e.Structs[info.Name] = info
}

// RegisterEnum adds a tagged-union layout, assigning tags by declaration
// order.
func (e *Env) RegisterEnum(info *EnumInfo) {
	for i := range info.Variants {
		info.Variants[i].Tag = i
	}
	if info.Methods == nil {
		info.Methods = make(map[string]*MethodSig)
	}
	e.Enums[info.Name] = info
}

// RegisterClass adds a class, deciding the value-class strategy and
// precomputing the flattened field table with inheritance paths.
func (e *Env) RegisterClass(info *ClassInfo) {
	info.ValueClass = info.Sealed && info.Base == "" && !hasOverridable(info)
	e.Classes[info.Name] = info
	info.Flat = e.flattenClassFields(info)
}

func hasOverridable(info *ClassInfo) bool {
	for i := range info.Methods {
		m := &info.Methods[i]
		if !m.Static {
			return true
		}
	}
	return false
}

// flattenClassFields computes the full field table for a class. Layout:
// a reference-class root stores the vtable pointer at index 0 and fields
// after it; a derived class embeds its base as index 0 and own fields
// after it; a value class stores fields from index 0.
func (e *Env) flattenClassFields(info *ClassInfo) []FieldDesc {
	var flat []FieldDesc

	ownBase := 0
	switch {
	case info.Base != "":
		ownBase = 1 // embedded base occupies slot 0
	case !info.ValueClass:
		ownBase = 1 // vtable pointer occupies slot 0
	}
	for i := range info.Fields {
		f := info.Fields[i]
		f.Index = ownBase + i
		f.Path = []PathStep{{Type: info.Name, Index: f.Index}}
		flat = append(flat, f)
	}

	// Inherited fields: prepend one hop through the embedded base per
	// ancestor level.
	hops := []PathStep{{Type: info.Name, Index: 0}}
	for base := info.Base; base != ""; {
		parent, ok := e.Classes[base]
		if !ok {
			break
		}
		for i := range parent.Fields {
			f := parent.Fields[i]
			path := make([]PathStep, 0, len(hops)+1)
			path = append(path, hops...)
			path = append(path, PathStep{Type: parent.Name, Index: parentFieldIndex(parent, i)})
			f.Index = parentFieldIndex(parent, i)
			f.Path = path
			flat = append(flat, f)
		}
		hops = append(hops, PathStep{Type: parent.Name, Index: 0})
		base = parent.Base
	}
	return flat
}

func parentFieldIndex(parent *ClassInfo, declIdx int) int {
	base := 0
	switch {
	case parent.Base != "":
		base = 1
	case !parent.ValueClass:
		base = 1
	}
	return base + declIdx
}

// RegisterModule adds an imported module registry.
func (e *Env) RegisterModule(m *Module) {
	e.Modules[m.Name] = m
}

// LookupFunc finds a free function by unqualified name.
func (e *Env) LookupFunc(name string) (*FuncSig, bool) {
	f, ok := e.Funcs[name]
	return f, ok
}

// LookupStruct finds a struct by base or mangled name.
func (e *Env) LookupStruct(name string) (*StructInfo, bool) {
	s, ok := e.Structs[name]
	return s, ok
}

// LookupEnum finds a tagged union by base or mangled name.
func (e *Env) LookupEnum(name string) (*EnumInfo, bool) {
	en, ok := e.Enums[name]
	return en, ok
}

// LookupClass finds a class by name.
func (e *Env) LookupClass(name string) (*ClassInfo, bool) {
	c, ok := e.Classes[name]
	return c, ok
}

// LookupModule finds an imported module registry.
func (e *Env) LookupModule(name string) (*Module, bool) {
	m, ok := e.Modules[name]
	return m, ok
}

// FieldOf resolves a field on a struct or class (flattened view).
func (e *Env) FieldOf(typeName, field string) (FieldDesc, bool) {
	if s, ok := e.Structs[typeName]; ok {
		for i := range s.Fields {
			if s.Fields[i].Name == field {
				return s.Fields[i], true
			}
		}
	}
	if c, ok := e.Classes[typeName]; ok {
		for i := range c.Flat {
			if c.Flat[i].Name == field {
				return c.Flat[i], true
			}
		}
	}
	return FieldDesc{}, false
}

// PropertyOf resolves a computed property on a struct or class.
func (e *Env) PropertyOf(typeName, name string) (Property, bool) {
	if s, ok := e.Structs[typeName]; ok {
		for _, p := range s.Props {
			if p.Name == name {
				return p, true
			}
		}
	}
	if c, ok := e.Classes[typeName]; ok {
		for _, p := range c.Props {
			if p.Name == name {
				return p, true
			}
		}
	}
	return Property{}, false
}

// StaticOf resolves a static field on a class.
func (e *Env) StaticOf(typeName, name string) (StaticField, bool) {
	if c, ok := e.Classes[typeName]; ok {
		for _, s := range c.Statics {
			if s.Name == name {
				return s, true
			}
		}
	}
	return StaticField{}, false
}

// VariantOf resolves an enum variant by enum and variant name.
func (e *Env) VariantOf(enumName, variant string) (EnumVariant, bool) {
	if en, ok := e.Enums[enumName]; ok {
		for _, v := range en.Variants {
			if v.Name == variant {
				return v, true
			}
		}
	}
	return EnumVariant{}, false
}

// VariantByName scans every enum for a unit/payload variant with the given
// name. Used for bare-identifier variant references.
func (e *Env) VariantByName(name string) (*EnumInfo, EnumVariant, bool) {
	for _, en := range e.Enums {
		for _, v := range en.Variants {
			if v.Name == name {
				return en, v, true
			}
		}
	}
	return nil, EnumVariant{}, false
}

// ClassChain returns the inheritance chain from the class itself up to the
// root ancestor.
func (e *Env) ClassChain(name string) []*ClassInfo {
	var chain []*ClassInfo
	for name != "" {
		c, ok := e.Classes[name]
		if !ok {
			break
		}
		chain = append(chain, c)
		name = c.Base
	}
	return chain
}

// Arity reports the declared generic-parameter count of a registered base
// name. Feeds the demangler so nested generic arguments reassemble
// correctly.
func (e *Env) Arity(base string) (int, bool) {
	if s, ok := e.Structs[base]; ok {
		return len(s.Generics), true
	}
	if en, ok := e.Enums[base]; ok {
		return len(en.Generics), true
	}
	if c, ok := e.Classes[base]; ok {
		return len(c.Generics), true
	}
	return 0, false
}
