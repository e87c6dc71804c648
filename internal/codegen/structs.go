package codegen

import (
	"fmt"
	"strings"

	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/symbols"
	"tml/internal/types"
)

// ensureNamedDef emits the %struct definition for a named type on first
// use. Structs lay fields out in declaration order; tagged unions store an
// i32 discriminant followed by a byte area sized for the widest payload.
func (g *Generator) ensureNamedDef(id types.TypeID, t types.Type) {
	mangled := g.Types.Mangle(id)
	if g.typesSeen[mangled] {
		return
	}
	subs := g.declSubs(t)

	if s, ok := g.Env.LookupStruct(t.Name); ok {
		g.typesSeen[mangled] = true // before field recursion, self-references stay by pointer
		fields := make([]string, len(s.Fields))
		for i := range s.Fields {
			fields[i] = g.llvmValueType(mono.Apply(g.Types, subs, s.Fields[i].Type))
		}
		g.typesSeen[mangled] = false
		g.registerTypeDef(mangled, "{ "+strings.Join(fields, ", ")+" }")
		return
	}
	if en, ok := g.Env.LookupEnum(t.Name); ok {
		payload := 0
		for i := range en.Variants {
			w := 0
			for _, p := range en.Variants[i].Payload {
				w += align8(g.sizeOf(mono.Apply(g.Types, subs, p)))
			}
			if w > payload {
				payload = w
			}
		}
		if payload == 0 {
			g.registerTypeDef(mangled, "{ i32 }")
		} else {
			g.registerTypeDef(mangled, fmt.Sprintf("{ i32, [%d x i8] }", payload))
		}
		return
	}
}

// ensureClassDef emits the %struct definition for a class: value classes
// are bare field lists, reference classes carry the vtable pointer at
// index 0, derived classes embed their base at index 0.
func (g *Generator) ensureClassDef(id types.TypeID, t types.Type) {
	mangled := g.Types.Mangle(id)
	if g.typesSeen[mangled] {
		return
	}
	c, ok := g.Env.LookupClass(t.Name)
	if !ok {
		return
	}
	g.typesSeen[mangled] = true
	subs := mono.BuildSubs(c.Generics, t.Args)

	var fields []string
	switch {
	case c.Base != "":
		base := g.Types.Intern(types.MakeClass(c.Base, nil))
		baseT, _ := g.Types.Lookup(base)
		g.ensureClassDef(base, baseT)
		fields = append(fields, "%struct."+g.Types.Mangle(base))
	case !c.ValueClass:
		fields = append(fields, "ptr") // vtable
	}
	for i := range c.Fields {
		fields = append(fields, g.llvmValueType(mono.Apply(g.Types, subs, c.Fields[i].Type)))
	}
	if len(fields) == 0 {
		fields = append(fields, "i8")
	}
	g.typesSeen[mangled] = false
	g.registerTypeDef(mangled, "{ "+strings.Join(fields, ", ")+" }")
}

func (fs *funcState) genStructLit(e *ast.Expr) (string, string, error) {
	lit := e.StructLit
	if _, ok := fs.g.Env.LookupClass(lit.Name); ok {
		return fs.genClassNew(e)
	}
	s, ok := fs.g.Env.LookupStruct(lit.Name)
	if !ok {
		fs.errorf(diag.GenUnknownType, e.Span, "unknown type %q", lit.Name)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	typeArgs := make([]types.TypeID, len(lit.TypeArgs))
	for i, a := range lit.TypeArgs {
		typeArgs[i] = fs.g.applySubs(fs, a)
	}
	subs := fs.g.bindAll(s.Generics, typeArgs)
	if len(s.Generics) > 0 {
		fs.g.Mono.Request(mono.JobStruct, s.Name, "", typeArgs, subs)
	}
	sem := fs.g.Types.Intern(types.MakeNamed(s.Name, s.Module, typeArgs))
	llty := fs.g.llvmValueType(sem)

	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s zeroinitializer, ptr %s", llty, slot)
	for _, init := range lit.Fields {
		fd, ok := fieldByName(s.Fields, init.Name)
		if !ok {
			fs.errorf(diag.GenBadStructLiteral, init.Span, "%s has no field %q", s.Name, init.Name)
			continue
		}
		fsem := mono.Apply(fs.g.Types, subs, fd.Type)
		fLL := fs.g.llvmValueType(fsem)
		val, have, err := fs.genExpr(init.Value)
		if err != nil {
			return "", "", err
		}
		val, _ = fs.coerceValue(val, have, fLL, fsem)
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 %d", gep, llty, slot, fd.Index)
		fs.line("  store %s %s, ptr %s", fLL, val, gep)
	}
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, llty, slot)
	return reg, llty, nil
}

func fieldByName(fields []symbols.FieldDesc, name string) (symbols.FieldDesc, bool) {
	for i := range fields {
		if fields[i].Name == name {
			return fields[i], true
		}
	}
	return symbols.FieldDesc{}, false
}

func (fs *funcState) genField(e *ast.Expr) (string, string, error) {
	f := e.Field
	if f.TupleIdx >= 0 {
		return fs.genTupleField(e)
	}
	objSem := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	t, ok := fs.g.Types.Lookup(objSem)
	if !ok {
		fs.errorf(diag.GenBadFieldAccess, e.Span, "value has no fields")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	if _, isField := fs.g.Env.FieldOf(t.Name, f.Name); !isField {
		if prop, isProp := fs.g.Env.PropertyOf(t.Name, f.Name); isProp {
			recv, err := fs.receiverPointer(f.Object)
			if err != nil {
				return "", "", err
			}
			sem := mono.Apply(fs.g.Types, fs.g.declSubs(t), prop.Type)
			return fs.emitCall("@"+prop.Getter, sem, []string{"ptr " + recv})
		}
		fs.errorf(diag.GenUnknownField, e.Span, "%s has no field %q", t.Name, f.Name)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	ptr, llty, _, ok := fs.genFieldAddr(e)
	if !ok {
		// rvalue aggregate: extract directly
		return fs.genFieldExtract(e, t)
	}
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, llty, ptr)
	return reg, llty, nil
}

// genFieldAddr resolves the address of obj.field by walking the field's
// precomputed path: one address step per embedding hop, so an inherited
// field three levels up costs exactly three steps.
func (fs *funcState) genFieldAddr(e *ast.Expr) (string, string, types.TypeID, bool) {
	f := e.Field
	if f.TupleIdx >= 0 {
		return fs.genTupleFieldAddr(e)
	}
	objSem := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	t, found := fs.g.Types.Lookup(objSem)
	if !found {
		return "", "", 0, false
	}
	fd, found := fs.g.Env.FieldOf(t.Name, f.Name)
	if !found {
		return "", "", 0, false
	}

	base, ok := fs.objectPointer(f.Object, objSem, t)
	if !ok {
		return "", "", 0, false
	}

	cur := base
	curType := objSem
	for _, step := range fd.Path {
		stLL := fs.stepStructType(step, curType)
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 %d", gep, stLL, cur, step.Index)
		cur = gep
		curType = fs.stepTargetType(step, curType)
	}

	sem := mono.Apply(fs.g.Types, fs.g.declSubs(t), fd.Type)
	return cur, fs.g.llvmValueType(sem), sem, true
}

// objectPointer produces a pointer to the receiver aggregate: reference
// class values and references already are pointers, lvalues take their
// address, anything else fails over to extraction by the caller.
func (fs *funcState) objectPointer(obj *ast.Expr, objSem types.TypeID, t types.Type) (string, bool) {
	declared := fs.g.InferType(fs, obj)
	if dt, ok := fs.g.Types.Lookup(declared); ok && (dt.Kind == types.KindRef || dt.Kind == types.KindPtr) {
		val, _, err := fs.genExpr(obj)
		if err != nil {
			return "", false
		}
		return val, true
	}
	if t.Kind == types.KindClass && !fs.g.isValueClass(t.Name) {
		val, _, err := fs.genExpr(obj)
		if err != nil {
			return "", false
		}
		return val, true
	}
	ptr, _, _, ok := fs.genAddr(obj)
	return ptr, ok
}

// stepStructType spells the struct type a path step indexes into. The
// first hop uses the receiver's own specialization; embedded ancestors are
// concrete classes.
func (fs *funcState) stepStructType(step symbols.PathStep, curType types.TypeID) string {
	t, ok := fs.g.Types.Lookup(curType)
	if ok && t.Name == step.Type {
		return fs.g.llvmAggType(curType)
	}
	id := fs.g.Types.Intern(types.MakeClass(step.Type, nil))
	return fs.g.llvmAggType(id)
}

// llvmAggType is the struct spelling of a named aggregate, even when the
// value form is a pointer (reference classes).
func (g *Generator) llvmAggType(id types.TypeID) string {
	t, ok := g.Types.Lookup(id)
	if !ok {
		return "i8"
	}
	switch t.Kind {
	case types.KindNamed:
		g.ensureNamedDef(id, t)
		return "%struct." + g.Types.Mangle(id)
	case types.KindClass:
		g.ensureClassDef(id, t)
		return "%struct." + g.Types.Mangle(id)
	}
	return g.llvmValueType(id)
}

func (fs *funcState) stepTargetType(step symbols.PathStep, curType types.TypeID) types.TypeID {
	if step.Index == 0 {
		if c, ok := fs.g.Env.LookupClass(step.Type); ok && c.Base != "" {
			return fs.g.Types.Intern(types.MakeClass(c.Base, nil))
		}
	}
	return curType
}

// genFieldExtract reads a field out of an rvalue aggregate without
// spilling it.
func (fs *funcState) genFieldExtract(e *ast.Expr, t types.Type) (string, string, error) {
	f := e.Field
	fd, _ := fs.g.Env.FieldOf(t.Name, f.Name)
	val, llty, err := fs.genExpr(f.Object)
	if err != nil {
		return "", "", err
	}
	sem := mono.Apply(fs.g.Types, fs.g.declSubs(t), fd.Type)
	if len(fd.Path) == 1 {
		reg := fs.nextReg()
		fs.line("  %s = extractvalue %s %s, %d", reg, llty, val, fd.Index)
		return reg, fs.g.llvmValueType(sem), nil
	}
	// inherited access needs an address walk
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s %s, ptr %s", llty, val, slot)
	cur := slot
	curType := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	for _, step := range fd.Path {
		stLL := fs.stepStructType(step, curType)
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 %d", gep, stLL, cur, step.Index)
		cur = gep
		curType = fs.stepTargetType(step, curType)
	}
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, fs.g.llvmValueType(sem), cur)
	return reg, fs.g.llvmValueType(sem), nil
}

func (fs *funcState) genTupleField(e *ast.Expr) (string, string, error) {
	f := e.Field
	objSem := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	t, ok := fs.g.Types.Lookup(objSem)
	if !ok || t.Kind != types.KindTuple || f.TupleIdx >= len(t.Args) {
		fs.errorf(diag.GenBadTupleIndex, e.Span, "tuple index .%d out of range", f.TupleIdx)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	elemLL := fs.g.llvmValueType(t.Args[f.TupleIdx])
	if ptr, _, _, ok := fs.genTupleFieldAddr(e); ok {
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr %s", reg, elemLL, ptr)
		return reg, elemLL, nil
	}
	val, llty, err := fs.genExpr(f.Object)
	if err != nil {
		return "", "", err
	}
	reg := fs.nextReg()
	fs.line("  %s = extractvalue %s %s, %d", reg, llty, val, f.TupleIdx)
	return reg, elemLL, nil
}

func (fs *funcState) genTupleFieldAddr(e *ast.Expr) (string, string, types.TypeID, bool) {
	f := e.Field
	objSem := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	t, ok := fs.g.Types.Lookup(objSem)
	if !ok || t.Kind != types.KindTuple || f.TupleIdx >= len(t.Args) {
		return "", "", 0, false
	}
	base, ok := fs.objectPointer(f.Object, objSem, t)
	if !ok {
		return "", "", 0, false
	}
	gep := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 %d", gep, fs.g.llvmValueType(objSem), base, f.TupleIdx)
	return gep, fs.g.llvmValueType(t.Args[f.TupleIdx]), t.Args[f.TupleIdx], true
}

// genVariantCtor builds a tagged-union value: stamp the discriminant,
// then lay the payload into the byte area at 8-byte slots.
func (fs *funcState) genVariantCtor(e *ast.Expr, enumName string, v symbols.EnumVariant) (string, string, error) {
	p := e.Path
	en, _ := fs.g.Env.LookupEnum(enumName)
	typeArgs := make([]types.TypeID, len(p.TypeArgs))
	for i, a := range p.TypeArgs {
		typeArgs[i] = fs.g.applySubs(fs, a)
	}
	subs := fs.g.bindAll(en.Generics, typeArgs)
	if len(en.Generics) > 0 {
		fs.g.Mono.Request(mono.JobEnum, enumName, "", typeArgs, subs)
	}
	sem := fs.g.Types.Intern(types.MakeNamed(enumName, en.Module, typeArgs))
	llty := fs.g.llvmValueType(sem)

	if len(v.Payload) != len(p.Args) {
		fs.errorf(diag.GenWrongArgCount, e.Span, "%s::%s expects %d values, got %d", enumName, v.Name, len(v.Payload), len(p.Args))
		return fs.zeroFor(sem)
	}

	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s zeroinitializer, ptr %s", llty, slot)
	tagPtr := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 0", tagPtr, llty, slot)
	fs.line("  store i32 %d, ptr %s", v.Tag, tagPtr)

	if len(v.Payload) > 0 {
		area := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 1", area, llty, slot)
		offset := 0
		for i, declared := range v.Payload {
			psem := mono.Apply(fs.g.Types, subs, declared)
			pll := fs.g.llvmValueType(psem)
			val, have, err := fs.genExpr(p.Args[i])
			if err != nil {
				return "", "", err
			}
			val, _ = fs.coerceValue(val, have, pll, psem)
			at := area
			if offset != 0 {
				at = fs.nextReg()
				fs.line("  %s = getelementptr i8, ptr %s, i64 %d", at, area, offset)
			}
			fs.line("  store %s %s, ptr %s", pll, val, at)
			offset += align8(fs.g.sizeOf(psem))
		}
	}

	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, llty, slot)
	return reg, llty, nil
}

// genUnitVariant builds a payload-free union value referenced by bare
// name.
func (fs *funcState) genUnitVariant(enumName string, typeArgs []types.TypeID, tag int, e *ast.Expr) (string, string, error) {
	en, _ := fs.g.Env.LookupEnum(enumName)
	sem := fs.g.Types.Intern(types.MakeNamed(enumName, en.Module, typeArgs))
	llty := fs.g.llvmValueType(sem)
	reg := fs.nextReg()
	fs.line("  %s = insertvalue %s zeroinitializer, i32 %d, 0", reg, llty, tag)
	return reg, llty, nil
}
