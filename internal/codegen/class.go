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

// genClassNew constructs a class instance. The allocation strategy was
// decided once at registration: value classes build the aggregate in a
// stack slot and yield it by value; reference classes heap-allocate,
// stamp the vtable pointer and yield the pointer.
func (fs *funcState) genClassNew(e *ast.Expr) (string, string, error) {
	lit := e.StructLit
	c, ok := fs.g.Env.LookupClass(lit.Name)
	if !ok {
		fs.errorf(diag.GenUnknownType, e.Span, "unknown class %q", lit.Name)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	typeArgs := make([]types.TypeID, len(lit.TypeArgs))
	for i, a := range lit.TypeArgs {
		typeArgs[i] = fs.g.applySubs(fs, a)
	}
	subs := fs.g.bindAll(c.Generics, typeArgs)
	sem := fs.g.Types.Intern(types.MakeClass(c.Name, typeArgs))
	aggLL := fs.g.llvmAggType(sem)

	if c.ValueClass {
		slot := fs.nextReg()
		fs.line("  %s = alloca %s", slot, aggLL)
		fs.line("  store %s zeroinitializer, ptr %s", aggLL, slot)
		if err := fs.initClassFields(e, c, subs, aggLL, slot); err != nil {
			return "", "", err
		}
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr %s", reg, aggLL, slot)
		return reg, aggLL, nil
	}

	// instance size without a data-layout oracle: address of element 1
	// from a null base is the type's size
	szp := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr null, i32 1", szp, aggLL)
	sz := fs.nextReg()
	fs.line("  %s = ptrtoint ptr %s to i64", sz, szp)
	obj := fs.nextReg()
	fs.line("  %s = call ptr @tml_alloc(i64 %s)", obj, sz)

	fs.storeVTable(c, aggLL, obj)
	if err := fs.initClassFields(e, c, subs, aggLL, obj); err != nil {
		return "", "", err
	}
	return obj, "ptr", nil
}

// storeVTable writes the class's dispatch table into the root slot,
// walking down embedded bases to reach it.
func (fs *funcState) storeVTable(c *symbols.ClassInfo, aggLL, obj string) {
	fs.g.ensureVTable(c)
	cur := obj
	curLL := aggLL
	for base := c.Base; base != ""; {
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 0", gep, curLL, cur)
		cur = gep
		parent, ok := fs.g.Env.LookupClass(base)
		if !ok {
			break
		}
		curLL = fs.g.llvmAggType(fs.g.Types.Intern(types.MakeClass(parent.Name, nil)))
		base = parent.Base
	}
	slot := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 0", slot, curLL, cur)
	fs.line("  store ptr @vtable.%s, ptr %s", c.Name, slot)
}

func (fs *funcState) initClassFields(e *ast.Expr, c *symbols.ClassInfo, subs map[string]types.TypeID, aggLL, base string) error {
	for _, init := range e.StructLit.Fields {
		fd, ok := flatFieldByName(c.Flat, init.Name)
		if !ok {
			fs.errorf(diag.GenBadClassNew, init.Span, "class %s has no field %q", c.Name, init.Name)
			continue
		}
		fsem := mono.Apply(fs.g.Types, subs, fd.Type)
		fLL := fs.g.llvmValueType(fsem)
		val, have, err := fs.genExpr(init.Value)
		if err != nil {
			return err
		}
		val, _ = fs.coerceValue(val, have, fLL, fsem)

		cur := base
		curLL := aggLL
		for _, step := range fd.Path {
			gep := fs.nextReg()
			fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 %d", gep, curLL, cur, step.Index)
			cur = gep
			if step.Index == 0 {
				if owner, ok := fs.g.Env.LookupClass(step.Type); ok && owner.Base != "" {
					curLL = fs.g.llvmAggType(fs.g.Types.Intern(types.MakeClass(owner.Base, nil)))
				}
			}
		}
		fs.line("  store %s %s, ptr %s", fLL, val, cur)
	}
	return nil
}

func flatFieldByName(fields []symbols.FieldDesc, name string) (symbols.FieldDesc, bool) {
	for i := range fields {
		if fields[i].Name == name {
			return fields[i], true
		}
	}
	return symbols.FieldDesc{}, false
}

// vtableLayout lists the virtual slots of a class: root-declared methods
// first in declaration order, then virtuals introduced further down.
// Overrides keep the slot of the method they replace.
func (g *Generator) vtableLayout(c *symbols.ClassInfo) []string {
	chain := g.Env.ClassChain(c.Name)
	var slots []string
	seen := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for j := range chain[i].Methods {
			m := &chain[i].Methods[j]
			if m.Static || seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			slots = append(slots, m.Name)
		}
	}
	return slots
}

// ensureVTable emits the class's dispatch table constant once. Each slot
// points at the most-derived implementation visible from this class.
func (g *Generator) ensureVTable(c *symbols.ClassInfo) {
	key := "vtable:" + c.Name
	if _, done := g.registry[key]; done {
		return
	}
	slots := g.vtableLayout(c)
	entries := make([]string, len(slots))
	for i, name := range slots {
		owner := g.implementingClass(c, name)
		entries[i] = fmt.Sprintf("ptr @tml_%s_%s", owner, name)
	}
	var def string
	if len(entries) == 0 {
		def = fmt.Sprintf("@vtable.%s = internal constant [1 x ptr] [ptr null]\n", c.Name)
	} else {
		def = fmt.Sprintf("@vtable.%s = internal constant [%d x ptr] [%s]\n",
			c.Name, len(entries), strings.Join(entries, ", "))
	}
	g.registry[key] = def
	g.consts.WriteString(def)
}

// implementingClass finds the nearest class in the chain that declares or
// overrides the method.
func (g *Generator) implementingClass(c *symbols.ClassInfo, method string) string {
	for _, cls := range g.Env.ClassChain(c.Name) {
		for i := range cls.Methods {
			if cls.Methods[i].Name == method && !cls.Methods[i].Static {
				return cls.Name
			}
		}
	}
	return c.Name
}
