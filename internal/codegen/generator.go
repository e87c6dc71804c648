// Package codegen lowers typed expression trees into textual,
// register-based IR. The Generator owns module-level state (type
// definitions, interned string constants, the generated-entity registry);
// a funcState is created per function and discarded afterwards, so codegen
// of one function never observes another's registers or locals.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/source"
	"tml/internal/symbols"
	"tml/internal/types"
)

// Generator is the compilation context threaded through every component.
type Generator struct {
	Types    *types.Interner
	Env      *symbols.Env
	Mono     *mono.Engine
	Reporter diag.Reporter
	Strings  *source.Interner

	typeDefs  strings.Builder
	consts    strings.Builder
	funcs     strings.Builder
	strNames  map[source.StringID]string
	registry  map[string]string
	typesSeen map[string]bool

	funcBodies   map[string]*ast.Func
	methodBodies map[string]map[string]*ast.Func

	strCount     int
	closureCount int
}

// New constructs a Generator over shared registries. reporter may be nil;
// diagnostics are then dropped.
func New(in *types.Interner, env *symbols.Env, reporter diag.Reporter) *Generator {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	return &Generator{
		Types:     in,
		Env:       env,
		Mono:      mono.NewEngine(in),
		Reporter:  reporter,
		Strings:   source.NewInterner(),
		strNames:  make(map[source.StringID]string),
		registry:  make(map[string]string),
		typesSeen: make(map[string]bool),
	}
}

// Registry exposes the generated-entity registry: mangled name to emitted
// definition. Downstream assembly consumes it to materialize one physical
// definition per distinct monomorphization.
func (g *Generator) Registry() map[string]string {
	return g.registry
}

// funcState carries all per-function codegen state. It is reset between
// functions by construction: every lowered function gets a fresh value.
type funcState struct {
	g   *Generator
	fn  *ast.Func
	buf strings.Builder

	regID   int
	labelID int

	locals map[string]*local
	drops  []dropEntry

	retType  types.TypeID
	implType string // mangled receiver type inside impl methods, "" otherwise
	subs     map[string]types.TypeID
}

// local is one name binding in the current function scope.
type local struct {
	Reg     string // storage handle: alloca pointer, or value register for direct params
	LLVM    string // low-level storage type
	Sem     types.TypeID
	Mutable bool
	IsRef   bool
	Direct  bool // direct parameter: Reg holds the value itself, no load needed
}

// dropEntry is a pending scope-exit cleanup action.
type dropEntry struct {
	ptr      string
	typeName string
}

func (g *Generator) newFuncState(fn *ast.Func) *funcState {
	return &funcState{
		g:       g,
		fn:      fn,
		locals:  make(map[string]*local),
		retType: fn.Result,
	}
}

func (fs *funcState) nextReg() string {
	fs.regID++
	return fmt.Sprintf("%%t%d", fs.regID)
}

func (fs *funcState) nextLabel(prefix string) string {
	fs.labelID++
	return fmt.Sprintf("%s.%d", prefix, fs.labelID)
}

func (fs *funcState) line(format string, args ...any) {
	fmt.Fprintf(&fs.buf, format, args...)
	fs.buf.WriteByte('\n')
}

func (fs *funcState) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	diag.Error(fs.g.Reporter, code, sp, fmt.Sprintf(format, args...))
}

// bindLocal registers a binding in the current scope and schedules its
// drop if the type declares one.
func (fs *funcState) bindLocal(name string, l *local) {
	fs.locals[name] = l
	if l.Direct || l.IsRef {
		return
	}
	if typeName, ok := fs.g.droppableName(l.Sem); ok {
		fs.drops = append(fs.drops, dropEntry{ptr: l.Reg, typeName: typeName})
	}
}

// droppableName reports the mangled type name carrying a drop method.
func (g *Generator) droppableName(id types.TypeID) (string, bool) {
	t, ok := g.Types.Lookup(id)
	if !ok || (t.Kind != types.KindNamed && t.Kind != types.KindClass) {
		return "", false
	}
	name := g.Types.Mangle(id)
	if s, ok := g.Env.LookupStruct(t.Name); ok {
		if _, has := s.Methods["drop"]; has {
			return name, true
		}
	}
	if e, ok := g.Env.LookupEnum(t.Name); ok {
		if _, has := e.Methods["drop"]; has {
			return name, true
		}
	}
	if c, ok := g.Env.LookupClass(t.Name); ok {
		for i := range c.Methods {
			if c.Methods[i].Name == "drop" {
				return name, true
			}
		}
	}
	return "", false
}

// emitDrops runs every pending cleanup action, newest first. Called on
// each exit path, including the early return lowered for the try operator.
func (fs *funcState) emitDrops() {
	for i := len(fs.drops) - 1; i >= 0; i-- {
		d := fs.drops[i]
		fs.line("  call void @tml_%s_drop(ptr %s)", d.typeName, d.ptr)
	}
}

// internString returns the global constant name for a literal, emitting
// the constant on first use. Identical literals share one definition.
func (g *Generator) internString(s string) string {
	id := g.Strings.Intern(s)
	if name, ok := g.strNames[id]; ok {
		return name
	}
	g.strCount++
	name := fmt.Sprintf("@str.%d", g.strCount)
	data := encodeStringConst(s)
	fmt.Fprintf(&g.consts, "%s = private unnamed_addr constant [%d x i8] c\"%s\", align 1\n",
		name, len(s)+1, data)
	g.strNames[id] = name
	return name
}

func encodeStringConst(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' && c < 0x7f {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\%02X", c)
		}
	}
	b.WriteString("\\00")
	return b.String()
}

// registerTypeDef emits a named struct type once and records it in the
// generated-entity registry.
func (g *Generator) registerTypeDef(mangled, def string) {
	if g.typesSeen[mangled] {
		return
	}
	g.typesSeen[mangled] = true
	line := fmt.Sprintf("%%struct.%s = type %s", mangled, def)
	g.typeDefs.WriteString(line)
	g.typeDefs.WriteByte('\n')
	g.registry["type:"+mangled] = line
}

// registerFuncDef records an emitted function definition.
func (g *Generator) registerFuncDef(name, def string) {
	g.registry["fn:"+name] = def
	g.funcs.WriteString(def)
}

// EmitFunc lowers one function and appends its definition to the module.
// All per-function state lives in the funcState and dies with it.
func (g *Generator) EmitFunc(fn *ast.Func) error {
	return g.emitFuncWithSubs(fn, "tml_"+fn.Name, "", nil)
}

// emitFuncWithSubs lowers a function body under an active substitution
// map; used both for plain functions and monomorphized method bodies.
func (g *Generator) emitFuncWithSubs(fn *ast.Func, symbol, implType string, subs map[string]types.TypeID) error {
	fs := g.newFuncState(fn)
	fs.implType = implType
	fs.subs = subs
	fs.retType = mono.Apply(g.Types, subs, fn.Result)

	retLL := g.llvmType(fs.retType)

	var header strings.Builder
	fmt.Fprintf(&header, "define %s @%s(", retLL, symbol)
	for i, p := range fn.Params {
		if i > 0 {
			header.WriteString(", ")
		}
		pt := mono.Apply(g.Types, subs, p.Type)
		fmt.Fprintf(&header, "%s %%%s", g.llvmValueType(pt), p.Name)
	}
	header.WriteString(") {\nentry:\n")

	// Parameters: spill to allocas so address-of and mutation work; the
	// receiver pointer of impl methods stays direct.
	for i, p := range fn.Params {
		pt := mono.Apply(g.Types, subs, p.Type)
		llty := g.llvmValueType(pt)
		if i == 0 && implType != "" && p.Name == "this" {
			fs.locals[p.Name] = &local{Reg: "%this", LLVM: llty, Sem: pt, Direct: true}
			continue
		}
		slot := fs.nextReg()
		fs.line("  %s = alloca %s", slot, llty)
		fs.line("  store %s %%%s, ptr %s", llty, p.Name, slot)
		fs.bindLocal(p.Name, &local{Reg: slot, LLVM: llty, Sem: pt, Mutable: true})
	}

	terminated := false
	for _, st := range fn.Body {
		term, err := fs.genStmt(st)
		if err != nil {
			return err
		}
		terminated = term
	}
	if !terminated {
		fs.emitDrops()
		if retLL == "void" {
			fs.line("  ret void")
		} else {
			fs.line("  ret %s %s", retLL, zeroValue(retLL))
		}
	}

	def := header.String() + fs.buf.String() + "}\n\n"
	g.registerFuncDef(symbol, def)
	return nil
}

// genStmt lowers one statement; reports whether it terminated the block.
func (fs *funcState) genStmt(st *ast.Stmt) (bool, error) {
	switch st.Kind {
	case ast.StmtLet:
		return false, fs.genLet(st.Let, st.Span)
	case ast.StmtExpr:
		_, _, err := fs.genExpr(st.Expr)
		return false, err
	case ast.StmtReturn:
		return true, fs.genReturn(st.Return)
	}
	return false, fmt.Errorf("codegen: unknown statement kind %d", st.Kind)
}

func (fs *funcState) genLet(let *ast.LetStmt, sp source.Span) error {
	val, llty, err := fs.genExpr(let.Value)
	if err != nil {
		return err
	}
	sem := let.Type
	if sem == types.NoTypeID {
		sem = fs.g.InferType(fs, let.Value)
	}
	sem = mono.Apply(fs.g.Types, fs.subs, sem)
	declLL := fs.g.llvmValueType(sem)
	val, llty = fs.coerceValue(val, llty, declLL, sem)
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s %s, ptr %s", llty, val, slot)
	isRef := false
	if t, ok := fs.g.Types.Lookup(sem); ok {
		isRef = t.Kind == types.KindRef || t.Kind == types.KindPtr
	}
	fs.bindLocal(let.Name, &local{Reg: slot, LLVM: llty, Sem: sem, Mutable: let.Mutable, IsRef: isRef})
	return nil
}

func (fs *funcState) genReturn(ret *ast.ReturnStmt) error {
	retLL := fs.g.llvmType(fs.retType)
	if ret.Value == nil || retLL == "void" {
		fs.emitDrops()
		fs.line("  ret void")
		return nil
	}
	val, llty, err := fs.genExpr(ret.Value)
	if err != nil {
		return err
	}
	val, llty = fs.coerceValue(val, llty, retLL, fs.retType)
	fs.emitDrops()
	fs.line("  ret %s %s", llty, val)
	return nil
}

// Module assembles the final IR text: preamble, runtime declarations,
// type definitions, string constants, functions.
func (g *Generator) Module() string {
	var b strings.Builder
	b.WriteString("target triple = \"x86_64-linux-gnu\"\n\n")
	for _, d := range runtimeDecls() {
		fmt.Fprintf(&b, "declare %s @%s(%s)\n", d.ret, d.name, strings.Join(d.params, ", "))
	}
	b.WriteByte('\n')
	b.WriteString(g.typeDefs.String())
	b.WriteByte('\n')
	b.WriteString(g.consts.String())
	b.WriteByte('\n')
	b.WriteString(g.funcs.String())
	return b.String()
}

type runtimeDecl struct {
	ret    string
	name   string
	params []string
}

// runtimeDecls lists the runtime entry points generated code may call.
func runtimeDecls() []runtimeDecl {
	decls := []runtimeDecl{
		{"ptr", "tml_alloc", []string{"i64"}},
		{"void", "tml_free", []string{"ptr"}},
		{"ptr", "str_concat", []string{"ptr", "ptr"}},
		{"i1", "str_eq", []string{"ptr", "ptr"}},
		{"i64", "str_len", []string{"ptr"}},
		{"ptr", "str_alloc", []string{"i64"}},
		{"i64", "str_hash", []string{"ptr"}},
		{"ptr", "str_from_int", []string{"i64"}},
		{"ptr", "str_from_uint", []string{"i64"}},
		{"ptr", "str_from_float", []string{"double"}},
		{"ptr", "str_from_bool", []string{"i1"}},
		{"ptr", "str_from_char", []string{"i32"}},
		{"ptr", "str_substring", []string{"ptr", "i64", "i64"}},
		{"i64", "str_find", []string{"ptr", "ptr"}},
		{"ptr", "list_new", []string{"i64"}},
		{"void", "list_push", []string{"ptr", "ptr"}},
		{"ptr", "list_get", []string{"ptr", "i64"}},
		{"void", "list_set", []string{"ptr", "i64", "ptr"}},
		{"ptr", "list_pop", []string{"ptr"}},
		{"i64", "list_len", []string{"ptr"}},
		{"void", "list_clear", []string{"ptr"}},
		{"ptr", "map_new", []string{}},
		{"void", "map_insert", []string{"ptr", "ptr", "ptr"}},
		{"ptr", "map_get", []string{"ptr", "ptr"}},
		{"i1", "map_contains", []string{"ptr", "ptr"}},
		{"i1", "map_remove", []string{"ptr", "ptr"}},
		{"i64", "map_len", []string{"ptr"}},
		{"ptr", "buf_new", []string{"i64"}},
		{"void", "buf_write", []string{"ptr", "ptr", "i64"}},
		{"i64", "buf_len", []string{"ptr"}},
		{"ptr", "buf_bytes", []string{"ptr"}},
		{"void", "llvm.memcpy.p0.p0.i64", []string{"ptr", "ptr", "i64", "i1"}},
	}
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].name < decls[j].name })
	return decls
}
