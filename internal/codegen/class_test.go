package codegen

import (
	"strings"
	"testing"

	"tml/internal/ast"
	"tml/internal/symbols"
	"tml/internal/types"
)

func structLit(name string, fields map[string]*ast.Expr) *ast.Expr {
	lit := &ast.StructLitExpr{Name: name}
	for _, k := range sortedKeys(fields) {
		lit.Fields = append(lit.Fields, ast.FieldInit{Name: k, Value: fields[k]})
	}
	return &ast.Expr{Kind: ast.ExprStructLit, StructLit: lit}
}

func sortedKeys(m map[string]*ast.Expr) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func fieldOf(obj *ast.Expr, name string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprField, Field: &ast.FieldExpr{Object: obj, Name: name, TupleIdx: -1}}
}

func methodCall(recv *ast.Expr, name string, args ...*ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprMethodCall, Method: &ast.MethodCallExpr{Receiver: recv, Method: name, Args: args}}
}

func registerChain(g *Generator) {
	bi := g.Types.Builtins()
	g.Env.RegisterClass(&symbols.ClassInfo{
		Name:   "Shape",
		Fields: []symbols.FieldDesc{{Name: "id", Type: bi.I32}},
		Methods: []symbols.MethodSig{
			{Name: "describe", Result: bi.Str},
		},
	})
	g.Env.RegisterClass(&symbols.ClassInfo{
		Name:   "Polygon",
		Base:   "Shape",
		Fields: []symbols.FieldDesc{{Name: "sides", Type: bi.I32}},
	})
	g.Env.RegisterClass(&symbols.ClassInfo{
		Name:   "Triangle",
		Base:   "Polygon",
		Fields: []symbols.FieldDesc{{Name: "base", Type: bi.F64}},
	})
}

func TestValueClassAllocatesOnStack(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	g.Env.RegisterClass(&symbols.ClassInfo{
		Name:   "Point",
		Sealed: true,
		Fields: []symbols.FieldDesc{{Name: "x", Type: bi.I32}, {Name: "y", Type: bi.I32}},
	})
	fn := &ast.Func{
		Name:   "origin",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("p", types.NoTypeID, structLit("Point", map[string]*ast.Expr{"x": intLit(1), "y": intLit(2)})),
		},
	}
	ir := emitOne(t, g, fn)
	if strings.Contains(ir, "tml_alloc") {
		t.Fatalf("value class must not heap-allocate:\n%s", ir)
	}
	if !strings.Contains(ir, "alloca %struct.Point") {
		t.Fatalf("value class must build in a stack slot:\n%s", ir)
	}
	if !strings.Contains(g.Module(), "%struct.Point = type { i32, i32 }") {
		t.Fatalf("value class fields start at slot 0:\n%s", g.Module())
	}
}

func TestReferenceClassHeapAllocatesAndStampsVTable(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	registerChain(g)
	fn := &ast.Func{
		Name:   "mk",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("s", g.Types.Intern(types.MakeClass("Shape", nil)),
				structLit("Shape", map[string]*ast.Expr{"id": intLit(7)})),
		},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call ptr @tml_alloc") {
		t.Fatalf("reference class must heap-allocate:\n%s", ir)
	}
	if !strings.Contains(ir, "store ptr @vtable.Shape") {
		t.Fatalf("constructor must stamp the dispatch table:\n%s", ir)
	}
	if !strings.Contains(g.Module(), "%struct.Shape = type { ptr, i32 }") {
		t.Fatalf("reference class reserves slot 0 for the vtable:\n%s", g.Module())
	}
}

func TestInheritedFieldAccessWalksOneStepPerLevel(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	registerChain(g)
	tri := g.Types.Intern(types.MakeClass("Triangle", nil))
	fn := &ast.Func{
		Name:   "ident_of",
		Params: []ast.Param{{Name: "t", Type: tri}},
		Result: bi.I32,
		Body:   []*ast.Stmt{retStmt(fieldOf(ident("t"), "id"))},
	}
	ir := emitOne(t, g, fn)
	for _, step := range []string{
		"getelementptr %struct.Triangle",
		"getelementptr %struct.Polygon",
		"getelementptr %struct.Shape",
	} {
		if !strings.Contains(ir, step) {
			t.Errorf("missing address step %q in:\n%s", step, ir)
		}
	}
	if n := strings.Count(ir, "getelementptr %struct."); n != 3 {
		t.Fatalf("two-level-inherited field wants exactly 3 steps, got %d:\n%s", n, ir)
	}
}

func TestOwnFieldAccessIsSingleStep(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	registerChain(g)
	tri := g.Types.Intern(types.MakeClass("Triangle", nil))
	fn := &ast.Func{
		Name:   "base_of",
		Params: []ast.Param{{Name: "t", Type: tri}},
		Result: bi.F64,
		Body:   []*ast.Stmt{retStmt(fieldOf(ident("t"), "base"))},
	}
	ir := emitOne(t, g, fn)
	if n := strings.Count(ir, "getelementptr %struct."); n != 1 {
		t.Fatalf("own field wants exactly 1 step, got %d:\n%s", n, ir)
	}
}

func TestInstanceMethodBindsDirectly(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	registerChain(g)
	shape := g.Types.Intern(types.MakeClass("Shape", nil))
	fn := &ast.Func{
		Name:   "show",
		Params: []ast.Param{{Name: "s", Type: shape}},
		Result: bi.Str,
		Body:   []*ast.Stmt{retStmt(methodCall(ident("s"), "describe"))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call ptr @tml_Shape_describe(ptr") {
		t.Fatalf("instance method must bind to the declaring class by name:\n%s", ir)
	}
	if strings.Contains(ir, "load ptr, ptr") {
		t.Fatalf("method dispatch must not go through the vtable:\n%s", ir)
	}
}

func TestInheritedMethodBindsToNearestAncestor(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	registerChain(g)
	tri := g.Types.Intern(types.MakeClass("Triangle", nil))
	fn := &ast.Func{
		Name:   "show_tri",
		Params: []ast.Param{{Name: "t", Type: tri}},
		Result: bi.Str,
		Body:   []*ast.Stmt{retStmt(methodCall(ident("t"), "describe"))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call ptr @tml_Shape_describe(ptr") {
		t.Fatalf("inherited method must bind to the ancestor that declares it:\n%s", ir)
	}
	if strings.Contains(ir, "@tml_Triangle_describe") {
		t.Fatalf("derived class declares no describe of its own:\n%s", ir)
	}
}

func TestValueClassMethodBindsDirectly(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	g.Env.RegisterClass(&symbols.ClassInfo{
		Name:   "Celsius",
		Sealed: true,
		Fields: []symbols.FieldDesc{{Name: "deg", Type: bi.F64}},
		Methods: []symbols.MethodSig{
			{Name: "freezing", Result: bi.Bool, Static: true},
		},
	})
	cel := g.Types.Intern(types.MakeClass("Celsius", nil))
	fn := &ast.Func{
		Name:   "chk",
		Params: []ast.Param{{Name: "c", Type: cel}},
		Result: bi.Bool,
		Body:   []*ast.Stmt{retStmt(methodCall(ident("c"), "freezing"))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call i1 @tml_Celsius_freezing") {
		t.Fatalf("value-class method must bind by name:\n%s", ir)
	}
	if strings.Contains(ir, "vtable") {
		t.Fatalf("value class has no dispatch table:\n%s", ir)
	}
}

func TestStructLiteralLayout(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	g.Env.RegisterStruct(&symbols.StructInfo{
		Name: "Pair",
		Fields: []symbols.FieldDesc{
			{Name: "a", Type: bi.I32},
			{Name: "b", Type: bi.Str},
		},
	})
	fn := &ast.Func{
		Name:   "mkpair",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("p", types.NoTypeID, structLit("Pair", map[string]*ast.Expr{"a": intLit(1), "b": strLit("x")})),
		},
	}
	emitOne(t, g, fn)
	if !strings.Contains(g.Module(), "%struct.Pair = type { i32, ptr }") {
		t.Fatalf("struct layout must follow declaration order:\n%s", g.Module())
	}
}

func identityBody(g *Generator) (*ast.Func, types.TypeID) {
	tvar := g.Types.Intern(types.MakeNamed("T", "", nil))
	fn := &ast.Func{
		Name:     "identity",
		Generics: []string{"T"},
		Params:   []ast.Param{{Name: "x", Type: tvar}},
		Result:   tvar,
		Body:     []*ast.Stmt{retStmt(ident("x"))},
	}
	return fn, tvar
}

func TestGenericCallSchedulesOneSpecializationPerShape(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	idFn, tvar := identityBody(g)
	g.Env.RegisterFunc(&symbols.FuncSig{
		Name: "identity", Generics: []string{"T"},
		Params: []types.TypeID{tvar}, Result: tvar,
	})
	g.RegisterFuncBody(idFn)

	call := func(arg *ast.Expr) *ast.Expr {
		return &ast.Expr{Kind: ast.ExprCall, Call: &ast.CallExpr{Callee: ident("identity"), Args: []*ast.Expr{arg}}}
	}
	g.RegisterFuncBody(&ast.Func{
		Name:   "main",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			exprStmt(call(intLit(1))),
			exprStmt(call(intLit(2))),
			exprStmt(call(strLit("s"))),
		},
	})
	if err := g.EmitAll(); err != nil {
		t.Fatalf("EmitAll: %v", err)
	}

	if _, ok := g.Registry()["fn:tml_identity__I32"]; !ok {
		t.Fatal("missing I32 specialization")
	}
	if _, ok := g.Registry()["fn:tml_identity__Str"]; !ok {
		t.Fatal("missing Str specialization")
	}
	if n := strings.Count(g.Module(), "define i32 @tml_identity__I32"); n != 1 {
		t.Fatalf("same shape must specialize exactly once, got %d", n)
	}
	mainIR := g.Registry()["fn:tml_main"]
	if !strings.Contains(mainIR, "call i32 @tml_identity__I32(i32 1)") {
		t.Fatalf("call site must target the mangled specialization:\n%s", mainIR)
	}
}

func TestImplMethodOnGenericStructSpecializes(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	tvar := g.Types.Intern(types.MakeNamed("T", "", nil))
	g.Env.RegisterStruct(&symbols.StructInfo{
		Name:     "Box",
		Generics: []string{"T"},
		Fields:   []symbols.FieldDesc{{Name: "value", Type: tvar}},
		Methods: map[string]*symbols.MethodSig{
			"get": {Name: "get", Result: tvar},
		},
	})
	g.RegisterMethodBody("Box", &ast.Func{
		Name:   "get",
		Params: []ast.Param{{Name: "this", Type: g.Types.Intern(types.MakeRef(tvar, false))}},
		Result: tvar,
		Body:   []*ast.Stmt{retStmt(intLit(0))},
	})

	box := g.Types.Intern(types.MakeNamed("Box", "", []types.TypeID{bi.I32}))
	g.RegisterFuncBody(&ast.Func{
		Name:   "use",
		Params: []ast.Param{{Name: "b", Type: box}},
		Result: bi.Unit,
		Body:   []*ast.Stmt{exprStmt(methodCall(ident("b"), "get"))},
	})
	if err := g.EmitAll(); err != nil {
		t.Fatalf("EmitAll: %v", err)
	}
	useIR := g.Registry()["fn:tml_use"]
	if !strings.Contains(useIR, "@tml_Box__I32_get") {
		t.Fatalf("call must target the specialized method symbol:\n%s", useIR)
	}
	if _, ok := g.Registry()["fn:tml_Box__I32_get"]; !ok {
		t.Fatal("specialized method body was not emitted")
	}
}
