package codegen

import (
	"strings"
	"testing"

	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/symbols"
	"tml/internal/types"
)

func newTestGen() *Generator {
	return New(types.NewInterner(), symbols.NewEnv(), diag.NopReporter{})
}

func intLit(v uint64) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLiteral, Lit: &ast.LiteralExpr{LitKind: ast.LitInt, IntVal: v}}
}

func strLit(s string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLiteral, Lit: &ast.LiteralExpr{LitKind: ast.LitString, StrVal: s}}
}

func ident(name string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprIdent, Ident: &ast.IdentExpr{Name: name}}
}

func bin(op ast.BinaryOp, l, r *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprBinary, Binary: &ast.BinaryExpr{Op: op, Left: l, Right: r}}
}

func exprStmt(e *ast.Expr) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtExpr, Expr: e}
}

func letStmt(name string, ty types.TypeID, value *ast.Expr) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: name, Type: ty, Value: value}}
}

func retStmt(e *ast.Expr) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtReturn, Return: &ast.ReturnStmt{Value: e}}
}

func emitOne(t *testing.T, g *Generator, fn *ast.Func) string {
	t.Helper()
	if err := g.EmitFunc(fn); err != nil {
		t.Fatalf("EmitFunc(%s): %v", fn.Name, err)
	}
	def, ok := g.Registry()["fn:tml_"+fn.Name]
	if !ok {
		t.Fatalf("no definition registered for %s", fn.Name)
	}
	return def
}

func TestMixedWidthPromotionZeroExtendsUnsigned(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "mix",
		Params: []ast.Param{{Name: "a", Type: bi.U8}, {Name: "b", Type: bi.I32}},
		Result: bi.Unit,
		Body:   []*ast.Stmt{exprStmt(bin(ast.BinAdd, ident("a"), ident("b")))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "zext i8") {
		t.Fatalf("unsigned operand must zero-extend, got:\n%s", ir)
	}
	if !strings.Contains(ir, "add i32") {
		t.Fatalf("promoted add must run at i32, got:\n%s", ir)
	}
	if strings.Contains(ir, "sext i8") {
		t.Fatalf("u8 operand must not sign-extend:\n%s", ir)
	}
}

func TestSignednessSelectsDivAndShift(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "ops",
		Params: []ast.Param{{Name: "u", Type: bi.U32}, {Name: "i", Type: bi.I32}},
		Result: bi.Unit,
		Body: []*ast.Stmt{
			exprStmt(bin(ast.BinDiv, ident("u"), ident("u"))),
			exprStmt(bin(ast.BinDiv, ident("i"), ident("i"))),
			exprStmt(bin(ast.BinShr, ident("u"), ident("u"))),
			exprStmt(bin(ast.BinShr, ident("i"), ident("i"))),
			exprStmt(bin(ast.BinMod, ident("u"), ident("u"))),
			exprStmt(bin(ast.BinMod, ident("i"), ident("i"))),
		},
	}
	ir := emitOne(t, g, fn)
	for _, want := range []string{"udiv", "sdiv", "lshr", "ashr", "urem", "srem"} {
		if !strings.Contains(ir, want) {
			t.Errorf("missing %s in:\n%s", want, ir)
		}
	}
}

func TestUnsignedComparisonPredicates(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "cmp",
		Params: []ast.Param{{Name: "u", Type: bi.U64}, {Name: "i", Type: bi.I64}},
		Result: bi.Unit,
		Body: []*ast.Stmt{
			exprStmt(bin(ast.BinLess, ident("u"), ident("u"))),
			exprStmt(bin(ast.BinLess, ident("i"), ident("i"))),
		},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "icmp ult") || !strings.Contains(ir, "icmp slt") {
		t.Fatalf("comparison predicates must follow signedness:\n%s", ir)
	}
}

func TestLiteralDefaultsToI32AndWideLiteralToI64(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "lits",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("x", types.NoTypeID, intLit(5)),
			letStmt("y", types.NoTypeID, intLit(3000000000)),
		},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "store i32 5") {
		t.Fatalf("small literal must default to i32:\n%s", ir)
	}
	if !strings.Contains(ir, "store i64 3000000000") {
		t.Fatalf("literal beyond 32-bit range must widen to i64:\n%s", ir)
	}
}

func TestAllLiteralConcatFoldsToOneConstant(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	concat := bin(ast.BinAdd, bin(ast.BinAdd, strLit("Hello"), strLit(" ")), strLit("World!"))
	fn := &ast.Func{
		Name:   "greet",
		Result: bi.Str,
		Body:   []*ast.Stmt{retStmt(concat)},
	}
	ir := emitOne(t, g, fn)
	if strings.Contains(ir, "str_concat") {
		t.Fatalf("all-literal chain must fold, not call the runtime:\n%s", ir)
	}
	if !strings.Contains(g.Module(), `c"Hello World!\00"`) {
		t.Fatalf("folded constant missing from module:\n%s", g.Module())
	}
}

func TestConcatChainUsesSingleAllocation(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	chain := bin(ast.BinAdd,
		bin(ast.BinAdd,
			bin(ast.BinAdd, strLit("["), ident("s")),
			strLit("]")),
		ident("s"))
	fn := &ast.Func{
		Name:   "wrap",
		Params: []ast.Param{{Name: "s", Type: bi.Str}},
		Result: bi.Str,
		Body:   []*ast.Stmt{retStmt(chain)},
	}
	ir := emitOne(t, g, fn)
	if strings.Contains(ir, "str_concat") {
		t.Fatalf("bounded chain must not fall back to pairwise concat:\n%s", ir)
	}
	if strings.Count(ir, "@str_alloc") != 1 {
		t.Fatalf("chain must allocate exactly once:\n%s", ir)
	}
	if !strings.Contains(ir, "llvm.memcpy") {
		t.Fatalf("chain must copy pieces into the allocation:\n%s", ir)
	}
}

func TestConcatLiteralLengthsResolvedAtCompileTime(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	chain := bin(ast.BinAdd,
		bin(ast.BinAdd, strLit("x"), ident("s")),
		strLit("yz"))
	fn := &ast.Func{
		Name:   "tag",
		Params: []ast.Param{{Name: "s", Type: bi.Str}},
		Result: bi.Str,
		Body:   []*ast.Stmt{retStmt(chain)},
	}
	ir := emitOne(t, g, fn)
	if n := strings.Count(ir, "@str_len"); n != 1 {
		t.Fatalf("only the runtime piece needs measuring, got %d str_len calls:\n%s", n, ir)
	}
	if !strings.Contains(ir, "i64 2") {
		t.Fatalf("literal length must appear as a constant:\n%s", ir)
	}
}

func TestIdenticalLiteralsShareOneConstant(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "twice",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("a", bi.Str, strLit("dup")),
			letStmt("b", bi.Str, strLit("dup")),
		},
	}
	emitOne(t, g, fn)
	if n := strings.Count(g.Module(), `c"dup\00"`); n != 1 {
		t.Fatalf("literal must intern to a single constant, found %d", n)
	}
}

func TestImportedModuleMethodBindsByMangledName(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	g.Env.RegisterModule(&symbols.Module{
		Name: "geo",
		Structs: map[string]*symbols.StructInfo{
			"Vec": {
				Name: "Vec",
				Methods: map[string]*symbols.MethodSig{
					"norm": {Name: "norm", Result: bi.F64},
				},
			},
		},
	})
	vec := g.Types.Intern(types.MakeNamed("Vec", "geo", nil))
	fn := &ast.Func{
		Name:   "length",
		Params: []ast.Param{{Name: "v", Type: vec}},
		Result: bi.F64,
		Body:   []*ast.Stmt{retStmt(methodCall(ident("v"), "norm"))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call double @tml_Vec_norm(ptr") {
		t.Fatalf("imported-module method must bind by name:\n%s", ir)
	}
}

func registerOutcome(g *Generator) types.TypeID {
	bi := g.Types.Builtins()
	g.Env.RegisterEnum(&symbols.EnumInfo{
		Name: "Outcome",
		Variants: []symbols.EnumVariant{
			{Name: "Ok", Payload: []types.TypeID{bi.I32}},
			{Name: "Err", Payload: []types.TypeID{bi.Str}},
		},
	})
	return g.Types.Intern(types.MakeNamed("Outcome", "", nil))
}

func TestUnionEqualityComparesDiscriminantOnly(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	outcome := registerOutcome(g)
	fn := &ast.Func{
		Name:   "same",
		Params: []ast.Param{{Name: "x", Type: outcome}, {Name: "y", Type: outcome}},
		Result: bi.Bool,
		Body:   []*ast.Stmt{retStmt(bin(ast.BinEq, ident("x"), ident("y")))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "icmp eq i32") {
		t.Fatalf("union equality must compare i32 tags:\n%s", ir)
	}
	if strings.Contains(ir, "i32 0, i32 1") {
		t.Fatalf("payload must not participate in union equality:\n%s", ir)
	}
}

func TestTryUnwrapsSuccessAndReturnsFailureUnchanged(t *testing.T) {
	g := newTestGen()
	outcome := registerOutcome(g)
	try := &ast.Expr{Kind: ast.ExprTry, Try: &ast.TryExpr{Value: ident("r")}}
	fn := &ast.Func{
		Name:   "pipe",
		Params: []ast.Param{{Name: "r", Type: outcome}},
		Result: outcome,
		Body:   []*ast.Stmt{letStmt("v", types.NoTypeID, try)},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "icmp eq i32") {
		t.Fatalf("try must branch on the discriminant:\n%s", ir)
	}
	if !strings.Contains(ir, "try.ok") || !strings.Contains(ir, "try.err") {
		t.Fatalf("try must split into ok/err blocks:\n%s", ir)
	}
	if !strings.Contains(ir, "ret %struct.Outcome") {
		t.Fatalf("failure path must return the union unchanged:\n%s", ir)
	}
	if !strings.Contains(ir, "load i32,") {
		t.Fatalf("success path must unwrap the payload:\n%s", ir)
	}
}

func TestTryIntoMismatchedReturnUnionIsDiagnosed(t *testing.T) {
	bag := diag.NewBag(0)
	g := New(types.NewInterner(), symbols.NewEnv(), diag.BagReporter{Bag: bag})
	outcome := registerOutcome(g)
	g.Env.RegisterEnum(&symbols.EnumInfo{
		Name: "Status",
		Variants: []symbols.EnumVariant{
			{Name: "Done", Payload: []types.TypeID{g.Types.Builtins().Str}},
			{Name: "Halt", Payload: []types.TypeID{g.Types.Builtins().Str}},
		},
	})
	status := g.Types.Intern(types.MakeNamed("Status", "", nil))
	try := &ast.Expr{Kind: ast.ExprTry, Try: &ast.TryExpr{Value: ident("r")}}
	fn := &ast.Func{
		Name:   "relay",
		Params: []ast.Param{{Name: "r", Type: outcome}},
		Result: status,
		Body:   []*ast.Stmt{letStmt("v", types.NoTypeID, try)},
	}
	if err := g.EmitFunc(fn); err != nil {
		t.Fatalf("EmitFunc: %v", err)
	}
	if !bag.HasErrors() {
		t.Fatal("forwarding a failure into a different union must be diagnosed")
	}
}

func TestVariantConstructorStampsTag(t *testing.T) {
	g := newTestGen()
	outcome := registerOutcome(g)
	ctor := &ast.Expr{Kind: ast.ExprPath, Path: &ast.PathExpr{
		Segments: []string{"Outcome", "Err"},
		Args:     []*ast.Expr{strLit("boom")},
		IsCall:   true,
	}}
	fn := &ast.Func{
		Name:   "fail",
		Result: outcome,
		Body:   []*ast.Stmt{retStmt(ctor)},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "store i32 1") {
		t.Fatalf("Err carries declaration-order tag 1:\n%s", ir)
	}
}

func TestPointerArithmeticUsesElementStride(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	ptrI32 := g.Types.Intern(types.MakePtr(bi.I32, false))
	fn := &ast.Func{
		Name:   "step",
		Params: []ast.Param{{Name: "p", Type: ptrI32}},
		Result: ptrI32,
		Body:   []*ast.Stmt{retStmt(bin(ast.BinAdd, ident("p"), intLit(2)))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "getelementptr i32, ptr") {
		t.Fatalf("pointer add must scale by the element type:\n%s", ir)
	}
}

func TestCompoundAssignLoadsComputesStores(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "bump",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			{Kind: ast.StmtLet, Let: &ast.LetStmt{Name: "x", Type: bi.I32, Mutable: true, Value: intLit(1)}},
			exprStmt(bin(ast.BinAddAssign, ident("x"), intLit(4))),
		},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "add i32") {
		t.Fatalf("+= must lower through the base operator:\n%s", ir)
	}
	if strings.Count(ir, "store i32") < 2 {
		t.Fatalf("+= must write the result back:\n%s", ir)
	}
}

func TestAssignToImmutableBindingIsDiagnosed(t *testing.T) {
	bag := diag.NewBag(0)
	g := New(types.NewInterner(), symbols.NewEnv(), diag.BagReporter{Bag: bag})
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "frozen",
		Result: bi.Unit,
		Body: []*ast.Stmt{
			letStmt("x", bi.I32, intLit(1)),
			exprStmt(bin(ast.BinAssign, ident("x"), intLit(2))),
		},
	}
	if err := g.EmitFunc(fn); err != nil {
		t.Fatalf("EmitFunc: %v", err)
	}
	if !bag.HasErrors() {
		t.Fatal("writing an immutable binding must be diagnosed")
	}
}

func TestAwaitIsSynchronousPassThrough(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	await := &ast.Expr{Kind: ast.ExprAwait, Await: &ast.AwaitExpr{Value: bin(ast.BinAdd, ident("a"), ident("a"))}}
	fn := &ast.Func{
		Name:   "sync",
		Params: []ast.Param{{Name: "a", Type: bi.I32}},
		Result: bi.I32,
		Body:   []*ast.Stmt{retStmt(await)},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "add i32") || strings.Contains(ir, "suspend") {
		t.Fatalf("await must lower to its operand alone:\n%s", ir)
	}
}

func TestLogicalAndShortCircuits(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "both",
		Params: []ast.Param{{Name: "a", Type: bi.Bool}, {Name: "b", Type: bi.Bool}},
		Result: bi.Bool,
		Body:   []*ast.Stmt{retStmt(bin(ast.BinLogicalAnd, ident("a"), ident("b")))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "br i1") || !strings.Contains(ir, "logic.rhs") {
		t.Fatalf("&& must branch around the right side:\n%s", ir)
	}
}

func TestCastOpcodeFollowsSourceSignedness(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	castTo := func(v *ast.Expr, target types.TypeID) *ast.Expr {
		return &ast.Expr{Kind: ast.ExprCast, Cast: &ast.CastExpr{Value: v, Target: target}}
	}
	fn := &ast.Func{
		Name:   "casts",
		Params: []ast.Param{{Name: "u", Type: bi.U16}, {Name: "i", Type: bi.I16}, {Name: "f", Type: bi.F64}},
		Result: bi.Unit,
		Body: []*ast.Stmt{
			exprStmt(castTo(ident("u"), bi.I64)),
			exprStmt(castTo(ident("i"), bi.I64)),
			exprStmt(castTo(ident("u"), bi.F64)),
			exprStmt(castTo(ident("f"), bi.U32)),
		},
	}
	ir := emitOne(t, g, fn)
	for _, want := range []string{"zext i16", "sext i16", "uitofp", "fptoui"} {
		if !strings.Contains(ir, want) {
			t.Errorf("missing %s in:\n%s", want, ir)
		}
	}
}

func TestPointerIntCastsRoundTripThroughI64(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	ptrI32 := g.Types.Intern(types.MakePtr(bi.I32, false))
	castTo := func(v *ast.Expr, target types.TypeID) *ast.Expr {
		return &ast.Expr{Kind: ast.ExprCast, Cast: &ast.CastExpr{Value: v, Target: target}}
	}
	fn := &ast.Func{
		Name:   "addr_bits",
		Params: []ast.Param{{Name: "p", Type: ptrI32}, {Name: "n", Type: bi.U32}},
		Result: bi.Unit,
		Body: []*ast.Stmt{
			exprStmt(castTo(ident("p"), bi.U32)),
			exprStmt(castTo(ident("n"), ptrI32)),
		},
	}
	ir := emitOne(t, g, fn)
	for _, want := range []string{"ptrtoint ptr", "to i64", "trunc i64", "zext i32", "inttoptr i64"} {
		if !strings.Contains(ir, want) {
			t.Errorf("missing %s in:\n%s", want, ir)
		}
	}
	if strings.Contains(ir, "inttoptr i32") {
		t.Fatalf("narrow integers must widen to i64 before inttoptr:\n%s", ir)
	}
}

func TestStringEqualityCallsRuntime(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	fn := &ast.Func{
		Name:   "same_text",
		Params: []ast.Param{{Name: "a", Type: bi.Str}, {Name: "b", Type: bi.Str}},
		Result: bi.Bool,
		Body:   []*ast.Stmt{retStmt(bin(ast.BinEq, ident("a"), ident("b")))},
	}
	ir := emitOne(t, g, fn)
	if !strings.Contains(ir, "call i1 @str_eq") {
		t.Fatalf("string equality must go through str_eq:\n%s", ir)
	}
}

func TestRegisterNumberingRestartsPerFunction(t *testing.T) {
	g := newTestGen()
	bi := g.Types.Builtins()
	mk := func(name string) *ast.Func {
		return &ast.Func{
			Name:   name,
			Params: []ast.Param{{Name: "a", Type: bi.I32}},
			Result: bi.I32,
			Body:   []*ast.Stmt{retStmt(bin(ast.BinAdd, ident("a"), ident("a")))},
		}
	}
	first := emitOne(t, g, mk("one"))
	second := emitOne(t, g, mk("two"))
	if !strings.Contains(first, "%t1") || !strings.Contains(second, "%t1") {
		t.Fatalf("each function must start at %%t1:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
