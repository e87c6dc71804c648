package driver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"tml/internal/ast"
	"tml/internal/project"
	"tml/internal/symbols"
	"tml/internal/types"
)

// addInput builds a one-function input: fn <name>(a I32, b I32) -> I32
// returning a + b. Type ref 1 is the table's single I32 entry.
func addInput(name string) *Input {
	const i32 = types.TypeID(1)
	body := []*ast.Stmt{
		{Kind: ast.StmtReturn, Return: &ast.ReturnStmt{
			Value: &ast.Expr{Kind: ast.ExprBinary, Binary: &ast.BinaryExpr{
				Op:    ast.BinAdd,
				Left:  &ast.Expr{Kind: ast.ExprIdent, Ident: &ast.IdentExpr{Name: "a"}},
				Right: &ast.Expr{Kind: ast.ExprIdent, Ident: &ast.IdentExpr{Name: "b"}},
			}},
		}},
	}
	return &Input{
		Name:  name,
		Types: []TypeRec{{Kind: uint8(types.KindInt), Width: 32}},
		Funcs: []*symbols.FuncSig{{
			Name:   name,
			Params: []types.TypeID{i32, i32},
			Result: i32,
		}},
		Bodies: []*ast.Func{{
			Name:   name,
			Params: []ast.Param{{Name: "a", Type: i32}, {Name: "b", Type: i32}},
			Result: i32,
			Body:   body,
		}},
	}
}

func TestCompileUnitEmitsModuleText(t *testing.T) {
	var c Compiler
	res, err := c.CompileUnit(context.Background(), Unit{Name: "main", Input: addInput("add")})
	if err != nil {
		t.Fatalf("CompileUnit: %v", err)
	}
	if res.HasErrors {
		t.Fatalf("unexpected diagnostics: %v", res.Bag.Items())
	}
	if !strings.Contains(res.IR, "define i32 @tml_add(") {
		t.Errorf("missing function definition in:\n%s", res.IR)
	}
	if !strings.Contains(res.IR, "add i32") {
		t.Errorf("missing add instruction in:\n%s", res.IR)
	}
	if res.FromCache {
		t.Error("first compile should not come from cache")
	}
	if len(res.Timing.Phases) == 0 {
		t.Error("timing report should track phases")
	}
}

func TestCompileUnitUsesCacheOnSecondRun(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	c := Compiler{Cache: cache}
	unit := Unit{
		Name:   "main",
		Digest: project.HashBytes([]byte("main-input")),
		Input:  addInput("add"),
	}

	first, err := c.CompileUnit(context.Background(), unit)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	if first.FromCache {
		t.Fatal("first compile should miss the cache")
	}

	second, err := c.CompileUnit(context.Background(), unit)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second compile should hit the cache")
	}
	if second.IR != first.IR {
		t.Error("cached text differs from the first compile")
	}
}

func TestCompileAllPreservesUnitOrder(t *testing.T) {
	c := Compiler{Jobs: 2}
	units := []Unit{
		{Name: "alpha", Input: addInput("alpha")},
		{Name: "beta", Input: addInput("beta")},
		{Name: "gamma", Input: addInput("gamma")},
	}
	results, err := c.CompileAll(context.Background(), units)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	for i, res := range results {
		if res.Name != units[i].Name {
			t.Errorf("results[%d].Name = %q, want %q", i, res.Name, units[i].Name)
		}
		if !strings.Contains(res.IR, "@tml_"+units[i].Name+"(") {
			t.Errorf("unit %q is missing its own function", units[i].Name)
		}
	}
}

func TestCompileAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c Compiler
	if _, err := c.CompileAll(ctx, []Unit{{Name: "main", Input: addInput("add")}}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestInputRoundTrip(t *testing.T) {
	in := addInput("add")
	var buf bytes.Buffer
	if err := WriteInput(&buf, in); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	out, err := ReadInput(&buf)
	if err != nil {
		t.Fatalf("ReadInput: %v", err)
	}
	if out.Name != in.Name {
		t.Errorf("Name = %q, want %q", out.Name, in.Name)
	}
	if len(out.Types) != 1 || len(out.Funcs) != 1 || len(out.Bodies) != 1 {
		t.Fatalf("shape lost in round trip: %d types, %d funcs, %d bodies",
			len(out.Types), len(out.Funcs), len(out.Bodies))
	}
	if out.Funcs[0].Params[0] != types.TypeID(1) {
		t.Error("type refs should survive the round trip untouched")
	}
}

func TestReadInputRejectsWrongSchema(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(&Input{Schema: 99, Name: "stale"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := ReadInput(&buf); !errors.Is(err, ErrInputSchema) {
		t.Fatalf("error = %v, want ErrInputSchema", err)
	}
}

func TestLoadInputRejectsTypeTableCycle(t *testing.T) {
	in := &Input{
		Name:  "cyclic",
		Types: []TypeRec{{Kind: uint8(types.KindSlice), Elem: 1}},
	}
	if _, _, err := loadInput(in, 0); err == nil {
		t.Fatal("expected error for self-referential type entry")
	}
}

func TestLoadInputRejectsDanglingTypeRef(t *testing.T) {
	in := &Input{
		Name:  "dangling",
		Funcs: []*symbols.FuncSig{{Name: "f", Params: []types.TypeID{7}}},
	}
	if _, _, err := loadInput(in, 0); err == nil {
		t.Fatal("expected error for out-of-range type ref")
	}
}

func TestLoadInputOrdersClassesByBase(t *testing.T) {
	const i32 = types.TypeID(1)
	in := &Input{
		Name:  "classes",
		Types: []TypeRec{{Kind: uint8(types.KindInt), Width: 32}},
		Classes: []*symbols.ClassInfo{
			// Derived listed before its base on purpose.
			{Name: "Circle", Base: "Shape", Fields: []symbols.FieldDesc{{Name: "radius", Type: i32}}},
			{Name: "Shape", Fields: []symbols.FieldDesc{{Name: "id", Type: i32}}},
		},
	}
	gen, _, err := loadInput(in, 0)
	if err != nil {
		t.Fatalf("loadInput: %v", err)
	}
	circle, ok := gen.Env.LookupClass("Circle")
	if !ok {
		t.Fatal("Circle not registered")
	}
	// Flat must include the inherited field, which needs Shape first.
	var sawID bool
	for _, f := range circle.Flat {
		if f.Name == "id" {
			sawID = true
		}
	}
	if !sawID {
		t.Error("inherited field missing from flattened table")
	}
}

func TestLoadInputRejectsUnknownBase(t *testing.T) {
	in := &Input{
		Name: "orphan",
		Classes: []*symbols.ClassInfo{
			{Name: "Leaf", Base: "Missing"},
		},
	}
	if _, _, err := loadInput(in, 0); err == nil {
		t.Fatal("expected error for unknown base class")
	}
}
