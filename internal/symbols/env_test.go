package symbols

import (
	"testing"

	"tml/internal/types"
)

func TestStructFieldIndexing(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	env := NewEnv()
	env.RegisterStruct(&StructInfo{
		Name: "Point",
		Fields: []FieldDesc{
			{Name: "x", Type: b.I32},
			{Name: "y", Type: b.I32},
		},
	})
	f, ok := env.FieldOf("Point", "y")
	if !ok {
		t.Fatalf("field y not found")
	}
	if f.Index != 1 {
		t.Fatalf("expected index 1, got %d", f.Index)
	}
	if len(f.Path) != 1 || f.Path[0] != (PathStep{Type: "Point", Index: 1}) {
		t.Fatalf("unexpected path %+v", f.Path)
	}
}

func TestEnumTagsFollowDeclarationOrder(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	env := NewEnv()
	env.RegisterEnum(&EnumInfo{
		Name: "Outcome",
		Variants: []EnumVariant{
			{Name: "Good", Payload: []types.TypeID{b.I32}},
			{Name: "Bad", Payload: []types.TypeID{b.Str}},
		},
	})
	good, _ := env.VariantOf("Outcome", "Good")
	bad, _ := env.VariantOf("Outcome", "Bad")
	if good.Tag != 0 || bad.Tag != 1 {
		t.Fatalf("tags must follow declaration order, got %d/%d", good.Tag, bad.Tag)
	}
}

func TestValueClassDecision(t *testing.T) {
	env := NewEnv()
	env.RegisterClass(&ClassInfo{
		Name:   "Vec2",
		Sealed: true,
		Fields: []FieldDesc{{Name: "x"}, {Name: "y"}},
		Methods: []MethodSig{
			{Name: "length2", Static: true},
		},
	})
	env.RegisterClass(&ClassInfo{
		Name:   "Shape",
		Fields: []FieldDesc{{Name: "id"}},
		Methods: []MethodSig{
			{Name: "area", Static: false},
		},
	})
	if c, _ := env.LookupClass("Vec2"); !c.ValueClass {
		t.Fatalf("sealed class without overridable methods must be a value class")
	}
	if c, _ := env.LookupClass("Shape"); c.ValueClass {
		t.Fatalf("class with instance methods must stay a reference class")
	}
}

func TestValueClassFieldsStartAtZero(t *testing.T) {
	env := NewEnv()
	env.RegisterClass(&ClassInfo{
		Name:   "Vec2",
		Sealed: true,
		Fields: []FieldDesc{{Name: "x"}, {Name: "y"}},
	})
	f, ok := env.FieldOf("Vec2", "x")
	if !ok || f.Index != 0 {
		t.Fatalf("value class fields start at index 0, got %+v", f)
	}
}

func TestReferenceClassFieldsSkipVtableSlot(t *testing.T) {
	env := NewEnv()
	env.RegisterClass(&ClassInfo{
		Name:    "Shape",
		Fields:  []FieldDesc{{Name: "id"}},
		Methods: []MethodSig{{Name: "area"}},
	})
	f, ok := env.FieldOf("Shape", "id")
	if !ok || f.Index != 1 {
		t.Fatalf("reference class fields start after the vtable, got %+v", f)
	}
}

// A field declared only on the top ancestor of a three-level chain must be
// reachable through exactly three precomputed hops.
func TestInheritedFieldPathThreeLevels(t *testing.T) {
	env := NewEnv()
	env.RegisterClass(&ClassInfo{
		Name:    "A",
		Fields:  []FieldDesc{{Name: "tag"}},
		Methods: []MethodSig{{Name: "describe"}},
	})
	env.RegisterClass(&ClassInfo{
		Name:    "B",
		Base:    "A",
		Methods: []MethodSig{{Name: "refine"}},
	})
	env.RegisterClass(&ClassInfo{
		Name: "C",
		Base: "B",
	})

	f, ok := env.FieldOf("C", "tag")
	if !ok {
		t.Fatalf("inherited field not found")
	}
	if len(f.Path) != 3 {
		t.Fatalf("expected 3 path steps, got %d: %+v", len(f.Path), f.Path)
	}
	want := []PathStep{
		{Type: "C", Index: 0},
		{Type: "B", Index: 0},
		{Type: "A", Index: 1},
	}
	for i, step := range want {
		if f.Path[i] != step {
			t.Fatalf("step %d: got %+v, want %+v", i, f.Path[i], step)
		}
	}
}

func TestArityLookup(t *testing.T) {
	env := NewEnv()
	env.RegisterStruct(&StructInfo{Name: "List", Generics: []string{"T"}})
	env.RegisterEnum(&EnumInfo{Name: "Maybe", Generics: []string{"T"}})
	if n, ok := env.Arity("List"); !ok || n != 1 {
		t.Fatalf("List arity: got %d/%v", n, ok)
	}
	if n, ok := env.Arity("Maybe"); !ok || n != 1 {
		t.Fatalf("Maybe arity: got %d/%v", n, ok)
	}
	if _, ok := env.Arity("Nope"); ok {
		t.Fatalf("unknown base must not report arity")
	}
}
