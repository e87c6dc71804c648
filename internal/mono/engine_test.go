package mono

import (
	"testing"

	"tml/internal/symbols"
	"tml/internal/types"
)

func TestRequestIsIdempotent(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := NewEngine(in)

	args := []types.TypeID{b.I32}
	if !e.Request(JobStruct, "List", "", args, nil) {
		t.Fatalf("first request must schedule")
	}
	for i := 0; i < 5; i++ {
		if e.Request(JobStruct, "List", "", args, nil) {
			t.Fatalf("repeated request %d must be a no-op", i)
		}
	}
	emitted := 0
	if err := e.Drain(func(Job) error { emitted++; return nil }); err != nil {
		t.Fatal(err)
	}
	if emitted != 1 {
		t.Fatalf("expected exactly one generated definition, got %d", emitted)
	}
}

func TestDistinctArgsScheduleSeparately(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := NewEngine(in)

	e.Request(JobStruct, "List", "", []types.TypeID{b.I32}, nil)
	e.Request(JobStruct, "List", "", []types.TypeID{b.Str}, nil)
	if e.Pending() != 2 {
		t.Fatalf("distinct type args must schedule distinct jobs, got %d", e.Pending())
	}
}

func TestMethodKeysIncludeMethodName(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := NewEngine(in)

	args := []types.TypeID{b.I32}
	if !e.Request(JobMethod, "List", "push", args, nil) {
		t.Fatalf("push must schedule")
	}
	if !e.Request(JobMethod, "List", "pop", args, nil) {
		t.Fatalf("pop is a distinct key and must schedule")
	}
}

// Re-entrant discovery while draining must still reach a fixed point with
// one emission per key.
func TestDrainReentrantRequests(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := NewEngine(in)

	e.Request(JobStruct, "List", "", []types.TypeID{b.I32}, nil)
	var order []string
	err := e.Drain(func(j Job) error {
		order = append(order, j.Mangled)
		if j.Mangled == "List__I32" {
			// discovered while emitting List__I32
			e.Request(JobStruct, "Maybe", "", []types.TypeID{b.I32}, nil)
			e.Request(JobStruct, "List", "", []types.TypeID{b.I32}, nil) // duplicate
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "List__I32" || order[1] != "Maybe__I32" {
		t.Fatalf("unexpected drain order %v", order)
	}
}

func TestApplySubstitutesNestedLeaves(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()

	tparam := in.Intern(types.MakeNamed("T", "", nil))
	list := in.Intern(types.MakeNamed("List", "", []types.TypeID{tparam}))
	refList := in.Intern(types.MakeRef(list, true))

	subs := map[string]types.TypeID{"T": b.Str}
	got := Apply(in, subs, refList)

	wantList := in.Intern(types.MakeNamed("List", "", []types.TypeID{b.Str}))
	want := in.Intern(types.MakeRef(wantList, true))
	if got != want {
		t.Fatalf("got %s, want %s", in.Label(got), in.Label(want))
	}
}

func TestUnifyReadsArgsOffConcreteType(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()

	tparam := in.Intern(types.MakeNamed("T", "", nil))
	declared := in.Intern(types.MakeNamed("Container", "", []types.TypeID{tparam}))
	concrete := in.Intern(types.MakeNamed("Container", "", []types.TypeID{b.Str}))

	subs := make(map[string]types.TypeID)
	if !Unify(in, map[string]bool{"T": true}, declared, concrete, subs) {
		t.Fatalf("unify failed")
	}
	if subs["T"] != b.Str {
		t.Fatalf("T must bind to Str, got %s", in.Label(subs["T"]))
	}
}

func TestBindParamResolvesAssociatedTypes(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	env := symbols.NewEnv()

	tparam := in.Intern(types.MakeNamed("T", "", nil))
	env.RegisterStruct(&symbols.StructInfo{
		Name:       "ListIter",
		Generics:   []string{"T"},
		AssocTypes: map[string]types.TypeID{"Item": tparam},
	})

	concrete := in.Intern(types.MakeNamed("ListIter", "", []types.TypeID{b.I64}))
	subs := make(map[string]types.TypeID)
	BindParam(in, env, subs, "I", concrete)

	if subs["I"] != concrete {
		t.Fatalf("parameter itself must bind")
	}
	if subs["I::Item"] != b.I64 {
		t.Fatalf("qualified associated type must resolve to I64")
	}
	if subs["Item"] != b.I64 {
		t.Fatalf("unqualified associated type must resolve to I64")
	}
}
