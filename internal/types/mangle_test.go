package types

import "testing"

func testArity(base string) (int, bool) {
	switch base {
	case "List", "Maybe", "Box":
		return 1, true
	case "HashMap", "Outcome":
		return 2, true
	case "Point":
		return 0, true
	}
	return 0, false
}

// roundTrip asserts demangle(mangle(id)) == id.
func roundTrip(t *testing.T, in *Interner, id TypeID) {
	t.Helper()
	mangled := in.Mangle(id)
	got, ok := in.Demangle(mangled, testArity)
	if !ok {
		t.Fatalf("demangle(%q) failed", mangled)
	}
	if got != id {
		t.Fatalf("round trip of %q: got %s, want %s", mangled, in.Label(got), in.Label(id))
	}
}

func TestMangleRoundTripPrimitives(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	for _, id := range []TypeID{b.I8, b.I16, b.I32, b.I64, b.I128, b.U8, b.U16, b.U32, b.U64, b.U128, b.F32, b.F64, b.Bool, b.Str, b.Char, b.Unit, b.Never} {
		roundTrip(t, in, id)
	}
}

func TestMangleRoundTripShapes(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	list := in.Intern(MakeNamed("List", "", []TypeID{b.I32}))
	maybeList := in.Intern(MakeNamed("Maybe", "", []TypeID{list}))
	hashMap := in.Intern(MakeNamed("HashMap", "", []TypeID{b.Str, b.Bool}))
	nested3 := in.Intern(MakeNamed("Box", "", []TypeID{maybeList}))

	cases := []TypeID{
		list,
		maybeList,
		hashMap,
		nested3,
		in.Intern(MakeNamed("Point", "", nil)),
		in.Intern(MakeRef(list, false)),
		in.Intern(MakeRef(hashMap, true)),
		in.Intern(MakePtr(b.U8, false)),
		in.Intern(MakePtr(maybeList, true)),
		in.Intern(MakeTuple([]TypeID{b.I64, b.Str})),
		in.Intern(MakeTuple([]TypeID{list, in.Intern(MakeRef(b.I32, false))})),
		in.Intern(MakeTuple(nil)),
		in.Intern(MakePtr(in.Intern(MakeRef(in.Intern(MakeTuple([]TypeID{b.Bool})), true)), false)),
	}
	for _, id := range cases {
		roundTrip(t, in, id)
	}
}

// A single-parameter generic nested inside another mangled name must be
// reassembled as one nested argument, not several siblings.
func TestDemangleRespectsArity(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	got, ok := in.Demangle("List__Maybe__I32", testArity)
	if !ok {
		t.Fatalf("demangle failed")
	}
	inner := in.Intern(MakeNamed("Maybe", "", []TypeID{b.I32}))
	want := in.Intern(MakeNamed("List", "", []TypeID{inner}))
	if got != want {
		t.Fatalf("got %s, want %s", in.Label(got), in.Label(want))
	}
}

func TestDemangleTwoParameterGeneric(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	got, ok := in.Demangle("HashMap__Str__Maybe__I32", testArity)
	if !ok {
		t.Fatalf("demangle failed")
	}
	inner := in.Intern(MakeNamed("Maybe", "", []TypeID{b.I32}))
	want := in.Intern(MakeNamed("HashMap", "", []TypeID{b.Str, inner}))
	if got != want {
		t.Fatalf("got %s, want %s", in.Label(got), in.Label(want))
	}
}

func TestDemangleUnknownBaseConsumesGreedily(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	got, ok := in.Demangle("Custom__I32__Str", testArity)
	if !ok {
		t.Fatalf("demangle failed")
	}
	want := in.Intern(MakeNamed("Custom", "", []TypeID{b.I32, b.Str}))
	if got != want {
		t.Fatalf("got %s, want %s", in.Label(got), in.Label(want))
	}
}

func TestDemanglePrefixedGeneric(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()

	got, ok := in.Demangle("ptr_ChannelNode__I32", testArity)
	if !ok {
		t.Fatalf("demangle failed")
	}
	node := in.Intern(MakeNamed("ChannelNode", "", []TypeID{b.I32}))
	want := in.Intern(MakePtr(node, false))
	if got != want {
		t.Fatalf("got %s, want %s", in.Label(got), in.Label(want))
	}
}

func TestDemangleSizeAliases(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if got, _ := in.Demangle("Usize", testArity); got != b.U64 {
		t.Fatalf("Usize must normalize to U64")
	}
	if got, _ := in.Demangle("Isize", testArity); got != b.I64 {
		t.Fatalf("Isize must normalize to I64")
	}
}

func TestDemangleRejectsGarbage(t *testing.T) {
	in := NewInterner()
	if _, ok := in.Demangle("", testArity); ok {
		t.Fatalf("empty string must not demangle")
	}
	if _, ok := in.Demangle("arr_I32_notanumber", testArity); ok {
		t.Fatalf("bad array count must not demangle")
	}
}
