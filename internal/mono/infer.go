package mono

import "tml/internal/types"

// Unify matches a declared (possibly generic) type against a concrete one
// and records bindings for generic-parameter leaves into subs. Returns
// false only on a shape mismatch that prevented descending; partial
// bindings already made are kept, matching the best-effort contract of
// codegen-time inference.
//
// Examples: a field declared T against an I32 value binds T=I32; a
// parameter declared Container[T] against Container[Str] binds T=Str.
func Unify(in *types.Interner, generics map[string]bool, declared, concrete types.TypeID, subs map[string]types.TypeID) bool {
	if declared == types.NoTypeID || concrete == types.NoTypeID {
		return false
	}
	d, ok := in.Lookup(declared)
	if !ok {
		return false
	}
	if d.Kind == types.KindNamed && len(d.Args) == 0 && generics[d.Name] {
		if _, bound := subs[d.Name]; !bound {
			subs[d.Name] = concrete
		}
		return true
	}
	c, ok := in.Lookup(concrete)
	if !ok || c.Kind != d.Kind {
		return false
	}
	switch d.Kind {
	case types.KindNamed, types.KindClass, types.KindDyn:
		if d.Name != c.Name || len(d.Args) != len(c.Args) {
			return false
		}
		for i := range d.Args {
			Unify(in, generics, d.Args[i], c.Args[i], subs)
		}
		return true
	case types.KindRef, types.KindPtr, types.KindSlice:
		return Unify(in, generics, d.Elem, c.Elem, subs)
	case types.KindArray:
		if d.Count != c.Count {
			return false
		}
		return Unify(in, generics, d.Elem, c.Elem, subs)
	case types.KindTuple:
		if len(d.Args) != len(c.Args) {
			return false
		}
		for i := range d.Args {
			Unify(in, generics, d.Args[i], c.Args[i], subs)
		}
		return true
	case types.KindFunc:
		if len(d.Args) != len(c.Args) {
			return false
		}
		for i := range d.Args {
			Unify(in, generics, d.Args[i], c.Args[i], subs)
		}
		return Unify(in, generics, d.Elem, c.Elem, subs)
	}
	// identical primitive kinds carry no bindings
	return true
}

// GenericSet turns a parameter-name list into a lookup set.
func GenericSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
