package mono

import (
	"tml/internal/symbols"
	"tml/internal/types"
)

// Apply substitutes generic-parameter leaves in a type. A parameter
// appears as a plain named type whose name is a key in subs; everything
// else is rebuilt structurally. An unbound leaf stays as is.
func Apply(in *types.Interner, subs map[string]types.TypeID, id types.TypeID) types.TypeID {
	if len(subs) == 0 || id == types.NoTypeID {
		return id
	}
	t, ok := in.Lookup(id)
	if !ok {
		return id
	}
	switch t.Kind {
	case types.KindNamed:
		if len(t.Args) == 0 {
			if concrete, ok := subs[t.Name]; ok {
				return concrete
			}
			return id
		}
		args, changed := applyAll(in, subs, t.Args)
		if !changed {
			return id
		}
		return in.Intern(types.MakeNamed(t.Name, t.Module, args))
	case types.KindClass:
		args, changed := applyAll(in, subs, t.Args)
		if !changed {
			return id
		}
		return in.Intern(types.MakeClass(t.Name, args))
	case types.KindRef:
		inner := Apply(in, subs, t.Elem)
		if inner == t.Elem {
			return id
		}
		return in.Intern(types.MakeRef(inner, t.Mutable))
	case types.KindPtr:
		inner := Apply(in, subs, t.Elem)
		if inner == t.Elem {
			return id
		}
		return in.Intern(types.MakePtr(inner, t.Mutable))
	case types.KindArray:
		inner := Apply(in, subs, t.Elem)
		if inner == t.Elem {
			return id
		}
		return in.Intern(types.MakeArray(inner, t.Count))
	case types.KindSlice:
		inner := Apply(in, subs, t.Elem)
		if inner == t.Elem {
			return id
		}
		return in.Intern(types.MakeSlice(inner))
	case types.KindTuple:
		elems, changed := applyAll(in, subs, t.Args)
		if !changed {
			return id
		}
		return in.Intern(types.MakeTuple(elems))
	case types.KindFunc:
		params, changedP := applyAll(in, subs, t.Args)
		result := Apply(in, subs, t.Elem)
		if !changedP && result == t.Elem {
			return id
		}
		return in.Intern(types.MakeFunc(params, result, t.Variadic))
	case types.KindDyn:
		args, changed := applyAll(in, subs, t.Args)
		if !changed {
			return id
		}
		return in.Intern(types.MakeDyn(t.Name, args))
	}
	return id
}

func applyAll(in *types.Interner, subs map[string]types.TypeID, ids []types.TypeID) ([]types.TypeID, bool) {
	changed := false
	out := make([]types.TypeID, len(ids))
	for i, a := range ids {
		out[i] = Apply(in, subs, a)
		if out[i] != a {
			changed = true
		}
	}
	if !changed {
		return ids, false
	}
	return out, true
}

// BuildSubs zips generic parameter names with concrete arguments into a
// substitution map.
func BuildSubs(generics []string, args []types.TypeID) map[string]types.TypeID {
	if len(generics) == 0 {
		return nil
	}
	subs := make(map[string]types.TypeID, len(generics))
	for i, g := range generics {
		if i < len(args) {
			subs[g] = args[i]
		}
	}
	return subs
}

// BindParam binds one generic parameter and pulls in the concrete type's
// declared associated types under both a qualified (T::Item) and an
// unqualified (Item) key, so method bodies written against either spelling
// resolve.
func BindParam(in *types.Interner, env *symbols.Env, subs map[string]types.TypeID, param string, concrete types.TypeID) {
	subs[param] = concrete
	t, ok := in.Lookup(concrete)
	if !ok || (t.Kind != types.KindNamed && t.Kind != types.KindClass) {
		return
	}
	var decl map[string]types.TypeID
	var generics []string
	if s, ok := env.LookupStruct(t.Name); ok {
		decl, generics = s.AssocTypes, s.Generics
	} else if e2, ok := env.LookupEnum(t.Name); ok {
		decl, generics = e2.AssocTypes, e2.Generics
	}
	if len(decl) == 0 {
		return
	}
	inner := BuildSubs(generics, t.Args)
	for name, declared := range decl {
		resolved := Apply(in, inner, declared)
		subs[param+"::"+name] = resolved
		subs[name] = resolved
	}
}
