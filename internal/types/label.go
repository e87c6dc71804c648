package types

import (
	"strconv"
	"strings"
)

// Label renders a human-readable surface-syntax spelling, for diagnostics
// only. Symbol names use Mangle instead.
func (in *Interner) Label(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	if name, ok := primitiveName(t); ok {
		return name
	}
	switch t.Kind {
	case KindNamed, KindClass:
		if len(t.Args) == 0 {
			return t.Name
		}
		return t.Name + "[" + in.labelList(t.Args) + "]"
	case KindRef:
		if t.Mutable {
			return "&mut " + in.Label(t.Elem)
		}
		return "&" + in.Label(t.Elem)
	case KindPtr:
		if t.Mutable {
			return "*mut " + in.Label(t.Elem)
		}
		return "*" + in.Label(t.Elem)
	case KindArray:
		return "[" + in.Label(t.Elem) + "; " + strconv.FormatUint(uint64(t.Count), 10) + "]"
	case KindSlice:
		return "[" + in.Label(t.Elem) + "]"
	case KindTuple:
		return "(" + in.labelList(t.Args) + ")"
	case KindFunc:
		s := "fn(" + in.labelList(t.Args)
		if t.Variadic {
			s += ", ..."
		}
		return s + ") -> " + in.Label(t.Elem)
	case KindDyn:
		if len(t.Args) == 0 {
			return "dyn " + t.Name
		}
		return "dyn " + t.Name + "[" + in.labelList(t.Args) + "]"
	}
	return "<unknown>"
}

func (in *Interner) labelList(ids []TypeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = in.Label(id)
	}
	return strings.Join(parts, ", ")
}
