package types

import (
	"strconv"
	"strings"
)

// ArityFunc reports the declared generic-parameter count for a base name.
// The second result is false when the base is not a registered generic;
// the demangler then consumes the remaining pieces greedily, matching the
// permissive behavior expected for foreign or not-yet-registered names.
type ArityFunc func(base string) (int, bool)

// Demangle reconstructs a semantic type from a mangled name. It is a
// best-effort recursive-descent reconstruction: recognized prefixes are
// peeled one at a time and the "__"-delimited remainder is split into
// ordered type arguments. The arity callback decides how many pieces a
// generic base consumes, so List__Maybe__I32 reassembles as List[Maybe[I32]]
// rather than List[Maybe, I32] when both bases declare one parameter.
//
// The boolean result is false when the string cannot be fully consumed; the
// parsed prefix (possibly NoTypeID) is still returned so callers can choose
// between it and their documented default.
func (in *Interner) Demangle(s string, arity ArityFunc) (TypeID, bool) {
	if s == "" {
		return NoTypeID, false
	}
	if arity == nil {
		arity = func(string) (int, bool) { return 0, false }
	}
	d := demangler{in: in, arity: arity, toks: strings.Split(s, "_")}
	id := d.parseType()
	if id == NoTypeID {
		return NoTypeID, false
	}
	return id, d.pos == len(d.toks)
}

type demangler struct {
	in    *Interner
	arity ArityFunc
	toks  []string
	pos   int
}

func (d *demangler) next() (string, bool) {
	if d.pos >= len(d.toks) {
		return "", false
	}
	tok := d.toks[d.pos]
	d.pos++
	return tok, true
}

func (d *demangler) peekEmpty() bool {
	return d.pos < len(d.toks) && d.toks[d.pos] == ""
}

func (d *demangler) parseType() TypeID {
	tok, ok := d.next()
	if !ok || tok == "" {
		return NoTypeID
	}
	if id, ok := d.primitive(tok); ok {
		return id
	}
	switch tok {
	case "ptr":
		return d.wrap(func(inner TypeID) Type { return MakePtr(inner, false) })
	case "mutptr":
		return d.wrap(func(inner TypeID) Type { return MakePtr(inner, true) })
	case "ref":
		return d.wrap(func(inner TypeID) Type { return MakeRef(inner, false) })
	case "mutref":
		return d.wrap(func(inner TypeID) Type { return MakeRef(inner, true) })
	case "slice":
		return d.wrap(func(inner TypeID) Type { return MakeSlice(inner) })
	case "arr":
		elem := d.parseType()
		if elem == NoTypeID {
			return NoTypeID
		}
		countTok, ok := d.next()
		if !ok {
			return NoTypeID
		}
		count, err := strconv.ParseUint(countTok, 10, 32)
		if err != nil {
			return NoTypeID
		}
		return d.in.Intern(MakeArray(elem, uint32(count)))
	case "dyn":
		name, ok := d.next()
		if !ok || name == "" {
			return NoTypeID
		}
		args := d.parseArgs(name)
		return d.in.Intern(MakeDyn(name, args))
	case "fnptr":
		return d.in.Intern(MakeFunc(nil, d.in.builtins.Unit, false))
	}
	if rest, ok := strings.CutPrefix(tok, "tuple"); ok {
		if count, err := strconv.Atoi(rest); err == nil {
			elems := make([]TypeID, 0, count)
			for i := 0; i < count; i++ {
				e := d.parseType()
				if e == NoTypeID {
					return NoTypeID
				}
				elems = append(elems, e)
			}
			return d.in.Intern(MakeTuple(elems))
		}
	}
	// plain or generic named type
	args := d.parseArgs(tok)
	return d.in.Intern(MakeNamed(tok, "", args))
}

// parseArgs consumes "__"-delimited type arguments following a base name.
// A known arity bounds consumption so that sibling pieces left over belong
// to the enclosing generic; an unregistered base consumes greedily.
func (d *demangler) parseArgs(base string) []TypeID {
	want, known := d.arity(base)
	if known && want == 0 {
		return nil
	}
	var args []TypeID
	for d.peekEmpty() {
		if known && len(args) == want {
			break
		}
		d.pos++ // the empty token marking "__"
		a := d.parseType()
		if a == NoTypeID {
			break
		}
		args = append(args, a)
	}
	return args
}

func (d *demangler) wrap(make func(TypeID) Type) TypeID {
	inner := d.parseType()
	if inner == NoTypeID {
		return NoTypeID
	}
	return d.in.Intern(make(inner))
}

func (d *demangler) primitive(tok string) (TypeID, bool) {
	b := d.in.builtins
	switch tok {
	case "I8":
		return b.I8, true
	case "I16":
		return b.I16, true
	case "I32":
		return b.I32, true
	case "I64":
		return b.I64, true
	case "I128":
		return b.I128, true
	case "U8":
		return b.U8, true
	case "U16":
		return b.U16, true
	case "U32":
		return b.U32, true
	case "U64":
		return b.U64, true
	case "U128":
		return b.U128, true
	case "F32":
		return b.F32, true
	case "F64":
		return b.F64, true
	case "Bool":
		return b.Bool, true
	case "Str":
		return b.Str, true
	case "Char":
		return b.Char, true
	case "Unit":
		return b.Unit, true
	case "Never":
		return b.Never, true
	case "Usize":
		// platform-size aliases normalize to their 64-bit spelling
		return b.U64, true
	case "Isize":
		return b.I64, true
	}
	return NoTypeID, false
}
