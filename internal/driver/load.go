package driver

import (
	"errors"
	"fmt"

	"tml/internal/ast"
	"tml/internal/codegen"
	"tml/internal/diag"
	"tml/internal/symbols"
	"tml/internal/types"
)

// loadInput interns the input's type table, rewrites every type reference
// to a real TypeID, registers the declarations and hands the bodies to a
// fresh Generator. The returned bag collects semantic diagnostics raised
// during lowering.
func loadInput(in *Input, maxDiags int) (*codegen.Generator, *diag.Bag, error) {
	if in == nil {
		return nil, nil, errors.New("nil module input")
	}
	interner := types.NewInterner()
	resolved, err := resolveTypes(interner, in.Types)
	if err != nil {
		return nil, nil, err
	}
	r := &remapper{ids: append([]types.TypeID{types.NoTypeID}, resolved...)}

	env := symbols.NewEnv()
	for _, s := range in.Structs {
		r.structInfo(s)
		env.RegisterStruct(s)
	}
	for _, en := range in.Enums {
		r.enumInfo(en)
		env.RegisterEnum(en)
	}
	if err := registerClasses(env, r, in.Classes); err != nil {
		return nil, nil, err
	}
	for _, c := range in.Consts {
		c.Type = r.id(c.Type)
		env.Consts[c.Name] = c
	}
	for _, f := range in.Funcs {
		r.funcSig(f)
		env.RegisterFunc(f)
	}
	if r.err != nil {
		return nil, nil, r.err
	}

	bag := diag.NewBag(maxDiags)
	gen := codegen.New(interner, env, diag.BagReporter{Bag: bag})
	for _, fn := range in.Bodies {
		r.fn(fn)
		gen.RegisterFuncBody(fn)
	}
	for _, mb := range in.Methods {
		r.fn(mb.Fn)
		gen.RegisterMethodBody(mb.Base, mb.Fn)
	}
	if r.err != nil {
		return nil, nil, r.err
	}
	return gen, bag, nil
}

// registerClasses registers base classes before derived ones so that the
// flattened field tables see their ancestors.
func registerClasses(env *symbols.Env, r *remapper, classes []*symbols.ClassInfo) error {
	registered := make(map[string]bool, len(classes))
	pending := classes
	for len(pending) > 0 {
		var next []*symbols.ClassInfo
		for _, cl := range pending {
			if cl.Base != "" && !registered[cl.Base] {
				next = append(next, cl)
				continue
			}
			r.classInfo(cl)
			env.RegisterClass(cl)
			registered[cl.Name] = true
		}
		if len(next) == len(pending) {
			return fmt.Errorf("class %q has unknown or cyclic base %q", next[0].Name, next[0].Base)
		}
		pending = next
	}
	return nil
}

// resolveTypes interns each table entry, resolving cross-references with a
// cycle check. Entries may reference each other in any order.
func resolveTypes(in *types.Interner, recs []TypeRec) ([]types.TypeID, error) {
	const (
		unresolved = iota
		resolving
		done
	)
	ids := make([]types.TypeID, len(recs))
	state := make([]uint8, len(recs))

	var resolve func(idx int) (types.TypeID, error)
	deref := func(ref uint32) (types.TypeID, error) {
		if ref == 0 {
			return types.NoTypeID, nil
		}
		if int(ref) > len(recs) {
			return types.NoTypeID, fmt.Errorf("type ref %d out of range (table has %d entries)", ref, len(recs))
		}
		return resolve(int(ref) - 1)
	}
	derefAll := func(refs []uint32) ([]types.TypeID, error) {
		if len(refs) == 0 {
			return nil, nil
		}
		out := make([]types.TypeID, len(refs))
		for i, ref := range refs {
			id, err := deref(ref)
			if err != nil {
				return nil, err
			}
			out[i] = id
		}
		return out, nil
	}

	resolve = func(idx int) (types.TypeID, error) {
		switch state[idx] {
		case done:
			return ids[idx], nil
		case resolving:
			return types.NoTypeID, fmt.Errorf("type table cycle at entry %d", idx)
		}
		state[idx] = resolving
		rec := recs[idx]

		var t types.Type
		switch kind := types.Kind(rec.Kind); kind {
		case types.KindUnit, types.KindNever, types.KindBool, types.KindChar, types.KindStr:
			t = types.Type{Kind: kind}
		case types.KindInt:
			t = types.MakeInt(types.Width(rec.Width))
		case types.KindUint:
			t = types.MakeUint(types.Width(rec.Width))
		case types.KindFloat:
			t = types.MakeFloat(types.Width(rec.Width))
		case types.KindNamed:
			args, err := derefAll(rec.Args)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeNamed(rec.Name, rec.Module, args)
		case types.KindClass:
			args, err := derefAll(rec.Args)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeClass(rec.Name, args)
		case types.KindRef, types.KindPtr:
			elem, err := deref(rec.Elem)
			if err != nil {
				return types.NoTypeID, err
			}
			if kind == types.KindRef {
				t = types.MakeRef(elem, rec.Mutable)
			} else {
				t = types.MakePtr(elem, rec.Mutable)
			}
		case types.KindArray:
			elem, err := deref(rec.Elem)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeArray(elem, rec.Count)
		case types.KindSlice:
			elem, err := deref(rec.Elem)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeSlice(elem)
		case types.KindTuple:
			elems, err := derefAll(rec.Args)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeTuple(elems)
		case types.KindFunc:
			params, err := derefAll(rec.Args)
			if err != nil {
				return types.NoTypeID, err
			}
			result, err := deref(rec.Elem)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeFunc(params, result, rec.Variadic)
		case types.KindDyn:
			args, err := derefAll(rec.Args)
			if err != nil {
				return types.NoTypeID, err
			}
			t = types.MakeDyn(rec.Name, args)
		default:
			return types.NoTypeID, fmt.Errorf("type table entry %d has invalid kind %d", idx, rec.Kind)
		}

		ids[idx] = in.Intern(t)
		state[idx] = done
		return ids[idx], nil
	}

	for i := range recs {
		if _, err := resolve(i); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// remapper rewrites TypeRefs into interned TypeIDs across declarations and
// bodies. The first failure sticks; callers check err once after a batch.
type remapper struct {
	ids []types.TypeID // ids[0] is NoTypeID; ids[N] backs ref N
	err error
}

func (r *remapper) id(ref types.TypeID) types.TypeID {
	n := int(uint32(ref))
	if n >= len(r.ids) {
		if r.err == nil {
			r.err = fmt.Errorf("type ref %d out of range (table has %d entries)", n, len(r.ids)-1)
		}
		return types.NoTypeID
	}
	return r.ids[n]
}

func (r *remapper) all(refs []types.TypeID) {
	for i := range refs {
		refs[i] = r.id(refs[i])
	}
}

func (r *remapper) funcSig(f *symbols.FuncSig) {
	r.all(f.Params)
	f.Result = r.id(f.Result)
}

func (r *remapper) methodSig(m *symbols.MethodSig) {
	r.all(m.Params)
	m.Result = r.id(m.Result)
}

func (r *remapper) fields(fields []symbols.FieldDesc) {
	for i := range fields {
		fields[i].Type = r.id(fields[i].Type)
	}
}

func (r *remapper) props(props []symbols.Property) {
	for i := range props {
		props[i].Type = r.id(props[i].Type)
	}
}

func (r *remapper) assoc(m map[string]types.TypeID) {
	for k, v := range m {
		m[k] = r.id(v)
	}
}

func (r *remapper) structInfo(s *symbols.StructInfo) {
	r.fields(s.Fields)
	r.props(s.Props)
	for _, m := range s.Methods {
		r.methodSig(m)
	}
	r.assoc(s.AssocTypes)
}

func (r *remapper) enumInfo(en *symbols.EnumInfo) {
	for i := range en.Variants {
		r.all(en.Variants[i].Payload)
	}
	for _, m := range en.Methods {
		r.methodSig(m)
	}
	r.assoc(en.AssocTypes)
}

func (r *remapper) classInfo(cl *symbols.ClassInfo) {
	r.fields(cl.Fields)
	r.props(cl.Props)
	for i := range cl.Methods {
		r.methodSig(&cl.Methods[i])
	}
	for i := range cl.Statics {
		cl.Statics[i].Type = r.id(cl.Statics[i].Type)
	}
}

func (r *remapper) fn(f *ast.Func) {
	if f == nil {
		return
	}
	for i := range f.Params {
		f.Params[i].Type = r.id(f.Params[i].Type)
	}
	f.Result = r.id(f.Result)
	r.stmts(f.Body)
}

func (r *remapper) stmts(body []*ast.Stmt) {
	for _, s := range body {
		r.stmt(s)
	}
}

func (r *remapper) stmt(s *ast.Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.StmtLet:
		s.Let.Type = r.id(s.Let.Type)
		r.expr(s.Let.Value)
	case ast.StmtExpr:
		r.expr(s.Expr)
	case ast.StmtReturn:
		if s.Return != nil {
			r.expr(s.Return.Value)
		}
	}
}

func (r *remapper) exprs(list []*ast.Expr) {
	for _, e := range list {
		r.expr(e)
	}
}

func (r *remapper) expr(e *ast.Expr) {
	if e == nil {
		return
	}
	e.Type = r.id(e.Type)
	switch e.Kind {
	case ast.ExprLiteral, ast.ExprIdent:
	case ast.ExprBinary:
		r.expr(e.Binary.Left)
		r.expr(e.Binary.Right)
	case ast.ExprUnary:
		r.expr(e.Unary.Operand)
	case ast.ExprCast:
		r.expr(e.Cast.Value)
		e.Cast.Target = r.id(e.Cast.Target)
	case ast.ExprCall:
		r.expr(e.Call.Callee)
		r.all(e.Call.TypeArgs)
		r.exprs(e.Call.Args)
	case ast.ExprMethodCall:
		r.expr(e.Method.Receiver)
		r.all(e.Method.TypeArgs)
		r.exprs(e.Method.Args)
	case ast.ExprField:
		r.expr(e.Field.Object)
	case ast.ExprIndex:
		r.expr(e.Index.Object)
		r.expr(e.Index.Index)
	case ast.ExprStructLit:
		r.all(e.StructLit.TypeArgs)
		for i := range e.StructLit.Fields {
			r.expr(e.StructLit.Fields[i].Value)
		}
	case ast.ExprArrayLit:
		r.exprs(e.ArrayLit.Elems)
	case ast.ExprTuple:
		r.exprs(e.Tuple.Elems)
	case ast.ExprClosure:
		for i := range e.Closure.Params {
			e.Closure.Params[i].Type = r.id(e.Closure.Params[i].Type)
		}
		e.Closure.Result = r.id(e.Closure.Result)
		r.stmts(e.Closure.Body)
	case ast.ExprPath:
		r.all(e.Path.TypeArgs)
		r.exprs(e.Path.Args)
	case ast.ExprIf:
		r.expr(e.If.Cond)
		r.expr(e.If.Then)
		r.expr(e.If.Else)
	case ast.ExprTry:
		r.expr(e.Try.Value)
	case ast.ExprAwait:
		r.expr(e.Await.Value)
	case ast.ExprLowlevel:
		e.Lowlevel.Result = r.id(e.Lowlevel.Result)
	case ast.ExprInterp:
		for i := range e.Interp.Segments {
			r.expr(e.Interp.Segments[i].Expr)
		}
	}
}
