package codegen

import (
	"math"

	"tml/internal/ast"
	"tml/internal/mono"
	"tml/internal/symbols"
	"tml/internal/types"
)

// InferType recovers the semantic type of an expression. A front-end
// annotation wins when present; otherwise the type is reconstructed
// structurally, with i32 / f64 literal defaults. The result always has the
// active substitution applied.
func (g *Generator) InferType(fs *funcState, e *ast.Expr) types.TypeID {
	if e == nil {
		return g.Types.Builtins().Unit
	}
	if e.Type != types.NoTypeID {
		return mono.Apply(g.Types, fs.subs, e.Type)
	}
	return mono.Apply(g.Types, fs.subs, g.recoverType(fs, e))
}

func (g *Generator) recoverType(fs *funcState, e *ast.Expr) types.TypeID {
	bi := g.Types.Builtins()
	switch e.Kind {
	case ast.ExprLiteral:
		return g.literalType(e.Lit)
	case ast.ExprIdent:
		return g.identType(fs, e.Ident.Name)
	case ast.ExprBinary:
		return g.binaryType(fs, e.Binary)
	case ast.ExprUnary:
		return g.unaryType(fs, e.Unary)
	case ast.ExprCast:
		return e.Cast.Target
	case ast.ExprCall:
		return g.callType(fs, e.Call)
	case ast.ExprMethodCall:
		return g.methodCallType(fs, e.Method)
	case ast.ExprField:
		return g.fieldType(fs, e.Field)
	case ast.ExprIndex:
		obj := g.InferType(fs, e.Index.Object)
		if t, ok := g.Types.Lookup(obj); ok {
			switch t.Kind {
			case types.KindArray, types.KindSlice:
				return t.Elem
			case types.KindStr:
				return bi.Char
			case types.KindRef, types.KindPtr:
				if et, ok := g.Types.Lookup(t.Elem); ok && (et.Kind == types.KindArray || et.Kind == types.KindSlice) {
					return et.Elem
				}
			case types.KindNamed, types.KindClass:
				if len(t.Args) > 0 {
					return t.Args[0]
				}
			}
		}
		return bi.Unit
	case ast.ExprStructLit:
		if _, ok := g.Env.LookupClass(e.StructLit.Name); ok {
			return g.Types.Intern(types.MakeClass(e.StructLit.Name, e.StructLit.TypeArgs))
		}
		return g.Types.Intern(types.MakeNamed(e.StructLit.Name, "", e.StructLit.TypeArgs))
	case ast.ExprArrayLit:
		elem := bi.I32
		if len(e.ArrayLit.Elems) > 0 {
			elem = g.InferType(fs, e.ArrayLit.Elems[0])
		}
		return g.Types.Intern(types.MakeArray(elem, uint32(len(e.ArrayLit.Elems))))
	case ast.ExprTuple:
		elems := make([]types.TypeID, len(e.Tuple.Elems))
		for i, el := range e.Tuple.Elems {
			elems[i] = g.InferType(fs, el)
		}
		return g.Types.Intern(types.MakeTuple(elems))
	case ast.ExprClosure:
		params := make([]types.TypeID, len(e.Closure.Params))
		for i, p := range e.Closure.Params {
			params[i] = p.Type
		}
		return g.Types.Intern(types.MakeFunc(params, e.Closure.Result, false))
	case ast.ExprPath:
		return g.pathType(fs, e.Path)
	case ast.ExprIf:
		if e.If.Else == nil {
			return bi.Unit
		}
		return g.InferType(fs, e.If.Then)
	case ast.ExprTry:
		return g.trySuccessType(fs, e.Try.Value)
	case ast.ExprAwait:
		return g.InferType(fs, e.Await.Value)
	case ast.ExprLowlevel:
		return e.Lowlevel.Result
	case ast.ExprInterp:
		return bi.Str
	}
	// Unhandled node kinds degrade to i32 so arithmetic around them
	// still lowers to something well-typed.
	return bi.I32
}

// literalType applies the literal defaults: integers land on I32 unless
// the value does not fit, floats on F64.
func (g *Generator) literalType(lit *ast.LiteralExpr) types.TypeID {
	bi := g.Types.Builtins()
	switch lit.LitKind {
	case ast.LitInt:
		if lit.IntVal > math.MaxInt32 {
			return bi.I64
		}
		return bi.I32
	case ast.LitFloat:
		return bi.F64
	case ast.LitBool:
		return bi.Bool
	case ast.LitString:
		return bi.Str
	case ast.LitChar:
		return bi.Char
	case ast.LitNull:
		return g.Types.Intern(types.MakePtr(bi.Unit, false))
	}
	return bi.Unit
}

func (g *Generator) identType(fs *funcState, name string) types.TypeID {
	if l, ok := fs.locals[name]; ok {
		return l.Sem
	}
	if c, ok := g.Env.Consts[name]; ok {
		return c.Type
	}
	if f, ok := g.Env.LookupFunc(name); ok {
		params := append([]types.TypeID(nil), f.Params...)
		return g.Types.Intern(types.MakeFunc(params, f.Result, f.Variadic))
	}
	if en, _, ok := g.Env.VariantByName(name); ok {
		return g.Types.Intern(types.MakeNamed(en.Name, en.Module, nil))
	}
	return g.Types.Builtins().I32
}

func (g *Generator) binaryType(fs *funcState, b *ast.BinaryExpr) types.TypeID {
	bi := g.Types.Builtins()
	if b.Op.IsComparison() || b.Op.IsLogical() {
		return bi.Bool
	}
	if b.Op == ast.BinAssign || b.Op.IsCompoundAssign() {
		return bi.Unit
	}
	lt := g.InferType(fs, b.Left)
	rt := g.InferType(fs, b.Right)
	return g.promote(lt, rt)
}

// promote picks the result type of a mixed numeric operation: floats
// dominate integers, the wider width wins, and unsignedness of either
// operand makes the result unsigned.
func (g *Generator) promote(a, b types.TypeID) types.TypeID {
	if a == b {
		return a
	}
	ta, okA := g.Types.Lookup(a)
	tb, okB := g.Types.Lookup(b)
	if !okA || !okB || !ta.IsNumeric() || !tb.IsNumeric() {
		return a
	}
	if ta.Kind == types.KindFloat || tb.Kind == types.KindFloat {
		if ta.Kind == types.KindFloat && tb.Kind == types.KindFloat {
			if ta.Width >= tb.Width {
				return a
			}
			return b
		}
		if ta.Kind == types.KindFloat {
			return a
		}
		return b
	}
	width := ta.Width
	if tb.Width > width {
		width = tb.Width
	}
	if ta.IsUnsigned() || tb.IsUnsigned() {
		return g.Types.Intern(types.MakeUint(width))
	}
	return g.Types.Intern(types.MakeInt(width))
}

func (g *Generator) unaryType(fs *funcState, u *ast.UnaryExpr) types.TypeID {
	inner := g.InferType(fs, u.Operand)
	switch u.Op {
	case ast.UnNot:
		return g.Types.Builtins().Bool
	case ast.UnNeg, ast.UnBitNot:
		return inner
	case ast.UnDeref:
		if t, ok := g.Types.Lookup(inner); ok && (t.Kind == types.KindRef || t.Kind == types.KindPtr) {
			return t.Elem
		}
		return inner
	case ast.UnAddrOf:
		return g.Types.Intern(types.MakeRef(inner, false))
	case ast.UnAddrOfMut:
		return g.Types.Intern(types.MakeRef(inner, true))
	}
	return inner
}

func (g *Generator) callType(fs *funcState, c *ast.CallExpr) types.TypeID {
	if c.Callee.Kind == ast.ExprIdent {
		if f, ok := g.Env.LookupFunc(c.Callee.Ident.Name); ok {
			if len(f.Generics) == 0 {
				return f.Result
			}
			subs := g.callSubs(fs, f, c.TypeArgs, c.Args)
			return mono.Apply(g.Types, subs, f.Result)
		}
	}
	ct := g.InferType(fs, c.Callee)
	if t, ok := g.Types.Lookup(ct); ok && t.Kind == types.KindFunc {
		return t.Elem
	}
	return g.Types.Builtins().Unit
}

// callSubs binds a generic function's parameters from explicit type
// arguments first, then by unifying declared parameter types against the
// inferred argument types.
func (g *Generator) callSubs(fs *funcState, f *symbols.FuncSig, typeArgs []types.TypeID, args []*ast.Expr) map[string]types.TypeID {
	subs := make(map[string]types.TypeID, len(f.Generics))
	for i, gp := range f.Generics {
		if i < len(typeArgs) {
			mono.BindParam(g.Types, g.Env, subs, gp, mono.Apply(g.Types, fs.subs, typeArgs[i]))
		}
	}
	if len(subs) < len(f.Generics) {
		gset := mono.GenericSet(f.Generics)
		for i, p := range f.Params {
			if i >= len(args) {
				break
			}
			mono.Unify(g.Types, gset, p, g.InferType(fs, args[i]), subs)
		}
		for gp, concrete := range subs {
			mono.BindParam(g.Types, g.Env, subs, gp, concrete)
		}
	}
	return subs
}

func (g *Generator) methodCallType(fs *funcState, m *ast.MethodCallExpr) types.TypeID {
	recv := g.receiverBase(g.InferType(fs, m.Receiver))
	t, ok := g.Types.Lookup(recv)
	if !ok {
		return g.Types.Builtins().Unit
	}
	if res, ok := g.builtinMethodType(t, m.Method); ok {
		return res
	}
	sig, subs := g.lookupMethodSig(t, m.Method)
	if sig == nil {
		return g.Types.Builtins().Unit
	}
	return mono.Apply(g.Types, subs, sig.Result)
}

// lookupMethodSig resolves a method on a named type together with the
// substitution binding the declaration's generics to the receiver's
// concrete arguments.
func (g *Generator) lookupMethodSig(t types.Type, method string) (*symbols.MethodSig, map[string]types.TypeID) {
	if s, ok := g.Env.LookupStruct(t.Name); ok {
		if sig, ok := s.Methods[method]; ok {
			return sig, g.bindAll(s.Generics, t.Args)
		}
	}
	if en, ok := g.Env.LookupEnum(t.Name); ok {
		if sig, ok := en.Methods[method]; ok {
			return sig, g.bindAll(en.Generics, t.Args)
		}
	}
	if c, ok := g.Env.LookupClass(t.Name); ok {
		for _, cls := range g.Env.ClassChain(c.Name) {
			for i := range cls.Methods {
				if cls.Methods[i].Name == method {
					return &cls.Methods[i], g.bindAll(cls.Generics, t.Args)
				}
			}
		}
	}
	if sig, generics := findModuleMethod(g.Env, t.Module, t.Name, method); sig != nil {
		return sig, g.bindAll(generics, t.Args)
	}
	return nil, nil
}

func (g *Generator) bindAll(generics []string, args []types.TypeID) map[string]types.TypeID {
	if len(generics) == 0 {
		return nil
	}
	subs := make(map[string]types.TypeID, len(generics))
	for i, gp := range generics {
		if i < len(args) {
			mono.BindParam(g.Types, g.Env, subs, gp, args[i])
		}
	}
	return subs
}

// receiverBase peels references off a receiver type so method lookup sees
// the underlying named type.
func (g *Generator) receiverBase(id types.TypeID) types.TypeID {
	for {
		t, ok := g.Types.Lookup(id)
		if !ok || (t.Kind != types.KindRef && t.Kind != types.KindPtr) {
			return id
		}
		id = t.Elem
	}
}

func (g *Generator) fieldType(fs *funcState, f *ast.FieldExpr) types.TypeID {
	obj := g.receiverBase(g.InferType(fs, f.Object))
	t, ok := g.Types.Lookup(obj)
	if !ok {
		return g.Types.Builtins().Unit
	}
	if f.TupleIdx >= 0 {
		if t.Kind == types.KindTuple && f.TupleIdx < len(t.Args) {
			return t.Args[f.TupleIdx]
		}
		return g.Types.Builtins().Unit
	}
	if fd, ok := g.Env.FieldOf(t.Name, f.Name); ok {
		return mono.Apply(g.Types, g.declSubs(t), fd.Type)
	}
	if p, ok := g.Env.PropertyOf(t.Name, f.Name); ok {
		return mono.Apply(g.Types, g.declSubs(t), p.Type)
	}
	return g.Types.Builtins().I32
}

// declSubs binds a named type's declared generics to its concrete
// arguments so declaration-level field types specialize.
func (g *Generator) declSubs(t types.Type) map[string]types.TypeID {
	if len(t.Args) == 0 {
		return nil
	}
	if s, ok := g.Env.LookupStruct(t.Name); ok {
		return mono.BuildSubs(s.Generics, t.Args)
	}
	if en, ok := g.Env.LookupEnum(t.Name); ok {
		return mono.BuildSubs(en.Generics, t.Args)
	}
	if c, ok := g.Env.LookupClass(t.Name); ok {
		return mono.BuildSubs(c.Generics, t.Args)
	}
	return nil
}

func (g *Generator) pathType(fs *funcState, p *ast.PathExpr) types.TypeID {
	bi := g.Types.Builtins()
	if len(p.Segments) < 2 {
		if len(p.Segments) == 1 {
			return g.identType(fs, p.Segments[0])
		}
		return bi.Unit
	}
	head, last := p.Segments[0], p.Segments[len(p.Segments)-1]
	if en, ok := g.Env.LookupEnum(head); ok {
		if _, ok := g.Env.VariantOf(head, last); ok {
			return g.Types.Intern(types.MakeNamed(en.Name, en.Module, p.TypeArgs))
		}
	}
	if c, ok := g.Env.LookupClass(head); ok {
		if sf, ok := g.Env.StaticOf(head, last); ok {
			return sf.Type
		}
		for i := range c.Methods {
			if c.Methods[i].Name == last && c.Methods[i].Static {
				return c.Methods[i].Result
			}
		}
	}
	if s, ok := g.Env.LookupStruct(head); ok {
		if sig, ok := s.Methods[last]; ok && sig.Static {
			subs := g.bindAll(s.Generics, p.TypeArgs)
			return mono.Apply(g.Types, subs, sig.Result)
		}
	}
	if m, ok := g.Env.LookupModule(head); ok {
		if f, ok := m.Funcs[last]; ok {
			return f.Result
		}
	}
	return bi.Unit
}

// trySuccessType is the payload type of variant 0 of the operand's tagged
// union, Unit when the variant carries no payload.
func (g *Generator) trySuccessType(fs *funcState, value *ast.Expr) types.TypeID {
	obj := g.InferType(fs, value)
	t, ok := g.Types.Lookup(obj)
	if !ok || t.Kind != types.KindNamed {
		return g.Types.Builtins().Unit
	}
	en, ok := g.Env.LookupEnum(t.Name)
	if !ok || len(en.Variants) == 0 || len(en.Variants[0].Payload) == 0 {
		return g.Types.Builtins().Unit
	}
	return mono.Apply(g.Types, g.declSubs(t), en.Variants[0].Payload[0])
}
