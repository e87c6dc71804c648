package codegen

import (
	"strings"

	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/symbols"
	"tml/internal/types"
)

func (fs *funcState) genCall(e *ast.Expr) (string, string, error) {
	c := e.Call
	if c.Callee.Kind == ast.ExprIdent {
		name := c.Callee.Ident.Name
		if f, ok := fs.g.Env.LookupFunc(name); ok {
			return fs.genFuncCall(e, f)
		}
		if _, ok := fs.locals[name]; !ok {
			fs.errorf(diag.GenUnknownFunction, e.Span, "unknown function %q", name)
			return fs.zeroFor(fs.g.Types.Builtins().I32)
		}
	}
	// indirect call through a function value
	callee, _, err := fs.genExpr(c.Callee)
	if err != nil {
		return "", "", err
	}
	ct := fs.g.InferType(fs, c.Callee)
	t, ok := fs.g.Types.Lookup(ct)
	if !ok || t.Kind != types.KindFunc {
		fs.errorf(diag.GenUnknownFunction, e.Span, "called value is not a function")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	args, err := fs.genArgs(c.Args, t.Args, nil)
	if err != nil {
		return "", "", err
	}
	return fs.emitCall(callee, t.Elem, args)
}

func (fs *funcState) genFuncCall(e *ast.Expr, f *symbols.FuncSig) (string, string, error) {
	c := e.Call
	if len(c.Args) != len(f.Params) && !f.Variadic {
		fs.errorf(diag.GenWrongArgCount, e.Span, "%s expects %d arguments, got %d", f.Name, len(f.Params), len(c.Args))
		return fs.zeroFor(f.Result)
	}

	symbol := "@tml_" + f.Name
	var subs map[string]types.TypeID
	result := f.Result
	if len(f.Generics) > 0 {
		if len(c.TypeArgs) > 0 && len(c.TypeArgs) != len(f.Generics) {
			fs.errorf(diag.GenWrongTypeArgs, e.Span, "%s expects %d type arguments, got %d", f.Name, len(f.Generics), len(c.TypeArgs))
			return fs.zeroFor(f.Result)
		}
		subs = fs.g.callSubs(fs, f, c.TypeArgs, c.Args)
		argIDs := make([]types.TypeID, 0, len(f.Generics))
		for _, gp := range f.Generics {
			concrete, bound := subs[gp]
			if !bound {
				fs.errorf(diag.GenWrongTypeArgs, e.Span, "cannot infer type parameter %s of %s", gp, f.Name)
				return fs.zeroFor(f.Result)
			}
			argIDs = append(argIDs, concrete)
		}
		fs.g.Mono.Request(mono.JobFunc, f.Name, "", argIDs, subs)
		symbol = "@tml_" + fs.g.Types.MangleName(f.Name, argIDs)
		result = mono.Apply(fs.g.Types, subs, f.Result)
	}

	args, err := fs.genArgs(c.Args, f.Params, subs)
	if err != nil {
		return "", "", err
	}
	return fs.emitCall(symbol, result, args)
}

// genArgs lowers arguments and coerces each to the declared parameter
// storage type under the call's substitution.
func (fs *funcState) genArgs(args []*ast.Expr, params []types.TypeID, subs map[string]types.TypeID) ([]string, error) {
	out := make([]string, 0, len(args))
	for i, a := range args {
		val, have, err := fs.genExpr(a)
		if err != nil {
			return nil, err
		}
		if i < len(params) {
			sem := mono.Apply(fs.g.Types, subs, params[i])
			want := fs.g.llvmValueType(sem)
			val, have = fs.coerceValue(val, have, want, sem)
			out = append(out, have+" "+val)
		} else {
			out = append(out, have+" "+val)
		}
	}
	return out, nil
}

func (fs *funcState) emitCall(callee string, result types.TypeID, args []string) (string, string, error) {
	retLL := fs.g.llvmType(result)
	argList := strings.Join(args, ", ")
	if retLL == "void" {
		fs.line("  call void %s(%s)", callee, argList)
		return "0", "i1", nil
	}
	reg := fs.nextReg()
	fs.line("  %s = call %s %s(%s)", reg, retLL, callee, argList)
	return reg, retLL, nil
}

// genPath lowers qualified names: Enum::Variant constructors, class and
// struct static methods, imported-module functions, static fields.
func (fs *funcState) genPath(e *ast.Expr) (string, string, error) {
	p := e.Path
	if len(p.Segments) == 1 {
		ident := &ast.Expr{Kind: ast.ExprIdent, Span: e.Span, Type: e.Type, Ident: &ast.IdentExpr{Name: p.Segments[0]}}
		if p.IsCall {
			return fs.genCall(&ast.Expr{Kind: ast.ExprCall, Span: e.Span, Call: &ast.CallExpr{Callee: ident, TypeArgs: p.TypeArgs, Args: p.Args}})
		}
		return fs.genExpr(ident)
	}
	head, last := p.Segments[0], p.Segments[len(p.Segments)-1]

	if _, ok := fs.g.Env.LookupEnum(head); ok {
		if v, ok := fs.g.Env.VariantOf(head, last); ok {
			return fs.genVariantCtor(e, head, v)
		}
		fs.errorf(diag.GenUnknownVariant, e.Span, "union %s has no variant %q", head, last)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	if c, ok := fs.g.Env.LookupClass(head); ok {
		if sf, ok := fs.g.Env.StaticOf(head, last); ok {
			llty := fs.g.llvmValueType(sf.Type)
			reg := fs.nextReg()
			fs.line("  %s = load %s, ptr @%s", reg, llty, sf.Global)
			return reg, llty, nil
		}
		for i := range c.Methods {
			m := &c.Methods[i]
			if m.Name == last && m.Static {
				return fs.genStaticCall(e, head, c.Generics, m)
			}
		}
	}

	if s, ok := fs.g.Env.LookupStruct(head); ok {
		if sig, ok := s.Methods[last]; ok && sig.Static {
			return fs.genStaticCall(e, head, s.Generics, sig)
		}
	}
	if en, ok := fs.g.Env.LookupEnum(head); ok {
		if sig, ok := en.Methods[last]; ok && sig.Static {
			return fs.genStaticCall(e, head, en.Generics, sig)
		}
	}

	if m, ok := fs.g.Env.LookupModule(head); ok {
		if f, ok := m.Funcs[last]; ok {
			args, err := fs.genArgs(p.Args, f.Params, nil)
			if err != nil {
				return "", "", err
			}
			return fs.emitCall("@tml_"+m.Name+"_"+f.Name, f.Result, args)
		}
		fs.errorf(diag.GenUnresolvedPath, e.Span, "module %s has no item %q", head, last)
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	fs.errorf(diag.GenUnresolvedPath, e.Span, "cannot resolve path %s", strings.Join(p.Segments, "::"))
	return fs.zeroFor(fs.g.Types.Builtins().I32)
}

// genStaticCall lowers Type::method(args). The receiver type's concrete
// arguments come from explicit path type arguments.
func (fs *funcState) genStaticCall(e *ast.Expr, base string, generics []string, sig *symbols.MethodSig) (string, string, error) {
	p := e.Path
	typeArgs := make([]types.TypeID, len(p.TypeArgs))
	for i, a := range p.TypeArgs {
		typeArgs[i] = fs.g.applySubs(fs, a)
	}
	subs := fs.g.bindAll(generics, typeArgs)
	mangled := fs.g.Types.MangleName(base, typeArgs)
	if len(generics) > 0 {
		fs.requestTypeJobs(base, typeArgs, subs)
		fs.g.Mono.Request(mono.JobMethod, base, sig.Name, typeArgs, subs)
	}
	args, err := fs.genArgs(p.Args, sig.Params, subs)
	if err != nil {
		return "", "", err
	}
	return fs.emitCall("@tml_"+mangled+"_"+sig.Name, mono.Apply(fs.g.Types, subs, sig.Result), args)
}

// requestTypeJobs schedules the layout specialization behind a concrete
// use of a generic struct or enum.
func (fs *funcState) requestTypeJobs(base string, args []types.TypeID, subs map[string]types.TypeID) {
	if len(args) == 0 {
		return
	}
	if _, ok := fs.g.Env.LookupStruct(base); ok {
		fs.g.Mono.Request(mono.JobStruct, base, "", args, subs)
	}
	if _, ok := fs.g.Env.LookupEnum(base); ok {
		fs.g.Mono.Request(mono.JobEnum, base, "", args, subs)
	}
}

// receiverPointer lowers a method receiver to a pointer: lvalues by
// address, rvalues through a spill slot, reference values directly.
func (fs *funcState) receiverPointer(obj *ast.Expr) (string, error) {
	sem := fs.g.InferType(fs, obj)
	if t, ok := fs.g.Types.Lookup(sem); ok {
		if t.Kind == types.KindRef || t.Kind == types.KindPtr {
			val, _, err := fs.genExpr(obj)
			return val, err
		}
		if t.Kind == types.KindClass && !fs.g.isValueClass(t.Name) {
			val, _, err := fs.genExpr(obj)
			return val, err
		}
	}
	if ptr, _, _, ok := fs.genAddr(obj); ok {
		return ptr, nil
	}
	val, llty, err := fs.genExpr(obj)
	if err != nil {
		return "", err
	}
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s %s, ptr %s", llty, val, slot)
	return slot, nil
}
