package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/symbols"
	"tml/internal/types"
)

// moduleMethod is dispatch layer 5: methods on types declared in imported
// modules. The body is compiled in the defining unit, so the call binds by
// mangled name with no specialization scheduled here.
func (fs *funcState) moduleMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	if t.Kind != types.KindNamed {
		return "", "", false, nil
	}
	m := e.Method

	sig, generics := findModuleMethod(fs.g.Env, t.Module, t.Name, m.Method)
	if sig == nil {
		return "", "", false, nil
	}
	if len(m.Args) != len(sig.Params) {
		fs.errorf(diag.GenWrongArgCount, e.Span, "%s.%s expects %d arguments, got %d",
			t.Name, m.Method, len(sig.Params), len(m.Args))
		v, l, _ := fs.zeroFor(sig.Result)
		return v, l, true, nil
	}

	subs := fs.g.bindAll(generics, t.Args)
	mangled := fs.g.Types.MangleName(t.Name, t.Args)

	recv, err := fs.receiverPointer(m.Receiver)
	if err != nil {
		return "", "", true, err
	}
	args, err := fs.genArgs(m.Args, sig.Params, subs)
	if err != nil {
		return "", "", true, err
	}
	all := append([]string{"ptr " + recv}, args...)
	val, llty, err := fs.emitCall("@tml_"+mangled+"_"+m.Method, mono.Apply(fs.g.Types, subs, sig.Result), all)
	return val, llty, true, err
}

// findModuleMethod searches imported registries for the receiver's type,
// preferring the module the type names itself after.
func findModuleMethod(env *symbols.Env, module, name, method string) (*symbols.MethodSig, []string) {
	if module != "" {
		if m, ok := env.LookupModule(module); ok {
			return registryMethod(m, name, method)
		}
		return nil, nil
	}
	for _, m := range env.Modules {
		if sig, generics := registryMethod(m, name, method); sig != nil {
			return sig, generics
		}
	}
	return nil, nil
}

func registryMethod(m *symbols.Module, name, method string) (*symbols.MethodSig, []string) {
	if s, ok := m.Structs[name]; ok {
		if sig, ok := s.Methods[method]; ok {
			return sig, s.Generics
		}
	}
	if en, ok := m.Enums[name]; ok {
		if sig, ok := en.Methods[method]; ok {
			return sig, en.Generics
		}
	}
	return nil, nil
}
