package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/symbols"
	"tml/internal/types"
)

// implMethod is dispatch layer 3: user-declared impl methods on structs
// and tagged unions. The receiver passes by pointer; a generic receiver
// schedules the specialized body before calling it by mangled name.
func (fs *funcState) implMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	if t.Kind != types.KindNamed {
		return "", "", false, nil
	}
	m := e.Method

	var (
		sig      *symbols.MethodSig
		generics []string
	)
	if s, ok := fs.g.Env.LookupStruct(t.Name); ok {
		if ms, ok := s.Methods[m.Method]; ok {
			sig, generics = ms, s.Generics
		}
	}
	if sig == nil {
		if en, ok := fs.g.Env.LookupEnum(t.Name); ok {
			if ms, ok := en.Methods[m.Method]; ok {
				sig, generics = ms, en.Generics
			}
		}
	}
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
	if len(generics) > 0 {
		fs.requestTypeJobs(t.Name, t.Args, subs)
		fs.g.Mono.Request(mono.JobMethod, t.Name, m.Method, t.Args, subs)
	}

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
