package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/symbols"
	"tml/internal/types"
)

// classMethod is dispatch layer 4: methods on class instances. The call
// binds to the nearest declaration on the receiver's inheritance chain and
// is emitted as a direct call; the vtable exists for `is` checks and class
// casts, not for method dispatch.
func (fs *funcState) classMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	if t.Kind != types.KindClass {
		return "", "", false, nil
	}
	m := e.Method
	c, ok := fs.g.Env.LookupClass(t.Name)
	if !ok {
		return "", "", false, nil
	}

	sig, owner := findClassMethod(fs.g, c, m.Method)
	if sig == nil {
		return "", "", false, nil
	}
	if len(m.Args) != len(sig.Params) {
		fs.errorf(diag.GenWrongArgCount, e.Span, "%s.%s expects %d arguments, got %d",
			c.Name, m.Method, len(sig.Params), len(m.Args))
		v, l, _ := fs.zeroFor(sig.Result)
		return v, l, true, nil
	}

	args, err := fs.genArgs(m.Args, sig.Params, nil)
	if err != nil {
		return "", "", true, err
	}

	if sig.Static {
		val, llty, err := fs.emitCall("@tml_"+owner+"_"+m.Method, sig.Result, args)
		return val, llty, true, err
	}

	recv, err := fs.receiverPointer(m.Receiver)
	if err != nil {
		return "", "", true, err
	}

	all := append([]string{"ptr " + recv}, args...)
	val, llty, err := fs.emitCall("@tml_"+owner+"_"+m.Method, sig.Result, all)
	return val, llty, true, err
}

// findClassMethod walks the inheritance chain for the nearest declaration
// of the method, returning its signature and the declaring class name.
func findClassMethod(g *Generator, c *symbols.ClassInfo, method string) (*symbols.MethodSig, string) {
	for _, cls := range g.Env.ClassChain(c.Name) {
		for i := range cls.Methods {
			if cls.Methods[i].Name == method {
				return &cls.Methods[i], cls.Name
			}
		}
	}
	return nil, ""
}
