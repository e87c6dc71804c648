package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/types"
)

// genMethodCall resolves receiver.method(args) through the dispatch
// layers in order; the first layer that recognizes the pair wins:
//
//  1. primitive built-ins (numbers, bool, char, str)
//  2. collection built-ins (arrays, slices, runtime containers)
//  3. user impl methods on structs and tagged unions
//  4. class methods, bound by walking the inheritance chain
//  5. methods on types from imported module registries
func (fs *funcState) genMethodCall(e *ast.Expr) (string, string, error) {
	m := e.Method
	recvSem := fs.g.receiverBase(fs.g.InferType(fs, m.Receiver))
	t, ok := fs.g.Types.Lookup(recvSem)
	if !ok {
		fs.errorf(diag.GenUnknownMethod, e.Span, "receiver has no methods")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}

	if val, llty, handled, err := fs.primitiveMethod(e, recvSem, t); handled || err != nil {
		return val, llty, err
	}
	if val, llty, handled, err := fs.collectionMethod(e, recvSem, t); handled || err != nil {
		return val, llty, err
	}
	if val, llty, handled, err := fs.implMethod(e, recvSem, t); handled || err != nil {
		return val, llty, err
	}
	if val, llty, handled, err := fs.classMethod(e, recvSem, t); handled || err != nil {
		return val, llty, err
	}
	if val, llty, handled, err := fs.moduleMethod(e, recvSem, t); handled || err != nil {
		return val, llty, err
	}

	fs.errorf(diag.GenUnknownMethod, e.Span, "no method %q on %s", m.Method, fs.g.Types.Mangle(recvSem))
	return fs.zeroFor(fs.g.Types.Builtins().I32)
}

// builtinMethodType reports the result type of a layer-1/2 method for
// type recovery, mirroring the dispatch tables without emitting code.
func (g *Generator) builtinMethodType(t types.Type, method string) (types.TypeID, bool) {
	bi := g.Types.Builtins()
	switch t.Kind {
	case types.KindInt, types.KindUint:
		switch method {
		case "abs", "min", "max":
			return g.Types.Intern(t), true
		case "to_str":
			return bi.Str, true
		}
	case types.KindFloat:
		switch method {
		case "abs", "min", "max":
			return g.Types.Intern(t), true
		case "to_str":
			return bi.Str, true
		}
	case types.KindBool:
		if method == "to_str" {
			return bi.Str, true
		}
	case types.KindChar:
		switch method {
		case "code":
			return bi.I32, true
		case "to_str":
			return bi.Str, true
		}
	case types.KindStr:
		switch method {
		case "len", "find", "hash":
			return bi.I64, true
		case "is_empty", "contains":
			return bi.Bool, true
		case "substring", "concat":
			return bi.Str, true
		}
	case types.KindArray:
		if method == "len" {
			return bi.I64, true
		}
	case types.KindSlice:
		switch method {
		case "len":
			return bi.I64, true
		case "get":
			return t.Elem, true
		}
	case types.KindNamed:
		switch t.Name {
		case "List":
			switch method {
			case "len":
				return bi.I64, true
			case "get", "pop":
				if len(t.Args) > 0 {
					return t.Args[0], true
				}
			case "push", "set", "clear":
				return bi.Unit, true
			}
		case "Map", "HashMap":
			switch method {
			case "len":
				return bi.I64, true
			case "get":
				if len(t.Args) > 1 {
					return t.Args[1], true
				}
			case "contains", "remove":
				return bi.Bool, true
			case "insert":
				return bi.Unit, true
			}
		}
	}
	return bi.Unit, false
}
