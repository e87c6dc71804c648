package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/types"
)

// primitiveMethod is dispatch layer 1: intrinsic methods on numbers,
// bool, char and str. Returns handled=false when the pair is not an
// intrinsic so the next layer gets a look.
func (fs *funcState) primitiveMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	m := e.Method
	switch t.Kind {
	case types.KindInt, types.KindUint:
		return fs.intMethod(e, recvSem, t)
	case types.KindFloat:
		return fs.floatMethod(e, recvSem, t)
	case types.KindBool:
		if m.Method != "to_str" {
			return "", "", false, nil
		}
		val, _, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_from_bool(i1 %s)", reg, val)
		return reg, "ptr", true, nil
	case types.KindChar:
		return fs.charMethod(e)
	case types.KindStr:
		return fs.strMethod(e)
	}
	return "", "", false, nil
}

func (fs *funcState) intMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	m := e.Method
	switch m.Method {
	case "abs":
		val, llty, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		if t.IsUnsigned() {
			return val, llty, true, nil
		}
		neg := fs.nextReg()
		fs.line("  %s = sub %s 0, %s", neg, llty, val)
		isNeg := fs.nextReg()
		fs.line("  %s = icmp slt %s %s, 0", isNeg, llty, val)
		reg := fs.nextReg()
		fs.line("  %s = select i1 %s, %s %s, %s %s", reg, isNeg, llty, neg, llty, val)
		return reg, llty, true, nil
	case "min", "max":
		if len(m.Args) != 1 {
			fs.errorf(diag.GenWrongArgCount, e.Span, "%s expects 1 argument", m.Method)
			v, l, _ := fs.zeroFor(recvSem)
			return v, l, true, nil
		}
		val, llty, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		arg, have, err := fs.genExpr(m.Args[0])
		if err != nil {
			return "", "", true, err
		}
		arg, _ = fs.coerceValue(arg, have, llty, recvSem)
		pred := "slt"
		if t.IsUnsigned() {
			pred = "ult"
		}
		if m.Method == "max" {
			pred = "sgt"
			if t.IsUnsigned() {
				pred = "ugt"
			}
		}
		cmp := fs.nextReg()
		fs.line("  %s = icmp %s %s %s, %s", cmp, pred, llty, val, arg)
		reg := fs.nextReg()
		fs.line("  %s = select i1 %s, %s %s, %s %s", reg, cmp, llty, val, llty, arg)
		return reg, llty, true, nil
	case "to_str":
		v, err := fs.stringify(m.Receiver)
		return v, "ptr", true, err
	}
	return "", "", false, nil
}

func (fs *funcState) floatMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	m := e.Method
	switch m.Method {
	case "abs":
		val, llty, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		neg := fs.nextReg()
		fs.line("  %s = fneg %s %s", neg, llty, val)
		isNeg := fs.nextReg()
		fs.line("  %s = fcmp olt %s %s, 0.0", isNeg, llty, val)
		reg := fs.nextReg()
		fs.line("  %s = select i1 %s, %s %s, %s %s", reg, isNeg, llty, neg, llty, val)
		return reg, llty, true, nil
	case "min", "max":
		if len(m.Args) != 1 {
			fs.errorf(diag.GenWrongArgCount, e.Span, "%s expects 1 argument", m.Method)
			v, l, _ := fs.zeroFor(recvSem)
			return v, l, true, nil
		}
		val, llty, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		arg, have, err := fs.genExpr(m.Args[0])
		if err != nil {
			return "", "", true, err
		}
		arg, _ = fs.coerceValue(arg, have, llty, recvSem)
		pred := "olt"
		if m.Method == "max" {
			pred = "ogt"
		}
		cmp := fs.nextReg()
		fs.line("  %s = fcmp %s %s %s, %s", cmp, pred, llty, val, arg)
		reg := fs.nextReg()
		fs.line("  %s = select i1 %s, %s %s, %s %s", reg, cmp, llty, val, llty, arg)
		return reg, llty, true, nil
	case "to_str":
		v, err := fs.stringify(m.Receiver)
		return v, "ptr", true, err
	}
	return "", "", false, nil
}

func (fs *funcState) charMethod(e *ast.Expr) (string, string, bool, error) {
	m := e.Method
	switch m.Method {
	case "code":
		val, _, err := fs.genExpr(m.Receiver)
		return val, "i32", true, err
	case "to_str":
		val, _, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_from_char(i32 %s)", reg, val)
		return reg, "ptr", true, nil
	}
	return "", "", false, nil
}

func (fs *funcState) strMethod(e *ast.Expr) (string, string, bool, error) {
	m := e.Method
	recv := func() (string, error) {
		v, _, err := fs.genExpr(m.Receiver)
		return v, err
	}
	switch m.Method {
	case "len":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call i64 @str_len(ptr %s)", reg, v)
		return reg, "i64", true, nil
	case "is_empty":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		n := fs.nextReg()
		fs.line("  %s = call i64 @str_len(ptr %s)", n, v)
		reg := fs.nextReg()
		fs.line("  %s = icmp eq i64 %s, 0", reg, n)
		return reg, "i1", true, nil
	case "hash":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call i64 @str_hash(ptr %s)", reg, v)
		return reg, "i64", true, nil
	case "find":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		arg, _, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call i64 @str_find(ptr %s, ptr %s)", reg, v, arg)
		return reg, "i64", true, nil
	case "contains":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		arg, _, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		pos := fs.nextReg()
		fs.line("  %s = call i64 @str_find(ptr %s, ptr %s)", pos, v, arg)
		reg := fs.nextReg()
		fs.line("  %s = icmp sge i64 %s, 0", reg, pos)
		return reg, "i1", true, nil
	case "substring":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		lo, loLL, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		hi, hiLL, err := fs.genExprArg(m, 1, e)
		if err != nil {
			return "", "", true, err
		}
		lo, _ = fs.coerceValue(lo, loLL, "i64", fs.g.Types.Builtins().I64)
		hi, _ = fs.coerceValue(hi, hiLL, "i64", fs.g.Types.Builtins().I64)
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_substring(ptr %s, i64 %s, i64 %s)", reg, v, lo, hi)
		return reg, "ptr", true, nil
	case "concat":
		v, err := recv()
		if err != nil {
			return "", "", true, err
		}
		arg, _, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_concat(ptr %s, ptr %s)", reg, v, arg)
		return reg, "ptr", true, nil
	}
	return "", "", false, nil
}

// genExprArg lowers argument i of a method call, diagnosing a missing one.
func (fs *funcState) genExprArg(m *ast.MethodCallExpr, i int, e *ast.Expr) (string, string, error) {
	if i >= len(m.Args) {
		fs.errorf(diag.GenWrongArgCount, e.Span, "%s expects at least %d arguments", m.Method, i+1)
		return "0", "i64", nil
	}
	return fs.genExpr(m.Args[i])
}
