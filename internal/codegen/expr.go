package codegen

import (
	"fmt"
	"strconv"

	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/types"
)

// genExpr lowers an expression and returns the value register (or
// constant) and its storage type. Semantic failures are reported through
// the diagnostic reporter and produce a typed zero so lowering can keep
// going; only internal invariant violations surface as errors.
func (fs *funcState) genExpr(e *ast.Expr) (string, string, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		return fs.genLiteral(e)
	case ast.ExprIdent:
		return fs.genIdent(e)
	case ast.ExprBinary:
		return fs.genBinary(e)
	case ast.ExprUnary:
		return fs.genUnary(e)
	case ast.ExprCast:
		return fs.genCast(e)
	case ast.ExprCall:
		return fs.genCall(e)
	case ast.ExprMethodCall:
		return fs.genMethodCall(e)
	case ast.ExprField:
		return fs.genField(e)
	case ast.ExprIndex:
		return fs.genIndex(e)
	case ast.ExprStructLit:
		return fs.genStructLit(e)
	case ast.ExprArrayLit:
		return fs.genArrayLit(e)
	case ast.ExprTuple:
		return fs.genTuple(e)
	case ast.ExprClosure:
		return fs.genClosure(e)
	case ast.ExprPath:
		return fs.genPath(e)
	case ast.ExprIf:
		return fs.genIf(e)
	case ast.ExprTry:
		return fs.genTry(e)
	case ast.ExprAwait:
		// cooperative scheduling is a front-end concern; here the awaited
		// value is already computed, so pass it through unchanged
		return fs.genExpr(e.Await.Value)
	case ast.ExprLowlevel:
		return fs.genLowlevel(e)
	case ast.ExprInterp:
		return fs.genInterp(e)
	}
	return "", "", fmt.Errorf("codegen: unknown expression kind %d", e.Kind)
}

// zeroFor reports a typed placeholder after a diagnosed failure.
func (fs *funcState) zeroFor(sem types.TypeID) (string, string, error) {
	llty := fs.g.llvmValueType(sem)
	return zeroValue(llty), llty, nil
}

func (fs *funcState) genLiteral(e *ast.Expr) (string, string, error) {
	lit := e.Lit
	sem := fs.g.InferType(fs, e)
	llty := fs.g.llvmValueType(sem)
	switch lit.LitKind {
	case ast.LitInt:
		return strconv.FormatUint(lit.IntVal, 10), llty, nil
	case ast.LitFloat:
		return formatFloat(lit.FloatVal), llty, nil
	case ast.LitBool:
		if lit.BoolVal {
			return "1", "i1", nil
		}
		return "0", "i1", nil
	case ast.LitChar:
		return strconv.FormatInt(int64(lit.CharVal), 10), "i32", nil
	case ast.LitString:
		name := fs.g.internString(lit.StrVal)
		reg := fs.nextReg()
		fs.line("  %s = getelementptr [%d x i8], ptr %s, i64 0, i64 0", reg, len(lit.StrVal)+1, name)
		return reg, "ptr", nil
	case ast.LitNull:
		return "null", "ptr", nil
	}
	return "", "", fmt.Errorf("codegen: unknown literal kind %d", lit.LitKind)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'i' {
			return s
		}
	}
	return s + ".0"
}

func (fs *funcState) genIdent(e *ast.Expr) (string, string, error) {
	name := e.Ident.Name
	if l, ok := fs.locals[name]; ok {
		if l.Direct {
			return l.Reg, l.LLVM, nil
		}
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr %s", reg, l.LLVM, l.Reg)
		return reg, l.LLVM, nil
	}
	if c, ok := fs.g.Env.Consts[name]; ok {
		llty := fs.g.llvmValueType(c.Type)
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr @%s", reg, llty, c.Global)
		return reg, llty, nil
	}
	if f, ok := fs.g.Env.LookupFunc(name); ok && len(f.Generics) == 0 {
		return "@tml_" + f.Name, "ptr", nil
	}
	if en, v, ok := fs.g.Env.VariantByName(name); ok && len(v.Payload) == 0 {
		return fs.genUnitVariant(en.Name, nil, v.Tag, e)
	}
	fs.errorf(diag.GenUnknownIdent, e.Span, "unknown identifier %q", name)
	return fs.zeroFor(fs.g.Types.Builtins().I32)
}

// genAddr lowers an addressable expression to a pointer. ok is false for
// rvalues, which the callers diagnose themselves.
func (fs *funcState) genAddr(e *ast.Expr) (ptr string, llty string, sem types.TypeID, ok bool) {
	switch e.Kind {
	case ast.ExprIdent:
		l, found := fs.locals[e.Ident.Name]
		if !found || l.Direct {
			return "", "", 0, false
		}
		if l.IsRef {
			// a binding of reference type addresses its referent
			reg := fs.nextReg()
			fs.line("  %s = load ptr, ptr %s", reg, l.Reg)
			t := fs.g.Types.MustLookup(l.Sem)
			return reg, fs.g.llvmValueType(t.Elem), t.Elem, true
		}
		return l.Reg, l.LLVM, l.Sem, true
	case ast.ExprField:
		return fs.genFieldAddr(e)
	case ast.ExprIndex:
		return fs.genIndexAddr(e)
	case ast.ExprUnary:
		if e.Unary.Op == ast.UnDeref {
			val, _, err := fs.genExpr(e.Unary.Operand)
			if err != nil {
				return "", "", 0, false
			}
			inner := fs.g.InferType(fs, e.Unary.Operand)
			t, found := fs.g.Types.Lookup(inner)
			if !found || (t.Kind != types.KindRef && t.Kind != types.KindPtr) {
				return "", "", 0, false
			}
			return val, fs.g.llvmValueType(t.Elem), t.Elem, true
		}
	case ast.ExprPath:
		if len(e.Path.Segments) == 2 {
			if sf, found := fs.g.Env.StaticOf(e.Path.Segments[0], e.Path.Segments[1]); found {
				return "@" + sf.Global, fs.g.llvmValueType(sf.Type), sf.Type, true
			}
		}
	}
	return "", "", 0, false
}

func (fs *funcState) genUnary(e *ast.Expr) (string, string, error) {
	u := e.Unary
	switch u.Op {
	case ast.UnNeg:
		val, llty, err := fs.genExpr(u.Operand)
		if err != nil {
			return "", "", err
		}
		reg := fs.nextReg()
		if llty == "float" || llty == "double" {
			fs.line("  %s = fneg %s %s", reg, llty, val)
		} else {
			fs.line("  %s = sub %s 0, %s", reg, llty, val)
		}
		return reg, llty, nil
	case ast.UnNot:
		val, llty, err := fs.genExpr(u.Operand)
		if err != nil {
			return "", "", err
		}
		reg := fs.nextReg()
		fs.line("  %s = xor %s %s, 1", reg, llty, val)
		return reg, llty, nil
	case ast.UnBitNot:
		val, llty, err := fs.genExpr(u.Operand)
		if err != nil {
			return "", "", err
		}
		reg := fs.nextReg()
		fs.line("  %s = xor %s %s, -1", reg, llty, val)
		return reg, llty, nil
	case ast.UnDeref:
		val, _, err := fs.genExpr(u.Operand)
		if err != nil {
			return "", "", err
		}
		inner := fs.g.InferType(fs, u.Operand)
		t, ok := fs.g.Types.Lookup(inner)
		if !ok || (t.Kind != types.KindRef && t.Kind != types.KindPtr) {
			fs.errorf(diag.GenInvalidOperator, e.Span, "cannot dereference non-pointer value")
			return fs.zeroFor(fs.g.Types.Builtins().I32)
		}
		elemLL := fs.g.llvmValueType(t.Elem)
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr %s", reg, elemLL, val)
		return reg, elemLL, nil
	case ast.UnAddrOf, ast.UnAddrOfMut:
		ptr, _, _, ok := fs.genAddr(u.Operand)
		if !ok {
			fs.errorf(diag.GenInvalidOperator, e.Span, "cannot take the address of this expression")
			return fs.zeroFor(fs.g.Types.Builtins().I32)
		}
		return ptr, "ptr", nil
	}
	return "", "", fmt.Errorf("codegen: unknown unary operator %d", u.Op)
}

func (fs *funcState) genIndex(e *ast.Expr) (string, string, error) {
	ptr, elemLL, _, ok := fs.genIndexAddr(e)
	if !ok {
		fs.errorf(diag.GenBadFieldAccess, e.Span, "value cannot be indexed")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, elemLL, ptr)
	return reg, elemLL, nil
}

func (fs *funcState) genIndexAddr(e *ast.Expr) (string, string, types.TypeID, bool) {
	ix := e.Index
	objSem := fs.g.InferType(fs, ix.Object)
	t, found := fs.g.Types.Lookup(objSem)
	if !found {
		return "", "", 0, false
	}
	idx, idxLL, err := fs.genExpr(ix.Index)
	if err != nil {
		return "", "", 0, false
	}
	idx, _ = fs.coerceValue(idx, idxLL, "i64", fs.g.Types.Builtins().I64)

	switch t.Kind {
	case types.KindArray:
		base, _, _, ok := fs.genAddr(ix.Object)
		if !ok {
			// rvalue array: spill so elements are addressable
			val, llty, err := fs.genExpr(ix.Object)
			if err != nil {
				return "", "", 0, false
			}
			base = fs.nextReg()
			fs.line("  %s = alloca %s", base, llty)
			fs.line("  store %s %s, ptr %s", llty, val, base)
		}
		arrLL := fs.g.llvmValueType(objSem)
		reg := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i64 0, i64 %s", reg, arrLL, base, idx)
		return reg, fs.g.llvmValueType(t.Elem), t.Elem, true
	case types.KindSlice:
		val, _, err := fs.genExpr(ix.Object)
		if err != nil {
			return "", "", 0, false
		}
		data := fs.nextReg()
		fs.line("  %s = extractvalue { ptr, i64 } %s, 0", data, val)
		elemLL := fs.g.llvmValueType(t.Elem)
		reg := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i64 %s", reg, elemLL, data, idx)
		return reg, elemLL, t.Elem, true
	case types.KindRef, types.KindPtr:
		et, ok := fs.g.Types.Lookup(t.Elem)
		if !ok || et.Kind != types.KindArray {
			return "", "", 0, false
		}
		base, _, err := fs.genExpr(ix.Object)
		if err != nil {
			return "", "", 0, false
		}
		arrLL := fs.g.llvmValueType(t.Elem)
		reg := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i64 0, i64 %s", reg, arrLL, base, idx)
		return reg, fs.g.llvmValueType(et.Elem), et.Elem, true
	}
	return "", "", 0, false
}

func (fs *funcState) genArrayLit(e *ast.Expr) (string, string, error) {
	sem := fs.g.InferType(fs, e)
	llty := fs.g.llvmValueType(sem)
	t := fs.g.Types.MustLookup(sem)
	elemLL := fs.g.llvmValueType(t.Elem)

	cur := "zeroinitializer"
	for i, el := range e.ArrayLit.Elems {
		val, have, err := fs.genExpr(el)
		if err != nil {
			return "", "", err
		}
		val, _ = fs.coerceValue(val, have, elemLL, t.Elem)
		reg := fs.nextReg()
		fs.line("  %s = insertvalue %s %s, %s %s, %d", reg, llty, cur, elemLL, val, i)
		cur = reg
	}
	return cur, llty, nil
}

func (fs *funcState) genTuple(e *ast.Expr) (string, string, error) {
	sem := fs.g.InferType(fs, e)
	llty := fs.g.llvmValueType(sem)
	t := fs.g.Types.MustLookup(sem)

	cur := "zeroinitializer"
	for i, el := range e.Tuple.Elems {
		val, have, err := fs.genExpr(el)
		if err != nil {
			return "", "", err
		}
		elemLL := fs.g.llvmValueType(t.Args[i])
		val, _ = fs.coerceValue(val, have, elemLL, t.Args[i])
		reg := fs.nextReg()
		fs.line("  %s = insertvalue %s %s, %s %s, %d", reg, llty, cur, elemLL, val, i)
		cur = reg
	}
	return cur, llty, nil
}

// genIf lowers the value form with a spill slot joined after the branch;
// the statement form (no else) emits the then arm under a conditional
// jump and yields unit.
func (fs *funcState) genIf(e *ast.Expr) (string, string, error) {
	cond, condLL, err := fs.genExpr(e.If.Cond)
	if err != nil {
		return "", "", err
	}
	cond, _ = fs.coerceValue(cond, condLL, "i1", fs.g.Types.Builtins().Bool)

	thenL := fs.nextLabel("if.then")
	elseL := fs.nextLabel("if.else")
	endL := fs.nextLabel("if.end")

	if e.If.Else == nil {
		fs.line("  br i1 %s, label %%%s, label %%%s", cond, thenL, endL)
		fs.line("%s:", thenL)
		if _, _, err := fs.genExpr(e.If.Then); err != nil {
			return "", "", err
		}
		fs.line("  br label %%%s", endL)
		fs.line("%s:", endL)
		return "0", "i1", nil
	}

	sem := fs.g.InferType(fs, e.If.Then)
	llty := fs.g.llvmValueType(sem)
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  br i1 %s, label %%%s, label %%%s", cond, thenL, elseL)

	fs.line("%s:", thenL)
	tv, thave, err := fs.genExpr(e.If.Then)
	if err != nil {
		return "", "", err
	}
	tv, _ = fs.coerceValue(tv, thave, llty, sem)
	fs.line("  store %s %s, ptr %s", llty, tv, slot)
	fs.line("  br label %%%s", endL)

	fs.line("%s:", elseL)
	ev, ehave, err := fs.genExpr(e.If.Else)
	if err != nil {
		return "", "", err
	}
	ev, _ = fs.coerceValue(ev, ehave, llty, sem)
	fs.line("  store %s %s, ptr %s", llty, ev, slot)
	fs.line("  br label %%%s", endL)

	fs.line("%s:", endL)
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, llty, slot)
	return reg, llty, nil
}

// genLowlevel pastes pre-substituted instruction lines verbatim. The last
// line's destination register, when present, becomes the expression value.
func (fs *funcState) genLowlevel(e *ast.Expr) (string, string, error) {
	var lastDest string
	for _, line := range e.Lowlevel.Lines {
		fs.line("  %s", line)
		if len(line) > 0 && line[0] == '%' {
			for i := 1; i < len(line); i++ {
				if line[i] == ' ' || line[i] == '=' {
					lastDest = line[:i]
					break
				}
			}
		}
	}
	llty := fs.g.llvmType(e.Lowlevel.Result)
	if llty == "void" || lastDest == "" {
		return "0", "i1", nil
	}
	return lastDest, llty, nil
}

// genClosure lifts the lambda to a named function and yields its address.
// Captures are not supported at this level; the front end rewrites
// capturing closures into explicit environment structs before lowering.
func (fs *funcState) genClosure(e *ast.Expr) (string, string, error) {
	fs.g.closureCount++
	name := fmt.Sprintf("tml_closure.%d", fs.g.closureCount)
	fn := &ast.Func{
		Name:   name,
		Result: e.Closure.Result,
		Body:   e.Closure.Body,
	}
	for _, p := range e.Closure.Params {
		fn.Params = append(fn.Params, ast.Param{Name: p.Name, Type: p.Type})
	}
	if err := fs.g.emitFuncWithSubs(fn, name, "", fs.subs); err != nil {
		return "", "", err
	}
	return "@" + name, "ptr", nil
}
