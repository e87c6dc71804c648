package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/types"
)

func (fs *funcState) genBinary(e *ast.Expr) (string, string, error) {
	b := e.Binary
	switch {
	case b.Op == ast.BinAssign:
		return fs.genAssign(e)
	case b.Op.IsCompoundAssign():
		return fs.genCompoundAssign(e)
	case b.Op.IsLogical():
		return fs.genLogical(e)
	}

	lt := fs.g.InferType(fs, b.Left)
	rt := fs.g.InferType(fs, b.Right)

	if fs.g.isStr(lt) && fs.g.isStr(rt) {
		switch b.Op {
		case ast.BinAdd:
			return fs.genStrConcat(e)
		case ast.BinEq, ast.BinNotEq:
			return fs.genStrCompare(b)
		}
	}
	if fs.isEnumOperand(lt) || fs.isEnumOperand(rt) {
		if b.Op == ast.BinEq || b.Op == ast.BinNotEq {
			return fs.genEnumCompare(b)
		}
		fs.errorf(diag.GenInvalidOperator, e.Span, "operator %s is not defined for union values", b.Op)
		return fs.zeroFor(fs.g.Types.Builtins().Bool)
	}
	if p, ok := fs.pointerArith(b, lt, rt); ok {
		return p()
	}
	if b.Op.IsComparison() {
		return fs.genComparison(b, lt, rt)
	}
	return fs.genArith(e, b, lt, rt)
}

func (g *Generator) isStr(id types.TypeID) bool {
	t, ok := g.Types.Lookup(id)
	return ok && t.Kind == types.KindStr
}

func (fs *funcState) isEnumOperand(id types.TypeID) bool {
	t, ok := fs.g.Types.Lookup(id)
	if !ok || t.Kind != types.KindNamed {
		return false
	}
	_, isEnum := fs.g.Env.LookupEnum(t.Name)
	return isEnum
}

// promoteOperands brings both sides to the promoted type. Each operand
// extends according to its own declared signedness: an unsigned source
// zero-extends, a signed source sign-extends, independent of the result's
// signedness.
func (fs *funcState) promoteOperands(b *ast.BinaryExpr, lt, rt types.TypeID) (lv, rv, llty string, sem types.TypeID, err error) {
	sem = fs.g.promote(lt, rt)
	llty = fs.g.llvmValueType(sem)

	lv, lHave, err := fs.genExpr(b.Left)
	if err != nil {
		return
	}
	lv = fs.extendOperand(lv, lHave, llty, lt)

	rv, rHave, err := fs.genExpr(b.Right)
	if err != nil {
		return
	}
	rv = fs.extendOperand(rv, rHave, llty, rt)
	return
}

func (fs *funcState) extendOperand(val, have, want string, declared types.TypeID) string {
	if have == want {
		return val
	}
	hw, hok := intWidth(have)
	ww, wok := intWidth(want)
	if hok && wok {
		reg := fs.nextReg()
		if hw < ww {
			op := "sext"
			if t, ok := fs.g.Types.Lookup(declared); ok && t.IsUnsigned() {
				op = "zext"
			}
			fs.line("  %s = %s %s %s to %s", reg, op, have, val, want)
		} else {
			fs.line("  %s = trunc %s %s to %s", reg, have, val, want)
		}
		return reg
	}
	if hok && (want == "float" || want == "double") {
		op := "sitofp"
		if t, ok := fs.g.Types.Lookup(declared); ok && t.IsUnsigned() {
			op = "uitofp"
		}
		reg := fs.nextReg()
		fs.line("  %s = %s %s %s to %s", reg, op, have, val, want)
		return reg
	}
	if have == "float" && want == "double" {
		reg := fs.nextReg()
		fs.line("  %s = fpext float %s to double", reg, val)
		return reg
	}
	return val
}

func (fs *funcState) genArith(e *ast.Expr, b *ast.BinaryExpr, lt, rt types.TypeID) (string, string, error) {
	lv, rv, llty, sem, err := fs.promoteOperands(b, lt, rt)
	if err != nil {
		return "", "", err
	}
	t, _ := fs.g.Types.Lookup(sem)
	op, ok := arithOpcode(b.Op, t)
	if !ok {
		fs.errorf(diag.GenInvalidOperator, e.Span, "operator %s is not defined for this operand type", b.Op)
		return fs.zeroFor(sem)
	}
	reg := fs.nextReg()
	fs.line("  %s = %s %s %s, %s", reg, op, llty, lv, rv)
	return reg, llty, nil
}

// arithOpcode selects the instruction for an arithmetic or bitwise
// operator. Division, remainder and right shift depend on the declared
// signedness of the promoted type.
func arithOpcode(op ast.BinaryOp, t types.Type) (string, bool) {
	if t.Kind == types.KindFloat {
		switch op {
		case ast.BinAdd:
			return "fadd", true
		case ast.BinSub:
			return "fsub", true
		case ast.BinMul:
			return "fmul", true
		case ast.BinDiv:
			return "fdiv", true
		case ast.BinMod:
			return "frem", true
		}
		return "", false
	}
	unsigned := t.IsUnsigned()
	switch op {
	case ast.BinAdd:
		return "add", true
	case ast.BinSub:
		return "sub", true
	case ast.BinMul:
		return "mul", true
	case ast.BinDiv:
		if unsigned {
			return "udiv", true
		}
		return "sdiv", true
	case ast.BinMod:
		if unsigned {
			return "urem", true
		}
		return "srem", true
	case ast.BinBitAnd:
		return "and", true
	case ast.BinBitOr:
		return "or", true
	case ast.BinBitXor:
		return "xor", true
	case ast.BinShl:
		return "shl", true
	case ast.BinShr:
		if unsigned {
			return "lshr", true
		}
		return "ashr", true
	}
	return "", false
}

func (fs *funcState) genComparison(b *ast.BinaryExpr, lt, rt types.TypeID) (string, string, error) {
	lv, rv, llty, sem, err := fs.promoteOperands(b, lt, rt)
	if err != nil {
		return "", "", err
	}
	t, _ := fs.g.Types.Lookup(sem)
	reg := fs.nextReg()
	if t.Kind == types.KindFloat {
		fs.line("  %s = fcmp %s %s %s, %s", reg, fcmpPredicate(b.Op), llty, lv, rv)
		return reg, "i1", nil
	}
	fs.line("  %s = icmp %s %s %s, %s", reg, icmpPredicate(b.Op, t.IsUnsigned()), llty, lv, rv)
	return reg, "i1", nil
}

func icmpPredicate(op ast.BinaryOp, unsigned bool) string {
	switch op {
	case ast.BinEq:
		return "eq"
	case ast.BinNotEq:
		return "ne"
	case ast.BinLess:
		if unsigned {
			return "ult"
		}
		return "slt"
	case ast.BinLessEq:
		if unsigned {
			return "ule"
		}
		return "sle"
	case ast.BinGreater:
		if unsigned {
			return "ugt"
		}
		return "sgt"
	case ast.BinGreaterEq:
		if unsigned {
			return "uge"
		}
		return "sge"
	}
	return "eq"
}

func fcmpPredicate(op ast.BinaryOp) string {
	switch op {
	case ast.BinEq:
		return "oeq"
	case ast.BinNotEq:
		return "une"
	case ast.BinLess:
		return "olt"
	case ast.BinLessEq:
		return "ole"
	case ast.BinGreater:
		return "ogt"
	case ast.BinGreaterEq:
		return "oge"
	}
	return "oeq"
}

// genEnumCompare compares tagged unions by discriminant only; payloads do
// not participate.
func (fs *funcState) genEnumCompare(b *ast.BinaryExpr) (string, string, error) {
	lTag, err := fs.enumTag(b.Left)
	if err != nil {
		return "", "", err
	}
	rTag, err := fs.enumTag(b.Right)
	if err != nil {
		return "", "", err
	}
	pred := "eq"
	if b.Op == ast.BinNotEq {
		pred = "ne"
	}
	reg := fs.nextReg()
	fs.line("  %s = icmp %s i32 %s, %s", reg, pred, lTag, rTag)
	return reg, "i1", nil
}

// enumTag extracts the i32 discriminant of a union value. Lvalues read it
// in place; rvalues extract field 0 of the aggregate.
func (fs *funcState) enumTag(e *ast.Expr) (string, error) {
	if ptr, llty, _, ok := fs.genAddr(e); ok {
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 0", gep, llty, ptr)
		reg := fs.nextReg()
		fs.line("  %s = load i32, ptr %s", reg, gep)
		return reg, nil
	}
	val, llty, err := fs.genExpr(e)
	if err != nil {
		return "", err
	}
	if llty == "i32" {
		// unit-variant constant already is the tag
		return val, nil
	}
	reg := fs.nextReg()
	fs.line("  %s = extractvalue %s %s, 0", reg, llty, val)
	return reg, nil
}

// pointerArith matches ptr+int / ptr-int / int+ptr and returns a thunk
// emitting the element-stride address computation.
func (fs *funcState) pointerArith(b *ast.BinaryExpr, lt, rt types.TypeID) (func() (string, string, error), bool) {
	if b.Op != ast.BinAdd && b.Op != ast.BinSub {
		return nil, false
	}
	ltt, lok := fs.g.Types.Lookup(lt)
	rtt, rok := fs.g.Types.Lookup(rt)
	if !lok || !rok {
		return nil, false
	}
	lIsPtr := ltt.Kind == types.KindPtr || ltt.Kind == types.KindRef
	rIsPtr := rtt.Kind == types.KindPtr || rtt.Kind == types.KindRef

	switch {
	case lIsPtr && rtt.IsInteger():
		return func() (string, string, error) {
			return fs.emitPtrOffset(b.Left, b.Right, ltt.Elem, b.Op == ast.BinSub, rt)
		}, true
	case rIsPtr && ltt.IsInteger() && b.Op == ast.BinAdd:
		return func() (string, string, error) {
			return fs.emitPtrOffset(b.Right, b.Left, rtt.Elem, false, lt)
		}, true
	}
	return nil, false
}

func (fs *funcState) emitPtrOffset(ptrE, offE *ast.Expr, elem types.TypeID, negate bool, offSem types.TypeID) (string, string, error) {
	ptr, _, err := fs.genExpr(ptrE)
	if err != nil {
		return "", "", err
	}
	off, offLL, err := fs.genExpr(offE)
	if err != nil {
		return "", "", err
	}
	off = fs.extendOperand(off, offLL, "i64", offSem)
	if negate {
		neg := fs.nextReg()
		fs.line("  %s = sub i64 0, %s", neg, off)
		off = neg
	}
	reg := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i64 %s", reg, fs.g.llvmValueType(elem), ptr, off)
	return reg, "ptr", nil
}

// genLogical emits short-circuit && and || with a spill slot.
func (fs *funcState) genLogical(e *ast.Expr) (string, string, error) {
	b := e.Binary
	lv, lHave, err := fs.genExpr(b.Left)
	if err != nil {
		return "", "", err
	}
	lv, _ = fs.coerceValue(lv, lHave, "i1", fs.g.Types.Builtins().Bool)

	slot := fs.nextReg()
	fs.line("  %s = alloca i1", slot)
	fs.line("  store i1 %s, ptr %s", lv, slot)

	rhsL := fs.nextLabel("logic.rhs")
	endL := fs.nextLabel("logic.end")
	if b.Op == ast.BinLogicalAnd {
		fs.line("  br i1 %s, label %%%s, label %%%s", lv, rhsL, endL)
	} else {
		fs.line("  br i1 %s, label %%%s, label %%%s", lv, endL, rhsL)
	}
	fs.line("%s:", rhsL)
	rv, rHave, err := fs.genExpr(b.Right)
	if err != nil {
		return "", "", err
	}
	rv, _ = fs.coerceValue(rv, rHave, "i1", fs.g.Types.Builtins().Bool)
	fs.line("  store i1 %s, ptr %s", rv, slot)
	fs.line("  br label %%%s", endL)
	fs.line("%s:", endL)
	reg := fs.nextReg()
	fs.line("  %s = load i1, ptr %s", reg, slot)
	return reg, "i1", nil
}

// genAssign routes by the shape of the left side: local slot, field,
// index, deref target, static or settable property.
func (fs *funcState) genAssign(e *ast.Expr) (string, string, error) {
	b := e.Binary
	if fs.assignToProperty(e) {
		return "0", "i1", nil
	}
	ptr, llty, sem, ok := fs.genAddr(b.Left)
	if !ok {
		fs.errorf(diag.GenBadAssignment, e.Span, "left side of assignment is not assignable")
		return "0", "i1", nil
	}
	if !fs.assignableTarget(b.Left, e) {
		return "0", "i1", nil
	}
	val, have, err := fs.genExpr(b.Right)
	if err != nil {
		return "", "", err
	}
	val, _ = fs.coerceValue(val, have, llty, sem)
	fs.line("  store %s %s, ptr %s", llty, val, ptr)
	return "0", "i1", nil
}

// assignableTarget enforces the mutability of plain local targets.
func (fs *funcState) assignableTarget(lhs *ast.Expr, e *ast.Expr) bool {
	if lhs.Kind != ast.ExprIdent {
		return true
	}
	l, ok := fs.locals[lhs.Ident.Name]
	if ok && !l.Mutable && !l.IsRef {
		fs.errorf(diag.GenBadAssignment, e.Span, "cannot assign to immutable binding %q", lhs.Ident.Name)
		return false
	}
	return true
}

// assignToProperty handles obj.prop = v where prop has a setter; reports
// read-only property writes.
func (fs *funcState) assignToProperty(e *ast.Expr) bool {
	b := e.Binary
	if b.Left.Kind != ast.ExprField || b.Left.Field.TupleIdx >= 0 {
		return false
	}
	f := b.Left.Field
	objSem := fs.g.receiverBase(fs.g.InferType(fs, f.Object))
	t, ok := fs.g.Types.Lookup(objSem)
	if !ok {
		return false
	}
	if _, isField := fs.g.Env.FieldOf(t.Name, f.Name); isField {
		return false
	}
	prop, ok := fs.g.Env.PropertyOf(t.Name, f.Name)
	if !ok {
		return false
	}
	if prop.Setter == "" {
		fs.errorf(diag.GenBadAssignment, e.Span, "property %q of %s is read-only", f.Name, t.Name)
		return true
	}
	recv, err := fs.receiverPointer(f.Object)
	if err != nil {
		return true
	}
	val, have, err := fs.genExpr(b.Right)
	if err != nil {
		return true
	}
	llty := fs.g.llvmValueType(prop.Type)
	val, _ = fs.coerceValue(val, have, llty, prop.Type)
	fs.line("  call void @%s(ptr %s, %s %s)", prop.Setter, recv, llty, val)
	return true
}

// genCompoundAssign lowers x op= v as load, compute, store against the
// same address.
func (fs *funcState) genCompoundAssign(e *ast.Expr) (string, string, error) {
	b := e.Binary
	ptr, llty, sem, ok := fs.genAddr(b.Left)
	if !ok {
		fs.errorf(diag.GenBadAssignment, e.Span, "left side of %s is not assignable", b.Op)
		return "0", "i1", nil
	}
	if !fs.assignableTarget(b.Left, e) {
		return "0", "i1", nil
	}
	cur := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", cur, llty, ptr)

	t, _ := fs.g.Types.Lookup(sem)
	if t.Kind == types.KindStr && b.Op == ast.BinAddAssign {
		rhs, _, err := fs.genExpr(b.Right)
		if err != nil {
			return "", "", err
		}
		out := fs.nextReg()
		fs.line("  %s = call ptr @str_concat(ptr %s, ptr %s)", out, cur, rhs)
		fs.line("  store ptr %s, ptr %s", out, ptr)
		return "0", "i1", nil
	}

	rhs, rHave, err := fs.genExpr(b.Right)
	if err != nil {
		return "", "", err
	}
	rhs = fs.extendOperand(rhs, rHave, llty, fs.g.InferType(fs, b.Right))
	op, ok2 := arithOpcode(b.Op.Base(), t)
	if !ok2 {
		fs.errorf(diag.GenInvalidOperator, e.Span, "operator %s is not defined for this target", b.Op)
		return "0", "i1", nil
	}
	res := fs.nextReg()
	fs.line("  %s = %s %s %s, %s", res, op, llty, cur, rhs)
	fs.line("  store %s %s, ptr %s", llty, res, ptr)
	return "0", "i1", nil
}

func (fs *funcState) genStrCompare(b *ast.BinaryExpr) (string, string, error) {
	lv, _, err := fs.genExpr(b.Left)
	if err != nil {
		return "", "", err
	}
	rv, _, err := fs.genExpr(b.Right)
	if err != nil {
		return "", "", err
	}
	reg := fs.nextReg()
	fs.line("  %s = call i1 @str_eq(ptr %s, ptr %s)", reg, lv, rv)
	if b.Op == ast.BinNotEq {
		inv := fs.nextReg()
		fs.line("  %s = xor i1 %s, 1", inv, reg)
		return inv, "i1", nil
	}
	return reg, "i1", nil
}
