package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/types"
)

// genTry lowers `expr?`: branch on the union's discriminant; tag 0
// unwraps the success payload and execution continues, any other tag runs
// the pending drops and returns the union value unchanged, so the caller
// observes the failure exactly as produced.
func (fs *funcState) genTry(e *ast.Expr) (string, string, error) {
	valSem := fs.g.InferType(fs, e.Try.Value)
	t, ok := fs.g.Types.Lookup(valSem)
	if !ok || t.Kind != types.KindNamed {
		fs.errorf(diag.GenTryOutsideResult, e.Span, "try operand is not a tagged union")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	en, ok := fs.g.Env.LookupEnum(t.Name)
	if !ok {
		fs.errorf(diag.GenTryOutsideResult, e.Span, "try operand is not a tagged union")
		return fs.zeroFor(fs.g.Types.Builtins().I32)
	}
	retT, retOK := fs.g.Types.Lookup(fs.retType)
	if !retOK || retT.Kind != types.KindNamed {
		fs.errorf(diag.GenTryOutsideResult, e.Span, "try requires the enclosing function to return a tagged union")
	}

	val, llty, err := fs.genExpr(e.Try.Value)
	if err != nil {
		return "", "", err
	}
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, llty)
	fs.line("  store %s %s, ptr %s", llty, val, slot)

	tagPtr := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 0", tagPtr, llty, slot)
	tag := fs.nextReg()
	fs.line("  %s = load i32, ptr %s", tag, tagPtr)
	isOK := fs.nextReg()
	fs.line("  %s = icmp eq i32 %s, 0", isOK, tag)

	okL := fs.nextLabel("try.ok")
	errL := fs.nextLabel("try.err")
	fs.line("  br i1 %s, label %%%s, label %%%s", isOK, okL, errL)

	fs.line("%s:", errL)
	fs.emitDrops()
	retLL := fs.g.llvmType(fs.retType)
	if retLL == llty {
		fs.line("  ret %s %s", llty, val)
	} else if retLL == "void" {
		fs.line("  ret void")
	} else {
		// The failure cannot be forwarded as-is; inventing a success
		// value of the return union would mask it.
		fs.errorf(diag.GenTryOutsideResult, e.Span,
			"try failure type %s does not match the function's return type", t.Name)
		fs.line("  ret %s %s", retLL, zeroValue(retLL))
	}

	fs.line("%s:", okL)
	sem := fs.g.trySuccessType(fs, e.Try.Value)
	if len(en.Variants) == 0 || len(en.Variants[0].Payload) == 0 {
		return "0", "i1", nil
	}
	area := fs.nextReg()
	fs.line("  %s = getelementptr %s, ptr %s, i32 0, i32 1", area, llty, slot)
	outLL := fs.g.llvmValueType(sem)
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, outLL, area)
	return reg, outLL, nil
}
