package codegen

import (
	"tml/internal/ast"
	"tml/internal/diag"
	"tml/internal/mono"
	"tml/internal/types"
)

// genCast lowers `expr as Target`. Opcode choice follows the source's
// declared signedness for widenings and float conversions; a pointer
// upcast to a base class is free because the base is embedded at offset
// zero.
func (fs *funcState) genCast(e *ast.Expr) (string, string, error) {
	c := e.Cast
	srcSem := fs.g.InferType(fs, c.Value)
	dstSem := fs.g.applySubs(fs, c.Target)

	val, srcLL, err := fs.genExpr(c.Value)
	if err != nil {
		return "", "", err
	}
	dstLL := fs.g.llvmValueType(dstSem)
	if srcLL == dstLL && srcSem == dstSem {
		return val, dstLL, nil
	}

	src, okS := fs.g.Types.Lookup(srcSem)
	dst, okD := fs.g.Types.Lookup(dstSem)
	if !okS || !okD {
		fs.errorf(diag.GenInvalidCast, e.Span, "invalid cast")
		return fs.zeroFor(dstSem)
	}

	switch {
	case src.IsInteger() && dst.IsInteger(),
		src.Kind == types.KindChar && dst.IsInteger(),
		src.IsInteger() && dst.Kind == types.KindChar,
		src.Kind == types.KindBool && dst.IsInteger():
		v, ll := fs.intToInt(val, srcLL, dstLL, src)
		return v, ll, nil

	case src.IsInteger() && dst.Kind == types.KindBool:
		reg := fs.nextReg()
		fs.line("  %s = icmp ne %s %s, 0", reg, srcLL, val)
		return reg, "i1", nil

	case src.IsInteger() && dst.Kind == types.KindFloat:
		op := "sitofp"
		if src.IsUnsigned() {
			op = "uitofp"
		}
		reg := fs.nextReg()
		fs.line("  %s = %s %s %s to %s", reg, op, srcLL, val, dstLL)
		return reg, dstLL, nil

	case src.Kind == types.KindFloat && dst.IsInteger():
		op := "fptosi"
		if dst.IsUnsigned() {
			op = "fptoui"
		}
		reg := fs.nextReg()
		fs.line("  %s = %s %s %s to %s", reg, op, srcLL, val, dstLL)
		return reg, dstLL, nil

	case src.Kind == types.KindFloat && dst.Kind == types.KindFloat:
		op := "fpext"
		if src.Width > dst.Width {
			op = "fptrunc"
		}
		reg := fs.nextReg()
		fs.line("  %s = %s %s %s to %s", reg, op, srcLL, val, dstLL)
		return reg, dstLL, nil

	case isPointerKind(src.Kind) && isPointerKind(dst.Kind):
		return val, "ptr", nil

	case isPointerKind(src.Kind) && dst.IsInteger():
		// Pointers round-trip through i64, then narrow or widen to the
		// requested width.
		wide := fs.nextReg()
		fs.line("  %s = ptrtoint ptr %s to i64", wide, val)
		if dstLL == "i64" {
			return wide, dstLL, nil
		}
		v, ll := fs.intToInt(wide, "i64", dstLL, src)
		return v, ll, nil

	case src.IsInteger() && isPointerKind(dst.Kind):
		wide := val
		if srcLL != "i64" {
			wide, _ = fs.intToInt(val, srcLL, "i64", src)
		}
		reg := fs.nextReg()
		fs.line("  %s = inttoptr i64 %s to ptr", reg, wide)
		return reg, "ptr", nil

	case src.Kind == types.KindClass && dst.Kind == types.KindClass:
		if fs.g.isBaseOf(dst.Name, src.Name) {
			return val, dstLL, nil
		}
	}

	fs.errorf(diag.GenInvalidCast, e.Span, "cannot cast %s to %s", src.Kind, dst.Kind)
	return fs.zeroFor(dstSem)
}

func (fs *funcState) intToInt(val, srcLL, dstLL string, src types.Type) (string, string) {
	sw, _ := intWidth(srcLL)
	dw, _ := intWidth(dstLL)
	switch {
	case sw == dw:
		return val, dstLL
	case sw > dw:
		reg := fs.nextReg()
		fs.line("  %s = trunc %s %s to %s", reg, srcLL, val, dstLL)
		return reg, dstLL
	default:
		op := "sext"
		if src.IsUnsigned() || src.Kind == types.KindBool || src.Kind == types.KindChar {
			op = "zext"
		}
		reg := fs.nextReg()
		fs.line("  %s = %s %s %s to %s", reg, op, srcLL, val, dstLL)
		return reg, dstLL
	}
}

func isPointerKind(k types.Kind) bool {
	return k == types.KindPtr || k == types.KindRef || k == types.KindFunc || k == types.KindStr
}

// isBaseOf reports whether base appears in derived's inheritance chain.
func (g *Generator) isBaseOf(base, derived string) bool {
	for _, c := range g.Env.ClassChain(derived) {
		if c.Name == base {
			return true
		}
	}
	return false
}

// applySubs resolves a semantic type under the active substitution.
func (g *Generator) applySubs(fs *funcState, id types.TypeID) types.TypeID {
	if fs == nil {
		return id
	}
	return mono.Apply(g.Types, fs.subs, id)
}
