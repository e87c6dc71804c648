package codegen

import (
	"strconv"
	"strings"

	"tml/internal/ast"
	"tml/internal/types"
)

// maxConcatChain bounds the single-allocation lowering; longer chains fall
// back to pairwise runtime concatenation.
const maxConcatChain = 8

// genStrConcat lowers a chain of string + string. Three strategies, picked
// at compile time:
//
//  1. every operand is a literal: fold into one interned constant
//  2. chain of at most maxConcatChain operands: literal pieces measured
//     here, runtime pieces with str_len, one allocation of the exact
//     total, memcpy the pieces in
//  3. otherwise: pairwise str_concat calls
func (fs *funcState) genStrConcat(e *ast.Expr) (string, string, error) {
	ops := flattenConcat(e)

	if folded, ok := foldLiterals(ops); ok {
		name := fs.g.internString(folded)
		reg := fs.nextReg()
		fs.line("  %s = getelementptr [%d x i8], ptr %s, i64 0, i64 0", reg, len(folded)+1, name)
		return reg, "ptr", nil
	}

	if len(ops) <= maxConcatChain && len(ops) > 2 {
		return fs.concatSingleAlloc(ops)
	}
	return fs.concatPairwise(ops)
}

// flattenConcat collects the operands of a left-associated + chain over
// strings, in source order.
func flattenConcat(e *ast.Expr) []*ast.Expr {
	if e.Kind == ast.ExprBinary && e.Binary.Op == ast.BinAdd {
		left := flattenConcat(e.Binary.Left)
		return append(left, e.Binary.Right)
	}
	return []*ast.Expr{e}
}

func foldLiterals(ops []*ast.Expr) (string, bool) {
	var b strings.Builder
	for _, op := range ops {
		if op.Kind != ast.ExprLiteral || op.Lit.LitKind != ast.LitString {
			return "", false
		}
		b.WriteString(op.Lit.StrVal)
	}
	return b.String(), true
}

func (fs *funcState) concatSingleAlloc(ops []*ast.Expr) (string, string, error) {
	vals := make([]string, len(ops))
	lens := make([]string, len(ops))
	for i, op := range ops {
		v, _, err := fs.genExpr(op)
		if err != nil {
			return "", "", err
		}
		vals[i] = v
		// Literal segments have a length known here; str_len is only
		// for runtime values.
		if op.Kind == ast.ExprLiteral && op.Lit.LitKind == ast.LitString {
			lens[i] = strconv.Itoa(len(op.Lit.StrVal))
			continue
		}
		l := fs.nextReg()
		fs.line("  %s = call i64 @str_len(ptr %s)", l, v)
		lens[i] = l
	}

	total := lens[0]
	for i := 1; i < len(lens); i++ {
		sum := fs.nextReg()
		fs.line("  %s = add i64 %s, %s", sum, total, lens[i])
		total = sum
	}
	dst := fs.nextReg()
	fs.line("  %s = call ptr @str_alloc(i64 %s)", dst, total)

	offset := ""
	for i := range vals {
		at := dst
		if offset != "" {
			at = fs.nextReg()
			fs.line("  %s = getelementptr i8, ptr %s, i64 %s", at, dst, offset)
		}
		fs.line("  call void @llvm.memcpy.p0.p0.i64(ptr %s, ptr %s, i64 %s, i1 false)", at, vals[i], lens[i])
		if offset == "" {
			offset = lens[i]
		} else {
			next := fs.nextReg()
			fs.line("  %s = add i64 %s, %s", next, offset, lens[i])
			offset = next
		}
	}
	return dst, "ptr", nil
}

func (fs *funcState) concatPairwise(ops []*ast.Expr) (string, string, error) {
	acc, _, err := fs.genExpr(ops[0])
	if err != nil {
		return "", "", err
	}
	for _, op := range ops[1:] {
		v, _, err := fs.genExpr(op)
		if err != nil {
			return "", "", err
		}
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_concat(ptr %s, ptr %s)", reg, acc, v)
		acc = reg
	}
	return acc, "ptr", nil
}

// genInterp lowers an interpolated string: each segment is either literal
// text or an expression stringified through the runtime, then the pieces
// concatenate pairwise.
func (fs *funcState) genInterp(e *ast.Expr) (string, string, error) {
	var acc string
	for _, seg := range e.Interp.Segments {
		var piece string
		if seg.Expr == nil {
			name := fs.g.internString(seg.Text)
			reg := fs.nextReg()
			fs.line("  %s = getelementptr [%d x i8], ptr %s, i64 0, i64 0", reg, len(seg.Text)+1, name)
			piece = reg
		} else {
			v, err := fs.stringify(seg.Expr)
			if err != nil {
				return "", "", err
			}
			piece = v
		}
		if acc == "" {
			acc = piece
			continue
		}
		reg := fs.nextReg()
		fs.line("  %s = call ptr @str_concat(ptr %s, ptr %s)", reg, acc, piece)
		acc = reg
	}
	if acc == "" {
		name := fs.g.internString("")
		reg := fs.nextReg()
		fs.line("  %s = getelementptr [1 x i8], ptr %s, i64 0, i64 0", reg, name)
		acc = reg
	}
	return acc, "ptr", nil
}

// stringify converts a value to a runtime string by primitive kind; named
// types go through their to_str method when one is registered.
func (fs *funcState) stringify(e *ast.Expr) (string, error) {
	sem := fs.g.InferType(fs, e)
	t, _ := fs.g.Types.Lookup(sem)
	val, llty, err := fs.genExpr(e)
	if err != nil {
		return "", err
	}
	if t.Kind == types.KindStr {
		return val, nil
	}
	reg := fs.nextReg()
	switch t.Kind {
	case types.KindUint:
		wide := fs.extendOperand(val, llty, "i64", sem)
		fs.line("  %s = call ptr @str_from_uint(i64 %s)", reg, wide)
	case types.KindInt:
		wide := fs.extendOperand(val, llty, "i64", sem)
		fs.line("  %s = call ptr @str_from_int(i64 %s)", reg, wide)
	case types.KindFloat:
		wide := val
		if llty == "float" {
			w := fs.nextReg()
			fs.line("  %s = fpext float %s to double", w, val)
			wide = w
		}
		fs.line("  %s = call ptr @str_from_float(double %s)", reg, wide)
	case types.KindBool:
		fs.line("  %s = call ptr @str_from_bool(i1 %s)", reg, val)
	case types.KindChar:
		fs.line("  %s = call ptr @str_from_char(i32 %s)", reg, val)
	default:
		name := fs.g.Types.Mangle(sem)
		fs.line("  %s = call ptr @tml_%s_to_str(ptr %s)", reg, name, val)
	}
	return reg, nil
}
