package ast

import "fmt"

// BinaryOp enumerates binary operators as delivered by the front end.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNotEq
	BinLess
	BinLessEq
	BinGreater
	BinGreaterEq
	BinLogicalAnd
	BinLogicalOr
	BinAssign
	BinAddAssign
	BinSubAssign
	BinMulAssign
	BinDivAssign
	BinModAssign
	BinBitAndAssign
	BinBitOrAssign
	BinBitXorAssign
	BinShlAssign
	BinShrAssign
)

// IsCompoundAssign reports whether the operator is one of the op-assign
// family (+=, -=, ...).
func (op BinaryOp) IsCompoundAssign() bool {
	return op >= BinAddAssign && op <= BinShrAssign
}

// Base returns the plain operator a compound assignment lowers through
// (+= -> +). Non-compound operators return themselves.
func (op BinaryOp) Base() BinaryOp {
	if !op.IsCompoundAssign() {
		return op
	}
	return BinAdd + (op - BinAddAssign)
}

// IsComparison reports whether the operator yields Bool.
func (op BinaryOp) IsComparison() bool {
	return op >= BinEq && op <= BinGreaterEq
}

// IsLogical reports whether the operator is && or ||.
func (op BinaryOp) IsLogical() bool {
	return op == BinLogicalAnd || op == BinLogicalOr
}

func (op BinaryOp) String() string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinMod:
		return "%"
	case BinBitAnd:
		return "&"
	case BinBitOr:
		return "|"
	case BinBitXor:
		return "^"
	case BinShl:
		return "<<"
	case BinShr:
		return ">>"
	case BinEq:
		return "=="
	case BinNotEq:
		return "!="
	case BinLess:
		return "<"
	case BinLessEq:
		return "<="
	case BinGreater:
		return ">"
	case BinGreaterEq:
		return ">="
	case BinLogicalAnd:
		return "&&"
	case BinLogicalOr:
		return "||"
	case BinAssign:
		return "="
	default:
		if op.IsCompoundAssign() {
			return op.Base().String() + "="
		}
		return fmt.Sprintf("BinaryOp(%d)", op)
	}
}

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	UnNeg UnaryOp = iota
	UnNot
	UnBitNot
	UnDeref
	UnAddrOf
	UnAddrOfMut
)

func (op UnaryOp) String() string {
	switch op {
	case UnNeg:
		return "-"
	case UnNot:
		return "!"
	case UnBitNot:
		return "~"
	case UnDeref:
		return "*"
	case UnAddrOf:
		return "&"
	case UnAddrOfMut:
		return "&mut"
	default:
		return fmt.Sprintf("UnaryOp(%d)", op)
	}
}

// LitKind enumerates literal kinds.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitString
	LitChar
	LitNull
)
