package ast

import (
	"tml/internal/source"
	"tml/internal/types"
)

// ExprKind enumerates expression node kinds. The set matches what the
// front end delivers to the backend; adding a kind is a compile-checked
// obligation in every switch over ExprKind.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprIdent
	ExprBinary
	ExprUnary
	ExprCast
	ExprCall
	ExprMethodCall
	ExprField
	ExprIndex
	ExprStructLit
	ExprArrayLit
	ExprTuple
	ExprClosure
	ExprPath
	ExprIf
	ExprTry
	ExprAwait
	ExprLowlevel
	ExprInterp
)

// Expr is a typed expression node. Exactly one payload field matching Kind
// is populated. Type carries the front end's annotation when it threaded
// one through; NoTypeID means the backend must recover the type itself.
type Expr struct {
	Kind ExprKind
	Span source.Span
	Type types.TypeID

	Lit       *LiteralExpr
	Ident     *IdentExpr
	Binary    *BinaryExpr
	Unary     *UnaryExpr
	Cast      *CastExpr
	Call      *CallExpr
	Method    *MethodCallExpr
	Field     *FieldExpr
	Index     *IndexExpr
	StructLit *StructLitExpr
	ArrayLit  *ArrayLitExpr
	Tuple     *TupleExpr
	Closure   *ClosureExpr
	Path      *PathExpr
	If        *IfExpr
	Try       *TryExpr
	Await     *AwaitExpr
	Lowlevel  *LowlevelExpr
	Interp    *InterpExpr
}

// LiteralExpr holds a literal constant.
type LiteralExpr struct {
	LitKind  LitKind
	IntVal   uint64
	FloatVal float64
	BoolVal  bool
	StrVal   string
	CharVal  rune
}

// IdentExpr references a local binding, function, constant or unit variant.
type IdentExpr struct {
	Name string
}

// BinaryExpr covers arithmetic, comparison, logical, bitwise and the
// assignment family.
type BinaryExpr struct {
	Op    BinaryOp
	Left  *Expr
	Right *Expr
}

// UnaryExpr covers negation, logical/bit not, deref and address-of.
type UnaryExpr struct {
	Op      UnaryOp
	Operand *Expr
}

// CastExpr is `expr as Target`.
type CastExpr struct {
	Value  *Expr
	Target types.TypeID
}

// CallExpr is a free-function or function-value call. TypeArgs carries
// explicit generic arguments when the source spelled them.
type CallExpr struct {
	Callee   *Expr
	TypeArgs []types.TypeID
	Args     []*Expr
}

// MethodCallExpr is receiver.method(args).
type MethodCallExpr struct {
	Receiver *Expr
	Method   string
	TypeArgs []types.TypeID
	Args     []*Expr
}

// FieldExpr is receiver.name; for tuples the front end sends TupleIdx >= 0
// and an empty Name.
type FieldExpr struct {
	Object   *Expr
	Name     string
	TupleIdx int // -1 unless a numeric .0/.1 access
}

// IndexExpr is object[index].
type IndexExpr struct {
	Object *Expr
	Index  *Expr
}

// FieldInit supplies one field of a struct/class literal.
type FieldInit struct {
	Name  string
	Value *Expr
	Span  source.Span
}

// StructLitExpr constructs a struct, enum-struct variant or class instance.
type StructLitExpr struct {
	Name     string
	TypeArgs []types.TypeID
	Fields   []FieldInit
}

// ArrayLitExpr is [a, b, c].
type ArrayLitExpr struct {
	Elems []*Expr
}

// TupleExpr is (a, b, c).
type TupleExpr struct {
	Elems []*Expr
}

// ClosureParam declares one closure parameter.
type ClosureParam struct {
	Name string
	Type types.TypeID
}

// ClosureExpr is a lambda. The backend lifts it to a named function.
type ClosureExpr struct {
	Params []ClosureParam
	Result types.TypeID
	Body   []*Stmt
}

// PathExpr is a qualified name: Module::item, Enum::Variant, Type::assoc.
type PathExpr struct {
	Segments []string
	TypeArgs []types.TypeID
	Args     []*Expr // non-nil when the path is called: Enum::Variant(x)
	IsCall   bool
}

// IfExpr covers ternary/if/when value forms. Else may be nil for the
// statement form.
type IfExpr struct {
	Cond *Expr
	Then *Expr
	Else *Expr
}

// TryExpr is `expr?` over a tagged-union value.
type TryExpr struct {
	Value *Expr
}

// AwaitExpr is `expr.await`; lowered as synchronous pass-through.
type AwaitExpr struct {
	Value *Expr
}

// LowlevelExpr embeds raw target instructions written by the front end.
// Operands were already substituted upstream; the backend pastes the lines.
type LowlevelExpr struct {
	Lines  []string
	Result types.TypeID
}

// InterpSegment is one piece of an interpolated string: either literal
// text or an embedded expression.
type InterpSegment struct {
	Text string
	Expr *Expr
}

// InterpExpr is an interpolated string literal.
type InterpExpr struct {
	Segments []InterpSegment
}
