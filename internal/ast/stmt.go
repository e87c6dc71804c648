package ast

import (
	"tml/internal/source"
	"tml/internal/types"
)

// StmtKind enumerates the statement forms the backend lowers directly.
// Loop and branch statements are handled by the statement-level lowering
// upstream of this package and arrive pre-flattened.
type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtExpr
	StmtReturn
)

// Stmt is a statement node; one payload field matching Kind is populated.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Let    *LetStmt
	Expr   *Expr
	Return *ReturnStmt
}

// LetStmt declares a local binding. Type may be NoTypeID when the source
// omitted the annotation; codegen then recovers it from the initializer.
type LetStmt struct {
	Name    string
	Type    types.TypeID
	Mutable bool
	Value   *Expr
}

// ReturnStmt returns from the enclosing function. Value is nil for a bare
// return in a Unit function.
type ReturnStmt struct {
	Value *Expr
}

// Param declares one function parameter.
type Param struct {
	Name string
	Type types.TypeID
}

// Func is a function body handed to the backend: already type-annotated
// where the front end had the information, spans attached everywhere.
type Func struct {
	Name     string
	Params   []Param
	Result   types.TypeID
	Generics []string // generic parameter names, empty for concrete funcs
	Body     []*Stmt
	Span     source.Span
}
