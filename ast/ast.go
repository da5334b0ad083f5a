// Package ast holds the high-level tree: the source-faithful,
// type-annotated representation handed over by the front end. It still
// contains rich constructs (match, method calls, collection loops) that
// no backend consumes directly; the lower package strips them out.
package ast

import (
	"github.com/stibium-lang/stibium/types"
)

// Module is one compiled unit. It owns every contained definition and
// is immutable after construction.
type Module struct {
	Name    string
	Funcs   []Function
	Structs []StructDef
}

type Function struct {
	Name   string
	Params []Param
	Ret    types.Type // nil when the function returns nothing
	Body   Block
	Pos    types.Span
}

type Param struct {
	Name string
	Type types.Type
}

// StructDef is an aggregate type. Field order is significant: it is
// frozen at construction and determines memory layout.
type StructDef struct {
	Name    string
	Fields  []Field
	Methods []Function
	Pos     types.Span
}

type Field struct {
	Name string
	Type types.Type
}

type Statement interface {
	is_Statement()
	Span() types.Span
}

type Block struct {
	Statements []Statement
	Pos        types.Span
}

func (v Block) is_Statement() {}

func (v Block) Span() types.Span { return v.Pos }

type Declare struct {
	Name  string
	Type  types.Type
	Value Expression // nil when declared without an initial value
	Pos   types.Span
}

func (v Declare) is_Statement() {}

func (v Declare) Span() types.Span { return v.Pos }

// Assign covers plain, field and indexed assignment: Target is a
// variable reference, a field access or an indexed access.
type Assign struct {
	Target Expression
	Value  Expression
	Pos    types.Span
}

func (v Assign) is_Statement() {}

func (v Assign) Span() types.Span { return v.Pos }

// If carries an else-if chain in Else: the branch is either a Block or
// another If.
type If struct {
	Condition Expression
	Then      Block
	Else      Statement // nil, Block, or If
	Pos       types.Span
}

func (v If) is_Statement() {}

func (v If) Span() types.Span { return v.Pos }

// Match is the pattern-matching statement. Arms are tried in
// declaration order; the first match wins. A nil Else means the match
// may fall through without executing anything.
type Match struct {
	Subject Expression
	Arms    []MatchArm
	Else    *Block // catch-all arm, optional
	Pos     types.Span
}

func (v Match) is_Statement() {}

func (v Match) Span() types.Span { return v.Pos }

// MatchArm pairs a pattern with a body. A nil Pattern is the wildcard
// pattern and matches any subject.
type MatchArm struct {
	Pattern Expression
	Body    Block
	Pos     types.Span
}

// While is the condition-loop form.
type While struct {
	Condition Expression
	Body      Block
	Pos       types.Span
}

func (v While) is_Statement() {}

func (v While) Span() types.Span { return v.Pos }

// For is the collection-loop form: one iteration per element of
// Collection, bound to Ident. CollType is the collection's type as
// annotated by the checker; lowering needs its capacity and element
// type to build the index loop.
type For struct {
	Ident      string
	Collection Expression
	CollType   types.Type
	Body       Block
	Pos        types.Span
}

func (v For) is_Statement() {}

func (v For) Span() types.Span { return v.Pos }

type Break struct {
	Pos types.Span
}

func (v Break) is_Statement() {}

func (v Break) Span() types.Span { return v.Pos }

type Continue struct {
	Pos types.Span
}

func (v Continue) is_Statement() {}

func (v Continue) Span() types.Span { return v.Pos }

type Return struct {
	Value Expression // nil for a bare return
	Pos   types.Span
}

func (v Return) is_Statement() {}

func (v Return) Span() types.Span { return v.Pos }

type ExprStmt struct {
	Expr Expression
	Pos  types.Span
}

func (v ExprStmt) is_Statement() {}

func (v ExprStmt) Span() types.Span { return v.Pos }

type Expression interface {
	is_Expression()
	Span() types.Span
}

// IntLit carries the already-resolved value; the base it was written in
// is a parse-time concern that never reaches this core.
type IntLit struct {
	Value int64
	Pos   types.Span
}

func (v IntLit) is_Expression() {}

func (v IntLit) Span() types.Span { return v.Pos }

type StrLit struct {
	Value string
	Pos   types.Span
}

func (v StrLit) is_Expression() {}

func (v StrLit) Span() types.Span { return v.Pos }

type BoolLit struct {
	Value bool
	Pos   types.Span
}

func (v BoolLit) is_Expression() {}

func (v BoolLit) Span() types.Span { return v.Pos }

// SelfRef is the implicit receiver inside a method body.
type SelfRef struct {
	Pos types.Span
}

func (v SelfRef) is_Expression() {}

func (v SelfRef) Span() types.Span { return v.Pos }

type VarRef struct {
	Name string
	Pos  types.Span
}

func (v VarRef) is_Expression() {}

func (v VarRef) Span() types.Span { return v.Pos }

type Binary struct {
	Op    types.BinOp
	Left  Expression
	Right Expression
	Pos   types.Span
}

func (v Binary) is_Expression() {}

func (v Binary) Span() types.Span { return v.Pos }

type Unary struct {
	Op   types.UnaryOp
	Expr Expression
	Pos  types.Span
}

func (v Unary) is_Expression() {}

func (v Unary) Span() types.Span { return v.Pos }

// Call carries its checker-annotated return type in Ret so a hoisted
// call can declare its temporary with a concrete type.
type Call struct {
	Func string
	Args []Expression
	Ret  types.Type
	Pos  types.Span
}

func (v Call) is_Expression() {}

func (v Call) Span() types.Span { return v.Pos }

// MethodCall is high-level only: lowering prepends the receiver to the
// argument list and turns it into a plain Call.
type MethodCall struct {
	Recv   Expression
	Method string
	Args   []Expression
	Ret    types.Type
	Pos    types.Span
}

func (v MethodCall) is_Expression() {}

func (v MethodCall) Span() types.Span { return v.Pos }

// FieldAccess is single-level: chains are nested FieldAccess nodes.
type FieldAccess struct {
	Expr  Expression
	Field string
	Pos   types.Span
}

func (v FieldAccess) is_Expression() {}

func (v FieldAccess) Span() types.Span { return v.Pos }

type Index struct {
	Expr  Expression
	Index Expression
	Pos   types.Span
}

func (v Index) is_Expression() {}

func (v Index) Span() types.Span { return v.Pos }

// StructLit constructs an aggregate with named field values. Field
// order is the written order and is preserved for evaluation order.
type StructLit struct {
	Name   string
	Fields []FieldInit
	Pos    types.Span
}

func (v StructLit) is_Expression() {}

func (v StructLit) Span() types.Span { return v.Pos }

type FieldInit struct {
	Name  string
	Value Expression
}

type ArrayLit struct {
	Capacity int
	Elems    []Expression
	Pos      types.Span
}

func (v ArrayLit) is_Expression() {}

func (v ArrayLit) Span() types.Span { return v.Pos }

// MatchExpr is a match in expression position: each arm yields a tail
// value. Lowering rewrites it to a synthesized temporary assigned in a
// statement-level if/else chain.
type MatchExpr struct {
	Subject Expression
	Arms    []MatchExprArm
	Else    Expression // catch-all value, optional
	Type    types.Type // the type every arm value shares
	Pos     types.Span
}

func (v MatchExpr) is_Expression() {}

func (v MatchExpr) Span() types.Span { return v.Pos }

// MatchExprArm pairs a pattern with the value the match takes when the
// pattern is first to match. A nil Pattern is the wildcard.
type MatchExprArm struct {
	Pattern Expression
	Value   Expression
	Pos     types.Span
}
