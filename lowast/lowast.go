// Package lowast holds the low-level tree: the reduced vocabulary every
// backend consumes. It has no match, no method calls, no multi-arm
// conditionals and no collection loops; multi-way branching is nested
// binary if/else and both source loop forms collapse into one Loop
// node. This closed set is the contract that keeps backends simple: no
// construct outside this file ever reaches an emitter.
package lowast

import (
	"github.com/stibium-lang/stibium/types"
)

// Module is the target-ready compilation unit. Methods have already
// been flattened into Funcs with an explicit receiver parameter, so
// StructDef carries fields only. Built fresh for every compilation,
// never mutated afterwards.
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

// StructDef preserves field declaration order; the layout calculator
// depends on it and must never see a reordered copy.
type StructDef struct {
	Name   string
	Fields []Field
	Pos    types.Span
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

type Assign struct {
	Target Expression
	Value  Expression
	Pos    types.Span
}

func (v Assign) is_Statement() {}

func (v Assign) Span() types.Span { return v.Pos }

// If is strictly binary. Else is nil, a Block, or another If; a lowered
// match arrives here as a right-nested chain of these.
type If struct {
	Condition Expression
	Then      Block
	Else      Statement
	Pos       types.Span
}

func (v If) is_Statement() {}

func (v If) Span() types.Span { return v.Pos }

// Loop is the single loop form: test Condition, run Body, run Post,
// repeat. Post is nil for plain condition loops.
type Loop struct {
	Condition Expression
	Post      Statement
	Body      Block
	Pos       types.Span
}

func (v Loop) is_Statement() {}

func (v Loop) Span() types.Span { return v.Pos }

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

type Call struct {
	Func string
	Args []Expression
	Pos  types.Span
}

func (v Call) is_Expression() {}

func (v Call) Span() types.Span { return v.Pos }

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
