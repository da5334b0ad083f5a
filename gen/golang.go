package gen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// GoEmitter writes Go source. It needs no layout calculator: the Go
// compiler lays structs out itself, so this backend supports every
// construct including the dynamic any type.
type GoEmitter struct{}

func NewGoEmitter() *GoEmitter {
	return &GoEmitter{}
}

func (e *GoEmitter) EmitModule(mod *lowast.Module) Result {
	g := &gogen{file: jen.NewFile("main")}

	for _, st := range mod.Structs {
		g.structDef(st)
	}
	for _, fn := range mod.Funcs {
		g.function(fn)
	}

	var buf bytes.Buffer
	if err := g.file.Render(&buf); err != nil {
		g.errs = append(g.errs, errors.Internalf(types.Span{}, "rendering emitted source: %v", err))
	}
	return Result{Code: buf.Bytes(), Errors: g.errs}
}

type gogen struct {
	file *jen.File
	errs []error
}

func (g *gogen) unsupported(construct string, pos types.Span) {
	g.errs = append(g.errs, errors.Unsupported{
		Construct: construct,
		Target:    TargetGo.String(),
		Location:  pos,
	})
}

func (g *gogen) structDef(st lowast.StructDef) {
	fields := make([]jen.Code, 0, len(st.Fields))
	for _, f := range st.Fields {
		fields = append(fields, jen.Id(f.Name).Add(g.typ(f.Type)))
	}
	g.file.Type().Id(st.Name).Struct(fields...)
}

func (g *gogen) typ(t types.Type) *jen.Statement {
	switch ty := t.(type) {
	case types.Int:
		return jen.Id(fmt.Sprintf("int%d", ty.Bits))
	case types.Bool:
		return jen.Bool()
	case types.Str:
		return jen.String()
	case types.Any:
		return jen.Interface()
	case types.Array:
		return jen.Index(jen.Lit(ty.Len)).Add(g.typ(ty.Elem))
	case types.Named:
		return jen.Id(ty.Name)
	default:
		g.unsupported(fmt.Sprintf("type %s", t), types.Span{})
		return jen.Interface()
	}
}

func (g *gogen) function(fn lowast.Function) {
	params := make([]jen.Code, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, jen.Id(p.Name).Add(g.typ(p.Type)))
	}
	decl := g.file.Func().Id(fn.Name).Params(params...)
	if fn.Ret != nil {
		decl.Add(g.typ(fn.Ret))
	}
	decl.Block(g.stmts(fn.Body.Statements)...)
}

func (g *gogen) stmts(stmts []lowast.Statement) []jen.Code {
	out := make([]jen.Code, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, g.stmt(s))
	}
	return out
}

func (g *gogen) stmt(s lowast.Statement) jen.Code {
	switch stmt := s.(type) {
	case lowast.Block:
		return jen.Block(g.stmts(stmt.Statements)...)
	case lowast.Declare:
		if stmt.Type == nil {
			if stmt.Value == nil {
				g.unsupported("a declaration with neither type nor value", stmt.Pos)
				return jen.Empty()
			}
			return jen.Id(stmt.Name).Op(":=").Add(g.expr(stmt.Value, nil))
		}
		decl := jen.Var().Id(stmt.Name).Add(g.typ(stmt.Type))
		if stmt.Value != nil {
			decl.Op("=").Add(g.expr(stmt.Value, stmt.Type))
		}
		return decl
	case lowast.Assign:
		return g.expr(stmt.Target, nil).Op("=").Add(g.expr(stmt.Value, nil))
	case lowast.If:
		return g.conditional(stmt)
	case lowast.Loop:
		return g.loop(stmt)
	case lowast.Break:
		return jen.Break()
	case lowast.Continue:
		return jen.Continue()
	case lowast.Return:
		if stmt.Value != nil {
			return jen.Return(g.expr(stmt.Value, nil))
		}
		return jen.Return()
	case lowast.ExprStmt:
		if bin, ok := stmt.Expr.(lowast.Binary); ok {
			if _, compound := compoundOp(bin.Op); compound {
				return g.expr(bin.Left, nil).Op(bin.Op.String()).Add(g.expr(bin.Right, nil))
			}
		}
		return g.expr(stmt.Expr, nil)
	default:
		g.unsupported(fmt.Sprintf("statement %T", s), s.Span())
		return jen.Empty()
	}
}

func (g *gogen) conditional(stmt lowast.If) *jen.Statement {
	out := jen.If(g.expr(stmt.Condition, nil)).Block(g.stmts(stmt.Then.Statements)...)
	switch els := stmt.Else.(type) {
	case nil:
	case lowast.If:
		out.Else().Add(g.conditional(els))
	case lowast.Block:
		out.Else().Block(g.stmts(els.Statements)...)
	default:
		out.Else().Block(g.stmt(els))
	}
	return out
}

func (g *gogen) loop(stmt lowast.Loop) *jen.Statement {
	body := g.stmts(stmt.Body.Statements)
	if stmt.Post == nil {
		return jen.For(g.expr(stmt.Condition, nil)).Block(body...)
	}
	var post jen.Code
	switch p := stmt.Post.(type) {
	case lowast.Assign:
		post = g.expr(p.Target, nil).Op("=").Add(g.expr(p.Value, nil))
	case lowast.ExprStmt:
		post = g.stmt(p)
	default:
		g.unsupported("this loop step form", stmt.Pos)
		post = jen.Empty()
	}
	return jen.For(jen.Empty(), g.expr(stmt.Condition, nil), post).Block(body...)
}

// expr renders one expression. hint carries the declared type through
// to literals that cannot name their own type, like array literals.
func (g *gogen) expr(e lowast.Expression, hint types.Type) *jen.Statement {
	switch expr := e.(type) {
	case lowast.IntLit:
		return jen.Lit(int(expr.Value))
	case lowast.StrLit:
		return jen.Lit(expr.Value)
	case lowast.BoolLit:
		return jen.Lit(expr.Value)
	case lowast.VarRef:
		return jen.Id(expr.Name)
	case lowast.Binary:
		return jen.Parens(g.expr(expr.Left, nil).Op(expr.Op.String()).Add(g.expr(expr.Right, nil)))
	case lowast.Unary:
		return jen.Op(expr.Op.String()).Add(g.expr(expr.Expr, nil))
	case lowast.Call:
		args := make([]jen.Code, 0, len(expr.Args))
		for _, a := range expr.Args {
			args = append(args, g.expr(a, nil))
		}
		if expr.Func == "print" {
			return jen.Qual("fmt", "Println").Call(args...)
		}
		return jen.Id(expr.Func).Call(args...)
	case lowast.FieldAccess:
		return g.expr(expr.Expr, nil).Dot(expr.Field)
	case lowast.Index:
		return g.expr(expr.Expr, nil).Index(g.expr(expr.Index, nil))
	case lowast.StructLit:
		fields := make([]jen.Code, 0, len(expr.Fields))
		for _, f := range expr.Fields {
			fields = append(fields, jen.Id(f.Name).Op(":").Add(g.expr(f.Value, nil)))
		}
		return jen.Id(expr.Name).Values(fields...)
	case lowast.ArrayLit:
		arr, ok := hint.(types.Array)
		if !ok {
			g.unsupported("an array literal outside a typed declaration", expr.Pos)
			return jen.Nil()
		}
		elems := make([]jen.Code, 0, len(expr.Elems))
		for _, el := range expr.Elems {
			elems = append(elems, g.expr(el, arr.Elem))
		}
		return jen.Index(jen.Lit(arr.Len)).Add(g.typ(arr.Elem)).Values(elems...)
	default:
		g.unsupported(fmt.Sprintf("expression %T", e), e.Span())
		return jen.Nil()
	}
}
