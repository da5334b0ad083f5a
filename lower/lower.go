// Package lower owns the transformation from the high-level tree to
// the low-level tree. Every desugaring decision lives here, exactly
// once: match statements become right-nested binary if/else, method
// calls become plain calls with the receiver injected, both loop forms
// collapse into the single Loop node, and nested side-effecting
// sub-expressions are bound to synthesized temporaries so no backend
// ever emits a call inside another call's argument list.
package lower

import (
	"fmt"

	"github.com/stibium-lang/stibium/ast"
	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// SelfName is the receiver parameter name injected into lowered
// methods, matching the language's implicit self-reference keyword.
const SelfName = "self"

type lowerer struct {
	temps int
}

// Lower transforms a high-level module into a fresh low-level module.
// The input is never mutated. Lowering is total over valid annotated
// input; a construct with no lowering rule is an internal compiler
// error and aborts with no partial tree.
func Lower(mod *ast.Module) (low *lowast.Module, err error) {
	defer func() {
		if v := recover(); v != nil {
			switch e := v.(type) {
			case errors.Internal:
				low, err = nil, e
			case errors.MalformedInput:
				low, err = nil, e
			default:
				panic(v)
			}
		}
	}()

	l := &lowerer{}

	out := &lowast.Module{Name: mod.Name}
	for _, fn := range mod.Funcs {
		out.Funcs = append(out.Funcs, l.lowerFunction(fn, nil))
	}
	for _, st := range mod.Structs {
		fields := make([]lowast.Field, 0, len(st.Fields))
		for _, f := range st.Fields {
			fields = append(fields, lowast.Field{Name: f.Name, Type: f.Type})
		}
		out.Structs = append(out.Structs, lowast.StructDef{
			Name:   st.Name,
			Fields: fields,
			Pos:    st.Pos,
		})

		// Receiver injection: methods leave their struct and become
		// plain functions with self as the first parameter.
		for _, m := range st.Methods {
			recv := &lowast.Param{Name: SelfName, Type: types.Named{Name: st.Name}}
			out.Funcs = append(out.Funcs, l.lowerFunction(m, recv))
		}
	}

	return out, nil
}

func (l *lowerer) fresh(prefix string) string {
	name := fmt.Sprintf("__%s%d", prefix, l.temps)
	l.temps++
	return name
}

func (l *lowerer) lowerFunction(fn ast.Function, recv *lowast.Param) lowast.Function {
	var params []lowast.Param
	if recv != nil {
		params = append(params, *recv)
	}
	for _, p := range fn.Params {
		params = append(params, lowast.Param{Name: p.Name, Type: p.Type})
	}

	return lowast.Function{
		Name:   fn.Name,
		Params: params,
		Ret:    fn.Ret,
		Body:   l.lowerBlock(fn.Body),
		Pos:    fn.Pos,
	}
}

func (l *lowerer) lowerBlock(b ast.Block) lowast.Block {
	out := lowast.Block{Pos: b.Pos}
	for _, s := range b.Statements {
		out.Statements = append(out.Statements, l.lowerStatement(s)...)
	}
	return out
}

// lowerStatement returns the statements a single high-level statement
// lowers to: any synthesized temporary bindings first, in evaluation
// order, then the statement itself.
func (l *lowerer) lowerStatement(s ast.Statement) []lowast.Statement {
	var out []lowast.Statement

	switch stmt := s.(type) {
	case ast.Block:
		return []lowast.Statement{l.lowerBlock(stmt)}
	case ast.Declare:
		var value lowast.Expression
		if stmt.Value != nil {
			value = l.lowerExpr(stmt.Value, rootPos(stmt.Value), &out)
		}
		return append(out, lowast.Declare{Name: stmt.Name, Type: stmt.Type, Value: value, Pos: stmt.Pos})
	case ast.Assign:
		at := rootPos(stmt.Target, stmt.Value)
		target := l.lowerExpr(stmt.Target, at, &out)
		value := l.lowerExpr(stmt.Value, at, &out)
		return append(out, lowast.Assign{Target: target, Value: value, Pos: stmt.Pos})
	case ast.If:
		cond := l.lowerExpr(stmt.Condition, rootPos(stmt.Condition), &out)
		return append(out, lowast.If{
			Condition: cond,
			Then:      l.lowerBlock(stmt.Then),
			Else:      l.lowerElse(stmt.Else),
			Pos:       stmt.Pos,
		})
	case ast.Match:
		return l.lowerMatch(stmt)
	case ast.While:
		return append(out, l.lowerLoop(stmt.Condition, stmt.Body, stmt.Pos))
	case ast.For:
		return l.lowerFor(stmt)
	case ast.Break:
		return []lowast.Statement{lowast.Break{Pos: stmt.Pos}}
	case ast.Continue:
		return []lowast.Statement{lowast.Continue{Pos: stmt.Pos}}
	case ast.Return:
		var value lowast.Expression
		if stmt.Value != nil {
			value = l.lowerExpr(stmt.Value, rootPos(stmt.Value), &out)
		}
		return append(out, lowast.Return{Value: value, Pos: stmt.Pos})
	case ast.ExprStmt:
		expr := l.lowerExpr(stmt.Expr, rootPos(stmt.Expr), &out)
		return append(out, lowast.ExprStmt{Expr: expr, Pos: stmt.Pos})
	default:
		panic(errors.Internalf(s.Span(), "no lowering rule for statement %T", s))
	}
}

// lowerElse lowers the else branch of a conditional. An else-if chain
// stays a chain, but any temporaries its condition needs must only be
// evaluated once the earlier conditions have failed, so they wrap into
// a block around the nested if.
func (l *lowerer) lowerElse(s ast.Statement) lowast.Statement {
	if s == nil {
		return nil
	}
	stmts := l.lowerStatement(s)
	if len(stmts) == 1 {
		return stmts[0]
	}
	return lowast.Block{Statements: stmts, Pos: s.Span()}
}

// lowerMatch turns a match statement into a right-nested if/else
// chain. Arms keep declaration order: the first matching source arm is
// the first branch to test true. Without a catch-all the final else is
// an empty block, reproducing the source language's silent fallthrough
// for non-exhaustive matches.
func (l *lowerer) lowerMatch(m ast.Match) []lowast.Statement {
	if len(m.Arms) == 0 && m.Else == nil {
		panic(errors.Malformedf(m.Pos, "match statement has no arms"))
	}

	var out []lowast.Statement
	subject := l.bindSubject(l.lowerExpr(m.Subject, rootPos(m.Subject), &out), &out)

	var chain lowast.Statement
	if m.Else != nil {
		chain = l.lowerBlock(*m.Else)
	} else {
		chain = lowast.Block{Pos: m.Pos}
	}

	for i := len(m.Arms) - 1; i >= 0; i-- {
		arm := m.Arms[i]
		body := l.lowerBlock(arm.Body)
		if arm.Pattern == nil {
			// A wildcard matches any subject; everything chained so
			// far sits behind arms that can never be reached.
			chain = body
			continue
		}
		chain = lowast.If{
			Condition: lowast.Binary{Op: types.Equal, Left: subject, Right: l.lowerPattern(arm.Pattern), Pos: arm.Pos},
			Then:      body,
			Else:      chain,
			Pos:       arm.Pos,
		}
	}

	return append(out, chain)
}

// lowerPattern lowers a match arm pattern, enforcing the invariant
// that patterns are literals (wildcards never reach here: they carry a
// nil pattern).
func (l *lowerer) lowerPattern(p ast.Expression) lowast.Expression {
	switch pat := p.(type) {
	case ast.IntLit:
		return lowast.IntLit{Value: pat.Value, Pos: pat.Pos}
	case ast.StrLit:
		return lowast.StrLit{Value: pat.Value, Pos: pat.Pos}
	case ast.BoolLit:
		return lowast.BoolLit{Value: pat.Value, Pos: pat.Pos}
	case ast.Unary:
		if lit, ok := pat.Expr.(ast.IntLit); ok && pat.Op == types.Negate {
			return lowast.Unary{Op: pat.Op, Expr: lowast.IntLit{Value: lit.Value, Pos: lit.Pos}, Pos: pat.Pos}
		}
	}
	panic(errors.Malformedf(p.Span(), "match pattern %T is not a literal or wildcard", p))
}

// bindSubject makes sure a match subject is evaluated exactly once:
// anything richer than a variable or literal is bound to a temporary
// shared by every comparison in the chain.
func (l *lowerer) bindSubject(subject lowast.Expression, out *[]lowast.Statement) lowast.Expression {
	switch subject.(type) {
	case lowast.VarRef, lowast.IntLit, lowast.StrLit, lowast.BoolLit:
		return subject
	}
	name := l.fresh("subject")
	*out = append(*out, lowast.Declare{Name: name, Value: subject, Pos: subject.Span()})
	return lowast.VarRef{Name: name, Pos: subject.Span()}
}

// lowerLoop builds the unified Loop node. When the condition needs
// synthesized temporaries they must be re-evaluated on every
// iteration, so the loop is rewritten to loop-forever with an inverted
// conditional break after the bindings.
func (l *lowerer) lowerLoop(cond ast.Expression, body ast.Block, pos types.Span) lowast.Statement {
	var pre []lowast.Statement
	condition := l.lowerExpr(cond, rootPos(cond), &pre)
	lowered := l.lowerBlock(body)

	if len(pre) == 0 {
		return lowast.Loop{Condition: condition, Body: lowered, Pos: pos}
	}

	guard := lowast.If{
		Condition: lowast.Unary{Op: types.Not, Expr: condition, Pos: cond.Span()},
		Then:      lowast.Block{Statements: []lowast.Statement{lowast.Break{Pos: cond.Span()}}, Pos: cond.Span()},
		Pos:       cond.Span(),
	}
	stmts := append(pre, guard)
	lowered.Statements = append(stmts, lowered.Statements...)
	return lowast.Loop{
		Condition: lowast.BoolLit{Value: true, Pos: pos},
		Body:      lowered,
		Pos:       pos,
	}
}

// lowerFor turns a collection loop into an index-driven Loop: bind the
// collection once, walk an index from 0 to the array capacity, and
// re-bind the element variable at the top of each iteration.
func (l *lowerer) lowerFor(f ast.For) []lowast.Statement {
	arr, ok := f.CollType.(types.Array)
	if !ok {
		panic(errors.Internalf(f.Pos, "collection loop over non-array type %s", f.CollType))
	}

	var out []lowast.Statement
	coll := l.lowerExpr(f.Collection, rootPos(f.Collection), &out)
	if _, isVar := coll.(lowast.VarRef); !isVar {
		name := l.fresh("coll")
		out = append(out, lowast.Declare{Name: name, Type: f.CollType, Value: coll, Pos: f.Pos})
		coll = lowast.VarRef{Name: name, Pos: f.Pos}
	}

	idx := l.fresh("idx")
	out = append(out, lowast.Declare{
		Name:  idx,
		Type:  types.Int{Bits: 64},
		Value: lowast.IntLit{Value: 0, Pos: f.Pos},
		Pos:   f.Pos,
	})

	elem := lowast.Declare{
		Name:  f.Ident,
		Type:  arr.Elem,
		Value: lowast.Index{Expr: coll, Index: lowast.VarRef{Name: idx, Pos: f.Pos}, Pos: f.Pos},
		Pos:   f.Pos,
	}

	loop := lowast.Loop{
		Condition: lowast.Binary{
			Op:    types.LessThan,
			Left:  lowast.VarRef{Name: idx, Pos: f.Pos},
			Right: lowast.IntLit{Value: int64(arr.Len), Pos: f.Pos},
			Pos:   f.Pos,
		},
		Post: lowast.Assign{
			Target: lowast.VarRef{Name: idx, Pos: f.Pos},
			Value: lowast.Binary{
				Op:    types.Addition,
				Left:  lowast.VarRef{Name: idx, Pos: f.Pos},
				Right: lowast.IntLit{Value: 1, Pos: f.Pos},
				Pos:   f.Pos,
			},
			Pos: f.Pos,
		},
		Body: func() lowast.Block {
			b := l.lowerBlock(f.Body)
			b.Statements = append([]lowast.Statement{elem}, b.Statements...)
			return b
		}(),
		Pos: f.Pos,
	}

	return append(out, loop)
}

// position describes where an expression sits while it is lowered,
// which decides whether it must be hoisted to a temporary.
type position struct {
	nested bool // sub-expression of any other expression
	inArgs bool // inside a call's argument list
	force  bool // the statement hoists somewhere; hoist every nested call
}

// rootPos builds the position for a statement's top-level expressions.
// When lowering any of them will synthesize a temporary, every call in
// the statement must be hoisted too: a temporary carries its side
// effect to before the statement, so a sibling call left inline would
// run out of source order.
func rootPos(exprs ...ast.Expression) position {
	var at position
	for _, e := range exprs {
		if e != nil && hoists(e, position{}) {
			at.force = true
		}
	}
	return at
}

// hoists reports whether lowering e at the given position will bind
// any sub-expression to a temporary. It mirrors the decisions in
// lowerExpr exactly.
func hoists(e ast.Expression, at position) bool {
	sub := position{nested: true}
	arg := position{nested: true, inArgs: true}

	switch expr := e.(type) {
	case ast.Binary:
		return hoists(expr.Left, sub) || hoists(expr.Right, sub)
	case ast.Unary:
		return hoists(expr.Expr, sub)
	case ast.Call:
		if at.inArgs {
			return true
		}
		for _, a := range expr.Args {
			if hoists(a, arg) {
				return true
			}
		}
		return false
	case ast.MethodCall:
		if at.nested {
			return true
		}
		if hoists(expr.Recv, sub) {
			return true
		}
		for _, a := range expr.Args {
			if hoists(a, arg) {
				return true
			}
		}
		return false
	case ast.FieldAccess:
		return hoists(expr.Expr, sub)
	case ast.Index:
		return hoists(expr.Expr, sub) || hoists(expr.Index, sub)
	case ast.StructLit:
		if at.nested {
			return true
		}
		for _, f := range expr.Fields {
			if hoists(f.Value, sub) {
				return true
			}
		}
		return false
	case ast.ArrayLit:
		for _, el := range expr.Elems {
			if hoists(el, sub) {
				return true
			}
		}
		return false
	case ast.MatchExpr:
		// Always lowers through a result temporary.
		return true
	}
	return false
}

// lowerExpr lowers one expression, appending any synthesized temporary
// bindings to out in left-to-right evaluation order. Method calls and
// struct constructions are hoisted whenever they appear nested inside
// another expression; plain calls are hoisted when they appear inside
// another call's argument list, or when anything else in the statement
// hoists and an inline call would run after a temporary bound to its
// right.
func (l *lowerer) lowerExpr(e ast.Expression, at position, out *[]lowast.Statement) lowast.Expression {
	sub := position{nested: true, force: at.force}
	arg := position{nested: true, inArgs: true, force: at.force}

	switch expr := e.(type) {
	case ast.IntLit:
		return lowast.IntLit{Value: expr.Value, Pos: expr.Pos}
	case ast.StrLit:
		return lowast.StrLit{Value: expr.Value, Pos: expr.Pos}
	case ast.BoolLit:
		return lowast.BoolLit{Value: expr.Value, Pos: expr.Pos}
	case ast.SelfRef:
		return lowast.VarRef{Name: SelfName, Pos: expr.Pos}
	case ast.VarRef:
		return lowast.VarRef{Name: expr.Name, Pos: expr.Pos}
	case ast.Binary:
		left := l.lowerExpr(expr.Left, sub, out)
		right := l.lowerExpr(expr.Right, sub, out)
		return lowast.Binary{Op: expr.Op, Left: left, Right: right, Pos: expr.Pos}
	case ast.Unary:
		return lowast.Unary{Op: expr.Op, Expr: l.lowerExpr(expr.Expr, sub, out), Pos: expr.Pos}
	case ast.Call:
		call := lowast.Call{Func: expr.Func, Pos: expr.Pos}
		for _, a := range expr.Args {
			call.Args = append(call.Args, l.lowerExpr(a, arg, out))
		}
		if at.inArgs || (at.nested && at.force) {
			return l.hoist(call, expr.Ret, out)
		}
		return call
	case ast.MethodCall:
		recv := l.lowerExpr(expr.Recv, sub, out)
		call := lowast.Call{Func: expr.Method, Args: []lowast.Expression{recv}, Pos: expr.Pos}
		for _, a := range expr.Args {
			call.Args = append(call.Args, l.lowerExpr(a, arg, out))
		}
		if at.nested {
			return l.hoist(call, expr.Ret, out)
		}
		return call
	case ast.FieldAccess:
		return lowast.FieldAccess{Expr: l.lowerExpr(expr.Expr, sub, out), Field: expr.Field, Pos: expr.Pos}
	case ast.Index:
		inner := l.lowerExpr(expr.Expr, sub, out)
		index := l.lowerExpr(expr.Index, sub, out)
		return lowast.Index{Expr: inner, Index: index, Pos: expr.Pos}
	case ast.StructLit:
		lit := lowast.StructLit{Name: expr.Name, Pos: expr.Pos}
		for _, f := range expr.Fields {
			lit.Fields = append(lit.Fields, lowast.FieldInit{Name: f.Name, Value: l.lowerExpr(f.Value, sub, out)})
		}
		if at.nested {
			return l.hoist(lit, types.Named{Name: expr.Name}, out)
		}
		return lit
	case ast.ArrayLit:
		arrlit := lowast.ArrayLit{Capacity: expr.Capacity, Pos: expr.Pos}
		for _, el := range expr.Elems {
			arrlit.Elems = append(arrlit.Elems, l.lowerExpr(el, sub, out))
		}
		return arrlit
	case ast.MatchExpr:
		return l.lowerMatchExpr(expr, out)
	default:
		panic(errors.Internalf(e.Span(), "no lowering rule for expression %T", e))
	}
}

func (l *lowerer) hoist(e lowast.Expression, t types.Type, out *[]lowast.Statement) lowast.Expression {
	name := l.fresh("tmp")
	*out = append(*out, lowast.Declare{Name: name, Type: t, Value: e, Pos: e.Span()})
	return lowast.VarRef{Name: name, Pos: e.Span()}
}

// lowerMatchExpr rewrites a match in expression position: declare a
// temporary, assign it from each arm's tail value through the same
// if/else chain a match statement lowers to, then stand the temporary
// in for the whole expression.
func (l *lowerer) lowerMatchExpr(m ast.MatchExpr, out *[]lowast.Statement) lowast.Expression {
	if len(m.Arms) == 0 && m.Else == nil {
		panic(errors.Malformedf(m.Pos, "match expression has no arms"))
	}

	result := l.fresh("match")
	*out = append(*out, lowast.Declare{Name: result, Type: m.Type, Pos: m.Pos})
	subject := l.bindSubject(l.lowerExpr(m.Subject, rootPos(m.Subject), out), out)

	assign := func(value ast.Expression, pos types.Span) lowast.Block {
		var pre []lowast.Statement
		lowered := l.lowerExpr(value, rootPos(value), &pre)
		pre = append(pre, lowast.Assign{
			Target: lowast.VarRef{Name: result, Pos: pos},
			Value:  lowered,
			Pos:    pos,
		})
		return lowast.Block{Statements: pre, Pos: pos}
	}

	var chain lowast.Statement
	if m.Else != nil {
		chain = assign(m.Else, m.Pos)
	} else {
		chain = lowast.Block{Pos: m.Pos}
	}

	for i := len(m.Arms) - 1; i >= 0; i-- {
		arm := m.Arms[i]
		if arm.Pattern == nil {
			chain = assign(arm.Value, arm.Pos)
			continue
		}
		chain = lowast.If{
			Condition: lowast.Binary{Op: types.Equal, Left: subject, Right: l.lowerPattern(arm.Pattern), Pos: arm.Pos},
			Then:      assign(arm.Value, arm.Pos),
			Else:      chain,
			Pos:       arm.Pos,
		}
	}

	*out = append(*out, chain)
	return lowast.VarRef{Name: result, Pos: m.Pos}
}
