package gen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/layout"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// cPrelude is the fixed runtime surface every generated C file gets.
const cPrelude = `#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include <stdio.h>

static void print(const char *s) { puts(s); }

`

// CEmitter writes the C-like target. Struct layout is pinned to the
// shared calculator's offset table with _Static_assert lines, so a
// foreign-function boundary compiled from this output cannot drift
// from the offsets other backends use.
type CEmitter struct {
	layouts *layout.Calculator
}

func NewCEmitter(layouts *layout.Calculator) *CEmitter {
	return &CEmitter{layouts: layouts}
}

func (e *CEmitter) EmitModule(mod *lowast.Module) Result {
	w := &cwriter{layouts: e.layouts}

	w.buf.WriteString(cPrelude)

	for _, st := range mod.Structs {
		w.structDef(st)
	}
	for _, fn := range mod.Funcs {
		w.signature(fn)
		w.buf.WriteString(";\n")
	}
	w.buf.WriteString("\n")
	for _, fn := range mod.Funcs {
		w.function(fn)
	}

	return Result{Code: []byte(w.buf.String()), Errors: w.errs}
}

type cwriter struct {
	buf     strings.Builder
	layouts *layout.Calculator
	errs    []error
	depth   int
}

func (w *cwriter) unsupported(construct string, pos types.Span) {
	w.errs = append(w.errs, errors.Unsupported{
		Construct: construct,
		Target:    TargetC.String(),
		Location:  pos,
	})
}

func (w *cwriter) indent() {
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString("    ")
	}
}

func (w *cwriter) structDef(st lowast.StructDef) {
	fmt.Fprintf(&w.buf, "struct %s {\n", st.Name)
	for _, f := range st.Fields {
		fmt.Fprintf(&w.buf, "    %s;\n", w.declarator(f.Type, f.Name, st.Pos))
	}
	w.buf.WriteString("};\n")

	rec, err := w.layouts.Of(st.Name)
	if err != nil {
		if _, dynamic := err.(layout.NoStaticLayout); dynamic {
			w.unsupported(fmt.Sprintf("memory layout for struct %s", st.Name), st.Pos)
			w.buf.WriteString("\n")
			return
		}
		w.errs = append(w.errs, err)
		w.buf.WriteString("\n")
		return
	}
	for _, f := range rec.Fields {
		fmt.Fprintf(&w.buf, "_Static_assert(offsetof(struct %s, %s) == %d, \"offset of %s.%s\");\n",
			st.Name, f.Name, f.Offset, st.Name, f.Name)
	}
	fmt.Fprintf(&w.buf, "_Static_assert(sizeof(struct %s) == %d, \"size of %s\");\n\n",
		st.Name, rec.Size, st.Name)
}

// declarator renders a C declarator for a type and name; arrays put
// the capacity on the name, everything else prefixes the type.
func (w *cwriter) declarator(t types.Type, name string, pos types.Span) string {
	if arr, ok := t.(types.Array); ok {
		return fmt.Sprintf("%s[%d]", w.declarator(arr.Elem, name, pos), arr.Len)
	}
	base := w.typeName(t, pos)
	if name == "" {
		return base
	}
	return base + " " + name
}

func (w *cwriter) typeName(t types.Type, pos types.Span) string {
	switch ty := t.(type) {
	case types.Int:
		return fmt.Sprintf("int%d_t", ty.Bits)
	case types.Bool:
		return "bool"
	case types.Str:
		return "const char *"
	case types.Named:
		return "struct " + ty.Name
	case types.Any:
		w.unsupported("the dynamic any type", pos)
		return "void *"
	default:
		w.unsupported(fmt.Sprintf("type %s", t), pos)
		return "void *"
	}
}

func (w *cwriter) signature(fn lowast.Function) {
	ret := "void"
	if fn.Ret != nil {
		ret = w.declarator(fn.Ret, "", fn.Pos)
	}
	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, w.declarator(p.Type, p.Name, fn.Pos))
	}
	fmt.Fprintf(&w.buf, "%s %s(%s)", ret, fn.Name, strings.Join(params, ", "))
}

func (w *cwriter) function(fn lowast.Function) {
	w.signature(fn)
	w.buf.WriteString(" ")
	w.block(fn.Body)
	w.buf.WriteString("\n")
}

func (w *cwriter) block(b lowast.Block) {
	w.buf.WriteString("{\n")
	w.depth++
	for _, s := range b.Statements {
		w.stmt(s)
	}
	w.depth--
	w.indent()
	w.buf.WriteString("}\n")
}

func (w *cwriter) stmt(s lowast.Statement) {
	switch stmt := s.(type) {
	case lowast.Block:
		w.indent()
		w.block(stmt)
	case lowast.Declare:
		w.indent()
		switch {
		case stmt.Type != nil && stmt.Value != nil:
			fmt.Fprintf(&w.buf, "%s = %s;\n", w.declarator(stmt.Type, stmt.Name, stmt.Pos), w.expr(stmt.Value))
		case stmt.Type != nil:
			fmt.Fprintf(&w.buf, "%s;\n", w.declarator(stmt.Type, stmt.Name, stmt.Pos))
		case stmt.Value != nil:
			// Untyped synthesized temporaries take their initializer's type.
			value := w.expr(stmt.Value)
			fmt.Fprintf(&w.buf, "__typeof__(%s) %s = %s;\n", value, stmt.Name, value)
		default:
			w.unsupported("a declaration with neither type nor value", stmt.Pos)
		}
	case lowast.Assign:
		w.indent()
		fmt.Fprintf(&w.buf, "%s = %s;\n", w.expr(stmt.Target), w.expr(stmt.Value))
	case lowast.If:
		w.indent()
		w.ifChain(stmt)
	case lowast.Loop:
		w.indent()
		w.loop(stmt)
	case lowast.Break:
		w.indent()
		w.buf.WriteString("break;\n")
	case lowast.Continue:
		w.indent()
		w.buf.WriteString("continue;\n")
	case lowast.Return:
		w.indent()
		if stmt.Value != nil {
			fmt.Fprintf(&w.buf, "return %s;\n", w.expr(stmt.Value))
		} else {
			w.buf.WriteString("return;\n")
		}
	case lowast.ExprStmt:
		w.indent()
		fmt.Fprintf(&w.buf, "%s;\n", w.expr(stmt.Expr))
	default:
		w.unsupported(fmt.Sprintf("statement %T", s), s.Span())
	}
}

func (w *cwriter) ifChain(stmt lowast.If) {
	fmt.Fprintf(&w.buf, "if (%s) ", w.expr(stmt.Condition))
	w.block(stmt.Then)
	switch els := stmt.Else.(type) {
	case nil:
	case lowast.If:
		w.indent()
		w.buf.WriteString("else ")
		w.ifChain(els)
	case lowast.Block:
		if len(els.Statements) == 0 {
			return
		}
		w.indent()
		w.buf.WriteString("else ")
		w.block(els)
	default:
		w.indent()
		w.buf.WriteString("else {\n")
		w.depth++
		w.stmt(els)
		w.depth--
		w.indent()
		w.buf.WriteString("}\n")
	}
}

// loop renders the unified loop. The post-step rides in the for
// header so continue still runs it.
func (w *cwriter) loop(stmt lowast.Loop) {
	if stmt.Post == nil {
		fmt.Fprintf(&w.buf, "while (%s) ", w.expr(stmt.Condition))
		w.block(stmt.Body)
		return
	}
	post, ok := stmt.Post.(lowast.Assign)
	if !ok {
		w.unsupported(fmt.Sprintf("loop post-step %T", stmt.Post), stmt.Post.Span())
		fmt.Fprintf(&w.buf, "while (%s) ", w.expr(stmt.Condition))
		w.block(stmt.Body)
		return
	}
	fmt.Fprintf(&w.buf, "for (; %s; %s = %s) ", w.expr(stmt.Condition), w.expr(post.Target), w.expr(post.Value))
	w.block(stmt.Body)
}

func (w *cwriter) expr(e lowast.Expression) string {
	switch expr := e.(type) {
	case lowast.IntLit:
		return strconv.FormatInt(expr.Value, 10)
	case lowast.StrLit:
		return strconv.Quote(expr.Value)
	case lowast.BoolLit:
		return strconv.FormatBool(expr.Value)
	case lowast.VarRef:
		return expr.Name
	case lowast.Binary:
		return fmt.Sprintf("(%s %s %s)", w.expr(expr.Left), expr.Op, w.expr(expr.Right))
	case lowast.Unary:
		return fmt.Sprintf("%s%s", expr.Op, w.operand(expr.Expr))
	case lowast.Call:
		args := make([]string, 0, len(expr.Args))
		for _, a := range expr.Args {
			args = append(args, w.expr(a))
		}
		return fmt.Sprintf("%s(%s)", expr.Func, strings.Join(args, ", "))
	case lowast.FieldAccess:
		return fmt.Sprintf("%s.%s", w.operand(expr.Expr), expr.Field)
	case lowast.Index:
		return fmt.Sprintf("%s[%s]", w.operand(expr.Expr), w.expr(expr.Index))
	case lowast.StructLit:
		fields := make([]string, 0, len(expr.Fields))
		for _, f := range expr.Fields {
			fields = append(fields, fmt.Sprintf(".%s = %s", f.Name, w.expr(f.Value)))
		}
		return fmt.Sprintf("(struct %s){%s}", expr.Name, strings.Join(fields, ", "))
	case lowast.ArrayLit:
		elems := make([]string, 0, len(expr.Elems))
		for _, el := range expr.Elems {
			elems = append(elems, w.expr(el))
		}
		return fmt.Sprintf("{%s}", strings.Join(elems, ", "))
	default:
		w.unsupported(fmt.Sprintf("expression %T", e), e.Span())
		return "0"
	}
}

// operand parenthesizes anything that does not bind tighter than a
// postfix or unary operator.
func (w *cwriter) operand(e lowast.Expression) string {
	switch e.(type) {
	case lowast.VarRef, lowast.IntLit, lowast.BoolLit, lowast.Call, lowast.FieldAccess, lowast.Index:
		return w.expr(e)
	}
	return "(" + w.expr(e) + ")"
}
