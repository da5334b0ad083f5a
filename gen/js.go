package gen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// jsPrelude mirrors the builtin surface of the other targets on top of
// the host runtime.
const jsPrelude = `function print(s) { console.log(s); }

`

// JSEmitter writes the dynamic-scripting target. The runtime has no
// addressable aggregate memory: structs become constructor functions
// over plain objects and the layout calculator is never consulted.
type JSEmitter struct{}

func NewJSEmitter() *JSEmitter {
	return &JSEmitter{}
}

func (e *JSEmitter) EmitModule(mod *lowast.Module) Result {
	w := &jswriter{}

	w.buf.WriteString(jsPrelude)

	for _, st := range mod.Structs {
		w.structDef(st)
	}

	hasMain := false
	for _, fn := range mod.Funcs {
		if fn.Name == "main" {
			hasMain = true
		}
		w.function(fn)
	}
	if hasMain {
		w.buf.WriteString("main();\n")
	}

	return Result{Code: []byte(w.buf.String()), Errors: w.errs}
}

type jswriter struct {
	buf   strings.Builder
	errs  []error
	depth int
}

func (w *jswriter) unsupported(construct string, pos types.Span) {
	w.errs = append(w.errs, errors.Unsupported{
		Construct: construct,
		Target:    TargetJS.String(),
		Location:  pos,
	})
}

func (w *jswriter) indent() {
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString("    ")
	}
}

// structDef emits a constructor taking a bag of named field values;
// field declarations themselves carry no information the runtime
// wants.
func (w *jswriter) structDef(st lowast.StructDef) {
	fmt.Fprintf(&w.buf, "function %s(args) {\n", st.Name)
	for _, f := range st.Fields {
		fmt.Fprintf(&w.buf, "    this.%s = args.%s;\n", f.Name, f.Name)
	}
	w.buf.WriteString("}\n\n")
}

func (w *jswriter) function(fn lowast.Function) {
	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, p.Name)
	}
	fmt.Fprintf(&w.buf, "function %s(%s) ", fn.Name, strings.Join(params, ", "))
	w.block(fn.Body)
	w.buf.WriteString("\n")
}

func (w *jswriter) block(b lowast.Block) {
	w.buf.WriteString("{\n")
	w.depth++
	for _, s := range b.Statements {
		w.stmt(s)
	}
	w.depth--
	w.indent()
	w.buf.WriteString("}\n")
}

func (w *jswriter) stmt(s lowast.Statement) {
	switch stmt := s.(type) {
	case lowast.Block:
		w.indent()
		w.block(stmt)
	case lowast.Declare:
		w.indent()
		switch {
		case stmt.Value != nil:
			fmt.Fprintf(&w.buf, "var %s = %s;\n", stmt.Name, w.expr(stmt.Value))
		default:
			if _, isArray := stmt.Type.(types.Array); isArray {
				// Indexing an undefined binding throws; an empty
				// array accepts element stores.
				fmt.Fprintf(&w.buf, "var %s = [];\n", stmt.Name)
				return
			}
			fmt.Fprintf(&w.buf, "var %s;\n", stmt.Name)
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

func (w *jswriter) ifChain(stmt lowast.If) {
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

func (w *jswriter) loop(stmt lowast.Loop) {
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

// jsOp maps equality onto the strict forms; everything else matches
// the shared vocabulary.
func jsOp(op types.BinOp) string {
	switch op {
	case types.Equal:
		return "==="
	case types.NotEqual:
		return "!=="
	}
	return op.String()
}

func (w *jswriter) expr(e lowast.Expression) string {
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
		return fmt.Sprintf("(%s %s %s)", w.expr(expr.Left), jsOp(expr.Op), w.expr(expr.Right))
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
			fields = append(fields, fmt.Sprintf("%s: %s", f.Name, w.expr(f.Value)))
		}
		return fmt.Sprintf("new %s({%s})", expr.Name, strings.Join(fields, ", "))
	case lowast.ArrayLit:
		elems := make([]string, 0, len(expr.Elems))
		for _, el := range expr.Elems {
			elems = append(elems, w.expr(el))
		}
		return fmt.Sprintf("[%s]", strings.Join(elems, ", "))
	default:
		w.unsupported(fmt.Sprintf("expression %T", e), e.Span())
		return "undefined"
	}
}

func (w *jswriter) operand(e lowast.Expression) string {
	switch e.(type) {
	case lowast.VarRef, lowast.IntLit, lowast.BoolLit, lowast.Call, lowast.FieldAccess, lowast.Index:
		return w.expr(e)
	}
	return "(" + w.expr(e) + ")"
}
