package gen

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/layout"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// LLVMEmitter writes the register-machine IR target. Locals live in
// allocas; aggregate field addressing goes through getelementptr with
// field indices taken from the shared layout calculator's records, so
// this backend and the C backend agree on one offset table.
type LLVMEmitter struct {
	layouts *layout.Calculator
}

func NewLLVMEmitter(layouts *layout.Calculator) *LLVMEmitter {
	return &LLVMEmitter{layouts: layouts}
}

func (e *LLVMEmitter) EmitModule(mod *lowast.Module) Result {
	g := &llvmgen{
		layouts: e.layouts,
		module:  ir.NewModule(),
		funcs:   make(map[string]*ir.Func),
		structs: make(map[string]*lltypes.StructType),
		records: make(map[*lltypes.StructType]*layout.Record),
		strs:    make(map[string]value.Value),
	}

	// Builtin surface: print is an external the host runtime links in.
	g.funcs["print"] = g.module.NewFunc("print", lltypes.Void,
		ir.NewParam("s", lltypes.NewPointer(lltypes.I8)))

	for _, st := range mod.Structs {
		g.structDef(st)
	}

	// Two passes over functions, like any forward-reference-friendly
	// emitter: declare every signature, then fill bodies.
	for _, fn := range mod.Funcs {
		g.declare(fn)
	}
	for _, fn := range mod.Funcs {
		g.define(fn)
	}

	return Result{Code: []byte(g.module.String()), Errors: g.errs}
}

type llvmgen struct {
	layouts *layout.Calculator
	module  *ir.Module
	errs    []error

	funcs   map[string]*ir.Func
	structs map[string]*lltypes.StructType
	records map[*lltypes.StructType]*layout.Record
	strs    map[string]value.Value

	fn     *ir.Func
	scopes []map[string]value.Value // name -> alloca
	loops  []loopTargets
	labels int
}

func (g *llvmgen) unsupported(construct string, pos types.Span) {
	g.errs = append(g.errs, errors.Unsupported{
		Construct: construct,
		Target:    TargetLLVM.String(),
		Location:  pos,
	})
}

func (g *llvmgen) label(prefix string) string {
	g.labels++
	return fmt.Sprintf("%s%d", prefix, g.labels)
}

func (g *llvmgen) pushScope() {
	g.scopes = append(g.scopes, make(map[string]value.Value))
}

func (g *llvmgen) popScope() {
	g.scopes = g.scopes[:len(g.scopes)-1]
}

func (g *llvmgen) bind(name string, slot value.Value) {
	g.scopes[len(g.scopes)-1][name] = slot
}

func (g *llvmgen) lookup(name string) (value.Value, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if v, ok := g.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (g *llvmgen) structDef(st lowast.StructDef) {
	rec, err := g.layouts.Of(st.Name)
	if err != nil {
		if _, dynamic := err.(layout.NoStaticLayout); dynamic {
			g.unsupported(fmt.Sprintf("memory layout for struct %s", st.Name), st.Pos)
			return
		}
		g.errs = append(g.errs, err)
		return
	}

	fields := make([]lltypes.Type, 0, len(st.Fields))
	for _, f := range st.Fields {
		fields = append(fields, g.typ(f.Type, st.Pos))
	}
	t := lltypes.NewStruct(fields...)
	g.module.NewTypeDef(st.Name, t)
	g.structs[st.Name] = t
	g.records[t] = rec
}

func (g *llvmgen) typ(t types.Type, pos types.Span) lltypes.Type {
	switch ty := t.(type) {
	case types.Int:
		return lltypes.NewInt(uint64(ty.Bits))
	case types.Bool:
		return lltypes.I1
	case types.Str:
		return lltypes.NewPointer(lltypes.I8)
	case types.Array:
		return lltypes.NewArray(uint64(ty.Len), g.typ(ty.Elem, pos))
	case types.Named:
		if st, ok := g.structs[ty.Name]; ok {
			return st
		}
		g.errs = append(g.errs, errors.UnknownStruct{Name: ty.Name, Location: pos})
		return lltypes.I64
	case types.Any:
		g.unsupported("the dynamic any type", pos)
		return lltypes.I64
	default:
		g.unsupported(fmt.Sprintf("type %s", t), pos)
		return lltypes.I64
	}
}

func (g *llvmgen) declare(fn lowast.Function) {
	var ret lltypes.Type = lltypes.Void
	if fn.Ret != nil {
		ret = g.typ(fn.Ret, fn.Pos)
	}
	params := make([]*ir.Param, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, ir.NewParam(p.Name, g.typ(p.Type, fn.Pos)))
	}
	g.funcs[fn.Name] = g.module.NewFunc(fn.Name, ret, params...)
}

func (g *llvmgen) define(fn lowast.Function) {
	g.fn = g.funcs[fn.Name]
	entry := g.fn.NewBlock("entry")

	g.pushScope()
	for i, p := range fn.Params {
		slot := entry.NewAlloca(g.fn.Params[i].Type())
		entry.NewStore(g.fn.Params[i], slot)
		g.bind(p.Name, slot)
	}

	b := g.stmts(entry, fn.Body.Statements)
	g.popScope()

	if b.Term == nil {
		if fn.Ret == nil {
			b.NewRet(nil)
		} else {
			b.NewRet(constant.NewUndef(g.typ(fn.Ret, fn.Pos)))
		}
	}
}

func (g *llvmgen) stmts(b *ir.Block, stmts []lowast.Statement) *ir.Block {
	for _, s := range stmts {
		b = g.stmt(b, s)
	}
	return b
}

type loopTargets struct {
	brk  *ir.Block
	cont *ir.Block
}

func (g *llvmgen) stmt(b *ir.Block, s lowast.Statement) *ir.Block {
	switch stmt := s.(type) {
	case lowast.Block:
		g.pushScope()
		b = g.stmts(b, stmt.Statements)
		g.popScope()
		return b
	case lowast.Declare:
		var init value.Value
		if stmt.Value != nil {
			init, b = g.expr(b, stmt.Value)
		}
		var t lltypes.Type
		if stmt.Type != nil {
			t = g.typ(stmt.Type, stmt.Pos)
		} else if init != nil {
			t = init.Type()
		} else {
			g.unsupported("a declaration with neither type nor value", stmt.Pos)
			t = lltypes.I64
		}
		slot := b.NewAlloca(t)
		if init != nil {
			b.NewStore(g.coerceTo(b, init, t), slot)
		}
		g.bind(stmt.Name, slot)
		return b
	case lowast.Assign:
		val, b := g.expr(b, stmt.Value)
		ptr, b := g.addr(b, stmt.Target)
		if ptr != nil {
			elem := ptr.Type().(*lltypes.PointerType).ElemType
			b.NewStore(g.coerceTo(b, val, elem), ptr)
		}
		return b
	case lowast.If:
		return g.conditional(b, stmt)
	case lowast.Loop:
		return g.loop(b, stmt)
	case lowast.Break:
		if len(g.loops) == 0 {
			g.errs = append(g.errs, errors.Malformedf(stmt.Pos, "break outside a loop"))
			return b
		}
		b.NewBr(g.loops[len(g.loops)-1].brk)
		return g.fn.NewBlock(g.label("dead"))
	case lowast.Continue:
		if len(g.loops) == 0 {
			g.errs = append(g.errs, errors.Malformedf(stmt.Pos, "continue outside a loop"))
			return b
		}
		b.NewBr(g.loops[len(g.loops)-1].cont)
		return g.fn.NewBlock(g.label("dead"))
	case lowast.Return:
		if stmt.Value != nil {
			val, b := g.expr(b, stmt.Value)
			b.NewRet(val)
			return g.fn.NewBlock(g.label("dead"))
		}
		b.NewRet(nil)
		return g.fn.NewBlock(g.label("dead"))
	case lowast.ExprStmt:
		// Compound assignment arrives as a statement-level binary op.
		if bin, ok := stmt.Expr.(lowast.Binary); ok {
			if base, compound := compoundOp(bin.Op); compound {
				return g.compoundAssign(b, bin, base)
			}
		}
		_, b = g.expr(b, stmt.Expr)
		return b
	default:
		g.unsupported(fmt.Sprintf("statement %T", s), s.Span())
		return b
	}
}

func (g *llvmgen) conditional(b *ir.Block, stmt lowast.If) *ir.Block {
	cond, b := g.expr(b, stmt.Condition)
	thenB := g.fn.NewBlock(g.label("if.then"))
	end := g.fn.NewBlock(g.label("if.end"))

	elseTarget := end
	var elseB *ir.Block
	if stmt.Else != nil {
		elseB = g.fn.NewBlock(g.label("if.else"))
		elseTarget = elseB
	}
	b.NewCondBr(g.truthy(b, cond), thenB, elseTarget)

	g.pushScope()
	out := g.stmts(thenB, stmt.Then.Statements)
	g.popScope()
	if out.Term == nil {
		out.NewBr(end)
	}

	if elseB != nil {
		out := g.stmt(elseB, stmt.Else)
		if out.Term == nil {
			out.NewBr(end)
		}
	}
	return end
}

func (g *llvmgen) loop(b *ir.Block, stmt lowast.Loop) *ir.Block {
	condB := g.fn.NewBlock(g.label("loop.cond"))
	bodyB := g.fn.NewBlock(g.label("loop.body"))
	end := g.fn.NewBlock(g.label("loop.end"))

	step := condB
	var postB *ir.Block
	if stmt.Post != nil {
		postB = g.fn.NewBlock(g.label("loop.post"))
		step = postB
	}

	b.NewBr(condB)
	cond, out := g.expr(condB, stmt.Condition)
	out.NewCondBr(g.truthy(out, cond), bodyB, end)

	g.loops = append(g.loops, loopTargets{brk: end, cont: step})
	g.pushScope()
	bodyOut := g.stmts(bodyB, stmt.Body.Statements)
	g.popScope()
	g.loops = g.loops[:len(g.loops)-1]
	if bodyOut.Term == nil {
		bodyOut.NewBr(step)
	}

	if postB != nil {
		postOut := g.stmt(postB, stmt.Post)
		if postOut.Term == nil {
			postOut.NewBr(condB)
		}
	}
	return end
}

func (g *llvmgen) compoundAssign(b *ir.Block, bin lowast.Binary, base types.BinOp) *ir.Block {
	rhs, b := g.expr(b, bin.Right)
	ptr, b := g.addr(b, bin.Left)
	if ptr == nil {
		return b
	}
	elem := ptr.Type().(*lltypes.PointerType).ElemType
	cur := b.NewLoad(elem, ptr)
	next := g.arith(b, base, cur, rhs, bin.Pos)
	b.NewStore(g.coerceTo(b, next, elem), ptr)
	return b
}

// expr emits one expression and returns its value plus the block
// emission continues in.
func (g *llvmgen) expr(b *ir.Block, e lowast.Expression) (value.Value, *ir.Block) {
	switch expr := e.(type) {
	case lowast.IntLit:
		return constant.NewInt(lltypes.I64, expr.Value), b
	case lowast.BoolLit:
		return constant.NewBool(expr.Value), b
	case lowast.StrLit:
		return g.strLit(b, expr.Value), b
	case lowast.VarRef:
		slot, ok := g.lookup(expr.Name)
		if !ok {
			g.errs = append(g.errs, errors.Malformedf(expr.Pos, "reference to undeclared variable %s", expr.Name))
			return constant.NewInt(lltypes.I64, 0), b
		}
		elem := slot.Type().(*lltypes.PointerType).ElemType
		return b.NewLoad(elem, slot), b
	case lowast.Binary:
		left, b := g.expr(b, expr.Left)
		right, b := g.expr(b, expr.Right)
		return g.arith(b, expr.Op, left, right, expr.Pos), b
	case lowast.Unary:
		val, b := g.expr(b, expr.Expr)
		if expr.Op == types.Not {
			return b.NewXor(g.truthy(b, val), constant.True), b
		}
		return b.NewSub(constant.NewInt(val.Type().(*lltypes.IntType), 0), val), b
	case lowast.Call:
		fn, ok := g.funcs[expr.Func]
		args := make([]value.Value, 0, len(expr.Args))
		for _, a := range expr.Args {
			var v value.Value
			v, b = g.expr(b, a)
			args = append(args, v)
		}
		if !ok {
			// The input contract resolves every identifier upstream,
			// so an unknown callee is an external linked in later.
			params := make([]*ir.Param, 0, len(args))
			for i, a := range args {
				params = append(params, ir.NewParam(fmt.Sprintf("a%d", i), a.Type()))
			}
			fn = g.module.NewFunc(expr.Func, lltypes.I64, params...)
			g.funcs[expr.Func] = fn
		}
		return b.NewCall(fn, args...), b
	case lowast.FieldAccess, lowast.Index:
		ptr, out := g.addr(b, e)
		if ptr == nil {
			return constant.NewInt(lltypes.I64, 0), out
		}
		elem := ptr.Type().(*lltypes.PointerType).ElemType
		return out.NewLoad(elem, ptr), out
	case lowast.StructLit:
		st, ok := g.structs[expr.Name]
		if !ok {
			g.unsupported(fmt.Sprintf("construction of struct %s", expr.Name), expr.Pos)
			return constant.NewInt(lltypes.I64, 0), b
		}
		rec := g.records[st]
		slot := b.NewAlloca(st)
		for _, f := range expr.Fields {
			idx := rec.FieldIndex(f.Name)
			if idx < 0 {
				g.errs = append(g.errs, errors.Malformedf(expr.Pos, "struct %s has no field %s", expr.Name, f.Name))
				continue
			}
			var v value.Value
			v, b = g.expr(b, f.Value)
			ptr := b.NewGetElementPtr(st, slot,
				constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(idx)))
			b.NewStore(g.coerceTo(b, v, st.Fields[idx]), ptr)
		}
		return b.NewLoad(st, slot), b
	case lowast.ArrayLit:
		if len(expr.Elems) == 0 {
			g.unsupported("an empty array literal", expr.Pos)
			return constant.NewInt(lltypes.I64, 0), b
		}
		first, out := g.expr(b, expr.Elems[0])
		b = out
		arr := lltypes.NewArray(uint64(expr.Capacity), first.Type())
		slot := b.NewAlloca(arr)
		elems := []value.Value{first}
		for _, el := range expr.Elems[1:] {
			var v value.Value
			v, b = g.expr(b, el)
			elems = append(elems, v)
		}
		for i, v := range elems {
			ptr := b.NewGetElementPtr(arr, slot,
				constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(i)))
			b.NewStore(v, ptr)
		}
		return b.NewLoad(arr, slot), b
	default:
		g.unsupported(fmt.Sprintf("expression %T", e), e.Span())
		return constant.NewInt(lltypes.I64, 0), b
	}
}

// addr emits the address of an lvalue. Rvalue aggregates are spilled
// to a fresh slot so field and index access still have an address.
func (g *llvmgen) addr(b *ir.Block, e lowast.Expression) (value.Value, *ir.Block) {
	switch expr := e.(type) {
	case lowast.VarRef:
		slot, ok := g.lookup(expr.Name)
		if !ok {
			g.errs = append(g.errs, errors.Malformedf(expr.Pos, "reference to undeclared variable %s", expr.Name))
			return nil, b
		}
		return slot, b
	case lowast.FieldAccess:
		base, b := g.addr(b, expr.Expr)
		if base == nil {
			return nil, b
		}
		st, ok := base.Type().(*lltypes.PointerType).ElemType.(*lltypes.StructType)
		if !ok {
			g.errs = append(g.errs, errors.Malformedf(expr.Pos, "field access on a non-struct value"))
			return nil, b
		}
		rec := g.records[st]
		idx := -1
		if rec != nil {
			idx = rec.FieldIndex(expr.Field)
		}
		if idx < 0 {
			g.errs = append(g.errs, errors.Malformedf(expr.Pos, "no field named %s", expr.Field))
			return nil, b
		}
		return b.NewGetElementPtr(st, base,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(idx))), b
	case lowast.Index:
		base, b := g.addr(b, expr.Expr)
		if base == nil {
			return nil, b
		}
		arr, ok := base.Type().(*lltypes.PointerType).ElemType.(*lltypes.ArrayType)
		if !ok {
			g.errs = append(g.errs, errors.Malformedf(expr.Pos, "indexing a non-array value"))
			return nil, b
		}
		idx, b := g.expr(b, expr.Index)
		return b.NewGetElementPtr(arr, base,
			constant.NewInt(lltypes.I32, 0), idx), b
	default:
		// Not an lvalue: spill the value and address the slot.
		val, b := g.expr(b, e)
		slot := b.NewAlloca(val.Type())
		b.NewStore(val, slot)
		return slot, b
	}
}

func (g *llvmgen) strLit(b *ir.Block, s string) value.Value {
	if v, ok := g.strs[s]; ok {
		return b.NewBitCast(v, lltypes.NewPointer(lltypes.I8))
	}
	global := g.module.NewGlobalDef("_str_"+hash(s), constant.NewCharArrayFromString(s+"\x00"))
	global.Immutable = true
	g.strs[s] = global
	return b.NewBitCast(global, lltypes.NewPointer(lltypes.I8))
}

func hash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// arith emits one binary operation, widening mismatched integer
// operands to the larger width first.
func (g *llvmgen) arith(b *ir.Block, op types.BinOp, left, right value.Value, pos types.Span) value.Value {
	left, right = g.widen(b, left, right)

	switch op {
	case types.Addition:
		return b.NewAdd(left, right)
	case types.Subtraction:
		return b.NewSub(left, right)
	case types.Multiplication:
		return b.NewMul(left, right)
	case types.Division:
		return b.NewSDiv(left, right)
	case types.Modulus:
		return b.NewSRem(left, right)
	case types.LessThan:
		return b.NewICmp(enum.IPredSLT, left, right)
	case types.LessThanOrEqual:
		return b.NewICmp(enum.IPredSLE, left, right)
	case types.GreaterThan:
		return b.NewICmp(enum.IPredSGT, left, right)
	case types.GreaterThanOrEqual:
		return b.NewICmp(enum.IPredSGE, left, right)
	case types.Equal:
		return b.NewICmp(enum.IPredEQ, left, right)
	case types.NotEqual:
		return b.NewICmp(enum.IPredNE, left, right)
	case types.And:
		return b.NewAnd(g.truthy(b, left), g.truthy(b, right))
	case types.Or:
		return b.NewOr(g.truthy(b, left), g.truthy(b, right))
	default:
		g.unsupported(fmt.Sprintf("operator %s", op), pos)
		return left
	}
}

func compoundOp(op types.BinOp) (types.BinOp, bool) {
	switch op {
	case types.AddAssign:
		return types.Addition, true
	case types.SubtractAssign:
		return types.Subtraction, true
	case types.MultiplyAssign:
		return types.Multiplication, true
	case types.DivideAssign:
		return types.Division, true
	}
	return op, false
}

// widen sign-extends the narrower of two integer operands so both
// sides of an operation share a width.
func (g *llvmgen) widen(b *ir.Block, left, right value.Value) (value.Value, value.Value) {
	lt, lok := left.Type().(*lltypes.IntType)
	rt, rok := right.Type().(*lltypes.IntType)
	if !lok || !rok || lt.BitSize == rt.BitSize {
		return left, right
	}
	if lt.BitSize < rt.BitSize {
		return b.NewSExt(left, rt), right
	}
	return left, b.NewSExt(right, lt)
}

// coerceTo adapts an integer value to the width of a storage slot.
func (g *llvmgen) coerceTo(b *ir.Block, v value.Value, t lltypes.Type) value.Value {
	vt, vok := v.Type().(*lltypes.IntType)
	tt, tok := t.(*lltypes.IntType)
	if !vok || !tok || vt.BitSize == tt.BitSize {
		return v
	}
	if vt.BitSize < tt.BitSize {
		return b.NewSExt(v, tt)
	}
	return b.NewTrunc(v, tt)
}

// truthy narrows a value to i1 for use as a branch condition.
func (g *llvmgen) truthy(b *ir.Block, v value.Value) value.Value {
	t, ok := v.Type().(*lltypes.IntType)
	if !ok || t.BitSize == 1 {
		return v
	}
	return b.NewICmp(enum.IPredNE, v, constant.NewInt(t, 0))
}
