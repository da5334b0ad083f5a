package gen

import (
	"strings"
	"testing"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/layout"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

func emitC(t *testing.T, mod *lowast.Module) Result {
	t.Helper()
	return NewCEmitter(layout.NewCalculator(mod)).EmitModule(mod)
}

func TestCStructLayoutIsPinned(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{
				Name: "Mixed",
				Fields: []lowast.Field{
					{Name: "a", Type: types.Int{Bits: 8}},
					{Name: "b", Type: types.Int{Bits: 32}},
				},
			},
		},
	}

	res := emitC(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	for _, want := range []string{
		"struct Mixed {",
		"int8_t a;",
		"int32_t b;",
		"_Static_assert(offsetof(struct Mixed, a) == 0",
		"_Static_assert(offsetof(struct Mixed, b) == 4",
		"_Static_assert(sizeof(struct Mixed) == 8",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}
}

func TestCIfChainAndEmptyElse(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "pick",
				Params: []lowast.Param{
					{Name: "x", Type: types.Int{Bits: 64}},
				},
				Ret: types.Int{Bits: 64},
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.If{
						Condition: lowast.Binary{Op: types.Equal, Left: lowast.VarRef{Name: "x"}, Right: lowast.IntLit{Value: 1}},
						Then:      lowast.Block{Statements: []lowast.Statement{lowast.Return{Value: lowast.IntLit{Value: 10}}}},
						Else: lowast.If{
							Condition: lowast.Binary{Op: types.Equal, Left: lowast.VarRef{Name: "x"}, Right: lowast.IntLit{Value: 2}},
							Then:      lowast.Block{Statements: []lowast.Statement{lowast.Return{Value: lowast.IntLit{Value: 20}}}},
							Else:      lowast.Block{},
						},
					},
					lowast.Return{Value: lowast.IntLit{Value: 0}},
				}},
			},
		},
	}

	res := emitC(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	if !strings.Contains(code, "else if ((x == 2))") {
		t.Errorf("chain not rendered as else-if:\n%s", code)
	}
	// The empty fallthrough block must not produce a dangling else.
	if strings.Contains(code, "else {\n    }") || strings.Contains(code, "else {\n        }") {
		t.Errorf("empty else should be elided:\n%s", code)
	}
}

func TestCLoopForms(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "loops",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "i", Type: types.Int{Bits: 64}, Value: lowast.IntLit{Value: 0}},
					lowast.Loop{
						Condition: lowast.Binary{Op: types.LessThan, Left: lowast.VarRef{Name: "i"}, Right: lowast.IntLit{Value: 3}},
						Post: lowast.Assign{
							Target: lowast.VarRef{Name: "i"},
							Value:  lowast.Binary{Op: types.Addition, Left: lowast.VarRef{Name: "i"}, Right: lowast.IntLit{Value: 1}},
						},
						Body: lowast.Block{},
					},
					lowast.Loop{
						Condition: lowast.BoolLit{Value: true},
						Body:      lowast.Block{Statements: []lowast.Statement{lowast.Break{}}},
					},
				}},
			},
		},
	}

	res := emitC(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	if !strings.Contains(code, "for (; (i < 3); i = (i + 1))") {
		t.Errorf("stepped loop should render as a for header:\n%s", code)
	}
	if !strings.Contains(code, "while (true)") {
		t.Errorf("plain loop should render as while:\n%s", code)
	}
}

func TestCUntypedTemporaryInfersType(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "main",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "__tmp0", Value: lowast.Call{Func: "f"}},
				}},
			},
		},
	}

	res := emitC(t, mod)
	if !strings.Contains(string(res.Code), "__typeof__(f()) __tmp0 = f();") {
		t.Errorf("untyped temporary not inferred:\n%s", res.Code)
	}
}

func TestCDynamicTypeIsUnsupported(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{
				Name:   "Box",
				Fields: []lowast.Field{{Name: "v", Type: types.Any{}}},
			},
		},
	}

	res := emitC(t, mod)
	if res.Ok() {
		t.Fatal("expected errors for a dynamically typed field")
	}

	found := false
	for _, err := range res.Errors {
		if u, ok := err.(errors.Unsupported); ok && u.Target == "c" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unsupported-construct error for the c target, got %v", res.Errors)
	}
}

func TestCEmissionContinuesPastErrors(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "Box", Fields: []lowast.Field{{Name: "v", Type: types.Any{}}}},
		},
		Funcs: []lowast.Function{
			{Name: "ok", Body: lowast.Block{Statements: []lowast.Statement{lowast.Return{}}}},
		},
	}

	res := emitC(t, mod)
	if res.Ok() {
		t.Fatal("expected errors")
	}
	if !strings.Contains(string(res.Code), "void ok(void") && !strings.Contains(string(res.Code), "void ok()") {
		t.Errorf("emission should continue past an unsupported struct:\n%s", res.Code)
	}
}

func TestCStructLiteralAndFieldAccess(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "Point", Fields: []lowast.Field{
				{Name: "x", Type: types.Int{Bits: 64}},
				{Name: "y", Type: types.Int{Bits: 64}},
			}},
		},
		Funcs: []lowast.Function{
			{
				Name: "main",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "p", Type: types.Named{Name: "Point"}, Value: lowast.StructLit{
						Name: "Point",
						Fields: []lowast.FieldInit{
							{Name: "x", Value: lowast.IntLit{Value: 1}},
							{Name: "y", Value: lowast.IntLit{Value: 2}},
						},
					}},
					lowast.ExprStmt{Expr: lowast.Call{Func: "use", Args: []lowast.Expression{
						lowast.FieldAccess{Expr: lowast.VarRef{Name: "p"}, Field: "x"},
					}}},
				}},
			},
		},
	}

	res := emitC(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	if !strings.Contains(code, "struct Point p = (struct Point){.x = 1, .y = 2};") {
		t.Errorf("compound literal missing:\n%s", code)
	}
	if !strings.Contains(code, "use(p.x);") {
		t.Errorf("field access missing:\n%s", code)
	}
}
