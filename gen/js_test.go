package gen

import (
	"strings"
	"testing"

	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

func emitJS(t *testing.T, mod *lowast.Module) Result {
	t.Helper()
	return NewJSEmitter().EmitModule(mod)
}

func TestJSStructBecomesConstructor(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "Point", Fields: []lowast.Field{
				{Name: "x", Type: types.Int{Bits: 64}},
				{Name: "y", Type: types.Int{Bits: 64}},
			}},
		},
	}

	res := emitJS(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	for _, want := range []string{
		"function Point(args) {",
		"this.x = args.x;",
		"this.y = args.y;",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}
}

func TestJSEqualityIsStrict(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name:   "eq",
				Params: []lowast.Param{{Name: "a", Type: types.Int{Bits: 64}}},
				Ret:    types.Bool{},
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Return{Value: lowast.Binary{Op: types.Equal, Left: lowast.VarRef{Name: "a"}, Right: lowast.IntLit{Value: 1}}},
				}},
			},
		},
	}

	res := emitJS(t, mod)
	code := string(res.Code)
	if !strings.Contains(code, "(a === 1)") {
		t.Errorf("equality should use the strict operator:\n%s", code)
	}
}

func TestJSMainIsInvoked(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{Name: "main", Body: lowast.Block{}},
		},
	}

	res := emitJS(t, mod)
	if !strings.HasSuffix(strings.TrimSpace(string(res.Code)), "main();") {
		t.Errorf("main must be invoked at the end of the artifact:\n%s", res.Code)
	}
}

func TestJSNoMainNoInvocation(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{Name: "helper", Body: lowast.Block{}},
		},
	}

	res := emitJS(t, mod)
	if strings.Contains(string(res.Code), "main();") {
		t.Errorf("no main function, nothing should be invoked:\n%s", res.Code)
	}
}

func TestJSSupportsDynamicType(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "Box", Fields: []lowast.Field{{Name: "v", Type: types.Any{}}}},
		},
		Funcs: []lowast.Function{
			{
				Name:   "id",
				Params: []lowast.Param{{Name: "v", Type: types.Any{}}},
				Ret:    types.Any{},
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Return{Value: lowast.VarRef{Name: "v"}},
				}},
			},
		},
	}

	res := emitJS(t, mod)
	if !res.Ok() {
		t.Fatalf("the dynamic type must be supported here: %v", res.Errors)
	}
}

func TestJSStructLiteralUsesConstructor(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "make",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "p", Type: types.Named{Name: "Point"}, Value: lowast.StructLit{
						Name:   "Point",
						Fields: []lowast.FieldInit{{Name: "x", Value: lowast.IntLit{Value: 1}}},
					}},
				}},
			},
		},
	}

	res := emitJS(t, mod)
	if !strings.Contains(string(res.Code), "var p = new Point({x: 1});") {
		t.Errorf("construction should go through the constructor:\n%s", res.Code)
	}
}

func TestJSUninitializedArrayBindsEmpty(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "make",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "xs", Type: types.Array{Elem: types.Int{Bits: 64}, Len: 3}},
					lowast.Assign{
						Target: lowast.Index{Expr: lowast.VarRef{Name: "xs"}, Index: lowast.IntLit{Value: 0}},
						Value:  lowast.IntLit{Value: 7},
					},
				}},
			},
		},
	}

	res := emitJS(t, mod)
	code := string(res.Code)
	if !strings.Contains(code, "var xs = [];") {
		t.Errorf("array declaration should bind an empty array:\n%s", code)
	}
	if !strings.Contains(code, "xs[0] = 7;") {
		t.Errorf("indexed assignment missing:\n%s", code)
	}
}
