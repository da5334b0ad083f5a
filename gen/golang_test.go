package gen

import (
	"strings"
	"testing"

	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

func emitGo(t *testing.T, mod *lowast.Module) Result {
	t.Helper()
	return NewGoEmitter().EmitModule(mod)
}

func TestGoStructAndFunction(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "User", Fields: []lowast.Field{
				{Name: "age", Type: types.Int{Bits: 32}},
				{Name: "name", Type: types.Str{}},
			}},
		},
		Funcs: []lowast.Function{
			{
				Name:   "age_of",
				Params: []lowast.Param{{Name: "u", Type: types.Named{Name: "User"}}},
				Ret:    types.Int{Bits: 32},
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Return{Value: lowast.FieldAccess{Expr: lowast.VarRef{Name: "u"}, Field: "age"}},
				}},
			},
		},
	}

	res := emitGo(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	for _, want := range []string{
		"type User struct {",
		"age  int32",
		"name string",
		"func age_of(u User) int32 {",
		"return u.age",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}
}

func TestGoPrintGoesThroughFmt(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "main",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.ExprStmt{Expr: lowast.Call{Func: "print", Args: []lowast.Expression{lowast.StrLit{Value: "hi"}}}},
				}},
			},
		},
	}

	res := emitGo(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	if !strings.Contains(code, `"fmt"`) {
		t.Errorf("fmt import missing:\n%s", code)
	}
	if !strings.Contains(code, `fmt.Println("hi")`) {
		t.Errorf("print call not mapped:\n%s", code)
	}
}

func TestGoSupportsDynamicType(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Structs: []lowast.StructDef{
			{Name: "Box", Fields: []lowast.Field{{Name: "v", Type: types.Any{}}}},
		},
	}

	res := emitGo(t, mod)
	if !res.Ok() {
		t.Fatalf("the dynamic type must be supported here: %v", res.Errors)
	}
	if !strings.Contains(string(res.Code), "interface{}") {
		t.Errorf("dynamic field should be an empty interface:\n%s", res.Code)
	}
}

func TestGoSteppedLoop(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "count",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{Name: "i", Type: types.Int{Bits: 64}, Value: lowast.IntLit{Value: 0}},
					lowast.Loop{
						Condition: lowast.Binary{Op: types.LessThan, Left: lowast.VarRef{Name: "i"}, Right: lowast.IntLit{Value: 3}},
						Post: lowast.Assign{
							Target: lowast.VarRef{Name: "i"},
							Value:  lowast.Binary{Op: types.Addition, Left: lowast.VarRef{Name: "i"}, Right: lowast.IntLit{Value: 1}},
						},
						Body: lowast.Block{Statements: []lowast.Statement{lowast.Continue{}}},
					},
				}},
			},
		},
	}

	res := emitGo(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}

	code := string(res.Code)
	if !strings.Contains(code, "for ; (i < 3); i = (i + 1) {") {
		t.Errorf("stepped loop should keep its post in the header:\n%s", code)
	}
}

func TestGoArrayLiteralTakesDeclaredType(t *testing.T) {
	mod := &lowast.Module{
		Name: "test",
		Funcs: []lowast.Function{
			{
				Name: "make",
				Body: lowast.Block{Statements: []lowast.Statement{
					lowast.Declare{
						Name: "xs",
						Type: types.Array{Elem: types.Int{Bits: 64}, Len: 3},
						Value: lowast.ArrayLit{Capacity: 3, Elems: []lowast.Expression{
							lowast.IntLit{Value: 1},
							lowast.IntLit{Value: 2},
							lowast.IntLit{Value: 3},
						}},
					},
				}},
			},
		},
	}

	res := emitGo(t, mod)
	if !res.Ok() {
		t.Fatalf("emission failed: %v", res.Errors)
	}
	if !strings.Contains(string(res.Code), "[3]int64{1, 2, 3}") {
		t.Errorf("array literal should carry the declared type:\n%s", res.Code)
	}
}

func TestTargetSelection(t *testing.T) {
	cases := []struct {
		in   string
		want Target
	}{
		{"llvm", TargetLLVM},
		{"c", TargetC},
		{"js", TargetJS},
		{"go", TargetGo},
		{"LLVM", TargetLLVM},
	}
	for _, tc := range cases {
		got, err := TargetFromString(tc.in)
		if err != nil {
			t.Errorf("TargetFromString(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("TargetFromString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := TargetFromString("cobol"); err == nil {
		t.Error("unknown target name should error")
	}

	pathCases := []struct {
		in   string
		want Target
	}{
		{"out.ll", TargetLLVM},
		{"out.c", TargetC},
		{"dist/out.js", TargetJS},
		{"out.go", TargetGo},
	}
	for _, tc := range pathCases {
		got, ok := TargetFromPath(tc.in)
		if !ok || got != tc.want {
			t.Errorf("TargetFromPath(%q) = %v, %v; want %v", tc.in, got, ok, tc.want)
		}
	}
	if _, ok := TargetFromPath("out.wasm"); ok {
		t.Error("unknown extension should not resolve")
	}
}
