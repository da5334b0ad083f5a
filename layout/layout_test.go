package layout

import (
	"testing"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

func calc(structs ...lowast.StructDef) *Calculator {
	return NewCalculator(&lowast.Module{Name: "test", Structs: structs})
}

func field(name string, t types.Type) lowast.Field {
	return lowast.Field{Name: name, Type: t}
}

func TestPaddingBetweenFields(t *testing.T) {
	c := calc(lowast.StructDef{
		Name: "Mixed",
		Fields: []lowast.Field{
			field("a", types.Int{Bits: 8}),
			field("b", types.Int{Bits: 32}),
			field("c", types.Int{Bits: 8}),
		},
	})

	rec, err := c.Of("Mixed")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	offsets := []int{0, 4, 8}
	for i, want := range offsets {
		if rec.Fields[i].Offset != want {
			t.Errorf("field %s at offset %d, want %d", rec.Fields[i].Name, rec.Fields[i].Offset, want)
		}
	}
	if rec.Size != 12 {
		t.Errorf("size %d, want 12 (tail padded to alignment)", rec.Size)
	}
	if rec.Align != 4 {
		t.Errorf("align %d, want 4", rec.Align)
	}
}

func TestFieldsKeepDeclarationOrder(t *testing.T) {
	c := calc(lowast.StructDef{
		Name: "NotReordered",
		Fields: []lowast.Field{
			field("small", types.Int{Bits: 8}),
			field("big", types.Int{Bits: 64}),
			field("tiny", types.Bool{}),
		},
	})

	rec, err := c.Of("NotReordered")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	names := []string{"small", "big", "tiny"}
	for i, want := range names {
		if rec.Fields[i].Name != want {
			t.Fatalf("field %d is %s, want %s: fields were reordered", i, rec.Fields[i].Name, want)
		}
	}
	// Reordering would shrink this to 16; declaration order costs 24.
	if rec.Size != 24 {
		t.Errorf("size %d, want 24", rec.Size)
	}
}

func TestSameInputSameLayout(t *testing.T) {
	def := lowast.StructDef{
		Name: "Stable",
		Fields: []lowast.Field{
			field("x", types.Int{Bits: 16}),
			field("y", types.Bool{}),
			field("z", types.Int{Bits: 64}),
		},
	}

	a, err := calc(def).Of("Stable")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	b, err := calc(def).Of("Stable")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	if a.Size != b.Size || a.Align != b.Align {
		t.Fatalf("two calculators disagree: %d/%d vs %d/%d", a.Size, a.Align, b.Size, b.Align)
	}
	for i := range a.Fields {
		if a.Fields[i].Offset != b.Fields[i].Offset {
			t.Fatalf("field %s offset differs between runs", a.Fields[i].Name)
		}
	}
}

func TestNestedAggregate(t *testing.T) {
	c := calc(
		lowast.StructDef{
			Name: "Inner",
			Fields: []lowast.Field{
				field("a", types.Int{Bits: 32}),
				field("b", types.Int{Bits: 8}),
			},
		},
		lowast.StructDef{
			Name: "Outer",
			Fields: []lowast.Field{
				field("flag", types.Bool{}),
				field("in", types.Named{Name: "Inner"}),
			},
		},
	)

	rec, err := c.Of("Outer")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	// Inner is size 8 align 4, so it lands at offset 4 after the bool.
	if rec.Fields[1].Offset != 4 {
		t.Errorf("nested struct at offset %d, want 4", rec.Fields[1].Offset)
	}
	if rec.Size != 12 {
		t.Errorf("size %d, want 12", rec.Size)
	}
	if rec.Align != 4 {
		t.Errorf("align %d, want 4: aggregate alignment must propagate", rec.Align)
	}
}

func TestArrayStride(t *testing.T) {
	c := calc(lowast.StructDef{
		Name: "Holder",
		Fields: []lowast.Field{
			field("xs", types.Array{Elem: types.Int{Bits: 32}, Len: 5}),
			field("tail", types.Int{Bits: 8}),
		},
	})

	rec, err := c.Of("Holder")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	if rec.Fields[0].Size != 20 {
		t.Errorf("array size %d, want 20", rec.Fields[0].Size)
	}
	if rec.Fields[0].Align != 4 {
		t.Errorf("array align %d, want the element's 4", rec.Fields[0].Align)
	}
	if rec.Fields[1].Offset != 20 {
		t.Errorf("tail at offset %d, want 20", rec.Fields[1].Offset)
	}
}

func TestArrayOfAggregatesUsesPaddedStride(t *testing.T) {
	c := calc(
		lowast.StructDef{
			Name: "Elem",
			Fields: []lowast.Field{
				field("a", types.Int{Bits: 32}),
				field("b", types.Int{Bits: 8}),
			},
		},
		lowast.StructDef{
			Name: "Arr",
			Fields: []lowast.Field{
				field("xs", types.Array{Elem: types.Named{Name: "Elem"}, Len: 3}),
			},
		},
	)

	rec, err := c.Of("Arr")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	// Elem pads to 8; three of them stride to 24.
	if rec.Size != 24 {
		t.Errorf("size %d, want 24", rec.Size)
	}
}

func TestRecursiveStructIsAnError(t *testing.T) {
	c := calc(
		lowast.StructDef{
			Name: "Node",
			Fields: []lowast.Field{
				field("next", types.Named{Name: "Node"}),
			},
		},
	)

	_, err := c.Of("Node")
	if err == nil {
		t.Fatal("expected an error for a self-containing struct")
	}
	if _, ok := err.(errors.RecursiveStruct); !ok {
		t.Fatalf("expected a recursive struct error, got %T: %v", err, err)
	}
}

func TestMutuallyRecursiveStructsAreAnError(t *testing.T) {
	c := calc(
		lowast.StructDef{Name: "A", Fields: []lowast.Field{field("b", types.Named{Name: "B"})}},
		lowast.StructDef{Name: "B", Fields: []lowast.Field{field("a", types.Named{Name: "A"})}},
	)

	_, err := c.Of("A")
	if err == nil {
		t.Fatal("expected an error for mutually recursive structs")
	}
	if _, ok := err.(errors.RecursiveStruct); !ok {
		t.Fatalf("expected a recursive struct error, got %T: %v", err, err)
	}
}

func TestUnknownStruct(t *testing.T) {
	c := calc()
	_, err := c.Of("Ghost")
	if err == nil {
		t.Fatal("expected an error for an undeclared struct")
	}
	if _, ok := err.(errors.UnknownStruct); !ok {
		t.Fatalf("expected an unknown struct error, got %T: %v", err, err)
	}
}

func TestDynamicTypeHasNoLayout(t *testing.T) {
	c := calc(lowast.StructDef{
		Name:   "Box",
		Fields: []lowast.Field{field("v", types.Any{})},
	})

	_, err := c.Of("Box")
	if err == nil {
		t.Fatal("expected an error for a dynamically typed field")
	}
	if _, ok := err.(NoStaticLayout); !ok {
		t.Fatalf("expected a no-static-layout error, got %T: %v", err, err)
	}
}

func TestMemoization(t *testing.T) {
	c := calc(lowast.StructDef{
		Name:   "Once",
		Fields: []lowast.Field{field("x", types.Int{Bits: 64})},
	})

	a, _ := c.Of("Once")
	b, _ := c.Of("Once")
	if a != b {
		t.Fatal("repeated queries must return the memoized record")
	}
}
