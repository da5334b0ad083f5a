// Package layout computes concrete memory layouts for aggregate types:
// per-field byte offsets, alignment and padded total size. Backends
// that address memory ask this package instead of computing their own
// numbers, so every emitted field access in one compilation agrees
// with a single offset table.
package layout

import (
	"fmt"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/types"
)

// Field is one laid-out struct field.
type Field struct {
	Name   string
	Type   types.Type
	Offset int
	Size   int
	Align  int
}

// Record is the layout of one aggregate: fields in declaration order,
// total size padded to the aggregate's own alignment.
type Record struct {
	Name   string
	Fields []Field
	Size   int
	Align  int
}

// FieldIndex returns the declaration index of the named field, or -1.
func (r *Record) FieldIndex(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// NoStaticLayout marks a type whose size cannot be decided at compile
// time. A memory-addressable backend turns it into an
// unsupported-construct error for its target.
type NoStaticLayout struct {
	Type types.Type
}

func (e NoStaticLayout) Error() string {
	return fmt.Sprintf("type %s has no static memory layout", e.Type)
}

// Calculator answers layout queries for one compilation. Results are
// memoized for its lifetime and must not be reused across compilations:
// a fresh module may redefine a same-named type differently.
type Calculator struct {
	structs map[string]lowast.StructDef
	memo    map[string]*Record
	walking []string
}

func NewCalculator(mod *lowast.Module) *Calculator {
	structs := make(map[string]lowast.StructDef, len(mod.Structs))
	for _, st := range mod.Structs {
		structs[st.Name] = st
	}
	return &Calculator{
		structs: structs,
		memo:    make(map[string]*Record),
	}
}

// Of returns the layout of the named aggregate, computing it on first
// request. Fields keep declaration order; reordering would change the
// language's introspection semantics, so it never happens here even
// when it would shrink padding.
func (c *Calculator) Of(name string) (*Record, error) {
	if rec, ok := c.memo[name]; ok {
		return rec, nil
	}

	st, ok := c.structs[name]
	if !ok {
		return nil, errors.UnknownStruct{Name: name}
	}

	for _, seen := range c.walking {
		if seen == name {
			return nil, errors.RecursiveStruct{Name: name, Cycle: c.walking}
		}
	}
	c.walking = append(c.walking, name)
	defer func() { c.walking = c.walking[:len(c.walking)-1] }()

	rec := &Record{Name: name, Align: 1}
	offset := 0
	for _, f := range st.Fields {
		size, align, err := c.SizeAlign(f.Type)
		if err != nil {
			return nil, err
		}
		offset = roundUp(offset, align)
		rec.Fields = append(rec.Fields, Field{
			Name:   f.Name,
			Type:   f.Type,
			Offset: offset,
			Size:   size,
			Align:  align,
		})
		offset += size
		if align > rec.Align {
			rec.Align = align
		}
	}
	rec.Size = roundUp(offset, rec.Align)

	c.memo[name] = rec
	return rec, nil
}

// SizeAlign returns the size and alignment of any type with a static
// layout. Strings are a pointer into the target's string storage.
func (c *Calculator) SizeAlign(t types.Type) (int, int, error) {
	switch ty := t.(type) {
	case types.Int:
		return ty.Bits / 8, ty.Bits / 8, nil
	case types.Bool:
		return 1, 1, nil
	case types.Str:
		return 8, 8, nil
	case types.Array:
		size, align, err := c.SizeAlign(ty.Elem)
		if err != nil {
			return 0, 0, err
		}
		return roundUp(size, align) * ty.Len, align, nil
	case types.Named:
		rec, err := c.Of(ty.Name)
		if err != nil {
			return 0, 0, err
		}
		return rec.Size, rec.Align, nil
	default:
		return 0, 0, NoStaticLayout{Type: t}
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if rem := n % align; rem != 0 {
		return n + align - rem
	}
	return n
}
