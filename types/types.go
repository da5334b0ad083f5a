package types

import (
	"fmt"
)

type Position struct {
	Line     int
	Column   int
	Filename string
}

type Span struct {
	From Position
	To   Position
}

func (p Position) String() string {
	if p.Filename == "" {
		p.Filename = "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%d:%d", s.From, s.To.Line, s.To.Column)
}

func SingleCharSpan(p Position) Span {
	return Span{p, p}
}

// Type is the language type vocabulary as annotated by the upstream
// checker. The set is closed; backends and the layout calculator switch
// over it exhaustively.
type Type interface {
	is_Type()
	String() string
}

// Int is a signed integer of the given width. Plain `int` in source is
// 64 bits wide by the time it reaches this core.
type Int struct {
	Bits int
}

func (v Int) is_Type() {}

func (v Int) String() string {
	return fmt.Sprintf("int%d", v.Bits)
}

type Bool struct{}

func (v Bool) is_Type() {}

func (v Bool) String() string {
	return "bool"
}

type Str struct{}

func (v Str) is_Type() {}

func (v Str) String() string {
	return "string"
}

// Any is the dynamic top type. Not every backend can represent it.
type Any struct{}

func (v Any) is_Type() {}

func (v Any) String() string {
	return "any"
}

// Array is a fixed-capacity sequence.
type Array struct {
	Elem Type
	Len  int
}

func (v Array) is_Type() {}

func (v Array) String() string {
	return fmt.Sprintf("%s[%d]", v.Elem, v.Len)
}

// Named refers to an aggregate type declared in the module.
type Named struct {
	Name string
}

func (v Named) is_Type() {}

func (v Named) String() string {
	return v.Name
}
