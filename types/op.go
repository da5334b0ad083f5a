package types

// BinOp is the binary operator vocabulary. It is shared by the
// high-level and low-level trees: lowering never changes an operator,
// so there is exactly one definition.
type BinOp int

const (
	Addition BinOp = iota
	Subtraction
	Multiplication
	Division
	Modulus

	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Equal
	NotEqual

	And
	Or

	AddAssign
	SubtractAssign
	MultiplyAssign
	DivideAssign
)

func (o BinOp) String() string {
	data := map[BinOp]string{
		Addition:           "+",
		Subtraction:        "-",
		Multiplication:     "*",
		Division:           "/",
		Modulus:            "%",
		LessThan:           "<",
		LessThanOrEqual:    "<=",
		GreaterThan:        ">",
		GreaterThanOrEqual: ">=",
		Equal:              "==",
		NotEqual:           "!=",
		And:                "&&",
		Or:                 "||",
		AddAssign:          "+=",
		SubtractAssign:     "-=",
		MultiplyAssign:     "*=",
		DivideAssign:       "/=",
	}
	return data[o]
}

// Comparison reports whether the operator yields a boolean.
func (o BinOp) Comparison() bool {
	switch o {
	case LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual, Equal, NotEqual, And, Or:
		return true
	}
	return false
}

type UnaryOp int

const (
	Negate UnaryOp = iota
	Not
)

func (o UnaryOp) String() string {
	if o == Negate {
		return "-"
	}
	return "!"
}
