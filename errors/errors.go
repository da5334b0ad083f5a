// Package errors defines the typed error taxonomy of the compiler
// core. There are three classes: internal compiler errors and malformed
// input abort a compilation outright; unsupported-construct errors are
// accumulated per backend while emission continues.
package errors

import (
	"fmt"

	"github.com/stibium-lang/stibium/types"
)

// Internal is an internal-compiler-error: a construct reached a stage
// that cannot express it. Valid, fully-annotated input never triggers
// it; seeing one means an upstream feature has no matching rule here,
// or the tree is corrupt.
type Internal struct {
	Msg      string
	Location types.Span
}

func (e Internal) Error() string {
	return fmt.Sprintf("internal compiler error: %s. %s", e.Msg, e.Location)
}

func Internalf(loc types.Span, format string, args ...interface{}) Internal {
	return Internal{Msg: fmt.Sprintf(format, args...), Location: loc}
}

// Unsupported reports a construct a specific backend cannot emit. It is
// recoverable: the emitter records it and keeps traversing.
type Unsupported struct {
	Construct string
	Target    string
	Location  types.Span
}

func (e Unsupported) Error() string {
	return fmt.Sprintf("the %s target does not support %s. %s", e.Target, e.Construct, e.Location)
}

// MalformedInput means the high-level tree violates the input contract
// (for example an unknown node kind in the interchange form). It points
// at an upstream defect and is never silently patched over.
type MalformedInput struct {
	Msg      string
	Location types.Span
}

func (e MalformedInput) Error() string {
	return fmt.Sprintf("malformed input: %s. %s", e.Msg, e.Location)
}

func Malformedf(loc types.Span, format string, args ...interface{}) MalformedInput {
	return MalformedInput{Msg: fmt.Sprintf(format, args...), Location: loc}
}

// RecursiveStruct is raised by the layout calculator when an aggregate
// contains itself directly or through other aggregates; its size would
// be unbounded. Fatal.
type RecursiveStruct struct {
	Name  string
	Cycle []string
}

func (e RecursiveStruct) Error() string {
	path := ""
	for _, name := range e.Cycle {
		path += name + " -> "
	}
	return fmt.Sprintf("struct %s has unbounded size: %s%s", e.Name, path, e.Name)
}

// UnknownStruct is raised when a layout or emission step refers to an
// aggregate the module never declares. Malformed-input class.
type UnknownStruct struct {
	Name     string
	Location types.Span
}

func (e UnknownStruct) Error() string {
	return fmt.Sprintf("malformed input: no struct named %s is declared. %s", e.Name, e.Location)
}
