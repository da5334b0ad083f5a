// Package gen holds the backend code emitters. Every backend is a pure
// consumer of the low-level tree: a single read-only traversal that
// produces one artifact. Emitters never re-lower and never mutate the
// tree; anything a target cannot express is recorded as an
// unsupported-construct error while emission of the rest continues.
package gen

import (
	"fmt"
	"path"
	"strings"

	"github.com/stibium-lang/stibium/layout"
	"github.com/stibium-lang/stibium/lowast"
)

type Target int

const (
	// TargetLLVM is the register-machine IR output.
	TargetLLVM Target = iota
	// TargetC is the C-like output.
	TargetC
	// TargetJS is the dynamic-scripting output. It has no addressable
	// aggregate memory; structs become the runtime's native objects
	// and the layout calculator is never consulted.
	TargetJS
	// TargetGo emits Go source. Like JS it leans on the host
	// runtime's value semantics and skips layout.
	TargetGo
)

func (t Target) String() string {
	switch t {
	case TargetLLVM:
		return "llvm"
	case TargetC:
		return "c"
	case TargetJS:
		return "js"
	case TargetGo:
		return "go"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

func TargetFromString(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "llvm":
		return TargetLLVM, nil
	case "c":
		return TargetC, nil
	case "js":
		return TargetJS, nil
	case "go":
		return TargetGo, nil
	}
	return 0, fmt.Errorf("no target named %q", s)
}

// TargetFromPath guesses a target from an output filename extension.
func TargetFromPath(p string) (Target, bool) {
	switch path.Ext(p) {
	case ".ll":
		return TargetLLVM, true
	case ".c":
		return TargetC, true
	case ".js":
		return TargetJS, true
	case ".go":
		return TargetGo, true
	}
	return 0, false
}

// Result is what one emission produces: the artifact so far plus every
// error met along the way. Callers must check Ok, not just whether
// Code is non-empty; a failed emission still carries the partial
// artifact for inspection.
type Result struct {
	Code   []byte
	Errors []error
}

func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

// Emitter is the single capability every backend implements. Selection
// happens outside the core, in the driver.
type Emitter interface {
	EmitModule(mod *lowast.Module) Result
}

// For returns the emitter for a target. Memory-addressable targets
// share the given layout calculator so all of them agree on one offset
// table per compilation.
func For(t Target, layouts *layout.Calculator) Emitter {
	switch t {
	case TargetLLVM:
		return NewLLVMEmitter(layouts)
	case TargetC:
		return NewCEmitter(layouts)
	case TargetJS:
		return NewJSEmitter()
	case TargetGo:
		return NewGoEmitter()
	}
	panic(fmt.Sprintf("no emitter for target %v", t))
}
