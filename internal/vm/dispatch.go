package vm

import (
	"fmt"

	"github.com/covenant-lang/covenant/compiler/errors"
)

// Runtime error codes
const (
	ErrPreconditionFailed  = "precondition-failed"
	ErrPostconditionFailed = "postcondition-failed"
	ErrDivisionByZero      = "division-by-zero"
	ErrIntegerOverflow     = "integer-overflow"
	ErrCallDepthExceeded   = "call-depth-exceeded"
	ErrLoopLimitExceeded   = "loop-limit-exceeded"
	ErrMissingArgument     = "missing-argument"
	ErrTypeError           = "type-error"
	ErrHostModule          = "host-module-error"
)

// RuntimeError is raised during VM execution. It carries the source span
// of the offending AST node via the compiler's source map.
type RuntimeError struct {
	Code     string
	Message  string
	Location errors.SourceLocation
}

// Error implements the error interface
func (e *RuntimeError) Error() string {
	if e.Location.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Location.File, e.Location.Line, e.Location.Column, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HostModule is the module dispatch contract: given a method name,
// positional arguments, and keyword arguments, produce a value or an
// error. Host modules are pure functions from the VM's perspective; any
// native state they manage is reified as a HostHandle.
type HostModule interface {
	Name() string
	Call(method string, args []Value, kwargs map[string]Value) (Value, error)
}

// ModuleError is a structured error a host module can return to surface a
// stable error detail; other errors are wrapped verbatim.
type ModuleError struct {
	Module string
	Method string
	Detail string
}

// Error implements the error interface
func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Method, e.Detail)
}
