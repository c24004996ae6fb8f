// Package host provides the reference host modules bundled with the VM:
// math, text, and time. They exist to exercise the module dispatch
// contract and carry the caps the core mandates; the full standard
// library lives outside the core.
package host

import (
	"go.uber.org/zap"

	"github.com/covenant-lang/covenant/internal/vm"
)

// RegisterAll installs every bundled host module on a VM
func RegisterAll(machine *vm.VM, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	machine.RegisterModule(NewMathModule())
	machine.RegisterModule(NewTextModule())
	machine.RegisterModule(NewTimeModule(logger))
}
