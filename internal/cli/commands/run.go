package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covenant-lang/covenant/internal/cli/config"
	"github.com/covenant-lang/covenant/internal/cli/ui"
	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/tooling/build"
	"github.com/covenant-lang/covenant/internal/vm"
	"github.com/covenant-lang/covenant/internal/vm/host"
)

var (
	runContract string
	runArgs     []string
	runTrace    bool
)

func init() {
	RunCmd.Flags().StringVarP(&runContract, "contract", "c", "main", "Contract to invoke")
	RunCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "Argument as k=v (repeatable)")
	RunCmd.Flags().BoolVar(&runTrace, "trace", false, "Log VM dispatch and invocations")
}

// RunCmd compiles a source file in memory and executes one contract
var RunCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Compile and execute a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		unit, err := build.CompileFile(args[0])
		if err != nil {
			if unit != nil {
				ui.RenderDiagnostics(os.Stderr, unit.Diagnostics, !cfg.Output.Color)
			}
			cmd.SilenceUsage = true
			return err
		}
		ui.RenderDiagnostics(os.Stderr, unit.Diagnostics, !cfg.Output.Color)

		cmd.SilenceUsage = true
		return executeModule(unit.Module, cfg, runContract, runArgs, runTrace)
	},
}

// executeModule builds a VM with the bundled host modules and invokes a
// contract, printing its result when one is produced.
func executeModule(module *bytecode.Module, cfg *config.Config, contract string, rawArgs []string, trace bool) error {
	kwargs, err := ParseArgs(rawArgs)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if trace {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	machine := vm.New(module)
	machine.SetLogger(logger)
	machine.SetLimits(vm.Limits{
		CallDepth:      cfg.Limits.CallDepth,
		LoopIterations: cfg.Limits.LoopIterations,
		RangeLength:    cfg.Limits.RangeLength,
	})
	host.RegisterAll(machine, logger)

	result, rerr := machine.Invoke(contract, nil, kwargs)
	if rerr != nil {
		return fmt.Errorf("runtime error: %s", rerr.Error())
	}
	if result.Kind != vm.KindNull {
		fmt.Fprintln(os.Stdout, result.String())
	}
	return nil
}
