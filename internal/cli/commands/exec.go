package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/covenant-lang/covenant/internal/cli/config"
	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
)

var (
	execContract string
	execArgs     []string
	execTrace    bool
)

func init() {
	ExecCmd.Flags().StringVarP(&execContract, "contract", "c", "main", "Contract to invoke")
	ExecCmd.Flags().StringArrayVar(&execArgs, "arg", nil, "Argument as k=v (repeatable)")
	ExecCmd.Flags().BoolVar(&execTrace, "trace", false, "Log VM dispatch and invocations")
}

// ExecCmd runs a precompiled .covc bytecode module
var ExecCmd = &cobra.Command{
	Use:   "exec FILE.covc",
	Short: "Execute a precompiled bytecode module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		module, err := bytecode.Deserialize(f)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		return executeModule(module, cfg, execContract, execArgs, execTrace)
	},
}
