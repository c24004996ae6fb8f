package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/covenant-lang/covenant/internal/cli/config"
	"github.com/covenant-lang/covenant/internal/cli/ui"
	"github.com/covenant-lang/covenant/internal/tooling/build"
)

var buildOutput string

func init() {
	BuildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output path (default: source with .covc extension)")
}

// BuildCmd compiles a source file and writes a .covc bytecode module
var BuildCmd = &cobra.Command{
	Use:   "build FILE",
	Short: "Compile a source file to a .covc bytecode module",
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

		out := buildOutput
		if out == "" {
			out = strings.TrimSuffix(args[0], ".cov") + ".covc"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := unit.Module.Serialize(f); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", out)
		return nil
	},
}
