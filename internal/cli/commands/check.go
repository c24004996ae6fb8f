// Package commands implements the covenant CLI verbs.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/covenant-lang/covenant/internal/cli/config"
	"github.com/covenant-lang/covenant/internal/cli/ui"
	"github.com/covenant-lang/covenant/internal/tooling/build"
)

var checkJSON bool

func init() {
	CheckCmd.Flags().BoolVar(&checkJSON, "json", false, "Output diagnostics in JSON format")
}

// CheckCmd runs every verification pass and reports diagnostics. The exit
// code is 0 when no errors were found; warnings do not fail the check.
var CheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Run the verification passes over a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		unit, err := build.CheckFile(args[0])
		if err != nil {
			return err
		}

		if checkJSON || cfg.Output.JSON {
			data, err := json.MarshalIndent(unit.Diagnostics, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
		} else {
			ui.RenderDiagnostics(os.Stdout, unit.Diagnostics, !cfg.Output.Color)
		}

		if unit.Diagnostics.HasErrors() {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return fmt.Errorf("check failed with %d error(s)", unit.Diagnostics.ErrorCount())
		}
		return nil
	},
}
