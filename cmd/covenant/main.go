package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/covenant-lang/covenant/internal/cli/commands"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "covenant",
		Short: "Covenant programming language toolchain",
		Long: `Covenant is a contract-oriented programming language: every contract
carries a machine-checkable specification, and the toolchain refuses to
run code whose observable behavior disagrees with its declarations.`,
	}

	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.BuildCmd)
	rootCmd.AddCommand(commands.ExecCmd)
	rootCmd.AddCommand(commands.ParseCmd)
	rootCmd.AddCommand(commands.TokenizeCmd)
	rootCmd.AddCommand(commands.DisasmCmd)
	rootCmd.AddCommand(commands.FingerprintCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("covenant %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	},
}
