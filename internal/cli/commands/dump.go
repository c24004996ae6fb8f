package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/tooling/build"
)

// TokenizeCmd dumps the token stream of a source file
var TokenizeCmd = &cobra.Command{
	Use:   "tokenize FILE",
	Short: "Dump the token stream of a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		lex := lexer.New(string(source), args[0])
		tokens, lexErrors := lex.ScanTokens()
		for _, tok := range tokens {
			fmt.Fprintln(os.Stdout, tok.String())
		}
		if len(lexErrors) > 0 {
			cmd.SilenceUsage = true
			for _, e := range lexErrors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return fmt.Errorf("%d lexical error(s)", len(lexErrors))
		}
		return nil
	},
}

// ParseCmd dumps the AST of a source file
var ParseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Dump the abstract syntax tree of a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		lex := lexer.New(string(source), args[0])
		tokens, lexErrors := lex.ScanTokens()
		if len(lexErrors) > 0 {
			cmd.SilenceUsage = true
			for _, e := range lexErrors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return fmt.Errorf("%d lexical error(s)", len(lexErrors))
		}
		p := parser.New(tokens)
		ast, parseErrors := p.Parse()
		fmt.Fprint(os.Stdout, parser.DumpFile(ast))
		if len(parseErrors) > 0 {
			cmd.SilenceUsage = true
			for _, e := range parseErrors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return fmt.Errorf("%d syntax error(s)", len(parseErrors))
		}
		return nil
	},
}

// FingerprintCmd dumps each contract's behavioral fingerprint and intent hash
var FingerprintCmd = &cobra.Command{
	Use:   "fingerprint FILE",
	Short: "Dump behavioral fingerprints and intent hashes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := build.CheckFile(args[0])
		if err != nil {
			return err
		}
		if unit.AST == nil {
			cmd.SilenceUsage = true
			return fmt.Errorf("cannot fingerprint: source did not parse")
		}

		type entry struct {
			Contract     string   `json:"contract"`
			Reads        []string `json:"reads"`
			Mutates      []string `json:"mutates"`
			Calls        []string `json:"calls"`
			Emits        []string `json:"emits"`
			OldRefs      []string `json:"old_refs"`
			CapChecks    []string `json:"capability_checks"`
			HasBranching bool     `json:"has_branching"`
			HasLooping   bool     `json:"has_looping"`
			HasRecursion bool     `json:"has_recursion"`
			IntentHash   string   `json:"intent_hash"`
		}
		entries := make([]entry, 0, len(unit.Fingerprints))
		for name, fp := range unit.Fingerprints {
			entries = append(entries, entry{
				Contract:     name,
				Reads:        fp.Reads,
				Mutates:      fp.Mutates,
				Calls:        fp.Calls,
				Emits:        fp.Emits,
				OldRefs:      fp.OldRefs,
				CapChecks:    fp.CapChecks,
				HasBranching: fp.HasBranching,
				HasLooping:   fp.HasLooping,
				HasRecursion: fp.HasRecursion,
				IntentHash:   unit.IntentHashes[name],
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Contract < entries[j].Contract })

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

// DisasmCmd disassembles a bytecode module. Source files are compiled
// first; .covc files are read directly.
var DisasmCmd = &cobra.Command{
	Use:   "disasm FILE",
	Short: "Disassemble a bytecode module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var module *bytecode.Module
		if strings.HasSuffix(args[0], ".covc") {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			module, err = bytecode.Deserialize(f)
			if err != nil {
				return err
			}
		} else {
			unit, err := build.CompileFile(args[0])
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}
			module = unit.Module
		}
		fmt.Fprint(os.Stdout, bytecode.Disassemble(module))
		return nil
	},
}
