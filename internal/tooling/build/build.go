// Package build drives the compilation pipeline: lexing, parsing,
// fingerprinting, the verification passes, and bytecode lowering. The
// pipeline is strictly unidirectional; every stage reads its
// predecessor's output off the CompilationUnit and reports into the
// shared diagnostic sink.
package build

import (
	"fmt"
	"os"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/compiler/fingerprint"
	"github.com/covenant-lang/covenant/internal/compiler/typechecker"
	"github.com/covenant-lang/covenant/internal/compiler/verify"
)

// Diagnostic codes for the front-end stages, outside the verification
// taxonomy but using the same reporting machinery.
const (
	CodeLexical = "L001"
	CodeSyntax  = "P001"
)

// CompilationUnit threads the pipeline's shared state through the stages.
// There are no process-wide singletons: every pass receives this unit and
// the diagnostic sink it carries.
type CompilationUnit struct {
	File         string
	Source       string
	Tokens       []lexer.Token
	AST          *parser.File
	Fingerprints map[string]*fingerprint.Fingerprint
	IntentHashes map[string]string
	Diagnostics  *errors.Collector
	Module       *bytecode.Module
}

// Check runs the front end and all verification passes over a source
// string. The returned unit carries the AST, fingerprints, and every
// diagnostic; bytecode is not produced.
func Check(source, file string) *CompilationUnit {
	unit := &CompilationUnit{
		File:        file,
		Source:      source,
		Diagnostics: errors.NewCollector(),
	}

	// Lex.
	lex := lexer.New(source, file)
	tokens, lexErrors := lex.ScanTokens()
	unit.Tokens = tokens
	for _, e := range lexErrors {
		unit.Diagnostics.Add(errors.Diagnostic{
			Pass:     "lexer",
			Code:     CodeLexical,
			Severity: errors.Fatal,
			Message:  e.Message,
			Location: errors.SourceLocation{File: e.File, Line: e.Line, Column: e.Column},
		})
	}
	if len(lexErrors) > 0 {
		return unit
	}

	// Parse.
	p := parser.New(tokens)
	ast, parseErrors := p.Parse()
	unit.AST = ast
	for _, e := range parseErrors {
		unit.Diagnostics.Add(errors.Diagnostic{
			Pass:     "parser",
			Code:     CodeSyntax,
			Severity: errors.Fatal,
			Message:  e.Message,
			Location: e.Span.Location(),
		})
	}
	if len(parseErrors) > 0 {
		return unit
	}

	// Fingerprint every contract.
	unit.Fingerprints = map[string]*fingerprint.Fingerprint{}
	unit.IntentHashes = map[string]string{}
	for _, c := range ast.Contracts() {
		fp := fingerprint.Compute(c)
		unit.Fingerprints[c.Name] = fp
		unit.IntentHashes[c.Name] = fingerprint.IntentHash(ast.Intent, fp)
	}

	// Verification passes. They are independent and all consume the same
	// AST; the driver runs them in a fixed order for stable output.
	verify.Intent(ast, unit.Fingerprints, unit.Diagnostics)
	verify.Capability(ast, unit.Diagnostics)
	verify.Contract(ast, unit.Diagnostics)
	typechecker.NewChecker(ast, unit.Diagnostics).Check()

	return unit
}

// CheckFile reads and checks a source file
func CheckFile(path string) (*CompilationUnit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Check(string(source), path), nil
}

// Compile runs Check and, when no blocking diagnostics were reported,
// lowers the AST to bytecode. Warnings never block lowering.
func Compile(source, file string) (*CompilationUnit, error) {
	unit := Check(source, file)
	if unit.Diagnostics.HasErrors() {
		return unit, fmt.Errorf("%d error(s) reported; bytecode not produced", unit.Diagnostics.ErrorCount())
	}
	module, err := bytecode.Compile(unit.AST)
	if err != nil {
		return unit, err
	}
	unit.Module = module
	return unit, nil
}

// CompileFile reads, checks, and compiles a source file
func CompileFile(path string) (*CompilationUnit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Compile(string(source), path)
}
