package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
	"github.com/covenant-lang/covenant/internal/compiler/fingerprint"
)

// checkSource runs the lexer, parser, fingerprinter, and all three
// verification passes, returning the diagnostic sink.
func checkSource(t *testing.T, source string) *errors.Collector {
	t.Helper()
	lex := lexer.New(source, "test.cov")
	tokens, lexErrors := lex.ScanTokens()
	require.Empty(t, lexErrors, "lex errors")

	p := parser.New(tokens)
	file, parseErrors := p.Parse()
	require.Empty(t, parseErrors, "parse errors")

	fps := map[string]*fingerprint.Fingerprint{}
	for _, c := range file.Contracts() {
		fps[c.Name] = fingerprint.Compute(c)
	}

	sink := errors.NewCollector()
	Intent(file, fps, sink)
	Capability(file, sink)
	Contract(file, sink)
	return sink
}

// findCode returns the first diagnostic with a code, or nil
func findCode(sink *errors.Collector, code string) *errors.Diagnostic {
	for _, d := range sink.All() {
		if d.Code == code {
			found := d
			return &found
		}
	}
	return nil
}
