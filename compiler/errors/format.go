package errors

import (
	"fmt"
	"strings"
)

// Sentinels delimiting multi-line suggested fixes in terminal output.
// Tooling depends on these staying stable across releases.
const (
	FixBegin = "--- suggested fix ---"
	FixEnd   = "--- end fix ---"
)

// Format renders a diagnostic in the stable plain-text output format:
// code, severity, file:line:column, message, and an optional suggested
// fix block delimited by sentinels.
func Format(d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s:%d:%d: %s\n",
		d.Code, d.Severity, d.Location.File, d.Location.Line, d.Location.Column, d.Message)
	if d.Suggestion != nil {
		b.WriteString(FixBegin)
		b.WriteByte('\n')
		b.WriteString(d.Suggestion.NewCode)
		if !strings.HasSuffix(d.Suggestion.NewCode, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(FixEnd)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatAll renders every diagnostic in the collector in source order
func FormatAll(c *Collector) string {
	var b strings.Builder
	for _, d := range c.All() {
		b.WriteString(Format(d))
	}
	return b.String()
}
