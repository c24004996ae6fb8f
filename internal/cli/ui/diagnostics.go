// Package ui renders compiler output for terminals.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/covenant-lang/covenant/compiler/errors"
)

// RenderDiagnostics writes every collected diagnostic to w in the stable
// output format, colored by severity unless noColor is set. The suggested
// fix block keeps its sentinel delimiters so tooling can parse it.
func RenderDiagnostics(w io.Writer, collector *errors.Collector, noColor bool) {
	for _, d := range collector.All() {
		RenderDiagnostic(w, d, noColor)
	}
	if n := collector.ErrorCount(); n > 0 {
		header := color.New(color.FgRed, color.Bold)
		if noColor {
			header.DisableColor()
		}
		header.Fprintf(w, "%d error(s)\n", n)
	}
}

// RenderDiagnostic writes one diagnostic
func RenderDiagnostic(w io.Writer, d errors.Diagnostic, noColor bool) {
	var header *color.Color
	switch d.Severity {
	case errors.Error, errors.Fatal:
		header = color.New(color.FgRed, color.Bold)
	case errors.Warning:
		header = color.New(color.FgYellow, color.Bold)
	default:
		header = color.New(color.FgCyan)
	}
	if noColor {
		header.DisableColor()
	}

	header.Fprintf(w, "%s %s", d.Code, d.Severity)
	fmt.Fprintf(w, " %s:%d:%d: %s\n", d.Location.File, d.Location.Line, d.Location.Column, d.Message)

	if d.Suggestion != nil {
		dim := color.New(color.Faint)
		if noColor {
			dim.DisableColor()
		}
		dim.Fprintln(w, errors.FixBegin)
		fix := d.Suggestion.NewCode
		fmt.Fprint(w, fix)
		if !strings.HasSuffix(fix, "\n") {
			fmt.Fprintln(w)
		}
		dim.Fprintln(w, errors.FixEnd)
	}
}
