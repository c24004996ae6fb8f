package errors

import (
	"strings"
	"testing"
)

func TestDefaultSeverity(t *testing.T) {
	tests := []struct {
		code     string
		expected Severity
	}{
		{ErrUndeclaredMutation, Error},
		{WarnMissingSection, Warning},
		{InfoRecursion, Info},
		{ErrTaintedFlow, Error},
		{ErrMissingReturn, Error},
		{ErrOperandType, Error},
	}
	for _, tt := range tests {
		if got := DefaultSeverity(tt.code); got != tt.expected {
			t.Errorf("DefaultSeverity(%s) = %s, want %s", tt.code, got, tt.expected)
		}
	}
}

func TestPassForCode(t *testing.T) {
	tests := []struct {
		code string
		pass string
	}{
		{"E001", "intent"},
		{"W005", "intent"},
		{"I001", "intent"},
		{"F004", "capability"},
		{"V001", "contract"},
		{"T003", "types"},
	}
	for _, tt := range tests {
		if got := PassForCode(tt.code); got != tt.pass {
			t.Errorf("PassForCode(%s) = %s, want %s", tt.code, got, tt.pass)
		}
	}
}

func TestCollectorSortsBySourceOrder(t *testing.T) {
	c := NewCollector()
	c.Add(New(ErrMissingReturn, SourceLocation{File: "a.cov", Line: 9, Column: 1}))
	c.Add(New(ErrUndeclaredMutation, SourceLocation{File: "a.cov", Line: 2, Column: 5}))
	c.Add(New(WarnMissingSection, SourceLocation{File: "a.cov", Line: 2, Column: 1}))

	all := c.All()
	if all[0].Code != WarnMissingSection || all[1].Code != ErrUndeclaredMutation || all[2].Code != ErrMissingReturn {
		t.Errorf("Wrong order: %v, %v, %v", all[0].Code, all[1].Code, all[2].Code)
	}
}

func TestCollectorErrorCounting(t *testing.T) {
	c := NewCollector()
	c.Add(New(WarnMissingSection, SourceLocation{}))
	c.Add(New(InfoRecursion, SourceLocation{}))
	if c.HasErrors() {
		t.Error("Warnings and info must not count as errors")
	}
	c.Add(New(ErrUndeclaredMutation, SourceLocation{}))
	if !c.HasErrors() || c.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", c.ErrorCount())
	}
}

func TestEscalatedWarningBlocks(t *testing.T) {
	c := NewCollector()
	c.Add(New(WarnMissingSection, SourceLocation{}).WithSeverity(Error))
	if !c.HasErrors() {
		t.Error("An escalated warning must block compilation")
	}
}

func TestFormatWithSuggestedFix(t *testing.T) {
	d := New(WarnMissingSection, SourceLocation{File: "x.cov", Line: 3, Column: 1}).
		WithMessage("Contract has side effects but no effects section").
		WithSuggestion("Declare the effects", "effects:\n    modifies [db]")

	out := Format(d)
	if !strings.Contains(out, "W005 warning x.cov:3:1:") {
		t.Errorf("Missing header in %q", out)
	}
	if !strings.Contains(out, FixBegin) || !strings.Contains(out, FixEnd) {
		t.Error("Suggested fix must be delimited by sentinels")
	}
	if !strings.Contains(out, "effects:\n    modifies [db]") {
		t.Error("Fix text must appear verbatim")
	}
}

func TestDiagnosticErrorString(t *testing.T) {
	d := New(ErrUndeclaredMutation, SourceLocation{File: "a.cov", Line: 4, Column: 7})
	want := "a.cov:4:7: error [E001]: " + MessageFor(ErrUndeclaredMutation)
	if d.Error() != want {
		t.Errorf("Error() = %q, want %q", d.Error(), want)
	}
}
