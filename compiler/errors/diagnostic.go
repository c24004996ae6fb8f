package errors

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Start  int    `json:"start"` // Rune offset (not byte offset), inclusive
	End    int    `json:"end"`   // Rune offset (not byte offset), exclusive
}

// FixSuggestion carries the exact text a user can paste to resolve a diagnostic
type FixSuggestion struct {
	Description string `json:"description"`
	NewCode     string `json:"new_code"`
}

// Diagnostic represents a single finding from a verification pass
type Diagnostic struct {
	Pass       string         `json:"pass"` // "intent", "capability", "contract", "types", "lexer", "parser"
	Code       string         `json:"code"` // "E001", "F004", etc.
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Location   SourceLocation `json:"location"`
	Suggestion *FixSuggestion `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s [%s]: %s",
		d.Location.File, d.Location.Line, d.Location.Column,
		d.Severity, d.Code, d.Message)
}

// New creates a Diagnostic for a code with its default message and severity
func New(code string, loc SourceLocation) Diagnostic {
	return Diagnostic{
		Pass:     PassForCode(code),
		Code:     code,
		Severity: DefaultSeverity(code),
		Message:  MessageFor(code),
		Location: loc,
	}
}

// WithMessage overrides the default message
func (d Diagnostic) WithMessage(format string, args ...interface{}) Diagnostic {
	d.Message = fmt.Sprintf(format, args...)
	return d
}

// WithSeverity overrides the default severity. Used for risk-level escalation.
func (d Diagnostic) WithSeverity(s Severity) Diagnostic {
	d.Severity = s
	return d
}

// WithSuggestion attaches a fix suggestion
func (d Diagnostic) WithSuggestion(description, newCode string) Diagnostic {
	d.Suggestion = &FixSuggestion{Description: description, NewCode: newCode}
	return d
}

// IsError reports whether the diagnostic blocks compilation
func (d Diagnostic) IsError() bool {
	return d.Severity == Error || d.Severity == Fatal
}

// Collector is the shared diagnostic sink passed to every verification pass
type Collector struct {
	diagnostics []Diagnostic
}

// NewCollector creates an empty diagnostic sink
func NewCollector() *Collector {
	return &Collector{diagnostics: make([]Diagnostic, 0)}
}

// Add appends a diagnostic to the sink
func (c *Collector) Add(d Diagnostic) {
	c.diagnostics = append(c.diagnostics, d)
}

// All returns every collected diagnostic in source order
func (c *Collector) All() []Diagnostic {
	sorted := make([]Diagnostic, len(c.diagnostics))
	copy(sorted, c.diagnostics)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Location, sorted[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return sorted[i].Code < sorted[j].Code
	})
	return sorted
}

// HasErrors reports whether any collected diagnostic blocks compilation
func (c *Collector) HasErrors() bool {
	for _, d := range c.diagnostics {
		if d.IsError() {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of blocking diagnostics
func (c *Collector) ErrorCount() int {
	n := 0
	for _, d := range c.diagnostics {
		if d.IsError() {
			n++
		}
	}
	return n
}

// Len returns the total number of collected diagnostics
func (c *Collector) Len() int {
	return len(c.diagnostics)
}

// MarshalJSON renders the sink as a JSON array for tooling
func (c *Collector) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.All())
}
