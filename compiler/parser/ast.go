package parser

import (
	"strings"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/lexer"
)

// Span represents a region of source code. Every AST node carries one.
type Span struct {
	File   string
	Line   int
	Column int
	Start  int // Rune offset (not byte offset), inclusive
	End    int // Rune offset (not byte offset), exclusive
}

// TokenSpan converts a token to a Span
func TokenSpan(token lexer.Token) Span {
	return Span{
		File:   token.File,
		Line:   token.Line,
		Column: token.Column,
		Start:  token.Start,
		End:    token.End,
	}
}

// Merge extends a span to cover another span
func (s Span) Merge(other Span) Span {
	merged := s
	if other.Start < merged.Start {
		merged.Start = other.Start
		merged.Line = other.Line
		merged.Column = other.Column
	}
	if other.End > merged.End {
		merged.End = other.End
	}
	return merged
}

// Location converts a span to a diagnostic source location
func (s Span) Location() errors.SourceLocation {
	return errors.SourceLocation{
		File:   s.File,
		Line:   s.Line,
		Column: s.Column,
		Start:  s.Start,
		End:    s.End,
	}
}

// Risk levels
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// ValidRisk reports whether a string names a risk level
func ValidRisk(risk string) bool {
	switch risk {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// NameRef is a (possibly dotted) name with the span where it was written
type NameRef struct {
	Name string
	Span Span
}

// UseDecl is a module import: `use http as web`
type UseDecl struct {
	Module string
	Alias  string // empty when no alias
	Span   Span
}

// File is the root node of the AST: the mandatory header plus declarations
type File struct {
	Intent     string
	IntentSpan Span
	Scope      string
	ScopeSpan  Span
	Risk       string
	RiskSpan   Span
	Requires   []NameRef
	Uses       []*UseDecl
	Decls      []DeclNode
	Span       Span
}

// HighRisk reports whether the file's risk level escalates missing-section
// warnings to errors.
func (f *File) HighRisk() bool {
	return f.Risk == RiskHigh || f.Risk == RiskCritical
}

// Contracts returns the contract declarations in declaration order
func (f *File) Contracts() []*ContractDecl {
	var out []*ContractDecl
	for _, d := range f.Decls {
		if c, ok := d.(*ContractDecl); ok {
			out = append(out, c)
		}
	}
	return out
}

// SharedDecls returns the shared state declarations in declaration order
func (f *File) SharedDecls() []*SharedDecl {
	var out []*SharedDecl
	for _, d := range f.Decls {
		if s, ok := d.(*SharedDecl); ok {
			out = append(out, s)
		}
	}
	return out
}

// TypeDecls returns the nominal type declarations in declaration order
func (f *File) TypeDecls() []*TypeDecl {
	var out []*TypeDecl
	for _, d := range f.Decls {
		if t, ok := d.(*TypeDecl); ok {
			out = append(out, t)
		}
	}
	return out
}

// DeclNode is the interface for all top-level declaration nodes
type DeclNode interface {
	declNode()
	GetSpan() Span
}

// Param is a contract parameter
type Param struct {
	Name string
	Type *TypeNode // nil when unannotated (gradual typing: Any)
	Span Span
}

// ContractDecl represents a contract declaration with its section set
type ContractDecl struct {
	Name       string
	Params     []*Param
	ReturnType *TypeNode // nil when no return type declared
	Async      bool
	Pure       bool

	// ExprBody is non-nil for `contract f(x) = expr` forms
	ExprBody ExprNode

	Pre     ExprNode
	PreSpan Span

	Post     ExprNode
	PostSpan Span

	Effects     *EffectsNode
	Permissions *PermissionsNode

	HasBody  bool
	Body     []StmtNode
	BodySpan Span

	HasOnFailure  bool
	OnFailure     []StmtNode
	OnFailureSpan Span

	Span Span
}

func (c *ContractDecl) declNode()     {}
func (c *ContractDecl) GetSpan() Span { return c.Span }

// IsExpressionBody reports whether the contract body is a single expression
func (c *ContractDecl) IsExpressionBody() bool {
	return c.ExprBody != nil
}

// EffectsNode is a contract's declared side effects
type EffectsNode struct {
	Modifies           []NameRef
	Reads              []NameRef
	Emits              []NameRef
	TouchesNothingElse bool
	Span               Span
}

// DeclaresModify reports whether a mutated name is covered by the modifies
// list. A declared name covers itself and any dotted extension of it, so
// declaring `db` covers a write to `db.users`.
func (e *EffectsNode) DeclaresModify(name string) bool {
	for _, ref := range e.Modifies {
		if ref.Name == name || strings.HasPrefix(name, ref.Name+".") {
			return true
		}
	}
	return false
}

// DeclaresEmit reports whether an event name is in the emits list
func (e *EffectsNode) DeclaresEmit(event string) bool {
	for _, ref := range e.Emits {
		if ref.Name == event {
			return true
		}
	}
	return false
}

// DeclaresRead reports whether a name is covered by the reads list
func (e *EffectsNode) DeclaresRead(name string) bool {
	for _, ref := range e.Reads {
		if ref.Name == name || strings.HasPrefix(name, ref.Name+".") {
			return true
		}
	}
	return false
}

// PermissionsNode is a contract's capability grants and denials
type PermissionsNode struct {
	Grants     []NameRef
	Denies     []NameRef
	Escalation string // policy name, empty when unspecified
	Span       Span
}

// Grants and Denies lookup helpers. A dotted capability is covered by a
// declared prefix: denying `file` denies `file.write`.
func capabilityCovered(refs []NameRef, name string) bool {
	for _, ref := range refs {
		if ref.Name == name || strings.HasPrefix(name, ref.Name+".") {
			return true
		}
	}
	return false
}

// GrantsCapability reports whether a capability is granted
func (p *PermissionsNode) GrantsCapability(name string) bool {
	return capabilityCovered(p.Grants, name)
}

// DeniesCapability reports whether a capability is denied
func (p *PermissionsNode) DeniesCapability(name string) bool {
	return capabilityCovered(p.Denies, name)
}

// TypeField is a field in a nominal type declaration
type TypeField struct {
	Name string
	Type *TypeNode
	Span Span
}

// TypeDecl represents a nominal type declaration with a field list
type TypeDecl struct {
	Name   string
	Fields []*TypeField
	Span   Span
}

func (t *TypeDecl) declNode()     {}
func (t *TypeDecl) GetSpan() Span { return t.Span }

// SharedDecl represents a process-wide named mutable cell
type SharedDecl struct {
	Name      string
	Type      *TypeNode
	Access    string // access attribute, empty when unspecified
	Isolation string
	Audit     string
	Span      Span
}

func (s *SharedDecl) declNode()     {}
func (s *SharedDecl) GetSpan() Span { return s.Span }

// TypeKind discriminates type node variants
type TypeKind int

const (
	TypeKindPrimitive TypeKind = iota
	TypeKindGeneric
	TypeKindNamed
	TypeKindAnnotated
)

// Primitive type names
const (
	TypeInt    = "Int"
	TypeFloat  = "Float"
	TypeString = "String"
	TypeBool   = "Bool"
	TypeNull   = "Null"
	TypeList   = "List"
	TypeObject = "Object"
	TypeAny    = "Any"
)

var primitiveNames = map[string]bool{
	TypeInt: true, TypeFloat: true, TypeString: true, TypeBool: true,
	TypeNull: true, TypeList: true, TypeObject: true, TypeAny: true,
}

// IsPrimitiveName reports whether a name denotes a primitive type
func IsPrimitiveName(name string) bool {
	return primitiveNames[name]
}

// TypeNode represents a type annotation
type TypeNode struct {
	Kind   TypeKind
	Name   string      // primitive, generic, or named type name
	Args   []*TypeNode // generic arguments
	Inner  *TypeNode   // annotated inner type
	Labels []string    // flow labels for annotated types
	Span   Span
}

// String returns the surface syntax of the type
func (t *TypeNode) String() string {
	switch t.Kind {
	case TypeKindPrimitive, TypeKindNamed:
		return t.Name
	case TypeKindGeneric:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return t.Name + "<" + strings.Join(parts, ", ") + ">"
	case TypeKindAnnotated:
		return t.Inner.String() + " [" + strings.Join(t.Labels, ", ") + "]"
	default:
		return "unknown"
	}
}

// Base strips annotation wrappers, returning the underlying type
func (t *TypeNode) Base() *TypeNode {
	if t.Kind == TypeKindAnnotated {
		return t.Inner.Base()
	}
	return t
}

// FlowLabels returns the labels attached to the type, if any
func (t *TypeNode) FlowLabels() []string {
	if t.Kind == TypeKindAnnotated {
		return t.Labels
	}
	return nil
}
