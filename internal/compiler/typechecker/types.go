// Package typechecker implements Covenant's gradual type system. Any
// variable or parameter without an annotation has type Any, which is
// compatible with every type in both directions, keeping the lattice flat.
package typechecker

import (
	"strings"

	"github.com/covenant-lang/covenant/compiler/parser"
)

// Type represents a type in the Covenant type system. Generic types carry
// their arguments; nominal types carry only their name.
type Type struct {
	Name string
	Args []*Type
}

// Singleton primitives. These are shared; never mutate them.
var (
	AnyType    = &Type{Name: parser.TypeAny}
	IntType    = &Type{Name: parser.TypeInt}
	FloatType  = &Type{Name: parser.TypeFloat}
	StringType = &Type{Name: parser.TypeString}
	BoolType   = &Type{Name: parser.TypeBool}
	NullType   = &Type{Name: parser.TypeNull}
	ObjectType = &Type{Name: parser.TypeObject}
)

// ListOf builds a List type with the given element type
func ListOf(elem *Type) *Type {
	return &Type{Name: parser.TypeList, Args: []*Type{elem}}
}

// String returns the surface syntax of the type
func (t *Type) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// IsAny reports whether the type is the gradual top type
func (t *Type) IsAny() bool {
	return t.Name == parser.TypeAny
}

// IsNumeric reports whether the type supports arithmetic
func (t *Type) IsNumeric() bool {
	return t.Name == parser.TypeInt || t.Name == parser.TypeFloat
}

// IsList reports whether the type is a list
func (t *Type) IsList() bool {
	return t.Name == parser.TypeList
}

// Elem returns a list's element type, defaulting to Any
func (t *Type) Elem() *Type {
	if t.IsList() && len(t.Args) == 1 {
		return t.Args[0]
	}
	return AnyType
}

// FromAST converts a type annotation to a checker type. Annotation
// wrappers (flow labels) are transparent to the type system; the
// capability pass owns them. A nil node is Any.
func FromAST(node *parser.TypeNode) *Type {
	if node == nil {
		return AnyType
	}
	base := node.Base()
	switch base.Kind {
	case parser.TypeKindPrimitive:
		switch base.Name {
		case parser.TypeInt:
			return IntType
		case parser.TypeFloat:
			return FloatType
		case parser.TypeString:
			return StringType
		case parser.TypeBool:
			return BoolType
		case parser.TypeNull:
			return NullType
		case parser.TypeList:
			return ListOf(AnyType)
		case parser.TypeObject:
			return ObjectType
		default:
			return AnyType
		}
	case parser.TypeKindGeneric:
		args := make([]*Type, len(base.Args))
		for i, a := range base.Args {
			args[i] = FromAST(a)
		}
		return &Type{Name: base.Name, Args: args}
	case parser.TypeKindNamed:
		return &Type{Name: base.Name}
	default:
		return AnyType
	}
}

// Assignable reports whether a value of type src can be used where dst is
// expected. Any participates in every relation; generic types unify by
// parameters.
func Assignable(dst, src *Type) bool {
	if dst.IsAny() || src.IsAny() {
		return true
	}
	if dst.Name != src.Name {
		// Int widens to Float.
		return dst.Name == parser.TypeFloat && src.Name == parser.TypeInt
	}
	if len(dst.Args) != len(src.Args) {
		// A bare generic name matches any instantiation of itself.
		return len(dst.Args) == 0 || len(src.Args) == 0
	}
	for i := range dst.Args {
		if !Assignable(dst.Args[i], src.Args[i]) {
			return false
		}
	}
	return true
}

// Comparable reports whether two types can be compared with relational
// operators.
func Comparable(a, b *Type) bool {
	if a.IsAny() || b.IsAny() {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.Name == b.Name
}

// Unify returns the least common type of two types in the flat lattice
func Unify(a, b *Type) *Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.IsAny() || b.IsAny() {
		return AnyType
	}
	if a.Name == b.Name && len(a.Args) == len(b.Args) {
		if len(a.Args) == 0 {
			return a
		}
		args := make([]*Type, len(a.Args))
		for i := range a.Args {
			args[i] = Unify(a.Args[i], b.Args[i])
		}
		return &Type{Name: a.Name, Args: args}
	}
	if a.IsNumeric() && b.IsNumeric() {
		return FloatType
	}
	return AnyType
}
