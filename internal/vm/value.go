// Package vm implements the Covenant stack virtual machine: a
// single-threaded bytecode interpreter with checked arithmetic,
// contract pre/postcondition enforcement, resource caps, and host
// module dispatch.
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates runtime values
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindList
	KindObject
	KindHandle
)

// String returns the kind's name for error messages
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindObject:
		return "Object"
	case KindHandle:
		return "HostHandle"
	default:
		return "Unknown"
	}
}

// List is a mutable list value, held by reference
type List struct {
	Elems []Value
}

// Object is a nominal object: it carries its constructor name and an
// ordered field list.
type Object struct {
	Ctor   string
	Names  []string
	Values []Value
}

// Get returns the value of a field
func (o *Object) Get(name string) (Value, bool) {
	for i, n := range o.Names {
		if n == name {
			return o.Values[i], true
		}
	}
	return Null(), false
}

// Set stores a field value, appending the field when new
func (o *Object) Set(name string, v Value) {
	for i, n := range o.Names {
		if n == name {
			o.Values[i] = v
			return
		}
	}
	o.Names = append(o.Names, name)
	o.Values = append(o.Values, v)
}

// Value is the runtime value sum type. Exactly one payload field is
// meaningful, selected by Kind; Bool is stored in I.
type Value struct {
	Kind   ValueKind
	I      int64
	F      float64
	S      string
	L      *List
	O      *Object
	Handle *HostHandle
}

// Constructors

func Null() Value                 { return Value{Kind: KindNull} }
func Int(v int64) Value           { return Value{Kind: KindInt, I: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, F: v} }
func String(v string) Value       { return Value{Kind: KindString, S: v} }
func NewList(elems []Value) Value { return Value{Kind: KindList, L: &List{Elems: elems}} }
func NewObject(o *Object) Value   { return Value{Kind: KindObject, O: o} }

func Bool(v bool) Value {
	if v {
		return Value{Kind: KindBool, I: 1}
	}
	return Value{Kind: KindBool}
}

// AsBool reads a boolean payload
func (v Value) AsBool() bool {
	return v.Kind == KindBool && v.I != 0
}

// IsTruthy implements condition evaluation: false and null are falsy,
// everything else is truthy.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.I != 0
	default:
		return true
	}
}

// Equals implements deep structural equality
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		// Numeric cross-kind equality.
		if v.Kind == KindInt && other.Kind == KindFloat {
			return float64(v.I) == other.F
		}
		if v.Kind == KindFloat && other.Kind == KindInt {
			return v.F == float64(other.I)
		}
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt, KindBool:
		return v.I == other.I
	case KindFloat:
		return v.F == other.F
	case KindString:
		return v.S == other.S
	case KindList:
		if len(v.L.Elems) != len(other.L.Elems) {
			return false
		}
		for i := range v.L.Elems {
			if !v.L.Elems[i].Equals(other.L.Elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if v.O.Ctor != other.O.Ctor || len(v.O.Names) != len(other.O.Names) {
			return false
		}
		for i, name := range v.O.Names {
			ov, ok := other.O.Get(name)
			if !ok || !v.O.Values[i].Equals(ov) {
				return false
			}
		}
		return true
	case KindHandle:
		return v.Handle == other.Handle
	default:
		return false
	}
}

// String renders the value in surface syntax
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		if v.I != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return v.S
	case KindList:
		parts := make([]string, len(v.L.Elems))
		for i, el := range v.L.Elems {
			parts[i] = el.quoted()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		parts := make([]string, len(v.O.Names))
		for i, name := range v.O.Names {
			parts[i] = fmt.Sprintf("%s: %s", name, v.O.Values[i].quoted())
		}
		return v.O.Ctor + "(" + strings.Join(parts, ", ") + ")"
	case KindHandle:
		return v.Handle.String()
	default:
		return "<invalid>"
	}
}

// quoted renders the value with strings quoted, for container elements
func (v Value) quoted() string {
	if v.Kind == KindString {
		return strconv.Quote(v.S)
	}
	return v.String()
}
