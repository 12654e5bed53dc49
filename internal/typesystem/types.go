package typesystem

import (
	"fmt"
	"strings"

	"github.com/funvibe/typesubst/internal/config"
)

// Type is the interface for all types in our system. The set of shapes is
// closed: SimpleType, FlexibleType, AbbreviatedType, CapturedType and
// DefinitelyNotNullType. Types are immutable once built.
type Type interface {
	String() string
	IsMarkedNullable() bool
	Attributes() Attributes
	isType()
}

// SimpleType is a constructor applied to arguments, with a nullability flag.
// Class references, type parameter and variable occurrences, intersections
// and error types are all simple types.
type SimpleType struct {
	Constructor TypeConstructor
	Arguments   []Projection
	Nullable    bool
	Attrs       Attributes
}

func (t *SimpleType) IsMarkedNullable() bool { return t.Nullable }
func (t *SimpleType) Attributes() Attributes { return t.Attrs }
func (t *SimpleType) isType()                {}

// IsError reports whether t is an unresolved type.
func (t *SimpleType) IsError() bool {
	_, ok := t.Constructor.(*ErrorConstructor)
	return ok
}

func (t *SimpleType) String() string {
	var sb strings.Builder
	sb.WriteString(t.Attrs.prefix())
	sb.WriteString(t.Constructor.String())
	if len(t.Arguments) > 0 {
		sb.WriteByte('<')
		for i, arg := range t.Arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(arg.String())
		}
		sb.WriteByte('>')
	}
	if t.Nullable {
		sb.WriteByte('?')
	}
	return sb.String()
}

// FlexibleKind distinguishes platform ranges from dynamic and raw types.
type FlexibleKind int

const (
	Platform FlexibleKind = iota
	Dynamic
	Raw
)

// FlexibleType is a (lower..upper) range of types, typically from Java
// interop. Enhancement, when set, is the richer type computed for the range
// by nullability-annotation analysis.
type FlexibleType struct {
	Kind        FlexibleKind
	Lower       Type
	Upper       Type
	Enhancement Type
}

func (t *FlexibleType) IsMarkedNullable() bool { return t.Lower.IsMarkedNullable() }
func (t *FlexibleType) Attributes() Attributes { return t.Lower.Attributes() }
func (t *FlexibleType) isType()                {}

func (t *FlexibleType) String() string {
	switch t.Kind {
	case Dynamic:
		return config.DynamicKeyword
	case Raw:
		return fmt.Sprintf("%s(%s..%s)", config.RawKeyword, t.Lower, t.Upper)
	default:
		return fmt.Sprintf("(%s..%s)", t.Lower, t.Upper)
	}
}

// AbbreviatedType pairs a typealias occurrence with its expansion.
type AbbreviatedType struct {
	Expanded     Type
	Abbreviation *SimpleType
}

func (t *AbbreviatedType) IsMarkedNullable() bool { return t.Expanded.IsMarkedNullable() }
func (t *AbbreviatedType) Attributes() Attributes { return t.Expanded.Attributes() }
func (t *AbbreviatedType) isType()                {}

func (t *AbbreviatedType) String() string {
	return fmt.Sprintf("[%s = %s]", t.Abbreviation, t.Expanded)
}

// CapturedType is a captured wildcard or use-site projection. Lower is the
// conservative lower bound used for substitution; it is set for captured
// in-projections.
type CapturedType struct {
	Status      CaptureStatus
	Constructor *CapturedConstructor
	Lower       Type
	Nullable    bool
	Attrs       Attributes
}

func (t *CapturedType) IsMarkedNullable() bool { return t.Nullable }
func (t *CapturedType) Attributes() Attributes { return t.Attrs }
func (t *CapturedType) isType()                {}

func (t *CapturedType) String() string {
	s := t.Attrs.prefix() + t.Constructor.String()
	if t.Nullable {
		s += "?"
	}
	return s
}

// DefinitelyNotNullType forces a type parameter, variable or capture to be
// non-null (`T & Any`).
type DefinitelyNotNullType struct {
	Original Type
}

func (t *DefinitelyNotNullType) IsMarkedNullable() bool { return false }
func (t *DefinitelyNotNullType) Attributes() Attributes { return t.Original.Attributes() }
func (t *DefinitelyNotNullType) isType()                {}

func (t *DefinitelyNotNullType) String() string {
	return t.Original.String() + " & " + config.AnyTypeName
}

// IsSimple reports whether t can stand where a simple type is required,
// which is every shape except a flexible range.
func IsSimple(t Type) bool {
	_, flexible := t.(*FlexibleType)
	return !flexible
}

// IsCaptured reports whether t is a capture, possibly wrapped as definitely
// not-null.
func IsCaptured(t Type) bool {
	switch t := t.(type) {
	case *CapturedType:
		return true
	case *DefinitelyNotNullType:
		_, ok := t.Original.(*CapturedType)
		return ok
	}
	return false
}

// ConstructorOf returns the constructor a type is built on: flexible types
// answer for their lower bound, abbreviations for their expansion.
func ConstructorOf(t Type) TypeConstructor {
	switch t := t.(type) {
	case *SimpleType:
		return t.Constructor
	case *CapturedType:
		return t.Constructor
	case *DefinitelyNotNullType:
		return ConstructorOf(t.Original)
	case *FlexibleType:
		return ConstructorOf(t.Lower)
	case *AbbreviatedType:
		return ConstructorOf(t.Expanded)
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}
