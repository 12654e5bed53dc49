package typesystem

import (
	"fmt"
	"strings"

	"github.com/funvibe/typesubst/internal/config"
	"github.com/google/uuid"
)

// TypeConstructor is the identity of a type: a declared class, a type
// parameter, an inference variable, a captured projection, an intersection or
// an error marker. Identity is pointer identity, so constructors are usable as
// map keys.
type TypeConstructor interface {
	String() string
	// Parameters returns the ordered formal type parameters.
	Parameters() []*TypeParameter
	// Supertypes returns the ordered direct supertypes.
	Supertypes() []Type
	isConstructor()
}

// ClassKind distinguishes the declarations behind a ClassConstructor.
type ClassKind int

const (
	Class ClassKind = iota
	Interface
	Object
	Alias
)

var classKindNames = map[string]ClassKind{
	"class":     Class,
	"interface": Interface,
	"object":    Object,
	"typealias": Alias,
}

// ParseClassKind maps a declaration keyword to its ClassKind.
func ParseClassKind(s string) (ClassKind, bool) {
	if s == "" {
		return Class, true
	}
	k, ok := classKindNames[s]
	return k, ok
}

func (k ClassKind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Object:
		return "object"
	case Alias:
		return "typealias"
	default:
		return "class"
	}
}

// ClassConstructor identifies a classifier declaration. Its parameters are
// fixed when it is declared, its supertypes may be attached later so that a
// class can mention itself in its own supertypes.
type ClassConstructor struct {
	Name       string
	Kind       ClassKind
	parameters []*TypeParameter
	supertypes []Type
}

func (c *ClassConstructor) String() string             { return c.Name }
func (c *ClassConstructor) Parameters() []*TypeParameter { return c.parameters }
func (c *ClassConstructor) Supertypes() []Type           { return c.supertypes }
func (c *ClassConstructor) isConstructor()               {}

// TypeParameter is a formal type parameter of a declaration.
type TypeParameter struct {
	Name        string
	Owner       string
	Index       int
	Variance    Variance
	UpperBounds []Type

	constructor *ParameterConstructor
}

// NewTypeParameter creates a parameter and its constructor.
func NewTypeParameter(owner, name string, index int, variance Variance) *TypeParameter {
	p := &TypeParameter{Name: name, Owner: owner, Index: index, Variance: variance}
	p.constructor = &ParameterConstructor{Parameter: p}
	return p
}

func (p *TypeParameter) Constructor() *ParameterConstructor { return p.constructor }

// DefaultType is the non-null occurrence of the parameter.
func (p *TypeParameter) DefaultType() *SimpleType {
	return &SimpleType{Constructor: p.constructor}
}

// QualifiedName is Owner.Name, the key the registry uses.
func (p *TypeParameter) QualifiedName() string {
	if p.Owner == "" {
		return p.Name
	}
	return p.Owner + "." + p.Name
}

func (p *TypeParameter) String() string {
	if p.Variance == Invariant {
		return p.Name
	}
	return p.Variance.String() + " " + p.Name
}

// ParameterConstructor is the constructor of a type parameter occurrence.
type ParameterConstructor struct {
	Parameter *TypeParameter
}

func (c *ParameterConstructor) String() string             { return c.Parameter.Name }
func (c *ParameterConstructor) Parameters() []*TypeParameter { return nil }
func (c *ParameterConstructor) Supertypes() []Type           { return c.Parameter.UpperBounds }
func (c *ParameterConstructor) isConstructor()               {}

// VariableConstructor stands for an inference variable (a fresh slot).
type VariableConstructor struct {
	Name   string
	ID     uuid.UUID
	Origin *TypeParameter
}

// NewVariableConstructor mints a fresh variable slot.
func NewVariableConstructor(name string, origin *TypeParameter) *VariableConstructor {
	return &VariableConstructor{Name: name, ID: uuid.New(), Origin: origin}
}

func (c *VariableConstructor) String() string {
	if config.ShowVariableIDs && !config.IsTestMode {
		return fmt.Sprintf("%s#%s", c.Name, c.ID.String()[:8])
	}
	return c.Name
}
func (c *VariableConstructor) Parameters() []*TypeParameter { return nil }
func (c *VariableConstructor) Supertypes() []Type {
	if c.Origin != nil {
		return c.Origin.UpperBounds
	}
	return nil
}
func (c *VariableConstructor) isConstructor() {}

// CaptureStatus records why a projection was captured.
type CaptureStatus int

const (
	FromExpression CaptureStatus = iota
	ForSubtyping
	ForIncorporation
)

// CapturedConstructor holds the captured projection and the supertypes the
// capture is known to have.
type CapturedConstructor struct {
	Projection Projection
	supertypes []Type
}

// NewCapturedConstructor creates a fresh capture identity.
func NewCapturedConstructor(projection Projection, supertypes []Type) *CapturedConstructor {
	return &CapturedConstructor{Projection: projection, supertypes: supertypes}
}

func (c *CapturedConstructor) String() string             { return "Captured(" + c.Projection.String() + ")" }
func (c *CapturedConstructor) Parameters() []*TypeParameter { return nil }
func (c *CapturedConstructor) Supertypes() []Type           { return c.supertypes }
func (c *CapturedConstructor) isConstructor()               {}

// IntersectionConstructor is the constructor of an intersection type; its
// supertypes are the intersected members.
type IntersectionConstructor struct {
	members []Type
}

func NewIntersectionConstructor(members []Type) *IntersectionConstructor {
	return &IntersectionConstructor{members: members}
}

func (c *IntersectionConstructor) String() string {
	parts := make([]string, len(c.members))
	for i, m := range c.members {
		parts[i] = m.String()
	}
	return "{" + strings.Join(parts, " & ") + "}"
}
func (c *IntersectionConstructor) Parameters() []*TypeParameter { return nil }
func (c *IntersectionConstructor) Supertypes() []Type           { return c.members }
func (c *IntersectionConstructor) isConstructor()               {}

// ErrorConstructor marks an unresolved type. Error types are never substituted.
type ErrorConstructor struct {
	Message string
}

func (c *ErrorConstructor) String() string {
	if c.Message == "" {
		return config.ErrorTypeName
	}
	return config.ErrorTypeName + "(" + c.Message + ")"
}
func (c *ErrorConstructor) Parameters() []*TypeParameter { return nil }
func (c *ErrorConstructor) Supertypes() []Type           { return nil }
func (c *ErrorConstructor) isConstructor()               {}

// DefaultType returns the unprojected, non-null type of a constructor, or nil
// when the constructor has no standalone type (captures, errors).
func DefaultType(c TypeConstructor) *SimpleType {
	switch c := c.(type) {
	case *ClassConstructor:
		args := make([]Projection, len(c.parameters))
		for i, p := range c.parameters {
			args[i] = InvariantProjection(p.DefaultType())
		}
		return &SimpleType{Constructor: c, Arguments: args}
	case *ParameterConstructor:
		return c.Parameter.DefaultType()
	case *VariableConstructor, *IntersectionConstructor:
		return &SimpleType{Constructor: c}
	case *CapturedConstructor, *ErrorConstructor:
		return nil
	default:
		panic(fmt.Sprintf("unknown type constructor %T", c))
	}
}
