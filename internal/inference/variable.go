// Package inference is a small constraint system over type variables. It
// instantiates declarations with fresh variables, decomposes subtype and
// equality constraints into bounds on those variables, and fixes every
// variable to a type; the fixed results are exposed as a substitutor.
package inference

import (
	"fmt"

	"github.com/funvibe/typesubst/internal/config"
	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// TypeVariable is a fresh inference slot standing for an unknown type.
type TypeVariable struct {
	Constructor *ts.VariableConstructor
}

// NewTypeVariable creates a variable for a declaration's parameter, named
// after it (T -> T'). origin may be nil for free-standing variables.
func NewTypeVariable(name string, origin *ts.TypeParameter) *TypeVariable {
	if origin != nil && name == "" {
		name = origin.Name + config.FreshVariableSuffix
	}
	return &TypeVariable{Constructor: ts.NewVariableConstructor(name, origin)}
}

// DefaultType is the non-null occurrence of the variable.
func (v *TypeVariable) DefaultType() *ts.SimpleType {
	return &ts.SimpleType{Constructor: v.Constructor}
}

func (v *TypeVariable) String() string { return v.Constructor.String() }

// BoundKind tells how a constraint relates its type to the variable.
type BoundKind int

const (
	// Lower means the type is a subtype of the variable.
	Lower BoundKind = iota
	// Upper means the variable is a subtype of the type.
	Upper
	Equality
)

func (k BoundKind) String() string {
	switch k {
	case Lower:
		return ":>"
	case Upper:
		return "<:"
	default:
		return "=="
	}
}

// Constraint is one bound on a variable.
type Constraint struct {
	Kind     BoundKind
	Type     ts.Type
	Position string
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s", c.Kind, c.Type)
}

// ConstraintError is a constraint that cannot hold. It is reported to the
// caller and never aborts the system.
type ConstraintError struct {
	Lower    ts.Type
	Upper    ts.Type
	Position string
	Reason   string
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s is not a subtype of %s: %s", e.Lower, e.Upper, e.Reason)
	if e.Position != "" {
		msg = e.Position + ": " + msg
	}
	return msg
}

// State is the life-cycle stage of a System.
type State int

const (
	Building State = iota
	Completion
	Frozen
)

func (s State) String() string {
	switch s {
	case Building:
		return "BUILDING"
	case Completion:
		return "COMPLETION"
	default:
		return "FROZEN"
	}
}
