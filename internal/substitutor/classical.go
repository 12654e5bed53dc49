package substitutor

import (
	"fmt"
	"strings"

	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// Classical is the older, projection-level substitution technology: it maps
// type parameters to projections and composes variance the classical way.
// It survives because member signatures are still specialized to a receiver
// type with it before fresh variables are introduced.
type Classical interface {
	// SubstituteProjection returns the substituted projection and whether
	// anything changed.
	SubstituteProjection(p ts.Projection) (ts.Projection, bool)
	IsEmpty() bool
	String() string
}

// ProjectionSubstitution maps type parameters to projections.
type ProjectionSubstitution struct {
	params  []*ts.TypeParameter
	mapping map[*ts.ParameterConstructor]ts.Projection
}

// NewProjectionSubstitution builds a classical substitution. params fixes the
// rendering order.
func NewProjectionSubstitution(params []*ts.TypeParameter, projections []ts.Projection) *ProjectionSubstitution {
	s := &ProjectionSubstitution{mapping: make(map[*ts.ParameterConstructor]ts.Projection, len(params))}
	for i, p := range params {
		if i >= len(projections) {
			break
		}
		s.params = append(s.params, p)
		s.mapping[p.Constructor()] = projections[i]
	}
	return s
}

// ReceiverSubstitution maps the parameters of a class to the arguments of one
// of its parametrized occurrences, e.g. List<out String> gives E -> out String.
func ReceiverSubstitution(receiver *ts.SimpleType) *ProjectionSubstitution {
	return NewProjectionSubstitution(receiver.Constructor.Parameters(), receiver.Arguments)
}

func (s *ProjectionSubstitution) IsEmpty() bool { return len(s.mapping) == 0 }

func (s *ProjectionSubstitution) String() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = fmt.Sprintf("%s -> %s", p.QualifiedName(), s.mapping[p.Constructor()])
	}
	return "classical{" + strings.Join(parts, ", ") + "}"
}

func (s *ProjectionSubstitution) SubstituteProjection(p ts.Projection) (ts.Projection, bool) {
	if p.Star || s.IsEmpty() {
		return p, false
	}
	return s.projection(p.Kind, p.Type)
}

func (s *ProjectionSubstitution) projection(kind ts.Variance, t ts.Type) (ts.Projection, bool) {
	switch t := t.(type) {
	case *ts.SimpleType:
		if pc, ok := t.Constructor.(*ts.ParameterConstructor); ok {
			r, found := s.mapping[pc]
			if !found {
				return ts.NewProjection(kind, t), false
			}
			if r.Star {
				return r, true
			}
			effective, ok := ts.Combine(r.Kind, kind)
			if !ok {
				return ts.StarProjection(), true
			}
			return ts.NewProjection(effective, ts.MakeNullableIfNeeded(r.Type, t.Nullable)), true
		}
		if ic, ok := t.Constructor.(*ts.IntersectionConstructor); ok {
			members := ic.Supertypes()
			out := make([]ts.Type, len(members))
			changed := false
			for i, m := range members {
				nm, c := s.invariantType(m)
				out[i], changed = nm, changed || c
			}
			if !changed {
				return ts.NewProjection(kind, t), false
			}
			return ts.NewProjection(kind, ts.MakeNullableIfNeeded(ts.Intersect(out), t.Nullable)), true
		}
		if len(t.Arguments) == 0 {
			return ts.NewProjection(kind, t), false
		}
		args := make([]ts.Projection, len(t.Arguments))
		changed := false
		for i, arg := range t.Arguments {
			if arg.Star {
				args[i] = arg
				continue
			}
			na, c := s.projection(arg.Kind, arg.Type)
			args[i], changed = na, changed || c
		}
		if !changed {
			return ts.NewProjection(kind, t), false
		}
		return ts.NewProjection(kind, ts.ReplaceArguments(t, args)), true
	case *ts.FlexibleType:
		if t.Kind == ts.Dynamic {
			return ts.NewProjection(kind, t), false
		}
		lower, lc := s.invariantType(t.Lower)
		upper, uc := s.invariantType(t.Upper)
		if !lc && !uc {
			return ts.NewProjection(kind, t), false
		}
		if t.Kind == ts.Raw {
			return ts.NewProjection(kind, ts.RawFlexible(lower, upper)), true
		}
		return ts.NewProjection(kind, ts.Flexible(lower, upper)), true
	case *ts.AbbreviatedType:
		return s.projection(kind, t.Expanded)
	case *ts.DefinitelyNotNullType:
		r, changed := s.projection(kind, t.Original)
		if !changed || r.Star {
			return r, changed
		}
		return ts.NewProjection(r.Kind, ts.MakeDefinitelyNotNullOrNotNull(r.Type)), true
	case *ts.CapturedType:
		return ts.NewProjection(kind, t), false
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// invariantType substitutes a type that must stay a plain type (flexible
// bounds, intersection members); a projected result is widened to its type
// and a star leaves the type unchanged.
func (s *ProjectionSubstitution) invariantType(t ts.Type) (ts.Type, bool) {
	r, changed := s.projection(ts.Invariant, t)
	if !changed || r.Star {
		return t, false
	}
	return r.Type, true
}
