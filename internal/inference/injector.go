package inference

import (
	"slices"

	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// maxInjectionDepth bounds the decomposition of one constraint; recursive
// supertypes (Comparable<T> patterns) would otherwise never settle.
const maxInjectionDepth = 64

// typePair is a pair of types being related, kept for co-induction.
type typePair struct {
	lower ts.Type
	upper ts.Type
}

// injector decomposes one incoming constraint into variable bounds.
type injector struct {
	s        *System
	position string
	visited  []typePair
	depth    int
}

func (s *System) newInjector(position string) *injector {
	return &injector{s: s, position: position}
}

func (in *injector) fail(lower, upper ts.Type, reason string) {
	in.s.addError(&ConstraintError{Lower: lower, Upper: upper, Position: in.position, Reason: reason})
}

// occurrence describes a type that is a use of an unfixed variable.
type occurrence struct {
	state             *variableState
	nullable          bool
	definitelyNotNull bool
}

func (in *injector) variableOccurrence(t ts.Type) (occurrence, bool) {
	switch t := t.(type) {
	case *ts.SimpleType:
		if len(t.Arguments) > 0 {
			return occurrence{}, false
		}
		if vs, ok := in.s.lookup(t.Constructor); ok {
			return occurrence{state: vs, nullable: t.Nullable}, true
		}
	case *ts.DefinitelyNotNullType:
		if o, ok := in.variableOccurrence(t.Original); ok {
			o.definitelyNotNull = true
			return o, true
		}
	}
	return occurrence{}, false
}

func (in *injector) subtype(lower, upper ts.Type) {
	if ts.Equal(lower, upper) {
		return
	}
	// Co-induction: a pair already being related holds by assumption.
	for _, p := range in.visited {
		if ts.Equal(p.lower, lower) && ts.Equal(p.upper, upper) {
			return
		}
	}
	if in.depth >= maxInjectionDepth {
		in.fail(lower, upper, "constraint is too deeply nested")
		return
	}
	in.visited = append(in.visited, typePair{lower: lower, upper: upper})
	in.depth++
	defer func() {
		in.visited = in.visited[:len(in.visited)-1]
		in.depth--
	}()

	lower, upper = lowerView(lower), upperView(upper)

	lo, lowerIsVar := in.variableOccurrence(lower)
	up, upperIsVar := in.variableOccurrence(upper)
	if lowerIsVar || upperIsVar {
		if lowerIsVar {
			bound := upper
			if lo.definitelyNotNull {
				bound = ts.MakeNullableAsSpecified(upper, true)
			} else if lo.nullable && !upper.IsMarkedNullable() && !upperIsVar {
				in.fail(lower, upper, "nullable type flows into a non-null type")
				return
			}
			in.addBound(lo.state, Upper, bound)
		}
		if upperIsVar {
			bound := lower
			if up.nullable {
				bound = ts.MakeNullableAsSpecified(lower, false)
			} else if up.definitelyNotNull && lower.IsMarkedNullable() {
				in.fail(lower, upper, "nullable type flows into a definitely non-null type")
				return
			}
			in.addBound(up.state, Lower, bound)
		}
		return
	}

	reg := in.s.registry
	if c, ok := ts.ConstructorOf(lower).(*ts.ClassConstructor); ok && reg.IsNothing(c) && !lower.IsMarkedNullable() {
		return
	}
	if c, ok := ts.ConstructorOf(upper).(*ts.ClassConstructor); ok && reg.IsAny(c) {
		if upper.IsMarkedNullable() || !lower.IsMarkedNullable() {
			return
		}
	}
	if lower.IsMarkedNullable() && !upper.IsMarkedNullable() {
		in.fail(lower, upper, "nullable type flows into a non-null type")
		return
	}

	in.structural(stripNullability(lower), stripNullability(upper))
}

// structural relates two non-null types that are not variable occurrences.
func (in *injector) structural(lower, upper ts.Type) {
	switch l := lower.(type) {
	case *ts.CapturedType:
		if supers := l.Constructor.Supertypes(); len(supers) > 0 {
			in.subtype(stripNullability(ts.Intersect(supers)), upper)
			return
		}
	case *ts.SimpleType:
		if ic, ok := l.Constructor.(*ts.IntersectionConstructor); ok {
			in.someMember(ic.Supertypes(), upper)
			return
		}
	}

	switch u := upper.(type) {
	case *ts.CapturedType:
		if u.Lower != nil {
			in.subtype(lower, u.Lower)
			return
		}
		in.fail(lower, upper, "captured type has no lower bound")
		return
	case *ts.SimpleType:
		if ic, ok := u.Constructor.(*ts.IntersectionConstructor); ok {
			for _, m := range ic.Supertypes() {
				in.subtype(lower, m)
			}
			return
		}
	}

	l, lok := lower.(*ts.SimpleType)
	u, uok := upper.(*ts.SimpleType)
	if !lok || !uok {
		in.fail(lower, upper, "unsupported type shapes")
		return
	}
	if l.IsError() || u.IsError() {
		return
	}

	switch lc := l.Constructor.(type) {
	case *ts.ParameterConstructor:
		if u.Constructor == l.Constructor {
			return
		}
		bounds := in.s.registry.SupertypesOf(lc)
		nonNull := make([]ts.Type, len(bounds))
		for i, b := range bounds {
			nonNull[i] = stripNullability(b)
		}
		in.someMember(nonNull, upper)
		return
	case *ts.VariableConstructor:
		// A fixed variable that was not substituted yet.
		if t, ok := in.s.fixed[lc]; ok {
			in.subtype(t, upper)
			return
		}
	}
	if _, ok := u.Constructor.(*ts.ParameterConstructor); ok {
		in.fail(lower, upper, "only the parameter itself is a subtype of a type parameter")
		return
	}

	target, ok := u.Constructor.(*ts.ClassConstructor)
	if !ok {
		in.fail(lower, upper, "unsupported type constructor")
		return
	}
	super := findSupertype(in.s.registry, l, target)
	if super == nil {
		in.fail(lower, upper, "no supertype of "+l.Constructor.String()+" is built on "+target.Name)
		return
	}
	in.arguments(super, u)
}

// arguments relates the arguments of two occurrences of the same class
// according to declaration and use-site variance.
func (in *injector) arguments(lower, upper *ts.SimpleType) {
	params := upper.Constructor.Parameters()
	if len(lower.Arguments) != len(params) || len(upper.Arguments) != len(params) {
		in.fail(lower, upper, "argument count does not match the declaration")
		return
	}
	for i, p := range params {
		a, b := lower.Arguments[i], upper.Arguments[i]
		if b.Star {
			continue
		}
		want, ok := ts.Combine(p.Variance, b.Kind)
		if !ok {
			continue
		}
		have, ok := ts.Combine(p.Variance, a.Kind)
		if a.Star || !ok {
			// A star only promises Any? out of the slot.
			if want == ts.Out {
				in.subtype(ts.MakeNullableAsSpecified(in.s.registry.AnyType(), true), b.Type)
			} else {
				in.fail(lower, upper, "star projection is not a subtype of "+b.String())
			}
			continue
		}
		switch {
		case want == ts.Out && have != ts.In:
			in.subtype(a.Type, b.Type)
		case want == ts.In && have != ts.Out:
			in.subtype(b.Type, a.Type)
		case want == ts.Invariant && have == ts.Invariant:
			in.equal(a.Type, b.Type)
		default:
			in.fail(lower, upper, "projection "+a.String()+" does not fit "+b.String())
		}
	}
}

// someMember requires that one of candidates is a subtype of upper. Each
// candidate is tried in a scratch copy of the bounds; the first that adds no
// error is kept.
func (in *injector) someMember(candidates []ts.Type, upper ts.Type) {
	if len(candidates) == 1 {
		in.subtype(candidates[0], upper)
		return
	}
	for _, c := range candidates {
		saved := in.s.saveBounds()
		errs := len(in.s.errors)
		in.subtype(c, upper)
		if len(in.s.errors) == errs {
			return
		}
		in.s.restoreBounds(saved)
		in.s.errors = in.s.errors[:errs]
	}
	in.fail(intersectionOrFirst(candidates), upper, "no member is a subtype")
}

func (in *injector) equal(a, b ts.Type) {
	if ts.Equal(a, b) {
		return
	}
	av, aIsVar := in.variableOccurrence(a)
	bv, bIsVar := in.variableOccurrence(b)
	if aIsVar && !av.nullable && !av.definitelyNotNull {
		in.addBound(av.state, Equality, b)
		if bIsVar && !bv.nullable && !bv.definitelyNotNull {
			in.addBound(bv.state, Equality, a)
		}
		return
	}
	if bIsVar && !bv.nullable && !bv.definitelyNotNull {
		in.addBound(bv.state, Equality, a)
		return
	}
	in.subtype(a, b)
	in.subtype(b, a)
}

// addBound records a bound and relates it to the variable's existing
// bounds, which keeps the bound set transitively consistent.
func (in *injector) addBound(vs *variableState, kind BoundKind, t ts.Type) {
	c := Constraint{Kind: kind, Type: t, Position: in.position}
	if slices.ContainsFunc(vs.constraints, func(o Constraint) bool { return sameConstraint(o, c) }) {
		return
	}
	existing := slices.Clone(vs.constraints)
	vs.constraints = append(vs.constraints, c)
	in.s.tracef("  %s %s", vs.variable, c)

	for _, o := range existing {
		switch {
		case kind == Lower && o.Kind != Lower:
			in.subtype(t, o.Type)
		case kind == Upper && o.Kind != Upper:
			in.subtype(o.Type, t)
		case kind == Equality:
			switch o.Kind {
			case Lower:
				in.subtype(o.Type, t)
			case Upper:
				in.subtype(t, o.Type)
			case Equality:
				in.equal(o.Type, t)
			}
		}
	}
}

func sameConstraint(a, b Constraint) bool {
	return a.Kind == b.Kind && ts.Equal(a.Type, b.Type)
}

func (s *System) saveBounds() map[*variableState][]Constraint {
	saved := make(map[*variableState][]Constraint, len(s.variables))
	for _, vs := range s.variables {
		saved[vs] = slices.Clone(vs.constraints)
	}
	return saved
}

func (s *System) restoreBounds(saved map[*variableState][]Constraint) {
	for vs, cs := range saved {
		vs.constraints = cs
	}
}

// lowerView is the type that matters when t is the subtype: the lower bound
// of a range, the expansion of an abbreviation.
func lowerView(t ts.Type) ts.Type {
	switch t := t.(type) {
	case *ts.FlexibleType:
		return lowerView(t.Lower)
	case *ts.AbbreviatedType:
		return lowerView(t.Expanded)
	}
	return t
}

// upperView is lowerView for the supertype side.
func upperView(t ts.Type) ts.Type {
	switch t := t.(type) {
	case *ts.FlexibleType:
		return upperView(t.Upper)
	case *ts.AbbreviatedType:
		return upperView(t.Expanded)
	}
	return t
}

func stripNullability(t ts.Type) ts.Type {
	if dnn, ok := t.(*ts.DefinitelyNotNullType); ok {
		return dnn.Original
	}
	return ts.MakeNullableAsSpecified(t, false)
}

func intersectionOrFirst(types []ts.Type) ts.Type {
	if len(types) == 0 {
		return nil
	}
	return ts.Intersect(types)
}
