package substitutor

import (
	"fmt"
	"slices"

	"github.com/funvibe/typesubst/internal/diagnostics"
	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// walker carries the per-call settings of one substitution. The running
// node index is threaded separately as a cursor so one walker can serve
// walks that start at the same index (flexible bounds, abbreviations).
type walker struct {
	sub             Substitutor
	keepAnnotations bool
	observer        NodeObserver
}

// quiet returns a walker that reports no nodes; used for walks that are
// alternative views of nodes already reported, or not part of the indexed
// tree at all.
func (w walker) quiet() walker {
	w.observer = nil
	return w
}

func (w walker) visit(cursor *int, pos ts.TypePosition, node ts.Type) {
	index := *cursor
	*cursor++
	if w.observer != nil {
		w.observer(index, pos, node)
	}
}

// skip reports the root of a subtree that is not substituted and moves the
// cursor past all of it.
func (w walker) skip(cursor *int, pos ts.TypePosition, node ts.Type) {
	start := *cursor
	w.visit(cursor, pos, node)
	*cursor = start + ts.SubtreeSize(node)
}

func (w walker) substitute(t ts.Type, pos ts.TypePosition, runCapturedChecks bool, cursor *int) ts.Type {
	switch t := t.(type) {
	case *ts.FlexibleType:
		return w.flexible(t, runCapturedChecks, cursor)
	case *ts.AbbreviatedType:
		return w.abbreviated(t, pos, runCapturedChecks, cursor)
	case *ts.SimpleType:
		return w.simple(t, pos, runCapturedChecks, cursor)
	case *ts.CapturedType:
		w.visit(cursor, pos, t)
		return w.captured(t, runCapturedChecks)
	case *ts.DefinitelyNotNullType:
		return w.definitelyNotNull(t, pos, runCapturedChecks, cursor)
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

func (w walker) flexible(t *ts.FlexibleType, runCapturedChecks bool, cursor *int) ts.Type {
	if t.Kind == ts.Dynamic {
		w.skip(cursor, ts.FlexibleLower, t.Lower)
		return nil
	}
	start := *cursor
	lowerEnd, upperEnd := start, start
	lower := w.substitute(t.Lower, ts.FlexibleLower, runCapturedChecks, &lowerEnd)
	upper := w.substitute(t.Upper, ts.FlexibleUpper, runCapturedChecks, &upperEnd)
	if lowerEnd != upperEnd {
		diagnostics.Fatal("flexible type bounds are not structurally congruent",
			"type", t,
			"lower", t.Lower,
			"upper", t.Upper,
			"lower size", lowerEnd-start,
			"upper size", upperEnd-start)
	}
	*cursor = lowerEnd

	var enhancement ts.Type
	if t.Enhancement != nil {
		enhancementEnd := start
		enhancement = w.quiet().substitute(t.Enhancement, ts.Inflexible, runCapturedChecks, &enhancementEnd)
	}
	if lower == nil && upper == nil && enhancement == nil {
		return nil
	}

	// A bound replaced by a flexible type contributes only its own bound.
	newLower, newUpper := lowerIfFlexible(orElse(lower, t.Lower)), upperIfFlexible(orElse(upper, t.Upper))
	var result ts.Type
	if t.Kind == ts.Raw {
		result = ts.RawFlexible(newLower, newUpper)
	} else {
		result = ts.Flexible(newLower, newUpper)
	}
	if t.Enhancement != nil {
		result = ts.WithEnhancement(result, orElse(enhancement, t.Enhancement))
	}
	return result
}

func (w walker) abbreviated(t *ts.AbbreviatedType, pos ts.TypePosition, runCapturedChecks bool, cursor *int) ts.Type {
	// Both views describe one logical position, so both walks start at the
	// same index; only the expansion is reported and advances the cursor.
	abbreviationCursor := *cursor
	expanded := w.substitute(t.Expanded, pos, runCapturedChecks, cursor)
	abbreviation := w.quiet().substitute(t.Abbreviation, pos, runCapturedChecks, &abbreviationCursor)
	if expanded == nil && abbreviation == nil {
		return nil
	}

	simpleAbbreviation, abbreviationIsSimple := abbreviation.(*ts.SimpleType)
	if (expanded == nil || ts.IsSimple(expanded)) && (abbreviation == nil || abbreviationIsSimple) {
		if abbreviation == nil {
			simpleAbbreviation = t.Abbreviation
		}
		return &ts.AbbreviatedType{
			Expanded:     orElse(expanded, t.Expanded),
			Abbreviation: simpleAbbreviation,
		}
	}
	return expanded
}

func (w walker) simple(t *ts.SimpleType, pos ts.TypePosition, runCapturedChecks bool, cursor *int) ts.Type {
	if t.IsError() {
		w.skip(cursor, pos, t)
		return nil
	}
	if len(t.Arguments) > 0 {
		return w.parametrized(t, pos, runCapturedChecks, cursor)
	}
	w.visit(cursor, pos, t)
	switch c := t.Constructor.(type) {
	case *ts.IntersectionConstructor:
		return w.intersection(t, c, runCapturedChecks)
	case *ts.CapturedConstructor:
		diagnostics.Fatal("captured constructor outside a captured type", "type", t)
	}
	return w.replace(t, t.Constructor, t.Nullable, false)
}

// replace looks up the replacement of a leaf occurrence and re-applies the
// occurrence's nullability, definitely-not-null marker and annotations.
func (w walker) replace(original ts.Type, c ts.TypeConstructor, nullable, definitelyNotNull bool) ts.Type {
	replacement := w.sub.SubstituteConstructor(c)
	if replacement == nil {
		return nil
	}
	result := ts.MakeNullableIfNeeded(replacement, nullable)
	if definitelyNotNull {
		result = ts.MakeDefinitelyNotNullOrNotNull(result)
	}
	if w.keepAnnotations && !original.Attributes().IsEmpty() {
		result = ts.WithAttributes(result, result.Attributes().Union(original.Attributes()))
	}
	return result
}

func (w walker) definitelyNotNull(t *ts.DefinitelyNotNullType, pos ts.TypePosition, runCapturedChecks bool, cursor *int) ts.Type {
	switch o := t.Original.(type) {
	case *ts.CapturedType:
		w.visit(cursor, pos, t)
		res := w.captured(o, runCapturedChecks)
		if res == nil {
			return nil
		}
		return ts.MakeDefinitelyNotNullOrNotNull(res)
	case *ts.SimpleType:
		if o.IsError() {
			w.skip(cursor, pos, t)
			return nil
		}
		w.visit(cursor, pos, t)
		return w.replace(t, o.Constructor, false, true)
	default:
		diagnostics.Fatal("definitely-not-null type over an unsupported shape", "type", t, "original", t.Original)
		return nil
	}
}

func (w walker) parametrized(t *ts.SimpleType, pos ts.TypePosition, runCapturedChecks bool, cursor *int) ts.Type {
	start := *cursor
	w.visit(cursor, pos, t)
	params := t.Constructor.Parameters()
	if len(params) != len(t.Arguments) {
		*cursor = start + ts.SubtreeSize(t)
		return nil
	}

	newClassifier := w.replacementClassifier(t)

	var newArgs []ts.Projection
	for i, arg := range t.Arguments {
		if arg.Star {
			*cursor++
			continue
		}
		substituted := w.substitute(arg.Type, ts.Inflexible, runCapturedChecks, cursor)
		if substituted == nil {
			continue
		}
		if newArgs == nil {
			newArgs = slices.Clone(t.Arguments)
		}
		newArgs[i] = ts.Projection{Kind: arg.Kind, Type: substituted}
	}

	if newClassifier == nil {
		if newArgs == nil {
			return nil
		}
		return ts.ReplaceArguments(t, newArgs)
	}

	if newArgs == nil {
		newArgs = slices.Clone(t.Arguments)
	}
	reproject(params, newClassifier.Constructor.Parameters(), newArgs)
	attrs := t.Attrs
	if w.keepAnnotations {
		attrs = newClassifier.Attrs.Union(t.Attrs)
	}
	return &ts.SimpleType{
		Constructor: newClassifier.Constructor,
		Arguments:   newArgs,
		Nullable:    t.Nullable || newClassifier.Nullable,
		Attrs:       attrs,
	}
}

// replacementClassifier asks the substitutor whether the class of a
// parametrized type is itself replaced. Only a bare reference to another
// class with the same number of parameters qualifies.
func (w walker) replacementClassifier(t *ts.SimpleType) *ts.SimpleType {
	if _, ok := t.Constructor.(*ts.ClassConstructor); !ok {
		return nil
	}
	r, ok := w.sub.SubstituteConstructor(t.Constructor).(*ts.SimpleType)
	if !ok || r.Constructor == t.Constructor || len(r.Arguments) > 0 {
		return nil
	}
	if _, ok := r.Constructor.(*ts.ClassConstructor); !ok {
		return nil
	}
	if len(r.Constructor.Parameters()) != len(t.Arguments) {
		return nil
	}
	return r
}

// reproject rewrites arguments written against oldParams so they mean the
// same against newParams: the effective variance against the old
// declaration is kept, spelled explicitly unless the new declaration
// already implies it.
func reproject(oldParams, newParams []*ts.TypeParameter, args []ts.Projection) {
	for i, arg := range args {
		if arg.Star {
			continue
		}
		effective, ok := ts.Combine(oldParams[i].Variance, arg.Kind)
		if !ok {
			args[i] = ts.StarProjection()
			continue
		}
		declared := newParams[i].Variance
		switch {
		case effective == declared:
			args[i] = ts.InvariantProjection(arg.Type)
		case declared != ts.Invariant && effective != ts.Invariant:
			args[i] = ts.StarProjection()
		default:
			// An invariant use has no spelling against an in/out parameter,
			// so it stays plain and takes the declared variance.
			args[i] = ts.NewProjection(effective, arg.Type)
		}
	}
}

func (w walker) captured(t *ts.CapturedType, runCapturedChecks bool) ts.Type {
	if !runCapturedChecks {
		return nil
	}
	q := w.quiet()
	projection := t.Constructor.Projection
	supertypes := t.Constructor.Supertypes()

	inner := t.Lower
	if inner == nil && !projection.Star {
		inner = projection.Type
	}
	if inner == nil && len(supertypes) > 0 {
		inner = ts.Intersect(supertypes)
	}

	var substitutedInner ts.Type
	if inner != nil {
		innerCursor := 0
		substitutedInner = q.substitute(inner, ts.Inflexible, false, &innerCursor)
	}

	newSupertypes := make([]ts.Type, len(supertypes))
	supertypesChanged := false
	for i, st := range supertypes {
		stCursor := 0
		if r := q.substitute(st, ts.Inflexible, false, &stCursor); r != nil {
			newSupertypes[i] = r
			supertypesChanged = true
		} else {
			newSupertypes[i] = st
		}
	}

	if substitutedInner == nil {
		if supertypesChanged {
			diagnostics.Fatal("captured type supertypes substitute while its inner type does not",
				"type", t,
				"constructor", t.Constructor,
				"inner", inner,
				"substituted supertypes", ts.Intersect(newSupertypes))
		}
		return nil
	}
	if ts.IsCaptured(substitutedInner) {
		return substitutedInner
	}

	newProjection := ts.StarProjection()
	if !projection.Star {
		newProjection = ts.NewProjection(projection.Kind, substitutedInner)
	}
	var lower ts.Type
	if t.Lower != nil {
		lower = substitutedInner
	}
	return &ts.CapturedType{
		Status:      t.Status,
		Constructor: ts.NewCapturedConstructor(newProjection, newSupertypes),
		Lower:       lower,
		Nullable:    t.Nullable,
		Attrs:       t.Attrs,
	}
}

func (w walker) intersection(t *ts.SimpleType, c *ts.IntersectionConstructor, runCapturedChecks bool) ts.Type {
	if r := w.sub.SubstituteConstructor(c); r != nil {
		return ts.MakeNullableIfNeeded(r, t.Nullable)
	}
	q := w.quiet()
	members := c.Supertypes()
	newMembers := make([]ts.Type, len(members))
	changed := false
	for i, m := range members {
		memberCursor := 0
		if r := q.substitute(m, ts.Inflexible, runCapturedChecks, &memberCursor); r != nil {
			newMembers[i] = r
			changed = true
		} else {
			newMembers[i] = m
		}
	}
	if !changed {
		return nil
	}
	result := ts.MakeNullableIfNeeded(ts.Intersect(newMembers), t.Nullable)
	if !t.Attrs.IsEmpty() {
		result = ts.WithAttributes(result, result.Attributes().Union(t.Attrs))
	}
	return result
}

func lowerIfFlexible(t ts.Type) ts.Type {
	if f, ok := t.(*ts.FlexibleType); ok {
		return f.Lower
	}
	return t
}

func upperIfFlexible(t ts.Type) ts.Type {
	if f, ok := t.(*ts.FlexibleType); ok {
		return f.Upper
	}
	return t
}

func orElse(t, fallback ts.Type) ts.Type {
	if t == nil {
		return fallback
	}
	return t
}
