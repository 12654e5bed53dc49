package typesystem

import (
	"fmt"
	"slices"
)

// MakeNullableAsSpecified returns t with its top-level nullability set.
// Unchanged inputs are returned as is.
func MakeNullableAsSpecified(t Type, nullable bool) Type {
	switch t := t.(type) {
	case *SimpleType:
		if t.Nullable == nullable {
			return t
		}
		c := *t
		c.Nullable = nullable
		return &c
	case *CapturedType:
		if t.Nullable == nullable {
			return t
		}
		c := *t
		c.Nullable = nullable
		return &c
	case *DefinitelyNotNullType:
		if !nullable {
			return t
		}
		return MakeNullableAsSpecified(t.Original, true)
	case *FlexibleType:
		if t.Kind == Dynamic {
			return t
		}
		c := *t
		c.Lower = MakeNullableAsSpecified(t.Lower, nullable)
		c.Upper = MakeNullableAsSpecified(t.Upper, nullable)
		if t.Enhancement != nil {
			c.Enhancement = MakeNullableAsSpecified(t.Enhancement, nullable)
		}
		return &c
	case *AbbreviatedType:
		if t.IsMarkedNullable() == nullable {
			return t
		}
		return &AbbreviatedType{
			Expanded:     MakeNullableAsSpecified(t.Expanded, nullable),
			Abbreviation: MakeNullableAsSpecified(t.Abbreviation, nullable).(*SimpleType),
		}
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// MakeNullableIfNeeded makes t nullable when nullable is set and leaves it
// untouched otherwise, so a nullable replacement stays nullable.
func MakeNullableIfNeeded(t Type, nullable bool) Type {
	if !nullable {
		return t
	}
	return MakeNullableAsSpecified(t, true)
}

// canBeNullable reports whether a non-null occurrence of t could still hold
// null: parameters, variables and captures.
func canBeNullable(t *SimpleType) bool {
	switch t.Constructor.(type) {
	case *ParameterConstructor, *VariableConstructor:
		return true
	}
	return false
}

// MakeDefinitelyNotNullOrNotNull wraps types that may hold null despite
// being non-null-marked, and strips nullability from the rest.
func MakeDefinitelyNotNullOrNotNull(t Type) Type {
	switch t := t.(type) {
	case *DefinitelyNotNullType:
		return t
	case *SimpleType:
		nn := MakeNullableAsSpecified(t, false).(*SimpleType)
		if canBeNullable(nn) {
			return &DefinitelyNotNullType{Original: nn}
		}
		return nn
	case *CapturedType:
		return &DefinitelyNotNullType{Original: MakeNullableAsSpecified(t, false)}
	case *FlexibleType:
		return MakeDefinitelyNotNullOrNotNull(t.Lower)
	case *AbbreviatedType:
		return MakeDefinitelyNotNullOrNotNull(t.Expanded)
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// WithAttributes replaces the attributes of the outermost occurrence.
func WithAttributes(t Type, attrs Attributes) Type {
	switch t := t.(type) {
	case *SimpleType:
		c := *t
		c.Attrs = attrs
		return &c
	case *CapturedType:
		c := *t
		c.Attrs = attrs
		return &c
	case *DefinitelyNotNullType:
		return &DefinitelyNotNullType{Original: WithAttributes(t.Original, attrs)}
	case *FlexibleType:
		c := *t
		c.Lower = WithAttributes(t.Lower, attrs)
		c.Upper = WithAttributes(t.Upper, attrs)
		return &c
	case *AbbreviatedType:
		return &AbbreviatedType{
			Expanded:     WithAttributes(t.Expanded, attrs),
			Abbreviation: WithAttributes(t.Abbreviation, attrs).(*SimpleType),
		}
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// Flexible builds a platform range. Equal bounds collapse to the bound.
func Flexible(lower, upper Type) Type {
	if Equal(lower, upper) {
		return lower
	}
	return &FlexibleType{Kind: Platform, Lower: lower, Upper: upper}
}

// RawFlexible builds a raw (legacy generics) range.
func RawFlexible(lower, upper Type) Type {
	return &FlexibleType{Kind: Raw, Lower: lower, Upper: upper}
}

// DynamicType builds the fully unchecked range (Nothing..Any?).
func DynamicType(nothing, nullableAny Type) Type {
	return &FlexibleType{Kind: Dynamic, Lower: nothing, Upper: nullableAny}
}

// WithEnhancement attaches an enhancement to a flexible type. Other shapes
// carry no enhancement and are returned unchanged.
func WithEnhancement(t Type, enhancement Type) Type {
	f, ok := t.(*FlexibleType)
	if !ok || enhancement == nil {
		return t
	}
	c := *f
	c.Enhancement = enhancement
	return &c
}

// Intersect builds the intersection of types. Nested non-null intersections
// are flattened, structural duplicates dropped, and a single survivor is
// returned directly.
func Intersect(types []Type) Type {
	if len(types) == 0 {
		panic("intersection of no types")
	}
	flat := make([]Type, 0, len(types))
	for _, t := range types {
		if st, ok := t.(*SimpleType); ok && !st.Nullable {
			if ic, ok := st.Constructor.(*IntersectionConstructor); ok {
				flat = append(flat, ic.members...)
				continue
			}
		}
		flat = append(flat, t)
	}
	unique := make([]Type, 0, len(flat))
	for _, t := range flat {
		if !slices.ContainsFunc(unique, func(u Type) bool { return Equal(u, t) }) {
			unique = append(unique, t)
		}
	}
	if len(unique) == 1 {
		return unique[0]
	}
	return &SimpleType{Constructor: NewIntersectionConstructor(unique)}
}

// ReplaceArguments returns t with a new argument list; the constructor,
// nullability and attributes are kept.
func ReplaceArguments(t *SimpleType, args []Projection) *SimpleType {
	c := *t
	c.Arguments = args
	return &c
}
