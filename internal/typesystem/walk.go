package typesystem

import "fmt"

// Equal reports structural equality. Class, parameter, variable and capture
// constructors compare by identity; intersections compare their members as
// sets.
func Equal(a, b Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch a := a.(type) {
	case *SimpleType:
		b, ok := b.(*SimpleType)
		if !ok || a.Nullable != b.Nullable || !a.Attrs.Equal(b.Attrs) {
			return false
		}
		if !equalConstructors(a.Constructor, b.Constructor) || len(a.Arguments) != len(b.Arguments) {
			return false
		}
		for i := range a.Arguments {
			if !EqualProjections(a.Arguments[i], b.Arguments[i]) {
				return false
			}
		}
		return true
	case *CapturedType:
		b, ok := b.(*CapturedType)
		return ok && a.Constructor == b.Constructor && a.Nullable == b.Nullable &&
			a.Status == b.Status && a.Attrs.Equal(b.Attrs)
	case *DefinitelyNotNullType:
		b, ok := b.(*DefinitelyNotNullType)
		return ok && Equal(a.Original, b.Original)
	case *FlexibleType:
		b, ok := b.(*FlexibleType)
		return ok && a.Kind == b.Kind && Equal(a.Lower, b.Lower) && Equal(a.Upper, b.Upper)
	case *AbbreviatedType:
		b, ok := b.(*AbbreviatedType)
		return ok && Equal(a.Expanded, b.Expanded) && Equal(a.Abbreviation, b.Abbreviation)
	default:
		panic(fmt.Sprintf("unknown type shape %T", a))
	}
}

// EqualProjections compares two type arguments.
func EqualProjections(a, b Projection) bool {
	if a.Star || b.Star {
		return a.Star == b.Star
	}
	return a.Kind == b.Kind && Equal(a.Type, b.Type)
}

func equalConstructors(a, b TypeConstructor) bool {
	if a == b {
		return true
	}
	ia, ok := a.(*IntersectionConstructor)
	if !ok {
		return false
	}
	ib, ok := b.(*IntersectionConstructor)
	if !ok || len(ia.members) != len(ib.members) {
		return false
	}
	for _, m := range ia.members {
		found := false
		for _, n := range ib.members {
			if Equal(m, n) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SubtreeSize counts the nodes of t the way substitution indexes them: one
// per simple node, one per argument slot including stars, the lower bound
// for a flexible range and the expansion for an abbreviation.
func SubtreeSize(t Type) int {
	switch t := t.(type) {
	case *SimpleType:
		n := 1
		for _, arg := range t.Arguments {
			if arg.Star {
				n++
				continue
			}
			n += SubtreeSize(arg.Type)
		}
		return n
	case *CapturedType:
		return 1
	case *DefinitelyNotNullType:
		return SubtreeSize(t.Original)
	case *FlexibleType:
		return SubtreeSize(t.Lower)
	case *AbbreviatedType:
		return SubtreeSize(t.Expanded)
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// Contains reports whether pred holds for t or any type nested in it:
// arguments, bounds, expansions, capture projections and intersection
// members.
func Contains(t Type, pred func(Type) bool) bool {
	if t == nil {
		return false
	}
	if pred(t) {
		return true
	}
	switch t := t.(type) {
	case *SimpleType:
		for _, arg := range t.Arguments {
			if !arg.Star && Contains(arg.Type, pred) {
				return true
			}
		}
		if ic, ok := t.Constructor.(*IntersectionConstructor); ok {
			for _, m := range ic.members {
				if Contains(m, pred) {
					return true
				}
			}
		}
		return false
	case *CapturedType:
		p := t.Constructor.Projection
		return (!p.Star && Contains(p.Type, pred)) || Contains(t.Lower, pred)
	case *DefinitelyNotNullType:
		return Contains(t.Original, pred)
	case *FlexibleType:
		return Contains(t.Lower, pred) || Contains(t.Upper, pred)
	case *AbbreviatedType:
		return Contains(t.Expanded, pred) || Contains(t.Abbreviation, pred)
	default:
		panic(fmt.Sprintf("unknown type shape %T", t))
	}
}

// ContainsConstructor reports whether c occurs anywhere in t.
func ContainsConstructor(t Type, c TypeConstructor) bool {
	return Contains(t, func(n Type) bool {
		switch n := n.(type) {
		case *SimpleType:
			return n.Constructor == c
		case *CapturedType:
			return TypeConstructor(n.Constructor) == c
		}
		return false
	})
}
