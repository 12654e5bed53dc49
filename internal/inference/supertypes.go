package inference

import (
	"github.com/funvibe/typesubst/internal/substitutor"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/hashicorp/go-set/v3"
)

// maxCommonSupertypeDepth limits how deep argument positions are unified
// before falling back to a star.
const maxCommonSupertypeDepth = 3

// supertypeChain lists t and all its transitive supertypes, breadth first.
// Each supertype is rewritten in terms of the arguments of the type it was
// reached from, so List<out Dog> reaches Collection<out Dog>.
func supertypeChain(reg ts.ClassifierRegistry, t *ts.SimpleType) []*ts.SimpleType {
	seen := set.New[ts.TypeConstructor](8)
	seen.Insert(t.Constructor)
	chain := []*ts.SimpleType{t}
	for i := 0; i < len(chain); i++ {
		cur := chain[i]
		receiver := substitutor.ReceiverSubstitution(cur)
		for _, st := range reg.SupertypesOf(cur.Constructor) {
			p, _ := receiver.SubstituteProjection(ts.InvariantProjection(st))
			if p.Star {
				continue
			}
			next, ok := stripNullability(lowerView(p.Type)).(*ts.SimpleType)
			if !ok || !seen.Insert(next.Constructor) {
				continue
			}
			chain = append(chain, next)
		}
	}
	return chain
}

// findSupertype returns the supertype of t built on target, or nil.
func findSupertype(reg ts.ClassifierRegistry, t *ts.SimpleType, target ts.TypeConstructor) *ts.SimpleType {
	for _, s := range supertypeChain(reg, t) {
		if s.Constructor == target {
			return s
		}
	}
	return nil
}

// commonSupertype is a least upper bound approximation: the first class in
// the breadth-first supertype order of the first type that all types share,
// with arguments merged per declaration variance.
func commonSupertype(reg ts.ClassifierRegistry, types []ts.Type) ts.Type {
	return commonSupertypeAt(reg, types, 0)
}

func commonSupertypeAt(reg ts.ClassifierRegistry, types []ts.Type, depth int) ts.Type {
	nullable := false
	var distinct []ts.Type
	for _, t := range types {
		t = lowerView(t)
		if t.IsMarkedNullable() {
			nullable = true
		}
		n := stripNullability(t)
		if c, ok := ts.ConstructorOf(n).(*ts.ClassConstructor); ok && reg.IsNothing(c) {
			continue
		}
		if !containsEqual(distinct, n) {
			distinct = append(distinct, n)
		}
	}
	switch len(distinct) {
	case 0:
		return ts.MakeNullableIfNeeded(reg.NothingType(), nullable)
	case 1:
		return ts.MakeNullableIfNeeded(distinct[0], nullable)
	}

	anyType := ts.MakeNullableIfNeeded(reg.AnyType(), nullable)
	simple := make([]*ts.SimpleType, len(distinct))
	for i, t := range distinct {
		st, ok := t.(*ts.SimpleType)
		if !ok {
			return anyType
		}
		simple[i] = st
	}

candidates:
	for _, candidate := range supertypeChain(reg, simple[0]) {
		if _, ok := candidate.Constructor.(*ts.ClassConstructor); !ok {
			continue
		}
		supers := []*ts.SimpleType{candidate}
		for _, other := range simple[1:] {
			s := findSupertype(reg, other, candidate.Constructor)
			if s == nil {
				continue candidates
			}
			supers = append(supers, s)
		}
		return ts.MakeNullableIfNeeded(mergeArguments(reg, supers, depth), nullable)
	}
	return anyType
}

// mergeArguments builds one occurrence of the shared class whose arguments
// cover the arguments of every given occurrence.
func mergeArguments(reg ts.ClassifierRegistry, supers []*ts.SimpleType, depth int) *ts.SimpleType {
	first := supers[0]
	params := first.Constructor.Parameters()
	if len(params) == 0 {
		return &ts.SimpleType{Constructor: first.Constructor}
	}
	args := make([]ts.Projection, len(params))
	for i, p := range params {
		args[i] = mergeArgument(reg, p, supers, i, depth)
	}
	return &ts.SimpleType{Constructor: first.Constructor, Arguments: args}
}

func mergeArgument(reg ts.ClassifierRegistry, p *ts.TypeParameter, supers []*ts.SimpleType, i, depth int) ts.Projection {
	if len(supers[0].Arguments) <= i {
		return ts.StarProjection()
	}
	first := supers[0].Arguments[i]
	same, covariant := true, true
	var types []ts.Type
	for _, s := range supers {
		if len(s.Arguments) <= i {
			return ts.StarProjection()
		}
		arg := s.Arguments[i]
		if !ts.EqualProjections(first, arg) {
			same = false
		}
		if arg.Star {
			return ts.StarProjection()
		}
		if kind, ok := ts.Combine(p.Variance, arg.Kind); !ok || kind == ts.In {
			covariant = false
		}
		types = append(types, arg.Type)
	}
	if same {
		return first
	}
	if !covariant || depth >= maxCommonSupertypeDepth {
		return ts.StarProjection()
	}
	merged := commonSupertypeAt(reg, types, depth+1)
	if p.Variance == ts.Out {
		return ts.InvariantProjection(merged)
	}
	return ts.NewProjection(ts.Out, merged)
}

func containsEqual(types []ts.Type, t ts.Type) bool {
	for _, o := range types {
		if ts.Equal(o, t) {
			return true
		}
	}
	return false
}
