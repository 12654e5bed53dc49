package typesystem

// Variance is the declaration-site or use-site variance of a type argument.
type Variance int

const (
	Invariant Variance = iota
	In
	Out
)

func (v Variance) String() string {
	switch v {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return ""
	}
}

// Opposite flips in and out; invariant stays invariant.
func (v Variance) Opposite() Variance {
	switch v {
	case In:
		return Out
	case Out:
		return In
	default:
		return Invariant
	}
}

// Combine returns the effective variance of a use-site projection applied to a
// parameter declared with the given variance. ok is false when the two
// conflict (in against out), which makes the argument a star projection.
func Combine(declared, use Variance) (effective Variance, ok bool) {
	if declared == Invariant {
		return use, true
	}
	if use == Invariant || use == declared {
		return declared, true
	}
	return Invariant, false
}

// Projection is a type argument: a variance-annotated type or a star.
type Projection struct {
	Kind Variance
	Type Type
	Star bool
}

// StarProjection returns the `*` argument.
func StarProjection() Projection {
	return Projection{Star: true}
}

// NewProjection returns a projection of t with the given use-site variance.
func NewProjection(kind Variance, t Type) Projection {
	return Projection{Kind: kind, Type: t}
}

// InvariantProjection returns t used without a use-site variance.
func InvariantProjection(t Type) Projection {
	return Projection{Kind: Invariant, Type: t}
}

func (p Projection) String() string {
	if p.Star {
		return "*"
	}
	if p.Kind == Invariant {
		return p.Type.String()
	}
	return p.Kind.String() + " " + p.Type.String()
}
