package substitutor

import (
	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// Composite runs a classical substitution first and this package's engine on
// whatever it produced.
type Composite struct {
	first  Classical
	second Substitutor
}

// Compose layers first before second. An empty first pass adds nothing, so
// second is returned as is.
func Compose(first Classical, second Substitutor) Substitutor {
	if first == nil || first.IsEmpty() {
		return second
	}
	return &Composite{first: first, second: second}
}

// SubstituteConstructor tries the classical pass on the constructor's
// default type; a change is handed to second for a final pass, otherwise
// second answers for the constructor directly.
func (c *Composite) SubstituteConstructor(tc ts.TypeConstructor) ts.Type {
	def := ts.DefaultType(tc)
	if def == nil {
		return c.second.SubstituteConstructor(tc)
	}
	p, changed := c.first.SubstituteProjection(ts.InvariantProjection(def))
	if !changed || p.Star {
		return c.second.SubstituteConstructor(tc)
	}
	return SafeSubstitute(c.second, p.Type)
}

// SubstituteProjection applies both passes to a projection.
func (c *Composite) SubstituteProjection(p ts.Projection) ts.Projection {
	q, _ := c.first.SubstituteProjection(p)
	return SubstituteProjection(c.second, q)
}

func (c *Composite) IsEmpty() bool {
	return c.first.IsEmpty() && c.second.IsEmpty()
}

func (c *Composite) String() string {
	return c.first.String() + " then " + c.second.String()
}
