package substitutor

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/funvibe/typesubst/internal/diagnostics"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	xmaps "golang.org/x/exp/maps"
)

type empty struct{}

// Empty substitutes nothing. It is the identity of Compose.
var Empty Substitutor = empty{}

func (empty) SubstituteConstructor(ts.TypeConstructor) ts.Type { return nil }
func (empty) IsEmpty() bool                                     { return true }
func (empty) String() string                                    { return "{}" }

// Map substitutes constructors by direct lookup. It is what a constraint
// system produces once its variables are fixed.
type Map struct {
	mapping map[ts.TypeConstructor]ts.Type
}

// NewMap copies mapping into a new substitutor.
func NewMap(mapping map[ts.TypeConstructor]ts.Type) *Map {
	return &Map{mapping: maps.Clone(mapping)}
}

// NewParameterMap maps the i-th parameter to the i-th type.
func NewParameterMap(params []*ts.TypeParameter, types []ts.Type) *Map {
	if len(params) != len(types) {
		diagnostics.Fatal("parameter and type lists differ in length",
			"parameters", len(params), "types", len(types))
	}
	m := make(map[ts.TypeConstructor]ts.Type, len(params))
	for i, p := range params {
		m[p.Constructor()] = types[i]
	}
	return &Map{mapping: m}
}

func (m *Map) SubstituteConstructor(c ts.TypeConstructor) ts.Type { return m.mapping[c] }
func (m *Map) IsEmpty() bool                                     { return len(m.mapping) == 0 }
func (m *Map) Len() int                                          { return len(m.mapping) }

// Keys returns the substituted constructors ordered by name.
func (m *Map) Keys() []ts.TypeConstructor {
	keys := xmaps.Keys(m.mapping)
	slices.SortFunc(keys, func(a, b ts.TypeConstructor) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

func (m *Map) String() string {
	parts := make([]string, 0, len(m.mapping))
	for _, k := range m.Keys() {
		parts = append(parts, fmt.Sprintf("%s -> %s", k, m.mapping[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FreshVariables instantiates a declaration: the i-th original parameter is
// replaced by the i-th fresh variable type.
type FreshVariables struct {
	original  []*ts.TypeParameter
	variables []ts.Type
}

// NewFreshVariables pairs original parameters with their fresh variables.
func NewFreshVariables(original []*ts.TypeParameter, variables []ts.Type) *FreshVariables {
	if len(original) != len(variables) {
		diagnostics.Fatal("fresh variables do not match the declaration's parameters",
			"parameters", len(original), "variables", len(variables))
	}
	return &FreshVariables{original: slices.Clone(original), variables: slices.Clone(variables)}
}

// SubstituteConstructor only answers for the exact parameters it was built
// from; a parameter of another declaration sharing an index is left alone.
func (f *FreshVariables) SubstituteConstructor(c ts.TypeConstructor) ts.Type {
	pc, ok := c.(*ts.ParameterConstructor)
	if !ok {
		return nil
	}
	i := pc.Parameter.Index
	if i < 0 || i >= len(f.variables) {
		return nil
	}
	if f.original[i].Constructor() != pc {
		return nil
	}
	return f.variables[i]
}

func (f *FreshVariables) IsEmpty() bool { return len(f.variables) == 0 }

// Variables returns the fresh variable types in parameter order.
func (f *FreshVariables) Variables() []ts.Type { return slices.Clone(f.variables) }

func (f *FreshVariables) String() string {
	parts := make([]string, len(f.original))
	for i, p := range f.original {
		parts[i] = fmt.Sprintf("%s -> %s", p.QualifiedName(), f.variables[i])
	}
	return "fresh{" + strings.Join(parts, ", ") + "}"
}
