package scenario

import (
	"slices"
	"strings"

	"github.com/funvibe/typesubst/internal/inference"
	"github.com/funvibe/typesubst/internal/notation"
	"github.com/funvibe/typesubst/internal/substitutor"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Suite is a declared scenario: a frozen registry and the built substitutors.
type Suite struct {
	Registry     *ts.Registry
	Substitutors map[string]substitutor.Substitutor
	Cases        []CaseSpec
}

// Declare builds the registry and the substitutors of doc.
func Declare(doc *Document) (*Suite, error) {
	reg := ts.NewRegistry()
	classes := make([]*ts.ClassConstructor, len(doc.Classes))
	for i, spec := range doc.Classes {
		c, err := declareClass(reg, spec)
		if err != nil {
			return nil, err
		}
		classes[i] = c
	}
	// Supertypes and bounds may mention any class, including the one being
	// declared, so they are attached once every name exists.
	for i, spec := range doc.Classes {
		if err := defineClass(reg, classes[i], spec); err != nil {
			return nil, errors.Wrapf(err, "class %s", spec.Name)
		}
	}
	reg.Freeze()

	suite := &Suite{
		Registry:     reg,
		Substitutors: make(map[string]substitutor.Substitutor, len(doc.Substitutors)),
		Cases:        doc.Cases,
	}
	b := &builder{reg: reg, specs: doc.Substitutors, built: suite.Substitutors}
	for _, name := range sortedKeys(doc.Substitutors) {
		if _, err := b.build(name, nil); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Cases {
		if c.Substitutor == "" {
			continue
		}
		if _, ok := suite.Substitutors[c.Substitutor]; !ok {
			return nil, errors.Errorf("case %q: unknown substitutor %q", c.Name, c.Substitutor)
		}
	}
	return suite, nil
}

func declareClass(reg *ts.Registry, spec ClassSpec) (*ts.ClassConstructor, error) {
	kind, ok := ts.ParseClassKind(spec.Kind)
	if !ok {
		return nil, errors.Errorf("class %s: unknown kind %q", spec.Name, spec.Kind)
	}
	params := make([]ts.ParameterSpec, len(spec.Params))
	for i, p := range spec.Params {
		ps, err := parseParameter(p)
		if err != nil {
			return nil, errors.Wrapf(err, "class %s", spec.Name)
		}
		params[i] = ps
	}
	c, err := reg.DeclareClass(spec.Name, kind, params...)
	return c, errors.Wrap(err, "declaring classes")
}

// parseParameter reads "T", "in T" or "out T".
func parseParameter(s string) (ts.ParameterSpec, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1:
		return ts.ParameterSpec{Name: fields[0]}, nil
	case len(fields) == 2 && fields[0] == "in":
		return ts.ParameterSpec{Name: fields[1], Variance: ts.In}, nil
	case len(fields) == 2 && fields[0] == "out":
		return ts.ParameterSpec{Name: fields[1], Variance: ts.Out}, nil
	}
	return ts.ParameterSpec{}, errors.Errorf("malformed parameter %q", s)
}

func defineClass(reg *ts.Registry, c *ts.ClassConstructor, spec ClassSpec) error {
	scope := notation.Scope{Registry: reg, Parameters: c.Parameters()}
	if len(spec.Supertypes) > 0 {
		supers, err := parseAll(spec.Supertypes, scope)
		if err != nil {
			return errors.Wrap(err, "supertypes")
		}
		if err := reg.SetSupertypes(c, supers); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(spec.Bounds) {
		i := slices.IndexFunc(c.Parameters(), func(p *ts.TypeParameter) bool { return p.Name == name })
		if i < 0 {
			return errors.Errorf("bounds for unknown parameter %s", name)
		}
		bounds, err := parseAll(spec.Bounds[name], scope)
		if err != nil {
			return errors.Wrapf(err, "bounds of %s", name)
		}
		if err := reg.SetUpperBounds(c.Parameters()[i], bounds); err != nil {
			return err
		}
	}
	return nil
}

func parseAll(inputs []string, scope notation.Scope) ([]ts.Type, error) {
	out := make([]ts.Type, len(inputs))
	for i, in := range inputs {
		t, err := notation.Parse(in, scope)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

type builder struct {
	reg   *ts.Registry
	specs map[string]SubstitutorSpec
	built map[string]substitutor.Substitutor
}

// build constructs a named substitutor; path detects then-cycles.
func (b *builder) build(name string, path []string) (substitutor.Substitutor, error) {
	if s, ok := b.built[name]; ok {
		return s, nil
	}
	if slices.Contains(path, name) {
		return nil, errors.Errorf("substitutor cycle: %s -> %s", strings.Join(path, " -> "), name)
	}
	spec, ok := b.specs[name]
	if !ok {
		return nil, errors.Errorf("unknown substitutor %q", name)
	}
	path = append(path, name)

	var (
		s   substitutor.Substitutor
		err error
	)
	switch {
	case len(spec.Map) > 0:
		s, err = b.mapSubstitutor(spec)
	case spec.Fresh != "":
		s, err = b.freshSubstitutor(spec.Fresh)
	default:
		s, err = b.classical(spec, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "substitutor %s", name)
	}
	b.built[name] = s
	return s, nil
}

func (b *builder) mapSubstitutor(spec SubstitutorSpec) (*substitutor.Map, error) {
	var scope []*ts.TypeParameter
	if spec.Scope != "" {
		c, ok := b.reg.Lookup(spec.Scope)
		if !ok {
			return nil, ts.NewClassifierNotFoundError(spec.Scope)
		}
		scope = c.Parameters()
	}
	mapping := make(map[ts.TypeConstructor]ts.Type, len(spec.Map))
	for _, key := range sortedKeys(spec.Map) {
		p, err := b.parameter(key, scope)
		if err != nil {
			return nil, err
		}
		t, err := notation.Parse(spec.Map[key], notation.Scope{Registry: b.reg, Parameters: scope})
		if err != nil {
			return nil, errors.Wrapf(err, "value of %s", key)
		}
		mapping[p.Constructor()] = t
	}
	return substitutor.NewMap(mapping), nil
}

// parameter resolves a map key: a qualified name, a parameter of scope, or
// the only parameter in the registry with that name.
func (b *builder) parameter(key string, scope []*ts.TypeParameter) (*ts.TypeParameter, error) {
	if p, ok := b.reg.LookupParameter(key); ok {
		return p, nil
	}
	if i := slices.IndexFunc(scope, func(p *ts.TypeParameter) bool { return p.Name == key }); i >= 0 {
		return scope[i], nil
	}
	var found []*ts.TypeParameter
	for _, c := range b.reg.Classes() {
		for _, p := range c.Parameters() {
			if p.Name == key {
				found = append(found, p)
			}
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.Errorf("unknown parameter %s", key)
	case 1:
		return found[0], nil
	}
	return nil, errors.Errorf("parameter %s is ambiguous, qualify it (%s)", key, found[0].QualifiedName())
}

func (b *builder) freshSubstitutor(class string) (*substitutor.FreshVariables, error) {
	c, ok := b.reg.Lookup(class)
	if !ok {
		return nil, ts.NewClassifierNotFoundError(class)
	}
	params := c.Parameters()
	variables := make([]ts.Type, len(params))
	for i, p := range params {
		variables[i] = inference.NewTypeVariable("", p).DefaultType()
	}
	return substitutor.NewFreshVariables(params, variables), nil
}

func (b *builder) classical(spec SubstitutorSpec, path []string) (substitutor.Substitutor, error) {
	t, err := notation.Parse(spec.Classical, notation.Scope{Registry: b.reg})
	if err != nil {
		return nil, err
	}
	receiver, ok := t.(*ts.SimpleType)
	if !ok || len(receiver.Arguments) == 0 {
		return nil, errors.Errorf("classical receiver %s is not a parametrized class type", t)
	}
	first := substitutor.ReceiverSubstitution(receiver)
	if spec.Then == "" {
		return substitutor.Compose(first, substitutor.Empty), nil
	}
	second, err := b.build(spec.Then, path)
	if err != nil {
		return nil, err
	}
	return substitutor.Compose(first, second), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
