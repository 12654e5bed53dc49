package substitutor

import (
	"testing"

	"github.com/funvibe/typesubst/internal/diagnostics"
	"github.com/funvibe/typesubst/internal/notation"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg *ts.Registry
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	r := ts.NewRegistry()
	for _, name := range []string{"Int", "String", "Foo", "Dog", "Animal", "Named"} {
		_, err := r.DeclareClass(name, ts.Class)
		require.NoError(t, err)
	}
	declare := func(name string, params ...ts.ParameterSpec) {
		_, err := r.DeclareClass(name, ts.Class, params...)
		require.NoError(t, err)
	}
	declare("List", ts.ParameterSpec{Name: "E", Variance: ts.Out})
	declare("MutableList", ts.ParameterSpec{Name: "E"})
	declare("Comparable", ts.ParameterSpec{Name: "T", Variance: ts.In})
	declare("Box", ts.ParameterSpec{Name: "T"})
	declare("Pair", ts.ParameterSpec{Name: "A", Variance: ts.Out}, ts.ParameterSpec{Name: "B", Variance: ts.Out})
	r.Freeze()
	return &fixture{reg: r}
}

func (f *fixture) parse(t testing.TB, s string) ts.Type {
	t.Helper()
	typ, err := notation.Parse(s, notation.Scope{Registry: f.reg})
	require.NoError(t, err, "parse %q", s)
	return typ
}

func (f *fixture) param(t testing.TB, qualified string) *ts.TypeParameter {
	t.Helper()
	p, ok := f.reg.LookupParameter(qualified)
	require.True(t, ok, "parameter %s", qualified)
	return p
}

func (f *fixture) class(name string) ts.TypeConstructor {
	return f.reg.MustLookup(name)
}

// mapping builds a Map from qualified parameter names to parsed types.
func (f *fixture) mapping(t testing.TB, kv ...string) *Map {
	t.Helper()
	m := make(map[ts.TypeConstructor]ts.Type, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[f.param(t, kv[i]).Constructor()] = f.parse(t, kv[i+1])
	}
	return NewMap(m)
}

// internalError runs fn and returns the internal error it raised, if any.
func internalError(fn func()) (ie *diagnostics.InternalError) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*diagnostics.InternalError)
			if !ok {
				panic(r)
			}
			ie = e
		}
	}()
	fn()
	return nil
}
