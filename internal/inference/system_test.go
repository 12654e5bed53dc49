package inference

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/funvibe/typesubst/internal/diagnostics"
	"github.com/funvibe/typesubst/internal/notation"
	"github.com/funvibe/typesubst/internal/substitutor"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg  *ts.Registry
	sys  *System
	vars map[string]ts.Type
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := ts.NewRegistry()
	declare := func(name string, params ...ts.ParameterSpec) *ts.ClassConstructor {
		c, err := r.DeclareClass(name, ts.Class, params...)
		require.NoError(t, err)
		return c
	}
	for _, name := range []string{"Number", "Animal", "Named"} {
		declare(name)
	}
	declare("Comparable", ts.ParameterSpec{Name: "T", Variance: ts.In})
	declare("List", ts.ParameterSpec{Name: "E", Variance: ts.Out})
	declare("MutableList", ts.ParameterSpec{Name: "E"})
	declare("Box", ts.ParameterSpec{Name: "T"})
	declare("Sorted", ts.ParameterSpec{Name: "T"})
	for _, name := range []string{"Int", "String", "Dog", "Cat"} {
		declare(name)
	}

	f := &fixture{reg: r, vars: map[string]ts.Type{}}
	supers := map[string][]string{
		"Int":         {"Number", "Comparable<Int>"},
		"String":      {"Comparable<String>"},
		"Dog":         {"Animal", "Named"},
		"Cat":         {"Animal"},
		"MutableList": {"List<MutableList.E>"},
	}
	for name, ss := range supers {
		var types []ts.Type
		for _, s := range ss {
			types = append(types, f.parse(t, s))
		}
		require.NoError(t, r.SetSupertypes(r.MustLookup(name), types))
	}
	sortedT, _ := r.LookupParameter("Sorted.T")
	require.NoError(t, r.SetUpperBounds(sortedT, []ts.Type{f.parse(t, "Comparable<Sorted.T>")}))
	r.Freeze()

	f.sys = NewSystem(r, nil)
	return f
}

func (f *fixture) parse(t *testing.T, s string) ts.Type {
	t.Helper()
	typ, err := notation.Parse(s, notation.Scope{Registry: f.reg, Variables: f.vars})
	require.NoError(t, err, "parse %q", s)
	return typ
}

// variable registers a free-standing variable usable by name in parse.
func (f *fixture) variable(name string) *TypeVariable {
	v := NewTypeVariable(name, nil)
	f.sys.RegisterVariable(v)
	f.vars[name] = v.DefaultType()
	return v
}

func (f *fixture) subtype(t *testing.T, lower, upper string) {
	t.Helper()
	f.sys.AddSubtypeConstraint(f.parse(t, lower), f.parse(t, upper), lower+" <: "+upper)
}

func (f *fixture) result(t *testing.T, v *TypeVariable) string {
	t.Helper()
	r, ok := f.sys.Result(v)
	require.True(t, ok, "%s is not fixed", v)
	return r.String()
}

func fatal(fn func()) (err error) {
	defer diagnostics.Recover(&err)
	fn()
	return nil
}

func TestInstantiate(t *testing.T) {
	f := newFixture(t)
	box := f.reg.MustLookup("Box")
	fresh, vars := f.sys.Instantiate(box.Parameters())

	require.Len(t, vars, 1)
	assert.Equal(t, "T'", vars[0].String())
	assert.Same(t, box.Parameters()[0], vars[0].Constructor.Origin)
	assert.Equal(t, "Box<T'>", substitutor.Substitute(fresh, f.parse(t, "Box<Box.T>")).String())
	assert.Equal(t, vars, f.sys.Variables())
}

func TestInstantiateWithRecursiveUpperBound(t *testing.T) {
	f := newFixture(t)
	_, vars := f.sys.Instantiate(f.reg.MustLookup("Sorted").Parameters())
	v := vars[0]
	f.vars["T'"] = v.DefaultType()

	cs := f.sys.Constraints(v)
	require.Len(t, cs, 1)
	assert.Equal(t, Upper, cs[0].Kind)
	assert.Equal(t, "Comparable<T'>", cs[0].Type.String())

	f.subtype(t, "Int", "T'")
	f.sys.Complete()
	assert.Empty(t, f.sys.Errors())
	assert.Equal(t, "Int", f.result(t, v))
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		name        string
		constraints [][2]string
		want        string
	}{
		{"single lower bound", [][2]string{{"Int", "T'"}}, "Int"},
		{"common superclass", [][2]string{{"Dog", "T'"}, {"Cat", "T'"}}, "Animal"},
		{"nullable lower bound", [][2]string{{"Dog?", "T'"}, {"Cat", "T'"}}, "Animal?"},
		{"contravariant arguments become star", [][2]string{{"Int", "T'"}, {"String", "T'"}}, "Comparable<*>"},
		{"covariant arguments merge", [][2]string{{"List<Dog>", "T'"}, {"List<Cat>", "T'"}}, "List<Animal>"},
		{"supertype arguments", [][2]string{{"MutableList<Dog>", "T'"}, {"List<Cat>", "T'"}}, "List<Animal>"},
		{"nothing is ignored", [][2]string{{"Nothing", "T'"}, {"Dog", "T'"}}, "Dog"},
		{"upper bounds intersect", [][2]string{{"T'", "Named"}, {"T'", "Animal"}}, "{Named & Animal}"},
		{"lower bounds win over upper", [][2]string{{"T'", "Animal"}, {"Dog", "T'"}}, "Dog"},
		{"no bounds", nil, "Any?"},
		{"nullable variable occurrence", [][2]string{{"Int?", "T'?"}}, "Int"},
		{"flexible lower", [][2]string{{"(Int..Int?)", "T'"}}, "Int"},
		{"flexible upper", [][2]string{{"T'", "(Int..Int?)"}}, "Int?"},
		{"through a supertype", [][2]string{{"MutableList<Dog>", "List<T'>"}}, "Dog"},
		{"contravariant slot", [][2]string{{"Comparable<Named>", "Comparable<T'>"}}, "Named"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			v := f.variable("T'")
			for _, c := range tt.constraints {
				f.subtype(t, c[0], c[1])
			}
			f.sys.Complete()
			assert.Empty(t, f.sys.Errors())
			assert.Equal(t, tt.want, f.result(t, v))
		})
	}
}

func TestEqualityConstraints(t *testing.T) {
	f := newFixture(t)
	v := f.variable("T'")
	f.sys.AddEqualityConstraint(f.parse(t, "MutableList<T'>"), f.parse(t, "MutableList<Int>"), "assignment")

	cs := f.sys.Constraints(v)
	require.Len(t, cs, 1)
	assert.Equal(t, Equality, cs[0].Kind)
	assert.Equal(t, "assignment", cs[0].Position)

	f.sys.Complete()
	assert.Equal(t, "Int", f.result(t, v))
}

func TestCovariantEqualityDecomposesBothWays(t *testing.T) {
	f := newFixture(t)
	v := f.variable("T'")
	f.sys.AddEqualityConstraint(f.parse(t, "List<T'>"), f.parse(t, "List<Int>"), "")

	kinds := map[BoundKind]string{}
	for _, c := range f.sys.Constraints(v) {
		kinds[c.Kind] = c.Type.String()
	}
	assert.Equal(t, map[BoundKind]string{Upper: "Int", Lower: "Int"}, kinds)
}

func TestChainedVariables(t *testing.T) {
	f := newFixture(t)
	a := f.variable("A'")
	b := f.variable("B'")
	f.subtype(t, "A'", "B'")
	f.subtype(t, "Dog", "A'")

	// Incorporation carried Dog over to B'.
	assert.Contains(t, f.sys.Constraints(b), Constraint{Kind: Lower, Type: f.vars["A'"], Position: "A' <: B'"})
	found := false
	for _, c := range f.sys.Constraints(b) {
		if c.Kind == Lower && c.Type.String() == "Dog" {
			found = true
		}
	}
	assert.True(t, found, "B' bounds: %v", f.sys.Constraints(b))

	sub := f.sys.Complete()
	assert.Empty(t, f.sys.Errors())
	assert.Equal(t, "Dog", f.result(t, a))
	assert.Equal(t, "Dog", f.result(t, b))
	assert.Equal(t, 2, sub.Len())
}

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper string
		reason       string
	}{
		{"unrelated classes", "String", "Int", "no supertype of String is built on Int"},
		{"nullable into non-null", "Int?", "Int", "nullable type flows into a non-null type"},
		{"nullable variable into non-null", "T'?", "Int", "nullable type flows into a non-null type"},
		{"invariant mismatch", "MutableList<out Int>", "MutableList<Int>", "projection out Int does not fit Int"},
		{"star into contravariant slot", "Comparable<*>", "Comparable<Int>", "star projection is not a subtype of Int"},
		{"parameter is not a class", "Box.T", "Int", "no supertype of Any is built on Int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.variable("T'")
			f.subtype(t, tt.lower, tt.upper)
			require.Len(t, f.sys.Errors(), 1)
			var ce *ConstraintError
			require.True(t, errors.As(f.sys.Errors()[0], &ce))
			assert.Equal(t, tt.reason, ce.Reason)
			assert.True(t, f.sys.HasContradiction())
		})
	}
}

func TestSatisfiedWithoutBounds(t *testing.T) {
	for _, c := range [][2]string{
		{"Dog", "Animal"},
		{"Dog", "Any"},
		{"Dog?", "Any?"},
		{"Nothing", "Int"},
		{"dynamic", "Int"},
		{"Int", "dynamic"},
		{"Captured(out Dog)", "Animal"},
		{"{Dog & Named}", "Named"},
		{"{Cat & Named}", "Animal"},
		{"Int", "Captured(in Number)"},
		{"List<Dog>", "List<out Any?>"},
		{"List<*>", "List<Any?>"},
		{"ERROR", "Int"},
		{"[Box<Int> = MutableList<Dog>]", "List<Animal>"},
	} {
		f := newFixture(t)
		f.subtype(t, c[0], c[1])
		assert.Empty(t, f.sys.Errors(), "%s <: %s", c[0], c[1])
	}
}

func TestTransactions(t *testing.T) {
	f := newFixture(t)
	v := f.variable("T'")
	f.subtype(t, "Dog", "T'")

	tx := f.sys.PrepareTransaction()
	f.subtype(t, "Cat", "T'")
	f.subtype(t, "String", "Int")
	extra := NewTypeVariable("X'", nil)
	f.sys.RegisterVariable(extra)
	require.Len(t, f.sys.Errors(), 1)
	require.Len(t, f.sys.Constraints(v), 2)

	err := fatal(func() { f.sys.PrepareTransaction() })
	_, ok := diagnostics.AsInternal(err)
	assert.True(t, ok, "nested transaction must be fatal")

	tx.Rollback()
	assert.Empty(t, f.sys.Errors())
	assert.Len(t, f.sys.Constraints(v), 1)
	assert.Len(t, f.sys.Variables(), 1)
	assert.Nil(t, f.sys.Constraints(extra))

	tx = f.sys.PrepareTransaction()
	f.subtype(t, "Cat", "T'")
	tx.Commit()
	assert.Len(t, f.sys.Constraints(v), 2)

	assert.Error(t, fatal(func() { tx.Commit() }))
}

func TestFixVariable(t *testing.T) {
	f := newFixture(t)
	v := f.variable("T'")
	u := f.variable("U'")
	f.subtype(t, "Dog", "T'")
	f.subtype(t, "List<T'>", "U'")

	assert.False(t, f.sys.IsProperType(f.parse(t, "List<T'>")))
	assert.Error(t, fatal(func() { f.sys.FixVariable(v, f.parse(t, "U'")) }), "improper result")

	f.sys.FixVariable(v, f.parse(t, "Int"))
	require.Len(t, f.sys.Errors(), 1, "Dog does not fit Int")
	assert.True(t, f.sys.IsProperType(f.parse(t, "List<T'>")))

	cs := f.sys.Constraints(u)
	require.Len(t, cs, 1)
	assert.Equal(t, "List<Int>", cs[0].Type.String())

	assert.Equal(t, "List<Int>", substitutor.Substitute(f.sys.BuildCurrentSubstitutor(), f.parse(t, "List<T'>")).String())
	assert.Error(t, fatal(func() { f.sys.FixVariable(v, f.parse(t, "Int")) }), "fixed twice")
}

func TestStateMachine(t *testing.T) {
	f := newFixture(t)
	f.variable("T'")
	assert.Equal(t, Building, f.sys.State())
	f.sys.Complete()
	assert.Equal(t, Frozen, f.sys.State())

	for name, fn := range map[string]func(){
		"register":    func() { f.sys.RegisterVariable(NewTypeVariable("X'", nil)) },
		"constraint":  func() { f.subtype(t, "Int", "Int") },
		"transaction": func() { f.sys.PrepareTransaction() },
		"complete":    func() { f.sys.Complete() },
	} {
		err := fatal(fn)
		ie, ok := diagnostics.AsInternal(err)
		require.True(t, ok, name)
		state, _ := ie.Component("state")
		assert.Equal(t, Frozen, state, name)
	}
}

func TestRegisterTwiceIsFatal(t *testing.T) {
	f := newFixture(t)
	v := f.variable("T'")
	assert.Error(t, fatal(func() { f.sys.RegisterVariable(v) }))
}

func TestTraceLogging(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t)
	f.sys = NewSystem(f.reg, log.New(&buf, "", 0))
	f.variable("T'")
	f.subtype(t, "Int", "T'")
	f.sys.Complete()

	out := buf.String()
	prefix := "[" + f.sys.ID.String()[:8] + "] "
	assert.Contains(t, out, prefix+"register T'")
	assert.Contains(t, out, prefix+"Int <: T' (Int <: T')")
	assert.Contains(t, out, prefix+"fix T' := Int")
}
