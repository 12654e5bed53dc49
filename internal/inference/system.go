package inference

import (
	"io"
	"log"
	"maps"
	"slices"

	"github.com/funvibe/typesubst/internal/diagnostics"
	"github.com/funvibe/typesubst/internal/substitutor"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/google/uuid"
)

type variableState struct {
	variable    *TypeVariable
	constraints []Constraint
}

// System collects constraints on registered variables and fixes them.
// It is not safe for concurrent use; one System serves one call site.
type System struct {
	ID uuid.UUID

	registry ts.ClassifierRegistry
	logger   *log.Logger
	state    State

	variables []*variableState
	byCtor    map[*ts.VariableConstructor]*variableState
	fixed     map[*ts.VariableConstructor]ts.Type
	errors    []error

	tx *Transaction
}

// NewSystem returns an empty system in the Building state. A nil logger
// discards trace output.
func NewSystem(registry ts.ClassifierRegistry, logger *log.Logger) *System {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &System{
		ID:       uuid.New(),
		registry: registry,
		logger:   logger,
		byCtor:   make(map[*ts.VariableConstructor]*variableState),
		fixed:    make(map[*ts.VariableConstructor]ts.Type),
	}
}

func (s *System) State() State { return s.state }

func (s *System) checkState(allowed ...State) {
	if !slices.Contains(allowed, s.state) {
		diagnostics.Fatal("constraint system used in the wrong state",
			"state", s.state, "allowed", allowed, "session", s.ID)
	}
}

func (s *System) tracef(format string, args ...any) {
	s.logger.Printf("[%s] "+format, append([]any{s.ID.String()[:8]}, args...)...)
}

// RegisterVariable makes v known to the system.
func (s *System) RegisterVariable(v *TypeVariable) {
	s.checkState(Building)
	if _, ok := s.byCtor[v.Constructor]; ok {
		diagnostics.Fatal("type variable registered twice", "variable", v, "session", s.ID)
	}
	vs := &variableState{variable: v}
	s.variables = append(s.variables, vs)
	s.byCtor[v.Constructor] = vs
	s.tracef("register %s", v)
}

// Variables returns the registered variables in registration order.
func (s *System) Variables() []*TypeVariable {
	out := make([]*TypeVariable, len(s.variables))
	for i, vs := range s.variables {
		out[i] = vs.variable
	}
	return out
}

// Constraints returns the current bounds of v.
func (s *System) Constraints(v *TypeVariable) []Constraint {
	if vs, ok := s.byCtor[v.Constructor]; ok {
		return slices.Clone(vs.constraints)
	}
	return nil
}

// Instantiate replaces the formal parameters of a declaration with fresh
// registered variables. Declared upper bounds become Upper constraints on
// the variables, rewritten in terms of the variables themselves.
func (s *System) Instantiate(params []*ts.TypeParameter) (*substitutor.FreshVariables, []*TypeVariable) {
	s.checkState(Building)
	vars := make([]*TypeVariable, len(params))
	types := make([]ts.Type, len(params))
	for i, p := range params {
		vars[i] = NewTypeVariable("", p)
		types[i] = vars[i].DefaultType()
		s.RegisterVariable(vars[i])
	}
	fresh := substitutor.NewFreshVariables(params, types)
	for i, p := range params {
		for _, bound := range p.UpperBounds {
			s.AddSubtypeConstraint(types[i], substitutor.Substitute(fresh, bound), "declared upper bound of "+p.QualifiedName())
		}
	}
	return fresh, vars
}

// AddSubtypeConstraint requires lower <: upper.
func (s *System) AddSubtypeConstraint(lower, upper ts.Type, position string) {
	s.checkState(Building, Completion)
	s.tracef("%s <: %s (%s)", lower, upper, position)
	s.newInjector(position).subtype(s.substituteFixed(lower), s.substituteFixed(upper))
}

// AddEqualityConstraint requires a == b.
func (s *System) AddEqualityConstraint(a, b ts.Type, position string) {
	s.checkState(Building, Completion)
	s.tracef("%s == %s (%s)", a, b, position)
	s.newInjector(position).equal(s.substituteFixed(a), s.substituteFixed(b))
}

func (s *System) addError(err *ConstraintError) {
	s.tracef("error: %v", err)
	s.errors = append(s.errors, err)
}

// Errors returns the constraint errors collected so far.
func (s *System) Errors() []error { return slices.Clone(s.errors) }

// HasContradiction reports whether any constraint failed.
func (s *System) HasContradiction() bool { return len(s.errors) > 0 }

// lookup returns the state of an unfixed registered variable.
func (s *System) lookup(c ts.TypeConstructor) (*variableState, bool) {
	vc, ok := c.(*ts.VariableConstructor)
	if !ok {
		return nil, false
	}
	if _, done := s.fixed[vc]; done {
		return nil, false
	}
	vs, ok := s.byCtor[vc]
	return vs, ok
}

// IsProperType reports whether t mentions no unfixed variable.
func (s *System) IsProperType(t ts.Type) bool {
	return !ts.Contains(t, func(n ts.Type) bool {
		_, ok := s.lookup(ts.ConstructorOf(n))
		return ok
	})
}

// BuildCurrentSubstitutor maps every fixed variable to its result.
func (s *System) BuildCurrentSubstitutor() *substitutor.Map {
	m := make(map[ts.TypeConstructor]ts.Type, len(s.fixed))
	for c, t := range s.fixed {
		m[c] = t
	}
	return substitutor.NewMap(m)
}

func (s *System) substituteFixed(t ts.Type) ts.Type {
	if len(s.fixed) == 0 {
		return t
	}
	return substitutor.SafeSubstitute(s.BuildCurrentSubstitutor(), t)
}

// FixVariable sets the result of v. The result must be proper; it is checked
// against the bounds collected so far and then substituted into the bounds
// of the remaining variables.
func (s *System) FixVariable(v *TypeVariable, result ts.Type) {
	s.checkState(Building, Completion)
	vs, ok := s.byCtor[v.Constructor]
	if !ok {
		diagnostics.Fatal("fixing an unregistered type variable", "variable", v, "session", s.ID)
	}
	if prev, done := s.fixed[v.Constructor]; done {
		diagnostics.Fatal("type variable fixed twice", "variable", v, "previous", prev, "result", result)
	}
	if !s.IsProperType(result) {
		diagnostics.Fatal("type variable fixed to a type with unfixed variables", "variable", v, "result", result)
	}
	s.tracef("fix %s := %s", v, result)

	for _, c := range vs.constraints {
		in := s.newInjector(c.Position)
		switch c.Kind {
		case Lower:
			in.subtype(c.Type, result)
		case Upper:
			in.subtype(result, c.Type)
		case Equality:
			in.equal(c.Type, result)
		}
	}
	s.fixed[v.Constructor] = result
	s.substituteFixedVariables()
}

// substituteFixedVariables rewrites the bounds of unfixed variables in terms
// of the fixed results, dropping duplicates that appear.
func (s *System) substituteFixedVariables() {
	sub := s.BuildCurrentSubstitutor()
	for _, vs := range s.variables {
		if _, done := s.fixed[vs.variable.Constructor]; done {
			continue
		}
		var rewritten []Constraint
		for _, c := range vs.constraints {
			c.Type = substitutor.SafeSubstitute(sub, c.Type)
			if !slices.ContainsFunc(rewritten, func(o Constraint) bool { return sameConstraint(o, c) }) {
				rewritten = append(rewritten, c)
			}
		}
		vs.constraints = rewritten
	}
}

// Result returns the fixed type of v, if any.
func (s *System) Result(v *TypeVariable) (ts.Type, bool) {
	t, ok := s.fixed[v.Constructor]
	return t, ok
}

// Complete fixes every remaining variable and freezes the system. Variables
// whose bounds are all proper go first, in registration order.
func (s *System) Complete() *substitutor.Map {
	s.checkState(Building, Completion)
	if s.tx != nil {
		diagnostics.Fatal("completing inside a transaction", "session", s.ID)
	}
	s.state = Completion
	for {
		vs := s.nextToFix()
		if vs == nil {
			break
		}
		s.FixVariable(vs.variable, s.resultFor(vs))
	}
	s.state = Frozen
	return s.BuildCurrentSubstitutor()
}

func (s *System) nextToFix() *variableState {
	var fallback *variableState
	for _, vs := range s.variables {
		if _, done := s.fixed[vs.variable.Constructor]; done {
			continue
		}
		if fallback == nil {
			fallback = vs
		}
		if !slices.ContainsFunc(vs.constraints, func(c Constraint) bool { return !s.IsProperType(c.Type) }) {
			return vs
		}
	}
	return fallback
}

// resultFor picks the type a variable is fixed to: an equality bound, else
// the common supertype of its lower bounds, else the intersection of its
// upper bounds, else Any?.
func (s *System) resultFor(vs *variableState) ts.Type {
	var lowers, uppers []ts.Type
	for _, c := range vs.constraints {
		if !s.IsProperType(c.Type) {
			continue
		}
		switch c.Kind {
		case Equality:
			return c.Type
		case Lower:
			lowers = append(lowers, c.Type)
		case Upper:
			uppers = append(uppers, c.Type)
		}
	}
	if len(lowers) > 0 {
		return commonSupertype(s.registry, lowers)
	}
	if len(uppers) > 0 {
		return ts.Intersect(uppers)
	}
	return ts.MakeNullableAsSpecified(s.registry.AnyType(), true)
}

// Transaction is a rollback point over the system's variables, bounds,
// results and errors.
type Transaction struct {
	s           *System
	variables   []*variableState
	constraints map[*ts.VariableConstructor][]Constraint
	fixed       map[*ts.VariableConstructor]ts.Type
	errors      int
	done        bool
}

// PrepareTransaction opens a transaction. Transactions do not nest.
func (s *System) PrepareTransaction() *Transaction {
	s.checkState(Building, Completion)
	if s.tx != nil {
		diagnostics.Fatal("nested constraint system transaction", "session", s.ID)
	}
	tx := &Transaction{
		s:           s,
		variables:   slices.Clone(s.variables),
		constraints: make(map[*ts.VariableConstructor][]Constraint, len(s.variables)),
		fixed:       maps.Clone(s.fixed),
		errors:      len(s.errors),
	}
	for _, vs := range s.variables {
		tx.constraints[vs.variable.Constructor] = slices.Clone(vs.constraints)
	}
	s.tx = tx
	return tx
}

// Commit keeps everything done since PrepareTransaction.
func (tx *Transaction) Commit() {
	tx.finish()
}

// Rollback restores the system to the state PrepareTransaction saw.
func (tx *Transaction) Rollback() {
	tx.finish()
	s := tx.s
	for _, vs := range s.variables[len(tx.variables):] {
		delete(s.byCtor, vs.variable.Constructor)
	}
	s.variables = tx.variables
	for _, vs := range s.variables {
		vs.constraints = tx.constraints[vs.variable.Constructor]
	}
	s.fixed = tx.fixed
	s.errors = s.errors[:tx.errors]
}

func (tx *Transaction) finish() {
	if tx.done || tx.s.tx != tx {
		diagnostics.Fatal("transaction already closed", "session", tx.s.ID)
	}
	tx.done = true
	tx.s.tx = nil
}
