package scenario

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/funvibe/typesubst/internal/diagnostics"
	"github.com/funvibe/typesubst/internal/inference"
	"github.com/funvibe/typesubst/internal/notation"
	"github.com/funvibe/typesubst/internal/substitutor"
	ts "github.com/funvibe/typesubst/internal/typesystem"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Options tune an evaluation run.
type Options struct {
	// Parallelism bounds concurrently evaluated cases; 0 means unbounded.
	Parallelism     int
	KeepAnnotations bool
	// Logger receives inference traces. Nil discards them.
	Logger *log.Logger
}

// NodeRecord is one node reported to a case's observer.
type NodeRecord struct {
	Index    int
	Position ts.TypePosition
	Node     string
}

func (n NodeRecord) String() string {
	return fmt.Sprintf("%d %s %s", n.Index, n.Position, n.Node)
}

// Result is the outcome of one case.
type Result struct {
	Case   CaseSpec
	Input  ts.Type
	Output ts.Type
	// Expected is the rendering of Case.Expect, empty when none is given.
	Expected string
	Walked   int
	Nodes    []NodeRecord
	// Fixed lists "T' := Int" for inference cases.
	Fixed []string

	// Err is a user-facing failure: malformed notation or contradicting
	// constraints.
	Err      error
	Internal *diagnostics.InternalError
	// Failure explains why the case did not pass; empty means it passed.
	Failure string
}

func (r *Result) Passed() bool { return r.Failure == "" }

// Evaluate runs every case of suite, at most opts.Parallelism at a time.
// Case failures are reported in the results; the error is only set when ctx
// is cancelled.
func Evaluate(ctx context.Context, suite *Suite, opts Options) ([]Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	results := make([]Result, len(suite.Cases))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, c := range suite.Cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = EvaluateCase(suite, c, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EvaluateCase runs one case. Internal errors raised while evaluating are
// captured in the result.
func EvaluateCase(suite *Suite, c CaseSpec, opts Options) Result {
	r := Result{Case: c}
	if err := run(suite, &r, opts); err != nil {
		if ie, ok := diagnostics.AsInternal(err); ok {
			r.Internal = ie
		} else {
			r.Err = err
		}
	}
	r.Failure = judge(&r)
	return r
}

func judge(r *Result) string {
	want := r.Case.ExpectError
	var got error
	switch {
	case r.Internal != nil:
		got = r.Internal
	case r.Err != nil:
		got = r.Err
	}
	if got != nil {
		if want != "" && strings.Contains(got.Error(), want) {
			return ""
		}
		if r.Internal != nil {
			return "internal error: " + r.Internal.Message
		}
		return got.Error()
	}
	if want != "" {
		return fmt.Sprintf("expected an error containing %q, got %s", want, r.Output)
	}
	if r.Expected != "" && r.Output.String() != r.Expected {
		return fmt.Sprintf("expected %s, got %s", r.Expected, r.Output)
	}
	return ""
}

func run(suite *Suite, r *Result, opts Options) (err error) {
	defer diagnostics.Recover(&err)
	if r.Case.Infer != nil {
		return infer(suite, r, opts)
	}
	return substitute(suite, r, opts)
}

func (c CaseSpec) scope(reg *ts.Registry) (notation.Scope, error) {
	scope := notation.Scope{Registry: reg, Variables: map[string]ts.Type{}}
	if c.Scope == "" {
		return scope, nil
	}
	class, ok := reg.Lookup(c.Scope)
	if !ok {
		return scope, errors.Wrap(ts.NewClassifierNotFoundError(c.Scope), "scope")
	}
	scope.Parameters = class.Parameters()
	return scope, nil
}

func substitute(suite *Suite, r *Result, opts Options) error {
	c := r.Case
	scope, err := c.scope(suite.Registry)
	if err != nil {
		return err
	}
	s := substitutor.Empty
	if c.Substitutor != "" {
		s = suite.Substitutors[c.Substitutor]
	}
	if fresh, ok := s.(*substitutor.FreshVariables); ok {
		for _, v := range fresh.Variables() {
			scope.Variables[variableName(v)] = v
		}
	}

	if r.Input, err = notation.Parse(c.Input, scope); err != nil {
		return errors.Wrap(err, "input")
	}
	walk := substitutor.Options{KeepAnnotations: opts.KeepAnnotations}
	if c.Safe != nil {
		walk.KeepAnnotations = *c.Safe
	}
	if c.Observe {
		walk.Observer = func(index int, pos ts.TypePosition, node ts.Type) {
			r.Nodes = append(r.Nodes, NodeRecord{Index: index, Position: pos, Node: node.String()})
		}
	}
	out, walked := substitutor.Try(s, r.Input, walk)
	if out == nil {
		out = r.Input
	}
	r.Output, r.Walked = out, walked
	return expect(r, scope)
}

func infer(suite *Suite, r *Result, opts Options) error {
	c := r.Case
	class, ok := suite.Registry.Lookup(c.Infer.Instantiate)
	if !ok {
		return errors.Wrap(ts.NewClassifierNotFoundError(c.Infer.Instantiate), "instantiate")
	}
	scope, err := c.scope(suite.Registry)
	if err != nil {
		return err
	}
	if scope.Parameters == nil {
		scope.Parameters = class.Parameters()
	}

	logger := log.New(opts.Logger.Writer(), opts.Logger.Prefix()+c.Name+" ", opts.Logger.Flags())
	sys := inference.NewSystem(suite.Registry, logger)
	fresh, vars := sys.Instantiate(class.Parameters())
	for _, v := range vars {
		scope.Variables[v.Constructor.Name] = v.DefaultType()
	}

	for i, text := range c.Infer.Constraints {
		lower, upper, equality, err := parseConstraint(text, scope)
		if err != nil {
			return errors.Wrapf(err, "constraint #%d", i+1)
		}
		position := fmt.Sprintf("constraint #%d", i+1)
		if equality {
			sys.AddEqualityConstraint(lower, upper, position)
		} else {
			sys.AddSubtypeConstraint(lower, upper, position)
		}
	}

	if r.Input, err = notation.Parse(c.Input, scope); err != nil {
		return errors.Wrap(err, "input")
	}
	result := sys.Complete()
	for _, v := range vars {
		if t, ok := sys.Result(v); ok {
			r.Fixed = append(r.Fixed, fmt.Sprintf("%s := %s", v, t))
		}
	}
	r.Output = substitutor.Substitute(result, substitutor.Substitute(fresh, r.Input))
	if errs := sys.Errors(); len(errs) > 0 {
		return errors.Wrapf(errs[0], "%d of the constraints cannot hold", len(errs))
	}
	return expect(r, scope)
}

// parseConstraint reads "A <: B" or "A == B".
func parseConstraint(text string, scope notation.Scope) (a, b ts.Type, equality bool, err error) {
	left, right, ok := strings.Cut(text, "<:")
	if !ok {
		if left, right, ok = strings.Cut(text, "=="); !ok {
			return nil, nil, false, errors.Errorf("%q is neither A <: B nor A == B", text)
		}
		equality = true
	}
	if a, err = notation.Parse(strings.TrimSpace(left), scope); err != nil {
		return nil, nil, false, err
	}
	if b, err = notation.Parse(strings.TrimSpace(right), scope); err != nil {
		return nil, nil, false, err
	}
	return a, b, equality, nil
}

// expect renders the case's expectation through the same scope so spacing
// and qualification in the file do not matter.
func expect(r *Result, scope notation.Scope) error {
	if r.Case.Expect == "" {
		return nil
	}
	t, err := notation.Parse(r.Case.Expect, scope)
	if err != nil {
		return errors.Wrap(err, "expect")
	}
	r.Expected = t.String()
	return nil
}

func variableName(t ts.Type) string {
	if vc, ok := ts.ConstructorOf(t).(*ts.VariableConstructor); ok {
		return vc.Name
	}
	return t.String()
}

// ParseInput parses a case's input in the case's scope without evaluating
// it. Inference variables are not in scope.
func (s *Suite) ParseInput(c CaseSpec) (ts.Type, error) {
	scope, err := c.scope(s.Registry)
	if err != nil {
		return nil, err
	}
	if c.Infer != nil && scope.Parameters == nil {
		if class, ok := s.Registry.Lookup(c.Infer.Instantiate); ok {
			scope.Parameters = class.Parameters()
		}
	}
	t, err := notation.Parse(c.Input, scope)
	return t, errors.Wrap(err, "input")
}
