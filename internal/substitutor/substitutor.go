// Package substitutor implements capture-correct structural substitution over
// type trees. A Substitutor answers one question, what replaces a non-null
// occurrence of a constructor; the engine in this package walks the tree,
// re-applies nullability, definitely-not-null wrappers and annotations, and
// keeps flexible, abbreviated, captured and intersection types consistent.
//
// Every internal step returns nil when nothing under it changed, so callers
// reuse the original node instead of allocating an identical copy.
package substitutor

import (
	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// Substitutor maps type constructors to replacement types.
type Substitutor interface {
	// SubstituteConstructor returns the replacement for a non-null
	// occurrence of c, or nil if c is not substituted.
	SubstituteConstructor(c ts.TypeConstructor) ts.Type
	IsEmpty() bool
	String() string
}

// NodeObserver is told about every node of the original tree in index order.
// Position-indexed metadata (per-node nullability qualifiers from Java
// interop) is aligned to these indices.
type NodeObserver func(index int, position ts.TypePosition, node ts.Type)

// Options tune a substitution walk.
type Options struct {
	// KeepAnnotations merges the annotations of a replaced occurrence into
	// the replacement's own.
	KeepAnnotations bool
	// SkipCapturedChecks leaves captured types alone.
	SkipCapturedChecks bool
	Observer           NodeObserver
}

// Substitute applies s to t, returning t itself when nothing changes.
func Substitute(s Substitutor, t ts.Type) ts.Type {
	return SubstituteWith(s, t, Options{})
}

// SafeSubstitute is Substitute that also keeps the annotations of replaced
// occurrences.
func SafeSubstitute(s Substitutor, t ts.Type) ts.Type {
	return SubstituteWith(s, t, Options{KeepAnnotations: true})
}

// SubstituteWith applies s to t under opts.
func SubstituteWith(s Substitutor, t ts.Type, opts Options) ts.Type {
	if s.IsEmpty() && opts.Observer == nil {
		return t
	}
	if res, _ := Try(s, t, opts); res != nil {
		return res
	}
	return t
}

// Try is the primitive behind Substitute: it returns nil when t needs no
// change, together with the number of nodes walked.
func Try(s Substitutor, t ts.Type, opts Options) (ts.Type, int) {
	w := walker{sub: s, keepAnnotations: opts.KeepAnnotations, observer: opts.Observer}
	cursor := 0
	res := w.substitute(t, ts.Inflexible, !opts.SkipCapturedChecks, &cursor)
	return res, cursor
}

// SubstituteProjection applies s to the type of a projection. Stars are
// never substituted.
func SubstituteProjection(s Substitutor, p ts.Projection) ts.Projection {
	if p.Star {
		return p
	}
	return ts.Projection{Kind: p.Kind, Type: SafeSubstitute(s, p.Type)}
}
