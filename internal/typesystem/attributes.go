package typesystem

import (
	"slices"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// Attributes is an immutable ordered set of annotation names attached to a
// type occurrence.
type Attributes struct {
	names []string
}

// NewAttributes builds an attribute set, dropping duplicates.
func NewAttributes(names ...string) Attributes {
	return Attributes{}.With(names...)
}

func (a Attributes) IsEmpty() bool { return len(a.names) == 0 }

func (a Attributes) Names() []string { return slices.Clone(a.names) }

func (a Attributes) Contains(name string) bool { return slices.Contains(a.names, name) }

// With returns a copy with the names appended, skipping those already present.
func (a Attributes) With(names ...string) Attributes {
	if len(names) == 0 {
		return a
	}
	seen := set.From(a.names)
	out := slices.Clone(a.names)
	for _, n := range names {
		if seen.Insert(n) {
			out = append(out, n)
		}
	}
	if len(out) == len(a.names) {
		return a
	}
	return Attributes{names: out}
}

// Union keeps a as the base and appends the names of other it lacks.
func (a Attributes) Union(other Attributes) Attributes {
	return a.With(other.names...)
}

// Equal compares as sets.
func (a Attributes) Equal(other Attributes) bool {
	if len(a.names) != len(other.names) {
		return false
	}
	return set.From(a.names).Equal(set.From(other.names))
}

func (a Attributes) prefix() string {
	if len(a.names) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, n := range a.names {
		sb.WriteByte('@')
		sb.WriteString(n)
		sb.WriteByte(' ')
	}
	return sb.String()
}
