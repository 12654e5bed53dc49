// Package diagnostics carries internal compiler errors: violated invariants
// that mean a type tree was malformed by an earlier stage. They are raised
// with panic, never returned, and only recovered at process or case
// boundaries to produce a crash report.
package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// Component is one labelled piece of context attached to an internal error.
type Component struct {
	Label string
	Value any
}

// InternalError is a violated invariant with the context needed to
// reproduce it.
type InternalError struct {
	Message    string
	Components []Component

	cause error
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// NewInternalError builds an internal error, capturing the current stack.
// kv alternates labels and values.
func NewInternalError(message string, kv ...any) *InternalError {
	e := &InternalError{Message: message, cause: errors.New(message)}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Components = append(e.Components, Component{Label: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	if len(kv)%2 == 1 {
		e.Components = append(e.Components, Component{Label: "extra", Value: kv[len(kv)-1]})
	}
	return e
}

// Fatal raises an internal error.
func Fatal(message string, kv ...any) {
	panic(NewInternalError(message, kv...))
}

// Fatalf raises an internal error with a formatted message and no components.
func Fatalf(format string, args ...any) {
	panic(NewInternalError(fmt.Sprintf(format, args...)))
}

func (e *InternalError) Error() string {
	var sb strings.Builder
	sb.WriteString("internal error: ")
	sb.WriteString(e.Message)
	for _, c := range e.Components {
		sb.WriteString("; ")
		sb.WriteString(c.Label)
		sb.WriteString("=")
		sb.WriteString(render(c.Value))
	}
	return sb.String()
}

// Unwrap exposes the stack-carrying cause.
func (e *InternalError) Unwrap() error { return e.cause }

// StackTrace returns the frames captured when the error was built.
func (e *InternalError) StackTrace() errors.StackTrace {
	if st, ok := e.cause.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}

// Component returns the value recorded under label.
func (e *InternalError) Component(label string) (any, bool) {
	for _, c := range e.Components {
		if c.Label == label {
			return c.Value, true
		}
	}
	return nil, false
}

// WriteReport writes a crash report: message, rendered components, their
// structural dumps and the stack.
func (e *InternalError) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "internal error: %s\n", e.Message)
	for _, c := range e.Components {
		fmt.Fprintf(w, "  %s: %s\n", c.Label, render(c.Value))
	}
	for _, c := range e.Components {
		fmt.Fprintf(w, "--- %s ---\n%s", c.Label, dumper.Sdump(c.Value))
	}
	fmt.Fprintf(w, "--- stack ---%+v\n", e.StackTrace())
}

func render(v any) string {
	switch v := v.(type) {
	case fmt.Stringer:
		return v.String()
	case nil:
		return "<nil>"
	default:
		return fmt.Sprint(v)
	}
}

// Recover converts a panicking *InternalError into an error stored in errp.
// Any other panic is re-raised. Use it deferred at a boundary:
//
//	defer diagnostics.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*errp = ie
		return
	}
	panic(r)
}

// AsInternal reports whether err is, or wraps, an internal error.
func AsInternal(err error) (*InternalError, bool) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
