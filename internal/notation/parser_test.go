package notation

import (
	"errors"
	"testing"

	ts "github.com/funvibe/typesubst/internal/typesystem"
)

func fixtureRegistry(t testing.TB) *ts.Registry {
	t.Helper()
	r := ts.NewRegistry()
	for _, name := range []string{"Int", "String", "Foo"} {
		if _, err := r.DeclareClass(name, ts.Class); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.DeclareClass("List", ts.Interface, ts.ParameterSpec{Name: "E", Variance: ts.Out}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DeclareClass("Box", ts.Class, ts.ParameterSpec{Name: "T"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DeclareClass("Pair", ts.Class,
		ts.ParameterSpec{Name: "A", Variance: ts.Out},
		ts.ParameterSpec{Name: "B", Variance: ts.Out}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestParseRoundTrip(t *testing.T) {
	r := fixtureRegistry(t)
	box := r.MustLookup("Box")
	scope := Scope{Registry: r, Parameters: box.Parameters()}

	tests := []string{
		"Int",
		"Int?",
		"T",
		"T?",
		"T & Any",
		"Box<T>",
		"Box<String?>?",
		"Pair<out Int, *>",
		"List<in String>",
		"(String..String?)",
		"raw(List<Any?>..List<*>?)",
		"dynamic",
		"{Int & String}",
		"{Int & String}?",
		"[Box<T> = List<T>]",
		"@Ann Int",
		"@A @B List<T>?",
		"Captured(out Int)",
		"Captured(*)?",
		"ERROR",
		"Box.T",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			typ, err := Parse(input, scope)
			if err != nil {
				t.Fatalf("Parse(%q): %v", input, err)
			}
			want := input
			if input == "Box.T" {
				want = "T"
			}
			if got := typ.String(); got != want {
				t.Errorf("String() = %q, want %q", got, want)
			}
		})
	}
}

func TestParseShapes(t *testing.T) {
	r := fixtureRegistry(t)
	scope := Scope{Registry: r}

	typ := MustParse("(Int..Int?)", scope)
	if f, ok := typ.(*ts.FlexibleType); !ok || f.Kind != ts.Platform {
		t.Fatalf("expected platform flexible type, got %#v", typ)
	}

	typ = MustParse("dynamic", scope)
	if f, ok := typ.(*ts.FlexibleType); !ok || f.Kind != ts.Dynamic {
		t.Fatalf("expected dynamic type, got %#v", typ)
	}

	typ = MustParse("Box.T & Any", scope)
	dnn, ok := typ.(*ts.DefinitelyNotNullType)
	if !ok {
		t.Fatalf("expected definitely-not-null type, got %T", typ)
	}
	box := r.MustLookup("Box")
	if ts.ConstructorOf(dnn) != box.Parameters()[0].Constructor() {
		t.Errorf("definitely-not-null wraps %s, want Box.T", dnn.Original)
	}

	typ = MustParse("ERROR<Int>", scope)
	if st, ok := typ.(*ts.SimpleType); !ok || !st.IsError() || len(st.Arguments) != 1 {
		t.Errorf("expected error type with one argument, got %s", typ)
	}
}

func TestParseCapturedDefaults(t *testing.T) {
	r := fixtureRegistry(t)
	scope := Scope{Registry: r}

	in := MustParse("Captured(in Int)", scope).(*ts.CapturedType)
	if in.Lower == nil || in.Lower.String() != "Int" {
		t.Errorf("in-capture lower = %v, want Int", in.Lower)
	}
	if got := in.Constructor.Supertypes(); len(got) != 1 || got[0].String() != "Any?" {
		t.Errorf("in-capture supertypes = %v, want [Any?]", got)
	}

	out := MustParse("Captured(out Int)", scope).(*ts.CapturedType)
	if out.Lower != nil {
		t.Errorf("out-capture lower = %v, want none", out.Lower)
	}
	if got := out.Constructor.Supertypes(); len(got) != 1 || got[0].String() != "Int" {
		t.Errorf("out-capture supertypes = %v, want [Int]", got)
	}

	explicit := MustParse("Captured(out Int <: List<Box.T>, Foo)", scope).(*ts.CapturedType)
	if got := explicit.Constructor.Supertypes(); len(got) != 2 || got[0].String() != "List<T>" || got[1].String() != "Foo" {
		t.Errorf("explicit supertypes = %v", got)
	}
}

func TestParseVariablesShadowClasses(t *testing.T) {
	r := fixtureRegistry(t)
	fresh := ts.NewVariableConstructor("T'", nil)
	scope := Scope{Registry: r, Variables: map[string]ts.Type{"Int": &ts.SimpleType{Constructor: fresh}}}

	typ := MustParse("Box<Int>", scope).(*ts.SimpleType)
	if ts.ConstructorOf(typ.Arguments[0].Type) != fresh {
		t.Errorf("argument resolved to %s, want the variable", typ.Arguments[0].Type)
	}
}

func TestParseErrors(t *testing.T) {
	r := fixtureRegistry(t)
	scope := Scope{Registry: r}

	tests := []struct {
		name   string
		input  string
		column int
	}{
		{"empty", "", 1},
		{"unknown name", "Missing", 8},
		{"unclosed arguments", "Box<Int", 8},
		{"trailing input", "Int Int", 5},
		{"single member intersection", "{Int}", 6},
		{"nullable definitely-not-null", "Box.T? & Any", 13},
		{"flexible abbreviation", "[Box<Int> = (Int..Int?)]", 25},
		{"illegal character", "Int!", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, scope)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if pe.Column != tt.column {
				t.Errorf("column = %d, want %d (%v)", pe.Column, tt.column, pe)
			}
		})
	}
}

func TestParseUnresolvedNameCause(t *testing.T) {
	_, err := Parse("Missing", Scope{Registry: fixtureRegistry(t)})
	var nf *ts.ClassifierNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Missing" {
		t.Errorf("expected ClassifierNotFoundError for Missing, got %v", err)
	}
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("Box.T'<:(..)")
	want := []TokenType{IDENT, SUBTYPE, LPAREN, DOTDOT, RPAREN, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d = %s, want %s", i, toks[i].Type, tt)
		}
	}
	if toks[0].Lexeme != "Box.T'" {
		t.Errorf("identifier = %q, want Box.T'", toks[0].Lexeme)
	}
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{"Int", "Box<T>?", "(Int..Int?)", "{Int & String}", "Captured(in Int)", "[Box<Int> = List<Int>]", "@A T & Any"} {
		f.Add(seed)
	}
	r := fixtureRegistry(f)
	box := r.MustLookup("Box")
	scope := Scope{Registry: r, Parameters: box.Parameters()}
	f.Fuzz(func(t *testing.T, input string) {
		typ, err := Parse(input, scope)
		if err != nil {
			return
		}
		if _, err := Parse(typ.String(), scope); err != nil {
			t.Errorf("rendered %q does not parse back: %v", typ.String(), err)
		}
	})
}
