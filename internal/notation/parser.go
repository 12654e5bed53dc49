package notation

import (
	"fmt"

	"github.com/funvibe/typesubst/internal/config"
	ts "github.com/funvibe/typesubst/internal/typesystem"
)

// Scope resolves names while parsing. Lookup order: Variables, Parameters by
// simple name, registry parameters by qualified name, registry classes.
type Scope struct {
	Registry   *ts.Registry
	Parameters []*ts.TypeParameter
	Variables  map[string]ts.Type
}

// ParseError reports where the notation went wrong.
type ParseError struct {
	Input  string
	Column int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%q:%d: %s", e.Input, e.Column, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Parser struct {
	input string
	l     *Lexer
	scope Scope

	curToken  Token
	peekToken Token
	err       *ParseError
}

// Parse reads one type from input.
func Parse(input string, scope Scope) (ts.Type, error) {
	p := &Parser{input: input, l: NewLexer(input), scope: scope}
	p.nextToken()
	p.nextToken()
	t := p.parseType(true)
	if p.err == nil && !p.curTokenIs(EOF) {
		p.errorf(nil, "unexpected %s after type", p.curToken)
	}
	if p.err != nil {
		return nil, p.err
	}
	return t, nil
}

// MustParse is Parse for fixtures; it panics on malformed input.
func MustParse(input string, scope Scope) ts.Type {
	t, err := Parse(input, scope)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(tt TokenType) bool  { return p.curToken.Type == tt }
func (p *Parser) peekTokenIs(tt TokenType) bool { return p.peekToken.Type == tt }

func (p *Parser) curKeyword(kw string) bool {
	return p.curToken.Type == IDENT && p.curToken.Lexeme == kw
}

func (p *Parser) errorf(cause error, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{Input: p.input, Column: p.curToken.Column, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// expect consumes the current token if it has type tt.
func (p *Parser) expect(tt TokenType) bool {
	if !p.curTokenIs(tt) {
		p.errorf(nil, "expected %s, got %s", tt, p.curToken)
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) parseType(allowDefinitelyNotNull bool) ts.Type {
	var annotations []string
	for p.curTokenIs(AT) {
		p.nextToken()
		if !p.curTokenIs(IDENT) {
			p.errorf(nil, "expected annotation name, got %s", p.curToken)
			return nil
		}
		annotations = append(annotations, p.curToken.Lexeme)
		p.nextToken()
	}

	t := p.parseCore()
	if t == nil || p.err != nil {
		return nil
	}

	if allowDefinitelyNotNull && p.curTokenIs(AMP) && p.peekToken.Type == IDENT && p.peekToken.Lexeme == config.AnyTypeName {
		p.nextToken()
		p.nextToken()
		if t.IsMarkedNullable() {
			p.errorf(nil, "definitely-not-null over a nullable type %s", t)
			return nil
		}
		t = &ts.DefinitelyNotNullType{Original: t}
	}

	if len(annotations) > 0 {
		t = ts.WithAttributes(t, t.Attributes().With(annotations...))
	}
	return t
}

func (p *Parser) parseCore() ts.Type {
	switch {
	case p.curKeyword(config.DynamicKeyword):
		p.nextToken()
		return ts.DynamicType(p.registry().NothingType(), ts.MakeNullableAsSpecified(p.registry().AnyType(), true))
	case p.curKeyword(config.RawKeyword) && p.peekTokenIs(LPAREN):
		p.nextToken()
		lower, upper := p.parseRange()
		if p.err != nil {
			return nil
		}
		return ts.RawFlexible(lower, upper)
	case p.curTokenIs(LPAREN):
		lower, upper := p.parseRange()
		if p.err != nil {
			return nil
		}
		return &ts.FlexibleType{Kind: ts.Platform, Lower: lower, Upper: upper}
	case p.curTokenIs(LBRACKET):
		return p.parseAbbreviation()
	case p.curTokenIs(LBRACE):
		return p.parseIntersection()
	case p.curKeyword(config.CapturedKeyword) && p.peekTokenIs(LPAREN):
		return p.parseCaptured()
	case p.curTokenIs(IDENT):
		return p.parseReference()
	default:
		p.errorf(nil, "expected a type, got %s", p.curToken)
		return nil
	}
}

// parseRange reads (lower..upper).
func (p *Parser) parseRange() (ts.Type, ts.Type) {
	if !p.expect(LPAREN) {
		return nil, nil
	}
	lower := p.parseType(true)
	if !p.expect(DOTDOT) {
		return nil, nil
	}
	upper := p.parseType(true)
	if !p.expect(RPAREN) {
		return nil, nil
	}
	return lower, upper
}

func (p *Parser) parseAbbreviation() ts.Type {
	p.nextToken()
	alias := p.parseType(false)
	if p.err != nil {
		return nil
	}
	abbreviation, ok := alias.(*ts.SimpleType)
	if !ok {
		p.errorf(nil, "abbreviation must be a simple type, got %s", alias)
		return nil
	}
	if !p.expect(ASSIGN) {
		return nil
	}
	expanded := p.parseType(true)
	if !p.expect(RBRACKET) {
		return nil
	}
	if !ts.IsSimple(expanded) {
		p.errorf(nil, "expansion of %s must be a simple type, got %s", abbreviation, expanded)
		return nil
	}
	return &ts.AbbreviatedType{Expanded: expanded, Abbreviation: abbreviation}
}

func (p *Parser) parseIntersection() ts.Type {
	p.nextToken()
	var members []ts.Type
	for {
		m := p.parseType(false)
		if p.err != nil {
			return nil
		}
		members = append(members, m)
		if !p.curTokenIs(AMP) {
			break
		}
		p.nextToken()
	}
	if !p.expect(RBRACE) {
		return nil
	}
	if len(members) < 2 {
		p.errorf(nil, "intersection needs at least two members")
		return nil
	}
	t := &ts.SimpleType{Constructor: ts.NewIntersectionConstructor(members)}
	if p.curTokenIs(QUESTION) {
		p.nextToken()
		t.Nullable = true
	}
	return t
}

func (p *Parser) parseCaptured() ts.Type {
	p.nextToken()
	p.nextToken()
	projection, ok := p.parseProjection()
	if !ok {
		return nil
	}

	var supertypes []ts.Type
	if p.curTokenIs(SUBTYPE) {
		p.nextToken()
		for {
			st := p.parseType(true)
			if p.err != nil {
				return nil
			}
			supertypes = append(supertypes, st)
			if !p.curTokenIs(COMMA) {
				break
			}
			p.nextToken()
		}
	} else {
		supertypes = p.defaultCapturedSupertypes(projection)
	}
	if !p.expect(RPAREN) {
		return nil
	}

	var lower ts.Type
	if !projection.Star && projection.Kind == ts.In {
		lower = projection.Type
	}
	t := &ts.CapturedType{
		Status:      ts.FromExpression,
		Constructor: ts.NewCapturedConstructor(projection, supertypes),
		Lower:       lower,
	}
	if p.curTokenIs(QUESTION) {
		p.nextToken()
		t.Nullable = true
	}
	return t
}

// defaultCapturedSupertypes is what a capture of the projection is known to
// be a subtype of: the projected type for out and invariant projections,
// Any? otherwise.
func (p *Parser) defaultCapturedSupertypes(projection ts.Projection) []ts.Type {
	if !projection.Star && projection.Kind != ts.In {
		return []ts.Type{projection.Type}
	}
	return []ts.Type{ts.MakeNullableAsSpecified(p.registry().AnyType(), true)}
}

func (p *Parser) parseReference() ts.Type {
	name := p.curToken.Lexeme
	p.nextToken()

	var args []ts.Projection
	if p.curTokenIs(LT) {
		p.nextToken()
		for {
			arg, ok := p.parseProjection()
			if !ok {
				return nil
			}
			args = append(args, arg)
			if !p.curTokenIs(COMMA) {
				break
			}
			p.nextToken()
		}
		if !p.expect(GT) {
			return nil
		}
	}

	t := p.resolve(name, args)
	if t == nil {
		return nil
	}
	if p.curTokenIs(QUESTION) {
		p.nextToken()
		return ts.MakeNullableAsSpecified(t, true)
	}
	return t
}

func (p *Parser) parseProjection() (ts.Projection, bool) {
	if p.curTokenIs(STAR) {
		p.nextToken()
		return ts.StarProjection(), true
	}
	kind := ts.Invariant
	// `in`/`out` are modifiers only when a type follows.
	if p.peekTokenIs(IDENT) || p.peekTokenIs(LPAREN) || p.peekTokenIs(LBRACE) || p.peekTokenIs(LBRACKET) || p.peekTokenIs(AT) {
		switch {
		case p.curKeyword(config.InKeyword):
			kind = ts.In
			p.nextToken()
		case p.curKeyword(config.OutKeyword):
			kind = ts.Out
			p.nextToken()
		}
	}
	t := p.parseType(true)
	if p.err != nil {
		return ts.Projection{}, false
	}
	return ts.NewProjection(kind, t), true
}

func (p *Parser) resolve(name string, args []ts.Projection) ts.Type {
	if len(args) == 0 {
		if v, ok := p.scope.Variables[name]; ok {
			return v
		}
		for _, param := range p.scope.Parameters {
			if param.Name == name {
				return param.DefaultType()
			}
		}
		if p.scope.Registry != nil {
			if param, ok := p.scope.Registry.LookupParameter(name); ok {
				return param.DefaultType()
			}
		}
	}
	if p.scope.Registry != nil {
		if c, ok := p.scope.Registry.Lookup(name); ok {
			return &ts.SimpleType{Constructor: c, Arguments: args}
		}
	}
	if name == config.ErrorTypeName {
		return &ts.SimpleType{Constructor: &ts.ErrorConstructor{}, Arguments: args}
	}
	p.errorf(ts.NewClassifierNotFoundError(name), "unresolved name %s", name)
	return nil
}

func (p *Parser) registry() *ts.Registry {
	if p.scope.Registry == nil {
		p.scope.Registry = ts.NewRegistry()
	}
	return p.scope.Registry
}
