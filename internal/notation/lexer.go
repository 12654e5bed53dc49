// Package notation reads and writes types in a compact textual form:
//
//	Pair<out Int, *>?        simple type with projections, nullable
//	(String..String?)        platform flexible range
//	raw(List<Any?>..List<*>?) raw range
//	dynamic                  dynamic range
//	[Alias<T> = List<T>]     abbreviation = expansion
//	{A & B}?                 intersection
//	T & Any                  definitely not-null
//	Captured(in Int)         capture; Captured(out T <: A, B) lists supertypes
//	@Ann T                   annotated occurrence
//	ERROR                    unresolved type
package notation

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL
	IDENT
	LT       // <
	GT       // >
	COMMA    // ,
	QUESTION // ?
	STAR     // *
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	AMP      // &
	DOTDOT   // ..
	ASSIGN   // =
	AT       // @
	SUBTYPE  // <:
)

var tokenNames = map[TokenType]string{
	EOF: "end of input", ILLEGAL: "illegal", IDENT: "identifier",
	LT: "'<'", GT: "'>'", COMMA: "','", QUESTION: "'?'", STAR: "'*'",
	LPAREN: "'('", RPAREN: "')'", LBRACE: "'{'", RBRACE: "'}'",
	LBRACKET: "'['", RBRACKET: "']'", AMP: "'&'", DOTDOT: "'..'",
	ASSIGN: "'='", AT: "'@'", SUBTYPE: "'<:'",
}

func (t TokenType) String() string { return tokenNames[t] }

type Token struct {
	Type   TokenType
	Lexeme string
	Column int
}

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.readPosition++
	} else {
		r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
		l.ch = r
		l.readPosition += w
	}
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) NextToken() Token {
	for unicode.IsSpace(l.ch) {
		l.readChar()
	}
	col := l.column
	single := func(tt TokenType) Token {
		tok := Token{Type: tt, Lexeme: string(l.ch), Column: col}
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		return Token{Type: EOF, Column: col}
	case '<':
		if l.peekChar() == ':' {
			l.readChar()
			l.readChar()
			return Token{Type: SUBTYPE, Lexeme: "<:", Column: col}
		}
		return single(LT)
	case '>':
		return single(GT)
	case ',':
		return single(COMMA)
	case '?':
		return single(QUESTION)
	case '*':
		return single(STAR)
	case '(':
		return single(LPAREN)
	case ')':
		return single(RPAREN)
	case '{':
		return single(LBRACE)
	case '}':
		return single(RBRACE)
	case '[':
		return single(LBRACKET)
	case ']':
		return single(RBRACKET)
	case '&':
		return single(AMP)
	case '=':
		return single(ASSIGN)
	case '@':
		return single(AT)
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			l.readChar()
			return Token{Type: DOTDOT, Lexeme: "..", Column: col}
		}
		return single(ILLEGAL)
	}

	if isIdentStart(l.ch) {
		return Token{Type: IDENT, Lexeme: l.readIdentifier(), Column: col}
	}
	return single(ILLEGAL)
}

// readIdentifier reads a possibly qualified name (Box.T) with trailing
// primes (T').
func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentPart(l.ch) || (l.ch == '.' && isIdentStart(l.peekChar())) {
		l.readChar()
	}
	for l.ch == '\'' {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isIdentStart(ch rune) bool { return ch == '_' || unicode.IsLetter(ch) }
func isIdentPart(ch rune) bool  { return isIdentStart(ch) || unicode.IsDigit(ch) }

// Tokenize returns all tokens up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

func (t Token) String() string {
	if t.Lexeme == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
