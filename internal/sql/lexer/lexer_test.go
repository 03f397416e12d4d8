package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/sql/token"
)

func allTokens(input string) []token.Token {
	l := New(input)
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == token.EOF {
			return out
		}
	}
}

func TestLexerSymbolsAndOperators(t *testing.T) {
	toks := allTokens("( ) , ; * + - / ^ = > >= < <= !=")
	types := make([]token.Type, 0, len(toks))
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	assert.Equal(t, []token.Type{
		token.LPAREN, token.RPAREN, token.COMMA, token.SEMICOLON,
		token.ASTERISK, token.PLUS, token.MINUS, token.SLASH, token.CARET,
		token.EQ, token.GT, token.GTE, token.LT, token.LTE, token.NEQ,
		token.EOF,
	}, types)
}

func TestLexerKeywordIsCaseInsensitive(t *testing.T) {
	toks := allTokens("SeLeCt")
	require.Len(t, toks, 2)
	assert.Equal(t, token.SELECT, toks[0].Type)
}

func TestLexerIdentifierIsLowered(t *testing.T) {
	toks := allTokens("UserName")
	require.Len(t, toks, 2)
	assert.Equal(t, token.IDENT, toks[0].Type)
	assert.Equal(t, "username", toks[0].Literal)
}

func TestLexerIntegerLiteral(t *testing.T) {
	toks := allTokens("42")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Type)
	assert.Equal(t, "42", toks[0].Literal)
}

func TestLexerFloatLiteral(t *testing.T) {
	toks := allTokens("3.14")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Type)
	assert.Equal(t, "3.14", toks[0].Literal)
}

func TestLexerStringLiteralHasNoEscapes(t *testing.T) {
	// The first matching quote always ends the literal: 'it''s' is the
	// string "it" followed immediately by a second string literal "s",
	// not one escaped string "it's".
	toks := allTokens(`'it''s'`)
	require.Len(t, toks, 3)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "it", toks[0].Literal)
	assert.Equal(t, token.STRING, toks[1].Type)
	assert.Equal(t, "s", toks[1].Literal)
}

func TestLexerUnterminatedStringIsIllegal(t *testing.T) {
	toks := allTokens(`'abc`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
	assert.Equal(t, "abc", toks[0].Literal)
}

func TestLexerDoubleQuotedString(t *testing.T) {
	toks := allTokens(`"hello"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "hello", toks[0].Literal)
}

func TestLexerIllegalCharacter(t *testing.T) {
	toks := allTokens("@")
	require.Len(t, toks, 2)
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
	assert.Equal(t, "@", toks[0].Literal)
}

func TestLexerBangWithoutEqualsIsIllegal(t *testing.T) {
	toks := allTokens("!")
	require.Len(t, toks, 2)
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestLexerFullStatement(t *testing.T) {
	toks := allTokens("SELECT * FROM users WHERE id = 1;")
	types := make([]token.Type, 0, len(toks))
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	assert.Equal(t, []token.Type{
		token.SELECT, token.ASTERISK, token.FROM, token.IDENT,
		token.WHERE, token.IDENT, token.EQ, token.NUMBER, token.SEMICOLON,
		token.EOF,
	}, types)
}
