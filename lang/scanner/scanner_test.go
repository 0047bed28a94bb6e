package scanner_test

import (
	"testing"

	"github.com/mna/von/lang/scanner"
	"github.com/mna/von/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []scanner.Token {
	t.Helper()
	var s scanner.Scanner
	s.Init([]byte(src))
	var toks []scanner.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScanTotality(t *testing.T) {
	cases := []string{"", "   \n\n ", "#comment\n", "\"unterminated", "@@@"}
	for _, c := range cases {
		toks := scanAll(t, c)
		require.Equal(t, token.EOF, toks[len(toks)-1].Type)
	}
}

func TestTokenOffsets(t *testing.T) {
	src := `var x = 1 + 2.5; print "hi"; if (x) {} else {}`
	toks := scanAll(t, src)
	b := []byte(src)
	for _, tok := range toks {
		if tok.Type == token.EOF || tok.Type == token.ILLEGAL {
			continue
		}
		require.Equal(t, tok.Lexeme(b), string(b[tok.Start:tok.Start+tok.Length]))
	}
}

func TestKeywords(t *testing.T) {
	src := "and class else false for fun if nil or print return super this true var while switch case default import"
	toks := scanAll(t, src)
	want := []token.Token{
		token.AND, token.CLASS, token.ELSE, token.FALSE, token.FOR, token.FUN,
		token.IF, token.NIL, token.OR, token.PRINT, token.RETURN, token.SUPER,
		token.THIS, token.TRUE, token.VAR, token.WHILE, token.SWITCH,
		token.CASE, token.DEFAULT, token.IMPORT, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equal(t, w, toks[i].Type, "token %d", i)
	}
}

func TestTwoCharOperators(t *testing.T) {
	toks := scanAll(t, "!= == <= >= < > ! =")
	want := []token.Token{
		token.BANGEQ, token.EQEQ, token.LE, token.GE, token.LT, token.GT,
		token.BANG, token.EQ, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equal(t, w, toks[i].Type)
	}
}

func TestStringSpansLines(t *testing.T) {
	toks := scanAll(t, "\"a\nb\" 1")
	require.Equal(t, token.STRING, toks[0].Type)
	require.Equal(t, token.NUMBER, toks[1].Type)
	require.Equal(t, 2, toks[1].Line)
}

func TestUnterminatedString(t *testing.T) {
	toks := scanAll(t, "\"abc")
	require.Equal(t, token.ILLEGAL, toks[0].Type)
	require.Equal(t, "Unterminated string.", toks[0].Msg)
}
