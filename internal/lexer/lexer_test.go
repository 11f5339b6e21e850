package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

func lex(t *testing.T, src string) []token.Token {
	t.Helper()
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", src)
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexSimpleDeclaration(t *testing.T) {
	toks := lex(t, "int x = 1;")
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Assign, token.IntLiteral, token.Semicolon,
	}, kinds(toks))
}

func TestLexGreedyOperatorMatch(t *testing.T) {
	// "<<=" must not lex as "<<" followed by "=".
	toks := lex(t, "x <<= 1;")
	require.Equal(t, []token.Kind{token.Ident, token.ShlAssign, token.IntLiteral, token.Semicolon}, kinds(toks))
}

func TestLexCommentsAreSkipped(t *testing.T) {
	toks := lex(t, "int x; // trailing comment\n/* block */ int y;")
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Semicolon,
		token.KwInt, token.Ident, token.Semicolon,
	}, kinds(toks))
}

func TestLexCharEscapes(t *testing.T) {
	toks := lex(t, `'a' '\n' '\0'`)
	require.Len(t, toks, 3)
	require.EqualValues(t, 'a', toks[0].CharVal)
	require.EqualValues(t, '\n', toks[1].CharVal)
	require.EqualValues(t, 0, toks[2].CharVal)
}

func TestLexStringInternsDecodedBytes(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", `"a\nb"`)
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	require.Equal(t, token.StringLiteral, toks[0].Kind)
	require.Equal(t, "a\nb", store.SymbolToStr(toks[0].StrSym))
}

func TestLexUnterminatedStringIsError(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", `"unterminated`)
	_, err := lexer.New(store, nil).LexFile(id)
	require.Error(t, err)
}

func TestLexUnknownDirectiveIsError(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", "#bogus\n")
	_, err := lexer.New(store, nil).LexFile(id)
	require.Error(t, err)
}

func TestLexIntegerOverflowWraps(t *testing.T) {
	// Matches the original's bare i32 multiply-accumulate: no overflow error.
	toks := lex(t, "99999999999;")
	require.Equal(t, token.IntLiteral, toks[0].Kind)
	require.EqualValues(t, 1215752191, toks[0].IntVal, "99999999999 mod 2^32")
}

func TestLexFileIsCached(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", "int x;")
	lx := lexer.New(store, nil)

	first, err := lx.LexFile(id)
	require.NoError(t, err)
	second, err := lx.LexFile(id)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
