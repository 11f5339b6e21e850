package preprocessor_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/preprocessor"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

func expand(t *testing.T, src string) []token.Token {
	t.Helper()
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", src)
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	out, err := preprocessor.NewTable().Process(toks)
	require.NoError(t, err)
	return out
}

func TestObjectLikeMacroExpands(t *testing.T) {
	toks := expand(t, "#define SIZE 4\nint x = SIZE;")
	require.Equal(t, []token.Kind{token.KwInt, token.Ident, token.Assign, token.IntLiteral, token.Semicolon}, kindsOf(toks))
	require.EqualValues(t, 4, toks[3].IntVal)
}

func TestFuncMacroSubstitutesArguments(t *testing.T) {
	toks := expand(t, "#define ADD(a, b) a + b\nint x = ADD(1, 2);")
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Assign,
		token.IntLiteral, token.Plus, token.IntLiteral,
		token.Semicolon,
	}, kindsOf(toks))
}

func TestFuncMacroArityMismatchIsError(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", "#define ADD(a, b) a + b\nint x = ADD(1);")
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	_, err = preprocessor.NewTable().Process(toks)
	require.Error(t, err)
}

func TestUndefinedIdentPassesThroughUnexpanded(t *testing.T) {
	toks := expand(t, "int x = notamacro;")
	require.Equal(t, token.Ident, toks[3].Kind)
}

func kindsOf(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}
