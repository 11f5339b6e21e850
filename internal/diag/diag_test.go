package diag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/symtab"
)

func TestErrorMessageIncludesSections(t *testing.T) {
	err := diag.New(diag.Semantic, symtab.CodeLoc{File: 1, Start: 0, End: 3}, "bad thing")
	err.WithSection(symtab.CodeLoc{File: 1, Start: 5, End: 6}, "defined here")

	msg := err.Error()
	require.Contains(t, msg, "semantic: bad thing")
	require.Contains(t, msg, "defined here")
}

func TestKindStringNames(t *testing.T) {
	require.Equal(t, "lexical", diag.Lexical.String())
	require.Equal(t, "preprocessor", diag.Preprocessor.String())
	require.Equal(t, "syntax", diag.Syntactic.String())
	require.Equal(t, "semantic", diag.Semantic.String())
	require.Equal(t, "runtime", diag.Runtime.String())
}

func TestRenderIncludesOffendingSourceLine(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("main.c", "int x;\nreturn bogus;\n")

	err := diag.New(diag.Semantic, symtab.CodeLoc{File: id, Start: 7, End: 12}, "undeclared identifier")

	var b strings.Builder
	diag.Render(&b, store, err)

	out := b.String()
	require.Contains(t, out, "main.c:2:")
	require.Contains(t, out, "return bogus;")
}
