package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/symtab"
)

func TestAddFuncIndexesByName(t *testing.T) {
	var prog Program

	idx := prog.AddFunc(Func{Name: symtab.SymbolID(1), NumParams: 0})
	require.Equal(t, 0, idx)

	idx = prog.AddFunc(Func{Name: symtab.SymbolID(2), NumParams: 1})
	require.Equal(t, 1, idx)

	require.Len(t, prog.Funcs, 2)
	require.Equal(t, 0, prog.FuncByName[symtab.SymbolID(1)])
	require.Equal(t, 1, prog.FuncByName[symtab.SymbolID(2)])
}

func TestAddFuncOverwritesSameName(t *testing.T) {
	var prog Program

	prog.AddFunc(Func{Name: symtab.SymbolID(1)})
	second := prog.AddFunc(Func{Name: symtab.SymbolID(1)})

	require.Len(t, prog.Funcs, 2, "AddFunc always appends; it never merges by name")
	require.Equal(t, second, prog.FuncByName[symtab.SymbolID(1)], "a later AddFunc for the same symbol wins the lookup")
}
