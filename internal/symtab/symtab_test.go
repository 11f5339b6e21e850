package symtab_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/symtab"
)

func TestAddAndReAddReplacesSource(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("a.c", "first")
	require.Equal(t, "first", store.Source(id))

	id2 := store.Add("a.c", "second")
	require.Equal(t, id, id2, "re-adding the same canonical path reuses the FileID")
	require.Equal(t, "second", store.Source(id))
}

func TestAddLeadingSlashIsCanonical(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id1 := store.Add("a.c", "x")
	id2 := store.Add("/a.c", "y")
	require.Equal(t, id1, id2)
}

func TestInternDeduplicatesIdenticalText(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	a := store.InternString("hello")
	b := store.InternString("hello")
	require.Equal(t, a, b)
	require.Equal(t, "hello", store.SymbolToStr(a))
}

func TestReservedSymbolsPreinterned(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	main := store.InternString("main")
	require.Equal(t, symtab.SymbolID(0), main, "main is the first reserved symbol")
	require.Equal(t, "main", store.SymbolToStr(main))
}

func TestTextRoundTripsSourceRange(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("a.c", "int x;")
	loc := symtab.CodeLoc{File: id, Start: 0, End: 3}
	require.Equal(t, "int", store.Text(loc))
}

func TestLineIndexFindsCorrectLine(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("a.c", "aaa\nbbb\nccc")
	require.Equal(t, 0, store.LineIndex(id, 1))
	require.Equal(t, 1, store.LineIndex(id, 4))
	require.Equal(t, 2, store.LineIndex(id, 9))
}

func TestIncludeQuotedRequiresFSAccess(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	referrer := store.Add("a.c", "")
	_, err := store.AddFromInclude("local.h", false, referrer, nil)
	require.Error(t, err)
	var fsErr *symtab.FSError
	require.ErrorAs(t, err, &fsErr)
	require.Equal(t, "PermissionDenied", fsErr.Kind)
}

type mapFS map[string]string

func (m mapFS) ReadFile(path string) (string, error) {
	if s, ok := m[path]; ok {
		return s, nil
	}
	return "", errors.New("not found")
}

func TestIncludeQuotedResolvesRelativeToReferrer(t *testing.T) {
	store := symtab.NewStore(symtab.ReadFSAccess)
	referrer := store.Add("dir/a.c", "")

	fs := mapFS{"/dir/local.h": "#define X 1\n"}
	id, err := store.AddFromInclude("local.h", false, referrer, fs)
	require.NoError(t, err)
	require.Equal(t, "#define X 1\n", store.Source(id))
}

func TestIncludeSystemHeaderUnknownIsNotFound(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	referrer := store.Add("a.c", "")
	_, err := store.AddFromInclude("nonexistent.h", true, referrer, nil)
	require.Error(t, err)
	var fsErr *symtab.FSError
	require.ErrorAs(t, err, &fsErr)
	require.Equal(t, "NotFound", fsErr.Kind)
}
