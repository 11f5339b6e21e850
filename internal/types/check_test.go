package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/parser"
	"github.com/tci-lang/tci/internal/preprocessor"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/types"
)

func check(t *testing.T, src string) (*types.CheckedFile, error) {
	t.Helper()
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", src)

	lx := lexer.New(store, nil)
	toks, err := lx.LexFile(id)
	require.NoError(t, err)

	expanded, err := preprocessor.NewTable().Process(toks)
	require.NoError(t, err)

	file, err := parser.Parse(expanded)
	require.NoError(t, err)

	return types.CheckFile(store, file)
}

func TestStructMemberOffsetsRespectAlignment(t *testing.T) {
	checked, err := check(t, `
struct Pair {
	char tag;
	int value;
};

int main() {
	struct Pair p;
	p.tag = 'a';
	p.value = 5;
	return p.value;
}
`)
	require.NoError(t, err)

	require.Len(t, checked.Structs, 1)
	for _, st := range checked.Structs {
		require.NotNil(t, st.Defn)
		require.Len(t, st.Defn.Members, 2)
		require.Equal(t, uint32(0), st.Defn.Members[0].Offset, "tag is the first member")
		require.Equal(t, uint32(4), st.Defn.Members[1].Offset, "value must be 4-byte aligned after the 1-byte tag")
		require.Equal(t, uint32(8), st.Defn.SA.Size, "struct size must round up to its own alignment")
	}
}

func TestPointerArithmeticIsStrided(t *testing.T) {
	checked, err := check(t, `
int main() {
	int x;
	int *p = &x;
	p = p + 1;
	return 0;
}
`)
	require.NoError(t, err)
	require.NotNil(t, checked)

	mainFn := checked.Funcs[symtab.SymbolID(0)]
	require.NotNil(t, mainFn.Defn)
	sum := mainFn.Defn.Stmts[1].Expr.Value // p = p + 1
	require.Equal(t, types.TCPtrAdd, sum.Kind)
	require.Equal(t, uint32(4), sum.Stride, "int* + 1 must scale by sizeof(int)")
}

func TestUndeclaredVariableIsRejected(t *testing.T) {
	_, err := check(t, `
int main() {
	return nope;
}
`)
	require.Error(t, err)
}

func TestRedefinitionInSameScopeIsRejected(t *testing.T) {
	_, err := check(t, `
int main() {
	int a = 1;
	int a = 2;
	return a;
}
`)
	require.Error(t, err)
}

func TestMismatchedReturnArgCountIsRejected(t *testing.T) {
	_, err := check(t, `
int add(int a, int b) { return a + b; }

int main() {
	return add(1);
}
`)
	require.Error(t, err)
}
