package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/ast"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/parser"
	"github.com/tci-lang/tci/internal/preprocessor"
	"github.com/tci-lang/tci/internal/symtab"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", src)
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	expanded, err := preprocessor.NewTable().Process(toks)
	require.NoError(t, err)
	file, err := parser.Parse(expanded)
	require.NoError(t, err)
	return file
}

func TestParseFunctionWithParamsAndReturn(t *testing.T) {
	file := parse(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.Len(t, file.Globals, 1)
	g := file.Globals[0]
	require.Equal(t, ast.GFunc, g.Kind)
	require.Len(t, g.Params, 2)
	require.Len(t, g.Body, 1)

	ret := file.Stmt(g.Body[0])
	require.Equal(t, ast.SRetVal, ret.Kind)

	expr := file.Expr(ret.Expr)
	require.Equal(t, ast.EBinOp, expr.Kind)
	require.Equal(t, ast.OpAdd, expr.BinOp)
}

func TestParseFunctionDeclarationWithoutBody(t *testing.T) {
	file := parse(t, `int add(int a, int b);`)
	require.Len(t, file.Globals, 1)
	require.Equal(t, ast.GFuncDecl, file.Globals[0].Kind)
}

func TestParseVarargFunction(t *testing.T) {
	file := parse(t, `int printf(char *fmt, ...) { return 0; }`)
	params := file.Globals[0].Params
	require.Len(t, params, 2)
	require.Equal(t, ast.PVararg, params[1].Kind)
}

func TestParseIfElse(t *testing.T) {
	file := parse(t, `
int main() {
	if (1) {
		return 1;
	} else {
		return 0;
	}
}
`)
	body := file.Globals[0].Body
	require.Len(t, body, 1)
	branch := file.Stmt(body[0])
	require.Equal(t, ast.SBranch, branch.Kind)
	require.Len(t, branch.IfBody, 1)
	require.Len(t, branch.ElseBody, 1)
}

func TestParseWhileLoop(t *testing.T) {
	file := parse(t, `
int main() {
	while (1) {
		return 0;
	}
}
`)
	stmt := file.Stmt(file.Globals[0].Body[0])
	require.Equal(t, ast.SWhile, stmt.Kind)
}

func TestParseForLoopWithDecl(t *testing.T) {
	file := parse(t, `
int main() {
	for (int i = 0; i < 10; i = i + 1) {
		return i;
	}
	return 0;
}
`)
	stmt := file.Stmt(file.Globals[0].Body[0])
	require.Equal(t, ast.SForDecl, stmt.Kind)
	require.Len(t, stmt.AtStartDecl, 1)
}

func TestParseStructDeclWithMembers(t *testing.T) {
	file := parse(t, `
struct Pair {
	int a;
	int b;
};
`)
	require.Len(t, file.Globals, 1)
	g := file.Globals[0]
	require.Equal(t, ast.GStructDecl, g.Kind)
	require.True(t, g.Struct.HasMembers)
	require.Len(t, g.Struct.Members, 2)
}

func TestParseTypedef(t *testing.T) {
	file := parse(t, `typedef int my_int;`)
	require.Equal(t, ast.GTypedef, file.Globals[0].Kind)
}

func TestParsePointerDeclarationAndAddressOf(t *testing.T) {
	file := parse(t, `
int main() {
	int x;
	int *p = &x;
	return 0;
}
`)
	body := file.Globals[0].Body
	require.Len(t, body, 3)

	declStmt := file.Stmt(body[1])
	require.Equal(t, ast.SDecl, declStmt.Kind)
	require.Equal(t, uint32(1), declStmt.Decls[0].PointerCount)

	init := file.Expr(declStmt.Decls[0].Init)
	require.Equal(t, ast.ERef, init.Kind)
}

func TestParseMissingSemicolonIsSyntaxError(t *testing.T) {
	store := symtab.NewStore(symtab.NoFSAccess)
	id := store.Add("test.c", `int main() { return 0 }`)
	toks, err := lexer.New(store, nil).LexFile(id)
	require.NoError(t, err)
	expanded, err := preprocessor.NewTable().Process(toks)
	require.NoError(t, err)
	_, err = parser.Parse(expanded)
	require.Error(t, err)
}

func TestParseMultiDeclGlobal(t *testing.T) {
	file := parse(t, `int a = 1, b = 2;`)
	g := file.Globals[0]
	require.Equal(t, ast.GDecl, g.Kind)
	require.Len(t, g.Decls, 2)
}
