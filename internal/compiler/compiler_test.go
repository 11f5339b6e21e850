package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/kernel"
	"github.com/tci-lang/tci/internal/vfs"
)

func TestCompileSimpleProgram(t *testing.T) {
	src := `
int add(int a, int b) {
	return a + b;
}

int main() {
	int x = add(2, 3);
	return x;
}
`
	result, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.Empty(t, errs)
	require.NotNil(t, result.Program)
	require.True(t, result.Program.HasEntry)
	require.Contains(t, result.Program.FuncByName, result.Program.EntryPoint)
}

func TestCompileReportsSemanticError(t *testing.T) {
	src := `
int main() {
	return undeclared_variable;
}
`
	_, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.NotEmpty(t, errs)
}

func TestCompileReportsSyntaxError(t *testing.T) {
	src := `int main() { return 0 }`
	_, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.NotEmpty(t, errs)
}

func TestCompileAndRunEndToEnd(t *testing.T) {
	src := `
int add(int a, int b) {
	int sum = a + b;
	return sum;
}

int main() {
	int result = add(20, 22);
	__tci_exit(result);
	return 0;
}
`
	result, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.Empty(t, errs)

	loaded := kernel.LoadProgram(result.Store, result.Checked, result.Program)
	k := kernel.New(vfs.New(), nil)
	k.LoadAndStart(loaded)

	code, err := k.Run()
	require.NoError(t, err)
	require.EqualValues(t, 42, code)
}

func TestCompileForbidsRelativeIncludeWithoutFSAccess(t *testing.T) {
	src := `
#include "local.h"
int main() { return 0; }
`
	_, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.NotEmpty(t, errs, "quoted includes must fail closed without --fs-read-access")
}

// TestCompileBundledStdioEndToEnd exercises a bracket #include of a bundled
// system header: stdio.h's guard-stripped prototypes must parse, its paired
// libs/stdio.c definitions must fold into the translation unit ahead of
// main's call sites, and putchar's array-free rewrite must assemble and run.
func TestCompileBundledStdioEndToEnd(t *testing.T) {
	src := `
#include <stdio.h>

int main() {
	puts("hi");
	putchar('!');
	return 0;
}
`
	result, errs := Compile([]Source{{Name: "main.c", Text: src}}, nil, false)
	require.Empty(t, errs)

	loaded := kernel.LoadProgram(result.Store, result.Checked, result.Program)
	k := kernel.New(vfs.New(), nil)
	k.LoadAndStart(loaded)

	code, err := k.Run()
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	var out []byte
	for _, ev := range k.Events() {
		if ev.Kind == kernel.StdoutWrite {
			out = append(out, ev.Data...)
		}
	}
	require.Equal(t, "hi\n!", string(out))
}
