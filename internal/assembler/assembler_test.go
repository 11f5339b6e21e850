package assembler_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/assembler"
	"github.com/tci-lang/tci/internal/kernel"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/parser"
	"github.com/tci-lang/tci/internal/preprocessor"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/types"
	"github.com/tci-lang/tci/internal/vfs"
)

// assembleAndRun lexes, preprocesses, parses, checks, and assembles src, then
// runs it to completion in a fresh kernel and returns __tci_exit's code.
func assembleAndRun(t *testing.T, src string) int32 {
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

	checked, err := types.CheckFile(store, file)
	require.NoError(t, err)

	prog, err := assembler.Assemble(store, checked)
	require.NoError(t, err)

	loaded := kernel.LoadProgram(store, checked, prog)
	k := kernel.New(vfs.New(), nil)
	k.LoadAndStart(loaded)

	code, err := k.Run()
	require.NoError(t, err)
	return code
}

func TestShortCircuitAndSkipsRHSOnFalseLHS(t *testing.T) {
	// If && evaluated the RHS unconditionally, the side-effecting call would
	// run and bump sideEffect to 1, flipping the exit code to 1.
	code := assembleAndRun(t, `
int sideEffect = 0;

int bump() {
	sideEffect = 1;
	return 1;
}

int main() {
	int r = 0 && bump();
	__tci_exit(sideEffect);
	return 0;
}
`)
	require.EqualValues(t, 0, code)
}

func TestShortCircuitAndRunsRHSOnTrueLHS(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	int r = 1 && 1;
	__tci_exit(r);
	return 0;
}
`)
	require.EqualValues(t, 1, code)
}

func TestShortCircuitOrSkipsRHSOnTrueLHS(t *testing.T) {
	code := assembleAndRun(t, `
int sideEffect = 0;

int bump() {
	sideEffect = 1;
	return 1;
}

int main() {
	int r = 1 || bump();
	__tci_exit(sideEffect);
	return 0;
}
`)
	require.EqualValues(t, 0, code)
}

func TestShortCircuitOrRunsRHSOnFalseLHS(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	int r = 0 || 1;
	__tci_exit(r);
	return 0;
}
`)
	require.EqualValues(t, 1, code)
}

func TestAssignmentIsAnExpression(t *testing.T) {
	// The result of a plain assignment must be usable as a value, not just a
	// statement: chained assignment and assignment-in-condition both rely on
	// emitStoreTarget leaving the stored value on the stack.
	code := assembleAndRun(t, `
int main() {
	int a;
	int b;
	a = b = 9;
	__tci_exit(a + b);
	return 0;
}
`)
	require.EqualValues(t, 18, code)
}

func TestCallWithMixedWidthParamsUsesRealOffsets(t *testing.T) {
	// Exercises paramLayout: a char param packed before an int param must not
	// be read back at a uniform 8-byte stride.
	code := assembleAndRun(t, `
int combine(char tag, int value) {
	__tci_exit(value + tag);
	return 0;
}

int main() {
	combine('A', 10);
	return 0;
}
`)
	require.EqualValues(t, 75, code)
}

func TestIfRunsOnlyThenBranchOnTrueCondition(t *testing.T) {
	// The exit code must come from the then-branch's __tci_exit(1), not the
	// else-branch's __tci_exit(2).
	code := assembleAndRun(t, `
int main() {
	if (1) {
		__tci_exit(1);
	} else {
		__tci_exit(2);
	}
	return 0;
}
`)
	require.EqualValues(t, 1, code)
}

func TestIfRunsOnlyElseBranchOnFalseCondition(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	if (0) {
		__tci_exit(1);
	} else {
		__tci_exit(2);
	}
	return 0;
}
`)
	require.EqualValues(t, 2, code)
}

func TestIfWithoutElseSkipsThenOnFalseCondition(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	int r = 0;
	if (0) {
		r = 1;
	}
	__tci_exit(r);
	return 0;
}
`)
	require.EqualValues(t, 0, code)
}

func TestWhileLoopIteratesUntilConditionFalse(t *testing.T) {
	// A loop body that runs exactly once (the historic bug) would exit with
	// 4, not the fully-counted-down 0.
	code := assembleAndRun(t, `
int main() {
	int i = 5;
	while (i > 0) {
		i = i - 1;
	}
	__tci_exit(i);
	return 0;
}
`)
	require.EqualValues(t, 0, code)
}

func TestForLoopRunsInitCondPostInOrder(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	int sum = 0;
	int i;
	for (i = 0; i < 5; i = i + 1) {
		sum = sum + i;
	}
	__tci_exit(sum);
	return 0;
}
`)
	require.EqualValues(t, 10, code)
}

func TestForDeclLoopScopesInitToLoop(t *testing.T) {
	code := assembleAndRun(t, `
int main() {
	int total = 0;
	for (int i = 0; i < 4; i = i + 1) {
		total = total + 1;
	}
	__tci_exit(total);
	return 0;
}
`)
	require.EqualValues(t, 4, code)
}
