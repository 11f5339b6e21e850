package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/vfs"
)

func exitProgram(code int32) *bytecode.Program {
	main := symtab.SymbolID(0)
	prog := &bytecode.Program{EntryPoint: main, HasEntry: true}
	prog.AddFunc(bytecode.Func{
		Name: main,
		Insts: []bytecode.Inst{
			{Op: bytecode.OpConstI32, A: int64(code)},
			{Op: bytecode.OpEcall, A: bytecode.EcallExit},
		},
	})
	return prog
}

func TestRunExitsWithCode(t *testing.T) {
	k := New(vfs.New(), nil)
	loaded := &LoadedProgram{Program: exitProgram(7)}
	k.LoadAndStart(loaded)

	code, err := k.Run()
	require.NoError(t, err)
	require.EqualValues(t, 7, code)
	require.Equal(t, StatusExited, k.processes[0].Status)
}

// infiniteLoopProgram jumps to itself forever, so a process running it never
// raises an ecall and must be rotated out purely by quantum exhaustion.
func infiniteLoopProgram() *bytecode.Program {
	main := symtab.SymbolID(0)
	prog := &bytecode.Program{EntryPoint: main, HasEntry: true}
	prog.AddFunc(bytecode.Func{
		Name:  main,
		Insts: []bytecode.Inst{{Op: bytecode.OpJmp, A: 0}},
	})
	return prog
}

func TestQuantumExhaustionReportsRunningWithoutEcall(t *testing.T) {
	k := New(vfs.New(), nil)
	k.LoadAndStart(&LoadedProgram{Program: infiniteLoopProgram()})

	status, err := k.RunOpCount(ProcMaxOpCount)
	require.NoError(t, err)
	require.Equal(t, "Running", status, "spending a full quantum with no ecall must not be mistaken for exit")
	require.Equal(t, StatusRunning, k.processes[0].Status)
}

// TestLoadAndStartRetiresPreviousForeground exercises the REPL-style reload
// path: loading a second program always force-exits whichever process was
// previously foreground, matching the original's term_proc bookkeeping, and
// the scheduler's round-robin cursor simply skips over that retired slot.
func TestLoadAndStartRetiresPreviousForeground(t *testing.T) {
	k := New(vfs.New(), nil)
	first := k.LoadAndStart(&LoadedProgram{Program: infiniteLoopProgram()})
	require.Equal(t, StatusRunning, k.processes[first].Status)

	second := k.LoadAndStart(&LoadedProgram{Program: exitProgram(9)})
	require.Equal(t, StatusExited, k.processes[first].Status)
	require.EqualValues(t, 1, k.processes[first].ExitVal)
	require.NotEqual(t, first, second)

	code, err := k.Run()
	require.NoError(t, err)
	require.EqualValues(t, 9, code, "Run must track the new foreground process, not process 0")
}

// TestOpenFdAlwaysBlocksOnSuccess exercises OpenFd's Blocked-on-success
// semantics directly by driving ecall dispatch under a process whose memory
// already has the path bytes written at address 0, rather than through a
// hand-assembled program.
func TestOpenFdAlwaysBlocksOnSuccess(t *testing.T) {
	files := vfs.New()
	require.NoError(t, files.Open("/f", vfs.OpenCreate))

	k := New(files, nil)
	main := symtab.SymbolID(0)
	prog := &bytecode.Program{EntryPoint: main, HasEntry: true}
	prog.AddFunc(bytecode.Func{Name: main, Insts: []bytecode.Inst{{Op: bytecode.OpEcall, A: bytecode.EcallOpenFd}}})
	k.LoadAndStart(&LoadedProgram{Program: prog, GlobalSize: 16, InitialData: append([]byte("/f"), 0)})

	proc := k.processes[0]
	proc.Memory.writeBytes(0, append([]byte("/f"), 0))
	proc.Memory.push(0) // name addr
	proc.Memory.push(0) // mode: OpenExisting

	status, err := k.RunOpCount(1)
	require.NoError(t, err)
	require.Equal(t, "Blocked", status, "OpenFd must report Blocked on success per the kernel ecall table")
	require.Len(t, proc.Fds, 5, "a new fd is appended after the four preloaded terminal fds")
}

func TestExitEcallSetsExited(t *testing.T) {
	k := New(vfs.New(), nil)
	k.LoadAndStart(&LoadedProgram{Program: exitProgram(3)})

	_, err := k.RunOpCount(^uint32(0))
	require.NoError(t, err)
	require.Equal(t, StatusExited, k.processes[0].Status)
	require.EqualValues(t, 3, k.processes[0].ExitVal)
}
