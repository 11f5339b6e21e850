// Package kernel implements the cooperative, single-threaded multi-process
// runtime: a round-robin scheduler over a fixed per-quantum op budget, a
// bytecode interpreter per process, and the ecall protocol (Exit, OpenFd,
// ReadFd, WriteFd, AppendFd) processes use to reach the outside world.
//
// Grounded line-for-line on the original Kernel.run_op_count/ecall dispatch;
// see DESIGN.md for the one deliberate divergence (four distinct terminal
// FdKinds preloaded per process, rather than aliasing stdout for all three).
package kernel

import (
	"fmt"

	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/types"
	"github.com/tci-lang/tci/internal/vfs"
	"go.uber.org/zap"
)

// ProcMaxOpCount is the fixed quantum: no process runs more than this many
// instructions before the scheduler is guaranteed a chance to rotate.
const ProcMaxOpCount uint32 = 5000

type ProcStatus int

const (
	StatusRunning ProcStatus = iota
	StatusExited
)

// Process couples one program's execution state (Memory/VM) with its fd
// table and exit status.
type Process struct {
	Memory  *Memory
	Fds     []FdKind
	Status  ProcStatus
	ExitVal int32
}

func newProcess(globalSize uint32) *Process {
	return &Process{
		Memory: newMemory(globalSize),
		Fds:    []FdKind{termFd(TermIn), termFd(TermOut), termFd(TermErr), termFd(TermLog)},
		Status: StatusRunning,
	}
}

// WriteEventKind tags one buffered output write for Kernel.Events/TermOut.
type WriteEventKind int

const (
	StdoutWrite WriteEventKind = iota
	StderrWrite
	StdlogWrite
)

type WriteEvent struct {
	Kind WriteEventKind
	Data []byte
}

// Kernel owns the shared VFS, the process table, and the round-robin
// scheduler cursor.
type Kernel struct {
	log   *zap.Logger
	files *vfs.FS

	loaded *LoadedProgram

	processes       []*Process
	currentProc     int
	currentOpCount  uint32
	activeCount     int

	// termProc is the index of the foreground process: the one LoadAndStart
	// replaces on its next call, mirroring the original's single-REPL-slot
	// term_proc bookkeeping. (Serve mode builds a new Kernel for each Run.)
	termProc int

	input    string
	inBegin  int
	output   []WriteEvent
}

// New builds an empty kernel around an in-memory VFS and a logger (pass
// zap.NewNop() for silent operation, as the CLI does unless -v is given).
func New(files *vfs.FS, log *zap.Logger) *Kernel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kernel{files: files, log: log, currentProc: -1, termProc: -1}
}

// LoadedProgram is a bytecode.Program whose OpGlobalAddr/OpConstStr
// immediates have been resolved to concrete byte offsets, plus the initial
// RAM image (globals + interned string pool) every new process starts from.
type LoadedProgram struct {
	Program     *bytecode.Program
	GlobalSize  uint32
	InitialData []byte
}

// LoadProgram resolves global/string addresses once per compiled program and
// mutates prog's instructions in place (a program is expected to be loaded
// by exactly one kernel session).
func LoadProgram(store *symtab.Store, checked *types.CheckedFile, prog *bytecode.Program) *LoadedProgram {
	globalOffsets := make(map[symtab.SymbolID]uint32)
	var globalSize uint32
	for _, g := range checked.Globals {
		off := types.AlignUp(globalSize, maxu(g.Type.Align(), 1))
		globalOffsets[g.Ident] = off
		globalSize = off + g.Type.Size()
	}

	data := make([]byte, globalSize)
	for _, g := range checked.Globals {
		if g.Init == nil {
			continue
		}
		off := globalOffsets[g.Ident]
		writeConstInit(data, off, g.Init)
	}

	stringOffsets := make(map[symtab.SymbolID]uint32)
	pool := []byte{}
	internString := func(sym symtab.SymbolID) uint32 {
		if off, ok := stringOffsets[sym]; ok {
			return globalSize + off
		}
		text := store.SymbolToStr(sym)
		off := uint32(len(pool))
		pool = append(pool, text...)
		pool = append(pool, 0)
		stringOffsets[sym] = off
		return globalSize + off
	}

	for fi := range prog.Funcs {
		insts := prog.Funcs[fi].Insts
		for i := range insts {
			switch insts[i].Op {
			case bytecode.OpGlobalAddr:
				insts[i].A = int64(globalOffsets[insts[i].Sym])
			case bytecode.OpConstStr:
				insts[i].A = int64(internString(symtab.SymbolID(insts[i].A)))
			}
		}
	}

	data = append(data, pool...)
	return &LoadedProgram{Program: prog, GlobalSize: uint32(len(data)), InitialData: data}
}

func writeConstInit(data []byte, off uint32, e *types.TCExpr) {
	switch e.Kind {
	case types.TCIntLiteral:
		switch e.ExprType.Size() {
		case 1:
			data[off] = byte(e.IntVal)
		case 4:
			putU32(data[off:], uint32(e.IntVal))
		case 8:
			putU64(data[off:], uint64(e.IntVal))
		}
	}
}

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func maxu(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// LoadAndStart installs a freshly loaded program as a new process, per the
// original's load_program: the previous foreground process (if any) is
// marked exited without decrementing activeCount (matching the original's
// own accounting, which never reclaims that slot either), stdin and buffered
// output are reset for the new foreground run, and the four terminal fds are
// preloaded.
func (k *Kernel) LoadAndStart(loaded *LoadedProgram) int {
	if k.termProc >= 0 {
		k.processes[k.termProc].Status = StatusExited
		k.processes[k.termProc].ExitVal = 1
	}

	k.loaded = loaded
	proc := newProcess(loaded.GlobalSize)
	copy(proc.Memory.ram, loaded.InitialData)
	entryIdx, ok := loaded.Program.FuncByName[loaded.Program.EntryPoint]
	if ok && loaded.Program.HasEntry {
		proc.Memory.frames = append(proc.Memory.frames, frameRec{funcIdx: entryIdx, pc: 0, base: loaded.GlobalSize})
		proc.Memory.ensure(loaded.GlobalSize + loaded.Program.Funcs[entryIdx].FrameSize)
	}

	k.input = ""
	k.inBegin = 0
	k.output = nil

	k.processes = append(k.processes, proc)
	k.termProc = len(k.processes) - 1
	k.activeCount++
	if k.currentProc < 0 {
		k.currentProc = k.termProc
	}
	return k.termProc
}

// Run drives the scheduler until the foreground process has exited,
// returning its exit code (the conventional "program result"). The
// foreground process is whichever one the most recent LoadAndStart
// installed, since an earlier one may already have been retired.
func (k *Kernel) Run() (int32, error) {
	if len(k.processes) == 0 {
		return 0, fmt.Errorf("kernel has no processes loaded")
	}
	for {
		if k.processes[k.termProc].Status == StatusExited {
			return k.processes[k.termProc].ExitVal, nil
		}
		if _, err := k.RunOpCount(^uint32(0)); err != nil {
			return 1, err
		}
	}
}

// RunOpCount is the scheduler step, mirroring run_op_count: it consumes up
// to count total instructions across however many processes it must rotate
// through, returning early (without consuming the whole budget) the moment
// one process raises an ecall.
func (k *Kernel) RunOpCount(count uint32) (string, error) {
	for count > 0 && k.activeCount != 0 {
		proc := k.processes[k.currentProc]
		if proc.Status == StatusExited {
			k.rotate()
			continue
		}

		opsAllowed := min32(count, ProcMaxOpCount-k.currentOpCount)
		ran, res := proc.Memory.run(k.loaded.Program, opsAllowed)
		k.currentOpCount += ran
		count -= ran

		switch res.Outcome {
		case OutcomeError:
			proc.Status = StatusExited
			proc.ExitVal = 1
			k.activeCount--
			return "Errored", res.Err

		case OutcomeExited:
			proc.Status = StatusExited
			// main's return value (0 for a void main) is left on the stack.
			if n := len(proc.Memory.stack); n > 0 {
				proc.ExitVal = int32(proc.Memory.stack[n-1])
			}
			k.activeCount--
			k.log.Debug("process exited", zap.Int("proc", k.currentProc))
			return "Exited", nil

		case OutcomeEcall:
			status, err := k.dispatchEcall(k.currentProc, proc, res.EcallNum)
			if err != nil {
				proc.Status = StatusExited
				proc.ExitVal = 1
				k.activeCount--
				return "Errored", err
			}
			if status == "Exited" {
				k.activeCount--
			}
			return status, nil

		case OutcomeQuantumSpent:
			// fall through to rotation below
		}

		k.currentOpCount = 0
		k.rotate()
	}

	if count == 0 {
		return "Running", nil
	}
	return "Exited", nil
}

func (k *Kernel) rotate() {
	k.currentOpCount = 0
	k.currentProc++
	if k.currentProc == len(k.processes) {
		k.currentProc = 0
	}
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// Events drains and returns buffered terminal writes since the last call.
func (k *Kernel) Events() []WriteEvent {
	ev := k.output
	k.output = nil
	return ev
}

// FeedStdin appends to the shared stdin buffer every process's TermIn reads
// drain from, in FIFO order.
func (k *Kernel) FeedStdin(data string) {
	k.input += data
}
