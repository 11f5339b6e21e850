// memory.go implements the per-process address space and the bytecode
// interpreter stepping logic, adapted from the teacher's operand-stack/
// flat-memory backend idiom (backend_vm.go) to TCI's stack machine.
package kernel

import (
	"encoding/binary"
	"fmt"

	"github.com/tci-lang/tci/internal/bytecode"
)

type frameRec struct {
	funcIdx int
	pc      int
	base    uint32 // offset into ram where this call's locals begin
}

// Memory is one process's address space: a flat byte RAM (globals at the
// low end, then a growing stack of call frames), an untyped operand stack,
// and an explicit VM call stack (not Go's own call stack) so execution can
// suspend mid-call for an ecall or a spent quantum and resume later.
type Memory struct {
	ram        []byte
	globalSize uint32
	stack      []uint64
	frames     []frameRec
	heapTop    uint32
}

func newMemory(globalSize uint32) *Memory {
	m := &Memory{globalSize: globalSize, heapTop: globalSize}
	m.ram = make([]byte, globalSize, globalSize*2+4096)
	return m
}

func (m *Memory) push(v uint64) { m.stack = append(m.stack, v) }
func (m *Memory) pop() uint64 {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *Memory) ensure(size uint32) {
	if uint32(len(m.ram)) < size {
		grown := make([]byte, size)
		copy(grown, m.ram)
		m.ram = grown
	}
}

func (m *Memory) writeBytes(addr uint32, data []byte) {
	m.ensure(addr + uint32(len(data)))
	copy(m.ram[addr:], data)
}

func (m *Memory) readBytes(addr uint32, n int) []byte {
	if int(addr)+n > len(m.ram) {
		m.ensure(addr + uint32(n))
	}
	return m.ram[addr : int(addr)+n]
}

func (m *Memory) readCString(addr uint32) []byte {
	end := addr
	for int(end) < len(m.ram) && m.ram[end] != 0 {
		end++
	}
	return m.ram[addr:end]
}

// StepOutcome describes why the interpreter stopped running.
type StepOutcome int

const (
	OutcomeQuantumSpent StepOutcome = iota
	OutcomeEcall
	OutcomeExited
	OutcomeError
)

type StepResult struct {
	Outcome  StepOutcome
	EcallNum int64
	ExitCode int32
	Err      error
}

// run executes up to opsAllowed instructions of the current call, returning
// how many it actually ran and why it stopped. An ecall request leaves its
// arguments retrievable via m.stack (top of stack, in reverse push order);
// the caller (Kernel.dispatchEcall) pops them with PopArgs and pushes any
// result with PushResult before run is called again to continue past the
// OpEcall instruction.
func (m *Memory) run(prog *bytecode.Program, opsAllowed uint32) (uint32, StepResult) {
	var ran uint32
	for ran < opsAllowed {
		if len(m.frames) == 0 {
			return ran, StepResult{Outcome: OutcomeExited, ExitCode: 0}
		}
		fr := &m.frames[len(m.frames)-1]
		fn := &prog.Funcs[fr.funcIdx]
		if fr.pc >= len(fn.Insts) {
			// Falling off the end of a function body without an explicit
			// return is only valid for a void function; treat as `return;`.
			zero := uint64(0)
			m.popFrame(&zero)
			ran++
			continue
		}
		inst := fn.Insts[fr.pc]
		fr.pc++
		ran++

		switch inst.Op {
		case bytecode.OpConstI32:
			m.push(uint64(uint32(int32(inst.A))))
		case bytecode.OpConstU64:
			m.push(uint64(inst.A))
		case bytecode.OpConstStr:
			m.push(uint64(inst.A)) // LoadProgram rewrote A to the string's address in the RAM image

		case bytecode.OpLocalAddr:
			m.push(uint64(fr.base) + uint64(inst.A))
		case bytecode.OpGlobalAddr:
			// A pre-pass (LoadProgram) rewrites every OpGlobalAddr's
			// A field from a symbol reference to its resolved byte offset
			// in the globals region before any process ever executes it.
			m.push(uint64(inst.A))

		case bytecode.OpLoad1:
			addr := uint32(m.pop())
			m.push(uint64(m.readBytes(addr, 1)[0]))
		case bytecode.OpLoad4:
			addr := uint32(m.pop())
			m.push(uint64(binary.LittleEndian.Uint32(m.readBytes(addr, 4))))
		case bytecode.OpLoad8:
			addr := uint32(m.pop())
			m.push(binary.LittleEndian.Uint64(m.readBytes(addr, 8)))

		case bytecode.OpStore1:
			addr := uint32(m.pop())
			val := m.pop()
			m.writeBytes(addr, []byte{byte(val)})
		case bytecode.OpStore4:
			addr := uint32(m.pop())
			val := m.pop()
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, uint32(val))
			m.writeBytes(addr, buf)
		case bytecode.OpStore8:
			addr := uint32(m.pop())
			val := m.pop()
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, val)
			m.writeBytes(addr, buf)

		case bytecode.OpAddI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a + b)))
		case bytecode.OpAddU64:
			b, a := m.pop(), m.pop()
			m.push(a + b)
		case bytecode.OpSubI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a - b)))
		case bytecode.OpSubU64:
			b, a := m.pop(), m.pop()
			m.push(a - b)
		case bytecode.OpMulI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a * b)))
		case bytecode.OpMulU64:
			b, a := m.pop(), m.pop()
			m.push(a * b)
		case bytecode.OpDivI32:
			b, a := int32(m.pop()), int32(m.pop())
			if b == 0 {
				return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("division by zero")}
			}
			m.push(uint64(uint32(a / b)))
		case bytecode.OpDivU64:
			b, a := m.pop(), m.pop()
			if b == 0 {
				return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("division by zero")}
			}
			m.push(a / b)
		case bytecode.OpModI32:
			b, a := int32(m.pop()), int32(m.pop())
			if b == 0 {
				return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("division by zero")}
			}
			m.push(uint64(uint32(a % b)))
		case bytecode.OpModU64:
			b, a := m.pop(), m.pop()
			if b == 0 {
				return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("division by zero")}
			}
			m.push(a % b)

		case bytecode.OpAndI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a & b)))
		case bytecode.OpOrI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a | b)))
		case bytecode.OpXorI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a ^ b)))
		case bytecode.OpShlI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a << uint32(b))))
		case bytecode.OpShrI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.push(uint64(uint32(a >> uint32(b))))

		case bytecode.OpEqI32:
			m.pushBool(int32(m.pop()) == int32(m.pop()))
		case bytecode.OpNeqI32:
			m.pushBool(int32(m.pop()) != int32(m.pop()))
		case bytecode.OpLtI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.pushBool(a < b)
		case bytecode.OpGtI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.pushBool(a > b)
		case bytecode.OpLeqI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.pushBool(a <= b)
		case bytecode.OpGeqI32:
			b, a := int32(m.pop()), int32(m.pop())
			m.pushBool(a >= b)

		case bytecode.OpNegI32:
			m.push(uint64(uint32(-int32(m.pop()))))
		case bytecode.OpNotI32:
			m.pushBool(int32(m.pop()) == 0)
		case bytecode.OpBitNotI32:
			m.push(uint64(uint32(^int32(m.pop()))))

		case bytecode.OpSConv8To32:
			m.push(uint64(uint32(int32(int8(m.pop())))))
		case bytecode.OpSConv32To64:
			m.push(uint64(int64(int32(m.pop()))))
		case bytecode.OpZConv8To32:
			m.push(uint64(uint32(byte(m.pop()))))
		case bytecode.OpZConv32To64:
			m.push(uint64(uint32(m.pop())))
		case bytecode.OpTrunc64To32:
			m.push(uint64(uint32(m.pop())))
		case bytecode.OpTrunc32To8:
			m.push(uint64(byte(m.pop())))

		case bytecode.OpPtrAdd:
			idx, base := int64(m.pop()), m.pop()
			m.push(uint64(int64(base) + idx*inst.A))
		case bytecode.OpPtrSub:
			idx, base := int64(m.pop()), m.pop()
			m.push(uint64(int64(base) - idx*inst.A))
		case bytecode.OpPtrDiff:
			b, a := m.pop(), m.pop()
			m.push(uint64((int64(a) - int64(b)) / inst.A))

		case bytecode.OpDup:
			v := m.stack[len(m.stack)-1]
			m.push(v)
		case bytecode.OpPop:
			m.pop()

		case bytecode.OpJmp:
			fr.pc = int(inst.A)
		case bytecode.OpJmpIfZero:
			if int32(m.pop()) == 0 {
				fr.pc = int(inst.A)
			}

		case bytecode.OpCall:
			calleeIdx, ok := prog.FuncByName[inst.Sym]
			if !ok {
				return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("call to undefined function")}
			}
			m.pushFrame(prog, calleeIdx, int(inst.B))

		case bytecode.OpEcall:
			// pc already advanced past this instruction; resuming after the
			// kernel services the ecall continues with the next one, with
			// the ecall's return value (if any) pushed by PushResult.
			return ran, StepResult{Outcome: OutcomeEcall, EcallNum: inst.A}

		case bytecode.OpRet:
			// A void return leaves a placeholder 0 so every call expression
			// yields one value for the caller's statement-level Pop.
			zero := uint64(0)
			m.popFrame(&zero)
		case bytecode.OpRetVal:
			v := m.pop()
			m.popFrame(&v)

		default:
			return ran, StepResult{Outcome: OutcomeError, Err: fmt.Errorf("unknown opcode %d", inst.Op)}
		}
	}
	return ran, StepResult{Outcome: OutcomeQuantumSpent}
}

// PopArgs pops n ecall arguments in left-to-right declaration order (they
// were pushed left-to-right, so the last one pushed — the rightmost
// parameter — pops first).
func (m *Memory) PopArgs(n int) []uint64 {
	args := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	return args
}

// PushResult pushes an ecall's return value onto the operand stack so the
// calling bytecode (which expects the intrinsic's call expression to leave
// a result) sees it after resuming.
func (m *Memory) PushResult(v uint64) { m.push(v) }

// ReadCString reads a NUL-terminated byte string out of process RAM.
func (m *Memory) ReadCString(addr uint32) []byte { return m.readCString(addr) }

// ReadBytes reads n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint32, n int) []byte { return m.readBytes(addr, n) }

// WriteBytes writes data starting at addr, growing RAM if needed.
func (m *Memory) WriteBytes(addr uint32, data []byte) { m.writeBytes(addr, data) }

func (m *Memory) pushBool(b bool) {
	if b {
		m.push(1)
	} else {
		m.push(0)
	}
}

// pushFrame pops numArgs values already on the operand stack (pushed by the
// caller in left-to-right order) into the callee's parameter slots at the
// base of its new frame, then begins executing it at pc 0.
func (m *Memory) pushFrame(prog *bytecode.Program, funcIdx int, numArgs int) {
	fn := &prog.Funcs[funcIdx]
	base := uint32(len(m.ram))
	m.ensure(base + fn.FrameSize)

	args := make([]uint64, numArgs)
	for i := numArgs - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	// Parameters occupy the frame's lowest slots in declaration order, at the
	// exact offsets and widths the checker's frame allocator assigned (see
	// assembler.paramLayout), which are not a uniform 8-byte stride once
	// char/int/pointer parameters are mixed.
	for i, v := range args {
		off := base + fn.ParamOffsets[i]
		switch fn.ParamSizes[i] {
		case 1:
			m.writeBytes(off, []byte{byte(v)})
		case 4:
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, uint32(v))
			m.writeBytes(off, buf)
		default:
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, v)
			m.writeBytes(off, buf)
		}
	}

	m.frames = append(m.frames, frameRec{funcIdx: funcIdx, pc: 0, base: base})
}

func (m *Memory) popFrame(retVal *uint64) {
	fr := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.ram = m.ram[:fr.base]
	if retVal != nil {
		m.push(*retVal)
	}
}
