// Package bytecode defines the stack machine ISA that internal/assembler
// lowers typed IR into and internal/kernel interprets. Instructions operate
// on an untyped byte stack; width and signedness live in the opcode, not in
// any runtime tag.
package bytecode

import "github.com/tci-lang/tci/internal/symtab"

type Opcode int

const (
	OpConstI32 Opcode = iota
	OpConstU64
	OpConstStr // pushes a pointer to an interned string's bytes (A: symbol id)

	OpLocalAddr // pushes frame_ptr + A (stack-offset local address)
	OpGlobalAddr

	OpLoad1 // pop addr, push *addr widened to the opcode's width
	OpLoad4
	OpLoad8
	OpStore1 // pop addr (top), pop value (second), write value at addr
	OpStore4
	OpStore8

	OpAddI32
	OpAddU64
	OpSubI32
	OpSubU64
	OpMulI32
	OpMulU64
	OpDivI32
	OpDivU64
	OpModI32
	OpModU64

	OpAndI32
	OpOrI32
	OpXorI32
	OpShlI32
	OpShrI32

	OpEqI32
	OpNeqI32
	OpLtI32
	OpGtI32
	OpLeqI32
	OpGeqI32

	OpNegI32
	OpNotI32
	OpBitNotI32

	OpSConv8To32
	OpSConv32To64
	OpZConv8To32
	OpZConv32To64
	OpTrunc64To32
	OpTrunc32To8

	OpPtrAdd // pop idx, pop base, push base + idx*A (A: stride)
	OpPtrSub
	OpPtrDiff // pop b, pop a, push (a-b)/A

	OpDup
	OpPop

	OpJmp       // unconditional, target A
	OpJmpIfZero // pop cond, jump to A if zero

	OpCall   // Sym: function symbol; B: arg count
	OpEcall  // ecall dispatch, A: ecall number (per kernel ecall protocol)
	OpRet
	OpRetVal
)

// Inst is one bytecode instruction. A/B are immediates whose meaning
// depends on Opcode; not every field is populated for every opcode, mirroring
// the flat-tagged-union idiom used throughout the typed IR.
type Inst struct {
	Op Opcode
	A  int64
	B  int64

	// Sym carries a function/global symbol reference for OpCall/OpGlobalAddr
	// rather than forcing the caller to pre-resolve it to a numeric index.
	Sym symtab.SymbolID
}

// Func is one assembled function body: its instruction stream, the frame
// size to reserve starting at the frame pointer, and the parameter count (used by
// the kernel to lay out the initial call frame).
type Func struct {
	Name      symtab.SymbolID
	Insts     []Inst
	FrameSize uint32
	NumParams int

	// ParamOffsets/ParamSizes record each parameter's checker-assigned
	// frame offset and byte width, in declaration order, so the
	// interpreter's call sequence writes each incoming argument at the
	// exact offset LocalAddr instructions inside the callee expect — which
	// is not simply a uniform 8-byte stride once parameters of mixed width
	// (char, int, pointer) are mixed.
	ParamOffsets []uint32
	ParamSizes   []uint32
}

// Program is a whole translation unit's assembled output: every defined
// function plus the name of the entry point, if any.
type Program struct {
	Funcs      []Func
	FuncByName map[symtab.SymbolID]int // index into Funcs
	EntryPoint symtab.SymbolID
	HasEntry   bool
}

// Ecall numbers, carried in Inst.A for OpEcall. These are the assembler's
// and the kernel's shared understanding of the ecall protocol; the
// assembler recognizes calls to the __tci_* intrinsic names and emits
// these rather than an OpCall.
const (
	EcallExit int64 = iota
	EcallOpenFd
	EcallReadFd
	EcallWriteFd
	EcallAppendFd
)

func (p *Program) AddFunc(f Func) int {
	if p.FuncByName == nil {
		p.FuncByName = make(map[symtab.SymbolID]int)
	}
	idx := len(p.Funcs)
	p.Funcs = append(p.Funcs, f)
	p.FuncByName[f.Name] = idx
	return idx
}
