// Package assembler lowers checked typed IR (internal/types) into the
// stack-machine bytecode (internal/bytecode) the kernel interprets.
package assembler

import (
	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/types"
)

// intrinsicNames maps the __tci_* shim names to their ecall number; calls
// to these names are lowered directly to OpEcall rather than OpCall.
var intrinsicNames = map[string]int64{
	"__tci_exit":   bytecode.EcallExit,
	"__tci_open":   bytecode.EcallOpenFd,
	"__tci_read":   bytecode.EcallReadFd,
	"__tci_write":  bytecode.EcallWriteFd,
	"__tci_append": bytecode.EcallAppendFd,
}

type assembler struct {
	store    *symtab.Store
	program  *bytecode.Program
	insts    []bytecode.Inst
	labelGen int
}

// Assemble lowers every defined function in checked into a Program. Global
// initializers are not emitted as code; kernel.LoadProgram writes constant
// initializers into the initial RAM image.
func Assemble(store *symtab.Store, checked *types.CheckedFile) (*bytecode.Program, error) {
	a := &assembler{store: store, program: &bytecode.Program{}}

	for _, sym := range checked.FuncOrder {
		fn := checked.Funcs[sym]
		if fn.Defn == nil {
			continue
		}
		a.insts = nil
		for _, st := range fn.Defn.Stmts {
			a.emitStmt(st)
		}
		paramOffsets, paramSizes := paramLayout(fn.FuncType.Params)
		a.program.AddFunc(bytecode.Func{
			Name:         sym,
			Insts:        a.insts,
			FrameSize:    fn.Defn.FrameSize,
			NumParams:    len(fn.FuncType.Params),
			ParamOffsets: paramOffsets,
			ParamSizes:   paramSizes,
		})
	}

	mainSym := symtab.SymbolID(0)
	if _, ok := checked.Funcs[mainSym]; ok && checked.Funcs[mainSym].Defn != nil {
		a.program.EntryPoint = mainSym
		a.program.HasEntry = true
	}
	return a.program, nil
}

// paramLayout recomputes each parameter's frame offset and byte width the
// same way the checker's frame allocator did (params come first, in
// declaration order, packed with AlignUp) so the kernel can write incoming
// call arguments at the exact offsets the callee's LocalAddr instructions
// expect.
func paramLayout(params []types.TCFuncParam) ([]uint32, []uint32) {
	offsets := make([]uint32, len(params))
	sizes := make([]uint32, len(params))
	var next uint32
	for i, p := range params {
		align := p.DeclType.Align()
		if align == 0 {
			align = 1
		}
		off := types.AlignUp(next, align)
		offsets[i] = off
		sizes[i] = p.DeclType.Size()
		next = off + p.DeclType.Size()
	}
	return offsets, sizes
}

func (a *assembler) emit(op bytecode.Opcode, args ...int64) int {
	inst := bytecode.Inst{Op: op}
	if len(args) > 0 {
		inst.A = args[0]
	}
	if len(args) > 1 {
		inst.B = args[1]
	}
	a.insts = append(a.insts, inst)
	return len(a.insts) - 1
}

func (a *assembler) patchTarget(idx int, target int64) {
	a.insts[idx].A = target
}

func (a *assembler) emitStmt(st types.TCStmt) {
	switch st.Kind {
	case types.TCSExpr:
		a.emitExpr(st.Expr)
		a.emit(bytecode.OpPop)
	case types.TCSDecl:
		a.emitExpr(st.Init)
		a.emit(bytecode.OpPop)
	case types.TCSRet:
		a.emit(bytecode.OpRet)
	case types.TCSRetVal:
		a.emitExpr(st.Expr)
		a.emit(bytecode.OpRetVal)
	case types.TCSIf:
		a.emitIf(st)
	case types.TCSLoop:
		a.emitLoop(st)
	}
}

// emitIf brackets Then with a JmpIfZero into Else (or past it, if there is
// no Else), and Then's end with an unconditional Jmp past Else.
func (a *assembler) emitIf(st types.TCStmt) {
	a.emitExpr(st.Expr)
	toElse := a.emit(bytecode.OpJmpIfZero, 0)
	for _, s := range st.Then {
		a.emitStmt(s)
	}
	toEnd := a.emit(bytecode.OpJmp, 0)
	a.patchTarget(toElse, int64(len(a.insts)))
	for _, s := range st.Else {
		a.emitStmt(s)
	}
	a.patchTarget(toEnd, int64(len(a.insts)))
}

// emitLoop emits Pre once, then a standard condition-at-top loop: jump past
// Body/Post the moment the condition (if any) is zero, and an unconditional
// Jmp back to the condition check after Post runs. A nil Expr (bare `for
// (;;)`) omits the condition check and jump entirely, making the loop only
// exitable via return or an unreachable-past-this-point path.
func (a *assembler) emitLoop(st types.TCStmt) {
	for _, s := range st.Pre {
		a.emitStmt(s)
	}
	condPC := len(a.insts)
	var toEnd int
	hasCond := st.Expr != nil
	if hasCond {
		a.emitExpr(st.Expr)
		toEnd = a.emit(bytecode.OpJmpIfZero, 0)
	}
	for _, s := range st.Body {
		a.emitStmt(s)
	}
	for _, s := range st.Post {
		a.emitStmt(s)
	}
	a.emit(bytecode.OpJmp, int64(condPC))
	if hasCond {
		a.patchTarget(toEnd, int64(len(a.insts)))
	}
}

// emitExpr lowers e, leaving exactly one value (its result) on the stack.
func (a *assembler) emitExpr(e *types.TCExpr) {
	switch e.Kind {
	case types.TCUninit:
		a.emit(bytecode.OpConstI32, 0)

	case types.TCIntLiteral:
		if e.ExprType.Kind == types.KindU64 {
			a.emit(bytecode.OpConstU64, int64(e.IntVal))
		} else {
			a.emit(bytecode.OpConstI32, int64(e.IntVal))
		}

	case types.TCStringLiteral:
		a.emit(bytecode.OpConstStr, int64(e.StrSym))

	case types.TCLocalIdent:
		a.emit(bytecode.OpLocalAddr, int64(e.VarOffset))
		a.emitLoad(e.ExprType)

	case types.TCGlobalIdent:
		inst := bytecode.Inst{Op: bytecode.OpGlobalAddr, Sym: e.GlobalSym}
		a.insts = append(a.insts, inst)
		a.emitLoad(e.ExprType)

	case types.TCAddI32, types.TCSubI32, types.TCMulI32, types.TCDivI32, types.TCModI32,
		types.TCAddU64, types.TCSubU64, types.TCMulU64, types.TCDivU64, types.TCModU64,
		types.TCAndI32, types.TCOrI32, types.TCXorI32, types.TCShlI32, types.TCShrI32,
		types.TCEqI32, types.TCNeqI32, types.TCLtI32, types.TCGtI32, types.TCLeqI32, types.TCGeqI32:
		a.emitExpr(e.Lhs)
		a.emitExpr(e.Rhs)
		a.emit(arithOp(e.Kind))

	case types.TCLogAnd:
		a.emitShortCircuit(e, true)
	case types.TCLogOr:
		a.emitShortCircuit(e, false)

	case types.TCNegI32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpNegI32)
	case types.TCNotI32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpNotI32)
	case types.TCBitNotI32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpBitNotI32)

	case types.TCSConv8To32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpSConv8To32)
	case types.TCSConv32To64:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpSConv32To64)
	case types.TCZConv8To32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpZConv8To32)
	case types.TCZConv32To64:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpZConv32To64)
	case types.TCTrunc64To32:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpTrunc64To32)
	case types.TCTrunc32To8:
		a.emitExpr(e.Lhs)
		a.emit(bytecode.OpTrunc32To8)

	case types.TCAssign:
		if e.Lhs != nil {
			// Post-increment/decrement: push the pre-update value as the
			// result, then store the updated value without duplicating it.
			a.emitExpr(e.Lhs)
			a.emitExpr(e.Value)
			a.emitTargetAddr(e.Target)
			a.emitStore(e.Target.TargetType)
			break
		}
		a.emitExpr(e.Value)
		a.emitStoreTarget(e.Target)

	case types.TCMember:
		a.emitAddr(e)
		a.emitLoad(e.ExprType)

	case types.TCDeref:
		a.emitExpr(e.Lhs)
		a.emitLoad(e.ExprType)

	case types.TCRef:
		a.emitTargetAddr(e.Target)

	case types.TCCall:
		a.emitCall(e)

	case types.TCPtrAdd:
		a.emitExpr(e.Lhs)
		a.emitExpr(e.Rhs)
		a.emit(bytecode.OpPtrAdd, int64(e.Stride))
	case types.TCPtrSub:
		a.emitExpr(e.Lhs)
		a.emitExpr(e.Rhs)
		a.emit(bytecode.OpPtrSub, int64(e.Stride))
	case types.TCPtrDiff:
		a.emitExpr(e.Lhs)
		a.emitExpr(e.Rhs)
		a.emit(bytecode.OpPtrDiff, int64(e.Stride))
	}
}

// emitAddr pushes the address of an lvalue expression (TCMember, TCDeref's
// target) without loading through it.
func (a *assembler) emitAddr(e *types.TCExpr) {
	switch e.Kind {
	case types.TCMember:
		a.emitAddr(e.Base)
		if e.Offset != 0 {
			a.emit(bytecode.OpConstU64, int64(e.Offset))
			a.emit(bytecode.OpPtrAdd, 1)
		}
	case types.TCDeref:
		a.emitExpr(e.Lhs)
	case types.TCLocalIdent:
		a.emit(bytecode.OpLocalAddr, int64(e.VarOffset))
	case types.TCGlobalIdent:
		a.insts = append(a.insts, bytecode.Inst{Op: bytecode.OpGlobalAddr, Sym: e.GlobalSym})
	default:
		a.emitExpr(e)
	}
}

func (a *assembler) emitTargetAddr(t *types.TCAssignTarget) {
	switch t.Kind {
	case types.AssignLocal:
		a.emit(bytecode.OpLocalAddr, int64(t.VarOffset))
	case types.AssignPtr:
		a.emitExpr(t.PtrExpr)
	}
	if t.Offset != 0 {
		a.emit(bytecode.OpConstU64, int64(t.Offset))
		a.emit(bytecode.OpPtrAdd, 1)
	}
}

// emitStoreTarget expects the value already on top of the stack (pushed by
// the TCAssign case before calling this). It dups the value, computes the
// target address on top of it, and stores — leaving the original value as
// the result of the assignment expression, per Store*'s (value, addr)
// stack convention (addr popped first).
func (a *assembler) emitStoreTarget(t *types.TCAssignTarget) {
	a.emit(bytecode.OpDup)
	a.emitTargetAddr(t)
	a.emitStore(t.TargetType)
}

func (a *assembler) emitLoad(t types.TCType) {
	switch t.Size() {
	case 1:
		a.emit(bytecode.OpLoad1)
	case 4:
		a.emit(bytecode.OpLoad4)
	default:
		a.emit(bytecode.OpLoad8)
	}
}

func (a *assembler) emitStore(t types.TCType) {
	switch t.Size() {
	case 1:
		a.emit(bytecode.OpStore1)
	case 4:
		a.emit(bytecode.OpStore4)
	default:
		a.emit(bytecode.OpStore8)
	}
}

// emitShortCircuit lowers && / || with proper short-circuit control flow,
// normalizing the result to 0 or 1 on every path. isAnd selects whether the
// rhs is skipped on a falsy (And) or truthy (Or) lhs.
func (a *assembler) emitShortCircuit(e *types.TCExpr, isAnd bool) {
	a.emitExpr(e.Lhs)
	a.emit(bytecode.OpDup)
	toRhsOrFalse := a.emit(bytecode.OpJmpIfZero, 0)

	// lhs truthy (And) or lhs falsy-branch skipped (Or, handled below).
	a.emit(bytecode.OpPop)
	if isAnd {
		a.emitExpr(e.Rhs)
		a.emit(bytecode.OpNotI32)
		a.emit(bytecode.OpNotI32)
	} else {
		a.emit(bytecode.OpConstI32, 1)
	}
	toEnd := a.emit(bytecode.OpJmp, 0)

	a.patchTarget(toRhsOrFalse, int64(len(a.insts)))
	a.emit(bytecode.OpPop)
	if isAnd {
		a.emit(bytecode.OpConstI32, 0)
	} else {
		a.emitExpr(e.Rhs)
		a.emit(bytecode.OpNotI32)
		a.emit(bytecode.OpNotI32)
	}

	a.patchTarget(toEnd, int64(len(a.insts)))
}

func (a *assembler) emitCall(e *types.TCExpr) {
	for _, p := range e.Params {
		pp := p
		a.emitExpr(&pp)
	}
	if ecall, ok := intrinsicEcall(a.store, e.Func); ok {
		a.emit(bytecode.OpEcall, ecall)
		return
	}
	a.insts = append(a.insts, bytecode.Inst{Op: bytecode.OpCall, B: int64(len(e.Params)), Sym: e.Func})
}

func intrinsicEcall(store *symtab.Store, sym symtab.SymbolID) (int64, bool) {
	name := store.SymbolToStr(sym)
	n, ok := intrinsicNames[name]
	return n, ok
}

func arithOp(k types.TCExprKind) bytecode.Opcode {
	switch k {
	case types.TCAddI32:
		return bytecode.OpAddI32
	case types.TCAddU64:
		return bytecode.OpAddU64
	case types.TCSubI32:
		return bytecode.OpSubI32
	case types.TCSubU64:
		return bytecode.OpSubU64
	case types.TCMulI32:
		return bytecode.OpMulI32
	case types.TCMulU64:
		return bytecode.OpMulU64
	case types.TCDivI32:
		return bytecode.OpDivI32
	case types.TCDivU64:
		return bytecode.OpDivU64
	case types.TCModI32:
		return bytecode.OpModI32
	case types.TCModU64:
		return bytecode.OpModU64
	case types.TCAndI32:
		return bytecode.OpAndI32
	case types.TCOrI32:
		return bytecode.OpOrI32
	case types.TCXorI32:
		return bytecode.OpXorI32
	case types.TCShlI32:
		return bytecode.OpShlI32
	case types.TCShrI32:
		return bytecode.OpShrI32
	case types.TCEqI32:
		return bytecode.OpEqI32
	case types.TCNeqI32:
		return bytecode.OpNeqI32
	case types.TCLtI32:
		return bytecode.OpLtI32
	case types.TCGtI32:
		return bytecode.OpGtI32
	case types.TCLeqI32:
		return bytecode.OpLeqI32
	case types.TCGeqI32:
		return bytecode.OpGeqI32
	default:
		return bytecode.OpAddI32
	}
}
