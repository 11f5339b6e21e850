// Package types implements TCI's declaration-ordered type checker and the
// typed IR it lowers the AST to: TCType, TCExpr, TCFuncType and friends,
// exactly as named in the Data Model. Primitives are the reduced set
// {I32, U64, Char, Pointer} — the canonical set the Data Model commits to
// (see DESIGN.md's Open Question resolution).
package types

import "github.com/tci-lang/tci/internal/symtab"

type TypeKind int

const (
	KindI32 TypeKind = iota
	KindU64
	KindChar
	KindVoid
	KindStruct
	KindUninit
)

const UnknownSize uint32 = ^uint32(0)

type SizeAlign struct {
	Size  uint32
	Align uint32
}

var UnknownSA = SizeAlign{Size: UnknownSize, Align: 0}

func SA(size, align uint32) SizeAlign { return SizeAlign{Size: size, Align: align} }

// TCType is (kind, pointer_count); size/align are derived, never stored.
type TCType struct {
	Kind         TypeKind
	StructIdent  symtab.SymbolID
	StructSA     SizeAlign // valid when Kind == KindStruct
	UninitSize   uint32    // valid when Kind == KindUninit
	PointerCount uint32
}

// Shallow is the primitive discriminant used as overload-table keys.
type Shallow int

const (
	ShallowI32 Shallow = iota
	ShallowU64
	ShallowChar
	ShallowVoid
	ShallowStruct
	ShallowPointer
)

func (t TCType) Shallow() Shallow {
	if t.PointerCount > 0 {
		return ShallowPointer
	}
	switch t.Kind {
	case KindI32:
		return ShallowI32
	case KindU64:
		return ShallowU64
	case KindChar:
		return ShallowChar
	case KindVoid:
		return ShallowVoid
	case KindStruct:
		return ShallowStruct
	default:
		panic("cannot make shallow of uninit")
	}
}

func (t TCType) Size() uint32 {
	if t.PointerCount > 0 {
		return 8
	}
	switch t.Kind {
	case KindU64:
		return 8
	case KindI32:
		return 4
	case KindChar:
		return 1
	case KindVoid:
		return 0
	case KindStruct:
		return t.StructSA.Size
	case KindUninit:
		return t.UninitSize
	default:
		return 0
	}
}

func (t TCType) Align() uint32 {
	if t.PointerCount > 0 {
		return 8
	}
	switch t.Kind {
	case KindU64:
		return 8
	case KindI32:
		return 4
	case KindChar:
		return 1
	case KindVoid:
		return 0
	case KindStruct:
		return t.StructSA.Align
	case KindUninit:
		return 1 // quietly corrected from the original's size-as-align quirk; see DESIGN.md
	default:
		return 1
	}
}

func (a TCType) Equal(b TCType) bool {
	if a.PointerCount != b.PointerCount {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindStruct {
		return a.StructIdent == b.StructIdent
	}
	return true
}

func AlignUp(size, align uint32) uint32 {
	if size == 0 {
		return 0
	}
	if align == 0 {
		return size
	}
	return ((size-1)/align)*align + align
}

type TCStructMember struct {
	DeclType TCType
	Ident    symtab.SymbolID
	Loc      symtab.CodeLoc
	Offset   uint32
}

type TCStructDefn struct {
	DefnIdx int
	Members []TCStructMember
	Loc     symtab.CodeLoc
	SA      SizeAlign
}

type TCStruct struct {
	DeclIdx int
	Defn    *TCStructDefn
	DeclLoc symtab.CodeLoc
}

type TCFuncParam struct {
	DeclType TCType
	Ident    symtab.SymbolID
}

type TCFuncType struct {
	DeclIdx    int
	ReturnType TCType
	Loc        symtab.CodeLoc
	Params     []TCFuncParam
	Varargs    bool
}

func (a TCFuncType) Equal(b TCFuncType) bool {
	if !a.ReturnType.Equal(b.ReturnType) {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !a.Params[i].DeclType.Equal(b.Params[i].DeclType) {
			return false
		}
	}
	return a.Varargs == b.Varargs
}

type TCFuncDefn struct {
	DefnIdx int
	Loc     symtab.CodeLoc
	Stmts   []TCStmt
	FrameSize uint32 // bytes of local storage starting at the frame pointer
}

type TCFunc struct {
	FuncType TCFuncType
	Defn     *TCFuncDefn
}

type AssignKind int

const (
	AssignLocal AssignKind = iota
	AssignPtr
)

type TCAssignTarget struct {
	Kind       AssignKind
	VarOffset  int32  // AssignLocal
	PtrExpr    *TCExpr // AssignPtr
	DefnLoc    *symtab.CodeLoc
	TargetLoc  symtab.CodeLoc
	TargetType TCType
	Offset     uint32
}

type TCExprKind int

const (
	TCUninit TCExprKind = iota
	TCIntLiteral
	TCStringLiteral
	TCLocalIdent
	TCGlobalIdent
	TCAddI32
	TCAddU64
	TCSubI32
	TCSubU64
	TCMulI32
	TCMulU64
	TCDivI32
	TCDivU64
	TCModI32
	TCModU64
	TCAndI32
	TCOrI32
	TCXorI32
	TCShlI32
	TCShrI32
	TCEqI32
	TCNeqI32
	TCLtI32
	TCGtI32
	TCLeqI32
	TCGeqI32
	TCLogAnd
	TCLogOr
	TCNegI32
	TCNotI32
	TCBitNotI32
	TCSConv8To32
	TCSConv32To64
	TCZConv8To32
	TCZConv32To64
	TCTrunc64To32
	TCTrunc32To8
	TCAssign
	TCMember
	TCDeref
	TCRef
	TCCall
	TCPtrAdd  // pointer + (int * stride)
	TCPtrSub  // pointer - (int * stride)
	TCPtrDiff // (pointer - pointer) / stride
)

type TCExpr struct {
	Kind     TCExprKind
	ExprType TCType
	Loc      symtab.CodeLoc

	IntVal int32
	StrSym symtab.SymbolID

	VarOffset int32 // TCLocalIdent
	GlobalSym symtab.SymbolID

	Lhs *TCExpr
	Rhs *TCExpr

	Target *TCAssignTarget // TCAssign, TCRef
	Value  *TCExpr         // TCAssign

	Base   *TCExpr // TCMember
	Offset uint32  // TCMember

	Func    symtab.SymbolID
	Params  []TCExpr
	Varargs bool

	Stride uint32 // TCPtrAdd/TCPtrSub/TCPtrDiff
}

type TCStmtKind int

const (
	TCSRetVal TCStmtKind = iota
	TCSRet
	TCSExpr
	TCSDecl
	TCSIf
	TCSLoop
)

// TCStmt is the checked-IR lowering of one ast.Stmt. If and Loop keep their
// condition and branch/body statement lists separately delimited (never
// flattened into one slice) so the assembler can bracket them with real
// jumps instead of falling through every path unconditionally.
type TCStmt struct {
	Kind TCStmtKind
	Loc  symtab.CodeLoc
	Expr *TCExpr // RetVal, Expr, Decl-less Init; If/Loop condition (Loop: nil means unconditional)
	Init *TCExpr // Decl: a TCAssign storing the initializer into the declared local

	Then []TCStmt // If: statements run when Expr is nonzero
	Else []TCStmt // If: statements run when Expr is zero (may be empty)

	Pre  []TCStmt // Loop: statements run once before the first condition check
	Body []TCStmt // Loop: statements run once per iteration
	Post []TCStmt // Loop: statements run after Body, before re-checking the condition
}
