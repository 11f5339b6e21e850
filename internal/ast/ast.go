// Package ast defines arena-indexed AST nodes produced by internal/parser.
// Cross-references are int32 indices into per-translation-unit arenas
// rather than pointers: Go has no borrow checker to make a Rust-style
// bump-arena-with-lifetimes safe, so TCI indexes instead of links.
package ast

import "github.com/tci-lang/tci/internal/symtab"

type ExprID int32
type StmtID int32
type GlobalID int32

const NoExpr ExprID = -1

type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLeq
	OpGeq
	OpLogAnd
	OpLogOr
)

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpBitNot
)

type ExprKind int

const (
	EIntLiteral ExprKind = iota
	ECharLiteral
	EStringLiteral
	EIdent
	EBinOp
	EUnaryOp
	EAssign
	ECall
	EMember
	EPtrMember
	EIndex
	EPostIncr
	EPostDecr
	ERef
	EDeref
	ECast
	ESizeofExpr
	ESizeofType
	EUninit
)

// Expr is an arena-indexed expression node. Only the fields relevant to
// Kind are populated; Go has no tagged unions, so this mirrors the
// original's enum-of-structs with one flat struct, as the teacher's own
// Node type does for its single-language AST.
type Expr struct {
	Kind ExprKind
	Loc  symtab.CodeLoc

	IntVal  int32
	CharVal int8
	StrSym  symtab.SymbolID
	Ident   symtab.SymbolID

	BinOp   BinOp
	UnaryOp UnaryOp
	Lhs     ExprID
	Rhs     ExprID

	Base   ExprID
	Member symtab.SymbolID

	Func   ExprID
	Params []ExprID

	CastType Type
	List     []ExprID
}

type TypeKind int

const (
	TInt TypeKind = iota
	TChar
	TVoid
	TStruct
)

// Type is the parser-level (unchecked) type reference; internal/types
// resolves these against the struct/typedef environment.
type Type struct {
	Kind         TypeKind
	StructIdent  symtab.SymbolID
	PointerCount uint32
	Loc          symtab.CodeLoc
}

type Decl struct {
	DeclType     Type
	PointerCount uint32
	Ident        symtab.SymbolID
	Loc          symtab.CodeLoc
	Init         ExprID // NoExpr if absent
}

type StmtKind int

const (
	SDecl StmtKind = iota
	SExpr
	SNop
	SRet
	SRetVal
	SBranch
	SBlock
	SFor
	SForDecl
	SWhile
)

type Stmt struct {
	Kind StmtKind
	Loc  symtab.CodeLoc

	DeclType Type
	Decls    []Decl

	Expr ExprID

	IfCond   ExprID
	IfBody   []StmtID
	ElseBody []StmtID

	Body []StmtID

	AtStart         ExprID
	AtStartDecl     []Decl
	AtStartDeclType Type
	Condition       ExprID
	PostExpr        ExprID
}

type ParamKind int

const (
	PStructLike ParamKind = iota
	PVararg
)

type Param struct {
	Kind         ParamKind
	DeclType     Type
	PointerCount uint32
	Ident        symtab.SymbolID
	Loc          symtab.CodeLoc
}

type InnerStructDecl struct {
	DeclType     Type
	PointerCount uint32
	Ident        symtab.SymbolID
	Loc          symtab.CodeLoc
}

type StructDecl struct {
	Ident       symtab.SymbolID
	IdentLoc    symtab.CodeLoc
	Members     []InnerStructDecl
	HasMembers  bool
	Loc         symtab.CodeLoc
}

type GlobalKind int

const (
	GFunc GlobalKind = iota
	GFuncDecl
	GStructDecl
	GTypedef
	GDecl
)

type Global struct {
	Kind GlobalKind
	Loc  symtab.CodeLoc

	ReturnType   Type
	PointerCount uint32
	Ident        symtab.SymbolID
	Params       []Param
	Body         []StmtID // GFunc only

	Struct StructDecl // GStructDecl only

	TypedefType Type // GTypedef only

	DeclType Type // GDecl only
	Decls    []Decl
}

// File is one translation unit's arena: every Expr/Stmt referenced by index
// lives here, plus the ordered list of top-level globals.
type File struct {
	Exprs   []Expr
	Stmts   []Stmt
	Globals []Global
}

func (f *File) AddExpr(e Expr) ExprID {
	f.Exprs = append(f.Exprs, e)
	return ExprID(len(f.Exprs) - 1)
}

func (f *File) AddStmt(s Stmt) StmtID {
	f.Stmts = append(f.Stmts, s)
	return StmtID(len(f.Stmts) - 1)
}

func (f *File) Expr(id ExprID) *Expr { return &f.Exprs[id] }
func (f *File) Stmt(id StmtID) *Stmt { return &f.Stmts[id] }
