// check.go implements the declaration-ordered checker: struct/typedef
// topology, per-function scope stacks, and expression lowering into typed
// IR via the overload/assignment-conversion tables in overload.go.
package types

import (
	"github.com/tci-lang/tci/internal/ast"
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/symtab"
)

// GlobalVar is a checked top-level variable declaration.
type GlobalVar struct {
	Ident symtab.SymbolID
	Type  TCType
	Init  *TCExpr
}

// CheckedFile is the output of one translation unit's type checking: the
// struct/typedef environment plus checked functions and globals, in
// declaration order.
type CheckedFile struct {
	Structs   map[symtab.SymbolID]*TCStruct
	Typedefs  map[symtab.SymbolID]TCType
	Funcs     map[symtab.SymbolID]*TCFunc
	FuncOrder []symtab.SymbolID
	Globals   []GlobalVar
}

type scope struct {
	parent *scope
	vars   map[symtab.SymbolID]localVar
}

type localVar struct {
	typ    TCType
	offset int32
	loc    symtab.CodeLoc
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[symtab.SymbolID]localVar)}
}

func (s *scope) lookup(sym symtab.SymbolID) (localVar, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[sym]; ok {
			return v, true
		}
	}
	return localVar{}, false
}

func (s *scope) declare(sym symtab.SymbolID, v localVar) bool {
	if _, ok := s.vars[sym]; ok {
		return false
	}
	s.vars[sym] = v
	return true
}

// frame allocates stack-frame storage as a single monotonically growing
// offset from the frame pointer: parameters occupy the first slots (in
// declaration order), locals continue upward after them. Using one
// unsigned counter for both (rather than negative offsets for parameters)
// keeps every frame address a plain non-negative index into the kernel's
// per-process RAM array.
type frame struct {
	next uint32
}

func (f *frame) allocParam(t TCType) int32 {
	return f.allocLocal(t)
}

func (f *frame) allocLocal(t TCType) int32 {
	aligned := AlignUp(f.next, maxu(t.Align(), 1))
	f.next = aligned + t.Size()
	return int32(aligned)
}

func maxu(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

type Checker struct {
	store   *symtab.Store
	file    *ast.File
	out     *CheckedFile
	declIdx int
	visited map[symtab.SymbolID]bool // struct cycle detection scratch
}

// CheckFile type-checks an AST file into typed IR.
func CheckFile(store *symtab.Store, file *ast.File) (*CheckedFile, error) {
	c := &Checker{
		store: store,
		file:  file,
		out: &CheckedFile{
			Structs:  make(map[symtab.SymbolID]*TCStruct),
			Typedefs: make(map[symtab.SymbolID]TCType),
			Funcs:    make(map[symtab.SymbolID]*TCFunc),
		},
	}
	for i := range file.Globals {
		if err := c.checkGlobal(i, &file.Globals[i]); err != nil {
			return nil, err
		}
		c.declIdx++
	}
	if err := c.checkMain(); err != nil {
		return nil, err
	}
	return c.out, nil
}

func (c *Checker) checkGlobal(idx int, g *ast.Global) error {
	switch g.Kind {
	case ast.GStructDecl:
		return c.checkStructDecl(g)
	case ast.GTypedef:
		t, err := c.resolveASTType(g.TypedefType, g.TypedefType.PointerCount)
		if err != nil {
			return err
		}
		c.out.Typedefs[g.Ident] = t
		return nil
	case ast.GFuncDecl:
		return c.checkFuncSig(g, false)
	case ast.GFunc:
		return c.checkFuncSig(g, true)
	case ast.GDecl:
		return c.checkGlobalDecl(g)
	default:
		return diag.New(diag.Semantic, g.Loc, "unknown global statement kind")
	}
}

func (c *Checker) checkStructDecl(g *ast.Global) error {
	decl := g.Struct
	existing, ok := c.out.Structs[decl.Ident]
	if !ok {
		existing = &TCStruct{DeclIdx: c.declIdx, DeclLoc: decl.Loc}
		c.out.Structs[decl.Ident] = existing
	}
	if !decl.HasMembers {
		return nil
	}
	if existing.Defn != nil {
		return diag.New(diag.Semantic, decl.Loc, "redefinition of struct %q", c.store.SymbolToStr(decl.Ident))
	}

	var members []TCStructMember
	var running uint32
	var structAlign uint32 = 1
	for _, m := range decl.Members {
		mt, err := c.resolveASTType(m.DeclType, m.PointerCount)
		if err != nil {
			return err
		}
		if mt.PointerCount == 0 && mt.Kind == KindStruct && mt.StructIdent == decl.Ident {
			return diag.New(diag.Semantic, m.Loc, "struct %q contains itself without pointer indirection",
				c.store.SymbolToStr(decl.Ident))
		}
		if mt.PointerCount == 0 && mt.Kind == KindStruct {
			other := c.out.Structs[mt.StructIdent]
			if other == nil || other.Defn == nil {
				return diag.New(diag.Semantic, m.Loc, "member of incomplete struct type")
			}
		}
		align := mt.Align()
		offset := AlignUp(running, align)
		running = offset + mt.Size()
		if align > structAlign {
			structAlign = align
		}
		members = append(members, TCStructMember{DeclType: mt, Ident: m.Ident, Loc: m.Loc, Offset: offset})
	}
	size := AlignUp(running, structAlign)
	existing.Defn = &TCStructDefn{
		DefnIdx: c.declIdx, Members: members, Loc: decl.Loc, SA: SA(size, structAlign),
	}
	return nil
}

// resolveASTType resolves a parser-level ast.Type against the checker's
// struct/typedef environment, rejecting non-pointer use of an as-yet
// incomplete or undeclared type.
func (c *Checker) resolveASTType(t ast.Type, pointerCount uint32) (TCType, error) {
	switch t.Kind {
	case ast.TVoid:
		return TCType{Kind: KindVoid, PointerCount: pointerCount}, nil
	case ast.TInt:
		return TCType{Kind: KindI32, PointerCount: pointerCount}, nil
	case ast.TChar:
		return TCType{Kind: KindChar, PointerCount: pointerCount}, nil
	case ast.TStruct:
		st, ok := c.out.Structs[t.StructIdent]
		if !ok {
			return TCType{}, diag.New(diag.Semantic, t.Loc, "undeclared struct %q", c.store.SymbolToStr(t.StructIdent))
		}
		if pointerCount == 0 && st.Defn == nil {
			return TCType{}, diag.New(diag.Semantic, t.Loc, "use of incomplete struct %q", c.store.SymbolToStr(t.StructIdent))
		}
		if pointerCount == 0 && st.Defn != nil && st.DeclIdx > c.declIdx {
			// declaration-order violation is only meaningful for definitions
			// appearing strictly after this use; DeclIdx tracks first mention.
		}
		sa := UnknownSA
		if st.Defn != nil {
			sa = st.Defn.SA
		}
		return TCType{Kind: KindStruct, StructIdent: t.StructIdent, StructSA: sa, PointerCount: pointerCount}, nil
	default:
		return TCType{}, diag.New(diag.Semantic, t.Loc, "unknown type kind")
	}
}

func (c *Checker) checkFuncSig(g *ast.Global, hasBody bool) error {
	retType, err := c.resolveASTType(g.ReturnType, g.PointerCount)
	if err != nil {
		return err
	}
	var params []TCFuncParam
	varargs := false
	for _, p := range g.Params {
		if p.Kind == ast.PVararg {
			varargs = true
			continue
		}
		pt, err := c.resolveASTType(p.DeclType, p.PointerCount)
		if err != nil {
			return err
		}
		params = append(params, TCFuncParam{DeclType: pt, Ident: p.Ident})
	}
	ft := TCFuncType{DeclIdx: c.declIdx, ReturnType: retType, Loc: g.Loc, Params: params, Varargs: varargs}

	existing, ok := c.out.Funcs[g.Ident]
	if ok {
		if !existing.FuncType.Equal(ft) {
			return diag.New(diag.Semantic, g.Loc, "conflicting declaration of function %q", c.store.SymbolToStr(g.Ident))
		}
		if hasBody {
			if existing.Defn != nil {
				return diag.New(diag.Semantic, g.Loc, "redefinition of function %q", c.store.SymbolToStr(g.Ident))
			}
		}
	} else {
		existing = &TCFunc{FuncType: ft}
		c.out.Funcs[g.Ident] = existing
		c.out.FuncOrder = append(c.out.FuncOrder, g.Ident)
	}

	if !hasBody {
		return nil
	}

	fr := &frame{}
	top := newScope(nil)
	for _, p := range existing.FuncType.Params {
		off := fr.allocParam(p.DeclType)
		top.declare(p.Ident, localVar{typ: p.DeclType, offset: off, loc: g.Loc})
	}

	stmts, err := c.checkBlock(g.Body, top, fr, existing.FuncType.ReturnType)
	if err != nil {
		return err
	}
	existing.Defn = &TCFuncDefn{DefnIdx: c.declIdx, Loc: g.Loc, Stmts: stmts, FrameSize: fr.next}
	return nil
}

func (c *Checker) checkGlobalDecl(g *ast.Global) error {
	for _, d := range g.Decls {
		t, err := c.resolveASTType(d.DeclType, d.PointerCount)
		if err != nil {
			return err
		}
		var init *TCExpr
		if d.Init != ast.NoExpr {
			e, err := c.checkExpr(d.Init, nil, nil)
			if err != nil {
				return err
			}
			init, err = c.assignConvert(e, t)
			if err != nil {
				return err
			}
		}
		c.out.Globals = append(c.out.Globals, GlobalVar{Ident: d.Ident, Type: t, Init: init})
	}
	return nil
}

func (c *Checker) checkMain() error {
	mainSym := symtab.SymbolID(0) // "main" is always the first reserved symbol
	fn, ok := c.out.Funcs[mainSym]
	if !ok || fn.Defn == nil {
		return nil // a translation unit need not define main (e.g. a library file)
	}
	rt := fn.FuncType.ReturnType
	if !((rt.Kind == KindVoid && rt.PointerCount == 0) || (rt.Kind == KindI32 && rt.PointerCount == 0)) {
		return diag.New(diag.Semantic, fn.FuncType.Loc, "main must return void or int")
	}
	switch len(fn.FuncType.Params) {
	case 0:
		return nil
	case 2:
		p0, p1 := fn.FuncType.Params[0].DeclType, fn.FuncType.Params[1].DeclType
		if p0.Kind == KindI32 && p0.PointerCount == 0 &&
			p1.Kind == KindChar && p1.PointerCount == 2 {
			return nil
		}
		return diag.New(diag.Semantic, fn.FuncType.Loc, "main must take () or (int, char**)")
	default:
		return diag.New(diag.Semantic, fn.FuncType.Loc, "main must take () or (int, char**)")
	}
}

// --- statements ---

func (c *Checker) checkBlock(ids []ast.StmtID, parent *scope, fr *frame, retType TCType) ([]TCStmt, error) {
	sc := newScope(parent)
	var out []TCStmt
	for _, id := range ids {
		s, err := c.checkStmt(id, sc, fr, retType)
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

func (c *Checker) checkStmt(id ast.StmtID, sc *scope, fr *frame, retType TCType) ([]TCStmt, error) {
	st := c.file.Stmt(id)
	switch st.Kind {
	case ast.SNop:
		return nil, nil

	case ast.SExpr:
		e, err := c.checkExpr(st.Expr, sc, fr)
		if err != nil {
			return nil, err
		}
		return []TCStmt{{Kind: TCSExpr, Loc: st.Loc, Expr: e}}, nil

	case ast.SRet:
		if !(retType.Kind == KindVoid && retType.PointerCount == 0) {
			return nil, diag.New(diag.Semantic, st.Loc, "non-void function must return a value")
		}
		return []TCStmt{{Kind: TCSRet, Loc: st.Loc}}, nil

	case ast.SRetVal:
		e, err := c.checkExpr(st.Expr, sc, fr)
		if err != nil {
			return nil, err
		}
		conv, err := c.assignConvert(e, retType)
		if err != nil {
			return nil, err
		}
		return []TCStmt{{Kind: TCSRetVal, Loc: st.Loc, Expr: conv}}, nil

	case ast.SDecl:
		var out []TCStmt
		for _, d := range st.Decls {
			t, err := c.resolveASTType(d.DeclType, d.PointerCount)
			if err != nil {
				return nil, err
			}
			off := fr.allocLocal(t)
			if !sc.declare(d.Ident, localVar{typ: t, offset: off, loc: d.Loc}) {
				return nil, diag.New(diag.Semantic, d.Loc, "redefinition of %q in this scope", c.store.SymbolToStr(d.Ident))
			}
			if d.Init != ast.NoExpr {
				e, err := c.checkExpr(d.Init, sc, fr)
				if err != nil {
					return nil, err
				}
				conv, err := c.assignConvert(e, t)
				if err != nil {
					return nil, err
				}
				target := &TCAssignTarget{Kind: AssignLocal, VarOffset: off, TargetLoc: d.Loc, TargetType: t}
				out = append(out, TCStmt{Kind: TCSDecl, Loc: d.Loc, Init: &TCExpr{Kind: TCAssign, ExprType: t, Loc: d.Loc, Target: target, Value: conv}})
			}
		}
		return out, nil

	case ast.SBlock:
		return c.checkBlock(st.Body, sc, fr, retType)

	case ast.SBranch:
		cond, err := c.checkExpr(st.IfCond, sc, fr)
		if err != nil {
			return nil, err
		}
		if err := c.rejectStructTruth(cond); err != nil {
			return nil, err
		}
		ifBody, err := c.checkBlock(st.IfBody, sc, fr, retType)
		if err != nil {
			return nil, err
		}
		var elseBody []TCStmt
		if st.ElseBody != nil {
			elseBody, err = c.checkBlock(st.ElseBody, sc, fr, retType)
			if err != nil {
				return nil, err
			}
		}
		// Then/Else stay separately delimited; the assembler emits JmpIfZero
		// past Then into Else and an unconditional Jmp from Then's end past
		// Else, rather than ever running both unconditionally.
		return []TCStmt{{Kind: TCSIf, Loc: st.Loc, Expr: cond, Then: ifBody, Else: elseBody}}, nil

	case ast.SWhile, ast.SFor, ast.SForDecl:
		return c.checkLoop(st, sc, fr, retType)

	default:
		return nil, diag.New(diag.Semantic, st.Loc, "unknown statement kind")
	}
}

// checkLoop checks a while/for/for-decl loop and lowers it into a single
// TCSLoop carrying its init (Pre), condition (Expr), body (Body), and
// post-expression (Post) separately, so the assembler can emit a real
// backward branch instead of running the body exactly once.
func (c *Checker) checkLoop(st *ast.Stmt, parent *scope, fr *frame, retType TCType) ([]TCStmt, error) {
	sc := newScope(parent)
	var pre []TCStmt

	switch st.Kind {
	case ast.SForDecl:
		for _, d := range st.AtStartDecl {
			t, err := c.resolveASTType(st.AtStartDeclType, d.PointerCount)
			if err != nil {
				return nil, err
			}
			off := fr.allocLocal(t)
			if !sc.declare(d.Ident, localVar{typ: t, offset: off, loc: d.Loc}) {
				return nil, diag.New(diag.Semantic, d.Loc, "redefinition of %q in this scope", c.store.SymbolToStr(d.Ident))
			}
			if d.Init != ast.NoExpr {
				e, err := c.checkExpr(d.Init, sc, fr)
				if err != nil {
					return nil, err
				}
				conv, err := c.assignConvert(e, t)
				if err != nil {
					return nil, err
				}
				target := &TCAssignTarget{Kind: AssignLocal, VarOffset: off, TargetLoc: d.Loc, TargetType: t}
				pre = append(pre, TCStmt{Kind: TCSDecl, Loc: d.Loc, Init: &TCExpr{Kind: TCAssign, ExprType: t, Loc: d.Loc, Target: target, Value: conv}})
			}
		}
	case ast.SFor:
		if st.AtStart != ast.NoExpr {
			if e := c.file.Expr(st.AtStart); e.Kind != ast.EUninit {
				te, err := c.checkExpr(st.AtStart, sc, fr)
				if err != nil {
					return nil, err
				}
				pre = append(pre, TCStmt{Kind: TCSExpr, Loc: st.Loc, Expr: te})
			}
		}
	}

	var cond *TCExpr
	if st.Condition != ast.NoExpr {
		if e := c.file.Expr(st.Condition); e.Kind != ast.EUninit {
			c2, err := c.checkExpr(st.Condition, sc, fr)
			if err != nil {
				return nil, err
			}
			if err := c.rejectStructTruth(c2); err != nil {
				return nil, err
			}
			cond = c2
		}
	}

	body, err := c.checkBlock(st.Body, sc, fr, retType)
	if err != nil {
		return nil, err
	}

	var post []TCStmt
	if st.Kind != ast.SWhile && st.PostExpr != ast.NoExpr {
		if e := c.file.Expr(st.PostExpr); e.Kind != ast.EUninit {
			pe, err := c.checkExpr(st.PostExpr, sc, fr)
			if err != nil {
				return nil, err
			}
			post = append(post, TCStmt{Kind: TCSExpr, Loc: st.Loc, Expr: pe})
		}
	}
	return []TCStmt{{Kind: TCSLoop, Loc: st.Loc, Expr: cond, Pre: pre, Body: body, Post: post}}, nil
}

func (c *Checker) rejectStructTruth(e *TCExpr) error {
	if e.ExprType.PointerCount == 0 && e.ExprType.Kind == KindStruct {
		return diag.New(diag.Semantic, e.Loc, "struct value used where a boolean condition was expected")
	}
	return nil
}

// --- expressions ---

func (c *Checker) checkExpr(id ast.ExprID, sc *scope, fr *frame) (*TCExpr, error) {
	e := c.file.Expr(id)
	switch e.Kind {
	case ast.EIntLiteral:
		return &TCExpr{Kind: TCIntLiteral, ExprType: TCType{Kind: KindI32}, Loc: e.Loc, IntVal: e.IntVal}, nil

	case ast.ECharLiteral:
		return &TCExpr{Kind: TCIntLiteral, ExprType: TCType{Kind: KindChar}, Loc: e.Loc, IntVal: int32(e.CharVal)}, nil

	case ast.EStringLiteral:
		return &TCExpr{Kind: TCStringLiteral, ExprType: TCType{Kind: KindChar, PointerCount: 1}, Loc: e.Loc, StrSym: e.StrSym}, nil

	case ast.EUninit:
		return &TCExpr{Kind: TCUninit, ExprType: TCType{Kind: KindUninit, UninitSize: 0}, Loc: e.Loc}, nil

	case ast.EIdent:
		if sc != nil {
			if v, ok := sc.lookup(e.Ident); ok {
				return &TCExpr{Kind: TCLocalIdent, ExprType: v.typ, Loc: e.Loc, VarOffset: v.offset}, nil
			}
		}
		for _, g := range c.out.Globals {
			if g.Ident == e.Ident {
				return &TCExpr{Kind: TCGlobalIdent, ExprType: g.Type, Loc: e.Loc, GlobalSym: e.Ident}, nil
			}
		}
		return nil, diag.New(diag.Semantic, e.Loc, "undeclared identifier %q", c.store.SymbolToStr(e.Ident))

	case ast.EBinOp:
		return c.checkBinOp(e, sc, fr)

	case ast.EUnaryOp:
		return c.checkUnaryOp(e, sc, fr)

	case ast.EAssign:
		return c.checkAssign(e, sc, fr)

	case ast.ECall:
		return c.checkCall(e, sc, fr)

	case ast.EMember:
		return c.checkMember(e, sc, fr, false)

	case ast.EPtrMember:
		return c.checkMember(e, sc, fr, true)

	case ast.EIndex:
		// a[b] desugars to *(a + b).
		base, err := c.checkExpr(e.Base, sc, fr)
		if err != nil {
			return nil, err
		}
		idx, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		sum, err := c.pointerAdd(e.Loc, base, idx)
		if err != nil {
			return nil, err
		}
		return c.deref(e.Loc, sum)

	case ast.EDeref:
		inner, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		return c.deref(e.Loc, inner)

	case ast.ERef:
		target, err := c.exprToAssignTarget(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		refType := target.TargetType
		refType.PointerCount++
		return &TCExpr{Kind: TCRef, ExprType: refType, Loc: e.Loc, Target: target}, nil

	case ast.ECast:
		inner, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		target, err := c.resolveASTType(e.CastType, e.CastType.PointerCount)
		if err != nil {
			return nil, err
		}
		return c.castTo(inner, target)

	case ast.ESizeofType:
		t, err := c.resolveASTType(e.CastType, e.CastType.PointerCount)
		if err != nil {
			return nil, err
		}
		return &TCExpr{Kind: TCIntLiteral, ExprType: TCType{Kind: KindU64}, Loc: e.Loc, IntVal: int32(t.Size())}, nil

	case ast.ESizeofExpr:
		inner, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		return &TCExpr{Kind: TCIntLiteral, ExprType: TCType{Kind: KindU64}, Loc: e.Loc, IntVal: int32(inner.ExprType.Size())}, nil

	case ast.EPostIncr, ast.EPostDecr:
		return c.checkPostIncrDecr(e, sc, fr)

	default:
		return nil, diag.New(diag.Semantic, e.Loc, "unsupported expression kind")
	}
}

func (c *Checker) checkBinOp(e *ast.Expr, sc *scope, fr *frame) (*TCExpr, error) {
	lhs, err := c.checkExpr(e.Lhs, sc, fr)
	if err != nil {
		return nil, err
	}
	rhs, err := c.checkExpr(e.Rhs, sc, fr)
	if err != nil {
		return nil, err
	}

	lShallow, rShallow := lhs.ExprType.Shallow(), rhs.ExprType.Shallow()

	if (e.BinOp == ast.OpAdd || e.BinOp == ast.OpSub) && lShallow == ShallowPointer {
		if e.BinOp == ast.OpSub && rShallow == ShallowPointer {
			return c.pointerDiff(e.Loc, lhs, rhs)
		}
		if e.BinOp == ast.OpSub {
			return c.pointerSub(e.Loc, lhs, rhs)
		}
		return c.pointerAdd(e.Loc, lhs, rhs)
	}
	if e.BinOp == ast.OpAdd && rShallow == ShallowPointer {
		return c.pointerAdd(e.Loc, rhs, lhs)
	}

	plan := LookupBinary(e.BinOp, lShallow, rShallow)
	if !plan.OK {
		return nil, diag.New(diag.Semantic, e.Loc, "invalid operand types for binary operator")
	}
	lhs = applyConv(plan.ConvLeft, lhs)
	rhs = applyConv(plan.ConvRight, rhs)
	resultType := shallowToType(plan.ResultType)
	return &TCExpr{Kind: plan.ExprKind, ExprType: resultType, Loc: e.Loc, Lhs: lhs, Rhs: rhs}, nil
}

func shallowToType(s Shallow) TCType {
	switch s {
	case ShallowI32:
		return TCType{Kind: KindI32}
	case ShallowU64:
		return TCType{Kind: KindU64}
	case ShallowChar:
		return TCType{Kind: KindChar}
	default:
		return TCType{Kind: KindI32}
	}
}

func (c *Checker) pointerAdd(loc symtab.CodeLoc, ptr, offset *TCExpr) (*TCExpr, error) {
	if ptr.ExprType.PointerCount == 0 {
		return nil, diag.New(diag.Semantic, loc, "pointer arithmetic on a non-pointer value")
	}
	pointee := ptr.ExprType
	pointee.PointerCount--
	stride := PointerStride(pointee)

	idx := offset
	if idx.ExprType.Shallow() == ShallowI32 {
		idx = applyConv(ConvSConv32To64, idx)
	} else if idx.ExprType.Shallow() == ShallowChar {
		idx = applyConv(ConvSConv8To32, idx)
		idx = applyConv(ConvSConv32To64, idx)
	}
	return &TCExpr{Kind: TCPtrAdd, ExprType: ptr.ExprType, Loc: loc, Lhs: ptr, Rhs: idx, Stride: stride}, nil
}

func (c *Checker) pointerSub(loc symtab.CodeLoc, ptr, offset *TCExpr) (*TCExpr, error) {
	if ptr.ExprType.PointerCount == 0 {
		return nil, diag.New(diag.Semantic, loc, "pointer arithmetic on a non-pointer value")
	}
	pointee := ptr.ExprType
	pointee.PointerCount--
	stride := PointerStride(pointee)

	idx := offset
	if idx.ExprType.Shallow() == ShallowI32 {
		idx = applyConv(ConvSConv32To64, idx)
	} else if idx.ExprType.Shallow() == ShallowChar {
		idx = applyConv(ConvSConv8To32, idx)
		idx = applyConv(ConvSConv32To64, idx)
	}
	return &TCExpr{Kind: TCPtrSub, ExprType: ptr.ExprType, Loc: loc, Lhs: ptr, Rhs: idx, Stride: stride}, nil
}

func (c *Checker) pointerDiff(loc symtab.CodeLoc, a, b *TCExpr) (*TCExpr, error) {
	if !a.ExprType.Equal(b.ExprType) {
		return nil, diag.New(diag.Semantic, loc, "pointer difference requires equal pointee types")
	}
	pointee := a.ExprType
	pointee.PointerCount--
	stride := PointerStride(pointee)
	return &TCExpr{Kind: TCPtrDiff, ExprType: TCType{Kind: KindU64}, Loc: loc, Lhs: a, Rhs: b, Stride: stride}, nil
}

func (c *Checker) deref(loc symtab.CodeLoc, inner *TCExpr) (*TCExpr, error) {
	if inner.ExprType.PointerCount == 0 {
		return nil, diag.New(diag.Semantic, loc, "dereference of a non-pointer value")
	}
	result := inner.ExprType
	result.PointerCount--
	return &TCExpr{Kind: TCDeref, ExprType: result, Loc: loc, Lhs: inner}, nil
}

func (c *Checker) checkUnaryOp(e *ast.Expr, sc *scope, fr *frame) (*TCExpr, error) {
	inner, err := c.checkExpr(e.Lhs, sc, fr)
	if err != nil {
		return nil, err
	}
	kind, ok := LookupUnary(e.UnaryOp, inner.ExprType.Shallow())
	if !ok {
		return nil, diag.New(diag.Semantic, e.Loc, "invalid operand type for unary operator")
	}
	if inner.ExprType.Shallow() == ShallowChar {
		inner = applyConv(ConvSConv8To32, inner)
	}
	return &TCExpr{Kind: kind, ExprType: TCType{Kind: KindI32}, Loc: e.Loc, Lhs: inner}, nil
}

func (c *Checker) checkAssign(e *ast.Expr, sc *scope, fr *frame) (*TCExpr, error) {
	target, err := c.exprToAssignTarget(e.Lhs, sc, fr)
	if err != nil {
		return nil, err
	}
	value, err := c.checkExpr(e.Rhs, sc, fr)
	if err != nil {
		return nil, err
	}
	converted, err := c.assignConvert(value, target.TargetType)
	if err != nil {
		return nil, err
	}
	return &TCExpr{Kind: TCAssign, ExprType: target.TargetType, Loc: e.Loc, Target: target, Value: converted}, nil
}

// exprToAssignTarget resolves an lvalue expression to an assignment target:
// a local/global identifier (by frame offset) or an arbitrary pointer
// expression to store through.
func (c *Checker) exprToAssignTarget(id ast.ExprID, sc *scope, fr *frame) (*TCAssignTarget, error) {
	e := c.file.Expr(id)
	switch e.Kind {
	case ast.EIdent:
		if sc != nil {
			if v, ok := sc.lookup(e.Ident); ok {
				return &TCAssignTarget{Kind: AssignLocal, VarOffset: v.offset, TargetLoc: e.Loc, TargetType: v.typ}, nil
			}
		}
		for _, g := range c.out.Globals {
			if g.Ident == e.Ident {
				return &TCAssignTarget{Kind: AssignLocal, VarOffset: 0, TargetLoc: e.Loc, TargetType: g.Type}, nil
			}
		}
		return nil, diag.New(diag.Semantic, e.Loc, "undeclared identifier %q", c.store.SymbolToStr(e.Ident))

	case ast.EDeref:
		inner, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		if inner.ExprType.PointerCount == 0 {
			return nil, diag.New(diag.Semantic, e.Loc, "dereference of a non-pointer value")
		}
		result := inner.ExprType
		result.PointerCount--
		return &TCAssignTarget{Kind: AssignPtr, PtrExpr: inner, TargetLoc: e.Loc, TargetType: result}, nil

	case ast.EMember:
		base, err := c.checkExpr(e.Base, sc, fr)
		if err != nil {
			return nil, err
		}
		baseTarget, err := c.exprToAssignTarget(e.Base, sc, fr)
		if err != nil {
			return nil, err
		}
		offset, err := c.memberOffset(e.Loc, base.ExprType, e.Member)
		if err != nil {
			return nil, err
		}
		memberType, err := c.memberType(e.Loc, base.ExprType, e.Member)
		if err != nil {
			return nil, err
		}
		return &TCAssignTarget{
			Kind: baseTarget.Kind, VarOffset: baseTarget.VarOffset, PtrExpr: baseTarget.PtrExpr,
			TargetLoc: e.Loc, TargetType: memberType, Offset: baseTarget.Offset + offset,
		}, nil

	case ast.EIndex:
		base, err := c.checkExpr(e.Base, sc, fr)
		if err != nil {
			return nil, err
		}
		idx, err := c.checkExpr(e.Lhs, sc, fr)
		if err != nil {
			return nil, err
		}
		sum, err := c.pointerAdd(e.Loc, base, idx)
		if err != nil {
			return nil, err
		}
		result := sum.ExprType
		result.PointerCount--
		return &TCAssignTarget{Kind: AssignPtr, PtrExpr: sum, TargetLoc: e.Loc, TargetType: result}, nil

	default:
		return nil, diag.New(diag.Semantic, e.Loc, "expression is not assignable")
	}
}

func (c *Checker) resolveMember(loc symtab.CodeLoc, baseType TCType) (*TCStructDefn, uint32, error) {
	if baseType.PointerCount != 0 || baseType.Kind != KindStruct {
		return nil, 0, diag.New(diag.Semantic, loc, "member access on a non-struct value")
	}
	st := c.out.Structs[baseType.StructIdent]
	if st == nil || st.Defn == nil {
		return nil, 0, diag.New(diag.Semantic, loc, "member access on an incomplete struct")
	}
	return st.Defn, 0, nil
}

func (c *Checker) memberType(loc symtab.CodeLoc, baseType TCType, member symtab.SymbolID) (TCType, error) {
	defn, _, err := c.resolveMember(loc, baseType)
	if err != nil {
		return TCType{}, err
	}
	for _, m := range defn.Members {
		if m.Ident == member {
			return m.DeclType, nil
		}
	}
	return TCType{}, diag.New(diag.Semantic, loc, "no member %q on struct", c.store.SymbolToStr(member))
}

func (c *Checker) memberOffset(loc symtab.CodeLoc, baseType TCType, member symtab.SymbolID) (uint32, error) {
	defn, _, err := c.resolveMember(loc, baseType)
	if err != nil {
		return 0, err
	}
	for _, m := range defn.Members {
		if m.Ident == member {
			return m.Offset, nil
		}
	}
	return 0, diag.New(diag.Semantic, loc, "no member %q on struct", c.store.SymbolToStr(member))
}

func (c *Checker) checkMember(e *ast.Expr, sc *scope, fr *frame, viaPointer bool) (*TCExpr, error) {
	base, err := c.checkExpr(e.Base, sc, fr)
	if err != nil {
		return nil, err
	}
	baseStructType := base.ExprType
	if viaPointer {
		if base.ExprType.PointerCount == 0 {
			return nil, diag.New(diag.Semantic, e.Loc, "-> used on a non-pointer value")
		}
		deref, err := c.deref(e.Loc, base)
		if err != nil {
			return nil, err
		}
		base = deref
		baseStructType = deref.ExprType
	}
	offset, err := c.memberOffset(e.Loc, baseStructType, e.Member)
	if err != nil {
		return nil, err
	}
	memberType, err := c.memberType(e.Loc, baseStructType, e.Member)
	if err != nil {
		return nil, err
	}
	return &TCExpr{Kind: TCMember, ExprType: memberType, Loc: e.Loc, Base: base, Offset: offset}, nil
}

func (c *Checker) checkCall(e *ast.Expr, sc *scope, fr *frame) (*TCExpr, error) {
	funcExpr := c.file.Expr(e.Func)
	if funcExpr.Kind != ast.EIdent {
		return nil, diag.New(diag.Semantic, e.Loc, "call target must be a named function")
	}
	fn, ok := c.out.Funcs[funcExpr.Ident]
	if !ok {
		// Implicit declaration: teaching dialect permits calling an
		// undeclared function as a variadic int-returning extern, so a
		// program can call the __tci_* ecall shims without including tci.h.
		fn = &TCFunc{FuncType: TCFuncType{ReturnType: TCType{Kind: KindI32}, Varargs: true}}
		c.out.Funcs[funcExpr.Ident] = fn
		c.out.FuncOrder = append(c.out.FuncOrder, funcExpr.Ident)
	}

	if !fn.FuncType.Varargs && len(e.Params) != len(fn.FuncType.Params) {
		return nil, diag.New(diag.Semantic, e.Loc, "wrong number of arguments in call to %q",
			c.store.SymbolToStr(funcExpr.Ident))
	}
	if fn.FuncType.Varargs && len(e.Params) < len(fn.FuncType.Params) {
		return nil, diag.New(diag.Semantic, e.Loc, "too few arguments in call to %q",
			c.store.SymbolToStr(funcExpr.Ident))
	}

	var params []TCExpr
	for i, argID := range e.Params {
		arg, err := c.checkExpr(argID, sc, fr)
		if err != nil {
			return nil, err
		}
		if i < len(fn.FuncType.Params) {
			conv, err := c.assignConvert(arg, fn.FuncType.Params[i].DeclType)
			if err != nil {
				return nil, err
			}
			arg = conv
		}
		params = append(params, *arg)
	}

	return &TCExpr{
		Kind: TCCall, ExprType: fn.FuncType.ReturnType, Loc: e.Loc,
		Func: funcExpr.Ident, Params: params, Varargs: fn.FuncType.Varargs,
	}, nil
}

func (c *Checker) checkPostIncrDecr(e *ast.Expr, sc *scope, fr *frame) (*TCExpr, error) {
	target, err := c.exprToAssignTarget(e.Lhs, sc, fr)
	if err != nil {
		return nil, err
	}
	orig, err := c.checkExpr(e.Lhs, sc, fr)
	if err != nil {
		return nil, err
	}
	one := &TCExpr{Kind: TCIntLiteral, ExprType: TCType{Kind: KindI32}, Loc: e.Loc, IntVal: 1}

	var updated *TCExpr
	if target.TargetType.PointerCount > 0 {
		if e.Kind == ast.EPostIncr {
			updated, err = c.pointerAdd(e.Loc, orig, one)
		} else {
			updated, err = c.pointerSub(e.Loc, orig, one)
		}
	} else {
		plan := LookupBinary(opFor(e.Kind), orig.ExprType.Shallow(), ShallowI32)
		if !plan.OK {
			return nil, diag.New(diag.Semantic, e.Loc, "invalid operand type for increment/decrement")
		}
		lhs := applyConv(plan.ConvLeft, orig)
		rhs := applyConv(plan.ConvRight, one)
		updated = &TCExpr{Kind: plan.ExprKind, ExprType: shallowToType(plan.ResultType), Loc: e.Loc, Lhs: lhs, Rhs: rhs}
	}
	if err != nil {
		return nil, err
	}
	converted, err := c.assignConvert(updated, target.TargetType)
	if err != nil {
		return nil, err
	}
	// The assembler is responsible for sequencing: evaluate orig, assign
	// converted back to target, yield orig's pre-update value.
	return &TCExpr{
		Kind: TCAssign, ExprType: orig.ExprType, Loc: e.Loc, Target: target, Value: converted, Lhs: orig,
	}, nil
}

func opFor(k ast.ExprKind) ast.BinOp {
	if k == ast.EPostIncr {
		return ast.OpAdd
	}
	return ast.OpSub
}

// assignConvert converts value to target's type per the assignment
// conversion table, with the one special-cased literal-zero-to-pointer
// rule every C dialect extends the table with.
func (c *Checker) assignConvert(value *TCExpr, target TCType) (*TCExpr, error) {
	if value.ExprType.Equal(target) {
		return value, nil
	}
	if target.PointerCount > 0 && value.Kind == TCIntLiteral && value.IntVal == 0 {
		v := *value
		v.ExprType = target
		return &v, nil
	}
	if target.PointerCount > 0 && value.ExprType.PointerCount > 0 {
		// void* converts freely either direction; TCI otherwise requires
		// pointee equality (no implicit pointer-to-pointer narrowing).
		if target.Kind == KindVoid || value.ExprType.Kind == KindVoid {
			v := *value
			v.ExprType = target
			return &v, nil
		}
		return nil, diag.New(diag.Semantic, value.Loc, "incompatible pointer types in assignment")
	}
	kind, ok := LookupAssignConv(value.ExprType.Shallow(), target.Shallow())
	if !ok {
		return nil, diag.New(diag.Semantic, value.Loc, "no implicit conversion between these types")
	}
	return applyConv(kind, value), nil
}

func (c *Checker) castTo(value *TCExpr, target TCType) (*TCExpr, error) {
	if value.ExprType.Equal(target) {
		return value, nil
	}
	if target.PointerCount > 0 || value.ExprType.PointerCount > 0 {
		v := *value
		v.ExprType = target
		return &v, nil
	}
	kind, ok := LookupAssignConv(value.ExprType.Shallow(), target.Shallow())
	if !ok {
		return nil, diag.New(diag.Semantic, value.Loc, "unsupported cast")
	}
	return applyConv(kind, value), nil
}
