// Package parser is a recursive-descent parser producing internal/ast
// nodes from a preprocessed token stream. Structurally it follows the
// peek/advance/expect/precedence-climbing idiom of the teacher's Go-source
// parser, generalized to the C-subset grammar internal/ast's node shapes
// imply.
package parser

import (
	"github.com/tci-lang/tci/internal/ast"
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

type Parser struct {
	toks []token.Token
	pos  int
	file *ast.File
}

// Parse produces an ast.File of top-level globals from toks.
func Parse(toks []token.Token) (*ast.File, error) {
	p := &Parser{toks: toks, file: &ast.File{}}
	for !p.atEnd() {
		if err := p.parseGlobal(); err != nil {
			return nil, err
		}
	}
	return p.file, nil
}

func (p *Parser) atEnd() bool { return p.pos >= len(p.toks) || p.peek().Kind == token.EOF }
func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}
func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }
func (p *Parser) match(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}
func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, diag.New(diag.Syntactic, p.peek().Loc,
			"expected %s, got %s", k, p.peek().Kind)
	}
	return p.advance(), nil
}

func (p *Parser) errf(format string, args ...any) error {
	return diag.New(diag.Syntactic, p.peek().Loc, format, args...)
}

// parseType parses a base type (one or more integer keywords, void, char,
// or a struct tag); pointer
// stars are parsed separately by the caller since C declarators interleave
// pointer count with the identifier.
func (p *Parser) parseType() (ast.Type, error) {
	start := p.peek().Loc
	switch {
	case p.match(token.KwVoid):
		return ast.Type{Kind: ast.TVoid, Loc: start}, nil
	case p.match(token.KwInt), p.match(token.KwLong), p.match(token.KwUnsigned),
		p.match(token.KwSigned), p.match(token.KwShort):
		// Multi-keyword spellings ("unsigned long", "long int") name one type.
		for p.match(token.KwInt) || p.match(token.KwLong) || p.match(token.KwUnsigned) ||
			p.match(token.KwSigned) || p.match(token.KwShort) {
		}
		return ast.Type{Kind: ast.TInt, Loc: start}, nil
	case p.match(token.KwChar):
		return ast.Type{Kind: ast.TChar, Loc: start}, nil
	case p.match(token.KwStruct):
		identTok, err := p.expect(token.Ident)
		if err != nil {
			return ast.Type{}, err
		}
		return ast.Type{Kind: ast.TStruct, StructIdent: identTok.Sym, Loc: start}, nil
	default:
		return ast.Type{}, p.errf("expected a type")
	}
}

func (p *Parser) parsePointerCount() uint32 {
	var n uint32
	for p.match(token.Star) {
		n++
	}
	return n
}

func (p *Parser) parseGlobal() error {
	start := p.peek().Loc

	if p.match(token.KwTypedef) {
		baseType, err := p.parseType()
		if err != nil {
			return err
		}
		ptr := p.parsePointerCount()
		ident, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return err
		}
		baseType.PointerCount = ptr
		p.file.Globals = append(p.file.Globals, ast.Global{
			Kind: ast.GTypedef, Loc: start, Ident: ident.Sym, TypedefType: baseType,
		})
		return nil
	}

	if p.at(token.KwStruct) && p.peekAt(1).Kind == token.Ident &&
		(p.peekAt(2).Kind == token.LBrace || p.peekAt(2).Kind == token.Semicolon) {
		return p.parseStructGlobal(start)
	}

	baseType, err := p.parseType()
	if err != nil {
		return err
	}
	ptr := p.parsePointerCount()
	identTok, err := p.expect(token.Ident)
	if err != nil {
		return err
	}

	if p.at(token.LParen) {
		return p.parseFuncGlobal(start, baseType, ptr, identTok.Sym)
	}

	return p.parseGlobalDecl(start, baseType, ptr, identTok)
}

func (p *Parser) parseStructGlobal(start symtab.CodeLoc) error {
	p.advance() // struct
	identTok, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	decl := ast.StructDecl{Ident: identTok.Sym, IdentLoc: identTok.Loc, Loc: start}

	if p.match(token.LBrace) {
		decl.HasMembers = true
		for !p.at(token.RBrace) {
			memberType, err := p.parseType()
			if err != nil {
				return err
			}
			ptr := p.parsePointerCount()
			memberIdent, err := p.expect(token.Ident)
			if err != nil {
				return err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return err
			}
			decl.Members = append(decl.Members, ast.InnerStructDecl{
				DeclType: memberType, PointerCount: ptr, Ident: memberIdent.Sym, Loc: memberIdent.Loc,
			})
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	p.file.Globals = append(p.file.Globals, ast.Global{Kind: ast.GStructDecl, Loc: start, Struct: decl})
	return nil
}

func (p *Parser) parseFuncGlobal(start symtab.CodeLoc, ret ast.Type, ptr uint32, ident symtab.SymbolID) error {
	p.advance() // (
	var params []ast.Param
	for !p.at(token.RParen) {
		if p.match(token.Ellipsis) {
			params = append(params, ast.Param{Kind: ast.PVararg, Loc: p.peek().Loc})
		} else {
			pType, err := p.parseType()
			if err != nil {
				return err
			}
			pPtr := p.parsePointerCount()
			var pIdent token.Token
			if p.at(token.Ident) {
				pIdent = p.advance()
			}
			params = append(params, ast.Param{
				Kind: ast.PStructLike, DeclType: pType, PointerCount: pPtr,
				Ident: pIdent.Sym, Loc: pType.Loc,
			})
		}
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	if p.match(token.Semicolon) {
		p.file.Globals = append(p.file.Globals, ast.Global{
			Kind: ast.GFuncDecl, Loc: start, ReturnType: ret, PointerCount: ptr,
			Ident: ident, Params: params,
		})
		return nil
	}

	body, err := p.parseBlockStmts()
	if err != nil {
		return err
	}
	p.file.Globals = append(p.file.Globals, ast.Global{
		Kind: ast.GFunc, Loc: start, ReturnType: ret, PointerCount: ptr,
		Ident: ident, Params: params, Body: body,
	})
	return nil
}

func (p *Parser) parseGlobalDecl(start symtab.CodeLoc, baseType ast.Type, firstPtr uint32, firstIdent token.Token) error {
	decls := []ast.Decl{{DeclType: baseType, PointerCount: firstPtr, Ident: firstIdent.Sym, Loc: firstIdent.Loc, Init: ast.NoExpr}}
	if p.match(token.Assign) {
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		decls[0].Init = e
	}
	for p.match(token.Comma) {
		ptr := p.parsePointerCount()
		ident, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		d := ast.Decl{DeclType: baseType, PointerCount: ptr, Ident: ident.Sym, Loc: ident.Loc, Init: ast.NoExpr}
		if p.match(token.Assign) {
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			d.Init = e
		}
		decls = append(decls, d)
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	p.file.Globals = append(p.file.Globals, ast.Global{Kind: ast.GDecl, Loc: start, DeclType: baseType, Decls: decls})
	return nil
}

// --- statements ---

func (p *Parser) parseBlockStmts() ([]ast.StmtID, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var out []ast.StmtID
	for !p.at(token.RBrace) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) isTypeStart() bool {
	switch p.peek().Kind {
	case token.KwVoid, token.KwInt, token.KwLong, token.KwUnsigned,
		token.KwSigned, token.KwShort, token.KwChar, token.KwStruct:
		return true
	default:
		return false
	}
}

func (p *Parser) parseStmt() (ast.StmtID, error) {
	start := p.peek().Loc

	switch {
	case p.match(token.Semicolon):
		return p.file.AddStmt(ast.Stmt{Kind: ast.SNop, Loc: start}), nil

	case p.at(token.LBrace):
		body, err := p.parseBlockStmts()
		if err != nil {
			return 0, err
		}
		return p.file.AddStmt(ast.Stmt{Kind: ast.SBlock, Loc: start, Body: body}), nil

	case p.match(token.KwReturn):
		if p.match(token.Semicolon) {
			return p.file.AddStmt(ast.Stmt{Kind: ast.SRet, Loc: start}), nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return 0, err
		}
		return p.file.AddStmt(ast.Stmt{Kind: ast.SRetVal, Loc: start, Expr: e}), nil

	case p.match(token.KwIf):
		return p.parseIf(start)

	case p.match(token.KwWhile):
		return p.parseWhile(start)

	case p.match(token.KwFor):
		return p.parseFor(start)

	case p.isTypeStart():
		return p.parseLocalDecl(start)

	default:
		e, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return 0, err
		}
		return p.file.AddStmt(ast.Stmt{Kind: ast.SExpr, Loc: start, Expr: e}), nil
	}
}

func (p *Parser) parseIf(start symtab.CodeLoc) (ast.StmtID, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return 0, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return 0, err
	}
	body, err := p.parseSingleOrBlock()
	if err != nil {
		return 0, err
	}
	var elseBody []ast.StmtID
	if p.match(token.KwElse) {
		elseBody, err = p.parseSingleOrBlock()
		if err != nil {
			return 0, err
		}
	}
	return p.file.AddStmt(ast.Stmt{Kind: ast.SBranch, Loc: start, IfCond: cond, IfBody: body, ElseBody: elseBody}), nil
}

func (p *Parser) parseSingleOrBlock() ([]ast.StmtID, error) {
	if p.at(token.LBrace) {
		return p.parseBlockStmts()
	}
	s, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return []ast.StmtID{s}, nil
}

func (p *Parser) parseWhile(start symtab.CodeLoc) (ast.StmtID, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return 0, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return 0, err
	}
	body, err := p.parseSingleOrBlock()
	if err != nil {
		return 0, err
	}
	return p.file.AddStmt(ast.Stmt{Kind: ast.SWhile, Loc: start, Condition: cond, Body: body}), nil
}

func (p *Parser) parseFor(start symtab.CodeLoc) (ast.StmtID, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return 0, err
	}

	if p.isTypeStart() {
		declType, err := p.parseType()
		if err != nil {
			return 0, err
		}
		var decls []ast.Decl
		for {
			ptr := p.parsePointerCount()
			ident, err := p.expect(token.Ident)
			if err != nil {
				return 0, err
			}
			d := ast.Decl{DeclType: declType, PointerCount: ptr, Ident: ident.Sym, Loc: ident.Loc, Init: ast.NoExpr}
			if p.match(token.Assign) {
				e, err := p.parseExpr()
				if err != nil {
					return 0, err
				}
				d.Init = e
			}
			decls = append(decls, d)
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return 0, err
		}
		cond, err := p.parseExprOrUninit()
		if err != nil {
			return 0, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return 0, err
		}
		post, err := p.parseExprOrUninit()
		if err != nil {
			return 0, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return 0, err
		}
		body, err := p.parseSingleOrBlock()
		if err != nil {
			return 0, err
		}
		return p.file.AddStmt(ast.Stmt{
			Kind: ast.SForDecl, Loc: start, AtStartDecl: decls, AtStartDeclType: declType,
			Condition: cond, PostExpr: post, Body: body,
		}), nil
	}

	atStart, err := p.parseExprOrUninit()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return 0, err
	}
	cond, err := p.parseExprOrUninit()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return 0, err
	}
	post, err := p.parseExprOrUninit()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return 0, err
	}
	body, err := p.parseSingleOrBlock()
	if err != nil {
		return 0, err
	}
	return p.file.AddStmt(ast.Stmt{Kind: ast.SFor, Loc: start, AtStart: atStart, Condition: cond, PostExpr: post, Body: body}), nil
}

func (p *Parser) parseExprOrUninit() (ast.ExprID, error) {
	if p.at(token.Semicolon) || p.at(token.RParen) {
		return p.file.AddExpr(ast.Expr{Kind: ast.EUninit, Loc: p.peek().Loc}), nil
	}
	return p.parseExpr()
}

func (p *Parser) parseLocalDecl(start symtab.CodeLoc) (ast.StmtID, error) {
	declType, err := p.parseType()
	if err != nil {
		return 0, err
	}
	var decls []ast.Decl
	for {
		ptr := p.parsePointerCount()
		ident, err := p.expect(token.Ident)
		if err != nil {
			return 0, err
		}
		d := ast.Decl{DeclType: declType, PointerCount: ptr, Ident: ident.Sym, Loc: ident.Loc, Init: ast.NoExpr}
		if p.match(token.Assign) {
			e, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			d.Init = e
		}
		decls = append(decls, d)
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return 0, err
	}
	return p.file.AddStmt(ast.Stmt{Kind: ast.SDecl, Loc: start, DeclType: declType, Decls: decls}), nil
}

// --- expressions ---

// precedence maps each binary-operator token to its climbing precedence;
// higher binds tighter. Assignment is handled separately as right-assoc at
// the lowest level.
var precedence = map[token.Kind]int{
	token.OrOr: 1, token.AndAnd: 2,
	token.Pipe: 3, token.Caret: 4, token.Amp: 5,
	token.Eq: 6, token.Neq: 6,
	token.Lt: 7, token.Gt: 7, token.Leq: 7, token.Geq: 7,
	token.Shl: 8, token.Shr: 8,
	token.Plus: 9, token.Minus: 9,
	token.Star: 10, token.Slash: 10, token.Percent: 10,
}

var binOpFor = map[token.Kind]ast.BinOp{
	token.Plus: ast.OpAdd, token.Minus: ast.OpSub, token.Star: ast.OpMul,
	token.Slash: ast.OpDiv, token.Percent: ast.OpMod,
	token.Amp: ast.OpAnd, token.Pipe: ast.OpOr, token.Caret: ast.OpXor,
	token.Shl: ast.OpShl, token.Shr: ast.OpShr,
	token.Eq: ast.OpEq, token.Neq: ast.OpNeq, token.Lt: ast.OpLt,
	token.Gt: ast.OpGt, token.Leq: ast.OpLeq, token.Geq: ast.OpGeq,
	token.AndAnd: ast.OpLogAnd, token.OrOr: ast.OpLogOr,
}

var compoundAssignOp = map[token.Kind]ast.BinOp{
	token.PlusAssign: ast.OpAdd, token.MinusAssign: ast.OpSub,
	token.StarAssign: ast.OpMul, token.SlashAssign: ast.OpDiv,
	token.PercentAssign: ast.OpMod, token.AmpAssign: ast.OpAnd,
	token.PipeAssign: ast.OpOr, token.CaretAssign: ast.OpXor,
	token.ShlAssign: ast.OpShl, token.ShrAssign: ast.OpShr,
}

func (p *Parser) parseExpr() (ast.ExprID, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.ExprID, error) {
	lhs, err := p.parseBinary(1)
	if err != nil {
		return 0, err
	}
	start := p.peek().Loc

	if p.match(token.Assign) {
		rhs, err := p.parseAssign()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.EAssign, Loc: start, Lhs: lhs, Rhs: rhs}), nil
	}
	if op, ok := compoundAssignOp[p.peek().Kind]; ok {
		p.advance()
		rhs, err := p.parseAssign()
		if err != nil {
			return 0, err
		}
		inner := p.file.AddExpr(ast.Expr{Kind: ast.EBinOp, Loc: start, BinOp: op, Lhs: lhs, Rhs: rhs})
		return p.file.AddExpr(ast.Expr{Kind: ast.EAssign, Loc: start, Lhs: lhs, Rhs: inner}), nil
	}
	return lhs, nil
}

func (p *Parser) parseBinary(minPrec int) (ast.ExprID, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		prec, ok := precedence[p.peek().Kind]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		opTok := p.advance()
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return 0, err
		}
		lhs = p.file.AddExpr(ast.Expr{Kind: ast.EBinOp, Loc: opTok.Loc, BinOp: binOpFor[opTok.Kind], Lhs: lhs, Rhs: rhs})
	}
}

func (p *Parser) parseUnary() (ast.ExprID, error) {
	start := p.peek().Loc
	switch {
	case p.match(token.Minus):
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.EUnaryOp, Loc: start, UnaryOp: ast.OpNeg, Lhs: e}), nil
	case p.match(token.Bang):
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.EUnaryOp, Loc: start, UnaryOp: ast.OpNot, Lhs: e}), nil
	case p.match(token.Tilde):
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.EUnaryOp, Loc: start, UnaryOp: ast.OpBitNot, Lhs: e}), nil
	case p.match(token.Star):
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.EDeref, Loc: start, Lhs: e}), nil
	case p.match(token.Amp):
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.ERef, Loc: start, Lhs: e}), nil
	case p.match(token.KwSizeof):
		return p.parseSizeof(start)
	case p.isCastStart():
		p.advance() // (
		ty, err := p.parseType()
		if err != nil {
			return 0, err
		}
		ptr := p.parsePointerCount()
		ty.PointerCount = ptr
		if _, err := p.expect(token.RParen); err != nil {
			return 0, err
		}
		e, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.ECast, Loc: start, CastType: ty, Lhs: e}), nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) isCastStart() bool {
	if p.peek().Kind != token.LParen {
		return false
	}
	switch p.peekAt(1).Kind {
	case token.KwVoid, token.KwInt, token.KwLong, token.KwUnsigned,
		token.KwSigned, token.KwShort, token.KwChar, token.KwStruct:
		return true
	default:
		return false
	}
}

func (p *Parser) parseSizeof(start symtab.CodeLoc) (ast.ExprID, error) {
	if p.at(token.LParen) && p.isTypeStartAt(1) {
		p.advance()
		ty, err := p.parseType()
		if err != nil {
			return 0, err
		}
		ty.PointerCount = p.parsePointerCount()
		if _, err := p.expect(token.RParen); err != nil {
			return 0, err
		}
		return p.file.AddExpr(ast.Expr{Kind: ast.ESizeofType, Loc: start, CastType: ty}), nil
	}
	e, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return p.file.AddExpr(ast.Expr{Kind: ast.ESizeofExpr, Loc: start, Lhs: e}), nil
}

func (p *Parser) isTypeStartAt(n int) bool {
	switch p.peekAt(n).Kind {
	case token.KwVoid, token.KwInt, token.KwLong, token.KwUnsigned,
		token.KwSigned, token.KwShort, token.KwChar, token.KwStruct:
		return true
	default:
		return false
	}
}

func (p *Parser) parsePostfix() (ast.ExprID, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for {
		start := p.peek().Loc
		switch {
		case p.match(token.Dot):
			ident, err := p.expect(token.Ident)
			if err != nil {
				return 0, err
			}
			e = p.file.AddExpr(ast.Expr{Kind: ast.EMember, Loc: start, Base: e, Member: ident.Sym})
		case p.match(token.Arrow):
			ident, err := p.expect(token.Ident)
			if err != nil {
				return 0, err
			}
			e = p.file.AddExpr(ast.Expr{Kind: ast.EPtrMember, Loc: start, Base: e, Member: ident.Sym})
		case p.match(token.LBracket):
			idx, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return 0, err
			}
			e = p.file.AddExpr(ast.Expr{Kind: ast.EIndex, Loc: start, Base: e, Lhs: idx})
		case p.match(token.LParen):
			var args []ast.ExprID
			for !p.at(token.RParen) {
				a, err := p.parseExpr()
				if err != nil {
					return 0, err
				}
				args = append(args, a)
				if !p.match(token.Comma) {
					break
				}
			}
			if _, err := p.expect(token.RParen); err != nil {
				return 0, err
			}
			e = p.file.AddExpr(ast.Expr{Kind: ast.ECall, Loc: start, Func: e, Params: args})
		case p.match(token.PlusPlus):
			e = p.file.AddExpr(ast.Expr{Kind: ast.EPostIncr, Loc: start, Lhs: e})
		case p.match(token.MinusMinus):
			e = p.file.AddExpr(ast.Expr{Kind: ast.EPostDecr, Loc: start, Lhs: e})
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.ExprID, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.IntLiteral:
		p.advance()
		return p.file.AddExpr(ast.Expr{Kind: ast.EIntLiteral, Loc: tok.Loc, IntVal: tok.IntVal}), nil
	case token.CharLiteral:
		p.advance()
		return p.file.AddExpr(ast.Expr{Kind: ast.ECharLiteral, Loc: tok.Loc, CharVal: tok.CharVal}), nil
	case token.StringLiteral:
		p.advance()
		return p.file.AddExpr(ast.Expr{Kind: ast.EStringLiteral, Loc: tok.Loc, StrSym: tok.StrSym}), nil
	case token.Ident:
		p.advance()
		return p.file.AddExpr(ast.Expr{Kind: ast.EIdent, Loc: tok.Loc, Ident: tok.Sym}), nil
	case token.LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return 0, err
		}
		return e, nil
	default:
		return 0, p.errf("expected an expression, got %s", tok.Kind)
	}
}
