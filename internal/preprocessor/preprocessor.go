// Package preprocessor expands object-like and function-like macros over a
// lexed token stream, consuming MacroDef/FuncMacroDef/MacroDefEnd markers to
// build a macro table as it goes. Expansion is single-pass: macro bodies are
// never re-scanned after substitution.
package preprocessor

import (
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/macro"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

// Table carries macro definitions across files of one translation unit,
// mirroring the original's carried-state macro table.
type Table struct {
	macros map[symtab.SymbolID]macro.Macro
}

func NewTable() *Table {
	return &Table{macros: make(map[symtab.SymbolID]macro.Macro)}
}

// Process streams toks, returning the expanded token sequence.
func (t *Table) Process(toks []token.Token) ([]token.Token, error) {
	p := &processor{table: t, in: toks}
	return p.run()
}

type processor struct {
	table *Table
	in    []token.Token
	pos   int
	out   []token.Token
}

func (p *processor) atEnd() bool   { return p.pos >= len(p.in) }
func (p *processor) peek() token.Token {
	if p.atEnd() {
		return token.Token{Kind: token.EOF}
	}
	return p.in[p.pos]
}
func (p *processor) advance() token.Token {
	tok := p.in[p.pos]
	p.pos++
	return tok
}

func (p *processor) run() ([]token.Token, error) {
	for !p.atEnd() {
		tok := p.advance()
		switch tok.Kind {
		case token.MacroDef:
			body, err := p.collectUntilDefEnd()
			if err != nil {
				return nil, err
			}
			p.table.macros[tok.Sym] = macro.Macro{Kind: macro.Value, Loc: tok.Loc, Tokens: body}
		case token.FuncMacroDef:
			body, err := p.collectUntilDefEnd()
			if err != nil {
				return nil, err
			}
			params, replacement, err := splitFuncMacro(tok.Loc, body)
			if err != nil {
				return nil, err
			}
			p.table.macros[tok.Sym] = macro.Macro{Kind: macro.Func, Loc: tok.Loc, Params: params, Tokens: replacement}
		case token.Ident, token.TypeIdent:
			if err := p.expandIdent(tok); err != nil {
				return nil, err
			}
		default:
			p.out = append(p.out, tok)
		}
	}
	return p.out, nil
}

func (p *processor) collectUntilDefEnd() ([]token.Token, error) {
	var body []token.Token
	for {
		if p.atEnd() {
			return nil, diag.New(diag.Preprocessor, symtab.CodeLoc{}, "unexpected end of file in macro definition")
		}
		tok := p.advance()
		if tok.Kind == token.MacroDefEnd {
			return body, nil
		}
		body = append(body, tok)
	}
}

// splitFuncMacro splits a FuncMacroDef body into its "(params)" prefix and
// the remaining replacement-list tokens.
func splitFuncMacro(loc symtab.CodeLoc, body []token.Token) ([]symtab.SymbolID, []token.Token, error) {
	if len(body) == 0 || body[0].Kind != token.LParen {
		return nil, nil, diag.New(diag.Preprocessor, loc, "expected ( after function-like macro name")
	}
	i := 1
	var params []symtab.SymbolID
	for {
		if i >= len(body) {
			return nil, nil, diag.New(diag.Preprocessor, loc, "unexpected end of file in macro parameter list")
		}
		if body[i].Kind == token.RParen {
			i++
			break
		}
		if body[i].Kind != token.Ident {
			return nil, nil, diag.New(diag.Preprocessor, body[i].Loc, "expected parameter name")
		}
		params = append(params, body[i].Sym)
		i++
		if i < len(body) && body[i].Kind == token.Comma {
			i++
		}
	}
	return params, body[i:], nil
}

func (p *processor) expandIdent(tok token.Token) error {
	m, ok := p.table.macros[tok.Sym]
	if !ok {
		p.out = append(p.out, tok)
		return nil
	}

	switch m.Kind {
	case macro.Marker:
		return diag.New(diag.Preprocessor, tok.Loc, "invocation of marker macro is not allowed")
	case macro.Value:
		p.out = append(p.out, m.Tokens...)
		return nil
	case macro.Func:
		return p.expandFuncMacro(tok, m)
	default:
		return diag.New(diag.Preprocessor, tok.Loc, "unknown macro kind")
	}
}

func (p *processor) expandFuncMacro(use token.Token, m macro.Macro) error {
	if p.atEnd() || p.peek().Kind != token.LParen {
		return diag.New(diag.Preprocessor, use.Loc, "expected ( after function-like macro use").
			WithSection(m.Loc, "macro defined here")
	}
	p.advance() // consume (

	args, err := p.readArgs(use.Loc)
	if err != nil {
		return err
	}
	if len(args) != len(m.Params) {
		return diag.New(diag.Preprocessor, use.Loc,
			"macro expects %d argument(s), got %d", len(m.Params), len(args)).
			WithSection(m.Loc, "macro defined here")
	}

	argFor := make(map[symtab.SymbolID][]token.Token, len(m.Params))
	for i, param := range m.Params {
		argFor[param] = args[i]
	}

	for _, t := range m.Tokens {
		if (t.Kind == token.Ident || t.Kind == token.TypeIdent) {
			if repl, ok := argFor[t.Sym]; ok {
				p.out = append(p.out, repl...)
				continue
			}
		}
		p.out = append(p.out, t)
	}
	return nil
}

// readArgs reads comma-separated argument token sequences at paren-depth 0,
// stopping at the matching ')'.
func (p *processor) readArgs(useLoc symtab.CodeLoc) ([][]token.Token, error) {
	var args [][]token.Token
	var cur []token.Token
	depth := 0

	for {
		if p.atEnd() {
			return nil, diag.New(diag.Preprocessor, useLoc, "unexpected end of file in macro invocation")
		}
		tok := p.advance()
		switch {
		case tok.Kind == token.LParen:
			depth++
			cur = append(cur, tok)
		case tok.Kind == token.RParen && depth == 0:
			if len(args) == 0 && len(cur) == 0 {
				return nil, nil
			}
			args = append(args, cur)
			return args, nil
		case tok.Kind == token.RParen:
			depth--
			cur = append(cur, tok)
		case tok.Kind == token.Comma && depth == 0:
			args = append(args, cur)
			cur = nil
		default:
			cur = append(cur, tok)
		}
	}
}
