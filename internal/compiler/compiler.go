// Package compiler wires the pipeline stages — lexer, preprocessor, parser,
// type checker, assembler — into the single Compile entry point that
// cmd/tci's run and serve paths both call, mirroring the original's
// top-level compile(&mut files) function in main.rs.
package compiler

import (
	"fmt"

	"github.com/tci-lang/tci/internal/assembler"
	"github.com/tci-lang/tci/internal/ast"
	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/lexer"
	"github.com/tci-lang/tci/internal/parser"
	"github.com/tci-lang/tci/internal/preprocessor"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
	"github.com/tci-lang/tci/internal/types"
)

// Result is everything downstream stages (the kernel, the size-report tool)
// need from a successful compile.
type Result struct {
	Store   *symtab.Store
	Checked *types.CheckedFile
	Program *bytecode.Program
}

// Source is one named in-memory translation unit to compile, e.g. a file
// read from disk by cmd/tci or a Run message's sources map over hostmsg.
type Source struct {
	Name string
	Text string
}

// Compile lexes, preprocesses, parses, type-checks and assembles every
// source in order, sharing one symtab.Store (and so one set of interned
// symbols/globals) across all of them — matching the original's single
// FileDb per compilation. allowFSInclude selects symtab.ReadFSAccess; without
// it every quoted `#include "..."` fails closed with PermissionDenied
// (symtab.NoFSAccess). When allowed, quoted includes are read through fs; a
// nil fs makes each of them fail with NotFound.
// Compile always returns a non-nil *Result (at minimum its Store, so a
// caller can render diagnostics with source-line context even when
// compilation failed before reaching the checker/assembler stages).
func Compile(sources []Source, fs symtab.ReadFS, allowFSInclude bool) (*Result, []*diag.Error) {
	mode := symtab.NoFSAccess
	if allowFSInclude {
		mode = symtab.ReadFSAccess
	}
	store := symtab.NewStore(mode)
	result := &Result{Store: store}

	lx := lexer.New(store, fs)
	table := preprocessor.NewTable()

	file := &ast.File{}
	var errs []*diag.Error

	// foldUnit preprocesses and parses one already-lexed file's tokens and
	// appends its globals to the translation unit.
	foldUnit := func(toks []token.Token) bool {
		expanded, err := table.Process(toks)
		if err != nil {
			errs = append(errs, asDiagErr(diag.Preprocessor, err))
			return false
		}
		unit, err := parser.Parse(expanded)
		if err != nil {
			errs = append(errs, asDiagErr(diag.Syntactic, err))
			return false
		}
		file.Globals = append(file.Globals, unit.Globals...)
		return true
	}

	for _, src := range sources {
		id := store.Add(src.Name, src.Text)

		toks, err := lx.LexFile(id)
		if err != nil {
			errs = append(errs, asDiagErr(diag.Lexical, err))
			continue
		}

		// Every header (and, for a bracket include of a bundled system
		// header, its paired libs/<name>.c implementation) this file's own
		// lexing discovered via #include is queued in dependency order:
		// fold those in first so their declarations/definitions are already
		// checked by the time this file's own globals reference them.
		for _, pid := range lx.TakePending() {
			if !foldUnit(lx.Tokens(pid)) {
				break
			}
		}

		if !foldUnit(toks) {
			continue
		}
	}
	if len(errs) > 0 {
		return result, errs
	}

	checked, err := types.CheckFile(store, file)
	if err != nil {
		return result, []*diag.Error{asDiagErr(diag.Semantic, err)}
	}
	result.Checked = checked

	prog, err := assembler.Assemble(store, checked)
	if err != nil {
		return result, []*diag.Error{asDiagErr(diag.Semantic, err)}
	}
	result.Program = prog

	return result, nil
}

// asDiagErr adapts a plain error (typically already a *diag.Error from a
// pipeline stage) into the slice CompileError reports; stages that return
// a bare error still get a usable, if locationless, diagnostic.
func asDiagErr(kind diag.Kind, err error) *diag.Error {
	if de, ok := err.(*diag.Error); ok {
		return de
	}
	return &diag.Error{Kind: kind, Message: fmt.Sprintf("%v", err)}
}
