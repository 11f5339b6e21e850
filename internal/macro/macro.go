// Package macro defines the macro table entries the preprocessor builds
// and consumes.
package macro

import (
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

type Kind int

const (
	Value Kind = iota
	Func
	Marker
)

// Macro is (kind, loc); Func additionally carries its parameter list.
type Macro struct {
	Kind   Kind
	Loc    symtab.CodeLoc
	Tokens []token.Token        // Value, Func: replacement list
	Params []symtab.SymbolID    // Func only, in declared order
}
