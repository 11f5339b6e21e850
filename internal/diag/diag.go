// Package diag implements the minimal plain-text diagnostic renderer named
// as an external collaborator in the top-level specification: no color, no
// span formatting beyond one source line per section.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/tci-lang/tci/internal/symtab"
)

// Kind tags which pipeline stage raised an error, per the error taxonomy.
type Kind int

const (
	Lexical Kind = iota
	Preprocessor
	Syntactic
	Semantic
	Runtime
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Preprocessor:
		return "preprocessor"
	case Syntactic:
		return "syntax"
	case Semantic:
		return "semantic"
	case Runtime:
		return "runtime"
	default:
		return "error"
	}
}

// Section attaches human text to one source location.
type Section struct {
	Loc     symtab.CodeLoc
	Message string
}

// Error is a (message, sections) diagnostic, never caught internally except
// to add further sections as context propagates upward.
type Error struct {
	Kind     Kind
	Message  string
	Sections []Section
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	for _, s := range e.Sections {
		fmt.Fprintf(&b, "\n  at %s: %s", s.Loc, s.Message)
	}
	return b.String()
}

// New builds an Error with a single section at loc.
func New(kind Kind, loc symtab.CodeLoc, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Sections: []Section{{
			Loc:     loc,
			Message: fmt.Sprintf(format, args...),
		}},
	}
}

// WithSection appends another location/message pair to an existing error,
// used when propagating context upward (e.g. a macro use site on top of a
// macro definition site).
func (e *Error) WithSection(loc symtab.CodeLoc, format string, args ...any) *Error {
	e.Sections = append(e.Sections, Section{Loc: loc, Message: fmt.Sprintf(format, args...)})
	return e
}

// Render writes a plain rendering of err to w: one line per section, each
// followed by the offending source line when the store has it.
func Render(w io.Writer, store *symtab.Store, err *Error) {
	fmt.Fprintf(w, "%s: %s\n", err.Kind, err.Message)
	for _, s := range err.Sections {
		name := store.Name(s.Loc.File)
		line := store.LineIndex(s.Loc.File, s.Loc.Start)
		fmt.Fprintf(w, "  %s:%d: %s\n", name, line+1, s.Message)

		src := store.Source(s.Loc.File)
		lineText := sourceLine(src, s.Loc.Start)
		if lineText != "" {
			fmt.Fprintf(w, "    %s\n", lineText)
		}
	}
}

func sourceLine(src string, byteOffset uint32) string {
	if int(byteOffset) > len(src) {
		return ""
	}
	start := strings.LastIndexByte(src[:byteOffset], '\n') + 1
	end := strings.IndexByte(src[byteOffset:], '\n')
	if end == -1 {
		return src[start:]
	}
	return src[start : int(byteOffset)+end]
}
