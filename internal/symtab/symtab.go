// Package symtab owns source text, line-index tables, a symbol-interning
// table, and the bundled system headers. It is the file store described in
// the compiler's lowest pipeline stage.
package symtab

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/tci-lang/tci/internal/symtab/syslibs"
)

// FileID identifies a loaded source file. 0 means "no file".
type FileID uint32

// SymbolID identifies an interned identifier. NoSymbol is a sentinel
// distinct from every real id.
type SymbolID uint32

const NoSymbol SymbolID = ^SymbolID(0)

// CodeLoc is a half-open byte range within one file.
type CodeLoc struct {
	File  FileID
	Start uint32
	End   uint32
}

func (l CodeLoc) String() string {
	return fmt.Sprintf("%d:%d-%d", l.File, l.Start, l.End)
}

// AccessMode gates whether add_from_fs-style resolution is permitted.
type AccessMode int

const (
	NoFSAccess AccessMode = iota
	ReadFSAccess
)

type file struct {
	name       string
	source     string
	lineStarts []uint32
	garbage    bool
}

func lineStarts(src string) []uint32 {
	starts := []uint32{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return starts
}

// Store is the file store and symbol interner. It is not safe for
// concurrent use; the kernel drives it from a single goroutine.
type Store struct {
	files     []file
	nameToID  map[string]FileID
	symToStr  []string
	strToSym  map[string]SymbolID
	fsAccess  AccessMode
	size      uint64
	garbage   uint64
	emptySlot []FileID
	implOf    map[FileID]FileID // system header FileID -> paired libs/<name>.c FileID
}

// reserved built-in names preallocated into the symbol table, mirroring the
// original implementation's InitSyms set.
var reservedSymbols = []string{
	"main", "va_list", "printf", "exit", "malloc", "free", "realloc",
	"memcpy", "strlen", "scanf",
}

// NewStore builds an empty store with the reserved symbols preallocated and
// fs read access set per mode.
func NewStore(mode AccessMode) *Store {
	s := &Store{
		nameToID: make(map[string]FileID),
		strToSym: make(map[string]SymbolID),
		fsAccess: mode,
	}
	for _, name := range reservedSymbols {
		s.intern(name)
	}
	return s
}

func (s *Store) intern(text string) SymbolID {
	if id, ok := s.strToSym[text]; ok {
		return id
	}
	id := SymbolID(len(s.symToStr))
	s.symToStr = append(s.symToStr, text)
	s.strToSym[text] = id
	return id
}

// Add installs source bytes under a canonical path, replacing any existing
// file of the same name and accounting the old bytes as garbage.
func (s *Store) Add(name string, source string) FileID {
	clean := pathClean(name)
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}

	ls := lineStarts(source)
	s.size += uint64(len(source))

	if id, ok := s.nameToID[clean]; ok {
		old := &s.files[id-1]
		s.garbage += uint64(len(old.source))
		old.source = source
		old.lineStarts = ls
		old.name = clean
		s.maybeCompact()
		return id
	}

	var id FileID
	if n := len(s.emptySlot); n > 0 {
		id = s.emptySlot[n-1]
		s.emptySlot = s.emptySlot[:n-1]
		s.files[id-1] = file{name: clean, source: source, lineStarts: ls}
	} else {
		s.files = append(s.files, file{name: clean, source: source, lineStarts: ls})
		id = FileID(len(s.files))
	}
	s.nameToID[clean] = id
	return id
}

// FSError is returned by AddFromInclude when an include cannot be resolved:
// a quoted include against the host file system, or a system header name
// missing from the bundled table (Kind "NotFound").
type FSError struct {
	Path string
	Kind string // "NotFound" | "PermissionDenied" | "AlreadyExists"
}

func (e *FSError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Path) }

// ReadFS abstracts the host file system so AddFromInclude stays host-agnostic;
// callers in tests can substitute an in-memory map.
type ReadFS interface {
	ReadFile(path string) (string, error)
}

// AddFromInclude resolves `#include "p"` (quoted, relative to referrer) or
// `#include <p>` (system, against the bundled header table).
func (s *Store) AddFromInclude(includeText string, system bool, referrer FileID, fs ReadFS) (FileID, error) {
	if system {
		return s.addSystemHeader(includeText)
	}

	if s.fsAccess != ReadFSAccess {
		return 0, &FSError{Path: includeText, Kind: "PermissionDenied"}
	}

	resolved := includeText
	if !strings.HasPrefix(includeText, "/") {
		dir := parentIfFile(s.nameOf(referrer))
		resolved = path.Join(dir, includeText)
	}
	resolved = pathClean(resolved)

	if fs == nil {
		return 0, &FSError{Path: resolved, Kind: "NotFound"}
	}
	contents, err := fs.ReadFile(resolved)
	if err != nil {
		return 0, &FSError{Path: resolved, Kind: "NotFound"}
	}
	return s.Add(resolved, contents), nil
}

func (s *Store) addSystemHeader(name string) (FileID, error) {
	lib, ok := syslibs.Headers[name]
	if !ok {
		return 0, &FSError{Path: name, Kind: "NotFound"}
	}
	headerPath := "/" + name
	if _, ok := s.nameToID[headerPath]; !ok {
		hid := s.Add(headerPath, lib.Header)
		implPath := "/libs/" + name
		implPath = strings.TrimSuffix(implPath, path.Ext(implPath)) + ".c"
		implID := s.Add(implPath, lib.Impl)
		if s.implOf == nil {
			s.implOf = make(map[FileID]FileID)
		}
		s.implOf[hid] = implID
	}
	return s.nameToID[headerPath], nil
}

// SystemImpl returns the libs/<name>.c FileID bundled alongside a system
// header's own FileID (as returned for a bracket include), if headerID names
// a bundled system header.
func (s *Store) SystemImpl(headerID FileID) (FileID, bool) {
	id, ok := s.implOf[headerID]
	return id, ok
}

func (s *Store) nameOf(id FileID) string {
	if id == 0 || int(id) > len(s.files) {
		return "/"
	}
	return s.files[id-1].name
}

// TranslateAdd interns the textual contents addressed by loc.
func (s *Store) TranslateAdd(loc CodeLoc) SymbolID {
	text := s.Text(loc)
	return s.intern(text)
}

// InternString interns arbitrary decoded text (e.g. a string literal's
// escape-decoded bytes) that does not correspond to a raw source range.
func (s *Store) InternString(text string) SymbolID {
	return s.intern(text)
}

// SymbolToStr reverse-looks-up an interned symbol.
func (s *Store) SymbolToStr(sym SymbolID) string {
	if int(sym) >= len(s.symToStr) {
		return ""
	}
	return s.symToStr[sym]
}

// Text returns the raw bytes addressed by a CodeLoc.
func (s *Store) Text(loc CodeLoc) string {
	if loc.File == 0 || int(loc.File) > len(s.files) {
		return ""
	}
	f := &s.files[loc.File-1]
	if int(loc.End) > len(f.source) || loc.Start > loc.End {
		return ""
	}
	return f.source[loc.Start:loc.End]
}

func (s *Store) Source(id FileID) string {
	if id == 0 || int(id) > len(s.files) {
		return ""
	}
	return s.files[id-1].source
}

func (s *Store) Name(id FileID) string { return s.nameOf(id) }

// LineIndex binary-searches the line-start table for byte's 0-based line.
func (s *Store) LineIndex(id FileID, byteOffset uint32) int {
	if id == 0 || int(id) > len(s.files) {
		return 0
	}
	starts := s.files[id-1].lineStarts
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > byteOffset })
	return i - 1
}

// maybeCompact runs the copy-GC when garbage exceeds 4x live bytes.
func (s *Store) maybeCompact() {
	live := s.size - s.garbage
	if live == 0 || s.garbage <= 4*live {
		return
	}
	s.Compact()
}

// Compact relocates nothing in this Go port (files are stored by value in a
// slice, not in a bump arena, so there is no relocation to perform) but it
// resets garbage accounting, matching the original's post-GC state.
func (s *Store) Compact() {
	s.size -= s.garbage
	s.garbage = 0
}

func pathClean(p string) string {
	return path.Clean(p)
}

func parentIfFile(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return path.Dir(p)
}
