// Package lexer tokenizes C source text, resolving #include and recognizing
// #pragma/#define directives. It interns identifiers via internal/symtab and
// recursively lexes included files with cycle detection.
package lexer

import (
	"strings"

	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/symtab"
	"github.com/tci-lang/tci/internal/token"
)

// Lexer lexes files on demand, caching each file's token slice and
// detecting #include cycles across the whole call tree. An #include never
// splices tokens into the including file's own stream; instead the included
// file (and, for a bracket include of a bundled system header, its paired
// libs/<name>.c implementation) is lexed as its own unit and queued onto
// pending for the caller to separately preprocess, parse, and fold into the
// translation unit — mirroring the original's per-file token_db entries.
type Lexer struct {
	store      *symtab.Store
	fs         symtab.ReadFS
	cache      map[symtab.FileID][]token.Token
	inProgress map[symtab.FileID]bool
	pending    []symtab.FileID
	queued     map[symtab.FileID]bool
}

func New(store *symtab.Store, fs symtab.ReadFS) *Lexer {
	return &Lexer{
		store:      store,
		fs:         fs,
		cache:      make(map[symtab.FileID][]token.Token),
		inProgress: make(map[symtab.FileID]bool),
		queued:     make(map[symtab.FileID]bool),
	}
}

// Tokens returns the cached token slice for a file this Lexer has already
// lexed (via LexFile or as a side effect of resolving some #include).
func (l *Lexer) Tokens(id symtab.FileID) []token.Token {
	return l.cache[id]
}

// TakePending drains and returns the file IDs discovered via #include since
// the last call. Order matters: a header always precedes its paired impl,
// and an impl's own transitive includes always precede the impl itself, so
// a caller folding each unit's parsed globals into a translation unit in
// this order never sees a call site before the callee's declaration.
func (l *Lexer) TakePending() []symtab.FileID {
	p := l.pending
	l.pending = nil
	return p
}

func (l *Lexer) queue(id symtab.FileID) {
	if l.queued[id] {
		return
	}
	l.queued[id] = true
	l.pending = append(l.pending, id)
}

// LexFile tokenizes id, reusing a cached token slice if this file has
// already been lexed (include resolution is idempotent).
func (l *Lexer) LexFile(id symtab.FileID) ([]token.Token, error) {
	if toks, ok := l.cache[id]; ok {
		return toks, nil
	}
	if l.inProgress[id] {
		return nil, diag.New(diag.Lexical, symtab.CodeLoc{File: id}, "include cycle detected")
	}
	l.inProgress[id] = true
	defer delete(l.inProgress, id)

	src := l.store.Source(id)
	s := &scanner{lexer: l, store: l.store, file: id, src: src}
	toks, err := s.run()
	if err != nil {
		return nil, err
	}
	l.cache[id] = toks
	return toks, nil
}

type scanner struct {
	lexer *Lexer
	store *symtab.Store
	file  symtab.FileID
	src   string
	pos   int
	out   []token.Token
}

func (s *scanner) loc(start int) symtab.CodeLoc {
	return symtab.CodeLoc{File: s.file, Start: uint32(start), End: uint32(s.pos)}
}

func (s *scanner) errf(start int, format string, args ...any) error {
	return diag.New(diag.Lexical, s.loc(start), format, args...)
}

func (s *scanner) run() ([]token.Token, error) {
	for {
		s.skipWhitespaceAndComments()
		if s.atEnd() {
			break
		}
		if s.peek() == '#' {
			if err := s.lexDirective(); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.lexToken(); err != nil {
			return nil, err
		}
	}
	return s.out, nil
}

func (s *scanner) atEnd() bool { return s.pos >= len(s.src) }
func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.pos]
}
func (s *scanner) peekAt(off int) byte {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}
func (s *scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	return c
}

func (s *scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case c == '/' && s.peekAt(1) == '/':
			for !s.atEnd() && s.peek() != '\n' {
				s.pos++
			}
		case c == '/' && s.peekAt(1) == '*':
			s.pos += 2
			for !s.atEnd() && !(s.peek() == '*' && s.peekAt(1) == '/') {
				s.pos++
			}
			if !s.atEnd() {
				s.pos += 2
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentCont(c byte) bool  { return isIdentStart(c) || (c >= '0' && c <= '9') }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }

func (s *scanner) lexDirective() error {
	start := s.pos
	s.pos++ // consume '#'
	for !s.atEnd() && (s.peek() == ' ' || s.peek() == '\t') {
		s.pos++
	}
	wordStart := s.pos
	for !s.atEnd() && isIdentCont(s.peek()) {
		s.pos++
	}
	word := s.src[wordStart:s.pos]

	switch word {
	case "pragma":
		for !s.atEnd() && (s.peek() == ' ' || s.peek() == '\t') {
			s.pos++
		}
		textStart := s.pos
		for !s.atEnd() && s.peek() != '\n' {
			s.pos++
		}
		text := s.src[textStart:s.pos]
		s.out = append(s.out, token.Token{Kind: token.Pragma, Loc: s.loc(start), Text: text})
		return nil
	case "define":
		return s.lexDefine(start)
	case "include":
		return s.lexInclude(start)
	default:
		return s.errf(start, "unknown preprocessor directive %q", word)
	}
}

func (s *scanner) lexDefine(start int) error {
	for !s.atEnd() && (s.peek() == ' ' || s.peek() == '\t') {
		s.pos++
	}
	if s.atEnd() || !isIdentStart(s.peek()) {
		return s.errf(start, "expected macro name after #define")
	}
	identStart := s.pos
	for !s.atEnd() && isIdentCont(s.peek()) {
		s.pos++
	}
	sym := s.store.TranslateAdd(symtab.CodeLoc{File: s.file, Start: uint32(identStart), End: uint32(s.pos)})

	isFunc := !s.atEnd() && s.peek() == '('
	if isFunc {
		s.out = append(s.out, token.Token{Kind: token.FuncMacroDef, Loc: s.loc(start), Sym: sym})
	} else {
		s.out = append(s.out, token.Token{Kind: token.MacroDef, Loc: s.loc(start), Sym: sym})
	}

	for {
		s.skipMacroWhitespace()
		if s.macroBodyEnded() {
			break
		}
		if s.peek() == '#' {
			return s.errf(s.pos, "nested directive inside macro body")
		}
		if err := s.lexToken(); err != nil {
			return err
		}
	}
	s.out = append(s.out, token.Token{Kind: token.MacroDefEnd, Loc: s.loc(s.pos)})
	return nil
}

// skipMacroWhitespace skips spaces/tabs/comments and backslash-newline
// continuations, but NOT a bare newline (which ends the macro body).
func (s *scanner) skipMacroWhitespace() {
	for !s.atEnd() {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case c == '\\' && s.peekAt(1) == '\n':
			s.pos += 2
		case c == '/' && s.peekAt(1) == '/':
			for !s.atEnd() && s.peek() != '\n' {
				s.pos++
			}
		case c == '/' && s.peekAt(1) == '*':
			s.pos += 2
			for !s.atEnd() && !(s.peek() == '*' && s.peekAt(1) == '/') {
				s.pos++
			}
			if !s.atEnd() {
				s.pos += 2
			}
		default:
			return
		}
	}
}

func (s *scanner) macroBodyEnded() bool {
	return s.atEnd() || s.peek() == '\n'
}

func (s *scanner) lexInclude(start int) error {
	for !s.atEnd() && (s.peek() == ' ' || s.peek() == '\t') {
		s.pos++
	}
	if s.atEnd() {
		return s.errf(start, "unexpected end of file in #include")
	}

	var system bool
	var closer byte
	switch s.peek() {
	case '"':
		system, closer = false, '"'
	case '<':
		system, closer = true, '>'
	default:
		return s.errf(start, "expected \"path\" or <path> after #include")
	}
	s.pos++
	pathStart := s.pos
	for !s.atEnd() && s.peek() != closer {
		s.pos++
	}
	if s.atEnd() {
		return s.errf(start, "unterminated #include path")
	}
	includeText := s.src[pathStart:s.pos]
	s.pos++ // consume closer

	id, err := s.store.AddFromInclude(includeText, system, s.file, s.lexer.fs)
	if err != nil {
		return s.errf(start, "%v", err)
	}
	if _, err := s.lexer.LexFile(id); err != nil {
		return err
	}
	s.lexer.queue(id)

	if system {
		if implID, ok := s.store.SystemImpl(id); ok {
			if _, err := s.lexer.LexFile(implID); err != nil {
				return err
			}
			s.lexer.queue(implID)
		}
	}
	return nil
}

func (s *scanner) lexToken() error {
	start := s.pos
	c := s.peek()

	switch {
	case isIdentStart(c):
		return s.lexIdentOrKeyword(start)
	case isDigit(c):
		return s.lexNumber(start)
	case c == '\'':
		return s.lexChar(start)
	case c == '"':
		return s.lexString(start)
	default:
		return s.lexOperator(start)
	}
}

func (s *scanner) lexIdentOrKeyword(start int) error {
	for !s.atEnd() && isIdentCont(s.peek()) {
		s.pos++
	}
	text := s.src[start:s.pos]

	if kind, ok := token.Keywords[text]; ok {
		s.out = append(s.out, token.Token{Kind: kind, Loc: s.loc(start)})
		return nil
	}
	if token.ReservedUnimplemented[text] {
		s.out = append(s.out, token.Token{Kind: token.Unimplemented, Loc: s.loc(start), Text: text})
		return nil
	}
	sym := s.store.TranslateAdd(s.loc(start))
	s.out = append(s.out, token.Token{Kind: token.Ident, Loc: s.loc(start), Sym: sym})
	return nil
}

func (s *scanner) lexNumber(start int) error {
	var val int32
	for !s.atEnd() && isDigit(s.peek()) {
		d := int32(s.advance() - '0')
		val = val*10 + d // wraps on overflow, matching the original's bare i32 math
	}
	s.out = append(s.out, token.Token{Kind: token.IntLiteral, Loc: s.loc(start), IntVal: val})
	return nil
}

// lexCharacter reads one escaped-or-plain character, honoring the minimal
// escape set \n \' \" \0 and backslash-newline continuation.
func (s *scanner) lexCharacter(start int) (byte, error) {
	for s.peek() == '\\' && s.peekAt(1) == '\n' {
		s.pos += 2 // backslash-newline continues the literal on the next line
	}
	if s.atEnd() {
		return 0, s.errf(start, "unexpected end of file in literal")
	}
	c := s.advance()
	if c == '\n' {
		return 0, s.errf(start, "unescaped newline in literal")
	}
	if c >= 0x80 {
		return 0, s.errf(start, "non-ASCII byte in literal")
	}
	if c != '\\' {
		return c, nil
	}
	if s.atEnd() {
		return 0, s.errf(start, "unexpected end of file after escape")
	}
	e := s.advance()
	switch e {
	case 'n':
		return '\n', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case '0':
		return 0, nil
	default:
		return 0, s.errf(start, "unsupported escape sequence \\%c", e)
	}
}

func (s *scanner) lexChar(start int) error {
	s.pos++ // consume opening '
	ch, err := s.lexCharacter(start)
	if err != nil {
		return err
	}
	if s.atEnd() || s.peek() != '\'' {
		return s.errf(start, "unterminated character literal")
	}
	s.pos++
	s.out = append(s.out, token.Token{Kind: token.CharLiteral, Loc: s.loc(start), CharVal: int8(ch)})
	return nil
}

func (s *scanner) lexString(start int) error {
	s.pos++ // consume opening "
	var b strings.Builder
	for {
		if s.peek() == '\\' && s.peekAt(1) == '\n' {
			s.pos += 2 // continuation: skip before checking for the closing quote
			continue
		}
		if s.atEnd() {
			return s.errf(start, "unterminated string literal")
		}
		if s.peek() == '"' {
			s.pos++
			break
		}
		ch, err := s.lexCharacter(start)
		if err != nil {
			return err
		}
		b.WriteByte(ch)
	}
	// String bytes are interned the same way identifiers are, keyed on the
	// decoded text rather than the raw source range (escapes differ).
	sym := s.store.InternString(b.String())
	s.out = append(s.out, token.Token{Kind: token.StringLiteral, Loc: s.loc(start), StrSym: sym})
	return nil
}

type opEntry struct {
	text string
	kind token.Kind
}

var threeCharOps = []opEntry{
	{"...", token.Ellipsis},
	{"<<=", token.ShlAssign},
	{">>=", token.ShrAssign},
}

var twoCharOps = []opEntry{
	{"->", token.Arrow}, {"++", token.PlusPlus}, {"--", token.MinusMinus},
	{"<<", token.Shl}, {">>", token.Shr}, {"<=", token.Leq}, {">=", token.Geq},
	{"==", token.Eq}, {"!=", token.Neq}, {"&&", token.AndAnd}, {"||", token.OrOr},
	{"+=", token.PlusAssign}, {"-=", token.MinusAssign}, {"*=", token.StarAssign},
	{"/=", token.SlashAssign}, {"%=", token.PercentAssign}, {"&=", token.AmpAssign},
	{"|=", token.PipeAssign}, {"^=", token.CaretAssign},
}

var oneCharOps = map[byte]token.Kind{
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket, ';': token.Semicolon, ',': token.Comma,
	'.': token.Dot, '+': token.Plus, '-': token.Minus, '*': token.Star,
	'/': token.Slash, '%': token.Percent, '&': token.Amp, '|': token.Pipe,
	'^': token.Caret, '~': token.Tilde, '!': token.Bang, '=': token.Assign,
	'<': token.Lt, '>': token.Gt, '?': token.Question, ':': token.Colon,
}

// lexOperator greedily matches the longest operator spelling at s.pos.
func (s *scanner) lexOperator(start int) error {
	rest := s.src[s.pos:]
	for _, op := range threeCharOps {
		if strings.HasPrefix(rest, op.text) {
			s.pos += 3
			s.out = append(s.out, token.Token{Kind: op.kind, Loc: s.loc(start)})
			return nil
		}
	}
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op.text) {
			s.pos += 2
			s.out = append(s.out, token.Token{Kind: op.kind, Loc: s.loc(start)})
			return nil
		}
	}
	if kind, ok := oneCharOps[s.peek()]; ok {
		s.pos++
		s.out = append(s.out, token.Token{Kind: kind, Loc: s.loc(start)})
		return nil
	}
	return s.errf(start, "unexpected character %q", s.peek())
}
