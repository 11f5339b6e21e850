// Package token defines the lexical token kinds TCI's lexer produces.
package token

import "github.com/tci-lang/tci/internal/symtab"

type Kind int

const (
	EOF Kind = iota

	IntLiteral
	CharLiteral
	StringLiteral
	Ident
	TypeIdent

	// Preprocessor markers. #include is resolved entirely within the lexer
	// (the included unit is queued for separate parsing, never spliced into
	// this stream as a token), so only #pragma and #define leave a mark here.
	Pragma
	MacroDef
	FuncMacroDef
	MacroDefEnd

	// Keywords.
	KwVoid
	KwChar
	KwInt
	KwLong
	KwUnsigned
	KwSigned
	KwStatic
	KwStruct
	KwUnion
	KwEnum
	KwSizeof
	KwTypedef
	KwIf
	KwElse
	KwDo
	KwWhile
	KwFor
	KwBreak
	KwContinue
	KwReturn
	KwGoto
	KwCase
	KwConst
	KwDefault
	KwExtern
	KwSwitch
	KwShort

	// Unsupported-but-reserved keywords (e.g. _Alignas, _Atomic, inline,
	// restrict, volatile, _Bool, the _FloatNN/_DecimalNN family).
	Unimplemented

	// Punctuation and operators.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Dot
	Arrow
	Ellipsis

	Plus
	Minus
	Star
	Slash
	Percent
	Amp
	Pipe
	Caret
	Tilde
	Bang
	Shl
	Shr

	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	AmpAssign
	PipeAssign
	CaretAssign
	ShlAssign
	ShrAssign

	Eq
	Neq
	Lt
	Gt
	Leq
	Geq
	AndAnd
	OrOr

	PlusPlus
	MinusMinus
	Question
	Colon
)

// Keywords maps recognized spellings to their kind. Anything in
// ReservedUnimplemented instead maps to Unimplemented.
var Keywords = map[string]Kind{
	"void": KwVoid, "char": KwChar, "int": KwInt, "long": KwLong,
	"unsigned": KwUnsigned, "signed": KwSigned, "static": KwStatic,
	"struct": KwStruct, "union": KwUnion, "enum": KwEnum, "sizeof": KwSizeof,
	"typedef": KwTypedef, "if": KwIf, "else": KwElse, "do": KwDo,
	"while": KwWhile, "for": KwFor, "break": KwBreak, "continue": KwContinue,
	"return": KwReturn, "goto": KwGoto, "case": KwCase, "const": KwConst,
	"default": KwDefault, "extern": KwExtern, "switch": KwSwitch,
	"short": KwShort,
}

// ReservedUnimplemented lists spellings the lexer recognizes as keywords
// but which TCI's restricted C dialect does not support lowering.
var ReservedUnimplemented = map[string]bool{
	"auto": true, "inline": true, "register": true, "restrict": true,
	"volatile": true, "_Bool": true, "_Complex": true, "_Imaginary": true,
	"_Alignas": true, "_Alignof": true, "_Atomic": true,
	"_Generic": true, "_Noreturn": true, "_Static_assert": true,
	"_Thread_local": true,
	"_Float16": true, "_Float32": true, "_Float64": true, "_Float128": true,
	"_Float32x": true, "_Float64x": true, "_Float128x": true,
	"_Decimal32": true, "_Decimal64": true, "_Decimal128": true,
	"_Decimal32x": true, "_Decimal64x": true, "_Decimal128x": true,
}

// Token is a (kind, location) pair; literal payloads are carried alongside.
type Token struct {
	Kind Kind
	Loc  symtab.CodeLoc

	IntVal  int32
	CharVal int8
	StrSym  symtab.SymbolID // StringLiteral: interned bytes
	Sym     symtab.SymbolID // Ident/TypeIdent/MacroDef/FuncMacroDef
	Text    string          // Pragma text, Unimplemented spelling
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

var kindNames = map[Kind]string{
	EOF: "EOF", IntLiteral: "IntLiteral", CharLiteral: "CharLiteral",
	StringLiteral: "StringLiteral", Ident: "Ident", TypeIdent: "TypeIdent",
	Pragma: "Pragma",
	MacroDef: "MacroDef", FuncMacroDef: "FuncMacroDef", MacroDefEnd: "MacroDefEnd",
	Unimplemented: "Unimplemented",
	LParen:        "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Semicolon: ";", Comma: ",", Dot: ".",
	Arrow: "->", Ellipsis: "...",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Bang: "!",
	Shl: "<<", Shr: ">>",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=",
	SlashAssign: "/=", PercentAssign: "%=", AmpAssign: "&=",
	PipeAssign: "|=", CaretAssign: "^=", ShlAssign: "<<=", ShrAssign: ">>=",
	Eq: "==", Neq: "!=", Lt: "<", Gt: ">", Leq: "<=", Geq: ">=",
	AndAnd: "&&", OrOr: "||", PlusPlus: "++", MinusMinus: "--",
	Question: "?", Colon: ":",
}
