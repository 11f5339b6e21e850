// overload.go models the unary/binary operator tables and the assignment
// conversion table as pure functions of (op, primitive-kind-tuple),
// returning a conversion plan, per spec.md §9 Design Notes — not a table of
// closures.
package types

import "github.com/tci-lang/tci/internal/ast"

// ConvKind names the single-node conversion to wrap an expression in.
type ConvKind int

const (
	ConvNone ConvKind = iota
	ConvSConv8To32
	ConvSConv32To64
	ConvZConv8To32
	ConvZConv32To64
	ConvTrunc64To32
	ConvTrunc32To8
)

// BinaryPlan is the result of a binary-overload lookup: how to convert each
// operand before applying op, and the result type/op-kind.
type BinaryPlan struct {
	OK         bool
	ConvLeft   ConvKind
	ConvRight  ConvKind
	ResultType Shallow
	ExprKind   TCExprKind
}

// LookupBinary resolves (op, left-primitive, right-primitive) against the
// binary overload table: arithmetic on I32 and arithmetic on U64 (after
// promoting the other operand). Pointer arithmetic is not in this table; the
// checker lowers it before consulting it (see PointerStride).
func LookupBinary(op ast.BinOp, left, right Shallow) BinaryPlan {
	// Promote Char to I32 on either side before consulting the table.
	promote := func(s Shallow) (Shallow, ConvKind) {
		if s == ShallowChar {
			return ShallowI32, ConvSConv8To32
		}
		return s, ConvNone
	}
	ls, lc := promote(left)
	rs, rc := promote(right)

	if ls == ShallowI32 && rs == ShallowU64 {
		lc = ConvSConv32To64
		ls = ShallowU64
	} else if ls == ShallowU64 && rs == ShallowI32 {
		rc = ConvSConv32To64
		rs = ShallowU64
	}

	if ls != rs || (ls != ShallowI32 && ls != ShallowU64) {
		return BinaryPlan{}
	}

	kind, ok := arithKind(op, ls)
	if !ok {
		return BinaryPlan{}
	}
	return BinaryPlan{OK: true, ConvLeft: lc, ConvRight: rc, ResultType: resultShallow(op, ls), ExprKind: kind}
}

func resultShallow(op ast.BinOp, operand Shallow) Shallow {
	switch op {
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpGt, ast.OpLeq, ast.OpGeq, ast.OpLogAnd, ast.OpLogOr:
		return ShallowI32
	default:
		return operand
	}
}

func arithKind(op ast.BinOp, operand Shallow) (TCExprKind, bool) {
	is32 := operand == ShallowI32
	switch op {
	case ast.OpAdd:
		if is32 {
			return TCAddI32, true
		}
		return TCAddU64, true
	case ast.OpSub:
		if is32 {
			return TCSubI32, true
		}
		return TCSubU64, true
	case ast.OpMul:
		if is32 {
			return TCMulI32, true
		}
		return TCMulU64, true
	case ast.OpDiv:
		if is32 {
			return TCDivI32, true
		}
		return TCDivU64, true
	case ast.OpMod:
		if is32 {
			return TCModI32, true
		}
		return TCModU64, true
	case ast.OpAnd:
		return TCAndI32, is32
	case ast.OpOr:
		return TCOrI32, is32
	case ast.OpXor:
		return TCXorI32, is32
	case ast.OpShl:
		return TCShlI32, is32
	case ast.OpShr:
		return TCShrI32, is32
	case ast.OpEq:
		return TCEqI32, true
	case ast.OpNeq:
		return TCNeqI32, true
	case ast.OpLt:
		return TCLtI32, true
	case ast.OpGt:
		return TCGtI32, true
	case ast.OpLeq:
		return TCLeqI32, true
	case ast.OpGeq:
		return TCGeqI32, true
	case ast.OpLogAnd:
		return TCLogAnd, true
	case ast.OpLogOr:
		return TCLogOr, true
	default:
		return 0, false
	}
}

// LookupUnary resolves (op, primitive) against the unary overload table.
func LookupUnary(op ast.UnaryOp, operand Shallow) (TCExprKind, bool) {
	if operand != ShallowI32 && operand != ShallowChar {
		return 0, false
	}
	switch op {
	case ast.OpNeg:
		return TCNegI32, true
	case ast.OpNot:
		return TCNotI32, true
	case ast.OpBitNot:
		return TCBitNotI32, true
	default:
		return 0, false
	}
}

// LookupAssignConv resolves (from, to) to the single conversion node that
// wraps the source, or ConvNone/false if no conversion exists.
func LookupAssignConv(from, to Shallow) (ConvKind, bool) {
	if from == to {
		return ConvNone, true
	}
	switch {
	case from == ShallowChar && to == ShallowI32:
		return ConvSConv8To32, true
	case from == ShallowI32 && to == ShallowU64:
		return ConvSConv32To64, true
	case from == ShallowChar && to == ShallowU64:
		return ConvZConv32To64, true // via I32 in two steps; see applyConv
	case from == ShallowU64 && to == ShallowI32:
		return ConvTrunc64To32, true
	case from == ShallowI32 && to == ShallowChar:
		return ConvTrunc32To8, true
	default:
		return ConvNone, false
	}
}

// PointerStride returns the pointee size used to scale integer operands in
// pointer arithmetic. The IR has no separate multiply node: the stride is a
// field (TCExpr.Stride) of the single TCPtrAdd/TCPtrSub/TCPtrDiff node, and
// the matching opcode applies it.
func PointerStride(pointee TCType) uint32 {
	size := pointee.Size()
	if size == 0 {
		return 1
	}
	return size
}

func applyConv(kind ConvKind, e *TCExpr) *TCExpr {
	switch kind {
	case ConvNone:
		return e
	case ConvSConv8To32:
		return &TCExpr{Kind: TCSConv8To32, ExprType: TCType{Kind: KindI32}, Lhs: e, Loc: e.Loc}
	case ConvSConv32To64:
		return &TCExpr{Kind: TCSConv32To64, ExprType: TCType{Kind: KindU64}, Lhs: e, Loc: e.Loc}
	case ConvZConv8To32:
		return &TCExpr{Kind: TCZConv8To32, ExprType: TCType{Kind: KindI32}, Lhs: e, Loc: e.Loc}
	case ConvZConv32To64:
		inner := &TCExpr{Kind: TCZConv8To32, ExprType: TCType{Kind: KindI32}, Lhs: e, Loc: e.Loc}
		return &TCExpr{Kind: TCZConv32To64, ExprType: TCType{Kind: KindU64}, Lhs: inner, Loc: e.Loc}
	case ConvTrunc64To32:
		return &TCExpr{Kind: TCTrunc64To32, ExprType: TCType{Kind: KindI32}, Lhs: e, Loc: e.Loc}
	case ConvTrunc32To8:
		return &TCExpr{Kind: TCTrunc32To8, ExprType: TCType{Kind: KindChar}, Lhs: e, Loc: e.Loc}
	default:
		return e
	}
}
