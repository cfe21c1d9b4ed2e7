package simplify

import (
	. "github.com/gomlx/exceptions"
	"github.com/tensorir/tensorir/ir"
	"github.com/tensorir/tensorir/pattern"
	"github.com/tensorir/tensorir/types/shapes"
)

// reshapeMergeRule matches two chained reshape (or reverse_reshape) calls and
// merges them into a single reshape of the innermost operand, directly to the
// outer call's shape. It declines when the outer shape has a symbolic
// dimension: the merged reshape would need a concrete target shape.
func reshapeMergeRule() rule {
	x := pattern.Wildcard()
	reshape1 := pattern.AnyOf(pattern.IsOp(ir.OpReshape), pattern.IsOp(ir.OpReverseReshape))
	reshape2 := pattern.AnyOf(pattern.IsOp(ir.OpReshape), pattern.IsOp(ir.OpReverseReshape))
	return rule{
		name:    "reshape-merge",
		pattern: pattern.Call(reshape1, pattern.Call(reshape2, x)),
		rewrite: func(call *ir.Call, b pattern.Bindings) ir.Expr {
			out := call.Shape()
			if !out.IsFullyStatic() {
				return call
			}
			return ir.Reshape(b.First(x), out.StaticDimensions()...)
		},
	}
}

// identityEliminationRule matches a broadcasting binary elementwise call where
// one operand is the operation's scalar identity constant (0 for add and sub,
// 1 for mul and div) and elides the call entirely. For the non-commutative sub
// and div only the right operand is an identity. Combined with
// fullElementwiseFoldRule this turns add(zeros_like(x), x) into plain x. It
// declines when eliding would change the output shape.
func identityEliminationRule() rule {
	lhs := pattern.Wildcard()
	rhs := pattern.Wildcard()
	return rule{
		name:    "identity-elimination",
		pattern: pattern.Call(pattern.IsBroadcastOp(), lhs, rhs),
		rewrite: func(call *ir.Call, b pattern.Bindings) ir.Expr {
			var identity float64
			commutative := false
			switch call.Op() {
			case ir.OpAdd:
				identity, commutative = 0, true
			case ir.OpSub:
				identity = 0
			case ir.OpMul:
				identity, commutative = 1, true
			case ir.OpDiv:
				identity = 1
			default:
				return call
			}
			dtype := call.Shape().DType
			if !ir.SupportsConstantScalar(dtype) {
				return call
			}
			want := ir.MakeConstantScalar(dtype, identity)
			if other := b.First(lhs); ir.Equal(b.First(rhs), want) && other.Shape().Equal(call.Shape()) {
				return other
			}
			if commutative {
				if other := b.First(rhs); ir.Equal(b.First(lhs), want) && other.Shape().Equal(call.Shape()) {
					return other
				}
			}
			return call
		},
	}
}

// fullElementwiseFoldRule matches a broadcasting binary elementwise call where
// one operand is a fill operator (full/full_like/ones/ones_like/zeros/
// zeros_like) and replaces the filled operand by its scalar constant value, so
// the whole tensor materialization disappears. It declines when the other
// operand's type differs from the call's: then the filled operand drives real
// broadcasting and carries the output shape.
func fullElementwiseFoldRule() rule {
	x := pattern.Wildcard()
	data := pattern.Wildcard()
	value := pattern.IsConstant()

	full := pattern.AnyOf(
		pattern.Call(pattern.IsOp(ir.OpFull), value),
		pattern.Call(pattern.IsOp(ir.OpFullLike), data, value),
	)
	fillOp := pattern.IsFillOp()
	fill := pattern.AnyOf(full, fillOp)
	op := pattern.IsBroadcastOp()

	return rule{
		name:    "full-elementwise-fold",
		pattern: pattern.AnyOf(pattern.Call(op, fill, x), pattern.Call(op, x, fill)),
		rewrite: func(call *ir.Call, b pattern.Bindings) ir.Expr {
			dtype := call.Shape().DType
			xExpr := b.First(x)
			// The fill operand is on the left when x bound the second argument.
			fillIsLeft := call.Arg(1) == xExpr
			var xType shapes.Shape
			if fillIsLeft {
				xType = call.Arg(1).Shape()
			} else {
				xType = call.Arg(0).Shape()
			}
			if !xType.Equal(call.Shape()) {
				return call
			}
			var scalar ir.Expr
			if b.Matched(full) {
				scalar = b.First(value)
				if c, ok := scalar.(*ir.Const); !ok || !c.IsScalar() {
					Panicf("full-elementwise-fold: fill value %s is not a scalar constant", scalar)
				}
			} else {
				fillCall := b.First(fillOp).(*ir.Call)
				switch fillCall.Op() {
				case ir.OpOnes, ir.OpOnesLike:
					if !ir.SupportsConstantScalar(dtype) {
						return call
					}
					scalar = ir.MakeConstantScalar(dtype, 1)
				case ir.OpZeros, ir.OpZerosLike:
					if !ir.SupportsConstantScalar(dtype) {
						return call
					}
					scalar = ir.MakeConstantScalar(dtype, 0)
				default:
					// A full with a non-constant fill value: nothing to fold.
					return call
				}
			}
			if fillIsLeft {
				return call.WithArgs(scalar, xExpr)
			}
			return call.WithArgs(xExpr, scalar)
		},
	}
}
