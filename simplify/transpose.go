package simplify

import (
	. "github.com/gomlx/exceptions"
	"github.com/tensorir/tensorir/ir"
	"github.com/tensorir/tensorir/pattern"
	"github.com/tensorir/tensorir/pkg/support/xslices"
)

// transposeMergeRule matches two chained transpose / layout_transform calls and
// merges or cancels them. Rank-changing layout transforms are handled first by
// foldRankChangingLayoutTransform; otherwise the two permutations are composed
// algebraically, and an identity composition elides both transposes entirely.
func transposeMergeRule() rule {
	x := pattern.Wildcard()
	trans1 := pattern.AnyOf(pattern.IsOp(ir.OpTranspose), pattern.IsOp(ir.OpLayoutTransform))
	trans2 := pattern.AnyOf(pattern.IsOp(ir.OpTranspose), pattern.IsOp(ir.OpLayoutTransform))
	return rule{
		name:    "transpose-merge",
		pattern: pattern.Call(trans1, pattern.Call(trans2, x)),
		rewrite: func(call *ir.Call, b pattern.Bindings) ir.Expr {
			xExpr := b.First(x)

			if folded := foldRankChangingLayoutTransform(xExpr, call); folded != nil {
				if attrs, ok := folded.Attrs().(*ir.LayoutTransformAttrs); ok {
					// Prune any trivial layout transformation.
					if attrs.SrcLayout == attrs.DstLayout {
						return xExpr
					}
				}
				return folded
			}

			ndim := call.Shape().Rank()
			inner := call.Arg(0).(*ir.Call)

			// Compose the two permutations, from the innermost transform out.
			axes := xslices.Iota(0, ndim)
			for _, interim := range [][]int{
				transposeAxisOrder(inner, ndim),
				transposeAxisOrder(call, ndim),
			} {
				composed := make([]int, ndim)
				for ii := 0; ii < ndim; ii++ {
					composed[ii] = axes[interim[ii]]
				}
				axes = composed
			}

			for ii := 0; ii < ndim; ii++ {
				if axes[ii] != ii {
					return ir.Transpose(xExpr, axes...)
				}
			}
			// Identity permutation: the transposes cancel out.
			return xExpr
		},
	}
}

// rankChangingLayoutDescriptor describes a chained pair of axis transforms in
// which at least one layout_transform changes rank: the narrowest source
// layout, the widest destination layout, and whichever of the two calls is not
// itself rank-changing.
type rankChangingLayoutDescriptor struct {
	src, dst ir.Layout
	// Either a rank-changing layout transform or a transpose.
	other *ir.Call
}

// rankChangeDescriptor inspects the outer call and its (call) argument. When
// both are rank-changing layout transforms their shared intermediate layout
// must be identical -- a mismatch means the IR is malformed and aborts.
func rankChangeDescriptor(call *ir.Call) *rankChangingLayoutDescriptor {
	inner := call.Arg(0).(*ir.Call)
	var desc *rankChangingLayoutDescriptor
	if attrs, ok := call.Attrs().(*ir.LayoutTransformAttrs); ok {
		src, dst := ir.MakeLayout(attrs.SrcLayout), ir.MakeLayout(attrs.DstLayout)
		if src.Rank() != dst.Rank() {
			desc = &rankChangingLayoutDescriptor{src: src, dst: dst, other: inner}
		}
	}
	if attrs, ok := inner.Attrs().(*ir.LayoutTransformAttrs); ok {
		src, dst := ir.MakeLayout(attrs.SrcLayout), ir.MakeLayout(attrs.DstLayout)
		if src.Rank() != dst.Rank() {
			if desc == nil {
				desc = &rankChangingLayoutDescriptor{src: src, dst: dst, other: call}
			} else {
				if desc.src.Name() != dst.Name() {
					Panicf("back-to-back layout transforms must have the same intermediate layout: %s != %s",
						desc.src.Name(), dst.Name())
				}
				desc.src = src
			}
		}
	}
	return desc
}

// foldRankChangingLayoutTransform fuses the matched pair into a single
// layout_transform when either call is a rank-changing layout transform, e.g.
//
//	[N, H, W, C] -> transpose -> [N, C, H, W] -> layout_transform -> [N, C, H, W, 4c]
//
// becomes
//
//	[N, H, W, C] -> layout_transform -> [N, C, H, W, 4c].
//
// The three cases are tried in this priority order: rank-expanding pair,
// rank-reducing pair, equal ranks with a second layout transform. It returns
// nil when no fold applies -- the caller falls back to permutation composition.
func foldRankChangingLayoutTransform(data ir.Expr, call *ir.Call) *ir.Call {
	desc := rankChangeDescriptor(call)
	if desc == nil {
		return nil
	}
	switch {
	case desc.src.Rank() < desc.dst.Rank():
		// The other transform permutes the narrow side: apply its inverse to
		// the source layout and fold into one transform to the wide layout.
		axes := transposeAxisOrder(desc.other, desc.src.Rank())
		inverse := make([]int, len(axes))
		for ii, axis := range axes {
			inverse[axis] = ii
		}
		src := permuteLayout(desc.src, inverse)
		return ir.LayoutTransform(data, src.Name(), desc.dst.Name())
	case desc.src.Rank() > desc.dst.Rank():
		axes := transposeAxisOrder(desc.other, desc.dst.Rank())
		dst := permuteLayout(desc.dst, axes)
		return ir.LayoutTransform(data, desc.src.Name(), dst.Name())
	default:
		if _, ok := desc.other.Attrs().(*ir.LayoutTransformAttrs); ok {
			// Two chained layout transforms with matching intermediate layout:
			// skip the intermediate entirely.
			return ir.LayoutTransform(data, desc.src.Name(), desc.dst.Name())
		}
	}
	return nil
}

// permuteLayout reorders the layout's axis labels by the given permutation.
func permuteLayout(l ir.Layout, axes []int) ir.Layout {
	permuted := make([]ir.LayoutAxis, len(axes))
	for ii, axis := range axes {
		permuted[ii] = l.Axis(axis)
	}
	return ir.MakeLayoutFromAxes(permuted)
}

// transposeAxisOrder extracts the axis permutation applied by a transpose or a
// (non-rank-changing) layout_transform call. Any other operator here means the
// IR is malformed and aborts compilation -- this never fabricates a
// permutation.
func transposeAxisOrder(call *ir.Call, ndim int) []int {
	switch attrs := call.Attrs().(type) {
	case *ir.TransposeAttrs:
		axes := make([]int, ndim)
		if attrs.Axes != nil {
			for ii := 0; ii < ndim; ii++ {
				axis := attrs.Axes[ii]
				if axis < 0 {
					axis += ndim
				}
				axes[ii] = axis
			}
		} else {
			// Empty axes means reverse.
			for ii := 0; ii < ndim; ii++ {
				axes[ii] = ndim - 1 - ii
			}
		}
		return axes
	case *ir.LayoutTransformAttrs:
		src, dst := ir.MakeLayout(attrs.SrcLayout), ir.MakeLayout(attrs.DstLayout)
		axes := make([]int, ndim)
		for ii := 0; ii < ndim; ii++ {
			axis := src.IndexOf(dst.Axis(ii))
			if axis < 0 {
				Panicf("layout transform %s -> %s: axis %s not present in source layout",
					src, dst, dst.Axis(ii))
			}
			axes[ii] = axis
		}
		return axes
	}
	Panicf("expected transpose or layout_transform, but got %s", call.Op())
	return nil
}
