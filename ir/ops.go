package ir

import (
	. "github.com/gomlx/exceptions"
	"github.com/tensorir/tensorir/pkg/support/xslices"
	"github.com/tensorir/tensorir/types/shapes"
	"slices"
)

// This file holds the operator constructors. Each constructor computes the
// checked type of the resulting call from its inputs, so every expression is
// fully type-annotated before the simplification pass ever sees it. Malformed
// constructions (invalid permutations, incompatible sizes) panic: they indicate
// a broken producer, not a missed optimization.

// Reshape returns a reshape of x to newShape. Entries must be positive sizes,
// with at most one -1 meaning "inferred from the remaining dimensions".
func Reshape(x Expr, newShape ...int) *Call {
	attrs := &ReshapeAttrs{NewShape: slices.Clone(newShape)}
	return &Call{
		op:    OpReshape,
		args:  []Expr{x},
		attrs: attrs,
		shape: reshapeShape(x.Shape(), newShape, false),
	}
}

// ReverseReshape is the axis-reversing variant of Reshape: the special values
// of newShape are inferred from right to left.
func ReverseReshape(x Expr, newShape ...int) *Call {
	attrs := &ReshapeAttrs{NewShape: slices.Clone(newShape)}
	return &Call{
		op:    OpReverseReshape,
		args:  []Expr{x},
		attrs: attrs,
		shape: reshapeShape(x.Shape(), newShape, true),
	}
}

func reshapeShape(x shapes.Shape, newShape []int, reverse bool) shapes.Shape {
	dims := x.Dimensions
	target := newShape
	if reverse {
		dims = reverseDims(dims)
		target = reverseInts(newShape)
	}
	out := reshapeDims(shapes.Shape{DType: x.DType, Dimensions: dims}, target)
	if reverse {
		out = reverseDims(out)
	}
	return shapes.MakeDims(x.DType, out...)
}

func reshapeDims(x shapes.Shape, newShape []int) []shapes.Dim {
	inferAt := -1
	known := 1
	for ii, dim := range newShape {
		switch {
		case dim > 0:
			known *= dim
		case dim == -1:
			if inferAt >= 0 {
				Panicf("reshape(%s, %v): at most one -1 dimension allowed", x, newShape)
			}
			inferAt = ii
		default:
			Panicf("reshape(%s, %v): dimensions must be positive or -1", x, newShape)
		}
	}
	out := make([]shapes.Dim, len(newShape))
	for ii, dim := range newShape {
		if dim > 0 {
			out[ii] = shapes.D(dim)
		}
	}
	if !x.IsFullyStatic() {
		// The total size is unknown, so an inferred dimension stays symbolic.
		if inferAt >= 0 {
			out[inferAt] = shapes.Sym("?")
		}
		return out
	}
	size := x.Size()
	if inferAt >= 0 {
		if known == 0 || size%known != 0 {
			Panicf("reshape(%s, %v): cannot infer dimension, %d not divisible by %d", x, newShape, size, known)
		}
		out[inferAt] = shapes.D(size / known)
	} else if known != size {
		Panicf("reshape(%s, %v): new shape has %d elements, input has %d", x, newShape, known, size)
	}
	return out
}

func reverseDims(dims []shapes.Dim) []shapes.Dim {
	out := slices.Clone(dims)
	slices.Reverse(out)
	return out
}

func reverseInts(values []int) []int {
	out := slices.Clone(values)
	slices.Reverse(out)
	return out
}

// Transpose returns a transpose of x by the given axes permutation. Axes may be
// negative, counting from the end. No axes means "reverse all axes".
func Transpose(x Expr, axes ...int) *Call {
	var attrs *TransposeAttrs
	if len(axes) == 0 {
		attrs = &TransposeAttrs{}
	} else {
		attrs = &TransposeAttrs{Axes: slices.Clone(axes)}
	}
	perm := normalizeTransposeAxes(attrs.Axes, x.Shape().Rank())
	dims := make([]shapes.Dim, len(perm))
	for ii, axis := range perm {
		dims[ii] = x.Shape().Dimensions[axis]
	}
	return &Call{
		op:    OpTranspose,
		args:  []Expr{x},
		attrs: attrs,
		shape: shapes.MakeDims(x.Shape().DType, dims...),
	}
}

// normalizeTransposeAxes resolves negative axes and validates that axes is a
// permutation of 0..rank-1. A nil axes means "reverse".
func normalizeTransposeAxes(axes []int, rank int) []int {
	if axes == nil {
		perm := make([]int, rank)
		for ii := range perm {
			perm[ii] = rank - 1 - ii
		}
		return perm
	}
	if len(axes) != rank {
		Panicf("transpose: axes %v does not match rank %d", axes, rank)
	}
	perm := make([]int, rank)
	seen := make([]bool, rank)
	for ii, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank || seen[axis] {
			Panicf("transpose: axes %v is not a permutation of 0..%d", axes, rank-1)
		}
		seen[axis] = true
		perm[ii] = axis
	}
	return perm
}

// LayoutTransform returns a layout transform of x from srcLayout to dstLayout,
// e.g. "NCHW" to "NCHW4c" packs the channel axis in groups of 4, adding a
// trailing axis. srcLayout must describe x (same rank).
func LayoutTransform(x Expr, srcLayout, dstLayout string) *Call {
	src := MakeLayout(srcLayout)
	dst := MakeLayout(dstLayout)
	return &Call{
		op:    OpLayoutTransform,
		args:  []Expr{x},
		attrs: &LayoutTransformAttrs{SrcLayout: srcLayout, DstLayout: dstLayout},
		shape: layoutTransformShape(x.Shape(), src, dst),
	}
}

func layoutTransformShape(x shapes.Shape, src, dst Layout) shapes.Shape {
	if src.Rank() != x.Rank() {
		Panicf("layout_transform: source layout %s does not match input rank %d (shape=%s)",
			src, x.Rank(), x)
	}
	// Total extent of each primal axis under the source layout.
	extents := make(map[byte]shapes.Dim, src.Rank())
	for ii, axis := range src.Axes() {
		dim := x.Dimensions[ii]
		if axis.IsSubAxis() && dim.IsStatic() && dim.Size() != axis.Factor {
			Panicf("layout_transform: axis %s of %s expects dimension %d, input has %s",
				axis, src, axis.Factor, dim)
		}
		primal := axis.Primal()
		if total, found := extents[primal]; found {
			if !total.IsStatic() || !dim.IsStatic() {
				Panicf("layout_transform: split axis %q of %s requires static dimensions (shape=%s)",
					string(primal), src, x)
			}
			extents[primal] = shapes.D(total.Size() * dim.Size())
		} else {
			extents[primal] = dim
		}
	}
	// Split factors requested by the destination layout, per primal axis.
	factors := make(map[byte]int, dst.Rank())
	for _, axis := range dst.Axes() {
		if axis.IsSubAxis() {
			factors[axis.Primal()] *= axis.Factor
			if factors[axis.Primal()] == 0 {
				factors[axis.Primal()] = axis.Factor
			}
		}
	}
	dims := make([]shapes.Dim, dst.Rank())
	for ii, axis := range dst.Axes() {
		if axis.IsSubAxis() {
			dims[ii] = shapes.D(axis.Factor)
			continue
		}
		total, found := extents[axis.Name]
		if !found {
			Panicf("layout_transform: axis %q of %s not present in source layout %s",
				string(axis.Name), dst, src)
		}
		factor := factors[axis.Name]
		if factor == 0 {
			dims[ii] = total
			continue
		}
		if !total.IsStatic() {
			Panicf("layout_transform: cannot split symbolic dimension %s of axis %q by %d",
				total, string(axis.Name), factor)
		}
		if total.Size()%factor != 0 {
			Panicf("layout_transform: axis %q dimension %d not divisible by split factor %d",
				string(axis.Name), total.Size(), factor)
		}
		dims[ii] = shapes.D(total.Size() / factor)
	}
	return shapes.MakeDims(x.DType, dims...)
}

// Full returns a tensor of the given shape filled with the scalar constant fill.
func Full(fill Expr, shape shapes.Shape) *Call {
	if !fill.Shape().IsScalar() {
		Panicf("full: fill value must be a scalar, got %s", fill.Shape())
	}
	if fill.Shape().DType != shape.DType {
		Panicf("full: fill value dtype %s does not match target dtype %s",
			fill.Shape().DType, shape.DType)
	}
	return &Call{
		op:    OpFull,
		args:  []Expr{fill},
		attrs: &FullAttrs{Shape: shape},
		shape: shape,
	}
}

// FullLike returns a tensor with data's shape, filled with the scalar constant fill.
func FullLike(data, fill Expr) *Call {
	if !fill.Shape().IsScalar() {
		Panicf("full_like: fill value must be a scalar, got %s", fill.Shape())
	}
	if fill.Shape().DType != data.Shape().DType {
		Panicf("full_like: fill value dtype %s does not match data dtype %s",
			fill.Shape().DType, data.Shape().DType)
	}
	return &Call{op: OpFullLike, args: []Expr{data, fill}, shape: data.Shape()}
}

// Ones returns a tensor of the given shape filled with ones.
func Ones(shape shapes.Shape) *Call {
	return &Call{op: OpOnes, attrs: &FullAttrs{Shape: shape}, shape: shape}
}

// OnesLike returns a tensor with data's shape, filled with ones.
func OnesLike(data Expr) *Call {
	return &Call{op: OpOnesLike, args: []Expr{data}, shape: data.Shape()}
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape shapes.Shape) *Call {
	return &Call{op: OpZeros, attrs: &FullAttrs{Shape: shape}, shape: shape}
}

// ZerosLike returns a tensor with data's shape, filled with zeros.
func ZerosLike(data Expr) *Call {
	return &Call{op: OpZerosLike, args: []Expr{data}, shape: data.Shape()}
}

// Add returns the broadcasting elementwise sum of a and b.
func Add(a, b Expr) *Call { return binaryOp(OpAdd, a, b) }

// Sub returns the broadcasting elementwise difference of a and b.
func Sub(a, b Expr) *Call { return binaryOp(OpSub, a, b) }

// Mul returns the broadcasting elementwise product of a and b.
func Mul(a, b Expr) *Call { return binaryOp(OpMul, a, b) }

// Div returns the broadcasting elementwise quotient of a and b.
func Div(a, b Expr) *Call { return binaryOp(OpDiv, a, b) }

// Maximum returns the broadcasting elementwise maximum of a and b.
func Maximum(a, b Expr) *Call { return binaryOp(OpMaximum, a, b) }

// Minimum returns the broadcasting elementwise minimum of a and b.
func Minimum(a, b Expr) *Call { return binaryOp(OpMinimum, a, b) }

func binaryOp(op OpType, a, b Expr) *Call {
	return &Call{
		op:    op,
		args:  []Expr{a, b},
		shape: broadcastShapes(op, a.Shape(), b.Shape()),
	}
}

// broadcastShapes applies the standard right-aligned broadcasting rules. A
// symbolic dimension broadcast against anything other than a static 1 stays
// symbolic: equality can only be assumed, not proven, at compile time.
func broadcastShapes(op OpType, a, b shapes.Shape) shapes.Shape {
	if a.DType != b.DType {
		Panicf("%s: operands have different dtypes: %s vs %s", op, a, b)
	}
	rank := max(a.Rank(), b.Rank())
	dims := make([]shapes.Dim, rank)
	for ii := 0; ii < rank; ii++ {
		// Align the operands on their trailing axes.
		da, db := shapes.D(1), shapes.D(1)
		if off := ii - rank; off >= -a.Rank() {
			da = xslices.At(a.Dimensions, off)
		}
		if off := ii - rank; off >= -b.Rank() {
			db = xslices.At(b.Dimensions, off)
		}
		dims[ii] = broadcastDim(op, a, b, da, db)
	}
	return shapes.MakeDims(a.DType, dims...)
}

func broadcastDim(op OpType, a, b shapes.Shape, da, db shapes.Dim) shapes.Dim {
	switch {
	case da.Equal(db):
		return da
	case da.IsStatic() && da.Size() == 1:
		return db
	case db.IsStatic() && db.Size() == 1:
		return da
	case !da.IsStatic():
		return da
	case !db.IsStatic():
		return db
	}
	Panicf("%s: cannot broadcast shapes %s and %s", op, a, b)
	return shapes.Dim{}
}
