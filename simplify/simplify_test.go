package simplify_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tensorir/tensorir/ir"
	"github.com/tensorir/tensorir/simplify"
	"github.com/tensorir/tensorir/types/shapes"
)

func requireCall(t *testing.T, e ir.Expr, op ir.OpType) *ir.Call {
	t.Helper()
	call, ok := e.(*ir.Call)
	require.True(t, ok, "expected a %s call, got %s", op, e)
	require.Equal(t, op, call.Op())
	return call
}

func TestReshapeMerge(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3, 4))
	e := ir.Reshape(ir.Reshape(x, 6, 4), 24)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpReshape)
	assert.Same(t, x, call.Arg(0))
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestReshapeMergeChainOfThree(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3, 4))
	e := ir.Reshape(ir.Reshape(ir.Reshape(x, 6, 4), 4, 6), 24)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpReshape)
	assert.Same(t, x, call.Arg(0))
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestReshapeMergeWithReverseReshape(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3, 4))
	e := ir.Reshape(ir.ReverseReshape(x, -1, 4), 24)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpReshape)
	assert.Same(t, x, call.Arg(0))
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestReshapeMergeDeclinesSymbolicShape(t *testing.T) {
	x := ir.NewVar("x", shapes.MakeDims(dtypes.Float32, shapes.Sym("n"), shapes.D(4)))
	e := ir.Reshape(ir.Reshape(x, -1, 2), -1)

	got := simplify.Expr(e)
	// The outer shape is symbolic: both reshapes stay.
	outer := requireCall(t, got, ir.OpReshape)
	requireCall(t, outer.Arg(0), ir.OpReshape)
}

func TestTransposeCancellation(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3))
	e := ir.Transpose(ir.Transpose(x, 1, 0), 1, 0)
	assert.Same(t, x, simplify.Expr(e))

	// A reversing transpose is its own inverse.
	e = ir.Transpose(ir.Transpose(x))
	assert.Same(t, x, simplify.Expr(e))
}

func TestTransposeComposition(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3, 4))
	e := ir.Transpose(ir.Transpose(x, 1, 0, 2), 2, 0, 1)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpTranspose)
	assert.Same(t, x, call.Arg(0))
	attrs := call.Attrs().(*ir.TransposeAttrs)
	assert.Empty(t, cmp.Diff([]int{2, 1, 0}, attrs.Axes))
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestTransposeThroughLayoutTransform(t *testing.T) {
	// Pure axis permutations expressed as layout transforms compose with
	// transposes too.
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 32, 56, 56))
	e := ir.Transpose(ir.LayoutTransform(x, "NCHW", "NHWC"), 0, 3, 1, 2)
	assert.Same(t, x, simplify.Expr(e))
}

func TestRankExpandingLayoutTransformFold(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 56, 56, 32))
	e := ir.LayoutTransform(ir.Transpose(x, 0, 3, 1, 2), "NCHW", "NCHW4c")

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpLayoutTransform)
	assert.Same(t, x, call.Arg(0))
	attrs := call.Attrs().(*ir.LayoutTransformAttrs)
	assert.Equal(t, "NHWC", attrs.SrcLayout)
	assert.Equal(t, "NCHW4c", attrs.DstLayout)
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestRankReducingLayoutTransformFold(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 8, 56, 56, 4))
	e := ir.Transpose(ir.LayoutTransform(x, "NCHW4c", "NCHW"), 0, 2, 3, 1)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpLayoutTransform)
	assert.Same(t, x, call.Arg(0))
	attrs := call.Attrs().(*ir.LayoutTransformAttrs)
	assert.Equal(t, "NCHW4c", attrs.SrcLayout)
	assert.Equal(t, "NHWC", attrs.DstLayout)
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestLayoutTransformRoundTripElides(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 32, 56, 56))
	e := ir.LayoutTransform(ir.LayoutTransform(x, "NCHW", "NCHW4c"), "NCHW4c", "NCHW")
	assert.Same(t, x, simplify.Expr(e))
}

func TestMismatchedIntermediateLayoutAborts(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 56, 56, 32))
	inner := ir.LayoutTransform(x, "NHWC", "NCHW4c")
	e := ir.LayoutTransform(inner, "NDHW4d", "NDHW")

	require.Panics(t, func() { simplify.Expr(e) })

	got, err := simplify.ExprOrError(e)
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestFullElementwiseFold(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 4, 4)
	x := ir.NewVar("x", s)

	// add(x, full(5)) => add(x, 5)
	e := ir.Add(x, ir.Full(ir.MakeConstantScalar(dtypes.Float32, 5), s))
	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpAdd)
	assert.Same(t, x, call.Arg(0))
	c, ok := call.Arg(1).(*ir.Const)
	require.True(t, ok)
	assert.Equal(t, float32(5), c.ScalarValue())
	assert.True(t, e.Shape().Equal(got.Shape()))

	// Argument order is preserved when the fill is on the left.
	e = ir.Div(ir.Ones(s), x)
	got = simplify.Expr(e)
	call = requireCall(t, got, ir.OpDiv)
	c, ok = call.Arg(0).(*ir.Const)
	require.True(t, ok)
	assert.Equal(t, float32(1), c.ScalarValue())
	assert.Same(t, x, call.Arg(1))

	// The *_like variants fold the same way.
	e = ir.Maximum(x, ir.FullLike(x, ir.MakeConstantScalar(dtypes.Float32, 7)))
	got = simplify.Expr(e)
	call = requireCall(t, got, ir.OpMaximum)
	c, ok = call.Arg(1).(*ir.Const)
	require.True(t, ok)
	assert.Equal(t, float32(7), c.ScalarValue())
}

func TestIdentityElimination(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 4, 4)
	x := ir.NewVar("x", s)

	// The folded identity constant elides the whole call.
	assert.Same(t, x, simplify.Expr(ir.Add(ir.ZerosLike(x), x)))
	assert.Same(t, x, simplify.Expr(ir.Add(x, ir.Zeros(s))))
	assert.Same(t, x, simplify.Expr(ir.Sub(x, ir.ZerosLike(x))))
	assert.Same(t, x, simplify.Expr(ir.Mul(x, ir.OnesLike(x))))
	assert.Same(t, x, simplify.Expr(ir.Div(x, ir.Ones(s))))

	// Non-commutative ops keep a left identity operand.
	got := simplify.Expr(ir.Sub(ir.ZerosLike(x), x))
	requireCall(t, got, ir.OpSub)
	got = simplify.Expr(ir.Div(ir.OnesLike(x), x))
	requireCall(t, got, ir.OpDiv)

	// Maximum has no scalar identity here.
	got = simplify.Expr(ir.Maximum(x, ir.ZerosLike(x)))
	requireCall(t, got, ir.OpMaximum)
}

func TestFullElementwiseFoldDeclinesRealBroadcast(t *testing.T) {
	// x is (1, 4) and the filled operand (4, 4): replacing it by a scalar
	// would change the output shape, so the fold must not fire.
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 1, 4))
	e := ir.Add(x, ir.Ones(shapes.Make(dtypes.Float32, 4, 4)))

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpAdd)
	requireCall(t, call.Arg(1), ir.OpOnes)
	assert.True(t, e.Shape().Equal(got.Shape()))
}

func TestSharedSubtreesStayShared(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2, 3, 4))
	y := ir.Reshape(ir.Reshape(x, 6, 4), 4, 6)
	e := ir.Mul(y, y)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpMul)
	assert.Same(t, call.Arg(0), call.Arg(1))
}

func TestNonCallPassthrough(t *testing.T) {
	x := ir.NewVar("x", shapes.Make(dtypes.Float32, 2))
	assert.Same(t, x, simplify.Expr(x))
	c := ir.MakeConstantScalar(dtypes.Float32, 1)
	assert.Same(t, c, simplify.Expr(c))
}

func TestIdempotence(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 2, 3, 4)
	x := ir.NewVar("x", s)
	e := ir.Add(
		ir.Reshape(ir.Transpose(ir.Transpose(x, 1, 0, 2), 2, 0, 1), 6, 4, 1),
		ir.OnesLike(ir.Reshape(x, 6, 4, 1)))

	once := simplify.Expr(e)
	twice := simplify.Expr(once)
	assert.True(t, ir.Equal(once, twice), "got %s then %s", once, twice)
	assert.True(t, e.Shape().Equal(once.Shape()))
}

func TestFullElementwiseFoldKeepsDistinctOperands(t *testing.T) {
	// full_like's data operand must never leak into the rewritten call in
	// place of the real second operand.
	s := shapes.Make(dtypes.Float32, 4, 4)
	y := ir.NewVar("y", s)
	z := ir.NewVar("z", s)
	e := ir.Add(ir.FullLike(y, ir.MakeConstantScalar(dtypes.Float32, 5)), z)

	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpAdd)
	c, ok := call.Arg(0).(*ir.Const)
	require.True(t, ok)
	assert.Equal(t, float32(5), c.ScalarValue())
	assert.Same(t, z, call.Arg(1))
}

func TestIntegerDtypeSimplification(t *testing.T) {
	s := shapes.Make(dtypes.Int32, 4, 4)
	x := ir.NewVar("x", s)

	assert.Same(t, x, simplify.Expr(ir.Add(x, ir.Zeros(s))))
	assert.Same(t, x, simplify.Expr(ir.Mul(x, ir.OnesLike(x))))

	e := ir.Sub(x, ir.Full(ir.MakeConstantScalar(dtypes.Int32, 3), s))
	got := simplify.Expr(e)
	call := requireCall(t, got, ir.OpSub)
	c, ok := call.Arg(1).(*ir.Const)
	require.True(t, ok)
	assert.Equal(t, int32(3), c.ScalarValue())
}

func TestBFloat16Simplification(t *testing.T) {
	s := shapes.Make(dtypes.BFloat16, 4, 4)
	x := ir.NewVar("x", s)
	y := ir.NewVar("y", s)

	// A plain elementwise call on bfloat16 passes through untouched.
	got := simplify.Expr(ir.Add(x, y))
	call := requireCall(t, got, ir.OpAdd)
	assert.Same(t, x, call.Arg(0))
	assert.Same(t, y, call.Arg(1))

	// And identity elimination still applies.
	assert.Same(t, x, simplify.Expr(ir.Add(ir.ZerosLike(x), x)))
}

func TestUnsupportedConstantDtypeDeclines(t *testing.T) {
	// There is no scalar constant representation for complex dtypes, so the
	// rules must leave the expression alone rather than error out.
	x := ir.NewVar("x", shapes.Make(dtypes.Complex64, 4, 4))

	got, err := simplify.ExprOrError(ir.Add(ir.ZerosLike(x), x))
	require.NoError(t, err)
	call := requireCall(t, got, ir.OpAdd)
	requireCall(t, call.Arg(0), ir.OpZerosLike)
	assert.Same(t, x, call.Arg(1))
}
