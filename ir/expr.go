// Package ir defines the dataflow intermediate representation consumed by the
// simplification pass: immutable expression trees of operator calls, variables
// and constants, each annotated at construction time with its checked type
// (a shapes.Shape).
//
// Expressions are shared-by-pointer immutable values: a subtree may be
// referenced by multiple parents and is never deep-copied. Rewrites build fresh
// nodes around existing subtrees; nothing is mutated in place, so expression
// trees can be shared freely across goroutines once built.
package ir

import (
	"fmt"
	"strings"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/tensorir/tensorir/pkg/support/xslices"
	"github.com/tensorir/tensorir/types/shapes"
	"github.com/x448/float16"
	"slices"
)

// Expr is an immutable node of the dataflow IR. The closed set of
// implementations is *Var, *Const and *Call.
type Expr interface {
	shapes.HasShape
	fmt.Stringer
}

// Var is a named input of the program (a function parameter or intermediate
// value produced outside the scope of the simplifier), with its declared shape.
type Var struct {
	name  string
	shape shapes.Shape
}

// NewVar returns a variable with the given name and checked type.
func NewVar(name string, shape shapes.Shape) *Var {
	return &Var{name: name, shape: shape}
}

// Name returns the variable name.
func (v *Var) Name() string { return v.name }

// Shape returns the checked type of the variable.
func (v *Var) Shape() shapes.Shape { return v.shape }

// String implements fmt.Stringer.
func (v *Var) String() string { return v.name }

// Const is a constant tensor. The simplifier only ever builds scalar constants
// (from folding fill operators), but the value may in general be any tensor.
type Const struct {
	shape shapes.Shape
	value any
}

// ScalarValue returns the Go value of a scalar constant, with the concrete type
// matching the DType (e.g. float32 for Float32, float16.Float16 for Float16).
func (c *Const) ScalarValue() any { return c.value }

// IsScalar returns whether the constant is rank-0.
func (c *Const) IsScalar() bool { return c.shape.IsScalar() }

// Shape returns the checked type of the constant.
func (c *Const) Shape() shapes.Shape { return c.shape }

// String implements fmt.Stringer.
func (c *Const) String() string { return fmt.Sprintf("const(%v)", c.value) }

// SupportsConstantScalar returns whether MakeConstantScalar can build a
// constant of the given dtype. Rewrite rules that synthesize scalar constants
// check this and decline on unsupported dtypes.
func SupportsConstantScalar(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float64, dtypes.Float32, dtypes.Float16, dtypes.BFloat16,
		dtypes.Int64, dtypes.Int32, dtypes.Int16, dtypes.Int8,
		dtypes.Uint64, dtypes.Uint32, dtypes.Uint16, dtypes.Uint8,
		dtypes.Bool:
		return true
	}
	return false
}

// MakeConstantScalar returns a rank-0 constant of the given dtype. The value is
// converted from float64, which may lose precision for very large integers.
// It panics on dtypes without a Go scalar representation here; see
// SupportsConstantScalar.
func MakeConstantScalar(dtype dtypes.DType, value float64) *Const {
	c := &Const{shape: shapes.Scalar(dtype)}
	switch dtype {
	case dtypes.Float64:
		c.value = value
	case dtypes.Float32:
		c.value = float32(value)
	case dtypes.Float16:
		c.value = float16.Fromfloat32(float32(value))
	case dtypes.BFloat16:
		c.value = bfloat16.FromFloat32(float32(value))
	case dtypes.Int64:
		c.value = int64(value)
	case dtypes.Int32:
		c.value = int32(value)
	case dtypes.Int16:
		c.value = int16(value)
	case dtypes.Int8:
		c.value = int8(value)
	case dtypes.Uint64:
		c.value = uint64(value)
	case dtypes.Uint32:
		c.value = uint32(value)
	case dtypes.Uint16:
		c.value = uint16(value)
	case dtypes.Uint8:
		c.value = uint8(value)
	case dtypes.Bool:
		c.value = value != 0
	default:
		Panicf("MakeConstantScalar(): unsupported dtype %s", dtype)
	}
	return c
}

// Attributes is the per-operator attribute payload attached to a Call. Each
// operator kind has its own struct; operators without attributes carry nil.
type Attributes interface {
	attributes()
}

// ReshapeAttrs is the payload of OpReshape and OpReverseReshape. NewShape
// entries are positive sizes, with at most one -1 meaning "inferred".
type ReshapeAttrs struct {
	NewShape []int
}

// TransposeAttrs is the payload of OpTranspose. A nil Axes means "reverse all
// axes"; entries may be negative, counting from the end.
type TransposeAttrs struct {
	Axes []int
}

// LayoutTransformAttrs is the payload of OpLayoutTransform.
type LayoutTransformAttrs struct {
	SrcLayout string
	DstLayout string
}

// FullAttrs is the payload of the fill operators that take an explicit target
// shape (OpFull, OpOnes, OpZeros).
type FullAttrs struct {
	Shape shapes.Shape
}

func (*ReshapeAttrs) attributes()         {}
func (*TransposeAttrs) attributes()       {}
func (*LayoutTransformAttrs) attributes() {}
func (*FullAttrs) attributes()            {}

// Call is an operator application: an operator identity, an ordered argument
// list and the operator's attribute payload.
type Call struct {
	op    OpType
	args  []Expr
	attrs Attributes
	shape shapes.Shape
}

// Op returns the operator identity.
func (c *Call) Op() OpType { return c.op }

// Args returns the ordered arguments. The returned slice must not be modified.
func (c *Call) Args() []Expr { return c.args }

// Arg returns the ii-th argument.
func (c *Call) Arg(ii int) Expr { return c.args[ii] }

// Attrs returns the operator's attribute payload, or nil.
func (c *Call) Attrs() Attributes { return c.attrs }

// Shape returns the checked type of the call.
func (c *Call) Shape() shapes.Shape { return c.shape }

// WithArgs returns a new Call with the same operator, attributes and checked
// type, but the given arguments. It is the rebuild primitive used by the
// rewrite driver: replacing an argument by a simplified equivalent preserves
// the checked type by construction.
func (c *Call) WithArgs(args ...Expr) *Call {
	if len(args) != len(c.args) {
		Panicf("Call.WithArgs(): %s takes %d arguments, got %d", c.op, len(c.args), len(args))
	}
	return &Call{op: c.op, args: slices.Clone(args), attrs: c.attrs, shape: c.shape}
}

// String implements fmt.Stringer.
func (c *Call) String() string {
	parts := xslices.Map(c.args, func(e Expr) string { return e.String() })
	return fmt.Sprintf("%s(%s)", c.op, strings.Join(parts, ", "))
}

// Equal reports structural equality of two expressions: same node kinds,
// operators, attributes and recursively equal arguments. Variables compare by
// name and shape, constants by value.
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	switch a := a.(type) {
	case *Var:
		b, ok := b.(*Var)
		return ok && a.name == b.name && a.shape.Equal(b.shape)
	case *Const:
		b, ok := b.(*Const)
		return ok && a.shape.Equal(b.shape) && a.value == b.value
	case *Call:
		b, ok := b.(*Call)
		if !ok || a.op != b.op || len(a.args) != len(b.args) {
			return false
		}
		if !attrsEqual(a.attrs, b.attrs) {
			return false
		}
		for ii, arg := range a.args {
			if !Equal(arg, b.args[ii]) {
				return false
			}
		}
		return true
	}
	return false
}

func attrsEqual(a, b Attributes) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a := a.(type) {
	case *ReshapeAttrs:
		b, ok := b.(*ReshapeAttrs)
		return ok && slices.Equal(a.NewShape, b.NewShape)
	case *TransposeAttrs:
		b, ok := b.(*TransposeAttrs)
		return ok && slices.Equal(a.Axes, b.Axes)
	case *LayoutTransformAttrs:
		b, ok := b.(*LayoutTransformAttrs)
		return ok && *a == *b
	case *FullAttrs:
		b, ok := b.(*FullAttrs)
		return ok && a.Shape.Equal(b.Shape)
	}
	return false
}
