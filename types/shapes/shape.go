/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package shapes defines Shape, Dim and associated tools.
//
// Shape represents the checked type of an expression in the dataflow IR: its DType
// plus an ordered list of dimensions. Each dimension (Dim) is either a compile-time
// integer or a named symbolic value only resolved at runtime -- symbolic dimensions
// show up when the surrounding program is shape-polymorphic.
//
// Shapes are attached to IR nodes at construction time by the builders in the ir
// package and are read-only afterwards: the simplification passes query them but
// never modify them.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. We refer to a dimension index as "axis"
//     (plural axes), and its size as its dimension.
//   - DType: the data type of the unit element in a tensor. Enumeration defined
//     in github.com/gomlx/gopjrt/dtypes.
//   - Scalar: a shape with no axes (rank 0), a single value of the associated DType.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gopjrt/dtypes"
	"slices"
)

// Dim is one dimension of a Shape: either a compile-time integer size or a named
// symbolic size. The zero value is an invalid dimension.
type Dim struct {
	size int
	name string
}

// D returns a static (compile-time integer) dimension.
func D(size int) Dim {
	return Dim{size: size}
}

// Sym returns a symbolic dimension with the given name.
func Sym(name string) Dim {
	if name == "" {
		exceptions.Panicf("shapes.Sym() requires a non-empty name")
	}
	return Dim{name: name}
}

// IsStatic returns whether the dimension is a compile-time integer.
func (d Dim) IsStatic() bool { return d.name == "" }

// Size returns the static size of the dimension. It panics for symbolic dimensions.
func (d Dim) Size() int {
	if !d.IsStatic() {
		exceptions.Panicf("Dim.Size() called on symbolic dimension %q", d.name)
	}
	return d.size
}

// Name returns the symbol name of the dimension, or "" if it is static.
func (d Dim) Name() string { return d.name }

// Equal compares two dimensions: static dimensions by size, symbolic ones by name.
func (d Dim) Equal(d2 Dim) bool { return d == d2 }

// String implements fmt.Stringer.
func (d Dim) String() string {
	if d.IsStatic() {
		return fmt.Sprintf("%d", d.size)
	}
	return d.name
}

// Shape represents the checked type of an expression: DType plus ordered dimensions.
//
// Use Make (static dimensions) or MakeDims (mixed static/symbolic) to create one.
type Shape struct {
	DType      DType
	Dimensions []Dim
}

// Make returns a Shape with the given static dimensions.
func Make(dtype DType, dimensions ...int) Shape {
	dims := make([]Dim, len(dimensions))
	for ii, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s, %v): cannot create a shape with an axis with dimension <= 0",
				dtype, dimensions)
		}
		dims[ii] = D(dim)
	}
	return Shape{DType: dtype, Dimensions: dims}
}

// MakeDims returns a Shape with the given dimensions, which may mix static and
// symbolic values.
func MakeDims(dtype DType, dimensions ...Dim) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range s.Dimensions {
		if dim.IsStatic() && dim.size <= 0 {
			exceptions.Panicf("shapes.MakeDims(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// Scalar returns a rank-0 Shape for the given DType.
func Scalar(dtype DType) Shape {
	return Shape{DType: dtype}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsFullyStatic returns whether every dimension is a compile-time integer.
func (s Shape) IsFullyStatic() bool {
	for _, dim := range s.Dimensions {
		if !dim.IsStatic() {
			return false
		}
	}
	return true
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
func (s Shape) Dim(axis int) Dim {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// StaticDimensions returns all dimensions as ints. It must only be called when
// IsFullyStatic() -- a symbolic dimension panics.
func (s Shape) StaticDimensions() []int {
	dims := make([]int, s.Rank())
	for ii, dim := range s.Dimensions {
		dims[ii] = dim.Size()
	}
	return dims
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		parts = append(parts, dim.String())
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of DType needed for this shape, the product
// of all dimensions. It panics if any dimension is symbolic.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d.Size()
	}
	return
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	if s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares two shapes for equality of dimensions. DTypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// HasShape is an interface for objects that have an associated Shape: IR
// expressions, tensors, and Shape itself.
type HasShape interface {
	Shape() Shape
}
