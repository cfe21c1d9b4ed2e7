// Package buffers describes memory buffers backing tensors and computes the
// scalar (or vector) offset expression for a multi-dimensional access, the last
// lowering step before indices become memory addresses.
//
// Offsets are built with the arith package and run through arith.MergeMulMod
// after each accumulation step, so the expressions stay small even for deeply
// split indices.
package buffers

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/tensorir/tensorir/arith"
)

// DataType is an element dtype together with its vector lane count: Lanes > 1
// means each logical element is a vector of Lanes units of DType.
type DataType struct {
	DType dtypes.DType
	Lanes int
}

// Make returns a scalar (single lane) DataType.
func Make(dtype dtypes.DType) DataType {
	return DataType{DType: dtype, Lanes: 1}
}

// MakeVector returns a DataType with the given lane count.
func MakeVector(dtype dtypes.DType, lanes int) DataType {
	if lanes < 1 {
		Panicf("buffers.MakeVector(%s, %d): lanes must be >= 1", dtype, lanes)
	}
	return DataType{DType: dtype, Lanes: lanes}
}

// Buffer describes a memory region backing a tensor: its shape, optional
// strides (absent strides mean a compact row-major layout), the offset of its
// first element into the underlying allocation and the element dtype.
//
// Invariant: an index tuple used to access the buffer has exactly Rank()
// entries -- except for a rank-0 buffer, which accepts a single literal-zero
// index.
type Buffer struct {
	Name       string
	Shape      []arith.Expr
	Strides    []arith.Expr
	ElemOffset arith.Expr
	DType      DataType
}

// Rank returns the number of axes of the buffer.
func (b *Buffer) Rank() int { return len(b.Shape) }

func (b *Buffer) baseOffset() arith.Expr {
	if b.ElemOffset == nil {
		return arith.Imm(0)
	}
	return b.ElemOffset
}

// ElemOffset computes the offset of index in the buffer, in elements of the
// buffer's dtype, ignoring lanes. The result is simplified after each
// accumulation step to prevent expression growth.
//
// A mismatch between the index arity and the buffer's shape (or strides) is a
// malformed-IR invariant violation and panics.
func ElemOffset(b *Buffer, index []arith.Expr) arith.Expr {
	base := b.baseOffset()
	if len(b.Strides) == 0 {
		if b.Rank() == 0 && len(index) == 1 {
			// A rank-0 buffer accepts exactly one literal-zero index.
			imm, ok := index[0].(*arith.IntImm)
			if !ok || imm.Value != 0 {
				Panicf("ElemOffset(%s): rank-0 buffer requires the literal index 0, got %s",
					b.Name, index[0])
			}
			return arith.NewAdd(base, index[0])
		}
		if len(index) != b.Rank() {
			Panicf("ElemOffset(%s): buffer has rank %d, got %d indices", b.Name, b.Rank(), len(index))
		}
		if len(index) == 0 {
			return base
		}
		offset := index[0]
		for ii := 1; ii < len(index); ii++ {
			offset = arith.MergeMulMod(arith.NewAdd(arith.NewMul(offset, b.Shape[ii]), index[ii]))
		}
		return arith.NewAdd(base, offset)
	}

	if len(index) != len(b.Strides) {
		Panicf("ElemOffset(%s): buffer has %d strides, got %d indices",
			b.Name, len(b.Strides), len(index))
	}
	if arith.IsZero(base) {
		base = arith.MergeMulMod(arith.NewMul(index[0], b.Strides[0]))
	} else {
		base = arith.MergeMulMod(arith.NewAdd(base, arith.NewMul(index[0], b.Strides[0])))
	}
	for ii := 1; ii < len(index); ii++ {
		base = arith.MergeMulMod(arith.NewAdd(base, arith.NewMul(index[ii], b.Strides[ii])))
	}
	return base
}

// Offset computes the offset of index for an access of the given dtype,
// scaling by the buffer's lane count. For a multi-lane access dtype the result
// is a unit-stride Ramp vector expression instead of a scalar.
func Offset(b *Buffer, index []arith.Expr, dtype DataType) arith.Expr {
	offset := ElemOffset(b, index)
	if b.DType.Lanes != 1 {
		offset = arith.NewMul(offset, arith.Imm(int64(dtype.Lanes)))
	}
	if dtype.Lanes != 1 {
		return arith.NewRamp(offset, arith.Imm(1), dtype.Lanes)
	}
	return offset
}
