package ir

import "github.com/tensorir/tensorir/types"

// OpType is an enum of the tensor operators understood by the simplification
// pass. It is a closed set: the rewrite rules match on these values directly,
// there is no runtime operator registry.
type OpType int

const (
	OpInvalid OpType = iota

	// Shape-changing operators.
	OpReshape
	OpReverseReshape
	OpTranspose
	OpLayoutTransform

	// Fill operators.
	OpFull
	OpFullLike
	OpOnes
	OpOnesLike
	OpZeros
	OpZerosLike

	// Broadcasting binary elementwise operators.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMaximum
	OpMinimum
)

var opTypeNames = [...]string{
	OpInvalid:         "invalid",
	OpReshape:         "reshape",
	OpReverseReshape:  "reverse_reshape",
	OpTranspose:       "transpose",
	OpLayoutTransform: "layout_transform",
	OpFull:            "full",
	OpFullLike:        "full_like",
	OpOnes:            "ones",
	OpOnesLike:        "ones_like",
	OpZeros:           "zeros",
	OpZerosLike:       "zeros_like",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpDiv:             "div",
	OpMaximum:         "maximum",
	OpMinimum:         "minimum",
}

// String implements fmt.Stringer, returning the canonical operator name.
func (op OpType) String() string {
	if op < 0 || int(op) >= len(opTypeNames) {
		return "invalid"
	}
	return opTypeNames[op]
}

var (
	// BroadcastOps are the binary elementwise operators that follow the standard
	// broadcasting rules. The Full-Elementwise-Fold rule only fires on these.
	BroadcastOps = types.SetWith(
		OpAdd,
		OpSub,
		OpMul,
		OpDiv,
		OpMaximum,
		OpMinimum,
	)

	// FillOps are the operators that produce a tensor filled with a single
	// scalar value.
	FillOps = types.SetWith(
		OpFull,
		OpFullLike,
		OpOnes,
		OpOnesLike,
		OpZeros,
		OpZerosLike,
	)
)

// IsBroadcast returns whether the operator is a broadcasting binary elementwise op.
func (op OpType) IsBroadcast() bool { return BroadcastOps.Has(op) }

// IsFill returns whether the operator produces a tensor filled with one scalar.
func (op OpType) IsFill() bool { return FillOps.Has(op) }
