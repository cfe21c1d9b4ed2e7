// Package arith implements the scalar index arithmetic used to linearize
// multi-dimensional tensor accesses into memory offsets: an immutable
// expression tree over addition, multiplication, floor-division and
// floor-modulo of integer symbols and constants, a baseline normalizer
// (Simplify) and the div/mod collapse pass (MergeMulMod) built on top of it.
//
// Expressions are immutable and shared by pointer; constructors fold constant
// operands and algebraic identities (x+0, x*1, x*0) but perform no deeper
// rewriting -- that is Simplify's job.
package arith

import (
	"fmt"

	. "github.com/gomlx/exceptions"
)

// Expr is an immutable scalar integer expression. The closed set of
// implementations is *Var, *IntImm, *Add, *Mul, *FloorDiv, *FloorMod and *Ramp.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Var is a named integer symbol, e.g. a loop or thread index.
type Var struct {
	Name string
}

// IntImm is an integer constant.
type IntImm struct {
	Value int64
}

// Add is the sum A + B.
type Add struct {
	A, B Expr
}

// Mul is the product A * B.
type Mul struct {
	A, B Expr
}

// FloorDiv is the floor-division A // B (rounds towards negative infinity).
type FloorDiv struct {
	A, B Expr
}

// FloorMod is the floor-modulo A %% B, with the sign of B.
type FloorMod struct {
	A, B Expr
}

// Ramp is the vector expression [Base, Base+Stride, ..., Base+(Lanes-1)*Stride],
// used for multi-lane buffer accesses.
type Ramp struct {
	Base, Stride Expr
	Lanes        int
}

func (*Var) isExpr()      {}
func (*IntImm) isExpr()   {}
func (*Add) isExpr()      {}
func (*Mul) isExpr()      {}
func (*FloorDiv) isExpr() {}
func (*FloorMod) isExpr() {}
func (*Ramp) isExpr()     {}

// NewVar returns a new integer symbol.
func NewVar(name string) *Var { return &Var{Name: name} }

// Imm returns an integer constant.
func Imm(value int64) *IntImm { return &IntImm{Value: value} }

// NewAdd returns a + b, folding constant operands and the additive identity.
func NewAdd(a, b Expr) Expr {
	ia, aImm := a.(*IntImm)
	ib, bImm := b.(*IntImm)
	switch {
	case aImm && bImm:
		return Imm(ia.Value + ib.Value)
	case aImm && ia.Value == 0:
		return b
	case bImm && ib.Value == 0:
		return a
	}
	return &Add{A: a, B: b}
}

// NewMul returns a * b, folding constant operands and the multiplicative
// identities.
func NewMul(a, b Expr) Expr {
	ia, aImm := a.(*IntImm)
	ib, bImm := b.(*IntImm)
	switch {
	case aImm && bImm:
		return Imm(ia.Value * ib.Value)
	case aImm && ia.Value == 0, bImm && ib.Value == 0:
		return Imm(0)
	case aImm && ia.Value == 1:
		return b
	case bImm && ib.Value == 1:
		return a
	}
	return &Mul{A: a, B: b}
}

// NewFloorDiv returns a // b, folding constant operands. Division by the
// constant zero is a malformed expression and panics.
func NewFloorDiv(a, b Expr) Expr {
	ia, aImm := a.(*IntImm)
	ib, bImm := b.(*IntImm)
	if bImm && ib.Value == 0 {
		Panicf("floordiv(%s, 0): division by zero", a)
	}
	switch {
	case aImm && bImm:
		return Imm(floorDiv(ia.Value, ib.Value))
	case bImm && ib.Value == 1:
		return a
	case aImm && ia.Value == 0:
		return Imm(0)
	}
	return &FloorDiv{A: a, B: b}
}

// NewFloorMod returns a %% b, folding constant operands. Modulo by the constant
// zero is a malformed expression and panics.
func NewFloorMod(a, b Expr) Expr {
	ia, aImm := a.(*IntImm)
	ib, bImm := b.(*IntImm)
	if bImm && ib.Value == 0 {
		Panicf("floormod(%s, 0): modulo by zero", a)
	}
	switch {
	case aImm && bImm:
		return Imm(floorMod(ia.Value, ib.Value))
	case bImm && ib.Value == 1:
		return Imm(0)
	case aImm && ia.Value == 0:
		return Imm(0)
	}
	return &FloorMod{A: a, B: b}
}

// NewRamp returns the strided vector expression with the given base, stride and
// lane count.
func NewRamp(base, stride Expr, lanes int) *Ramp {
	if lanes < 2 {
		Panicf("ramp(%s, %s, %d): lanes must be >= 2", base, stride, lanes)
	}
	return &Ramp{Base: base, Stride: stride, Lanes: lanes}
}

// floorDiv rounds towards negative infinity, unlike Go's native division.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// Equal reports deep structural equality of two expressions.
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	switch a := a.(type) {
	case *Var:
		b, ok := b.(*Var)
		return ok && a.Name == b.Name
	case *IntImm:
		b, ok := b.(*IntImm)
		return ok && a.Value == b.Value
	case *Add:
		b, ok := b.(*Add)
		return ok && Equal(a.A, b.A) && Equal(a.B, b.B)
	case *Mul:
		b, ok := b.(*Mul)
		return ok && Equal(a.A, b.A) && Equal(a.B, b.B)
	case *FloorDiv:
		b, ok := b.(*FloorDiv)
		return ok && Equal(a.A, b.A) && Equal(a.B, b.B)
	case *FloorMod:
		b, ok := b.(*FloorMod)
		return ok && Equal(a.A, b.A) && Equal(a.B, b.B)
	case *Ramp:
		b, ok := b.(*Ramp)
		return ok && a.Lanes == b.Lanes && Equal(a.Base, b.Base) && Equal(a.Stride, b.Stride)
	}
	return false
}

// IsZero returns whether the expression is the literal integer zero.
func IsZero(e Expr) bool {
	imm, ok := e.(*IntImm)
	return ok && imm.Value == 0
}

func (v *Var) String() string    { return v.Name }
func (i *IntImm) String() string { return fmt.Sprintf("%d", i.Value) }
func (a *Add) String() string    { return fmt.Sprintf("(%s + %s)", a.A, a.B) }
func (m *Mul) String() string    { return fmt.Sprintf("(%s*%s)", m.A, m.B) }
func (d *FloorDiv) String() string {
	return fmt.Sprintf("floordiv(%s, %s)", d.A, d.B)
}
func (m *FloorMod) String() string {
	return fmt.Sprintf("floormod(%s, %s)", m.A, m.B)
}
func (r *Ramp) String() string {
	return fmt.Sprintf("ramp(%s, %s, %d)", r.Base, r.Stride, r.Lanes)
}
