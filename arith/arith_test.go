package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsFoldConstants(t *testing.T) {
	assert.True(t, Equal(Imm(7), NewAdd(Imm(3), Imm(4))))
	assert.True(t, Equal(Imm(12), NewMul(Imm(3), Imm(4))))
	assert.True(t, Equal(Imm(2), NewFloorDiv(Imm(7), Imm(3))))
	assert.True(t, Equal(Imm(1), NewFloorMod(Imm(7), Imm(3))))
}

func TestFloorSemantics(t *testing.T) {
	// Floor division rounds towards negative infinity, not towards zero.
	assert.Equal(t, int64(-3), NewFloorDiv(Imm(-7), Imm(3)).(*IntImm).Value)
	assert.Equal(t, int64(2), NewFloorMod(Imm(-7), Imm(3)).(*IntImm).Value)
	assert.Equal(t, int64(2), NewFloorDiv(Imm(7), Imm(3)).(*IntImm).Value)
}

func TestIdentityElimination(t *testing.T) {
	x := NewVar("x")
	assert.Same(t, x, NewAdd(x, Imm(0)))
	assert.Same(t, x, NewAdd(Imm(0), x))
	assert.Same(t, x, NewMul(x, Imm(1)))
	assert.True(t, Equal(Imm(0), NewMul(x, Imm(0))))
	assert.Same(t, x, NewFloorDiv(x, Imm(1)))
	assert.True(t, Equal(Imm(0), NewFloorMod(x, Imm(1))))
}

func TestDivisionByZeroPanics(t *testing.T) {
	x := NewVar("x")
	require.Panics(t, func() { NewFloorDiv(x, Imm(0)) })
	require.Panics(t, func() { NewFloorMod(x, Imm(0)) })
}

func TestEqual(t *testing.T) {
	x, y := NewVar("x"), NewVar("y")
	a := NewAdd(NewMul(x, Imm(5)), y)
	b := NewAdd(NewMul(NewVar("x"), Imm(5)), NewVar("y"))
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, NewAdd(NewMul(x, Imm(6)), y)))
	assert.False(t, Equal(x, y))
	assert.False(t, Equal(x, Imm(3)))
}

func TestString(t *testing.T) {
	x := NewVar("x")
	e := NewAdd(NewMul(NewFloorDiv(x, Imm(6)), Imm(6)), NewFloorMod(x, Imm(6)))
	assert.Equal(t, "((floordiv(x, 6)*6) + floormod(x, 6))", e.String())
	assert.Equal(t, "ramp(x, 1, 4)", NewRamp(x, Imm(1), 4).String())
}
