package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeMulModBasic(t *testing.T) {
	x := NewVar("x")
	// (x//6)*6 + x%6 => x
	e := NewAdd(NewMul(NewFloorDiv(x, Imm(6)), Imm(6)), NewFloorMod(x, Imm(6)))
	got := MergeMulMod(e)
	assert.True(t, Equal(x, got), "got %s", got)
}

func TestMergeMulModWithResidualAddend(t *testing.T) {
	x, a := NewVar("x"), NewVar("a")
	// (a + x//24)*24 + x%24 => x + a*24
	e := NewAdd(
		NewMul(NewAdd(a, NewFloorDiv(x, Imm(24))), Imm(24)),
		NewFloorMod(x, Imm(24)))
	got := MergeMulMod(e)
	want := NewAdd(x, NewMul(a, Imm(24)))
	assert.True(t, Equal(want, got), "got %s, want %s", got, want)
}

func TestMergeMulModFactoredMultiplier(t *testing.T) {
	x := NewVar("x")
	// ((x//24)*4)*6 + x%24 => x; the divisor 24 is reassembled from the
	// nested multiplication factors 4 and 6.
	e := NewAdd(
		NewMul(NewMul(NewFloorDiv(x, Imm(24)), Imm(4)), Imm(6)),
		NewFloorMod(x, Imm(24)))
	got := MergeMulMod(e)
	assert.True(t, Equal(x, got), "got %s", got)
}

func TestMergeMulModCascade(t *testing.T) {
	x, y := NewVar("x"), NewVar("y")
	// ((y//30)*5 + x//6)*6 + x%6 + y%30: the first collapse produces the new
	// product term (y//30)*5*6, which then collapses with y%30.
	e := NewAdd(
		NewAdd(
			NewMul(NewAdd(NewMul(NewFloorDiv(y, Imm(30)), Imm(5)), NewFloorDiv(x, Imm(6))), Imm(6)),
			NewFloorMod(x, Imm(6))),
		NewFloorMod(y, Imm(30)))
	got := MergeMulMod(e)
	want := NewAdd(x, y)
	assert.True(t, Equal(want, got), "got %s, want %s", got, want)
}

func TestMergeMulModNoMatch(t *testing.T) {
	x := NewVar("x")
	// Mismatched divisor and modulus: nothing collapses, the simplified input
	// comes back unchanged.
	e := NewAdd(NewMul(NewFloorDiv(x, Imm(5)), Imm(6)), NewFloorMod(x, Imm(6)))
	got := MergeMulMod(e)
	assert.True(t, Equal(Simplify(e), got), "got %s", got)

	plain := NewAdd(NewMul(x, Imm(5)), NewFloorMod(x, Imm(6)))
	assert.True(t, Equal(Simplify(plain), MergeMulMod(plain)))
}

func TestSimplifyNormalizes(t *testing.T) {
	x := NewVar("x")
	// Constants migrate right and nested constant factors fuse.
	assert.True(t, Equal(NewAdd(x, Imm(3)), Simplify(NewAdd(Imm(3), x))))
	assert.True(t, Equal(NewMul(x, Imm(6)), Simplify(NewMul(NewMul(x, Imm(3)), Imm(2)))))
	assert.True(t, Equal(NewAdd(x, Imm(5)), Simplify(NewAdd(NewAdd(x, Imm(2)), Imm(3)))))

	e := NewAdd(NewMul(NewMul(x, Imm(3)), Imm(2)), Imm(0))
	once := Simplify(e)
	assert.True(t, Equal(once, Simplify(once)))
}
