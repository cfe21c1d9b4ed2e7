package arith

// Simplify is the baseline normalizer applied before pattern search: it folds
// constants bottom-up, eliminates identity operands, moves constant factors and
// addends to the right side, and reassociates nested constant factors so that
// e.g. (x*3)*2 becomes x*6. It deliberately does not distribute products over
// sums nor touch div/mod pairs -- collapsing those is MergeMulMod's job.
//
// Simplify is deterministic and idempotent.
func Simplify(e Expr) Expr {
	switch n := e.(type) {
	case *Add:
		return simplifyAdd(Simplify(n.A), Simplify(n.B))
	case *Mul:
		return simplifyMul(Simplify(n.A), Simplify(n.B))
	case *FloorDiv:
		return NewFloorDiv(Simplify(n.A), Simplify(n.B))
	case *FloorMod:
		return NewFloorMod(Simplify(n.A), Simplify(n.B))
	case *Ramp:
		return &Ramp{Base: Simplify(n.Base), Stride: Simplify(n.Stride), Lanes: n.Lanes}
	}
	return e
}

func simplifyAdd(a, b Expr) Expr {
	// Constants to the right.
	if _, aImm := a.(*IntImm); aImm {
		if _, bImm := b.(*IntImm); !bImm {
			a, b = b, a
		}
	}
	if bImm, ok := b.(*IntImm); ok {
		// (x + c1) + c2 => x + (c1+c2)
		if aAdd, ok := a.(*Add); ok {
			if inner, ok := aAdd.B.(*IntImm); ok {
				return NewAdd(aAdd.A, Imm(inner.Value+bImm.Value))
			}
		}
	}
	return NewAdd(a, b)
}

func simplifyMul(a, b Expr) Expr {
	// Constants to the right.
	if _, aImm := a.(*IntImm); aImm {
		if _, bImm := b.(*IntImm); !bImm {
			a, b = b, a
		}
	}
	if bImm, ok := b.(*IntImm); ok {
		// (x * c1) * c2 => x * (c1*c2)
		if aMul, ok := a.(*Mul); ok {
			if inner, ok := aMul.B.(*IntImm); ok {
				return NewMul(aMul.A, Imm(inner.Value*bImm.Value))
			}
		}
	}
	return NewMul(a, b)
}
