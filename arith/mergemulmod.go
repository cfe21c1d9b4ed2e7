package arith

import (
	"slices"

	"github.com/tensorir/tensorir/pkg/support/xslices"
)

// MergeMulMod detects and collapses the index pattern
//
//	(a1 + a2 + ... + aj + c//(k1*...*ki) * k1*...*k(t-1)) * kt*...*ki  +  c %% (k1*...*ki)
//
// into
//
//	(a1 + a2 + ... + aj) * kt*...*ki + c
//
// where the full divisor k1*...*ki is reconstructed by walking nested
// multiplications. The pattern is what row-major linearization of a previously
// split index produces, so collapsing it undoes the div/mod round-trip.
//
// The search is repeated until no pair of a multiplicative and a modulo term
// matches. If no collapse ever applies, the baseline-simplified input is
// returned unchanged.
func MergeMulMod(base Expr) Expr {
	simplified := Simplify(base)

	// Additive terms are kept in two lists: the terms that look like products
	// and the terms that look like modulos. Modulo terms are matched against
	// product terms; a successful collapse is split and pushed back onto the
	// lists, restarting the search.
	var multTerms []Expr
	var modTerms []modTerm
	var residual Expr
	insertTerms(splitAddition(simplified), &multTerms, &modTerms, &residual)

	found := false
	si := 0
	for si < len(modTerms) {
		innerFound := false
		for mi := 0; mi < len(multTerms); mi++ {
			merged, ok := mergeMulModInner(multTerms[mi], modTerms[si])
			if !ok {
				continue
			}
			innerFound = true
			modTerms = slices.Delete(modTerms, si, si+1)
			multTerms = slices.Delete(multTerms, mi, mi+1)
			atEnd := si == len(modTerms)
			hasMult, hasMod := insertTerms(splitAddition(merged), &multTerms, &modTerms, &residual)
			if hasMult {
				// A new product term may pair with any earlier modulo term:
				// restart the modulo scan from the beginning. Keeping this
				// restart (rather than continuing from si) pins down the
				// order in which multiple valid collapses are taken.
				si = 0
			} else if hasMod && atEnd {
				si = len(modTerms) - 1
			}
			break
		}
		found = found || innerFound
		if !innerFound {
			si++
		}
	}
	if !found {
		return simplified
	}
	for _, term := range multTerms {
		residual = accumulate(residual, term)
	}
	for _, term := range modTerms {
		residual = accumulate(residual, NewFloorMod(term.dividend, term.modulus))
	}
	return residual
}

// modTerm is an additive term of the form dividend %% modulus.
type modTerm struct {
	dividend, modulus Expr
}

// splitAddition flattens a sum into its additive terms, left to right.
func splitAddition(e Expr) []Expr {
	var terms []Expr
	stack := []Expr{e}
	for len(stack) > 0 {
		top := xslices.Last(stack)
		stack = stack[:len(stack)-1]
		if add, ok := top.(*Add); ok {
			stack = append(stack, add.B, add.A)
		} else {
			terms = append(terms, top)
		}
	}
	return terms
}

// insertTerms classifies additive terms into product terms, modulo terms, and
// the unclassified residual sum. It reports whether any product or modulo term
// was inserted.
func insertTerms(terms []Expr, multTerms *[]Expr, modTerms *[]modTerm, residual *Expr) (hasMult, hasMod bool) {
	for _, term := range terms {
		switch n := term.(type) {
		case *FloorMod:
			hasMod = true
			*modTerms = append(*modTerms, modTerm{dividend: n.A, modulus: n.B})
		case *Mul:
			hasMult = true
			*multTerms = append(*multTerms, n)
		default:
			*residual = accumulate(*residual, term)
		}
	}
	return
}

// mergeMulModInner attempts the collapse for one (product term, modulo term)
// pair. It unwraps nested multiplications on the product's left spine,
// accumulating the outer multiplier, until it exposes a floor-division whose
// divisor equals both the accumulated multiplier and the paired modulus, and
// whose dividend equals the paired dividend. Plain addends found along the way
// are collected and, on success, re-scaled by the outer multiplier.
func mergeMulModInner(mult Expr, mod modTerm) (Expr, bool) {
	outer, ok := mult.(*Mul)
	if !ok {
		return nil, false
	}
	multOuter := outer.B
	inner := outer.A
	for {
		m, ok := inner.(*Mul)
		if !ok {
			break
		}
		inner = m.A
		multOuter = NewMul(m.B, multOuter)
	}

	search := inner
	var multInner Expr
	var noOptSum Expr
	for {
		switch n := search.(type) {
		case *FloorDiv:
			overall := multOuter
			if multInner != nil {
				overall = NewMul(multInner, multOuter)
			}
			if Equal(overall, n.B) && Equal(overall, mod.modulus) && Equal(n.A, mod.dividend) {
				if noOptSum != nil {
					return NewAdd(NewMul(noOptSum, multOuter), mod.dividend), true
				}
				return mod.dividend, true
			}
			return nil, false
		case *Mul:
			if multInner == nil {
				multInner = n.B
			} else {
				multInner = NewMul(n.B, multInner)
			}
			search = n.A
		case *Add:
			// Once an inner multiplication factor was collected, trailing
			// addends cannot be matched anymore.
			if multInner != nil {
				return nil, false
			}
			noOptSum = accumulate(noOptSum, n.A)
			search = n.B
		default:
			return nil, false
		}
	}
}

func accumulate(sum, term Expr) Expr {
	if sum == nil {
		return term
	}
	return NewAdd(sum, term)
}
