// Package pattern implements a small structural pattern language over the
// dataflow IR, used by the simplification rules to describe the sub-graphs they
// rewrite.
//
// A Pattern mirrors the shape of an ir.Expr tree but with wildcard, alternation
// and operator-predicate nodes. Matching a pattern against an expression
// yields, on success, a Bindings map from each pattern node to the list of
// sub-expressions it matched, in match order -- the same pattern node may bind
// at multiple sites.
//
// Matching is pure: patterns carry no state and the same pattern value can be
// matched concurrently from multiple goroutines.
package pattern

import (
	"github.com/tensorir/tensorir/ir"
)

// Pattern is a node of the pattern tree. Build patterns with Wildcard, IsOp,
// IsConstant, IsBroadcastOp, IsFillOp, AnyOf and Call.
type Pattern interface {
	match(e ir.Expr, b Bindings) bool
}

// Bindings maps each matched pattern node to the expressions it bound, in match
// order.
type Bindings map[Pattern][]ir.Expr

// Matched returns whether the pattern node bound anything during the match.
// Useful with AnyOf to find out which alternative fired.
func (b Bindings) Matched(p Pattern) bool {
	return len(b[p]) > 0
}

// First returns the first expression bound to the pattern node, or nil if it
// did not bind.
func (b Bindings) First(p Pattern) ir.Expr {
	if exprs := b[p]; len(exprs) > 0 {
		return exprs[0]
	}
	return nil
}

func (b Bindings) bind(p Pattern, e ir.Expr) {
	b[p] = append(b[p], e)
}

func (b Bindings) clone() Bindings {
	b2 := make(Bindings, len(b))
	for p, exprs := range b {
		b2[p] = append([]ir.Expr(nil), exprs...)
	}
	return b2
}

func (b Bindings) adopt(b2 Bindings) {
	for p := range b {
		delete(b, p)
	}
	for p, exprs := range b2 {
		b[p] = exprs
	}
}

// Match matches pattern p against expression e. On success it returns the
// bindings collected along the way.
func Match(p Pattern, e ir.Expr) (Bindings, bool) {
	b := make(Bindings)
	if !p.match(e, b) {
		return nil, false
	}
	return b, true
}

// Pattern nodes are identified by pointer in Bindings. Go gives zero-size
// allocations a shared address, so the data-less node structs carry a padding
// byte to keep every allocation distinct.

type wildcard struct{ _ byte }

// Wildcard returns a pattern that matches any expression. Each call returns a
// distinct pattern node, so multiple wildcards in one pattern bind separately.
func Wildcard() Pattern { return &wildcard{} }

func (p *wildcard) match(e ir.Expr, b Bindings) bool {
	b.bind(p, e)
	return true
}

type isOp struct {
	op ir.OpType
}

// IsOp returns a pattern that matches a call to the given operator, with any
// arguments. Compose with Call to also constrain the arguments.
func IsOp(op ir.OpType) Pattern { return &isOp{op: op} }

func (p *isOp) match(e ir.Expr, b Bindings) bool {
	call, ok := e.(*ir.Call)
	if !ok || call.Op() != p.op {
		return false
	}
	b.bind(p, e)
	return true
}

type isBroadcastOp struct{ _ byte }

// IsBroadcastOp returns a pattern that matches a call to any broadcasting
// binary elementwise operator.
func IsBroadcastOp() Pattern { return &isBroadcastOp{} }

func (p *isBroadcastOp) match(e ir.Expr, b Bindings) bool {
	call, ok := e.(*ir.Call)
	if !ok || !call.Op().IsBroadcast() {
		return false
	}
	b.bind(p, e)
	return true
}

type isFillOp struct{ _ byte }

// IsFillOp returns a pattern that matches a call to any operator producing a
// tensor filled with a single scalar (full/ones/zeros and their *_like
// variants), with any arguments.
func IsFillOp() Pattern { return &isFillOp{} }

func (p *isFillOp) match(e ir.Expr, b Bindings) bool {
	call, ok := e.(*ir.Call)
	if !ok || !call.Op().IsFill() {
		return false
	}
	b.bind(p, e)
	return true
}

type isConstant struct{ _ byte }

// IsConstant returns a pattern that matches any constant expression.
func IsConstant() Pattern { return &isConstant{} }

func (p *isConstant) match(e ir.Expr, b Bindings) bool {
	if _, ok := e.(*ir.Const); !ok {
		return false
	}
	b.bind(p, e)
	return true
}

type anyOf struct {
	alternatives []Pattern
}

// AnyOf returns the alternation of the given patterns: the first alternative
// that matches wins. The returned node itself binds on success, so callers can
// test which alternation fired with Bindings.Matched.
func AnyOf(alternatives ...Pattern) Pattern { return &anyOf{alternatives: alternatives} }

func (p *anyOf) match(e ir.Expr, b Bindings) bool {
	for _, alt := range p.alternatives {
		trial := b.clone()
		if alt.match(e, trial) {
			trial.bind(p, e)
			b.adopt(trial)
			return true
		}
	}
	return false
}

type callPattern struct {
	op   Pattern
	args []Pattern
}

// Call returns a structural call pattern: op must match the call node itself
// (typically IsOp, IsBroadcastOp or an AnyOf of those) and args must match the
// call's arguments, position by position, with the same arity.
func Call(op Pattern, args ...Pattern) Pattern {
	return &callPattern{op: op, args: args}
}

func (p *callPattern) match(e ir.Expr, b Bindings) bool {
	call, ok := e.(*ir.Call)
	if !ok || len(call.Args()) != len(p.args) {
		return false
	}
	trial := b.clone()
	if !p.op.match(call, trial) {
		return false
	}
	for ii, argPattern := range p.args {
		if !argPattern.match(call.Arg(ii), trial) {
			return false
		}
	}
	trial.bind(p, e)
	b.adopt(trial)
	return true
}
