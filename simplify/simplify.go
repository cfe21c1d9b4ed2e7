// Package simplify implements the dataflow-graph simplification pass: one
// bounded, deterministic sweep that rewrites sub-graphs into algebraically
// equivalent, smaller forms using a fixed, closed rule set.
//
// The pass requires its input to be fully type-annotated (every node carrying
// its checked shape), which the ir constructors guarantee. It is idempotent --
// re-running it on its own output is a no-op -- and type-preserving: every
// replacement has the same checked type as the node it replaces.
//
// The pass carries no state between calls: independent expressions can be
// simplified concurrently from separate goroutines.
package simplify

import (
	"github.com/gomlx/exceptions"
	"github.com/tensorir/tensorir/ir"
	"github.com/tensorir/tensorir/pattern"
	"k8s.io/klog/v2"
)

// rule is one rewrite rule: a pattern and a pure rewrite function. The rewrite
// is only invoked on expressions the pattern matched; it returns the input
// unchanged to decline (a syntactic match whose semantic precondition failed,
// which is a missed opportunity, not an error).
type rule struct {
	name    string
	pattern pattern.Pattern
	rewrite func(call *ir.Call, b pattern.Bindings) ir.Expr
}

// rules is the fixed rule set, applied in order at every node. Extending the
// pass means appending to this slice at compile time; there is no runtime
// registration.
var rules = []rule{
	reshapeMergeRule(),
	transposeMergeRule(),
	fullElementwiseFoldRule(),
	identityEliminationRule(),
}

// Expr simplifies the expression, returning a new expression with the same
// checked type. The traversal visits children before parents, so every
// argument is fully simplified before a node is matched, and each node is
// re-matched until no rule applies (a local fixed point).
//
// Internal-invariant violations (malformed IR produced upstream) panic; see
// ExprOrError for an error-returning wrapper.
func Expr(e ir.Expr) ir.Expr {
	r := &rewriter{memo: make(map[ir.Expr]ir.Expr)}
	return r.rewrite(e)
}

// ExprOrError is Expr with invariant violations converted to an error.
func ExprOrError(e ir.Expr) (simplified ir.Expr, err error) {
	err = exceptions.TryCatch[error](func() {
		simplified = Expr(e)
	})
	if err != nil {
		return nil, err
	}
	return
}

// rewriter memoizes rewrites per node pointer, so shared subtrees are
// simplified once and stay shared in the output.
type rewriter struct {
	memo map[ir.Expr]ir.Expr
}

func (r *rewriter) rewrite(e ir.Expr) ir.Expr {
	if out, found := r.memo[e]; found {
		return out
	}
	out := e
	if call, ok := e.(*ir.Call); ok {
		out = r.rewriteCall(call)
	}
	r.memo[e] = out
	return out
}

func (r *rewriter) rewriteCall(call *ir.Call) ir.Expr {
	// Children first: every argument is at its fixed point before the node
	// itself is matched.
	args := call.Args()
	newArgs := make([]ir.Expr, len(args))
	changed := false
	for ii, arg := range args {
		newArgs[ii] = r.rewrite(arg)
		changed = changed || newArgs[ii] != arg
	}
	var out ir.Expr = call
	if changed {
		out = call.WithArgs(newArgs...)
	}

	// Local fixed point: a successful rewrite is itself eligible for
	// re-matching by any rule. Every rule strictly reduces the node count on
	// success, so this terminates.
	for {
		c, ok := out.(*ir.Call)
		if !ok {
			return out
		}
		next := applyRules(c)
		if next == c {
			return out
		}
		out = next
	}
}

// applyRules applies the first rule that matches and commits a change, or
// returns the input unchanged.
func applyRules(call *ir.Call) ir.Expr {
	for _, rl := range rules {
		b, ok := pattern.Match(rl.pattern, call)
		if !ok {
			continue
		}
		out := rl.rewrite(call, b)
		if out != call {
			if klog.V(2).Enabled() {
				klog.Infof("simplify: %s rewrote %s", rl.name, call.Op())
			}
			return out
		}
	}
	return call
}
