package rules

import "github.com/cognicore/cinelog/pkg/cinelog/term"

// Constructors for writing rule bodies in Go.

// V returns a scope-0 variable.
func V(name string) term.Var { return term.NewVar(name) }

// A returns an atom.
func A(s string) term.Atom { return term.Atom(s) }

// I returns an integer.
func I(n int64) term.Int { return term.Int(n) }

// P builds a predicate call.
func P(pred string, args ...term.Term) Call { return Call{Pred: pred, Args: args} }

// Conj right-nests goals into And nodes, splicing in the conjuncts of
// any goal that is itself an And. An empty conjunction is True.
func Conj(goals ...Body) Body {
	var flat []Body
	for _, g := range goals {
		flat = appendConjuncts(flat, g)
	}
	return nest(flat)
}

func appendConjuncts(dst []Body, g Body) []Body {
	if a, ok := g.(And); ok {
		return appendConjuncts(appendConjuncts(dst, a.Left), a.Right)
	}
	return append(dst, g)
}

func nest(goals []Body) Body {
	switch len(goals) {
	case 0:
		return True{}
	case 1:
		return goals[0]
	}
	return And{Left: goals[0], Right: nest(goals[1:])}
}

// Disj right-nests goals into Or nodes. An empty disjunction is Fail.
func Disj(goals ...Body) Body {
	switch len(goals) {
	case 0:
		return Fail{}
	case 1:
		return goals[0]
	}
	return Or{Left: goals[0], Right: Disj(goals[1:]...)}
}

// Dif builds dif(a, b).
func Dif(a, b term.Term) Neq { return Neq{A: a, B: b} }

// Eq builds a = b.
func Eq(a, b term.Term) Unify { return Unify{A: a, B: b} }

// Let builds target is e.
func Let(target term.Term, e Expr) Is { return Is{Target: target, Expr: e} }

// Cmp builds a numeric comparison.
func Cmp(l Expr, op RelOp, r Expr) Compare { return Compare{Op: op, Left: l, Right: r} }

// If builds (cond -> then ; els).
func If(cond, then, els Body) IfThenElse { return IfThenElse{Cond: cond, Then: then, Else: els} }

// CountOf builds a solution count of goal into result.
func CountOf(goal Body, result term.Term) Count { return Count{Goal: goal, Result: result} }

// Band is one guarded step of an ordered threshold table.
type Band struct {
	When Body
	Then Body
}

// Bands chains bands into nested IfThenElse nodes, evaluated in order;
// the first guard that holds wins, otherwise fallback runs.
func Bands(fallback Body, bands ...Band) Body {
	out := fallback
	for i := len(bands) - 1; i >= 0; i-- {
		out = IfThenElse{Cond: bands[i].When, Then: bands[i].Then, Else: out}
	}
	return out
}

// X wraps a term as an expression leaf.
func X(t term.Term) Leaf { return Leaf{Term: t} }

// N is an integer expression leaf.
func N(n int64) Leaf { return Leaf{Term: term.Int(n)} }

// Fl is a float expression leaf.
func Fl(f float64) Leaf { return Leaf{Term: term.Float(f)} }

func Add(l, r Expr) BinOp { return BinOp{Op: OpAdd, Left: l, Right: r} }
func Sub(l, r Expr) BinOp { return BinOp{Op: OpSub, Left: l, Right: r} }
func Mul(l, r Expr) BinOp { return BinOp{Op: OpMul, Left: l, Right: r} }
func Div(l, r Expr) BinOp { return BinOp{Op: OpDiv, Left: l, Right: r} }

func Max(l, r Expr) Func { return Func{Name: "max", Args: []Expr{l, r}} }
func Min(l, r Expr) Func { return Func{Name: "min", Args: []Expr{l, r}} }
func Abs(e Expr) Func    { return Func{Name: "abs", Args: []Expr{e}} }
func Round(e Expr) Func  { return Func{Name: "round", Args: []Expr{e}} }
