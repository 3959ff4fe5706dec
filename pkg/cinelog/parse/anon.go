package parse

import (
	"strconv"

	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// renameAnonymous gives every bare "_" in b its own variable name.
func renameAnonymous(b rules.Body, n *int) rules.Body {
	switch x := b.(type) {
	case rules.Call:
		return rules.Call{Pred: x.Pred, Args: renameAnonymousTerms(x.Args, n)}
	case rules.And:
		return rules.And{Left: renameAnonymous(x.Left, n), Right: renameAnonymous(x.Right, n)}
	case rules.Or:
		return rules.Or{Left: renameAnonymous(x.Left, n), Right: renameAnonymous(x.Right, n)}
	case rules.IfThenElse:
		return rules.IfThenElse{
			Cond: renameAnonymous(x.Cond, n),
			Then: renameAnonymous(x.Then, n),
			Else: renameAnonymous(x.Else, n),
		}
	case rules.Count:
		return rules.Count{Goal: renameAnonymous(x.Goal, n), Result: anonTerm(x.Result, n)}
	case rules.Neq:
		return rules.Neq{A: anonTerm(x.A, n), B: anonTerm(x.B, n)}
	case rules.Unify:
		return rules.Unify{A: anonTerm(x.A, n), B: anonTerm(x.B, n)}
	case rules.Is:
		return rules.Is{Target: anonTerm(x.Target, n), Expr: anonExpr(x.Expr, n)}
	case rules.Compare:
		return rules.Compare{Op: x.Op, Left: anonExpr(x.Left, n), Right: anonExpr(x.Right, n)}
	}
	return b
}

func renameAnonymousTerms(ts []term.Term, n *int) []term.Term {
	out := make([]term.Term, len(ts))
	for i, t := range ts {
		out[i] = anonTerm(t, n)
	}
	return out
}

func anonTerm(t term.Term, n *int) term.Term {
	if v, ok := t.(term.Var); ok && v.Name == "_" {
		*n++
		return term.NewVar("_G" + strconv.Itoa(*n))
	}
	return t
}

func anonExpr(e rules.Expr, n *int) rules.Expr {
	switch x := e.(type) {
	case rules.Leaf:
		return rules.Leaf{Term: anonTerm(x.Term, n)}
	case rules.BinOp:
		return rules.BinOp{Op: x.Op, Left: anonExpr(x.Left, n), Right: anonExpr(x.Right, n)}
	case rules.Func:
		args := make([]rules.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = anonExpr(a, n)
		}
		return rules.Func{Name: x.Name, Args: args}
	}
	return e
}
