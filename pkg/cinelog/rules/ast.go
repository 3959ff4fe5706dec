// Package rules defines the typed body AST of derived predicates and the
// RuleSet that compiles and validates them.
package rules

import (
	"fmt"
	"strings"

	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Body is a node of a rule body or query goal.
type Body interface {
	// String renders the node in clause syntax.
	String() string
	isBody()
}

// Call invokes a fact predicate, a rule or a built-in. Call sites do not
// distinguish between them.
type Call struct {
	Pred string
	Args []term.Term
}

// And runs Left, then Right.
type And struct{ Left, Right Body }

// Or tries Left first and falls back to Right on backtracking.
type Or struct{ Left, Right Body }

// Neq is the disequality dif(A, B). It is delayed while either side is
// unbound.
type Neq struct{ A, B term.Term }

// Unify is A = B.
type Unify struct{ A, B term.Term }

// Is evaluates Expr and unifies the result with Target.
type Is struct {
	Target term.Term
	Expr   Expr
}

// Compare evaluates both sides and compares them numerically.
type Compare struct {
	Op          RelOp
	Left, Right Expr
}

// IfThenElse commits to the first solution of Cond and continues with Then;
// Else runs only when Cond has no solution.
type IfThenElse struct{ Cond, Then, Else Body }

// Count runs Goal to exhaustion and unifies Result with the number of
// solutions.
type Count struct {
	Goal   Body
	Result term.Term
}

// True always succeeds.
type True struct{}

// Fail never succeeds.
type Fail struct{}

func (Call) isBody()       {}
func (And) isBody()        {}
func (Or) isBody()         {}
func (Neq) isBody()        {}
func (Unify) isBody()      {}
func (Is) isBody()         {}
func (Compare) isBody()    {}
func (IfThenElse) isBody() {}
func (Count) isBody()      {}
func (True) isBody()       {}
func (Fail) isBody()       {}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Pred
	}
	return c.Pred + "(" + joinTerms(c.Args) + ")"
}

func (a And) String() string { return a.Left.String() + ", " + a.Right.String() }

func (o Or) String() string { return "(" + o.Left.String() + " ; " + o.Right.String() + ")" }

func (n Neq) String() string { return fmt.Sprintf("dif(%s, %s)", n.A, n.B) }

func (u Unify) String() string { return fmt.Sprintf("%s = %s", u.A, u.B) }

func (i Is) String() string { return fmt.Sprintf("%s is %s", i.Target, i.Expr) }

func (c Compare) String() string { return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right) }

func (c IfThenElse) String() string {
	// Chained else branches render flat, like a hand-written band table.
	var b strings.Builder
	b.WriteString("(")
	cur := c
	for {
		fmt.Fprintf(&b, "%s -> %s ; ", cur.Cond, cur.Then)
		next, ok := cur.Else.(IfThenElse)
		if !ok {
			b.WriteString(cur.Else.String())
			break
		}
		cur = next
	}
	b.WriteString(")")
	return b.String()
}

func (c Count) String() string {
	return fmt.Sprintf("aggregate_all(count, (%s), %s)", c.Goal, c.Result)
}

func (True) String() string { return "true" }

func (Fail) String() string { return "fail" }

func joinTerms(ts []term.Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Walk calls fn for every node of b in depth-first, left-to-right order.
func Walk(b Body, fn func(Body)) {
	if b == nil {
		return
	}
	fn(b)
	switch n := b.(type) {
	case And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case IfThenElse:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case Count:
		Walk(n.Goal, fn)
	}
}

// Vars returns the named variables of b in order of first appearance.
// Variables whose name starts with an underscore are omitted.
func Vars(b Body) []term.Var {
	seen := make(map[term.Var]bool)
	var out []term.Var
	add := func(ts ...term.Term) {
		for _, t := range ts {
			v, ok := t.(term.Var)
			if !ok || seen[v] || strings.HasPrefix(v.Name, "_") {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	Walk(b, func(n Body) {
		switch n := n.(type) {
		case Call:
			add(n.Args...)
		case Neq:
			add(n.A, n.B)
		case Unify:
			add(n.A, n.B)
		case Is:
			add(n.Target)
			add(ExprVars(n.Expr)...)
		case Compare:
			add(ExprVars(n.Left)...)
			add(ExprVars(n.Right)...)
		case Count:
			add(n.Result)
		}
	})
	return out
}

// Calls returns every Call node of b.
func Calls(b Body) []Call {
	var out []Call
	Walk(b, func(n Body) {
		if c, ok := n.(Call); ok {
			out = append(out, c)
		}
	})
	return out
}
