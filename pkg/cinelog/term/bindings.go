package term

import (
	"hash/maphash"

	"github.com/benbjohnson/immutable"
)

// Bindings is a persistent substitution. Extending it returns a new value and
// leaves the receiver untouched, so a resolution branch that is abandoned
// never leaks its bindings into a sibling branch.
//
// Bindings also carries delayed disequality constraints (dif/2): a
// disequality between terms that are not yet ground is kept pending and
// re-checked every time a variable is bound.
type Bindings struct {
	vars    *immutable.Map[Var, Term]
	pending *constraint
}

type constraint struct {
	a, b Term
	next *constraint
}

type difStatus int

const (
	difSatisfied difStatus = iota
	difViolated
	difPending
)

var varSeed = maphash.MakeSeed()

// varHasher hashes variables by name and scope.
type varHasher struct{}

func (varHasher) Hash(v Var) uint32 {
	h := maphash.Comparable(varSeed, v)
	return uint32(h ^ h>>32)
}

func (varHasher) Equal(a, b Var) bool { return a == b }

// Len returns the number of variables bound.
func (b Bindings) Len() int {
	if b.vars == nil {
		return 0
	}
	return b.vars.Len()
}

// Pending returns the number of delayed disequalities still unresolved.
func (b Bindings) Pending() int {
	n := 0
	for c := b.pending; c != nil; c = c.next {
		n++
	}
	return n
}

// Lookup returns the term directly bound to v.
func (b Bindings) Lookup(v Var) (Term, bool) {
	if b.vars == nil {
		return nil, false
	}
	return b.vars.Get(v)
}

// Walk dereferences t through the substitution until it reaches a non-variable
// or an unbound variable.
func (b Bindings) Walk(t Term) Term {
	for {
		v, ok := t.(Var)
		if !ok {
			return t
		}
		next, bound := b.Lookup(v)
		if !bound {
			return v
		}
		t = next
	}
}

// WalkAll walks every term in ts.
func (b Bindings) WalkAll(ts []Term) []Term {
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = b.Walk(t)
	}
	return out
}

// Unify unifies x and y under b. Atoms and numbers unify only when equal,
// an unbound variable unifies with anything.
func Unify(x, y Term, b Bindings) (Bindings, bool) {
	x, y = b.Walk(x), b.Walk(y)
	if x == y {
		return b, true
	}
	if v, ok := x.(Var); ok {
		return b.bind(v, y)
	}
	if v, ok := y.(Var); ok {
		return b.bind(v, x)
	}
	return b, false
}

// UnifyAll unifies xs and ys position by position. Tuples of different
// length never unify.
func UnifyAll(xs, ys []Term, b Bindings) (Bindings, bool) {
	if len(xs) != len(ys) {
		return b, false
	}
	var ok bool
	for i := range xs {
		if b, ok = Unify(xs[i], ys[i], b); !ok {
			return b, false
		}
	}
	return b, true
}

// Dif records the constraint x ≠ y. It fails immediately when both sides
// are already equal, succeeds outright when both are ground and different,
// and is delayed otherwise.
func (b Bindings) Dif(x, y Term) (Bindings, bool) {
	switch b.checkDif(x, y) {
	case difViolated:
		return b, false
	case difSatisfied:
		return b, true
	}
	b.pending = &constraint{a: x, b: y, next: b.pending}
	return b, true
}

func (b Bindings) bind(v Var, t Term) (Bindings, bool) {
	if b.vars == nil {
		b.vars = immutable.NewMap[Var, Term](varHasher{})
	}
	b.vars = b.vars.Set(v, t)
	if b.pending == nil {
		return b, true
	}
	var kept *constraint
	for c := b.pending; c != nil; c = c.next {
		switch b.checkDif(c.a, c.b) {
		case difViolated:
			return b, false
		case difPending:
			kept = &constraint{a: c.a, b: c.b, next: kept}
		}
	}
	b.pending = kept
	return b, true
}

func (b Bindings) checkDif(x, y Term) difStatus {
	x, y = b.Walk(x), b.Walk(y)
	if x == y {
		return difViolated
	}
	if IsVar(x) || IsVar(y) {
		return difPending
	}
	return difSatisfied
}
