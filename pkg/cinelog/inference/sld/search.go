package sld

import (
	"context"
	"fmt"

	"github.com/cognicore/cinelog/pkg/cinelog/builtin"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/inference"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// ctxCheckEvery is how many steps pass between context checks.
const ctxCheckEvery = 1024

// run is the state shared by every choice point of a query.
type run struct {
	ctx   context.Context
	e     *Engine
	stats inference.Stats
	scope int
}

// tick accounts for one clause expansion.
func (r *run) tick() error {
	r.stats.Steps++
	if r.stats.Steps > r.e.maxSteps {
		return &internalerr.StepLimitError{Limit: r.e.maxSteps}
	}
	if r.stats.Steps%ctxCheckEvery == 0 {
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// fresh returns a new variable scope for a rule activation.
func (r *run) fresh() int {
	r.scope++
	return r.scope
}

// goals is an immutable list of pending goals. Each goal carries the scope
// its variables live in. A goal with a mark is a control point left behind
// by if-then-else or count rather than a body to prove.
type goals struct {
	body  rules.Body
	scope int
	mark  marker
	next  *goals
}

func push(b rules.Body, scope int, rest *goals) *goals {
	return &goals{body: b, scope: scope, next: rest}
}

func pushMark(m marker, rest *goals) *goals {
	return &goals{mark: m, next: rest}
}

// marker is reached when the goals pushed before it have been proved.
type marker interface {
	reached(s *search, rest *goals, b term.Bindings) (state, bool)
}

// state is a resolvent: what is left to prove under which bindings.
type state struct {
	goals *goals
	b     term.Bindings
}

// alternatives is a choice point. next yields the following alternative;
// exhausted reports whether another call to next could yield anything.
type alternatives interface {
	next(r *run) (state, bool, error)
	exhausted() bool
}

// search is a depth-first walk over one resolvent's proof tree. Nested
// constructs share its choice-point stack, so proof depth never grows the
// Go stack.
type search struct {
	r      *run
	stack  []alternatives
	cur    state
	hasCur bool
}

func newSearch(r *run, start state) *search {
	return &search{r: r, cur: start, hasCur: true}
}

// next resumes the search and returns the bindings of the next solution.
// Only fatal errors are returned; branch failures backtrack.
func (s *search) next() (term.Bindings, bool, error) {
	for {
		if !s.hasCur {
			n := len(s.stack)
			if n == 0 {
				return term.Bindings{}, false, nil
			}
			top := s.stack[n-1]
			st, ok, err := top.next(s.r)
			if err != nil {
				s.stack = nil
				return term.Bindings{}, false, err
			}
			if !ok || top.exhausted() {
				s.stack[n-1] = nil
				s.stack = s.stack[:n-1]
			}
			if !ok {
				continue
			}
			s.cur, s.hasCur = st, true
		}

		if s.cur.goals == nil {
			s.hasCur = false
			return s.cur.b, true, nil
		}
		next, ok, err := s.step(s.cur)
		if err != nil {
			s.stack = nil
			s.hasCur = false
			return term.Bindings{}, false, err
		}
		s.cur, s.hasCur = next, ok
	}
}

// step reduces the first goal of st. It returns the resulting resolvent,
// or false when the branch fails or continues from a pushed choice point.
func (s *search) step(st state) (state, bool, error) {
	g := st.goals
	rest := g.next
	sc := g.scope
	b := st.b

	if g.mark != nil {
		next, ok := g.mark.reached(s, rest, b)
		return next, ok, nil
	}

	switch n := g.body.(type) {
	case rules.True:
		return state{goals: rest, b: b}, true, nil

	case rules.Fail:
		return state{}, false, nil

	case rules.And:
		return state{goals: push(n.Left, sc, push(n.Right, sc, rest)), b: b}, true, nil

	case rules.Or:
		s.stack = append(s.stack, &single{st: state{goals: push(n.Right, sc, rest), b: b}})
		return state{goals: push(n.Left, sc, rest), b: b}, true, nil

	case rules.Unify:
		nb, ok := term.Unify(term.Rename(n.A, sc), term.Rename(n.B, sc), b)
		return state{goals: rest, b: nb}, ok, nil

	case rules.Neq:
		nb, ok := b.Dif(term.Rename(n.A, sc), term.Rename(n.B, sc))
		return state{goals: rest, b: nb}, ok, nil

	case rules.Is:
		v, err := builtin.Eval(renameExpr(n.Expr, sc), b)
		if err != nil {
			return s.branchFailure(err)
		}
		nb, ok := term.Unify(term.Rename(n.Target, sc), v, b)
		return state{goals: rest, b: nb}, ok, nil

	case rules.Compare:
		ok, err := builtin.Compare(n.Op, renameExpr(n.Left, sc), renameExpr(n.Right, sc), b)
		if err != nil {
			return s.branchFailure(err)
		}
		return state{goals: rest, b: b}, ok, nil

	case rules.IfThenElse:
		f := &ifThenElse{depth: len(s.stack), els: state{goals: push(n.Else, sc, rest), b: b}}
		s.stack = append(s.stack, f)
		return state{goals: push(n.Cond, sc, pushMark(f, push(n.Then, sc, rest))), b: b}, true, nil

	case rules.Count:
		f := &count{result: term.Rename(n.Result, sc), rest: rest, b: b}
		s.stack = append(s.stack, f)
		return state{goals: push(n.Goal, sc, pushMark(f, nil)), b: b}, true, nil

	case rules.Call:
		return s.call(n, sc, rest, b)
	}
	return state{}, false, fmt.Errorf("%w: unsupported goal %T", internalerr.ErrInvalidRule, g.body)
}

// cut drops every choice point at or above depth.
func (s *search) cut(depth int) {
	for i := depth; i < len(s.stack); i++ {
		s.stack[i] = nil
	}
	s.stack = s.stack[:depth]
}

func (s *search) branchFailure(err error) (state, bool, error) {
	if internalerr.IsBranchFailure(err) {
		s.r.stats.BranchFailures++
		return state{}, false, nil
	}
	return state{}, false, err
}

func (s *search) call(c rules.Call, sc int, rest *goals, b term.Bindings) (state, bool, error) {
	args := make([]term.Term, len(c.Args))
	for i, a := range c.Args {
		args[i] = b.Walk(term.Rename(a, sc))
	}

	e := s.r.e
	if p, ok := e.builtins.Lookup(c.Pred, len(args)); ok {
		out, err := p.Solve(args, b)
		if err != nil {
			return s.branchFailure(err)
		}
		switch len(out) {
		case 0:
			return state{}, false, nil
		case 1:
			return state{goals: rest, b: out[0]}, true, nil
		}
		s.stack = append(s.stack, &each{envs: out[1:], rest: rest})
		return state{goals: rest, b: out[0]}, true, nil
	}

	alt := &callAlternatives{
		args:    args,
		rest:    rest,
		b:       b,
		clauses: e.rules.Clauses(c.Pred, len(args)),
	}
	if e.facts.Exists(c.Pred, len(args)) {
		cur, err := e.facts.Lookup(c.Pred, args)
		if err != nil {
			return state{}, false, err
		}
		alt.cursor = cur
		alt.prefetch()
	} else if len(alt.clauses) == 0 {
		return state{}, false, &internalerr.PredicateError{Name: c.Pred, Arity: len(args)}
	}
	if !alt.exhausted() {
		s.stack = append(s.stack, alt)
	}
	return state{}, false, nil
}

// callAlternatives enumerates the matching facts of a predicate in insertion
// order, then its rule clauses in declaration order.
type callAlternatives struct {
	args    []term.Term
	rest    *goals
	b       term.Bindings
	cursor  *factstore.Cursor
	fact    factstore.Fact
	hasFact bool
	clauses []*rules.Rule
	i       int
}

func (a *callAlternatives) prefetch() {
	a.fact, a.hasFact = a.cursor.Next()
}

func (a *callAlternatives) exhausted() bool {
	return !a.hasFact && a.i >= len(a.clauses)
}

func (a *callAlternatives) next(r *run) (state, bool, error) {
	for a.hasFact {
		f := a.fact
		a.prefetch()
		if err := r.tick(); err != nil {
			return state{}, false, err
		}
		if nb, ok := term.UnifyAll(a.args, f.Args, a.b); ok {
			return state{goals: a.rest, b: nb}, true, nil
		}
	}
	for a.i < len(a.clauses) {
		cl := a.clauses[a.i]
		a.i++
		if err := r.tick(); err != nil {
			return state{}, false, err
		}
		scope := r.fresh()
		if nb, ok := term.UnifyAll(a.args, term.RenameAll(cl.Params, scope), a.b); ok {
			return state{goals: push(cl.Body, scope, a.rest), b: nb}, true, nil
		}
	}
	return state{}, false, nil
}

// single is the deferred right branch of a disjunction.
type single struct {
	st   state
	used bool
}

func (s *single) next(*run) (state, bool, error) {
	if s.used {
		return state{}, false, nil
	}
	s.used = true
	return s.st, true, nil
}

func (s *single) exhausted() bool { return s.used }

// ifThenElse sits below the choice points of its condition. Reaching its
// mark commits to the first answer of the condition by cutting back to it;
// backtracking into it means the condition had no answer.
type ifThenElse struct {
	depth int
	els   state
	used  bool
}

func (f *ifThenElse) reached(s *search, rest *goals, b term.Bindings) (state, bool) {
	s.cut(f.depth)
	return state{goals: rest, b: b}, true
}

func (f *ifThenElse) next(*run) (state, bool, error) {
	if f.used {
		return state{}, false, nil
	}
	f.used = true
	return f.els, true, nil
}

func (f *ifThenElse) exhausted() bool { return f.used }

// count sits below the choice points of its goal. Each answer of the goal
// reaches its mark, which tallies and fails; once the goal is exhausted
// backtracking resumes the continuation with the total bound.
type count struct {
	result term.Term
	rest   *goals
	b      term.Bindings
	n      int64
	done   bool
}

func (f *count) reached(*search, *goals, term.Bindings) (state, bool) {
	f.n++
	return state{}, false
}

func (f *count) next(*run) (state, bool, error) {
	if f.done {
		return state{}, false, nil
	}
	f.done = true
	nb, ok := term.Unify(f.result, term.Int(f.n), f.b)
	if !ok {
		return state{}, false, nil
	}
	return state{goals: f.rest, b: nb}, true, nil
}

func (f *count) exhausted() bool { return f.done }

// each replays the remaining answers of a built-in.
type each struct {
	envs []term.Bindings
	rest *goals
}

func (e *each) next(*run) (state, bool, error) {
	if len(e.envs) == 0 {
		return state{}, false, nil
	}
	b := e.envs[0]
	e.envs = e.envs[1:]
	return state{goals: e.rest, b: b}, true, nil
}

func (e *each) exhausted() bool { return len(e.envs) == 0 }

func renameExpr(x rules.Expr, scope int) rules.Expr {
	if scope == 0 {
		return x
	}
	switch n := x.(type) {
	case rules.Leaf:
		return rules.Leaf{Term: term.Rename(n.Term, scope)}
	case rules.BinOp:
		return rules.BinOp{Op: n.Op, Left: renameExpr(n.Left, scope), Right: renameExpr(n.Right, scope)}
	case rules.Func:
		args := make([]rules.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = renameExpr(a, scope)
		}
		return rules.Func{Name: n.Name, Args: args}
	}
	return x
}
