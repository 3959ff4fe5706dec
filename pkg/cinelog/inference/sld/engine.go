// Package sld implements inference.Engine with depth-first SLD resolution
// over a frozen fact store and rule set.
package sld

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/cinelog/pkg/cinelog/builtin"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/inference"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// DefaultMaxSteps is the resolution-step ceiling used when Options.MaxSteps
// is not positive.
const DefaultMaxSteps = 5_000_000

// Options configures an Engine.
type Options struct {
	MaxSteps int
	Builtins *builtin.Registry // nil means builtin.Default()
	Logger   *zap.Logger
}

// Engine is an immutable knowledge base plus its resolution strategy. It is
// safe for concurrent queries.
type Engine struct {
	facts    *factstore.Store
	rules    *rules.RuleSet
	builtins *builtin.Registry
	maxSteps int
	log      *zap.Logger
}

var _ inference.Engine = (*Engine)(nil)

// New freezes facts and rs and links every rule body against them. Load
// defects (unknown predicates, arity conflicts, built-in names redefined)
// are returned before any query can run.
func New(facts *factstore.Store, rs *rules.RuleSet, opts Options) (*Engine, error) {
	if facts == nil {
		facts = factstore.New()
	}
	if rs == nil {
		rs = rules.NewRuleSet()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Builtins == nil {
		opts.Builtins = builtin.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	facts.Freeze()
	rs.Freeze()

	e := &Engine{
		facts:    facts,
		rules:    rs,
		builtins: opts.Builtins,
		maxSteps: opts.MaxSteps,
		log:      opts.Logger,
	}
	if err := e.checkHeads(); err != nil {
		return nil, err
	}
	if err := rs.Link(e.external()); err != nil {
		return nil, fmt.Errorf("link rules: %w", err)
	}

	e.log.Debug("engine ready",
		zap.Int("facts", facts.Len()),
		zap.Int("predicates", len(facts.Predicates())),
		zap.Int("rules", rs.Len()),
		zap.Int("max_steps", opts.MaxSteps))
	return e, nil
}

func (e *Engine) checkHeads() error {
	var errs []error
	for _, r := range e.rules.Rules() {
		if _, ok := e.builtins.Arity(r.Name); ok {
			errs = append(errs, fmt.Errorf("%w: %s redefines a built-in", internalerr.ErrInvalidRule, r.Key()))
			continue
		}
		if n, ok := e.facts.Arity(r.Name); ok && n != len(r.Params) {
			errs = append(errs, &internalerr.ArityError{Name: r.Name, Registered: n, Got: len(r.Params)})
		}
	}
	for _, k := range e.facts.Predicates() {
		if _, ok := e.builtins.Arity(k.Name); ok {
			errs = append(errs, fmt.Errorf("%w: facts for built-in %s", internalerr.ErrInvalidInput, k))
		}
	}
	return errors.Join(errs...)
}

// resolver resolves names outside the rule set: fact predicates, then
// built-ins.
type resolver struct{ e *Engine }

func (r resolver) Arity(name string) (int, bool) {
	if n, ok := r.e.facts.Arity(name); ok {
		return n, true
	}
	return r.e.builtins.Arity(name)
}

func (e *Engine) external() rules.Resolver { return resolver{e} }

// PredicateExists reports whether name/arity can be called.
func (e *Engine) PredicateExists(name string, arity int) bool {
	if e.facts.Exists(name, arity) || e.rules.Exists(name, arity) {
		return true
	}
	_, ok := e.builtins.Lookup(name, arity)
	return ok
}

// MaxSteps returns the resolution-step ceiling applied to each query.
func (e *Engine) MaxSteps() int { return e.maxSteps }

// Facts returns the frozen fact store.
func (e *Engine) Facts() *factstore.Store { return e.facts }

// Rules returns the frozen rule set.
func (e *Engine) Rules() *rules.RuleSet { return e.rules }

// Solve validates goal and returns its lazy solution sequence. Solutions
// bind the named variables of goal, in order of first appearance.
func (e *Engine) Solve(ctx context.Context, goal rules.Body) (inference.Solutions, error) {
	if err := rules.ValidateGoal(goal); err != nil {
		return nil, err
	}
	for _, c := range rules.Calls(goal) {
		if err := e.rules.CheckCall(c, e.external()); err != nil {
			return nil, err
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	r := &run{ctx: ctx, e: e}
	return &solutions{
		run:    r,
		search: newSearch(r, state{goals: &goals{body: goal}}),
		vars:   rules.Vars(goal),
		goal:   goal,
	}, nil
}

type solutions struct {
	run    *run
	search *search
	vars   []term.Var
	goal   rules.Body
	cur    inference.Solution
	err    error
	done   bool
}

func (s *solutions) Next() bool {
	if s.done {
		return false
	}
	b, ok, err := s.search.next()
	if err != nil {
		s.err, s.done, s.cur = err, true, nil
		if errors.Is(err, internalerr.ErrResourceExhausted) {
			s.run.e.log.Warn("query aborted",
				zap.Stringer("goal", s.goal),
				zap.Int("steps", s.run.stats.Steps),
				zap.Error(err))
		}
		return false
	}
	if !ok {
		s.done, s.cur = true, nil
		return false
	}
	sol := make(inference.Solution, len(s.vars))
	for _, v := range s.vars {
		sol[v.Name] = b.Walk(v)
	}
	s.cur = sol
	s.run.stats.Solutions++
	return true
}

func (s *solutions) Solution() inference.Solution { return s.cur }

func (s *solutions) Err() error { return s.err }

func (s *solutions) Stats() inference.Stats { return s.run.stats }
