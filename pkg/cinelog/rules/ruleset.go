package rules

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Rule is one clause of a derived predicate: Name(Params...) :- Body.
type Rule struct {
	Name   string
	Params []term.Term
	Body   Body
}

// Key returns the head predicate key.
func (r *Rule) Key() factstore.Key { return factstore.Key{Name: r.Name, Arity: len(r.Params)} }

// String renders the rule in clause syntax.
func (r *Rule) String() string {
	head := Call{Pred: r.Name, Args: r.Params}.String()
	if _, ok := r.Body.(True); ok {
		return head + "."
	}
	return head + " :- " + r.Body.String() + "."
}

// Compile validates a rule definition and returns the executable clause.
//
// Every head variable must occur in a positive body goal (a call, a
// unification, an `is` target or a count result) unless its name starts
// with an underscore or the body contains no calls at all.
func Compile(name string, params []term.Term, body Body) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty rule name", internalerr.ErrInvalidRule)
	}
	key := factstore.Key{Name: name, Arity: len(params)}
	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: %s: head argument %d is empty", internalerr.ErrInvalidRule, key, i+1)
		}
	}
	if body == nil {
		body = True{}
	}
	if err := validateBody(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidRule, key, err)
	}

	if len(Calls(body)) > 0 {
		bound := positiveVars(body)
		for _, p := range params {
			v, ok := p.(term.Var)
			if !ok || strings.HasPrefix(v.Name, "_") {
				continue
			}
			if !bound[v] {
				return nil, fmt.Errorf("%w: %s: head variable %s is not bound by the body", internalerr.ErrInvalidRule, key, v.Name)
			}
		}
	}

	cp := make([]term.Term, len(params))
	copy(cp, params)
	return &Rule{Name: name, Params: cp, Body: body}, nil
}

// ValidateGoal checks that a query goal is well formed.
func ValidateGoal(b Body) error {
	if err := validateBody(b); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidInput, err)
	}
	return nil
}

func validateBody(b Body) error {
	switch n := b.(type) {
	case nil:
		return fmt.Errorf("empty goal")
	case Call:
		if n.Pred == "" {
			return fmt.Errorf("call with empty predicate name")
		}
		for i, a := range n.Args {
			if a == nil {
				return fmt.Errorf("%s: argument %d is empty", n.Pred, i+1)
			}
		}
	case And:
		if err := validateBody(n.Left); err != nil {
			return err
		}
		return validateBody(n.Right)
	case Or:
		if err := validateBody(n.Left); err != nil {
			return err
		}
		return validateBody(n.Right)
	case IfThenElse:
		for _, part := range []Body{n.Cond, n.Then, n.Else} {
			if err := validateBody(part); err != nil {
				return err
			}
		}
	case Neq:
		if n.A == nil || n.B == nil {
			return fmt.Errorf("dif with empty operand")
		}
	case Unify:
		if n.A == nil || n.B == nil {
			return fmt.Errorf("unification with empty operand")
		}
	case Is:
		if n.Target == nil || (!term.IsVar(n.Target) && !term.IsNumber(n.Target)) {
			return fmt.Errorf("is/2 target must be a variable or a number, got %v", n.Target)
		}
		return validateExpr(n.Expr)
	case Compare:
		if !validRelOp(n.Op) {
			return fmt.Errorf("unknown comparison %q", n.Op)
		}
		if err := validateExpr(n.Left); err != nil {
			return err
		}
		return validateExpr(n.Right)
	case Count:
		if n.Result == nil || (!term.IsVar(n.Result) && !term.IsNumber(n.Result)) {
			return fmt.Errorf("count result must be a variable or a number, got %v", n.Result)
		}
		return validateBody(n.Goal)
	case True, Fail:
	default:
		return fmt.Errorf("unsupported goal %T", b)
	}
	return nil
}

func positiveVars(b Body) map[term.Var]bool {
	out := make(map[term.Var]bool)
	mark := func(ts ...term.Term) {
		for _, t := range ts {
			if v, ok := t.(term.Var); ok {
				out[v] = true
			}
		}
	}
	Walk(b, func(n Body) {
		switch n := n.(type) {
		case Call:
			mark(n.Args...)
		case Unify:
			mark(n.A, n.B)
		case Is:
			mark(n.Target)
		case Count:
			mark(n.Result)
		}
	})
	return out
}

// Resolver answers whether a predicate outside the rule set is known, such
// as a fact predicate or a built-in.
type Resolver interface {
	Arity(name string) (int, bool)
}

// RuleSet holds compiled rules keyed by head predicate, in declaration
// order. Multiple rules with the same head act as alternatives.
type RuleSet struct {
	mu     sync.RWMutex
	byName map[string][]*Rule
	order  []*Rule
	frozen bool
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{byName: make(map[string][]*Rule)}
}

// Add registers a compiled rule after any rules already defined for the same
// head.
func (rs *RuleSet) Add(r *Rule) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.frozen {
		return internalerr.ErrFrozen
	}
	if existing := rs.byName[r.Name]; len(existing) > 0 && len(existing[0].Params) != len(r.Params) {
		return &internalerr.ArityError{Name: r.Name, Registered: len(existing[0].Params), Got: len(r.Params)}
	}
	rs.byName[r.Name] = append(rs.byName[r.Name], r)
	rs.order = append(rs.order, r)
	return nil
}

// Define compiles and adds a rule.
func (rs *RuleSet) Define(name string, params []term.Term, body Body) (*Rule, error) {
	r, err := Compile(name, params, body)
	if err != nil {
		return nil, err
	}
	if err := rs.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Clauses returns the rules for name/arity in declaration order.
func (rs *RuleSet) Clauses(name string, arity int) []*Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	cl := rs.byName[name]
	if len(cl) == 0 || len(cl[0].Params) != arity {
		return nil
	}
	return cl
}

// Exists reports whether at least one rule defines name/arity.
func (rs *RuleSet) Exists(name string, arity int) bool {
	return len(rs.Clauses(name, arity)) > 0
}

// Arity returns the head arity of name.
func (rs *RuleSet) Arity(name string) (int, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	cl := rs.byName[name]
	if len(cl) == 0 {
		return 0, false
	}
	return len(cl[0].Params), true
}

// Rules returns all rules in declaration order.
func (rs *RuleSet) Rules() []*Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]*Rule, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.order)
}

// Freeze makes the rule set read-only.
func (rs *RuleSet) Freeze() {
	rs.mu.Lock()
	rs.frozen = true
	rs.mu.Unlock()
}

// Link checks that every call in every rule body refers to a predicate
// defined here or known to external, with the right arity. All problems are
// reported together.
func (rs *RuleSet) Link(external Resolver) error {
	var errs []error
	for _, r := range rs.Rules() {
		for _, c := range Calls(r.Body) {
			if err := rs.CheckCall(c, external); err != nil {
				errs = append(errs, fmt.Errorf("rule %s: %w", r.Key(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// CheckCall verifies that c resolves to a known predicate.
func (rs *RuleSet) CheckCall(c Call, external Resolver) error {
	arity, ok := rs.Arity(c.Pred)
	if !ok && external != nil {
		arity, ok = external.Arity(c.Pred)
	}
	if !ok {
		return &internalerr.PredicateError{Name: c.Pred, Arity: len(c.Args)}
	}
	if arity != len(c.Args) {
		return &internalerr.ArityError{Name: c.Pred, Registered: arity, Got: len(c.Args)}
	}
	return nil
}
