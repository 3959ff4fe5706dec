package builtin

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// SolveFunc runs a built-in call. It returns one extended binding
// environment per solution, in order; an empty result means the call fails.
type SolveFunc func(args []term.Term, b term.Bindings) ([]term.Bindings, error)

// Predicate is a built-in predicate implemented in Go.
type Predicate struct {
	Name  string
	Arity int
	Solve SolveFunc
}

// Registry maps predicate names to built-ins.
type Registry struct {
	preds map[string]Predicate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{preds: make(map[string]Predicate)}
}

// Default returns a registry holding the standard built-ins.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []Predicate{
		{Name: "nonvar", Arity: 1, Solve: nonvar},
		{Name: "var", Arity: 1, Solve: isVar},
		{Name: "sequel_atoms", Arity: 2, Solve: sequelAtoms},
		{Name: "numbered_suffix", Arity: 2, Solve: numberedSuffix},
	} {
		_ = r.Register(p)
	}
	return r
}

// Register adds p. Names are unique regardless of arity.
func (r *Registry) Register(p Predicate) error {
	if p.Name == "" || p.Solve == nil {
		return fmt.Errorf("%w: incomplete built-in %q", internalerr.ErrInvalidInput, p.Name)
	}
	if existing, ok := r.preds[p.Name]; ok {
		return &internalerr.ArityError{Name: p.Name, Registered: existing.Arity, Got: p.Arity}
	}
	r.preds[p.Name] = p
	return nil
}

// Lookup returns the built-in name/arity.
func (r *Registry) Lookup(name string, arity int) (Predicate, bool) {
	p, ok := r.preds[name]
	if !ok || p.Arity != arity {
		return Predicate{}, false
	}
	return p, true
}

// Arity returns the arity of the built-in name.
func (r *Registry) Arity(name string) (int, bool) {
	p, ok := r.preds[name]
	return p.Arity, ok
}

// Keys lists the registered built-ins sorted by name.
func (r *Registry) Keys() []factstore.Key {
	out := make([]factstore.Key, 0, len(r.preds))
	for _, p := range r.preds {
		out = append(out, factstore.Key{Name: p.Name, Arity: p.Arity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func one(b term.Bindings) []term.Bindings { return []term.Bindings{b} }

func nonvar(args []term.Term, b term.Bindings) ([]term.Bindings, error) {
	if term.IsVar(b.Walk(args[0])) {
		return nil, nil
	}
	return one(b), nil
}

func isVar(args []term.Term, b term.Bindings) ([]term.Bindings, error) {
	if term.IsVar(b.Walk(args[0])) {
		return one(b), nil
	}
	return nil, nil
}

func atomArgs(args []term.Term, b term.Bindings) ([]string, bool, error) {
	out := make([]string, len(args))
	for i, a := range args {
		switch v := b.Walk(a).(type) {
		case term.Atom:
			out[i] = string(v)
		case term.Var:
			return nil, false, fmt.Errorf("%w: %s", internalerr.ErrUnboundVariable, v)
		default:
			return nil, false, nil
		}
	}
	return out, true, nil
}

// sequelAtoms holds when both atoms share a prefix of more than three
// characters and then continue with two different digits, as in
// toy_story_2 and toy_story_3.
func sequelAtoms(args []term.Term, b term.Bindings) ([]term.Bindings, error) {
	s, ok, err := atomArgs(args, b)
	if !ok {
		return nil, err
	}
	x, y := []rune(s[0]), []rune(s[1])
	p := 0
	for p < len(x) && p < len(y) && x[p] == y[p] {
		p++
	}
	if p <= 3 || p >= len(x) || p >= len(y) {
		return nil, nil
	}
	if unicode.IsDigit(x[p]) && unicode.IsDigit(y[p]) {
		return one(b), nil
	}
	return nil, nil
}

// numberedSuffix holds when Other is Base followed by an underscore and a
// suffix containing at least one digit, as in alien and alien_3.
func numberedSuffix(args []term.Term, b term.Bindings) ([]term.Bindings, error) {
	s, ok, err := atomArgs(args, b)
	if !ok {
		return nil, err
	}
	suffix, found := strings.CutPrefix(s[1], s[0]+"_")
	if !found || !strings.ContainsFunc(suffix, unicode.IsDigit) {
		return nil, nil
	}
	return one(b), nil
}
