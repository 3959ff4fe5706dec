// Package factstore is the in-memory base of ground facts. Facts are grouped
// per predicate in insertion order and indexed on their first argument.
package factstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Key identifies a predicate by name and arity.
type Key struct {
	Name  string
	Arity int
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.Name, k.Arity) }

// Fact is a ground tuple asserted for a predicate.
type Fact struct {
	Predicate string
	Args      []term.Term
}

// Key returns the predicate key of the fact.
func (f Fact) Key() Key { return Key{Name: f.Predicate, Arity: len(f.Args)} }

// String renders the fact in clause syntax, e.g. genre('avatar','action').
func (f Fact) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Predicate + "(" + strings.Join(args, ",") + ")."
}

type relation struct {
	arity   int
	facts   []Fact
	byFirst map[term.Term][]int
}

// Store is an indexed collection of ground facts. It is safe for concurrent
// readers once Freeze has been called; before that, writes must come from a
// single loader.
type Store struct {
	mu     sync.RWMutex
	rels   map[string]*relation
	order  []string
	total  int
	frozen bool
}

// New creates an empty store.
func New() *Store {
	return &Store{rels: make(map[string]*relation)}
}

// Declare registers a predicate without facts, so rules referencing it
// compile even when the data has none.
func (s *Store) Declare(name string, arity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.relationLocked(name, arity)
	return err
}

// Add appends a ground fact.
func (s *Store) Add(name string, arity int, args []term.Term) error {
	if len(args) != arity {
		return &internalerr.ArityError{Name: name, Registered: arity, Got: len(args)}
	}
	if !term.IsGround(args...) {
		return fmt.Errorf("%w: fact %s/%d is not ground", internalerr.ErrInvalidInput, name, arity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.relationLocked(name, arity)
	if err != nil {
		return err
	}
	cp := make([]term.Term, len(args))
	copy(cp, args)
	idx := len(rel.facts)
	rel.facts = append(rel.facts, Fact{Predicate: name, Args: cp})
	if arity > 0 {
		rel.byFirst[cp[0]] = append(rel.byFirst[cp[0]], idx)
	}
	s.total++
	return nil
}

// AddFact appends f using its own length as arity.
func (s *Store) AddFact(f Fact) error {
	return s.Add(f.Predicate, len(f.Args), f.Args)
}

// AddFacts appends facts in order, stopping at the first error.
func (s *Store) AddFacts(facts []Fact) error {
	for _, f := range facts {
		if err := s.AddFact(f); err != nil {
			return fmt.Errorf("add %s: %w", f.Key(), err)
		}
	}
	return nil
}

func (s *Store) relationLocked(name string, arity int) (*relation, error) {
	if s.frozen {
		return nil, internalerr.ErrFrozen
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty predicate name", internalerr.ErrInvalidInput)
	}
	rel, ok := s.rels[name]
	if !ok {
		rel = &relation{arity: arity, byFirst: make(map[term.Term][]int)}
		s.rels[name] = rel
		s.order = append(s.order, name)
		return rel, nil
	}
	if rel.arity != arity {
		return nil, &internalerr.ArityError{Name: name, Registered: rel.arity, Got: arity}
	}
	return rel, nil
}

// Freeze makes the store read-only. Queries may run concurrently afterwards.
func (s *Store) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// Exists reports whether name/arity is registered.
func (s *Store) Exists(name string, arity int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[name]
	return ok && rel.arity == arity
}

// Arity returns the registered arity of name.
func (s *Store) Arity(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[name]
	if !ok {
		return 0, false
	}
	return rel.arity, true
}

// Count returns the number of facts stored for name.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rel, ok := s.rels[name]; ok {
		return len(rel.facts)
	}
	return 0
}

// Len returns the total number of facts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Predicates returns every registered predicate sorted by name.
func (s *Store) Predicates() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.rels))
	for name, rel := range s.rels {
		keys = append(keys, Key{Name: name, Arity: rel.arity})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// All returns the facts of name in insertion order.
func (s *Store) All(name string) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[name]
	if !ok {
		return nil
	}
	out := make([]Fact, len(rel.facts))
	copy(out, rel.facts)
	return out
}

// Facts returns every fact, predicates in registration order and facts in
// insertion order within each predicate.
func (s *Store) Facts() []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fact, 0, s.total)
	for _, name := range s.order {
		out = append(out, s.rels[name].facts...)
	}
	return out
}

// Lookup returns a cursor over the facts of name whose arguments match
// pattern position by position. Variables in pattern are wildcards; the
// caller is expected to have dereferenced bound variables already.
func (s *Store) Lookup(name string, pattern []term.Term) (*Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.rels[name]
	if !ok {
		return nil, &internalerr.PredicateError{Name: name, Arity: len(pattern)}
	}
	if rel.arity != len(pattern) {
		return nil, &internalerr.ArityError{Name: name, Registered: rel.arity, Got: len(pattern)}
	}

	c := &Cursor{facts: rel.facts, pattern: pattern}
	if len(pattern) > 0 && !term.IsVar(pattern[0]) {
		c.index = rel.byFirst[pattern[0]]
		c.indexed = true
	}
	return c, nil
}

// Cursor lazily walks the facts matched by a Lookup. The slices it reads are
// never mutated after Freeze, so a cursor stays valid for the life of the
// store.
type Cursor struct {
	facts   []Fact
	pattern []term.Term
	index   []int
	indexed bool
	pos     int
}

// Next returns the next matching fact.
func (c *Cursor) Next() (Fact, bool) {
	if c == nil {
		return Fact{}, false
	}
	for {
		var f Fact
		if c.indexed {
			if c.pos >= len(c.index) {
				return Fact{}, false
			}
			f = c.facts[c.index[c.pos]]
		} else {
			if c.pos >= len(c.facts) {
				return Fact{}, false
			}
			f = c.facts[c.pos]
		}
		c.pos++
		if matches(c.pattern, f.Args) {
			return f, true
		}
	}
}

// Collect drains the cursor.
func (c *Cursor) Collect() []Fact {
	var out []Fact
	for f, ok := c.Next(); ok; f, ok = c.Next() {
		out = append(out, f)
	}
	return out
}

func matches(pattern, args []term.Term) bool {
	for i, p := range pattern {
		if term.IsVar(p) {
			continue
		}
		if p != args[i] {
			return false
		}
	}
	return true
}
