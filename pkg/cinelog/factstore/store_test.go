package factstore

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

func atoms(ss ...string) []term.Term {
	out := make([]term.Term, len(ss))
	for i, s := range ss {
		out[i] = term.Atom(s)
	}
	return out
}

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	facts := [][2]string{
		{"alpha", "action"},
		{"alpha", "drama"},
		{"beta", "action"},
		{"beta", "drama"},
		{"beta", "comedy"},
		{"alpha", "action"}, // duplicate on purpose
	}
	for _, f := range facts {
		if err := s.Add("genre", 2, atoms(f[0], f[1])); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return s
}

func TestLookupWildcardReturnsInsertionOrder(t *testing.T) {
	s := seed(t)

	c, err := s.Lookup("genre", []term.Term{term.NewVar("M"), term.NewVar("G")})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	got := c.Collect()

	if diff := cmp.Diff(s.All("genre"), got); diff != "" {
		t.Errorf("wildcard lookup differs from insertion order (-want +got):\n%s", diff)
	}
	if len(got) != 6 {
		t.Errorf("expected 6 facts including the duplicate, got %d", len(got))
	}
}

func TestLookupPartialInstantiation(t *testing.T) {
	s := seed(t)

	tests := []struct {
		name    string
		pattern []term.Term
		want    []Fact
	}{
		{
			name:    "first bound",
			pattern: []term.Term{term.Atom("beta"), term.NewVar("G")},
			want: []Fact{
				{Predicate: "genre", Args: atoms("beta", "action")},
				{Predicate: "genre", Args: atoms("beta", "drama")},
				{Predicate: "genre", Args: atoms("beta", "comedy")},
			},
		},
		{
			name:    "second bound",
			pattern: []term.Term{term.NewVar("M"), term.Atom("drama")},
			want: []Fact{
				{Predicate: "genre", Args: atoms("alpha", "drama")},
				{Predicate: "genre", Args: atoms("beta", "drama")},
			},
		},
		{
			name:    "fully bound",
			pattern: atoms("beta", "comedy"),
			want:    []Fact{{Predicate: "genre", Args: atoms("beta", "comedy")}},
		},
		{
			name:    "no match",
			pattern: []term.Term{term.Atom("gamma"), term.NewVar("G")},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.Lookup("genre", tt.pattern)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if diff := cmp.Diff(tt.want, c.Collect()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestLookupArityThree(t *testing.T) {
	s := New()
	if err := s.Add("actor_position", 3, []term.Term{term.Atom("avatar"), term.Atom("cch_pounder"), term.Int(1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("actor_position", 3, []term.Term{term.Atom("avatar"), term.Atom("joel_david_moore"), term.Int(2)}); err != nil {
		t.Fatal(err)
	}

	c, err := s.Lookup("actor_position", []term.Term{term.NewVar("M"), term.NewVar("A"), term.Int(2)})
	if err != nil {
		t.Fatal(err)
	}
	got := c.Collect()
	if len(got) != 1 || got[0].Args[1] != term.Atom("joel_david_moore") {
		t.Errorf("unexpected result %v", got)
	}
}

func TestArityMismatch(t *testing.T) {
	s := seed(t)

	err := s.Add("genre", 3, []term.Term{term.Atom("a"), term.Atom("b"), term.Atom("c")})
	if !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Errorf("expected ErrArityMismatch, got %v", err)
	}

	err = s.Add("genre", 2, atoms("only-one"))
	if !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Errorf("expected ErrArityMismatch for short tuple, got %v", err)
	}

	_, err = s.Lookup("genre", atoms("alpha"))
	var ae *internalerr.ArityError
	if !errors.As(err, &ae) || ae.Registered != 2 || ae.Got != 1 {
		t.Errorf("expected ArityError{2,1}, got %v", err)
	}
}

func TestAddRejectsVariables(t *testing.T) {
	s := New()
	err := s.Add("genre", 2, []term.Term{term.Atom("alpha"), term.NewVar("G")})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUnknownPredicate(t *testing.T) {
	s := New()
	_, err := s.Lookup("director", atoms("alpha", "x"))
	var pe *internalerr.PredicateError
	if !errors.As(err, &pe) || pe.Name != "director" || pe.Arity != 2 {
		t.Errorf("expected PredicateError director/2, got %v", err)
	}
	if s.Exists("director", 2) {
		t.Error("director/2 should not exist")
	}
}

func TestDeclareAndExists(t *testing.T) {
	s := New()
	if err := s.Declare("keyword", 2); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("keyword", 2) {
		t.Error("declared predicate should exist")
	}
	if s.Exists("keyword", 3) {
		t.Error("keyword/3 should not exist")
	}
	c, err := s.Lookup("keyword", []term.Term{term.NewVar("M"), term.NewVar("K")})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Collect(); len(got) != 0 {
		t.Errorf("declared predicate should be empty, got %v", got)
	}
}

func TestFreezeRejectsWrites(t *testing.T) {
	s := seed(t)
	s.Freeze()
	if err := s.Add("genre", 2, atoms("gamma", "horror")); !errors.Is(err, internalerr.ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
	if s.Count("genre") != 6 {
		t.Errorf("frozen store changed size: %d", s.Count("genre"))
	}
}

func TestFactsAndPredicates(t *testing.T) {
	s := New()
	_ = s.Add("movie_id", 2, []term.Term{term.Atom("avatar"), term.Atom("19995")})
	_ = s.Add("budget", 2, []term.Term{term.Atom("avatar"), term.Int(237000000)})

	keys := s.Predicates()
	want := []Key{{"budget", 2}, {"movie_id", 2}}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("Predicates (-want +got):\n%s", diff)
	}

	facts := s.Facts()
	if len(facts) != 2 || facts[0].Predicate != "movie_id" {
		t.Errorf("Facts should follow registration order, got %v", facts)
	}
	if got := facts[1].String(); got != "budget('avatar',237000000)." {
		t.Errorf("String = %q", got)
	}
}
