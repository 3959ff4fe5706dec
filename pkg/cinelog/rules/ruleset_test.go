package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

type arityMap map[string]int

func (m arityMap) Arity(name string) (int, bool) {
	n, ok := m[name]
	return n, ok
}

func TestCompileRejectsUnboundHeadVariable(t *testing.T) {
	_, err := Compile("shares", []term.Term{V("M1"), V("M2")},
		P("genre", V("M1"), V("G")))
	if !errors.Is(err, internalerr.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
	if !strings.Contains(err.Error(), "M2") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestCompileAllowsUnderscoreAndArithmeticHelpers(t *testing.T) {
	if _, err := Compile("has_genre", []term.Term{V("M"), V("_Unused")}, P("genre", V("M"), V("_G"))); err != nil {
		t.Errorf("underscore head var: %v", err)
	}

	// safe_div(X, Y, Z) :- Y =\= 0, Z is X / Y.
	_, err := Compile("safe_div", []term.Term{V("X"), V("Y"), V("Z")},
		Conj(Cmp(X(V("Y")), OpNE, N(0)), Let(V("Z"), Div(X(V("X")), X(V("Y"))))))
	if err != nil {
		t.Errorf("arithmetic helper: %v", err)
	}
}

func TestCompileHeadBoundThroughCountAndIs(t *testing.T) {
	_, err := Compile("common_genres", []term.Term{V("M1"), V("M2"), V("C")},
		Conj(
			P("movie", V("M1")),
			P("movie", V("M2")),
			Dif(V("M1"), V("M2")),
			CountOf(Conj(P("genre", V("M1"), V("G")), P("genre", V("M2"), V("G"))), V("C")),
		))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = Compile("double", []term.Term{V("M"), V("D")},
		Conj(P("budget", V("M"), V("B")), Let(V("D"), Mul(X(V("B")), N(2)))))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileMalformedBodies(t *testing.T) {
	head := []term.Term{V("M")}
	tests := []struct {
		name string
		body Body
	}{
		{"nil conjunct", And{Left: P("movie", V("M")), Right: nil}},
		{"empty predicate", Conj(P("movie", V("M")), P(""))},
		{"bad relop", Conj(P("movie", V("M")), Compare{Op: "<>", Left: N(1), Right: N(2)})},
		{"bad arith op", Conj(P("movie", V("M")), Let(V("X"), BinOp{Op: "%", Left: N(1), Right: N(2)}))},
		{"unknown function", Conj(P("movie", V("M")), Let(V("X"), Func{Name: "sqrt", Args: []Expr{N(4)}}))},
		{"function arity", Conj(P("movie", V("M")), Let(V("X"), Func{Name: "max", Args: []Expr{N(4)}}))},
		{"atom in expression", Conj(P("movie", V("M")), Let(V("X"), X(A("ten"))))},
		{"atom is target", Conj(P("movie", V("M")), Let(A("x"), N(1)))},
		{"atom count result", Conj(P("movie", V("M")), CountOf(P("movie", V("_")), A("n")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("probe", head, tt.body)
			if !errors.Is(err, internalerr.ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestRuleSetDeclarationOrderAndArity(t *testing.T) {
	rs := NewRuleSet()
	first, err := rs.Define("sequel_or_prequel", []term.Term{V("A"), V("B")}, P("sequel_pattern", V("A"), V("B")))
	if err != nil {
		t.Fatal(err)
	}
	second, err := rs.Define("sequel_or_prequel", []term.Term{V("A"), V("B")}, P("sequel_pattern", V("B"), V("A")))
	if err != nil {
		t.Fatal(err)
	}

	got := rs.Clauses("sequel_or_prequel", 2)
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("clauses out of order: %v", got)
	}
	if rs.Clauses("sequel_or_prequel", 3) != nil {
		t.Error("wrong arity should return no clauses")
	}

	_, err = rs.Define("sequel_or_prequel", []term.Term{V("A")}, P("movie", V("A")))
	if !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Errorf("expected ErrArityMismatch, got %v", err)
	}
	if rs.Len() != 2 {
		t.Errorf("Len = %d", rs.Len())
	}
}

func TestRuleSetFreeze(t *testing.T) {
	rs := NewRuleSet()
	rs.Freeze()
	_, err := rs.Define("movie", []term.Term{V("M")}, P("movie_id", V("M"), V("_")))
	if !errors.Is(err, internalerr.ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
}

func TestLinkReportsUnresolvedCalls(t *testing.T) {
	rs := NewRuleSet()
	_, _ = rs.Define("same_director", []term.Term{V("A"), V("B")},
		Conj(P("director", V("A"), V("D")), P("director", V("B"), V("D")), Dif(V("A"), V("B"))))
	_, _ = rs.Define("same_writer", []term.Term{V("A"), V("B")},
		Conj(P("writer", V("A"), V("W")), P("writer", V("B"), V("W"))))
	_, _ = rs.Define("pair", []term.Term{V("A"), V("B")},
		P("same_director", V("A"), V("B"), V("C")))

	err := rs.Link(arityMap{"director": 2})
	if err == nil {
		t.Fatal("expected link errors")
	}
	var pe *internalerr.PredicateError
	if !errors.As(err, &pe) || pe.Name != "writer" {
		t.Errorf("expected writer/2 to be unknown, got %v", err)
	}
	if !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Errorf("expected an arity error for same_director/3, got %v", err)
	}

	ok := NewRuleSet()
	_, _ = ok.Define("same_director", []term.Term{V("A"), V("B")},
		Conj(P("director", V("A"), V("D")), P("director", V("B"), V("D"))))
	if err := ok.Link(arityMap{"director": 2}); err != nil {
		t.Errorf("Link: %v", err)
	}
}

func TestRuleString(t *testing.T) {
	r, err := Compile("genre_similarity_score", []term.Term{V("M1"), V("M2"), V("S")},
		Conj(
			P("common_genres", V("M1"), V("M2"), V("C")),
			Bands(Eq(V("S"), I(1)),
				Band{When: Cmp(X(V("C")), OpGE, N(4)), Then: Eq(V("S"), I(5))},
				Band{When: Cmp(X(V("C")), OpEQ, N(3)), Then: Eq(V("S"), I(4))},
			),
		))
	if err != nil {
		t.Fatal(err)
	}
	want := "genre_similarity_score(M1, M2, S) :- common_genres(M1, M2, C), " +
		"(C >= 4 -> S = 5 ; C =:= 3 -> S = 4 ; S = 1)."
	if diff := cmp.Diff(want, r.String()); diff != "" {
		t.Errorf("String (-want +got):\n%s", diff)
	}

	fact, _ := Compile("truth", nil, nil)
	if fact.String() != "truth." {
		t.Errorf("bodiless rule = %q", fact.String())
	}
}

func TestVarsOrder(t *testing.T) {
	b := Conj(P("genre", V("M"), V("G")), Dif(V("M"), V("N")), P("genre", V("N"), V("_G2")), Let(V("X"), Add(X(V("Y")), N(1))))
	got := Vars(b)
	want := []term.Var{V("M"), V("G"), V("N"), V("X"), V("Y")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Vars (-want +got):\n%s", diff)
	}
}
