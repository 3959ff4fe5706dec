package builtin

import (
	"errors"
	"testing"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	r "github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

func TestEval(t *testing.T) {
	var b term.Bindings
	b, _ = term.Unify(term.NewVar("B1"), term.Int(100), b)
	b, _ = term.Unify(term.NewVar("B2"), term.Int(40), b)

	tests := []struct {
		name string
		expr r.Expr
		want term.Term
	}{
		{"int add", r.Add(r.N(2), r.N(3)), term.Int(5)},
		{"exact division stays int", r.Div(r.N(12), r.N(6)), term.Int(2)},
		{"inexact division", r.Div(r.N(13), r.N(6)), term.Float(13.0 / 6.0)},
		{"weighted score", r.Div(r.Add(r.Add(r.Mul(r.N(3), r.N(3)), r.Mul(r.N(1), r.N(2))), r.Mul(r.N(1), r.N(2))), r.N(6)), term.Float(13.0 / 6.0)},
		{"round half up", r.Round(r.Fl(2.5)), term.Int(3)},
		{"round down", r.Round(r.Div(r.N(13), r.N(6))), term.Int(2)},
		{"clamp", r.Max(r.N(1), r.Min(r.N(5), r.Round(r.Fl(7.4)))), term.Int(5)},
		{"budget ratio", r.Max(r.Div(r.X(term.NewVar("B1")), r.X(term.NewVar("B2"))), r.Div(r.X(term.NewVar("B2")), r.X(term.NewVar("B1")))), term.Float(2.5)},
		{"abs", r.Abs(r.Sub(r.Fl(6.5), r.Fl(7.25))), term.Float(0.75)},
		{"mixed", r.Add(r.N(1), r.Fl(0.5)), term.Float(1.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, b)
			if err != nil {
				t.Fatalf("Eval(%s): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%s) = %v (%T), want %v (%T)", tt.expr, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEvalBranchFailures(t *testing.T) {
	var b term.Bindings
	b, _ = term.Unify(term.NewVar("T"), term.Atom("avatar"), b)

	_, err := Eval(r.Div(r.N(1), r.N(0)), b)
	if !errors.Is(err, internalerr.ErrArithmetic) {
		t.Errorf("int division by zero: %v", err)
	}
	_, err = Eval(r.Div(r.Fl(1), r.Fl(0)), b)
	if !errors.Is(err, internalerr.ErrArithmetic) {
		t.Errorf("float division by zero: %v", err)
	}
	_, err = Eval(r.Add(r.X(term.NewVar("Unbound")), r.N(1)), b)
	if !errors.Is(err, internalerr.ErrUnboundVariable) {
		t.Errorf("unbound: %v", err)
	}
	_, err = Eval(r.Add(r.X(term.NewVar("T")), r.N(1)), b)
	if !errors.Is(err, internalerr.ErrArithmetic) {
		t.Errorf("atom operand: %v", err)
	}
	if !internalerr.IsBranchFailure(err) {
		t.Error("arithmetic errors should be branch failures")
	}
}

func TestCompareIsNumeric(t *testing.T) {
	var b term.Bindings
	tests := []struct {
		l, rr r.Expr
		op    r.RelOp
		want  bool
	}{
		{r.N(3), r.Fl(3), r.OpEQ, true},
		{r.N(3), r.N(4), r.OpLT, true},
		{r.N(4), r.N(4), r.OpGE, true},
		{r.N(4), r.N(4), r.OpGT, false},
		{r.Fl(1.25), r.Fl(1.5), r.OpLE, true},
		{r.N(2), r.N(3), r.OpNE, true},
	}
	for _, tt := range tests {
		got, err := Compare(tt.op, tt.l, tt.rr, b)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s %s %s = %v, want %v", tt.l, tt.op, tt.rr, got, tt.want)
		}
	}
}

func TestSequelBuiltins(t *testing.T) {
	reg := Default()
	seq, ok := reg.Lookup("sequel_atoms", 2)
	if !ok {
		t.Fatal("sequel_atoms/2 missing")
	}
	num, ok := reg.Lookup("numbered_suffix", 2)
	if !ok {
		t.Fatal("numbered_suffix/2 missing")
	}

	tests := []struct {
		pred Predicate
		a, b string
		want bool
	}{
		{seq, "toy_story_2", "toy_story_3", true},
		{seq, "toy_story", "toy_story_3", false},
		{seq, "up_2", "up_3", false}, // prefix too short
		{seq, "toy_story_2", "toy_story_2", false},
		{num, "alien", "alien_3", true},
		{num, "alien", "alien_resurrection", false},
		{num, "alien", "aliens", false},
		{num, "alien_3", "alien", false},
	}
	var b term.Bindings
	for _, tt := range tests {
		got, err := tt.pred.Solve([]term.Term{term.Atom(tt.a), term.Atom(tt.b)}, b)
		if err != nil {
			t.Fatalf("%s(%s, %s): %v", tt.pred.Name, tt.a, tt.b, err)
		}
		if (len(got) == 1) != tt.want {
			t.Errorf("%s(%s, %s) = %v, want %v", tt.pred.Name, tt.a, tt.b, len(got) == 1, tt.want)
		}
	}

	_, err := seq.Solve([]term.Term{term.NewVar("M"), term.Atom("x")}, b)
	if !errors.Is(err, internalerr.ErrUnboundVariable) {
		t.Errorf("expected ErrUnboundVariable, got %v", err)
	}
}

func TestNonvar(t *testing.T) {
	reg := Default()
	p, _ := reg.Lookup("nonvar", 1)
	var b term.Bindings
	if got, _ := p.Solve([]term.Term{term.NewVar("X")}, b); len(got) != 0 {
		t.Error("nonvar(X) should fail while X is unbound")
	}
	b, _ = term.Unify(term.NewVar("X"), term.Atom("a"), b)
	if got, _ := p.Solve([]term.Term{term.NewVar("X")}, b); len(got) != 1 {
		t.Error("nonvar(X) should hold once X is bound")
	}
	if _, ok := reg.Arity("nonvar"); !ok {
		t.Error("Arity(nonvar) missing")
	}
	if err := reg.Register(Predicate{Name: "nonvar", Arity: 2, Solve: nonvar}); !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Errorf("re-registering nonvar: %v", err)
	}
}
