package rules

import (
	"fmt"
	"strings"

	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Expr is an arithmetic expression.
type Expr interface {
	String() string
	isExpr()
}

// Leaf is a number or a variable expected to be bound to a number.
type Leaf struct{ Term term.Term }

// BinOp is Left Op Right for Op in + - * /.
type BinOp struct {
	Op          ArithOp
	Left, Right Expr
}

// Func applies one of the arithmetic functions max, min, abs, round.
type Func struct {
	Name string
	Args []Expr
}

func (Leaf) isExpr()  {}
func (BinOp) isExpr() {}
func (Func) isExpr()  {}

func (l Leaf) String() string { return l.Term.String() }

func (b BinOp) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

func (f Func) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// ArithOp is a binary arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "+"
	OpSub ArithOp = "-"
	OpMul ArithOp = "*"
	OpDiv ArithOp = "/"
)

// RelOp is a numeric comparison operator, spelled as in clause syntax.
type RelOp string

const (
	OpLT RelOp = "<"
	OpGT RelOp = ">"
	OpLE RelOp = "=<"
	OpGE RelOp = ">="
	OpEQ RelOp = "=:="
	OpNE RelOp = "=\\="
)

// funcArity lists the supported arithmetic functions.
var funcArity = map[string]int{
	"max":   2,
	"min":   2,
	"abs":   1,
	"round": 1,
}

// FuncArity returns the arity of a supported arithmetic function.
func FuncArity(name string) (int, bool) {
	n, ok := funcArity[name]
	return n, ok
}

func validRelOp(op RelOp) bool {
	switch op {
	case OpLT, OpGT, OpLE, OpGE, OpEQ, OpNE:
		return true
	}
	return false
}

func validArithOp(op ArithOp) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// ExprVars returns the variables referenced by e.
func ExprVars(e Expr) []term.Term {
	var out []term.Term
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Leaf:
			if term.IsVar(n.Term) {
				out = append(out, n.Term)
			}
		case BinOp:
			walk(n.Left)
			walk(n.Right)
		case Func:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}

func validateExpr(e Expr) error {
	switch n := e.(type) {
	case nil:
		return fmt.Errorf("nil expression")
	case Leaf:
		if n.Term == nil {
			return fmt.Errorf("empty leaf")
		}
		if !term.IsVar(n.Term) && !term.IsNumber(n.Term) {
			return fmt.Errorf("non-numeric constant %s in expression", n.Term)
		}
	case BinOp:
		if !validArithOp(n.Op) {
			return fmt.Errorf("unknown arithmetic operator %q", n.Op)
		}
		if err := validateExpr(n.Left); err != nil {
			return err
		}
		return validateExpr(n.Right)
	case Func:
		want, ok := funcArity[n.Name]
		if !ok {
			return fmt.Errorf("unknown arithmetic function %q", n.Name)
		}
		if len(n.Args) != want {
			return fmt.Errorf("%s expects %d arguments, got %d", n.Name, want, len(n.Args))
		}
		for _, a := range n.Args {
			if err := validateExpr(a); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported expression %T", e)
	}
	return nil
}
