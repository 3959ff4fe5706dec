// Package builtin evaluates arithmetic expressions and provides the built-in
// predicates available to rule bodies.
package builtin

import (
	"fmt"
	"math"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Eval evaluates e under b and returns an Int or a Float.
//
// Integer operands stay integers for + - * and for an exact /; any other
// division yields a Float. round always yields an Int. Unbound variables
// return ErrUnboundVariable, non-numeric operands and division by zero
// return ErrArithmetic.
func Eval(e rules.Expr, b term.Bindings) (term.Term, error) {
	switch n := e.(type) {
	case rules.Leaf:
		return operand(n.Term, b)
	case rules.BinOp:
		l, err := Eval(n.Left, b)
		if err != nil {
			return nil, err
		}
		r, err := Eval(n.Right, b)
		if err != nil {
			return nil, err
		}
		return binop(n.Op, l, r)
	case rules.Func:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(a, b)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return apply(n.Name, args)
	}
	return nil, fmt.Errorf("%w: unsupported expression %T", internalerr.ErrArithmetic, e)
}

// Compare evaluates both sides and applies op numerically, so 3 =:= 3.0.
func Compare(op rules.RelOp, left, right rules.Expr, b term.Bindings) (bool, error) {
	l, err := Eval(left, b)
	if err != nil {
		return false, err
	}
	r, err := Eval(right, b)
	if err != nil {
		return false, err
	}
	c := cmpNum(l, r)
	switch op {
	case rules.OpLT:
		return c < 0, nil
	case rules.OpGT:
		return c > 0, nil
	case rules.OpLE:
		return c <= 0, nil
	case rules.OpGE:
		return c >= 0, nil
	case rules.OpEQ:
		return c == 0, nil
	case rules.OpNE:
		return c != 0, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %q", internalerr.ErrArithmetic, op)
}

func operand(t term.Term, b term.Bindings) (term.Term, error) {
	t = b.Walk(t)
	switch v := t.(type) {
	case term.Int, term.Float:
		return v, nil
	case term.Var:
		return nil, fmt.Errorf("%w: %s in arithmetic", internalerr.ErrUnboundVariable, v)
	}
	return nil, fmt.Errorf("%w: %s is not a number", internalerr.ErrArithmetic, t)
}

func binop(op rules.ArithOp, l, r term.Term) (term.Term, error) {
	li, lInt := l.(term.Int)
	ri, rInt := r.(term.Int)
	if lInt && rInt {
		switch op {
		case rules.OpAdd:
			return li + ri, nil
		case rules.OpSub:
			return li - ri, nil
		case rules.OpMul:
			return li * ri, nil
		case rules.OpDiv:
			if ri == 0 {
				return nil, fmt.Errorf("%w: division by zero", internalerr.ErrArithmetic)
			}
			if li%ri == 0 {
				return li / ri, nil
			}
			return term.Float(float64(li) / float64(ri)), nil
		}
	}

	lf, _ := term.ToFloat(l)
	rf, _ := term.ToFloat(r)
	var out float64
	switch op {
	case rules.OpAdd:
		out = lf + rf
	case rules.OpSub:
		out = lf - rf
	case rules.OpMul:
		out = lf * rf
	case rules.OpDiv:
		if rf == 0 {
			return nil, fmt.Errorf("%w: division by zero", internalerr.ErrArithmetic)
		}
		out = lf / rf
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", internalerr.ErrArithmetic, op)
	}
	return finite(out)
}

func apply(name string, args []term.Term) (term.Term, error) {
	if want, ok := rules.FuncArity(name); !ok || want != len(args) {
		return nil, fmt.Errorf("%w: %s/%d is not an arithmetic function", internalerr.ErrArithmetic, name, len(args))
	}
	switch name {
	case "max":
		if cmpNum(args[1], args[0]) > 0 {
			return args[1], nil
		}
		return args[0], nil
	case "min":
		if cmpNum(args[1], args[0]) < 0 {
			return args[1], nil
		}
		return args[0], nil
	case "abs":
		switch v := args[0].(type) {
		case term.Int:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case term.Float:
			return term.Float(math.Abs(float64(v))), nil
		}
	case "round":
		switch v := args[0].(type) {
		case term.Int:
			return v, nil
		case term.Float:
			r := math.Round(float64(v))
			if math.IsNaN(r) || math.IsInf(r, 0) || math.Abs(r) > math.MaxInt64 {
				return nil, fmt.Errorf("%w: cannot round %v", internalerr.ErrArithmetic, v)
			}
			return term.Int(int64(r)), nil
		}
	}
	return nil, fmt.Errorf("%w: bad operand for %s", internalerr.ErrArithmetic, name)
}

func finite(f float64) (term.Term, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: result is not finite", internalerr.ErrArithmetic)
	}
	return term.Float(f), nil
}

// cmpNum orders two numbers. Both must be Int or Float.
func cmpNum(a, b term.Term) int {
	ai, aInt := a.(term.Int)
	bi, bInt := b.(term.Int)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	af, _ := term.ToFloat(a)
	bf, _ := term.ToFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}
