// Package parse reads the clause syntax used for queries, knowledge-base
// dumps and rule listings.
//
//	goal    := disj
//	disj    := branch (";" branch)*
//	branch  := conj ("->" conj)?
//	conj    := literal ("," literal)*
//	literal := "(" disj ")" | aggregate_all(count, literal, term)
//	         | expr relop expr | term "is" expr | term "=" term
//	         | term "\=" term | name [ "(" term ("," term)* ")" ]
package parse

import (
	"fmt"
	"strconv"

	p "github.com/ijt/goparsify"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

var (
	expr    p.Parser
	literal p.Parser
	disj    p.Parser

	goalRoot   p.Parser
	clauseRoot p.Parser
	factRoot   p.Parser
)

// branch is an intermediate result: a conjunction optionally guarding
// another one with "->".
type branch struct {
	cond, then rules.Body
	guarded    bool
}

// head is the intermediate result of a call-shaped literal.
type head struct {
	name string
	args []term.Term
}

func init() {
	atomName := ident("atom name", isLower)
	varName := ident("variable", func(c byte) bool { return isUpper(c) || c == '_' })

	number := numberLit()
	variable := varName.Map(func(n *p.Result) { n.Result = term.NewVar(n.Token) })
	atom := p.Any(quotedAtom(), atomName).Map(func(n *p.Result) { n.Result = term.Atom(n.Token) })
	argTerm := p.Any(number, variable, atom)

	// Arithmetic, loosest binding last.
	funcName := p.Any("max", "min", "abs", "round")
	funcCall := p.Seq(funcName, "(", p.Some(&expr, ","), ")").Map(func(n *p.Result) {
		args := make([]rules.Expr, len(n.Child[2].Child))
		for i, c := range n.Child[2].Child {
			args[i] = c.Result.(rules.Expr)
		}
		n.Result = rules.Func{Name: n.Child[0].Token, Args: args}
	})
	exprGroup := p.Seq("(", &expr, ")").Map(func(n *p.Result) { n.Result = n.Child[1].Result })
	leaf := p.Any(number, variable).Map(func(n *p.Result) { n.Result = rules.Leaf{Term: n.Result.(term.Term)} })
	factor := p.Any(funcCall, exprGroup, leaf)
	product := p.Seq(factor, p.Some(p.Seq(p.Any("*", "/"), factor))).Map(foldArith)
	expr = p.Seq(product, p.Some(p.Seq(p.Any("+", "-"), product))).Map(foldArith)

	relop := p.Any("=:=", `=\=`, "=<", ">=", "<", ">")
	comparison := p.Seq(&expr, relop, &expr).Map(func(n *p.Result) {
		n.Result = rules.Compare{
			Op:    rules.RelOp(n.Child[1].Token),
			Left:  n.Child[0].Result.(rules.Expr),
			Right: n.Child[2].Result.(rules.Expr),
		}
	})
	is := p.Seq(argTerm, "is", &expr).Map(func(n *p.Result) {
		n.Result = rules.Is{Target: n.Child[0].Result.(term.Term), Expr: n.Child[2].Result.(rules.Expr)}
	})
	unify := p.Seq(argTerm, "=", argTerm).Map(func(n *p.Result) {
		n.Result = rules.Unify{A: n.Child[0].Result.(term.Term), B: n.Child[2].Result.(term.Term)}
	})
	neq := p.Seq(argTerm, `\=`, argTerm).Map(func(n *p.Result) {
		n.Result = rules.Neq{A: n.Child[0].Result.(term.Term), B: n.Child[2].Result.(term.Term)}
	})

	argList := p.Seq("(", p.Some(argTerm, ","), ")").Map(func(n *p.Result) {
		args := make([]term.Term, 0, len(n.Child[1].Child))
		for _, c := range n.Child[1].Child {
			args = append(args, c.Result.(term.Term))
		}
		n.Result = args
	})
	callHead := p.Seq(atomName, p.Maybe(argList)).Map(func(n *p.Result) {
		h := head{name: n.Child[0].Token}
		if args, ok := n.Child[1].Result.([]term.Term); ok {
			h.args = args
		}
		n.Result = h
	})
	call := callHead.Map(func(n *p.Result) { n.Result = callBody(n.Result.(head)) })

	count := p.Seq("aggregate_all", "(", "count", ",", &literal, ",", argTerm, ")").Map(func(n *p.Result) {
		n.Result = rules.Count{Goal: n.Child[4].Result.(rules.Body), Result: n.Child[6].Result.(term.Term)}
	})
	group := p.Seq("(", &disj, ")").Map(func(n *p.Result) { n.Result = n.Child[1].Result })

	literal = p.Any(group, count, comparison, is, unify, neq, call)

	conj := p.Seq(&literal, p.Some(p.Seq(",", &literal))).Map(func(n *p.Result) {
		goals := []rules.Body{n.Child[0].Result.(rules.Body)}
		for _, c := range n.Child[1].Child {
			goals = append(goals, c.Child[1].Result.(rules.Body))
		}
		n.Result = rules.Conj(goals...)
	})
	then := p.Seq("->", conj).Map(func(n *p.Result) { n.Result = n.Child[1].Result })
	br := p.Seq(conj, p.Maybe(then)).Map(func(n *p.Result) {
		b := branch{cond: n.Child[0].Result.(rules.Body)}
		if t, ok := n.Child[1].Result.(rules.Body); ok {
			b.guarded = true
			b.then = t
		}
		n.Result = b
	})
	disj = p.Seq(br, p.Some(p.Seq(";", br))).Map(func(n *p.Result) {
		bs := []branch{n.Child[0].Result.(branch)}
		for _, c := range n.Child[1].Child {
			bs = append(bs, c.Child[1].Result.(branch))
		}
		n.Result = foldBranches(bs)
	})

	goalRoot = p.Seq(&disj, p.Maybe(".")).Map(func(n *p.Result) { n.Result = n.Child[0].Result })
	neck := p.Seq(":-", &disj).Map(func(n *p.Result) { n.Result = n.Child[1].Result })
	clauseRoot = p.Seq(callHead, p.Maybe(neck), ".").Map(func(n *p.Result) {
		var body rules.Body = rules.True{}
		if b, ok := n.Child[1].Result.(rules.Body); ok {
			body = b
		}
		n.Result = clause{head: n.Child[0].Result.(head), body: body}
	})
	factRoot = p.Seq(callHead, ".").Map(func(n *p.Result) { n.Result = n.Child[0].Result })
}

type clause struct {
	head head
	body rules.Body
}

// callBody maps the reserved call shapes onto their body nodes.
func callBody(h head) rules.Body {
	switch {
	case h.name == "true" && len(h.args) == 0:
		return rules.True{}
	case h.name == "fail" && len(h.args) == 0:
		return rules.Fail{}
	case h.name == "dif" && len(h.args) == 2:
		return rules.Neq{A: h.args[0], B: h.args[1]}
	}
	return rules.Call{Pred: h.name, Args: h.args}
}

func foldArith(n *p.Result) {
	left := n.Child[0].Result.(rules.Expr)
	for _, c := range n.Child[1].Child {
		left = rules.BinOp{
			Op:    rules.ArithOp(c.Child[0].Token),
			Left:  left,
			Right: c.Child[1].Result.(rules.Expr),
		}
	}
	n.Result = left
}

// foldBranches builds (c1 -> t1 ; c2 -> t2 ; e) chains and plain
// disjunctions, both right-nested.
func foldBranches(bs []branch) rules.Body {
	last := bs[len(bs)-1]
	var out rules.Body
	if last.guarded {
		out = rules.IfThenElse{Cond: last.cond, Then: last.then, Else: rules.Fail{}}
	} else {
		out = last.cond
	}
	for i := len(bs) - 2; i >= 0; i-- {
		b := bs[i]
		if b.guarded {
			out = rules.IfThenElse{Cond: b.cond, Then: b.then, Else: out}
		} else {
			out = rules.Or{Left: b.cond, Right: out}
		}
	}
	return out
}

// Goal parses a query such as
//
//	genre_similarity_score('avatar', M2, S), S >= 3
//
// A trailing period is optional. Each bare "_" becomes a distinct variable.
func Goal(text string) (rules.Body, error) {
	res, err := p.Run(goalRoot, text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse goal: %v", internalerr.ErrInvalidInput, err)
	}
	body := renameAnonymous(res.(rules.Body), new(int))
	if err := rules.ValidateGoal(body); err != nil {
		return nil, err
	}
	return body, nil
}

// Clause parses and compiles a rule written as head :- body. A clause
// without a body is a rule that always holds.
func Clause(text string) (*rules.Rule, error) {
	res, err := p.Run(clauseRoot, text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse clause: %v", internalerr.ErrInvalidRule, err)
	}
	c := res.(clause)
	anon := new(int)
	params := renameAnonymousTerms(c.head.args, anon)
	return rules.Compile(c.head.name, params, renameAnonymous(c.body, anon))
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentChar(c byte) bool {
	return isLower(c) || isUpper(c) || isDigit(c) || c == '_'
}

// ident matches a name whose first byte satisfies first, followed by
// letters, digits and underscores.
func ident(description string, first func(byte) bool) p.Parser {
	return p.NewParser(description, func(ps *p.State, node *p.Result) {
		ps.WS(ps)
		end := ps.Pos
		if end >= len(ps.Input) || !first(ps.Input[end]) {
			ps.ErrorHere(description)
			return
		}
		end++
		for end < len(ps.Input) && isIdentChar(ps.Input[end]) {
			end++
		}
		node.Token = ps.Input[ps.Pos:end]
		ps.Pos = end
	})
}

// quotedAtom matches 'text' with \\ and \' escapes and leaves the unquoted
// text in Token.
func quotedAtom() p.Parser {
	return p.NewParser("quoted atom", func(ps *p.State, node *p.Result) {
		ps.WS(ps)
		if ps.Pos >= len(ps.Input) || ps.Input[ps.Pos] != '\'' {
			ps.ErrorHere("quoted atom")
			return
		}
		var buf []byte
		for end := ps.Pos + 1; end < len(ps.Input); end++ {
			switch c := ps.Input[end]; c {
			case '\\':
				if end+1 >= len(ps.Input) {
					ps.ErrorHere("escaped character")
					return
				}
				end++
				buf = append(buf, ps.Input[end])
			case '\'':
				node.Token = string(buf)
				ps.Pos = end + 1
				return
			default:
				buf = append(buf, c)
			}
		}
		ps.ErrorHere("closing quote")
	})
}

// numberLit matches an optionally signed integer or decimal number. A
// trailing period is left alone so "X = 3." ends the clause.
func numberLit() p.Parser {
	return p.NewParser("number", func(ps *p.State, node *p.Result) {
		ps.WS(ps)
		in := ps.Input
		end := ps.Pos
		if end < len(in) && (in[end] == '-' || in[end] == '+') {
			end++
		}
		digits := end
		for end < len(in) && isDigit(in[end]) {
			end++
		}
		if end == digits {
			ps.ErrorHere("number")
			return
		}
		float := false
		if end+1 < len(in) && in[end] == '.' && isDigit(in[end+1]) {
			float = true
			end++
			for end < len(in) && isDigit(in[end]) {
				end++
			}
		}
		if end < len(in) && (in[end] == 'e' || in[end] == 'E') {
			exp := end + 1
			if exp < len(in) && (in[exp] == '-' || in[exp] == '+') {
				exp++
			}
			if exp < len(in) && isDigit(in[exp]) {
				float = true
				end = exp
				for end < len(in) && isDigit(in[end]) {
					end++
				}
			}
		}

		text := in[ps.Pos:end]
		if float {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				ps.ErrorHere("number")
				return
			}
			node.Result = term.Term(term.Float(f))
		} else {
			i, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				ps.ErrorHere("number")
				return
			}
			node.Result = term.Term(term.Int(i))
		}
		node.Token = text
		ps.Pos = end
	})
}
