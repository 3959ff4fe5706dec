// Package term holds the value model of the knowledge engine: atoms,
// numbers and variables, plus the binding environment used by unification.
package term

import (
	"strconv"
	"strings"
)

// Term is a ground value (Atom, Int, Float) or a Var.
type Term interface {
	// String renders the term in clause syntax: atoms quoted, numbers bare,
	// variables by name.
	String() string
	isTerm()
}

// Atom is a symbolic constant such as a normalized movie title.
type Atom string

// Int is an integer number.
type Int int64

// Float is a floating point number.
type Float float64

// Var is a logic variable. Scope distinguishes the copies of a rule's
// variables between activations; variables written in rule definitions and
// queries carry scope 0.
type Var struct {
	Name  string
	Scope int
}

func (Atom) isTerm()  {}
func (Int) isTerm()   {}
func (Float) isTerm() {}
func (Var) isTerm()   {}

func (a Atom) String() string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(string(a)) + "'"
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (v Var) String() string {
	if v.Scope == 0 {
		return v.Name
	}
	return v.Name + "_" + strconv.Itoa(v.Scope)
}

// NewVar returns a scope-0 variable.
func NewVar(name string) Var { return Var{Name: name} }

// IsVar reports whether t is a variable.
func IsVar(t Term) bool {
	_, ok := t.(Var)
	return ok
}

// IsNumber reports whether t is an Int or a Float.
func IsNumber(t Term) bool {
	switch t.(type) {
	case Int, Float:
		return true
	}
	return false
}

// IsGround reports whether every term in ts is free of variables.
func IsGround(ts ...Term) bool {
	for _, t := range ts {
		if t == nil || IsVar(t) {
			return false
		}
	}
	return true
}

// Equal is structural equality. Int(3) and Float(3) are different terms.
func Equal(a, b Term) bool {
	return a == b
}

// Rename moves a scope-0 variable into scope. Other terms are returned
// unchanged.
func Rename(t Term, scope int) Term {
	if v, ok := t.(Var); ok && v.Scope == 0 {
		return Var{Name: v.Name, Scope: scope}
	}
	return t
}

// RenameAll applies Rename to each element of ts.
func RenameAll(ts []Term, scope int) []Term {
	if scope == 0 {
		return ts
	}
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = Rename(t, scope)
	}
	return out
}

// Display renders a bound value for people: atoms without quotes, numbers
// as numerals, unbound variables as "_".
func Display(t Term) string {
	switch v := t.(type) {
	case Atom:
		return string(v)
	case Int:
		return v.String()
	case Float:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case Var:
		return "_"
	case nil:
		return ""
	}
	return t.String()
}

// ToFloat converts a number to float64.
func ToFloat(t Term) (float64, bool) {
	switch v := t.(type) {
	case Int:
		return float64(v), true
	case Float:
		return float64(v), true
	}
	return 0, false
}
