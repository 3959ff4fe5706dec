package inference

import (
	"context"
	"sort"
	"strings"

	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Engine answers goals against a fixed knowledge base.
// Implementations must allow concurrent Solve calls.
type Engine interface {
	// Solve starts a query. Solutions are produced lazily as the caller
	// advances the returned sequence. A goal that references an unknown
	// predicate is rejected here, before any search happens.
	Solve(ctx context.Context, goal rules.Body) (Solutions, error)

	// PredicateExists reports whether name/arity is a fact predicate, a
	// rule head or a built-in.
	PredicateExists(name string, arity int) bool
}

// Solutions is a lazy, ordered sequence of answers, used like sql.Rows:
//
//	for sols.Next() {
//	    s := sols.Solution()
//	}
//	if err := sols.Err(); err != nil { ... }
type Solutions interface {
	Next() bool
	Solution() Solution
	Err() error
	Stats() Stats
}

// Solution maps the named variables of a goal to their bound values.
type Solution map[string]term.Term

// Get returns the value bound to name.
func (s Solution) Get(name string) term.Term { return s[name] }

// Display renders the value bound to name for people.
func (s Solution) Display(name string) string { return term.Display(s[name]) }

// String renders the solution as Name = value pairs sorted by name.
func (s Solution) String() string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + " = " + term.Display(s[n])
	}
	return strings.Join(parts, ", ")
}

// Stats describes the work done by a query so far.
type Stats struct {
	Steps          int // clause expansions, including those inside counts
	Solutions      int
	BranchFailures int // branches failed by unbound arithmetic or arithmetic errors
}

// FirstN drains up to n solutions. On error no solutions are returned.
func FirstN(sols Solutions, n int) ([]Solution, error) {
	var out []Solution
	for (n <= 0 || len(out) < n) && sols.Next() {
		out = append(out, sols.Solution())
	}
	if err := sols.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
