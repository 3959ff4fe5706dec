// Package query runs goals against an inference engine and collects
// bounded, logged result sets.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/cinelog/pkg/cinelog/inference"
	"github.com/cognicore/cinelog/pkg/cinelog/parse"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// DefaultMaxResults is used when a request does not bound its results.
const DefaultMaxResults = 10

// Options configures a Runner.
type Options struct {
	MaxResults  int // default bound; <= 0 means DefaultMaxResults
	Concurrency int // batch fan-out; <= 0 means unlimited
	Logger      *zap.Logger
}

// Runner executes goals against an engine. It is safe for concurrent use.
type Runner struct {
	engine      inference.Engine
	maxResults  int
	concurrency int
	logger      *zap.Logger
}

// Result is the outcome of one goal.
type Result struct {
	ID        string
	Goal      string
	Vars      []string // goal variables in order of first appearance
	Solutions []inference.Solution
	Stats     inference.Stats
	Duration  time.Duration
}

// NewRunner creates a runner over engine.
func NewRunner(engine inference.Engine, opts Options) *Runner {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		engine:      engine,
		maxResults:  opts.MaxResults,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// Exists reports whether name/arity is defined by a fact, rule or built-in.
func (r *Runner) Exists(name string, arity int) bool {
	return r.engine.PredicateExists(name, arity)
}

// MaxResults is the default result bound.
func (r *Runner) MaxResults() int { return r.maxResults }

// Run collects up to max solutions of goal; max <= 0 uses the default
// bound. An empty result is not an error.
func (r *Runner) Run(ctx context.Context, goal rules.Body, max int) (Result, error) {
	if max <= 0 {
		max = r.maxResults
	}
	res := Result{ID: ulid.Make().String(), Goal: goal.String(), Vars: varNames(goal)}
	start := time.Now()

	sols, err := r.engine.Solve(ctx, goal)
	if err != nil {
		res.Duration = time.Since(start)
		r.failed(res, err)
		return res, err
	}
	res.Solutions, err = inference.FirstN(sols, max)
	res.Stats = sols.Stats()
	res.Duration = time.Since(start)
	if err != nil {
		r.failed(res, err)
		return res, err
	}

	r.logger.Debug("query",
		zap.String("query_id", res.ID),
		zap.String("goal", res.Goal),
		zap.Int("solutions", len(res.Solutions)),
		zap.Int("steps", res.Stats.Steps),
		zap.Int("branch_failures", res.Stats.BranchFailures),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (r *Runner) failed(res Result, err error) {
	r.logger.Warn("query failed",
		zap.String("query_id", res.ID),
		zap.String("goal", res.Goal),
		zap.Int("steps", res.Stats.Steps),
		zap.Error(err))
}

// RunText parses goal and runs it.
func (r *Runner) RunText(ctx context.Context, goal string, max int) (Result, error) {
	body, err := parse.Goal(goal)
	if err != nil {
		return Result{Goal: goal}, err
	}
	return r.Run(ctx, body, max)
}

// Batch runs independent goals concurrently and returns their results in
// input order. The first error cancels the remaining goals.
func (r *Runner) Batch(ctx context.Context, goals []rules.Body, max int) ([]Result, error) {
	results := make([]Result, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, goal := range goals {
		g.Go(func() error {
			res, err := r.Run(gctx, goal, max)
			if err != nil {
				return fmt.Errorf("goal %d (%s): %w", i, goal, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Distinct keeps the first solution for each value bound to name.
func Distinct(sols []inference.Solution, name string) []inference.Solution {
	seen := make(map[term.Term]bool, len(sols))
	out := make([]inference.Solution, 0, len(sols))
	for _, s := range sols {
		v := s.Get(name)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, s)
	}
	return out
}

// Collect drains solutions until max distinct values of name are found.
// max <= 0 means no bound.
func Collect(sols inference.Solutions, name string, max int) ([]inference.Solution, error) {
	seen := make(map[term.Term]bool)
	var out []inference.Solution
	for (max <= 0 || len(out) < max) && sols.Next() {
		s := sols.Solution()
		v := s.Get(name)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, s)
	}
	if err := sols.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func varNames(goal rules.Body) []string {
	var names []string
	for _, v := range rules.Vars(goal) {
		if len(v.Name) > 0 && v.Name[0] == '_' {
			continue
		}
		names = append(names, v.Name)
	}
	return names
}
