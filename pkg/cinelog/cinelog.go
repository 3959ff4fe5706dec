// Package cinelog answers movie-similarity questions by backward-chaining
// the similarity rules over a movie fact base.
package cinelog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/cinelog/pkg/cinelog/builtin"
	"github.com/cognicore/cinelog/pkg/cinelog/cards"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/inference"
	"github.com/cognicore/cinelog/pkg/cinelog/inference/sld"
	"github.com/cognicore/cinelog/pkg/cinelog/ingest"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/parse"
	"github.com/cognicore/cinelog/pkg/cinelog/query"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Cinelog is the query facade over an immutable knowledge base.
type Cinelog struct {
	engine *sld.Engine
	runner *query.Runner
	cards  *cards.Builder
	logger *zap.Logger
}

// Options configures a Cinelog instance
type Options struct {
	Facts *factstore.Store
	// Rules defaults to the similarity library.
	Rules      *rules.RuleSet
	Builtins   *builtin.Registry
	MaxSteps   int
	MaxResults int
	// Concurrency bounds Batch fan-out; <= 0 means unlimited.
	Concurrency int
	Logger      *zap.Logger
}

// Recommendation is one recommended movie.
type Recommendation struct {
	Movie string
	Score int
}

// New freezes the knowledge base and prepares it for querying. Load-time
// defects (unknown predicates in rules, arity conflicts) are reported here.
func New(opts Options) (*Cinelog, error) {
	if opts.Facts == nil {
		return nil, fmt.Errorf("%w: no fact store", internalerr.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := opts.Rules
	if rs == nil {
		var err error
		if rs, err = similarity.NewRuleSet(); err != nil {
			return nil, fmt.Errorf("compile similarity rules: %w", err)
		}
	}

	engine, err := sld.New(opts.Facts, rs, sld.Options{
		MaxSteps: opts.MaxSteps,
		Builtins: opts.Builtins,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("load failed", zap.Error(err))
		return nil, err
	}
	return &Cinelog{
		engine: engine,
		runner: query.NewRunner(engine, query.Options{
			MaxResults:  opts.MaxResults,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		}),
		cards:  cards.New(),
		logger: logger,
	}, nil
}

// Engine returns the underlying evaluator.
func (c *Cinelog) Engine() inference.Engine { return c.engine }

// Query parses goal and returns up to max solutions.
func (c *Cinelog) Query(ctx context.Context, goal string, max int) (query.Result, error) {
	return c.runner.RunText(ctx, goal, max)
}

// QueryGoal returns up to max solutions of an already built goal.
func (c *Cinelog) QueryGoal(ctx context.Context, goal rules.Body, max int) (query.Result, error) {
	return c.runner.Run(ctx, goal, max)
}

// PredicateExists reports whether name/arity can be queried.
func (c *Cinelog) PredicateExists(name string, arity int) bool {
	return c.engine.PredicateExists(name, arity)
}

// AvailableLevels lists the recommendation levels the rule set defines.
func (c *Cinelog) AvailableLevels() []int {
	var levels []int
	for level := similarity.MinLevel; level <= similarity.MaxLevel; level++ {
		if c.PredicateExists(similarity.LevelPredicate(level), 2) {
			levels = append(levels, level)
		}
	}
	return levels
}

// MovieExists reports whether title is a catalogued movie.
func (c *Cinelog) MovieExists(ctx context.Context, title string) (bool, error) {
	res, err := c.runner.Run(ctx, rules.P("movie_id", movieAtom(title), rules.V("_Id")), 1)
	if err != nil {
		return false, err
	}
	return len(res.Solutions) > 0, nil
}

// RecommendByLevel returns up to max distinct movies whose overall
// similarity to title is exactly level.
func (c *Cinelog) RecommendByLevel(ctx context.Context, title string, level, max int) ([]Recommendation, error) {
	if level < similarity.MinLevel || level > similarity.MaxLevel {
		return nil, fmt.Errorf("%w: level %d outside %d..%d", internalerr.ErrInvalidInput, level, similarity.MinLevel, similarity.MaxLevel)
	}
	max, err := c.bound(max)
	if err != nil {
		return nil, err
	}
	pred := similarity.LevelPredicate(level)
	if !c.PredicateExists(pred, 2) {
		return nil, fmt.Errorf("no %d-level recommendations (available levels %v): %w",
			level, c.AvailableLevels(), &internalerr.PredicateError{Name: pred, Arity: 2})
	}

	movie := rules.V("Movie")
	sols, err := c.engine.Solve(ctx, rules.P(pred, movieAtom(title), movie))
	if err != nil {
		return nil, err
	}
	found, err := query.Collect(sols, movie.Name, max)
	if err != nil {
		return nil, err
	}
	out := make([]Recommendation, len(found))
	for i, s := range found {
		out[i] = Recommendation{Movie: s.Display(movie.Name), Score: level}
	}
	return out, nil
}

// RecommendByMetric returns up to max distinct movies scoring at least
// minScore on metric, best first. Every match is scored before the list is
// cut to max; ties keep enumeration order.
func (c *Cinelog) RecommendByMetric(ctx context.Context, title, metric string, minScore, max int) ([]Recommendation, error) {
	pred, ok := similarity.MetricPredicate(metric)
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q (choose from %v)", internalerr.ErrInvalidInput, metric, similarity.Metrics)
	}
	if minScore < similarity.MinLevel || minScore > similarity.MaxLevel {
		return nil, fmt.Errorf("%w: minimum score %d outside %d..%d", internalerr.ErrInvalidInput, minScore, similarity.MinLevel, similarity.MaxLevel)
	}
	max, err := c.bound(max)
	if err != nil {
		return nil, err
	}
	if !c.PredicateExists(pred, 3) {
		return nil, &internalerr.PredicateError{Name: pred, Arity: 3}
	}

	movie, score := rules.V("Movie"), rules.V("Score")
	goal := rules.Conj(
		rules.P(pred, movieAtom(title), movie, score),
		rules.Cmp(rules.X(score), rules.OpGE, rules.N(int64(minScore))),
	)
	sols, err := c.engine.Solve(ctx, goal)
	if err != nil {
		return nil, err
	}
	found, err := query.Collect(sols, movie.Name, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Recommendation, 0, len(found))
	for _, s := range found {
		n, _ := s.Get(score.Name).(term.Int)
		out = append(out, Recommendation{Movie: s.Display(movie.Name), Score: int(n)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// Batch runs independent goals concurrently against the shared engine.
func (c *Cinelog) Batch(ctx context.Context, goals []string, max int) ([]query.Result, error) {
	bodies := make([]rules.Body, len(goals))
	var errs []error
	for i, g := range goals {
		b, err := parse.Goal(g)
		if err != nil {
			errs = append(errs, fmt.Errorf("goal %d: %w", i, err))
			continue
		}
		bodies[i] = b
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c.runner.Batch(ctx, bodies, max)
}

// Explain builds a card describing why movie is similar to title.
func (c *Cinelog) Explain(ctx context.Context, title, movie string) (cards.Card, error) {
	t, m := string(movieAtom(title)), string(movieAtom(movie))
	ev, err := cards.Collect(ctx, c.runner, t, m)
	if err != nil {
		return cards.Card{}, err
	}
	return c.cards.Build(t, m, ev), nil
}

func (c *Cinelog) bound(max int) (int, error) {
	if max == 0 {
		return c.runner.MaxResults(), nil
	}
	if max < 0 {
		return 0, fmt.Errorf("%w: max results must be at least 1, got %d", internalerr.ErrInvalidInput, max)
	}
	return max, nil
}

// movieAtom maps a title as typed by a person, or an identifier such as
// toy_story_2, to its catalogue atom.
func movieAtom(title string) term.Atom {
	return term.Atom(ingest.CleanText(strings.ReplaceAll(title, "_", " ")))
}
