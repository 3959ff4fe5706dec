// Package similarity defines the movie-similarity rules evaluated by the
// engine, and the base fact schema they read.
package similarity

import (
	"fmt"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Schema lists the fact predicates produced by ingestion, in dump order.
var Schema = []factstore.Key{
	{Name: "movie_id", Arity: 2},
	{Name: "genre", Arity: 2},
	{Name: "director", Arity: 2},
	{Name: "actor", Arity: 2},
	{Name: "actor_position", Arity: 3},
	{Name: "keyword", Arity: 2},
	{Name: "language", Arity: 2},
	{Name: "is_color", Arity: 2},
	{Name: "production_company", Arity: 2},
	{Name: "production_country", Arity: 2},
	{Name: "release_year", Arity: 2},
	{Name: "decade", Arity: 2},
	{Name: "runtime", Arity: 2},
	{Name: "budget", Arity: 2},
	{Name: "revenue", Arity: 2},
	{Name: "vote_average", Arity: 2},
	{Name: "vote_count", Arity: 2},
}

// MinLevel and MaxLevel bound similarity scores and recommendation levels.
const (
	MinLevel = 1
	MaxLevel = 5
)

// Metrics are the score families a recommendation can be ranked by.
var Metrics = []string{"overall", "genre", "plot", "actor", "decade", "budget"}

// MetricPredicate returns the score predicate of metric.
func MetricPredicate(metric string) (string, bool) {
	for _, m := range Metrics {
		if m == metric {
			return metric + "_similarity_score", true
		}
	}
	return "", false
}

// LevelPredicate returns the recommendation predicate of level.
func LevelPredicate(level int) string {
	return fmt.Sprintf("recommend_score_%d", level)
}

// Declare registers Schema on store so every rule links even when a
// predicate has no facts.
func Declare(store *factstore.Store) error {
	for _, k := range Schema {
		if err := store.Declare(k.Name, k.Arity); err != nil {
			return fmt.Errorf("declare %s: %w", k, err)
		}
	}
	return nil
}

// Definition is the source of one rule clause.
type Definition struct {
	Name   string
	Params []term.Term
	Body   rules.Body
}

// Load compiles every definition into rs, in declaration order.
func Load(rs *rules.RuleSet) error {
	for _, d := range Definitions() {
		if _, err := rs.Define(d.Name, d.Params, d.Body); err != nil {
			return fmt.Errorf("similarity rule %s/%d: %w", d.Name, len(d.Params), err)
		}
	}
	return nil
}

// NewRuleSet returns a rule set holding the full library.
func NewRuleSet() (*rules.RuleSet, error) {
	rs := rules.NewRuleSet()
	if err := Load(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

var (
	m1 = rules.V("Movie1")
	m2 = rules.V("Movie2")
)

func pair(name string, goals ...rules.Body) Definition {
	return Definition{Name: name, Params: []term.Term{m1, m2}, Body: rules.Conj(goals...)}
}

func scored(name string, goals ...rules.Body) Definition {
	return Definition{Name: name, Params: []term.Term{m1, m2, rules.V("Score")}, Body: rules.Conj(goals...)}
}

// distinctPair grounds both movies, enumerating catalogued titles for an
// unbound side, and requires them to differ.
func distinctPair() rules.Body {
	return rules.Conj(rules.P("movie_key", m1), rules.P("movie_key", m2), rules.Dif(m1, m2))
}

// sharedCount counts the values of pred shared by both movies.
func sharedCount(name, pred string) Definition {
	x := rules.V("X")
	return Definition{
		Name:   name,
		Params: []term.Term{m1, m2, rules.V("Count")},
		Body: rules.Conj(
			distinctPair(),
			rules.CountOf(rules.Conj(rules.P(pred, m1, x), rules.P(pred, m2, x)), rules.V("Count")),
		),
	}
}

// shares holds when both movies have the same value for pred.
func shares(name, pred string) Definition {
	x := rules.V("X")
	return pair(name, rules.Dif(m1, m2), rules.P(pred, m1, x), rules.P(pred, m2, x))
}

func countAtLeast(name, counter string, least int64) Definition {
	c := rules.V("Count")
	return pair(name, rules.P(counter, m1, m2, c), rules.Cmp(rules.X(c), rules.OpGE, rules.N(least)))
}

func countBetween(name, counter string, least, below int64) Definition {
	c := rules.V("Count")
	return pair(name, rules.P(counter, m1, m2, c), rules.Cmp(rules.X(c), rules.OpGE, rules.N(least)), rules.Cmp(rules.X(c), rules.OpLT, rules.N(below)))
}

func countExactly(name, counter string, n int64) Definition {
	return pair(name, rules.P(counter, m1, m2, rules.I(n)))
}

// band is one guarded step: Value op Limit -> Score = score.
func band(value term.Term, op rules.RelOp, limit rules.Expr, score int64) rules.Band {
	return rules.Band{When: rules.Cmp(rules.X(value), op, limit), Then: rules.Eq(rules.V("Score"), rules.I(score))}
}

func fallback() rules.Body { return rules.Eq(rules.V("Score"), rules.I(MinLevel)) }

// Definitions returns the rule library in declaration order.
func Definitions() []Definition {
	c := rules.V("CommonCount")
	ratio := rules.V("Ratio")
	diff := rules.V("Diff")

	defs := []Definition{
		{
			Name:   "movie_key",
			Params: []term.Term{rules.V("Movie")},
			Body:   rules.If(rules.P("nonvar", rules.V("Movie")), rules.True{}, rules.P("movie_id", rules.V("Movie"), rules.V("_Id"))),
		},
		{
			Name:   "safe_div",
			Params: []term.Term{rules.V("N"), rules.V("D"), rules.V("R")},
			Body:   rules.If(rules.Cmp(rules.X(rules.V("D")), rules.OpEQ, rules.N(0)), rules.Fail{}, rules.Let(rules.V("R"), rules.Div(rules.X(rules.V("N")), rules.X(rules.V("D"))))),
		},

		// Genres.
		shares("common_genre", "genre"),
		sharedCount("common_genres", "genre"),
		countAtLeast("very_similar_genre", "common_genres", 3),
		countBetween("somewhat_similar_genre", "common_genres", 1, 3),
		scored("genre_similarity_score",
			rules.P("common_genres", m1, m2, c),
			rules.Bands(fallback(),
				band(c, rules.OpGE, rules.N(4), 5),
				band(c, rules.OpEQ, rules.N(3), 4),
				band(c, rules.OpEQ, rules.N(2), 3),
				band(c, rules.OpEQ, rules.N(1), 2),
			),
		),

		shares("same_director", "director"),

		// Plot keywords.
		sharedCount("common_keywords", "keyword"),
		countAtLeast("very_similar_plot", "common_keywords", 3),
		countBetween("somewhat_similar_plot", "common_keywords", 1, 3),
		scored("plot_similarity_score",
			rules.P("common_keywords", m1, m2, c),
			rules.Bands(fallback(),
				band(c, rules.OpGE, rules.N(4), 5),
				band(c, rules.OpEQ, rules.N(3), 4),
				band(c, rules.OpEQ, rules.N(2), 3),
				band(c, rules.OpEQ, rules.N(1), 2),
			),
		),

		// Cast.
		sharedCount("common_actors", "actor"),
		countExactly("all_same_actors", "common_actors", 3),
		countExactly("most_same_actors", "common_actors", 2),
		countExactly("some_same_actors", "common_actors", 1),
		scored("actor_similarity_score",
			rules.P("common_actors", m1, m2, c),
			rules.Bands(fallback(),
				band(c, rules.OpGE, rules.N(3), 5),
				band(c, rules.OpEQ, rules.N(2), 4),
				band(c, rules.OpEQ, rules.N(1), 3),
			),
		),

		shares("same_language", "language"),
		shares("same_color_type", "is_color"),
		shares("same_production_company", "production_company"),
		shares("same_country", "production_country"),
		shares("same_decade", "decade"),

		scored("decade_similarity_score",
			rules.Dif(m1, m2),
			rules.P("decade", m1, rules.V("D1")),
			rules.P("decade", m2, rules.V("D2")),
			rules.Let(diff, rules.Abs(rules.Sub(rules.X(rules.V("D1")), rules.X(rules.V("D2"))))),
			rules.Bands(fallback(),
				band(diff, rules.OpEQ, rules.N(0), 5),
				band(diff, rules.OpEQ, rules.N(10), 4),
				band(diff, rules.OpEQ, rules.N(20), 3),
				band(diff, rules.OpEQ, rules.N(30), 2),
			),
		),

		// Composite levels.
		pair("highly_similar",
			rules.Dif(m1, m2),
			rules.Disj(rules.P("very_similar_genre", m1, m2), rules.P("same_director", m1, m2)),
			rules.Disj(rules.P("very_similar_plot", m1, m2), rules.P("some_same_actors", m1, m2)),
			rules.P("same_language", m1, m2),
		),
		pair("moderately_similar",
			rules.Dif(m1, m2),
			rules.Disj(rules.P("somewhat_similar_genre", m1, m2), rules.P("same_decade", m1, m2)),
			rules.Disj(rules.P("somewhat_similar_plot", m1, m2), rules.P("same_production_company", m1, m2)),
		),
		pair("somewhat_similar",
			rules.Dif(m1, m2),
			rules.Disj(rules.P("common_genre", m1, m2), rules.P("same_country", m1, m2), rules.P("same_decade", m1, m2)),
		),

		// Budget and popularity.
		pair("similar_budget_scale",
			rules.P("budget", m1, rules.V("B1")),
			rules.P("budget", m2, rules.V("B2")),
			rules.Cmp(rules.X(rules.V("B1")), rules.OpGT, rules.N(0)),
			rules.Cmp(rules.X(rules.V("B2")), rules.OpGT, rules.N(0)),
			rules.Let(ratio, rules.Max(rules.Div(rules.X(rules.V("B1")), rules.X(rules.V("B2"))), rules.Div(rules.X(rules.V("B2")), rules.X(rules.V("B1"))))),
			rules.Cmp(rules.X(ratio), rules.OpLT, rules.N(3)),
		),
		scored("budget_similarity_score",
			rules.Dif(m1, m2),
			rules.P("budget", m1, rules.V("B1")),
			rules.P("budget", m2, rules.V("B2")),
			rules.Cmp(rules.X(rules.V("B1")), rules.OpGT, rules.N(0)),
			rules.Cmp(rules.X(rules.V("B2")), rules.OpGT, rules.N(0)),
			rules.P("safe_div", rules.V("B1"), rules.V("B2"), rules.V("R1")),
			rules.P("safe_div", rules.V("B2"), rules.V("B1"), rules.V("R2")),
			rules.Let(ratio, rules.Max(rules.X(rules.V("R1")), rules.X(rules.V("R2")))),
			rules.Bands(fallback(),
				band(ratio, rules.OpLT, rules.Fl(1.25), 5),
				band(ratio, rules.OpLT, rules.Fl(1.5), 4),
				band(ratio, rules.OpLT, rules.Fl(2.0), 3),
				band(ratio, rules.OpLT, rules.Fl(3.0), 2),
			),
		),
		pair("similarly_popular",
			rules.P("vote_count", m1, rules.V("C1")),
			rules.P("vote_count", m2, rules.V("C2")),
			rules.P("vote_average", m1, rules.V("A1")),
			rules.P("vote_average", m2, rules.V("A2")),
			rules.Cmp(rules.Abs(rules.Sub(rules.X(rules.V("A1")), rules.X(rules.V("A2")))), rules.OpLT, rules.Fl(1.0)),
			rules.Cmp(rules.X(rules.V("C1")), rules.OpGT, rules.N(100)),
			rules.Cmp(rules.X(rules.V("C2")), rules.OpGT, rules.N(100)),
		),

		// Sequels.
		pair("sequel_pattern", distinctPair(), rules.P("sequel_atoms", m1, m2)),
		pair("direct_sequel", distinctPair(), rules.P("numbered_suffix", m1, m2)),
		pair("sequel_or_prequel", rules.P("sequel_pattern", m1, m2)),
		pair("sequel_or_prequel", rules.P("direct_sequel", m1, m2)),

		// Overall score: weighted mean of the genre, plot and actor scores,
		// rounded and clamped, for catalogued second movies only.
		scored("overall_similarity_score",
			rules.Dif(m1, m2),
			rules.P("genre_similarity_score", m1, m2, rules.V("GenreScore")),
			rules.P("plot_similarity_score", m1, m2, rules.V("PlotScore")),
			rules.P("actor_similarity_score", m1, m2, rules.V("ActorScore")),
			rules.P("movie_id", m2, rules.V("_Id")),
			rules.Let(rules.V("Weighted"), rules.Div(
				rules.Add(rules.Add(rules.Mul(rules.X(rules.V("GenreScore")), rules.N(3)), rules.Mul(rules.X(rules.V("PlotScore")), rules.N(2))), rules.Mul(rules.X(rules.V("ActorScore")), rules.N(2))),
				rules.N(6))),
			rules.Let(rules.V("Score"), rules.Max(rules.N(MinLevel), rules.Min(rules.N(MaxLevel), rules.Round(rules.X(rules.V("Weighted")))))),
		),
	}

	for level := MaxLevel; level >= MinLevel; level-- {
		defs = append(defs, pair(LevelPredicate(level), rules.P("overall_similarity_score", m1, m2, rules.I(int64(level)))))
	}
	return defs
}
