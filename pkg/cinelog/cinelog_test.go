package cinelog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cognicore/cinelog/pkg/cinelog"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func add(t *testing.T, store *factstore.Store, pred string, args ...string) {
	t.Helper()
	terms := make([]term.Term, len(args))
	for i, a := range args {
		terms[i] = term.Atom(a)
	}
	require.NoError(t, store.Add(pred, len(terms), terms))
}

// newCinelog builds a catalogue where beta shares two genres, the director
// and the language with alpha, and gamma shares one genre.
func newCinelog(t *testing.T, opts cinelog.Options) *cinelog.Cinelog {
	t.Helper()
	store := factstore.New()
	require.NoError(t, similarity.Declare(store))
	for i, m := range []string{"alpha", "beta", "gamma"} {
		add(t, store, "movie_id", m, fmt.Sprint(i+1))
	}
	for _, g := range [][2]string{
		{"alpha", "action"}, {"alpha", "drama"},
		{"beta", "action"}, {"beta", "drama"}, {"beta", "comedy"},
		{"gamma", "drama"},
	} {
		add(t, store, "genre", g[0], g[1])
	}
	add(t, store, "director", "alpha", "x")
	add(t, store, "director", "beta", "x")
	add(t, store, "language", "alpha", "en")
	add(t, store, "language", "beta", "en")
	add(t, store, "keyword", "alpha", "space")
	add(t, store, "keyword", "beta", "space")
	add(t, store, "keyword", "alpha", "war")
	add(t, store, "keyword", "beta", "war")

	opts.Facts = store
	c, err := cinelog.New(opts)
	require.NoError(t, err)
	return c
}

func TestQuery(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	ctx := context.Background()

	res, err := c.Query(ctx, "overall_similarity_score('alpha', 'beta', Score)", 0)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 1)
	// (3*3 + 3*2 + 1*2) / 6 = 17/6 rounds to 3
	assert.Equal(t, term.Int(3), res.Solutions[0].Get("Score"))
	assert.Equal(t, []string{"Score"}, res.Vars)
	assert.NotEmpty(t, res.ID)
	assert.Positive(t, res.Stats.Steps)

	res, err = c.Query(ctx, "genre(M, 'comedy')", 5)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 1)
	assert.Equal(t, "beta", res.Solutions[0].Display("M"))

	res, err = c.Query(ctx, "genre('alpha', 'western')", 5)
	require.NoError(t, err, "no matches is not an error")
	assert.Empty(t, res.Solutions)

	_, err = c.Query(ctx, "writer(M, W)", 5)
	assert.ErrorIs(t, err, internalerr.ErrUnknownPredicate)

	_, err = c.Query(ctx, "genre(", 5)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestQueryGoalBounded(t *testing.T) {
	c := newCinelog(t, cinelog.Options{MaxResults: 2})
	res, err := c.QueryGoal(context.Background(), rules.P("genre", rules.V("M"), rules.V("G")), 0)
	require.NoError(t, err)
	assert.Len(t, res.Solutions, 2)
}

func TestAvailableLevels(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, c.AvailableLevels())
	assert.True(t, c.PredicateExists("recommend_score_3", 2))
	assert.False(t, c.PredicateExists("recommend_score_6", 2))

	ok, err := c.MovieExists(context.Background(), "Alpha")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecommendByLevel(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	ctx := context.Background()

	recs, err := c.RecommendByLevel(ctx, "Alpha", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []cinelog.Recommendation{{Movie: "beta", Score: 3}}, recs)

	recs, err = c.RecommendByLevel(ctx, "alpha", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = c.RecommendByLevel(ctx, "alpha", 6, 10)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	_, err = c.RecommendByLevel(ctx, "alpha", 3, -1)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestRecommendByLevelMissingPredicate(t *testing.T) {
	store := factstore.New()
	require.NoError(t, similarity.Declare(store))
	rs := rules.NewRuleSet()
	c, err := cinelog.New(cinelog.Options{Facts: store, Rules: rs})
	require.NoError(t, err)

	assert.Empty(t, c.AvailableLevels())
	_, err = c.RecommendByLevel(context.Background(), "alpha", 4, 10)
	var pe *internalerr.PredicateError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "recommend_score_4", pe.Name)
}

func TestRecommendByMetric(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	ctx := context.Background()

	recs, err := c.RecommendByMetric(ctx, "alpha", "genre", 2, 10)
	require.NoError(t, err)
	// beta shares two genres (3), gamma one (2)
	assert.Equal(t, []cinelog.Recommendation{{Movie: "beta", Score: 3}, {Movie: "gamma", Score: 2}}, recs)

	recs, err = c.RecommendByMetric(ctx, "alpha", "genre", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []cinelog.Recommendation{{Movie: "beta", Score: 3}}, recs)

	recs, err = c.RecommendByMetric(ctx, "alpha", "budget", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = c.RecommendByMetric(ctx, "alpha", "runtime", 1, 10)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	_, err = c.RecommendByMetric(ctx, "alpha", "genre", 0, 10)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestRecommendByMetricRanksBeforeTruncating(t *testing.T) {
	store := factstore.New()
	require.NoError(t, similarity.Declare(store))
	for i, m := range []string{"alpha", "beta", "gamma"} {
		add(t, store, "movie_id", m, fmt.Sprint(i+1))
	}
	for _, g := range []string{"action", "drama", "comedy"} {
		add(t, store, "genre", "alpha", g)
		add(t, store, "genre", "gamma", g)
	}
	add(t, store, "genre", "beta", "action")

	c, err := cinelog.New(cinelog.Options{Facts: store})
	require.NoError(t, err)

	// beta (one shared genre) is enumerated before gamma (three shared).
	recs, err := c.RecommendByMetric(context.Background(), "alpha", "genre", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []cinelog.Recommendation{{Movie: "gamma", Score: 4}}, recs)
}

func TestBatch(t *testing.T) {
	c := newCinelog(t, cinelog.Options{Concurrency: 2})
	goals := []string{
		"genre_similarity_score(alpha, beta, S)",
		"plot_similarity_score(alpha, beta, S)",
		"actor_similarity_score(alpha, beta, S)",
		"recommend_score_5(alpha, M)",
	}
	results, err := c.Batch(context.Background(), goals, 0)
	require.NoError(t, err)
	require.Len(t, results, len(goals))

	want := []string{"S = 3", "S = 3", "S = 1"}
	for i, w := range want {
		require.Len(t, results[i].Solutions, 1, goals[i])
		assert.Equal(t, w, results[i].Solutions[0].String(), goals[i])
	}
	assert.Empty(t, results[3].Solutions)

	_, err = c.Batch(context.Background(), []string{"genre(M, G)", "nope("}, 0)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = c.Batch(context.Background(), []string{"genre(M, G)", "writer(M, W)"}, 0)
	assert.ErrorIs(t, err, internalerr.ErrUnknownPredicate)
}

func TestBatchAgreesWithSequential(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	ctx := context.Background()
	var goals []string
	for _, m := range []string{"alpha", "beta", "gamma"} {
		goals = append(goals, fmt.Sprintf("overall_similarity_score(%s, M, S)", m))
	}
	results, err := c.Batch(ctx, goals, 0)
	require.NoError(t, err)
	for i, g := range goals {
		seq, err := c.Query(ctx, g, 0)
		require.NoError(t, err)
		assert.Equal(t, seq.Solutions, results[i].Solutions, g)
	}
}

func TestExplain(t *testing.T) {
	c := newCinelog(t, cinelog.Options{})
	card, err := c.Explain(context.Background(), "Alpha", "beta")
	require.NoError(t, err)

	assert.NotEmpty(t, card.ID)
	assert.Equal(t, "alpha", card.Title)
	assert.Equal(t, "beta", card.Movie)
	assert.Equal(t, 3, card.Level)
	assert.Equal(t, map[string]int{"overall": 3, "genre": 3, "plot": 3, "actor": 1}, card.ScoreBreakdown)
	assert.Equal(t, []string{"action", "drama"}, card.Explain.SharedGenres)
	assert.Equal(t, []string{"x"}, card.Explain.SharedDirectors)
	assert.Contains(t, card.Bullets, "Shared genres: action, drama")
	assert.Contains(t, card.Bullets, "Same language: en")
}

func TestNewRequiresFacts(t *testing.T) {
	_, err := cinelog.New(cinelog.Options{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestNewRejectsUnlinkedRules(t *testing.T) {
	rs := rules.NewRuleSet()
	_, err := rs.Define("uses_writer", []term.Term{rules.V("M")}, rules.P("writer", rules.V("M"), rules.V("_W")))
	require.NoError(t, err)
	_, err = cinelog.New(cinelog.Options{Facts: factstore.New(), Rules: rs})
	assert.ErrorIs(t, err, internalerr.ErrUnknownPredicate)
}
