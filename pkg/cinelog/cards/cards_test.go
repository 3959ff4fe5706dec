package cards

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/inference/sld"
	"github.com/cognicore/cinelog/pkg/cinelog/query"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

func TestBuilderEmptyEvidence(t *testing.T) {
	card := New().Build("alpha", "beta", Evidence{})

	if len(card.Bullets) != 0 {
		t.Errorf("empty evidence should produce 0 bullets, got %v", card.Bullets)
	}
	if card.Level != 0 || len(card.ScoreBreakdown) != 0 {
		t.Errorf("unexpected scores: level %d, %v", card.Level, card.ScoreBreakdown)
	}
}

func TestBuilderULIDUniqueness(t *testing.T) {
	builder := New()
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		card := builder.Build("alpha", "beta", Evidence{})
		if ids[card.ID] {
			t.Errorf("Duplicate ULID generated: %s", card.ID)
		}
		ids[card.ID] = true
	}
}

func TestBuilderBullets(t *testing.T) {
	ev := Evidence{
		Scores: map[string]int{"overall": 4, "genre": 5},
		Explain: Explain{
			SharedGenres:    []string{"action", "drama"},
			SharedDirectors: []string{"x"},
		},
	}
	card := New().Build("alpha", "beta", ev)

	want := []string{"Same director: x", "Shared genres: action, drama"}
	if diff := cmp.Diff(want, card.Bullets); diff != "" {
		t.Errorf("bullets (-want +got):\n%s", diff)
	}
	if card.Level != 4 {
		t.Errorf("Level = %d, want 4", card.Level)
	}
	ev.Scores["genre"] = 1
	if card.ScoreBreakdown["genre"] != 5 {
		t.Error("card shares the evidence score map")
	}
}

func TestCollect(t *testing.T) {
	store := factstore.New()
	if err := similarity.Declare(store); err != nil {
		t.Fatal(err)
	}
	pair := func(pred, a, b string) factstore.Fact {
		return factstore.Fact{Predicate: pred, Args: []term.Term{term.Atom(a), term.Atom(b)}}
	}
	err := store.AddFacts([]factstore.Fact{
		pair("movie_id", "alpha", "1"),
		pair("movie_id", "beta", "2"),
		pair("actor", "alpha", "kim"),
		pair("actor", "beta", "kim"),
		pair("actor", "beta", "lee"),
		pair("keyword", "alpha", "heist"),
	})
	if err != nil {
		t.Fatal(err)
	}
	rs, err := similarity.NewRuleSet()
	if err != nil {
		t.Fatal(err)
	}
	e, err := sld.New(store, rs, sld.Options{})
	if err != nil {
		t.Fatal(err)
	}

	ev, err := Collect(context.Background(), query.NewRunner(e, query.Options{}), "alpha", "beta")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// (1*3 + 1*2 + 3*2) / 6 = 11/6 rounds to 2
	wantScores := map[string]int{"overall": 2, "genre": 1, "plot": 1, "actor": 3}
	if diff := cmp.Diff(wantScores, ev.Scores); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Explain{SharedActors: []string{"kim"}}, ev.Explain); diff != "" {
		t.Errorf("explain (-want +got):\n%s", diff)
	}
}
