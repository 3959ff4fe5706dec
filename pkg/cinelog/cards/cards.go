// Package cards builds explainable recommendation cards.
package cards

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/cinelog/pkg/cinelog/query"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// sharedLimit bounds each shared-attribute listing.
const sharedLimit = 50

// Builder constructs explainable recommendation cards
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a new card builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Card explains why Movie was recommended for Title.
type Card struct {
	ID             string
	Title          string
	Movie          string
	Level          int // overall similarity score, 0 when unknown
	Bullets        []string
	ScoreBreakdown map[string]int // metric -> score, absent when not computable
	Explain        Explain
}

// Explain lists the attributes both movies share.
type Explain struct {
	SharedGenres    []string
	SharedKeywords  []string
	SharedActors    []string
	SharedDirectors []string
	SharedLanguages []string
}

// Evidence is what a card is built from.
type Evidence struct {
	Scores  map[string]int
	Explain Explain
}

// Build creates a card from collected evidence.
func (b *Builder) Build(title, movie string, ev Evidence) Card {
	b.mu.Lock()
	id := ulid.MustNew(ulid.Now(), b.entropy).String()
	b.mu.Unlock()

	card := Card{
		ID:             id,
		Title:          title,
		Movie:          movie,
		ScoreBreakdown: make(map[string]int, len(ev.Scores)),
		Explain:        ev.Explain,
	}
	for m, s := range ev.Scores {
		card.ScoreBreakdown[m] = s
	}
	card.Level = card.ScoreBreakdown["overall"]

	add := func(label string, values []string) {
		if len(values) > 0 {
			card.Bullets = append(card.Bullets, fmt.Sprintf("%s: %s", label, strings.Join(values, ", ")))
		}
	}
	add("Same director", ev.Explain.SharedDirectors)
	add("Shared genres", ev.Explain.SharedGenres)
	add("Shared keywords", ev.Explain.SharedKeywords)
	add("Shared actors", ev.Explain.SharedActors)
	add("Same language", ev.Explain.SharedLanguages)
	return card
}

// Collect queries the per-metric scores and shared attributes of a pair.
func Collect(ctx context.Context, r *query.Runner, title, movie string) (Evidence, error) {
	a, b := term.Atom(title), term.Atom(movie)
	ev := Evidence{Scores: make(map[string]int)}

	for _, metric := range similarity.Metrics {
		pred, _ := similarity.MetricPredicate(metric)
		if !r.Exists(pred, 3) {
			continue
		}
		res, err := r.Run(ctx, rules.P(pred, a, b, rules.V("Score")), 1)
		if err != nil {
			return Evidence{}, fmt.Errorf("%s score: %w", metric, err)
		}
		if len(res.Solutions) == 0 {
			continue
		}
		if n, ok := res.Solutions[0].Get("Score").(term.Int); ok {
			ev.Scores[metric] = int(n)
		}
	}

	shared := []struct {
		pred string
		dst  *[]string
	}{
		{"genre", &ev.Explain.SharedGenres},
		{"keyword", &ev.Explain.SharedKeywords},
		{"actor", &ev.Explain.SharedActors},
		{"director", &ev.Explain.SharedDirectors},
		{"language", &ev.Explain.SharedLanguages},
	}
	for _, s := range shared {
		if !r.Exists(s.pred, 2) {
			continue
		}
		x := rules.V("Value")
		res, err := r.Run(ctx, rules.Conj(rules.P(s.pred, a, x), rules.P(s.pred, b, x)), sharedLimit)
		if err != nil {
			return Evidence{}, fmt.Errorf("shared %s: %w", s.pred, err)
		}
		for _, sol := range query.Distinct(res.Solutions, "Value") {
			*s.dst = append(*s.dst, sol.Display("Value"))
		}
	}
	return ev, nil
}
