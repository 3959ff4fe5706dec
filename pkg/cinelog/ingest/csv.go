// Package ingest turns a movie-metadata CSV export into ground facts for
// the similarity rules.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// DefaultMaxMovies caps how many movies one import produces.
const DefaultMaxMovies = 5000

// Options configures an import.
type Options struct {
	MaxMovies int // <= 0 means DefaultMaxMovies
	Logger    *zap.Logger
}

// Report summarizes an import.
type Report struct {
	Rows       int // data rows read
	Movies     int // movies that produced facts
	Duplicates int // rows skipped because the title was already seen
	Skipped    int // rows without a usable title
	Facts      int
}

var actorColumns = []string{"actor_1_name", "actor_2_name", "actor_3_name"}

// ReadFile imports the CSV file at path.
func ReadFile(path string, opts Options) ([]factstore.Fact, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read imports CSV rows with a header line. Missing columns are tolerated.
// The returned facts are de-duplicated and sorted by their rendered text.
func Read(r io.Reader, opts Options) ([]factstore.Fact, Report, error) {
	if opts.MaxMovies <= 0 {
		opts.MaxMovies = DefaultMaxMovies
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Report{}, fmt.Errorf("%w: empty csv", internalerr.ErrInvalidInput)
		}
		return nil, Report{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols["movie_title"]; !ok {
		return nil, Report{}, fmt.Errorf("%w: csv has no movie_title column", internalerr.ErrInvalidInput)
	}

	var (
		report Report
		facts  = make(map[string]factstore.Fact)
		seen   = make(map[string]bool)
	)
	for report.Movies < opts.MaxMovies {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("read csv row %d: %w", report.Rows+1, err)
		}
		report.Rows++

		row := record{cols: cols, values: rec}
		title := CleanText(row.get("movie_title"))
		if title == Unknown {
			report.Skipped++
			logger.Warn("skipping row without title", zap.Int("row", report.Rows))
			continue
		}
		if seen[title] {
			report.Duplicates++
			continue
		}
		seen[title] = true

		id := strings.TrimSuffix(row.get("id"), ".0")
		if id == "" || id == missing {
			id = strconv.Itoa(report.Rows)
		}
		for _, f := range movieFacts(title, id, row) {
			facts[f.String()] = f
		}
		report.Movies++
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]factstore.Fact, len(keys))
	for i, k := range keys {
		out[i] = facts[k]
	}
	report.Facts = len(out)
	logger.Info("csv imported",
		zap.Int("rows", report.Rows),
		zap.Int("movies", report.Movies),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("facts", report.Facts))
	return out, report, nil
}

type record struct {
	cols   map[string]int
	values []string
}

// get returns the trimmed cell of column, or "" when the column is absent.
func (r record) get(column string) string {
	i, ok := r.cols[column]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

func (r record) number(column string) (float64, bool) {
	v := r.get(column)
	if v == "" || v == missing {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func atomFact(pred, movie, value string) factstore.Fact {
	return factstore.Fact{Predicate: pred, Args: []term.Term{term.Atom(movie), term.Atom(value)}}
}

func numFact(pred, movie string, value term.Term) factstore.Fact {
	return factstore.Fact{Predicate: pred, Args: []term.Term{term.Atom(movie), value}}
}

func movieFacts(title, id string, row record) []factstore.Fact {
	out := []factstore.Fact{atomFact("movie_id", title, id)}

	listFacts := func(pred, column string) {
		for _, item := range ParseList(row.get(column)) {
			if v := CleanText(item); v != Unknown {
				out = append(out, atomFact(pred, title, v))
			}
		}
	}
	singleFact := func(pred, column string) {
		if v := CleanText(row.get(column)); v != Unknown {
			out = append(out, atomFact(pred, title, v))
		}
	}

	listFacts("genre", "genres")
	singleFact("director", "director_name")
	for i, col := range actorColumns {
		actor := CleanText(row.get(col))
		if actor == Unknown {
			continue
		}
		out = append(out,
			atomFact("actor", title, actor),
			factstore.Fact{Predicate: "actor_position", Args: []term.Term{term.Atom(title), term.Atom(actor), term.Int(i + 1)}},
		)
	}
	listFacts("keyword", "plot_keywords")
	singleFact("language", "language")
	singleFact("is_color", "color")
	listFacts("production_company", "production_companies")
	listFacts("production_country", "production_countries")

	if year, ok := releaseYear(row); ok {
		out = append(out,
			numFact("release_year", title, term.Int(year)),
			numFact("decade", title, term.Int(year/10*10)),
		)
	}
	if v, ok := row.number("duration"); ok && v > 0 {
		out = append(out, numFact("runtime", title, term.Int(int64(v))))
	}
	if v, ok := row.number("budget"); ok && v > 0 {
		out = append(out, numFact("budget", title, term.Int(int64(v))))
	}
	if v, ok := row.number("gross"); ok && v > 0 {
		out = append(out, numFact("revenue", title, term.Int(int64(v))))
	}
	if v, ok := row.number("vote_average"); ok {
		out = append(out, numFact("vote_average", title, term.Float(v)))
	}
	if v, ok := row.number("num_voted_users"); ok && v == math.Trunc(v) {
		out = append(out, numFact("vote_count", title, term.Int(int64(v))))
	}
	return out
}

// releaseYear reads release_date (YYYY-MM-DD) and falls back to title_year.
func releaseYear(row record) (int64, bool) {
	if date := row.get("release_date"); date != "" && date != missing {
		y, err := strconv.ParseInt(strings.SplitN(date, "-", 2)[0], 10, 64)
		if err == nil {
			return y, true
		}
	}
	if v, ok := row.number("title_year"); ok && v > 0 {
		return int64(v), true
	}
	return 0, false
}
