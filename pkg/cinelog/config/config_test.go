package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore/sqlite"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinelog.yaml")
	content := `engine:
  max_steps: 1000
data:
  csv_path: data/movies.csv
  sqlite_path: movies.db
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		Engine:  Engine{MaxSteps: 1000, DefaultMaxResults: 10},
		Data:    Data{CSVPath: "data/movies.csv", MaxMovies: 5000, SQLitePath: "movies.db"},
		Logging: Logging{Level: "debug", JSON: true},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CINELOG_MAX_STEPS", "42")
	t.Setenv("CINELOG_MAX_RESULTS", " 5 ")
	t.Setenv("CINELOG_DB", "snap.db")
	t.Setenv("CINELOG_LOG_JSON", "true")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Engine.MaxSteps != 42 || cfg.Engine.DefaultMaxResults != 5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Data.SQLitePath != "snap.db" || !cfg.Logging.JSON {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("CINELOG_MAX_MOVIES", "lots")
	if err := Default().ApplyEnv(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero steps", func(c *Config) { c.Engine.MaxSteps = 0 }},
		{"zero results", func(c *Config) { c.Engine.DefaultMaxResults = 0 }},
		{"too many results", func(c *Config) { c.Engine.DefaultMaxResults = MaxResultsLimit + 1 }},
		{"no movies", func(c *Config) { c.Data.MaxMovies = -1 }},
		{"no source", func(c *Config) { c.Data = Data{MaxMovies: 1} }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

const kb = `% MOVIE_ID FACTS
movie_id('alpha','1').
movie_id('beta','2').

% GENRE FACTS
genre('alpha','action').
genre('beta','action').

% SIMILARITY RULES
% End of similarity rules
`

func TestLoaderPrefersSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kbPath := filepath.Join(dir, "movie_kb.pl")
	if err := os.WriteFile(kbPath, []byte(kb), 0644); err != nil {
		t.Fatal(err)
	}

	l := &Loader{KBPath: kbPath, SQLitePath: filepath.Join(dir, "missing.db"), CSVPath: filepath.Join(dir, "missing.csv")}
	comp, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Source != kbPath || comp.Facts.Count("genre") != 2 {
		t.Errorf("source %s, genre facts %d", comp.Source, comp.Facts.Count("genre"))
	}
	if !comp.Facts.Exists("keyword", 2) || !comp.Rules.Exists("overall_similarity_score", 3) {
		t.Error("schema or rules missing")
	}

	dbPath := filepath.Join(dir, "movies.db")
	snap, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	facts := []factstore.Fact{{Predicate: "movie_id", Args: []term.Term{term.Atom("gamma"), term.Atom("3")}}}
	if _, err := snap.Save(ctx, "test", facts); err != nil {
		t.Fatal(err)
	}
	snap.Close()

	l.SQLitePath = dbPath
	comp, err = l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Source != dbPath || comp.Facts.Len() != 1 {
		t.Errorf("source %s, %d facts", comp.Source, comp.Facts.Len())
	}
}

func TestLoaderNoSource(t *testing.T) {
	cfg := Default()
	cfg.Data.CSVPath = filepath.Join(t.TempDir(), "missing.csv")
	_, err := NewLoader(cfg, nil).Load(context.Background())
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
