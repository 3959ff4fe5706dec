package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore/sqlite"
	"github.com/cognicore/cinelog/pkg/cinelog/ingest"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/parse"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
)

// Loader builds a knowledge base from the first available source: a
// SQLite snapshot, then a text dump, then the CSV export.
type Loader struct {
	SQLitePath string
	KBPath     string
	CSVPath    string
	MaxMovies  int
	Logger     *zap.Logger
}

// Components holds the loaded knowledge base.
type Components struct {
	Facts  *factstore.Store
	Rules  *rules.RuleSet
	Source string // path the facts came from
}

// NewLoader returns a Loader for the data section of cfg.
func NewLoader(cfg *Config, logger *zap.Logger) *Loader {
	return &Loader{
		SQLitePath: cfg.Data.SQLitePath,
		KBPath:     cfg.Data.KBPath,
		CSVPath:    cfg.Data.CSVPath,
		MaxMovies:  cfg.Data.MaxMovies,
		Logger:     logger,
	}
}

// Load reads the facts, declares the base schema and compiles the
// similarity rules.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := factstore.New()
	if err := similarity.Declare(store); err != nil {
		return nil, err
	}

	source, err := l.loadFacts(ctx, store, logger)
	if err != nil {
		logger.Error("load facts failed", zap.Error(err))
		return nil, err
	}

	rs, err := similarity.NewRuleSet()
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	logger.Info("knowledge base loaded",
		zap.String("source", source),
		zap.Int("facts", store.Len()),
		zap.Int("rules", rs.Len()))
	for _, k := range store.Predicates() {
		logger.Debug("predicate loaded", zap.Stringer("predicate", k), zap.Int("facts", store.Count(k.Name)))
	}
	return &Components{Facts: store, Rules: rs, Source: source}, nil
}

func (l *Loader) loadFacts(ctx context.Context, store *factstore.Store, logger *zap.Logger) (string, error) {
	if exists(l.SQLitePath) {
		snap, err := sqlite.Open(ctx, l.SQLitePath)
		if err != nil {
			return "", fmt.Errorf("open snapshot: %w", err)
		}
		defer snap.Close()
		if _, err := snap.Info(ctx); err == nil {
			if _, err := snap.LoadInto(ctx, store); err != nil {
				return "", fmt.Errorf("load snapshot %s: %w", l.SQLitePath, err)
			}
			return l.SQLitePath, nil
		} else if !errors.Is(err, internalerr.ErrNotFound) {
			return "", fmt.Errorf("read snapshot %s: %w", l.SQLitePath, err)
		}
		logger.Debug("snapshot is empty", zap.String("path", l.SQLitePath))
	}

	if exists(l.KBPath) {
		f, err := os.Open(l.KBPath)
		if err != nil {
			return "", fmt.Errorf("open kb: %w", err)
		}
		defer f.Close()
		facts, err := parse.Facts(f)
		if err != nil {
			return "", fmt.Errorf("load kb %s: %w", l.KBPath, err)
		}
		if err := store.AddFacts(facts); err != nil {
			return "", fmt.Errorf("load kb %s: %w", l.KBPath, err)
		}
		return l.KBPath, nil
	}

	if exists(l.CSVPath) {
		facts, _, err := ingest.ReadFile(l.CSVPath, ingest.Options{MaxMovies: l.MaxMovies, Logger: logger})
		if err != nil {
			return "", fmt.Errorf("load csv %s: %w", l.CSVPath, err)
		}
		if err := store.AddFacts(facts); err != nil {
			return "", fmt.Errorf("load csv %s: %w", l.CSVPath, err)
		}
		return l.CSVPath, nil
	}

	return "", fmt.Errorf("%w: no data source found (db %q, kb %q, csv %q)",
		internalerr.ErrNotFound, l.SQLitePath, l.KBPath, l.CSVPath)
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
