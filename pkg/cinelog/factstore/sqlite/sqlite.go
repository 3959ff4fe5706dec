// Package sqlite persists fact snapshots so a knowledge base can be
// reloaded without re-reading the source CSV.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// Snapshots stores the current fact snapshot in a SQLite database.
type Snapshots struct {
	db *sql.DB
}

// SnapshotInfo describes a saved snapshot.
type SnapshotInfo struct {
	ID        string
	Source    string
	Facts     int
	CreatedAt time.Time
}

// Open opens (or creates) the database at path with WAL mode enabled.
func Open(ctx context.Context, path string) (*Snapshots, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Snapshots{db: db}, nil
}

// Close closes the database connection
func (s *Snapshots) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	source TEXT,
	facts INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	seq INTEGER PRIMARY KEY,
	predicate TEXT NOT NULL,
	arity INTEGER NOT NULL,
	args TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_predicate ON facts(predicate, arity);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save replaces the stored facts with facts, keeping their order, and
// returns the new snapshot's ID.
func (s *Snapshots) Save(ctx context.Context, source string, facts []factstore.Fact) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts`); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO facts (seq, predicate, arity, args) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, f := range facts {
		args, err := encodeArgs(f.Args)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", f.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, i+1, f.Predicate, len(f.Args), args); err != nil {
			return "", err
		}
	}

	id := ulid.Make().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source, facts, created_at) VALUES (?, ?, ?, ?)`,
		id, source, len(facts), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Info describes the stored snapshot. It returns ErrNotFound when nothing
// was saved yet.
func (s *Snapshots) Info(ctx context.Context) (SnapshotInfo, error) {
	var (
		info    SnapshotInfo
		source  sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, facts, created_at FROM snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&info.ID, &source, &info.Facts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, fmt.Errorf("snapshot: %w", internalerr.ErrNotFound)
	}
	if err != nil {
		return SnapshotInfo{}, err
	}
	info.Source = source.String
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		info.CreatedAt = t
	}
	return info, nil
}

// Load returns the stored facts in the order they were saved.
func (s *Snapshots) Load(ctx context.Context) ([]factstore.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT predicate, arity, args FROM facts ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []factstore.Fact
	for rows.Next() {
		var (
			pred  string
			arity int
			raw   string
		)
		if err := rows.Scan(&pred, &arity, &raw); err != nil {
			return nil, err
		}
		args, err := decodeArgs(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%d: %w", pred, arity, err)
		}
		if len(args) != arity {
			return nil, &internalerr.ArityError{Name: pred, Registered: arity, Got: len(args)}
		}
		out = append(out, factstore.Fact{Predicate: pred, Args: args})
	}
	return out, rows.Err()
}

// LoadInto adds the stored facts to store.
func (s *Snapshots) LoadInto(ctx context.Context, store *factstore.Store) (int, error) {
	facts, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := store.AddFacts(facts); err != nil {
		return 0, err
	}
	return len(facts), nil
}

type jsonArg struct {
	Atom  *string  `json:"atom,omitempty"`
	Int   *int64   `json:"int,omitempty"`
	Float *float64 `json:"float,omitempty"`
}

func encodeArgs(args []term.Term) (string, error) {
	out := make([]jsonArg, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case term.Atom:
			s := string(v)
			out[i].Atom = &s
		case term.Int:
			n := int64(v)
			out[i].Int = &n
		case term.Float:
			f := float64(v)
			out[i].Float = &f
		default:
			return "", fmt.Errorf("%w: argument %d is not ground", internalerr.ErrInvalidInput, i)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeArgs(raw string) ([]term.Term, error) {
	var in []jsonArg
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make([]term.Term, len(in))
	for i, a := range in {
		switch {
		case a.Atom != nil:
			out[i] = term.Atom(*a.Atom)
		case a.Int != nil:
			out[i] = term.Int(*a.Int)
		case a.Float != nil:
			out[i] = term.Float(*a.Float)
		default:
			return nil, fmt.Errorf("%w: empty argument %d", internalerr.ErrInvalidInput, i)
		}
	}
	return out, nil
}
