// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library keeps harvested books in a local SQLite database with a
// full-text index, and serves search and metadata export over it.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/book-harvester/internal/sink"
	"github.com/pdiddy/book-harvester/pkg/types"
)

// DBFile is the database file name inside the library directory.
const DBFile = "library.db"

// Run statuses recorded in the runs table.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunAborted  = "aborted"
)

// Store manages the library database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates dir/library.db and its schema.
func NewStore(cfg types.LibraryConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := Path(cfg.Dir)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database path for a library directory.
func Path(dir string) string {
	return filepath.Join(dir, DBFile)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			emitted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			author TEXT,
			year TEXT,
			source_url TEXT,
			text TEXT NOT NULL,
			run_id TEXT REFERENCES runs(id),
			acquired_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_year ON books(year)`,
		`CREATE INDEX IF NOT EXISTS idx_books_author ON books(author)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts4(title, author, text)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces a book and its full-text entry. Records without
// a run are stored with a NULL run_id.
func (s *Store) Put(ctx context.Context, rec types.BookRecord) error {
	_, err := s.put(ctx, rec, "")
	return err
}

// put reports whether the book already existed.
func (s *Store) put(ctx context.Context, rec types.BookRecord, runID string) (updated bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM books WHERE id = ?`, rec.ID.String()).Scan(&rowid)
	switch {
	case err == nil:
		updated = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return false, fmt.Errorf("looking up book %s: %w", rec.ID, err)
	}

	var run any
	if runID != "" {
		run = runID
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if updated {
		_, err = tx.ExecContext(ctx,
			`UPDATE books SET title=?, author=?, year=?, source_url=?, text=?, run_id=?, acquired_at=?
			 WHERE rowid = ?`,
			rec.Title, rec.Author, rec.Year, rec.SourceURL, rec.Text, run, now, rowid)
		if err != nil {
			return false, fmt.Errorf("updating book %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books_fts WHERE docid = ?`, rowid); err != nil {
			return false, fmt.Errorf("clearing index for %s: %w", rec.ID, err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO books (id, title, author, year, source_url, text, run_id, acquired_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID.String(), rec.Title, rec.Author, rec.Year, rec.SourceURL, rec.Text, run, now)
		if err != nil {
			return false, fmt.Errorf("inserting book %s: %w", rec.ID, err)
		}
		if rowid, err = res.LastInsertId(); err != nil {
			return false, fmt.Errorf("reading rowid for %s: %w", rec.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO books_fts (docid, title, author, text) VALUES (?, ?, ?, ?)`,
		rowid, rec.Title, rec.Author, rec.Text,
	); err != nil {
		return false, fmt.Errorf("indexing book %s: %w", rec.ID, err)
	}
	return updated, tx.Commit()
}

// Get returns the stored record for id.
func (s *Store) Get(ctx context.Context, id types.BookID) (types.BookRecord, error) {
	rec := types.BookRecord{ID: id}
	var title, author, year, source sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT title, author, year, source_url, text FROM books WHERE id = ?`, id.String(),
	).Scan(&title, &author, &year, &source, &rec.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BookRecord{}, fmt.Errorf("book %s not found", id)
		}
		return types.BookRecord{}, fmt.Errorf("looking up book %s: %w", id, err)
	}
	rec.Title, rec.Author, rec.Year, rec.SourceURL = title.String, author.String, year.String, source.String
	return rec, nil
}

// IDs returns every stored book ID.
func (s *Store) IDs(ctx context.Context) ([]types.BookID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM books ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var ids []types.BookID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, types.BookID(id))
	}
	return ids, rows.Err()
}

// Count returns the number of stored books.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return n, nil
}

// RunSink stores the records of one harvest run and records the run's
// lifecycle in the runs table.
type RunSink struct {
	store   *Store
	id      string
	emitted int
	done    bool
}

// StartRun registers a new run and returns a sink for its records.
func (s *Store) StartRun(ctx context.Context) (*RunSink, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), RunRunning)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return &RunSink{store: s, id: id}, nil
}

// ID returns the run identifier.
func (r *RunSink) ID() string { return r.id }

// Put stores rec under this run.
func (r *RunSink) Put(ctx context.Context, rec types.BookRecord) error {
	if r.done {
		return sink.ErrClosed
	}
	if _, err := r.store.put(ctx, rec, r.id); err != nil {
		return err
	}
	r.emitted++
	return nil
}

// Close marks the run complete.
func (r *RunSink) Close() error {
	return r.finish(RunComplete)
}

// Abort marks the run aborted. Records already stored are kept.
func (r *RunSink) Abort() error {
	return r.finish(RunAborted)
}

func (r *RunSink) finish(status string) error {
	if r.done {
		return nil
	}
	r.done = true
	_, err := r.store.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, emitted = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), status, r.emitted, r.id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.id, err)
	}
	return nil
}

// Run describes a recorded harvest run.
type Run struct {
	ID         string `json:"id" yaml:"id"`
	StartedAt  string `json:"started_at" yaml:"started_at"`
	FinishedAt string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string `json:"status" yaml:"status"`
	Emitted    int    `json:"emitted" yaml:"emitted"`
}

// Runs lists recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, emitted FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &r.Emitted); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.FinishedAt = finished.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IngestSummary holds counts from loading a TSV artifact.
type IngestSummary struct {
	Indexed int
	Updated int
	Failed  int
}

// Total returns the number of rows processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Failed
}

// Ingest loads every record of a TSV artifact into the library.
func (s *Store) Ingest(ctx context.Context, tsvPath string, log *slog.Logger) (IngestSummary, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(tsvPath); err != nil {
		return IngestSummary{}, fmt.Errorf("reading %s: %w", tsvPath, err)
	}

	var summary IngestSummary
	for rec, err := range sink.ReadTSVFile(tsvPath) {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err != nil {
			log.Error("failed to read row", "input", tsvPath, "error", err)
			summary.Failed++
			continue
		}
		updated, err := s.put(ctx, rec, "")
		if err != nil {
			log.Error("failed to index book", "book_id", rec.ID, "error", err)
			summary.Failed++
			continue
		}
		if updated {
			log.Info("updated", "book_id", rec.ID)
			summary.Updated++
		} else {
			log.Info("indexed", "book_id", rec.ID)
			summary.Indexed++
		}
	}
	log.Info("ingest complete", "indexed", summary.Indexed, "updated", summary.Updated, "failed", summary.Failed)
	return summary, nil
}
