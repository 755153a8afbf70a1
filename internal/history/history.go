// Package history records finished searches in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryosukesatoh/arxiv-push/internal/jsonutil"
)

// Entry is one finished run.
type Entry struct {
	ID          string    `json:"id"`
	Keywords    []string  `json:"keywords"`
	WindowDays  int       `json:"days"`
	MaxResults  int       `json:"count"`
	Language    string    `json:"language"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	ResultCount int       `json:"result_count"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration is the wall time the run took.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history: store closed")

// Store is a SQLite-backed run log.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	keywords TEXT NOT NULL,
	window_days INTEGER NOT NULL,
	max_results INTEGER NOT NULL,
	language TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at)`,
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: creating schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record inserts e, replacing any entry with the same ID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	keywords, err := jsonutil.MarshalString(e.Keywords)
	if err != nil {
		return fmt.Errorf("history: encoding keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(id, keywords, window_days, max_results, language, kind, message, result_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, keywords, e.WindowDays, e.MaxResults, e.Language, e.Kind, e.Message, e.ResultCount,
		formatTime(e.StartedAt), formatTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("history: recording run %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, most recently finished first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, keywords, window_days, max_results, language, kind, message, result_count, started_at, finished_at
		FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: querying runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                 Entry
			keywords          string
			started, finished string
		)
		if err := rows.Scan(&e.ID, &keywords, &e.WindowDays, &e.MaxResults, &e.Language,
			&e.Kind, &e.Message, &e.ResultCount, &started, &finished); err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}
		if err := jsonutil.UnmarshalString(keywords, &e.Keywords); err != nil {
			return nil, fmt.Errorf("history: decoding keywords of %s: %w", e.ID, err)
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if e.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Timestamps are stored in UTC with a fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: parsing time %q: %w", s, err)
	}
	return t, nil
}
