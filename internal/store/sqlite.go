package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cerrors "github.com/codescout/codescout/internal/errors"
)

// SQLiteCandidateStore persists full candidate records in SQLite. It is
// the source of truth the search engine enriches results from, and the
// reranker builds context pairs from.
type SQLiteCandidateStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteCandidateStore opens or creates a candidate store. An empty
// path creates an in-memory store for testing.
func NewSQLiteCandidateStore(path string) (*SQLiteCandidateStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to create store directory for %s", path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
			"failed to open candidate store", err)
	}

	// Single writer prevents lock contention under SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN pragma params, set them explicitly
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
				"failed to configure candidate store", err)
		}
	}

	store := &SQLiteCandidateStore{db: db, path: path}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
			"failed to initialize candidate store schema", err)
	}

	return store, nil
}

func (s *SQLiteCandidateStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		id       TEXT PRIMARY KEY,
		text     TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCandidates upserts candidates in a single transaction.
func (s *SQLiteCandidateStore) SaveCandidates(ctx context.Context, candidates []Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.New(cerrors.ErrCodeStoreUnavailable, "candidate store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (id, text, metadata) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata
	`)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return cerrors.New(cerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to encode metadata for candidate %s", c.ID), err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, string(meta)); err != nil {
			return cerrors.New(cerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to save candidate %s", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to commit candidates", err)
	}
	return nil
}

// GetCandidate returns a single candidate by ID.
func (s *SQLiteCandidateStore) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable, "candidate store is closed", nil)
	}

	var text, metaJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT text, metadata FROM candidates WHERE id = ?", id).Scan(&text, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, cerrors.New(cerrors.ErrCodeCandidateNotFound,
			fmt.Sprintf("candidate %s not found", id), nil)
	}
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to load candidate %s", id), err)
	}

	candidate := &Candidate{ID: id, Text: text}
	if err := json.Unmarshal([]byte(metaJSON), &candidate.Metadata); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to decode metadata for candidate %s", id), err)
	}
	return candidate, nil
}

// GetCandidates returns candidates for the given IDs in input order.
// Unknown IDs are skipped.
func (s *SQLiteCandidateStore) GetCandidates(ctx context.Context, ids []string) ([]Candidate, error) {
	if len(ids) == 0 {
		return []Candidate{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable, "candidate store is closed", nil)
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, metadata FROM candidates WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to load candidates", err)
	}
	defer rows.Close()

	found := make(map[string]Candidate, len(ids))
	for rows.Next() {
		var c Candidate
		var metaJSON string
		if err := rows.Scan(&c.ID, &c.Text, &metaJSON); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to scan candidate", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to decode metadata for candidate %s", c.ID), err)
		}
		found[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to read candidates", err)
	}

	// Preserve the caller's ordering, which is the fused ranking
	results := make([]Candidate, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			results = append(results, c)
		}
	}
	return results, nil
}

// Count returns the number of stored candidates.
func (s *SQLiteCandidateStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, cerrors.New(cerrors.ErrCodeStoreUnavailable, "candidate store is closed", nil)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates").Scan(&count); err != nil {
		return 0, cerrors.New(cerrors.ErrCodeStoreUnavailable, "failed to count candidates", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *SQLiteCandidateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

var _ CandidateStore = (*SQLiteCandidateStore)(nil)
