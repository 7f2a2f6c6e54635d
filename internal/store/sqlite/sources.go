// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/odly-dev/odly/internal/store"
)

var _ store.MutableSourceStore = (*SourceStore)(nil)

// SourceStore implements store.MutableSourceStore for user-created
// knowledge sources.
type SourceStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSourceStore opens (or creates) the knowledge source database at dbPath.
func NewSourceStore(driver Driver, dbPath string) (*SourceStore, error) {
	db, err := openDB(driver, dbPath, migrateSources)
	if err != nil {
		return nil, fmt.Errorf("source store: %w", err)
	}
	return &SourceStore{db: db, now: time.Now}, nil
}

func migrateSources(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS knowledge_sources (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT UNIQUE NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

func (s *SourceStore) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM knowledge_sources ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source id: %w: %w", store.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w: %w", store.ErrDatabase, err)
	}
	return ids, nil
}

func (s *SourceStore) ReadContent(ctx context.Context, id string) (store.KnowledgeSource, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM knowledge_sources WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return store.KnowledgeSource{}, fmt.Errorf("source %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.KnowledgeSource{}, fmt.Errorf("reading source %s: %w: %w", id, store.ErrDatabase, err)
	}
	return store.NewKnowledgeSource(id, content), nil
}

func (s *SourceStore) Create(ctx context.Context, id, content string) error {
	if err := store.ValidateSourceID(id); err != nil {
		return err
	}
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_sources (id, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, content, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("source %s: %w", id, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("creating source %s: %w: %w", id, store.ErrDatabase, err)
	}
	return nil
}

func (s *SourceStore) Update(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_sources SET content = ?, updated_at = ? WHERE id = ?`,
		content, formatTime(s.now()), id)
	return s.expectOne(result, err, id, "updating")
}

func (s *SourceStore) Rename(ctx context.Context, oldID, newID string) error {
	if err := store.ValidateSourceID(newID); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_sources SET id = ?, updated_at = ? WHERE id = ?`,
		newID, formatTime(s.now()), oldID)
	if isUniqueViolation(err) {
		return fmt.Errorf("source %s: %w", newID, store.ErrConflict)
	}
	return s.expectOne(result, err, oldID, "renaming")
}

func (s *SourceStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_sources WHERE id = ?`, id)
	return s.expectOne(result, err, id, "deleting")
}

func (s *SourceStore) expectOne(result sql.Result, err error, id, verb string) error {
	if err != nil {
		return fmt.Errorf("%s source %s: %w: %w", verb, id, store.ErrDatabase, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s source %s: %w: %w", verb, id, store.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("source %s: %w", id, store.ErrNotFound)
	}
	return nil
}
