// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odly-dev/odly/internal/store"
)

var _ store.EntryStore = (*EntryStore)(nil)

// EntryStore implements store.EntryStore. Insertion order is kept by an
// autoincrement sequence column.
type EntryStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntryStore opens (or creates) the entries database at dbPath.
func NewEntryStore(driver Driver, dbPath string) (*EntryStore, error) {
	db, err := openDB(driver, dbPath, migrateEntries)
	if err != nil {
		return nil, fmt.Errorf("entry store: %w", err)
	}
	return &EntryStore{db: db, now: time.Now}, nil
}

func migrateEntries(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entries (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT UNIQUE NOT NULL,
	text      TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	tags      TEXT NOT NULL DEFAULT '[]'
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *EntryStore) Close() error {
	return s.db.Close()
}

func (s *EntryStore) List(ctx context.Context) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, timestamp, tags FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	entries := []store.Entry{}
	for rows.Next() {
		var (
			e        store.Entry
			ts, tags string
		)
		if err := rows.Scan(&e.ID, &e.Text, &ts, &tags); err != nil {
			return nil, fmt.Errorf("scanning entry: %w: %w", store.ErrDatabase, err)
		}
		e.Timestamp = parseTime(ts)
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of entry %s: %w: %w", e.ID, store.ErrDatabase, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w: %w", store.ErrDatabase, err)
	}
	return entries, nil
}

func (s *EntryStore) Append(ctx context.Context, entry store.Entry) (store.Entry, error) {
	entry = s.prepare(entry)
	if err := entry.Validate(); err != nil {
		return store.Entry{}, err
	}
	if err := insertEntry(ctx, s.db, entry); err != nil {
		return store.Entry{}, err
	}
	return entry, nil
}

func (s *EntryStore) AppendBatch(ctx context.Context, category string, entries []store.Entry) error {
	prepared := make([]store.Entry, len(entries))
	for i, e := range entries {
		prepared[i] = s.prepare(e).WithCategory(category)
		if err := prepared[i].Validate(); err != nil {
			return err
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range prepared {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EntryStore) Replace(ctx context.Context, entries []store.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clearing entries: %w: %w", store.ErrDatabase, err)
		}
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EntryStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clearing entries: %w: %w", store.ErrDatabase, err)
	}
	return nil
}

func (s *EntryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w: %w", id, store.ErrDatabase, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w: %w", id, store.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// prepare fills in a missing ID and timestamp.
func (s *EntryStore) prepare(e store.Entry) store.Entry {
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	return e
}

func (s *EntryStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w: %w", store.ErrDatabase, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, db execer, e store.Entry) error {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding tags of entry %s: %w", e.ID, err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO entries (id, text, timestamp, tags) VALUES (?, ?, ?, ?)`,
		e.ID, e.Text, formatTime(e.Timestamp), string(encoded))
	if isUniqueViolation(err) {
		return fmt.Errorf("entry %s: %w", e.ID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w: %w", e.ID, store.ErrDatabase, err)
	}
	return nil
}
