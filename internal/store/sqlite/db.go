// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package sqlite implements the entry and knowledge source stores on SQLite.
// Two backends are registered: "sqlite" uses the cgo mattn/go-sqlite3 driver
// and "sqlite-purego" uses modernc.org/sqlite for cgo-free builds.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver selects the database/sql driver a store opens with.
type Driver string

const (
	DriverCGo    Driver = "sqlite3"
	DriverPureGo Driver = "sqlite"
)

func (d Driver) dsn(path string) string {
	if d == DriverPureGo {
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

func openDB(driver Driver, path string, migrate func(*sql.DB) error) (*sql.DB, error) {
	db, err := sql.Open(string(driver), driver.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return db, nil
}

// isUniqueViolation matches the constraint message both drivers surface.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// formatTime serialises a time for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
