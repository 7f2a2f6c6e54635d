// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odly-dev/odly/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", factory(DriverCGo))
	store.RegisterBackend("sqlite-purego", factory(DriverPureGo))
}

func factory(driver Driver) store.BackendFactory {
	return func(dataDir string) (*store.Stores, error) {
		return Open(driver, dataDir)
	}
}

// Open creates dataDir if needed and opens entries.db and sources.db in it.
func Open(driver Driver, dataDir string) (*store.Stores, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dataDir, err)
	}

	entries, err := NewEntryStore(driver, filepath.Join(dataDir, "entries.db"))
	if err != nil {
		return nil, fmt.Errorf("creating entry store: %w", err)
	}

	sources, err := NewSourceStore(driver, filepath.Join(dataDir, "sources.db"))
	if err != nil {
		_ = entries.Close()
		return nil, fmt.Errorf("creating source store: %w", err)
	}

	return &store.Stores{Entries: entries, Sources: sources}, nil
}
