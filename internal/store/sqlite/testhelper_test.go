// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/odly-dev/odly/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

var drivers = []sqlite.Driver{sqlite.DriverCGo, sqlite.DriverPureGo}

// forEachDriver runs fn once per SQLite driver.
func forEachDriver(t *testing.T, fn func(t *testing.T, driver sqlite.Driver)) {
	t.Helper()
	for _, d := range drivers {
		t.Run(string(d), func(t *testing.T) { fn(t, d) })
	}
}

func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func newEntryStore(t *testing.T, driver sqlite.Driver) *sqlite.EntryStore {
	t.Helper()
	s, err := sqlite.NewEntryStore(driver, testDBPath(t, "entries"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSourceStore(t *testing.T, driver sqlite.Driver) *sqlite.SourceStore {
	t.Helper()
	s, err := sqlite.NewSourceStore(driver, testDBPath(t, "sources"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
