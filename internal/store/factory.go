// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package store

import (
	"slices"
	"sync"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// DefaultBackend is used when StorageConfig.Backend is empty.
const DefaultBackend = "sqlite"

// StorageConfig controls which backend the factory uses.
type StorageConfig struct {
	Backend string
}

// Stores is the set of stores a backend provides for one data directory.
type Stores struct {
	Entries EntryStore
	Sources MutableSourceStore
}

// Close closes both stores and joins their errors.
func (s *Stores) Close() error {
	var errs []error
	if s.Entries != nil {
		errs = append(errs, s.Entries.Close())
	}
	if s.Sources != nil {
		errs = append(errs, s.Sources.Close())
	}
	return odlyerr.Join(errs...)
}

// BackendFactory opens the stores of a backend rooted at dataDir.
type BackendFactory func(dataDir string) (*Stores, error)

var (
	backends   = map[string]BackendFactory{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers a storage backend by name. Backend packages call
// this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open creates the stores of the configured backend under dataDir.
func Open(cfg StorageConfig, dataDir string) (*Stores, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = DefaultBackend
	}

	backendsMu.RLock()
	factory, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, odlyerr.New(odlyerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: "+backend, odlyerr.FieldBackend(backend))
	}

	return factory(dataDir)
}
