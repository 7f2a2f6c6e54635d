// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package store defines the persistence contracts for entries and user
// knowledge sources, plus a registry of storage backends.
package store

import "context"

// EntryStore holds the entry working set. Writes to it during a
// reorganization go through the mutation guard.
type EntryStore interface {
	// List returns all entries in insertion order.
	List(ctx context.Context) ([]Entry, error)
	// Append stores one entry, assigning an ID and timestamp when unset.
	Append(ctx context.Context, entry Entry) (Entry, error)
	// AppendBatch stores entries under category in one transaction. A
	// non-empty category becomes the first tag of every stored entry.
	AppendBatch(ctx context.Context, category string, entries []Entry) error
	// Replace atomically swaps the whole working set for entries.
	Replace(ctx context.Context, entries []Entry) error
	Clear(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// SourceStore is the read side of a knowledge source collection.
type SourceStore interface {
	ListIdentifiers(ctx context.Context) ([]string, error)
	// ReadContent returns an error wrapping ErrNotFound for unknown ids.
	ReadContent(ctx context.Context, id string) (KnowledgeSource, error)
}

// MutableSourceStore is a user-editable knowledge source collection.
type MutableSourceStore interface {
	SourceStore
	Create(ctx context.Context, id, content string) error
	Update(ctx context.Context, id, content string) error
	Rename(ctx context.Context, oldID, newID string) error
	Delete(ctx context.Context, id string) error
	Close() error
}
