// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

var _ store.MutableSourceStore = (*Catalog)(nil)

// Catalog merges the builtin collection with the user's editable sources.
// Builtin ids come first and cannot be shadowed, renamed or deleted.
type Catalog struct {
	builtin *Builtin
	user    store.MutableSourceStore
	logger  *slog.Logger
}

// NewCatalog builds a catalog. user may be nil for a read-only catalog.
func NewCatalog(builtin *Builtin, user store.MutableSourceStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if builtin == nil {
		builtin = &Builtin{}
	}
	return &Catalog{builtin: builtin, user: user, logger: logger}
}

// ListIdentifiers returns builtin ids followed by user ids, de-duplicated.
// A user collection that fails to list is logged and left out.
func (c *Catalog) ListIdentifiers(ctx context.Context) ([]string, error) {
	ids, _ := c.builtin.ListIdentifiers(ctx)
	if c.user == nil {
		return ids, nil
	}

	userIDs, err := c.user.ListIdentifiers(ctx)
	if err != nil {
		if len(ids) == 0 {
			return nil, odlyerr.Wrap(err, odlyerr.CodeKnowledgeCatalogListFailure, "listing knowledge sources")
		}
		c.logger.Warn("user knowledge sources unavailable", "error", err)
		return ids, nil
	}

	seen := make(map[string]struct{}, len(ids)+len(userIDs))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Catalog) ReadContent(ctx context.Context, id string) (store.KnowledgeSource, error) {
	if c.builtin.Has(id) {
		return c.builtin.ReadContent(ctx, id)
	}
	if c.user == nil {
		return store.KnowledgeSource{}, notFound(id, store.ErrNotFound)
	}
	src, err := c.user.ReadContent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.KnowledgeSource{}, notFound(id, err)
	}
	return src, err
}

// IsBuiltin reports whether id belongs to the read-only collection.
func (c *Catalog) IsBuiltin(id string) bool {
	return c.builtin.Has(id)
}

func (c *Catalog) Create(ctx context.Context, id, content string) error {
	if err := c.writable(); err != nil {
		return err
	}
	if c.builtin.Has(id) {
		return odlyerr.New(odlyerr.CodeKnowledgeSourceConflict,
			"source id is reserved by a builtin source", odlyerr.FieldSourceID(id))
	}
	return mapUserErr(c.user.Create(ctx, id, content), id)
}

func (c *Catalog) Update(ctx context.Context, id, content string) error {
	if err := c.mutable(id); err != nil {
		return err
	}
	return mapUserErr(c.user.Update(ctx, id, content), id)
}

func (c *Catalog) Rename(ctx context.Context, oldID, newID string) error {
	if err := c.mutable(oldID); err != nil {
		return err
	}
	if c.builtin.Has(newID) {
		return odlyerr.New(odlyerr.CodeKnowledgeSourceConflict,
			"source id is reserved by a builtin source", odlyerr.FieldSourceID(newID))
	}
	return mapUserErr(c.user.Rename(ctx, oldID, newID), oldID)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.mutable(id); err != nil {
		return err
	}
	return mapUserErr(c.user.Delete(ctx, id), id)
}

// Close closes the user collection.
func (c *Catalog) Close() error {
	if c.user == nil {
		return nil
	}
	return c.user.Close()
}

func (c *Catalog) writable() error {
	if c.user == nil {
		return odlyerr.New(odlyerr.CodeKnowledgeSourceReadOnly, "no user source collection configured")
	}
	return nil
}

func (c *Catalog) mutable(id string) error {
	if c.builtin.Has(id) {
		return odlyerr.New(odlyerr.CodeKnowledgeSourceReadOnly,
			"builtin sources are read-only", odlyerr.FieldSourceID(id))
	}
	return c.writable()
}

func notFound(id string, err error) error {
	return odlyerr.Wrap(err, odlyerr.CodeKnowledgeSourceNotFound, "knowledge source not found", odlyerr.FieldSourceID(id))
}

// mapUserErr translates store sentinels into coded knowledge errors.
func mapUserErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound(id, err)
	case errors.Is(err, store.ErrConflict):
		return odlyerr.Wrap(err, odlyerr.CodeKnowledgeSourceConflict, "knowledge source already exists", odlyerr.FieldSourceID(id))
	case errors.Is(err, store.ErrInvalidInput):
		return odlyerr.Wrap(err, odlyerr.CodeKnowledgeSourceInvalidInput, "invalid knowledge source", odlyerr.FieldSourceID(id))
	default:
		return odlyerr.Wrap(err, odlyerr.CodeStoreDatabaseFailure, "knowledge source store", odlyerr.FieldSourceID(id))
	}
}
