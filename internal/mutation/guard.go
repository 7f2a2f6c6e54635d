// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package mutation protects the entry working set during risky rewrites.
// A full snapshot is persisted next to, not inside, the entry store before
// the rewrite and is either committed (kept as last known good) or used to
// restore the store.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odly-dev/odly/internal/store"
	"github.com/odly-dev/odly/internal/telemetry"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// Resolutions reported to metrics.
const (
	ResolutionCommit         = "commit"
	ResolutionRollback       = "rollback"
	ResolutionRollbackFailed = "rollback_failed"
)

// Config locates and instruments a Guard.
type Config struct {
	// Dir holds the snapshot file, typically <data_dir>/backup.
	Dir     string
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

// Guard implements snapshot, commit and rollback around one mutation at a
// time. Callers must not touch the entry store between BeforeMutation and
// Commit or Rollback except through the mutation itself.
type Guard struct {
	entries store.EntryStore
	path    string
	cfg     Config
	mu      sync.Mutex
}

func NewGuard(entries store.EntryStore, cfg Config) (*Guard, error) {
	if cfg.Dir == "" {
		return nil, odlyerr.New(odlyerr.CodeConfigValidateInvalidValue, "mutation guard: backup dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "creating backup dir",
			odlyerr.Field("path", cfg.Dir))
	}
	return &Guard{entries: entries, path: filepath.Join(cfg.Dir, SnapshotFile), cfg: cfg}, nil
}

// Path returns the snapshot file location.
func (g *Guard) Path() string { return g.path }

// BeforeMutation captures and persists a full copy of the entry store. It
// refuses to start while a previous snapshot is still pending.
func (g *Guard) BeforeMutation(ctx context.Context) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, err := readSnapshot(g.path)
	switch {
	case err == nil && prev.State == StatePending:
		return nil, odlyerr.New(odlyerr.CodeMutationSnapshotPending,
			"a previous mutation was never resolved; run restore first", odlyerr.FieldSnapshotID(prev.ID))
	case err != nil && !odlyerr.IsNotFound(err):
		// An unreadable old snapshot is replaced; it cannot be restored anyway.
		g.cfg.Logger.Warn("discarding unreadable snapshot", "path", g.path, "error", err)
	}

	entries, err := g.entries.List(ctx)
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "listing entries for snapshot")
	}

	snap := &Snapshot{
		ID:      uuid.NewString(),
		TakenAt: g.cfg.Now().UTC(),
		State:   StatePending,
		Entries: store.CloneEntries(entries),
	}
	if err := writeSnapshot(g.path, snap); err != nil {
		return nil, err
	}
	g.cfg.Logger.Debug("snapshot taken", "snapshot_id", snap.ID, "entries", len(snap.Entries))
	return snap, nil
}

// Commit resolves the pending snapshot as committed. The file is kept as
// the last known good working set.
func (g *Guard) Commit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, err := g.pending()
	if err != nil {
		return err
	}
	snap.State = StateCommitted
	if err := writeSnapshot(g.path, snap); err != nil {
		return err
	}
	g.cfg.Metrics.Mutation(ResolutionCommit)
	return nil
}

// Rollback replaces the entry store with the pending snapshot and returns
// the restored entries. Every failure is a rollback failure.
func (g *Guard) Rollback(ctx context.Context) ([]store.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := g.rollback(ctx)
	if err != nil {
		g.cfg.Metrics.Mutation(ResolutionRollbackFailed)
		return nil, odlyerr.Relabel(err, odlyerr.CodeMutationRollbackFailure, "restoring entries from snapshot",
			odlyerr.Field("path", g.path))
	}
	g.cfg.Metrics.Mutation(ResolutionRollback)
	return entries, nil
}

func (g *Guard) rollback(ctx context.Context) ([]store.Entry, error) {
	snap, err := g.pending()
	if err != nil {
		return nil, err
	}
	if err := g.restore(ctx, snap); err != nil {
		return nil, err
	}
	return store.CloneEntries(snap.Entries), nil
}

// Run guards fn: snapshot, run, then commit on success or roll back on
// error or panic. When the rollback itself fails the returned error is a
// rollback failure carrying the mutation error; otherwise the mutation
// error is returned as is. A commit that fails after fn succeeded is a
// commit failure: the store already holds the new entries.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := g.BeforeMutation(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if _, rbErr := g.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				g.cfg.Logger.Error("rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if mutErr := fn(ctx); mutErr != nil {
		if _, rbErr := g.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			g.cfg.Logger.Error("rollback failed, entries may be lost; the snapshot file is kept",
				"path", g.path, "mutation_error", mutErr, "error", rbErr)
			return odlyerr.Relabel(odlyerr.Join(mutErr, rbErr), odlyerr.CodeMutationRollbackFailure,
				"mutation failed and restoring the snapshot failed too",
				odlyerr.Field("mutation_error", mutErr.Error()), odlyerr.Field("path", g.path))
		}
		g.cfg.Logger.Warn("mutation failed, entries restored from snapshot", "error", mutErr)
		return mutErr
	}

	if err := g.Commit(); err != nil {
		g.cfg.Logger.Error("mutation applied but the snapshot could not be marked committed; entries are intact",
			"path", g.path, "error", err)
		return odlyerr.Relabel(err, odlyerr.CodeMutationCommitFailure,
			"entries were rewritten but the snapshot is still pending",
			odlyerr.Field("path", g.path))
	}
	return nil
}

// LastKnownGood returns the retained snapshot, whatever its state.
func (g *Guard) LastKnownGood(context.Context) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return readSnapshot(g.path)
}

// Restore replaces the entry store with the retained snapshot, pending or
// not. It is the manual recovery path after a crash or a regretted commit.
func (g *Guard) Restore(ctx context.Context) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, err := readSnapshot(g.path)
	if err != nil {
		return nil, err
	}
	if err := g.restore(ctx, snap); err != nil {
		return nil, err
	}
	g.cfg.Logger.Info("entries restored from snapshot", "snapshot_id", snap.ID, "entries", len(snap.Entries))
	return snap, nil
}

func (g *Guard) pending() (*Snapshot, error) {
	snap, err := readSnapshot(g.path)
	if err != nil {
		return nil, err
	}
	if snap.State != StatePending {
		return nil, odlyerr.New(odlyerr.CodeMutationSnapshotNotPending,
			fmt.Sprintf("snapshot is %s, not pending", snap.State), odlyerr.FieldSnapshotID(snap.ID))
	}
	return snap, nil
}

// restore writes snap's entries to the store and marks it restored.
func (g *Guard) restore(ctx context.Context, snap *Snapshot) error {
	if err := g.entries.Replace(ctx, snap.Entries); err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeStoreDatabaseFailure, "replacing entries",
			odlyerr.FieldSnapshotID(snap.ID))
	}
	snap.State = StateRestored
	return writeSnapshot(g.path, snap)
}
