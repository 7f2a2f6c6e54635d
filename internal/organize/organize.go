// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package organize rewrites the entry working set into clustered form under
// the protection of the mutation guard.
package organize

import (
	"context"
	"log/slog"
	"sync"

	"github.com/odly-dev/odly/internal/cluster"
	"github.com/odly-dev/odly/internal/mutation"
	"github.com/odly-dev/odly/internal/store"
)

// Clusterer turns a working set into its reorganized form.
type Clusterer interface {
	Cluster(ctx context.Context, entries []store.Entry) (cluster.Result, error)
}

// Guard runs a mutation with snapshot and rollback.
type Guard interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
	Restore(ctx context.Context) (*mutation.Snapshot, error)
}

// Report summarises one reorganization.
type Report struct {
	Before int `json:"before"`
	After  int `json:"after"`
	// Categories lists the written categories in write order; "" is the
	// untagged batch.
	Categories []string `json:"categories"`
	Semantic   string   `json:"semantic"`
	Violation  string   `json:"violation,omitempty"`
}

// Organizer serialises reorganizations of one entry store.
type Organizer struct {
	entries   store.EntryStore
	guard     Guard
	clusterer Clusterer
	logger    *slog.Logger
	mu        sync.RWMutex
}

func New(entries store.EntryStore, guard Guard, clusterer Clusterer, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{entries: entries, guard: guard, clusterer: clusterer, logger: logger}
}

// Reorganize clusters all entries and replaces the working set with the
// result, one AppendBatch per category. Any failure restores the previous set.
func (o *Organizer) Reorganize(ctx context.Context) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var report Report
	err := o.guard.Run(ctx, func(ctx context.Context) error {
		entries, err := o.entries.List(ctx)
		if err != nil {
			return err
		}
		report.Before = len(entries)

		res, err := o.clusterer.Cluster(ctx, entries)
		if err != nil {
			return err
		}
		report.Semantic = res.Semantic.Outcome
		if res.Semantic.Violation != nil {
			report.Violation = res.Semantic.Violation.Error()
		}

		if err := o.entries.Clear(ctx); err != nil {
			return err
		}
		for _, batch := range byCategory(res.Entries) {
			if err := o.entries.AppendBatch(ctx, batch.Tag, batch.Entries); err != nil {
				return err
			}
			report.Categories = append(report.Categories, batch.Tag)
		}
		report.After = len(res.Entries)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	o.logger.Info("entries reorganized", "before", report.Before, "after", report.After,
		"categories", len(report.Categories), "semantic", report.Semantic)
	return report, nil
}

// List returns the current working set. It waits for a running
// reorganization or restore so a half-written set is never observed.
func (o *Organizer) List(ctx context.Context) ([]store.Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.entries.List(ctx)
}

// Append stores one entry. It waits for a running reorganization so the
// entry cannot be dropped by the rewrite.
func (o *Organizer) Append(ctx context.Context, entry store.Entry) (store.Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.entries.Append(ctx, entry)
}

// Restore replaces the working set with the last snapshot.
func (o *Organizer) Restore(ctx context.Context) (*mutation.Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.guard.Restore(ctx)
}

// byCategory groups entries by routing category in order of first
// appearance, keeping entry order within each group.
func byCategory(entries []store.Entry) []cluster.Bucket {
	var out []cluster.Bucket
	index := map[string]int{}
	for _, e := range entries {
		tag := e.Category()
		i, ok := index[tag]
		if !ok {
			i = len(out)
			index[tag] = i
			out = append(out, cluster.Bucket{Tag: tag})
		}
		out[i].Entries = append(out[i].Entries, e)
	}
	return out
}
