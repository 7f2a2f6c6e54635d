// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster_test

import (
	"testing"

	"github.com/odly-dev/odly/internal/cluster"
	"github.com/odly-dev/odly/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	entries := []store.Entry{
		entry("1", "standup", 1, "work"),
		entry("2", "random thought", 2),
		entry("3", "buy milk", 3, "errands", "home"),
		entry("4", "leftover", 4, "Uncategorized"),
		entry("5", "review", 5, "work"),
		entry("6", "padded sentinel", 6, " uncategorized "),
	}

	got := cluster.Partition(entries, "uncategorized")

	require.Len(t, got.Buckets, 2)
	assert.Equal(t, "errands", got.Buckets[0].Tag, "buckets sorted by tag")
	assert.Equal(t, "work", got.Buckets[1].Tag)
	assert.Equal(t, []string{"1", "5"}, ids(got.Buckets[1].Entries))
	assert.Equal(t, []string{"2", "4", "6"}, ids(got.Pool))

	total := len(got.Pool)
	for _, b := range got.Buckets {
		total += len(b.Entries)
	}
	assert.Equal(t, len(entries), total, "every entry lands in exactly one place")
}

func TestPartition_Empty(t *testing.T) {
	got := cluster.Partition(nil, "uncategorized")
	assert.Empty(t, got.Buckets)
	assert.Empty(t, got.Pool)
}

func ids(entries []store.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
