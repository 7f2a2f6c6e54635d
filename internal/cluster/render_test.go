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

func TestRouteDeterministic_ChronologicalBullets(t *testing.T) {
	bucket := cluster.Bucket{Tag: "errands", Entries: []store.Entry{
		entry("b", "call mom", 2, "errands"),
		entry("a", "buy milk", 1, "errands"),
	}}

	got := cluster.RouteDeterministic([]cluster.Bucket{bucket}, seqIDs())

	require.Len(t, got, 1)
	assert.Equal(t, "syn-1", got[0].ID)
	assert.Equal(t, "• buy milk\n\n• call mom", got[0].Text)
	assert.Equal(t, []string{"errands"}, got[0].Tags)
	assert.True(t, at(2).Equal(got[0].Timestamp), "synthetic entry takes the newest timestamp")
}

func TestRouteDeterministic_OnePerBucketInOrder(t *testing.T) {
	parts := cluster.Partition([]store.Entry{
		entry("1", "x", 1, "zeta"),
		entry("2", "y", 2, "alpha"),
		entry("3", "z", 3, "zeta"),
	}, "uncategorized")

	got := cluster.RouteDeterministic(parts.Buckets, seqIDs())
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Category())
	assert.Equal(t, "zeta", got[1].Category())
	assert.Equal(t, "• x\n\n• z", got[1].Text)
}

func TestRender_ReusesExistingBullets(t *testing.T) {
	got := cluster.Render([]store.Entry{
		entry("1", "• already bulleted", 1),
		entry("2", "- dashed", 2),
		entry("3", "* starred", 3),
		entry("4", "  plain  ", 4),
		entry("5", "-5 degrees tonight", 5),
	})
	assert.Equal(t, "• already bulleted\n\n- dashed\n\n* starred\n\n• plain\n\n• -5 degrees tonight", got)
}

func TestRender_StableForEqualTimestamps(t *testing.T) {
	got := cluster.Render([]store.Entry{
		entry("1", "first", 1),
		entry("2", "second", 1),
	})
	assert.Equal(t, "• first\n\n• second", got)
}

func TestRender_RerenderIsStable(t *testing.T) {
	once := cluster.Render([]store.Entry{entry("1", "a", 1), entry("2", "b", 2)})
	twice := cluster.Render([]store.Entry{{ID: "s", Text: once, Timestamp: at(2)}})
	assert.Equal(t, once, twice)
}

func TestRouteDeterministic_KeepsSecondaryTags(t *testing.T) {
	bucket := cluster.Bucket{Tag: "work", Entries: []store.Entry{
		entry("1", "a", 1, "work", "urgent"),
		entry("2", "b", 2, "work", "q3", "urgent"),
	}}
	got := cluster.RouteDeterministic([]cluster.Bucket{bucket}, seqIDs())
	require.Len(t, got, 1)
	assert.Equal(t, []string{"work", "urgent", "q3"}, got[0].Tags)
}
