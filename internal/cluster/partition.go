// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package cluster groups entries: tagged entries are merged per category
// and untagged ones are grouped by the model under a strict JSON contract,
// falling back to leaving them as they were.
package cluster

import (
	"slices"
	"strings"

	"github.com/odly-dev/odly/internal/store"
)

// Bucket holds the entries sharing one routing category.
type Bucket struct {
	Tag     string
	Entries []store.Entry
}

// Partitioned is the output of Partition. Every input entry lands in
// exactly one bucket or in Pool.
type Partitioned struct {
	// Buckets are sorted by ascending tag.
	Buckets []Bucket
	// Pool holds the untagged entries in input order.
	Pool []store.Entry
}

// Partition routes entries by their first tag. Entries without a tag, or
// whose first tag is uncategorized (compared case-insensitively), go to the
// semantic pool.
func Partition(entries []store.Entry, uncategorized string) Partitioned {
	var out Partitioned
	index := map[string]int{}
	for _, e := range entries {
		tag := strings.TrimSpace(e.Category())
		if tag == "" || strings.EqualFold(tag, uncategorized) {
			out.Pool = append(out.Pool, e)
			continue
		}
		i, ok := index[tag]
		if !ok {
			i = len(out.Buckets)
			index[tag] = i
			out.Buckets = append(out.Buckets, Bucket{Tag: tag})
		}
		out.Buckets[i].Entries = append(out.Buckets[i].Entries, e)
	}
	slices.SortFunc(out.Buckets, func(a, b Bucket) int { return strings.Compare(a.Tag, b.Tag) })
	return out
}
