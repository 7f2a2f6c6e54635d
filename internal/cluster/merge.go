// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster

import "github.com/odly-dev/odly/internal/store"

// Merge concatenates the deterministic entries and the rendered semantic
// groups. A singleton group passes its entry through unchanged; larger
// groups become one bulleted entry tagged uncategorized.
func Merge(deterministic []store.Entry, groups []Group, uncategorized string, newID func() string) []store.Entry {
	out := make([]store.Entry, 0, len(deterministic)+len(groups))
	out = append(out, store.CloneEntries(deterministic)...)
	for _, g := range groups {
		switch len(g.Entries) {
		case 0:
		case 1:
			out = append(out, g.Entries[0].Clone())
		default:
			out = append(out, synthesize(newID(), uncategorized, g.Entries))
		}
	}
	return out
}
