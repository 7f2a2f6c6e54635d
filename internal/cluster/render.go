// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster

import (
	"slices"
	"strings"
	"time"

	"github.com/odly-dev/odly/internal/store"
)

// Bullet prefixes every rendered item that does not already carry one.
const Bullet = "•"

var bulletPrefixes = []string{Bullet, "- ", "* "}

// bulleted returns text with a bullet prefix, reusing one that is present.
func bulleted(text string) string {
	text = strings.TrimSpace(text)
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(text, p) {
			return text
		}
	}
	return Bullet + " " + text
}

// chronological returns a copy of entries stably sorted by timestamp.
func chronological(entries []store.Entry) []store.Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b store.Entry) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}

// Render joins entries oldest first as bullet items separated by a blank line.
func Render(entries []store.Entry) string {
	items := make([]string, 0, len(entries))
	for _, e := range chronological(entries) {
		items = append(items, bulleted(e.Text))
	}
	return strings.Join(items, "\n\n")
}

// newest returns the latest timestamp among entries.
func newest(entries []store.Entry) time.Time {
	var t time.Time
	for _, e := range entries {
		if e.Timestamp.After(t) {
			t = e.Timestamp
		}
	}
	return t
}

// synthesize renders entries as one entry tagged tag. Secondary tags of the
// members are kept after tag, in first-seen order.
func synthesize(id, tag string, entries []store.Entry) store.Entry {
	tags := []string{tag}
	for _, e := range chronological(entries) {
		for _, t := range e.Tags {
			if !slices.Contains(tags, t) && !strings.EqualFold(t, tag) {
				tags = append(tags, t)
			}
		}
	}
	return store.Entry{
		ID:        id,
		Text:      Render(entries),
		Timestamp: newest(entries),
		Tags:      tags,
	}
}

// RouteDeterministic emits one synthetic entry per bucket, in bucket order.
func RouteDeterministic(buckets []Bucket, newID func() string) []store.Entry {
	out := make([]store.Entry, 0, len(buckets))
	for _, b := range buckets {
		if len(b.Entries) == 0 {
			continue
		}
		out = append(out, synthesize(newID(), b.Tag, b.Entries))
	}
	return out
}
