// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package store_test

import (
	"testing"

	"github.com/odly-dev/odly/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestEntry_Category(t *testing.T) {
	assert.Equal(t, "", store.Entry{}.Category())
	assert.Equal(t, "errands", store.Entry{Tags: []string{"errands", "home"}}.Category())
}

func TestEntry_CloneIsIndependent(t *testing.T) {
	orig := store.Entry{ID: "1", Text: "t", Tags: []string{"a"}}
	clone := orig.Clone()
	clone.Tags[0] = "changed"
	assert.Equal(t, "a", orig.Tags[0])
}

func TestEntry_WithCategory(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		category string
		want     []string
	}{
		{"untagged gets category", nil, "work", []string{"work"}},
		{"already first", []string{"work", "x"}, "work", []string{"work", "x"}},
		{"moved to front", []string{"x", "work"}, "work", []string{"work", "x"}},
		{"prepended", []string{"x"}, "work", []string{"work", "x"}},
		{"empty category keeps tags", []string{"x"}, "", []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := store.Entry{ID: "1", Text: "t", Tags: tt.tags}
			got := orig.WithCategory(tt.category)
			assert.Equal(t, tt.want, got.Tags)
			assert.Equal(t, tt.tags, orig.Tags, "receiver is untouched")
		})
	}
}

func TestCloneEntries(t *testing.T) {
	assert.Nil(t, store.CloneEntries(nil))

	orig := []store.Entry{{ID: "1", Text: "a", Tags: []string{"t"}}}
	got := store.CloneEntries(orig)
	got[0].Tags[0] = "x"
	got[0].Text = "b"
	assert.Equal(t, "t", orig[0].Tags[0])
	assert.Equal(t, "a", orig[0].Text)
}

func TestNewKnowledgeSource(t *testing.T) {
	src := store.NewKnowledgeSource("work", "héllo")
	assert.Equal(t, 6, src.Size, "size counts bytes")
}
