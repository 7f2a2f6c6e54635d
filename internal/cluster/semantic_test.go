// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster_test

import (
	"testing"

	"github.com/odly-dev/odly/internal/cluster"
	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want [][]string
	}{
		{
			name: "bare array",
			raw:  `[{"messages": ["a", "b"]}, {"messages": ["c"]}]`,
			want: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name: "surrounding commentary",
			raw:  "Sure! Here are the groups:\n```json\n[{\"messages\": [\"a\"]}]\n```\nLet me know [if] you need more.",
			want: [][]string{{"a"}},
		},
		{
			name: "brackets inside strings",
			raw:  `[{"messages": ["todo [x] done", "a ] b", "quote \" [ inside"]}]`,
			want: [][]string{{"todo [x] done", "a ] b", `quote " [ inside`}},
		},
		{
			name: "invalid bracketed prose before answer",
			raw:  `Grouping [see below]: [{"messages": ["a"]}]`,
			want: [][]string{{"a"}},
		},
		{
			name: "extra fields ignored",
			raw:  `[{"topic": "food", "messages": ["a"]}]`,
			want: [][]string{{"a"}},
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: [][]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cluster.ParseResponse(tt.raw)
			require.True(t, got.OK(), "violation: %v", got.Violation)
			assert.Equal(t, tt.want, got.Groups)
		})
	}
}

func TestParseResponse_Violations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I could not group these."},
		{"truncated", `[{"messages": ["a", "b"]}, {"messages": ["c"`},
		{"object not array", `{"messages": ["a"]}`},
		{"elements not objects", `["a", "b"]`},
		{"index references", `[[0, 1], [2]]`},
		{"missing messages", `[{"items": ["a"]}]`},
		{"messages not array", `[{"messages": "a"}]`},
		{"empty messages", `[{"messages": []}]`},
		{"non-string message", `[{"messages": [1]}]`},
		{"blank message", `[{"messages": ["a", "  "]}]`},
		{"null element", `[null]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cluster.ParseResponse(tt.raw)
			require.False(t, got.OK())
			assert.Nil(t, got.Groups)
			assert.True(t, odlyerr.IsContractViolation(got.Violation))
			assert.NotEmpty(t, odlyerr.FieldsOf(got.Violation)["reason"])
		})
	}
}

func TestResolve(t *testing.T) {
	pool := []store.Entry{
		entry("1", "buy milk", 1),
		entry("2", "buy eggs", 2),
		entry("3", "call mom", 3),
		entry("4", "buy milk", 4),
		entry("5", "  dentist  ", 5),
	}

	groups, unmatched := cluster.Resolve(pool, [][]string{
		{"buy milk", " buy eggs ", "buy milk", "buy milk"},
		{"invented by the model"},
		{"dentist"},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"1", "2", "4"}, ids(groups[0].Entries), "duplicate texts claim distinct entries")
	assert.Equal(t, []string{"5"}, ids(groups[1].Entries))
	assert.Equal(t, []string{"3"}, ids(groups[2].Entries), "unmentioned entries become singletons")
	assert.Equal(t, []string{"buy milk", "invented by the model"}, unmatched)
}

func TestSingletons(t *testing.T) {
	pool := []store.Entry{entry("1", "a", 1), entry("2", "b", 2)}
	groups := cluster.Singletons(pool)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"1"}, ids(groups[0].Entries))
	assert.Equal(t, []string{"2"}, ids(groups[1].Entries))
}

func TestSemanticPrompt_ListsFullTexts(t *testing.T) {
	prompt := cluster.SemanticPrompt([]store.Entry{
		entry("1", "first note\nwith two lines", 1),
		entry("2", "second", 2),
	})
	assert.Contains(t, prompt, "first note\nwith two lines")
	assert.Contains(t, prompt, "second")
	assert.NotContains(t, prompt, "1.", "notes are not numbered")
}

func TestMerge(t *testing.T) {
	det := []store.Entry{{ID: "d", Text: "• x", Timestamp: at(9), Tags: []string{"work"}}}
	single := entry("s", "lonely", 1, "uncategorized", "keep")
	groups := []cluster.Group{
		{Entries: []store.Entry{entry("2", "beta", 3), entry("1", "alpha", 2)}},
		{Entries: []store.Entry{single}},
		{},
	}

	got := cluster.Merge(det, groups, "uncategorized", seqIDs())

	require.Len(t, got, 3)
	assert.Equal(t, det[0], got[0])
	assert.Equal(t, "syn-1", got[1].ID)
	assert.Equal(t, "• alpha\n\n• beta", got[1].Text)
	assert.Equal(t, []string{"uncategorized"}, got[1].Tags)
	assert.True(t, at(3).Equal(got[1].Timestamp))
	assert.Equal(t, single, got[2], "singletons pass through unchanged")
}
