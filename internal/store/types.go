// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package store

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// UncategorizedTag is the sentinel tag that routes an entry to the semantic
// clustering pool just like an untagged entry.
const UncategorizedTag = "uncategorized"

// Entry is a free-text item with optional category tags.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
}

// Category returns the routing category: the first tag, or "" when untagged.
func (e Entry) Category() string {
	if len(e.Tags) == 0 {
		return ""
	}
	return e.Tags[0]
}

// Clone returns a deep copy whose tag slice shares nothing with e.
func (e Entry) Clone() Entry {
	e.Tags = slices.Clone(e.Tags)
	return e
}

// WithCategory returns a copy of e whose first tag is category. The tag is
// moved to the front if already present elsewhere.
func (e Entry) WithCategory(category string) Entry {
	out := e.Clone()
	if category == "" || out.Category() == category {
		return out
	}
	out.Tags = slices.DeleteFunc(out.Tags, func(t string) bool { return t == category })
	out.Tags = append([]string{category}, out.Tags...)
	return out
}

// Validate checks the fields every stored entry must carry.
func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry: ID is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("entry %s: text is required: %w", e.ID, ErrInvalidInput)
	}
	for _, t := range e.Tags {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("entry %s: empty tag: %w", e.ID, ErrInvalidInput)
		}
	}
	return nil
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// KnowledgeSource is an immutable snapshot of a named body of text, taken at
// read time.
type KnowledgeSource struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// NewKnowledgeSource snapshots content under id, recording its byte size.
func NewKnowledgeSource(id, content string) KnowledgeSource {
	return KnowledgeSource{ID: id, Content: content, Size: len(content)}
}

// ValidateSourceID checks that id is usable as a source identifier: a
// non-empty single line without surrounding whitespace.
func ValidateSourceID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("source id is required: %w", ErrInvalidInput)
	case strings.TrimSpace(id) != id:
		return fmt.Errorf("source id %q has surrounding whitespace: %w", id, ErrInvalidInput)
	case strings.ContainsAny(id, "\r\n[]"):
		return fmt.Errorf("source id %q contains a newline or bracket: %w", id, ErrInvalidInput)
	}
	return nil
}
