// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

const semanticInstruction = `You group short personal notes by topic.
Reply with ONLY a JSON array and nothing else. Each element is an object with a "messages" array
holding the full text of every note in that group, copied exactly as given.
Never refer to notes by number or position. Put every note in exactly one group;
a note that fits nowhere gets a group of its own.
Example: [{"messages": ["first note text", "second note text"]}, {"messages": ["third note text"]}]`

// noteSeparator delimits notes in the semantic prompt.
const noteSeparator = "\n---\n"

// SemanticPrompt lists the full text of every pool entry for the model.
func SemanticPrompt(pool []store.Entry) string {
	var b strings.Builder
	b.WriteString("Group these notes:")
	for _, e := range pool {
		b.WriteString(noteSeparator)
		b.WriteString(strings.TrimSpace(e.Text))
	}
	b.WriteString(noteSeparator)
	return b.String()
}

// ParseResult is the outcome of validating a semantic response. Exactly one
// of Groups and Violation is meaningful: a non-nil Violation means the
// response broke the contract and Groups is nil.
type ParseResult struct {
	Groups    [][]string
	Violation error
}

// OK reports whether the response honoured the contract.
func (r ParseResult) OK() bool { return r.Violation == nil }

func violation(reason string, fields ...odlyerr.Attr) ParseResult {
	fields = append(fields, odlyerr.Field("reason", reason))
	return ParseResult{Violation: odlyerr.New(odlyerr.CodeClusterContractViolation,
		"semantic clustering response violates contract: "+reason, fields...)}
}

// ParseResponse extracts the first top-level JSON array from raw and checks
// that it is a list of objects whose "messages" are non-empty strings.
func ParseResponse(raw string) ParseResult {
	arr, ok := extractJSONArray(raw)
	if !ok {
		return violation("no complete JSON array in response")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &elems); err != nil {
		return violation("array does not decode: " + err.Error())
	}

	groups := make([][]string, 0, len(elems))
	for i, elem := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(elem, &obj); err != nil || obj == nil {
			return violation(fmt.Sprintf("group %d is not an object", i), odlyerr.Field("group", i))
		}
		rawMsgs, ok := obj["messages"]
		if !ok {
			return violation(fmt.Sprintf("group %d has no messages", i), odlyerr.Field("group", i))
		}
		var msgs []json.RawMessage
		if err := json.Unmarshal(rawMsgs, &msgs); err != nil || len(msgs) == 0 {
			return violation(fmt.Sprintf("group %d messages is not a non-empty array", i), odlyerr.Field("group", i))
		}
		texts := make([]string, 0, len(msgs))
		for j, m := range msgs {
			var s string
			if err := json.Unmarshal(m, &s); err != nil || strings.TrimSpace(s) == "" {
				return violation(fmt.Sprintf("group %d message %d is not a non-empty string", i, j),
					odlyerr.Field("group", i))
			}
			texts = append(texts, s)
		}
		groups = append(groups, texts)
	}
	return ParseResult{Groups: groups}
}

// extractJSONArray returns the first top-level JSON array in raw. Brackets
// inside string literals do not count. A balanced candidate that is not
// valid JSON (for example "[see below]" in prose before the answer) is skipped; an
// unbalanced one ends the search since the rest of raw lies inside it.
func extractJSONArray(raw string) (string, bool) {
	for i := 0; i < len(raw); {
		start := strings.IndexByte(raw[i:], '[')
		if start < 0 {
			break
		}
		start += i
		end := matchBracket(raw, start)
		if end < 0 {
			break
		}
		if candidate := raw[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
		i = end + 1
	}
	return "", false
}

// matchBracket returns the index closing the bracket at raw[start], or -1.
func matchBracket(raw string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Group is an ordered set of pool entries judged similar.
type Group struct {
	Entries []store.Entry
}

// Resolve maps parsed group texts back onto pool entries by exact trimmed
// text. Each entry is claimed at most once, strings that match nothing are
// returned in unmatched, and entries no group mentions come back as
// singleton groups after the parsed ones.
func Resolve(pool []store.Entry, parsed [][]string) (groups []Group, unmatched []string) {
	claimed := make([]bool, len(pool))
	for _, texts := range parsed {
		var g Group
		for _, text := range texts {
			text = strings.TrimSpace(text)
			i := findUnclaimed(pool, claimed, text)
			if i < 0 {
				unmatched = append(unmatched, text)
				continue
			}
			claimed[i] = true
			g.Entries = append(g.Entries, pool[i])
		}
		if len(g.Entries) > 0 {
			groups = append(groups, g)
		}
	}
	for i, e := range pool {
		if !claimed[i] {
			groups = append(groups, Group{Entries: []store.Entry{e}})
		}
	}
	return groups, unmatched
}

func findUnclaimed(pool []store.Entry, claimed []bool, text string) int {
	for i, e := range pool {
		if !claimed[i] && strings.TrimSpace(e.Text) == text {
			return i
		}
	}
	return -1
}

// Singletons puts every pool entry in a group of its own.
func Singletons(pool []store.Entry) []Group {
	groups := make([]Group, len(pool))
	for i, e := range pool {
		groups[i] = Group{Entries: []store.Entry{e}}
	}
	return groups
}
