// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster_test

import (
	"context"
	"fmt"
	"time"

	"github.com/odly-dev/odly/internal/inference"
	"github.com/odly-dev/odly/internal/store"
)

type fakeQuerier struct {
	reply  string
	err    error
	calls  int
	prompt string
	opts   inference.QueryOptions
}

func (f *fakeQuerier) Query(ctx context.Context, prompt string, opts ...inference.QueryOption) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = inference.ResolveQueryOptions(0, opts...)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.reply, f.err
}

// at returns a fixed timestamp n minutes past a base time.
func at(n int) time.Time {
	return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
}

func entry(id, text string, minute int, tags ...string) store.Entry {
	return store.Entry{ID: id, Text: text, Timestamp: at(minute), Tags: tags}
}

// seqIDs returns an ID generator yielding syn-1, syn-2, ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("syn-%d", n)
	}
}

// countByID counts how often each input id appears in out.
func countByID(out []store.Entry) map[string]int {
	counts := map[string]int{}
	for _, e := range out {
		counts[e.ID]++
	}
	return counts
}
