// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge_test

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/odly-dev/odly/internal/inference"
	"github.com/odly-dev/odly/internal/store"
)

// memSources is an in-memory MutableSourceStore with injectable failures.
type memSources struct {
	mu      sync.Mutex
	ids     []string
	content map[string]string
	readErr map[string]error
	listErr error
}

func newMemSources(pairs ...string) *memSources {
	m := &memSources{content: map[string]string{}, readErr: map[string]error{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.ids = append(m.ids, pairs[i])
		m.content[pairs[i]] = pairs[i+1]
	}
	return m
}

func (m *memSources) ListIdentifiers(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.ids), nil
}

func (m *memSources) ReadContent(_ context.Context, id string) (store.KnowledgeSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[id]; err != nil {
		return store.KnowledgeSource{}, err
	}
	c, ok := m.content[id]
	if !ok {
		return store.KnowledgeSource{}, fmt.Errorf("source %s: %w", id, store.ErrNotFound)
	}
	return store.NewKnowledgeSource(id, c), nil
}

func (m *memSources) Create(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.content[id]; ok {
		return fmt.Errorf("source %s: %w", id, store.ErrConflict)
	}
	m.ids = append(m.ids, id)
	m.content[id] = content
	return nil
}

func (m *memSources) Update(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.content[id]; !ok {
		return fmt.Errorf("source %s: %w", id, store.ErrNotFound)
	}
	m.content[id] = content
	return nil
}

func (m *memSources) Rename(_ context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[oldID]
	if !ok {
		return fmt.Errorf("source %s: %w", oldID, store.ErrNotFound)
	}
	if _, taken := m.content[newID]; taken {
		return fmt.Errorf("source %s: %w", newID, store.ErrConflict)
	}
	delete(m.content, oldID)
	m.content[newID] = c
	m.ids[slices.Index(m.ids, oldID)] = newID
	return nil
}

func (m *memSources) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.content[id]; !ok {
		return fmt.Errorf("source %s: %w", id, store.ErrNotFound)
	}
	delete(m.content, id)
	m.ids = slices.DeleteFunc(m.ids, func(s string) bool { return s == id })
	return nil
}

func (m *memSources) Close() error { return nil }

// fakeQuerier records the last query and replies with a fixed text.
type fakeQuerier struct {
	reply  string
	err    error
	calls  int
	prompt string
	opts   inference.QueryOptions
}

func (f *fakeQuerier) Query(_ context.Context, prompt string, opts ...inference.QueryOption) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = inference.ResolveQueryOptions(0, opts...)
	return f.reply, f.err
}

// lenCounter counts one token per byte.
type lenCounter struct{}

func (lenCounter) Count(text string) int { return len(text) }
