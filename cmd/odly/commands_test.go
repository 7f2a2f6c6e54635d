// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSources_Lifecycle(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)

	out, _, err := env.run("bake at 180C for 25 minutes", "sources", "add", "recipes")
	require.NoError(t, err)
	assert.Contains(t, out, "Added source: recipes")

	out, _, err = env.run("", "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "odly-guide")
	assert.Contains(t, out, "builtin")
	assert.Regexp(t, `recipes\s+user`, out)

	out, _, err = env.run("", "sources", "show", "recipes")
	require.NoError(t, err)
	assert.Contains(t, out, "bake at 180C")

	_, _, err = env.run("", "sources", "rename", "recipes", "baking")
	require.NoError(t, err)

	_, _, err = env.run("", "sources", "rm", "baking")
	require.NoError(t, err)

	out, _, err = env.run("", "sources", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "baking")
}

func TestSources_AddFromFile(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	path := filepath.Join(t.TempDir(), "work.md")
	require.NoError(t, os.WriteFile(path, []byte("standup at 9"), 0o600))

	_, _, err := env.run("", "sources", "add", "work", "--file", path)
	require.NoError(t, err)

	out, _, err := env.run("", "sources", "show", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "standup at 9")
}

func TestSources_BuiltinIsReadOnly(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)

	_, _, err := env.run("", "sources", "rm", "odly-guide")
	require.Error(t, err)
	assert.True(t, odlyerr.IsForbidden(err))
}

func TestAsk_UsesSelectedSources(t *testing.T) {
	f, llama := newFakeLlama(t, "Bake it for 25 minutes.")
	env := newTestEnv(t, llama.URL)

	_, _, err := env.run("bake at 180C for 25 minutes", "sources", "add", "recipes")
	require.NoError(t, err)

	out, _, err := env.run("", "ask", "--source", "recipes", "how", "long", "to", "bake?")
	require.NoError(t, err)
	assert.Contains(t, out, "Bake it for 25 minutes.")
	assert.Contains(t, out, "Sources: recipes")

	prompt := f.lastPrompt()
	assert.Contains(t, prompt, "[recipes]")
	assert.Contains(t, prompt, "bake at 180C")
	assert.Contains(t, prompt, "how long to bake?")
	assert.NotContains(t, prompt, "[odly-guide]")
}

func TestAsk_EngineDown(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	llama.Close()

	_, _, err := env.run("", "ask", "anything?")
	require.Error(t, err)
	assert.True(t, odlyerr.IsModelLoad(err), "got %s", odlyerr.CodeOf(err))
}

func TestChat_SingleMessage(t *testing.T) {
	f, llama := newFakeLlama(t, "Hi there!")
	env := newTestEnv(t, llama.URL)

	out, _, err := env.run("", "chat", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi there!")
	assert.Contains(t, f.lastPrompt(), "hello")
}

func TestChat_Interactive(t *testing.T) {
	f, llama := newFakeLlama(t, "sure")
	env := newTestEnv(t, llama.URL)

	out, _, err := env.run("first\n\nsecond\n/exit\nnever sent\n", "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "sure"))
	assert.NotContains(t, f.lastPrompt(), "never sent")
}

func TestEntries_AddListReorganizeRestore(t *testing.T) {
	_, llama := newFakeLlama(t, `[{"messages": ["book flights", "pack bags"]}]`)
	env := newTestEnv(t, llama.URL)

	for _, args := range [][]string{
		{"entries", "add", "buy milk", "--tag", "errands"},
		{"entries", "add", "book flights"},
		{"entries", "add", "call mom", "--tag", "errands"},
		{"entries", "add", "pack bags"},
		{"entries", "add", "read a book"},
	} {
		_, _, err := env.run("", args...)
		require.NoError(t, err)
	}

	out, _, err := env.run("", "entries", "list")
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "\n\n"))

	out, _, err = env.run("", "entries", "reorganize")
	require.NoError(t, err)
	assert.Contains(t, out, "Reorganized 5 entries into 3")
	assert.Contains(t, out, "semantic step: parsed")

	out, _, err = env.run("", "entries", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[errands]")
	assert.Contains(t, out, "[uncategorized]")

	out, _, err = env.run("", "entries", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 5 entries")

	out, _, err = env.run("", "entries", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "[uncategorized]")
}

func TestEntries_ReorganizeWithUnusableModelOutput(t *testing.T) {
	_, llama := newFakeLlama(t, "I would rather not.")
	env := newTestEnv(t, llama.URL)

	for _, text := range []string{"one", "two"} {
		_, _, err := env.run("", "entries", "add", text)
		require.NoError(t, err)
	}

	out, stderr, err := env.run("", "entries", "reorganize")
	require.NoError(t, err)
	assert.Contains(t, out, "Reorganized 2 entries into 2")
	assert.Contains(t, stderr, "model output was unusable")
}

func TestEntries_RestoreWithoutSnapshot(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)

	_, _, err := env.run("", "entries", "restore")
	require.Error(t, err)
	assert.True(t, odlyerr.IsNotFound(err))
}

func TestEntries_EmptyList(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)

	out, _, err := env.run("", "entries", "list")
	require.NoError(t, err)
	assert.Equal(t, "No entries.\n", out)
}
