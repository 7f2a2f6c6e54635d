// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, _, err := execute(t, "", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"ask", "chat", "sources", "entries", "doctor", "serve", "secret", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "odly dev")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, err := execute(t, "", "--config", "/nonexistent/path.yaml", "sources", "list")
	require.Error(t, err)
	assert.True(t, odlyerr.HasCode(err, odlyerr.CodeConfigLoadReadFailure))
}

func TestRootCommand_BootstrapsDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".config", "odly", "odly.yaml"))
}

func TestRootCommand_InvalidConfigRejected(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgPath := filepath.Join(home, "odly.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: loud\n"), 0o600))

	_, _, err := execute(t, "", "--config", cfgPath, "entries", "list")
	require.Error(t, err)
	assert.True(t, odlyerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "logging.level")
}

func TestRootCommand_DataDirFlagOverridesConfig(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	override := filepath.Join(t.TempDir(), "other")

	_, _, err := env.run("", "--data-dir", override, "entries", "add", "hello")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(override, "entries.db"))
	assert.NoFileExists(t, filepath.Join(env.dataDir, "entries.db"))
}
