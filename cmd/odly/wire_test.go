// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/odly-dev/odly/internal/config"
	"github.com/odly-dev/odly/pkg/health"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("data_dir", filepath.Join(t.TempDir(), "data"))
	v.Set("model.path", "tiny.gguf")
	v.Set("model.check_file", false)
	v.Set("engine.endpoint", endpoint)
	v.Set("storage.backend", "sqlite-purego")
	v.Set("knowledge.encoding", "")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestWire_BuildsComponents(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	app, err := Wire(testConfig(t, llama.URL), nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	assert.NotNil(t, app.Stores)
	assert.NotNil(t, app.Catalog)
	assert.NotNil(t, app.Session)
	assert.NotNil(t, app.Orchestrator)
	assert.NotNil(t, app.Guard)
	assert.NotNil(t, app.Organizer)
	assert.DirExists(t, app.DataDir)
	assert.FileExists(t, filepath.Join(app.DataDir, "entries.db"))

	ids, err := app.Catalog.ListIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, "odly-guide")
}

func TestWire_UnknownEngine(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Engine.Backend = "nope"

	_, err := Wire(cfg, nil)
	require.Error(t, err)
}

func TestApp_NewServer(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	app, err := Wire(testConfig(t, llama.URL), nil)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	srv, err := app.NewServer()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var m health.Metrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "uninitialized", m.State)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
