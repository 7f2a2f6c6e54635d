// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctor_AllChecksReported(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)

	out, _, err := env.run("", "doctor")
	require.NoError(t, err)
	for _, name := range []string{"Binary:", "Platform:", "Config:", "Model:", "Engine:", "Storage:", "Disk Space:", "Server:"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "llamacpp at "+llama.URL+": ok")
	assert.Contains(t, out, "sqlite-purego")
	assert.Contains(t, out, "file check disabled")
}

func TestDoctor_EngineUnreachable(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	llama.Close()

	_, _, err := env.run("", "doctor")
	require.Error(t, err)
	assert.True(t, odlyerr.HasCode(err, odlyerr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "1 check(s) failed")
}

func TestDoctor_MissingModelFile(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	raw, err := os.ReadFile(env.cfgPath)
	require.NoError(t, err)
	cfg := strings.Replace(string(raw), "check_file: false", "check_file: true", 1)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(cfg), 0o600))

	out, _, err := env.run("", "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "expected model at tiny.gguf")
}

func TestDoctor_InvalidConfig(t *testing.T) {
	_, llama := newFakeLlama(t, "")
	env := newTestEnv(t, llama.URL)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte("engine:\n  backend: nope\n"), 0o600))

	out, _, err := env.run("", "doctor")
	require.Error(t, err)
	assert.True(t, odlyerr.IsInvalidInput(err))
	assert.Contains(t, out, "Config:")
	assert.NotContains(t, out, "Model:")
}

func TestCheckServer_Running(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(health.Metrics{State: "ready", Available: true})
	}))
	defer srv.Close()

	res := checkServer(srv.Listener.Addr().String())
	assert.Equal(t, statusOK, res.status)
	assert.Contains(t, res.detail, "session ready")
}

func TestCheckServer_NotRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := checkServer(addr)
	assert.Equal(t, statusWarn, res.status)
	assert.Contains(t, res.detail, "not running at "+addr)
}
