// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLlama mimics the llama.cpp server routes the engine adapter calls.
type fakeLlama struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func newFakeLlama(t *testing.T, reply string) (*fakeLlama, *httptest.Server) {
	t.Helper()
	f := &fakeLlama{reply: reply}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /tokenize", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tokens":[1,2]}`))
	})
	mux.HandleFunc("POST /completion", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.prompts = append(f.prompts, body.Prompt)
		reply := f.reply
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"content": reply})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeLlama) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// testEnv isolates HOME and writes a config pointing at endpoint.
type testEnv struct {
	t       *testing.T
	dataDir string
	cfgPath string
}

func newTestEnv(t *testing.T, endpoint string) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dataDir := filepath.Join(home, "data")
	cfgPath := filepath.Join(home, "odly.yaml")
	cfg := fmt.Sprintf(`data_dir: %s
model:
  path: tiny.gguf
  check_file: false
engine:
  backend: llamacpp
  endpoint: %s
  timeout: 5s
storage:
  backend: sqlite-purego
knowledge:
  encoding: ""
logging:
  level: error
`, dataDir, endpoint)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return &testEnv{t: t, dataDir: dataDir, cfgPath: cfgPath}
}

// run executes the root command with the env's config and returns stdout.
func (e *testEnv) run(stdin string, args ...string) (string, string, error) {
	e.t.Helper()
	return execute(e.t, stdin, append([]string{"--config", e.cfgPath}, args...)...)
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
