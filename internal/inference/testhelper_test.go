// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/odly-dev/odly/internal/inference"
	"github.com/stretchr/testify/require"
)

// fakeEngine counts loads and hands out fakeModels. loadErrs[i] is returned
// by the i-th load (zero-based); missing entries succeed.
type fakeEngine struct {
	loads    atomic.Int32
	gate     chan struct{} // when non-nil, Load blocks until closed
	started  chan struct{} // receives once per Load
	mu       sync.Mutex
	loadErrs []error
	models   []*fakeModel
	output   string
	params   []inference.LoadParams
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{output: "fake answer", started: make(chan struct{}, 64)}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(_ context.Context, params inference.LoadParams) (inference.Model, error) {
	n := int(e.loads.Add(1)) - 1
	e.started <- struct{}{}
	if e.gate != nil {
		<-e.gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = append(e.params, params)
	if n < len(e.loadErrs) && e.loadErrs[n] != nil {
		return nil, e.loadErrs[n]
	}
	m := &fakeModel{output: e.output}
	e.models = append(e.models, m)
	return m, nil
}

func (e *fakeEngine) failLoads(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErrs = errs
}

func (e *fakeEngine) model(i int) *fakeModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models[i]
}

type fakeModel struct {
	mu          sync.Mutex
	probeErr    error
	completeErr error
	output      string
	requests    []inference.CompletionRequest
	probes      int
	closed      bool
	// hold, when set, parks the next Complete after closing entered.
	hold           chan struct{}
	entered        chan struct{}
	inFlight       bool
	closedInFlight bool
}

func (m *fakeModel) Tokenize(_ context.Context, text string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	return make([]int, len(text)), nil
}

func (m *fakeModel) Complete(_ context.Context, req inference.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.inFlight = true
	hold, entered := m.hold, m.entered
	m.hold = nil
	m.mu.Unlock()

	if hold != nil {
		close(entered)
		<-hold
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if m.completeErr != nil {
		return "", m.completeErr
	}
	return m.output, nil
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		m.closedInFlight = true
	}
	m.closed = true
	return nil
}

func (m *fakeModel) breakProbe() {
	m.mu.Lock()
	m.probeErr = errors.New("session evicted")
	m.mu.Unlock()
}

func (m *fakeModel) lastRequest(t *testing.T) inference.CompletionRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.requests)
	return m.requests[len(m.requests)-1]
}

// holdNextComplete parks the next Complete and returns the channels to
// observe and release it.
func (m *fakeModel) holdNextComplete() (entered <-chan struct{}, release chan<- struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = make(chan struct{})
	m.entered = make(chan struct{})
	return m.entered, m.hold
}

func (m *fakeModel) wasClosedInFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closedInFlight
}

func (m *fakeModel) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// modelFile writes a small stand-in model file and returns its path.
func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.gguf")
	require.NoError(t, os.WriteFile(path, []byte("GGUF-not-really"), 0o600))
	return path
}

func newManager(t *testing.T, eng inference.Engine, path string) *inference.Manager {
	t.Helper()
	m, err := inference.NewManager(eng, inference.Config{
		ModelPath: path,
		Session:   inference.DefaultSessionConfig(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}
