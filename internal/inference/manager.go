// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/odly-dev/odly/internal/telemetry"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
	"golang.org/x/sync/singleflight"
)

const (
	// probeText is tokenized before every query to prove the session is alive.
	probeText = "ping"
	loadKey   = "session"
)

// SessionConfig holds the load-time attributes of a session.
type SessionConfig struct {
	ContextWindow  int
	BatchSize      int
	Threads        int
	GPULayers      int
	MinFreeBytes   uint64
	CheckModelFile bool // stat the model path before loading; off for engines that take model names
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ContextWindow:  2048,
		BatchSize:      512,
		Threads:        4,
		CheckModelFile: true,
	}
}

func (c SessionConfig) loadParams(path string) LoadParams {
	return LoadParams{
		ModelPath:     path,
		ContextWindow: c.ContextWindow,
		BatchSize:     c.BatchSize,
		Threads:       c.Threads,
		GPULayers:     c.GPULayers,
	}
}

// Sampling holds the fixed decoding parameters used for every query.
type Sampling struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
}

func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.7, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 512}
}

// Config configures a Manager.
type Config struct {
	// ModelPath is loaded lazily by the first query when Initialize was never called.
	ModelPath string
	Session   SessionConfig
	Sampling  Sampling
	Format    PromptFormat
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// QueryOption adjusts a single Query.
type QueryOption func(*QueryOptions)

// QueryOptions is the resolved form of a set of QueryOption values.
type QueryOptions struct {
	System    string
	Context   string
	MaxTokens int
}

// ResolveQueryOptions applies opts over the given max token default.
func ResolveQueryOptions(maxTokens int, opts ...QueryOption) QueryOptions {
	o := QueryOptions{MaxTokens: maxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSystem sets the system instruction segment.
func WithSystem(instruction string) QueryOption {
	return func(o *QueryOptions) { o.System = instruction }
}

// WithContext adds reference text to the system segment.
func WithContext(text string) QueryOption {
	return func(o *QueryOptions) { o.Context = text }
}

// WithMaxTokens overrides the configured max new tokens.
func WithMaxTokens(n int) QueryOption {
	return func(o *QueryOptions) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

type session struct {
	model  Model
	params LoadParams
}

// Manager owns the one inference session of a process. Construct it once in
// the composition root and share the pointer.
type Manager struct {
	engine  Engine
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	health  *healthTracker

	loads singleflight.Group
	genMu sync.Mutex // one in-flight generation or probe per session

	mu       sync.Mutex
	state    State
	current  *session
	lastPath string
	lastCfg  SessionConfig
	// lost is set when a reinit from Invalid failed. Queries then fail fast
	// until an explicit Initialize succeeds.
	lost bool
	// retired models are closed by the next holder of genMu.
	retired []Model
}

// NewManager creates an uninitialized Manager.
func NewManager(engine Engine, cfg Config) (*Manager, error) {
	if engine == nil {
		return nil, odlyerr.New(odlyerr.CodeConfigValidateInvalidValue, "inference engine is required")
	}
	if cfg.Format.Name == "" {
		f, err := LookupPromptFormat("")
		if err != nil {
			return nil, err
		}
		cfg.Format = f
	}
	if cfg.Sampling == (Sampling{}) {
		cfg.Sampling = DefaultSampling()
	}
	if cfg.Session == (SessionConfig{}) {
		cfg.Session = DefaultSessionConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		engine:   engine,
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		health:   newHealthTracker(),
		state:    StateUninitialized,
		lastPath: cfg.ModelPath,
		lastCfg:  cfg.Session,
	}, nil
}

// Initialize loads modelPath. It is a no-op when the session is Ready with
// the same model; a different model while Ready is a conflict, and switching
// takes Close first. Concurrent callers share one underlying load. A failed
// first load leaves the session Uninitialized and may be retried.
func (m *Manager) Initialize(ctx context.Context, modelPath string, sc SessionConfig) error {
	m.mu.Lock()
	ready, loaded := m.state == StateReady, m.lastPath
	m.mu.Unlock()
	if ready {
		if modelPath != loaded {
			return odlyerr.New(odlyerr.CodeInferenceSessionConflict,
				"a different model is already loaded; close the session first",
				odlyerr.FieldModelPath(modelPath), odlyerr.Field("loaded", loaded))
		}
		return nil
	}
	return m.load(ctx, modelPath, sc)
}

// EnsureValid probes the session and performs at most one reinit.
func (m *Manager) EnsureValid(ctx context.Context) error {
	m.genMu.Lock()
	defer m.unlockGen()
	_, err := m.ensureValid(ctx)
	return err
}

// Query renders prompt in the configured format, generates with the fixed
// decoding parameters and returns the trimmed output.
func (m *Manager) Query(ctx context.Context, prompt string, opts ...QueryOption) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", odlyerr.New(odlyerr.CodeInferenceQueryInvalidInput, "prompt is empty")
	}

	o := ResolveQueryOptions(m.cfg.Sampling.MaxTokens, opts...)

	m.genMu.Lock()
	defer m.unlockGen()

	sess, err := m.ensureValid(ctx)
	if err != nil {
		return "", err
	}

	stop := m.cfg.Format.StopSequences()
	req := CompletionRequest{
		Prompt:        m.cfg.Format.Render(o.System, o.Context, prompt),
		MaxTokens:     o.MaxTokens,
		Temperature:   m.cfg.Sampling.Temperature,
		TopP:          m.cfg.Sampling.TopP,
		RepeatPenalty: m.cfg.Sampling.RepeatPenalty,
		Stop:          stop,
	}

	start := time.Now()
	out, err := sess.model.Complete(ctx, req)
	m.metrics.Query(time.Since(start), err)
	if err != nil {
		m.health.recordFailure(err)
		return "", odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "generating completion")
	}

	m.logger.Debug("query complete", "duration", time.Since(start), "prompt_bytes", len(req.Prompt), "output_bytes", len(out))
	return strings.TrimSpace(cutAtStop(out, stop)), nil
}

// MarkInvalid invalidates a Ready session. The next query reinitializes it
// once. It never waits for a generation in flight: the model is closed when
// that generation returns.
func (m *Manager) MarkInvalid(reason string) {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if cur == nil {
		return
	}
	m.invalidate(cur, errors.New(reason))
	if m.genMu.TryLock() {
		m.unlockGen()
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Health returns a point-in-time snapshot of the session.
func (m *Manager) Health() health.Metrics {
	m.mu.Lock()
	state, path := m.state, m.lastPath
	m.mu.Unlock()
	return m.health.snapshot(state, path)
}

// Close releases the loaded model and returns the session to Uninitialized.
func (m *Manager) Close() error {
	m.genMu.Lock()
	defer m.unlockGen()

	m.mu.Lock()
	cur := m.release()
	m.mu.Unlock()

	if cur == nil {
		return nil
	}
	return cur.model.Close()
}

func (m *Manager) ensureValid(ctx context.Context) (*session, error) {
	m.mu.Lock()
	state, cur, lost := m.state, m.current, m.lost
	path, sc := m.lastPath, m.lastCfg
	m.mu.Unlock()

	switch state {
	case StateUninitialized, StateInitializing:
		// First use, or joining a load already in flight.
		if err := m.load(ctx, path, sc); err != nil {
			return nil, err
		}
		return m.readySession()
	case StateInvalid:
		if lost {
			return nil, odlyerr.New(odlyerr.CodeInferenceSessionLost,
				"inference session lost; initialize again to recover", odlyerr.FieldModelPath(path))
		}
		return m.reinit(ctx, path, sc, errors.New("session invalidated"))
	}

	if _, err := cur.model.Tokenize(ctx, probeText); err != nil {
		m.health.recordProbeFailure(err)
		m.metrics.ProbeFailure()
		m.logger.Warn("inference probe failed", "model", cur.params.ModelPath, "error", err)
		m.invalidate(cur, err)
		return m.reinit(ctx, path, sc, err)
	}
	return cur, nil
}

// reinit makes the single recovery attempt allowed after an invalidation.
func (m *Manager) reinit(ctx context.Context, path string, sc SessionConfig, cause error) (*session, error) {
	m.health.recordReinit()
	m.logger.Info("reinitializing inference session", "model", path, "cause", cause)

	err := m.load(ctx, path, sc)
	m.metrics.SessionReinit(err)
	if err != nil {
		m.logger.Error("inference session lost", "model", path, "error", err)
		return nil, odlyerr.Relabel(err, odlyerr.CodeInferenceSessionLost,
			"inference session lost after reinit", odlyerr.FieldModelPath(path))
	}
	return m.readySession()
}

func (m *Manager) load(ctx context.Context, path string, sc SessionConfig) error {
	// One caller giving up must not cancel a load other callers are waiting on.
	ctx = context.WithoutCancel(ctx)
	_, err, _ := m.loads.Do(loadKey, func() (any, error) {
		return nil, m.doLoad(ctx, path, sc)
	})
	return err
}

func (m *Manager) doLoad(ctx context.Context, path string, sc SessionConfig) error {
	m.mu.Lock()
	if m.state == StateReady {
		m.mu.Unlock()
		return nil
	}
	from := m.state
	if err := m.beginLoad(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.health.recordLoad()
	params := sc.loadParams(path)
	start := time.Now()
	model, err := m.open(ctx, params, sc)
	m.metrics.SessionLoad(err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.health.recordFailure(err)
		m.loadFailed(from)
		m.logger.Warn("model load failed", "model", path, "engine", m.engine.Name(), "error", err)
		return err
	}

	m.loadSucceeded(&session{model: model, params: params}, path, sc)
	m.health.recordReady()
	m.logger.Info("inference session ready", "model", path, "engine", m.engine.Name(),
		"context_window", params.ContextWindow, "gpu_layers", params.GPULayers, "duration", time.Since(start))
	return nil
}

func (m *Manager) open(ctx context.Context, params LoadParams, sc SessionConfig) (Model, error) {
	diag := Diagnose(params.ModelPath, sc.MinFreeBytes)
	if params.ModelPath == "" {
		return nil, diag.Err(errors.New("no model path configured"))
	}
	if sc.CheckModelFile {
		if err := diag.Check(sc.MinFreeBytes); err != nil {
			return nil, err
		}
	}

	model, err := m.engine.Load(ctx, params)
	if err != nil {
		return nil, diag.Err(err)
	}
	if model == nil {
		return nil, diag.Err(errors.New("engine returned no model"))
	}
	return model, nil
}

func (m *Manager) readySession() (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.current == nil {
		return nil, odlyerr.New(odlyerr.CodeInferenceSessionNotInitialized, "inference session is not ready",
			odlyerr.Field("state", m.state.String()))
	}
	return m.current, nil
}

// invalidate retires cur if it is still the live session. A session is
// replaced, never repaired; its model is queued for unlockGen to close.
func (m *Manager) invalidate(cur *session, cause error) {
	m.mu.Lock()
	if m.current != cur || m.state != StateReady {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.lost = false
	m.retired = append(m.retired, cur.model)
	m.transition(StateInvalid)
	m.mu.Unlock()

	m.logger.Warn("inference session invalidated", "model", cur.params.ModelPath, "cause", cause)
}

// unlockGen closes retired models and releases genMu. The caller MUST hold
// genMu, so no engine call is running on a model being closed.
func (m *Manager) unlockGen() {
	m.mu.Lock()
	retired := m.retired
	m.retired = nil
	m.mu.Unlock()

	for _, model := range retired {
		if err := model.Close(); err != nil {
			m.logger.Debug("closing retired model", "error", err)
		}
	}
	m.genMu.Unlock()
}

// Named transitions. The caller MUST hold m.mu.

func (m *Manager) beginLoad() error {
	if !ValidTransition(m.state, StateInitializing) {
		return odlyerr.Errorf(odlyerr.CodeInferenceStateTransitionInvalid,
			"invalid state transition: %s -> %s", m.state, StateInitializing)
	}
	m.state = StateInitializing
	return nil
}

func (m *Manager) loadSucceeded(s *session, path string, sc SessionConfig) {
	m.current = s
	m.lastPath, m.lastCfg = path, sc
	m.lost = false
	m.transition(StateReady)
}

// loadFailed returns to the state the load started from. A failure that
// started from Invalid used up the single reinit.
func (m *Manager) loadFailed(from State) {
	m.transition(from)
	if from == StateInvalid {
		m.lost = true
	}
}

func (m *Manager) release() *session {
	cur := m.current
	m.current = nil
	m.lost = false
	if m.state == StateReady || m.state == StateInvalid {
		m.transition(StateUninitialized)
	}
	return cur
}

func (m *Manager) transition(to State) {
	if !ValidTransition(m.state, to) {
		m.logger.Error("invalid session state transition", "from", m.state.String(), "to", to.String())
		return
	}
	m.state = to
}

// cutAtStop drops anything from the first role marker on, for engines that
// echo the stop sequence.
func cutAtStop(out string, stop []string) string {
	for _, s := range stop {
		if i := strings.Index(out, s); i >= 0 {
			out = out[:i]
		}
	}
	return out
}
