// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package llamacpp drives a local llama.cpp server through its native
// /health, /props, /tokenize and /completion routes.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/odly-dev/odly/internal/inference"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

const (
	engineName       = "llamacpp"
	defaultEndpoint  = "http://127.0.0.1:8080"
	defaultTimeout   = 5 * time.Minute
	maxResponseBytes = 16 << 20
)

func init() {
	inference.RegisterEngine(engineName, func(cfg inference.EngineConfig) (inference.Engine, error) {
		return New(cfg)
	})
}

// Compile-time interface checks.
var (
	_ inference.Engine = (*Engine)(nil)
	_ inference.Model  = (*Model)(nil)
)

// Engine talks to one llama.cpp server. The server owns the weights; Load
// verifies the server is up and serving the expected model.
type Engine struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// New creates an Engine for cfg.Endpoint.
func New(cfg inference.EngineConfig) (*Engine, error) {
	baseURL := strings.TrimSuffix(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = defaultEndpoint
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, odlyerr.New(odlyerr.CodeConfigValidateInvalidValue, "llama.cpp endpoint must be an http(s) URL",
			odlyerr.Field("endpoint", cfg.Endpoint))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}, nil
}

func (e *Engine) Name() string { return engineName }

type healthResponse struct {
	Status string `json:"status"`
}

type propsResponse struct {
	ModelPath                 string `json:"model_path"`
	DefaultGenerationSettings struct {
		NCtx int `json:"n_ctx"`
	} `json:"default_generation_settings"`
}

// Load checks /health and compares /props against params. A server that is
// still loading weights reports 503 and fails the attempt.
func (e *Engine) Load(ctx context.Context, params inference.LoadParams) (inference.Model, error) {
	var h healthResponse
	if err := e.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	if h.Status != "" && h.Status != "ok" {
		return nil, odlyerr.New(odlyerr.CodeInferenceEngineUpstreamFailure, "llama.cpp server not ready",
			odlyerr.Field("status", h.Status))
	}

	var props propsResponse
	if err := e.do(ctx, http.MethodGet, "/props", nil, &props); err != nil {
		// Older servers have no /props; health is enough.
		e.logger.Debug("llama.cpp props unavailable", "error", err)
	} else {
		if props.ModelPath != "" && filepath.Base(props.ModelPath) != filepath.Base(params.ModelPath) {
			e.logger.Warn("llama.cpp server is serving a different model",
				"requested", params.ModelPath, "served", props.ModelPath)
		}
		if n := props.DefaultGenerationSettings.NCtx; n > 0 && params.ContextWindow > n {
			e.logger.Warn("llama.cpp context window smaller than configured",
				"configured", params.ContextWindow, "server", n)
		}
	}

	e.logger.Info("llama.cpp session attached", "endpoint", e.baseURL, "model", params.ModelPath,
		"threads", params.Threads, "batch_size", params.BatchSize, "gpu_layers", params.GPULayers)
	return &Model{engine: e, params: params}, nil
}

// Model is a handle on the model a llama.cpp server has loaded.
type Model struct {
	engine *Engine
	params inference.LoadParams
	closed atomic.Bool
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

func (m *Model) Tokenize(ctx context.Context, text string) ([]int, error) {
	if err := m.open(); err != nil {
		return nil, err
	}
	var resp tokenizeResponse
	if err := m.engine.do(ctx, http.MethodPost, "/tokenize", tokenizeRequest{Content: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Stop          []string `json:"stop"`
	CachePrompt   bool     `json:"cache_prompt"`
	Stream        bool     `json:"stream"`
}

type completionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	StoppedLimit    bool   `json:"stopped_limit"`
}

func (m *Model) Complete(ctx context.Context, req inference.CompletionRequest) (string, error) {
	if err := m.open(); err != nil {
		return "", err
	}
	body := completionRequest{
		Prompt:        req.Prompt,
		NPredict:      req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		RepeatPenalty: req.RepeatPenalty,
		Stop:          req.Stop,
		CachePrompt:   true,
	}
	var resp completionResponse
	if err := m.engine.do(ctx, http.MethodPost, "/completion", body, &resp); err != nil {
		return "", err
	}
	if resp.StoppedLimit {
		m.engine.logger.Debug("llama.cpp completion hit n_predict", "tokens", resp.TokensPredicted)
	}
	return resp.Content, nil
}

// Close detaches from the server. The server keeps its weights loaded.
func (m *Model) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *Model) open() error {
	if m.closed.Load() {
		return odlyerr.New(odlyerr.CodeInferenceSessionNotInitialized, "llama.cpp model handle is closed",
			odlyerr.FieldModelPath(m.params.ModelPath))
	}
	return nil
}

func (e *Engine) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return odlyerr.Wrap(err, odlyerr.CodeInferenceQueryInvalidInput, "encoding llama.cpp request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeInferenceQueryInvalidInput, "building llama.cpp request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "calling llama.cpp",
			odlyerr.Field("path", path))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "reading llama.cpp response",
			odlyerr.Field("path", path))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return odlyerr.New(odlyerr.CodeInferenceEngineUpstreamFailure, "llama.cpp returned "+resp.Status,
			odlyerr.Field("path", path),
			odlyerr.Field("status", resp.StatusCode),
			odlyerr.Field("body", truncate(string(raw), 256)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeInferenceEngineResponseInvalid, "decoding llama.cpp response",
			odlyerr.Field("path", path))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
