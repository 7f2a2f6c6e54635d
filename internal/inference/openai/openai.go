// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package openai drives OpenAI-compatible local servers (llama.cpp, vLLM,
// Ollama, LM Studio) through the legacy text completions route, which takes
// an already formatted prompt.
package openai

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/odly-dev/odly/internal/inference"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	engineName      = "openai"
	defaultEndpoint = "http://127.0.0.1:8080/v1"
	// Local servers ignore the key but the SDK requires one.
	placeholderKey = "sk-local"
)

func init() {
	inference.RegisterEngine(engineName, func(cfg inference.EngineConfig) (inference.Engine, error) {
		return New(cfg)
	})
}

var (
	_ inference.Engine = (*Engine)(nil)
	_ inference.Model  = (*Model)(nil)
)

// Engine implements inference.Engine over an OpenAI-compatible API. The model
// reference is a served model name rather than a file path.
type Engine struct {
	client openaisdk.Client
	logger *slog.Logger
}

// New creates an Engine. SDK retries are disabled: the session manager owns
// the retry policy.
func New(cfg inference.EngineConfig) (*Engine, error) {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	key := cfg.APIKey
	if key == "" {
		key = placeholderKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := openaisdk.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(endpoint+"/"),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	)
	return &Engine{client: client, logger: logger}, nil
}

func (e *Engine) Name() string { return engineName }

// Load lists served models and checks the requested one is among them.
func (e *Engine) Load(ctx context.Context, params inference.LoadParams) (inference.Model, error) {
	page, err := e.client.Models.List(ctx)
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "listing served models")
	}

	served := make([]string, 0, len(page.Data))
	found := false
	for _, m := range page.Data {
		served = append(served, m.ID)
		if m.ID == params.ModelPath {
			found = true
		}
	}
	if !found && len(served) > 0 {
		// Single-model servers often report a file name instead of the alias.
		e.logger.Warn("requested model not listed by server", "model", params.ModelPath, "served", served)
	}

	return &Model{engine: e, name: params.ModelPath}, nil
}

// Model is one served model.
type Model struct {
	engine *Engine
	name   string
	closed atomic.Bool
}

// Tokenize has no counterpart in the OpenAI API. It proves liveness with a
// model listing and returns one pseudo-token per whitespace-separated field.
func (m *Model) Tokenize(ctx context.Context, text string) ([]int, error) {
	if err := m.open(); err != nil {
		return nil, err
	}
	if _, err := m.engine.client.Models.List(ctx); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "probing server")
	}
	return make([]int, len(strings.Fields(text))), nil
}

func (m *Model) Complete(ctx context.Context, req inference.CompletionRequest) (string, error) {
	if err := m.open(); err != nil {
		return "", err
	}
	params, opts := buildParams(m.name, req)
	resp, err := m.engine.client.Completions.New(ctx, params, opts...)
	if err != nil {
		return "", odlyerr.Wrap(err, odlyerr.CodeInferenceEngineUpstreamFailure, "requesting completion",
			odlyerr.Field("model", m.name))
	}
	if len(resp.Choices) == 0 {
		return "", odlyerr.New(odlyerr.CodeInferenceEngineResponseInvalid, "completion has no choices",
			odlyerr.Field("model", m.name))
	}
	return resp.Choices[0].Text, nil
}

func (m *Model) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *Model) open() error {
	if m.closed.Load() {
		return odlyerr.New(odlyerr.CodeInferenceSessionNotInitialized, "model handle is closed",
			odlyerr.Field("model", m.name))
	}
	return nil
}

// buildParams converts a CompletionRequest into SDK params. repeat_penalty is
// not part of the OpenAI schema; compatible servers accept it as an extra field.
func buildParams(model string, req inference.CompletionRequest) (openaisdk.CompletionNewParams, []option.RequestOption) {
	params := openaisdk.CompletionNewParams{
		Model: openaisdk.CompletionNewParamsModel(model),
		Prompt: openaisdk.CompletionNewParamsPromptUnion{
			OfString: param.NewOpt(req.Prompt),
		},
		Temperature: param.NewOpt(req.Temperature),
		TopP:        param.NewOpt(req.TopP),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openaisdk.CompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	var opts []option.RequestOption
	if req.RepeatPenalty > 0 {
		opts = append(opts, option.WithJSONSet("repeat_penalty", req.RepeatPenalty))
	}
	return params, opts
}
