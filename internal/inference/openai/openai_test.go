// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/odly-dev/odly/internal/inference"
	"github.com/odly-dev/odly/internal/inference/openai"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu         sync.Mutex
	modelCalls int
	lastBody   map[string]any
	failModels bool
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.modelCalls++
		fail := f.failModels
		f.mu.Unlock()
		if fail {
			http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"tiny","object":"model","created":0,"owned_by":"local"}]}`))
	})
	mux.HandleFunc("POST /v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","created":0,"model":"tiny",` +
			`"choices":[{"text":" grouped ","index":0,"finish_reason":"stop","logprobs":null}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEngine_LoadAndComplete(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	eng, err := openai.New(inference.EngineConfig{Endpoint: srv.URL + "/v1"})
	require.NoError(t, err)
	ctx := context.Background()

	model, err := eng.Load(ctx, inference.LoadParams{ModelPath: "tiny"})
	require.NoError(t, err)

	tokens, err := model.Tokenize(ctx, "ping pong")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	out, err := model.Complete(ctx, inference.CompletionRequest{
		Prompt: "p", MaxTokens: 32, Temperature: 0.7, TopP: 0.9, RepeatPenalty: 1.1,
		Stop: []string{"<|im_end|>"},
	})
	require.NoError(t, err)
	assert.Equal(t, " grouped ", out)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "tiny", api.lastBody["model"])
	assert.Equal(t, "p", api.lastBody["prompt"])
	assert.Equal(t, float64(32), api.lastBody["max_tokens"])
	assert.Equal(t, 1.1, api.lastBody["repeat_penalty"])
	assert.Equal(t, []any{"<|im_end|>"}, api.lastBody["stop"])
	assert.Equal(t, 2, api.modelCalls)
}

func TestEngine_ProbeFailureIsUpstream(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	eng, err := openai.New(inference.EngineConfig{Endpoint: srv.URL + "/v1"})
	require.NoError(t, err)

	model, err := eng.Load(context.Background(), inference.LoadParams{ModelPath: "tiny"})
	require.NoError(t, err)

	api.mu.Lock()
	api.failModels = true
	api.mu.Unlock()

	_, err = model.Tokenize(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, odlyerr.IsUpstreamFailure(err))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 2, api.modelCalls, "sdk retries are disabled")
}

func TestBuildParams_OmitsUnsetFields(t *testing.T) {
	params, opts := openai.BuildParams("tiny", inference.CompletionRequest{Prompt: "x"})
	assert.Equal(t, "tiny", string(params.Model))
	assert.False(t, params.MaxTokens.Valid())
	assert.Empty(t, params.Stop.OfStringArray)
	assert.Empty(t, opts)
}

func TestEngine_RegisteredByInit(t *testing.T) {
	assert.Contains(t, inference.Engines(), "openai")
}
