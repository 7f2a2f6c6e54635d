// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// Engine loads models. It is the only way a Model comes into existence.
type Engine interface {
	Name() string
	Load(ctx context.Context, params LoadParams) (Model, error)
}

// Model is one loaded session on an engine. Implementations need not be safe
// for concurrent Complete calls; the Manager serialises them.
type Model interface {
	Tokenize(ctx context.Context, text string) ([]int, error)
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Close() error
}

// LoadParams is what an engine receives when a session is created.
type LoadParams struct {
	ModelPath     string
	ContextWindow int
	BatchSize     int
	Threads       int
	GPULayers     int // 0 for CPU-only
}

// CompletionRequest is what an engine receives for one generation.
type CompletionRequest struct {
	Prompt        string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	Stop          []string
}

// EngineConfig configures an engine adapter.
type EngineConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// EngineFactory builds an engine adapter. Adapter packages register one from init().
type EngineFactory func(cfg EngineConfig) (Engine, error)

var (
	engineFactories = map[string]EngineFactory{}
	enginesMu       sync.RWMutex
)

// RegisterEngine registers a named engine backend. This function is goroutine-safe.
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engineFactories[name] = factory
}

// NewEngine builds the engine registered under name.
func NewEngine(name string, cfg EngineConfig) (Engine, error) {
	enginesMu.RLock()
	factory, ok := engineFactories[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, odlyerr.New(odlyerr.CodeInferenceEngineUnsupported, "unsupported inference engine",
			odlyerr.FieldBackend(name), odlyerr.Field("available", Engines()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return factory(cfg)
}

// Engines lists registered engine names in sorted order.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engineFactories))
	for name := range engineFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
