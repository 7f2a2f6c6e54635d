// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/odly-dev/odly/internal/cluster"
	"github.com/odly-dev/odly/internal/config"
	"github.com/odly-dev/odly/internal/inference"
	_ "github.com/odly-dev/odly/internal/inference/llamacpp" // register llamacpp engine
	_ "github.com/odly-dev/odly/internal/inference/openai"   // register openai engine
	"github.com/odly-dev/odly/internal/knowledge"
	"github.com/odly-dev/odly/internal/mutation"
	"github.com/odly-dev/odly/internal/organize"
	"github.com/odly-dev/odly/internal/server"
	"github.com/odly-dev/odly/internal/store"
	_ "github.com/odly-dev/odly/internal/store/sqlite" // register sqlite backends
	"github.com/odly-dev/odly/internal/telemetry"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds all wired components of one odly process.
type App struct {
	Config       *config.Config
	DataDir      string
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	Stores       *store.Stores
	Catalog      *knowledge.Catalog
	Session      *inference.Manager
	Orchestrator *knowledge.Orchestrator
	Guard        *mutation.Guard
	Organizer    *organize.Organizer
}

// Wire creates every component and connects them. Nothing touches the model
// yet: the session loads on first use.
func Wire(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dataDir, err := cfg.ResolvedDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, odlyerr.Errorf(odlyerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	if cfg.Model.Path, err = config.ExpandHome(cfg.Model.Path); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)

	// 1. Stores (entries, user knowledge sources).
	stores, err := store.Open(store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeCLISetupFailure, "opening stores")
	}

	closeOnErr := func(err error) (*App, error) {
		return nil, errors.Join(err, stores.Close())
	}

	// 2. Knowledge catalog: builtin collection first, then user sources.
	builtin, err := knowledge.NewBuiltin()
	if err != nil {
		return closeOnErr(err)
	}
	catalog := knowledge.NewCatalog(builtin, stores.Sources, logger)
	encodingDir, err := cfg.ResolvedEncodingDir()
	if err != nil {
		return closeOnErr(err)
	}
	budget := cfg.ContextBudget()
	if budget == config.NoContextRoom {
		logger.Warn("context window leaves no room for knowledge; answers will use no sources",
			"context_window", cfg.Model.ContextWindow, "max_tokens", cfg.Sampling.MaxTokens)
	}
	assembler := knowledge.NewAssembler(catalog, knowledge.AssemblerConfig{
		MaxTokens: budget,
		Counter:   knowledge.NewTokenCounter(cfg.Knowledge.Encoding, encodingDir, logger),
		Logger:    logger,
		Metrics:   metrics,
	})

	// 3. Inference session.
	engine, err := inference.NewEngine(cfg.Engine.Backend, inference.EngineConfig{
		Endpoint: cfg.Engine.Endpoint,
		APIKey:   cfg.Engine.APIKey,
		Timeout:  cfg.Engine.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return closeOnErr(err)
	}
	format, err := inference.LookupPromptFormat(cfg.Model.PromptFormat)
	if err != nil {
		return closeOnErr(err)
	}
	session, err := inference.NewManager(engine, inference.Config{
		ModelPath: cfg.Model.Path,
		Session:   sessionConfig(cfg),
		Sampling: inference.Sampling{
			Temperature:   cfg.Sampling.Temperature,
			TopP:          cfg.Sampling.TopP,
			RepeatPenalty: cfg.Sampling.RepeatPenalty,
			MaxTokens:     cfg.Sampling.MaxTokens,
		},
		Format:  format,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return closeOnErr(err)
	}

	orchestrator := knowledge.NewOrchestrator(assembler, session, logger)

	// 4. Reorganization: clustering under the mutation guard.
	guard, err := mutation.NewGuard(stores.Entries, mutation.Config{
		Dir:     filepath.Join(dataDir, "backup"),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return closeOnErr(err)
	}
	clusterer := cluster.New(session, cluster.Config{
		MaxTokens:        cfg.Clustering.MaxTokens,
		UncategorizedTag: cfg.Clustering.UncategorizedTag,
		Logger:           logger,
		Metrics:          metrics,
	})
	organizer := organize.New(stores.Entries, guard, clusterer, logger)

	return &App{
		Config:       cfg,
		DataDir:      dataDir,
		Logger:       logger,
		Registry:     reg,
		Stores:       stores,
		Catalog:      catalog,
		Session:      session,
		Orchestrator: orchestrator,
		Guard:        guard,
		Organizer:    organizer,
	}, nil
}

func sessionConfig(cfg *config.Config) inference.SessionConfig {
	return inference.SessionConfig{
		ContextWindow:  cfg.Model.ContextWindow,
		BatchSize:      cfg.Model.BatchSize,
		Threads:        cfg.Model.Threads,
		GPULayers:      cfg.Model.GPULayers,
		MinFreeBytes:   cfg.Model.MinFreeBytes,
		CheckModelFile: cfg.Model.CheckFile,
	}
}

// NewServer builds the HTTP API over the wired components.
func (a *App) NewServer() (*server.Server, error) {
	srv, err := server.New(server.Config{
		ListenAddr:  a.Config.Server.Listen,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Gatherer:    a.Registry,
		Version:     version,
		Logger:      a.Logger,
	})
	if err != nil {
		return nil, err
	}
	err = srv.RegisterServices(&server.Services{
		Answers: a.Orchestrator,
		Sources: a.Catalog,
		Entries: a.Organizer,
		Status:  a.Session,
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Close releases the session and the stores.
func (a *App) Close() error {
	var errs []error
	if a.Session != nil {
		errs = append(errs, a.Session.Close())
	}
	if a.Stores != nil {
		errs = append(errs, a.Stores.Close())
	}
	return errors.Join(errs...)
}

// wire loads the configuration and builds the App.
func (c *cli) wire() (*App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return Wire(cfg, c.logger)
}
