// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package cluster

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odly-dev/odly/internal/inference"
	"github.com/odly-dev/odly/internal/store"
	"github.com/odly-dev/odly/internal/telemetry"
)

// Semantic step outcomes, as reported to metrics.
const (
	OutcomeParsed   = "parsed"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
	OutcomeEmpty    = "empty"
)

// Querier runs one generation against the inference session.
type Querier interface {
	Query(ctx context.Context, prompt string, opts ...inference.QueryOption) (string, error)
}

// Config tunes an Engine.
type Config struct {
	// MaxTokens bounds the semantic response; 0 keeps the session default.
	MaxTokens        int
	UncategorizedTag string
	Logger           *slog.Logger
	Metrics          *telemetry.Metrics
	// NewID names synthetic entries. Defaults to random UUIDs.
	NewID func() string
}

// Engine runs Partition, RouteDeterministic, RouteSemantic and Merge.
type Engine struct {
	session Querier
	cfg     Config
}

func New(session Querier, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UncategorizedTag == "" {
		cfg.UncategorizedTag = store.UncategorizedTag
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Engine{session: session, cfg: cfg}
}

// SemanticResult is the outcome of RouteSemantic. Groups always covers the
// whole pool, each entry exactly once.
type SemanticResult struct {
	Groups  []Group
	Outcome string
	// Violation is set when the response broke the contract.
	Violation error
	// QueryErr is set when the session call itself failed.
	QueryErr error
	// Unmatched holds response strings that matched no pool entry.
	Unmatched []string
}

// RouteSemantic asks the session to group pool. Any failure degrades to one
// singleton group per entry.
func (e *Engine) RouteSemantic(ctx context.Context, pool []store.Entry) SemanticResult {
	res := e.routeSemantic(ctx, pool)
	e.cfg.Metrics.ClusterOutcome(res.Outcome)
	return res
}

func (e *Engine) routeSemantic(ctx context.Context, pool []store.Entry) SemanticResult {
	switch len(pool) {
	case 0:
		return SemanticResult{Outcome: OutcomeEmpty}
	case 1:
		return SemanticResult{Groups: Singletons(pool), Outcome: OutcomeSkipped}
	}

	raw, err := e.session.Query(ctx, SemanticPrompt(pool),
		inference.WithSystem(semanticInstruction), inference.WithMaxTokens(e.cfg.MaxTokens))
	if err != nil {
		e.cfg.Logger.Warn("semantic clustering query failed, keeping entries as they are",
			"pool", len(pool), "error", err)
		return SemanticResult{Groups: Singletons(pool), Outcome: OutcomeFallback, QueryErr: err}
	}

	parsed := ParseResponse(raw)
	if !parsed.OK() {
		e.cfg.Logger.Warn("semantic clustering response rejected, keeping entries as they are",
			"pool", len(pool), "error", parsed.Violation)
		return SemanticResult{Groups: Singletons(pool), Outcome: OutcomeFallback, Violation: parsed.Violation}
	}

	groups, unmatched := Resolve(pool, parsed.Groups)
	if len(unmatched) > 0 {
		e.cfg.Logger.Warn("semantic clustering returned texts matching no entry", "count", len(unmatched))
	}
	return SemanticResult{Groups: groups, Outcome: OutcomeParsed, Unmatched: unmatched}
}

// Result is the reorganized working set.
type Result struct {
	Entries  []store.Entry
	Buckets  int
	Semantic SemanticResult
}

// Cluster partitions entries and runs both routes. It fails only when ctx
// is done; semantic-step failures are contained in Result.Semantic.
func (e *Engine) Cluster(ctx context.Context, entries []store.Entry) (Result, error) {
	parts := Partition(entries, e.cfg.UncategorizedTag)
	deterministic := RouteDeterministic(parts.Buckets, e.cfg.NewID)
	semantic := e.RouteSemantic(ctx, parts.Pool)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out := Merge(deterministic, semantic.Groups, e.cfg.UncategorizedTag, e.cfg.NewID)
	e.cfg.Logger.Info("entries clustered",
		"input", len(entries), "output", len(out),
		"buckets", len(parts.Buckets), "pool", len(parts.Pool), "semantic", semantic.Outcome)
	return Result{Entries: out, Buckets: len(parts.Buckets), Semantic: semantic}, nil
}
