// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/odly-dev/odly/internal/store"
	"github.com/odly-dev/odly/internal/telemetry"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// Skip reasons.
const (
	ReasonRead   = "read"
	ReasonBudget = "budget"
)

// blockSeparator sits between rendered source blocks.
const blockSeparator = "\n\n"

// Skipped records a selected source that was left out of a context.
type Skipped struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Context is the result of assembling knowledge for one answer.
type Context struct {
	// Sources were loaded and included, in catalog order.
	Sources []store.KnowledgeSource
	Skipped []Skipped
}

// Text renders every included source as an "[id]" line followed by its
// content, blocks separated by a blank line.
func (c Context) Text() string {
	blocks := make([]string, len(c.Sources))
	for i, src := range c.Sources {
		blocks[i] = renderBlock(src)
	}
	return strings.Join(blocks, blockSeparator)
}

// IDs lists the included source identifiers.
func (c Context) IDs() []string {
	ids := make([]string, len(c.Sources))
	for i, src := range c.Sources {
		ids[i] = src.ID
	}
	return ids
}

// PartialError describes the skipped sources, or returns nil when every
// selected source was included.
func (c Context) PartialError() error {
	if len(c.Skipped) == 0 {
		return nil
	}
	ids := make([]string, len(c.Skipped))
	errs := make([]error, 0, len(c.Skipped))
	for i, s := range c.Skipped {
		ids[i] = s.ID
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	const msg = "some knowledge sources were left out"
	if len(errs) == 0 {
		return odlyerr.New(odlyerr.CodeKnowledgeContextPartial, msg, odlyerr.Field("skipped", ids))
	}
	return odlyerr.Relabel(stderrors.Join(errs...), odlyerr.CodeKnowledgeContextPartial, msg, odlyerr.Field("skipped", ids))
}

func renderBlock(src store.KnowledgeSource) string {
	return "[" + src.ID + "]\n" + src.Content
}

// AssemblerConfig tunes context assembly.
type AssemblerConfig struct {
	// MaxTokens bounds the rendered context. 0 means unbounded; a negative
	// value admits no source at all.
	MaxTokens int
	Counter   TokenCounter
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// Assembler loads selected knowledge sources into one bounded context,
// skipping any source that cannot be read.
type Assembler struct {
	sources store.SourceStore
	cfg     AssemblerConfig
}

func NewAssembler(sources store.SourceStore, cfg AssemblerConfig) *Assembler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Counter == nil {
		cfg.Counter = HeuristicCounter{}
	}
	return &Assembler{sources: sources, cfg: cfg}
}

// ListSources returns every known source identifier.
func (a *Assembler) ListSources(ctx context.Context) ([]string, error) {
	return a.sources.ListIdentifiers(ctx)
}

// LoadContext loads the selected sources, or all of them when selected is
// empty. Unknown ids in selected are ignored. Read failures and sources that
// no longer fit the token budget are recorded in Context.Skipped.
func (a *Assembler) LoadContext(ctx context.Context, selected []string) (Context, error) {
	ids, err := a.ListSources(ctx)
	if err != nil {
		return Context{}, err
	}
	ids = filter(ids, selected)

	var (
		out  Context
		used int
	)
	for _, id := range ids {
		src, err := a.sources.ReadContent(ctx, id)
		if err != nil {
			a.skip(&out, Skipped{ID: id, Reason: ReasonRead, Err: err})
			continue
		}

		cost := a.cfg.Counter.Count(renderBlock(src))
		if len(out.Sources) > 0 {
			cost += a.cfg.Counter.Count(blockSeparator)
		}
		if a.overBudget(used + cost) {
			a.skip(&out, Skipped{ID: id, Reason: ReasonBudget})
			continue
		}

		used += cost
		out.Sources = append(out.Sources, src)
	}

	a.cfg.Logger.Debug("knowledge context assembled",
		"included", len(out.Sources), "skipped", len(out.Skipped), "tokens", used)
	return out, nil
}

func (a *Assembler) overBudget(tokens int) bool {
	switch {
	case a.cfg.MaxTokens < 0:
		return true
	case a.cfg.MaxTokens == 0:
		return false
	}
	return tokens > a.cfg.MaxTokens
}

func (a *Assembler) skip(out *Context, s Skipped) {
	out.Skipped = append(out.Skipped, s)
	a.cfg.Metrics.SourceSkipped(s.Reason)
	if s.Err != nil {
		a.cfg.Logger.Warn("skipping unreadable knowledge source", "source_id", s.ID, "error", s.Err)
		return
	}
	a.cfg.Logger.Warn("skipping knowledge source over token budget",
		"source_id", s.ID, "max_tokens", a.cfg.MaxTokens)
}

// filter keeps the ids present in selected, preserving catalog order and
// dropping duplicates. An empty selection keeps everything.
func filter(ids, selected []string) []string {
	if len(selected) == 0 {
		return ids
	}
	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}
	out := make([]string, 0, len(selected))
	for _, id := range ids {
		if want[id] {
			out = append(out, id)
			want[id] = false
		}
	}
	return out
}
