// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package knowledge assembles context from knowledge sources and answers
// questions with it through the inference session.
package knowledge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odly-dev/odly/internal/inference"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

const (
	answerInstruction = "You are Odly, an assistant running on the user's own device. " +
		"Answer the question using the knowledge below. Each knowledge block starts with " +
		"its identifier in square brackets. If the knowledge does not cover the question, say so plainly."

	noKnowledgeInstruction = "You are Odly, an assistant running on the user's own device. " +
		"No knowledge sources are available for this question; answer from general knowledge and say so."

	chatInstruction = "You are Odly, a friendly assistant running on the user's own device. Keep answers concise."
)

// Querier runs one generation against the inference session.
type Querier interface {
	Query(ctx context.Context, prompt string, opts ...inference.QueryOption) (string, error)
}

// Answer is a generated reply plus the sources it was given.
type Answer struct {
	Text string `json:"text"`
	// SourcesUsed lists every source included in the prompt context. It is
	// not a citation check: the reply may not draw on all of them.
	SourcesUsed []string  `json:"sources_used"`
	Skipped     []Skipped `json:"skipped,omitempty"`
}

// Orchestrator combines assembled knowledge with a question.
type Orchestrator struct {
	assembler *Assembler
	session   Querier
	logger    *slog.Logger
}

func NewOrchestrator(assembler *Assembler, session Querier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{assembler: assembler, session: session, logger: logger}
}

// Answer assembles context from selected (all sources when empty) and asks
// the session. Skipped sources are logged and reported, never fatal.
func (o *Orchestrator) Answer(ctx context.Context, question string, selected []string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, odlyerr.New(odlyerr.CodeKnowledgeQuestionInvalidInput, "question must not be empty")
	}

	kctx, err := o.assembler.LoadContext(ctx, selected)
	if err != nil {
		return Answer{}, err
	}
	if perr := kctx.PartialError(); perr != nil {
		o.logger.Warn("answering with partial knowledge context", "error", perr)
	}

	opts := []inference.QueryOption{inference.WithSystem(noKnowledgeInstruction)}
	if len(kctx.Sources) > 0 {
		opts = []inference.QueryOption{
			inference.WithSystem(answerInstruction),
			inference.WithContext(kctx.Text()),
		}
	}

	text, err := o.session.Query(ctx, question, opts...)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, SourcesUsed: kctx.IDs(), Skipped: kctx.Skipped}, nil
}

// Chat runs a plain conversation turn without knowledge context.
func (o *Orchestrator) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", odlyerr.New(odlyerr.CodeKnowledgeQuestionInvalidInput, "message must not be empty")
	}
	return o.session.Query(ctx, message, inference.WithSystem(chatInstruction))
}

// Sources exposes the assembler's identifier listing.
func (o *Orchestrator) Sources(ctx context.Context) ([]string, error) {
	return o.assembler.ListSources(ctx)
}
