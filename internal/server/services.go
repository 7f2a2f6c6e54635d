// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package server

import (
	"context"

	"github.com/odly-dev/odly/internal/knowledge"
	"github.com/odly-dev/odly/internal/mutation"
	"github.com/odly-dev/odly/internal/organize"
	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
)

// AnswerService answers questions against knowledge sources.
type AnswerService interface {
	Answer(ctx context.Context, question string, selected []string) (knowledge.Answer, error)
	Chat(ctx context.Context, message string) (string, error)
}

// SourceService manages the knowledge source catalog.
type SourceService interface {
	ListIdentifiers(ctx context.Context) ([]string, error)
	ReadContent(ctx context.Context, id string) (store.KnowledgeSource, error)
	Create(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	IsBuiltin(id string) bool
}

// EntryService reads, appends and reorganizes entries.
type EntryService interface {
	List(ctx context.Context) ([]store.Entry, error)
	Append(ctx context.Context, entry store.Entry) (store.Entry, error)
	Reorganize(ctx context.Context) (organize.Report, error)
	Restore(ctx context.Context) (*mutation.Snapshot, error)
}

// StatusService reports inference session health.
type StatusService interface {
	Health() health.Metrics
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	Answers AnswerService
	Sources SourceService
	Entries EntryService
	Status  StatusService
}

// validate returns an error if any required service is nil.
func (s *Services) validate() error {
	switch {
	case s == nil:
		return odlyerr.New(odlyerr.CodeServerConfigInvalid, "services are required")
	case s.Answers == nil:
		return odlyerr.New(odlyerr.CodeServerConfigInvalid, "answer service is required")
	case s.Sources == nil:
		return odlyerr.New(odlyerr.CodeServerConfigInvalid, "source service is required")
	case s.Entries == nil:
		return odlyerr.New(odlyerr.CodeServerConfigInvalid, "entry service is required")
	case s.Status == nil:
		return odlyerr.New(odlyerr.CodeServerConfigInvalid, "status service is required")
	}
	return nil
}
