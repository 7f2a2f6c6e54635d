// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/odly-dev/odly/internal/knowledge"
	"github.com/odly-dev/odly/internal/organize"
	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) error {
	if err := svc.validate(); err != nil {
		return err
	}
	s.services = svc
	s.registerRoutes()
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Inference session health",
		Tags:        []string{"system"},
	}, s.handleStatus)

	// Knowledge sources
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources",
		Summary:     "List knowledge sources",
		Tags:        []string{"sources"},
	}, s.handleListSources)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-source",
		Method:        http.MethodPost,
		Path:          "/api/v1/sources",
		Summary:       "Add a user knowledge source",
		Tags:          []string{"sources"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSource)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-source",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sources/{id}",
		Summary:       "Delete a user knowledge source",
		Tags:          []string{"sources"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSource)

	huma.Register(s.api, huma.Operation{
		OperationID: "ask",
		Method:      http.MethodPost,
		Path:        "/api/v1/ask",
		Summary:     "Answer a question, optionally against selected sources",
		Tags:        []string{"knowledge"},
	}, s.handleAsk)

	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Plain conversation turn without knowledge context",
		Tags:        []string{"knowledge"},
	}, s.handleChat)

	// Entries
	huma.Register(s.api, huma.Operation{
		OperationID: "list-entries",
		Method:      http.MethodGet,
		Path:        "/api/v1/entries",
		Summary:     "List entries",
		Tags:        []string{"entries"},
	}, s.handleListEntries)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-entry",
		Method:        http.MethodPost,
		Path:          "/api/v1/entries",
		Summary:       "Append an entry",
		Tags:          []string{"entries"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateEntry)

	huma.Register(s.api, huma.Operation{
		OperationID: "reorganize-entries",
		Method:      http.MethodPost,
		Path:        "/api/v1/entries/reorganize",
		Summary:     "Cluster and rewrite all entries",
		Tags:        []string{"entries"},
	}, s.handleReorganize)

	huma.Register(s.api, huma.Operation{
		OperationID: "restore-entries",
		Method:      http.MethodPost,
		Path:        "/api/v1/entries/restore",
		Summary:     "Restore entries from the last snapshot",
		Tags:        []string{"entries"},
	}, s.handleRestore)
}

// --- Request/Response types ---

type statusOutput struct {
	Body health.Metrics
}

// SourceSummary describes one catalog entry without its content.
type SourceSummary struct {
	ID      string `json:"id"`
	Builtin bool   `json:"builtin"`
}

type listSourcesOutput struct {
	Body struct {
		Sources []SourceSummary `json:"sources"`
	}
}

type createSourceInput struct {
	Body struct {
		ID      string `json:"id" minLength:"1" doc:"Source identifier"`
		Content string `json:"content" doc:"Source text"`
	}
}

type createSourceOutput struct {
	Body SourceSummary
}

type sourceIDInput struct {
	ID string `path:"id"`
}

type askInput struct {
	Body struct {
		Question string   `json:"question" minLength:"1" doc:"Question to answer"`
		Sources  []string `json:"sources,omitempty" doc:"Source identifiers to consult; all when empty"`
	}
}

type askOutput struct {
	Body knowledge.Answer
}

type chatInput struct {
	Body struct {
		Message string `json:"message" minLength:"1" doc:"Message to reply to"`
	}
}

type chatOutput struct {
	Body struct {
		Reply string `json:"reply"`
	}
}

type listEntriesOutput struct {
	Body struct {
		Entries []store.Entry `json:"entries"`
	}
}

type createEntryInput struct {
	Body struct {
		Text string   `json:"text" minLength:"1" doc:"Entry text"`
		Tags []string `json:"tags,omitempty" doc:"Category tags; the first one routes the entry"`
	}
}

type createEntryOutput struct {
	Body store.Entry
}

type reorganizeOutput struct {
	Body organize.Report
}

type restoreOutput struct {
	Body struct {
		SnapshotID string    `json:"snapshot_id"`
		TakenAt    time.Time `json:"taken_at"`
		Entries    int       `json:"entries"`
	}
}

// --- Handlers ---

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	return &statusOutput{Body: s.services.Status.Health()}, nil
}

func (s *Server) handleListSources(ctx context.Context, _ *struct{}) (*listSourcesOutput, error) {
	ids, err := s.services.Sources.ListIdentifiers(ctx)
	if err != nil {
		return nil, s.apiError("listing sources", err)
	}
	out := &listSourcesOutput{}
	out.Body.Sources = make([]SourceSummary, len(ids))
	for i, id := range ids {
		out.Body.Sources[i] = SourceSummary{ID: id, Builtin: s.services.Sources.IsBuiltin(id)}
	}
	return out, nil
}

func (s *Server) handleCreateSource(ctx context.Context, input *createSourceInput) (*createSourceOutput, error) {
	if err := s.services.Sources.Create(ctx, input.Body.ID, input.Body.Content); err != nil {
		return nil, s.apiError("creating source", err)
	}
	return &createSourceOutput{Body: SourceSummary{ID: input.Body.ID}}, nil
}

func (s *Server) handleDeleteSource(ctx context.Context, input *sourceIDInput) (*struct{}, error) {
	if err := s.services.Sources.Delete(ctx, input.ID); err != nil {
		return nil, s.apiError("deleting source", err)
	}
	return nil, nil
}

func (s *Server) handleAsk(ctx context.Context, input *askInput) (*askOutput, error) {
	answer, err := s.services.Answers.Answer(ctx, input.Body.Question, input.Body.Sources)
	if err != nil {
		return nil, s.apiError("answering question", err)
	}
	if answer.SourcesUsed == nil {
		answer.SourcesUsed = []string{}
	}
	return &askOutput{Body: answer}, nil
}

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	reply, err := s.services.Answers.Chat(ctx, input.Body.Message)
	if err != nil {
		return nil, s.apiError("generating reply", err)
	}
	out := &chatOutput{}
	out.Body.Reply = reply
	return out, nil
}

func (s *Server) handleListEntries(ctx context.Context, _ *struct{}) (*listEntriesOutput, error) {
	entries, err := s.services.Entries.List(ctx)
	if err != nil {
		return nil, s.apiError("listing entries", err)
	}
	out := &listEntriesOutput{}
	out.Body.Entries = entries
	if out.Body.Entries == nil {
		out.Body.Entries = []store.Entry{}
	}
	return out, nil
}

func (s *Server) handleCreateEntry(ctx context.Context, input *createEntryInput) (*createEntryOutput, error) {
	entry, err := s.services.Entries.Append(ctx, store.Entry{Text: input.Body.Text, Tags: input.Body.Tags})
	if err != nil {
		return nil, s.apiError("appending entry", err)
	}
	return &createEntryOutput{Body: entry}, nil
}

func (s *Server) handleReorganize(ctx context.Context, _ *struct{}) (*reorganizeOutput, error) {
	report, err := s.services.Entries.Reorganize(ctx)
	if err != nil {
		return nil, s.apiError("reorganizing entries", err)
	}
	return &reorganizeOutput{Body: report}, nil
}

func (s *Server) handleRestore(ctx context.Context, _ *struct{}) (*restoreOutput, error) {
	snap, err := s.services.Entries.Restore(ctx)
	if err != nil {
		return nil, s.apiError("restoring entries", err)
	}
	out := &restoreOutput{}
	out.Body.SnapshotID = snap.ID
	out.Body.TakenAt = snap.TakenAt
	out.Body.Entries = len(snap.Entries)
	return out, nil
}

// apiError maps err to a huma status error. Client errors carry the error
// text; server errors are logged and reported by action only.
func (s *Server) apiError(action string, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(action+" failed", "error", err, "code", odlyerr.CodeOf(err))
		if status == http.StatusInternalServerError {
			return huma.NewError(status, action+" failed")
		}
	}
	return huma.NewError(status, err.Error())
}

// statusOf classifies coded errors first and falls back to store sentinels.
func statusOf(err error) int {
	if status := odlyerr.HTTPStatus(err); status != http.StatusInternalServerError {
		return status
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
