// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odly-dev/odly/internal/knowledge"
	"github.com/odly-dev/odly/internal/mutation"
	"github.com/odly-dev/odly/internal/organize"
	"github.com/odly-dev/odly/internal/server"
	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, odlyerr.Errorf(odlyerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	// Handlers are never invoked during spec generation.
	err = srv.RegisterServices(&server.Services{
		Answers: stubAnswers{},
		Sources: stubSources{},
		Entries: stubEntries{},
		Status:  stubStatus{},
	})
	if err != nil {
		return nil, odlyerr.Errorf(odlyerr.CodeCLISetupFailure, "registering routes: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation. Methods are never called.

type stubAnswers struct{}

func (stubAnswers) Answer(context.Context, string, []string) (knowledge.Answer, error) {
	return knowledge.Answer{}, nil
}
func (stubAnswers) Chat(context.Context, string) (string, error) { return "", nil }

type stubSources struct{}

func (stubSources) ListIdentifiers(context.Context) ([]string, error) { return nil, nil }
func (stubSources) ReadContent(context.Context, string) (store.KnowledgeSource, error) {
	return store.KnowledgeSource{}, nil
}
func (stubSources) Create(context.Context, string, string) error { return nil }
func (stubSources) Delete(context.Context, string) error         { return nil }
func (stubSources) IsBuiltin(string) bool                        { return false }

type stubEntries struct{}

func (stubEntries) List(context.Context) ([]store.Entry, error) { return nil, nil }
func (stubEntries) Append(context.Context, store.Entry) (store.Entry, error) {
	return store.Entry{}, nil
}
func (stubEntries) Reorganize(context.Context) (organize.Report, error) { return organize.Report{}, nil }
func (stubEntries) Restore(context.Context) (*mutation.Snapshot, error) { return nil, nil }

type stubStatus struct{}

func (stubStatus) Health() health.Metrics { return health.Metrics{} }
