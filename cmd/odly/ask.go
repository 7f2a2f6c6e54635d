// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"fmt"
	"strings"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/cobra"
)

func newAskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from your knowledge sources",
		Long:  "Answer a question using the selected knowledge sources as context. Every source is consulted when no --source is given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, c, args)
		},
	}

	cmd.Flags().StringSliceP("source", "s", nil, "knowledge source to consult (repeatable)")

	return cmd
}

func runAsk(cmd *cobra.Command, c *cli, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return odlyerr.New(odlyerr.CodeCLIInputInvalid, "question must not be empty")
	}
	selected, _ := cmd.Flags().GetStringSlice("source")

	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	answer, err := app.Orchestrator.Answer(cmd.Context(), question, selected)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, answer.Text); err != nil {
		return err
	}
	if len(answer.SourcesUsed) > 0 {
		if _, err := fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.SourcesUsed, ", ")); err != nil {
			return err
		}
	}
	for _, s := range answer.Skipped {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s (%s)\n", s.ID, s.Reason)
	}
	return nil
}
