// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/cobra"
)

func newEntriesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry", "notes"},
		Short:   "Manage entries",
		Long:    "List and add entries, cluster them into categories, and restore the set from the last snapshot.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List entries",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runEntriesList(cmd, c)
			},
		},
		newEntriesAddCmd(c),
		&cobra.Command{
			Use:   "reorganize",
			Short: "Cluster all entries and rewrite them by category",
			Long:  "Group tagged entries by category and ask the model to cluster the untagged ones. A snapshot is taken first and restored if anything fails.",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runEntriesReorganize(cmd, c)
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Restore entries from the last snapshot",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runEntriesRestore(cmd, c)
			},
		},
	)

	return cmd
}

func newEntriesAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Append an entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntriesAdd(cmd, c, args)
		},
	}
	cmd.Flags().StringSliceP("tag", "t", nil, "category tag; the first one routes the entry (repeatable)")
	return cmd
}

func runEntriesList(cmd *cobra.Command, c *cli) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	entries, err := app.Organizer.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No entries.")
		return err
	}
	for _, e := range entries {
		category := e.Category()
		if category == "" {
			category = "-"
		}
		if _, err := fmt.Fprintf(out, "%s  %s  [%s]\n%s\n\n",
			e.ID, e.Timestamp.Format("2006-01-02 15:04"), category, e.Text); err != nil {
			return err
		}
	}
	return nil
}

func runEntriesAdd(cmd *cobra.Command, c *cli, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return odlyerr.New(odlyerr.CodeCLIInputInvalid, "entry text must not be empty")
	}
	tags, _ := cmd.Flags().GetStringSlice("tag")

	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	e, err := app.Organizer.Append(cmd.Context(), store.Entry{Text: text, Tags: tags})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added entry: %s\n", e.ID)
	return err
}

func runEntriesReorganize(cmd *cobra.Command, c *cli) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	report, err := app.Organizer.Reorganize(cmd.Context())
	if err != nil {
		switch {
		case odlyerr.IsRollbackFailure(err):
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
				"Restoring the snapshot failed. It is kept at %s; run 'odly entries restore' to retry.\n", app.Guard.Path())
		case odlyerr.IsCommitFailure(err):
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
				"Entries were reorganized, but the snapshot at %s could not be marked committed.\n", app.Guard.Path())
		}
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Reorganized %d entries into %d (%d categories, semantic step: %s)\n",
		report.Before, report.After, len(report.Categories), report.Semantic); err != nil {
		return err
	}
	if report.Violation != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "model output was unusable, untagged entries kept as-is: %s\n", report.Violation)
	}
	return nil
}

func runEntriesRestore(cmd *cobra.Command, c *cli) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	snap, err := app.Organizer.Restore(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored %d entries from snapshot %s (taken %s)\n",
		len(snap.Entries), snap.ID, snap.TakenAt.Format("2006-01-02 15:04:05"))
	return err
}
