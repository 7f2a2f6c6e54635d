// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"fmt"
	"io"
	"os"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/cobra"
)

func newSourcesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sources",
		Aliases: []string{"source"},
		Short:   "Manage knowledge sources",
		Long:    "List built-in and user knowledge sources, and add, rename or remove user sources.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List knowledge source identifiers",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSourcesList(cmd, c)
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a knowledge source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSourcesShow(cmd, c, args[0])
			},
		},
		newSourcesAddCmd(c),
		&cobra.Command{
			Use:   "rename <id> <new-id>",
			Short: "Rename a user knowledge source",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSourcesRename(cmd, c, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"delete"},
			Short:   "Remove a user knowledge source",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSourcesRemove(cmd, c, args[0])
			},
		},
	)

	return cmd
}

func newSourcesAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a user knowledge source",
		Long:  "Add a user knowledge source from --file, or from standard input when no file is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesAdd(cmd, c, args[0])
		},
	}
	cmd.Flags().StringP("file", "f", "", "read content from this file")
	return cmd
}

func runSourcesList(cmd *cobra.Command, c *cli) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ids, err := app.Catalog.ListIdentifiers(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		kind := "user"
		if app.Catalog.IsBuiltin(id) {
			kind = "builtin"
		}
		if _, err := fmt.Fprintf(out, "%-30s %s\n", id, kind); err != nil {
			return err
		}
	}
	return nil
}

func runSourcesShow(cmd *cobra.Command, c *cli, id string) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	src, err := app.Catalog.ReadContent(cmd.Context(), id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), src.Content)
	return err
}

func runSourcesAdd(cmd *cobra.Command, c *cli, id string) error {
	content, err := readContent(cmd)
	if err != nil {
		return err
	}

	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Catalog.Create(cmd.Context(), id, content); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added source: %s (%d bytes)\n", id, len(content))
	return err
}

func runSourcesRename(cmd *cobra.Command, c *cli, oldID, newID string) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Catalog.Rename(cmd.Context(), oldID, newID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed source: %s -> %s\n", oldID, newID)
	return err
}

func runSourcesRemove(cmd *cobra.Command, c *cli, id string) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Catalog.Delete(cmd.Context(), id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed source: %s\n", id)
	return err
}

// readContent reads --file, or standard input when the flag is empty.
func readContent(cmd *cobra.Command) (string, error) {
	var (
		raw []byte
		err error
	)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", odlyerr.Errorf(odlyerr.CodeCLIInputInvalid, "reading source content: %w", err)
	}
	return string(raw), nil
}
