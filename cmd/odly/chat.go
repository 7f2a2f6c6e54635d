// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/cobra"
)

func newChatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the on-device model",
		Long:  "Send a message to the model without knowledge context. Starts an interactive session if no message is provided; type /exit or send EOF to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, c, args)
		},
	}
}

func runChat(cmd *cobra.Command, c *cli, args []string) error {
	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		reply, err := app.Orchestrator.Chat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, reply)
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if _, err := fmt.Fprint(out, "> "); err != nil {
			return err
		}
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		reply, err := app.Orchestrator.Chat(cmd.Context(), line)
		if err != nil {
			// Session loss is fatal for this run; anything else may be retried.
			if odlyerr.IsSessionLost(err) || cmd.Context().Err() != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		if _, err := fmt.Fprintln(out, reply); err != nil {
			return err
		}
	}
	return scanner.Err()
}
