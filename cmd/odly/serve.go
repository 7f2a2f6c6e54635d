// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		Long:  "Wire every component and serve the HTTP API until interrupted. The model loads on the first request unless --preload is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, c)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().Bool("preload", false, "load the model before accepting requests")

	return cmd
}

func runServe(cmd *cobra.Command, c *cli) error {
	if err := c.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
		return err
	}

	app, err := c.wire()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	if preload, _ := cmd.Flags().GetBool("preload"); preload {
		if err := app.Session.Initialize(ctx, app.Config.Model.Path, sessionConfig(app.Config)); err != nil {
			return err
		}
	}

	srv, err := app.NewServer()
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving odly on %s\n", app.Config.Server.Listen); err != nil {
		return err
	}
	return srv.Start(ctx)
}
