// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/odly-dev/odly/internal/config"
	"github.com/odly-dev/odly/internal/secrets"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the per-invocation configuration and logger to subcommands.
type cli struct {
	v      *viper.Viper
	logger *slog.Logger
}

// loadConfig decodes and validates the resolved configuration.
func (c *cli) loadConfig() (*config.Config, error) {
	return config.FromViper(c.v)
}

// NewRootCmd creates the root odly command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), logger: slog.Default()}

	root := &cobra.Command{
		Use:           "odly",
		Short:         "Odly: on-device knowledge assistant",
		Long:          "Odly answers questions from your own knowledge sources and keeps your notes organized, using a model that runs on this machine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.initViper(cmd); err != nil {
				return err
			}
			c.initLogger(cmd.ErrOrStderr())
			secrets.ResolveViper(c.v, secretStoreFactory(), c.logger)
			return nil
		},
	}

	// Global flags. These map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "", "log format (text or json)")

	root.AddCommand(
		newAskCmd(c),
		newChatCmd(c),
		newSourcesCmd(c),
		newEntriesCmd(c),
		newDoctorCmd(c),
		newServeCmd(c),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up defaults, env bindings, flag bindings, and optional
// config file so the standard precedence (flag > env > file > defaults) is
// handled uniformly.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := c.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return odlyerr.Errorf(odlyerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper never tries the bare name,
		// which collides with an ./odly binary in the working directory.
		v.SetConfigName("odly")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/odly")
		// No config file is fine. Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return odlyerr.Errorf(odlyerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return odlyerr.Errorf(odlyerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	// Bind persistent flags to viper keys.
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"data_dir":       "data-dir",
		"logging.format": "log-format",
		"verbose":        "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return odlyerr.Errorf(odlyerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}

	return nil
}

// initLogger installs the slog handler selected by logging.* and --verbose.
func (c *cli) initLogger(w io.Writer) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(c.v.GetString("logging.level"))); err != nil {
		level = slog.LevelInfo
	}
	if c.v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if c.v.GetString("logging.format") == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}

	c.logger = slog.New(handler)
	slog.SetDefault(c.logger)
}
