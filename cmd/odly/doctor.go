// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/odly-dev/odly/internal/config"
	"github.com/odly-dev/odly/internal/inference"
	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/odly-dev/odly/pkg/health"
	"github.com/spf13/cobra"
)

type checkStatus int

const (
	statusOK checkStatus = iota
	statusWarn
	statusFail
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (s checkStatus) String() string {
	switch s {
	case statusWarn:
		return warnStyle.Render("!")
	case statusFail:
		return failStyle.Render("x")
	default:
		return okStyle.Render("ok")
	}
}

type checkResult struct {
	status checkStatus
	detail string
}

func newDoctorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, the model file and free space, the inference engine, storage, and a running odly server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, c)
		},
	}
}

func runDoctor(cmd *cobra.Command, c *cli) error {
	w := cmd.OutOrStdout()

	cfg, cfgErr := c.loadConfig()
	checks := []struct {
		name string
		fn   func() checkResult
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() checkResult { return checkConfig(c.v.ConfigFileUsed(), cfgErr) }},
	}
	if cfgErr == nil {
		checks = append(checks, []struct {
			name string
			fn   func() checkResult
		}{
			{"Model", func() checkResult { return checkModel(cfg) }},
			{"Engine", func() checkResult { return checkEngine(cfg) }},
			{"Storage", func() checkResult { return checkStorage(cfg) }},
			{"Disk Space", func() checkResult { return checkDiskSpace(cfg) }},
			{"Server", func() checkResult { return checkServer(cfg.Server.Listen) }},
		}...)
	}

	failed := 0
	for _, check := range checks {
		res := check.fn()
		if res.status == statusFail {
			failed++
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", labelStyle.Render(check.name+":"), res.status, res.detail); err != nil {
			return err
		}
	}

	if cfgErr != nil {
		return cfgErr
	}
	if failed > 0 {
		return odlyerr.New(odlyerr.CodeCLISetupFailure, fmt.Sprintf("%d check(s) failed", failed))
	}
	return nil
}

func checkBinary() checkResult {
	return checkResult{detail: fmt.Sprintf("odly %s (commit: %s)", version, commit)}
}

func checkPlatform() checkResult {
	return checkResult{detail: fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())}
}

func checkConfig(used string, err error) checkResult {
	switch {
	case err != nil:
		return checkResult{status: statusFail, detail: err.Error()}
	case used != "":
		return checkResult{detail: fmt.Sprintf("loaded from %s", used)}
	default:
		return checkResult{status: statusWarn, detail: "using defaults (no config file found)"}
	}
}

func checkModel(cfg *config.Config) checkResult {
	if !cfg.Model.CheckFile {
		if cfg.Model.Path == "" {
			return checkResult{status: statusFail, detail: "model.path is empty"}
		}
		return checkResult{detail: fmt.Sprintf("served model %q (file check disabled)", cfg.Model.Path)}
	}

	path, err := config.ExpandHome(cfg.Model.Path)
	if err != nil {
		return checkResult{status: statusFail, detail: err.Error()}
	}
	d := inference.Diagnose(path, cfg.Model.MinFreeBytes)
	if err := d.Check(cfg.Model.MinFreeBytes); err != nil {
		return checkResult{status: statusFail, detail: d.Hint()}
	}
	return checkResult{detail: fmt.Sprintf("%s (%s)", path, inference.FormatBytes(uint64(d.SizeBytes)))}
}

func checkEngine(cfg *config.Config) checkResult {
	desc := fmt.Sprintf("%s at %s", cfg.Engine.Backend, cfg.Engine.Endpoint)
	if cfg.Engine.Backend != "llamacpp" {
		return checkResult{detail: desc}
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := newHTTPClient(cfg.Engine.Endpoint).getJSON("/health", &body); err != nil {
		return checkResult{status: statusFail, detail: fmt.Sprintf("%s: %s", desc, err)}
	}
	if body.Status != "" && body.Status != "ok" {
		return checkResult{status: statusWarn, detail: fmt.Sprintf("%s: %s", desc, body.Status)}
	}
	return checkResult{detail: desc + ": ok"}
}

func checkStorage(cfg *config.Config) checkResult {
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = store.DefaultBackend
	}
	return checkResult{detail: fmt.Sprintf("%s (available: %s)", backend, strings.Join(store.Backends(), ", "))}
}

func checkDiskSpace(cfg *config.Config) checkResult {
	dataDir, err := cfg.ResolvedDataDir()
	if err != nil {
		return checkResult{status: statusFail, detail: err.Error()}
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		dataDir, _ = os.UserHomeDir()
	}

	free, err := inference.FreeBytes(dataDir)
	if err != nil {
		return checkResult{status: statusWarn, detail: fmt.Sprintf("unable to check: %s", err)}
	}
	return checkResult{detail: fmt.Sprintf("%s available in %s", inference.FormatBytes(free), dataDir)}
}

func checkServer(addr string) checkResult {
	var m health.Metrics
	if err := newHTTPClient(addr).getJSON("/api/v1/status", &m); err != nil {
		if odlyerr.HasCode(err, odlyerr.CodeCLIServerDown) {
			return checkResult{status: statusWarn, detail: fmt.Sprintf("not running at %s (run 'odly serve')", addr)}
		}
		return checkResult{status: statusWarn, detail: fmt.Sprintf("error: %s", err)}
	}
	return checkResult{detail: fmt.Sprintf("running at %s, session %s", addr, m.State)}
}
