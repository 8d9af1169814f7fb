// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"blur/internal/audit"
	"blur/internal/config"
	"blur/internal/observability"
	"blur/internal/redactors"
	"blur/internal/redactors/office"
	"blur/internal/redactors/plaintext"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool
}

// app holds what every subcommand shares once flags and config are resolved
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	observer *observability.StandardObserver
	out      io.Writer
	colors   palette
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	root := &cobra.Command{
		Use:           "blur",
		Short:         "Redact documents with playbooks",
		Long:          "blur removes sensitive text from .docx and .txt documents. Word documents are cleaned of tracked changes, comments and author metadata before redaction.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: search blur.yaml, then the data directory)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colorized output")

	root.AddCommand(
		newRedactCmd(a),
		newValidateCmd(a),
		newPlaybooksCmd(a),
		newWatchCmd(a),
		newAuditCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	if opts.configFile != "" {
		cfg, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		configPath := config.FindConfigFile()
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Error loading config file: %v\n", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Using default configuration\n")
			cfg, _ = config.LoadConfig("")
		}
		a.cfg = cfg
	}

	if opts.logLevel != "" {
		a.cfg.Defaults.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		a.cfg.Defaults.LogFormat = opts.logFormat
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  a.cfg.Defaults.LogLevel,
		Format: a.cfg.Defaults.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.Defaults.LogLevel, err)
	}
	a.logger = logger

	level := observability.ObservabilityMetrics
	if a.cfg.Defaults.LogLevel == "debug" {
		level = observability.ObservabilityDebug
	}
	a.observer = observability.NewStandardObserver(level, logger)

	a.out = cmd.OutOrStdout()
	useColor := !opts.noColor && !a.cfg.Defaults.NoColor && isTerminal(a.out)
	a.colors = newPalette(useColor)
	return nil
}

// openAuditSink opens the configured audit database. The returned close
// function is always safe to call.
func (a *app) openAuditSink(disabled bool) (audit.Sink, func(), error) {
	if disabled || !a.cfg.Audit.Enabled {
		return audit.NopSink{}, func() {}, nil
	}
	sink, err := audit.OpenSQLite(a.cfg.Audit.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	return sink, func() {
		if err := sink.Close(); err != nil {
			a.logger.Warn("failed to close audit database", zap.Error(err))
		}
	}, nil
}

func (a *app) newRedactionManager(sink audit.Sink) (*redactors.RedactionManager, error) {
	opts := redactors.Options{
		Output:   redactors.NewOutputManager(a.observer),
		Audit:    sink,
		Observer: a.observer,
	}
	rm := redactors.NewRedactionManager(a.observer)
	if err := rm.RegisterRedactor(plaintext.NewPlainTextRedactor(opts)); err != nil {
		return nil, err
	}
	if err := rm.RegisterRedactor(office.NewOfficeRedactor(opts)); err != nil {
		return nil, err
	}
	return rm, nil
}

// isTerminal checks if w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type palette struct {
	ok, warn, fail, accent, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		accent: color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.accent, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}
