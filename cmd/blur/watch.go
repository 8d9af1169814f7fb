// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blur/internal/hotfolder"
	"blur/internal/paths"
	"blur/internal/playbook"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		inputDir    string
		outputDir   string
		playbookRef string
		once        bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Redact documents dropped into a hot folder",
		Long: "Watch the input directory and redact every supported document that appears in it.\n" +
			"Processed originals are moved to the processed directory, rejected ones to the error directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hf := a.cfg.Hotfolder
			if inputDir != "" {
				// directories derived from the configured input follow the override
				derived := hotfolder.Config{InputDir: hf.InputDir}.WithDefaults()
				if hf.ProcessedDir == derived.ProcessedDir {
					hf.ProcessedDir = ""
				}
				if hf.ErrorDir == derived.ErrorDir {
					hf.ErrorDir = ""
				}
				hf.InputDir = inputDir
			}
			if outputDir != "" {
				hf.OutputDir = outputDir
			}
			if playbookRef != "" {
				hf.Playbook = playbookRef
			}
			hf.Enabled = true
			hf = hf.WithDefaults()
			if err := hf.Validate(); err != nil {
				return err
			}

			playbooksDir := paths.GetPlaybooksDir()
			loader := func(ref string) (*playbook.Playbook, error) {
				return playbook.Find(playbooksDir, ref)
			}
			// fail before watching rather than on the first document
			pb, err := loader(hf.Playbook)
			if err != nil {
				return err
			}

			sink, closeSink, err := a.openAuditSink(false)
			if err != nil {
				return err
			}
			defer closeSink()

			rm, err := a.newRedactionManager(sink)
			if err != nil {
				return err
			}

			mgr, err := hotfolder.NewManager(hf, hotfolder.Options{
				Redaction:    rm,
				LoadPlaybook: loader,
				Limits:       a.cfg.Validation,
				Observer:     a.observer,
			})
			if err != nil {
				return err
			}

			if once {
				n, err := mgr.ProcessOnce(cmd.Context())
				a.printWatchStatus(mgr.Status(), n)
				return err
			}

			a.logger.Info("watching hot folder",
				zap.String("input_dir", hf.InputDir),
				zap.String("output_dir", hf.OutputDir),
				zap.String("playbook", pb.Identity()))
			fmt.Fprintf(a.out, "Watching %s (Ctrl+C to stop)\n", hf.InputDir)

			err = mgr.Run(cmd.Context())
			a.printWatchStatus(mgr.Status(), -1)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inputDir, "input", "i", "", "directory to watch (default from config)")
	flags.StringVarP(&outputDir, "output", "o", "", "directory for redacted documents (default from config)")
	flags.StringVarP(&playbookRef, "playbook", "p", "", "playbook file or name (default from config)")
	flags.BoolVar(&once, "once", false, "process the folder once and exit")
	return cmd
}

func (a *app) printWatchStatus(st hotfolder.Status, scanned int) {
	if scanned >= 0 {
		fmt.Fprintf(a.out, "Scanned %d documents\n", scanned)
	}
	a.colors.ok.Fprintf(a.out, "%d processed", st.SuccessCount)
	fmt.Fprint(a.out, ", ")
	if st.FailureCount > 0 {
		a.colors.fail.Fprintf(a.out, "%d failed", st.FailureCount)
	} else {
		fmt.Fprint(a.out, "0 failed")
	}
	fmt.Fprintln(a.out)
	if st.LastError != "" {
		a.colors.warn.Fprint(a.out, "Last error: ")
		fmt.Fprintln(a.out, st.LastError)
	}
}
