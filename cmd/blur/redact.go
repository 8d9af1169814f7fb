// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"blur/internal/paths"
	"blur/internal/playbook"
	"blur/internal/redactors"
	"blur/internal/rules"
	"blur/internal/validation"
)

func newRedactCmd(a *app) *cobra.Command {
	var (
		playbookRef string
		outputDir   string
		dryRun      bool
		noAudit     bool
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "redact <file|glob>...",
		Short: "Redact documents with a playbook",
		Long: "Redact .docx and .txt documents. Each output is written next to the others in the output directory as <name>_blurred.<ext>.\n" +
			"Arguments may be glob patterns such as 'inbox/**/*.docx'.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("output") {
				outputDir = a.cfg.Defaults.OutputDir
			}
			if !flags.Changed("dry-run") {
				dryRun = a.cfg.Defaults.DryRun
			}
			if !flags.Changed("workers") {
				workers = a.cfg.Defaults.Workers
			}

			pb, err := resolvePlaybook(playbookRef, a.cfg.Defaults.Playbook)
			if err != nil {
				return err
			}

			files, err := expandInputs(args)
			if err != nil {
				return err
			}

			// the gate runs before anything is opened for processing
			var accepted []string
			failed := 0
			for _, file := range files {
				if res := validation.Validate(file, a.cfg.Validation); !res.Valid {
					a.colors.fail.Fprint(a.out, "✗ ")
					fmt.Fprintf(a.out, "%s: rejected (%s)\n", file, res.Error)
					failed++
					continue
				}
				accepted = append(accepted, file)
			}

			report := rules.NewReport()
			if len(accepted) > 0 {
				sink, closeSink, err := a.openAuditSink(noAudit)
				if err != nil {
					return err
				}
				defer closeSink()

				rm, err := a.newRedactionManager(sink)
				if err != nil {
					return err
				}

				batch, err := rm.ProcessBatch(cmd.Context(), redactors.BatchRequest{
					Files:     accepted,
					OutputDir: outputDir,
					Playbook:  pb,
					DryRun:    dryRun,
					Workers:   workers,
				})
				if batch != nil {
					for _, fr := range batch.Results {
						a.printFileResult(fr)
					}
					failed += batch.FailedFiles
					report = batch.Report
				}
				if err != nil {
					return err
				}
			}

			a.printSummary(len(files), failed, report, dryRun)
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(files))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&playbookRef, "playbook", "p", "", "playbook file or name in the playbooks directory")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	flags.BoolVar(&dryRun, "dry-run", false, "count matches without writing output")
	flags.BoolVar(&noAudit, "no-audit", false, "do not record the run in the audit database")
	flags.IntVarP(&workers, "workers", "w", 0, "documents processed concurrently")
	return cmd
}

func resolvePlaybook(ref, fallback string) (*playbook.Playbook, error) {
	if ref == "" {
		ref = fallback
	}
	if ref == "" {
		return nil, fmt.Errorf("no playbook selected; pass --playbook or set defaults.playbook")
	}
	return playbook.Find(paths.GetPlaybooksDir(), ref)
}

// expandInputs resolves glob arguments and drops duplicates, keeping the
// order in which files were named
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(file string) {
		if !seen[file] {
			seen[file] = true
			files = append(files, file)
		}
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

func (a *app) printFileResult(fr redactors.FileResult) {
	switch {
	case fr.Error != nil:
		a.colors.fail.Fprint(a.out, "✗ ")
		fmt.Fprintf(a.out, "%s: %v\n", fr.InputPath, fr.Error)
	case fr.Result.DryRun:
		a.colors.accent.Fprint(a.out, "• ")
		fmt.Fprintf(a.out, "%s: %d matches (dry run)\n", fr.InputPath, fr.Result.Report.TotalMatches)
	default:
		a.colors.ok.Fprint(a.out, "✓ ")
		fmt.Fprintf(a.out, "%s → %s: %d matches\n", fr.InputPath, fr.Result.OutputPath, fr.Result.Report.TotalMatches)
	}
}

func (a *app) printSummary(total, failed int, report rules.Report, dryRun bool) {
	fmt.Fprintln(a.out)
	a.colors.bold.Fprint(a.out, "Summary: ")
	fmt.Fprintf(a.out, "%d documents, %d succeeded, ", total, total-failed)
	if failed > 0 {
		a.colors.fail.Fprintf(a.out, "%d failed", failed)
	} else {
		fmt.Fprint(a.out, "0 failed")
	}
	fmt.Fprintf(a.out, ", %d matches", report.TotalMatches)
	if dryRun {
		a.colors.warn.Fprint(a.out, " (dry run, nothing written)")
	}
	fmt.Fprintln(a.out)
	printCounts(a.out, report.ByRuleType)
}

func printCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-22s %d\n", k, counts[k])
	}
}
