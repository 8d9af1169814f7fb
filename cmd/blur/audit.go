// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"blur/internal/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent entries of the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := audit.OpenSQLite(a.cfg.Audit.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open audit database: %w", err)
			}
			defer sink.Close()

			records, err := sink.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, "No audit entries")
				return nil
			}

			table := tablewriter.NewWriter(a.out)
			table.Header("ID", "Time (UTC)", "User", "File", "Playbook", "Matches", "Categories", "Dry Run")
			for _, rec := range records {
				err := table.Append(
					strconv.FormatInt(rec.ID, 10),
					rec.Timestamp.UTC().Format(time.DateTime),
					rec.OSUsername,
					rec.InputFilename,
					rec.PlaybookName+"@"+rec.PlaybookVersion,
					strconv.Itoa(rec.TotalMatches),
					formatCategories(rec.MatchesByCategory),
					strconv.FormatBool(rec.DryRun),
				)
				if err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&limit, "limit", "n", 50, "number of entries to show")
	flags.BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

// formatCategories renders counts as "type=n" pairs in key order
func formatCategories(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
