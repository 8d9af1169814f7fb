// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blur/internal/paths"
	"blur/internal/playbook"
)

func newPlaybooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbooks",
		Short: "Inspect the installed playbooks",
	}
	cmd.AddCommand(newPlaybooksListCmd(a), newPlaybooksShowCmd(a))
	return cmd
}

func newPlaybooksListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List playbooks in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := paths.GetPlaybooksDir()
			files, err := playbook.List(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(a.out, "No playbooks found in %s\n", dir)
				return nil
			}

			table := tablewriter.NewWriter(a.out)
			table.Header("File", "Name", "Version", "Rules", "Mode")
			for _, file := range files {
				pb, err := playbook.Load(file)
				if err != nil {
					// a broken playbook is listed so it can be found and fixed
					a.logger.Debug("playbook failed to load", zap.String("file", file), zap.Error(err))
					if err := table.Append(filepath.Base(file), "(invalid)", "", "", ""); err != nil {
						return err
					}
					continue
				}
				if err := table.Append(filepath.Base(file), pb.Name, pb.Version, strconv.Itoa(len(pb.Rules)), string(pb.RedactionMode)); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newPlaybooksShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <playbook>",
		Short: "Show the rules of a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pb, err := playbook.Find(paths.GetPlaybooksDir(), args[0])
			if err != nil {
				return err
			}

			a.colors.bold.Fprint(a.out, pb.Identity())
			fmt.Fprintf(a.out, "  mode=%s mask=%q\n", pb.RedactionMode, pb.MaskChar)
			if pb.Description != "" {
				fmt.Fprintln(a.out, pb.Description)
			}

			table := tablewriter.NewWriter(a.out)
			table.Header("Order", "ID", "Type", "Priority", "Action", "Enabled")
			order := 0
			for _, t := range playbook.ExecutionOrder {
				for _, r := range pb.Rules {
					if r.Type() != t {
						continue
					}
					order++
					meta := r.Meta()
					if err := table.Append(strconv.Itoa(order), meta.ID, string(r.Type()), strconv.Itoa(meta.Priority), string(meta.Action), strconv.FormatBool(meta.Enabled)); err != nil {
						return err
					}
				}
			}
			return table.Render()
		},
	}
}
