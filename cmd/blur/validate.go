// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"blur/internal/validation"
)

type validateReport struct {
	Path string `json:"path"`
	validation.Result
}

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file|glob>...",
		Short: "Check documents against the input limits without processing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandInputs(args)
			if err != nil {
				return err
			}

			reports := make([]validateReport, 0, len(files))
			invalid := 0
			for _, file := range files {
				res := validation.Validate(file, a.cfg.Validation)
				if !res.Valid {
					invalid++
				}
				reports = append(reports, validateReport{Path: file, Result: res})
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Valid {
						a.colors.ok.Fprint(a.out, "✓ ")
						fmt.Fprintf(a.out, "%s (%s, %d bytes)\n", r.Path, r.FileKind, r.SizeBytes)
						continue
					}
					a.colors.fail.Fprint(a.out, "✗ ")
					fmt.Fprintf(a.out, "%s: %s\n", r.Path, r.Error)
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d documents rejected", invalid, len(files))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
