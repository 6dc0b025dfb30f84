// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"certforge/internal/tabular"
)

func newInspectCmd() *cobra.Command {
	var dataPath, templatePath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the rows and columns of a participant file",
		Long: `inspect parses a participant file the way generation does and prints
the row count and normalized column names. With --template it also lists
placeholders that no column satisfies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := readRecords(dataPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cols := tabular.Columns(records)
			fmt.Fprintf(out, "file: %s\nrows: %d\ncolumns: %s\n", filepath.Base(dataPath), len(records), strings.Join(cols, ", "))

			if templatePath == "" {
				return nil
			}
			tpl, err := loadTemplate(templatePath, "", "")
			if err != nil {
				return err
			}
			var unbound []string
			for _, key := range placeholders(tpl) {
				if !slices.Contains(cols, strings.ToLower(key)) {
					unbound = append(unbound, key)
				}
			}
			if len(unbound) == 0 {
				fmt.Fprintln(out, "placeholders: all bound")
			} else {
				fmt.Fprintf(out, "placeholders without a column: %s\n", strings.Join(unbound, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "participant file (.csv, .xlsx, .xls)")
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "template file to check placeholders against")
	cmd.MarkFlagRequired("data")
	return cmd
}

func readRecords(path string) ([]tabular.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	records, err := tabular.Parse(data, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}
